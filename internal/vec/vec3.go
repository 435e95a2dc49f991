package vec

import "fmt"

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int
	Y int
	Z int
}

// Chunk возвращает координаты чанка, которому принадлежит позиция
func (v Vec3) Chunk(edge int) ChunkPos {
	return ChunkPosOfBlock(v.X, v.Z, edge)
}

// Local возвращает смещение позиции внутри своего чанка
func (v Vec3) Local(edge int) (lx, lz int) {
	c := v.Chunk(edge)
	ox, oz := c.Origin(edge)
	return v.X - ox, v.Z - oz
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z)
}
