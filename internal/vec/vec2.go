package vec

import (
	"fmt"
	"math"
)

// ChunkPos представляет координаты чанка на плоскости XZ
type ChunkPos struct {
	X, Z int
}

// ChunkPosOf возвращает координаты чанка, содержащего мировую точку (x, z).
// Используется деление с округлением вниз, поэтому x = -0.5 попадает в чанк -1.
func ChunkPosOf(x, z float64, edge int) ChunkPos {
	e := float64(edge)
	return ChunkPos{
		X: int(math.Floor(x / e)),
		Z: int(math.Floor(z / e)),
	}
}

// ChunkPosOfBlock возвращает чанк для целочисленных координат блока
func ChunkPosOfBlock(x, z, edge int) ChunkPos {
	return ChunkPos{X: FloorDiv(x, edge), Z: FloorDiv(z, edge)}
}

// FloorDiv выполняет целочисленное деление с округлением к минус бесконечности
func FloorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// Chebyshev возвращает расстояние Чебышёва между чанками (max(|dx|, |dz|))
func (p ChunkPos) Chebyshev(other ChunkPos) int {
	dx := p.X - other.X
	if dx < 0 {
		dx = -dx
	}
	dz := p.Z - other.Z
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

// Origin возвращает мировые координаты угла чанка
func (p ChunkPos) Origin(edge int) (x, z int) {
	return p.X * edge, p.Z * edge
}

// Add смещает координаты чанка
func (p ChunkPos) Add(dx, dz int) ChunkPos {
	return ChunkPos{X: p.X + dx, Z: p.Z + dz}
}

// Less задаёт порядок сортировки: сначала по X, затем по Z
func (p ChunkPos) Less(other ChunkPos) bool {
	if p.X != other.X {
		return p.X < other.X
	}
	return p.Z < other.Z
}

func (p ChunkPos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Z)
}

// Square возвращает все чанки в радиусе Чебышёва вокруг центра.
// Порядок: построчно по X, затем по Z.
func Square(center ChunkPos, radius int) []ChunkPos {
	if radius < 0 {
		return nil
	}
	side := 2*radius + 1
	out := make([]ChunkPos, 0, side*side)
	for dx := -radius; dx <= radius; dx++ {
		for dz := -radius; dz <= radius; dz++ {
			out = append(out, center.Add(dx, dz))
		}
	}
	return out
}
