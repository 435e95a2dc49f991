package world

import (
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world/block"
)

// Column описывает вертикальный столбец ландшафта в точке (x, z).
// Столбец занимает высоты (Top-Depth, Top]; Depth == 0 означает пустой столбец.
type Column struct {
	Top   int      `json:"top"`
	Depth int      `json:"depth"`
	Block block.ID `json:"block"`
}

// Empty возвращает true, если столбец не содержит вокселей
func (c Column) Empty() bool {
	return c.Depth <= 0 || !c.Block.IsSolid()
}

// AppendVoxels добавляет воксели столбца в dst, сверху вниз
func (c Column) AppendVoxels(dst []Voxel, x, z int) []Voxel {
	if c.Empty() {
		return dst
	}
	for y := c.Top; y > c.Top-c.Depth; y-- {
		dst = append(dst, Voxel{Pos: vec.Vec3{X: x, Y: y, Z: z}, Block: c.Block})
	}
	return dst
}

// ColumnEdit - сохранённое изменение столбца в локальных координатах чанка
type ColumnEdit struct {
	LX     int    `json:"lx"`
	LZ     int    `json:"lz"`
	Column Column `json:"column"`
}
