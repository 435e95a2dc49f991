package terrain

import (
	"context"
	"fmt"

	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

// EditLoader читает сохранённые изменения столбцов чанка
type EditLoader interface {
	LoadEdits(ctx context.Context, pos vec.ChunkPos) ([]world.ColumnEdit, error)
}

// Overlay накладывает сохранённые изменения поверх базового источника.
// Ошибка чтения хранилища возвращается как ошибка генерации чанка.
type Overlay struct {
	Base  Source
	Edits EditLoader
	Edge  int // Нужен только для одиночных запросов Column
}

// NewOverlay создаёт источник с наложением изменений
func NewOverlay(base Source, edits EditLoader, edge int) *Overlay {
	return &Overlay{Base: base, Edits: edits, Edge: edge}
}

func (o *Overlay) Column(ctx context.Context, x, z int) (world.Column, error) {
	pos := vec.ChunkPosOfBlock(x, z, o.Edge)
	edits, err := o.Edits.LoadEdits(ctx, pos)
	if err != nil {
		return world.Column{}, fmt.Errorf("загрузка изменений чанка %s: %w", pos, err)
	}
	ox, oz := pos.Origin(o.Edge)
	for _, e := range edits {
		if e.LX == x-ox && e.LZ == z-oz {
			return e.Column, nil
		}
	}
	return o.Base.Column(ctx, x, z)
}

func (o *Overlay) Chunk(ctx context.Context, pos vec.ChunkPos, edge int) ([]world.Voxel, error) {
	edits, err := o.Edits.LoadEdits(ctx, pos)
	if err != nil {
		return nil, fmt.Errorf("загрузка изменений чанка %s: %w", pos, err)
	}

	if len(edits) == 0 {
		return Synthesize(ctx, o.Base, pos, edge)
	}

	overrides := make(map[[2]int]world.Column, len(edits))
	for _, e := range edits {
		if e.LX < 0 || e.LX >= edge || e.LZ < 0 || e.LZ >= edge {
			logging.GetTerrainLogger().Warn("Некорректные координаты изменения %d,%d в чанке %s", e.LX, e.LZ, pos)
			continue
		}
		overrides[[2]int{e.LX, e.LZ}] = e.Column
	}

	ox, oz := pos.Origin(edge)
	voxels := make([]world.Voxel, 0, edge*edge)
	for lx := 0; lx < edge; lx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for lz := 0; lz < edge; lz++ {
			x, z := ox+lx, oz+lz
			col, ok := overrides[[2]int{lx, lz}]
			if !ok {
				col, err = o.Base.Column(ctx, x, z)
				if err != nil {
					return nil, fmt.Errorf("столбец (%d,%d): %w", x, z, err)
				}
			}
			voxels = col.AppendVoxels(voxels, x, z)
		}
	}
	return voxels, nil
}
