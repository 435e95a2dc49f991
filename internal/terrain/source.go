package terrain

import (
	"context"
	"errors"
	"fmt"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/block"
)

// ErrInvalidEdge возвращается при неположительном размере чанка
var ErrInvalidEdge = errors.New("terrain: размер чанка должен быть положительным")

// Source - подключаемая функция высоты/материала, ключ - мировые (x, z).
// Результат должен зависеть только от координат (и сида источника).
type Source interface {
	Column(ctx context.Context, x, z int) (world.Column, error)
}

// ChunkSource - необязательное расширение Source для источников,
// которым выгоднее строить чанк целиком (например, одна загрузка из хранилища).
type ChunkSource interface {
	Source
	Chunk(ctx context.Context, pos vec.ChunkPos, edge int) ([]world.Voxel, error)
}

// Synthesize строит воксели чанка: для каждого локального (lx, lz) из [0, edge)
// запрашивает столбец в мировой точке (cx*edge+lx, cz*edge+lz).
func Synthesize(ctx context.Context, src Source, pos vec.ChunkPos, edge int) ([]world.Voxel, error) {
	if edge <= 0 {
		return nil, ErrInvalidEdge
	}
	if cs, ok := src.(ChunkSource); ok {
		return cs.Chunk(ctx, pos, edge)
	}
	return synthesizeColumns(ctx, src, pos, edge)
}

func synthesizeColumns(ctx context.Context, src Source, pos vec.ChunkPos, edge int) ([]world.Voxel, error) {
	ox, oz := pos.Origin(edge)
	voxels := make([]world.Voxel, 0, edge*edge)

	for lx := 0; lx < edge; lx++ {
		// Проверяем отмену раз на строку, а не на каждый столбец
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for lz := 0; lz < edge; lz++ {
			x, z := ox+lx, oz+lz
			col, err := src.Column(ctx, x, z)
			if err != nil {
				return nil, fmt.Errorf("столбец (%d,%d): %w", x, z, err)
			}
			voxels = col.AppendVoxels(voxels, x, z)
		}
	}
	return voxels, nil
}

// Flat - плоский ландшафт: одинаковый столбец в каждой точке.
// Flat{Height: 0, Depth: 1, Block: block.Grass} даёт один слой кубов на y = 0.
type Flat struct {
	Height int
	Depth  int
	Block  block.ID
}

// DefaultFlat возвращает однослойную травяную плоскость на y = 0
func DefaultFlat() Flat {
	return Flat{Height: 0, Depth: 1, Block: block.Grass}
}

func (f Flat) Column(_ context.Context, _, _ int) (world.Column, error) {
	return world.Column{Top: f.Height, Depth: f.Depth, Block: f.Block}, nil
}

// Func адаптирует обычную функцию к интерфейсу Source
type Func func(ctx context.Context, x, z int) (world.Column, error)

func (f Func) Column(ctx context.Context, x, z int) (world.Column, error) {
	return f(ctx, x, z)
}
