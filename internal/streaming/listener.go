package streaming

import (
	"time"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

// Listener получает уведомления об изменениях резидентного набора.
// Все методы вызываются из потока, который вызывает Advance.
type Listener interface {
	ChunkLoaded(c *world.Chunk, took time.Duration)
	ChunkEvicted(c *world.Chunk)
	ChunkFailed(c *world.Chunk)
	ChunkDiscarded(pos vec.ChunkPos)
}

// NopListener - пустая реализация для встраивания
type NopListener struct{}

func (NopListener) ChunkLoaded(*world.Chunk, time.Duration) {}
func (NopListener) ChunkEvicted(*world.Chunk)               {}
func (NopListener) ChunkFailed(*world.Chunk)                {}
func (NopListener) ChunkDiscarded(vec.ChunkPos)             {}

type listeners []Listener

func (ls listeners) loaded(c *world.Chunk, took time.Duration) {
	for _, l := range ls {
		l.ChunkLoaded(c, took)
	}
}

func (ls listeners) evicted(c *world.Chunk) {
	for _, l := range ls {
		l.ChunkEvicted(c)
	}
}

func (ls listeners) failed(c *world.Chunk) {
	for _, l := range ls {
		l.ChunkFailed(c)
	}
}

func (ls listeners) discarded(pos vec.ChunkPos) {
	for _, l := range ls {
		l.ChunkDiscarded(pos)
	}
}
