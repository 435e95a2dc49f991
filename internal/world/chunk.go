package world

import (
	"fmt"
	"time"

	"github.com/annel0/voxel-stream/internal/render"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world/block"
)

// Voxel представляет единичный куб в мировых координатах
type Voxel struct {
	Pos   vec.Vec3
	Block block.ID
}

// ChunkState - состояние резидентного чанка
type ChunkState uint8

const (
	StateLoaded ChunkState = iota // воксели синтезированы и добавлены в сцену
	StateFailed                   // генерация не удалась, чанк - пустая заглушка
)

func (s ChunkState) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Chunk представляет участок плоскости edge x edge блоков.
// Владеет хендлами сцены для своих вокселей.
type Chunk struct {
	Pos      vec.ChunkPos
	Edge     int
	Voxels   []Voxel
	Handles  []render.Handle
	State    ChunkState
	Attempts int       // Сколько попыток генерации потребовалось
	Err      error     // Последняя ошибка для StateFailed
	LoadedAt time.Time // Момент попадания в резидентный набор
}

// NewChunk создаёт загруженный чанк с указанными вокселями
func NewChunk(pos vec.ChunkPos, edge int, voxels []Voxel) *Chunk {
	return &Chunk{
		Pos:    pos,
		Edge:   edge,
		Voxels: voxels,
		State:  StateLoaded,
	}
}

// NewPlaceholder создаёт пустую заглушку для чанка, генерация которого не удалась
func NewPlaceholder(pos vec.ChunkPos, edge int, attempts int, err error) *Chunk {
	return &Chunk{
		Pos:      pos,
		Edge:     edge,
		State:    StateFailed,
		Attempts: attempts,
		Err:      err,
	}
}

// Failed возвращает true для заглушки
func (c *Chunk) Failed() bool {
	return c.State == StateFailed
}

// Contains проверяет, лежит ли мировая колонка (x, z) внутри чанка
func (c *Chunk) Contains(x, z int) bool {
	return vec.ChunkPosOfBlock(x, z, c.Edge) == c.Pos
}

// Bounds возвращает полуоткрытый прямоугольник [minX, maxX) x [minZ, maxZ)
func (c *Chunk) Bounds() (minX, minZ, maxX, maxZ int) {
	minX, minZ = c.Pos.Origin(c.Edge)
	return minX, minZ, minX + c.Edge, minZ + c.Edge
}

// Attach регистрирует воксели в сцене и запоминает хендлы
func (c *Chunk) Attach(scene render.Scene, alloc *render.HandleAllocator) {
	c.Handles = make([]render.Handle, 0, len(c.Voxels))
	for _, v := range c.Voxels {
		h := alloc.Next(v.Pos, v.Block)
		scene.AddObject(h)
		c.Handles = append(c.Handles, h)
	}
}

// Detach удаляет все хендлы чанка из сцены
func (c *Chunk) Detach(scene render.Scene) {
	for _, h := range c.Handles {
		scene.RemoveObject(h)
	}
	c.Handles = nil
}

func (c *Chunk) String() string {
	return fmt.Sprintf("chunk%s[%s, %d voxels]", c.Pos, c.State, len(c.Voxels))
}
