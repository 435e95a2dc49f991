package world

import (
	"time"

	"github.com/annel0/voxel-stream/internal/vec"
)

// EventType определяет тип события жизненного цикла чанка
type EventType uint8

const (
	EventChunkLoaded    EventType = iota // Чанк синтезирован и добавлен в сцену
	EventChunkEvicted                    // Чанк вышел из радиуса и удалён из сцены
	EventChunkFailed                     // Генерация исчерпала попытки, поставлена заглушка
	EventChunkDiscarded                  // Результат асинхронной генерации устарел
)

func (t EventType) String() string {
	switch t {
	case EventChunkLoaded:
		return "ChunkLoaded"
	case EventChunkEvicted:
		return "ChunkEvicted"
	case EventChunkFailed:
		return "ChunkFailed"
	case EventChunkDiscarded:
		return "ChunkDiscarded"
	default:
		return "Unknown"
	}
}

// ChunkEvent описывает изменение резидентного набора
type ChunkEvent struct {
	Type     EventType     `json:"type"`
	Pos      vec.ChunkPos  `json:"pos"`
	Voxels   int           `json:"voxels"`
	Attempts int           `json:"attempts,omitempty"`
	Took     time.Duration `json:"took,omitempty"`
	Error    string        `json:"error,omitempty"`
	At       time.Time     `json:"at"`
}
