package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

// ErrClosed возвращается при обращении к закрытому хранилищу
var ErrClosed = errors.New("storage: хранилище закрыто")

// EditStore хранит изменения столбцов по чанкам
type EditStore interface {
	LoadEdits(ctx context.Context, pos vec.ChunkPos) ([]world.ColumnEdit, error)
	SaveEdits(ctx context.Context, pos vec.ChunkPos, edits []world.ColumnEdit) error
	DeleteEdits(ctx context.Context, pos vec.ChunkPos) error
	ListChunks(ctx context.Context) ([]vec.ChunkPos, error)
	Close() error
}

// MemoryStore - EditStore в памяти (тесты и запуск без диска)
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[vec.ChunkPos][]world.ColumnEdit
	closed bool

	// FailLoad, если задан, вызывается перед каждой загрузкой;
	// ненулевая ошибка возвращается вызывающему.
	FailLoad func(pos vec.ChunkPos) error
}

// NewMemoryStore создаёт пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[vec.ChunkPos][]world.ColumnEdit)}
}

func (m *MemoryStore) LoadEdits(ctx context.Context, pos vec.ChunkPos) ([]world.ColumnEdit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.FailLoad != nil {
		if err := m.FailLoad(pos); err != nil {
			return nil, err
		}
	}
	edits := m.chunks[pos]
	out := make([]world.ColumnEdit, len(edits))
	copy(out, edits)
	return out, nil
}

func (m *MemoryStore) SaveEdits(ctx context.Context, pos vec.ChunkPos, edits []world.ColumnEdit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.chunks[pos] = mergeEdits(m.chunks[pos], edits)
	return nil
}

func (m *MemoryStore) DeleteEdits(ctx context.Context, pos vec.ChunkPos) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.chunks, pos)
	return nil
}

func (m *MemoryStore) ListChunks(ctx context.Context) ([]vec.ChunkPos, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]vec.ChunkPos, 0, len(m.chunks))
	for pos := range m.chunks {
		out = append(out, pos)
	}
	sortPositions(out)
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func sortPositions(ps []vec.ChunkPos) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].Less(ps[j]) })
}
