package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

const chunkPrefix = "chunk:"

// ChunkStore хранит изменения чанков в BadgerDB (значения: JSON + zstd)
type ChunkStore struct {
	db      *badger.DB
	dbPath  string
	codec   *Codec
	mutex   sync.RWMutex
	isReady bool
	logger  *logging.Logger
}

// OpenChunkStore открывает (или создаёт) хранилище в dataPath/world.
// Пустой dataPath открывает BadgerDB в памяти.
func OpenChunkStore(dataPath string) (*ChunkStore, error) {
	var opts badger.Options
	dbPath := ""
	if dataPath == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dbPath = filepath.Join(dataPath, "world")
		opts = badger.DefaultOptions(dbPath)
	}
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	codec, err := NewCodec()
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ChunkStore{
		db:      db,
		dbPath:  dbPath,
		codec:   codec,
		isReady: true,
		logger:  logging.GetStorageLogger(),
	}, nil
}

// Close закрывает хранилище данных
func (cs *ChunkStore) Close() error {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if !cs.isReady {
		return nil
	}

	cs.isReady = false
	cs.codec.Close()
	return cs.db.Close()
}

// SaveEdits объединяет изменения с уже сохранёнными и записывает результат
func (cs *ChunkStore) SaveEdits(ctx context.Context, pos vec.ChunkPos, edits []world.ColumnEdit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if !cs.isReady {
		return ErrClosed
	}

	key := []byte(chunkKey(pos))
	err := cs.db.Update(func(txn *badger.Txn) error {
		existing, err := cs.read(txn, key)
		if err != nil {
			return err
		}

		record := &ChunkEdits{Coords: pos}
		if existing != nil {
			record.Columns = existing.Columns
		}
		record.Columns = mergeEdits(record.Columns, edits)

		data, err := cs.codec.Encode(record)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	cs.logger.Debug("Сохранено %d изменений чанка %s", len(edits), pos)
	return nil
}

// LoadEdits загружает изменения чанка. Отсутствие записи - не ошибка.
func (cs *ChunkStore) LoadEdits(ctx context.Context, pos vec.ChunkPos) ([]world.ColumnEdit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if !cs.isReady {
		return nil, ErrClosed
	}

	var record *ChunkEdits
	err := cs.db.View(func(txn *badger.Txn) error {
		var err error
		record, err = cs.read(txn, []byte(chunkKey(pos)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return record.Columns, nil
}

// read возвращает nil без ошибки, если ключа нет
func (cs *ChunkStore) read(txn *badger.Txn, key []byte) (*ChunkEdits, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data []byte
	if err := item.Value(func(val []byte) error {
		data = append([]byte{}, val...)
		return nil
	}); err != nil {
		return nil, err
	}
	return cs.codec.Decode(data)
}

// DeleteEdits удаляет изменения чанка
func (cs *ChunkStore) DeleteEdits(ctx context.Context, pos vec.ChunkPos) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if !cs.isReady {
		return ErrClosed
	}

	err := cs.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(chunkKey(pos)))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// ListChunks возвращает координаты всех чанков с изменениями
func (cs *ChunkStore) ListChunks(ctx context.Context) ([]vec.ChunkPos, error) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if !cs.isReady {
		return nil, ErrClosed
	}

	var out []vec.ChunkPos
	err := cs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(chunkPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := string(it.Item().Key())
			pos, err := parseChunkKey(key)
			if err != nil {
				cs.logger.Warn("Пропущен ключ: %v", err)
				continue
			}
			out = append(out, pos)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода BadgerDB: %w", err)
	}

	sortPositions(out)
	return out, nil
}
