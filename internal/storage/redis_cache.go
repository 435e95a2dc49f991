package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "voxel:edits:",
		TTL:       10 * time.Minute,
	}
}

// CachedStore - горячий кеш Redis перед EditStore (read-through,
// запись идёт в хранилище, ключ кеша инвалидируется).
// Ошибки Redis не ломают чтение: запрос уходит в хранилище.
type CachedStore struct {
	EditStore
	client *redis.Client
	codec  *Codec
	cfg    RedisConfig
	logger *logging.Logger
}

// NewCachedStore подключается к Redis и оборачивает хранилище
func NewCachedStore(ctx context.Context, backing EditStore, cfg RedisConfig) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	codec, err := NewCodec()
	if err != nil {
		client.Close()
		return nil, err
	}

	return &CachedStore{
		EditStore: backing,
		client:    client,
		codec:     codec,
		cfg:       cfg,
		logger:    logging.GetStorageLogger(),
	}, nil
}

func (c *CachedStore) key(pos vec.ChunkPos) string {
	return c.cfg.KeyPrefix + chunkKey(pos)
}

func (c *CachedStore) LoadEdits(ctx context.Context, pos vec.ChunkPos) ([]world.ColumnEdit, error) {
	data, err := c.client.Get(ctx, c.key(pos)).Bytes()
	switch {
	case err == nil:
		record, derr := c.codec.Decode(data)
		if derr == nil {
			return record.Columns, nil
		}
		c.logger.Warn("Повреждённая запись кеша %s: %v", pos, derr)
	case errors.Is(err, redis.Nil):
		// промах кеша
	default:
		c.logger.Warn("Redis недоступен для %s: %v", pos, err)
	}

	edits, err := c.EditStore.LoadEdits(ctx, pos)
	if err != nil {
		return nil, err
	}

	payload, err := c.codec.Encode(&ChunkEdits{Coords: pos, Columns: edits})
	if err == nil {
		if err := c.client.Set(ctx, c.key(pos), payload, c.cfg.TTL).Err(); err != nil {
			c.logger.Debug("Не удалось записать кеш %s: %v", pos, err)
		}
	}
	return edits, nil
}

func (c *CachedStore) SaveEdits(ctx context.Context, pos vec.ChunkPos, edits []world.ColumnEdit) error {
	if err := c.EditStore.SaveEdits(ctx, pos, edits); err != nil {
		return err
	}
	return c.invalidate(ctx, pos)
}

func (c *CachedStore) DeleteEdits(ctx context.Context, pos vec.ChunkPos) error {
	if err := c.EditStore.DeleteEdits(ctx, pos); err != nil {
		return err
	}
	return c.invalidate(ctx, pos)
}

func (c *CachedStore) invalidate(ctx context.Context, pos vec.ChunkPos) error {
	if err := c.client.Del(ctx, c.key(pos)).Err(); err != nil {
		return fmt.Errorf("инвалидация кеша %s: %w", pos, err)
	}
	return nil
}

// Close закрывает клиент Redis и нижележащее хранилище
func (c *CachedStore) Close() error {
	c.codec.Close()
	rerr := c.client.Close()
	if err := c.EditStore.Close(); err != nil {
		return err
	}
	return rerr
}
