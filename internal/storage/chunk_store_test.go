package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *ChunkStore {
	store, err := OpenChunkStore(t.TempDir())
	if err != nil {
		t.Fatalf("Не удалось создать хранилище: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadEdits(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	pos := vec.ChunkPos{X: 10, Z: -20}

	first := []world.ColumnEdit{
		{LX: 5, LZ: 5, Column: world.Column{Top: 1, Depth: 2, Block: block.Sand}},
		{LX: 8, LZ: 3, Column: world.Column{}},
	}
	require.NoError(t, store.SaveEdits(ctx, pos, first))

	second := []world.ColumnEdit{
		{LX: 5, LZ: 5, Column: world.Column{Top: 4, Depth: 1, Block: block.Stone}},
		{LX: 0, LZ: 0, Column: world.Column{Top: 0, Depth: 1, Block: block.Dirt}},
	}
	require.NoError(t, store.SaveEdits(ctx, pos, second))

	edits, err := store.LoadEdits(ctx, pos)
	require.NoError(t, err)
	require.Len(t, edits, 3)
	assert.Equal(t, block.Stone, edits[0].Column.Block, "изменение (5,5) перезаписано")
	assert.Equal(t, world.Column{}, edits[1].Column)
	assert.Equal(t, block.Dirt, edits[2].Column.Block)
}

func TestLoadMissingChunk(t *testing.T) {
	store := setupTestStorage(t)

	edits, err := store.LoadEdits(context.Background(), vec.ChunkPos{X: 99, Z: 99})
	require.NoError(t, err)
	assert.Empty(t, edits)
}

func TestListAndDelete(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	edit := []world.ColumnEdit{{LX: 1, LZ: 1, Column: world.Column{Depth: 1, Block: block.Grass}}}

	for _, p := range []vec.ChunkPos{{X: 2, Z: 0}, {X: -1, Z: 5}, {X: 2, Z: -3}} {
		require.NoError(t, store.SaveEdits(ctx, p, edit))
	}

	list, err := store.ListChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []vec.ChunkPos{{X: -1, Z: 5}, {X: 2, Z: -3}, {X: 2, Z: 0}}, list)

	require.NoError(t, store.DeleteEdits(ctx, vec.ChunkPos{X: 2, Z: -3}))
	list, err = store.ListChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestInMemoryBadger(t *testing.T) {
	store, err := OpenChunkStore("")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	pos := vec.ChunkPos{X: 1, Z: 1}
	require.NoError(t, store.SaveEdits(ctx, pos, []world.ColumnEdit{{LX: 2, LZ: 3}}))

	edits, err := store.LoadEdits(ctx, pos)
	require.NoError(t, err)
	assert.Len(t, edits, 1)
}

func TestClosedStore(t *testing.T) {
	store, err := OpenChunkStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "повторное закрытие безопасно")

	_, err = store.LoadEdits(context.Background(), vec.ChunkPos{})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestCodecRoundTrip(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)
	defer codec.Close()

	in := &ChunkEdits{
		Coords:  vec.ChunkPos{X: -4, Z: 9},
		Columns: []world.ColumnEdit{{LX: 15, LZ: 0, Column: world.Column{Top: -2, Depth: 3, Block: block.Stone}}},
	}
	data, err := codec.Encode(in)
	require.NoError(t, err)

	out, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = codec.Decode([]byte("not zstd"))
	assert.Error(t, err)
}

func TestParseChunkKey(t *testing.T) {
	pos, err := parseChunkKey(chunkKey(vec.ChunkPos{X: -7, Z: 12}))
	require.NoError(t, err)
	assert.Equal(t, vec.ChunkPos{X: -7, Z: 12}, pos)

	_, err = parseChunkKey("entities:1:2")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	pos := vec.ChunkPos{X: 3, Z: 3}

	require.NoError(t, store.SaveEdits(ctx, pos, []world.ColumnEdit{{LX: 1, LZ: 1}}))
	edits, err := store.LoadEdits(ctx, pos)
	require.NoError(t, err)
	assert.Len(t, edits, 1)

	boom := errors.New("boom")
	store.FailLoad = func(p vec.ChunkPos) error {
		if p == pos {
			return boom
		}
		return nil
	}
	_, err = store.LoadEdits(ctx, pos)
	assert.ErrorIs(t, err, boom)

	require.NoError(t, store.Close())
	_, err = store.ListChunks(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCachedStoreUnreachableRedis(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	cached, err := NewCachedStore(ctx, NewMemoryStore(), cfg)
	assert.Error(t, err)
	assert.Nil(t, cached)
}
