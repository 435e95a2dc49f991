package streaming

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/voxel-stream/internal/render"
	"github.com/annel0/voxel-stream/internal/terrain"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
	"github.com/annel0/voxel-stream/internal/world/block"
)

func newSync(t *testing.T, src terrain.Source, scene render.Scene, ls ...Listener) *Controller {
	t.Helper()
	c, err := New(DefaultOptions(), src, scene, ls...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestScenarioEdge16Radius2(t *testing.T) {
	rec := &render.Recorder{}
	c := newSync(t, terrain.DefaultFlat(), rec)

	c.Advance(mgl64.Vec3{0, 0, 0})
	assert.Equal(t, vec.Square(vec.ChunkPos{}, 2), c.Resident())
	assert.Len(t, c.Resident(), 25)

	added, removed := rec.Counts()
	assert.Equal(t, 25*16*16, added, "один AddObject на каждый воксель")
	assert.Equal(t, 0, removed)

	rec.Reset()
	c.Advance(mgl64.Vec3{16, 0, 0})

	center, ok := c.Center()
	require.True(t, ok)
	assert.Equal(t, vec.ChunkPos{X: 1, Z: 0}, center)
	assert.Equal(t, vec.Square(vec.ChunkPos{X: 1}, 2), c.Resident())

	for z := -2; z <= 2; z++ {
		assert.False(t, c.IsResident(vec.ChunkPos{X: -2, Z: z}), "столбец cx=-2 вытеснен")
		assert.True(t, c.IsResident(vec.ChunkPos{X: 3, Z: z}), "столбец cx=3 сгенерирован")
	}

	added, removed = rec.Counts()
	assert.Equal(t, 5*256, added)
	assert.Equal(t, 5*256, removed)
	for _, h := range rec.Removed {
		assert.Equal(t, -2, vec.FloorDiv(h.Pos.X, 16))
	}
	for _, h := range rec.Added {
		assert.Equal(t, 3, vec.FloorDiv(h.Pos.X, 16))
	}

	s := c.Stats()
	assert.Equal(t, uint64(30), s.Generated)
	assert.Equal(t, uint64(5), s.Evicted)
	assert.Equal(t, 25, s.Resident)
}

func TestAdvanceIdempotent(t *testing.T) {
	rec := &render.Recorder{}
	c := newSync(t, terrain.DefaultFlat(), rec)

	c.Advance(mgl64.Vec3{5, 1, 7})
	before := c.Resident()
	rec.Reset()

	c.Advance(mgl64.Vec3{5, 1, 7})
	c.Advance(mgl64.Vec3{12, 40, 3}) // другой y и точка внутри того же чанка

	added, removed := rec.Counts()
	assert.Zero(t, added)
	assert.Zero(t, removed)
	assert.Equal(t, before, c.Resident())
}

func TestResidentSetMatchesRadiusOnRandomWalk(t *testing.T) {
	scene := render.NewGraph()
	c := newSync(t, terrain.DefaultFlat(), scene)
	rng := rand.New(rand.NewSource(7))

	pos := mgl64.Vec3{0, 1, 0}
	for step := 0; step < 200; step++ {
		pos = pos.Add(mgl64.Vec3{rng.Float64()*60 - 30, 0, rng.Float64()*60 - 30})
		c.Advance(pos)

		center := vec.ChunkPosOf(pos.X(), pos.Z(), 16)
		require.Equal(t, vec.Square(center, 2), c.Resident(), "шаг %d, позиция %v", step, pos)
		require.Equal(t, 25*256, scene.Len(), "в сцене ровно воксели резидентных чанков")
	}
}

func TestLoadNearestFirst(t *testing.T) {
	rec := &render.Recorder{}
	c := newSync(t, terrain.DefaultFlat(), rec)

	c.Advance(mgl64.Vec3{8, 0, 8})

	require.Len(t, rec.Added, 25*256)
	last := 0
	for _, h := range rec.Added {
		d := vec.ChunkPosOf(float64(h.Pos.X), float64(h.Pos.Z), 16).Chebyshev(vec.ChunkPos{})
		assert.GreaterOrEqual(t, d, last)
		last = d
	}
	assert.Equal(t, 2, last)
}

func TestMonotonicLocality(t *testing.T) {
	rec := &render.Recorder{}
	c := newSync(t, terrain.DefaultFlat(), rec)
	opts := c.Options()
	shell := 4*opts.Radius + 1 // максимум при диагональном переходе

	rng := rand.New(rand.NewSource(42))
	pos := mgl64.Vec3{8, 0, 8}
	c.Advance(pos)

	for step := 0; step < 300; step++ {
		prev := c.Stats()
		// шаг короче ребра чанка по каждой оси
		pos = pos.Add(mgl64.Vec3{(rng.Float64()*2 - 1) * 15.9, 0, (rng.Float64()*2 - 1) * 15.9})
		c.Advance(pos)
		cur := c.Stats()

		assert.LessOrEqual(t, int(cur.Generated-prev.Generated), shell)
		assert.LessOrEqual(t, int(cur.Evicted-prev.Evicted), shell)
	}
}

func TestNegativeCoordinates(t *testing.T) {
	c := newSync(t, terrain.DefaultFlat(), render.NewGraph())

	c.Advance(mgl64.Vec3{-0.5, 0, -16.5})
	center, _ := c.Center()
	assert.Equal(t, vec.ChunkPos{X: -1, Z: -2}, center)

	ch, ok := c.Chunk(vec.ChunkPos{X: -1, Z: -2})
	require.True(t, ok)
	for _, v := range ch.Voxels {
		assert.True(t, ch.Contains(v.Pos.X, v.Pos.Z))
	}
}

func TestSynthesisDeterministic(t *testing.T) {
	src := terrain.NewPerlin(2024)
	a := newSync(t, src, render.NewGraph())
	b := newSync(t, terrain.NewPerlin(2024), render.NewGraph())

	a.Advance(mgl64.Vec3{100, 0, -50})
	b.Advance(mgl64.Vec3{100, 0, -50})

	for _, p := range a.Resident() {
		ca, _ := a.Chunk(p)
		cb, ok := b.Chunk(p)
		require.True(t, ok)
		assert.Equal(t, ca.Voxels, cb.Voxels, "чанк %s", p)
	}
}

// flakySource падает для выбранного чанка заданное число раз
type flakySource struct {
	mu       sync.Mutex
	target   vec.ChunkPos
	failures int // -1: всегда
	calls    int
}

var errFlaky = errors.New("хранилище недоступно")

func (f *flakySource) Column(ctx context.Context, x, z int) (world.Column, error) {
	return world.Column{Top: 0, Depth: 1, Block: block.Grass}, nil
}

func (f *flakySource) Chunk(ctx context.Context, pos vec.ChunkPos, edge int) ([]world.Voxel, error) {
	if pos == f.target {
		f.mu.Lock()
		f.calls++
		fail := f.failures < 0 || f.calls <= f.failures
		f.mu.Unlock()
		if fail {
			return nil, errFlaky
		}
	}
	return terrain.Synthesize(ctx, terrain.DefaultFlat(), pos, edge)
}

type countingListener struct {
	NopListener
	mu                                  sync.Mutex
	loaded, evicted, failed, discarded int
}

func (l *countingListener) ChunkLoaded(*world.Chunk, time.Duration) {
	l.mu.Lock()
	l.loaded++
	l.mu.Unlock()
}

func (l *countingListener) ChunkEvicted(*world.Chunk) {
	l.mu.Lock()
	l.evicted++
	l.mu.Unlock()
}

func (l *countingListener) ChunkFailed(*world.Chunk) {
	l.mu.Lock()
	l.failed++
	l.mu.Unlock()
}

func (l *countingListener) ChunkDiscarded(vec.ChunkPos) {
	l.mu.Lock()
	l.discarded++
	l.mu.Unlock()
}

func TestPermanentFailureBecomesPlaceholder(t *testing.T) {
	src := &flakySource{target: vec.ChunkPos{X: 1, Z: 1}, failures: -1}
	scene := render.NewGraph()
	lst := &countingListener{}
	c := newSync(t, src, scene, lst)

	c.Advance(mgl64.Vec3{0, 0, 0})

	assert.Len(t, c.Resident(), 25, "заглушка тоже резидентна")
	ch, ok := c.Chunk(vec.ChunkPos{X: 1, Z: 1})
	require.True(t, ok)
	assert.True(t, ch.Failed())
	assert.Empty(t, ch.Voxels)
	assert.Equal(t, 3, ch.Attempts)
	assert.ErrorIs(t, ch.Err, errFlaky)
	assert.Equal(t, 24*256, scene.Len())

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Failed)
	assert.Equal(t, uint64(2), s.Retries)
	assert.Equal(t, 1, lst.failed)
	assert.Equal(t, 24, lst.loaded)

	// Заглушка не перегенерируется, пока остаётся в радиусе
	c.Advance(mgl64.Vec3{17, 0, 0})
	assert.Equal(t, 3, src.calls)

	// Вышла из радиуса и вернулась - новая попытка
	c.Advance(mgl64.Vec3{16 * 5, 0, 0})
	c.Advance(mgl64.Vec3{0, 0, 0})
	assert.Equal(t, 6, src.calls)
}

// panicAtOrigin паникует на столбце (0,0), остальные столбцы плоские
func panicAtOrigin() terrain.Source {
	return terrain.Func(func(_ context.Context, x, z int) (world.Column, error) {
		if x == 0 && z == 0 {
			panic("сломанный генератор")
		}
		return world.Column{Top: 0, Depth: 1, Block: block.Grass}, nil
	})
}

func TestPanickingSourceBecomesPlaceholder(t *testing.T) {
	scene := render.NewGraph()
	c := newSync(t, panicAtOrigin(), scene)

	require.NotPanics(t, func() { c.Advance(mgl64.Vec3{1, 0, 1}) })

	ch, ok := c.Chunk(vec.ChunkPos{})
	require.True(t, ok)
	assert.True(t, ch.Failed())
	assert.Equal(t, 3, ch.Attempts)
	assert.ErrorContains(t, ch.Err, "сломанный генератор")
	assert.Len(t, c.Resident(), 25)
	assert.Equal(t, uint64(1), c.Stats().Failed)
	assert.Equal(t, 24*256, scene.Len())
}

func TestTransientFailureRecovers(t *testing.T) {
	src := &flakySource{target: vec.ChunkPos{}, failures: 2}
	c := newSync(t, src, render.NewGraph())

	c.Advance(mgl64.Vec3{1, 0, 1})

	ch, ok := c.Chunk(vec.ChunkPos{})
	require.True(t, ok)
	assert.False(t, ch.Failed())
	assert.Equal(t, 3, ch.Attempts)
	assert.Len(t, ch.Voxels, 256)
	assert.Zero(t, c.Stats().Failed)
}

func TestListenerEvents(t *testing.T) {
	lst := &countingListener{}
	c := newSync(t, terrain.DefaultFlat(), render.NewGraph(), lst)

	c.Advance(mgl64.Vec3{0, 0, 0})
	c.Advance(mgl64.Vec3{32, 0, 0})

	assert.Equal(t, 35, lst.loaded)
	assert.Equal(t, 10, lst.evicted)

	c.Clear()
	assert.Equal(t, 35, lst.evicted)
	assert.Empty(t, c.Resident())
	_, ok := c.Center()
	assert.False(t, ok)
}

func TestInvalidOptions(t *testing.T) {
	_, err := New(Options{Edge: 0, Radius: 2}, terrain.DefaultFlat(), render.NewGraph())
	assert.Error(t, err)
	_, err = New(Options{Edge: 16, Radius: 0}, terrain.DefaultFlat(), render.NewGraph())
	assert.Error(t, err)
	_, err = New(Options{Edge: 16, Radius: 1, Workers: -1}, terrain.DefaultFlat(), render.NewGraph())
	assert.Error(t, err)
}
