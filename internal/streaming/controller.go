package streaming

import (
	"context"
	"sort"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/render"
	"github.com/annel0/voxel-stream/internal/terrain"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

// Stats - счётчики контроллера
type Stats struct {
	Generated uint64 // Чанков синтезировано и добавлено в сцену
	Evicted   uint64 // Чанков удалено из сцены
	Failed    uint64 // Заглушек после исчерпания попыток
	Discarded uint64 // Устаревших асинхронных результатов
	Retries   uint64 // Повторных попыток генерации
	Resident  int
	Pending   int
}

// Controller держит в сцене ровно те чанки, что лежат в радиусе
// Чебышёва от чанка наблюдателя. Владелец - цикл кадров; методы
// не предназначены для конкурентного вызова.
type Controller struct {
	opts      Options
	source    terrain.Source
	scene     render.Scene
	alloc     render.HandleAllocator
	listeners listeners
	logger    *logging.Logger
	tracer    trace.Tracer

	resident  map[vec.ChunkPos]*world.Chunk
	center    vec.ChunkPos
	hasCenter bool
	stats     Stats

	// Асинхронный режим
	pool    pond.Pool
	pending map[vec.ChunkPos]*job
	results chan result
	nextJob uint64
	rootCtx context.Context
	cancel  context.CancelFunc
	closed  bool
}

// New создаёт контроллер. Scene и source обязательны.
func New(opts Options, source terrain.Source, scene render.Scene, ls ...Listener) (*Controller, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:      opts,
		source:    source,
		scene:     scene,
		listeners: listeners(ls),
		logger:    logging.GetStreamingLogger(),
		tracer:    otel.Tracer("github.com/annel0/voxel-stream/internal/streaming"),
		resident:  make(map[vec.ChunkPos]*world.Chunk),
		pending:   make(map[vec.ChunkPos]*job),
		rootCtx:   ctx,
		cancel:    cancel,
	}

	if opts.Workers > 0 {
		c.pool = pond.NewPool(opts.Workers)
		c.results = make(chan result, opts.resultBuffer())
	}
	return c, nil
}

// Options возвращает параметры контроллера
func (c *Controller) Options() Options {
	return c.opts
}

func (c *Controller) async() bool {
	return c.pool != nil
}

// Advance приводит резидентный набор в соответствие с позицией наблюдателя.
// Y не учитывается. Повторный вызов в том же чанке не генерирует и не
// вытесняет ничего (в асинхронном режиме только забирает готовые результаты).
func (c *Controller) Advance(pos mgl64.Vec3) {
	if c.closed {
		return
	}

	current := vec.ChunkPosOf(pos.X(), pos.Z(), c.opts.Edge)
	moved := !c.hasCenter || current != c.center
	c.center, c.hasCenter = current, true

	if moved {
		c.evict(current)
	}
	if c.async() {
		c.drain()
	}
	if moved {
		c.load(current)
	}
}

// evict удаляет из сцены чанки вне радиуса и отменяет устаревшие задачи
func (c *Controller) evict(current vec.ChunkPos) {
	for p, ch := range c.resident {
		if p.Chebyshev(current) <= c.opts.Radius {
			continue
		}
		ch.Detach(c.scene)
		delete(c.resident, p)
		c.stats.Evicted++
		c.logger.Trace("Чанк %s вытеснен", p)
		c.listeners.evicted(ch)
	}

	for p, j := range c.pending {
		if p.Chebyshev(current) <= c.opts.Radius {
			continue
		}
		j.cancel()
		delete(c.pending, p)
		c.logger.Trace("Генерация чанка %s отменена", p)
	}
}

// load запрашивает все недостающие чанки радиуса, ближайшие первыми
func (c *Controller) load(current vec.ChunkPos) {
	wanted := vec.Square(current, c.opts.Radius)
	sort.SliceStable(wanted, func(i, j int) bool {
		return wanted[i].Chebyshev(current) < wanted[j].Chebyshev(current)
	})

	for _, p := range wanted {
		if _, ok := c.resident[p]; ok {
			continue
		}
		if _, ok := c.pending[p]; ok {
			continue
		}
		if c.async() {
			c.enqueue(p)
			continue
		}
		c.install(c.generate(c.rootCtx, p, syncBackoff(c.opts)))
	}
}

// install помещает результат генерации в резидентный набор и сцену
func (c *Controller) install(r result) {
	if r.attempts > 1 {
		c.stats.Retries += uint64(r.attempts - 1)
	}

	var ch *world.Chunk
	if r.err != nil {
		ch = world.NewPlaceholder(r.pos, c.opts.Edge, r.attempts, r.err)
		c.stats.Failed++
		c.logger.Warn("Чанк %s не сгенерирован за %d попыток, установлена заглушка: %v", r.pos, r.attempts, r.err)
	} else {
		ch = world.NewChunk(r.pos, c.opts.Edge, r.voxels)
		ch.Attempts = r.attempts
		c.stats.Generated++
	}

	ch.LoadedAt = time.Now()
	ch.Attach(c.scene, &c.alloc)
	c.resident[r.pos] = ch

	if ch.Failed() {
		c.listeners.failed(ch)
		return
	}
	c.logger.Trace("Чанк %s загружен: %d вокселей за %v", r.pos, len(ch.Voxels), r.took)
	c.listeners.loaded(ch, r.took)
}

// Center возвращает текущий чанк наблюдателя; false до первого Advance
func (c *Controller) Center() (vec.ChunkPos, bool) {
	return c.center, c.hasCenter
}

// IsResident проверяет, загружен ли чанк (включая заглушки)
func (c *Controller) IsResident(pos vec.ChunkPos) bool {
	_, ok := c.resident[pos]
	return ok
}

// Chunk возвращает резидентный чанк
func (c *Controller) Chunk(pos vec.ChunkPos) (*world.Chunk, bool) {
	ch, ok := c.resident[pos]
	return ch, ok
}

// Resident возвращает отсортированный список резидентных чанков
func (c *Controller) Resident() []vec.ChunkPos {
	out := make([]vec.ChunkPos, 0, len(c.resident))
	for p := range c.resident {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Pending возвращает количество незавершённых асинхронных задач
func (c *Controller) Pending() int {
	return len(c.pending)
}

// Stats возвращает снимок счётчиков
func (c *Controller) Stats() Stats {
	s := c.stats
	s.Resident = len(c.resident)
	s.Pending = len(c.pending)
	return s
}

// Clear вытесняет все чанки и отменяет задачи; следующий Advance
// построит набор заново.
func (c *Controller) Clear() {
	for p, j := range c.pending {
		j.cancel()
		delete(c.pending, p)
	}
	for p, ch := range c.resident {
		ch.Detach(c.scene)
		delete(c.resident, p)
		c.stats.Evicted++
		c.listeners.evicted(ch)
	}
	c.hasCenter = false
}

// Close останавливает пул генерации. Геометрия остаётся в сцене.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	for p, j := range c.pending {
		j.cancel()
		delete(c.pending, p)
	}
	if c.pool != nil {
		c.pool.StopAndWait()
	}
}
