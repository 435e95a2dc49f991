package render

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world/block"
)

// Handle идентифицирует один единичный куб, добавленный в сцену
type Handle struct {
	ID    uint64   `json:"id"`
	Pos   vec.Vec3 `json:"pos"`
	Block block.ID `json:"block"`
}

// Scene - граница рендеринга. Контроллер стриминга вызывает только
// AddObject/RemoveObject, кадр рисует владелец цикла.
type Scene interface {
	AddObject(h Handle)
	RemoveObject(h Handle)
	RenderFrame()
}

// HandleAllocator выдаёт монотонно растущие ID хендлов
type HandleAllocator struct {
	next atomic.Uint64
}

// Next возвращает хендл с новым ID
func (a *HandleAllocator) Next(pos vec.Vec3, id block.ID) Handle {
	return Handle{ID: a.next.Add(1), Pos: pos, Block: id}
}

// Graph - сцена в памяти: множество живых объектов и счётчик кадров
type Graph struct {
	mu      sync.RWMutex
	objects map[uint64]Handle
	frames  uint64
	added   uint64
	removed uint64
}

// NewGraph создаёт пустую сцену
func NewGraph() *Graph {
	return &Graph{objects: make(map[uint64]Handle)}
}

func (g *Graph) AddObject(h Handle) {
	g.mu.Lock()
	g.objects[h.ID] = h
	g.added++
	g.mu.Unlock()
}

func (g *Graph) RemoveObject(h Handle) {
	g.mu.Lock()
	if _, ok := g.objects[h.ID]; ok {
		delete(g.objects, h.ID)
		g.removed++
	}
	g.mu.Unlock()
}

func (g *Graph) RenderFrame() {
	g.mu.Lock()
	g.frames++
	g.mu.Unlock()
}

// Len возвращает количество живых объектов
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}

// Frames возвращает количество отрисованных кадров
func (g *Graph) Frames() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frames
}

// Totals возвращает суммарное число добавлений и удалений
func (g *Graph) Totals() (added, removed uint64) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.added, g.removed
}

// Has проверяет, находится ли объект в сцене
func (g *Graph) Has(id uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.objects[id]
	return ok
}

// Objects возвращает снимок живых объектов, отсортированный по ID
func (g *Graph) Objects() []Handle {
	g.mu.RLock()
	out := make([]Handle, 0, len(g.objects))
	for _, h := range g.objects {
		out = append(out, h)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Recorder запоминает вызовы сцены; удобен в тестах
type Recorder struct {
	mu      sync.Mutex
	Added   []Handle
	Removed []Handle
	Frames  int
}

func (r *Recorder) AddObject(h Handle) {
	r.mu.Lock()
	r.Added = append(r.Added, h)
	r.mu.Unlock()
}

func (r *Recorder) RemoveObject(h Handle) {
	r.mu.Lock()
	r.Removed = append(r.Removed, h)
	r.mu.Unlock()
}

func (r *Recorder) RenderFrame() {
	r.mu.Lock()
	r.Frames++
	r.mu.Unlock()
}

// Counts возвращает количество вызовов add/remove
func (r *Recorder) Counts() (added, removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Added), len(r.Removed)
}

// Reset очищает журнал вызовов
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.Added = nil
	r.Removed = nil
	r.Frames = 0
	r.mu.Unlock()
}
