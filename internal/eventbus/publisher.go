package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

// Source - имя источника событий стримера
const Source = "voxel-streamer"

// publishTimeout ограничивает ожидание места в шине для важных событий
const publishTimeout = 100 * time.Millisecond

// ChunkPublisher публикует события жизненного цикла чанков в шину.
// Реализует streaming.Listener.
type ChunkPublisher struct {
	bus    EventBus
	source string
	logger *logging.Logger
}

// NewChunkPublisher создаёт издателя для шины
func NewChunkPublisher(bus EventBus) *ChunkPublisher {
	return &ChunkPublisher{bus: bus, source: Source, logger: logging.GetEventBusLogger()}
}

func (p *ChunkPublisher) ChunkLoaded(c *world.Chunk, took time.Duration) {
	p.publish(world.ChunkEvent{
		Type:     world.EventChunkLoaded,
		Pos:      c.Pos,
		Voxels:   len(c.Voxels),
		Attempts: c.Attempts,
		Took:     took,
	}, 1)
}

func (p *ChunkPublisher) ChunkEvicted(c *world.Chunk) {
	p.publish(world.ChunkEvent{
		Type:   world.EventChunkEvicted,
		Pos:    c.Pos,
		Voxels: len(c.Voxels),
	}, 1)
}

func (p *ChunkPublisher) ChunkFailed(c *world.Chunk) {
	ev := world.ChunkEvent{
		Type:     world.EventChunkFailed,
		Pos:      c.Pos,
		Attempts: c.Attempts,
	}
	if c.Err != nil {
		ev.Error = c.Err.Error()
	}
	p.publish(ev, 7)
}

func (p *ChunkPublisher) ChunkDiscarded(pos vec.ChunkPos) {
	p.publish(world.ChunkEvent{Type: world.EventChunkDiscarded, Pos: pos}, 0)
}

func (p *ChunkPublisher) publish(ev world.ChunkEvent, priority int) {
	ev.At = time.Now().UTC()
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("Ошибка сериализации события %s: %v", ev.Type, err)
		return
	}

	env := NewEnvelope(p.source, ev.Type.String(), payload)
	env.Priority = priority
	env.Metadata = map[string]string{"chunk": ev.Pos.String()}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.bus.Publish(ctx, env); err != nil {
		p.logger.Warn("Событие %s для чанка %s не опубликовано: %v", ev.Type, ev.Pos, err)
	}
}

// DecodeChunkEvent извлекает событие чанка из конверта
func DecodeChunkEvent(env *Envelope) (world.ChunkEvent, error) {
	var ev world.ChunkEvent
	err := json.Unmarshal(env.Payload, &ev)
	return ev, err
}
