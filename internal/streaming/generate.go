package streaming

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/voxel-stream/internal/terrain"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

// result - итог генерации одного чанка
type result struct {
	jobID    uint64
	pos      vec.ChunkPos
	voxels   []world.Voxel
	attempts int
	took     time.Duration
	err      error
}

// job - задача асинхронной генерации, не более одной на координату
type job struct {
	id     uint64
	pos    vec.ChunkPos
	cancel context.CancelFunc
}

// syncBackoff повторяет сразу: поток кадров не должен спать
func syncBackoff(o Options) backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(o.maxAttempts()-1))
}

// asyncBackoff - экспоненциальная пауза между попытками в воркере
func asyncBackoff(o Options) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if o.InitialBackoff > 0 {
		b.InitialInterval = o.InitialBackoff
	}
	if o.MaxBackoff > 0 {
		b.MaxInterval = o.MaxBackoff
	}
	b.MaxElapsedTime = 0 // ограничиваем числом попыток
	return backoff.WithMaxRetries(b, uint64(o.maxAttempts()-1))
}

// generate синтезирует чанк с повторами. Отмена контекста прекращает повторы.
func (c *Controller) generate(ctx context.Context, pos vec.ChunkPos, b backoff.BackOff) result {
	ctx, span := c.tracer.Start(ctx, "streaming.generate_chunk", trace.WithAttributes(
		attribute.Int("chunk.x", pos.X),
		attribute.Int("chunk.z", pos.Z),
		attribute.Int("chunk.edge", c.opts.Edge),
	))
	defer span.End()

	start := time.Now()
	attempts := 0
	var voxels []world.Voxel

	op := func() (err error) {
		attempts++
		// паника источника считается неудачной попыткой
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("паника источника террейна: %v", r)
			}
		}()
		v, err := terrain.Synthesize(ctx, c.source, pos, c.opts.Edge)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		voxels = v
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("Генерация чанка %s: попытка %d не удалась (%v), повтор через %v", pos, attempts, err, wait)
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)

	span.SetAttributes(attribute.Int("chunk.attempts", attempts), attribute.Int("chunk.voxels", len(voxels)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return result{
		pos:      pos,
		voxels:   voxels,
		attempts: attempts,
		took:     time.Since(start),
		err:      err,
	}
}

// enqueue ставит генерацию чанка в пул
func (c *Controller) enqueue(pos vec.ChunkPos) {
	c.nextJob++
	ctx, cancel := context.WithCancel(c.rootCtx)
	j := &job{id: c.nextJob, pos: pos, cancel: cancel}
	c.pending[pos] = j

	c.pool.Submit(func() {
		defer cancel()
		r := c.generate(ctx, pos, asyncBackoff(c.opts))
		r.jobID = j.id
		select {
		case c.results <- r:
		case <-c.rootCtx.Done():
		}
	})
}

// drain забирает готовые результаты, не блокируясь
func (c *Controller) drain() {
	for {
		select {
		case r := <-c.results:
			c.accept(r)
		default:
			return
		}
	}
}

// accept применяет результат, если задача всё ещё актуальна
func (c *Controller) accept(r result) {
	j, ok := c.pending[r.pos]
	if !ok || j.id != r.jobID {
		c.stats.Discarded++
		c.logger.Trace("Результат генерации чанка %s отброшен", r.pos)
		c.listeners.discarded(r.pos)
		return
	}
	delete(c.pending, r.pos)
	c.install(r)
}

// Flush блокируется, пока не завершатся все асинхронные задачи
// (или не истечёт ctx). В синхронном режиме возвращается сразу.
func (c *Controller) Flush(ctx context.Context) error {
	if !c.async() {
		return nil
	}
	for len(c.pending) > 0 {
		select {
		case r := <-c.results:
			c.accept(r)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.drain()
	return nil
}
