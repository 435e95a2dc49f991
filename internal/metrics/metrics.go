package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/annel0/voxel-stream/internal/eventbus"
	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/vec"
	"github.com/annel0/voxel-stream/internal/world"
)

const namespace = "voxel"

// StreamMetrics собирает Prometheus-метрики стриминга чанков.
// Реализует streaming.Listener.
type StreamMetrics struct {
	registry *prometheus.Registry

	generated prometheus.Counter
	evicted   prometheus.Counter
	failed    prometheus.Counter
	discarded prometheus.Counter
	resident  prometheus.Gauge
	voxels    prometheus.Gauge
	latency   prometheus.Histogram
	attempts  prometheus.Histogram
}

// New создаёт метрики на собственном реестре
func New() *StreamMetrics {
	m := &StreamMetrics{
		registry: prometheus.NewRegistry(),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_generated_total",
			Help:      "Чанков синтезировано и добавлено в сцену.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_evicted_total",
			Help:      "Чанков удалено из сцены при выходе из радиуса.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_failed_total",
			Help:      "Чанков, замещённых заглушкой после исчерпания попыток.",
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_discarded_total",
			Help:      "Устаревших результатов асинхронной генерации.",
		}),
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chunks_resident",
			Help:      "Количество резидентных чанков (включая заглушки).",
		}),
		voxels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scene_voxels",
			Help:      "Вокселей резидентных чанков в сцене.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_generation_seconds",
			Help:      "Время генерации чанка с учётом повторов.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_generation_attempts",
			Help:      "Попыток генерации на чанк.",
			Buckets:   prometheus.LinearBuckets(1, 1, 5),
		}),
	}

	m.registry.MustRegister(
		m.generated, m.evicted, m.failed, m.discarded,
		m.resident, m.voxels, m.latency, m.attempts,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry возвращает реестр метрик
func (m *StreamMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *StreamMetrics) ChunkLoaded(c *world.Chunk, took time.Duration) {
	m.generated.Inc()
	m.resident.Inc()
	m.voxels.Add(float64(len(c.Voxels)))
	m.latency.Observe(took.Seconds())
	m.attempts.Observe(float64(c.Attempts))
}

func (m *StreamMetrics) ChunkEvicted(c *world.Chunk) {
	m.evicted.Inc()
	m.resident.Dec()
	m.voxels.Sub(float64(len(c.Voxels)))
}

func (m *StreamMetrics) ChunkFailed(c *world.Chunk) {
	m.failed.Inc()
	m.resident.Inc()
	m.attempts.Observe(float64(c.Attempts))
}

func (m *StreamMetrics) ChunkDiscarded(vec.ChunkPos) {
	m.discarded.Inc()
}

// RegisterProcess добавляет метрики CPU и RSS процесса через gopsutil
func (m *StreamMetrics) RegisterProcess() error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("процесс %d: %w", os.Getpid(), err)
	}

	cpu := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_cpu_percent",
		Help:      "Загрузка CPU процессом в процентах.",
	}, func() float64 {
		v, err := proc.CPUPercent()
		if err != nil {
			return 0
		}
		return v
	})
	rss := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_rss_bytes",
		Help:      "Резидентная память процесса.",
	}, func() float64 {
		mi, err := proc.MemoryInfo()
		if err != nil {
			return 0
		}
		return float64(mi.RSS)
	})
	return registerAll(m.registry, cpu, rss)
}

// RegisterEventBus экспортирует статистику шины событий
func (m *StreamMetrics) RegisterEventBus(bus eventbus.EventBus) error {
	counter := func(name, help string, pick func(eventbus.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(pick(bus.Metrics())) })
	}

	return registerAll(m.registry,
		counter("messages_published_total", "Общее число опубликованных сообщений.",
			func(s eventbus.Stats) uint64 { return s.Published }),
		counter("messages_consumed_total", "Общее число доставленных сообщений подписчикам.",
			func(s eventbus.Stats) uint64 { return s.Consumed }),
		counter("messages_dropped_total", "Сообщений, отброшенных из-за ошибок или back-pressure.",
			func(s eventbus.Stats) uint64 { return s.Dropped }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "eventbus",
			Name:      "messages_inflight",
			Help:      "Количество сообщений в очереди.",
		}, func() float64 { return float64(bus.Metrics().InFlight) }),
	)
}

func registerAll(r *prometheus.Registry, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler возвращает HTTP-обработчик /metrics
func (m *StreamMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server - HTTP-эндпоинт Prometheus
type Server struct {
	srv *http.Server
}

// StartHTTP запускает HTTP-эндпоинт Prometheus на указанном адресе (например, ":2112").
// Метод неблокирующий: HTTP-сервер стартует в отдельной горутине.
func (m *StreamMetrics) StartHTTP(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	s := &Server{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}

	go func() {
		logging.Info("Prometheus /metrics доступен по адресу %s", addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return s
}

// Shutdown останавливает HTTP-сервер
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
