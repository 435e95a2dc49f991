package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annel0/voxel-stream/internal/app"
	"github.com/annel0/voxel-stream/internal/config"
	"github.com/annel0/voxel-stream/internal/eventbus"
	"github.com/annel0/voxel-stream/internal/input"
	"github.com/annel0/voxel-stream/internal/logging"
	"github.com/annel0/voxel-stream/internal/metrics"
	"github.com/annel0/voxel-stream/internal/observability"
	"github.com/annel0/voxel-stream/internal/render"
	"github.com/annel0/voxel-stream/internal/storage"
	"github.com/annel0/voxel-stream/internal/streaming"
	"github.com/annel0/voxel-stream/internal/terrain"
	"github.com/annel0/voxel-stream/internal/world/block"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV STREAM_CONFIG)")
	frames := flag.Uint64("frames", 0, "сколько кадров выполнить (0 - до сигнала или конца сценария)")
	fps := flag.Int("fps", 60, "частота кадров; 0 - без пауз")
	scriptPath := flag.String("script", "", "YAML сценарий ввода; по умолчанию прогулка по квадрату")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	if err := initLogging(cfg.Logging); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	if err := run(cfg, *frames, *fps, *scriptPath); err != nil {
		logging.Error("Стример завершился с ошибкой: %v", err)
		os.Exit(1)
	}
}

func initLogging(lc config.LoggingConfig) error {
	console, err := logging.ParseLevel(lc.ConsoleLevel)
	if err != nil {
		return err
	}
	file, err := logging.ParseLevel(lc.FileLevel)
	if err != nil {
		return err
	}
	components := make(map[string]logging.LogLevel, len(lc.Components))
	for name, lvl := range lc.Components {
		if components[name], err = logging.ParseLevel(lvl); err != nil {
			return fmt.Errorf("logging.components.%s: %w", name, err)
		}
	}
	logging.Configure(logging.Options{Dir: lc.Dir, ConsoleLevel: console, FileLevel: file, Components: components})
	return logging.InitDefaultLogger("streamer")
}

func run(cfg *config.Config, maxFrames uint64, fps int, scriptPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("Запуск стримера: ребро %d, радиус %d, воркеров %d, генератор %s",
		cfg.Streaming.ChunkEdge, cfg.Streaming.Radius, cfg.Streaming.Workers, cfg.Terrain.Generator)

	// === ТРАССИРОВКА ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, observability.Options{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("телеметрия: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logging.Warn("Ошибка остановки телеметрии: %v", err)
		}
	}()

	// === ШИНА СОБЫТИЙ ===
	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()
	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		return fmt.Errorf("подписка логгера событий: %w", err)
	}

	// === МЕТРИКИ ===
	streamMetrics := metrics.New()
	if err := streamMetrics.RegisterEventBus(bus); err != nil {
		return fmt.Errorf("метрики шины: %w", err)
	}
	if err := streamMetrics.RegisterProcess(); err != nil {
		logging.Warn("Метрики процесса недоступны: %v", err)
	}
	if cfg.Metrics.Enabled {
		srv := streamMetrics.StartHTTP(fmt.Sprintf(":%d", cfg.Metrics.GetMetricsPort()))
		defer shutdownHTTP(srv.Shutdown)
	}

	// === ТЕРРЕЙН И ХРАНИЛИЩЕ ===
	source, closeStore, err := buildSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// === СЦЕНА ===
	scene, closeScene := buildScene(cfg.Render)
	defer closeScene()

	// === СТРИМИНГ ===
	streamer, err := streaming.New(streamingOptions(cfg.Streaming), source, scene,
		streamMetrics, eventbus.NewChunkPublisher(bus))
	if err != nil {
		return fmt.Errorf("контроллер стриминга: %w", err)
	}
	defer streamer.Close()

	script := input.DefaultScript()
	if scriptPath != "" {
		if script, err = input.LoadScript(scriptPath); err != nil {
			return err
		}
	}

	session := app.NewSession(input.NewController(mgl64.Vec3{0, input.GroundLevel, 0}), script, streamer, scene)
	if err := session.Run(ctx, fps, maxFrames); err != nil {
		return err
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := streamer.Flush(flushCtx); err != nil {
		logging.Warn("Не все задачи генерации завершены: %v", err)
	}

	report(session)
	return nil
}

func streamingOptions(sc config.StreamingConfig) streaming.Options {
	return streaming.Options{
		Edge:           sc.ChunkEdge,
		Radius:         sc.Radius,
		Workers:        sc.Workers,
		MaxAttempts:    sc.MaxAttempts,
		InitialBackoff: sc.InitialBackoff,
		MaxBackoff:     sc.MaxBackoff,
	}
}

func openEventBus(ec config.EventBusConfig) (eventbus.EventBus, error) {
	url := ec.GetURL()
	if url == "" {
		return eventbus.NewMemoryBus(1024), nil
	}
	bus, err := eventbus.NewJetStreamBus(url, ec.Stream, time.Duration(ec.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("шина событий %s: %w", url, err)
	}
	logging.Info("Шина событий: NATS JetStream %s, стрим %s", url, ec.Stream)
	return bus, nil
}

// buildSource собирает генератор террейна и, если включено, накладывает
// сохранённые правки из BadgerDB (опционально через Redis).
func buildSource(ctx context.Context, cfg *config.Config) (terrain.Source, func(), error) {
	var base terrain.Source
	switch cfg.Terrain.Generator {
	case "perlin":
		base = terrain.NewPerlin(cfg.Terrain.Seed)
	default:
		id, err := block.Parse(cfg.Terrain.Block)
		if err != nil {
			return nil, nil, fmt.Errorf("terrain.block: %w", err)
		}
		base = terrain.Flat{Height: cfg.Terrain.Height, Depth: cfg.Terrain.Depth, Block: id}
	}

	if !cfg.Storage.Enabled {
		return base, func() {}, nil
	}

	chunkStore, err := storage.OpenChunkStore(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("хранилище чанков: %w", err)
	}
	var edits storage.EditStore = chunkStore

	if rc := cfg.Storage.Redis; rc.Enabled {
		redisCfg := storage.DefaultRedisConfig()
		redisCfg.Addr = rc.GetAddr()
		redisCfg.Password = rc.Password
		redisCfg.DB = rc.DB
		if rc.TTL > 0 {
			redisCfg.TTL = rc.TTL
		}
		cached, err := storage.NewCachedStore(ctx, chunkStore, redisCfg)
		if err != nil {
			logging.Warn("Redis недоступен, работаем без кеша: %v", err)
		} else {
			edits = cached
		}
	}

	closeFn := func() {
		if err := edits.Close(); err != nil {
			logging.Warn("Ошибка закрытия хранилища: %v", err)
		}
	}
	return terrain.NewOverlay(base, edits, cfg.Streaming.ChunkEdge), closeFn, nil
}

func buildScene(rc config.RenderConfig) (render.Scene, func()) {
	addr := rc.GetWebsocketAddr()
	if addr == "" {
		return render.NewGraph(), func() {}
	}

	scene := render.NewWSScene()
	mux := http.NewServeMux()
	mux.Handle("/scene", scene.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logging.Info("Трансляция сцены: ws://%s/scene", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка сервера трансляции: %v", err)
		}
	}()

	return scene, func() {
		scene.Close()
		shutdownHTTP(srv.Shutdown)
	}
}

func shutdownHTTP(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logging.Warn("Ошибка остановки HTTP сервера: %v", err)
	}
}

func report(s *app.Session) {
	st := s.Streamer().Stats()
	center, _ := s.Streamer().Center()
	pos := s.Pose().Position

	logging.Info("Кадров: %d, позиция (%.2f, %.2f, %.2f), чанк %s", s.Frames(), pos.X(), pos.Y(), pos.Z(), center)
	logging.Info("Резидентно: %d, сгенерировано: %d, вытеснено: %d, заглушек: %d, отброшено: %d, повторов: %d",
		st.Resident, st.Generated, st.Evicted, st.Failed, st.Discarded, st.Retries)
	logging.Debug("Резидентные чанки: %v", s.Streamer().Resident())
}
