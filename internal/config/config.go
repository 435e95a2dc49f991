package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации стримера.
type Config struct {
	Streaming StreamingConfig `yaml:"streaming"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Storage   StorageConfig   `yaml:"storage"`
	Render    RenderConfig    `yaml:"render"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type StreamingConfig struct {
	ChunkEdge      int           `yaml:"chunk_edge"`
	Radius         int           `yaml:"radius"`
	Workers        int           `yaml:"workers"` // 0 - синхронная генерация
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type TerrainConfig struct {
	Generator string `yaml:"generator"` // flat | perlin
	Seed      int64  `yaml:"seed"`
	Height    int    `yaml:"height"`
	Depth     int    `yaml:"depth"`
	Block     string `yaml:"block"`
}

type StorageConfig struct {
	Enabled bool        `yaml:"enabled"`
	Path    string      `yaml:"path"` // "" - BadgerDB в памяти
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type RenderConfig struct {
	WebsocketAddr string `yaml:"websocket_addr"` // "" - сцена только в памяти
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // "" - шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type LoggingConfig struct {
	Dir          string            `yaml:"dir"`
	ConsoleLevel string            `yaml:"console_level"`
	FileLevel    string            `yaml:"file_level"`
	Components   map[string]string `yaml:"components"` // уровень консоли по компонентам
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// Default возвращает конфигурацию по умолчанию: ребро 16, радиус 2,
// плоский мир, синхронная генерация.
func Default() *Config {
	return &Config{
		Streaming: StreamingConfig{
			ChunkEdge:      16,
			Radius:         2,
			MaxAttempts:    3,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     time.Second,
		},
		Terrain: TerrainConfig{
			Generator: "flat",
			Seed:      1,
			Height:    0,
			Depth:     1,
			Block:     "grass",
		},
		Storage: StorageConfig{
			Redis: RedisConfig{Addr: "localhost:6379", TTL: 10 * time.Minute},
		},
		Metrics: MetricsConfig{Port: 2112},
		EventBus: EventBusConfig{
			Stream:    "VOXEL_EVENTS",
			Retention: 24,
		},
		Logging: LoggingConfig{
			ConsoleLevel: "INFO",
			FileLevel:    "DEBUG",
		},
		Telemetry: TelemetryConfig{ServiceName: "voxel-streamer"},
	}
}

// GetMetricsPort возвращает порт метрик с поддержкой fallback значений
func (m *MetricsConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(m.Port, "STREAM_METRICS_PORT", 2112)
}

// GetURL возвращает адрес NATS: config -> env -> "" (шина в памяти)
func (e *EventBusConfig) GetURL() string {
	return getStringWithEnvFallback(e.URL, "STREAM_NATS_URL", "")
}

// GetAddr возвращает адрес Redis с поддержкой fallback значений
func (r *RedisConfig) GetAddr() string {
	return getStringWithEnvFallback(r.Addr, "STREAM_REDIS_ADDR", "localhost:6379")
}

// GetWebsocketAddr возвращает адрес трансляции сцены
func (r *RenderConfig) GetWebsocketAddr() string {
	return getStringWithEnvFallback(r.WebsocketAddr, "STREAM_WS_ADDR", "")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

func getStringWithEnvFallback(configVal, envVar, defaultVal string) string {
	if configVal != "" {
		return configVal
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultVal
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать путь из ENV STREAM_CONFIG; если и он
// не задан, возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("STREAM_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность параметров
func (c *Config) Validate() error {
	var errs []error
	if c.Streaming.ChunkEdge <= 0 {
		errs = append(errs, errors.New("streaming.chunk_edge должен быть положительным"))
	}
	if c.Streaming.Radius <= 0 {
		errs = append(errs, errors.New("streaming.radius должен быть положительным"))
	}
	if c.Streaming.Workers < 0 {
		errs = append(errs, errors.New("streaming.workers не может быть отрицательным"))
	}
	if c.Streaming.MaxAttempts < 1 {
		errs = append(errs, errors.New("streaming.max_attempts должен быть не меньше 1"))
	}
	switch c.Terrain.Generator {
	case "flat", "perlin":
	default:
		errs = append(errs, fmt.Errorf("terrain.generator: неизвестный генератор %q", c.Terrain.Generator))
	}
	if c.Terrain.Depth < 0 {
		errs = append(errs, errors.New("terrain.depth не может быть отрицательным"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("некорректная конфигурация: %w", errors.Join(errs...))
	}
	return nil
}
