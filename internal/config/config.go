package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/annel0/block-gravity/internal/audit"
	"github.com/annel0/block-gravity/internal/world/block"
	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервера гравитации.
type Config struct {
	Gravity  GravityConfig     `yaml:"gravity"`
	Blocks   block.PolicyNames `yaml:"blocks"`
	EventBus EventBusConfig    `yaml:"eventbus"`
	Storage  StorageConfig     `yaml:"storage"`
	Audit    AuditConfig       `yaml:"audit"`
	Server   ServerConfig      `yaml:"server"`
	World    WorldConfig       `yaml:"world"`
	Logging  LoggingConfig     `yaml:"logging"`
}

type GravityConfig struct {
	SyncBudget       int `yaml:"sync_budget"`
	TickBudget       int `yaml:"tick_budget"`
	WorldFloor       int `yaml:"world_floor"`
	TickMillis       int `yaml:"tick_ms"`
	PistonDelayTicks int `yaml:"piston_delay_ticks"`
}

type EventBusConfig struct {
	Backend   string `yaml:"backend"` // memory | nats
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type StorageConfig struct {
	Path     string `yaml:"path"` // пусто — без сохранения
	Compress bool   `yaml:"compress"`
}

type AuditConfig struct {
	Backend  string            `yaml:"backend"` // memory | maria | mongo
	Capacity int               `yaml:"capacity"`
	Maria    audit.MariaConfig `yaml:"maria"`
	Mongo    audit.MongoConfig `yaml:"mongo"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type WorldConfig struct {
	Seed   int64 `yaml:"seed"`
	Radius int   `yaml:"radius"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		Gravity: GravityConfig{
			SyncBudget:       10,
			TickBudget:       100,
			WorldFloor:       0,
			TickMillis:       50,
			PistonDelayTicks: 4,
		},
		Blocks: block.DefaultPolicyNames(),
		EventBus: EventBusConfig{
			Backend:   "memory",
			URL:       "nats://127.0.0.1:4222",
			Stream:    "GRAVITY",
			Retention: 24,
			Buffer:    1024,
		},
		Storage: StorageConfig{Compress: true},
		Audit:   AuditConfig{Backend: "memory", Capacity: 10000},
		World:   WorldConfig{Seed: 1, Radius: 32},
		Logging: LoggingConfig{Level: "info"},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GRAVITY_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GRAVITY_METRICS_PORT", 2112)
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

// Validate проверяет значения, без которых сервер не запустится.
func (c *Config) Validate() error {
	if c.Gravity.SyncBudget < 0 {
		return fmt.Errorf("gravity.sync_budget: отрицательное значение %d", c.Gravity.SyncBudget)
	}
	if c.Gravity.TickBudget < 1 {
		return fmt.Errorf("gravity.tick_budget: должно быть >= 1, получено %d", c.Gravity.TickBudget)
	}
	if c.Gravity.TickMillis < 1 {
		return fmt.Errorf("gravity.tick_ms: должно быть >= 1, получено %d", c.Gravity.TickMillis)
	}
	if c.Gravity.PistonDelayTicks < 0 {
		return fmt.Errorf("gravity.piston_delay_ticks: отрицательное значение %d", c.Gravity.PistonDelayTicks)
	}
	if _, err := block.NewPolicy(c.Blocks); err != nil {
		return fmt.Errorf("blocks: %w", err)
	}
	switch strings.ToLower(c.EventBus.Backend) {
	case "memory", "nats":
	default:
		return fmt.Errorf("eventbus.backend: неизвестное значение %q", c.EventBus.Backend)
	}
	switch strings.ToLower(c.Audit.Backend) {
	case "memory", "maria", "mongo", "none":
	default:
		return fmt.Errorf("audit.backend: неизвестное значение %q", c.Audit.Backend)
	}
	if c.World.Radius < 0 {
		return fmt.Errorf("world.radius: отрицательное значение %d", c.World.Radius)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV GRAVITY_CONFIG, иначе
// возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("GRAVITY_CONFIG")
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
