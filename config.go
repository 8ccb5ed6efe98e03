package approvo

import (
	"fmt"
	"strings"
	"time"

	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/service/dao/redis"
	"github.com/viant/approvo/service/locker"
	"github.com/viant/approvo/service/messaging"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFs     = "fs"
	BackendRedis  = "redis"
)

// Config is a serialisable representation of the engine configuration. It can
// be populated from JSON, YAML, flags or environment variables. Zero valued
// nested fields fall back to DefaultConfig values in New.
type Config struct {
	Log         logger.Config   `json:"log" yaml:"log"`
	Engine      EngineConfig    `json:"engine" yaml:"engine"`
	Store       StoreConfig     `json:"store" yaml:"store"`
	Events      EventsConfig    `json:"events" yaml:"events"`
	Tracing     TracingConfig   `json:"tracing" yaml:"tracing"`
	HTTP        HTTPConfig      `json:"http" yaml:"http"`
	Directory   DirectoryConfig `json:"directory" yaml:"directory"`
	Definitions []string        `json:"definitions,omitempty" yaml:"definitions,omitempty"`
	Templates   []string        `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// EngineConfig controls approver resolution.
type EngineConfig struct {
	LookupTimeout time.Duration `json:"lookupTimeout" yaml:"lookupTimeout"`
}

// StoreConfig selects the persistence backend for definitions, instances and pipelines.
type StoreConfig struct {
	Backend  string             `json:"backend" yaml:"backend"`
	BasePath string             `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	Redis    redis.Config       `json:"redis" yaml:"redis"`
	Lock     locker.RedisConfig `json:"lock" yaml:"lock"`
}

// EventsConfig controls the notification queue.
type EventsConfig struct {
	Queue      messaging.Vendor `json:"queue" yaml:"queue"`
	MaxRetries int              `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay time.Duration    `json:"retryDelay" yaml:"retryDelay"`
	Buffer     int              `json:"buffer" yaml:"buffer"`
	BasePath   string           `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	Workers    int              `json:"workers" yaml:"workers"`
}

// TracingConfig enables the stdout span exporter; an empty Output writes to stdout.
type TracingConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
}

// HTTPConfig controls the REST listener.
type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// DirectoryConfig points at the organizational directory seed document.
type DirectoryConfig struct {
	URL      string        `json:"url,omitempty" yaml:"url,omitempty"`
	CacheTTL time.Duration `json:"cacheTTL" yaml:"cacheTTL"`
}

// DefaultConfig returns an in-process configuration: memory stores, memory
// queue, no tracing.
func DefaultConfig() *Config {
	return &Config{
		Log:    logger.DefaultConfig(),
		Engine: EngineConfig{LookupTimeout: 2 * time.Second},
		Store: StoreConfig{
			Backend: BackendMemory,
			Redis:   redis.Config{Addrs: []string{"localhost:6379"}, Namespace: "approvo"},
			Lock:    locker.DefaultRedisConfig(),
		},
		Events: EventsConfig{
			Queue:      messaging.VendorMemory,
			MaxRetries: 3,
			RetryDelay: 100 * time.Millisecond,
			Buffer:     1000,
			Workers:    1,
		},
		HTTP:      HTTPConfig{Addr: ":8080"},
		Directory: DirectoryConfig{CacheTTL: time.Minute},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var issues []string
	if c.Engine.LookupTimeout < 0 {
		issues = append(issues, "engine.lookupTimeout must be >= 0")
	}
	switch c.Store.Backend {
	case BackendMemory, "":
	case BackendFs:
		if c.Store.BasePath == "" {
			issues = append(issues, "store.basePath is required for the fs backend")
		}
	case BackendRedis:
		if len(c.Store.Redis.Addrs) == 0 {
			issues = append(issues, "store.redis.addrs is required for the redis backend")
		}
		if c.Store.Redis.Namespace == "" {
			issues = append(issues, "store.redis.namespace is required for the redis backend")
		}
	default:
		issues = append(issues, fmt.Sprintf("store.backend %q is not supported", c.Store.Backend))
	}
	switch c.Events.Queue {
	case messaging.VendorMemory, "":
		if c.Events.Buffer < 0 {
			issues = append(issues, "events.buffer must be >= 0")
		}
	case messaging.VendorFs:
		if c.Events.BasePath == "" {
			issues = append(issues, "events.basePath is required for the fs queue")
		}
	default:
		issues = append(issues, fmt.Sprintf("events.queue %q is not supported", c.Events.Queue))
	}
	if c.Events.MaxRetries < 0 {
		issues = append(issues, "events.maxRetries must be >= 0")
	}
	if c.Events.Workers <= 0 {
		issues = append(issues, "events.workers must be > 0")
	}
	if c.Directory.CacheTTL < 0 {
		issues = append(issues, "directory.cacheTTL must be >= 0")
	}
	if len(issues) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(issues, "; "))
	}
	return nil
}
