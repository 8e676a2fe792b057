package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "LIVE_RELAY"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Reconnect ReconnectConfig `mapstructure:"reconnect"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Store     StoreConfig     `mapstructure:"store"`
	History   HistoryConfig   `mapstructure:"history"`

	v  *viper.Viper
	mu sync.Mutex
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	// HealthPort serves the plaintext health and status routes (env PORT).
	HealthPort int `mapstructure:"health_port"`
	// RelayPort serves the subscriber WebSocket.
	RelayPort       int           `mapstructure:"relay_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is "json" or "text"; ignored when Exporter is "otel".
	Format   string `mapstructure:"format"`
	Exporter string `mapstructure:"exporter"`
}

type MonitorConfig struct {
	StatusInterval  time.Duration `mapstructure:"status_interval"`
	Window          time.Duration `mapstructure:"window"`
	TeardownTimeout time.Duration `mapstructure:"teardown_timeout"`
	SendTimeout     time.Duration `mapstructure:"send_timeout"`
	NotifyTimeout   time.Duration `mapstructure:"notify_timeout"`
}

type ReconnectConfig struct {
	MaxAttempts         int           `mapstructure:"max_attempts"`
	InitialInterval     time.Duration `mapstructure:"initial_interval"`
	MaxInterval         time.Duration `mapstructure:"max_interval"`
	Multiplier          float64       `mapstructure:"multiplier"`
	RandomizationFactor float64       `mapstructure:"randomization_factor"`
}

type UpstreamConfig struct {
	// URL of the webcast gateway; {identifier} is replaced per session.
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	// LiveTimeout bounds the wait for the gateway's "connected" frame.
	LiveTimeout  time.Duration     `mapstructure:"live_timeout"`
	ReadTimeout  time.Duration     `mapstructure:"read_timeout"`
	PingInterval time.Duration     `mapstructure:"ping_interval"`
	BufferSize   int               `mapstructure:"buffer_size"`
	Breaker      BreakerConfig     `mapstructure:"breaker"`
	Headers      map[string]string `mapstructure:"headers"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type RegistryConfig struct {
	MailboxSize int `mapstructure:"mailbox_size"`
}

type BrokerConfig struct {
	// AMQPURL selects RabbitMQ; empty keeps the bus in-process.
	AMQPURL  string `mapstructure:"amqp_url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
}

type StoreConfig struct {
	// RedisURL selects Redis; empty keeps statuses in an in-memory LRU.
	RedisURL  string        `mapstructure:"redis_url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	LRUSize   int           `mapstructure:"lru_size"`
}

type HistoryConfig struct {
	// DatabaseURL enables the Postgres session history when set.
	DatabaseURL string `mapstructure:"database_url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.health_port", 3000)
	v.SetDefault("server.relay_port", 3001)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.exporter", "stdout")

	v.SetDefault("monitor.status_interval", 30*time.Second)
	v.SetDefault("monitor.window", 5*time.Minute)
	v.SetDefault("monitor.teardown_timeout", 5*time.Second)
	v.SetDefault("monitor.send_timeout", 500*time.Millisecond)
	v.SetDefault("monitor.notify_timeout", 2*time.Second)

	v.SetDefault("reconnect.max_attempts", 10)
	v.SetDefault("reconnect.initial_interval", time.Second)
	v.SetDefault("reconnect.max_interval", 30*time.Second)
	v.SetDefault("reconnect.multiplier", 2.0)
	v.SetDefault("reconnect.randomization_factor", 0.5)

	v.SetDefault("upstream.url", "ws://127.0.0.1:8089/webcast?uniqueId={identifier}")
	v.SetDefault("upstream.handshake_timeout", 10*time.Second)
	v.SetDefault("upstream.live_timeout", 15*time.Second)
	v.SetDefault("upstream.read_timeout", 90*time.Second)
	v.SetDefault("upstream.ping_interval", 30*time.Second)
	v.SetDefault("upstream.buffer_size", 256)
	v.SetDefault("upstream.breaker.max_requests", 1)
	v.SetDefault("upstream.breaker.interval", time.Minute)
	v.SetDefault("upstream.breaker.timeout", 30*time.Second)
	v.SetDefault("upstream.breaker.consecutive_failures", 5)

	v.SetDefault("registry.mailbox_size", 256)

	v.SetDefault("broker.amqp_url", "")
	v.SetDefault("broker.exchange", "live_relay.events")
	v.SetDefault("broker.queue", "live-relay.session-events.v1")

	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.key_prefix", "live_relay:stream")
	v.SetDefault("store.ttl", 7*24*time.Hour)
	v.SetDefault("store.lru_size", 4096)

	v.SetDefault("history.database_url", "")
}

// Flags returns the flag set understood by LoadConfig.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.String("config_file", "", "Path to the configuration file")
	fs.Int("health_port", 3000, "Port of the health endpoint")
	fs.Int("relay_port", 3001, "Port of the subscriber WebSocket")
	fs.String("log_level", "info", "Log level: debug, info, warn, error")
	return fs
}

// LoadConfig resolves configuration from defaults, the config file,
// LIVE_RELAY_* environment variables and command-line flags, in rising order.
func LoadConfig(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	for key, flag := range map[string]string{
		"server.health_port": "health_port",
		"server.relay_port":  "relay_port",
		"log.level":          "log_level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// PORT is the conventional platform variable for the health listener.
	if err := v.BindEnv("server.health_port", EnvPrefix+"_SERVER_HEALTH_PORT", "PORT"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path, _ := fs.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/live-relay")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.HealthPort <= 0 || c.Server.HealthPort > 65535 {
		errs = append(errs, fmt.Errorf("server.health_port out of range: %d", c.Server.HealthPort))
	}
	if c.Server.RelayPort <= 0 || c.Server.RelayPort > 65535 {
		errs = append(errs, fmt.Errorf("server.relay_port out of range: %d", c.Server.RelayPort))
	}
	if c.Server.HealthPort == c.Server.RelayPort {
		errs = append(errs, fmt.Errorf("server.health_port and server.relay_port must differ"))
	}
	if c.Monitor.StatusInterval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.status_interval must be positive"))
	}
	if c.Monitor.Window <= 0 {
		errs = append(errs, fmt.Errorf("monitor.window must be positive"))
	}
	if c.Reconnect.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("reconnect.max_attempts must not be negative"))
	}
	if c.Reconnect.InitialInterval <= 0 || c.Reconnect.MaxInterval < c.Reconnect.InitialInterval {
		errs = append(errs, fmt.Errorf("reconnect intervals invalid: initial=%s max=%s",
			c.Reconnect.InitialInterval, c.Reconnect.MaxInterval))
	}
	if !strings.Contains(c.Upstream.URL, "{identifier}") {
		errs = append(errs, fmt.Errorf("upstream.url must contain the {identifier} placeholder"))
	}
	if c.Registry.MailboxSize <= 0 {
		errs = append(errs, fmt.Errorf("registry.mailbox_size must be positive"))
	}

	return errors.Join(errs...)
}

// Watch re-reads the config file on change and hands the new value to fn.
// Invalid revisions are reported through onErr and otherwise ignored.
func (c *Config) Watch(fn func(*Config), onErr func(error)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}

	c.v.OnConfigChange(func(e fsnotify.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()

		next := &Config{v: c.v}
		if err := c.v.Unmarshal(next); err != nil {
			onErr(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		if err := next.Validate(); err != nil {
			onErr(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		fn(next)
	})
	c.v.WatchConfig()
}
