// Package config loads server settings from an optional YAML file and
// MATCHBOOK_* environment variables.
package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "MATCHBOOK"

type Config struct {
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`

	Engine struct {
		Symbols       []string `mapstructure:"symbols"`
		SnapshotDepth int      `mapstructure:"snapshot_depth"`
	} `mapstructure:"engine"`

	WAL struct {
		Dir         string `mapstructure:"dir"`
		SegmentSize int64  `mapstructure:"segment_size"`
		Sync        bool   `mapstructure:"sync"`
	} `mapstructure:"wal"`

	Audit struct {
		LogPath   string `mapstructure:"log_path"`
		OutboxDir string `mapstructure:"outbox_dir"`
	} `mapstructure:"audit"`

	MarketData struct {
		OutputPath string `mapstructure:"output_path"`
	} `mapstructure:"market_data"`

	Kafka struct {
		Brokers         []string      `mapstructure:"brokers"`
		AuditTopic      string        `mapstructure:"audit_topic"`
		MarketDataTopic string        `mapstructure:"market_data_topic"`
		RelayInterval   time.Duration `mapstructure:"relay_interval"`
		MaxRetries      uint32        `mapstructure:"max_retries"`
	} `mapstructure:"kafka"`

	GRPC struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"grpc"`

	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`

	Simulator struct {
		Clients  int           `mapstructure:"clients"`
		Orders   int           `mapstructure:"orders"`
		MinPause time.Duration `mapstructure:"min_pause"`
		MaxPause time.Duration `mapstructure:"max_pause"`
		// ExitWhenDone shuts the server down once every simulated client
		// has sent its orders.
		ExitWhenDone bool `mapstructure:"exit_when_done"`
	} `mapstructure:"simulator"`
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("engine.symbols", []string{"GOOG", "AMZN", "AAPL", "MSFT"})
	v.SetDefault("engine.snapshot_depth", 5)

	v.SetDefault("wal.dir", "./data/wal")
	v.SetDefault("wal.segment_size", 64<<20)
	v.SetDefault("wal.sync", false)

	v.SetDefault("audit.log_path", "./data/audit/events.log")
	v.SetDefault("audit.outbox_dir", "./data/outbox")

	v.SetDefault("market_data.output_path", "./data/market_data.log")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.audit_topic", "matchbook.audit")
	v.SetDefault("kafka.market_data_topic", "matchbook.marketdata")
	v.SetDefault("kafka.relay_interval", 250*time.Millisecond)
	v.SetDefault("kafka.max_retries", 5)

	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("simulator.clients", 0)
	v.SetDefault("simulator.orders", 10)
	v.SetDefault("simulator.min_pause", 100*time.Millisecond)
	v.SetDefault("simulator.max_pause", time.Second)
	v.SetDefault("simulator.exit_when_done", false)
}

// Load reads path when non-empty, overlays the environment and validates
// the result. MATCHBOOK_GRPC_ADDR overrides grpc.addr.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Engine.Symbols) == 0 {
		return errors.New("config: engine.symbols is empty")
	}
	seen := make(map[string]bool, len(c.Engine.Symbols))
	for _, s := range c.Engine.Symbols {
		if s == "" {
			return errors.New("config: empty symbol")
		}
		if seen[s] {
			return errors.Newf("config: duplicate symbol %q", s)
		}
		seen[s] = true
	}
	if c.Engine.SnapshotDepth <= 0 {
		return errors.Newf("config: engine.snapshot_depth must be positive, got %d", c.Engine.SnapshotDepth)
	}
	if c.WAL.Dir == "" {
		return errors.New("config: wal.dir is required")
	}
	if c.Audit.LogPath == "" || c.MarketData.OutputPath == "" {
		return errors.New("config: audit.log_path and market_data.output_path are required")
	}
	if c.Simulator.Clients < 0 {
		return errors.New("config: simulator.clients must not be negative")
	}
	return nil
}
