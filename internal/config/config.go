package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Chains     []ChainConfig    `mapstructure:"chains"`
	Store      StoreConfig      `mapstructure:"store"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Realtime   RealtimeConfig   `mapstructure:"realtime"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	Routers    RoutersConfig    `mapstructure:"routers"`
	Reporter   ReporterConfig   `mapstructure:"reporter"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ChainConfig struct {
	Name          string        `mapstructure:"name"`
	ChainID       uint64        `mapstructure:"chain_id"`
	RPCEndpoint   string        `mapstructure:"rpc_endpoint"`
	StartBlock    uint64        `mapstructure:"start_block"`
	BlockRange    uint64        `mapstructure:"block_range"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	Confirmations uint64        `mapstructure:"confirmations"`
	FetchWorkers  int64         `mapstructure:"fetch_workers"`
	Aggregators   []string      `mapstructure:"aggregators"`
}

type StoreConfig struct {
	// Backend is one of memory, postgres, redis
	Backend string `mapstructure:"backend"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int32  `mapstructure:"max_connections"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	PoolSize  int    `mapstructure:"pool_size"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type RealtimeConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIURL  string `mapstructure:"api_url"`
	APIKey  string `mapstructure:"api_key"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ClickHouseConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Database string        `mapstructure:"database"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RoutersConfig struct {
	// Manifest is an optional YAML file merged over the built-in router table
	Manifest string `mapstructure:"manifest"`
}

type ReporterConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	v.SetDefault("store.backend", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.key_prefix", "aggstats:")
	v.SetDefault("kafka.topic", "aggregator.swaps")
	v.SetDefault("clickhouse.database", "default")
	v.SetDefault("clickhouse.timeout", "10s")
	v.SetDefault("reporter.interval", "1m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyChainDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyChainDefaults() {
	for i := range c.Chains {
		ch := &c.Chains[i]
		if ch.BlockRange == 0 {
			ch.BlockRange = 1000
		}
		if ch.PollInterval == 0 {
			ch.PollInterval = 2 * time.Second
		}
		if ch.FetchWorkers == 0 {
			ch.FetchWorkers = 8
		}
	}
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("no chains configured")
	}

	seen := make(map[uint64]bool)
	for i, ch := range c.Chains {
		if ch.RPCEndpoint == "" {
			return fmt.Errorf("chains[%d]: rpc_endpoint is required", i)
		}
		if ch.ChainID == 0 {
			return fmt.Errorf("chains[%d]: chain_id is required", i)
		}
		if seen[ch.ChainID] {
			return fmt.Errorf("chains[%d]: duplicate chain_id %d", i, ch.ChainID)
		}
		seen[ch.ChainID] = true
		if len(ch.Aggregators) == 0 {
			return fmt.Errorf("chains[%d]: at least one aggregator address is required", i)
		}
	}

	switch c.Store.Backend {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled without brokers")
	}

	return nil
}

// Chain returns the configuration for chainID
func (c *Config) Chain(chainID uint64) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.ChainID == chainID {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}
