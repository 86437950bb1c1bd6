// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Store     StoreConfig     `mapstructure:"store"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Timer     TimerConfig     `mapstructure:"timer"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Historian HistorianConfig `mapstructure:"historian"`
	Log       LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig selects the shared store: "postgres" or "memory".
type StoreConfig struct {
	Kind     string `mapstructure:"kind"`
	SeedFile string `mapstructure:"seed_file"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN builds the libpq-style connection string pgx expects.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Queue    string `mapstructure:"queue"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// FeedConfig selects how change events leave the process: "memory" keeps
// them local, "redis", "nats" and "postgres" relay them between replicas.
type FeedConfig struct {
	Relay string `mapstructure:"relay"`
}

// TimerConfig selects who resolves expired rounds. In "server" mode a
// Timekeeper arms one timer per active round; in "observer" mode every
// connected view loop checks the deadline on each tick.
type TimerConfig struct {
	Mode string        `mapstructure:"mode"`
	Tick time.Duration `mapstructure:"tick"`
}

// AuthConfig holds session settings. When both key paths are set tokens are
// signed with the ed25519 keys on disk and stay valid across restarts and
// replicas. Otherwise a key pair is generated at startup.
type AuthConfig struct {
	AdminPassphraseHash string        `mapstructure:"admin_passphrase_hash"`
	TokenExpiry         time.Duration `mapstructure:"token_expiry"`
	PrivateKeyPath      string        `mapstructure:"private_key_path"`
	PublicKeyPath       string        `mapstructure:"public_key_path"`
}

// HistorianConfig holds the action history settings. When Enabled the server
// queues one record per accepted command on the Redis list redis.queue.
type HistorianConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	BatchSize  int           `mapstructure:"batch_size"`
	FlushDelay time.Duration `mapstructure:"flush_delay"`
	Retention  time.Duration `mapstructure:"retention"`
	PurgeSpec  string        `mapstructure:"purge_spec"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

var (
	storeKinds = map[string]bool{"postgres": true, "memory": true}
	relayKinds = map[string]bool{"memory": true, "redis": true, "nats": true, "postgres": true}
	timerModes = map[string]bool{"server": true, "observer": true}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("store.kind", "postgres")
	v.SetDefault("store.seed_file", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "arena")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue", "arena_actions")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("feed.relay", "memory")
	v.SetDefault("timer.mode", "server")
	v.SetDefault("timer.tick", time.Second)
	v.SetDefault("auth.admin_passphrase_hash", "")
	v.SetDefault("auth.token_expiry", 72*time.Hour)
	v.SetDefault("auth.private_key_path", "")
	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("historian.enabled", false)
	v.SetDefault("historian.batch_size", 20)
	v.SetDefault("historian.flush_delay", 500*time.Millisecond)
	v.SetDefault("historian.retention", 30*24*time.Hour)
	v.SetDefault("historian.purge_spec", "@daily")
	v.SetDefault("log.level", "info")
}

// Load reads the optional YAML file at path, then ARENA_* environment
// overrides (ARENA_DATABASE_HOST, ARENA_TIMER_MODE, ...). An empty path
// means environment and defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("arena")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if !storeKinds[c.Store.Kind] {
		return fmt.Errorf("invalid store.kind %q", c.Store.Kind)
	}
	if !relayKinds[c.Feed.Relay] {
		return fmt.Errorf("invalid feed.relay %q", c.Feed.Relay)
	}
	if c.Feed.Relay == "postgres" && c.Store.Kind != "postgres" {
		return fmt.Errorf("feed.relay postgres requires store.kind postgres")
	}
	if !timerModes[c.Timer.Mode] {
		return fmt.Errorf("invalid timer.mode %q", c.Timer.Mode)
	}
	if c.Timer.Tick <= 0 {
		return fmt.Errorf("timer.tick must be positive")
	}
	return nil
}
