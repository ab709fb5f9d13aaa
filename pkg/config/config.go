package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
	BackendRedis    = "redis"
)

// Config is decoded from the process environment (after .env is loaded).
type Config struct {
	Env            string `env:"ENV,default=development"`
	Port           string `env:"PORT,default=8000"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogFile        string `env:"LOG_FILE"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`

	DirectoryBackend string        `env:"DIRECTORY_BACKEND,default=mongo"`
	BrokerBackend    string        `env:"BROKER_BACKEND,default=redis"`
	CacheTTL         time.Duration `env:"DIRECTORY_CACHE_TTL,default=10m"`

	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE,default=tamias"`

	PostgresDSN     string `env:"POSTGRES_DSN"`
	PostgresMigrate bool   `env:"POSTGRES_MIGRATE,default=false"`

	SupabaseURL     string `env:"SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY"`

	RedisAddress  string `env:"REDIS_ADDRESS,default=localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB,default=0"`

	RevertDelay      time.Duration `env:"DISPLAY_REVERT_DELAY,default=5s"`
	DefaultStoreName string        `env:"DISPLAY_DEFAULT_STORE_NAME,default=Tamias POS"`
	ConnectGrace     time.Duration `env:"DISPLAY_CONNECT_GRACE,default=1m"`
	KeepAlive        time.Duration `env:"DISPLAY_KEEPALIVE,default=15s"`
	PresenceTTL      time.Duration `env:"PRESENCE_TTL,default=2m"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decoding environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) Origins() []string {
	var origins []string
	for _, o := range strings.FieldsFunc(c.AllowedOrigins, func(r rune) bool { return r == ',' || r == ';' }) {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// UsesRedis reports whether a Redis connection is needed for the chosen backends.
func (c Config) UsesRedis() bool {
	return c.BrokerBackend == BackendRedis || c.CacheTTL > 0
}

func (c Config) Validate() error {
	switch c.DirectoryBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required for the mongo directory")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres directory")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required for the supabase directory")
		}
	default:
		return fmt.Errorf("unknown DIRECTORY_BACKEND %q", c.DirectoryBackend)
	}

	switch c.BrokerBackend {
	case BackendRedis:
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required for the supabase broker")
		}
	default:
		return fmt.Errorf("unknown BROKER_BACKEND %q", c.BrokerBackend)
	}

	if c.RevertDelay <= 0 {
		return errors.New("DISPLAY_REVERT_DELAY must be positive")
	}
	return nil
}
