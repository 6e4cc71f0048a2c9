package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Env        string `yaml:"env" env:"SURL_ENV"`
	LogLevel   string `yaml:"log_level" env:"SURL_LOG_LEVEL"`
	Website    string `yaml:"website" env:"SURL_WEBSITE"`
	HTTPServer `yaml:"http_server"`
	Storage    Storage `yaml:"storage"`
	Redis      Redis   `yaml:"redis"`
}

type HTTPServer struct {
	Host           string        `yaml:"host" env:"SURL_HOST"`
	Port           int           `yaml:"port" env:"SURL_PORT"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"SURL_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"SURL_WRITE_TIMEOUT"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" env:"SURL_IDLE_TIMEOUT"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file" env:"SURL_CERT_FILE"`
	KeyFile        string        `yaml:"key_file" env:"SURL_KEY_FILE"`
}

var defaultHTTPServer = HTTPServer{
	Host:           "127.0.0.1",
	Port:           7777,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type Storage struct {
	Driver          string        `yaml:"driver" env:"SURL_STORAGE_DRIVER"`
	Path            string        `yaml:"path" env:"SURL_STORAGE_PATH"`
	OpenTimeout     time.Duration `yaml:"open_timeout"`
	NoFreelistSync  bool          `yaml:"no_freelist_sync"`
	InitialMmapSize int           `yaml:"initial_mmap_size"`
	Postgres        Postgres      `yaml:"postgres"`
}

var defaultStorage = Storage{
	Driver:      DriverBolt,
	Path:        "surl.db",
	OpenTimeout: time.Second,
	Postgres:    defaultPostgres,
}

type Postgres struct {
	User            string        `yaml:"user" env:"SURL_POSTGRES_USER"`
	Password        string        `yaml:"password" env:"SURL_POSTGRES_PASSWORD"`
	Host            string        `yaml:"host" env:"SURL_POSTGRES_HOST"`
	Port            int           `yaml:"port" env:"SURL_POSTGRES_PORT"`
	DB              string        `yaml:"db" env:"SURL_POSTGRES_DB"`
	SSLMode         string        `yaml:"sslmode" env:"SURL_POSTGRES_SSLMODE"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Redis configures the optional link cache. An empty Addr disables it.
type Redis struct {
	Addr     string        `yaml:"addr" env:"SURL_REDIS_ADDR"`
	Password string        `yaml:"password" env:"SURL_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"SURL_REDIS_DB"`
	PoolSize int           `yaml:"pool_size"`
	TTL      time.Duration `yaml:"ttl" env:"SURL_REDIS_TTL"`
}

func (r *Redis) Enabled() bool {
	return r.Addr != ""
}

// Load reads the YAML file at path, if any, and then applies SURL_* environment
// variables on top. An empty path yields the defaults plus the environment.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	var cfg Config
	setDefaults(&cfg)

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to parse environment: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode config file: %w", err)
	}

	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDev, EnvStage, EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	if c.HTTPServer.Port < 1 || c.HTTPServer.Port > 65535 {
		return fmt.Errorf("http server port %d out of range", c.HTTPServer.Port)
	}

	switch c.Storage.Driver {
	case DriverBolt:
		if c.Storage.Path == "" {
			return errors.New("storage path is required for the bolt driver")
		}
	case DriverPostgres:
		// One connection stays reserved for the writer lock.
		if c.Storage.Postgres.MaxOpenConns == 1 {
			return errors.New("postgres max_open_conns must be 0 or at least 2")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = "info"
	cfg.HTTPServer = defaultHTTPServer
	cfg.Storage = defaultStorage
	cfg.Redis = Redis{TTL: 24 * time.Hour}
}
