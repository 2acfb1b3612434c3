package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	Log      LogConfig
	Database DatabaseConfig

	MetricsAddr string `env:"METRICS_ADDR" env-default:""`
}

type AppConfig struct {
	Name    string `env:"APP_NAME" env-default:"Todo API"`
	Version string `env:"APP_VERSION" env-default:"1.0.0"`
	Env     string `env:"APP_ENV" env-default:"development"`
}

type HTTPConfig struct {
	Addr           string        `env:"HTTP_ADDR" env-default:":8000"`
	ReadTimeout    time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout   time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout    time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"15s"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" env-default:"pgx"`
	URL    string `env:"DATABASE_URL" env-default:""`

	// Used to build URL when DATABASE_URL is unset.
	Host     string `env:"DB_HOST" env-default:""`
	Port     string `env:"DB_PORT" env-default:"5432"`
	Name     string `env:"DB_NAME" env-default:""`
	User     string `env:"DB_USER" env-default:""`
	Password string `env:"DB_PASSWORD" env-default:""`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"2"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// Production reports whether internal error detail must be hidden from clients.
func (c *Config) Production() bool {
	return c.App.Env == "production"
}

func Load() (*Config, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if cfg.Database.Driver != "pgx" && cfg.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("DB_DRIVER must be pgx or sqlite, got %q", cfg.Database.Driver)
	}

	if cfg.Database.URL == "" && cfg.Database.Driver == "pgx" {
		var missing []string
		if cfg.Database.Host == "" {
			missing = append(missing, "DB_HOST")
		}
		if cfg.Database.Name == "" {
			missing = append(missing, "DB_NAME")
		}
		if cfg.Database.User == "" {
			missing = append(missing, "DB_USER")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("DATABASE_URL is unset and missing required env vars: %v", missing)
		}
		cfg.Database.URL = postgresURL(cfg.Database)
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for driver %s", cfg.Database.Driver)
	}

	return cfg, nil
}

func postgresURL(db DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   net.JoinHostPort(db.Host, db.Port),
		Path:   "/" + db.Name,
	}
	return u.String()
}
