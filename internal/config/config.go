package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SilentFail/pkg/validator"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Security SecurityConfig `mapstructure:"security"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	URL     string `mapstructure:"url"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	CronSecret      string `mapstructure:"cron_secret"`
	BootstrapEmail  string `mapstructure:"bootstrap_email"`
	BootstrapAPIKey string `mapstructure:"bootstrap_api_key"`
	BcryptCost      int    `mapstructure:"bcrypt_cost"`
}

type MonitorConfig struct {
	GraceWindow     int `mapstructure:"grace_window"`
	DetailPings     int `mapstructure:"detail_pings"`
	DetailDowntimes int `mapstructure:"detail_downtimes"`
}

type SweepConfig struct {
	Embedded bool          `mapstructure:"embedded"`
	Interval time.Duration `mapstructure:"interval"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type AlertsConfig struct {
	Queue       string        `mapstructure:"queue"`
	Workers     int           `mapstructure:"workers"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type SMTPConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	From       string `mapstructure:"from"`
	SkipVerify bool   `mapstructure:"skip_verify"`
}

type WorkerConfig struct {
	BackendURL string        `mapstructure:"backend_url"`
	Interval   time.Duration `mapstructure:"interval"`
	StartDelay time.Duration `mapstructure:"start_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load читает .env, configs/config.yaml и переменные окружения SILENTFAIL_*
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not loaded", "error", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SILENTFAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var errViper viper.ConfigFileNotFoundError
		if errors.As(err, &errViper) {
			slog.Warn("config file not found, using defaults and environment")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Info("configuration loaded successfully")
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// app defaults
	v.SetDefault("app.name", "silentfail")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.url", "http://localhost:8080")

	// server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")

	// database defaults
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "silentfail")
	v.SetDefault("database.password", "silentfail")
	v.SetDefault("database.dbname", "silentfail")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	// redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// security defaults
	v.SetDefault("security.cron_secret", "")
	v.SetDefault("security.bootstrap_email", "")
	v.SetDefault("security.bootstrap_api_key", "")
	v.SetDefault("security.bcrypt_cost", 10)

	// monitor defaults
	v.SetDefault("monitor.grace_window", 10)
	v.SetDefault("monitor.detail_pings", 100)
	v.SetDefault("monitor.detail_downtimes", 50)

	// sweep defaults
	v.SetDefault("sweep.embedded", false)
	v.SetDefault("sweep.interval", "60s")
	v.SetDefault("sweep.lock_ttl", "55s")

	// alerts defaults
	v.SetDefault("alerts.queue", "alert_jobs")
	v.SetDefault("alerts.workers", 2)
	v.SetDefault("alerts.max_retries", 3)
	v.SetDefault("alerts.retry_delay", "5s")
	v.SetDefault("alerts.poll_timeout", "1s")

	// smtp defaults
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.skip_verify", false)
	v.SetDefault("smtp.from", "alerts@silentfail.local")

	// worker defaults
	v.SetDefault("worker.backend_url", "http://localhost:8080")
	v.SetDefault("worker.interval", "60s")
	v.SetDefault("worker.start_delay", "5s")
	v.SetDefault("worker.timeout", "30s")
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" {
		return fmt.Errorf("invalid server mode %s", cfg.Server.Mode)
	}

	switch cfg.Database.Driver {
	case DriverPostgres:
		if cfg.Database.Host == "" {
			return errors.New("database host is required")
		}
		if cfg.Database.DBName == "" {
			return errors.New("database name is required")
		}
	case DriverMemory:
		slog.Warn("using in-memory storage, data is lost on restart")
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	if err := validator.ValidateBaseURL(cfg.App.URL); err != nil {
		return fmt.Errorf("app url: %w", err)
	}

	if cfg.Monitor.GraceWindow < 3 {
		return fmt.Errorf("monitor grace window must be at least 3, got %d", cfg.Monitor.GraceWindow)
	}

	if cfg.Monitor.DetailPings < 1 || cfg.Monitor.DetailDowntimes < 1 {
		return errors.New("monitor detail windows must be positive")
	}

	if cfg.Sweep.Interval <= 0 {
		return fmt.Errorf("invalid sweep interval %s", cfg.Sweep.Interval)
	}

	if cfg.Alerts.Workers < 1 {
		return fmt.Errorf("alerts workers must be at least 1, got %d", cfg.Alerts.Workers)
	}

	if cfg.Alerts.MaxRetries < 0 {
		return fmt.Errorf("invalid alerts max retries %d", cfg.Alerts.MaxRetries)
	}

	if cfg.Worker.Interval <= 0 {
		return fmt.Errorf("invalid worker interval %s", cfg.Worker.Interval)
	}

	if err := validator.ValidateBaseURL(cfg.Worker.BackendURL); err != nil {
		return fmt.Errorf("worker backend url: %w", err)
	}

	if cfg.Security.CronSecret == "" {
		if cfg.Server.Mode == "release" {
			return errors.New("security.cron_secret is required in release mode")
		}
		slog.Warn("cron secret is empty - sweep endpoint is open in debug mode")
	}

	if cfg.SMTP.Host == "" {
		slog.Warn("smtp host is empty - alert emails will only be logged")
	}

	return nil
}

// GetDSN возвращает DSN строку для PostgreSQL
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetRedisOptions возвращает настройки для Redis клиента
func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:            r.Addr,
		Password:        r.Password,
		DB:              r.DB,
		DisableIdentity: true,
	}
}
