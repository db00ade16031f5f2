// Package config loads service settings from defaults, an optional
// config.yaml, an optional .env file and TRAFFBOARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlexTsimba/traffboard-sub001/internal/db"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "TRAFFBOARD"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	UserHeader      string        `mapstructure:"user_header"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	SSLMode     string `mapstructure:"sslmode"`
	MaxConns    int32  `mapstructure:"max_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// Connection converts the section into the pool configuration.
func (d DatabaseConfig) Connection() db.Config {
	return db.Config{
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		DBName:   d.Name,
		SSLMode:  d.SSLMode,
		MaxConns: d.MaxConns,
	}
}

// RedisConfig configures the live progress cache. An empty Addr disables it.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	ProgressTTL time.Duration `mapstructure:"progress_ttl"`
}

type IngestionConfig struct {
	StagingDir       string        `mapstructure:"staging_dir"`
	MaxUploadBytes   int64         `mapstructure:"max_upload_bytes"`
	BatchSize        int           `mapstructure:"batch_size"`
	PreviewRows      int           `mapstructure:"preview_rows"`
	MaxStoredErrors  int           `mapstructure:"max_stored_errors"`
	ProgressInterval int           `mapstructure:"progress_interval"`
	JobTimeout       time.Duration `mapstructure:"job_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	UploadsPerMinute float64 `mapstructure:"uploads_per_minute"`
	Burst            int     `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.user_header", "X-User-ID")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "traffboard")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.progress_ttl", time.Hour)

	v.SetDefault("ingestion.staging_dir", filepath.Join(os.TempDir(), "traffboard-uploads"))
	v.SetDefault("ingestion.max_upload_bytes", 50<<20)
	v.SetDefault("ingestion.batch_size", 500)
	v.SetDefault("ingestion.preview_rows", 5)
	v.SetDefault("ingestion.max_stored_errors", 5000)
	v.SetDefault("ingestion.progress_interval", 100)
	v.SetDefault("ingestion.job_timeout", 30*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.uploads_per_minute", 30)
	v.SetDefault("ratelimit.burst", 5)
}

// Load reads configuration. configPath is searched for config.yaml and .env;
// both files are optional.
func Load(configPath string) (Config, error) {
	if configPath == "" {
		configPath = "."
	}
	if err := godotenv.Load(filepath.Join(configPath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Database.Port <= 0 {
		errs = append(errs, errors.New("database.port must be positive"))
	}
	if c.Ingestion.BatchSize <= 0 {
		errs = append(errs, errors.New("ingestion.batch_size must be positive"))
	}
	if c.Ingestion.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("ingestion.max_upload_bytes must be positive"))
	}
	if c.Ingestion.StagingDir == "" {
		errs = append(errs, errors.New("ingestion.staging_dir is required"))
	}
	if c.RateLimit.Enabled && c.RateLimit.UploadsPerMinute <= 0 {
		errs = append(errs, errors.New("ratelimit.uploads_per_minute must be positive when enabled"))
	}
	return errors.Join(errs...)
}
