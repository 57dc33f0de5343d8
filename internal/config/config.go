package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP struct {
		Addr           string
		AllowedOrigins []string
		JWTSecret      string
	}

	DB struct {
		Host     string
		Port     int
		Name     string
		User     string
		Password string
		SSLMode  string

		PoolMinConns     int32
		PoolMaxConns     int32
		AcquireTimeout   time.Duration
		StatementTimeout time.Duration
		KeepAlive        time.Duration
	}

	Pagination struct {
		MaxPageSize int
	}

	Downloader struct {
		OutputDir    string
		StateFile    string
		PollInterval time.Duration
	}
}

// Load reads config.yaml (if present) and PATENTES_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/patentes-service")

	v.SetEnvPrefix("PATENTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.DB.Host == "" {
		return nil, fmt.Errorf("db.host is required")
	}
	if cfg.DB.PoolMinConns > cfg.DB.PoolMaxConns {
		return nil, fmt.Errorf("db.poolminconns (%d) exceeds db.poolmaxconns (%d)",
			cfg.DB.PoolMinConns, cfg.DB.PoolMaxConns)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":10000")
	v.SetDefault("http.allowedorigins", []string{"*"})

	// Empty defaults register the keys so AutomaticEnv can fill them
	// during Unmarshal.
	v.SetDefault("http.jwtsecret", "")
	v.SetDefault("db.host", "")
	v.SetDefault("db.name", "")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")

	v.SetDefault("db.port", 5432)
	v.SetDefault("db.sslmode", "require")
	v.SetDefault("db.poolminconns", 2)
	v.SetDefault("db.poolmaxconns", 10)
	v.SetDefault("db.acquiretimeout", 5*time.Second)
	v.SetDefault("db.statementtimeout", 30*time.Second)
	v.SetDefault("db.keepalive", 30*time.Second)

	v.SetDefault("pagination.maxpagesize", 100)

	v.SetDefault("downloader.outputdir", "downloaded_images")
	v.SetDefault("downloader.statefile", "last_processed_timestamp.txt")
	v.SetDefault("downloader.pollinterval", time.Minute)
}

// DSN builds the postgres connection string for the pool.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}
