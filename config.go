package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const _ENV_PREFIX = "INSIGHTSACK"

type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	DB        DBConfig        `yaml:"db" mapstructure:"db"`
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" mapstructure:"port"`
	Mode            string        `yaml:"mode" mapstructure:"mode"`
	CorsOrigin      string        `yaml:"cors_origin" mapstructure:"cors_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// DBConfig with an empty URI selects the in-memory record store.
type DBConfig struct {
	URI        string `yaml:"uri" mapstructure:"uri"`
	Database   string `yaml:"database" mapstructure:"database"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

type DataConfig struct {
	Source        string `yaml:"source" mapstructure:"source"`
	ReloadOnStart bool   `yaml:"reload_on_start" mapstructure:"reload_on_start"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" mapstructure:"rps"`
	Burst int     `yaml:"burst" mapstructure:"burst"`
}

type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			Mode:            "release",
			CorsOrigin:      "*",
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DBConfig{
			Database:   "insightsack",
			Collection: "records",
		},
		Data: DataConfig{
			Source:        "jsondata.json",
			ReloadOnStart: true,
		},
		Log: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RPS:   100,
			Burst: 2000,
		},
		Cache: CacheConfig{
			TTL:             5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
	}
}

// legacy variable names the deployment scripts already set
var _ENV_ALIASES = map[string][]string{
	"server.port":        {"PORT"},
	"server.cors_origin": {"CORS_ORIGIN"},
	"db.uri":             {"MONGODB_URI", "DB_CONNECTION_STRING"},
	"data.source":        {"DATA_SOURCE"},
}

// loadConfig layers flags (already bound to v), INSIGHTSACK_* and legacy env
// variables, the optional config file and the defaults, in that order. A .env
// file in the working directory is read into the environment first.
func loadConfig(v *viper.Viper, cfgFile string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(_ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, aliases := range _ENV_ALIASES {
		envs := append([]string{_ENV_PREFIX + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, aliases...)
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.mode", cfg.Server.Mode)
	v.SetDefault("server.cors_origin", cfg.Server.CorsOrigin)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("db.uri", cfg.DB.URI)
	v.SetDefault("db.database", cfg.DB.Database)
	v.SetDefault("db.collection", cfg.DB.Collection)
	v.SetDefault("data.source", cfg.Data.Source)
	v.SetDefault("data.reload_on_start", cfg.Data.ReloadOnStart)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("rate_limit.rps", cfg.RateLimit.RPS)
	v.SetDefault("rate_limit.burst", cfg.RateLimit.Burst)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)
	v.SetDefault("cache.cleanup_interval", cfg.Cache.CleanupInterval)
}
