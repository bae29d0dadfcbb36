package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration knobs for the MDM engine.
type Config struct {
	HTTP struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"http"`
	Log struct {
		Level string `mapstructure:"level"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`
	Storage struct {
		Driver string `mapstructure:"driver"`
		Path   string `mapstructure:"path"`
	} `mapstructure:"storage"`
	Push struct {
		BaseURL        string        `mapstructure:"base_url"`
		Token          string        `mapstructure:"token"`
		RequestTimeout time.Duration `mapstructure:"request_timeout"`
	} `mapstructure:"push"`
	Signing struct {
		Certificate string `mapstructure:"certificate"`
		PrivateKey  string `mapstructure:"private_key"`
	} `mapstructure:"signing"`
	Enrollment struct {
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"enrollment"`
	Server struct {
		PublicURL       string        `mapstructure:"public_url"`
		Topic           string        `mapstructure:"topic"`
		CheckinInterval time.Duration `mapstructure:"checkin_interval"`
		SharedSecret    string        `mapstructure:"shared_secret"`
	} `mapstructure:"server"`
	Auth struct {
		Enabled   bool   `mapstructure:"enabled"`
		Username  string `mapstructure:"username"`
		Password  string `mapstructure:"password"`
		JWTSecret string `mapstructure:"jwt_secret"`
	} `mapstructure:"auth"`
}

// Load reads the configuration from disk/environment using Viper.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("altrii_mdm")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, the engine can run on env vars and defaults
		// alone. With SetConfigFile the miss surfaces as a path error rather
		// than viper's own not-found type.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)

	v.SetDefault("storage.driver", "bolt")
	v.SetDefault("storage.path", "./data/mdm.db")

	v.SetDefault("push.base_url", "http://127.0.0.1:8080")
	v.SetDefault("push.request_timeout", "10s")

	v.SetDefault("enrollment.ttl", "24h")

	v.SetDefault("server.public_url", "https://mdm.altrii.com")
	v.SetDefault("server.topic", "com.apple.mgmt.External.altrii")
	v.SetDefault("server.checkin_interval", "15m")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "admin123")
	v.SetDefault("auth.jwt_secret", "change-me-secret")
}
