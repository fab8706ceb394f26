package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env     string
		AppName string
		Build   string
		Debug   bool

		API struct {
			BaseURL string
			Timeout time.Duration
		}

		Session struct {
			ExpirySkew time.Duration
		}

		Storage struct {
			Path string
		}

		RollbarToken string
	}
)

// NewConfig loads the console configuration from defaults, the optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Merenda SEMED")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", false)
	v.SetDefault("api.baseURL", "http://localhost:8000")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("session.expirySkew", 30*time.Second)
	v.SetDefault("storage.path", defaultStoragePath())
	v.SetDefault("rollbar.token", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
		v.SetDefault("debug", true)
	case "DEV":
		v.SetDefault("debug", true)
	case "TEST":
		v.SetDefault("storage.path", ":memory:")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		RollbarToken: v.GetString("rollbar.token"),
	}
	conf.API.BaseURL = strings.TrimRight(v.GetString("api.baseURL"), "/")
	conf.API.Timeout = v.GetDuration("api.timeout")
	conf.Session.ExpirySkew = v.GetDuration("session.expirySkew")
	conf.Storage.Path = v.GetString("storage.path")
	return conf
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".merenda", "state.db")
	}
	return filepath.Join(home, ".merenda", "state.db")
}
