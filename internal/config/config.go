package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
)

type Config struct {
	Environment     string
	LogLevel        string
	Port            string
	DatasetPath     string
	LayoutPath      string
	FrameCacheSize  int
	FetchTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Load reads .env (when present) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // loads .env
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Environment:    envOr("ENVIRONMENT", "local"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		Port:           envOr("PORT", "5006"),
		DatasetPath:    os.Getenv("DATASET_PATH"),
		LayoutPath:     os.Getenv("LAYOUT_PATH"),
		AllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	var err error
	if cfg.FrameCacheSize, err = envInt("FRAME_CACHE_SIZE", 64); err != nil {
		return Config{}, err
	}
	if cfg.FetchTimeout, err = envDuration("DATASET_FETCH_TIMEOUT", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownTimeout, err = envDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Addr() string { return ":" + c.Port }

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, goerr.New("must be a positive integer", goerr.V("key", k), goerr.V("value", v))
	}
	return n, nil
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, goerr.New("must be a positive duration", goerr.V("key", k), goerr.V("value", v))
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
