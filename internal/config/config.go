package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type StoreConfig struct {
	Driver      string
	DatabaseURL string
	MaxConns    int32
}

type LogConfig struct {
	Level string
	JSON  bool
}

type APIConfig struct {
	Addr      string
	Store     StoreConfig
	Log       LogConfig
	RateLimit float64
	RateBurst int
}

type WorkerConfig struct {
	Store         StoreConfig
	Log           LogConfig
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RegenEvery    time.Duration
	SweepEvery    time.Duration
	RunOnce       bool
}

type CLIConfig struct {
	APIBaseURL string
	Log        LogConfig
}

// loadDotEnv reads a .env file when present; real environment variables win.
func loadDotEnv() {
	_ = godotenv.Load()
}

func LoadAPIFromEnv() (APIConfig, error) {
	loadDotEnv()
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("STARPETS_API_ADDR", ":8080")
	}

	store, err := loadStore()
	cfg := APIConfig{
		Addr:      addr,
		Store:     store,
		Log:       loadLog(),
		RateLimit: envFloatDefault("STARPETS_RATE_LIMIT", 5),
		RateBurst: envIntDefault("STARPETS_RATE_BURST", 10),
	}
	if err != nil {
		return cfg, err
	}
	if cfg.RateLimit <= 0 {
		return cfg, fmt.Errorf("STARPETS_RATE_LIMIT must be > 0")
	}
	if cfg.RateBurst < 1 {
		cfg.RateBurst = 1
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	loadDotEnv()
	store, err := loadStore()
	cfg := WorkerConfig{
		Store:         store,
		Log:           loadLog(),
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envIntDefault("REDIS_DB", 0),
		RegenEvery:    envDurationDefault("STARPETS_REGEN_EVERY", time.Hour),
		SweepEvery:    envDurationDefault("STARPETS_SWEEP_EVERY", time.Minute),
		RunOnce:       envBoolDefault("STARPETS_WORKER_RUN_ONCE", false),
	}
	if err != nil {
		return cfg, err
	}
	if cfg.RegenEvery < time.Hour {
		return cfg, fmt.Errorf("STARPETS_REGEN_EVERY must be at least 1h, got %s", cfg.RegenEvery)
	}
	if cfg.SweepEvery <= 0 {
		return cfg, fmt.Errorf("STARPETS_SWEEP_EVERY must be > 0")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	loadDotEnv()
	return CLIConfig{
		APIBaseURL: envDefault("STARPETS_API_URL", "http://localhost:8080"),
		Log:        LogConfig{Level: envDefault("STARPETS_LOG_LEVEL", "warn"), JSON: envBoolDefault("STARPETS_LOG_JSON", false)},
	}
}

// LoadStoreFromEnv is used by tools that open the store directly.
func LoadStoreFromEnv() (StoreConfig, error) {
	loadDotEnv()
	return loadStore()
}

func loadStore() (StoreConfig, error) {
	cfg := StoreConfig{
		Driver:      strings.ToLower(envDefault("STARPETS_STORE", StoreDriverPostgres)),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MaxConns:    int32(envIntDefault("STARPETS_DB_MAX_CONNS", 20)),
	}
	switch cfg.Driver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return cfg, fmt.Errorf("STARPETS_STORE must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, cfg.Driver)
	}
	return cfg, nil
}

func loadLog() LogConfig {
	return LogConfig{
		Level: envDefault("STARPETS_LOG_LEVEL", "info"),
		JSON:  envBoolDefault("STARPETS_LOG_JSON", true),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
