package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rmax-ai/sqlperf/pkg/scenario"
	"github.com/rmax-ai/sqlperf/pkg/store"
)

const (
	defaultAddr          = "127.0.0.1:8091"
	defaultRedisAddr     = "127.0.0.1:6379"
	defaultLockWait      = 30 * time.Second
	defaultRunLock       = "none"
	defaultWebAssetsMode = "embedded"
	defaultSeedOrders    = 50000
	defaultSeedEmployees = 200
)

type Config struct {
	Dialect        store.Dialect
	DSN            string
	Addr           string
	Delays         scenario.Delays
	StrictVariants bool
	RunLock        string
	LockWait       time.Duration
	RedisAddr      string
	SeedOrders     int
	SeedEmployees  int
	WebAssetsMode  string
	WebDir         string
	TLSCert        string
	TLSKey         string
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaults := scenario.DefaultDelays()
	driver := envOrDefault("SQLPERF_DRIVER", string(store.DialectSQLite))
	dsn := envOrDefault("SQLPERF_DSN", filepath.Join(cwd, "sqlperf.db"))
	addr := addrFromEnv(defaultAddr)
	runLock := envOrDefault("SQLPERF_RUN_LOCK", defaultRunLock)
	redisAddr := envOrDefault("SQLPERF_REDIS_ADDR", defaultRedisAddr)
	lockWait := defaultLockWait
	if lockWaitEnv := os.Getenv("SQLPERF_LOCK_WAIT"); lockWaitEnv != "" {
		parsed, err := time.ParseDuration(lockWaitEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SQLPERF_LOCK_WAIT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("SQLPERF_LOCK_WAIT must be positive")
		}
		lockWait = parsed
	}
	webAssetsMode := envOrDefault("SQLPERF_WEB_ASSETS_MODE", defaultWebAssetsMode)
	webDir := os.Getenv("SQLPERF_WEB_DIR")

	flagSet := flag.NewFlagSet("sqlperf-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDriver := flagSet.String("driver", driver, "database driver: sqlite3|postgres")
	flagDSN := flagSet.String("dsn", dsn, "database DSN (SQLite path or Postgres URL)")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagRowDelay := flagSet.Duration("row-delay", defaults.PerRow, "per-row delay for cursor scenarios")
	flagSlowDelay := flagSet.Duration("slow-delay", defaults.SlowQuery, "extra delay added to slow SQL variants")
	flagStrict := flagSet.Bool("strict-variants", false, "reject variant tags other than slow|optimized")
	flagRunLock := flagSet.String("run-lock", runLock, "run serialization: none|local|sqlite|redis")
	flagLockWait := flagSet.String("lock-wait", lockWait.String(), "max time to wait for a busy scenario")
	flagRedis := flagSet.String("redis-addr", redisAddr, "redis address when run-lock=redis")
	flagOrders := flagSet.Int("seed-orders", defaultSeedOrders, "orders rows to seed into an empty database")
	flagEmployees := flagSet.Int("seed-employees", defaultSeedEmployees, "employee rows to seed into an empty database")
	flagWebAssets := flagSet.String("web-assets", webAssetsMode, "web assets mode: embedded|fs|off")
	flagWebDir := flagSet.String("web-dir", webDir, "web assets directory when web-assets=fs")
	flagTLSCert := flagSet.String("tls-cert", os.Getenv("SQLPERF_TLS_CERT"), "TLS certificate file")
	flagTLSKey := flagSet.String("tls-key", os.Getenv("SQLPERF_TLS_KEY"), "TLS key file")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	dialect, err := store.ParseDialect(*flagDriver)
	if err != nil {
		return Config{}, err
	}

	lockWaitParsed, err := time.ParseDuration(*flagLockWait)
	if err != nil {
		return Config{}, fmt.Errorf("invalid lock wait: %w", err)
	}
	if lockWaitParsed <= 0 {
		return Config{}, errors.New("lock wait must be positive")
	}

	dsnValue := strings.TrimSpace(*flagDSN)
	if dialect == store.DialectSQLite {
		dsnValue = resolvePath(dsnValue, cwd)
	}

	config := Config{
		Dialect:        dialect,
		DSN:            dsnValue,
		Addr:           strings.TrimSpace(*flagAddr),
		Delays:         scenario.Delays{PerRow: *flagRowDelay, SlowQuery: *flagSlowDelay},
		StrictVariants: *flagStrict,
		RunLock:        strings.ToLower(strings.TrimSpace(*flagRunLock)),
		LockWait:       lockWaitParsed,
		RedisAddr:      strings.TrimSpace(*flagRedis),
		SeedOrders:     *flagOrders,
		SeedEmployees:  *flagEmployees,
		WebAssetsMode:  normalizeWebAssetsMode(*flagWebAssets),
		WebDir:         strings.TrimSpace(*flagWebDir),
		TLSCert:        strings.TrimSpace(*flagTLSCert),
		TLSKey:         strings.TrimSpace(*flagTLSKey),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.DSN == "" {
		return Config{}, errors.New("dsn cannot be empty")
	}
	if config.Delays.PerRow < 0 || config.Delays.SlowQuery < 0 {
		return Config{}, errors.New("delays cannot be negative")
	}
	if config.SeedOrders < 0 || config.SeedEmployees < 0 {
		return Config{}, errors.New("seed counts cannot be negative")
	}

	switch config.RunLock {
	case "none", "local", "sqlite":
	case "redis":
		if config.RedisAddr == "" {
			return Config{}, errors.New("run-lock=redis requires redis-addr")
		}
	default:
		return Config{}, fmt.Errorf("unsupported run-lock mode: %s", config.RunLock)
	}

	if (config.TLSCert == "") != (config.TLSKey == "") {
		return Config{}, errors.New("tls-cert and tls-key must be set together")
	}

	if config.WebAssetsMode == "fs" {
		if config.WebDir == "" {
			return Config{}, errors.New("web-assets=fs requires web-dir")
		}
		config.WebDir = resolvePath(config.WebDir, cwd)
	}

	if config.WebAssetsMode != "embedded" && config.WebAssetsMode != "fs" && config.WebAssetsMode != "off" {
		return Config{}, fmt.Errorf("unsupported web-assets mode: %s", config.WebAssetsMode)
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("SQLPERF_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("SQLPERF_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

func normalizeWebAssetsMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "embedded":
		return "embedded"
	case "fs", "dir", "directory":
		return "fs"
	case "off", "disabled", "none":
		return "off"
	default:
		return strings.ToLower(strings.TrimSpace(mode))
	}
}
