package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/math-marauders-go/internal/api"
	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/run"
	"github.com/MJE43/math-marauders-go/internal/store"
)

const (
	appConfigDirName = "math-marauders"
	dbName           = "marauders.db"
)

type serverConfig struct {
	host         string
	port         int
	dbPath       string
	tuningPath   string
	token        string
	startingArmy int
	maxSessions  int
	storeRetries uint64
	storeBackoff time.Duration
}

func main() {
	var (
		cfg     serverConfig
		retries int
		debug   bool
	)
	flag.StringVar(&cfg.host, "host", envString("MARAUDERS_HOST", "127.0.0.1"), "listen host")
	flag.IntVar(&cfg.port, "port", envInt("MARAUDERS_PORT", 8087), "listen port")
	flag.StringVar(&cfg.dbPath, "db", envString("MARAUDERS_DB", ""), "SQLite database path (empty: user config dir, \"-\": no persistence)")
	flag.StringVar(&cfg.tuningPath, "tuning", envString("MARAUDERS_TUNING", ""), "YAML tuning file (empty: built-in defaults)")
	flag.StringVar(&cfg.token, "token", envString("MARAUDERS_TOKEN", ""), "bearer token required on /api/v1 (empty: no auth)")
	flag.IntVar(&cfg.startingArmy, "starting-army", envInt("MARAUDERS_STARTING_ARMY", 0), "units each run starts with (0: tuning value)")
	flag.IntVar(&cfg.maxSessions, "max-sessions", envInt("MARAUDERS_MAX_SESSIONS", api.DefaultMaxSessions), "live runs kept in memory before the least recently used is evicted")
	flag.IntVar(&retries, "store-retries", envInt("MARAUDERS_STORE_RETRIES", 5), "retries for a write while the database is busy")
	flag.DurationVar(&cfg.storeBackoff, "store-backoff", 20*time.Millisecond, "initial backoff between busy retries")
	flag.BoolVar(&debug, "debug", false, "log run telemetry")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, TimeFormat: time.Kitchen})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	log.SetDefault(logger)

	if cfg.startingArmy < 0 || cfg.maxSessions < 1 || retries < 0 {
		logger.Fatal("invalid flags: -starting-army and -store-retries must be >= 0, -max-sessions >= 1")
	}
	cfg.storeRetries = uint64(retries)

	if err := serve(cfg, logger); err != nil {
		logger.Fatal("server exited", "err", err)
	}
}

func serve(cfg serverConfig, logger *log.Logger) (err error) {
	tuning, err := config.Load(cfg.tuningPath)
	if err != nil {
		return err
	}

	var st *store.Store
	if dbPath := cfg.dbPath; dbPath != "-" {
		if dbPath == "" {
			if dbPath, err = defaultDBPath(); err != nil {
				return err
			}
		}
		st, err = store.New(dbPath,
			store.WithLogger(logger.WithPrefix("store")),
			store.WithRetry(cfg.storeRetries, cfg.storeBackoff),
		)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		logger.Info("store ready", "path", dbPath)
		defer func() { err = multierr.Append(err, st.Close()) }()
	}

	opts := []api.Option{
		api.WithToken(cfg.token),
		api.WithLogger(logger.WithPrefix("api")),
		api.WithMaxSessions(cfg.maxSessions),
	}
	if cfg.startingArmy > 0 {
		opts = append(opts, api.WithRunOptions(run.WithStartingArmy(cfg.startingArmy)))
	}
	server := api.NewServer(tuning, st, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, fmt.Sprintf("%s:%d", cfg.host, cfg.port))
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return nil
	})
	return g.Wait()
}

func defaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	dir = filepath.Join(dir, appConfigDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, dbName), nil
}

func envInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		var v int
		if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
			return v
		}
	}
	return def
}

func envString(k, def string) string {
	if s := os.Getenv(k); s != "" {
		return s
	}
	return def
}
