package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmax-ai/sqlperf/pkg/api"
	"github.com/rmax-ai/sqlperf/pkg/scenario"
	"github.com/rmax-ai/sqlperf/pkg/store"
	redisstore "github.com/rmax-ai/sqlperf/pkg/store/redis"
	"github.com/rmax-ai/sqlperf/web"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"sqlperf-d"}`)

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":%q}`+"\n", err.Error())
		os.Exit(1)
	}

	st, err := store.NewStore(cfg.Dialect, cfg.DSN)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_store","error":%q}`+"\n", err.Error())
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"store_initialized","driver":%q}`+"\n", cfg.Dialect)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := st.Seed(ctx, store.SeedCounts{Orders: cfg.SeedOrders, Employees: cfg.SeedEmployees}); err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_seed_store","error":%q}`+"\n", err.Error())
		os.Exit(1)
	}

	registry, err := scenario.NewRegistry()
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_load_catalog","error":%q}`+"\n", err.Error())
		os.Exit(1)
	}

	locker, closeLocker, err := buildLocker(ctx, cfg, st)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_init_run_lock","error":%q}`+"\n", err.Error())
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"run_lock_configured","mode":%q}`+"\n", cfg.RunLock)

	executor := scenario.NewExecutor(st, registry, scenario.Options{
		Delays:         cfg.Delays,
		StrictVariants: cfg.StrictVariants,
		Locker:         locker,
	})

	srv := api.NewServer(executor, cfg.Addr)
	if cfg.TLSCert != "" {
		srv.SetTLS(cfg.TLSCert, cfg.TLSKey)
	}
	switch cfg.WebAssetsMode {
	case "embedded":
		assets, err := web.Assets()
		if err != nil {
			fmt.Printf(`{"level":"error","msg":"failed_to_load_web_assets","error":%q}`+"\n", err.Error())
		} else {
			srv.SetStaticFS(assets)
		}
	case "fs":
		srv.SetStaticFS(os.DirFS(cfg.WebDir))
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":%q}`+"\n", sig.String())
	case err := <-serverErr:
		if err != nil {
			fmt.Printf(`{"level":"error","msg":"server_failed","error":%q}`+"\n", err.Error())
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stop_server","error":%q}`+"\n", err.Error())
	}

	closeLocker()
	if err := st.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_store","error":%q}`+"\n", err.Error())
	} else {
		fmt.Println(`{"level":"info","msg":"store_closed"}`)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}

// buildLocker returns the run serializer for cfg.RunLock and a cleanup func.
func buildLocker(ctx context.Context, cfg Config, st *store.Store) (scenario.Locker, func(), error) {
	noop := func() {}
	switch cfg.RunLock {
	case "local":
		return scenario.NewLocalLocker(), noop, nil
	case "sqlite":
		return scenario.NewLeaseLocker(st, cfg.LockWait), noop, nil
	case "redis":
		rdb, err := redisstore.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, noop, err
		}
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				fmt.Printf(`{"level":"error","msg":"failed_to_close_redis","error":%q}`+"\n", err.Error())
			}
		}
		return scenario.NewLeaseLocker(redisstore.NewRedisLeaseStore(rdb), cfg.LockWait), closeFn, nil
	default:
		return nil, noop, nil
	}
}
