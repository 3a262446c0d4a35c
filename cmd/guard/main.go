package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"channel-guard/internal/guard"
	"channel-guard/internal/lnd"
	"channel-guard/internal/observability"
	"channel-guard/internal/scid"
	"channel-guard/internal/storage"
	chstore "channel-guard/internal/storage/clickhouse"
	filestore "channel-guard/internal/storage/file"
	"channel-guard/internal/storage/memory"
	"channel-guard/internal/storage/migrations"
	pgstore "channel-guard/internal/storage/postgres"
)

func main() {
	lndRest := flag.String("lnd-rest", "https://localhost:8080", "LND REST API base URL")
	macaroonHex := flag.String("macaroon-hex", "", "Hex-encoded admin macaroon (empty for unauthenticated nodes)")
	lowerThreshold := flag.Float64("lower-threshold", guard.DefaultLowerThreshold, "Liquidity ratio below which the fee blocker arms")
	upperThreshold := flag.Float64("upper-threshold", guard.DefaultUpperThreshold, "Liquidity ratio above which the fee blocker lifts")
	liquidityFloor := flag.Float64("liquidity-floor", guard.DefaultLiquidityFloor, "Capacity fraction reserved from forwarding")
	blockerPPM := flag.Int64("blocker-ppm", guard.DefaultBlockerPPM, "Fee rate applied while blocked")
	pollInterval := flag.Duration("poll-interval", guard.DefaultPollInterval, "Base delay between polls")
	htlcChangeThreshold := flag.Float64("htlc-change-threshold", guard.DefaultHTLCChangeThreshold, "Minimum ratio movement before an HTLC-only update")
	stateFile := flag.String("state-file", "guard_state.json", "Path of the JSON state file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for state (overrides --state-file)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the observation archive (empty to disable)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory state storage (state lost on restart)")
	subscribeEvents := flag.Bool("subscribe-events", false, "Subscribe to channel events to react faster than the poll interval")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[guard] ", log.LstdFlags)

	if flag.NArg() != 1 {
		logger.Fatalf("Usage: %s [flags] <chan_id>  (compact id or BLOCKxTXxOUTPUT)", os.Args[0])
	}

	chanID, err := scid.Normalize(flag.Arg(0))
	if err != nil {
		logger.Fatalf("Invalid channel id %q: %v", flag.Arg(0), err)
	}

	cfg := guard.Config{
		ChanID:              chanID,
		LowerThreshold:      *lowerThreshold,
		UpperThreshold:      *upperThreshold,
		LiquidityFloor:      *liquidityFloor,
		BlockerPPM:          *blockerPPM,
		PollInterval:        *pollInterval,
		HTLCChangeThreshold: *htlcChangeThreshold,
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = run(ctx, logger, cfg, *lndRest, *macaroonHex, *stateFile, *postgresDSN, *clickhouseDSN, *useMemory, *subscribeEvents)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run wires the stores and the node client together and hands control to
// the supervisor.
func run(ctx context.Context, logger *log.Logger, cfg guard.Config, lndRest, macaroonHex, stateFile, postgresDSN, clickhouseDSN string, useMemory, subscribeEvents bool) error {
	client := lnd.NewRESTClient(lndRest, lnd.WithMacaroonHex(macaroonHex))

	// State store: in-memory, Postgres, or the default JSON file
	var states storage.StateStore
	switch {
	case useMemory:
		logger.Println("Using in-memory state storage")
		states = memory.NewStateStore()
	case postgresDSN != "":
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("apply postgres migrations: %w", err)
		}
		states = pgstore.NewStateStore(pool)
	default:
		logger.Printf("Persisting state to %s", stateFile)
		states = filestore.NewStateStore(stateFile, logger)
	}

	// Observation archive, optional
	var observations storage.ObservationStore
	if clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, clickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return fmt.Errorf("apply clickhouse migrations: %w", err)
		}
		observations = chstore.NewObservationStore(conn)
	}

	// Channel event stream, optional
	var events <-chan struct{}
	if subscribeEvents {
		watcher, err := lnd.NewChannelEventWatcher(ctx, lndRest, macaroonHex, nil, logger)
		if err != nil {
			return fmt.Errorf("subscribe to channel events: %w", err)
		}
		defer watcher.Close()
		events = watcher.Events()
	}

	supervisor := guard.NewSupervisor(guard.SupervisorOptions{
		Config:       cfg,
		Client:       client,
		States:       states,
		Observations: observations,
		Events:       events,
		Logger:       logger,
	})

	return supervisor.Run(ctx)
}
