// Circd is the circulation orchestration daemon: it fronts an ILS
// backend with a normalized staff-facing HTTP API for checkout,
// checkin, holds, item maintenance, and catalog summaries.
//
// Configuration comes from a YAML file plus CIRCD_* environment
// overrides. See internal/config for the full tree.
//
// Usage:
//
//	# Start the daemon with a config file
//	circd -config /etc/circd/config.yaml
//
//	# Configure via environment
//	CIRCD_ILS_BASE_URL=https://ils.example.org/osrf-gateway-v1 circd
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

	"go.uber.org/zap"

	"github.com/fenwicklabs/circd/internal/api"
	"github.com/fenwicklabs/circd/internal/audit"
	"github.com/fenwicklabs/circd/internal/catalog"
	"github.com/fenwicklabs/circd/internal/circ"
	"github.com/fenwicklabs/circd/internal/config"
	"github.com/fenwicklabs/circd/internal/gateway"
	"github.com/fenwicklabs/circd/internal/holds"
	"github.com/fenwicklabs/circd/internal/idempotency"
	"github.com/fenwicklabs/circd/internal/logging"
	"github.com/fenwicklabs/circd/internal/osrf"
	"github.com/fenwicklabs/circd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  circd            Start the circulation daemon\n")
			fmt.Fprintf(os.Stderr, "  circd version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("circd by Fenwick Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run builds the service graph and blocks until the context ends.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	logger.Info("starting circd",
		zap.String("addr", cfg.Server.Addr),
		zap.String("ils", cfg.ILS.BaseURL),
		zap.String("version", version))

	// The meter provider feeds the default Prometheus registry, which
	// the HTTP server exposes on /metrics.
	metrics, err := telemetry.Setup("circd", version)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		_ = metrics.Shutdown(context.Background())
	}()

	transport, err := gateway.NewHTTPTransport(gateway.HTTPTransportConfig{
		BaseURL:        cfg.ILS.BaseURL,
		Username:       cfg.ILS.Username,
		Password:       cfg.ILS.Password.Value(),
		Timeout:        cfg.ILS.CallTimeout.Duration(),
		RequestsPerSec: cfg.ILS.RateLimit,
		Burst:          cfg.ILS.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating ILS transport: %w", err)
	}
	gw := gateway.New(transport, logger.Named("gateway"))
	reg := osrf.DefaultRegistry()

	sink := audit.NewBufferedSink(
		audit.NewLogStore(logger),
		logger.Named("audit"),
		cfg.Audit.BufferSize,
	)
	defer sink.Close()

	cat := catalog.NewService(gw, reg, catalog.Config{
		OrgTTL:     cfg.Cache.TTL.Duration(),
		ItemTTL:    cfg.Cache.TTL.Duration(),
		MaxEntries: cfg.Cache.MaxEntries,
	}, logger.Named("catalog"))

	orchestrator := circ.New(gw, reg, cat, sink, logger.Named("circ"))
	holdMgr := holds.New(gw, reg, sink, logger.Named("holds"))
	guard := idempotency.NewGuard(cfg.Idempotency.TTL.Duration(), cfg.Idempotency.MaxEntries)

	srv := api.NewServer(api.Deps{
		Circ:    orchestrator,
		Holds:   holdMgr,
		Catalog: cat,
		Guard:   guard,
	}, logger.Named("http"), api.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration(),
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown was not clean", zap.Error(err))
		return err
	}
	return nil
}
