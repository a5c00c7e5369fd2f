// Command ingest loads financial reports from a folder into the vector
// store. With -daemon it stays up and serves ingest requests over NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/FinleyAI/finley-mvp/engine/chunk"
	"github.com/FinleyAI/finley-mvp/engine/config"
	"github.com/FinleyAI/finley-mvp/engine/domain"
	"github.com/FinleyAI/finley-mvp/engine/ingest"
	"github.com/FinleyAI/finley-mvp/engine/loader"
	"github.com/FinleyAI/finley-mvp/engine/semantic"
	"github.com/FinleyAI/finley-mvp/pkg/fn"
	"github.com/FinleyAI/finley-mvp/pkg/metrics"
	"github.com/FinleyAI/finley-mvp/pkg/ollama"
)

var met = metrics.New()

func main() {
	var (
		folder      = flag.String("folder", "", "folder of reports to ingest (one-shot mode)")
		daemon      = flag.Bool("daemon", false, "serve ingest requests over NATS")
		metricsPort = flag.Int("metrics-port", 9091, "port for the /metrics endpoint in daemon mode")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	if *folder == "" && !*daemon {
		fmt.Fprintln(os.Stderr, "usage: ingest -folder <dir> | ingest -daemon")
		os.Exit(2)
	}

	if err := run(cfg, *folder, *daemon, *metricsPort, logger); err != nil {
		logger.Error("ingest exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, folder string, daemon bool, metricsPort int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	chunker, err := chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}

	svc := ingest.New(ingest.Deps{
		Loader:   loader.NewFolderLoader(logger),
		Chunker:  chunker,
		Embedder: ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel),
		Store:    store,
		Logger:   logger,
	})

	if folder != "" {
		result, err := svc.Ingest(ctx, folder)
		if err != nil {
			return err
		}
		logger.Info("ingest complete",
			"documents", result.Documents,
			"chunks", result.ChunksStored,
			"errors", len(result.Errors),
		)
		for _, e := range result.Errors {
			logger.Warn("document failed", "source", e.Source, "err", e.Err)
		}
		if !daemon {
			if result.Failed() {
				os.Exit(3)
			}
			return nil
		}
	}

	// Daemon mode: serve ingest requests over NATS and expose metrics.
	met.CollectRuntime("finley_ingest", 15*time.Second)
	met.ServeAsync(metricsPort)

	if cfg.NATSURL == "" {
		return domain.ConfigErrorf("NATS_URL required for daemon mode")
	}
	nc, err := connectNATS(ctx, cfg.NATSURL, logger)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := ingest.StartConsumer(nc, svc, logger)
	if err != nil {
		return fmt.Errorf("ingest consumer: %w", err)
	}
	defer sub.Unsubscribe()

	logger.Info("ingest daemon running", "subject", ingest.Subject, "metrics_port", metricsPort)
	<-ctx.Done()
	return nil
}

// connectNATS retries the initial connection so the daemon survives being
// started before the broker.
func connectNATS(ctx context.Context, url string, logger *slog.Logger) (*nats.Conn, error) {
	result := fn.Retry(ctx, fn.RetryOpts{
		MaxAttempts: 5,
		InitialWait: time.Second,
		MaxWait:     15 * time.Second,
		Jitter:      true,
	}, func(context.Context) fn.Result[*nats.Conn] {
		nc, err := nats.Connect(url)
		if err != nil {
			logger.Warn("nats connect failed, retrying", "err", err)
		}
		return fn.FromPair(nc, err)
	})
	nc, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return nc, nil
}

func buildStore(cfg config.Config) (semantic.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreQdrant:
		return semantic.NewQdrant(cfg.QdrantURL, cfg.Collection)
	case config.StoreBolt:
		return semantic.NewBolt(cfg.BoltPath)
	case config.StoreMemory:
		return semantic.NewMemory(), nil
	default:
		return nil, domain.ConfigErrorf("unknown store backend %q", cfg.StoreBackend)
	}
}
