// Package main implements the Finley API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/FinleyAI/finley-mvp/engine/audit"
	"github.com/FinleyAI/finley-mvp/engine/chunk"
	"github.com/FinleyAI/finley-mvp/engine/config"
	"github.com/FinleyAI/finley-mvp/engine/domain"
	"github.com/FinleyAI/finley-mvp/engine/ingest"
	"github.com/FinleyAI/finley-mvp/engine/loader"
	"github.com/FinleyAI/finley-mvp/engine/rag"
	"github.com/FinleyAI/finley-mvp/engine/semantic"
	"github.com/FinleyAI/finley-mvp/pkg/groq"
	"github.com/FinleyAI/finley-mvp/pkg/metrics"
	"github.com/FinleyAI/finley-mvp/pkg/mid"
	"github.com/FinleyAI/finley-mvp/pkg/ollama"
	"github.com/FinleyAI/finley-mvp/pkg/resilience"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	met := metrics.New()
	met.CollectRuntime("finley_api", 15*time.Second)

	// --- Vector store ---
	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// --- Model clients ---
	embedder := ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel)
	model, err := buildChatModel(cfg)
	if err != nil {
		return err
	}

	// --- Audit sinks ---
	fileRec, err := audit.NewFileRecorder(cfg.OutputDir)
	if err != nil {
		return err
	}
	sinks := []audit.Recorder{fileRec}

	var nc *nats.Conn
	if cfg.NATSURL != "" {
		nc, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Close()
		sinks = append(sinks, audit.NewNATSRecorder(nc))
	}
	recorder := audit.NewMulti(logger, sinks...)

	// --- Query service ---
	ragSvc := rag.New(embedder, store, model, recorder, rag.Options{
		TopK:          cfg.TopK,
		SearchTimeout: cfg.SearchTimeout,
		ModelTimeout:  cfg.ModelTimeout,
	}, logger)

	// --- Ingest service ---
	chunker, err := chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return err
	}
	ingestSvc := ingest.New(ingest.Deps{
		Loader:   loader.NewFolderLoader(logger),
		Chunker:  chunker,
		Embedder: embedder,
		Store:    store,
		Logger:   logger,
	})

	if nc != nil {
		sub, err := ingest.StartConsumer(nc, ingestSvc, logger)
		if err != nil {
			return fmt.Errorf("ingest consumer: %w", err)
		}
		defer sub.Unsubscribe()
	}

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/ask", handleAsk(ragSvc, met, logger))
	mux.HandleFunc("POST /api/ingest", handleIngest(ingestSvc, met, logger))
	mux.Handle("GET /metrics", met.Handler())

	askLimiter := resilience.NewLimiter(resilience.LimiterOpts{Rate: 10, Burst: 20})
	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.OTel("finley-api"),
		mid.CORS(cfg.CORSOrigin),
		mid.RateLimit(askLimiter),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port, "store", cfg.StoreBackend, "provider", cfg.ChatProvider)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
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

func buildChatModel(cfg config.Config) (rag.ChatModel, error) {
	switch cfg.ChatProvider {
	case config.ProviderGroq:
		return groq.New("", cfg.GroqAPIKey, cfg.ChatModel, 0.2, cfg.ModelTimeout), nil
	case config.ProviderOllama:
		return ollama.NewChatClient(cfg.OllamaURL, cfg.ChatModel, 0.2, cfg.ModelTimeout), nil
	default:
		return nil, domain.ConfigErrorf("unknown chat provider %q", cfg.ChatProvider)
	}
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the JSON response for POST /api/ask.
type AskResponse struct {
	Answer   string `json:"answer"`
	Grounded bool   `json:"grounded"`
}

func handleAsk(svc *rag.Service, met *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	questions := met.Counter("finley_api_questions_total", "Questions received")
	grounded := met.Counter("finley_api_grounded_total", "Questions answered from evidence")
	fallbacks := met.Counter("finley_api_fallback_total", "Questions answered with the fallback")
	failures := met.Counter("finley_api_ask_errors_total", "Questions that failed")
	duration := met.Histogram("finley_api_ask_duration_seconds", "Ask latency", nil)

	return func(w http.ResponseWriter, r *http.Request) {
		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		questions.Inc()
		start := time.Now()
		answer, err := svc.Ask(r.Context(), req.Question)
		duration.Since(start)

		if err != nil {
			var verr *domain.ValidationError
			switch {
			case errors.As(err, &verr):
				http.Error(w, fmt.Sprintf(`{"error":%q}`, verr.Error()), http.StatusBadRequest)
			case errors.Is(err, resilience.ErrCircuitOpen):
				failures.Inc()
				http.Error(w, `{"error":"model temporarily unavailable"}`, http.StatusServiceUnavailable)
			default:
				failures.Inc()
				logger.Error("ask failed", "err", err)
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
			return
		}

		if answer.Grounded {
			grounded.Inc()
		} else {
			fallbacks.Inc()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AskResponse{Answer: answer.Text, Grounded: answer.Grounded})
	}
}

// IngestRequest is the JSON body for POST /api/ingest.
type IngestRequest struct {
	Folder string `json:"folder"`
}

func handleIngest(svc *ingest.Service, met *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	runs := met.Counter("finley_api_ingest_runs_total", "Ingest runs started")
	chunks := met.Counter("finley_api_ingest_chunks_total", "Chunks stored across runs")
	docErrors := met.Counter("finley_api_ingest_doc_errors_total", "Documents that failed to ingest")

	return func(w http.ResponseWriter, r *http.Request) {
		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Folder == "" {
			http.Error(w, `{"error":"folder is required"}`, http.StatusBadRequest)
			return
		}

		runs.Inc()
		result, err := svc.Ingest(r.Context(), req.Folder)
		if err != nil {
			logger.Error("ingest failed", "folder", req.Folder, "err", err)
			http.Error(w, `{"error":"ingest failed"}`, http.StatusInternalServerError)
			return
		}
		chunks.Add(int64(result.ChunksStored))
		docErrors.Add(int64(len(result.Errors)))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
