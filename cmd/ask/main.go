// Command ask is an interactive terminal loop for querying ingested reports.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/FinleyAI/finley-mvp/engine/audit"
	"github.com/FinleyAI/finley-mvp/engine/config"
	"github.com/FinleyAI/finley-mvp/engine/domain"
	"github.com/FinleyAI/finley-mvp/engine/rag"
	"github.com/FinleyAI/finley-mvp/engine/semantic"
	"github.com/FinleyAI/finley-mvp/pkg/groq"
	"github.com/FinleyAI/finley-mvp/pkg/ollama"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder, err := audit.NewFileRecorder(cfg.OutputDir)
	if err != nil {
		return err
	}

	var model rag.ChatModel
	switch cfg.ChatProvider {
	case config.ProviderGroq:
		model = groq.New("", cfg.GroqAPIKey, cfg.ChatModel, 0.2, cfg.ModelTimeout)
	case config.ProviderOllama:
		model = ollama.NewChatClient(cfg.OllamaURL, cfg.ChatModel, 0.2, cfg.ModelTimeout)
	default:
		return domain.ConfigErrorf("unknown chat provider %q", cfg.ChatProvider)
	}

	svc := rag.New(
		ollama.NewEmbedClient(cfg.OllamaURL, cfg.EmbedModel),
		store,
		model,
		recorder,
		rag.Options{TopK: cfg.TopK, SearchTimeout: cfg.SearchTimeout, ModelTimeout: cfg.ModelTimeout},
		logger,
	)

	fmt.Println("Ask questions about the ingested reports. Type 'exit' or 'quit' to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := svc.Ask(ctx, question)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				fmt.Println(verr.Error())
				continue
			}
			fmt.Println("query failed:", err)
			continue
		}
		fmt.Println(answer.Text)
	}
	return scanner.Err()
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
