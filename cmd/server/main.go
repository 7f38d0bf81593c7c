package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/physical-ai/textbook-assistant/internal/api"
	"github.com/physical-ai/textbook-assistant/internal/config"
	"github.com/physical-ai/textbook-assistant/internal/core"
	"github.com/physical-ai/textbook-assistant/internal/corpus"
	"github.com/physical-ai/textbook-assistant/internal/retrieval"
	"github.com/physical-ai/textbook-assistant/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()
	setupLogging(config.AppConfig.LogLevel)

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer dbStore.Close()

	// Corpus store: loaded lazily on first retrieval, warmed here so the
	// first question doesn't pay the fetch. A failed warm-up is not fatal;
	// keyword search still retries the load per request.
	corpusStore := corpus.NewStore(config.AppConfig.CorpusURL, config.AppConfig.CorpusPath)
	warmCtx, warmCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if _, err := corpusStore.Load(warmCtx); err != nil {
		log.Warn().Err(err).Msg("Corpus warm-up failed, retrieval will retry on demand")
	}
	warmCancel()

	// Generation gateway on the hosted model
	completer, err := core.NewGeminiCompleter(context.Background(), config.AppConfig.GeminiAPIKey, core.SamplingConfig{
		Model:       config.AppConfig.GenModel,
		Temperature: float32(config.AppConfig.GenTemperature),
		TopP:        float32(config.AppConfig.GenTopP),
		MaxTokens:   int32(config.AppConfig.GenMaxTokens),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize generation client")
	}
	defer completer.Close()
	gateway := core.NewGateway(completer, config.AppConfig.GenMaxRetries)

	// Retrieval pipeline
	selector := retrieval.NewSelector(
		corpusStore,
		retrieval.NewKeywordRanker(retrieval.DefaultKeywordConfig()),
		retrieval.SelectorOptions{TopK: 3, UseChapterContext: true},
	)

	// Chat orchestration + HTTP surface
	chatService := core.NewChatService(dbStore, selector, gateway)
	apiHandler := api.NewAPIHandler(chatService)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generation calls can take a while
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Starting server. Press Ctrl+C to quit.")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Str("addr", serverAddr).Msg("Could not listen")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting gracefully")
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	switch strings.ToUpper(level) {
	case "DEBUG":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		log.Debug().Msg("Service starting in DEBUG mode")
	case "WARN":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "ERROR":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
