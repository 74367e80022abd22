// Package main provides the chatrelay server entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/richinex/chatrelay/chat"
	"github.com/richinex/chatrelay/config"
	"github.com/richinex/chatrelay/conversation"
	"github.com/richinex/chatrelay/llm"
	"github.com/richinex/chatrelay/ratelimit"
	"github.com/richinex/chatrelay/retry"
	"github.com/richinex/chatrelay/server"
	"github.com/richinex/chatrelay/stream"
)

const shutdownGrace = 10 * time.Second

var (
	// Global flags
	provider  string
	addr      string
	staticDir string
	verbose   bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Streaming LLM conversation server",
		Long: `chatrelay relays chat messages to an LLM provider and streams the
response back over server-sent events, with per-session conversation
history, context-window pruning, rate limiting and bounded retries.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "anthropic", "LLM provider (anthropic, openai, deepseek, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides CHAT_ADDR)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory of static frontend files to serve at / (overrides STATIC_DIR)")

	return cmd
}

func serve() error {
	settings, err := config.New(provider)
	if err != nil {
		return err
	}
	if addr != "" {
		settings.Server.Addr = addr
	}
	if staticDir != "" {
		settings.Server.StaticDir = staticDir
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return err
	}

	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return err
	}

	llmProvider, err := llm.NewProvider(providerType, apiKey, settings.LLM.Model,
		settings.LLM.MaxTokens, float32(settings.LLM.Temperature))
	if err != nil {
		return err
	}

	orchestrator, err := chat.New(chat.Config{
		Provider: llmProvider,
		Manager:  conversation.NewManager(conversation.NewStore()),
		Pruner: conversation.NewPruner(nil,
			settings.Prune.MaxMessages, settings.Prune.MaxTokens),
		Limiter:  ratelimit.New(settings.RateLimit.PerMinute, settings.RateLimit.PerHour),
		Registry: stream.NewRegistry(),
		Retry: retry.New(settings.Retry.MaxRetries,
			settings.Retry.BaseDelay, settings.Retry.MaxDelay, llm.IsRetryable, logger),
		MaxContentLength: settings.Chat.MaxContentLength,
		SystemPrompt:     settings.Chat.SystemPrompt,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	srv := server.New(settings.Server.Addr, orchestrator, settings.Server.StaticDir, logger)

	logger.Info("starting chatrelay",
		zap.String("provider", llmProvider.Name()),
		zap.String("model", llmProvider.Model()),
		zap.String("addr", settings.Server.Addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(srv.ListenAndServe)
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
