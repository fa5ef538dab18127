package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/dunbot/dunbot/internal/config"
	"github.com/dunbot/dunbot/internal/email"
	"github.com/dunbot/dunbot/internal/extract"
	"github.com/dunbot/dunbot/internal/pipeline"
	"github.com/dunbot/dunbot/internal/reply"
	smtpserver "github.com/dunbot/dunbot/internal/smtp"
	"github.com/dunbot/dunbot/internal/storage"
	"github.com/dunbot/dunbot/internal/trigger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the inbound SMTP listener and process triggered emails",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve() error {
	logger := newLogger()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer store.Close()

	extractor := extract.NewExtractor(
		newChatClient(&cfg.LLM),
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		logger,
	)

	composer, err := reply.NewComposer(cfg.Outbound.FromAddress, cfg.Outbound.FromName)
	if err != nil {
		return fmt.Errorf("init composer: %w", err)
	}

	sender, err := newSender(&cfg.Outbound, logger)
	if err != nil {
		return err
	}

	pipe := pipeline.New(store, extractor, composer, sender, logger)

	filter, err := trigger.NewFilter(cfg.Triggers, logger)
	if err != nil {
		return fmt.Errorf("init triggers: %w", err)
	}

	handler := func(ctx context.Context, thread *email.Thread) error {
		triggerName, ok := filter.Accept(thread)
		if !ok {
			return nil
		}
		return pipe.Run(ctx, thread, triggerName)
	}

	server := smtpserver.NewServer(&cfg.Server, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("smtp server: %w", err)
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Stop(ctx)
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func newChatClient(cfg *config.LLMConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.HTTPClient = &http.Client{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	return openai.NewClientWithConfig(clientCfg)
}

func newSender(cfg *config.OutboundConfig, logger zerolog.Logger) (reply.Sender, error) {
	switch cfg.Provider {
	case "resend":
		return reply.NewResendSender(cfg.ResendKey), nil
	case "smtp":
		return reply.NewSMTPSender(cfg.Host, cfg.Port, cfg.Username, cfg.Password), nil
	case "", "none":
		logger.Warn().Msg("No outbound provider configured; replies will not be delivered")
		return &reply.NoopSender{}, nil
	default:
		return nil, fmt.Errorf("unknown outbound provider %q", cfg.Provider)
	}
}
