// Package app constructs the composition pipeline from configuration. Every
// service object is built once here and injected.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"salescomposer/internal/audit"
	"salescomposer/internal/compose"
	"salescomposer/internal/config"
	"salescomposer/internal/feedback"
	"salescomposer/internal/httpapi"
	"salescomposer/internal/httpx"
	"salescomposer/internal/integrations/llm"
	slackbot "salescomposer/internal/integrations/slack"
	"salescomposer/internal/knowledge"
	"salescomposer/internal/metrics"
	"salescomposer/internal/prompt"
	"salescomposer/internal/ratelimit"
	"salescomposer/internal/scenario"
	"salescomposer/internal/storage/sqlite"
)

type App struct {
	Config   config.Config
	Log      *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Library  *knowledge.Library
	Feedback *feedback.Processor
	Gateway  *llm.Gateway
	Composer *compose.Composer
	Audit    audit.Sink

	pruner audit.Pruner
	db     *sql.DB
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	for _, w := range cfg.Warnings {
		log.Warn("config: " + w)
	}

	a := &App{Config: cfg, Log: log, Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	lib, err := knowledge.Load(cfg.KBDir, cfg.SnippetLimit)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}
	a.Library = lib
	log.Info("knowledge base loaded",
		zap.String("dir", cfg.KBDir),
		zap.Int("benefits", len(lib.Benefits())),
		zap.Int("comparisons", len(lib.Comparisons())),
	)

	backend, err := a.openStorage()
	if err != nil {
		return nil, err
	}

	httpClient := httpx.NewExternalClient(cfg.ExternalHTTPTimeoutSeconds)

	opts := feedback.Options{
		OverlapThreshold:   cfg.FeedbackOverlapThreshold,
		OverlapDenominator: cfg.FeedbackOverlapDenominator,
		Logger:             log.Named("feedback"),
	}
	if cfg.SlackConfigured() {
		opts.Notifier = slackbot.NewNotifier(cfg.SlackBotToken, cfg.SlackChannelID, log.Named("slack"),
			slack.OptionHTTPClient(httpClient))
		log.Info("slack feedback notifications enabled", zap.String("channel", cfg.SlackChannelID))
	}
	a.Feedback = feedback.NewProcessor(feedback.NewStore(backend), opts)

	a.Gateway = llm.NewGateway(log.Named("llm"), a.Metrics, providers(cfg, httpClient)...)
	if !a.Gateway.Configured() {
		log.Warn("no llm provider credentials configured; every composition will use default content",
			zap.Error(llm.ErrNoProviders))
	}

	a.Composer = compose.New(compose.Deps{
		Limiter: ratelimit.New(ratelimit.Config{
			Capacity: cfg.RateLimitCapacity,
			Window:   cfg.RateLimitWindow(),
		}),
		Detector: scenario.New(),
		Feedback: a.Feedback,
		Library:  lib,
		Builder:  prompt.NewBuilder("", nil),
		Gateway:  a.Gateway,
		Audit:    a.Audit,
		Metrics:  a.Metrics,
		Logger:   log.Named("compose"),
	})
	return a, nil
}

// openStorage picks the feedback backend and audit sink for the configured
// storage kind.
func (a *App) openStorage() (feedback.Backend, error) {
	cfg := a.Config
	switch cfg.StorageBackend {
	case config.StorageFile:
		fl := audit.NewFileLog(cfg.AuditLogPath)
		a.Audit, a.pruner = fl, fl
		a.Log.Info("file storage", zap.String("feedback", cfg.FeedbackPath), zap.String("audit", cfg.AuditLogPath))
		return feedback.NewFileBackend(cfg.FeedbackPath), nil
	default:
		if dir := filepath.Dir(cfg.DBPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating db dir: %w", err)
			}
		}
		db, err := sqlite.InitDB(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		a.db = db
		al := sqlite.NewAuditLog(db)
		a.Audit, a.pruner = al, al
		a.Log.Info("database initialized", zap.String("path", cfg.DBPath))
		return sqlite.NewFeedbackBackend(db), nil
	}
}

// providers returns both providers with the configured preference first.
func providers(cfg config.Config, client *http.Client) []llm.Provider {
	openai := llm.NewChatCompletionsProvider(llm.ChatCompletionsConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		HTTPClient:  client,
	})
	anthropic := llm.NewAnthropicProvider(llm.AnthropicConfig{
		APIKey:      cfg.AnthropicAPIKey,
		BaseURL:     cfg.AnthropicBaseURL,
		Model:       cfg.AnthropicModel,
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
		HTTPClient:  client,
	})
	if cfg.LLMProvider == llm.ProviderAnthropic {
		return []llm.Provider{anthropic, openai}
	}
	return []llm.Provider{openai, anthropic}
}

// Serve runs audit retention and the HTTP API until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	err := audit.StartRetention(ctx, audit.RetentionConfig{
		Schedule: a.Config.AuditRetentionSchedule,
		Keep:     a.Config.AuditRetention(),
		Location: a.Config.Location,
	}, a.pruner, a.Log.Named("audit"))
	if err != nil {
		return err
	}
	if err := a.Feedback.Load(ctx); err != nil {
		a.Log.Warn("feedback not loaded at startup, will retry per request", zap.Error(err))
	}
	srv := httpapi.New(a.Composer, a.Feedback, a.Registry, a.Log.Named("http"))
	return srv.ListenAndServe(ctx, a.Config.HTTPAddr)
}

// PruneAudit removes audit entries older than the configured retention.
func (a *App) PruneAudit(ctx context.Context) (int64, error) {
	keep := a.Config.AuditRetention()
	if keep <= 0 {
		return 0, errors.New("audit_retention_days is not set")
	}
	return audit.PruneOnce(ctx, a.pruner, keep, time.Now())
}

func (a *App) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	_ = a.Log.Sync()
	return errors.Join(errs...)
}
