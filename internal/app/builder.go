package app

import (
	"context"
	"fmt"
	"time"

	"fxanalyst/internal/analyzer"
	"fxanalyst/internal/audit"
	"fxanalyst/internal/config"
	"fxanalyst/internal/gateway/provider"
	"fxanalyst/internal/logger"
	"fxanalyst/internal/metrics"
	"fxanalyst/internal/prompt"
	"fxanalyst/internal/scheduler"
	apihttp "fxanalyst/internal/transport/http/api"
)

type AppBuilder struct {
	cfg *config.Config

	providerFn func(config.GeminiConfig) (provider.ModelProvider, error)
	httpFn     func(*config.Config, apihttp.Analyzer, *metrics.Recorder) (*apihttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithProviderFactory 替换补全服务客户端的构造方式（测试用）。
func WithProviderFactory(fn func(config.GeminiConfig) (provider.ModelProvider, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.providerFn = fn
		}
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		providerFn: buildGeminiProvider,
		httpFn:     buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildGeminiProvider(cfg config.GeminiConfig) (provider.ModelProvider, error) {
	if cfg.APIKey == "" {
		return nil, config.ErrMissingAPIKey
	}
	return &provider.GeminiClient{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: cfg.Timeout(),
	}, nil
}

// shutdownGrace 叠加在补全超时之上，覆盖审计与响应写出。
const shutdownGrace = 5 * time.Second

func buildHTTPServer(cfg *config.Config, a apihttp.Analyzer, rec *metrics.Recorder) (*apihttp.Server, error) {
	return apihttp.NewServer(apihttp.ServerConfig{
		Addr:            cfg.App.HTTPAddr,
		Analyzer:        a,
		Metrics:         rec,
		ShutdownTimeout: cfg.Gemini.Timeout() + shutdownGrace,
	})
}

// Build 组装全部依赖（不启动）。
func (b *AppBuilder) Build(_ context.Context) (*App, error) {
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	rec := metrics.New()
	store := audit.NewStore(cfg.Audit.Dir, cfg.Audit.Format, cfg.Audit.WritePrompt)

	loc, err := cfg.Prompt.Location()
	if err != nil {
		return nil, fmt.Errorf("prompt timezone: %w", err)
	}
	compiler := prompt.NewCompiler(prompt.FileDirective{Path: cfg.Prompt.DirectivePath}, loc)

	model, err := b.providerFn(cfg.Gemini)
	if err != nil {
		return nil, fmt.Errorf("build model provider: %w", err)
	}
	svc, err := analyzer.NewService(model, compiler,
		analyzer.WithAudit(store),
		analyzer.WithMetrics(rec),
	)
	if err != nil {
		return nil, err
	}

	srv, err := b.httpFn(cfg, svc, rec)
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}

	sched := scheduler.New()
	if retention := cfg.Audit.Retention(); retention > 0 {
		if err := sched.Register(pruneJob(store, cfg.Audit.PruneSchedule, retention)); err != nil {
			return nil, err
		}
	}

	return &App{
		cfg:     cfg,
		service: svc,
		http:    srv,
		sched:   sched,
		Summary: newStartupSummary(cfg, model.ID()),
	}, nil
}

func pruneJob(store *audit.Store, spec string, retention time.Duration) scheduler.Job {
	return scheduler.Job{
		Name:           "audit-prune",
		Spec:           spec,
		RunImmediately: true,
		Task: func() {
			if n := store.Prune(retention); n > 0 {
				logger.Infof("审计清理：删除 %d 个超过 %s 的文件", n, retention)
			}
		},
	}
}
