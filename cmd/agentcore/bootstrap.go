package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/driftlab/agentcore/internal/agent"
	"github.com/driftlab/agentcore/internal/bus"
	"github.com/driftlab/agentcore/internal/compaction"
	"github.com/driftlab/agentcore/internal/config"
	"github.com/driftlab/agentcore/internal/cron"
	"github.com/driftlab/agentcore/internal/providers"
	"github.com/driftlab/agentcore/internal/subagents"
	"github.com/driftlab/agentcore/internal/tokens"
	"github.com/driftlab/agentcore/internal/tools"
)

// app bundles the constructed root objects every subcommand needs. Built
// once per process by newApp from the loaded Settings, mirroring how the
// teacher's command handlers close over a single wired client/config set
// rather than rebuilding their dependencies per command.
type app struct {
	cfg       *config.Settings
	logger    *slog.Logger
	registry  *tools.Registry
	metrics   *agent.Metrics
	cron      *cron.Service
	subagents *subagents.Manager
	driver    *agent.Driver
}

// newApp loads configuration from configPath and wires the full object
// graph: providers behind AccountingClient, the root tool registry with
// spawn_subagent/subagent_status registered, the Subagent Manager (whose
// DriverFactory closure builds a headless Driver per spawn, closing the
// subagents<->agent dependency loop without either package importing the
// other), the Cron Service firing into the Subagent Manager, and the
// top-level interactive Driver used by session commands.
func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("agentcore: %w", err)
	}

	logger := newLogger(cfg.Logging)
	metrics := agent.NewMetrics()

	planner, coder, err := buildBackends(cfg)
	if err != nil {
		return nil, err
	}

	limits := tokens.NewLimits(cfg.Tokens.ModelLimits)
	accountant := tokens.New(limits, nil)
	retrier := &agent.Retrier{MaxAttempts: cfg.Retry.MaxAttempts, BaseDelay: cfg.Retry.BaseDelay, MaxDelay: cfg.Retry.MaxDelay}

	compactorModel := cfg.Driver.CoderModel
	compressor := compaction.New(accountant, agent.NewSummarizer(coder, compactorModel), compaction.Config{
		Threshold: cfg.Compaction.Threshold,
	}, logger)

	plannerClient := agent.NewAccountingClient(planner, accountant, compressor, retrier, metrics, logger)
	coderClient := agent.NewAccountingClient(coder, accountant, compressor, retrier, metrics, logger)

	registry := tools.New()

	guard := agent.ToolResultGuard{
		MaxChars:        cfg.Driver.Guard.MaxChars,
		Denylist:        cfg.Driver.Guard.Denylist,
		RedactPatterns:  cfg.Driver.Guard.RedactPatterns,
		RedactionText:   cfg.Driver.Guard.RedactionText,
		TruncateSuffix:  cfg.Driver.Guard.TruncateSuffix,
		SanitizeSecrets: cfg.Driver.Guard.SanitizeSecrets,
	}

	msgBus := bus.New(cfg.Bus.Capacity)
	events := bus.NewEventLog()

	driverCfg := agent.DriverConfig{
		PlannerModel:        cfg.Driver.PlannerModel,
		CoderModel:          cfg.Driver.CoderModel,
		PlannerSystemPrompt: cfg.Driver.PlannerSystemPrompt,
		CoderSystemPrompt:   cfg.Driver.CoderSystemPrompt,
		Temperature:         cfg.Driver.Temperature,
		MaxTokens:           cfg.Driver.MaxTokens,
		MaxMessages:         cfg.Driver.MaxMessages,
		MaxToolIterations:   cfg.Driver.MaxToolIterations,
		EmergencyTruncateN:  cfg.Driver.EmergencyTruncateN,
	}

	approval := agent.NewApprovalChecker(nil)

	// DriverFactory builds one headless Driver per spawned subagent, scoped
	// to its own Subset tool view and sharing the same LLM clients, approval
	// policy, and metrics as the root driver.
	factory := func(scoped *tools.Registry, label string, maxIterations int) subagents.TaskRunner {
		subCfg := driverCfg
		subCfg.MaxToolIterations = maxIterations
		return agent.NewDriver(plannerClient, coderClient, scoped, approval, guard, nil, agent.NoopUI{}, nil, metrics, logger, subCfg)
	}

	subagentMgr := subagents.New(subagents.Config{
		MaxConcurrent:        cfg.Subagents.MaxConcurrent,
		DefaultMaxIterations: cfg.Subagents.DefaultMaxIterations,
		MainOnlyTools:        cfg.Subagents.MainOnlyTools,
	}, registry, factory, msgBus, events, logger)
	subagentMgr.SetRunningGauge(func(n int) { metrics.ActiveSubagents.Set(float64(n)) })

	if err := registry.Register(subagents.SpawnToolDefinition(subagentMgr, "main")); err != nil {
		return nil, fmt.Errorf("agentcore: failed to register spawn_subagent: %w", err)
	}
	if err := registry.Register(subagents.StatusToolDefinition(subagentMgr)); err != nil {
		return nil, fmt.Errorf("agentcore: failed to register subagent_status: %w", err)
	}

	cronStore := cron.NewStore(cfg.Cron.StorePath)
	cronSvc := cron.New(cronStore,
		cron.WithLogger(logger),
		cron.WithFireHandler(func(job *cron.Job) error {
			if _, err := subagentMgr.Spawn(context.Background(), job.Task, "cron:"+cron.NamePrefix(job.Name), "cron", 0); err != nil {
				logger.Error("cron fire failed to spawn subagent", "job_id", job.ID, "error", err)
				return err
			}
			return nil
		}),
		cron.WithOnFire(func(status cron.LastStatus) {
			metrics.CronFiresTotal.WithLabelValues(string(status)).Inc()
		}),
	)

	driver := agent.NewDriver(plannerClient, coderClient, registry, approval, guard, nil, agent.NewConsoleUI(), msgBus, metrics, logger, driverCfg)

	return &app{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		metrics:   metrics,
		cron:      cronSvc,
		subagents: subagentMgr,
		driver:    driver,
	}, nil
}

// buildBackends constructs the Planner's and Coder's ChatCompletion backends.
// Both roles may share one provider or point at different ones, a "strong"
// model for the planner and a "base" model for the coder being typical; this
// wiring takes that split across providers too, so Anthropic drives the
// Planner and OpenAI drives the Coder by default, giving both concrete
// backends a real caller instead of leaving one configured but unused.
func buildBackends(cfg *config.Settings) (planner, coder agent.ChatCompletion, err error) {
	anthropicCfg := providers.AnthropicConfig{}
	if p, ok := cfg.LLM.Providers["anthropic"]; ok {
		anthropicCfg = providers.AnthropicConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, DefaultModel: p.DefaultModel}
	}
	openaiCfg := providers.OpenAIConfig{}
	if p, ok := cfg.LLM.Providers["openai"]; ok {
		openaiCfg = providers.OpenAIConfig{APIKey: p.APIKey, BaseURL: p.BaseURL, DefaultModel: p.DefaultModel}
	}

	anthropicProvider, err := providers.NewAnthropicProvider(anthropicCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("agentcore: anthropic provider: %w", err)
	}
	openaiProvider, err := providers.NewOpenAIProvider(openaiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("agentcore: openai provider: %w", err)
	}

	if cfg.LLM.DefaultProvider == "openai" {
		return openaiProvider, anthropicProvider, nil
	}
	return anthropicProvider, openaiProvider, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
