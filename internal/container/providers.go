// Package container provides dependency injection and lifecycle management
// for the quote approval service.
package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/dispatcher"
	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/application/service"
	"github.com/garyjia/cpq-approval/internal/application/workflow"
	"github.com/garyjia/cpq-approval/internal/config"
	"github.com/garyjia/cpq-approval/internal/infrastructure/auth"
	"github.com/garyjia/cpq-approval/internal/infrastructure/external/openai"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/cpq-approval/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn *database.DB
	TxDB *sqlite.DB
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).RunMigrations(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &DatabaseBundle{
		Conn: conn,
		TxDB: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates every repository over the shared connection.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Quote:  repository.NewQuoteRepository(db, logger),
		Item:   repository.NewItemRepository(db, logger),
		Step:   repository.NewStepRepository(db, logger),
		Action: repository.NewActionRepository(db, logger),
		User:   repository.NewUserRepository(db, logger),
	}, nil
}

// ProvideQuoteDrafter loads prompts and creates the AI quote drafter.
// Without an API key the drafter answers with keyword drafts.
func ProvideQuoteDrafter(cfg *config.OpenAIConfig, logger *zap.Logger) (port.QuoteDrafter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("openai config is required")
	}

	prompts, err := openai.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	if cfg.APIKey == "" {
		logger.Warn("OpenAI API key not set, quote drafting falls back to keyword matching")
	}

	return openai.NewQuoteDrafter(openai.Config{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	}, prompts, logger), nil
}

// ProvideIdentityResolver creates the bearer token resolver.
func ProvideIdentityResolver(cfg *config.AuthConfig, logger *zap.Logger) (port.IdentityResolver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth config is required")
	}
	if cfg.DevMode {
		logger.Warn("Development tokens are accepted", zap.String("prefix", cfg.DevTokenPrefix))
	}

	return auth.NewJWTResolver(auth.Config{
		JWTSecret:      cfg.JWTSecret,
		DevMode:        cfg.DevMode,
		DevTokenPrefix: cfg.DevTokenPrefix,
	}, logger), nil
}

// ProvideDispatcher creates the event dispatcher and subscribes the audit trail writer.
func ProvideDispatcher(repos *RepositoryBundle, logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	d := dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	)
	dispatcher.SubscribeAudit(d, repos.Action)

	return d, nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	Dispatcher dispatcher.Dispatcher
	Config     *config.WorkflowConfig
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
// Configured escalation entries override the default paths one persona at a time.
func ProvideWorkflowEngine(deps *WorkflowDeps) (*workflow.Engine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	overrides, err := workflow.ParseEscalationPolicy(deps.Config.EscalationMap)
	if err != nil {
		return nil, fmt.Errorf("invalid escalation map: %w", err)
	}
	policy := workflow.DefaultEscalationPolicy()
	for from, to := range overrides {
		policy[from] = to
	}

	opts := []workflow.EngineOption{
		workflow.WithConfig(workflow.Config{
			MaxProcessingDays:        deps.Config.MaxProcessingDays,
			EscalationProcessingDays: deps.Config.EscalationProcessingDays,
			AllowParallelSteps:       deps.Config.AllowParallelSteps,
		}),
		workflow.WithEscalationPolicy(policy),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
	}
	if deps.Dispatcher != nil {
		opts = append(opts, workflow.WithPublisher(deps.Dispatcher))
	}

	return workflow.NewEngine(deps.Repos.Quote, deps.Repos.Step, opts...), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos      *RepositoryBundle
	Engine     *workflow.Engine
	Dispatcher dispatcher.Dispatcher
	Drafter    port.QuoteDrafter
	Logger     *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var publisher port.EventPublisher
	if deps.Dispatcher != nil {
		publisher = deps.Dispatcher
	}

	return &ServiceBundle{
		Quote: service.NewQuoteService(
			deps.Repos.Quote,
			deps.Repos.Item,
			deps.Repos.Step,
			deps.Repos.Action,
			deps.Engine,
			publisher,
			deps.Drafter,
			&zapLoggerAdapter{logger: deps.Logger.Named("quotes")},
		),
		Analytics: service.NewAnalyticsService(deps.Repos.Quote, deps.Repos.Step, deps.Engine),
	}, nil
}
