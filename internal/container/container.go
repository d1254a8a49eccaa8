package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/cpq-approval/internal/application/dispatcher"
	"github.com/garyjia/cpq-approval/internal/application/port"
	"github.com/garyjia/cpq-approval/internal/application/service"
	"github.com/garyjia/cpq-approval/internal/application/workflow"
	"github.com/garyjia/cpq-approval/internal/config"
	"github.com/garyjia/cpq-approval/internal/domain/event"
	"github.com/garyjia/cpq-approval/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/cpq-approval/internal/interfaces/http"
	"github.com/garyjia/cpq-approval/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	drafter  port.QuoteDrafter
	identity port.IdentityResolver

	// Application
	dispatcher dispatcher.Dispatcher
	engine     *workflow.Engine
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Quote  port.QuoteRepository
	Item   port.ItemRepository
	Step   port.StepRepository
	Action port.ActionRepository
	User   port.UserRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Quote     service.QuoteService
	Analytics service.AnalyticsService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. External clients (OpenAI drafter, identity resolver)
// 3. Event dispatcher and workflow engine
// 4. Application services
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initExternalClients(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	if err := c.initDispatcherAndWorkflow(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize dispatcher and workflow: %w", err)
	}
	c.logger.Info("Dispatcher and workflow engine initialized")

	if err := c.initServices(); err != nil {
		_ = c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	check := func(name string, healthy bool, message string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: message}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.conn == nil:
		check("database", false, "not initialized")
	default:
		if err := c.conn.PingContext(ctx); err != nil {
			check("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			check("database", true, "")
		}
	}

	check("repositories", c.repositories != nil, notInitialized(c.repositories != nil))
	if c.dispatcher == nil {
		check("dispatcher", false, "not initialized")
	} else {
		missing := unaudited(c.dispatcher)
		check("dispatcher", missing == "", missing)
	}
	check("workflow", c.engine != nil, notInitialized(c.engine != nil))

	return status
}

// unaudited names the first event type with no handler, so its actions
// would be missing from the audit trail
func unaudited(d dispatcher.Dispatcher) string {
	for _, t := range event.AllTypes() {
		if len(d.ListHandlers(t)) == 0 {
			return fmt.Sprintf("no handler for %s", t)
		}
	}
	return ""
}

func notInitialized(ok bool) string {
	if ok {
		return ""
	}
	return "not initialized"
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = bundle.Conn
	c.db = bundle.TxDB

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternalClients() error {
	drafter, err := ProvideQuoteDrafter(&c.config.OpenAI, c.logger)
	if err != nil {
		return err
	}
	c.drafter = drafter

	identity, err := ProvideIdentityResolver(&c.config.Auth, c.logger)
	if err != nil {
		return err
	}
	c.identity = identity
	return nil
}

func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.repositories, c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		Dispatcher: c.dispatcher,
		Config:     &c.config.Workflow,
		Logger:     c.logger,
	})
	if err != nil {
		_ = c.dispatcher.Close()
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		Engine:     c.engine,
		Dispatcher: c.dispatcher,
		Drafter:    c.drafter,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) closeDatabase() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.db = nil
	}
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() *workflow.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// HTTPServices returns the collaborators the HTTP layer needs.
func (c *Container) HTTPServices() httpapi.Services {
	return httpapi.Services{
		Quotes:    c.services.Quote,
		Analytics: c.services.Analytics,
		Workflow:  c.engine,
		Identity:  c.identity,
		Users:     c.repositories.User,
	}
}

// HTTPLogger returns a logger for the HTTP layer.
func (c *Container) HTTPLogger() httpapi.Logger {
	return &zapLoggerAdapter{logger: c.logger.Named("http")}
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key/value Logger interfaces
// used by services, the workflow engine, the dispatcher and the HTTP layer.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

var (
	_ service.Logger    = (*zapLoggerAdapter)(nil)
	_ workflow.Logger   = (*zapLoggerAdapter)(nil)
	_ dispatcher.Logger = (*zapLoggerAdapter)(nil)
	_ httpapi.Logger    = (*zapLoggerAdapter)(nil)
)

// convertToZapFields converts key-value pairs to zap fields.
// Errors keep their zap encoding; a dangling key is dropped.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
