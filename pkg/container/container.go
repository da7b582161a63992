package container

import (
	"github.com/jordanlanch/leadrouter/config"
	"github.com/jordanlanch/leadrouter/pkg/api/handlers"
	"github.com/jordanlanch/leadrouter/pkg/assignment"
	"github.com/jordanlanch/leadrouter/pkg/audit"
	"github.com/jordanlanch/leadrouter/pkg/cache"
	"github.com/jordanlanch/leadrouter/pkg/configstore"
	"github.com/jordanlanch/leadrouter/pkg/domain"
	"github.com/jordanlanch/leadrouter/pkg/loadtracker"
	"github.com/jordanlanch/leadrouter/pkg/logger"
	"github.com/jordanlanch/leadrouter/pkg/metrics"
	"github.com/jordanlanch/leadrouter/pkg/notify"
	"github.com/jordanlanch/leadrouter/pkg/pools"
	"github.com/jordanlanch/leadrouter/pkg/rules"
	"github.com/jordanlanch/leadrouter/pkg/store"
	"github.com/jordanlanch/leadrouter/pkg/watchdog"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics

	// Infrastructure
	Store *store.Store
	Cache domain.CacheRepository

	// Services
	ConfigService   *configstore.Service
	LoadTracker     *loadtracker.Tracker
	RuleMatcher     *rules.Matcher
	PoolService     *pools.Service
	AuditService    *audit.Service
	Notifier        *notify.Dispatcher
	Router          *assignment.Router
	WatchdogService *watchdog.Service

	// Handlers
	LeadHandler   *handlers.LeadHandler
	ConfigHandler *handlers.ConfigHandler
	LogsHandler   *handlers.LogsHandler
	PoolsHandler  *handlers.PoolsHandler
	RulesHandler  *handlers.RulesHandler
}

// New creates and initializes all application dependencies
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger.New(cfg.LogLevel),
		Metrics: metrics.New(),
	}

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	c.initServices()
	c.initHandlers()

	c.Logger.Info("Container initialized successfully",
		"environment", cfg.APIEnvironment,
		"database", "connected",
		"cache", "connected")

	return c, nil
}

// initInfrastructure initializes database and cache connections
func (c *Container) initInfrastructure() error {
	var err error

	// Database
	c.Store, err = store.Open(c.Config.DatabaseDriver, c.Config.DatabaseURL)
	if err != nil {
		c.Logger.Error("Failed to connect to database", "error", err)
		return err
	}

	// Cache
	cacheClient, err := cache.NewClient(c.Config.RedisURL)
	if err != nil {
		c.Logger.Error("Failed to connect to cache", "error", err)
		return err
	}
	c.Cache = cacheClient

	c.Logger.Info("Infrastructure initialized",
		"database", "connected",
		"cache", "connected")

	return nil
}

// initServices initializes all domain services
func (c *Container) initServices() {
	c.ConfigService = configstore.NewService(c.Store, c.Cache, logger.Component(c.Logger, "configstore"))
	c.LoadTracker = loadtracker.New()
	c.RuleMatcher = rules.NewMatcher(logger.Component(c.Logger, "rules"))
	c.PoolService = pools.NewService(c.Store)
	c.AuditService = audit.NewService(c.Store)

	var channels []notify.Channel
	if c.Config.SlackWebhookURL != "" {
		channels = append(channels, notify.NewSlackChannel(c.Config.SlackWebhookURL))
	}
	channels = append(channels, notify.NewEmailChannel(
		c.Config.EmailFrom,
		c.Config.EmailFromName,
		c.Config.ManagerEmail,
		c.Config.SendGridAPIKey,
		c.Store,
		logger.Component(c.Logger, "notify"),
	))
	c.Notifier = notify.NewDispatcher(logger.Component(c.Logger, "notify"), channels...)

	c.Router = assignment.NewRouter(
		c.Store,
		c.ConfigService,
		c.LoadTracker,
		c.RuleMatcher,
		c.PoolService,
		c.AuditService,
		c.Notifier,
		c.Metrics,
		logger.Component(c.Logger, "assignment"),
	)

	c.WatchdogService = watchdog.NewService(
		c.Store,
		c.ConfigService,
		c.Router,
		watchdog.NewStoreTimeline(c.Store),
		c.Metrics,
		logger.Component(c.Logger, "watchdog"),
	)

	c.Logger.Info("Services initialized",
		"router", "ready",
		"watchdog", "ready",
		"notifier", "ready")
}

// initHandlers initializes all HTTP handlers
func (c *Container) initHandlers() {
	c.LeadHandler = handlers.NewLeadHandler(c.Store, c.Router)
	c.ConfigHandler = handlers.NewConfigHandler(c.ConfigService)
	c.LogsHandler = handlers.NewLogsHandler(c.AuditService)
	c.PoolsHandler = handlers.NewPoolsHandler(c.Store, c.PoolService)
	c.RulesHandler = handlers.NewRulesHandler(c.Store)

	c.Logger.Info("Handlers initialized")
}

// Close closes all resources (database, cache connections)
func (c *Container) Close() error {
	c.Logger.Info("Shutting down container...")

	c.Notifier.Close()

	if err := c.Store.Close(); err != nil {
		c.Logger.Error("Failed to close database", "error", err)
		return err
	}

	if err := c.Cache.Close(); err != nil {
		c.Logger.Error("Failed to close cache", "error", err)
		return err
	}

	c.Logger.Info("Container shutdown complete")
	return nil
}
