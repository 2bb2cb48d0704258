// Package control wires the reliability core together: classifier,
// ledger, recovery coordinator, authorization gateway, usage accountant,
// event bus, side stores and the status server.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/novik133/NovaBar-sub002/internal/core/config"
	"github.com/novik133/NovaBar-sub002/internal/core/domain"
	"github.com/novik133/NovaBar-sub002/internal/events"
	redisclient "github.com/novik133/NovaBar-sub002/internal/infra/redis"
	"github.com/novik133/NovaBar-sub002/internal/infra/storage"
	"github.com/novik133/NovaBar-sub002/internal/infra/storage/memory"
	"github.com/novik133/NovaBar-sub002/internal/infra/storage/postgres"
	"github.com/novik133/NovaBar-sub002/internal/policy/authority"
	"github.com/novik133/NovaBar-sub002/internal/reliability/classifier"
	"github.com/novik133/NovaBar-sub002/internal/reliability/ledger"
	"github.com/novik133/NovaBar-sub002/internal/reliability/recovery"
	"github.com/novik133/NovaBar-sub002/internal/status"
	"github.com/novik133/NovaBar-sub002/internal/usage"
)

// Config holds the application configuration.
type Config struct {
	Port      int
	Authority config.AuthorityConfig
	Usage     config.UsageConfig
	Recovery  config.RecoveryConfig
	Redis     redisclient.Config
	Database  postgres.Config
}

// FromApp converts the loaded file configuration.
func FromApp(cfg *config.AppConfig) Config {
	return Config{
		Port:      cfg.Server.Port,
		Authority: cfg.Authority,
		Usage:     cfg.Usage,
		Recovery:  cfg.Recovery,
		Redis:     cfg.Redis,
		Database:  cfg.Database,
	}
}

// Core is the assembled reliability and policy layer. Connection-type
// managers feed raw errors and byte samples in; the UI and connection
// state machines consume the typed event bus.
type Core struct {
	cfg Config
	log *slog.Logger

	bus        *events.Bus
	cls        *classifier.Classifier
	ledger     *ledger.Ledger
	recoverer  *recovery.Coordinator
	gateway    *authority.Gateway
	accountant *usage.Accountant

	historyRepo  storage.ErrorHistoryRepository
	snapshotRepo storage.UsageSnapshotRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	statusServer *status.Server

	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

// NewCore creates a Core with all dependencies initialized. The authority
// and connection manager are the external D-Bus collaborators, injected
// as interfaces.
func NewCore(cfg Config, auth authority.Authority, mgr recovery.ConnectionManager, log *slog.Logger) (*Core, error) {
	if log == nil {
		log = slog.Default()
	}

	bus := events.NewBus()

	// Side store: Postgres when configured, in-memory otherwise.
	var (
		historyRepo  storage.ErrorHistoryRepository
		snapshotRepo storage.UsageSnapshotRepository
		db           *postgres.DB
	)
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		historyRepo = postgres.NewErrorHistoryRepo(db)
		snapshotRepo = postgres.NewUsageSnapshotRepo(db)
		log.Info("using PostgreSQL side store")
	} else {
		store := memory.NewStore()
		historyRepo = memory.NewErrorHistoryRepo(store)
		snapshotRepo = memory.NewUsageSnapshotRepo(store)
		log.Info("using in-memory side store")
	}

	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			// The mirror is a convenience, not a dependency.
			log.Warn("redis mirror disabled", "error", err)
		} else {
			log.Info("redis usage mirror enabled")
		}
	}

	led := ledger.New(bus, log)
	gw := authority.NewGateway(auth, bus, authority.Config{
		TTL:              cfg.Authority.CacheTTL,
		ChallengeTimeout: cfg.Authority.ChallengeTimeout,
	}, log)

	strategy := &recovery.ExponentialBackoff{
		InitialDelay: cfg.Recovery.InitialDelay,
		MaxDelay:     cfg.Recovery.MaxDelay,
		MaxAttempts:  cfg.Recovery.MaxAttempts,
	}
	if strategy.InitialDelay == 0 {
		strategy = recovery.DefaultBackoff()
	}
	recoverer := recovery.NewCoordinator(mgr, gw, led, bus, strategy, log)

	acc := usage.NewAccountant(bus, cfg.Usage.ThresholdPercent, log)
	for _, mc := range cfg.Usage.Connections {
		acc.Track(mc.ID, domain.ConnectionType(mc.Type), mc.MonthlyLimit, mc.LimitEnabled, mc.ResetDay)
	}

	// Restore persisted counters so a restart mid-period keeps usage.
	if snaps, err := snapshotRepo.All(context.Background()); err == nil {
		for _, snap := range snaps {
			acc.Restore(snap)
		}
		if len(snaps) > 0 {
			log.Info("restored usage snapshots", "count", len(snaps))
		}
	}

	c := &Core{
		cfg:          cfg,
		log:          log,
		bus:          bus,
		cls:          classifier.New(),
		ledger:       led,
		recoverer:    recoverer,
		gateway:      gw,
		accountant:   acc,
		historyRepo:  historyRepo,
		snapshotRepo: snapshotRepo,
		db:           db,
		redisClient:  redisClient,
	}
	c.statusServer = status.NewServer(
		status.NewMonitor(led, gw, acc),
		led,
		acc,
		historyRepo,
		cfg.Port,
	)
	return c, nil
}

// Bus returns the event bus external consumers subscribe to.
func (c *Core) Bus() *events.Bus { return c.bus }

// Gateway returns the authorization gateway.
func (c *Core) Gateway() *authority.Gateway { return c.gateway }

// Accountant returns the usage accountant.
func (c *Core) Accountant() *usage.Accountant { return c.accountant }

// Ledger returns the error ledger.
func (c *Core) Ledger() *ledger.Ledger { return c.ledger }

// ReportError classifies and records a raw error, then hands it to the
// recovery coordinator. This is the entry point for every failure a
// device or connection manager observes.
func (c *Core) ReportError(ctx context.Context, raw classifier.RawError) domain.NetworkError {
	e := c.ledger.Record(c.cls.Classify(raw))
	c.recoverer.Handle(ctx, e)
	return e
}

// CancelRecovery stops in-flight recovery for the error, e.g. when the
// user disconnects manually.
func (c *Core) CancelRecovery(errorID string) {
	c.recoverer.Cancel(errorID)
}

// UpdateUsage records a byte counter sample for a metered connection.
func (c *Core) UpdateUsage(connectionID string, bytesSent, bytesReceived uint64) domain.UsageSample {
	return c.accountant.UpdateUsage(connectionID, bytesSent, bytesReceived)
}

// CheckAuthorization resolves a privilege check; see authority.Gateway.
func (c *Core) CheckAuthorization(ctx context.Context, actionID string, allowInteraction bool) domain.AuthResult {
	return c.gateway.CheckAuthorization(ctx, actionID, allowInteraction)
}

// ActiveErrors returns all unresolved errors in insertion order.
func (c *Core) ActiveErrors() []domain.NetworkError {
	return c.ledger.ActiveErrors()
}

// Start launches the status server and the background persistence and
// mirror loops.
func (c *Core) Start(ctx context.Context) error {
	c.runCtx, c.runCancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.statusServer.Start(); err != nil && c.runCtx.Err() == nil {
			c.log.Error("status server stopped", "error", err)
		}
	}()

	c.wg.Add(1)
	go c.persistLoop()

	if c.redisClient != nil {
		c.wg.Add(1)
		go c.mirrorLoop()
	}

	c.log.Info("core started", "port", c.cfg.Port)
	return nil
}

// Stop shuts everything down, persisting a final usage snapshot.
func (c *Core) Stop(ctx context.Context) error {
	if c.runCancel != nil {
		c.runCancel()
	}
	c.recoverer.Stop()

	if err := c.statusServer.Stop(ctx); err != nil {
		c.log.Warn("status server shutdown failed", "error", err)
	}

	c.persistSnapshots(ctx)

	c.wg.Wait()

	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
	c.log.Info("core stopped")
	return nil
}

// persistLoop appends recorded errors to the history store and snapshots
// usage counters on an interval.
func (c *Core) persistLoop() {
	defer c.wg.Done()

	errCh := c.bus.SubscribeErrors(64)
	interval := c.cfg.Usage.PersistInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.runCtx.Done():
			return
		case e := <-errCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.historyRepo.Append(ctx, e); err != nil {
				c.log.Warn("failed to persist error", "id", e.ID, "error", err)
			}
			cancel()
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			c.persistSnapshots(ctx)
			cancel()
		}
	}
}

func (c *Core) persistSnapshots(ctx context.Context) {
	for _, snap := range c.accountant.Snapshots() {
		if err := c.snapshotRepo.Save(ctx, snap); err != nil {
			c.log.Warn("failed to persist usage snapshot",
				"connection", snap.ConnectionID,
				"error", err,
			)
		}
	}
}

// mirrorLoop forwards usage samples and alarms to the Redis mirror.
func (c *Core) mirrorLoop() {
	defer c.wg.Done()

	usageCh := c.bus.SubscribeUsage(64)
	thresholdCh := c.bus.SubscribeThresholds(16)
	limitCh := c.bus.SubscribeLimitExceeded(16)

	for {
		select {
		case <-c.runCtx.Done():
			return
		case s := <-usageCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.redisClient.MirrorUsage(ctx, s); err != nil {
				c.log.Debug("usage mirror write failed", "error", err)
			}
			cancel()
		case t := <-thresholdCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.redisClient.PublishAlarm(ctx, t.ConnectionID, "threshold", t.Percentage); err != nil {
				c.log.Debug("alarm publish failed", "error", err)
			}
			cancel()
		case l := <-limitCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.redisClient.PublishAlarm(ctx, l.ConnectionID, "limit", 100); err != nil {
				c.log.Debug("alarm publish failed", "error", err)
			}
			cancel()
		}
	}
}
