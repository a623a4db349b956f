package daemon

import (
	"context"
	"io"

	"github.com/matheus3301/typec/internal/api"
	"github.com/matheus3301/typec/internal/app"
	"github.com/matheus3301/typec/internal/bus"
	"github.com/matheus3301/typec/internal/calendar"
	"github.com/matheus3301/typec/internal/config"
	"github.com/matheus3301/typec/internal/lock"
	"github.com/matheus3301/typec/internal/logging"
	"github.com/matheus3301/typec/internal/matrix"
	"github.com/matheus3301/typec/internal/media"
	"github.com/matheus3301/typec/internal/session"
	"github.com/matheus3301/typec/internal/status"
	"github.com/matheus3301/typec/internal/store"
	intsync "github.com/matheus3301/typec/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideMedia,
			provideAdapter,
			provideSyncEngine,
			provideSession,
			provideFeed,
			provideSessionService,
			provideSyncService,
			provideRoomService,
			provideMessageService,
			provideCalendarService,
			NewServer,
		),
		fx.Invoke(registerCrypto, registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	cfg, err := config.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, logging.ParseLevel(cfg.LogLevel))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so two daemons never open the same
// database.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.AppDBPath(p.SessionName)
	db, err := store.Open(dbPath, store.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideMedia(cfg *config.Config, logger *zap.Logger) (*media.Resolver, error) {
	return media.NewResolver(media.Options{
		Homeserver:  cfg.Homeserver,
		AccessToken: cfg.AccessToken,
		Templates:   cfg.MediaTemplates,
		Timeout:     cfg.RequestTimeout,
		Logger:      logger.Named("media"),
	})
}

func provideAdapter(cfg *config.Config, db *store.DB, resolver *media.Resolver, b *bus.Bus, m *status.Machine, logger *zap.Logger) (*matrix.Adapter, error) {
	return matrix.NewAdapter(matrix.Options{
		Homeserver:       cfg.Homeserver,
		UserID:           cfg.UserID,
		AccessToken:      cfg.AccessToken,
		DeviceID:         cfg.DeviceID,
		Store:            db,
		Media:            resolver,
		Bus:              b,
		Machine:          m,
		Logger:           logger.Named("matrix"),
		Timeout:          cfg.RequestTimeout,
		InitialSyncLimit: cfg.InitialSyncLimit,
	})
}

func provideSyncEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, b, logger.Named("sync"))
}

func provideSession(cfg *config.Config, adapter *matrix.Adapter, db *store.DB, b *bus.Bus, engine *intsync.Engine, logger *zap.Logger) *app.Session {
	return app.New(app.Options{
		Client:      adapter,
		DB:          db,
		Bus:         b,
		History:     engine,
		Logger:      logger.Named("session"),
		Timeout:     cfg.RequestTimeout,
		RecentLimit: cfg.RecentRoomsLimit,
	})
}

func provideFeed(cfg *config.Config, db *store.DB, logger *zap.Logger) *calendar.Feed {
	return calendar.NewFeed(cfg.HolidayFeedURL, nil, cfg.RequestTimeout, db, logger.Named("calendar"))
}

func provideSessionService(p Params, cfg *config.Config, m *status.Machine, s *app.Session) *api.SessionService {
	return api.NewSessionService(p.SessionName, cfg.UserID, m, s)
}

func provideSyncService(p Params, m *status.Machine, b *bus.Bus, db *store.DB, logger *zap.Logger) *api.SyncService {
	return api.NewSyncService(p.SessionName, m, b, db, logger.Named("api"))
}

func provideRoomService(s *app.Session) *api.RoomService {
	return api.NewRoomService(s)
}

func provideMessageService(s *app.Session, db *store.DB) *api.MessageService {
	return api.NewMessageService(s, db)
}

func provideCalendarService(feed *calendar.Feed) *api.CalendarService {
	return api.NewCalendarService(feed)
}

// registerCrypto is invoked before registerLifecycle, so the Olm machine is
// hooked into the syncer before the sync loop starts and closed after it
// stops. A device that cannot set up encryption still syncs; encrypted rooms
// are then read-only.
func registerCrypto(lc fx.Lifecycle, p Params, cfg *config.Config, adapter *matrix.Adapter, logger *zap.Logger) {
	if !cfg.Encryption {
		return
	}
	var closer io.Closer
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			key, err := matrix.LoadPickleKey(session.PickleKeyPath(p.SessionName))
			if err != nil {
				logger.Warn("encryption unavailable", zap.Error(err))
				return nil
			}
			closer, err = adapter.EnableEncryption(ctx, key, session.CryptoDBPath(p.SessionName))
			if err != nil {
				logger.Warn("encryption unavailable", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			if closer == nil {
				return nil
			}
			if err := closer.Close(); err != nil {
				logger.Warn("close crypto store", zap.Error(err))
			}
			return nil
		},
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, adapter *matrix.Adapter, engine *intsync.Engine, sess *app.Session, feed *calendar.Feed, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	syncDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Ingest before the sync loop so the first response is not missed.
			engine.Start(runCtx, sess)

			if n, err := sess.Recover(); err != nil {
				logger.Warn("outbox recovery failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("interrupted sends marked failed", zap.Int("count", n))
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			go feed.Load(runCtx)

			go func() {
				defer close(syncDone)
				// On a rejected token the daemon keeps serving the cache and
				// reports ERROR in its status.
				if err := adapter.Run(runCtx); err != nil {
					logger.Error("sync loop ended", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			adapter.Stop()
			select {
			case <-syncDone:
			case <-ctx.Done():
				logger.Warn("sync loop did not stop in time")
			}
			engine.Stop()
			sess.Close()
			srv.Stop(ctx)
			err := multierr.Combine(db.Close(), lk.Release())
			if err != nil {
				logger.Warn("error during shutdown", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
