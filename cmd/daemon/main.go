package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/genricoloni/wallcycle/internal/config"
	"github.com/genricoloni/wallcycle/internal/control"
	"github.com/genricoloni/wallcycle/internal/domain"
	"github.com/genricoloni/wallcycle/internal/engine"
	"github.com/genricoloni/wallcycle/internal/events"
	"github.com/genricoloni/wallcycle/internal/notify"
	"github.com/genricoloni/wallcycle/internal/sleep"
	"github.com/genricoloni/wallcycle/internal/store"
	"github.com/genricoloni/wallcycle/internal/wallpaper"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// AppOptions is the daemon's dependency graph
var AppOptions = fx.Options(
	// Logger configuration
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	// Provide dependencies
	fx.Provide(
		newLogger,
		config.NewAppConfig,
		func(cfg *config.AppConfig) domain.Config { return cfg },
		func(cfg *config.AppConfig) control.Reloader { return cfg },
		config.NewWatcher,
		store.NewStore,
		fx.Annotate(wallpaper.NewExecRunner, fx.As(new(wallpaper.Runner))),
		fx.Annotate(wallpaper.NewBackend, fx.As(new(domain.Backend))),
		notify.NewDBusNotifier,
		events.NewBus,
		clockwork.NewRealClock,
		newEngineDeps,
		control.NewRegistry,
		newControlServer,
		newSleepWatcher,
	),

	// Lifecycle hooks
	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the application
	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	// Wait for a signal or a stop-daemon command
	select {
	case <-ctx.Done():
	case <-app.Done():
	}

	// Stop the application gracefully
	stopCtx, stopCancel := context.WithTimeout(context.Background(), app.StopTimeout())
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		panic(err)
	}
}

// newLogger creates the daemon logger. Logs go to stderr, and are also
// rotated into WALLCYCLE_LOG_FILE when it is set.
func newLogger() (*zap.Logger, error) {
	levelName, file := config.LogSettings()
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(os.Stderr), level),
	}
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, err
		}
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), rotated, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

func newEngineDeps(
	logger *zap.Logger,
	s *store.Store,
	backend domain.Backend,
	notifier *notify.DBusNotifier,
	bus *events.Bus,
	cfg domain.Config,
	clock clockwork.Clock,
) engine.Deps {
	return engine.Deps{
		Logger:   logger,
		Store:    s,
		Backend:  backend,
		Notifier: notifier,
		Events:   bus,
		Config:   cfg,
		Clock:    clock,
	}
}

func newControlServer(
	logger *zap.Logger,
	cfg domain.Config,
	registry *control.Registry,
	s *store.Store,
	bus *events.Bus,
	reloader control.Reloader,
	shutdowner fx.Shutdowner,
) *control.Server {
	return control.NewServer(logger, cfg.GetSocketPath(), registry, s, bus, reloader, shutdowner)
}

func newSleepWatcher(logger *zap.Logger, registry *control.Registry) *sleep.Watcher {
	return sleep.NewWatcher(logger, registry.Reconcile)
}

// registerHooks sets up application lifecycle hooks. Hooks stop in reverse
// order, so the control socket closes before the engines and the store.
func registerHooks(
	lc fx.Lifecycle,
	logger *zap.Logger,
	s *store.Store,
	bus *events.Bus,
	notifier *notify.DBusNotifier,
	registry *control.Registry,
	server *control.Server,
	configWatcher *config.Watcher,
	sleepWatcher *sleep.Watcher,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Wallcycle daemon started", zap.Int("pid", os.Getpid()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			bus.Close()
			logger.Info("Wallcycle daemon stopped", zap.Uint64("events", bus.Published()))
			return multierr.Combine(notifier.Close(), s.Close())
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := registry.ResumeActive(ctx); err != nil {
				// One broken playlist must not keep the daemon down
				logger.Error("Failed to resume some playlists", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			registry.ShutdownAll()
			return nil
		},
	})

	lc.Append(fx.Hook{
		OnStart: configWatcher.Start,
		OnStop:  configWatcher.Stop,
	})

	lc.Append(fx.Hook{
		OnStart: sleepWatcher.Start,
		OnStop:  sleepWatcher.Stop,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := server.Listen(); err != nil {
				return err
			}
			go func() {
				if err := server.Serve(); err != nil && !errors.Is(err, control.ErrServerClosed) {
					logger.Error("Control server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: server.Shutdown,
	})
}
