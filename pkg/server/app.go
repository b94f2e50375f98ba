package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalPulse/internal/usecase"
	"SignalPulse/pkg/config"
	xhttp "SignalPulse/pkg/http"
	pkgkafka "SignalPulse/pkg/kafka"
	applogger "SignalPulse/pkg/logger"
	"SignalPulse/pkg/queue"
)

// Closer releases an infrastructure client on shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	scheduler  *usecase.Scheduler
	monitor    *usecase.SignalMonitor
	jobs       *queue.RedisQueue
	consumer   *pkgkafka.Consumer
	closers    []Closer
}

type Option func(*App)

// WithMonitor runs the live signal monitor.
func WithMonitor(m *usecase.SignalMonitor) Option {
	return func(a *App) { a.monitor = m }
}

// WithJobQueue runs the Redis job workers.
func WithJobQueue(q *queue.RedisQueue) Option {
	return func(a *App) { a.jobs = q }
}

// WithConsumer runs the Kafka consumer with its registered handlers.
func WithConsumer(c *pkgkafka.Consumer) Option {
	return func(a *App) { a.consumer = c }
}

// WithClosers registers clients closed last, in reverse order.
func WithClosers(cs ...Closer) Option {
	return func(a *App) { a.closers = append(a.closers, cs...) }
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, scheduler *usecase.Scheduler, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{cfg: cfg, log: log, httpServer: httpServer, scheduler: scheduler}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start launches the components in dependency order. The monitor is optional
// at runtime: a feed that cannot connect is logged and the engine keeps
// running without live closes.
func (a *App) Start(ctx context.Context) error {
	if err := a.httpServer.Start(); err != nil {
		return err
	}
	if a.jobs != nil {
		if err := a.jobs.Start(ctx); err != nil {
			return err
		}
		a.log.Info("job workers started")
	}
	if a.consumer != nil {
		if err := a.consumer.Start(ctx); err != nil {
			return err
		}
	}
	if a.monitor != nil {
		if err := a.monitor.Start(ctx); err != nil {
			a.log.Error("signal monitor not started", applogger.Error(err))
			a.monitor = nil
		} else {
			a.log.Info("signal monitor started", applogger.Int("watching", a.monitor.Watching()))
		}
	}
	a.scheduler.Start(ctx)
	a.log.Info("scheduler started", applogger.Duration("interval", a.cfg.Engine.CycleInterval))
	return nil
}

// Shutdown stops everything Start launched. The ctx given to Start must be
// cancelled first so that the background loops exit.
func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.scheduler.Wait()
	if a.monitor != nil {
		if err := a.monitor.Shutdown(ctx); err != nil {
			a.log.Warn("monitor stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.jobs != nil {
		if err := a.jobs.Stop(ctx); err != nil {
			a.log.Warn("job workers stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	a.log.DetachCollector()
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("client", c.Name), applogger.Error(err))
		}
	}
	return nil
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 15 * time.Second
}
