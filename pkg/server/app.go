package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalForge/internal/scheduler"
	xhttp "SignalForge/pkg/http"
	pkgkafka "SignalForge/pkg/kafka"
	applogger "SignalForge/pkg/logger"
)

// Closer releases one infrastructure resource at shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// Closers are released in reverse order, so clients opened first close last.
type Closers []Closer

// Options are the optional parts of an App. A nil Consumer or Trigger
// disables the manual trigger topic; a nil Scheduler disables cron ticks.
type Options struct {
	Scheduler       *scheduler.Scheduler
	Consumer        *pkgkafka.Consumer
	Trigger         pkgkafka.MessageHandler
	HTTP            *xhttp.Server
	Closers         Closers
	ShutdownTimeout time.Duration
}

// App encapsulates the entire application lifecycle.
type App struct {
	log  *applogger.Logger
	opts Options
}

func New(l *applogger.Logger, opts Options) *App {
	if l == nil {
		l = applogger.Nop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 15 * time.Second
	}
	return &App{log: l, opts: opts}
}

// Start launches the HTTP server, the trigger consumer and the scheduler.
func (a *App) Start() error {
	if a.opts.HTTP != nil {
		if err := a.opts.HTTP.Start(); err != nil {
			return fmt.Errorf("start http: %w", err)
		}
	}

	if a.opts.Consumer != nil && a.opts.Trigger != nil {
		if err := a.opts.Consumer.RegisterHandler(a.opts.Trigger); err != nil {
			return fmt.Errorf("register trigger handler: %w", err)
		}
		if err := a.opts.Consumer.Start(); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		a.log.Info("trigger consumer started", applogger.String("topic", a.opts.Trigger.Topic()))
	}

	if a.opts.Scheduler != nil {
		a.opts.Scheduler.Start()
	}
	return nil
}

// Run starts the app and blocks until ctx is cancelled or SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		shutdownErr := a.Shutdown(context.Background())
		return errors.Join(err, shutdownErr)
	}
	<-ctx.Done()

	a.log.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Shutdown stops intake first (scheduler, consumer, HTTP) so in-flight runs
// can still reach the stores, then releases the closers.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.opts.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.opts.Scheduler != nil {
		if err := a.opts.Scheduler.Stop(ctx); err != nil {
			a.log.Warn("scheduler stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.opts.Consumer != nil {
		if err := a.opts.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.opts.HTTP != nil {
		if err := a.opts.HTTP.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	for i := len(a.opts.Closers) - 1; i >= 0; i-- {
		c := a.opts.Closers[i]
		if c.Close == nil {
			continue
		}
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.Name, err))
		}
	}

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
