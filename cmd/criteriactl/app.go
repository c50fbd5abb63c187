package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/eligibility/internal/cache"
	"github.com/alfredjeanlab/eligibility/internal/config"
	"github.com/alfredjeanlab/eligibility/internal/events"
	"github.com/alfredjeanlab/eligibility/internal/service"
	"github.com/alfredjeanlab/eligibility/internal/store"
	"github.com/alfredjeanlab/eligibility/internal/store/dynamo"
	"github.com/alfredjeanlab/eligibility/internal/store/memory"
	"github.com/alfredjeanlab/eligibility/internal/store/postgres"
)

// app holds the backends a command runs against.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	owners    store.Store
	criteria  store.CriteriaStore
	publisher events.Publisher
	svc       *service.Service

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	logger, err := newLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var ms *memory.MemoryStore
	switch cfg.Backend {
	case config.BackendPostgres:
		pg, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg)
		a.owners = pg
		if cfg.CriteriaBackend == config.BackendPostgres {
			a.criteria = pg
		}
	case config.BackendMemory:
		ms = memory.New()
		a.owners = ms
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}

	switch cfg.CriteriaBackend {
	case config.BackendPostgres:
		// Opened with the owners above.
	case config.BackendMemory:
		if ms == nil {
			ms = memory.New()
		}
		a.criteria = ms
	case config.BackendDynamo:
		ds, err := dynamo.NewFromConfig(ctx, cfg.DynamoTable, cfg.DynamoRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		a.criteria = ds
		logger.Debug("dynamo criteria store", "table", cfg.DynamoTable, "region", cfg.DynamoRegion)
	default:
		return nil, fmt.Errorf("unsupported criteria backend %q", cfg.CriteriaBackend)
	}

	if cfg.CacheSize > 0 {
		if err := a.enableCache(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, err
		}
		a.publisher = pub
		logger.Debug("events enabled", "nats_url", cfg.NATSURL)
	} else {
		a.publisher = &events.NoopPublisher{}
	}
	a.closers = append(a.closers, a.publisher)

	a.svc = service.New(a.owners, a.criteria, a.publisher, service.WithLogger(logger))
	return a, nil
}

// enableCache puts a read cache in front of the criteria store. With a
// NATS URL, changes published by other processes invalidate it too.
func (a *app) enableCache(cfg *config.Config) error {
	cs := cache.New(a.criteria, cfg.CacheSize, cfg.CacheTTL, cache.WithLogger(a.logger))
	a.criteria = cs
	a.logger.Debug("criteria cache enabled", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	if cfg.NATSURL == "" {
		return nil
	}

	reconnect := make(chan struct{}, 1)
	sub, err := events.NewNATSSubscriber(cfg.NATSURL,
		nats.ReconnectHandler(func(_ *nats.Conn) {
			select {
			case reconnect <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := cs.Run(ctx, sub, reconnect); err != nil {
			a.logger.Error("cache invalidation stopped", "err", err)
		}
	}()
	a.closers = append(a.closers, closerFunc(func() error {
		cancel()
		<-done
		return sub.Close()
	}))
	return nil
}

// Close releases backends in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}
