package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/mohammad-safakhou/researcher/config"
	"github.com/mohammad-safakhou/researcher/internal/logging"
	"github.com/mohammad-safakhou/researcher/internal/queue/natsbus"
	"github.com/mohammad-safakhou/researcher/internal/runtime"
	"github.com/mohammad-safakhou/researcher/internal/store"
	"github.com/mohammad-safakhou/researcher/internal/worker"
	"github.com/mohammad-safakhou/researcher/provider"
	openai_provider "github.com/mohammad-safakhou/researcher/provider/openai"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds what every command needs: config, logger and the optional backends.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *runtime.Telemetry
	store     *store.Store
	redis     *redis.Client
	closers   []func() error
}

func loadApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.General)
	if err != nil {
		return nil, err
	}
	tel, err := runtime.SetupTelemetry(ctx, cfg.Telemetry, runtime.TelemetryOptions{ServiceVersion: version})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, telemetry: tel}, nil
}

// deps connects the configured backends and builds the runner dependencies.
func (a *app) deps(ctx context.Context, sink openai_provider.TokenSink) (worker.Deps, error) {
	completer, err := provider.NewCompleter(a.cfg.LLM, sink, a.logger)
	if err != nil {
		return worker.Deps{}, err
	}
	d := worker.Deps{Config: a.cfg, Completer: completer, Logger: a.logger}

	if a.cfg.Storage.Postgres.Enabled() {
		st, err := store.NewWithDSN(ctx, a.cfg.Storage.Postgres.DSN())
		if err != nil {
			return worker.Deps{}, err
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
		d.Journal = st
	}
	if a.cfg.Storage.Redis.Enabled() {
		client, err := newRedis(ctx, a.cfg.Storage.Redis)
		if err != nil {
			return worker.Deps{}, err
		}
		a.redis = client
		a.closers = append(a.closers, client.Close)
		d.Redis = client
	}
	if url := a.cfg.Events.NATSURL; url != "" {
		nc, err := natsbus.Connect(url, a.logger)
		if err != nil {
			return worker.Deps{}, err
		}
		a.closers = append(a.closers, func() error { return nc.Drain() })
		d.NATS = nc
	}
	return d, nil
}

func newRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: net.JoinHostPort(cfg.Host, cfg.Port), Password: cfg.Password, DB: cfg.DB}
	}
	if cfg.Timeout > 0 {
		opts.DialTimeout = cfg.Timeout
		opts.ReadTimeout = cfg.Timeout
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed (%s): %w", opts.Addr, err)
	}
	return client, nil
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	errs = append(errs, a.telemetry.Shutdown(ctx))
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
