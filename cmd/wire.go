package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	promadapter "github.com/bnema/session-tokens/internal/adapters/metrics/prom"
	sqliteledger "github.com/bnema/session-tokens/internal/adapters/ledger/sqlite"
	statusadapter "github.com/bnema/session-tokens/internal/adapters/render/status"
	redisstore "github.com/bnema/session-tokens/internal/adapters/repo/redis"
	tomlrepo "github.com/bnema/session-tokens/internal/adapters/repo/toml"
	yamltaxonomy "github.com/bnema/session-tokens/internal/adapters/taxonomy/yaml"
	"github.com/bnema/session-tokens/internal/application"
	"github.com/bnema/session-tokens/internal/config"
	"github.com/bnema/session-tokens/internal/domain"
	"github.com/bnema/session-tokens/internal/logging"
	"github.com/bnema/session-tokens/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
)

type app struct {
	cfg            config.Config
	logger         *slog.Logger
	manager        *application.SessionManager
	watchdog       *application.Watchdog
	ledger         ports.Ledger
	taxonomy       ports.TaxonomySource
	registry       *prometheus.Registry
	statusRenderer func([]domain.Token, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
	closers        []func() error
}

func wireApp() (*app, error) {
	cfg, v, err := config.Load(os.Getenv("ST_CONFIG"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(level)

	a := &app{
		cfg:            cfg,
		logger:         logger,
		registry:       prometheus.NewRegistry(),
		statusRenderer: statusadapter.Render,
		now:            ports.SystemClock{}.Now,
	}

	var store ports.SessionStore
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redisstore.WithPrefix(cfg.RedisPrefix))
		a.closers = append(a.closers, rs.Close)
		store = rs
	default:
		repo, err := tomlrepo.NewRepository(v)
		if err != nil {
			return nil, fmt.Errorf("wire session repository: %w", err)
		}
		store = repo
	}

	ledger, err := sqliteledger.Open(cfg.LedgerPath)
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("wire alert ledger: %w", err)
	}
	a.closers = append(a.closers, ledger.Close)
	a.ledger = ledger

	taxonomy, err := yamltaxonomy.New()
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("wire taxonomy: %w", err)
	}
	a.taxonomy = taxonomy

	metrics, err := promadapter.New(a.registry)
	if err != nil {
		_ = a.close()
		return nil, fmt.Errorf("wire metrics: %w", err)
	}

	clock := ports.SystemClock{}
	a.manager = application.NewSessionManager(store, clock, application.WithManagerLogger(logger))
	a.watchdog = application.NewWatchdog(a.manager, ledger, clock,
		application.WithWatchdogLogger(logger),
		application.WithMetrics(metrics),
	)

	return a, nil
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
