// Package service wires the ledger, directories, publisher and HTTP servers
// into the running daemon.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/applianced/internal/accounts"
	"git.home.luguber.info/inful/applianced/internal/config"
	"git.home.luguber.info/inful/applianced/internal/credit"
	"git.home.luguber.info/inful/applianced/internal/directory"
	"git.home.luguber.info/inful/applianced/internal/jobs"
	"git.home.luguber.info/inful/applianced/internal/ledger"
	"git.home.luguber.info/inful/applianced/internal/logfields"
	"git.home.luguber.info/inful/applianced/internal/metrics"
	"git.home.luguber.info/inful/applianced/internal/pub"
	"git.home.luguber.info/inful/applianced/internal/registry"
	"git.home.luguber.info/inful/applianced/internal/retry"
	"git.home.luguber.info/inful/applianced/internal/server/httpserver"
	"git.home.luguber.info/inful/applianced/internal/specs"
)

// Service is the assembled daemon: storage, domain components, publisher,
// metrics, HTTP servers, scheduler and config watcher.
type Service struct {
	cfgMu    sync.RWMutex
	cfg      *config.Config
	cfgPath  string
	levelVar *slog.LevelVar

	store     *ledger.Store
	registry  *registry.Registry
	directory *directory.Directory
	publisher *pub.Publisher
	recorder  *metrics.PrometheusRecorder

	http      *httpserver.Server
	scheduler gocron.Scheduler
	watcher   *ConfigWatcher
}

// New loads configuration, opens storage and assembles all components. The
// daemon is not serving until Start is called.
func New(cfgPath string) (*Service, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	s := &Service{cfg: cfg, cfgPath: cfgPath, levelVar: new(slog.LevelVar)}
	s.setupLogging()

	if cfg.NATS.Enabled {
		s.publisher, err = pub.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("touch publisher: %w", err)
		}
	}

	promReg := prom.NewRegistry()
	s.recorder = metrics.NewPrometheusRecorder(promReg)

	opts := []ledger.Option{
		ledger.WithRetryPolicy(retry.FromConfig(cfg.Retry)),
		ledger.WithRecorder(s.recorder),
	}
	if s.publisher != nil {
		opts = append(opts, ledger.WithPublisher(s.publisher))
	}
	s.store, err = ledger.Open(cfg.Storage.Path, opts...)
	if err != nil {
		if s.publisher != nil {
			s.publisher.Close()
		}
		return nil, err
	}

	s.registry = registry.New(s.store)
	s.directory = directory.New(s.store, s.registry)

	s.http = httpserver.New(cfg, httpserver.Options{
		Accounts:     accounts.New(s.store),
		Credit:       credit.New(s.store),
		Directory:    s.directory,
		Specs:        specs.New(s.store),
		Jobs:         jobs.New(s.directory),
		PromRegistry: promReg,
	})

	return s, nil
}

func (s *Service) setupLogging() {
	s.levelVar.Set(s.cfg.Logging.Level.SlogLevel())
	hopts := &slog.HandlerOptions{Level: s.levelVar}
	var handler slog.Handler
	if s.cfg.Logging.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, hopts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, hopts)
	}
	slog.SetDefault(slog.New(handler))
}

// Start registers the configured states on first run, then launches the HTTP
// servers, the state-gauge scheduler and the config watcher.
func (s *Service) Start(ctx context.Context) error {
	initialized, err := s.registry.Initialized(ctx)
	if err != nil {
		return err
	}
	if !initialized {
		if err := s.registry.Register(ctx, s.cfg.States); err != nil {
			return fmt.Errorf("register states: %w", err)
		}
		slog.Info("state registry initialised", slog.Int("states", len(s.cfg.States)))
	}

	if err := s.http.Start(ctx); err != nil {
		return err
	}

	if err := s.startScheduler(ctx); err != nil {
		_ = s.http.Stop(ctx)
		return err
	}

	s.watcher, err = NewConfigWatcher(s.cfgPath, s)
	if err != nil {
		// The daemon can run without live reload.
		slog.Warn("config watcher unavailable", logfields.Error(err))
	} else if err := s.watcher.Start(ctx); err != nil {
		slog.Warn("config watcher failed to start", logfields.Error(err))
		s.watcher = nil
	}

	return nil
}

func (s *Service) startScheduler(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.cfg.StateGaugeInterval),
		gocron.NewTask(s.refreshStateGauge, ctx),
		gocron.WithName("state-gauge-refresh"),
	)
	if err != nil {
		return fmt.Errorf("schedule state gauge refresh: %w", err)
	}
	sched.Start()
	s.scheduler = sched

	// Prime the gauge so /metrics is meaningful before the first tick.
	s.refreshStateGauge(ctx)
	return nil
}

// refreshStateGauge recomputes the appliances-per-state gauge from the latest
// state touches.
func (s *Service) refreshStateGauge(ctx context.Context) {
	for _, state := range s.cfg.States {
		set, err := s.directory.ListByState(ctx, state)
		if err != nil {
			slog.Warn("state gauge refresh failed", logfields.State(state), logfields.Error(err))
			return
		}
		s.recorder.SetAppliancesInState(state, len(set))
	}
}

// ApplyLogLevel changes the active log level at runtime.
func (s *Service) ApplyLogLevel(level config.LogLevel) {
	s.levelVar.Set(level.SlogLevel())
	s.cfgMu.Lock()
	s.cfg.Logging.Level = level
	s.cfgMu.Unlock()
	slog.Info("log level changed", slog.String("level", string(level)))
}

// Config returns a snapshot of the currently active configuration. Callers
// get a copy; runtime changes go through ApplyLogLevel.
func (s *Service) Config() config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return *s.cfg
}

// Stop shuts everything down in reverse start order.
func (s *Service) Stop(ctx context.Context) error {
	var errs []error

	if s.watcher != nil {
		if err := s.watcher.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("config watcher stop: %w", err))
		}
	}
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
		}
	}
	if s.http != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.http.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.publisher != nil {
		s.publisher.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close ledger: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	slog.Info("daemon stopped")
	return nil
}
