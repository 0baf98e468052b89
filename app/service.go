package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apimatch "github.com/kilianp07/crisismatch/api/match"
	"github.com/kilianp07/crisismatch/config"
	"github.com/kilianp07/crisismatch/core/availability"
	corecache "github.com/kilianp07/crisismatch/core/cache"
	"github.com/kilianp07/crisismatch/core/cultural"
	"github.com/kilianp07/crisismatch/core/emergency"
	"github.com/kilianp07/crisismatch/core/matching"
	"github.com/kilianp07/crisismatch/core/matching/logging"
	coremetrics "github.com/kilianp07/crisismatch/core/metrics"
	"github.com/kilianp07/crisismatch/core/model"
	coremon "github.com/kilianp07/crisismatch/core/monitoring"
	coreprofile "github.com/kilianp07/crisismatch/core/profile"
	"github.com/kilianp07/crisismatch/core/quality"
	"github.com/kilianp07/crisismatch/core/workload"
	"github.com/kilianp07/crisismatch/infra/alert"
	infracache "github.com/kilianp07/crisismatch/infra/cache"
	"github.com/kilianp07/crisismatch/infra/logger"
	"github.com/kilianp07/crisismatch/infra/metrics"
	"github.com/kilianp07/crisismatch/infra/monitoring"
	"github.com/kilianp07/crisismatch/infra/mqtt"
	"github.com/kilianp07/crisismatch/internal/eventbus"
)

// Option tweaks how New assembles the service.
type Option func(*options)

type options struct {
	offline bool
	online  bool
}

// Offline skips MQTT, SMS alerts and Sentry. Used by one-shot CLI commands.
func Offline() Option { return func(o *options) { o.offline = true } }

// AllOnline registers every known responder as Online instead of Offline.
func AllOnline() Option { return func(o *options) { o.online = true } }

// Service wires the matching components together.
type Service struct {
	Registry *availability.Registry
	Profiles *coreprofile.LastGood
	Assessor *workload.Assessor
	Tracker  *quality.Tracker
	Pool     *emergency.Manager
	Engine   *matching.Engine

	cfg       *config.Config
	bus       *eventbus.Bus
	sink      coremetrics.MetricsSink
	logs      logging.Store
	monitor   coremon.Monitor
	mqtt      *mqtt.PahoClient
	notifier  *alert.Notifier
	wlMonitor *workload.Monitor
	closers   []io.Closer
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logg := logger.New("service")
	s := &Service{cfg: cfg, bus: eventbus.New(), monitor: coremon.NopMonitor{}, log: logg}
	if err := s.build(ctx, o); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(ctx context.Context, o options) error {
	cfg := s.cfg
	if !o.offline {
		mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
		if err != nil {
			return fmt.Errorf("sentry: %w", err)
		}
		s.monitor = mon
	}

	profiles, closer, err := openProfiles(ctx, cfg.Profiles, logger.New("profiles"))
	if err != nil {
		return fmt.Errorf("profiles: %w", err)
	}
	s.Profiles = profiles
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	s.Registry = availability.NewRegistry(cfg.Availability, logger.New("availability"))
	n, err := registerResponders(ctx, profiles, s.Registry, o.online)
	if err != nil {
		return fmt.Errorf("register responders: %w", err)
	}
	s.log.Infof("registered %d responders", n)

	wlCache, qCache, err := s.caches(ctx)
	if err != nil {
		return err
	}
	s.Tracker = quality.NewTracker(cfg.Quality, qCache, logger.New("quality"))
	s.Tracker.SetPrior(func(ctx context.Context, id string) (float64, bool) {
		p, err := profiles.Get(ctx, id)
		if err != nil || p.AverageRating <= 0 {
			return 0, false
		}
		return (p.AverageRating - 1) / 4, true
	})
	s.Assessor = workload.NewAssessor(cfg.Workload, profiles, s.Registry, wlCache, logger.New("workload"))
	s.Assessor.SetRatings(s.Tracker)
	s.Pool = emergency.NewManager(cfg.Emergency, profiles, s.Registry, logger.New("emergency"))

	engine, err := matching.NewEngine(cfg.Matching, s.Registry, profiles, s.Assessor, s.Tracker,
		cultural.NewEngine(profiles), s.Pool, logger.New("matching"))
	if err != nil {
		return fmt.Errorf("match engine: %w", err)
	}
	s.Engine = engine

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink
	engine.SetMetricsSink(sink)
	engine.SetEventBus(s.bus)
	engine.SetMonitor(s.monitor)

	if cfg.DecisionLog.Backend != "none" {
		store, err := logging.Open(cfg.DecisionLog.Store())
		if err != nil {
			return fmt.Errorf("decision log: %w", err)
		}
		if store != nil {
			s.logs = store
			s.closers = append(s.closers, store)
			engine.SetDecisionLog(store)
		}
	}

	s.wlMonitor = workload.NewMonitor(s.Assessor, s.Registry,
		intervener{registry: s.Registry, bus: s.bus, now: time.Now}, s.bus, logger.New("workload-monitor"))

	if o.offline {
		return nil
	}
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewPahoClient(cfg.MQTT, s.Registry, logger.New("mqtt"))
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		client.SetMonitor(s.monitor)
		s.mqtt = client
	}
	if cfg.Alerts.Enabled {
		sender, err := alert.NewTwilioSender(cfg.Alerts)
		if err != nil {
			return fmt.Errorf("alerts: %w", err)
		}
		s.notifier = alert.NewNotifier(cfg.Alerts, sender, logger.New("alerts"))
	}
	return nil
}

func (s *Service) caches(ctx context.Context) (corecache.Cache[model.WorkloadAssessment], corecache.Cache[model.QualityScore], error) {
	if s.cfg.Cache.Backend != "redis" {
		return corecache.NewMemory[model.WorkloadAssessment](), corecache.NewMemory[model.QualityScore](), nil
	}
	rdb, err := infracache.NewClient(ctx, s.cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	s.closers = append(s.closers, rdb)
	log := logger.New("cache")
	prefix := s.cfg.Cache.Redis.Prefix
	return infracache.NewRedisCache[model.WorkloadAssessment](rdb, prefix+"workload:", log),
		infracache.NewRedisCache[model.QualityScore](rdb, prefix+"quality:", log), nil
}

// Handler returns the HTTP routes backed by this service.
func (s *Service) Handler() http.Handler {
	return apimatch.NewRouter(apimatch.Services{
		Matcher:      s.Engine,
		Availability: s.Registry,
		Workload:     s.Assessor,
		Pool:         s.Pool,
		Logs:         s.logs,
		Gatherer:     prometheus.DefaultGatherer,
	}, s.cfg.HTTP.Token, logger.New("http"))
}

// Run starts the background loops and the HTTP server, and blocks until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer s.monitor.Recover()
	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	relayDone := relayAvailability(ctx, s.Registry, s.bus)
	watch := s.Registry.Events()
	spawn(func() {
		defer s.Registry.Unsubscribe(watch)
		s.Assessor.Watch(ctx, watch)
	})
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.mqtt != nil {
		fwdDone := mqtt.NewEventForwarder(s.mqtt, s.cfg.MQTT, logger.New("mqtt-forwarder")).Start(ctx, s.bus)
		spawn(func() { <-fwdDone })
	}
	if s.notifier != nil {
		notifyDone := s.notifier.Start(ctx, s.bus)
		spawn(func() { <-notifyDone })
	}
	spawn(func() { s.Pool.Run(ctx) })
	spawn(func() { s.wlMonitor.Run(ctx) })
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		spawn(func() {
			if err := metrics.StartPromServer(ctx, addr, prometheus.DefaultGatherer); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		})
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.HTTP.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	if runErr == nil {
		wg.Wait()
		<-relayDone
	}
	return runErr
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Registry != nil {
		s.Registry.Close()
	}
	if n := s.bus.Dropped(); n > 0 {
		s.log.Warnf("event bus dropped %d deliveries to slow subscribers", n)
	}
	s.bus.Close()
	s.monitor.Flush(2 * time.Second)
	return errors.Join(errs...)
}
