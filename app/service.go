// Package app wires the optimizer, its HTTP API and the optional outputs
// (metrics, run log, MQTT publication) into one service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/kilianp07/railsched/api/optimization"
	"github.com/kilianp07/railsched/config"
	coremetrics "github.com/kilianp07/railsched/core/metrics"
	"github.com/kilianp07/railsched/core/optimizer"
	"github.com/kilianp07/railsched/core/requeststatus"
	"github.com/kilianp07/railsched/core/simulation"
	"github.com/kilianp07/railsched/core/validation"
	"github.com/kilianp07/railsched/infra/logger"
	"github.com/kilianp07/railsched/infra/metrics"
	"github.com/kilianp07/railsched/infra/mqtt"
	"github.com/kilianp07/railsched/infra/runlog"
	"github.com/kilianp07/railsched/internal/eventbus"
)

// Service owns the engine and every background component.
type Service struct {
	Engine    *optimizer.Engine
	Validator *validation.Validator
	Simulator *simulation.Simulator

	cfg       *config.Config
	status    *requeststatus.MemoryStore
	bus       *eventbus.Bus
	sink      coremetrics.MetricsSink
	runs      *runlog.Store
	publisher *mqtt.PahoClient
	handler   http.Handler
	log       logger.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher injects an already connected MQTT client instead of dialing
// the configured broker.
func WithPublisher(p *mqtt.PahoClient) Option { return func(s *Service) { s.publisher = p } }

// New builds the service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, err
	}
	log := logger.New("service")
	s := &Service{cfg: cfg, log: log, bus: eventbus.New()}
	for _, o := range opts {
		o(s)
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink

	if cfg.RunLog.Enabled {
		if s.runs, err = runlog.NewStore(cfg.RunLog); err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
	}
	if cfg.MQTT.Enabled && s.publisher == nil {
		if s.publisher, err = mqtt.NewPahoClient(cfg.MQTT); err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
	}

	s.status = requeststatus.NewMemoryStore(cfg.Status.Retention)
	s.Engine = optimizer.NewEngine(cfg.Optimizer.EngineConfig(), logger.New("optimizer"),
		optimizer.WithStatusTracker(s.status),
		optimizer.WithEventBus(s.bus),
	)
	s.Validator = validation.New(cfg.Optimizer.HeadwayMinutes, logger.New("validation"))
	s.Simulator = simulation.New(cfg.Optimizer.HeadwayMinutes, logger.New("simulation"))

	hopts := []optimization.Option{optimization.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes)}
	if s.runs != nil {
		hopts = append(hopts, optimization.WithRunLog(s.runs, cfg.HTTP.RunsToken))
	}
	s.handler = optimization.NewHandler(s.Engine, s.Validator, s.Simulator, logger.New("api"), hopts...).Routes()
	return s, nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run starts the background components and the HTTP server and blocks until
// ctx is cancelled or the server fails.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.status.Run(ctx, s.cfg.Status.SweepInterval)
	}()
	waits := []<-chan struct{}{metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics"))}
	if s.runs != nil {
		waits = append(waits, runlog.StartRecorder(ctx, s.bus, s.runs, logger.New("runlog")))
	}
	if s.publisher != nil {
		waits = append(waits, mqtt.StartScheduleForwarder(ctx, s.bus, s.publisher, s.cfg.MQTT.AckTimeout, logger.New("mqtt")))
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.StartPromServer(ctx, ":"+port, s.log); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         s.cfg.HTTP.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	cancel()
	for _, w := range waits {
		<-w
	}
	wg.Wait()
	return runErr
}

// Close releases the bus and the outputs.
func (s *Service) Close() error {
	s.bus.Close()
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.runs != nil {
		return s.runs.Close()
	}
	return nil
}
