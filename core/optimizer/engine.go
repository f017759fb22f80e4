package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/requeststatus"
	"github.com/kilianp07/railsched/core/solver"
	"github.com/kilianp07/railsched/internal/eventbus"
)

// Progress checkpoints reported to status pollers.
const (
	progressModel = 25
	progressDone  = 100
)

// StatusTracker records pipeline progress for status polling.
type StatusTracker interface {
	Begin(id string, now time.Time)
	Advance(id string, phase model.Phase, progress float64, now time.Time)
	Finish(id string, phase model.Phase, now time.Time)
	Report(id string, now time.Time) model.StatusReport
}

// AlternativesConfig bounds the generation of alternative schedules.
type AlternativesConfig struct {
	Enabled bool
	// Budget is shared by all re-solves of one request.
	Budget time.Duration
}

// Config holds the engine defaults. Request solver settings left at their
// zero value fall back to Solver.
type Config struct {
	Solver         model.SolverConfig
	HeadwayMinutes int
	UseLPBound     bool
	Alternatives   AlternativesConfig
}

// Engine runs optimization requests through the pipeline.
type Engine struct {
	cfg      Config
	log      logger.Logger
	status   StatusTracker
	bus      eventbus.EventBus
	now      func() time.Time
	validate *validator.Validate
}

// Option customizes an Engine.
type Option func(*Engine)

// WithStatusTracker replaces the in-memory status store.
func WithStatusTracker(s StatusTracker) Option { return func(e *Engine) { e.status = s } }

// WithEventBus publishes pipeline events on bus.
func WithEventBus(bus eventbus.EventBus) Option { return func(e *Engine) { e.bus = bus } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine returns an engine logging through log.
func NewEngine(cfg Config, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		validate: validator.New(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.status == nil {
		e.status = requeststatus.NewMemoryStore(requeststatus.DefaultRetention)
	}
	return e
}

// GetStatus returns the progress of a request. Unknown identifiers report
// NOT_FOUND.
func (e *Engine) GetStatus(id string) model.StatusReport {
	return e.status.Report(id, e.now())
}

func (e *Engine) headway() time.Duration {
	h := e.cfg.HeadwayMinutes
	if h <= 0 {
		h = DefaultHeadwayMinutes
	}
	return time.Duration(h) * time.Minute
}

func (e *Engine) solverConfig(req model.SolverConfig) model.SolverConfig {
	def := e.cfg.Solver
	if req.MaxTime <= 0 {
		req.MaxTime = def.MaxTime
	}
	if req.Workers <= 0 {
		req.Workers = def.Workers
	}
	if req.Strategy == "" {
		req.Strategy = def.Strategy
	}
	req.DetailedLogging = req.DetailedLogging || def.DetailedLogging
	req.Preprocessing = req.Preprocessing || def.Preprocessing
	return req
}

// Optimize schedules the request trains. It always returns a complete
// response: model and solver faults yield status ERROR with a message,
// infeasibility and timeouts are reported through the status. Cancelling ctx
// does not interrupt a running solve; the time limit bounds it.
func (e *Engine) Optimize(ctx context.Context, req model.OptimizationRequest) (resp model.OptimizationResponse) {
	started := e.now()
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	id := req.RequestID
	e.status.Begin(id, started)
	e.publish(events.PhaseEvent{RequestID: id, Phase: model.PhaseReceived, At: started})
	e.log.Infof("optimization %s: %d trains, horizon %d min", id, len(req.Trains), req.TimeHorizonMinutes)

	defer func() {
		if r := recover(); r != nil {
			resp = e.fail(req, started, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := e.validate.Struct(req); err != nil {
		return e.fail(req, started, &ModelBuildError{Reason: "invalid request", Err: err})
	}
	ref := ReferenceTime(req)
	p, err := e.prepare(req, req.Objective, ref, func(ph model.Phase) { e.advance(id, ph, progressModel) })
	if err != nil {
		return e.fail(req, started, err)
	}
	for _, s := range p.skipped {
		e.publishSkip(id, s)
	}

	e.advance(id, model.PhaseSolving, progressModel)
	scfg := e.solverConfig(req.Config)
	orch := Orchestrator{Log: e.log, UseLPBound: e.cfg.UseLPBound}
	out, err := orch.Solve(context.WithoutCancel(ctx), p.vars.Model, Params(scfg, req.Objective), scfg.DetailedLogging)
	if err != nil {
		return e.fail(req, started, err)
	}

	e.advance(id, model.PhaseExtraction, progressModel)
	resp = model.OptimizationResponse{
		RequestID:       id,
		Status:          out.Status,
		ConfidenceScore: model.Confidence(out.Status),
	}
	if out.Status.Solved() {
		entries, resolved := Extract(out.Result, p.vars, e.headway())
		resp.Schedule = entries
		resp.Metrics = ComputeMetrics(entries, req.Trains, req.TimeHorizonMinutes, len(resolved))
		if e.cfg.Alternatives.Enabled {
			resp.Alternatives = e.alternatives(ctx, req, ref, resp.Metrics)
		}
	}
	resp.Reasoning = Reasoning(out.Status, resp.Metrics, len(req.Trains), len(p.skipped))
	resp.CompletedAt = e.now()
	resp.ExecutionTime = resp.CompletedAt.Sub(started)

	e.status.Finish(id, model.PhaseCompleted, resp.CompletedAt)
	e.publish(events.OptimizationEvent{
		RequestID: id,
		SectionID: req.SectionID,
		Status:    resp.Status,
		Trains:    len(req.Trains),
		Skipped:   len(p.skipped),
		Metrics:   resp.Metrics,
		Schedule:  resp.Schedule,
		Duration:  resp.ExecutionTime,
		At:        resp.CompletedAt,
	})
	e.log.Infof("optimization %s: %s in %s", id, resp.Status, resp.ExecutionTime)
	return resp
}

func (e *Engine) fail(req model.OptimizationRequest, started time.Time, err error) model.OptimizationResponse {
	now := e.now()
	e.log.Errorf("optimization %s failed: %v", req.RequestID, err)
	e.status.Finish(req.RequestID, model.PhaseFailed, now)
	resp := model.OptimizationResponse{
		RequestID:     req.RequestID,
		Status:        model.StatusError,
		Reasoning:     Reasoning(model.StatusError, model.PerformanceMetrics{}, len(req.Trains), 0),
		ExecutionTime: now.Sub(started),
		CompletedAt:   now,
		ErrorMessage:  err.Error(),
	}
	e.publish(events.OptimizationEvent{
		RequestID: req.RequestID,
		SectionID: req.SectionID,
		Status:    model.StatusError,
		Trains:    len(req.Trains),
		Duration:  resp.ExecutionTime,
		Err:       err,
		At:        now,
	})
	return resp
}

func (e *Engine) advance(id string, phase model.Phase, progress float64) {
	now := e.now()
	e.status.Advance(id, phase, progress, now)
	e.publish(events.PhaseEvent{RequestID: id, Phase: phase, Progress: progress, At: now})
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) publishSkip(id string, err error) {
	ev := events.ConstraintSkippedEvent{RequestID: id, Err: err}
	var cae *ConstraintApplicationError
	if errors.As(err, &cae) {
		ev.ConstraintID = cae.ConstraintID
		ev.Kind = cae.Kind
	}
	e.publish(ev)
}

type prepared struct {
	vars    *Variables
	skipped []error
}

// prepare builds the model of a request: variables, built-in rules, request
// constraints, disruptions and the objective. Only faults that leave the
// model unusable are returned; skipped constraints are collected.
func (e *Engine) prepare(req model.OptimizationRequest, obj model.Objective, ref time.Time, advance func(model.Phase)) (*prepared, error) {
	advance(model.PhaseModelBuilding)
	m := solver.NewModel()
	vars, err := NewVariables(m, req.Trains, req.TimeHorizonMinutes, ref)
	if err != nil {
		return nil, err
	}

	advance(model.PhaseConstraintApplication)
	b := NewBuilder(vars, e.cfg.HeadwayMinutes, e.log)
	reg := NewRegistry(e.log)
	rules, skipped := reg.Prepare(req.Constraints, b)
	for _, r := range BuiltinRules() {
		if err := reg.Apply(r, b); err != nil {
			return nil, &ModelBuildError{Reason: "built-in rule " + r.ID(), Err: err}
		}
	}
	skipped = append(skipped, reg.ApplyAll(rules, b)...)
	for _, d := range req.Disruptions {
		rule, err := DisruptionRuleFor(d, ref)
		if err != nil {
			e.log.Warnf("skipping %v", err)
			skipped = append(skipped, err)
			continue
		}
		if err := reg.Apply(rule, b); err != nil {
			skipped = append(skipped, err)
		}
	}

	dispatched := b.Dispatch()

	advance(model.PhaseObjectiveComposition)
	expr, bad, err := Composer{}.Scalarize(obj, vars)
	if err != nil {
		return nil, &ModelBuildError{Reason: "objective", Err: err}
	}
	for _, err := range bad {
		e.log.Warnf("skipping secondary objective: %v", err)
	}
	m.Minimize(expr.Linear...)
	m.Minimize(b.Penalties()...)
	m.MinimizeSquares(expr.Squares...)
	if err := m.Err(); err != nil {
		return nil, &ModelBuildError{Reason: "model", Err: err}
	}
	e.log.Debugw("model built", map[string]any{
		"request_id":  req.RequestID,
		"variables":   m.NumVars(),
		"constraints": m.NumConstraints(),
		"skipped":     len(skipped),
		"dispatched":  dispatched,
	})
	return &prepared{vars: vars, skipped: skipped}, nil
}
