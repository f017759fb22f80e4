package optimization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/infra/runlog"
)

// Optimizer runs and tracks optimization requests.
type Optimizer interface {
	Optimize(ctx context.Context, req model.OptimizationRequest) model.OptimizationResponse
	GetStatus(id string) model.StatusReport
}

// Validator checks submitted schedules.
type Validator interface {
	Validate(req model.ValidationRequest) model.ValidationResponse
}

// Simulator plays what-if scenarios.
type Simulator interface {
	Simulate(req model.SimulationRequest) model.SimulationResponse
}

// RunQuerier reads the run log.
type RunQuerier interface {
	Query(q runlog.Query) ([]runlog.Record, error)
}

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes = 4 << 20

// ObjectiveInfo describes one supported objective.
type ObjectiveInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Objectives lists every objective the optimizer accepts.
var Objectives = []ObjectiveInfo{
	{string(model.ObjectiveMinimizeDelay), "Minimize the priority weighted positive delay of all trains."},
	{string(model.ObjectiveMaximizeThroughput), "Maximize the weighted number of trains arriving within five minutes of plan."},
	{string(model.ObjectiveMinimizeEnergy), "Minimize the estimated traction energy, penalizing speed and delay."},
	{string(model.ObjectiveMaximizeUtil), "Maximize the occupancy of the route sections."},
	{string(model.ObjectiveMinimizeConflicts), "Minimize the number of overlapping train pairs."},
	{string(model.ObjectiveBalanced), "Blend delay and throughput with a 70/30 weighting."},
}

// Handler serves the optimization API.
type Handler struct {
	opt      Optimizer
	val      Validator
	sim      Simulator
	runs     RunQuerier
	token    string
	maxBody  int64
	log      logger.Logger
	health   func() error
	readyFor time.Time
}

// Option customizes a Handler.
type Option func(*Handler)

// WithRunLog exposes GET /api/optimize/runs. A non-empty token requires an
// "Authorization: Bearer <token>" header.
func WithRunLog(q RunQuerier, token string) Option {
	return func(h *Handler) { h.runs, h.token = q, token }
}

// WithMaxBodyBytes limits request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithHealthCheck makes GET /health report unhealthy when fn fails.
func WithHealthCheck(fn func() error) Option { return func(h *Handler) { h.health = fn } }

// NewHandler builds the API around the three services.
func NewHandler(opt Optimizer, val Validator, sim Simulator, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{opt: opt, val: val, sim: sim, log: log, maxBody: DefaultMaxBodyBytes, readyFor: time.Now()}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/optimize", h.optimize)
	mux.HandleFunc("GET /api/optimize/status", h.status)
	mux.HandleFunc("GET /api/optimize/status/{id}", h.status)
	mux.HandleFunc("GET /api/optimize/objectives", h.objectives)
	mux.HandleFunc("POST /api/validate", h.validate)
	mux.HandleFunc("POST /api/simulate", h.simulate)
	mux.HandleFunc("GET /health", h.healthz)
	if h.runs != nil {
		mux.HandleFunc("GET /api/optimize/runs", h.listRuns)
	}
	return mux
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, ErrorDTO{Error: "invalid request body", Details: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) optimize(w http.ResponseWriter, r *http.Request) {
	var in OptimizationRequestDTO
	if !h.decode(w, r, &in) {
		return
	}
	resp := h.opt.Optimize(r.Context(), RequestToModel(in))
	h.log.Infof("optimize %s: %s in %s", resp.RequestID, resp.Status, resp.ExecutionTime)
	out := ResponseFromModel(resp)
	out.Schedule = nonNil(out.Schedule)
	out.Alternatives = nonNil(out.Alternatives)
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: "missing request id"})
		return
	}
	rep := h.opt.GetStatus(id)
	code := http.StatusOK
	if rep.State == model.StateNotFound {
		code = http.StatusNotFound
	}
	writeJSON(w, code, statusFromModel(rep))
}

func (h *Handler) objectives(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Objectives)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var in ValidationRequestDTO
	if !h.decode(w, r, &in) {
		return
	}
	resp := h.val.Validate(ValidationRequestToModel(in))
	writeJSON(w, http.StatusOK, ValidationResponseFromModel(resp))
}

func (h *Handler) simulate(w http.ResponseWriter, r *http.Request) {
	var in SimulationRequestDTO
	if !h.decode(w, r, &in) {
		return
	}
	resp := h.sim.Simulate(SimulationRequestToModel(in))
	code := http.StatusOK
	if !resp.Success {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, SimulationResponseFromModel(resp))
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "healthy", "uptime_seconds": int64(time.Since(h.readyFor).Seconds())}
	if h.health != nil {
		if err := h.health(); err != nil {
			body["status"] = "unhealthy"
			body["details"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		writeJSON(w, http.StatusUnauthorized, ErrorDTO{Error: "unauthorized"})
		return
	}
	q := runlog.Query{
		RequestID: r.URL.Query().Get("request_id"),
		Status:    model.Status(r.URL.Query().Get("status")),
	}
	for key, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		s := r.URL.Query().Get(key)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: fmt.Sprintf("invalid %s", key), Details: err.Error()})
			return
		}
		*dst = t
	}
	records, err := h.runs.Query(q)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorDTO{Error: "run log unavailable", Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}
