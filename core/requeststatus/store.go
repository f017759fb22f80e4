package requeststatus

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/railsched/core/model"
)

// DefaultRetention is how long finished requests stay visible to pollers.
const DefaultRetention = 15 * time.Minute

// defaultEstimate is reported while a request has not made measurable progress.
const defaultEstimate = 30 * time.Second

// Entry is the tracked state of one request.
type Entry struct {
	RequestID  string             `json:"request_id"`
	State      model.RequestState `json:"state"`
	Phase      model.Phase        `json:"phase"`
	Progress   float64            `json:"progress_percent"`
	StartedAt  time.Time          `json:"started_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	FinishedAt time.Time          `json:"finished_at,omitempty"`
}

// MemoryStore keeps request states in memory. One writer per request and any
// number of readers may use it concurrently.
type MemoryStore struct {
	mu        sync.RWMutex
	data      map[string]Entry
	retention time.Duration
}

// NewMemoryStore returns a store evicting finished requests after retention.
// A non-positive retention selects DefaultRetention.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryStore{data: map[string]Entry{}, retention: retention}
}

// Begin registers a request as processing.
func (s *MemoryStore) Begin(id string, now time.Time) {
	s.mu.Lock()
	s.data[id] = Entry{
		RequestID: id,
		State:     model.StateProcessing,
		Phase:     model.PhaseReceived,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.mu.Unlock()
}

// Advance moves a processing request to phase. Progress never decreases.
func (s *MemoryStore) Advance(id string, phase model.Phase, progress float64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[id]
	if !ok || e.State != model.StateProcessing {
		return
	}
	e.Phase = phase
	if progress > e.Progress {
		e.Progress = progress
	}
	e.UpdatedAt = now
	s.data[id] = e
}

// Finish marks the request completed, or failed when phase is PhaseFailed.
func (s *MemoryStore) Finish(id string, phase model.Phase, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[id]
	if !ok {
		e = Entry{RequestID: id, StartedAt: now}
	}
	e.State = model.StateCompleted
	if phase == model.PhaseFailed {
		e.State = model.StateFailed
	}
	e.Phase = phase
	e.Progress = 100
	e.UpdatedAt = now
	e.FinishedAt = now
	s.data[id] = e
}

// Get returns the entry of a request.
func (s *MemoryStore) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	return e, ok
}

// List returns all tracked entries ordered by start time.
func (s *MemoryStore) List() []Entry {
	s.mu.RLock()
	res := make([]Entry, 0, len(s.data))
	for _, e := range s.data {
		res = append(res, e)
	}
	s.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		if !res[i].StartedAt.Equal(res[j].StartedAt) {
			return res[i].StartedAt.Before(res[j].StartedAt)
		}
		return res[i].RequestID < res[j].RequestID
	})
	return res
}

// Report answers a status poll. Unknown or evicted requests are NOT_FOUND.
// The remaining time of a processing request is extrapolated from the
// elapsed time and progress.
func (s *MemoryStore) Report(id string, now time.Time) model.StatusReport {
	e, ok := s.Get(id)
	if !ok || s.expired(e, now) {
		return model.StatusReport{RequestID: id, State: model.StateNotFound}
	}
	r := model.StatusReport{
		RequestID:       id,
		State:           e.State,
		ProgressPercent: e.Progress,
		Phase:           e.Phase,
	}
	if e.State != model.StateProcessing {
		return r
	}
	r.EstimatedRemaining = defaultEstimate
	if e.Progress > 0 {
		elapsed := now.Sub(e.StartedAt)
		total := time.Duration(float64(elapsed) / (e.Progress / 100))
		r.EstimatedRemaining = total - elapsed
		if r.EstimatedRemaining < 0 {
			r.EstimatedRemaining = 0
		}
	}
	return r
}

// Sweep evicts requests finished more than the retention ago and returns how
// many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.data {
		if s.expired(e, now) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) expired(e Entry, now time.Time) bool {
	return !e.FinishedAt.IsZero() && now.Sub(e.FinishedAt) > s.retention
}

// Run sweeps the store every interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.retention / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}
