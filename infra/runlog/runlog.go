// Package runlog appends one JSON line per finished optimization request to a
// size-rotated file and reads them back.
package runlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/railsched/core/events"
	"github.com/kilianp07/railsched/core/model"
)

// Config controls file location and rotation.
type Config struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// SetDefaults fills rotation values left at zero.
func (c *Config) SetDefaults() {
	if c.Path == "" {
		c.Path = "logs/runs.jsonl"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the configuration when the run log is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Path == "" {
		return errors.New("runlog.path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return errors.New("runlog rotation values must not be negative")
	}
	return nil
}

// Record is the summary of one optimization request.
type Record struct {
	Timestamp         time.Time    `json:"timestamp"`
	RequestID         string       `json:"request_id"`
	SectionID         string       `json:"section_id,omitempty"`
	Status            model.Status `json:"status"`
	Trains            int          `json:"trains"`
	SkippedRules      int          `json:"skipped_rules"`
	DurationMS        int64        `json:"duration_ms"`
	TotalDelayMinutes float64      `json:"total_delay_minutes"`
	ConflictsResolved int          `json:"conflicts_resolved"`
	EnergyKWh         float64      `json:"energy_kwh"`
	Error             string       `json:"error,omitempty"`
}

// FromEvent summarizes an optimization event.
func FromEvent(e events.OptimizationEvent) Record {
	r := Record{
		Timestamp:         e.At,
		RequestID:         e.RequestID,
		SectionID:         e.SectionID,
		Status:            e.Status,
		Trains:            e.Trains,
		SkippedRules:      e.Skipped,
		DurationMS:        e.Duration.Milliseconds(),
		TotalDelayMinutes: e.Metrics.TotalDelayMinutes,
		ConflictsResolved: e.Metrics.ConflictsResolved,
		EnergyKWh:         e.Metrics.EnergyKWh,
	}
	if e.Err != nil {
		r.Error = e.Err.Error()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	return r
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	RequestID string
	Status    model.Status
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RequestID != "" && r.RequestID != q.RequestID {
		return false
	}
	return q.Status == "" || r.Status == q.Status
}

// Store writes records to a rotating JSONL file.
type Store struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
}

// NewStore creates the parent directory of cfg.Path and opens the store.
func NewStore(cfg Config) (*Store, error) {
	cfg.SetDefaults()
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &Store{logger: lj, path: cfg.Path}, nil
}

// Append writes rec as one line, rotating the file when it is full.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.NewEncoder(s.logger).Encode(rec)
}

// Query reads the current and rotated files and returns matching records
// ordered by timestamp. Undecodable lines are skipped.
func (s *Store) Query(q Query) ([]Record, error) {
	dir := filepath.Dir(s.path)
	ext := filepath.Ext(s.path)
	base := filepath.Base(s.path)
	prefix := base[:len(base)-len(ext)]
	// lumberjack names backups <prefix>-<timestamp><ext>
	files, err := filepath.Glob(filepath.Join(dir, prefix+"*"+ext))
	if err != nil {
		return nil, err
	}
	var out []Record
	for _, f := range files {
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			var r Record
			if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
				continue
			}
			if q.match(r) {
				out = append(out, r)
			}
		}
		_ = file.Close()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Rotate closes the current file and starts a new one.
func (s *Store) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger.Rotate()
}

// Close closes the underlying writer.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger.Close()
}
