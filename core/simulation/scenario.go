package simulation

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
)

const (
	defaultImpact         = 5
	defaultJourneyMinutes = 10
	speedImpactFactor     = 0.05
	weatherImpactFactor   = 0.03
	signalMinutesPerLevel = 3
	blockMinutesPerLevel  = 6
)

// run is the simulated state of one train.
type run struct {
	id        string
	priority  model.Priority
	planDep   time.Time
	planArr   time.Time
	dep       time.Time
	arr       time.Time
	platform  int
	baseDelay int
	speedKmh  float64
	held      bool
}

func (r *run) shift(d time.Duration) {
	r.dep = r.dep.Add(d)
	r.arr = r.arr.Add(d)
}

// delay is the arrival lateness in minutes on top of the delay already
// carried by the submitted entry.
func (r *run) delay() float64 {
	return float64(r.baseDelay) + r.arr.Sub(r.planArr).Minutes()
}

func fromEntry(e model.TrainScheduleEntry) *run {
	speed := 0.0
	for _, p := range e.SpeedProfile {
		speed = math.Max(speed, p.SpeedKmh)
	}
	return &run{
		id:        e.TrainID,
		priority:  e.PriorityApplied,
		planDep:   e.Departure,
		planArr:   e.Arrival,
		dep:       e.Departure,
		arr:       e.Arrival,
		platform:  e.Platform,
		baseDelay: e.DelayMinutes,
		speedKmh:  speed,
	}
}

func intParam(params map[string]string, key string, def int) (int, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	return v, nil
}

func floatParam(params map[string]string, key string, def float64) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	return v, nil
}

func minutes(n int) time.Duration { return time.Duration(n) * time.Minute }

// scenario holds the runs being simulated and the events they produced.
type scenario struct {
	start    time.Time
	runs     []*run
	timeline []model.SimulationEvent
	section  string
}

func (s *scenario) event(at time.Time, kind, trainID, format string, args ...any) {
	s.timeline = append(s.timeline, model.SimulationEvent{
		Timestamp:   at,
		EventType:   kind,
		TrainID:     trainID,
		SectionID:   s.section,
		Description: fmt.Sprintf(format, args...),
	})
}

func (s *scenario) find(id string) (int, *run) {
	for i, r := range s.runs {
		if r.id == id {
			return i, r
		}
	}
	return -1, nil
}

func (s *scenario) modify(m model.ScheduleModification) error {
	if m.TrainID == "" {
		return fmt.Errorf("%s: train id is required", m.Type)
	}
	i, r := s.find(m.TrainID)
	if r == nil && m.Type != model.ModAddTrain {
		return fmt.Errorf("%s: train %s is not in the base schedule", m.Type, m.TrainID)
	}
	switch m.Type {
	case model.ModDelayTrain:
		d, err := intParam(m.Parameters, "delay_minutes", 0)
		if err != nil {
			return fmt.Errorf("%s %s: %w", m.Type, m.TrainID, err)
		}
		r.shift(minutes(d))
		s.event(r.dep, "DELAYED", r.id, "train %s delayed by %d minutes", r.id, d)

	case model.ModRemoveTrain:
		s.runs = append(s.runs[:i], s.runs[i+1:]...)
		s.event(r.planDep, "REMOVED", r.id, "train %s removed from the schedule", r.id)

	case model.ModAddTrain:
		if r != nil {
			return fmt.Errorf("%s: train %s already scheduled", m.Type, m.TrainID)
		}
		added, err := s.added(m)
		if err != nil {
			return fmt.Errorf("%s %s: %w", m.Type, m.TrainID, err)
		}
		s.runs = append(s.runs, added)
		s.event(added.dep, "ADDED", added.id, "train %s added on platform %d", added.id, added.platform)

	case model.ModChangePlatform:
		p, err := intParam(m.Parameters, "platform", 0)
		if err != nil {
			return fmt.Errorf("%s %s: %w", m.Type, m.TrainID, err)
		}
		if p < optimizer.MinPlatform || p > optimizer.MaxPlatform {
			return fmt.Errorf("%s %s: platform %d outside %d..%d", m.Type, m.TrainID, p, optimizer.MinPlatform, optimizer.MaxPlatform)
		}
		s.event(r.dep, "PLATFORM_CHANGED", r.id, "train %s moved from platform %d to %d", r.id, r.platform, p)
		r.platform = p

	default:
		return fmt.Errorf("unsupported modification %q", m.Type)
	}
	return nil
}

func (s *scenario) added(m model.ScheduleModification) (*run, error) {
	var dep time.Time
	if raw, ok := m.Parameters["departure"]; ok && raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("parameter departure: %w", err)
		}
		dep = t
	} else {
		off, err := intParam(m.Parameters, "departure_offset_minutes", 0)
		if err != nil {
			return nil, err
		}
		dep = s.start.Add(minutes(off))
	}
	journey, err := intParam(m.Parameters, "journey_minutes", defaultJourneyMinutes)
	if err != nil {
		return nil, err
	}
	if journey <= 0 {
		return nil, fmt.Errorf("journey_minutes must be positive")
	}
	platform, err := intParam(m.Parameters, "platform", optimizer.MinPlatform)
	if err != nil {
		return nil, err
	}
	if platform < optimizer.MinPlatform || platform > optimizer.MaxPlatform {
		return nil, fmt.Errorf("platform %d outside %d..%d", platform, optimizer.MinPlatform, optimizer.MaxPlatform)
	}
	priority := model.PriorityPassenger
	if p, ok := model.ParsePriority(m.Parameters["priority"]); ok {
		priority = p
	}
	arr := dep.Add(minutes(journey))
	return &run{id: m.TrainID, priority: priority, planDep: dep, planArr: arr, dep: dep, arr: arr, platform: platform}, nil
}

func impactOf(c model.WhatIfCondition) int {
	if c.ImpactLevel < 1 || c.ImpactLevel > 10 {
		return defaultImpact
	}
	return c.ImpactLevel
}

func (s *scenario) apply(c model.WhatIfCondition) error {
	impact := impactOf(c)
	switch c.Type {
	case model.CondSpeedRestriction:
		limit, err := floatParam(c.Parameters, "max_speed_kmh", 0)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Type, err)
		}
		for _, r := range s.runs {
			factor := 1 + float64(impact)*speedImpactFactor
			if limit > 0 {
				if r.speedKmh <= limit {
					continue
				}
				factor = r.speedKmh / limit
			}
			s.stretch(r, factor, "speed restriction")
		}

	case model.CondWeather:
		factor := 1 + float64(impact)*weatherImpactFactor
		for _, r := range s.runs {
			s.stretch(r, factor, "weather")
		}

	case model.CondSignalFailure, model.CondBlockSection:
		per := signalMinutesPerLevel
		if c.Type == model.CondBlockSection {
			per = blockMinutesPerLevel
		}
		off, err := intParam(c.Parameters, "start_offset_minutes", 0)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Type, err)
		}
		dur, err := intParam(c.Parameters, "duration_minutes", impact*per)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Type, err)
		}
		if dur <= 0 {
			return fmt.Errorf("%s: duration_minutes must be positive", c.Type)
		}
		from := s.start.Add(minutes(off))
		until := from.Add(minutes(dur))
		for _, r := range s.runs {
			blocked := !r.dep.Before(from) && r.dep.Before(until)
			if c.Type == model.CondBlockSection {
				blocked = r.dep.Before(until) && from.Before(r.arr)
			}
			if !blocked {
				continue
			}
			r.shift(until.Sub(r.dep))
			r.held = true
			s.event(from, "HELD", r.id, "train %s held until %s by %s", r.id, until.Format("15:04"), c.Type)
		}

	default:
		return fmt.Errorf("unsupported condition %q", c.Type)
	}
	return nil
}

// stretch extends the running time of r by factor, rounded up to whole
// minutes.
func (s *scenario) stretch(r *run, factor float64, cause string) {
	journey := r.arr.Sub(r.dep).Minutes()
	extra := int(math.Ceil(journey*factor - journey))
	if extra <= 0 {
		return
	}
	r.arr = r.arr.Add(minutes(extra))
	s.event(r.dep, "SLOWED", r.id, "train %s runs %d minutes longer due to %s", r.id, extra, cause)
}
