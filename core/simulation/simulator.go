// Package simulation replays a submitted schedule under what-if
// modifications and conditions, propagates knock-on delays and compares the
// scenario with the unmodified baseline.
package simulation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/railsched/core/conflict"
	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
	"github.com/kilianp07/railsched/core/optimizer"
)

// DefaultDurationHours is the simulated window when the request leaves it
// unset.
const DefaultDurationHours = 2.0

const utilizationWarnPercent = 85.0

// ErrEmptySchedule is returned when there is nothing to simulate.
var ErrEmptySchedule = errors.New("base schedule is empty")

// Simulator runs scenarios.
type Simulator struct {
	HeadwayMinutes int
	Log            logger.Logger
}

// New returns a simulator. headway <= 0 selects the optimizer default.
func New(headway int, log logger.Logger) *Simulator {
	if headway <= 0 {
		headway = optimizer.DefaultHeadwayMinutes
	}
	return &Simulator{HeadwayMinutes: headway, Log: log}
}

type outcome struct {
	results model.SimulationResults
	held    int
}

// Simulate applies the modifications and conditions of req to its base
// schedule. Invalid scenarios return a response with Success false and the
// reason in ErrorMessage.
func (s *Simulator) Simulate(req model.SimulationRequest) model.SimulationResponse {
	resp := model.SimulationResponse{RequestID: req.RequestID, ScenarioName: req.ScenarioName}
	if len(req.BaseSchedule) == 0 {
		resp.ErrorMessage = ErrEmptySchedule.Error()
		return resp
	}
	headway := s.HeadwayMinutes
	if req.HeadwayMinutes > 0 {
		headway = req.HeadwayMinutes
	}
	hours := req.DurationHours
	if hours <= 0 {
		hours = DefaultDurationHours
	}
	start := req.BaseSchedule[0].Departure
	for _, e := range req.BaseSchedule[1:] {
		if e.Departure.Before(start) {
			start = e.Departure
		}
	}
	start = start.Truncate(time.Minute)
	window := time.Duration(hours * float64(time.Hour))

	baseline := s.newScenario(req, start)
	base := s.play(baseline, headway, start, window)

	sc := s.newScenario(req, start)
	for _, m := range req.Modifications {
		if err := sc.modify(m); err != nil {
			resp.ErrorMessage = err.Error()
			s.Log.Warnf("simulation %s: %v", req.ScenarioName, err)
			return resp
		}
	}
	for _, c := range req.Conditions {
		if err := sc.apply(c); err != nil {
			resp.ErrorMessage = err.Error()
			s.Log.Warnf("simulation %s: %v", req.ScenarioName, err)
			return resp
		}
	}
	scen := s.play(sc, headway, start, window)

	resp.Success = true
	resp.Results = scen.results
	resp.Comparison = compare(base.results, scen.results)
	resp.Recommendations = recommend(resp.Comparison, scen)
	s.Log.Debugw("simulation completed", map[string]any{
		"scenario":  req.ScenarioName,
		"trains":    scen.results.TotalTrains,
		"delay":     scen.results.AverageDelayMinutes,
		"conflicts": scen.results.ConflictsDetected,
	})
	return resp
}

func (s *Simulator) newScenario(req model.SimulationRequest, start time.Time) *scenario {
	sc := &scenario{start: start, section: req.SectionID}
	for _, e := range req.BaseSchedule {
		sc.runs = append(sc.runs, fromEntry(e))
	}
	return sc
}

// play resolves the conflicts of the scenario by pushing later trains back
// and measures the result over the window.
func (s *Simulator) play(sc *scenario, headway int, start time.Time, window time.Duration) outcome {
	runs := sc.runs
	conflicts := conflict.Detect(slots(runs, sc.section), minutes(headway))
	propagate(sc, runs, headway)

	out := outcome{results: model.SimulationResults{TotalTrains: len(runs), ConflictsDetected: len(conflicts)}}
	if len(runs) == 0 {
		out.results.Timeline = sortTimeline(sc.timeline)
		return out
	}
	end := start.Add(window)
	delays := make([]float64, 0, len(runs))
	departed := 0
	busy := 0.0
	for _, r := range runs {
		delays = append(delays, math.Max(0, r.delay()))
		if !r.dep.Before(start) && r.dep.Before(end) {
			departed++
		}
		busy += overlap(r.dep, r.arr, start, end).Minutes()
		if r.held {
			out.held++
		}
		sc.event(r.dep, "DEPARTURE", r.id, "train %s departs from platform %d", r.id, r.platform)
		sc.event(r.arr, "ARRIVAL", r.id, "train %s arrives %.0f minutes late", r.id, math.Max(0, r.delay()))
	}
	out.results.AverageDelayMinutes = stat.Mean(delays, nil)
	out.results.ThroughputPerHour = float64(departed) / window.Hours()
	out.results.UtilizationPercent = math.Min(100, busy/window.Minutes()*100)
	out.results.Timeline = sortTimeline(sc.timeline)
	return out
}

func slots(runs []*run, section string) []conflict.Slot {
	if section == "" {
		section = "section"
	}
	out := make([]conflict.Slot, 0, len(runs))
	for _, r := range runs {
		out = append(out, conflict.Slot{
			TrainID:   r.id,
			Departure: r.dep,
			Arrival:   r.arr,
			Platform:  r.platform,
			Origin:    section,
			Sections:  []string{section},
		})
	}
	return out
}

// propagate walks departures in order. Each train leaves no earlier than one
// headway after the previous departure and once its platform is free; any
// push moves its arrival by the same amount.
func propagate(sc *scenario, runs []*run, headway int) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].dep.Equal(runs[j].dep) {
			return runs[i].dep.Before(runs[j].dep)
		}
		if runs[i].priority != runs[j].priority {
			return runs[i].priority.Outranks(runs[j].priority)
		}
		return runs[i].id < runs[j].id
	})
	var prev *run
	free := map[int]*run{}
	for _, r := range runs {
		earliest := r.dep
		cause := ""
		if prev != nil {
			if t := prev.dep.Add(minutes(headway)); t.After(earliest) {
				earliest, cause = t, fmt.Sprintf("headway behind %s", prev.id)
			}
		}
		if occ, ok := free[r.platform]; ok && occ.arr.After(earliest) {
			earliest, cause = occ.arr, fmt.Sprintf("platform %d occupied by %s", r.platform, occ.id)
		}
		if push := earliest.Sub(r.dep); push > 0 {
			sc.event(r.dep, "KNOCK_ON", r.id, "train %s pushed back %.0f minutes: %s", r.id, push.Minutes(), cause)
			r.shift(push)
		}
		if occ, ok := free[r.platform]; !ok || r.arr.After(occ.arr) {
			free[r.platform] = r
		}
		prev = r
	}
}

func overlap(a0, a1, b0, b1 time.Time) time.Duration {
	from, to := a0, a1
	if b0.After(from) {
		from = b0
	}
	if b1.Before(to) {
		to = b1
	}
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}

func sortTimeline(evs []model.SimulationEvent) []model.SimulationEvent {
	sort.SliceStable(evs, func(i, j int) bool {
		if !evs[i].Timestamp.Equal(evs[j].Timestamp) {
			return evs[i].Timestamp.Before(evs[j].Timestamp)
		}
		return evs[i].TrainID < evs[j].TrainID
	})
	return evs
}

// change returns the relative change from base to scenario in percent,
// positive when the scenario is better. lowerIsBetter flips the sign for
// quantities such as delay.
func change(base, scen float64, lowerIsBetter bool) float64 {
	if base == 0 {
		if scen == 0 {
			return 0
		}
		if lowerIsBetter {
			return -100
		}
		return 100
	}
	pct := (scen - base) / base * 100
	if lowerIsBetter {
		pct = -pct
	}
	return math.Round(pct*10) / 10
}

func compare(base, scen model.SimulationResults) model.PerformanceComparison {
	return model.PerformanceComparison{
		BaselineDelayMinutes:         base.AverageDelayMinutes,
		ScenarioDelayMinutes:         scen.AverageDelayMinutes,
		ImprovementPercent:           change(base.AverageDelayMinutes, scen.AverageDelayMinutes, true),
		BaselineThroughput:           base.ThroughputPerHour,
		ScenarioThroughput:           scen.ThroughputPerHour,
		ThroughputImprovementPercent: change(base.ThroughputPerHour, scen.ThroughputPerHour, false),
	}
}

func recommend(cmp model.PerformanceComparison, scen outcome) []string {
	var out []string
	if d := cmp.ScenarioDelayMinutes - cmp.BaselineDelayMinutes; d > 0 {
		out = append(out, fmt.Sprintf("Average delay grows by %.1f minutes; re-run the optimizer on the modified plan.", d))
	}
	if scen.results.ConflictsDetected > 0 {
		out = append(out, fmt.Sprintf("%d conflicts had to be absorbed by knock-on delays; consider re-timing or moving affected trains to other platforms.", scen.results.ConflictsDetected))
	}
	if scen.held > 0 {
		out = append(out, fmt.Sprintf("%d trains were held by blocked sections or failed signals; consider rerouting them.", scen.held))
	}
	if cmp.ThroughputImprovementPercent < 0 {
		out = append(out, fmt.Sprintf("Throughput drops by %.1f%% within the simulated window.", -cmp.ThroughputImprovementPercent))
	}
	if scen.results.UtilizationPercent > utilizationWarnPercent {
		out = append(out, fmt.Sprintf("Section utilization reaches %.0f%%, leaving little recovery margin.", scen.results.UtilizationPercent))
	}
	if len(out) == 0 {
		out = append(out, "The scenario has no adverse impact on the schedule.")
	}
	return out
}
