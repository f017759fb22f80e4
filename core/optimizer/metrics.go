package optimizer

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/railsched/core/model"
)

const (
	// energyEfficiency is the share of nominal power drawn on average.
	energyEfficiency = 0.7
	// waitFactor converts average train delay into passenger waiting time.
	waitFactor = 0.8
)

// ComputeMetrics derives the KPIs of a schedule from the entries and the
// train definitions only.
func ComputeMetrics(entries []model.TrainScheduleEntry, trains []model.Train, horizonMinutes int, conflictsResolved int) model.PerformanceMetrics {
	m := model.PerformanceMetrics{ConflictsResolved: conflictsResolved}
	if len(entries) == 0 {
		return m
	}
	byID := make(map[string]model.Train, len(trains))
	for _, t := range trains {
		byID[t.ID] = t
	}

	delays := make([]float64, len(entries))
	journeys := make([]float64, len(entries))
	energy := make([]float64, len(entries))
	sections := map[string]bool{}
	for i, e := range entries {
		delays[i] = math.Max(0, float64(e.DelayMinutes))
		journeys[i] = math.Max(0, e.Arrival.Sub(e.Departure).Minutes())
		t, ok := byID[e.TrainID]
		power := model.DefaultCharacteristics().PowerKW
		if ok {
			power = t.Traits().PowerKW
			for _, s := range t.RouteSections {
				sections[s] = true
			}
			if platformChanged(t, e.Platform) {
				m.PlatformChanges++
			}
		}
		energy[i] = power * journeys[i] / 60 * energyEfficiency
	}

	m.TotalDelayMinutes = floats.Sum(delays)
	m.AverageDelayMinutes = stat.Mean(delays, nil)
	m.PassengerWaitMinutes = m.AverageDelayMinutes * waitFactor
	m.EnergyKWh = floats.Sum(energy)
	if horizonMinutes > 0 {
		m.ThroughputPerHour = float64(len(entries)) / (float64(horizonMinutes) / 60)
		if len(sections) > 0 {
			capacity := float64(len(sections) * horizonMinutes)
			m.UtilizationPercent = math.Min(floats.Sum(journeys)/capacity*100, 100)
		}
	}
	return m
}

// platformChanged reports whether the train was assigned a platform outside
// its required set. Trains without requirements never count.
func platformChanged(t model.Train, platform int) bool {
	req := t.Traits().RequiredPlatforms
	if len(req) == 0 {
		return false
	}
	for _, p := range req {
		if n, err := strconv.Atoi(p); err == nil && n == platform {
			return false
		}
	}
	return true
}
