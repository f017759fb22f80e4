// Package scenarios loads what-if regression scenarios from YAML files and
// replays them through the simulator.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/railsched/core/model"
)

// Reference is the departure time that scenario offsets count from.
var Reference = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

type TrainDef struct {
	ID              string  `yaml:"id"`
	DepartureOffset int     `yaml:"departure_offset_minutes"`
	JourneyMinutes  int     `yaml:"journey_minutes"`
	Platform        int     `yaml:"platform"`
	Priority        string  `yaml:"priority,omitempty"`
	SpeedKmh        float64 `yaml:"speed_kmh,omitempty"`
}

func (d TrainDef) ToModel() model.TrainScheduleEntry {
	dep := Reference.Add(time.Duration(d.DepartureOffset) * time.Minute)
	journey := d.JourneyMinutes
	if journey <= 0 {
		journey = 10
	}
	prio, ok := model.ParsePriority(d.Priority)
	if !ok {
		prio = model.PriorityPassenger
	}
	speed := d.SpeedKmh
	if speed == 0 {
		speed = 80
	}
	return model.TrainScheduleEntry{
		TrainID:         d.ID,
		Departure:       dep,
		Arrival:         dep.Add(time.Duration(journey) * time.Minute),
		Platform:        d.Platform,
		PriorityApplied: prio,
		SpeedProfile:    []model.SpeedProfilePoint{{PositionKm: 0, SpeedKmh: speed}},
	}
}

type ModificationDef struct {
	Type       string            `yaml:"type"`
	TrainID    string            `yaml:"train_id"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
}

type ConditionDef struct {
	Type        string            `yaml:"type"`
	ImpactLevel int               `yaml:"impact_level"`
	Parameters  map[string]string `yaml:"parameters,omitempty"`
}

type Expected struct {
	Success             bool           `yaml:"success"`
	TotalTrains         int            `yaml:"total_trains"`
	Conflicts           int            `yaml:"conflicts"`
	AverageDelayMinutes float64        `yaml:"average_delay_minutes"`
	Events              map[string]int `yaml:"events,omitempty"`
}

type Scenario struct {
	Name           string            `yaml:"name"`
	Description    string            `yaml:"description,omitempty"`
	Section        string            `yaml:"section,omitempty"`
	HeadwayMinutes int               `yaml:"headway_minutes,omitempty"`
	DurationHours  float64           `yaml:"duration_hours,omitempty"`
	Trains         []TrainDef        `yaml:"trains"`
	Modifications  []ModificationDef `yaml:"modifications,omitempty"`
	Conditions     []ConditionDef    `yaml:"conditions,omitempty"`
	Expected       Expected          `yaml:"expected"`
}

// Request builds the simulation request described by the scenario.
func (s *Scenario) Request() model.SimulationRequest {
	req := model.SimulationRequest{
		RequestID:      "qa-" + s.Name,
		ScenarioName:   s.Name,
		SectionID:      s.Section,
		HeadwayMinutes: s.HeadwayMinutes,
		DurationHours:  s.DurationHours,
	}
	for _, t := range s.Trains {
		req.BaseSchedule = append(req.BaseSchedule, t.ToModel())
	}
	for _, m := range s.Modifications {
		req.Modifications = append(req.Modifications, model.ScheduleModification{
			Type: m.Type, TrainID: m.TrainID, Parameters: m.Parameters,
		})
	}
	for _, c := range s.Conditions {
		req.Conditions = append(req.Conditions, model.WhatIfCondition{
			Type: c.Type, ImpactLevel: c.ImpactLevel, Parameters: c.Parameters,
		})
	}
	return req
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("%s: scenario name is required", path)
	}
	return &sc, nil
}
