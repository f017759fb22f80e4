package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/railsched/core/model"
)

// DefaultAlternativesBudget bounds the re-solves of one request.
const DefaultAlternativesBudget = 10 * time.Second

type alternativeVector struct {
	name        string
	description string
	objective   model.Objective
}

var alternativeVectors = []alternativeVector{
	{
		name:        "delay-focused",
		description: "Minimizes priority weighted delay only.",
		objective:   model.Objective{Primary: model.ObjectiveMinimizeDelay},
	},
	{
		name:        "throughput-focused",
		description: "Maximizes the number of trains running within five minutes of schedule.",
		objective:   model.Objective{Primary: model.ObjectiveMaximizeThroughput},
	},
	{
		name:        "energy-focused",
		description: "Minimizes the speed based energy estimate and delay penalties.",
		objective:   model.Objective{Primary: model.ObjectiveMinimizeEnergy},
	},
}

// alternatives re-solves the request once per fixed objective that differs
// from the primary one. Each re-solve is sequential and gets an equal share of
// the remaining budget. Failed or empty re-solves are left out.
func (e *Engine) alternatives(ctx context.Context, req model.OptimizationRequest, ref time.Time, primary model.PerformanceMetrics) []model.AlternativeSchedule {
	budget := e.cfg.Alternatives.Budget
	if budget <= 0 {
		budget = DefaultAlternativesBudget
	}
	deadline := e.now().Add(budget)
	kind := req.Objective.Primary
	if kind == "" {
		kind = model.ObjectiveMinimizeDelay
	}
	var todo []alternativeVector
	for _, v := range alternativeVectors {
		if v.objective.Primary != kind {
			todo = append(todo, v)
		}
	}
	var out []model.AlternativeSchedule
	orch := Orchestrator{Log: e.log, UseLPBound: e.cfg.UseLPBound}
	for i, v := range todo {
		remaining := deadline.Sub(e.now())
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		p, err := e.prepare(req, v.objective, ref, func(model.Phase) {})
		if err != nil {
			e.log.Warnf("alternative %s: %v", v.name, err)
			continue
		}
		params := Params(model.SolverConfig{Workers: 1, Strategy: model.StrategyFixed}, model.Objective{})
		params.TimeLimit = remaining / time.Duration(len(todo)-i)
		res, err := orch.Solve(ctx, p.vars.Model, params, false)
		if err != nil || !res.Status.Solved() {
			e.log.Debugf("alternative %s: status %s err %v", v.name, res.Status, err)
			continue
		}
		entries, resolved := Extract(res.Result, p.vars, e.headway())
		metrics := ComputeMetrics(entries, req.Trains, req.TimeHorizonMinutes, len(resolved))
		out = append(out, model.AlternativeSchedule{
			Name:        v.name,
			Description: v.description,
			Schedule:    entries,
			Metrics:     metrics,
			TradeOffs:   tradeOffs(primary, metrics),
			Score:       model.Confidence(res.Status) / (1 + metrics.AverageDelayMinutes),
		})
	}
	return out
}

func tradeOffs(primary, alt model.PerformanceMetrics) string {
	return fmt.Sprintf("delay %+.1f min, throughput %+.2f trains/h, energy %+.1f kWh compared to the recommended schedule",
		alt.TotalDelayMinutes-primary.TotalDelayMinutes,
		alt.ThroughputPerHour-primary.ThroughputPerHour,
		alt.EnergyKWh-primary.EnergyKWh)
}
