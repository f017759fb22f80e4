package optimizer

import (
	"errors"

	"github.com/kilianp07/railsched/core/logger"
	"github.com/kilianp07/railsched/core/model"
)

// Registry posts rules on a builder. Failures of a single rule are reported as
// ConstraintApplicationError and never abort the caller.
type Registry struct {
	log logger.Logger
}

// NewRegistry returns a registry logging through log.
func NewRegistry(log logger.Logger) Registry {
	return Registry{log: log}
}

// Apply posts rule and reports whether it could be applied.
func (r Registry) Apply(rule Rule, b *Builder) error {
	if err := rule.apply(b); err != nil {
		var cae *ConstraintApplicationError
		if !errors.As(err, &cae) {
			cae = &ConstraintApplicationError{ConstraintID: rule.ID(), Kind: rule.Kind(), Err: err}
		}
		r.log.Warnf("skipping %v", cae)
		return cae
	}
	r.log.Debugf("applied %s rule %s", rule.Kind(), rule.ID())
	return nil
}

// Prepare parses the request constraints. Constraints that fail to parse are
// returned as errors; the remaining rules are returned in request order.
// Hard platform capacity overrides are registered on b so the built-in
// platform rule leaves those stations to them.
func (r Registry) Prepare(constraints []model.Constraint, b *Builder) ([]Rule, []error) {
	var rules []Rule
	var errs []error
	for _, c := range constraints {
		rule, err := ParseRule(c)
		if err != nil {
			r.log.Warnf("skipping %v", err)
			errs = append(errs, err)
			continue
		}
		if pc, ok := rule.(PlatformCapacityRule); ok && pc.hard && pc.StationID != "" && pc.Max > 1 {
			b.stationCapacity[pc.StationID] = pc.Max
		}
		rules = append(rules, rule)
	}
	return rules, errs
}

// ApplyAll posts rules in order and collects the failures.
func (r Registry) ApplyAll(rules []Rule, b *Builder) []error {
	var errs []error
	for _, rule := range rules {
		if err := r.Apply(rule, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
