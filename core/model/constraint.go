package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ConstraintKind identifies the scheduling rule a Constraint parameterizes.
type ConstraintKind string

const (
	ConstraintSafetyDistance    ConstraintKind = "SAFETY_DISTANCE"
	ConstraintPlatformCapacity  ConstraintKind = "PLATFORM_CAPACITY"
	ConstraintTrainPriority     ConstraintKind = "TRAIN_PRIORITY"
	ConstraintMaintenanceWindow ConstraintKind = "MAINTENANCE_WINDOW"
	ConstraintSpeedLimit        ConstraintKind = "SPEED_LIMIT"
	ConstraintCrossingTime      ConstraintKind = "CROSSING_TIME"
	ConstraintSignalSpacing     ConstraintKind = "SIGNAL_SPACING"
	ConstraintEnergyEfficiency  ConstraintKind = "ENERGY_EFFICIENCY"
	ConstraintPassengerTransfer ConstraintKind = "PASSENGER_TRANSFER"
)

// KnownConstraintKinds lists every kind the optimizer understands.
var KnownConstraintKinds = []ConstraintKind{
	ConstraintSafetyDistance,
	ConstraintPlatformCapacity,
	ConstraintTrainPriority,
	ConstraintMaintenanceWindow,
	ConstraintSpeedLimit,
	ConstraintCrossingTime,
	ConstraintSignalSpacing,
	ConstraintEnergyEfficiency,
	ConstraintPassengerTransfer,
}

// Known reports whether k is one of KnownConstraintKinds.
func (k ConstraintKind) Known() bool {
	for _, c := range KnownConstraintKinds {
		if c == k {
			return true
		}
	}
	return false
}

// Constraint is a caller supplied declarative scheduling rule.
type Constraint struct {
	ID         string
	Kind       ConstraintKind
	Priority   int // 1 = highest, 10 = lowest
	Parameters map[string]string
	Hard       bool
}

// Param returns the raw parameter value and whether it was set.
func (c Constraint) Param(key string) (string, bool) {
	v, ok := c.Parameters[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// String returns the parameter or def when absent.
func (c Constraint) String(key, def string) string {
	if v, ok := c.Param(key); ok {
		return v
	}
	return def
}

// Int parses an integer parameter, falling back to def when absent.
func (c Constraint) Int(key string, def int) (int, error) {
	v, ok := c.Param(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	return n, nil
}

// Float parses a floating point parameter, falling back to def when absent.
func (c Constraint) Float(key string, def float64) (float64, error) {
	v, ok := c.Param(key)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %w", key, err)
	}
	return f, nil
}

// List splits a comma separated parameter. Empty items are dropped.
func (c Constraint) List(key string) []string {
	v, ok := c.Param(key)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Rank returns the constraint priority clamped to 1..10.
func (c Constraint) Rank() int {
	switch {
	case c.Priority < 1:
		return 1
	case c.Priority > 10:
		return 10
	}
	return c.Priority
}
