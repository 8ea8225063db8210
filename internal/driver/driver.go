// Package driver models a race driver's per-lap ability contribution and
// behavioral traits (consistency, aggression) used by the interaction
// resolver.
//
// Grounded on original_source/racesim/src/core/driver.rs.
package driver

import "github.com/psybedev/racetrack-sim/internal/simerr"

// Pars is the JSON-facing driver configuration.
type Pars struct {
	Initials    string  `json:"initials"`
	Name        string  `json:"name"`
	TDriver     float64 `json:"t_driver"`
	Consistency float64 `json:"consistency"`
	Aggression  float64 `json:"aggression"`
}

const (
	defaultConsistency = 1.0
	defaultAggression  = 0.5
)

// Driver is a race participant's fixed ability profile.
type Driver struct {
	Initials    string
	Name        string
	TDriver     float64
	Consistency float64
	Aggression  float64
}

// New builds a Driver from Pars, applying the source's consistency/aggression
// defaults when a scenario omits them (JSON zero-value is ambiguous with an
// explicit 0; the loader passes Pars through unchanged, so New is where a
// zero Consistency or Aggression is treated as unset and replaced by the
// default).
func New(pars Pars) (*Driver, error) {
	if pars.Initials == "" {
		return nil, simerr.Configf(nil, "driver: initials must not be empty")
	}
	consistency := pars.Consistency
	if consistency == 0 {
		consistency = defaultConsistency
	}
	aggression := pars.Aggression
	if aggression == 0 {
		aggression = defaultAggression
	}
	return &Driver{
		Initials:    pars.Initials,
		Name:        pars.Name,
		TDriver:     pars.TDriver,
		Consistency: consistency,
		Aggression:  aggression,
	}, nil
}

// Registry indexes drivers by their initials, the key strategy entries and
// race rosters use throughout the simulator.
type Registry struct {
	byInitials map[string]*Driver
}

// NewRegistry builds a Registry from a list of drivers, rejecting duplicate
// initials.
func NewRegistry(drivers []*Driver) (*Registry, error) {
	r := &Registry{byInitials: make(map[string]*Driver, len(drivers))}
	for _, d := range drivers {
		if _, exists := r.byInitials[d.Initials]; exists {
			return nil, simerr.Configf(nil, "driver registry: duplicate initials %q", d.Initials)
		}
		r.byInitials[d.Initials] = d
	}
	return r, nil
}

// Get looks up a driver by initials.
func (r *Registry) Get(initials string) (*Driver, error) {
	d, ok := r.byInitials[initials]
	if !ok {
		return nil, simerr.Configf(nil, "driver registry: unknown initials %q", initials)
	}
	return d, nil
}
