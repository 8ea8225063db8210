// Package tireset models tire compounds and their stint/total age
// degradation, including the non-linear cliff regime.
//
// Grounded on original_source/racesim/src/core/tireset.rs.
package tireset

import (
	"math"
	"strings"

	"github.com/psybedev/racetrack-sim/internal/simerr"
)

// Compound identifies a tire mixture.
type Compound string

const (
	Soft         Compound = "SOFT"
	Medium       Compound = "MEDIUM"
	Hard         Compound = "HARD"
	Intermediate Compound = "INTERMEDIATE"
	Wet          Compound = "WET"
)

// IsSlick reports whether the compound is a dry-weather slick.
func (c Compound) IsSlick() bool {
	switch Compound(strings.ToUpper(string(c))) {
	case Soft, Medium, Hard:
		return true
	default:
		return false
	}
}

const maxTirePenalty = 25.0

// DegrPars is a single compound's degradation configuration, as loaded
// from tires.json.
type DegrPars struct {
	K0               float64 `json:"k0"`
	K1Lin            float64 `json:"k1_lin"`
	K1Scale          float64 `json:"k1_scale"`
	DefaultCliffAge  float64 `json:"default_cliff_age"`
	DefaultK2        float64 `json:"default_k2"`
	BaseOffset       float64 `json:"base_offset"`
}

// Config holds the per-compound degradation parameters for a scenario.
type Config struct {
	byCompound map[Compound]DegrPars
}

// NewConfig builds a Config, validating all five compounds are present.
func NewConfig(pars map[Compound]DegrPars) (*Config, error) {
	required := []Compound{Soft, Medium, Hard, Intermediate, Wet}
	for _, c := range required {
		if _, ok := pars[c]; !ok {
			return nil, simerr.Configf(nil, "tires.json: missing compound %q", c)
		}
	}
	return &Config{byCompound: pars}, nil
}

// ParsFor returns the degradation parameters for compound c.
func (cfg *Config) ParsFor(c Compound) (DegrPars, error) {
	p, ok := cfg.byCompound[Compound(strings.ToUpper(string(c)))]
	if !ok {
		return DegrPars{}, simerr.Configf(nil, "unknown tire compound %q", c)
	}
	return p, nil
}

// Tireset is one mounted set of tires, tracked by total and current-stint
// age in (fractional) laps.
type Tireset struct {
	Compound     Compound
	AgeTotal     float64
	AgeCurStint  float64
}

// New creates a tireset starting at the given age (both total and stint
// age start equal, per spec §3 invariant: a new set's ages both start at
// the configured start_age).
func New(compound Compound, startAge float64) Tireset {
	return Tireset{Compound: compound, AgeTotal: startAge, AgeCurStint: startAge}
}

// DriveLap advances both ages by one lap scaled by wearFactor (>=1 under
// dirty air).
func (ts *Tireset) DriveLap(wearFactor float64) {
	ts.AgeCurStint += wearFactor
	ts.AgeTotal += wearFactor
}

// LapTimeDelta returns the tire's lap-time contribution using the
// linear-plus-cliff model evaluated at current-stint age.
func (ts *Tireset) LapTimeDelta(cfg *Config) (float64, error) {
	pars, err := cfg.ParsFor(ts.Compound)
	if err != nil {
		return 0, err
	}

	age := ts.AgeCurStint
	linear := pars.K0 + pars.K1Lin*pars.K1Scale*age

	cliff := 0.0
	if age > pars.DefaultCliffAge {
		over := age - pars.DefaultCliffAge
		cliff = math.Min(pars.DefaultK2*over*over, maxTirePenalty)
	}

	return pars.BaseOffset + linear + cliff, nil
}

// DefaultConfigPars returns the standard per-compound tuning observed in
// the source (SOFT/MEDIUM/HARD scale, cliff age, cliff sharpness, base
// offset); INTERMEDIATE/WET never hit a cliff within a race distance.
func DefaultConfigPars() map[Compound]DegrPars {
	return map[Compound]DegrPars{
		Soft:         {K0: 0.02, K1Lin: 1.0, K1Scale: 1.8, DefaultCliffAge: 15, DefaultK2: 0.050, BaseOffset: -1.0},
		Medium:       {K0: 0.02, K1Lin: 1.0, K1Scale: 1.0, DefaultCliffAge: 28, DefaultK2: 0.020, BaseOffset: -0.5},
		Hard:         {K0: 0.02, K1Lin: 1.0, K1Scale: 0.5, DefaultCliffAge: 45, DefaultK2: 0.010, BaseOffset: 0.0},
		Intermediate: {K0: 0.02, K1Lin: 1.0, K1Scale: 1.0, DefaultCliffAge: math.Inf(1), DefaultK2: 0, BaseOffset: 0.0},
		Wet:          {K0: 0.02, K1Lin: 1.0, K1Scale: 1.0, DefaultCliffAge: math.Inf(1), DefaultK2: 0, BaseOffset: 0.0},
	}
}
