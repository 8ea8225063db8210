// Package car models a single entrant: its fixed performance parameters,
// mounted tireset, fuel load, strategy plan, and per-lap/per-pitstop
// state transitions.
//
// Grounded on original_source/racesim/src/core/car.rs (StrategyEntry,
// CarStatus, calc_basic_timeloss, drive_lap, perform_pitstop,
// t_add_pit_standstill), cross-checked against teacher's
// strategy/pit_calculator.go field naming (TypicalPitTime/PitLaneDelta).
package car

import (
	"math"
	"math/rand"
	"strings"

	"github.com/psybedev/racetrack-sim/internal/driver"
	"github.com/psybedev/racetrack-sim/internal/simerr"
	"github.com/psybedev/racetrack-sim/internal/tireset"
)

// Status is the car's running/retired state, independent of the
// on-track/pit sub-state tracked by statehandler.
type Status int

const (
	StatusRunning Status = iota
	StatusDNF
)

func (s Status) String() string {
	if s == StatusDNF {
		return "DNF"
	}
	return "Running"
}

// StrategyEntry is one planned pit visit. Entry 0 is special: it also
// carries the starting compound and driver.
type StrategyEntry struct {
	Inlap          uint32  `json:"inlap"`
	TireStartAge   float64 `json:"tire_start_age"`
	Compound       string  `json:"compound"`
	DriverInitials string  `json:"driver_initials"`
}

// Pars is the JSON-facing car configuration.
type Pars struct {
	CarNo           uint32          `json:"car_no"`
	Color           string          `json:"color"`
	TCar            float64         `json:"t_car"`
	BFuelPerLap     float64         `json:"b_fuel_per_lap"`
	MFuel           float64         `json:"m_fuel"`
	TPitTirechange  float64         `json:"t_pit_tirechange"`
	PitLocation     float64         `json:"pit_location"`
	Strategy        []StrategyEntry `json:"strategy"`
	PGrid           uint32          `json:"p_grid"`
}

// pitStopMeanS and pitStopStdDevS parameterize the Normal distribution the
// source samples tire-change standstill duration from.
const (
	pitStopMeanS   = 2.4
	pitStopStdDevS = 0.4
)

// Car is a race entrant: fixed parameters plus mutable race-time state
// (fuel, tires, damage, status). It does not track track position or
// on-track/pit sub-state; that belongs to statehandler.State.
type Car struct {
	CarNo          uint32
	Color          string
	Status         Status
	tCar           float64
	mFuel          float64
	bFuelPerLap    float64
	tPitTirechange float64
	PitLocation    float64
	strategy       []StrategyEntry
	PGrid          uint32
	Driver         *driver.Driver

	Tireset                Tireset
	DirtyAirWearFactor     float64
	LastSlickCompound      string
	AccumulatedDamagePenalty float64
}

// Tireset is a type alias kept local so car.go reads self-contained;
// callers use tireset.Tireset directly.
type Tireset = tireset.Tireset

func isSlick(compound string) bool {
	return tireset.Compound(strings.ToUpper(compound)).IsSlick()
}

// New builds a Car from parameters and its assigned driver, mounting the
// starting tireset described by strategy entry 0.
func New(pars Pars, d *driver.Driver) (*Car, error) {
	if len(pars.Strategy) == 0 {
		return nil, simerr.Configf(nil, "car %d: strategy must have at least one entry (start state)", pars.CarNo)
	}
	start := pars.Strategy[0]

	c := &Car{
		CarNo:              pars.CarNo,
		Color:              pars.Color,
		Status:             StatusRunning,
		tCar:               pars.TCar,
		mFuel:              pars.MFuel,
		bFuelPerLap:        pars.BFuelPerLap,
		tPitTirechange:     pars.TPitTirechange,
		PitLocation:        pars.PitLocation,
		strategy:           append([]StrategyEntry(nil), pars.Strategy...),
		PGrid:              pars.PGrid,
		Driver:             d,
		Tireset:            tireset.New(tireset.Compound(start.Compound), start.TireStartAge),
		DirtyAirWearFactor: 1.0,
	}
	if isSlick(start.Compound) {
		c.LastSlickCompound = strings.ToUpper(start.Compound)
	}
	return c, nil
}

// CalcBasicTimeloss computes the car's theoretical-lap-time contribution
// before driver-state and track-regime terms are layered on: t_car +
// t_driver + tire degradation + fuel mass sensitivity + weather penalty +
// accumulated damage.
func (c *Car) CalcBasicTimeloss(sMass float64, isWet bool, tireCfg *tireset.Config) (float64, error) {
	tireLoss, err := c.Tireset.LapTimeDelta(tireCfg)
	if err != nil {
		return 0, err
	}

	weatherPenalty := c.weatherPenalty(isWet)

	return c.tCar + c.Driver.TDriver + tireLoss + c.mFuel*sMass + weatherPenalty + c.AccumulatedDamagePenalty, nil
}

func (c *Car) weatherPenalty(isWet bool) float64 {
	const wetTrackBasePenalty = 12.0
	compound := strings.ToUpper(string(c.Tireset.Compound))

	if isWet {
		switch compound {
		case "SOFT", "MEDIUM", "HARD":
			return wetTrackBasePenalty + 30.0
		case "INTERMEDIATE":
			return wetTrackBasePenalty
		case "WET":
			return wetTrackBasePenalty + 2.0
		default:
			return wetTrackBasePenalty
		}
	}
	if compound == "INTERMEDIATE" || compound == "WET" {
		return 5.0
	}
	return 0.0
}

// DriveLap advances tire age and burns fuel for one completed lap, and
// rolls the per-lap engine-failure hazard. It is a no-op once the car has
// retired. rng must not be shared concurrently across cars.
func (c *Car) DriveLap(lapTimeS float64, failureRatePerHour float64, rng *rand.Rand) {
	if c.Status == StatusDNF {
		return
	}

	if failureRatePerHour > 0 {
		lambda := failureRatePerHour / 3600.0
		pFail := 1 - math.Exp(-lambda*lapTimeS)
		if rng.Float64() < pFail {
			c.Status = StatusDNF
		}
	}

	if c.mFuel > 0 {
		c.mFuel = math.Max(c.mFuel-c.bFuelPerLap, 0)
	}

	c.Tireset.DriveLap(c.DirtyAirWearFactor)
	c.DirtyAirWearFactor = 1.0
}

// PitThisLap reports whether the car's strategy calls for a pit visit on
// the given in-lap.
func (c *Car) PitThisLap(curLap uint32) bool {
	_, ok := c.strategyEntry(curLap)
	return ok
}

func (c *Car) strategyEntry(inlap uint32) (StrategyEntry, bool) {
	for _, e := range c.strategy {
		if e.Inlap == inlap {
			return e, true
		}
	}
	return StrategyEntry{}, false
}

// PerformPitstop mounts the tire compound planned for the given in-lap,
// if any. A missing strategy entry, or an entry with an empty compound,
// leaves the current tireset mounted (no-op).
func (c *Car) PerformPitstop(inlap uint32) {
	entry, ok := c.strategyEntry(inlap)
	if !ok || entry.Compound == "" {
		return
	}
	c.Tireset = tireset.New(tireset.Compound(entry.Compound), entry.TireStartAge)
	if isSlick(entry.Compound) {
		c.LastSlickCompound = strings.ToUpper(entry.Compound)
	}
}

// TAddPitStandstill returns the sampled stationary pit-box duration for
// the given in-lap: a draw from Normal(2.4, 0.4) if a tire change is
// planned there, otherwise zero.
func (c *Car) TAddPitStandstill(inlap uint32, rng *rand.Rand) float64 {
	entry, ok := c.strategyEntry(inlap)
	if !ok || entry.Compound == "" {
		return 0
	}
	sampled := rng.NormFloat64()*pitStopStdDevS + pitStopMeanS
	return math.Max(sampled, 0)
}

// PitTirechangeBase returns the car's configured base tire-change
// duration, the fixed component of a pit-stop standstill target before
// the sampled noise term from TAddPitStandstill is added.
func (c *Car) PitTirechangeBase() float64 {
	return c.tPitTirechange
}

// CurrentCompound returns the compound of the currently mounted tireset.
func (c *Car) CurrentCompound() string {
	return string(c.Tireset.Compound)
}

// ScheduleWeatherStrategy inserts or overwrites the strategy entry for
// inlap with the given compound, used by the weather regime to react to
// a rain/dry transition mid-race.
func (c *Car) ScheduleWeatherStrategy(inlap uint32, compound string) {
	for i, e := range c.strategy {
		if e.Inlap == inlap {
			c.strategy[i].Compound = compound
			return
		}
	}
	c.strategy = append(c.strategy, StrategyEntry{Inlap: inlap, TireStartAge: 0, Compound: compound})
}
