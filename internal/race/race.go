// Package race is the simulation coordinator: the fixed-step loop that
// projects lap times, resolves pairwise interactions, drives each car's
// state machine, manages the flag/safety-car/weather regime, and
// accumulates the lap/race-time result.
//
// Grounded on original_source/racesim/src/core/race.rs
// (simulate_timestep's fixed operation order, calc_cur_laptimes,
// get_car_pair_idxs_list, calc_projected_delta_t) plus spec.md §4.5/§4.6
// for the full pairwise-interaction, SC-lineup, and weather-regime logic
// the kept Rust file had stripped down. Uses github.com/google/uuid for
// event IDs and github.com/samber/lo for the filter/range helper behind
// the on-track ordering; sorting uses sort.Slice.
package race

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/raceresult"
	"github.com/psybedev/racetrack-sim/internal/simerr"
	"github.com/psybedev/racetrack-sim/internal/snapshot"
	"github.com/psybedev/racetrack-sim/internal/statehandler"
	"github.com/psybedev/racetrack-sim/internal/tireset"
	"github.com/psybedev/racetrack-sim/internal/track"
)

// Flag is the race-wide flag state.
type Flag int

const (
	FlagGreen Flag = iota
	FlagYellow
	FlagVSC
	FlagSC
	FlagChequered
)

func (f Flag) String() string {
	switch f {
	case FlagGreen:
		return "G"
	case FlagYellow:
		return "Y"
	case FlagVSC:
		return "VSC"
	case FlagSC:
		return "SC"
	case FlagChequered:
		return "C"
	default:
		return "?"
	}
}

// Weather is the race-wide weather state.
type Weather int

const (
	WeatherDry Weather = iota
	WeatherRain
)

func (w Weather) String() string {
	if w == WeatherRain {
		return "Rain"
	}
	return "Dry"
}

// entrant bundles a car with its position/state-machine handler.
type entrant struct {
	car     *car.Car
	handler *statehandler.Handler
}

// scRegime is the safety-car sub-state (spec §4.6). active becomes true
// once the SC has been placed on track; countdownS serves double duty as
// both the soft release countdown (clamped to 10s once the lineup holds)
// and the 300s hard cap (it starts there and ticks down regardless), per
// spec §9 "scheduling of SC countdown".
type scRegime struct {
	active          bool
	sTrack          float64
	lap             uint32
	vSC             float64
	countdownS      float64
	triggerConsumed map[int]bool
}

// Config assembles everything a Race needs: shared immutable references
// (track, tire config) plus the exclusively-owned car roster (spec §3
// "Ownership").
type Config struct {
	Track     *track.Track
	TireCfg   *tireset.Config
	Cars      []*car.Car
	TotNoLaps uint32

	InitialWeather Weather
	RainProbPerMin float64
	UseDRS         bool
	DRSAllowedLap  uint32
	Constants      Constants

	Seed      int64
	Logger    zerolog.Logger
	Publisher *snapshot.Publisher
}

// Race is the mutable race-wide aggregate: clock, flag, weather, SC
// regime, per-car projected lap times, and the owned Result.
type Race struct {
	track     *track.Track
	tireCfg   *tireset.Config
	entrants  []*entrant
	totNoLaps uint32

	useDRS        bool
	drsAllowedLap uint32
	constants     Constants

	rng    *rand.Rand
	logger zerolog.Logger

	tRace               float64
	curLapLeader        uint32
	flag                Flag
	weather             Weather
	tSinceWeatherChange float64

	sc scRegime

	rainProbPerMin float64

	curLaptime   []float64
	curThLaptime []float64
	cornerAct    []bool
	duelAct      []bool
	drsAct       []bool

	result    *raceresult.Result
	publisher *snapshot.Publisher
}

// New assembles a Race from cfg, placing each car at its grid slot
// (arc-length computed backward from the start-finish line per
// p_grid/d_per_gridpos/d_first_gridpos) and priming its theoretical lap
// time.
func New(cfg Config) (*Race, error) {
	if len(cfg.Cars) == 0 {
		return nil, simerr.Configf(nil, "race: no cars in roster")
	}
	if cfg.TotNoLaps == 0 {
		return nil, simerr.Configf(nil, "race: tot_no_laps must be positive")
	}

	seenGrid := make(map[uint32]bool, len(cfg.Cars))
	entrants := make([]*entrant, 0, len(cfg.Cars))
	for _, c := range cfg.Cars {
		if seenGrid[c.PGrid] {
			return nil, simerr.Configf(nil, "race: duplicate grid position %d", c.PGrid)
		}
		seenGrid[c.PGrid] = true

		sStart := gridStartArcLength(cfg.Track, c.PGrid)
		h := statehandler.New(sStart, cfg.Track.Length, cfg.Track.PitZone.Start, cfg.Track.PitZone.End)
		entrants = append(entrants, &entrant{car: c, handler: h})
	}

	r := &Race{
		track:          cfg.Track,
		tireCfg:        cfg.TireCfg,
		entrants:       entrants,
		totNoLaps:      cfg.TotNoLaps,
		useDRS:         cfg.UseDRS,
		drsAllowedLap:  cfg.DRSAllowedLap,
		constants:      cfg.Constants.ApplyDefaults(),
		rng:            rand.New(rand.NewSource(cfg.Seed)),
		logger:         cfg.Logger,
		curLapLeader:   1,
		flag:           FlagGreen,
		weather:        cfg.InitialWeather,
		publisher:      cfg.Publisher,
		curLaptime:     make([]float64, len(entrants)),
		curThLaptime:   make([]float64, len(entrants)),
		cornerAct:      make([]bool, len(entrants)),
		duelAct:        make([]bool, len(entrants)),
		drsAct:         make([]bool, len(entrants)),
	}
	r.sc.triggerConsumed = make(map[int]bool)
	r.rainProbPerMin = cfg.RainProbPerMin

	carNos := make([]uint32, len(entrants))
	initials := make([]string, len(entrants))
	for i, e := range entrants {
		carNos[i] = e.car.CarNo
		initials[i] = e.car.Driver.Initials
	}
	r.result = raceresult.New(carNos, initials, cfg.TotNoLaps)

	for i, e := range entrants {
		isWet := r.weather == WeatherRain
		basic, err := e.car.CalcBasicTimeloss(r.track.SMass, isWet, r.tireCfg)
		if err != nil {
			return nil, err
		}
		r.curThLaptime[i] = r.track.TQ + r.track.TGapRacepace + basic
	}

	return r, nil
}

// gridStartArcLength returns the arc-length a grid slot sits at, measured
// backward from the start-finish line.
func gridStartArcLength(t *track.Track, pGrid uint32) float64 {
	behind := t.DFirstGridpos + float64(pGrid-1)*t.DPerGridpos
	s := math.Mod(t.Length-behind, t.Length)
	if s < 0 {
		s += t.Length
	}
	return s
}

// Finished reports whether every car has crossed the finish line on the
// final lap or the flag has gone chequered.
func (r *Race) Finished() bool {
	if r.flag == FlagChequered {
		return true
	}
	for _, e := range r.entrants {
		if e.car.Status == car.StatusRunning && e.handler.GetComplLap() < r.totNoLaps {
			return false
		}
	}
	return true
}

// Result returns the race's owned result. Valid to call at any point;
// the matrices are only fully populated once the race has finished.
func (r *Race) Result() *raceresult.Result { return r.result }

// Run advances the race to completion in fixed dt steps, never
// suspending (headless mode), and returns the final Result.
func (r *Race) Run(dt float64) *raceresult.Result {
	for !r.Finished() {
		r.Step(dt)
	}
	return r.result
}

// RunRealtime advances the race paced to realtimeFactor, sleeping
// between steps, and publishes a snapshot at the end of each step
// (bounded by the publisher's own rate limit) plus exactly one final
// snapshot with the full result payload.
func (r *Race) RunRealtime(dt, realtimeFactor float64) *raceresult.Result {
	for !r.Finished() {
		stepStart := time.Now()
		r.Step(dt)
		if r.publisher != nil {
			r.publisher.Publish(r.tRace, r.snapshotState(nil))
		}

		budgetMs := dt * 1000 / realtimeFactor
		elapsedMs := float64(time.Since(stepStart).Microseconds()) / 1000
		sleepMs := budgetMs - elapsedMs
		if sleepMs < 0 {
			r.logger.Warn().Float64("t_race", r.tRace).Msg("could not keep up with real-time factor")
			continue
		}
		time.Sleep(time.Duration(sleepMs * float64(time.Millisecond)))
	}
	if r.publisher != nil {
		r.publisher.PublishFinal(r.snapshotState(r.result))
	}
	return r.result
}

// Step advances the race by exactly one fixed timestep, in the fixed
// operation order mandated by spec §5: weather -> SC advance -> SC
// trigger -> theoretical lap times -> current lap times -> interaction
// resolution -> state-machine transitions -> position integration ->
// pit standstill (pre-finish-line variant) -> lap transitions -> pit
// standstill (post-finish-line variant).
func (r *Race) Step(dt float64) {
	r.tRace += dt

	r.advanceWeather(dt)
	r.advanceSC(dt)
	r.checkSCTrigger()

	r.computeTheoreticalLaptimes()
	r.computeCurrentLaptimes(dt)

	if r.flag == FlagSC && r.sc.active {
		r.paceUnderSC(dt)
	} else {
		r.resolveInteractions(dt)
	}

	r.checkStateTransitions(dt)
	r.integratePositions(dt)

	if !r.track.PitsAfterFinish {
		r.handlePitStandstillTransitions(dt)
	}
	r.handleLapTransitions(dt)
	if r.track.PitsAfterFinish {
		r.handlePitStandstillTransitions(dt)
	}

	r.updateLeaderLap()
	if r.curLapLeader > r.totNoLaps {
		r.flag = FlagChequered
	}
}

func (r *Race) updateLeaderLap() {
	var maxLap uint32
	for _, e := range r.entrants {
		lap := e.handler.GetComplLap() + 1
		if lap > maxLap {
			maxLap = lap
		}
	}
	if maxLap > r.curLapLeader {
		r.curLapLeader = maxLap
	}
}

func (r *Race) snapshotState(final *raceresult.Result) snapshot.RaceState {
	cars := make([]snapshot.CarState, 0, len(r.entrants))
	for i, e := range r.entrants {
		s, _ := e.handler.GetSTracks()
		vel := snapshot.ComputeVelocity(snapshot.VelocityInputs{
			InPitStandstill: e.handler.State() == statehandler.PitStandstill,
			InPitlaneDrive:  e.handler.State() == statehandler.Pitlane,
			UnderSC:         r.flag == FlagSC && r.sc.active,
			CurLaptime:      r.curLaptime[i],
			TrackLength:     r.track.Length,
			PitSpeedLimit:   r.track.PitSpeedLimit,
			Multiplier:      r.track.MultiplierAt(s),
		})
		cars = append(cars, snapshot.CarState{
			CarNo:          e.car.CarNo,
			DriverInitials: e.car.Driver.Initials,
			Color:          snapshot.ParseRGB(e.car.Color),
			RaceProg:       e.handler.GetRaceProg(),
			Velocity:       vel,
		})
	}
	return snapshot.RaceState{
		Cars:          cars,
		Flag:          r.flag.String(),
		SC:            snapshot.SCState{Active: r.sc.active, RaceProg: r.sc.raceProg(r.track.Length)},
		WeatherIsRain: r.weather == WeatherRain,
		FinalResult:   final,
	}
}

func (sc scRegime) raceProg(trackLength float64) float64 {
	return float64(sc.lap) + sc.sTrack/trackLength
}
