// Package montecarlo drives N independent repetitions of the same
// scenario, each with its own seeded RNG stream and freshly built car
// roster, and aggregates their lap/race-time matrices into per-cell
// means over the runs that produced a finite value.
//
// Grounded on teacher's strategy/manager.go (StrategyManager's
// context-cancellable worker pool, its request/result channel pairing),
// narrowed from a long-lived analysis-request queue to a fixed batch of
// N race runs bounded by runtime.GOMAXPROCS(0), per spec.md §4.7/§7
// "Monte-Carlo batch mode". Failed runs are collected with
// github.com/samber/lo; per-cell filtering of non-finite values is done
// in accumulateFinite.
package montecarlo

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/samber/lo"

	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/raceresult"
	"github.com/psybedev/racetrack-sim/internal/race"
	"github.com/psybedev/racetrack-sim/internal/simerr"
	"github.com/psybedev/racetrack-sim/internal/trackcache"
)

// RunConfig is everything a single repetition needs to build its own
// Race. NewCars must return a fresh roster each call: Car/statehandler
// state is exclusively owned per race (spec §3), so runs cannot share
// one.
//
// Base.Track is used as-is unless TrackCache and TrackName are both
// set, in which case each run resolves its own *track.Track through
// the cache instead, keyed on (TracksDir, TrackName): the cache pays
// the CSV/JSON parse once and every other run in the batch hits it.
// A scenario built from embedded track_pars rather than a track_name
// lookup has nothing for the cache to key on, so Base.Track is used
// directly for those.
type RunConfig struct {
	Base       race.Config
	NewCars    func() ([]*car.Car, error)
	Dt         float64
	TrackCache *trackcache.Cache
	TracksDir  string
	TrackName  string
}

// RunResult is one repetition's outcome, tagged with its run index and
// the seed it used so a caller can reproduce any single run in isolation.
type RunResult struct {
	Index  int
	Seed   int64
	Result *raceresult.Result
	Err    error
}

// Averaged is the per-cell mean of LapTimes/RaceTimes across every run
// that produced a finite entry for that cell, plus how many runs
// contributed to each cell (cells where every run DNF'd before that lap
// are left at zero with a zero count).
type Averaged struct {
	CarNos         []uint32
	DriverInitials []string

	LapTimes  [][]float64
	RaceTimes [][]float64
	// SampleCounts[i][lap] is how many runs contributed a finite value
	// to LapTimes[i][lap]. RaceTimes cells keep their own count, which
	// is not exposed.
	SampleCounts [][]int

	NumRuns     int
	NumFailed   int
	FirstErrors []error
}

// RunAll executes n independent repetitions of cfg, each seeded
// deterministically from baseSeed+i, concurrently up to
// runtime.GOMAXPROCS(0) at a time, and returns their aggregate. ctx
// cancellation stops launching new runs but lets in-flight runs finish
// (a Race.Run has no natural cancellation point mid-step).
func RunAll(ctx context.Context, n int, baseSeed int64, cfg RunConfig) (*Averaged, error) {
	if n <= 0 {
		return nil, simerr.Configf(nil, "montecarlo: n must be positive, got %d", n)
	}

	results := make([]RunResult, n)
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			results[i] = RunResult{Index: i, Err: ctx.Err()}
			continue
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = runOne(i, baseSeed+int64(i), cfg)
		}(i)
	}
	wg.Wait()

	return aggregate(results), nil
}

func runOne(index int, seed int64, cfg RunConfig) RunResult {
	cars, err := cfg.NewCars()
	if err != nil {
		return RunResult{Index: index, Seed: seed, Err: fmt.Errorf("run %d: building cars: %w", index, err)}
	}

	runCfg := cfg.Base
	if cfg.TrackCache != nil && cfg.TrackName != "" {
		trk, err := cfg.TrackCache.GetOrLoad(cfg.TracksDir, cfg.TrackName)
		if err != nil {
			return RunResult{Index: index, Seed: seed, Err: fmt.Errorf("run %d: resolving track: %w", index, err)}
		}
		runCfg.Track = trk
	}
	runCfg.Cars = cars
	runCfg.Seed = seed

	r, err := race.New(runCfg)
	if err != nil {
		return RunResult{Index: index, Seed: seed, Err: fmt.Errorf("run %d: %w", index, err)}
	}

	result := r.Run(cfg.Dt)
	return RunResult{Index: index, Seed: seed, Result: result}
}

func aggregate(results []RunResult) *Averaged {
	var first *raceresult.Result
	for _, r := range results {
		if r.Result != nil {
			first = r.Result
			break
		}
	}

	failed := lo.Filter(results, func(r RunResult, _ int) bool { return r.Err != nil })
	avg := &Averaged{NumRuns: len(results), NumFailed: len(failed)}
	avg.FirstErrors = lo.Map(lo.Slice(failed, 0, 5), func(r RunResult, _ int) error { return r.Err })

	if first == nil {
		return avg
	}

	nCars := len(first.CarNos)
	nLaps := len(first.LapTimes[0])
	avg.CarNos = append([]uint32(nil), first.CarNos...)
	avg.DriverInitials = append([]string(nil), first.DriverInitials...)
	avg.LapTimes = make([][]float64, nCars)
	avg.RaceTimes = make([][]float64, nCars)
	avg.SampleCounts = make([][]int, nCars)
	for i := 0; i < nCars; i++ {
		avg.LapTimes[i] = make([]float64, nLaps)
		avg.RaceTimes[i] = make([]float64, nLaps)
		avg.SampleCounts[i] = make([]int, nLaps)
	}

	for _, rr := range results {
		if rr.Err != nil {
			continue
		}
		res := rr.Result
		for i := 0; i < nCars && i < len(res.LapTimes); i++ {
			for lap := 0; lap < nLaps && lap < len(res.LapTimes[i]); lap++ {
				accumulateFinite(&avg.LapTimes[i][lap], &avg.SampleCounts[i][lap], res.LapTimes[i][lap])
			}
		}
	}

	// Second pass for race times: each race-time cell keeps its own
	// count in raceCounts, separate from the lap-time SampleCounts, and
	// is divided by that count below.
	raceCounts := make([][]int, nCars)
	for i := range raceCounts {
		raceCounts[i] = make([]int, nLaps)
	}
	for _, rr := range results {
		if rr.Err != nil {
			continue
		}
		res := rr.Result
		for i := 0; i < nCars && i < len(res.RaceTimes); i++ {
			for lap := 0; lap < nLaps && lap < len(res.RaceTimes[i]); lap++ {
				accumulateFinite(&avg.RaceTimes[i][lap], &raceCounts[i][lap], res.RaceTimes[i][lap])
			}
		}
	}

	for i := 0; i < nCars; i++ {
		for lap := 0; lap < nLaps; lap++ {
			if avg.SampleCounts[i][lap] > 0 {
				avg.LapTimes[i][lap] /= float64(avg.SampleCounts[i][lap])
			}
			if n := raceCounts[i][lap]; n > 0 {
				avg.RaceTimes[i][lap] /= float64(n)
			}
		}
	}

	return avg
}

// accumulateFinite adds v to *sum and increments *count iff v is
// finite and non-zero (a zero cell is one the run never recorded),
// implementing spec §4.7's "filter non-finite entries" rule per
// cell rather than discarding a whole run for one DNF'd car.
func accumulateFinite(sum *float64, count *int, v float64) {
	if v == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return
	}
	*sum += v
	*count++
}
