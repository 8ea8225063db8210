package montecarlo

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/driver"
	"github.com/psybedev/racetrack-sim/internal/race"
	"github.com/psybedev/racetrack-sim/internal/tireset"
	"github.com/psybedev/racetrack-sim/internal/track"
	"github.com/psybedev/racetrack-sim/internal/trackcache"
)

func testTrack(t *testing.T) *track.Track {
	t.Helper()
	centreline := []track.CentrelinePoint{
		{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 200, Y: 5}, {X: 300, Y: 0},
	}
	trk, err := track.New(track.Pars{
		Name:          "montecarlo-test",
		TQ:            80,
		Length:        300,
		PitSpeedLimit: 16.6,
		DPerGridpos:   8,
		PitZone:       [2]float64{0, 50},
	}, centreline)
	if err != nil {
		t.Fatalf("track.New: %v", err)
	}
	return trk
}

func newCarsFactory(t *testing.T) func() ([]*car.Car, error) {
	t.Helper()
	d1, err := driver.New(driver.Pars{Initials: "AAA", TDriver: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	d2, err := driver.New(driver.Pars{Initials: "BBB", TDriver: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	return func() ([]*car.Car, error) {
		c1, err := car.New(car.Pars{
			CarNo: 1, MFuel: 50, PGrid: 1,
			Strategy: []car.StrategyEntry{{Compound: "SOFT", DriverInitials: "AAA"}},
		}, d1)
		if err != nil {
			return nil, err
		}
		c2, err := car.New(car.Pars{
			CarNo: 2, MFuel: 50, PGrid: 2,
			Strategy: []car.StrategyEntry{{Compound: "MEDIUM", DriverInitials: "BBB"}},
		}, d2)
		if err != nil {
			return nil, err
		}
		return []*car.Car{c1, c2}, nil
	}
}

func TestRunAll_AveragesAcrossRuns(t *testing.T) {
	tireCfg, err := tireset.NewConfig(tireset.DefaultConfigPars())
	if err != nil {
		t.Fatal(err)
	}

	cfg := RunConfig{
		Dt: 0.5,
		Base: race.Config{
			Track:          testTrack(t),
			TireCfg:        tireCfg,
			TotNoLaps:      2,
			InitialWeather: race.WeatherDry,
			Constants:      race.DefaultConstants(),
			Logger:         zerolog.Nop(),
		},
		NewCars: newCarsFactory(t),
	}

	avg, err := RunAll(context.Background(), 4, 1, cfg)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if avg.NumRuns != 4 {
		t.Errorf("NumRuns = %d, want 4", avg.NumRuns)
	}
	if avg.NumFailed != 0 {
		t.Errorf("NumFailed = %d, want 0: %v", avg.NumFailed, avg.FirstErrors)
	}
	if len(avg.LapTimes) != 2 {
		t.Fatalf("len(LapTimes) = %d, want 2", len(avg.LapTimes))
	}
	if avg.LapTimes[0][1] <= 0 || math.IsInf(avg.LapTimes[0][1], 0) {
		t.Errorf("LapTimes[0][1] = %v, want a finite positive average", avg.LapTimes[0][1])
	}
}

func TestRunAll_RejectsNonPositiveN(t *testing.T) {
	if _, err := RunAll(context.Background(), 0, 1, RunConfig{}); err == nil {
		t.Fatal("expected error for n=0")
	}
}

func TestRunAll_CollectsFactoryErrors(t *testing.T) {
	cfg := RunConfig{
		Dt: 0.5,
		NewCars: func() ([]*car.Car, error) {
			return nil, errNoCars
		},
	}
	avg, err := RunAll(context.Background(), 3, 1, cfg)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if avg.NumFailed != 3 {
		t.Errorf("NumFailed = %d, want 3", avg.NumFailed)
	}
	if len(avg.FirstErrors) == 0 {
		t.Error("expected FirstErrors to be populated")
	}
}

func TestRunAll_ResolvesTrackThroughSharedCache(t *testing.T) {
	dir := t.TempDir()
	pars := track.Pars{
		Name:          "cached-track",
		TQ:            80,
		Length:        300,
		PitSpeedLimit: 16.6,
		DPerGridpos:   8,
		PitZone:       [2]float64{0, 50},
	}
	raw, err := json.Marshal(pars)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cached-track.json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	csv := "x_m,y_m,w_tr_left_m,w_tr_right_m\n0,0,4,4\n100,0,4,4\n200,5,4,4\n300,0,4,4\n"
	if err := os.WriteFile(filepath.Join(dir, "cached-track.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	tireCfg, err := tireset.NewConfig(tireset.DefaultConfigPars())
	if err != nil {
		t.Fatal(err)
	}
	cache := trackcache.New(trackcache.DefaultConfig())

	cfg := RunConfig{
		Dt: 0.5,
		Base: race.Config{
			TireCfg:        tireCfg,
			TotNoLaps:      2,
			InitialWeather: race.WeatherDry,
			Constants:      race.DefaultConstants(),
			Logger:         zerolog.Nop(),
		},
		NewCars:    newCarsFactory(t),
		TrackCache: cache,
		TracksDir:  dir,
		TrackName:  "cached-track",
	}

	avg, err := RunAll(context.Background(), 4, 1, cfg)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if avg.NumFailed != 0 {
		t.Fatalf("NumFailed = %d, want 0: %v", avg.NumFailed, avg.FirstErrors)
	}

	// Concurrent runs can race on the first miss (GetOrLoad's doc comment:
	// "the loser's result is discarded"), so this only asserts the cache
	// converges on a single entry rather than pinning an exact hit count.
	stats := cache.GetStats()
	if stats.Entries != 1 {
		t.Errorf("cache Entries = %d, want 1 (every run resolves the same track_name)", stats.Entries)
	}
	if stats.Hits+stats.Misses != 4 {
		t.Errorf("cache Hits+Misses = %d, want 4 (one GetOrLoad call per run)", stats.Hits+stats.Misses)
	}
}

var errNoCars = &staticErr{"no cars available"}

type staticErr struct{ msg string }

func (e *staticErr) Error() string { return e.msg }
