// Package simpars loads and validates the scenario parameters a race is
// built from: race_pars, track_pars (or a track-name lookup), the driver
// and car rosters, sim_constants.json, and tires.json.
//
// Grounded on teacher's strategy/config.go (Config/DefaultConfig/Validate
// pattern) and sims/validation.go (ValidationError/DataValidator bounds
// checking), repurposed from telemetry/AI-strategy configuration to the
// simulator's own scenario-file surface per spec.md §6. JSON shapes and
// the track-name resolution fallback follow
// original_source/racesim/src/pre/read_sim_pars.rs
// (SimPars/read_sim_pars_flexible) and .../core/track.rs's
// input/tracks/<name>.csv convention.
package simpars

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/driver"
	"github.com/psybedev/racetrack-sim/internal/race"
	"github.com/psybedev/racetrack-sim/internal/simerr"
	"github.com/psybedev/racetrack-sim/internal/tireset"
	"github.com/psybedev/racetrack-sim/internal/track"
)

// DefaultTracksDir mirrors the source's fixed lookup path for a
// scenario that carries only a track_name (no embedded track_pars).
const DefaultTracksDir = "input/parameters/tracks"

// RacePars is the JSON-facing race_pars block (spec §6).
type RacePars struct {
	Season          uint32   `json:"season"`
	TotNoLaps       uint32   `json:"tot_no_laps"`
	TrackName       string   `json:"track_name"`
	InitialWeather  string   `json:"initial_weather"`
	RainProbability float64  `json:"rain_probability"`
	DRSAllowedLap   uint32   `json:"drs_allowed_lap"`
	UseDRS          bool     `json:"use_drs"`
	Participants    []uint32 `json:"participants"`
}

// simParsFile is the top-level scenario document. TrackPars is a pointer
// so its absence (the "scenario-only" form) is distinguishable from a
// present-but-zero-valued struct.
type simParsFile struct {
	RacePars      RacePars               `json:"race_pars"`
	TrackPars     *track.Pars            `json:"track_pars"`
	DriverParsAll map[string]driver.Pars `json:"driver_pars_all"`
	CarParsAll    map[string]car.Pars    `json:"car_pars_all"`
}

// ValidationError mirrors teacher's sims.ValidationError: a single
// out-of-range or malformed field, reported with enough context to find
// it in the source JSON without re-deriving it from the struct.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %q: %s (value: %v)", e.Field, e.Message, e.Value)
}

// Scenario bundles everything a race.Config needs, already resolved and
// validated: the immutable track/tire/constants references plus the
// built car roster (each car already holding a *driver.Driver).
type Scenario struct {
	RacePars   RacePars
	Track      *track.Track
	TireConfig *tireset.Config
	Constants  race.Constants
	Cars       []*car.Car

	carParsAll   map[string]car.Pars
	participants []uint32
	registry     *driver.Registry
}

// NewCars rebuilds a fresh, independently-owned car roster from the
// scenario's driver/car parameters, for callers (internal/montecarlo)
// that need one roster per repetition rather than sharing the single
// roster LoadScenario already built.
func (s *Scenario) NewCars() ([]*car.Car, error) {
	return buildCars(s.carParsAll, s.participants, s.registry)
}

// LoadScenario reads parfile, resolving track_pars either embedded in
// the document or by looking up <tracksDir>/<track_name>.{json,csv} when
// absent, per spec §6's SimPars resolution rule. tiresPath and
// constantsPath may be empty, in which case the source's documented
// defaults apply.
func LoadScenario(parfile, tracksDir, tiresPath, constantsPath string) (*Scenario, error) {
	if tracksDir == "" {
		tracksDir = DefaultTracksDir
	}

	raw, err := os.ReadFile(parfile)
	if err != nil {
		return nil, simerr.Configf(err, "opening parameter file %q", parfile)
	}

	var doc simParsFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, simerr.Configf(err, "parsing parameter file %q", parfile)
	}

	if err := validateRacePars(doc.RacePars); err != nil {
		return nil, err
	}

	trk, err := resolveTrack(doc.TrackPars, doc.RacePars.TrackName, tracksDir)
	if err != nil {
		return nil, err
	}

	tireCfg, err := LoadTireConfig(tiresPath)
	if err != nil {
		return nil, err
	}

	constants, err := LoadConstants(constantsPath)
	if err != nil {
		return nil, err
	}

	registry, err := buildDriverRegistry(doc.DriverParsAll)
	if err != nil {
		return nil, err
	}

	cars, err := buildCars(doc.CarParsAll, doc.RacePars.Participants, registry)
	if err != nil {
		return nil, err
	}

	return &Scenario{
		RacePars:     doc.RacePars,
		Track:        trk,
		TireConfig:   tireCfg,
		Constants:    constants,
		Cars:         cars,
		carParsAll:   doc.CarParsAll,
		participants: doc.RacePars.Participants,
		registry:     registry,
	}, nil
}

func validateRacePars(rp RacePars) error {
	if rp.TotNoLaps == 0 {
		return simerr.Configf(nil, "race_pars.tot_no_laps must be positive")
	}
	switch rp.InitialWeather {
	case "", "Dry", "Rain":
	default:
		return simerr.Configf(nil, "race_pars.initial_weather must be \"Dry\" or \"Rain\", got %q", rp.InitialWeather)
	}
	if rp.RainProbability < 0 {
		return simerr.Configf(nil, "race_pars.rain_probability must be non-negative")
	}
	return nil
}

// Weather converts the JSON weather string to a race.Weather, defaulting
// to Dry when unset.
func (rp RacePars) Weather() race.Weather {
	if rp.InitialWeather == "Rain" {
		return race.WeatherRain
	}
	return race.WeatherDry
}

// LoadTrack resolves and parses a track by name alone, the same
// tracksDir-lookup path LoadScenario falls back to when a scenario
// carries no embedded track_pars. Exported for internal/trackcache,
// which parses tracks independently of any one scenario file.
func LoadTrack(tracksDir, trackName string) (*track.Track, error) {
	if tracksDir == "" {
		tracksDir = DefaultTracksDir
	}
	return resolveTrack(nil, trackName, tracksDir)
}

func resolveTrack(embedded *track.Pars, trackName, tracksDir string) (*track.Track, error) {
	var pars track.Pars
	var csvPath string

	if embedded != nil {
		pars = *embedded
		csvPath = filepath.Join(tracksDir, pars.Name+".csv")
	} else {
		if trackName == "" {
			return nil, simerr.Configf(nil, "scenario has no track_pars and race_pars.track_name is empty")
		}
		jsonPath := filepath.Join(tracksDir, trackName+".json")
		raw, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, simerr.Configf(err, "opening track parameter file %q", jsonPath)
		}
		if err := json.Unmarshal(raw, &pars); err != nil {
			return nil, simerr.Configf(err, "parsing track parameter file %q", jsonPath)
		}
		csvPath = filepath.Join(tracksDir, trackName+".csv")
	}

	if err := validateTrackPars(pars); err != nil {
		return nil, err
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, simerr.Configf(err, "opening centerline CSV %q", csvPath)
	}
	defer f.Close()

	centreline, err := track.ReadCentreline(f)
	if err != nil {
		return nil, errors.Wrapf(err, "track %q", pars.Name)
	}
	if len(centreline) < 3 {
		return nil, simerr.Configf(nil, "track %q: centerline CSV %q has fewer than 3 rows", pars.Name, csvPath)
	}

	return track.New(pars, centreline)
}

func validateTrackPars(p track.Pars) error {
	if p.Length <= 0 {
		return &ValidationError{"track_pars.length", p.Length, "must be positive"}
	}
	if p.DPerGridpos <= 0 {
		return &ValidationError{"track_pars.d_per_gridpos", p.DPerGridpos, "must be positive"}
	}
	if p.PitSpeedLimit <= 0 {
		return &ValidationError{"track_pars.pit_speedlimit", p.PitSpeedLimit, "must be positive"}
	}
	return nil
}

func buildDriverRegistry(all map[string]driver.Pars) (*driver.Registry, error) {
	drivers := make([]*driver.Driver, 0, len(all))
	for initials, pars := range all {
		if pars.Initials == "" {
			pars.Initials = initials
		}
		if err := validateDriverPars(pars); err != nil {
			return nil, err
		}
		d, err := driver.New(pars)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return driver.NewRegistry(drivers)
}

func validateDriverPars(p driver.Pars) error {
	if p.Consistency != 0 && (p.Consistency <= 0 || p.Consistency > 1) {
		return &ValidationError{"driver_pars_all[" + p.Initials + "].consistency", p.Consistency, "must be in (0, 1]"}
	}
	if p.Aggression < 0 || p.Aggression > 1 {
		return &ValidationError{"driver_pars_all[" + p.Initials + "].aggression", p.Aggression, "must be in [0, 1]"}
	}
	return nil
}

func buildCars(all map[string]car.Pars, participants []uint32, registry *driver.Registry) ([]*car.Car, error) {
	wanted := make(map[uint32]bool, len(participants))
	for _, no := range participants {
		wanted[no] = true
	}

	seenGrid := make(map[uint32]bool, len(all))
	matched := make(map[uint32]bool, len(wanted))
	cars := make([]*car.Car, 0, len(all))
	for key, pars := range all {
		if len(wanted) > 0 && !wanted[pars.CarNo] {
			continue
		}
		matched[pars.CarNo] = true
		if seenGrid[pars.PGrid] {
			return nil, simerr.Configf(nil, "car_pars_all[%s]: duplicate grid position %d", key, pars.PGrid)
		}
		seenGrid[pars.PGrid] = true

		if len(pars.Strategy) == 0 {
			return nil, simerr.Configf(nil, "car_pars_all[%s]: strategy must have at least one entry", key)
		}
		initials := pars.Strategy[0].DriverInitials
		d, err := registry.Get(initials)
		if err != nil {
			return nil, errors.Wrapf(err, "car_pars_all[%s]: resolving start driver", key)
		}

		c, err := car.New(pars, d)
		if err != nil {
			return nil, err
		}
		cars = append(cars, c)
	}

	for _, no := range participants {
		if !matched[no] {
			return nil, simerr.Configf(nil, "race_pars.participants: car_no %d has no matching entry in car_pars_all", no)
		}
	}
	if len(cars) == 0 {
		return nil, simerr.Configf(nil, "scenario resolved to zero cars (check race_pars.participants against car_pars_all)")
	}
	return cars, nil
}

// LoadTireConfig loads tires.json from path, or falls back to the
// source's documented per-compound defaults when path is empty.
func LoadTireConfig(path string) (*tireset.Config, error) {
	if path == "" {
		return tireset.NewConfig(tireset.DefaultConfigPars())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, simerr.Configf(err, "opening tire config file %q", path)
	}
	var pars map[tireset.Compound]tireset.DegrPars
	if err := json.Unmarshal(raw, &pars); err != nil {
		return nil, simerr.Configf(err, "parsing tire config file %q", path)
	}
	return tireset.NewConfig(pars)
}

// LoadConstants loads sim_constants.json from path, or the source's
// documented defaults when path is empty. Any field the file omits
// falls back to its default via Constants.ApplyDefaults.
func LoadConstants(path string) (race.Constants, error) {
	if path == "" {
		return race.DefaultConstants(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return race.Constants{}, simerr.Configf(err, "opening sim constants file %q", path)
	}
	var c race.Constants
	if err := json.Unmarshal(raw, &c); err != nil {
		return race.Constants{}, simerr.Configf(err, "parsing sim constants file %q", path)
	}
	return c.ApplyDefaults(), nil
}

// ValidateTimestep enforces spec §6's CLI bound on -t: dt in [0.001, 1.0].
func ValidateTimestep(dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) {
		return simerr.Numericf("dt %v is not a finite number", dt)
	}
	if dt < 0.001 || dt > 1.0 {
		return &ValidationError{"dt", dt, "must be in [0.001, 1.0]"}
	}
	return nil
}
