// Package snapshot publishes rate-limited race-state snapshots to an
// external visualizer over a websocket, and streams exactly one final
// snapshot carrying the full result payload at race end.
//
// Grounded on original_source/racesim/src/interfaces/gui_interface.rs
// (CarState, RaceState, RgbColor, MAX_GUI_UPDATE_FREQUENCY) and
// handle_race.rs's real-time publish loop. The rate limiter reuses
// teacher's strategy/rate_limiter.go token-bucket shape, re-keyed off the
// race clock instead of wall clock per spec §4.8/§5.
package snapshot

import (
	"strconv"
	"strings"

	"github.com/psybedev/racetrack-sim/internal/raceresult"
)

// RGB is a car's livery color.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ParseRGB parses a car's configured "#RRGGBB" livery color, falling back
// to white on anything malformed rather than erroring a whole snapshot
// over one bad hex string.
func ParseRGB(hex string) RGB {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return RGB{R: 255, G: 255, B: 255}
	}
	r, err1 := strconv.ParseUint(hex[0:2], 16, 8)
	g, err2 := strconv.ParseUint(hex[2:4], 16, 8)
	b, err3 := strconv.ParseUint(hex[4:6], 16, 8)
	if err1 != nil || err2 != nil || err3 != nil {
		return RGB{R: 255, G: 255, B: 255}
	}
	return RGB{R: uint8(r), G: uint8(g), B: uint8(b)}
}

// CarState is one car's lightweight, by-value snapshot record.
type CarState struct {
	CarNo          uint32  `json:"car_no"`
	DriverInitials string  `json:"driver_initials"`
	Color          RGB     `json:"color"`
	RaceProg       float64 `json:"race_prog"`
	Velocity       float64 `json:"velocity"`
}

// SCState is the safety-car sub-state carried in a snapshot.
type SCState struct {
	Active   bool    `json:"active"`
	RaceProg float64 `json:"race_prog"`
}

// RaceState is one emission: the full roster's lightweight state plus
// flag/weather/SC regime. FinalResult is populated exactly once, on the
// terminal emission of a real-time run.
type RaceState struct {
	Cars          []CarState         `json:"cars"`
	Flag          string             `json:"flag"`
	SC            SCState            `json:"sc"`
	WeatherIsRain bool               `json:"weather_is_rain"`
	FinalResult   *raceresult.Result `json:"final_result,omitempty"`
}

// MaxGUIUpdateFrequency bounds snapshot emissions per race-second, per
// spec §4.8.
const MaxGUIUpdateFrequency = 20.0

// VelocityInputs carries the handful of per-car facts the visual-speed
// formula needs. It deliberately excludes anything from internal/race's
// motion integration: the 0.35+1.15*m^2 shaping is a snapshot concern
// only, never part of position integration (spec §9 Open Questions).
type VelocityInputs struct {
	InPitStandstill bool
	InPitlaneDrive  bool
	UnderSC         bool
	CurLaptime      float64
	TrackLength     float64
	PitSpeedLimit   float64
	Multiplier      float64
}

// ComputeVelocity derives a car's instantaneous visual speed per spec
// §4.8.
func ComputeVelocity(in VelocityInputs) float64 {
	switch {
	case in.InPitStandstill:
		return 0
	case in.InPitlaneDrive:
		return in.PitSpeedLimit
	case in.UnderSC:
		return in.TrackLength / in.CurLaptime
	default:
		base := in.TrackLength / in.CurLaptime
		return base * (0.35 + 1.15*in.Multiplier*in.Multiplier)
	}
}
