// Package raceresult owns the race's lap/race-time matrices and discrete
// event log for the duration of a run, and renders the two-table result
// text format ("RESULT: Lap times" / "RESULT: Race times").
//
// Grounded on original_source's race_result equivalent (RaceResult,
// CarDriverPair) plus teacher's handle_race.rs-implied CLI output format
// described in spec.md §6.
package raceresult

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/google/uuid"
)

// EventType names a discrete race event.
type EventType string

const (
	EventWeatherRainStart EventType = "WeatherRainStart"
	EventWeatherDryStart  EventType = "WeatherDryStart"
	EventSCDeployed       EventType = "SC_DEPLOYED"
	EventSCIn             EventType = "SC_IN"
	EventCrash            EventType = "Crash"
	EventEngineFailure    EventType = "EngineFailure"
)

// Event is one entry in the race's discrete event log.
type Event struct {
	ID     uuid.UUID
	TRace  float64
	Type   EventType
	CarNos []uint32
	Lap    uint32
}

// Result is the race's owned, mutable outcome: lap/race-time matrices
// indexed [carIdx][lap] (lap 0 unused, laps are 1-based), plus the event
// log. It is handed to the aggregator/streamer by move at race end.
type Result struct {
	CarNos         []uint32
	DriverInitials []string

	LapTimes  [][]float64
	RaceTimes [][]float64

	Events   []Event
	Finished []bool
}

// New allocates a Result sized for nCars entrants and totLaps laps.
func New(carNos []uint32, driverInitials []string, totLaps uint32) *Result {
	n := len(carNos)
	r := &Result{
		CarNos:         append([]uint32(nil), carNos...),
		DriverInitials: append([]string(nil), driverInitials...),
		LapTimes:       make([][]float64, n),
		RaceTimes:      make([][]float64, n),
		Finished:       make([]bool, n),
	}
	for i := 0; i < n; i++ {
		r.LapTimes[i] = make([]float64, totLaps+1)
		r.RaceTimes[i] = make([]float64, totLaps+1)
	}
	return r
}

// RecordLap sets the lap-time and cumulative race-time entries for carIdx
// at lap k (1-based), enforcing racetimes[i][k] = racetimes[i][k-1] + laptimes[i][k].
func (r *Result) RecordLap(carIdx int, lap uint32, lapTime float64) {
	r.LapTimes[carIdx][lap] = lapTime
	r.RaceTimes[carIdx][lap] = r.RaceTimes[carIdx][lap-1] + lapTime
}

// AddEvent appends an event to the log, stamping it with a fresh UUID.
func (r *Result) AddEvent(tRace float64, typ EventType, lap uint32, carNos ...uint32) {
	r.Events = append(r.Events, Event{
		ID:     uuid.New(),
		TRace:  tRace,
		Type:   typ,
		CarNos: append([]uint32(nil), carNos...),
		Lap:    lap,
	})
}

// WriteText renders the two-table "RESULT: Lap times" / "RESULT: Race
// times" layout to w.
func (r *Result) WriteText(w io.Writer) error {
	if err := r.writeTable(w, "RESULT: Lap times", r.LapTimes); err != nil {
		return err
	}
	if err := r.writeTable(w, "RESULT: Race times", r.RaceTimes); err != nil {
		return err
	}
	return nil
}

func (r *Result) writeTable(w io.Writer, header string, matrix [][]float64) error {
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}

	cols := make([]string, 0, len(r.CarNos))
	for i, no := range r.CarNos {
		cols = append(cols, fmt.Sprintf("%d (%s)", no, r.DriverInitials[i]))
	}
	if _, err := fmt.Fprintf(w, "lap, %s\n", strings.Join(cols, ", ")); err != nil {
		return err
	}

	if len(matrix) == 0 {
		return nil
	}
	nLaps := len(matrix[0]) - 1
	for lap := 1; lap <= nLaps; lap++ {
		fields := make([]string, 0, len(matrix))
		for carIdx := range matrix {
			fields = append(fields, formatTimeCell(matrix[carIdx][lap]))
		}
		if _, err := fmt.Fprintf(w, "%d, %s\n", lap, strings.Join(fields, ", ")); err != nil {
			return err
		}
	}
	return nil
}

func formatTimeCell(v float64) string {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}
