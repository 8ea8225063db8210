package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/driver"
	"github.com/psybedev/racetrack-sim/internal/montecarlo"
	"github.com/psybedev/racetrack-sim/internal/track"
)

func writeScenario(t *testing.T, dir string) string {
	t.Helper()
	csv := "x_m,y_m,w_tr_left_m,w_tr_right_m\n0,0,4,4\n10,0,4,4\n20,1,4,4\n30,0,4,4\n"
	tracksDir := filepath.Join(dir, "tracks")
	if err := os.MkdirAll(tracksDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tracksDir, "maintest.csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}

	doc := map[string]interface{}{
		"race_pars": map[string]interface{}{
			"tot_no_laps":     2,
			"initial_weather": "Dry",
			"participants":    []uint32{1},
		},
		"track_pars": track.Pars{
			Name:              "maintest",
			TQ:                80,
			TGapRacepace:      2,
			SMass:             0.03,
			PitSpeedLimit:     16.6,
			DPerGridpos:       8,
			DFirstGridpos:     12,
			Length:            3000,
			RealLengthPitZone: 300,
			PitZone:           [2]float64{0, 300},
		},
		"driver_pars_all": map[string]driver.Pars{
			"AAA": {Initials: "AAA", Consistency: 1},
		},
		"car_pars_all": map[string]car.Pars{
			"1": {
				CarNo:    1,
				MFuel:    50,
				PGrid:    1,
				Strategy: []car.StrategyEntry{{Compound: "SOFT", DriverInitials: "AAA"}},
			},
		},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	parfile := filepath.Join(dir, "scenario.json")
	if err := os.WriteFile(parfile, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	return parfile
}

func TestRun_MissingParfileIsConfigurationError(t *testing.T) {
	if got := run([]string{}); got != exitConfiguration {
		t.Errorf("run() = %d, want exitConfiguration (%d)", got, exitConfiguration)
	}
}

func TestRun_GUIAndMonteCarloAreMutuallyExclusive(t *testing.T) {
	dir := t.TempDir()
	parfile := writeScenario(t, dir)
	args := []string{"-p", parfile, "-g", "-n", "5"}
	if got := run(args); got != exitConfiguration {
		t.Errorf("run() = %d, want exitConfiguration (%d)", got, exitConfiguration)
	}
}

func TestRun_InvalidTimestepIsConfigurationError(t *testing.T) {
	dir := t.TempDir()
	parfile := writeScenario(t, dir)
	args := []string{"-p", parfile, "-t", "5.0"}
	if got := run(args); got != exitConfiguration {
		t.Errorf("run() = %d, want exitConfiguration (%d)", got, exitConfiguration)
	}
}

func TestRun_UnknownParfileIsConfigurationError(t *testing.T) {
	args := []string{"-p", "/nonexistent/path/scenario.json"}
	if got := run(args); got != exitConfiguration {
		t.Errorf("run() = %d, want exitConfiguration (%d)", got, exitConfiguration)
	}
}

func TestRun_HeadlessWritesResultFile(t *testing.T) {
	dir := t.TempDir()
	parfile := writeScenario(t, dir)
	outDir := filepath.Join(dir, "out")

	args := []string{"-p", parfile, "-tracks-dir", filepath.Join(dir, "tracks"), "-o", outDir}
	if got := run(args); got != exitOK {
		t.Fatalf("run() = %d, want exitOK", got)
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "last_run.txt"))
	if err != nil {
		t.Fatalf("reading result file: %v", err)
	}
	if !strings.Contains(string(raw), "RESULT: Lap times") {
		t.Error("result file missing lap-times table")
	}
}

func TestWriteAveragedTable_FormatsMissingCellsAsDash(t *testing.T) {
	var buf bytes.Buffer
	matrix := [][]float64{{0, 90.123}, {0, 0}}
	if err := writeAveragedTable(&buf, "RESULT: Lap times (averaged)", []uint32{1, 2}, []string{"AAA", "BBB"}, matrix); err != nil {
		t.Fatalf("writeAveragedTable: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "90.123") {
		t.Error("expected recorded average to render")
	}
	if !strings.Contains(out, "-") {
		t.Error("expected a placeholder for the unrecorded cell")
	}
}

func TestWriteAveragedText_RendersBothTables(t *testing.T) {
	avg := &montecarlo.Averaged{
		CarNos:         []uint32{1},
		DriverInitials: []string{"AAA"},
		LapTimes:       [][]float64{{0, 90.0}},
		RaceTimes:      [][]float64{{0, 90.0}},
	}
	var buf bytes.Buffer
	if err := writeAveragedText(&buf, avg); err != nil {
		t.Fatalf("writeAveragedText: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "RESULT: Lap times (averaged)") || !strings.Contains(out, "RESULT: Race times (averaged)") {
		t.Error("expected both averaged-table headers")
	}
}

func TestNewLogger_DebugLevel(t *testing.T) {
	debugLogger := newLogger(true)
	if debugLogger.GetLevel().String() != "debug" {
		t.Errorf("debug logger level = %v, want debug", debugLogger.GetLevel())
	}
	infoLogger := newLogger(false)
	if infoLogger.GetLevel().String() != "info" {
		t.Errorf("non-debug logger level = %v, want info", infoLogger.GetLevel())
	}
}
