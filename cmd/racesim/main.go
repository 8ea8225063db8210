// Command racesim is the simulator's entry point: it parses a scenario
// file and a handful of run-mode flags, then dispatches to a headless
// run, a real-time run serving a websocket snapshot feed, or a
// Monte-Carlo batch, and writes the result text.
//
// Grounded on spec.md §6's CLI surface (-p/-t/-g/-n/-r/-d, exit codes
// 0/1/2) and original_source's read_sim_pars_flexible CLI invocation;
// the zerolog setup and exit-code discipline follow teacher's
// log.Fatalf-on-config-error pattern in strategy/manager.go, switched
// from the standard log package to github.com/rs/zerolog per the
// module's ambient stack.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/psybedev/racetrack-sim/internal/montecarlo"
	"github.com/psybedev/racetrack-sim/internal/race"
	"github.com/psybedev/racetrack-sim/internal/simpars"
	"github.com/psybedev/racetrack-sim/internal/snapshot"
	"github.com/psybedev/racetrack-sim/internal/trackcache"
)

const (
	exitOK            = 0
	exitConfiguration = 1
	exitRuntime       = 2
)

type cliFlags struct {
	parfile   string
	dt        float64
	gui       bool
	numRuns   int
	rtFactor  float64
	debug     bool
	tracksDir string
	tiresPath string
	constPath string
	guiAddr   string
	outputDir string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var f cliFlags
	fs := flag.NewFlagSet("racesim", flag.ContinueOnError)
	fs.StringVar(&f.parfile, "p", "", "scenario parameter file (required)")
	fs.Float64Var(&f.dt, "t", 0.1, "time step in seconds, [0.001, 1.0]")
	fs.BoolVar(&f.gui, "g", false, "serve the websocket snapshot feed instead of running headless")
	fs.IntVar(&f.numRuns, "n", 0, "Monte-Carlo run count (headless only, 0 disables)")
	fs.Float64Var(&f.rtFactor, "r", 1.0, "real-time factor (GUI mode only)")
	fs.BoolVar(&f.debug, "d", false, "verbose debug logging")
	fs.StringVar(&f.tracksDir, "tracks-dir", simpars.DefaultTracksDir, "directory to resolve track_name lookups from")
	fs.StringVar(&f.tiresPath, "tires", "", "tire degradation config path (defaults built in)")
	fs.StringVar(&f.constPath, "constants", "", "sim constants config path (defaults built in)")
	fs.StringVar(&f.guiAddr, "addr", ":8181", "listen address for GUI mode's websocket server")
	fs.StringVar(&f.outputDir, "o", "output", "directory to write result text into")

	if err := fs.Parse(args); err != nil {
		return exitConfiguration
	}

	logger := newLogger(f.debug)

	if f.parfile == "" {
		logger.Error().Msg("missing required -p <parfile>")
		return exitConfiguration
	}
	if f.gui && f.numRuns > 0 {
		logger.Error().Msg("-g and -n are mutually exclusive")
		return exitConfiguration
	}
	if err := simpars.ValidateTimestep(f.dt); err != nil {
		logger.Error().Err(err).Msg("invalid -t")
		return exitConfiguration
	}

	scenario, err := simpars.LoadScenario(f.parfile, f.tracksDir, f.tiresPath, f.constPath)
	if err != nil {
		logger.Error().Err(err).Msg("loading scenario")
		return exitConfiguration
	}
	logger.Debug().Float64("pit_drive_timeloss_s", scenario.Track.PitDriveTimeloss()).
		Msg("estimated time loss driving through the pit lane (excluding standstill)")

	baseCfg := race.Config{
		Track:          scenario.Track,
		TireCfg:        scenario.TireConfig,
		TotNoLaps:      scenario.RacePars.TotNoLaps,
		InitialWeather: scenario.RacePars.Weather(),
		RainProbPerMin: scenario.RacePars.RainProbability,
		UseDRS:         scenario.RacePars.UseDRS,
		DRSAllowedLap:  scenario.RacePars.DRSAllowedLap,
		Constants:      scenario.Constants,
		Logger:         logger,
	}

	switch {
	case f.numRuns > 0:
		return runMonteCarlo(logger, baseCfg, scenario, f)
	case f.gui:
		return runGUI(logger, baseCfg, scenario, f)
	default:
		return runHeadless(logger, baseCfg, scenario, f)
	}
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func runHeadless(logger zerolog.Logger, baseCfg race.Config, scenario *simpars.Scenario, f cliFlags) int {
	baseCfg.Cars = scenario.Cars
	baseCfg.Seed = time.Now().UnixNano()

	r, err := race.New(baseCfg)
	if err != nil {
		logger.Error().Err(err).Msg("constructing race")
		return exitConfiguration
	}

	result := r.Run(f.dt)
	return writeResult(logger, f.outputDir, "last_run.txt", result.WriteText)
}

func runGUI(logger zerolog.Logger, baseCfg race.Config, scenario *simpars.Scenario, f cliFlags) int {
	baseCfg.Cars = scenario.Cars
	baseCfg.Seed = time.Now().UnixNano()

	publisher := snapshot.NewPublisher(snapshot.MaxGUIUpdateFrequency, logger)
	defer publisher.Close()
	baseCfg.Publisher = publisher

	r, err := race.New(baseCfg)
	if err != nil {
		logger.Error().Err(err).Msg("constructing race")
		return exitConfiguration
	}

	server := snapshot.NewServer(publisher, logger)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(f.guiAddr); err != nil {
			serverErr <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		r.RunRealtime(f.dt, f.rtFactor)
		close(done)
	}()

	select {
	case err := <-serverErr:
		logger.Error().Err(err).Msg("websocket server")
		return exitRuntime
	case <-ctx.Done():
		logger.Info().Msg("shutting down on signal")
	case <-done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("websocket server shutdown")
	}

	return writeResult(logger, f.outputDir, "last_run.txt", r.Result().WriteText)
}

func runMonteCarlo(logger zerolog.Logger, baseCfg race.Config, scenario *simpars.Scenario, f cliFlags) int {
	runCfg := montecarlo.RunConfig{
		Dt:         f.dt,
		Base:       baseCfg,
		NewCars:    scenario.NewCars,
		TrackCache: trackcache.New(trackcache.DefaultConfig()),
		TracksDir:  f.tracksDir,
		TrackName:  scenario.RacePars.TrackName,
	}

	avg, err := montecarlo.RunAll(context.Background(), f.numRuns, time.Now().UnixNano(), runCfg)
	if err != nil {
		logger.Error().Err(err).Msg("running Monte-Carlo batch")
		return exitConfiguration
	}
	if avg.NumFailed > 0 {
		logger.Warn().Int("failed", avg.NumFailed).Int("total", avg.NumRuns).Msg("some Monte-Carlo runs failed")
		for _, e := range avg.FirstErrors {
			logger.Warn().Err(e).Msg("run failure")
		}
	}
	if avg.CarNos == nil {
		logger.Error().Msg("every Monte-Carlo run failed")
		return exitRuntime
	}

	write := func(w io.Writer) error { return writeAveragedText(w, avg) }
	return writeResult(logger, f.outputDir, "last_run_averaged.txt", write)
}

func writeResult(logger zerolog.Logger, outputDir, filename string, write func(w io.Writer) error) int {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		logger.Error().Err(err).Msg("creating output directory")
		return exitConfiguration
	}
	path := filepath.Join(outputDir, filename)
	fh, err := os.Create(path)
	if err != nil {
		logger.Error().Err(err).Msg("creating result file")
		return exitConfiguration
	}
	defer fh.Close()

	if err := write(fh); err != nil {
		logger.Error().Err(err).Msg("writing result file")
		return exitRuntime
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return exitOK
}

func writeAveragedText(w io.Writer, avg *montecarlo.Averaged) error {
	if err := writeAveragedTable(w, "RESULT: Lap times (averaged)", avg.CarNos, avg.DriverInitials, avg.LapTimes); err != nil {
		return err
	}
	return writeAveragedTable(w, "RESULT: Race times (averaged)", avg.CarNos, avg.DriverInitials, avg.RaceTimes)
}

func writeAveragedTable(w io.Writer, header string, carNos []uint32, initials []string, matrix [][]float64) error {
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	cols := make([]string, 0, len(carNos))
	for i, no := range carNos {
		cols = append(cols, fmt.Sprintf("%d (%s)", no, initials[i]))
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
			v := matrix[carIdx][lap]
			if v == 0 {
				fields = append(fields, "-")
			} else {
				fields = append(fields, fmt.Sprintf("%.3f", v))
			}
		}
		if _, err := fmt.Fprintf(w, "%d, %s\n", lap, strings.Join(fields, ", ")); err != nil {
			return err
		}
	}
	return nil
}
