package race

import (
	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/raceresult"
	"github.com/psybedev/racetrack-sim/internal/statehandler"
)

// checkStateTransitions drives each car's OnTrack<->Pitlane
// state-machine edges off this step's sub-step crossings.
func (r *Race) checkStateTransitions(_ float64) {
	for _, e := range r.entrants {
		if e.car.Status == car.StatusDNF {
			continue
		}
		nextLap := e.handler.GetComplLap() + 1
		e.handler.CheckStateTransition(e.car.PitThisLap(nextLap))
	}
}

// integratePositions advances every car's arc-length position by one
// timestep at its just-computed current lap time (spec §4.3
// update_race_prog). Retired cars and cars mid-standstill advance by
// zero because their cur_laptime is +Inf.
func (r *Race) integratePositions(dt float64) {
	for i, e := range r.entrants {
		e.handler.UpdateRaceProg(r.curLaptime[i], dt)
	}
}

// handlePitStandstillTransitions arms the standstill sub-state on
// reaching the pit box (applying the pit stop at that instant, not at
// standstill end) and releases it once the sampled duration elapses,
// per spec §4.3.
func (r *Race) handlePitStandstillTransitions(dt float64) {
	for _, e := range r.entrants {
		switch e.handler.State() {
		case statehandler.Pitlane:
			if e.handler.Crossed(e.car.PitLocation) {
				r.enterStandstill(e, dt)
			}
		case statehandler.PitStandstill:
			if _, leaves := e.handler.CheckLeavesStandstill(dt); leaves {
				e.handler.DeactPitStandstill()
			} else {
				e.handler.IncrementTStandstill(dt)
			}
		}
	}
}

func (r *Race) enterStandstill(e *entrant, dt float64) {
	sPrev, sCur := e.handler.GetSTracks()
	span := sCur - sPrev
	if span < 0 {
		span += r.track.Length
	}
	frac := 0.0
	if span > 0 {
		d := e.car.PitLocation - sPrev
		if d < 0 {
			d += r.track.Length
		}
		frac = d / span
	}
	elapsedAlready := frac * dt

	lapNow := e.handler.GetComplLap() + 1
	addStandstill := e.car.TAddPitStandstill(lapNow, r.rng)
	e.car.PerformPitstop(lapNow)

	target := e.car.PitTirechangeBase() + addStandstill
	e.handler.ActPitStandstill(elapsedAlready, target)
}

// handleLapTransitions records each car's just-completed lap, advances
// its tire age and fuel, and tests the per-lap engine-failure hazard,
// per spec §4.7.
func (r *Race) handleLapTransitions(dt float64) {
	for i, e := range r.entrants {
		if e.car.Status == car.StatusDNF || !e.handler.GetNewLap() {
			continue
		}
		if r.result.Finished[i] {
			continue
		}

		lapFracPrev, _ := e.handler.GetLapFracs()
		tPartOld := (1 - lapFracPrev) * r.curLaptime[i]
		k := e.handler.GetComplLap()
		if k > r.totNoLaps {
			r.result.Finished[i] = true
			continue
		}

		lapTime := (r.tRace - dt + tPartOld) - r.result.RaceTimes[i][k-1]
		r.result.RecordLap(i, k, lapTime)

		wasRunning := e.car.Status == car.StatusRunning
		e.car.DriveLap(lapTime, r.constants.FailureRatePerHour, r.rng)
		if wasRunning && e.car.Status == car.StatusDNF {
			r.result.AddEvent(r.tRace, raceresult.EventEngineFailure, k, e.car.CarNo)
		}

		r.curThLaptime[i] = r.theoreticalLaptimeFor(i)

		if k >= r.totNoLaps {
			r.result.Finished[i] = true
		}
	}
}

// theoreticalLaptimeFor recomputes t_th for a single car, used both at
// the top of Step and immediately after a lap rollover (spec §4.7
// "Recompute t_th[i]").
func (r *Race) theoreticalLaptimeFor(i int) float64 {
	e := r.entrants[i]
	if e.car.Status == car.StatusDNF {
		return posInf
	}
	basic, err := e.car.CalcBasicTimeloss(r.track.SMass, r.weather == WeatherRain, r.tireCfg)
	if err != nil {
		return posInf
	}
	sigma := (1 - e.car.Driver.Consistency) * 2
	noise := 0.0
	if sigma > 0 {
		noise = r.rng.NormFloat64() * sigma
	}
	return r.track.TQ + r.track.TGapRacepace + basic + noise
}
