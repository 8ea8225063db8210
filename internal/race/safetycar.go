package race

import (
	"math"

	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/raceresult"
	"github.com/psybedev/racetrack-sim/internal/statehandler"
)

// checkSCTrigger looks for a car that is DNF, outside the pit lane, and
// not yet "trigger consumed": its presence moves the flag to SC pending
// insertion next step, and marks every currently-DNF car consumed so a
// single incident cannot re-deploy the SC (spec §4.6).
func (r *Race) checkSCTrigger() {
	if r.flag == FlagSC || r.flag == FlagChequered {
		return
	}

	trigger := false
	for i, e := range r.entrants {
		if e.car.Status == car.StatusDNF && !r.sc.triggerConsumed[i] && e.handler.State() == statehandler.OnTrack {
			trigger = true
		}
	}
	if !trigger {
		return
	}

	r.flag = FlagSC
	r.sc.active = false
	r.sc.countdownS = r.constants.SCHardCapS
	for i, e := range r.entrants {
		if e.car.Status == car.StatusDNF {
			r.sc.triggerConsumed[i] = true
		}
	}
}

// advanceSC inserts the SC on the first step under a pending SC flag,
// then advances it as a free body each subsequent step.
func (r *Race) advanceSC(dt float64) {
	if r.flag != FlagSC {
		return
	}
	if !r.sc.active {
		r.insertSC()
		return
	}
	r.sc.sTrack += r.sc.vSC * dt
	if r.sc.sTrack >= r.track.Length {
		r.sc.lap++
		r.sc.sTrack -= r.track.Length
	}
}

// insertSC places the SC 500m ahead of the on-track race leader,
// wrapping the lap counter if that crosses the line (spec §9: no clamp
// near the start-finish line).
func (r *Race) insertSC() {
	leaderIdx := -1
	bestProg := -1.0
	for i, e := range r.entrants {
		if e.car.Status != car.StatusRunning {
			continue
		}
		if prog := e.handler.GetRaceProg(); prog > bestProg {
			bestProg = prog
			leaderIdx = i
		}
	}
	if leaderIdx < 0 {
		r.sc.active = true
		return
	}

	_, sLeader := r.entrants[leaderIdx].handler.GetSTracks()
	lap := r.entrants[leaderIdx].handler.GetComplLap()
	s := sLeader + r.constants.SCInsertionGap
	if s >= r.track.Length {
		s -= r.track.Length
		lap++
	}

	r.sc.sTrack = s
	r.sc.lap = lap
	r.sc.vSC = r.constants.SCSpeed
	r.sc.active = true
	r.sc.countdownS = r.constants.SCHardCapS
	r.result.AddEvent(r.tRace, raceresult.EventSCDeployed, r.curLapLeader)
}

// paceUnderSC enforces the SC lineup: each active car targets
// target_gap behind its immediate front (the SC itself for the road
// leader), with a catch-up term, clamped to [10 m/s, its own natural
// pace]. The release countdown ticks down every step under the SC, so
// the hard cap releases the SC even without a lineup; once every gap
// holds within tolerance, the countdown is clamped to the soft value.
func (r *Race) paceUnderSC(dt float64) {
	order := r.onTrackOrder()

	frontS, frontLap := r.sc.sTrack, r.sc.lap
	withinTolerance := true
	for _, idx := range order {
		e := r.entrants[idx]
		_, sCar := e.handler.GetSTracks()
		carLap := e.handler.GetComplLap()

		gap := float64(frontLap-carLap)*r.track.Length + (frontS - sCar)
		if gap < 0 {
			gap = 0
		}

		vTarget := r.sc.vSC + (gap-r.constants.SCTargetGap)*r.constants.SCCatchupFactor
		maxV := r.track.Length / r.curThLaptime[idx]
		vTarget = clampF(vTarget, 10, maxV)
		r.curLaptime[idx] = r.track.Length / vTarget

		if math.Abs(gap-r.constants.SCTargetGap) > r.constants.SCTolerance {
			withinTolerance = false
		}

		frontS, frontLap = sCar, carLap
	}

	if withinTolerance {
		r.sc.countdownS = math.Min(r.sc.countdownS, r.constants.SCSoftCountdownS)
	}
	r.sc.countdownS -= dt

	if r.sc.countdownS <= 0 {
		r.flag = FlagGreen
		r.sc.active = false
		r.result.AddEvent(r.tRace, raceresult.EventSCIn, r.curLapLeader)
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > lo && v > hi {
		return hi
	}
	return v
}
