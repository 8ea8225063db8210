package race

import (
	"math"

	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/statehandler"
)

// posInf is the canonical +Inf lap time standing in for a retired car or
// a car still mid-standstill, per spec §3's DNF invariant.
var posInf = math.Inf(1)

// computeTheoreticalLaptimes refreshes t_th for every car per spec §4.4:
// t_q + dt_rp + t_car + t_driver + dt_tire + s_mass*m_fuel +
// weather_penalty + damage_penalty + noise, or +Inf for a retired car.
func (r *Race) computeTheoreticalLaptimes() {
	for i := range r.entrants {
		r.curThLaptime[i] = r.theoreticalLaptimeFor(i)
	}
}

// computeCurrentLaptimes derives cur_laptime for every car from t_th,
// applying (in order) the track multiplier, the flag pace floor, DRS/duel
// additives, the corner additive, and pit-lane/standstill pace, per spec
// §4.4 "Current lap time".
func (r *Race) computeCurrentLaptimes(dt float64) {
	refLap := r.track.TQ + r.track.TGapRacepace
	isDry := r.weather == WeatherDry

	for i, e := range r.entrants {
		if e.car.Status == car.StatusDNF {
			r.curLaptime[i] = math.Inf(1)
			continue
		}

		_, sCur := e.handler.GetSTracks()
		base := r.curThLaptime[i] / r.track.MultiplierAt(sCur)

		switch r.flag {
		case FlagYellow:
			base = math.Max(base, 1.1*refLap)
		case FlagVSC, FlagSC:
			base = math.Max(base, 1.4*refLap)
		}

		r.duelAct[i] = r.estimateDuelGap(i) < 1.0
		inOvertakingZone := r.track.IsInOvertakingZone(sCur)
		r.drsAct[i] = isDry && r.useDRS && r.curLapLeader >= r.drsAllowedLap && r.duelAct[i] && inOvertakingZone

		if r.drsAct[i] {
			base += r.track.TDRSEffect * r.track.OvertakingZonesLapFrac
		}
		if r.duelAct[i] {
			base += r.constants.TDuel * r.track.OvertakingZonesLapFrac
		}

		r.cornerAct[i] = r.track.IsInCorner(sCur)
		if r.cornerAct[i] {
			base += 0.5
		}

		switch e.handler.State() {
		case statehandler.Pitlane:
			base = r.pitLanePace()
		case statehandler.PitStandstill:
			overshoot, leaving := e.handler.CheckLeavesStandstill(dt)
			if leaving && overshoot > 0 {
				base = r.pitLanePace() * dt / overshoot
			} else {
				base = math.Inf(1)
			}
		}

		r.curLaptime[i] = base
	}
}

// pitLanePace returns the pit-lane driving pace: (L/v_pit) scaled by the
// ratio of real to virtual pit-zone length, per spec §4.4 step 5.
func (r *Race) pitLanePace() float64 {
	return (r.track.Length / r.track.PitSpeedLimit) *
		(r.track.RealLengthPitZone / r.track.TrackLengthPitZone)
}

// estimateDuelGap approximates the projected time gap from car i to
// whichever of its immediate neighbors (front or rear) is closest, using
// the still-fresh theoretical lap time (curLaptime for this step has not
// been finalized yet, per the fixed operation order in spec §5).
func (r *Race) estimateDuelGap(i int) float64 {
	order := r.onTrackOrder()
	pos := -1
	for idx, oi := range order {
		if oi == i {
			pos = idx
			break
		}
	}
	if pos < 0 {
		return math.Inf(1)
	}

	best := math.Inf(1)
	_, sI := r.entrants[i].handler.GetSTracks()
	if pos > 0 {
		_, sFront := r.entrants[order[pos-1]].handler.GetSTracks()
		best = math.Min(best, gapSeconds(sFront, sI, r.track.Length, r.curThLaptime[i]))
	}
	if pos < len(order)-1 {
		_, sRear := r.entrants[order[pos+1]].handler.GetSTracks()
		best = math.Min(best, gapSeconds(sI, sRear, r.track.Length, r.curThLaptime[order[pos+1]]))
	}
	return best
}

func gapSeconds(sFront, sRear, trackLength, refLaptime float64) float64 {
	d := sFront - sRear
	if d < 0 {
		d += trackLength
	}
	return (d / trackLength) * refLaptime
}
