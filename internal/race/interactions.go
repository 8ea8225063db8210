package race

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/psybedev/racetrack-sim/internal/car"
	"github.com/psybedev/racetrack-sim/internal/raceresult"
	"github.com/psybedev/racetrack-sim/internal/statehandler"
)

// onTrackOrder returns entrant indices for every non-retired car, sorted
// by descending current arc-length, the ordering spec §4.5 uses to form
// adjacent front/rear pairs.
func (r *Race) onTrackOrder() []int {
	idxs := lo.Filter(lo.Range(len(r.entrants)), func(i int, _ int) bool {
		return r.entrants[i].car.Status != car.StatusDNF
	})
	sort.Slice(idxs, func(a, b int) bool {
		_, sa := r.entrants[idxs[a]].handler.GetSTracks()
		_, sb := r.entrants[idxs[b]].handler.GetSTracks()
		return sa > sb
	})
	return idxs
}

// projectedGap is the spec's g(front,rear): the lap-fraction spacing
// between the pair times the rear car's current lap time.
func (r *Race) projectedGap(frontIdx, rearIdx int) float64 {
	_, sFront := r.entrants[frontIdx].handler.GetSTracks()
	_, sRear := r.entrants[rearIdx].handler.GetSTracks()
	d := sFront - sRear
	if d < 0 {
		d += r.track.Length
	}
	return (d / r.track.Length) * r.curLaptime[rearIdx]
}

func (r *Race) inPit(idx int) bool {
	return r.entrants[idx].handler.State() != statehandler.OnTrack
}

// resolveInteractions applies dirty air, blocking/overtake-candidate
// permission, driver mistakes, minor contact, collisions, and the
// overtake/close-battle resolution pass, per spec §4.5.
func (r *Race) resolveInteractions(dt float64) {
	order := r.onTrackOrder()
	if len(order) < 2 {
		return
	}

	collided := make(map[int]bool, len(order))
	for i := 0; i < len(order)-1; i++ {
		frontIdx, rearIdx := order[i], order[i+1]
		if r.applyPairwiseBasics(frontIdx, rearIdx, dt) {
			collided[i] = true
		}
	}

	type pairGap struct {
		idx               int
		frontIdx, rearIdx int
		gap               float64
	}
	pairs := make([]pairGap, 0, len(order)-1)
	for i := 0; i < len(order)-1; i++ {
		if collided[i] {
			continue
		}
		frontIdx, rearIdx := order[i], order[i+1]
		pairs = append(pairs, pairGap{i, frontIdx, rearIdx, r.projectedGap(frontIdx, rearIdx)})
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].gap > pairs[b].gap })
	for _, p := range pairs {
		r.resolveOvertakeOrClose(p.frontIdx, p.rearIdx, p.gap)
	}
}

// applyPairwiseBasics applies dirty air, blocking, mistakes, minor
// contact, and the collision check to one adjacent pair. It reports
// whether a collision fired, in which case the pair is excluded from the
// overtake/close-battle pass this step.
func (r *Race) applyPairwiseBasics(frontIdx, rearIdx int, dt float64) bool {
	g := r.projectedGap(frontIdx, rearIdx)
	neitherInPit := !r.inPit(frontIdx) && !r.inPit(rearIdx)
	front, rear := r.entrants[frontIdx], r.entrants[rearIdx]

	if g < 2.0 && neitherInPit {
		intensity := 1 - g/2
		r.curLaptime[rearIdx] += 0.3 * intensity
		rear.car.DirtyAirWearFactor = 1 + 1*intensity
	}

	if g < 0.5 && neitherInPit {
		fasterRear := r.curThLaptime[frontIdx] - r.curThLaptime[rearIdx] > 0.15
		_, sRear := rear.handler.GetSTracks()
		canOvertake := fasterRear && r.track.IsInOvertakingZone(sRear)
		if !canOvertake {
			r.curLaptime[rearIdx] = r.curLaptime[frontIdx]
			rear.car.DirtyAirWearFactor += 0.5
		}
	}

	if g < 1.0 {
		intensity := math.Max(0, 1-g/2)
		pMistake := (1 - front.car.Driver.Consistency) * intensity * 0.05
		if r.rng.Float64() < pMistake {
			if r.rng.Float64() < 0.5 {
				r.curLaptime[frontIdx] += 1.2
				front.car.DirtyAirWearFactor += 2
			} else {
				r.curLaptime[frontIdx] += 0.8
				r.curLaptime[rearIdx] -= 0.3
			}
		}
	}

	if g < 0.3 {
		pContact := 0.005 * (front.car.Driver.Aggression + rear.car.Driver.Aggression)
		if r.rng.Float64() < pContact {
			if r.rng.Float64() < 0.7 {
				rear.car.AccumulatedDamagePenalty += 0.3
			} else {
				front.car.AccumulatedDamagePenalty += 0.3
			}
		}

		corner := r.cornerAct[frontIdx] || r.cornerAct[rearIdx]
		cornerFactor := 1.0
		if corner {
			cornerFactor = 15.0
		}
		aggSum := front.car.Driver.Aggression + rear.car.Driver.Aggression
		lambda := 4e-6 * cornerFactor * (1 + 0.8*(aggSum-1)) * r.constants.CollisionFactor
		pCollision := 1 - math.Exp(-lambda*dt)
		if r.rng.Float64() < pCollision {
			front.car.Status = car.StatusDNF
			rear.car.Status = car.StatusDNF
			r.curLaptime[frontIdx] = math.Inf(1)
			r.curLaptime[rearIdx] = math.Inf(1)
			r.result.AddEvent(r.tRace, raceresult.EventCrash, r.curLapLeader, front.car.CarNo, rear.car.CarNo)
			return true
		}
	}

	return false
}

// resolveOvertakeOrClose applies the close-battle resolution: an
// outright overtake when the rear car's theoretical pace advantage
// clears the aggression-weighted threshold and the pair isn't in a
// corner, else a closing-gap pace adjustment, per spec §4.5.
func (r *Race) resolveOvertakeOrClose(frontIdx, rearIdx int, gNow float64) {
	if gNow >= r.constants.MinTDist {
		return
	}

	front, rear := r.entrants[frontIdx], r.entrants[rearIdx]
	deltaTh := r.curThLaptime[frontIdx] - r.curThLaptime[rearIdx]
	theta := math.Max(0.05, 0.2*(1-0.7*rear.car.Driver.Aggression+0.3*front.car.Driver.Aggression))

	inCorner := r.cornerAct[frontIdx] || r.cornerAct[rearIdx]
	if deltaTh > theta && !inCorner {
		r.curLaptime[rearIdx] += 0.1
		r.curLaptime[frontIdx] += r.constants.TOvertakeLoser
		return
	}

	floor := r.curLaptime[frontIdx] + ((r.constants.MinTDist-gNow)/5)*r.curLaptime[rearIdx]
	if r.curLaptime[rearIdx] < floor {
		r.curLaptime[rearIdx] = floor
	}
}
