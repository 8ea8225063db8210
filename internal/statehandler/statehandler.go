// Package statehandler tracks a single car's arc-length progress around
// the track and its OnTrack/Pitlane/PitStandstill state machine. It is
// the sole place sub-step line-crossing is decided; everything else in
// the simulator decides "did this car enter the pit zone / a corner /
// complete a lap this step" by asking it.
//
// Grounded on original_source/racesim/src/core/state_handler.rs
// (StateHandler, get_s_track_passed_this_step, check_state_transition,
// act_pit_standstill/deact_pit_standstill, update_race_prog). The
// lap-fraction and s-track accessors here fix a wraparound arithmetic
// slip present in that stripped-down source file (it adds s_track_cur to
// itself instead of track_length when negative); spec.md's accounting
// equations are authoritative and require the corrected form.
package statehandler

import "github.com/psybedev/racetrack-sim/internal/simerr"

// State is the car's on-track/pit-lane sub-state.
type State int

const (
	OnTrack State = iota
	Pitlane
	PitStandstill
)

func (s State) String() string {
	switch s {
	case OnTrack:
		return "OnTrack"
	case Pitlane:
		return "Pitlane"
	case PitStandstill:
		return "PitStandstill"
	default:
		return "Unknown"
	}
}

// Handler is one car's position-tracking and state-machine instance.
type Handler struct {
	pitZoneStart float64
	pitZoneEnd   float64
	trackLength  float64

	sTrackPrev float64
	sTrackCur  float64

	state              State
	tStandstill        float64
	tStandstillTarget  float64
	PitAct             bool
	PitStandstillAct   bool

	complLapPrev uint32
	complLapCur  uint32
}

// New builds a Handler starting at sTrackStart on a track of the given
// length and pit-zone bounds.
func New(sTrackStart, trackLength, pitZoneStart, pitZoneEnd float64) *Handler {
	return &Handler{
		pitZoneStart: pitZoneStart,
		pitZoneEnd:   pitZoneEnd,
		trackLength:  trackLength,
		sTrackPrev:   sTrackStart,
		sTrackCur:    sTrackStart,
		state:        OnTrack,
	}
}

// Crossed reports whether the car passed arc-length coordinate sTrack
// during this step, i.e. sTrack lies in (sTrackPrev, sTrackCur] allowing
// for a lap rollover between the two samples.
func (h *Handler) Crossed(sTrack float64) bool {
	newLap := h.GetNewLap()
	if newLap {
		// The car wrapped past the finish line this step: it passed every
		// coordinate in (sTrackPrev, trackLength] and [0, sTrackCur].
		return sTrack > h.sTrackPrev || sTrack <= h.sTrackCur
	}
	return h.sTrackPrev < sTrack && sTrack <= h.sTrackCur
}

// State returns the car's current state-machine state.
func (h *Handler) State() State { return h.state }

// CheckStateTransition evaluates the OnTrack -> Pitlane -> OnTrack
// transitions for this step. pitThisLap reports whether the car's
// strategy calls for a pit visit this lap.
func (h *Handler) CheckStateTransition(pitThisLap bool) {
	switch h.state {
	case OnTrack:
		if pitThisLap && h.Crossed(h.pitZoneStart) {
			h.state = Pitlane
			h.PitAct = true
		}
	case Pitlane:
		if h.Crossed(h.pitZoneEnd) {
			h.state = OnTrack
			h.PitAct = false
		}
	case PitStandstill:
		// Standstill entry/exit is driven externally by ActPitStandstill /
		// CheckLeavesStandstill, not by line crossing.
	}
}

// ActPitStandstill enters the standstill sub-state. It is an invariant
// violation to call this outside Pitlane.
func (h *Handler) ActPitStandstill(tStandstill, tStandstillTarget float64) {
	if h.state != Pitlane {
		simerr.Invariant("entered pit standstill while not in Pitlane (state=%s)", h.state)
	}
	h.state = PitStandstill
	h.PitStandstillAct = true
	h.tStandstill = tStandstill
	h.tStandstillTarget = tStandstillTarget
}

// DeactPitStandstill exits the standstill sub-state back to Pitlane.
func (h *Handler) DeactPitStandstill() {
	if h.state != PitStandstill {
		simerr.Invariant("left pit standstill while not in PitStandstill (state=%s)", h.state)
	}
	h.state = Pitlane
	h.PitStandstillAct = false
	h.tStandstill = 0
	h.tStandstillTarget = 0
}

// IncrementTStandstill advances the elapsed standstill clock by one
// timestep.
func (h *Handler) IncrementTStandstill(timestepSize float64) {
	if h.state != PitStandstill {
		simerr.Invariant("incremented standstill time while not in PitStandstill (state=%s)", h.state)
	}
	h.tStandstill += timestepSize
}

// CheckLeavesStandstill reports the overshoot past the standstill target
// if the car would leave standstill within this step, or ok=false if it
// remains stationary for the whole step.
func (h *Handler) CheckLeavesStandstill(timestepSize float64) (overshoot float64, ok bool) {
	if h.state != PitStandstill {
		simerr.Invariant("checked standstill exit while not in PitStandstill (state=%s)", h.state)
	}
	if h.tStandstill+timestepSize <= h.tStandstillTarget {
		return 0, false
	}
	return h.tStandstill + timestepSize - h.tStandstillTarget, true
}

// GetLapFracs returns the previous and current lap-fraction (s/L in
// [0,1)) progress of the car.
func (h *Handler) GetLapFracs() (prev, cur float64) {
	prev = h.sTrackPrev / h.trackLength
	if h.sTrackPrev < 0 {
		prev = (h.sTrackPrev + h.trackLength) / h.trackLength
	}
	cur = h.sTrackCur / h.trackLength
	if h.sTrackCur < 0 {
		cur = (h.sTrackCur + h.trackLength) / h.trackLength
	}
	return prev, cur
}

// GetSTracks returns the previous and current arc-length coordinates,
// normalized into [0, trackLength).
func (h *Handler) GetSTracks() (prev, cur float64) {
	prev = h.sTrackPrev
	if prev < 0 {
		prev += h.trackLength
	}
	cur = h.sTrackCur
	if cur < 0 {
		cur += h.trackLength
	}
	return prev, cur
}

// GetComplLap returns the number of fully completed laps.
func (h *Handler) GetComplLap() uint32 { return h.complLapCur }

// GetRaceProg returns the car's race progress in laps (completed laps
// plus current fractional lap).
func (h *Handler) GetRaceProg() float64 {
	return float64(h.complLapCur) + h.sTrackCur/h.trackLength
}

// GetNewLap reports whether a new lap was started during the most recent
// UpdateRaceProg call.
func (h *Handler) GetNewLap() bool {
	return h.complLapCur > h.complLapPrev
}

// UpdateRaceProg advances the car's arc-length position by one timestep
// at the given current lap time, rolling the lap counter on crossing the
// finish line.
func (h *Handler) UpdateRaceProg(curLaptime, timestepSize float64) {
	h.complLapPrev = h.complLapCur
	h.sTrackPrev = h.sTrackCur

	h.sTrackCur += timestepSize / curLaptime * h.trackLength

	if h.sTrackCur >= h.trackLength {
		h.complLapCur++
		h.sTrackCur -= h.trackLength
	}
}
