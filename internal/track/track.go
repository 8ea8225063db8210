// Package track models the immutable race-track geometry: total length,
// pit-lane zone, overtaking and corner zones, DRS measurement points, and
// a per-arc-length speed multiplier vector derived from track curvature.
//
// Grounded on original_source/racesim/src/core/track.rs (calc_track_multipliers,
// is_in_overtaking_zone, get_pit_drive_timeloss) and teacher's
// strategy/pit_calculator.go TrackData/DRSZone/OvertakingZone naming.
package track

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/psybedev/racetrack-sim/internal/simerr"
)

// Zone is an arc-length interval [Start, End] that may wrap past the
// start-finish line (Start > End means the zone crosses s=0).
type Zone struct {
	Start float64
	End   float64
}

// Contains reports whether s lies within the zone, honoring wrap-around.
func (z Zone) Contains(s float64) bool {
	if z.Start <= z.End {
		return s >= z.Start && s <= z.End
	}
	return s >= z.Start || s <= z.End
}

// length returns the zone's arc-length extent along the track of the given
// total length, honoring wrap-around.
func (z Zone) length(trackLength float64) float64 {
	if z.Start <= z.End {
		return z.End - z.Start
	}
	return trackLength - z.Start + z.End
}

// Pars is the JSON-facing, as-configured track description.
type Pars struct {
	Name               string    `json:"name"`
	TQ                 float64   `json:"t_q"`
	TGapRacepace       float64   `json:"t_gap_racepace"`
	SMass              float64   `json:"s_mass"`
	TDRSEffect         float64   `json:"t_drseffect"`
	PitSpeedLimit      float64   `json:"pit_speedlimit"`
	TLossFirstlap      float64   `json:"t_loss_firstlap"`
	DPerGridpos        float64   `json:"d_per_gridpos"`
	DFirstGridpos      float64   `json:"d_first_gridpos"`
	Length             float64   `json:"length"`
	RealLengthPitZone  float64   `json:"real_length_pit_zone"`
	PitZone            [2]float64 `json:"pit_zone"`
	PitsAfterFinish    bool      `json:"pits_after_finish"`
	OvertakingZones    [][2]float64 `json:"overtaking_zones"`
	Corners            [][2]float64 `json:"corners"`
	DRSMeasurementPts  []float64 `json:"drs_measurement_points"`
}

// Track is the immutable, fully derived track model shared for the
// lifetime of a race.
type Track struct {
	Name              string
	TQ                float64
	TGapRacepace      float64
	SMass             float64
	TDRSEffect        float64
	PitSpeedLimit     float64
	TLossFirstlap     float64
	DPerGridpos       float64
	DFirstGridpos     float64
	Length            float64
	RealLengthPitZone float64
	TrackLengthPitZone float64
	PitZone           Zone
	PitsAfterFinish   bool
	OvertakingZones   []Zone
	OvertakingZonesLapFrac float64
	Corners           []Zone
	DRSMeasurementPts []float64

	// Multipliers is the per-arc-length speed multiplier vector, mean 1,
	// floored at 0.5.
	Multipliers []float64
}

// CentrelinePoint is one row of the track's centerline CSV.
type CentrelinePoint struct {
	X            float64
	Y            float64
	WidthLeft    float64
	WidthRight   float64
}

// New builds a Track from parameters and a parsed centerline. If centreline
// has fewer than 3 points, the multiplier vector degrades to a single 1.0
// entry (uniform pace), matching the source's defensive fallback.
func New(pars Pars, centreline []CentrelinePoint) (*Track, error) {
	if pars.Length <= 0 {
		return nil, simerr.Configf(nil, "track %q: length must be positive", pars.Name)
	}

	pitZone := Zone{Start: pars.PitZone[0], End: pars.PitZone[1]}
	trackLengthPitZone := pitZone.length(pars.Length)

	var overtaking []Zone
	lenOvertaking := 0.0
	for _, oz := range pars.OvertakingZones {
		z := Zone{Start: oz[0], End: oz[1]}
		overtaking = append(overtaking, z)
		lenOvertaking += z.length(pars.Length)
	}

	var corners []Zone
	for _, c := range pars.Corners {
		corners = append(corners, Zone{Start: c[0], End: c[1]})
	}

	multipliers, err := computeMultipliers(centreline)
	if err != nil {
		return nil, errors.Wrapf(err, "track %q: computing speed multipliers", pars.Name)
	}

	return &Track{
		Name:                   pars.Name,
		TQ:                     pars.TQ,
		TGapRacepace:           pars.TGapRacepace,
		SMass:                  pars.SMass,
		TDRSEffect:             pars.TDRSEffect,
		PitSpeedLimit:          pars.PitSpeedLimit,
		TLossFirstlap:          pars.TLossFirstlap,
		DPerGridpos:            pars.DPerGridpos,
		DFirstGridpos:          pars.DFirstGridpos,
		Length:                 pars.Length,
		RealLengthPitZone:      pars.RealLengthPitZone,
		TrackLengthPitZone:     trackLengthPitZone,
		PitZone:                pitZone,
		PitsAfterFinish:        pars.PitsAfterFinish,
		OvertakingZones:        overtaking,
		OvertakingZonesLapFrac: lenOvertaking / pars.Length,
		Corners:                corners,
		DRSMeasurementPts:      pars.DRSMeasurementPts,
		Multipliers:            multipliers,
	}, nil
}

// ReadCentreline parses a centerline CSV with columns x_m,y_m,w_tr_left_m,w_tr_right_m.
func ReadCentreline(r io.Reader) ([]CentrelinePoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, simerr.Configf(err, "reading centerline CSV")
	}
	if len(records) == 0 {
		return nil, simerr.Configf(nil, "centerline CSV is empty")
	}

	// Skip an optional header row.
	start := 0
	if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
		start = 1
	}

	points := make([]CentrelinePoint, 0, len(records)-start)
	for _, rec := range records[start:] {
		if len(rec) < 2 {
			continue
		}
		x, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, simerr.Configf(err, "parsing centerline x_m")
		}
		y, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, simerr.Configf(err, "parsing centerline y_m")
		}
		p := CentrelinePoint{X: x, Y: y}
		if len(rec) >= 3 {
			p.WidthLeft, _ = strconv.ParseFloat(rec[2], 64)
		}
		if len(rec) >= 4 {
			p.WidthRight, _ = strconv.ParseFloat(rec[3], 64)
		}
		points = append(points, p)
	}
	return points, nil
}

// computeMultipliers derives the curvature-based speed multiplier vector:
// kappa_i = theta_i / ds_i, raw_i = max(0.5, (1/(1+kappa_i))^5), normalized
// to mean 1. Boundary samples inherit their neighbor's curvature.
func computeMultipliers(pts []CentrelinePoint) ([]float64, error) {
	n := len(pts)
	if n < 3 {
		return []float64{1.0}, nil
	}

	dist := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		dx := pts[i+1].X - pts[i].X
		dy := pts[i+1].Y - pts[i].Y
		dist[i] = math.Hypot(dx, dy)
	}

	kappa := make([]float64, n)
	for i := 1; i < n-1; i++ {
		prevDx := pts[i].X - pts[i-1].X
		prevDy := pts[i].Y - pts[i-1].Y
		nextDx := pts[i+1].X - pts[i].X
		nextDy := pts[i+1].Y - pts[i].Y

		normPrev := math.Hypot(prevDx, prevDy)
		normNext := math.Hypot(nextDx, nextDy)
		if normPrev == 0 || normNext == 0 {
			continue
		}

		dot := prevDx*nextDx + prevDy*nextDy
		cosTheta := clamp(dot/(normPrev*normNext), -1, 1)
		theta := math.Acos(cosTheta)

		ds := (dist[i-1] + dist[i]) / 2
		if ds == 0 {
			continue
		}
		kappa[i] = theta / ds
	}
	kappa[0] = kappa[1]
	kappa[n-1] = kappa[n-2]

	raw := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		v := math.Pow(1/(1+kappa[i]), 5)
		if v < 0.5 {
			v = 0.5
		}
		raw[i] = v
		sum += v
	}

	avg := sum / float64(n)
	multi := make([]float64, n)
	for i := 0; i < n; i++ {
		if avg != 0 {
			multi[i] = raw[i] / avg
		} else {
			multi[i] = 1.0
		}
	}
	return multi, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MultiplierAt maps arc-length s uniformly onto the multiplier index space,
// clamping to the last index at s=L.
func (t *Track) MultiplierAt(s float64) float64 {
	n := len(t.Multipliers)
	if n == 0 {
		return 1.0
	}
	idx := int(s / t.Length * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return t.Multipliers[idx]
}

// IsInOvertakingZone reports whether s lies within any overtaking zone.
func (t *Track) IsInOvertakingZone(s float64) bool {
	for _, z := range t.OvertakingZones {
		if z.Contains(s) {
			return true
		}
	}
	return false
}

// IsInCorner reports whether s lies within any corner zone.
func (t *Track) IsInCorner(s float64) bool {
	for _, z := range t.Corners {
		if z.Contains(s) {
			return true
		}
	}
	return false
}

// PitDriveTimeloss returns the approximate time loss of driving the full
// pit lane versus staying on the racing line.
func (t *Track) PitDriveTimeloss() float64 {
	pitZoneLapFrac := t.TrackLengthPitZone / t.Length
	return t.RealLengthPitZone/t.PitSpeedLimit - (t.TQ+t.TGapRacepace)*1.04*pitZoneLapFrac
}
