package track

import (
	"math"
	"strings"
	"testing"
)

func basicPars() Pars {
	return Pars{
		Name:              "testring",
		TQ:                80,
		TGapRacepace:      1.0,
		SMass:             0.03,
		TDRSEffect:        0.3,
		PitSpeedLimit:     16.6,
		TLossFirstlap:     2.0,
		DPerGridpos:       0.15,
		DFirstGridpos:     0.3,
		Length:            5000,
		RealLengthPitZone: 400,
		PitZone:           [2]float64{4800, 200},
		PitsAfterFinish:   false,
		OvertakingZones:   [][2]float64{{1000, 1500}, {4900, 100}},
		Corners:           [][2]float64{{300, 400}},
		DRSMeasurementPts: []float64{500},
	}
}

func TestZoneContainsWrap(t *testing.T) {
	z := Zone{Start: 4800, End: 200}
	cases := map[float64]bool{4900: true, 100: true, 4700: false, 300: false, 4800: true, 200: true}
	for s, want := range cases {
		if got := z.Contains(s); got != want {
			t.Errorf("Contains(%v) = %v, want %v", s, got, want)
		}
	}
}

func TestZoneLengthWrap(t *testing.T) {
	z := Zone{Start: 4800, End: 200}
	if got := z.length(5000); got != 400 {
		t.Errorf("length = %v, want 400", got)
	}
	z2 := Zone{Start: 1000, End: 1500}
	if got := z2.length(5000); got != 500 {
		t.Errorf("length = %v, want 500", got)
	}
}

func TestNewRejectsNonPositiveLength(t *testing.T) {
	pars := basicPars()
	pars.Length = 0
	if _, err := New(pars, nil); err == nil {
		t.Fatal("expected error for zero length track")
	}
}

func TestNewDegenerateCentreline(t *testing.T) {
	pars := basicPars()
	tr, err := New(pars, []CentrelinePoint{{X: 0, Y: 0}, {X: 10, Y: 0}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(tr.Multipliers) != 1 || tr.Multipliers[0] != 1.0 {
		t.Errorf("expected fallback uniform multiplier, got %v", tr.Multipliers)
	}
}

func TestComputeMultipliersStraightLineIsUniform(t *testing.T) {
	pts := make([]CentrelinePoint, 10)
	for i := range pts {
		pts[i] = CentrelinePoint{X: float64(i) * 10, Y: 0}
	}
	multi, err := computeMultipliers(pts)
	if err != nil {
		t.Fatalf("computeMultipliers: %v", err)
	}
	for i, m := range multi {
		if math.Abs(m-1.0) > 1e-9 {
			t.Errorf("multi[%d] = %v, want 1.0 on a straight line", i, m)
		}
	}
}

func TestComputeMultipliersSharpTurnBelowMean(t *testing.T) {
	// Straight then a sharp right-angle turn in the middle.
	pts := []CentrelinePoint{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 10}, {X: 20, Y: 20}, {X: 20, Y: 30},
	}
	multi, err := computeMultipliers(pts)
	if err != nil {
		t.Fatalf("computeMultipliers: %v", err)
	}
	// The corner sample (index 2) should have the lowest multiplier.
	minIdx := 0
	for i, m := range multi {
		if m < multi[minIdx] {
			minIdx = i
		}
	}
	if minIdx != 2 {
		t.Errorf("expected corner index 2 to have the lowest multiplier, got min at %d (%v)", minIdx, multi)
	}
	for _, m := range multi {
		if m < 0.5-1e-9 {
			t.Errorf("multiplier %v fell below floor 0.5", m)
		}
	}
}

func TestBoundarySamplesInheritNeighborCurvature(t *testing.T) {
	pts := []CentrelinePoint{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 20, Y: 0}, {X: 20, Y: 10}, {X: 20, Y: 20},
	}
	multi, err := computeMultipliers(pts)
	if err != nil {
		t.Fatalf("computeMultipliers: %v", err)
	}
	n := len(multi)
	if multi[0] != multi[1] {
		t.Errorf("first sample should inherit neighbor curvature: %v != %v", multi[0], multi[1])
	}
	if multi[n-1] != multi[n-2] {
		t.Errorf("last sample should inherit neighbor curvature: %v != %v", multi[n-1], multi[n-2])
	}
}

func TestMultiplierAtClampsAndWraps(t *testing.T) {
	tr := &Track{Length: 100, Multipliers: []float64{1, 2, 3, 4}}
	if got := tr.MultiplierAt(0); got != 1 {
		t.Errorf("MultiplierAt(0) = %v, want 1", got)
	}
	if got := tr.MultiplierAt(100); got != 4 {
		t.Errorf("MultiplierAt(L) = %v, want 4 (clamped to last index)", got)
	}
	if got := tr.MultiplierAt(-5); got != 1 {
		t.Errorf("MultiplierAt(negative) = %v, want clamp to first index", got)
	}
}

func TestIsInOvertakingZoneAndCorner(t *testing.T) {
	pars := basicPars()
	tr, err := New(pars, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !tr.IsInOvertakingZone(1200) {
		t.Error("expected s=1200 to be in an overtaking zone")
	}
	if !tr.IsInOvertakingZone(4950) {
		t.Error("expected wrap-around overtaking zone to contain s=4950")
	}
	if tr.IsInOvertakingZone(2500) {
		t.Error("s=2500 should not be in any overtaking zone")
	}
	if !tr.IsInCorner(350) {
		t.Error("expected s=350 to be in the corner zone")
	}
	if tr.IsInCorner(1000) {
		t.Error("s=1000 should not be in the corner zone")
	}
}

func TestPitDriveTimeloss(t *testing.T) {
	pars := basicPars()
	tr, err := New(pars, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	loss := tr.PitDriveTimeloss()
	if loss <= 0 {
		t.Errorf("expected a positive pit-drive timeloss, got %v", loss)
	}
}

func TestReadCentrelineSkipsHeader(t *testing.T) {
	csvData := "x_m,y_m,w_tr_left_m,w_tr_right_m\n0,0,5,5\n10,0,5,5\n20,0,5,5\n"
	pts, err := ReadCentreline(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ReadCentreline: %v", err)
	}
	if len(pts) != 3 {
		t.Fatalf("expected 3 points, got %d", len(pts))
	}
	if pts[1].X != 10 {
		t.Errorf("pts[1].X = %v, want 10", pts[1].X)
	}
}

func TestReadCentrelineNoHeader(t *testing.T) {
	csvData := "0,0,5,5\n10,0,5,5\n"
	pts, err := ReadCentreline(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("ReadCentreline: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("expected 2 points, got %d", len(pts))
	}
}

func TestReadCentrelineEmpty(t *testing.T) {
	if _, err := ReadCentreline(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty CSV")
	}
}
