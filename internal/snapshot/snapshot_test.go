package snapshot

import "testing"

func TestParseRGB(t *testing.T) {
	cases := []struct {
		in   string
		want RGB
	}{
		{"#FF0000", RGB{255, 0, 0}},
		{"00FF00", RGB{0, 255, 0}},
		{"#0000ff", RGB{0, 0, 255}},
		{"not-a-color", RGB{255, 255, 255}},
		{"#ABC", RGB{255, 255, 255}},
	}
	for _, c := range cases {
		if got := ParseRGB(c.in); got != c.want {
			t.Errorf("ParseRGB(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestComputeVelocity(t *testing.T) {
	base := VelocityInputs{
		TrackLength:   1000,
		CurLaptime:    100,
		PitSpeedLimit: 16.6,
	}

	standstill := base
	standstill.InPitStandstill = true
	if v := ComputeVelocity(standstill); v != 0 {
		t.Errorf("pit standstill velocity = %v, want 0", v)
	}

	pitlane := base
	pitlane.InPitlaneDrive = true
	if v := ComputeVelocity(pitlane); v != base.PitSpeedLimit {
		t.Errorf("pitlane drive velocity = %v, want %v", v, base.PitSpeedLimit)
	}

	underSC := base
	underSC.UnderSC = true
	if v := ComputeVelocity(underSC); v != 10 {
		t.Errorf("under-SC velocity = %v, want 10", v)
	}

	racing := base
	racing.Multiplier = 1.0
	if v := ComputeVelocity(racing); v != 10*(0.35+1.15) {
		t.Errorf("racing velocity = %v, want %v", v, 10*(0.35+1.15))
	}

	slow := base
	slow.Multiplier = 0.5
	if v := ComputeVelocity(slow); v != 10*(0.35+1.15*0.25) {
		t.Errorf("slow-multiplier velocity = %v, want %v", v, 10*(0.35+1.15*0.25))
	}
}
