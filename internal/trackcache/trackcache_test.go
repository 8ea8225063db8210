package trackcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/psybedev/racetrack-sim/internal/track"
)

func writeTestTrack(t *testing.T, dir, name string) {
	t.Helper()
	pars := track.Pars{
		Name:          name,
		TQ:            80,
		Length:        5000,
		PitSpeedLimit: 16.6,
		DPerGridpos:   8,
		PitZone:       [2]float64{0, 300},
	}
	raw, err := json.Marshal(pars)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".json"), raw, 0o644); err != nil {
		t.Fatal(err)
	}
	csv := "x_m,y_m,w_tr_left_m,w_tr_right_m\n0,0,4,4\n10,0,4,4\n20,1,4,4\n"
	if err := os.WriteFile(filepath.Join(dir, name+".csv"), []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGetOrLoad_CachesAfterFirstLoad(t *testing.T) {
	dir := t.TempDir()
	writeTestTrack(t, dir, "alpha")

	c := New(DefaultConfig())
	trk1, err := c.GetOrLoad(dir, "alpha")
	if err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	trk2, err := c.GetOrLoad(dir, "alpha")
	if err != nil {
		t.Fatalf("GetOrLoad (cached): %v", err)
	}
	if trk1 != trk2 {
		t.Errorf("expected identical *track.Track pointer from cache hit")
	}
	stats := c.GetStats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestGetOrLoad_ExpiresPerTTL(t *testing.T) {
	dir := t.TempDir()
	writeTestTrack(t, dir, "beta")

	c := New(Config{TTL: time.Millisecond, MaxEntries: 16})
	if _, err := c.GetOrLoad(dir, "beta"); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := c.GetOrLoad(dir, "beta"); err != nil {
		t.Fatalf("GetOrLoad after expiry: %v", err)
	}
	stats := c.GetStats()
	if stats.Misses != 2 {
		t.Errorf("Misses = %d, want 2 (expiry forces a reload)", stats.Misses)
	}
}

func TestEvictIfNecessary_BoundsEntryCount(t *testing.T) {
	dir := t.TempDir()
	names := []string{"t1", "t2", "t3"}
	for _, n := range names {
		writeTestTrack(t, dir, n)
	}

	c := New(Config{MaxEntries: 2})
	for _, n := range names {
		if _, err := c.GetOrLoad(dir, n); err != nil {
			t.Fatalf("GetOrLoad(%s): %v", n, err)
		}
	}
	if stats := c.GetStats(); stats.Entries > 2 {
		t.Errorf("Entries = %d, want <= 2 after eviction", stats.Entries)
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	writeTestTrack(t, dir, "gamma")

	c := New(DefaultConfig())
	if _, err := c.GetOrLoad(dir, "gamma"); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	c.Clear()
	if stats := c.GetStats(); stats.Entries != 0 {
		t.Errorf("Entries after Clear = %d, want 0", stats.Entries)
	}
}
