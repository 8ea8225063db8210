package driver

import "testing"

func TestNewAppliesDefaults(t *testing.T) {
	d, err := New(Pars{Initials: "BOT", Name: "Valtteri Bottas", TDriver: 0.2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Consistency != defaultConsistency {
		t.Errorf("Consistency = %v, want default %v", d.Consistency, defaultConsistency)
	}
	if d.Aggression != defaultAggression {
		t.Errorf("Aggression = %v, want default %v", d.Aggression, defaultAggression)
	}
}

func TestNewPreservesExplicitValues(t *testing.T) {
	d, err := New(Pars{Initials: "VER", TDriver: 0.0, Consistency: 0.8, Aggression: 0.9})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.Consistency != 0.8 || d.Aggression != 0.9 {
		t.Errorf("expected explicit values preserved, got %v/%v", d.Consistency, d.Aggression)
	}
}

func TestNewRejectsEmptyInitials(t *testing.T) {
	if _, err := New(Pars{}); err == nil {
		t.Fatal("expected error for empty initials")
	}
}

func TestRegistryLookup(t *testing.T) {
	bot, _ := New(Pars{Initials: "BOT", TDriver: 0.2})
	ver, _ := New(Pars{Initials: "VER", TDriver: -0.1})
	reg, err := NewRegistry([]*Driver{bot, ver})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	got, err := reg.Get("VER")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != ver {
		t.Error("Get returned wrong driver")
	}
	if _, err := reg.Get("XXX"); err == nil {
		t.Fatal("expected error for unknown initials")
	}
}

func TestRegistryRejectsDuplicateInitials(t *testing.T) {
	a, _ := New(Pars{Initials: "BOT", TDriver: 0.2})
	b, _ := New(Pars{Initials: "BOT", TDriver: 0.3})
	if _, err := NewRegistry([]*Driver{a, b}); err == nil {
		t.Fatal("expected error for duplicate initials")
	}
}
