package simerr

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigf_WrapsCauseAndFormatsContext(t *testing.T) {
	cause := errors.New("file not found")
	err := Configf(cause, "loading %s", "scenario.json")

	if err.Kind != KindConfiguration {
		t.Errorf("Kind = %v, want KindConfiguration", err.Kind)
	}
	if err.Context != "loading scenario.json" {
		t.Errorf("Context = %q, want %q", err.Context, "loading scenario.json")
	}
	if !strings.Contains(err.Error(), "file not found") {
		t.Errorf("Error() = %q, want it to contain the cause", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to unwrap to the original cause")
	}
}

func TestConfigf_NilCause(t *testing.T) {
	err := Configf(nil, "missing field %s", "track_name")
	if err.Cause != nil {
		t.Errorf("Cause = %v, want nil", err.Cause)
	}
	if !strings.Contains(err.Error(), "missing field track_name") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestNumericf_HasNoCause(t *testing.T) {
	err := Numericf("lap time %v is non-finite", 1.0)
	if err.Kind != KindNumeric {
		t.Errorf("Kind = %v, want KindNumeric", err.Kind)
	}
	if err.Unwrap() != nil {
		t.Error("expected Numericf error to have no wrapped cause")
	}
}

func TestInvariant_Panics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected Invariant to panic")
		}
		err, ok := r.(*Error)
		if !ok {
			t.Fatalf("recovered value is %T, want *Error", r)
		}
		if err.Kind != KindInvariant {
			t.Errorf("Kind = %v, want KindInvariant", err.Kind)
		}
	}()
	Invariant("s_cur %v out of range [0, %v)", -1.0, 100.0)
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindConfiguration: "configuration",
		KindInvariant:     "invariant",
		KindNumeric:       "numeric",
		Kind(99):          "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
