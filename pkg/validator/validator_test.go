package validator

import "testing"

func TestCheckCollectsFailures(t *testing.T) {
	v := New()

	v.Check(true, "ok_field", "must be provided")
	v.Check(false, "bad_field", "must be provided")

	if v.Valid() {
		t.Fatal("expected validator to be invalid")
	}
	if _, ok := v.Errors["ok_field"]; ok {
		t.Error("passing check must not record an error")
	}
	if msg := v.Errors["bad_field"]; msg != "must be provided" {
		t.Errorf("got %q, want %q", msg, "must be provided")
	}
}

func TestAddErrorKeepsFirstMessage(t *testing.T) {
	v := New()

	v.AddError("field", "first")
	v.AddError("field", "second")

	if msg := v.Errors["field"]; msg != "first" {
		t.Errorf("got %q, want %q", msg, "first")
	}
}

func TestPermittedValue(t *testing.T) {
	if !PermittedValue("CAR", "BIKE", "CAR") {
		t.Error("CAR should be permitted")
	}
	if PermittedValue("TRUCK", "BIKE", "CAR") {
		t.Error("TRUCK should not be permitted")
	}
}

func TestMatches(t *testing.T) {
	if !Matches("user@example.com", EmailRX) {
		t.Error("valid email rejected")
	}
	if Matches("not-an-email", EmailRX) {
		t.Error("invalid email accepted")
	}
}
