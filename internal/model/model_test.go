package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeUnwrapsWrappedErrors(t *testing.T) {
	cases := map[string]error{
		CodeInvalidTransition: fmt.Errorf("respond a1: %w", ErrInvalidTransition),
		CodeNotParticipant:    ErrNotParticipant,
		CodeAlreadyInCall:     fmt.Errorf("start: %w", ErrAlreadyInCall),
		CodePersistence:       fmt.Errorf("%w: disk full", ErrPersistence),
		CodeInternal:          errors.New("boom"),
	}
	for want, err := range cases {
		t.Run(want, func(t *testing.T) {
			if got := Code(err); got != want {
				t.Fatalf("Code(%v) = %q, want %q", err, got, want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(fmt.Errorf("save: %w", ErrPersistence)) {
		t.Fatal("persistence error should be retryable")
	}
	if Retryable(ErrInvalidTransition) {
		t.Fatal("invalid transition should not be retryable")
	}
}

func TestAppointmentCounterpart(t *testing.T) {
	a := &Appointment{PatientID: "p1", NeurologistID: "n1"}
	if got := a.Counterpart("p1"); got != "n1" {
		t.Fatalf("counterpart of patient = %q", got)
	}
	if got := a.Counterpart("n1"); got != "p1" {
		t.Fatalf("counterpart of neurologist = %q", got)
	}
	if got := a.Counterpart("x"); got != "" {
		t.Fatalf("counterpart of stranger = %q", got)
	}
	if a.IsParticipant("") {
		t.Fatal("empty id must not be a participant")
	}
}
