package notify

import (
	"reflect"
	"testing"
)

func TestEventRoundTrip(t *testing.T) {
	event := Event{
		Kind:          KindScheduled,
		AttemptID:     "attempt-123",
		ApplicationID: "app-456",
		EmployerID:    "emp-1",
		CandidateID:   "cand-1",
		SlotStartUTC:  "2026-02-02T09:00:00Z",
		SlotEndUTC:    "2026-02-02T09:30:00Z",
		MeetingLink:   "https://meet.example/abc",
		OccurredAt:    "2026-01-30T22:00:00Z",
	}

	payload, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}

	got, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}

	if !reflect.DeepEqual(got, event) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, event)
	}
}
