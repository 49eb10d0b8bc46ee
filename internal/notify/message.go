package notify

import "encoding/json"

// Event is the payload delivered for one scheduling state change.
type Event struct {
	Kind          Kind   `json:"kind"`
	AttemptID     string `json:"attemptId"`
	ApplicationID string `json:"applicationId"`
	EmployerID    string `json:"employerId"`
	CandidateID   string `json:"candidateId"`
	SlotStartUTC  string `json:"slotStartUtc,omitempty"`
	SlotEndUTC    string `json:"slotEndUtc,omitempty"`
	MeetingLink   string `json:"meetingLink,omitempty"`
	CancelSource  string `json:"cancelSource,omitempty"`
	OccurredAt    string `json:"occurredAt"`
}

// EncodeEvent returns the JSON representation of an event.
func EncodeEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeEvent parses a JSON payload into an Event.
func DecodeEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}
