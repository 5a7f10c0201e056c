package dto

import (
	"acmesync/internal/replication"
)

// ReplicaEventResponse acknowledges one inbound replication event.
// Duplicates and stale versions acknowledge successfully so the sending
// peer dequeues the event instead of retrying forever.
type ReplicaEventResponse struct {
	EventID string `json:"eventId"`
	Outcome string `json:"outcome"`
}

// FromReceiveOutcome creates the acknowledgement DTO.
func FromReceiveOutcome(eventID string, outcome replication.ReceiveOutcome) ReplicaEventResponse {
	return ReplicaEventResponse{
		EventID: eventID,
		Outcome: string(outcome),
	}
}
