package models

import "time"

const (
	EventSignalEmitted = "signal.emitted"
	EventSignalClosed  = "signal.closed"
)

// SignalEvent is the payload written to the signal topics.
type SignalEvent struct {
	Event      string    `json:"event"`
	Signal     Signal    `json:"signal"`
	OccurredAt time.Time `json:"occurred_at"`
}
