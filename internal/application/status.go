package application

import "time"

// OccurrenceStatus is the lifecycle position of an occurrence relative to
// the current time. It is derived on every read, never stored: there is no
// transition code to drift, and concurrent readers can never observe a
// half-updated state machine.
type OccurrenceStatus string

const (
	StatusUpcoming  OccurrenceStatus = "upcoming"
	StatusOngoing   OccurrenceStatus = "ongoing"
	StatusCompleted OccurrenceStatus = "completed"
)

// StatusAt computes the status of the interval [start, end) at the given
// instant. As now advances the result moves upcoming → ongoing → completed
// and never back.
func StatusAt(start, end, now time.Time) OccurrenceStatus {
	switch {
	case now.Before(start):
		return StatusUpcoming
	case now.Before(end):
		return StatusOngoing
	default:
		return StatusCompleted
	}
}

// ParseStatus converts the wire representation into an OccurrenceStatus.
func ParseStatus(value string) (OccurrenceStatus, bool) {
	switch OccurrenceStatus(value) {
	case StatusUpcoming, StatusOngoing, StatusCompleted:
		return OccurrenceStatus(value), true
	default:
		return "", false
	}
}
