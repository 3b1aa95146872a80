package model

import "time"

// TickReport summarizes one pass of the avatar rotation
type TickReport struct {
	TickID        string
	StartedAt     time.Time
	FinishedAt    time.Time
	Candidates    int // valid users read from the store
	Eligible      int // users whose window was open
	Succeeded     int
	Failed        int // users flipped to the error state
	PersistFailed int // upserts that failed after processing
	Abandoned     int // users cut by tick cancellation, not persisted
}

// Duration returns how long the tick took
func (r *TickReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
