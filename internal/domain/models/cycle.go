package models

import "time"

// Candidate is a scored signal waiting for global selection. Seq records the
// order in which it arrived at the barrier.
type Candidate struct {
	Signal Signal
	Seq    int
}

// CycleResult is the outcome of one detection cycle.
// Note: no transport (json/http) concerns here.
type CycleResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Symbols    int
	Candidates int
	Emitted    []Signal
	// Failures maps symbol to the error that removed it from this cycle.
	Failures map[string]string
}
