package model

import "time"

// RunSummary describes one agent run for a user.
type RunSummary struct {
	RunID          string
	UserID         string
	StartedAt      time.Time
	FinishedAt     time.Time
	Eligible       bool
	SkipReason     string
	QuotaRemaining int
	Discovered     int
	Duplicates     int
	Processed      int
	Applied        int
	Failed         int
	Interrupted    bool
}

func (s *RunSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
