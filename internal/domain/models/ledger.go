package models

import "time"

// SentItemRecord is the durable record of the cumulative quantity applied
// for one (productId, locationId) pair. Latest write wins.
type SentItemRecord struct {
	ProductID    string    `json:"productId"`
	LocationID   string    `json:"locationId"`
	QuantitySent int       `json:"quantitySent"`
	AppliedAt    time.Time `json:"appliedAt"`
}

// ApplySession captures one apply run for the history view.
type ApplySession struct {
	SessionID  string        `json:"sessionId"`
	ProposalID string        `json:"proposalId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	LocationID string        `json:"locationId"`
	DryRun     bool          `json:"dryRun"`
	Lines      []LineOutcome `json:"lines"`
}
