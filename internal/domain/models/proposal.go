package models

import "time"

// ResolutionStatus classifies how a staple was matched against the catalog.
type ResolutionStatus string

const (
	ResolutionResolved   ResolutionStatus = "RESOLVED"
	ResolutionAmbiguous  ResolutionStatus = "AMBIGUOUS"
	ResolutionUnresolved ResolutionStatus = "UNRESOLVED"
)

// ProposalAlternative records a runner-up candidate kept for human review.
type ProposalAlternative struct {
	ProductID   string `json:"productId"`
	Description string `json:"description,omitempty"`
}

// ProposalLine is the planned cart change for a single staple.
type ProposalLine struct {
	StapleName        string                `json:"stapleName"`
	ResolvedProductID string                `json:"resolvedProductId,omitempty"`
	Quantity          int                   `json:"quantity"`
	Modality          Modality              `json:"modality"`
	ResolutionStatus  ResolutionStatus      `json:"resolutionStatus"`
	SourceList        string                `json:"sourceList,omitempty"`
	Alternatives      []ProposalAlternative `json:"alternatives,omitempty"`
	Note              string                `json:"note,omitempty"`
}

// Proposal is a reviewable, immutable plan of cart changes derived from
// staple lists. Once written to disk it is never regenerated in place; a new
// resolution run produces a new proposal with a new id.
type Proposal struct {
	ID         string         `json:"id"`
	CreatedAt  time.Time      `json:"createdAt"`
	LocationID string         `json:"locationId"`
	Lines      []ProposalLine `json:"lines"`
}
