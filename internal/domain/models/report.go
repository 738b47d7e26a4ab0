package models

// OutcomeKind classifies the result of applying one proposal line.
type OutcomeKind string

const (
	OutcomeApplied        OutcomeKind = "APPLIED"
	OutcomeAlreadyApplied OutcomeKind = "ALREADY_APPLIED"
	OutcomeSkipped        OutcomeKind = "SKIPPED"
	OutcomeFailed         OutcomeKind = "FAILED"
)

// LineOutcome is the per-line result of an apply run. QuantitySent carries
// the incremental quantity for APPLIED lines; Reason carries the skip reason
// or error kind for SKIPPED and FAILED lines.
type LineOutcome struct {
	StapleName   string      `json:"stapleName"`
	ProductID    string      `json:"productId,omitempty"`
	Outcome      OutcomeKind `json:"outcome"`
	QuantitySent int         `json:"quantitySent,omitempty"`
	Reason       string      `json:"reason,omitempty"`
}

// ApplyReport is the ordered per-line outcome of one apply invocation.
// Dry runs produce the same report shape with no network mutation behind it.
type ApplyReport struct {
	ProposalID string        `json:"proposalId"`
	DryRun     bool          `json:"dryRun"`
	Lines      []LineOutcome `json:"lines"`
}

// Failed reports whether any line ended in a FAILED outcome.
func (r ApplyReport) Failed() bool {
	for _, line := range r.Lines {
		if line.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}
