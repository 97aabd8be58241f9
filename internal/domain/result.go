package domain

import "time"

// GlobalEmail is the append-only, cache-keyed record of every distinct
// stripped address the system has ever seen.
type GlobalEmail struct {
	GlobalID      int64
	EmailStripped string
}

// DeliverableStatus enumerates the raw outcome of a deliverable check.
type DeliverableStatus string

const (
	StatusDeliverable   DeliverableStatus = "deliverable"
	StatusUndeliverable DeliverableStatus = "undeliverable"
	StatusRisky         DeliverableStatus = "risky"
	StatusUnknown       DeliverableStatus = "unknown"
)

// GlobalResult holds the cached verification outcome for a GlobalEmail, for
// one check type. Only the fields relevant to the check type are populated;
// the other is left zero-valued.
type GlobalResult struct {
	EmailGlobalID int64
	CheckType     CheckType

	// Deliverable fields.
	Status     DeliverableStatus
	Reason     string
	IsCatchall bool
	Score      int
	Provider   string

	// Catchall fields.
	Toxicity int // 0..5

	UpdatedTS time.Time
}

// OutcomeLabel is the user-visible, translated outcome written to export
// files (spec.md §4.6 "Result translation for exports").
type OutcomeLabel string

const (
	LabelValid     OutcomeLabel = "Valid"
	LabelCatchAll  OutcomeLabel = "Catch-All"
	LabelInvalid   OutcomeLabel = "Invalid"
	LabelGood      OutcomeLabel = "Good"
	LabelRisky     OutcomeLabel = "Risky"
	LabelBad       OutcomeLabel = "Bad"
)

// Translate maps a raw GlobalResult to its user-visible export label for
// the result's check type.
func (r GlobalResult) Translate() OutcomeLabel {
	switch r.CheckType {
	case Catchall:
		switch r.Status {
		case StatusDeliverable:
			return LabelGood
		case StatusRisky:
			return LabelRisky
		default:
			return LabelBad
		}
	default: // Deliverable
		if r.Status == StatusDeliverable && !r.IsCatchall {
			return LabelValid
		}
		if r.IsCatchall || (r.Status == StatusRisky && r.Reason == "low_deliverability") {
			return LabelCatchAll
		}
		return LabelInvalid
	}
}
