package domain

import "time"

// EnrichmentStatus enumerates the lifecycle of one enrichment run.
type EnrichmentStatus string

const (
	EnrichmentProcessing EnrichmentStatus = "processing"
	EnrichmentCompleted  EnrichmentStatus = "completed"
	EnrichmentFailed     EnrichmentStatus = "failed"
)

// EnrichmentProgress tracks one (batch, check type) export run.
type EnrichmentProgress struct {
	BatchID       int64
	CheckType     CheckType
	Status        EnrichmentStatus
	RowsProcessed int64
	TotalRows     *int64
	StartedAt     time.Time
	CompletedAt   *time.Time
	ErrorMessage  string
}

// ExportKind enumerates the partitioned export files an enrichment run can
// produce, per check type (spec.md §4.8).
type ExportKind string

const (
	ExportAllEmails    ExportKind = "all_emails"
	ExportValidOnly    ExportKind = "valid_only"
	ExportInvalidOnly  ExportKind = "invalid_only"
	ExportCatchallOnly ExportKind = "catchall_only"
	ExportGoodOnly     ExportKind = "good_only"
	ExportBadOnly      ExportKind = "bad_only"
	ExportRiskyOnly    ExportKind = "risky_only"
)

// ExportKindsFor returns the export partitions that apply to a check type's
// OutcomeLabel, always including ExportAllEmails.
func ExportKindsFor(label OutcomeLabel) []ExportKind {
	switch label {
	case LabelValid:
		return []ExportKind{ExportAllEmails, ExportValidOnly}
	case LabelInvalid:
		return []ExportKind{ExportAllEmails, ExportInvalidOnly}
	case LabelCatchAll:
		return []ExportKind{ExportAllEmails, ExportCatchallOnly}
	case LabelGood:
		return []ExportKind{ExportAllEmails, ExportGoodOnly}
	case LabelBad:
		return []ExportKind{ExportAllEmails, ExportBadOnly}
	case LabelRisky:
		return []ExportKind{ExportAllEmails, ExportRiskyOnly}
	default:
		return []ExportKind{ExportAllEmails}
	}
}
