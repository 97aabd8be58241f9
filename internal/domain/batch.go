package domain

import "time"

// UserBatchStatus enumerates the lifecycle states of a user batch.
type UserBatchStatus string

const (
	BatchDraft      UserBatchStatus = "draft"
	BatchQueued     UserBatchStatus = "queued"
	BatchProcessing UserBatchStatus = "processing"
	BatchPaused     UserBatchStatus = "paused"
	BatchCompleted  UserBatchStatus = "completed"
	BatchFailed     UserBatchStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s UserBatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchFailed
}

// SourceFileMetadata describes the uploaded address list an enrichment run
// joins against. Stored as UserBatch.S3Metadata.Original.
type SourceFileMetadata struct {
	S3Key          string         `json:"s3_key"`
	UploadTime     time.Time      `json:"upload_timestamp"`
	FileSize       int64          `json:"file_size"`
	MimeType       string         `json:"mime_type"`
	FileName       string         `json:"file_name"`
	ColumnMapping  map[string]int `json:"column_mapping"` // e.g. {"email": 0}
}

// ExportArtifact describes one generated export file, keyed by outcome kind
// (e.g. "valid_only", "good_only").
type ExportArtifact struct {
	S3Key       string    `json:"s3_key"`
	GeneratedAt time.Time `json:"generated_at"`
	Size        int64     `json:"size"` // row count written
	Status      string    `json:"status"`
}

// S3Metadata is the nested structure persisted on UserBatch for the source
// upload and its derived exports.
type S3Metadata struct {
	Original *SourceFileMetadata        `json:"original,omitempty"`
	Exports  map[string]ExportArtifact  `json:"exports,omitempty"`
}

// UserBatch is a customer-submitted collection of email addresses of one
// check type.
type UserBatch struct {
	ID          int64
	UserID      string
	CheckType   CheckType
	Title       string
	Status      UserBatchStatus
	TotalEmails int
	IsArchived  bool
	S3Metadata  *S3Metadata
	CreatedTS   time.Time
	CompletedTS *time.Time
}

// BatchEmailAssociation links a GlobalEmail to a UserBatch. Primary key is
// (BatchID, EmailGlobalID); an email appears at most once per user batch.
type BatchEmailAssociation struct {
	BatchID       int64
	EmailGlobalID int64
	EmailNominal  string // the address as submitted, pre-normalisation
	UsedCached    bool
	DidComplete   bool
	RetryCount    int // incremented each time its ProviderBatch fails terminally
}
