package store

import "time"

// Status is the lifecycle state of an item in the pipeline.
type Status string

const (
	StatusPending        Status = "pending"
	StatusExtracting     Status = "extracting"
	StatusExtracted      Status = "extracted"
	StatusSummarizing    Status = "summarizing"
	StatusCompleted      Status = "completed"
	StatusSent           Status = "sent"
	StatusRetryExtract   Status = "retry_extract"
	StatusRetrySummarize Status = "retry_summarize"
	StatusFailed         Status = "failed"
)

// AllStatuses lists every status, in pipeline order.
var AllStatuses = []Status{
	StatusPending,
	StatusExtracting,
	StatusExtracted,
	StatusSummarizing,
	StatusCompleted,
	StatusSent,
	StatusRetryExtract,
	StatusRetrySummarize,
	StatusFailed,
}

// Item is one ingested story tracked through the pipeline.
// ID is the stable identifier assigned by the source feed.
type Item struct {
	ID          int64
	Title       string
	URL         *string
	Author      string
	CreatedAt   time.Time // source timestamp
	Score       int
	Status      Status
	ContentRef  *string
	SummaryRef  *string
	RetryCount  int
	LastError   *string
	ProcessedAt time.Time // first insertion
	UpdatedAt   time.Time
}

// WorkerRun records when a named task last completed a pass.
type WorkerRun struct {
	TaskName    string
	LastRunTime time.Time
	UpdatedAt   time.Time
}
