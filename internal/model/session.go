package model

import "time"

// SessionStatus represents the aggregate state of an ingestion session.
type SessionStatus string

const (
	SessionStatusCreated         SessionStatus = "created"
	SessionStatusProcessing      SessionStatus = "processing"
	SessionStatusCompleted       SessionStatus = "completed"
	SessionStatusPartiallyFailed SessionStatus = "partially_failed"
	SessionStatusFailed          SessionStatus = "failed"
	SessionStatusQuotaExhausted  SessionStatus = "api_quota_exhausted"
)

// ItemStatus represents the state of one paper within a session.
type ItemStatus string

const (
	ItemStatusPending    ItemStatus = "pending"
	ItemStatusProcessing ItemStatus = "processing"
	ItemStatusCompleted  ItemStatus = "completed"
	ItemStatusFailed     ItemStatus = "failed"
)

// Session is the durable progress record for one ingestion batch.
// Invariant: TotalPapers == CompletedPapers + FailedPapers + PendingPapers.
type Session struct {
	ID              string        `json:"session_id"`
	Status          SessionStatus `json:"status"`
	TotalPapers     int           `json:"total_papers"`
	CompletedPapers int           `json:"completed_papers"`
	FailedPapers    int           `json:"failed_papers"`
	PendingPapers   int           `json:"pending_papers"`
	TotalInserted   int           `json:"total_inserted"`
	TotalSkipped    int           `json:"total_skipped"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ItemRecord is the per-paper status row within a session. Unique per
// (session id, arXiv id).
type ItemRecord struct {
	SessionID      string        `json:"session_id"`
	ArxivID        string        `json:"arxiv_id"`
	Status         ItemStatus    `json:"status"`
	Attempts       int           `json:"attempts"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	Warning        string        `json:"warning,omitempty"`
	ProcessingTime time.Duration `json:"processing_time_ns"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SessionDetails is the read-only projection of a session including every
// item record, keyed by arXiv id.
type SessionDetails struct {
	Session
	Items map[string]ItemRecord `json:"items"`
}

// ItemOutcome is what the pipeline reports back for one processed paper.
type ItemOutcome struct {
	ArxivID        string
	Status         ItemStatus
	ErrorMessage   string
	Warning        string
	ProcessingTime time.Duration
}

// ResumeOutcome names the distinguished results of a resume call.
type ResumeOutcome string

const (
	ResumeNoPendingPapers  ResumeOutcome = "no_pending_papers"
	ResumeAlreadyCompleted ResumeOutcome = "already_completed"
	ResumeResumed          ResumeOutcome = "resumed"
	ResumeQuotaExhausted   ResumeOutcome = "api_quota_exhausted"
)
