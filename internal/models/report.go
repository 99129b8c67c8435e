package models

import "time"

// ReportStatus tracks a research run through its lifecycle.
type ReportStatus string

const (
	ReportRunning  ReportStatus = "running"
	ReportComplete ReportStatus = "complete"
	ReportFailed   ReportStatus = "failed"
)

// Report is a single research report produced by the crew.
type Report struct {
	ID        int64        `json:"id"`
	Query     string       `json:"query"`
	Provider  string       `json:"provider"`
	Model     string       `json:"model"`
	Status    ReportStatus `json:"status"`
	Markdown  string       `json:"markdown,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
