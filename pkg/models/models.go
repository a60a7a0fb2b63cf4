package models

import (
	"time"

	"github.com/celldiag/eiscore"
)

// WorkItem is one spectrum analysis task for the worker pool: the raw CSV
// payload plus the reference resistance it should be scored against.
type WorkItem struct {
	ID        int
	RequestID string
	Path      string
	CSV       []byte
	RbMax     float64
}

// WorkResult is the outcome of one analysis task. Report and Err are
// mutually exclusive.
type WorkResult struct {
	ID             int
	RequestID      string
	Path           string
	Report         *eiscore.AnalysisReport
	Err            error
	ProcessingTime time.Duration
}

// WebhookItem is a finished analysis queued for delivery.
type WebhookItem struct {
	RequestID string
	Path      string
	Report    *eiscore.AnalysisReport
}

// WebhookPayload is the JSON body posted for a finished analysis.
type WebhookPayload struct {
	ID     string                  `json:"id"`
	Time   string                  `json:"time"`
	Source string                  `json:"source"`
	Report *eiscore.AnalysisReport `json:"report"`
}
