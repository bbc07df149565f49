package model

import "time"

// AnalysisJob asks a worker to analyze one document on behalf of a session.
type AnalysisJob struct {
	SessionID   string     `json:"session_id"`
	Document    Attachment `json:"document"`
	RequestedAt time.Time  `json:"requested_at"`
}
