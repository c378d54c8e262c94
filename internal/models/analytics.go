// Package models defines analytics structures for session tracking.
package models

import "time"

// Analytics completion statuses.
const (
	CompletionCompleted  = "completed"
	CompletionAbandoned  = "abandoned"
	CompletionInProgress = "in_progress"
)

// Analytics event types, matching the events the flow engine emits.
const (
	EventQuestionAsked    = "question_asked"
	EventQuestionAnswered = "question_answered"
	EventQualification    = "qualification"
	EventCompletion       = "completion"
	EventAbandonment      = "abandonment"
)

// AnalyticsEvent is a single tracked event within a qualification session.
type AnalyticsEvent struct {
	SessionID string    `json:"session_id"`
	EventType string    `json:"event_type"`
	Payload   string    `json:"event_data,omitempty"` // JSON blob
	Timestamp time.Time `json:"timestamp"`
}

// AnalyticsMetrics aggregates session outcomes over a trailing window.
type AnalyticsMetrics struct {
	TotalSessions      int     `json:"total_sessions"`
	CompletedSessions  int     `json:"completed_sessions"`
	CompletionRate     float64 `json:"completion_rate"`
	QualifiedCount     int     `json:"qualified_count"`
	QualificationRate  float64 `json:"qualification_rate"`
	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
}
