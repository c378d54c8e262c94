// Package analytics provides the fire-and-forget tracking sink for Qualibot.
//
// Every method swallows storage failures after logging them: analytics must
// never block or fail a conversation turn.
package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dreampastry/qualibot/internal/models"
	"github.com/dreampastry/qualibot/internal/store"
)

// Sink records qualification tracking data into a Store.
type Sink struct {
	store store.Store
}

// NewSink creates an analytics sink backed by a store.
func NewSink(st store.Store) *Sink {
	return &Sink{store: st}
}

// StartSession registers a new tracked session with the client profile.
func (s *Sink) StartSession(ctx context.Context, sessionID string, profile models.ClientProfile) {
	info, err := json.Marshal(profile)
	if err != nil {
		slog.Warn("Sink.StartSession: failed to marshal profile", "error", err, "sessionID", sessionID)
		info = nil
	}
	if err := s.store.StartAnalyticsSession(ctx, sessionID, string(info)); err != nil {
		slog.Warn("Sink.StartSession: store write failed", "error", err, "sessionID", sessionID)
	}
}

// LogEvent records one event. A nil payload is allowed.
func (s *Sink) LogEvent(ctx context.Context, sessionID, eventType string, payload map[string]interface{}) {
	var data string
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			slog.Warn("Sink.LogEvent: failed to marshal payload", "error", err, "sessionID", sessionID, "eventType", eventType)
		} else {
			data = string(raw)
		}
	}
	if err := s.store.LogAnalyticsEvent(ctx, sessionID, eventType, data); err != nil {
		slog.Warn("Sink.LogEvent: store write failed", "error", err, "sessionID", sessionID, "eventType", eventType)
	}
}

// EndSession closes a tracked session with its outcome.
func (s *Sink) EndSession(ctx context.Context, sessionID, completionStatus string, qualificationStatus models.QualificationStatus, duration time.Duration) {
	if err := s.store.EndAnalyticsSession(ctx, sessionID, completionStatus, string(qualificationStatus), int(duration.Seconds())); err != nil {
		slog.Warn("Sink.EndSession: store write failed", "error", err, "sessionID", sessionID)
	}
}
