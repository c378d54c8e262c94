// Package flow implements the qualification conversation flow for Qualibot.
//
// This file declares the collaborator interfaces the engine depends on. The
// concrete implementations live in store, genai, notify and analytics.
package flow

import (
	"context"
	"time"

	"github.com/dreampastry/qualibot/internal/models"
)

// InventoryStore is the seat-inventory surface the flow engine consumes.
type InventoryStore interface {
	CheckAvailability(ctx context.Context, namePattern string) (models.Availability, error)
	Reserve(ctx context.Context, formationID int64, profile models.ClientProfile, status models.QualificationStatus, score int) (bool, error)
	ListAlternatives(ctx context.Context, excludeName string, limit int) ([]models.Formation, error)
	ListSlots(ctx context.Context, namePattern string) ([]models.Slot, error)
}

// ScoringOracle turns (profile, answers) into a structured evaluation.
type ScoringOracle interface {
	Evaluate(ctx context.Context, profile models.ClientProfile, questions []models.Question, answers map[models.AnswerKey]string) (models.Evaluation, error)
}

// NotificationDispatcher delivers the qualification outcome to staff and
// client. Implementations report success as a bool and never propagate
// delivery failures into the flow.
type NotificationDispatcher interface {
	NotifyStaff(ctx context.Context, profile models.ClientProfile, details string) bool
	NotifyClient(ctx context.Context, profile models.ClientProfile, status models.QualificationStatus, details string) bool
}

// AnalyticsSink records tracking events. All methods are fire-and-forget:
// failures are swallowed and logged by the implementation, never surfaced.
type AnalyticsSink interface {
	StartSession(ctx context.Context, sessionID string, profile models.ClientProfile)
	LogEvent(ctx context.Context, sessionID, eventType string, payload map[string]interface{})
	EndSession(ctx context.Context, sessionID, completionStatus string, qualificationStatus models.QualificationStatus, duration time.Duration)
}
