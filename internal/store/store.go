// Package store provides inventory and analytics storage backends for Qualibot.
//
// It includes an in-memory store for tests and development, and persistent
// PostgreSQL and SQLite stores. The one correctness-critical contract is
// Reserve: the seat check and the increment must be atomic per formation row,
// so two concurrent callers can never both take the last seat.
package store

import (
	"context"
	"strings"

	"github.com/dreampastry/qualibot/internal/models"
)

// DefaultAlternativesLimit caps how many alternative formations are suggested
// when the requested course is full.
const DefaultAlternativesLimit = 5

// Store defines the inventory and analytics operations the flow engine and
// the API surface depend on.
type Store interface {
	// CheckAvailability looks up an active formation by case-insensitive
	// substring match and reports its remaining capacity. At most one row is
	// considered; Found is false when nothing matches.
	CheckAvailability(ctx context.Context, namePattern string) (models.Availability, error)

	// Reserve atomically re-checks the seat counter and, iff a seat remains,
	// records one registration row and increments the counter. It returns
	// false both on seat exhaustion and on storage failure; callers treat
	// both as "could not reserve".
	Reserve(ctx context.Context, formationID int64, profile models.ClientProfile, status models.QualificationStatus, score int) (bool, error)

	// ListAlternatives returns up to limit active formations with free seats,
	// excluding the named one, ordered by name.
	ListAlternatives(ctx context.Context, excludeName string, limit int) ([]models.Formation, error)

	// ListSlots returns the scheduled slots of formations matching the name
	// pattern, ordered by start time.
	ListSlots(ctx context.Context, namePattern string) ([]models.Slot, error)

	// Analytics tracking. Failures here must never block the flow; the
	// analytics sink swallows and logs them.
	StartAnalyticsSession(ctx context.Context, sessionID, clientInfoJSON string) error
	EndAnalyticsSession(ctx context.Context, sessionID, completionStatus, qualificationStatus string, durationSeconds int) error
	LogAnalyticsEvent(ctx context.Context, sessionID, eventType, payloadJSON string) error
	GetAnalyticsMetrics(ctx context.Context, days int) (models.AnalyticsMetrics, error)

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store constructors.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string (Postgres DSN or SQLite file path).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL schemes or key=value connection strings; anything else is treated
// as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
