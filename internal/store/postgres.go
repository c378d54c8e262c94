// Package store provides inventory and analytics storage backends for Qualibot.
//
// This file implements the PostgreSQL-backed store. Seat reservation takes a
// row-level lock (SELECT ... FOR UPDATE) so the check-then-increment is
// serializable per formation.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/dreampastry/qualibot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// CheckAvailability reports the remaining capacity of the first active
// formation whose name contains the pattern.
func (s *PostgresStore) CheckAvailability(ctx context.Context, namePattern string) (models.Availability, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.nom, f.places_max, f.places_reservees,
		       (f.places_max - f.places_reservees) AS places_disponibles,
		       COUNT(fs.id) AS nb_sessions_ouvertes,
		       f.prix, f.duree_jours
		FROM formations f
		LEFT JOIN formation_sessions fs
		  ON f.id = fs.formation_id AND fs.statut = 'ouverte'
		WHERE f.nom ILIKE '%' || $1 || '%' AND f.statut = 'active'
		GROUP BY f.id
		LIMIT 1`, namePattern)

	var a models.Availability
	err := row.Scan(&a.FormationID, &a.Name, &a.MaxSeats, &a.ReservedSeats,
		&a.FreeSeats, &a.OpenSlotCount, &a.Price, &a.DurationDays)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore CheckAvailability no match", "pattern", namePattern)
		return models.Availability{}, nil
	}
	if err != nil {
		slog.Error("PostgresStore CheckAvailability scan failed", "error", err, "pattern", namePattern)
		return models.Availability{}, fmt.Errorf("failed to check availability for %q: %w", namePattern, err)
	}
	a.Found = true
	a.Available = a.FreeSeats > 0
	slog.Debug("PostgresStore CheckAvailability succeeded", "formation", a.Name, "free_seats", a.FreeSeats)
	return a, nil
}

// Reserve records one registration and increments the seat counter iff a seat
// remains at read time. The formation row is locked for the duration of the
// transaction.
func (s *PostgresStore) Reserve(ctx context.Context, formationID int64, profile models.ClientProfile, status models.QualificationStatus, score int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("PostgresStore Reserve begin failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer tx.Rollback()

	var maxSeats, reserved int
	err = tx.QueryRowContext(ctx, `
		SELECT places_max, places_reservees FROM formations
		WHERE id = $1 AND statut = 'active'
		FOR UPDATE`, formationID).Scan(&maxSeats, &reserved)
	if err == sql.ErrNoRows {
		slog.Warn("PostgresStore Reserve formation not found or inactive", "formationID", formationID)
		return false, nil
	}
	if err != nil {
		slog.Error("PostgresStore Reserve seat check failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to check seats for formation %d: %w", formationID, err)
	}
	if reserved >= maxSeats {
		slog.Info("PostgresStore Reserve seats exhausted", "formationID", formationID, "max", maxSeats)
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inscriptions
		  (client_nom, client_prenom, client_email, client_telephone, formation_id, statut_qualification, score_qualification)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profile.LastName, profile.FirstName, nilIfEmpty(profile.Email), nilIfEmpty(profile.Phone),
		formationID, string(status), score)
	if err != nil {
		slog.Error("PostgresStore Reserve insert failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to insert registration: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE formations SET places_reservees = places_reservees + 1 WHERE id = $1`, formationID)
	if err != nil {
		slog.Error("PostgresStore Reserve increment failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to increment reserved seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("PostgresStore Reserve commit failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to commit reservation: %w", err)
	}
	slog.Info("PostgresStore Reserve succeeded", "formationID", formationID, "client", profile.FullName())
	return true, nil
}

// ListAlternatives returns active formations with free seats, excluding the
// named one, ordered by name.
func (s *PostgresStore) ListAlternatives(ctx context.Context, excludeName string, limit int) ([]models.Formation, error) {
	if limit <= 0 {
		limit = DefaultAlternativesLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nom, places_max, places_reservees, prix, duree_jours, statut
		FROM formations
		WHERE statut = 'active' AND nom <> $1
		  AND (places_max - places_reservees) > 0
		ORDER BY nom
		LIMIT $2`, excludeName, limit)
	if err != nil {
		slog.Error("PostgresStore ListAlternatives query failed", "error", err)
		return nil, fmt.Errorf("failed to query alternatives: %w", err)
	}
	defer rows.Close()
	return collectFormations(rows)
}

// ListSlots returns the scheduled slots of formations matching the name
// pattern, ordered by start time.
func (s *PostgresStore) ListSlots(ctx context.Context, namePattern string) ([]models.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fs.id, fs.formation_id, fs.start_datetime, fs.end_datetime,
		       fs.label, fs.location, fs.capacity, fs.statut
		FROM formation_sessions fs
		JOIN formations f ON f.id = fs.formation_id
		WHERE f.nom ILIKE '%' || $1 || '%'
		ORDER BY fs.start_datetime`, namePattern)
	if err != nil {
		slog.Error("PostgresStore ListSlots query failed", "error", err, "pattern", namePattern)
		return nil, fmt.Errorf("failed to query slots for %q: %w", namePattern, err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

// StartAnalyticsSession records the start of a tracked qualification session.
func (s *PostgresStore) StartAnalyticsSession(ctx context.Context, sessionID, clientInfoJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_sessions (session_id, client_info, start_time)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_id) DO UPDATE SET start_time = NOW()`,
		sessionID, nilIfEmpty(clientInfoJSON))
	if err != nil {
		slog.Error("PostgresStore StartAnalyticsSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to start analytics session %s: %w", sessionID, err)
	}
	return nil
}

// EndAnalyticsSession closes a tracked session with its final statuses.
func (s *PostgresStore) EndAnalyticsSession(ctx context.Context, sessionID, completionStatus, qualificationStatus string, durationSeconds int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE analytics_sessions
		SET end_time = NOW(), completion_status = $1, qualification_status = $2, duration_seconds = $3
		WHERE session_id = $4`,
		completionStatus, qualificationStatus, durationSeconds, sessionID)
	if err != nil {
		slog.Error("PostgresStore EndAnalyticsSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to end analytics session %s: %w", sessionID, err)
	}
	return nil
}

// LogAnalyticsEvent appends one event to a tracked session.
func (s *PostgresStore) LogAnalyticsEvent(ctx context.Context, sessionID, eventType, payloadJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_events (session_id, event_type, event_data)
		VALUES ($1, $2, $3)`,
		sessionID, eventType, nilIfEmpty(payloadJSON))
	if err != nil {
		slog.Error("PostgresStore LogAnalyticsEvent failed", "error", err, "sessionID", sessionID, "eventType", eventType)
		return fmt.Errorf("failed to log analytics event for %s: %w", sessionID, err)
	}
	return nil
}

// GetAnalyticsMetrics aggregates session outcomes over the trailing window.
func (s *PostgresStore) GetAnalyticsMetrics(ctx context.Context, days int) (models.AnalyticsMetrics, error) {
	var m models.AnalyticsMetrics
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN completion_status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN qualification_status = $1 THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(duration_seconds) FILTER (WHERE completion_status = 'completed'), 0)
		FROM analytics_sessions
		WHERE start_time >= NOW() - make_interval(days => $2)`,
		string(models.StatusQualified), days).
		Scan(&m.TotalSessions, &m.CompletedSessions, &m.QualifiedCount, &m.AvgDurationMinutes)
	if err != nil {
		slog.Error("PostgresStore GetAnalyticsMetrics failed", "error", err)
		return models.AnalyticsMetrics{}, fmt.Errorf("failed to query analytics metrics: %w", err)
	}
	m.AvgDurationMinutes = m.AvgDurationMinutes / 60
	if m.TotalSessions > 0 {
		m.CompletionRate = float64(m.CompletedSessions) * 100 / float64(m.TotalSessions)
	}
	if m.CompletedSessions > 0 {
		m.QualificationRate = float64(m.QualifiedCount) * 100 / float64(m.CompletedSessions)
	}
	return m, nil
}
