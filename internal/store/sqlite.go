// Package store provides inventory and analytics storage backends for Qualibot.
//
// This file implements the SQLite-backed store for single-node deployments.
// Transactions are opened immediately (_txlock=immediate) so the seat
// check-then-increment in Reserve holds the write lock from the start.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	"github.com/dreampastry/qualibot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
	// sqliteDSNParams serializes writers and waits out short lock contention.
	sqliteDSNParams = "_txlock=immediate&_busy_timeout=5000"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on top of SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if !strings.Contains(dsn, "?") {
		dsn += "?" + sqliteDSNParams
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CheckAvailability reports the remaining capacity of the first active
// formation whose name contains the pattern.
func (s *SQLiteStore) CheckAvailability(ctx context.Context, namePattern string) (models.Availability, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT f.id, f.nom, f.places_max, f.places_reservees,
		       (f.places_max - f.places_reservees) AS places_disponibles,
		       COUNT(fs.id) AS nb_sessions_ouvertes,
		       f.prix, f.duree_jours
		FROM formations f
		LEFT JOIN formation_sessions fs
		  ON f.id = fs.formation_id AND fs.statut = 'ouverte'
		WHERE LOWER(f.nom) LIKE '%' || LOWER(?) || '%' AND f.statut = 'active'
		GROUP BY f.id
		LIMIT 1`, namePattern)

	var a models.Availability
	err := row.Scan(&a.FormationID, &a.Name, &a.MaxSeats, &a.ReservedSeats,
		&a.FreeSeats, &a.OpenSlotCount, &a.Price, &a.DurationDays)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore CheckAvailability no match", "pattern", namePattern)
		return models.Availability{}, nil
	}
	if err != nil {
		slog.Error("SQLiteStore CheckAvailability scan failed", "error", err, "pattern", namePattern)
		return models.Availability{}, fmt.Errorf("failed to check availability for %q: %w", namePattern, err)
	}
	a.Found = true
	a.Available = a.FreeSeats > 0
	slog.Debug("SQLiteStore CheckAvailability succeeded", "formation", a.Name, "free_seats", a.FreeSeats)
	return a, nil
}

// Reserve records one registration and increments the seat counter iff a seat
// remains at read time. The immediate transaction serializes concurrent
// reservations.
func (s *SQLiteStore) Reserve(ctx context.Context, formationID int64, profile models.ClientProfile, status models.QualificationStatus, score int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("SQLiteStore Reserve begin failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to begin reservation: %w", err)
	}
	defer tx.Rollback()

	var maxSeats, reserved int
	err = tx.QueryRowContext(ctx, `
		SELECT places_max, places_reservees FROM formations
		WHERE id = ? AND statut = 'active'`, formationID).Scan(&maxSeats, &reserved)
	if err == sql.ErrNoRows {
		slog.Warn("SQLiteStore Reserve formation not found or inactive", "formationID", formationID)
		return false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore Reserve seat check failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to check seats for formation %d: %w", formationID, err)
	}
	if reserved >= maxSeats {
		slog.Info("SQLiteStore Reserve seats exhausted", "formationID", formationID, "max", maxSeats)
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inscriptions
		  (client_nom, client_prenom, client_email, client_telephone, formation_id, statut_qualification, score_qualification)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.LastName, profile.FirstName, nilIfEmpty(profile.Email), nilIfEmpty(profile.Phone),
		formationID, string(status), score)
	if err != nil {
		slog.Error("SQLiteStore Reserve insert failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to insert registration: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE formations SET places_reservees = places_reservees + 1 WHERE id = ?`, formationID)
	if err != nil {
		slog.Error("SQLiteStore Reserve increment failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to increment reserved seats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore Reserve commit failed", "error", err, "formationID", formationID)
		return false, fmt.Errorf("failed to commit reservation: %w", err)
	}
	slog.Info("SQLiteStore Reserve succeeded", "formationID", formationID, "client", profile.FullName())
	return true, nil
}

// ListAlternatives returns active formations with free seats, excluding the
// named one, ordered by name.
func (s *SQLiteStore) ListAlternatives(ctx context.Context, excludeName string, limit int) ([]models.Formation, error) {
	if limit <= 0 {
		limit = DefaultAlternativesLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nom, places_max, places_reservees, prix, duree_jours, statut
		FROM formations
		WHERE statut = 'active' AND nom <> ?
		  AND (places_max - places_reservees) > 0
		ORDER BY nom
		LIMIT ?`, excludeName, limit)
	if err != nil {
		slog.Error("SQLiteStore ListAlternatives query failed", "error", err)
		return nil, fmt.Errorf("failed to query alternatives: %w", err)
	}
	defer rows.Close()
	return collectFormations(rows)
}

// ListSlots returns the scheduled slots of formations matching the name
// pattern, ordered by start time.
func (s *SQLiteStore) ListSlots(ctx context.Context, namePattern string) ([]models.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fs.id, fs.formation_id, fs.start_datetime, fs.end_datetime,
		       fs.label, fs.location, fs.capacity, fs.statut
		FROM formation_sessions fs
		JOIN formations f ON f.id = fs.formation_id
		WHERE LOWER(f.nom) LIKE '%' || LOWER(?) || '%'
		ORDER BY fs.start_datetime`, namePattern)
	if err != nil {
		slog.Error("SQLiteStore ListSlots query failed", "error", err, "pattern", namePattern)
		return nil, fmt.Errorf("failed to query slots for %q: %w", namePattern, err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

// StartAnalyticsSession records the start of a tracked qualification session.
func (s *SQLiteStore) StartAnalyticsSession(ctx context.Context, sessionID, clientInfoJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_sessions (session_id, client_info)
		VALUES (?, ?)
		ON CONFLICT (session_id) DO UPDATE SET start_time = CURRENT_TIMESTAMP`,
		sessionID, nilIfEmpty(clientInfoJSON))
	if err != nil {
		slog.Error("SQLiteStore StartAnalyticsSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to start analytics session %s: %w", sessionID, err)
	}
	return nil
}

// EndAnalyticsSession closes a tracked session with its final statuses.
func (s *SQLiteStore) EndAnalyticsSession(ctx context.Context, sessionID, completionStatus, qualificationStatus string, durationSeconds int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE analytics_sessions
		SET end_time = CURRENT_TIMESTAMP, completion_status = ?, qualification_status = ?, duration_seconds = ?
		WHERE session_id = ?`,
		completionStatus, qualificationStatus, durationSeconds, sessionID)
	if err != nil {
		slog.Error("SQLiteStore EndAnalyticsSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to end analytics session %s: %w", sessionID, err)
	}
	return nil
}

// LogAnalyticsEvent appends one event to a tracked session.
func (s *SQLiteStore) LogAnalyticsEvent(ctx context.Context, sessionID, eventType, payloadJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_events (session_id, event_type, event_data)
		VALUES (?, ?, ?)`,
		sessionID, eventType, nilIfEmpty(payloadJSON))
	if err != nil {
		slog.Error("SQLiteStore LogAnalyticsEvent failed", "error", err, "sessionID", sessionID, "eventType", eventType)
		return fmt.Errorf("failed to log analytics event for %s: %w", sessionID, err)
	}
	return nil
}

// GetAnalyticsMetrics aggregates session outcomes over the trailing window.
func (s *SQLiteStore) GetAnalyticsMetrics(ctx context.Context, days int) (models.AnalyticsMetrics, error) {
	var m models.AnalyticsMetrics
	var avgSeconds float64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN completion_status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN qualification_status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(CASE WHEN completion_status = 'completed' THEN duration_seconds END), 0)
		FROM analytics_sessions
		WHERE start_time >= datetime('now', '-' || ? || ' days')`,
		string(models.StatusQualified), days).
		Scan(&m.TotalSessions, &m.CompletedSessions, &m.QualifiedCount, &avgSeconds)
	if err != nil {
		slog.Error("SQLiteStore GetAnalyticsMetrics failed", "error", err)
		return models.AnalyticsMetrics{}, fmt.Errorf("failed to query analytics metrics: %w", err)
	}
	m.AvgDurationMinutes = avgSeconds / 60
	if m.TotalSessions > 0 {
		m.CompletionRate = float64(m.CompletedSessions) * 100 / float64(m.TotalSessions)
	}
	if m.CompletedSessions > 0 {
		m.QualificationRate = float64(m.QualifiedCount) * 100 / float64(m.CompletedSessions)
	}
	return m, nil
}
