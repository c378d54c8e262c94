package store

import (
	"database/sql"
	"fmt"

	"github.com/dreampastry/qualibot/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// collectFormations drains rows produced by a formation listing query.
func collectFormations(rows *sql.Rows) ([]models.Formation, error) {
	var formations []models.Formation
	for rows.Next() {
		var f models.Formation
		if err := rows.Scan(&f.ID, &f.Name, &f.MaxSeats, &f.ReservedSeats, &f.Price, &f.DurationDays, &f.Status); err != nil {
			return nil, fmt.Errorf("scan formation failed: %w", err)
		}
		formations = append(formations, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate formation rows failed: %w", err)
	}
	return formations, nil
}

// collectSlots drains rows produced by a slot listing query.
func collectSlots(rows *sql.Rows) ([]models.Slot, error) {
	var slots []models.Slot
	for rows.Next() {
		var s models.Slot
		var label, location sql.NullString
		var capacity sql.NullInt64
		if err := rows.Scan(&s.ID, &s.FormationID, &s.Start, &s.End, &label, &location, &capacity, &s.Status); err != nil {
			return nil, fmt.Errorf("scan slot failed: %w", err)
		}
		s.Label = label.String
		s.Location = location.String
		s.Capacity = int(capacity.Int64)
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slot rows failed: %w", err)
	}
	return slots, nil
}
