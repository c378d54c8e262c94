package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dreampastry/qualibot/internal/models"
)

// sampleFormations is the demo catalog loaded by the -seed flag.
// Viennoiseries ships full so the alternatives path can be exercised.
var sampleFormations = []models.Formation{
	{Name: "Pâtisserie Française", Description: "Formation complète en pâtisserie française", MaxSeats: 15, ReservedSeats: 5, Price: 1200, DurationDays: 5},
	{Name: "Macarons", Description: "Formation spécialisée macarons", MaxSeats: 8, ReservedSeats: 2, Price: 450, DurationDays: 2},
	{Name: "Chocolat", Description: "Travail du chocolat et confiserie", MaxSeats: 10, ReservedSeats: 3, Price: 600, DurationDays: 3},
	{Name: "Entremets", Description: "Entremets modernes et créatifs", MaxSeats: 12, ReservedSeats: 7, Price: 800, DurationDays: 4},
	{Name: "CAP Pâtissier", Description: "Formation CAP complète", MaxSeats: 20, ReservedSeats: 15, Price: 2500, DurationDays: 10},
	{Name: "Viennoiseries", Description: "Croissants et viennoiseries", MaxSeats: 6, ReservedSeats: 6, Price: 300, DurationDays: 1},
}

// SeedSampleData inserts the demo catalog, skipping names already present.
func (s *PostgresStore) SeedSampleData(ctx context.Context) error {
	for _, f := range sampleFormations {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO formations (nom, description, places_max, places_reservees, prix, duree_jours)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (nom) DO NOTHING`,
			f.Name, f.Description, f.MaxSeats, f.ReservedSeats, f.Price, f.DurationDays)
		if err != nil {
			slog.Error("PostgresStore SeedSampleData failed", "error", err, "formation", f.Name)
			return fmt.Errorf("failed to seed formation %q: %w", f.Name, err)
		}
	}
	slog.Info("PostgresStore sample data seeded", "count", len(sampleFormations))
	return nil
}

// SeedSampleData inserts the demo catalog, skipping names already present.
func (s *SQLiteStore) SeedSampleData(ctx context.Context) error {
	for _, f := range sampleFormations {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO formations (nom, description, places_max, places_reservees, prix, duree_jours)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (nom) DO NOTHING`,
			f.Name, f.Description, f.MaxSeats, f.ReservedSeats, f.Price, f.DurationDays)
		if err != nil {
			slog.Error("SQLiteStore SeedSampleData failed", "error", err, "formation", f.Name)
			return fmt.Errorf("failed to seed formation %q: %w", f.Name, err)
		}
	}
	slog.Info("SQLiteStore sample data seeded", "count", len(sampleFormations))
	return nil
}

// SeedSampleData loads the demo catalog into the in-memory store.
func (s *InMemoryStore) SeedSampleData(ctx context.Context) error {
	for _, f := range sampleFormations {
		s.AddFormation(f)
	}
	return nil
}
