package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with development fixtures: a handful
// of occupations spread across the lifecycle and a matching snapshot set, so
// the CLI has something to show before the first referential sync.
func SeedFixtures(database *sql.DB) error {
	now := FormatTime(time.Now())

	occupations := []struct {
		code, title, description, status string
	}{
		{"M1805", "Études et développement informatique", "Conçoit, développe et met au point un projet d'application informatique.", "published"},
		{"K2111", "Formation professionnelle", "Prépare et anime des actions de formation.", "enriched"},
		{"D1102", "Boulangerie - viennoiserie", "Prépare et façonne des pâtes à pain et viennoiseries.", "pending_validation"},
		{"A1414", "Horticulture et maraîchage", "Réalise les travaux de culture maraîchère ou horticole.", "draft"},
		{"N4101", "Conduite de transport de marchandises sur longue distance", "Conduit un véhicule de transport de marchandises.", "draft"},
	}
	for _, o := range occupations {
		if _, err := database.Exec(
			`INSERT INTO occupations (external_code, title, description, status, version, created_at, updated_at)
			 VALUES (?, ?, ?, ?, 1, ?, ?)`,
			o.code, o.title, o.description, o.status, now, now,
		); err != nil {
			return fmt.Errorf("seed occupations: %w", err)
		}
	}

	if _, err := database.Exec(
		`INSERT INTO validation_workflows (id, external_code, status, opened_at) VALUES (?, ?, 'open', ?)`,
		"VAL-D1102-seed", "D1102", now,
	); err != nil {
		return fmt.Errorf("seed validation_workflows: %w", err)
	}

	return nil
}
