package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/aggregate"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/core/occupation"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/db"
	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/ports/secondary"
)

const occupationColumns = `external_code, title, title_masculine, title_feminine, title_epicene,
	description, outlook, outlook_updated_at, salaries, salaries_updated_at,
	status, version, pending_referential_update, created_at, updated_at`

// OccupationRepository implements secondary.OccupationRepository with SQLite.
type OccupationRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOccupationRepository creates a new SQLite occupation repository.
func NewOccupationRepository(db *sql.DB) *OccupationRepository {
	return &OccupationRepository{db: db, now: time.Now}
}

// Create persists a new occupation at version 1.
func (r *OccupationRepository) Create(ctx context.Context, record *secondary.OccupationRecord) error {
	if record.ExternalCode == "" {
		return fmt.Errorf("occupation external code must be set")
	}
	if record.Status == "" {
		record.Status = occupation.InitialStatus()
	}
	now := r.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt
	record.Version = 1

	salaries, err := encodeSalaries(record.Salaries)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO occupations (`+occupationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ExternalCode, record.Title,
		nullString(record.TitleMasculine), nullString(record.TitleFeminine), nullString(record.TitleEpicene),
		nullString(record.Description), nullString(record.Outlook), nullTime(record.OutlookUpdatedAt),
		salaries, nullTime(record.SalariesUpdatedAt),
		string(record.Status), record.Version, boolInt(record.PendingReferentialUpdate),
		db.FormatTime(record.CreatedAt), db.FormatTime(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create occupation: %w", err)
	}
	return nil
}

// GetByCode retrieves an occupation by its external code.
func (r *OccupationRepository) GetByCode(ctx context.Context, code string) (*secondary.OccupationRecord, error) {
	return getOccupation(ctx, r.db, code)
}

func getOccupation(ctx context.Context, q dbtx, code string) (*secondary.OccupationRecord, error) {
	row := q.QueryRowContext(ctx, `SELECT `+occupationColumns+` FROM occupations WHERE external_code = ?`, code)
	record, err := scanOccupation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("occupation %s: %w", code, secondary.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get occupation: %w", err)
	}
	return record, nil
}

// Update persists record if its version still matches, then bumps it.
func (r *OccupationRepository) Update(ctx context.Context, record *secondary.OccupationRecord) error {
	salaries, err := encodeSalaries(record.Salaries)
	if err != nil {
		return err
	}
	now := r.now()

	res, err := r.db.ExecContext(ctx,
		`UPDATE occupations SET
			title = ?, title_masculine = ?, title_feminine = ?, title_epicene = ?,
			description = ?, outlook = ?, outlook_updated_at = ?,
			salaries = ?, salaries_updated_at = ?,
			status = ?, pending_referential_update = ?,
			version = version + 1, updated_at = ?
		WHERE external_code = ? AND version = ?`,
		record.Title, nullString(record.TitleMasculine), nullString(record.TitleFeminine), nullString(record.TitleEpicene),
		nullString(record.Description), nullString(record.Outlook), nullTime(record.OutlookUpdatedAt),
		salaries, nullTime(record.SalariesUpdatedAt),
		string(record.Status), boolInt(record.PendingReferentialUpdate),
		db.FormatTime(now),
		record.ExternalCode, record.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update occupation: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM occupations WHERE external_code = ?", record.ExternalCode).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check occupation: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("occupation %s: %w", record.ExternalCode, secondary.ErrNotFound)
		}
		return fmt.Errorf("occupation %s at version %d: %w", record.ExternalCode, record.Version, secondary.ErrVersionConflict)
	}

	record.Version++
	record.UpdatedAt = now
	return nil
}

// tombstonedSnapshot matches an occupation whose entity left the referential.
const tombstonedSnapshot = `SELECT 1 FROM snapshots s
	WHERE s.external_code = occupations.external_code AND s.deleted_at IS NOT NULL`

// List retrieves occupations matching the given filters.
func (r *OccupationRepository) List(ctx context.Context, filters secondary.OccupationFilters) ([]*secondary.OccupationRecord, error) {
	query := `SELECT ` + occupationColumns + ` FROM occupations WHERE 1=1`
	args := []any{}
	order := " ORDER BY external_code"

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filters.Status))
	}
	if filters.ExcludeStatus != "" {
		query += " AND status <> ?"
		args = append(args, string(filters.ExcludeStatus))
	}
	if len(filters.Codes) > 0 {
		query += " AND external_code IN (" + placeholders(len(filters.Codes)) + ")"
		for _, c := range filters.Codes {
			args = append(args, c)
		}
	}
	if filters.PendingOnly {
		query += " AND pending_referential_update = 1"
	}
	if filters.ExcludeTombstoned {
		query += " AND NOT EXISTS (" + tombstonedSnapshot + ")"
	}
	if filters.TombstonedOnly {
		query += " AND EXISTS (" + tombstonedSnapshot + ")"
	}
	if !filters.OutlookBefore.IsZero() {
		query += " AND (outlook IS NULL OR outlook = '' OR outlook_updated_at IS NULL OR outlook_updated_at < ?)"
		args = append(args, db.FormatTime(filters.OutlookBefore))
		order = " ORDER BY COALESCE(outlook_updated_at, ''), external_code"
	}
	if !filters.SalariesBefore.IsZero() {
		query += " AND (salaries IS NULL OR salaries_updated_at IS NULL OR salaries_updated_at < ?)"
		args = append(args, db.FormatTime(filters.SalariesBefore))
		order = " ORDER BY COALESCE(salaries_updated_at, ''), external_code"
	}
	query += order
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list occupations: %w", err)
	}
	defer rows.Close()

	var records []*secondary.OccupationRecord
	for rows.Next() {
		record, err := scanOccupation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan occupation: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountByStatus returns the number of occupations per status.
func (r *OccupationRepository) CountByStatus(ctx context.Context) (map[occupation.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM occupations GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count occupations: %w", err)
	}
	defer rows.Close()

	counts := make(map[occupation.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[occupation.Status(status)] = n
	}
	return counts, rows.Err()
}

func scanOccupation(s scanner) (*secondary.OccupationRecord, error) {
	var (
		masculine, feminine, epicene sql.NullString
		desc, outlook                sql.NullString
		outlookAt, salariesAt        sql.NullString
		salaries                     sql.NullString
		status                       string
		pending                      int
		createdAt, updatedAt         string
	)

	record := &secondary.OccupationRecord{}
	err := s.Scan(&record.ExternalCode, &record.Title, &masculine, &feminine, &epicene,
		&desc, &outlook, &outlookAt, &salaries, &salariesAt,
		&status, &record.Version, &pending, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.TitleMasculine = masculine.String
	record.TitleFeminine = feminine.String
	record.TitleEpicene = epicene.String
	record.Description = desc.String
	record.Outlook = outlook.String
	record.Status = occupation.Status(status)
	record.PendingReferentialUpdate = pending != 0

	if record.OutlookUpdatedAt, err = parseNullTime(outlookAt); err != nil {
		return nil, err
	}
	if record.SalariesUpdatedAt, err = parseNullTime(salariesAt); err != nil {
		return nil, err
	}
	if record.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(salaries, &record.Salaries); err != nil {
		return nil, err
	}
	return record, nil
}

func encodeSalaries(s map[aggregate.Level]aggregate.Value) (sql.NullString, error) {
	if len(s) == 0 {
		return sql.NullString{}, nil
	}
	return encodeJSON(s)
}

// Ensure OccupationRepository implements the interface
var _ secondary.OccupationRepository = (*OccupationRepository)(nil)
