package roster

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"mortality/internal/dates"
	"mortality/pkg/platform/sentinel"
)

// PostgresStore persists the roster in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed roster store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Due(ctx context.Context) ([]TrackedPerson, error) {
	query := `
		SELECT id, name, wiki_page, wiki_id, age
		FROM tracked_people
		WHERE death_date IS NULL
		  AND (wiki_page IS NOT NULL OR wiki_id IS NOT NULL)
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list due people: %w", err)
	}
	defer rows.Close()

	var people []TrackedPerson
	for rows.Next() {
		var (
			p        TrackedPerson
			page, id sql.NullString
			age      sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.Name, &page, &id, &age); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.PageTitle = page.String
		p.EntityID = id.String
		if age.Valid {
			n := int(age.Int64)
			p.KnownAge = &n
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due people: %w", err)
	}
	return people, nil
}

// RecordVitals writes back the fields the pass actually learned. COALESCE
// keeps the stored birth date and age when the update carries nil, so a
// source that momentarily returns no facts cannot erase earlier ones.
func (s *PostgresStore) RecordVitals(ctx context.Context, id uuid.UUID, update VitalsUpdate) error {
	query := `
		UPDATE tracked_people
		SET wiki_id = $2,
		    birth_date = COALESCE($3, birth_date),
		    age = COALESCE($4, age),
		    updated_at = now()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, nullString(update.EntityID), nullDate(update.BirthDate), nullInt(update.Age))
	if err != nil {
		return fmt.Errorf("record vitals: %w", err)
	}
	return oneRow(res, id)
}

func (s *PostgresStore) RecordDeath(ctx context.Context, id uuid.UUID, update DeathUpdate) error {
	query := `
		UPDATE tracked_people
		SET wiki_id = $2,
		    birth_date = COALESCE($3, birth_date),
		    death_date = $4,
		    age = $5,
		    updated_at = now()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, nullString(update.EntityID), nullDate(update.BirthDate), update.DeathDate.Time(), nullInt(update.Age))
	if err != nil {
		return fmt.Errorf("record death: %w", err)
	}
	return oneRow(res, id)
}

func (s *PostgresStore) OptInRecipients(ctx context.Context) ([]Recipient, error) {
	query := `
		SELECT name, phone_number
		FROM sms_recipients
		WHERE opted_in
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.Name, &r.PhoneNumber); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return recipients, nil
}

// Health reports whether the database connection is usable.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func oneRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("person %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDate(v *dates.Date) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: v.Time(), Valid: true}
}
