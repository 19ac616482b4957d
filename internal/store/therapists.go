package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const therapistColumns = `id, identity_key, email, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(practice_type, ''), created_at, updated_at`

func scanTherapist(row *sql.Row) (Therapist, error) {
	var t Therapist
	err := row.Scan(&t.ID, &t.IdentityKey, &t.Email, &t.FirstName, &t.LastName, &t.PracticeType, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Therapist{}, err
	}
	return t, nil
}

// ErrIdentityRace reports a concurrent first-sight insert for the same
// identity. Callers retry the lookup.
var ErrIdentityRace = errors.New("identity inserted concurrently")

func (s *PostgresStore) EnsureTherapistByIdentity(ctx context.Context, identity string) (Therapist, error) {
	find := fmt.Sprintf(`SELECT %s FROM therapists WHERE identity_key=$1`, therapistColumns)
	t, err := scanTherapist(s.db.QueryRowContext(ctx, find, identity))
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Therapist{}, fmt.Errorf("lookup therapist: %w", err)
	}

	insert := fmt.Sprintf(`
		INSERT INTO therapists (identity_key, email, first_name, last_name)
		VALUES ($1, CONCAT($1::text, '@identity.local'), 'New', 'Therapist')
		RETURNING %s
	`, therapistColumns)
	t, err = scanTherapist(s.db.QueryRowContext(ctx, insert, identity))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Therapist{}, ErrIdentityRace
		}
		return Therapist{}, fmt.Errorf("insert therapist: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) GetTherapist(ctx context.Context, therapistID int64) (Therapist, error) {
	query := fmt.Sprintf(`SELECT %s FROM therapists WHERE id=$1`, therapistColumns)
	return scanTherapist(s.db.QueryRowContext(ctx, query, therapistID))
}

func (s *PostgresStore) UpdateTherapist(ctx context.Context, therapistID int64, patch TherapistPatch) (Therapist, error) {
	var b updateBuilder
	if patch.Email != nil {
		b.set("email", *patch.Email)
	}
	if patch.FirstName != nil {
		b.set("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		b.set("last_name", *patch.LastName)
	}
	if patch.PracticeType != nil {
		b.set("practice_type", *patch.PracticeType)
	}
	if b.empty() {
		return s.GetTherapist(ctx, therapistID)
	}

	query := fmt.Sprintf(`
		UPDATE therapists SET %s, updated_at=NOW()
		WHERE id=$%d
		RETURNING %s
	`, b.clause(), b.next(), therapistColumns)
	args := append(b.args, therapistID)
	return scanTherapist(s.db.QueryRowContext(ctx, query, args...))
}
