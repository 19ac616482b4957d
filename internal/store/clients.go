package store

import (
	"context"
	"database/sql"
	"fmt"
)

const clientColumns = `id, therapist_id, first_name, last_name, date_of_birth,
	COALESCE(phone, ''), COALESCE(email, ''),
	COALESCE(emergency_contact_name, ''), COALESCE(emergency_contact_phone, ''),
	status, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.TherapistID, &c.FirstName, &c.LastName, &c.DateOfBirth,
		&c.Phone, &c.Email, &c.EmergencyContactName, &c.EmergencyContactPhone,
		&c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Client{}, err
	}
	return c, nil
}

func (s *PostgresStore) ListClients(ctx context.Context, therapistID int64, status string) ([]Client, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM clients
		WHERE therapist_id=$1 AND ($2='' OR status=$2)
		ORDER BY last_name ASC, first_name ASC
	`, clientColumns)
	rows, err := s.db.QueryContext(ctx, query, therapistID, status)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	items := make([]Client, 0)
	for rows.Next() {
		item, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetClient(ctx context.Context, therapistID, clientID int64) (Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE id=$1 AND therapist_id=$2`, clientColumns)
	return scanClient(s.db.QueryRowContext(ctx, query, clientID, therapistID))
}

func (s *PostgresStore) CreateClient(ctx context.Context, c Client) (Client, error) {
	query := fmt.Sprintf(`
		INSERT INTO clients (therapist_id, first_name, last_name, date_of_birth, phone, email,
			emergency_contact_name, emergency_contact_phone, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), COALESCE(NULLIF($9, ''), 'active'))
		RETURNING %s
	`, clientColumns)
	created, err := scanClient(s.db.QueryRowContext(ctx, query,
		c.TherapistID, c.FirstName, c.LastName, c.DateOfBirth, c.Phone, c.Email,
		c.EmergencyContactName, c.EmergencyContactPhone, c.Status))
	if err != nil {
		return Client{}, fmt.Errorf("create client: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) UpdateClient(ctx context.Context, therapistID, clientID int64, patch ClientPatch) (Client, error) {
	var b updateBuilder
	if patch.FirstName != nil {
		b.set("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		b.set("last_name", *patch.LastName)
	}
	if patch.DateOfBirth != nil {
		b.set("date_of_birth", *patch.DateOfBirth)
	}
	if patch.Phone != nil {
		b.set("phone", *patch.Phone)
	}
	if patch.Email != nil {
		b.set("email", *patch.Email)
	}
	if patch.EmergencyContactName != nil {
		b.set("emergency_contact_name", *patch.EmergencyContactName)
	}
	if patch.EmergencyContactPhone != nil {
		b.set("emergency_contact_phone", *patch.EmergencyContactPhone)
	}
	if patch.Status != nil {
		b.set("status", *patch.Status)
	}
	if b.empty() {
		return s.GetClient(ctx, therapistID, clientID)
	}

	query := fmt.Sprintf(`
		UPDATE clients SET %s, updated_at=NOW()
		WHERE id=$%d AND therapist_id=$%d
		RETURNING %s
	`, b.clause(), b.next(), b.next()+1, clientColumns)
	args := append(b.args, clientID, therapistID)
	return scanClient(s.db.QueryRowContext(ctx, query, args...))
}

// SoftDeleteClient marks the row inactive. Ownership rides in the predicate;
// zero rows means not found for this tenant.
func (s *PostgresStore) SoftDeleteClient(ctx context.Context, therapistID, clientID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE clients SET status='inactive', updated_at=NOW()
		WHERE id=$1 AND therapist_id=$2
	`, clientID, therapistID)
	if err != nil {
		return fmt.Errorf("soft delete client: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("soft delete client: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
