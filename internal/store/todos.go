package store

import (
	"context"
	"database/sql"
	"fmt"
)

const todoColumns = `id, client_id, therapist_id, body, status, source_session_id, completed_session_id, created_at, updated_at`

const prefixTodoColumns = `t.id, t.client_id, t.therapist_id, t.body, t.status, t.source_session_id, t.completed_session_id, t.created_at, t.updated_at`

func scanTodo(row interface{ Scan(...any) error }) (Todo, error) {
	var t Todo
	err := row.Scan(&t.ID, &t.ClientID, &t.TherapistID, &t.Body, &t.Status,
		&t.SourceSessionID, &t.CompletedSessionID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Todo{}, err
	}
	return t, nil
}

func (s *PostgresStore) ListClientTodos(ctx context.Context, therapistID, clientID int64, status string) ([]Todo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM todos
		WHERE client_id=$1 AND therapist_id=$2 AND ($3='' OR status=$3)
		ORDER BY created_at DESC
	`, todoColumns)
	return s.queryTodos(ctx, query, clientID, therapistID, status)
}

// ListSessionTodos returns todos raised in the given session plus still-open
// items carried over from earlier ones. Carryover leans on session ids
// growing with session dates.
func (s *PostgresStore) ListSessionTodos(ctx context.Context, therapistID, sessionID int64) ([]Todo, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM todos t
		JOIN sessions se ON se.id=$2 AND se.therapist_id=$1
		WHERE t.client_id = se.client_id
		  AND (t.source_session_id=$2 OR (t.status='open' AND t.source_session_id < $2))
		ORDER BY t.status ASC, t.created_at ASC
	`, prefixTodoColumns)
	return s.queryTodos(ctx, query, therapistID, sessionID)
}

func (s *PostgresStore) queryTodos(ctx context.Context, query string, args ...any) ([]Todo, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	items := make([]Todo, 0)
	for rows.Next() {
		item, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateTodo(ctx context.Context, therapistID int64, item Todo) (Todo, error) {
	query := fmt.Sprintf(`
		INSERT INTO todos (client_id, therapist_id, body, status, source_session_id)
		SELECT c.id, c.therapist_id, $3, COALESCE(NULLIF($4, ''), 'open'), $5
		FROM clients c
		WHERE c.id=$1 AND c.therapist_id=$2
		RETURNING %s
	`, todoColumns)
	created, err := scanTodo(s.db.QueryRowContext(ctx, query,
		item.ClientID, therapistID, item.Body, item.Status, item.SourceSessionID))
	if err != nil {
		return Todo{}, err
	}
	return created, nil
}

func (s *PostgresStore) UpdateTodo(ctx context.Context, therapistID, todoID int64, patch TodoPatch) (Todo, error) {
	var b updateBuilder
	if patch.Body != nil {
		b.set("body", *patch.Body)
	}
	if patch.Status != nil {
		b.set("status", *patch.Status)
	}
	if patch.CompletedSessionID != nil {
		b.set("completed_session_id", *patch.CompletedSessionID)
	}
	if b.empty() {
		return s.GetTodo(ctx, therapistID, todoID)
	}

	query := fmt.Sprintf(`
		UPDATE todos SET %s, updated_at=NOW()
		WHERE id=$%d AND therapist_id=$%d
		RETURNING %s
	`, b.clause(), b.next(), b.next()+1, todoColumns)
	args := append(b.args, todoID, therapistID)
	return scanTodo(s.db.QueryRowContext(ctx, query, args...))
}

func (s *PostgresStore) DeleteTodo(ctx context.Context, therapistID, todoID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id=$1 AND therapist_id=$2`, todoID, therapistID)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetTodo(ctx context.Context, therapistID, todoID int64) (Todo, error) {
	query := fmt.Sprintf(`SELECT %s FROM todos WHERE id=$1 AND therapist_id=$2`, todoColumns)
	return scanTodo(s.db.QueryRowContext(ctx, query, todoID, therapistID))
}
