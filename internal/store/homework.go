package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const assignmentColumns = `id, therapist_id, client_id, title, COALESCE(description, ''),
	COALESCE(due_date, ''), status, created_at, updated_at`

const submissionColumns = `id, assignment_id, client_id, COALESCE(content, ''),
	COALESCE(attachments, ''), submitted_at, COALESCE(feedback, ''), feedback_at`

func scanAssignment(row interface{ Scan(...any) error }) (HomeworkAssignment, error) {
	var a HomeworkAssignment
	err := row.Scan(&a.ID, &a.TherapistID, &a.ClientID, &a.Title, &a.Description,
		&a.DueDate, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return HomeworkAssignment{}, err
	}
	return a, nil
}

func scanSubmission(row interface{ Scan(...any) error }) (HomeworkSubmission, error) {
	var (
		sub         HomeworkSubmission
		attachments string
	)
	err := row.Scan(&sub.ID, &sub.AssignmentID, &sub.ClientID, &sub.Content,
		&attachments, &sub.SubmittedAt, &sub.Feedback, &sub.FeedbackAt)
	if err != nil {
		return HomeworkSubmission{}, err
	}
	sub.Attachments = decodeList(attachments)
	return sub, nil
}

// ListClientHomework returns the client's assignments, newest first, each
// with its latest submission when one exists.
func (s *PostgresStore) ListClientHomework(ctx context.Context, therapistID, clientID int64) ([]HomeworkAssignment, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM homework_assignments
		WHERE client_id=$1 AND therapist_id=$2
		ORDER BY created_at DESC
	`, assignmentColumns)
	rows, err := s.db.QueryContext(ctx, query, clientID, therapistID)
	if err != nil {
		return nil, fmt.Errorf("list homework: %w", err)
	}
	defer rows.Close()

	items := make([]HomeworkAssignment, 0)
	for rows.Next() {
		item, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate homework: %w", err)
	}

	for i := range items {
		latest := fmt.Sprintf(`
			SELECT %s FROM homework_submissions
			WHERE assignment_id=$1
			ORDER BY submitted_at DESC
			LIMIT 1
		`, submissionColumns)
		sub, err := scanSubmission(s.db.QueryRowContext(ctx, latest, items[i].ID))
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest submission: %w", err)
		}
		items[i].Submission = &sub
	}
	return items, nil
}

func (s *PostgresStore) CreateHomework(ctx context.Context, therapistID int64, item HomeworkAssignment) (HomeworkAssignment, error) {
	query := fmt.Sprintf(`
		INSERT INTO homework_assignments (therapist_id, client_id, title, description, due_date, status)
		SELECT c.therapist_id, c.id, $3, NULLIF($4, ''), NULLIF($5, ''), 'assigned'
		FROM clients c
		WHERE c.id=$1 AND c.therapist_id=$2
		RETURNING %s
	`, assignmentColumns)
	created, err := scanAssignment(s.db.QueryRowContext(ctx, query,
		item.ClientID, therapistID, item.Title, item.Description, item.DueDate))
	if err != nil {
		return HomeworkAssignment{}, err
	}
	return created, nil
}

func (s *PostgresStore) UpdateHomework(ctx context.Context, therapistID, assignmentID int64, patch HomeworkPatch) (HomeworkAssignment, error) {
	var b updateBuilder
	if patch.Title != nil {
		b.set("title", *patch.Title)
	}
	if patch.Description != nil {
		b.set("description", *patch.Description)
	}
	if patch.DueDate != nil {
		b.set("due_date", *patch.DueDate)
	}
	if patch.Status != nil {
		b.set("status", *patch.Status)
	}
	if b.empty() {
		query := fmt.Sprintf(`SELECT %s FROM homework_assignments WHERE id=$1 AND therapist_id=$2`, assignmentColumns)
		return scanAssignment(s.db.QueryRowContext(ctx, query, assignmentID, therapistID))
	}

	query := fmt.Sprintf(`
		UPDATE homework_assignments SET %s, updated_at=NOW()
		WHERE id=$%d AND therapist_id=$%d
		RETURNING %s
	`, b.clause(), b.next(), b.next()+1, assignmentColumns)
	args := append(b.args, assignmentID, therapistID)
	return scanAssignment(s.db.QueryRowContext(ctx, query, args...))
}

// SubmitHomework records a client-side submission. The insert selects
// through the assignment row keyed on the claimed client id, so a mismatch
// yields no rows instead of attaching to someone else's assignment.
func (s *PostgresStore) SubmitHomework(ctx context.Context, assignmentID, clientID int64, content string, attachments []any) (HomeworkSubmission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return HomeworkSubmission{}, fmt.Errorf("begin submit tx: %w", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf(`
		INSERT INTO homework_submissions (assignment_id, client_id, content, attachments)
		SELECT a.id, a.client_id, NULLIF($3, ''), $4
		FROM homework_assignments a
		WHERE a.id=$1 AND a.client_id=$2
		RETURNING %s
	`, submissionColumns)
	sub, err := scanSubmission(tx.QueryRowContext(ctx, insert, assignmentID, clientID, content, encodeList(attachments)))
	if err != nil {
		return HomeworkSubmission{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE homework_assignments SET status='submitted', updated_at=NOW() WHERE id=$1
	`, assignmentID); err != nil {
		return HomeworkSubmission{}, fmt.Errorf("mark submitted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return HomeworkSubmission{}, fmt.Errorf("commit submit tx: %w", err)
	}
	return sub, nil
}

// FeedbackSubmission attaches therapist feedback; ownership is checked
// through the join to the assignment in the same statement.
func (s *PostgresStore) FeedbackSubmission(ctx context.Context, therapistID, submissionID int64, feedback string) (HomeworkSubmission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return HomeworkSubmission{}, fmt.Errorf("begin feedback tx: %w", err)
	}
	defer tx.Rollback()

	update := fmt.Sprintf(`
		UPDATE homework_submissions sub SET feedback=$3, feedback_at=NOW()
		FROM homework_assignments a
		WHERE sub.id=$1 AND a.id=sub.assignment_id AND a.therapist_id=$2
		RETURNING %s
	`, prefixSubmissionColumns)
	sub, err := scanSubmission(tx.QueryRowContext(ctx, update, submissionID, therapistID, feedback))
	if err != nil {
		return HomeworkSubmission{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE homework_assignments SET status='reviewed', updated_at=NOW() WHERE id=$1
	`, sub.AssignmentID); err != nil {
		return HomeworkSubmission{}, fmt.Errorf("mark reviewed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return HomeworkSubmission{}, fmt.Errorf("commit feedback tx: %w", err)
	}
	return sub, nil
}

const prefixSubmissionColumns = `sub.id, sub.assignment_id, sub.client_id, COALESCE(sub.content, ''),
	COALESCE(sub.attachments, ''), sub.submitted_at, COALESCE(sub.feedback, ''), sub.feedback_at`
