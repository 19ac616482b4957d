package store

import (
	"context"
	"fmt"
	"time"
)

const formLinkColumns = `id, therapist_id, link_token, COALESCE(client_name, ''), COALESCE(client_email, ''),
	form_type, COALESCE(included_assessments, '[]'), status, expires_at, sent_at, opened_at, created_at`

const intakeColumns = `id, form_link_id, therapist_id, client_id, responses, status,
	started_at, completed_at, reviewed_at, created_at, updated_at`

const assessmentColumns = `id, form_link_id, therapist_id, client_id, assessment_type,
	responses, score, COALESCE(severity, ''), completed_at`

func scanFormLink(row interface{ Scan(...any) error }) (FormLink, error) {
	var (
		l           FormLink
		assessments string
	)
	err := row.Scan(&l.ID, &l.TherapistID, &l.LinkToken, &l.ClientName, &l.ClientEmail,
		&l.FormType, &assessments, &l.Status, &l.ExpiresAt, &l.SentAt, &l.OpenedAt, &l.CreatedAt)
	if err != nil {
		return FormLink{}, err
	}
	l.IncludedAssessments = decodeList(assessments)
	return l, nil
}

func scanIntake(row interface{ Scan(...any) error }) (IntakeResponse, error) {
	var (
		r         IntakeResponse
		responses string
	)
	err := row.Scan(&r.ID, &r.FormLinkID, &r.TherapistID, &r.ClientID, &responses, &r.Status,
		&r.StartedAt, &r.CompletedAt, &r.ReviewedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return IntakeResponse{}, err
	}
	r.Responses = decodeObject(responses)
	return r, nil
}

func scanAssessment(row interface{ Scan(...any) error }) (AssessmentResponse, error) {
	var (
		a         AssessmentResponse
		responses string
	)
	err := row.Scan(&a.ID, &a.FormLinkID, &a.TherapistID, &a.ClientID, &a.AssessmentType,
		&responses, &a.Score, &a.Severity, &a.CompletedAt)
	if err != nil {
		return AssessmentResponse{}, err
	}
	a.Responses = decodeObject(responses)
	return a, nil
}

// CreateFormLink inserts the link and its paired pending response together.
func (s *PostgresStore) CreateFormLink(ctx context.Context, link FormLink) (FormLink, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return FormLink{}, fmt.Errorf("begin link tx: %w", err)
	}
	defer tx.Rollback()

	insert := fmt.Sprintf(`
		INSERT INTO form_links (therapist_id, link_token, client_name, client_email, form_type, included_assessments, status, expires_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), COALESCE(NULLIF($5, ''), 'intake'), $6, 'sent', $7)
		RETURNING %s
	`, formLinkColumns)
	created, err := scanFormLink(tx.QueryRowContext(ctx, insert,
		link.TherapistID, link.LinkToken, link.ClientName, link.ClientEmail, link.FormType,
		encodeList(link.IncludedAssessments), link.ExpiresAt))
	if err != nil {
		return FormLink{}, fmt.Errorf("create form link: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO intake_responses (form_link_id, therapist_id, responses, status)
		VALUES ($1, $2, '{}', 'pending')
	`, created.ID, created.TherapistID); err != nil {
		return FormLink{}, fmt.Errorf("create intake response: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return FormLink{}, fmt.Errorf("commit link tx: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) GetFormLinkByToken(ctx context.Context, token string) (FormLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_links WHERE link_token=$1`, formLinkColumns)
	return scanFormLink(s.db.QueryRowContext(ctx, query, token))
}

func (s *PostgresStore) GetFormLink(ctx context.Context, therapistID, linkID int64) (FormLink, error) {
	query := fmt.Sprintf(`SELECT %s FROM form_links WHERE id=$1 AND therapist_id=$2`, formLinkColumns)
	return scanFormLink(s.db.QueryRowContext(ctx, query, linkID, therapistID))
}

// MarkLinkOpened flips sent to opened and stamps opened_at on the first
// fetch; later fetches leave the row alone.
func (s *PostgresStore) MarkLinkOpened(ctx context.Context, linkID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE form_links SET status='opened', opened_at=NOW()
		WHERE id=$1 AND status='sent'
	`, linkID)
	if err != nil {
		return fmt.Errorf("mark link opened: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkLinkSent(ctx context.Context, therapistID, linkID int64) (FormLink, error) {
	query := fmt.Sprintf(`
		UPDATE form_links SET sent_at=NOW()
		WHERE id=$1 AND therapist_id=$2
		RETURNING %s
	`, formLinkColumns)
	return scanFormLink(s.db.QueryRowContext(ctx, query, linkID, therapistID))
}

func (s *PostgresStore) GetIntakeByLink(ctx context.Context, linkID int64) (IntakeResponse, error) {
	query := fmt.Sprintf(`SELECT %s FROM intake_responses WHERE form_link_id=$1`, intakeColumns)
	return scanIntake(s.db.QueryRowContext(ctx, query, linkID))
}

// SaveIntakeResponses replaces the stored fragment map; merging happens in
// the service. Status only ever moves forward here: a completed response
// stays completed.
func (s *PostgresStore) SaveIntakeResponses(ctx context.Context, linkID int64, responses map[string]any) (IntakeResponse, error) {
	query := fmt.Sprintf(`
		UPDATE intake_responses
		SET responses=$2,
			status=CASE WHEN status IN ('completed', 'reviewed') THEN status ELSE 'in_progress' END,
			started_at=COALESCE(started_at, NOW()),
			updated_at=NOW()
		WHERE form_link_id=$1
		RETURNING %s
	`, intakeColumns)
	return scanIntake(s.db.QueryRowContext(ctx, query, linkID, encodeObject(responses)))
}

// CompleteIntake stamps completion on both the response and its link.
func (s *PostgresStore) CompleteIntake(ctx context.Context, linkID int64) (IntakeResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IntakeResponse{}, fmt.Errorf("begin complete tx: %w", err)
	}
	defer tx.Rollback()

	update := fmt.Sprintf(`
		UPDATE intake_responses
		SET status='completed', completed_at=NOW(), started_at=COALESCE(started_at, NOW()), updated_at=NOW()
		WHERE form_link_id=$1
		RETURNING %s
	`, intakeColumns)
	resp, err := scanIntake(tx.QueryRowContext(ctx, update, linkID))
	if err != nil {
		return IntakeResponse{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE form_links SET status='completed' WHERE id=$1
	`, linkID); err != nil {
		return IntakeResponse{}, fmt.Errorf("complete form link: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return IntakeResponse{}, fmt.Errorf("commit complete tx: %w", err)
	}
	return resp, nil
}

func (s *PostgresStore) InsertAssessment(ctx context.Context, a AssessmentResponse) (AssessmentResponse, error) {
	query := fmt.Sprintf(`
		INSERT INTO assessment_responses (form_link_id, therapist_id, client_id, assessment_type, responses, score, severity)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING %s
	`, assessmentColumns)
	created, err := scanAssessment(s.db.QueryRowContext(ctx, query,
		a.FormLinkID, a.TherapistID, a.ClientID, a.AssessmentType, encodeObject(a.Responses), a.Score, a.Severity))
	if err != nil {
		return AssessmentResponse{}, fmt.Errorf("insert assessment: %w", err)
	}
	return created, nil
}

// ListPendingIntakes returns responses awaiting review, joined with link
// contact details.
func (s *PostgresStore) ListPendingIntakes(ctx context.Context, therapistID int64) ([]IntakeResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.form_link_id, r.therapist_id, r.client_id, r.responses, r.status,
			r.started_at, r.completed_at, r.reviewed_at, r.created_at, r.updated_at,
			COALESCE(l.client_name, ''), COALESCE(l.client_email, '')
		FROM intake_responses r
		JOIN form_links l ON l.id = r.form_link_id
		WHERE r.therapist_id=$1 AND r.status IN ('in_progress', 'completed')
		ORDER BY r.updated_at DESC
	`, therapistID)
	if err != nil {
		return nil, fmt.Errorf("list pending intakes: %w", err)
	}
	defer rows.Close()

	items := make([]IntakeResponse, 0)
	for rows.Next() {
		var (
			r         IntakeResponse
			responses string
		)
		err := rows.Scan(&r.ID, &r.FormLinkID, &r.TherapistID, &r.ClientID, &responses, &r.Status,
			&r.StartedAt, &r.CompletedAt, &r.ReviewedAt, &r.CreatedAt, &r.UpdatedAt,
			&r.ClientName, &r.ClientEmail)
		if err != nil {
			return nil, fmt.Errorf("scan pending intake: %w", err)
		}
		r.Responses = decodeObject(responses)
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending intakes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetIntakeResponse(ctx context.Context, therapistID, responseID int64) (IntakeResponse, error) {
	query := fmt.Sprintf(`SELECT %s FROM intake_responses WHERE id=$1 AND therapist_id=$2`, intakeColumns)
	return scanIntake(s.db.QueryRowContext(ctx, query, responseID, therapistID))
}

func (s *PostgresStore) ListAssessmentsByLink(ctx context.Context, linkID int64) ([]AssessmentResponse, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM assessment_responses
		WHERE form_link_id=$1
		ORDER BY completed_at ASC
	`, assessmentColumns)
	rows, err := s.db.QueryContext(ctx, query, linkID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	items := make([]AssessmentResponse, 0)
	for rows.Next() {
		item, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessments: %w", err)
	}
	return items, nil
}

// ApproveIntake marks the response reviewed and, when a client row was
// created, backfills its id onto the response and the link's assessments.
func (s *PostgresStore) ApproveIntake(ctx context.Context, therapistID, responseID int64, clientID *int64) (IntakeResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IntakeResponse{}, fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback()

	update := fmt.Sprintf(`
		UPDATE intake_responses
		SET status='reviewed', reviewed_at=NOW(), client_id=COALESCE($3, client_id), updated_at=NOW()
		WHERE id=$1 AND therapist_id=$2
		RETURNING %s
	`, intakeColumns)
	resp, err := scanIntake(tx.QueryRowContext(ctx, update, responseID, therapistID, clientID))
	if err != nil {
		return IntakeResponse{}, err
	}

	if clientID != nil {
		if _, err := tx.ExecContext(ctx, `
			UPDATE assessment_responses SET client_id=$2 WHERE form_link_id=$1
		`, resp.FormLinkID, *clientID); err != nil {
			return IntakeResponse{}, fmt.Errorf("backfill assessments: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return IntakeResponse{}, fmt.Errorf("commit approve tx: %w", err)
	}
	return resp, nil
}

// Expired reports whether the link is past its expiry.
func (l FormLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
