package store

import (
	"context"
	"database/sql"
	"fmt"
)

const sessionColumns = `id, client_id, therapist_id, session_date, COALESCE(session_time, ''),
	duration_minutes, status, COALESCE(notes, ''), COALESCE(summary, ''),
	COALESCE(life_domains, ''), COALESCE(emotional_themes, ''), COALESCE(interventions, ''),
	COALESCE(ai_assisted_data, ''),
	COALESCE(overall_progress, ''), COALESCE(session_summary, ''), COALESCE(client_insights, ''),
	COALESCE(homework_assigned, ''), COALESCE(clinical_observations, ''), COALESCE(risk_assessment, ''),
	created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var (
		item                                        Session
		lifeDomains, emotionalThemes, interventions string
	)
	err := row.Scan(&item.ID, &item.ClientID, &item.TherapistID, &item.SessionDate, &item.SessionTime,
		&item.DurationMinutes, &item.Status, &item.Notes, &item.Summary,
		&lifeDomains, &emotionalThemes, &interventions,
		&item.AIAssistedData,
		&item.OverallProgress, &item.SessionSummary, &item.ClientInsights,
		&item.HomeworkAssigned, &item.ClinicalObservations, &item.RiskAssessment,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Session{}, err
	}
	item.LifeDomains = decodeObject(lifeDomains)
	item.EmotionalThemes = decodeObject(emotionalThemes)
	item.Interventions = decodeList(interventions)
	return item, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, therapistID int64, clientID int64) ([]Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE therapist_id=$1 AND ($2=0 OR client_id=$2)
		ORDER BY session_date DESC, created_at DESC
	`, sessionColumns)
	rows, err := s.db.QueryContext(ctx, query, therapistID, clientID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	items := make([]Session, 0)
	for rows.Next() {
		item, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return items, nil
}

// ListTodaySessions returns the day's sessions with client names. Rows
// without a time sort last; ties break on creation order.
func (s *PostgresStore) ListTodaySessions(ctx context.Context, therapistID int64, date string) ([]TodaySession, error) {
	const query = `
		SELECT se.id, se.client_id, se.therapist_id, se.session_date, COALESCE(se.session_time, ''),
			se.duration_minutes, se.status, COALESCE(se.notes, ''), COALESCE(se.summary, ''),
			COALESCE(se.life_domains, ''), COALESCE(se.emotional_themes, ''), COALESCE(se.interventions, ''),
			COALESCE(se.ai_assisted_data, ''),
			COALESCE(se.overall_progress, ''), COALESCE(se.session_summary, ''), COALESCE(se.client_insights, ''),
			COALESCE(se.homework_assigned, ''), COALESCE(se.clinical_observations, ''), COALESCE(se.risk_assessment, ''),
			se.created_at, se.updated_at,
			c.first_name, c.last_name
		FROM sessions se
		JOIN clients c ON c.id = se.client_id
		WHERE se.therapist_id=$1 AND se.session_date=$2
		ORDER BY se.session_time IS NULL, se.session_time ASC, se.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, therapistID, date)
	if err != nil {
		return nil, fmt.Errorf("list today sessions: %w", err)
	}
	defer rows.Close()

	items := make([]TodaySession, 0)
	for rows.Next() {
		var (
			item                                        TodaySession
			lifeDomains, emotionalThemes, interventions string
		)
		err := rows.Scan(&item.ID, &item.ClientID, &item.TherapistID, &item.SessionDate, &item.SessionTime,
			&item.DurationMinutes, &item.Status, &item.Notes, &item.Summary,
			&lifeDomains, &emotionalThemes, &interventions,
			&item.AIAssistedData,
			&item.OverallProgress, &item.SessionSummary, &item.ClientInsights,
			&item.HomeworkAssigned, &item.ClinicalObservations, &item.RiskAssessment,
			&item.CreatedAt, &item.UpdatedAt,
			&item.ClientFirstName, &item.ClientLastName)
		if err != nil {
			return nil, fmt.Errorf("scan today session: %w", err)
		}
		item.LifeDomains = decodeObject(lifeDomains)
		item.EmotionalThemes = decodeObject(emotionalThemes)
		item.Interventions = decodeList(interventions)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate today sessions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, therapistID, sessionID int64) (Session, error) {
	query := fmt.Sprintf(`SELECT %s FROM sessions WHERE id=$1 AND therapist_id=$2`, sessionColumns)
	return scanSession(s.db.QueryRowContext(ctx, query, sessionID, therapistID))
}

// CreateSession inserts through a select on the client row, so the session
// inherits the client's therapist and a foreign client yields no rows.
func (s *PostgresStore) CreateSession(ctx context.Context, therapistID int64, item Session) (Session, error) {
	query := fmt.Sprintf(`
		INSERT INTO sessions (client_id, therapist_id, session_date, session_time, duration_minutes,
			status, notes, summary, life_domains, emotional_themes, interventions, ai_assisted_data,
			overall_progress, session_summary, client_insights, homework_assigned,
			clinical_observations, risk_assessment)
		SELECT c.id, c.therapist_id, $3, NULLIF($4, ''), $5,
			COALESCE(NULLIF($6, ''), 'completed'), NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, NULLIF($12, ''),
			NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, ''), NULLIF($16, ''),
			NULLIF($17, ''), NULLIF($18, '')
		FROM clients c
		WHERE c.id=$1 AND c.therapist_id=$2
		RETURNING %s
	`, sessionColumns)
	created, err := scanSession(s.db.QueryRowContext(ctx, query,
		item.ClientID, therapistID, item.SessionDate, item.SessionTime, item.DurationMinutes,
		item.Status, item.Notes, item.Summary,
		encodeObject(item.LifeDomains), encodeObject(item.EmotionalThemes), encodeList(item.Interventions),
		item.AIAssistedData,
		item.OverallProgress, item.SessionSummary, item.ClientInsights, item.HomeworkAssigned,
		item.ClinicalObservations, item.RiskAssessment))
	if err != nil {
		return Session{}, err
	}
	return created, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, therapistID, sessionID int64, patch SessionPatch) (Session, error) {
	var b updateBuilder
	if patch.SessionDate != nil {
		b.set("session_date", *patch.SessionDate)
	}
	if patch.SessionTime != nil {
		b.set("session_time", *patch.SessionTime)
	}
	if patch.DurationMinutes != nil {
		b.set("duration_minutes", *patch.DurationMinutes)
	}
	if patch.Status != nil {
		b.set("status", *patch.Status)
	}
	if patch.Notes != nil {
		b.set("notes", *patch.Notes)
	}
	if patch.Summary != nil {
		b.set("summary", *patch.Summary)
	}
	if patch.LifeDomains != nil {
		b.set("life_domains", encodeObject(patch.LifeDomains))
	}
	if patch.EmotionalThemes != nil {
		b.set("emotional_themes", encodeObject(patch.EmotionalThemes))
	}
	if patch.Interventions != nil {
		b.set("interventions", encodeList(patch.Interventions))
	}
	if patch.AIAssistedData != nil {
		b.set("ai_assisted_data", *patch.AIAssistedData)
	}
	if patch.OverallProgress != nil {
		b.set("overall_progress", *patch.OverallProgress)
	}
	if patch.SessionSummary != nil {
		b.set("session_summary", *patch.SessionSummary)
	}
	if patch.ClientInsights != nil {
		b.set("client_insights", *patch.ClientInsights)
	}
	if patch.HomeworkAssigned != nil {
		b.set("homework_assigned", *patch.HomeworkAssigned)
	}
	if patch.ClinicalObservations != nil {
		b.set("clinical_observations", *patch.ClinicalObservations)
	}
	if patch.RiskAssessment != nil {
		b.set("risk_assessment", *patch.RiskAssessment)
	}
	if b.empty() {
		return s.GetSession(ctx, therapistID, sessionID)
	}

	query := fmt.Sprintf(`
		UPDATE sessions SET %s, updated_at=NOW()
		WHERE id=$%d AND therapist_id=$%d
		RETURNING %s
	`, b.clause(), b.next(), b.next()+1, sessionColumns)
	args := append(b.args, sessionID, therapistID)
	return scanSession(s.db.QueryRowContext(ctx, query, args...))
}

func (s *PostgresStore) CancelSession(ctx context.Context, therapistID, sessionID int64) (Session, error) {
	query := fmt.Sprintf(`
		UPDATE sessions SET status='cancelled', updated_at=NOW()
		WHERE id=$1 AND therapist_id=$2
		RETURNING %s
	`, sessionColumns)
	return scanSession(s.db.QueryRowContext(ctx, query, sessionID, therapistID))
}

func (s *PostgresStore) DeleteSession(ctx context.Context, therapistID, sessionID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1 AND therapist_id=$2`, sessionID, therapistID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CompletedSessionsAfter counts the client's completed sessions with a date
// strictly after the given one. Dates are ISO strings, so lexical order is
// chronological order.
func (s *PostgresStore) CompletedSessionsAfter(ctx context.Context, clientID int64, date string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE client_id=$1 AND status='completed' AND session_date > $2
	`, clientID, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sessions after: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListRecentCompletedSessions(ctx context.Context, therapistID, clientID int64, limit int) ([]Session, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE client_id=$1 AND therapist_id=$2 AND status='completed'
		ORDER BY session_date DESC, created_at DESC
		LIMIT $3
	`, sessionColumns)
	rows, err := s.db.QueryContext(ctx, query, clientID, therapistID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent sessions: %w", err)
	}
	defer rows.Close()

	items := make([]Session, 0)
	for rows.Next() {
		item, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent session: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent sessions: %w", err)
	}
	return items, nil
}
