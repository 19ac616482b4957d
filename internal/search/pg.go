package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher with ILIKE matching as a fallback when
// Meilisearch is unavailable.
type PgSearch struct {
	db *sql.DB
}

func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	pattern := "%" + q.Text + "%"
	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultClient {
		subQueries = append(subQueries, `
			SELECT 'client'::text AS type, c.id::text,
				CONCAT(c.first_name, ' ', c.last_name) AS title,
				COALESCE(c.email, '') AS snippet,
				c.id::text AS client_id
			FROM clients c
			WHERE c.therapist_id = $1
			  AND (c.first_name ILIKE $2 OR c.last_name ILIKE $2 OR c.email ILIKE $2)`)
	}

	if q.FilterType == "" || q.FilterType == ResultSession {
		subQueries = append(subQueries, `
			SELECT 'session'::text AS type, se.id::text,
				se.session_date AS title,
				COALESCE(NULLIF(se.summary, ''), LEFT(COALESCE(se.notes, ''), 120)) AS snippet,
				se.client_id::text
			FROM sessions se
			WHERE se.therapist_id = $1
			  AND (se.notes ILIKE $2 OR se.summary ILIKE $2)`)
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, client_id
		FROM (%s) sub
		ORDER BY type ASC, id DESC
		LIMIT %d OFFSET %d`, union, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, q.TherapistID, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg search count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, q.TherapistID, pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("pg search query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.ClientID); err != nil {
			return nil, 0, fmt.Errorf("pg search scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}
