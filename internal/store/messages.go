package store

import (
	"context"
	"fmt"
)

const messageColumns = `id, sender_id, sender_type, recipient_id, recipient_type, content,
	message_type, COALESCE(attachments, ''), read_at, created_at`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var (
		m           Message
		attachments string
	)
	err := row.Scan(&m.ID, &m.SenderID, &m.SenderType, &m.RecipientID, &m.RecipientType,
		&m.Content, &m.MessageType, &attachments, &m.ReadAt, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	m.Attachments = decodeList(attachments)
	return m, nil
}

// ListThread returns both directions of the conversation between the
// therapist and the other party, oldest first.
func (s *PostgresStore) ListThread(ctx context.Context, therapistID, otherPartyID int64, otherPartyType string) ([]Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM messages
		WHERE (sender_id=$1 AND sender_type='therapist' AND recipient_id=$2 AND recipient_type=$3)
		   OR (sender_id=$2 AND sender_type=$3 AND recipient_id=$1 AND recipient_type='therapist')
		ORDER BY created_at ASC
	`, messageColumns)
	rows, err := s.db.QueryContext(ctx, query, therapistID, otherPartyID, otherPartyType)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		item, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m Message) (Message, error) {
	query := fmt.Sprintf(`
		INSERT INTO messages (sender_id, sender_type, recipient_id, recipient_type, content, message_type, attachments)
		VALUES ($1, $2, $3, $4, $5, COALESCE(NULLIF($6, ''), 'text'), $7)
		RETURNING %s
	`, messageColumns)
	created, err := scanMessage(s.db.QueryRowContext(ctx, query,
		m.SenderID, m.SenderType, m.RecipientID, m.RecipientType, m.Content, m.MessageType,
		encodeList(m.Attachments)))
	if err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	return created, nil
}

// MarkMessageRead stamps read_at once. Only the recipient can mark; anyone
// else sees no rows, same as a missing message.
func (s *PostgresStore) MarkMessageRead(ctx context.Context, therapistID, messageID int64) (Message, error) {
	query := fmt.Sprintf(`
		UPDATE messages SET read_at=COALESCE(read_at, NOW())
		WHERE id=$1 AND recipient_id=$2 AND recipient_type='therapist'
		RETURNING %s
	`, messageColumns)
	return scanMessage(s.db.QueryRowContext(ctx, query, messageID, therapistID))
}

func (s *PostgresStore) UnreadCount(ctx context.Context, therapistID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE recipient_id=$1 AND recipient_type='therapist' AND read_at IS NULL
	`, therapistID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}
