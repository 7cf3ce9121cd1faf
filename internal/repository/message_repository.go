package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"designlens/internal/domain/attachment"
	"designlens/internal/domain/message"
	lens_errors "designlens/pkg/errors"

	"github.com/jackc/pgx/v5"
)

type PostgresMessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

// LoadMessages returns the session history in creation order with attachment snapshots
// filled in for user messages.
func (r *PostgresMessageRepository) LoadMessages(ctx context.Context, sessionID string) ([]message.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id::text, session_id::text, role, content, template_id, is_error, created_at
		   FROM chat_messages
		  WHERE session_id = $1
		  ORDER BY created_at ASC, seq ASC`, sessionID)
	if err != nil {
		return nil, mapErr(err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (message.Message, error) {
		var m message.Message
		var role string
		err := row.Scan(&m.ID, &m.SessionID, &role, &m.Content, &m.TemplateID, &m.IsError, &m.CreatedAt)
		m.Role = message.Role(role)
		return m, err
	})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return msgs, nil
	}

	index := make(map[string]int, len(msgs))
	ids := make([]string, 0, len(msgs))
	for i, m := range msgs {
		if m.Role == message.RoleUser {
			index[m.ID] = i
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return msgs, nil
	}

	attRows, err := r.db.Query(ctx,
		`SELECT message_id::text, payload
		   FROM message_attachments
		  WHERE message_id = ANY($1::uuid[])
		  ORDER BY message_id, position`, ids)
	if err != nil {
		return nil, mapErr(err)
	}
	defer attRows.Close()
	for attRows.Next() {
		var (
			messageID string
			payload   []byte
		)
		if err := attRows.Scan(&messageID, &payload); err != nil {
			return nil, err
		}
		var a attachment.Attachment
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, fmt.Errorf("decode attachment of message %s: %w", messageID, err)
		}
		if i, ok := index[messageID]; ok {
			msgs[i].Attachments = append(msgs[i].Attachments, a)
		}
	}
	return msgs, attRows.Err()
}

func (r *PostgresMessageRepository) SaveMessage(ctx context.Context, m message.Message) error {
	if !m.Role.Valid() {
		return lens_errors.NewValidationError("role", "unknown message role")
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, template_id, is_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.SessionID, string(m.Role), m.Content, m.TemplateID, m.IsError, m.CreatedAt)
	return mapErr(err)
}

// SaveMessageAttachments replaces the stored snapshot of a message in one transaction.
func (r *PostgresMessageRepository) SaveMessageAttachments(ctx context.Context, messageID string, atts []attachment.Attachment) error {
	return WithTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.Exec(ctx, `DELETE FROM message_attachments WHERE message_id = $1`, messageID); err != nil {
			return mapErr(err)
		}
		for i, a := range atts {
			payload, err := json.Marshal(a)
			if err != nil {
				return fmt.Errorf("encode attachment %s: %w", a.ID, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO message_attachments (message_id, position, attachment_id, kind, payload)
				 VALUES ($1, $2, $3, $4, $5)`,
				messageID, i, a.ID, string(a.Kind), payload); err != nil {
				return mapErr(err)
			}
		}
		return nil
	})
}
