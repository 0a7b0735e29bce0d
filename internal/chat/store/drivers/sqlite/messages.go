package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/pkg/idx"
)

type messagesRepo struct {
	q querier
}

const messageColumns = `id, room_id, user_id, username, text, message_type,
	created_at, updated_at, deleted_at, deleted_by`

func scanMessage(row interface{ Scan(...any) error }) (domain.Message, error) {
	var (
		m         domain.Message
		deletedAt sql.NullTime
		deletedBy sql.NullString
	)
	err := row.Scan(
		&m.ID, &m.RoomID, &m.UserID, &m.Username, &m.Text, &m.Type,
		&m.CreatedAt, &m.UpdatedAt, &deletedAt, &deletedBy,
	)
	if err != nil {
		return domain.Message{}, err
	}
	m.DeletedAt = mapNullTimePtr(deletedAt)
	m.DeletedBy = mapNullID(deletedBy)
	return m, nil
}

func (r *messagesRepo) CreateMessage(ctx context.Context, m domain.Message) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, user_id, username, text, message_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.RoomID, m.UserID, m.Username, m.Text, m.Type, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *messagesRepo) GetMessageByID(ctx context.Context, id idx.ID) (domain.Message, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = ? AND deleted_at IS NULL`, id)
	m, err := scanMessage(row)
	return m, mapNotFound(err)
}

func (r *messagesRepo) ListRoomMessages(ctx context.Context, roomID idx.ID, page, limit int) (domain.MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	var total int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE room_id = ? AND deleted_at IS NULL`, roomID).Scan(&total)
	if err != nil {
		return domain.MessagePage{}, err
	}

	offset := (page - 1) * limit
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE room_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, roomID, limit, offset)
	if err != nil {
		return domain.MessagePage{}, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return domain.MessagePage{}, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return domain.MessagePage{}, err
	}

	// The query walks newest-first to page correctly; flip each page so it
	// reads oldest-first for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return domain.MessagePage{
		Messages: messages,
		Page:     page,
		Limit:    limit,
		Total:    total,
		HasMore:  offset+len(messages) < total,
	}, nil
}

func (r *messagesRepo) SoftDeleteMessage(ctx context.Context, id, deletedBy idx.ID, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE messages
		SET deleted_at = ?, deleted_by = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		at, deletedBy, at, id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *messagesRepo) SoftDeleteRoomMessages(ctx context.Context, roomID, deletedBy idx.ID, at time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE messages
		SET deleted_at = ?, deleted_by = ?, updated_at = ?
		WHERE room_id = ? AND deleted_at IS NULL`,
		at, deletedBy, at, roomID,
	)
	return err
}
