package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/pkg/idx"
)

type roomsRepo struct {
	q querier
}

const roomColumns = `id, name, description, is_default, max_users, voice_room_name,
	created_at, updated_at, deleted_at, deleted_by`

func scanRoom(row interface{ Scan(...any) error }) (domain.Room, error) {
	var (
		rm        domain.Room
		voiceName sql.NullString
		deletedAt sql.NullTime
		deletedBy sql.NullString
	)
	err := row.Scan(
		&rm.ID, &rm.Name, &rm.Description, &rm.IsDefault, &rm.MaxUsers,
		&voiceName, &rm.CreatedAt, &rm.UpdatedAt, &deletedAt, &deletedBy,
	)
	if err != nil {
		return domain.Room{}, err
	}
	rm.VoiceRoomName = mapNullString(voiceName)
	rm.DeletedAt = mapNullTimePtr(deletedAt)
	rm.DeletedBy = mapNullID(deletedBy)
	return rm, nil
}

func (r *roomsRepo) CreateRoom(ctx context.Context, rm domain.Room) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO rooms (id, name, description, is_default, max_users, voice_room_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rm.ID, rm.Name, rm.Description, rm.IsDefault, rm.MaxUsers,
		mapStringNull(rm.VoiceRoomName), rm.CreatedAt, rm.UpdatedAt,
	)
	return mapUnique(err)
}

func (r *roomsRepo) GetRoomByID(ctx context.Context, id idx.ID) (domain.Room, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE id = ? AND deleted_at IS NULL`, id)
	rm, err := scanRoom(row)
	return rm, mapNotFound(err)
}

func (r *roomsRepo) GetRoomByName(ctx context.Context, name string) (domain.Room, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE name = ? AND deleted_at IS NULL`, name)
	rm, err := scanRoom(row)
	return rm, mapNotFound(err)
}

func (r *roomsRepo) GetDefaultRoom(ctx context.Context) (domain.Room, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+roomColumns+`
		FROM rooms
		WHERE is_default = 1 AND deleted_at IS NULL
		ORDER BY created_at ASC
		LIMIT 1`)
	rm, err := scanRoom(row)
	return rm, mapNotFound(err)
}

func (r *roomsRepo) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT r.id, r.name, r.description, r.is_default, r.max_users, r.voice_room_name,
		       r.created_at, r.updated_at, r.deleted_at, r.deleted_by,
		       (SELECT COUNT(*) FROM room_members m WHERE m.room_id = r.id) AS active_users
		FROM rooms r
		WHERE r.deleted_at IS NULL
		ORDER BY r.is_default DESC, r.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []domain.RoomSummary
	for rows.Next() {
		var (
			rm        domain.Room
			voiceName sql.NullString
			deletedAt sql.NullTime
			deletedBy sql.NullString
			count     int
		)
		err := rows.Scan(
			&rm.ID, &rm.Name, &rm.Description, &rm.IsDefault, &rm.MaxUsers,
			&voiceName, &rm.CreatedAt, &rm.UpdatedAt, &deletedAt, &deletedBy,
			&count,
		)
		if err != nil {
			return nil, err
		}
		rm.VoiceRoomName = mapNullString(voiceName)
		rm.DeletedAt = mapNullTimePtr(deletedAt)
		rm.DeletedBy = mapNullID(deletedBy)
		summaries = append(summaries, domain.RoomSummary{Room: rm, ActiveUserCount: count})
	}
	return summaries, rows.Err()
}

func (r *roomsRepo) UpdateRoom(ctx context.Context, id idx.ID, name, description string, maxUsers int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE rooms
		SET name = ?, description = ?, max_users = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		name, description, maxUsers, id,
	)
	if err != nil {
		return mapUnique(err)
	}
	return requireAffected(res)
}

func (r *roomsRepo) SoftDeleteRoom(ctx context.Context, id, deletedBy idx.ID, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE rooms
		SET deleted_at = ?, deleted_by = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		at, deletedBy, at, id,
	)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	// Membership rows have no soft-delete column; a dead room has no members.
	_, err = r.q.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = ?`, id)
	return err
}

func (r *roomsRepo) ClaimVoiceRoomName(ctx context.Context, id idx.ID, name string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE rooms
		SET voice_room_name = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL AND voice_room_name IS NULL`,
		name, id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *roomsRepo) ListActiveUsers(ctx context.Context, roomID idx.ID) ([]domain.ActiveUser, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT room_id, user_id, username, joined_at, voice_active, voice_participant_id
		FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.ActiveUser
	for rows.Next() {
		var (
			au            domain.ActiveUser
			participantID sql.NullString
		)
		err := rows.Scan(&au.RoomID, &au.UserID, &au.Username, &au.JoinedAt, &au.VoiceActive, &participantID)
		if err != nil {
			return nil, err
		}
		au.VoiceParticipantID = mapNullString(participantID)
		members = append(members, au)
	}
	return members, rows.Err()
}

func (r *roomsRepo) CountActiveUsers(ctx context.Context, roomID idx.ID) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM room_members WHERE room_id = ?`, roomID).Scan(&count)
	return count, err
}

func (r *roomsRepo) HasActiveUser(ctx context.Context, roomID, userID idx.ID) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM room_members WHERE room_id = ? AND user_id = ?`,
		roomID, userID).Scan(&count)
	return count > 0, err
}

func (r *roomsRepo) AddActiveUser(ctx context.Context, au domain.ActiveUser) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO room_members (room_id, user_id, username, joined_at, voice_active, voice_participant_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		au.RoomID, au.UserID, au.Username, au.JoinedAt, au.VoiceActive,
		mapStringNull(au.VoiceParticipantID),
	)
	return mapUnique(err)
}

func (r *roomsRepo) RemoveActiveUser(ctx context.Context, roomID, userID idx.ID) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM room_members WHERE room_id = ? AND user_id = ?`,
		roomID, userID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *roomsRepo) SetVoiceParticipant(ctx context.Context, roomID, userID idx.ID, participantID string, active bool) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE room_members
		SET voice_active = ?, voice_participant_id = ?
		WHERE room_id = ? AND user_id = ?`,
		active, mapStringNull(participantID), roomID, userID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
