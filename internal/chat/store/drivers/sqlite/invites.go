package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/pkg/idx"
)

type invitesRepo struct {
	q querier
}

const inviteColumns = `id, code, created_by, created_by_username, expires_at,
	max_uses, current_uses, is_used, used_by, used_by_username, used_at,
	created_at, updated_at, deleted_at, deleted_by`

func scanInvite(row interface{ Scan(...any) error }) (domain.InviteCode, error) {
	var (
		c          domain.InviteCode
		usedBy     sql.NullString
		usedByName sql.NullString
		usedAt     sql.NullTime
		deletedAt  sql.NullTime
		deletedBy  sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.Code, &c.CreatedBy, &c.CreatedByUsername, &c.ExpiresAt,
		&c.MaxUses, &c.CurrentUses, &c.IsUsed, &usedBy, &usedByName, &usedAt,
		&c.CreatedAt, &c.UpdatedAt, &deletedAt, &deletedBy,
	)
	if err != nil {
		return domain.InviteCode{}, err
	}
	c.UsedBy = mapNullID(usedBy)
	c.UsedByUsername = mapNullString(usedByName)
	c.UsedAt = mapNullTimePtr(usedAt)
	c.DeletedAt = mapNullTimePtr(deletedAt)
	c.DeletedBy = mapNullID(deletedBy)
	return c, nil
}

func (r *invitesRepo) CreateInviteCode(ctx context.Context, c domain.InviteCode) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO invite_codes (id, code, created_by, created_by_username,
			expires_at, max_uses, current_uses, is_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Code, c.CreatedBy, c.CreatedByUsername,
		c.ExpiresAt, c.MaxUses, c.CurrentUses, c.IsUsed, c.CreatedAt, c.UpdatedAt,
	)
	return mapUnique(err)
}

func (r *invitesRepo) GetInviteByCode(ctx context.Context, code string) (domain.InviteCode, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+inviteColumns+`
		FROM invite_codes
		WHERE code = ? AND deleted_at IS NULL`, code)
	c, err := scanInvite(row)
	return c, mapNotFound(err)
}

func (r *invitesRepo) ListInviteCodes(ctx context.Context) ([]domain.InviteCode, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+inviteColumns+`
		FROM invite_codes
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []domain.InviteCode
	for rows.Next() {
		c, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

func (r *invitesRepo) ConsumeInviteCode(ctx context.Context, code string, consumer idx.ID, consumerName string, now time.Time) (bool, error) {
	// The WHERE clause is the whole availability check; a concurrent consumer
	// that races past the last slot simply affects zero rows.
	res, err := r.q.ExecContext(ctx, `
		UPDATE invite_codes
		SET current_uses = current_uses + 1,
		    is_used = CASE WHEN current_uses + 1 >= max_uses THEN 1 ELSE 0 END,
		    used_by = ?, used_by_username = ?, used_at = ?, updated_at = ?
		WHERE code = ? AND deleted_at IS NULL
		  AND expires_at > ?
		  AND current_uses < max_uses`,
		consumer, consumerName, now, now, code, now,
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

func (r *invitesRepo) SoftDeleteInviteCode(ctx context.Context, code string, deletedBy idx.ID, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE invite_codes
		SET deleted_at = ?, deleted_by = ?, updated_at = ?
		WHERE code = ? AND deleted_at IS NULL`,
		at, deletedBy, at, code,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *invitesRepo) DeleteExpiredInviteCodes(ctx context.Context, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE invite_codes
		SET deleted_at = ?, updated_at = ?
		WHERE deleted_at IS NULL AND expires_at <= ?`,
		now, now, now,
	)
	return err
}
