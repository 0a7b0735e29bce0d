package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/taproom/internal/chat/domain"
	"github.com/aussiebroadwan/taproom/pkg/idx"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, username, password_hash, role, refresh_token_hash,
	refresh_expires_at, created_at, updated_at, deleted_at, deleted_by`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u           domain.User
		refreshHash sql.NullString
		refreshExp  sql.NullTime
		deletedAt   sql.NullTime
		deletedBy   sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Role,
		&refreshHash, &refreshExp,
		&u.CreatedAt, &u.UpdatedAt, &deletedAt, &deletedBy,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.RefreshTokenHash = mapNullString(refreshHash)
	u.RefreshExpiresAt = mapNullTimePtr(refreshExp)
	u.DeletedAt = mapNullTimePtr(deletedAt)
	u.DeletedBy = mapNullID(deletedBy)
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt,
	)
	return mapUnique(err)
}

func (r *usersRepo) GetUserByID(ctx context.Context, id idx.ID) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = ? AND deleted_at IS NULL`, id)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = ? AND deleted_at IS NULL`, username)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) GetUserByRefreshTokenHash(ctx context.Context, hash string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE refresh_token_hash = ? AND deleted_at IS NULL`, hash)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) SetRefreshToken(ctx context.Context, userID idx.ID, hash string, expiresAt time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET refresh_token_hash = ?, refresh_expires_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND deleted_at IS NULL`,
		mapStringNull(hash), expiresAt, userID,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *usersRepo) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET refresh_token_hash = NULL, refresh_expires_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE refresh_token_hash IS NOT NULL AND refresh_expires_at <= ?`, now)
	return err
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) SoftDeleteUser(ctx context.Context, id, deletedBy idx.ID, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET deleted_at = ?, deleted_by = ?, refresh_token_hash = NULL,
		    refresh_expires_at = NULL, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		at, deletedBy, at, id,
	)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
