package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/taproom/internal/chat/store"
)

// storeTx scopes the repositories to one *sql.Tx.
type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) Users() store.Users       { return &usersRepo{q: t.tx} }
func (t *storeTx) Rooms() store.Rooms       { return &roomsRepo{q: t.tx} }
func (t *storeTx) Messages() store.Messages { return &messagesRepo{q: t.tx} }
func (t *storeTx) Invites() store.Invites   { return &invitesRepo{q: t.tx} }

func (t *storeTx) Commit() error { return t.tx.Commit() }

func (t *storeTx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// Nested transactions are not supported; these exist only to satisfy the
// store.Store interface embedded in store.Tx.

func (t *storeTx) ApplyMigrations() error {
	return errors.New("sqlite: cannot migrate inside a transaction")
}

func (t *storeTx) Tx(ctx context.Context) (store.Tx, error) {
	return nil, errors.New("sqlite: nested transactions are not supported")
}

func (t *storeTx) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Already inside a transaction; run against it directly.
	return fn(t)
}

func (t *storeTx) Close() error { return nil }

func (t *storeTx) Ping(ctx context.Context) error { return nil }
