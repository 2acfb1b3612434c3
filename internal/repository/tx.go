package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/todoflow-labs/todo-api/internal/model"
)

// inTx runs fn in a transaction scoped to a single repository call.
// The transaction is rolled back on every path that does not commit.
func (s *TodoStore) inTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// classify maps driver errors onto the domain taxonomy.
func classify(op string, id int64, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &model.NotFoundError{ID: id}
	}
	var nf *model.NotFoundError
	if errors.As(err, &nf) {
		return nf
	}
	return &model.PersistenceError{Op: op, Err: err}
}
