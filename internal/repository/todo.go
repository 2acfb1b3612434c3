package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/todoflow-labs/todo-api/internal/model"
)

const todoColumns = `id, title, description, completed, priority, created_at, updated_at`

// TodoStore owns the authoritative todo records.
type TodoStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type Option func(*TodoStore)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *TodoStore) { s.now = now }
}

func NewTodoStore(db *sqlx.DB, opts ...Option) *TodoStore {
	s := &TodoStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// readOnly marks read transactions on drivers that honour the flag.
func (s *TodoStore) readOnly() *sql.TxOptions {
	if s.db.DriverName() == "pgx" {
		return &sql.TxOptions{ReadOnly: true}
	}
	return nil
}

func (s *TodoStore) Create(ctx context.Context, in model.NewTodo) (model.Todo, error) {
	var out model.Todo
	err := s.inTx(ctx, nil, func(tx *sqlx.Tx) error {
		var id int64
		query := tx.Rebind(`
			INSERT INTO todos (title, description, completed, priority, created_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id`)
		if err := tx.GetContext(ctx, &id, query,
			in.Title, in.Description, in.Completed, string(in.Priority), s.now()); err != nil {
			return err
		}
		return getTodo(ctx, tx, id, &out)
	})
	if err != nil {
		return model.Todo{}, &model.PersistenceError{Op: "create", Err: err}
	}
	return out, nil
}

func (s *TodoStore) List(ctx context.Context, f model.ListFilter) (model.TodoPage, error) {
	var (
		conds []string
		args  []any
	)
	if f.Completed != nil {
		conds = append(conds, "completed = ?")
		args = append(args, *f.Completed)
	}
	if f.Priority != nil {
		conds = append(conds, "priority = ?")
		args = append(args, string(*f.Priority))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	page := model.TodoPage{Items: []model.Todo{}, Page: f.Page, Size: f.Size}
	err := s.inTx(ctx, s.readOnly(), func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &page.Total, tx.Rebind("SELECT COUNT(*) FROM todos"+where), args...); err != nil {
			return err
		}
		// past the last page; compared in pages so huge page numbers cannot overflow
		if f.Page > model.PageCount(page.Total, f.Size) {
			return nil
		}
		query := tx.Rebind("SELECT " + todoColumns + " FROM todos" + where + " ORDER BY id ASC LIMIT ? OFFSET ?")
		return tx.SelectContext(ctx, &page.Items, query, append(args, f.Size, f.Offset())...)
	})
	if err != nil {
		return model.TodoPage{}, &model.PersistenceError{Op: "list", Err: err}
	}
	page.Pages = model.PageCount(page.Total, f.Size)
	return page, nil
}

func (s *TodoStore) GetByID(ctx context.Context, id int64) (model.Todo, error) {
	var out model.Todo
	err := s.inTx(ctx, s.readOnly(), func(tx *sqlx.Tx) error {
		return getTodo(ctx, tx, id, &out)
	})
	if err != nil {
		return model.Todo{}, classify("get", id, err)
	}
	return out, nil
}

// UpdateByID writes only the fields present in patch and always stamps updated_at.
func (s *TodoStore) UpdateByID(ctx context.Context, id int64, patch model.TodoPatch) (model.Todo, error) {
	var (
		sets []string
		args []any
	)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.SetDescription {
		sets = append(sets, "description = ?")
		args = append(args, patch.Description)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, s.now(), id)

	return s.updateAndRead(ctx, "update", id, strings.Join(sets, ", "), args)
}

// CompleteByID marks the todo done. Completing a done todo still succeeds.
func (s *TodoStore) CompleteByID(ctx context.Context, id int64) (model.Todo, error) {
	return s.updateAndRead(ctx, "complete", id, "completed = ?, updated_at = ?", []any{true, s.now(), id})
}

func (s *TodoStore) DeleteByID(ctx context.Context, id int64) error {
	err := s.inTx(ctx, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM todos WHERE id = ?"), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &model.NotFoundError{ID: id}
		}
		return nil
	})
	return classify("delete", id, err)
}

// updateAndRead applies set to one row and reads the row back in the same
// transaction, so the result reflects exactly what was committed.
func (s *TodoStore) updateAndRead(ctx context.Context, op string, id int64, set string, args []any) (model.Todo, error) {
	var out model.Todo
	err := s.inTx(ctx, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind("UPDATE todos SET "+set+" WHERE id = ?"), args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &model.NotFoundError{ID: id}
		}
		return getTodo(ctx, tx, id, &out)
	})
	if err != nil {
		return model.Todo{}, classify(op, id, err)
	}
	return out, nil
}

func getTodo(ctx context.Context, tx *sqlx.Tx, id int64, dest *model.Todo) error {
	return tx.GetContext(ctx, dest, tx.Rebind("SELECT "+todoColumns+" FROM todos WHERE id = ?"), id)
}
