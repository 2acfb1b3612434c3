package repository_test

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todoflow-labs/todo-api/internal/database"
	"github.com/todoflow-labs/todo-api/internal/model"
	"github.com/todoflow-labs/todo-api/internal/repository"
)

// tickClock advances one second on every read.
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestStore(t *testing.T) *repository.TodoStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.DriverSQLite, filepath.Join(t.TempDir(), "todos.db"), database.PoolOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = database.Migrate(ctx, db, database.DriverSQLite)
	require.NoError(t, err)

	clock := &tickClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return repository.NewTodoStore(db, repository.WithClock(clock.Now))
}

func mustCreate(t *testing.T, s *repository.TodoStore, in model.NewTodo) model.Todo {
	t.Helper()
	if in.Priority == "" {
		in.Priority = model.DefaultPriority
	}
	todo, err := s.Create(context.Background(), in)
	require.NoError(t, err)
	return todo
}

func ptr[T any](v T) *T { return &v }

func assertNotFound(t *testing.T, err error, id int64) {
	t.Helper()
	var nf *model.NotFoundError
	require.True(t, errors.As(err, &nf), "expected NotFoundError, got %v", err)
	assert.Equal(t, id, nf.ID)
}

func TestCreateAppliesDefaults(t *testing.T) {
	s := newTestStore(t)

	todo := mustCreate(t, s, model.NewTodo{Title: "Buy milk"})

	assert.Positive(t, todo.ID)
	assert.Equal(t, "Buy milk", todo.Title)
	assert.Nil(t, todo.Description)
	assert.False(t, todo.Completed)
	assert.Equal(t, model.PriorityMedium, todo.Priority)
	assert.False(t, todo.CreatedAt.IsZero())
	assert.Nil(t, todo.UpdatedAt)

	second := mustCreate(t, s, model.NewTodo{Title: "Walk dog", Description: ptr("around the block"), Priority: model.PriorityHigh})
	assert.Greater(t, second.ID, todo.ID)
	require.NotNil(t, second.Description)
	assert.Equal(t, "around the block", *second.Description)
	assert.Equal(t, model.PriorityHigh, second.Priority)
}

func TestCreateSurfacesConstraintViolation(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Create(context.Background(), model.NewTodo{Title: "x", Priority: "urgent"})
	var perr *model.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "create", perr.Op)
}

func TestGetByID(t *testing.T) {
	s := newTestStore(t)
	created := mustCreate(t, s, model.NewTodo{Title: "Read book"})

	got, err := s.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Title, got.Title)
	assert.True(t, created.CreatedAt.Equal(got.CreatedAt))

	_, err = s.GetByID(context.Background(), 9999)
	assertNotFound(t, err, 9999)
}

func TestListPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 23; i++ {
		mustCreate(t, s, model.NewTodo{Title: "todo"})
	}

	for _, size := range []int{1, 5, 10, 23, 100} {
		seen := 0
		var lastID int64
		page, err := s.List(ctx, model.ListFilter{Page: 1, Size: size})
		require.NoError(t, err)
		for p := 1; p <= page.Pages; p++ {
			got, err := s.List(ctx, model.ListFilter{Page: p, Size: size})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(got.Items), size)
			assert.Equal(t, 23, got.Total)
			assert.Equal(t, model.PageCount(23, size), got.Pages)
			for _, item := range got.Items {
				assert.Greater(t, item.ID, lastID, "ids ascend across pages")
				lastID = item.ID
			}
			seen += len(got.Items)
		}
		assert.Equal(t, 23, seen, "size=%d", size)
	}

	beyond, err := s.List(ctx, model.ListFilter{Page: 10, Size: 10})
	require.NoError(t, err)
	assert.NotNil(t, beyond.Items)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 23, beyond.Total)
	assert.Equal(t, 3, beyond.Pages)
	assert.Equal(t, 10, beyond.Page)
}

func TestListHugePageIsPastTheEnd(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		mustCreate(t, s, model.NewTodo{Title: "todo"})
	}

	huge := math.MaxInt/2 + 1
	page, err := s.List(context.Background(), model.ListFilter{Page: huge, Size: 4})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Pages)
	assert.Equal(t, huge, page.Page)
}

func TestListEmpty(t *testing.T) {
	s := newTestStore(t)

	page, err := s.List(context.Background(), model.ListFilter{Page: 1, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Total)
	assert.Zero(t, page.Pages)
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, model.NewTodo{Title: "a", Completed: true, Priority: model.PriorityHigh})
	mustCreate(t, s, model.NewTodo{Title: "b", Priority: model.PriorityHigh})
	mustCreate(t, s, model.NewTodo{Title: "c", Priority: model.PriorityLow})

	open, err := s.List(ctx, model.ListFilter{Page: 1, Size: 10, Completed: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, 2, open.Total)
	require.Len(t, open.Items, 2)
	assert.Equal(t, "b", open.Items[0].Title)
	assert.Equal(t, "c", open.Items[1].Title)

	high, err := s.List(ctx, model.ListFilter{Page: 1, Size: 10, Priority: ptr(model.PriorityHigh)})
	require.NoError(t, err)
	assert.Equal(t, 2, high.Total)

	both, err := s.List(ctx, model.ListFilter{Page: 1, Size: 10, Completed: ptr(false), Priority: ptr(model.PriorityHigh)})
	require.NoError(t, err)
	require.Equal(t, 1, both.Total)
	assert.Equal(t, "b", both.Items[0].Title)

	none, err := s.List(ctx, model.ListFilter{Page: 1, Size: 10, Completed: ptr(true), Priority: ptr(model.PriorityLow)})
	require.NoError(t, err)
	assert.Zero(t, none.Total)
	assert.Zero(t, none.Pages)
}

func TestUpdateByIDAppliesOnlyPresentFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := mustCreate(t, s, model.NewTodo{Title: "Buy milk", Description: ptr("2 litres"), Priority: model.PriorityHigh})

	updated, err := s.UpdateByID(ctx, created.ID, model.TodoPatch{Completed: ptr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.Priority, updated.Priority)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	require.NotNil(t, updated.UpdatedAt)
	assert.False(t, updated.UpdatedAt.Before(created.CreatedAt))

	again, err := s.UpdateByID(ctx, created.ID, model.TodoPatch{Title: ptr("Buy milk and bread"), Priority: ptr(model.PriorityLow)})
	require.NoError(t, err)
	assert.Equal(t, "Buy milk and bread", again.Title)
	assert.Equal(t, model.PriorityLow, again.Priority)
	assert.True(t, again.Completed, "completed left as previously set")
	require.NotNil(t, again.UpdatedAt)
	assert.False(t, again.UpdatedAt.Before(*updated.UpdatedAt))
}

func TestUpdateByIDClearsDescription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := mustCreate(t, s, model.NewTodo{Title: "x", Description: ptr("details")})

	updated, err := s.UpdateByID(ctx, created.ID, model.TodoPatch{SetDescription: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)
	assert.Equal(t, "x", updated.Title)
}

func TestUpdateByIDEmptyPatchStampsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	created := mustCreate(t, s, model.NewTodo{Title: "x"})

	updated, err := s.UpdateByID(context.Background(), created.ID, model.TodoPatch{})
	require.NoError(t, err)
	assert.NotNil(t, updated.UpdatedAt)
	assert.Equal(t, created.Title, updated.Title)
}

func TestCompleteByIDIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := mustCreate(t, s, model.NewTodo{Title: "x"})

	first, err := s.CompleteByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, first.Completed)
	require.NotNil(t, first.UpdatedAt)

	second, err := s.CompleteByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, second.Completed)
	require.NotNil(t, second.UpdatedAt)
	assert.True(t, second.UpdatedAt.After(*first.UpdatedAt))
}

func TestDeleteByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := mustCreate(t, s, model.NewTodo{Title: "x"})

	require.NoError(t, s.DeleteByID(ctx, created.ID))

	_, err := s.GetByID(ctx, created.ID)
	assertNotFound(t, err, created.ID)

	assertNotFound(t, s.DeleteByID(ctx, created.ID), created.ID)
}

func TestMissingIDIsNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateByID(ctx, 77, model.TodoPatch{Completed: ptr(true)})
	assertNotFound(t, err, 77)

	_, err = s.CompleteByID(ctx, 78)
	assertNotFound(t, err, 78)

	assertNotFound(t, s.DeleteByID(ctx, 79), 79)
}

func TestCancelledContextLeavesNoMutation(t *testing.T) {
	s := newTestStore(t)
	created := mustCreate(t, s, model.NewTodo{Title: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.CompleteByID(ctx, created.ID)
	var perr *model.PersistenceError
	require.True(t, errors.As(err, &perr))

	got, err := s.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Nil(t, got.UpdatedAt)
}
