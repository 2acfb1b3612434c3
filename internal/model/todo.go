package model

import (
	"fmt"
	"math"
	"time"
)

// Priority is the closed set of todo priorities.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"

	DefaultPriority = PriorityMedium
)

// Priorities lists every valid priority in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority returns the Priority for s. Matching is exact.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("invalid priority %q: must be one of low, medium, high", s)
}

// Todo is the stored record. UpdatedAt stays nil until the first mutation.
type Todo struct {
	ID          int64      `db:"id"`
	Title       string     `db:"title"`
	Description *string    `db:"description"`
	Completed   bool       `db:"completed"`
	Priority    Priority   `db:"priority"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   *time.Time `db:"updated_at"`
}

// NewTodo is a validated create request ready for insertion.
type NewTodo struct {
	Title       string
	Description *string
	Completed   bool
	Priority    Priority
}

// TodoPatch carries only the fields a caller explicitly supplied.
// SetDescription with a nil Description clears the column.
type TodoPatch struct {
	Title          *string
	SetDescription bool
	Description    *string
	Completed      *bool
	Priority       *Priority
}

// Empty reports whether the patch changes no column.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && !p.SetDescription && p.Completed == nil && p.Priority == nil
}

// ListFilter selects one page of todos. Nil filters match everything.
type ListFilter struct {
	Page      int
	Size      int
	Completed *bool
	Priority  *Priority
}

// Offset is the number of rows skipped before the requested page.
// It saturates at math.MaxInt instead of overflowing for huge pages.
func (f ListFilter) Offset() int {
	if f.Page <= 1 || f.Size <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Size {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Size
}

// TodoPage is one page of a filtered listing.
type TodoPage struct {
	Items []Todo
	Total int
	Page  int
	Size  int
	Pages int
}

// PageCount returns ceil(total/size), or 0 when there is nothing to page.
func PageCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
