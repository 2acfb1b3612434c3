// internal/dto/todo.go
package dto

import (
	"time"

	"github.com/todoflow-labs/todo-api/internal/model"
)

// CreateTodoRequest is the POST body.
type CreateTodoRequest struct {
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Completed   *bool   `json:"completed"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=low medium high"`
}

// UpdateTodoRequest is the PUT body. Absent fields are left untouched.
type UpdateTodoRequest struct {
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
	Completed   Optional[bool]   `json:"completed"`
	Priority    Optional[string] `json:"priority"`
}

type TodoResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    string     `json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type TodoListResponse struct {
	Items []TodoResponse `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
	Pages int            `json:"pages"`
}

func NewTodoResponse(t model.Todo) TodoResponse {
	return TodoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func NewTodoListResponse(p model.TodoPage) TodoListResponse {
	items := make([]TodoResponse, len(p.Items))
	for i := range p.Items {
		items[i] = NewTodoResponse(p.Items[i])
	}
	return TodoListResponse{
		Items: items,
		Total: p.Total,
		Page:  p.Page,
		Size:  p.Size,
		Pages: p.Pages,
	}
}
