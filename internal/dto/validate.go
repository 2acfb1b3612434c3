package dto

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/todoflow-labs/todo-api/internal/model"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// Validate trims the title, checks every field and fills in defaults.
func (r CreateTodoRequest) Validate() (model.NewTodo, error) {
	r.Title = strings.TrimSpace(r.Title)
	if err := validate.Struct(r); err != nil {
		return model.NewTodo{}, toValidationError(err)
	}

	out := model.NewTodo{
		Title:       r.Title,
		Description: r.Description,
		Priority:    model.DefaultPriority,
	}
	if r.Completed != nil {
		out.Completed = *r.Completed
	}
	if r.Priority != nil {
		p, err := model.ParsePriority(*r.Priority)
		if err != nil {
			return model.NewTodo{}, model.NewValidationError("priority", err.Error())
		}
		out.Priority = p
	}
	return out, nil
}

// Validate converts the present fields into a patch. Only description may be null.
func (r UpdateTodoRequest) Validate() (model.TodoPatch, error) {
	var (
		patch model.TodoPatch
		verr  model.ValidationError
	)

	if r.Title.Set {
		title := strings.TrimSpace(r.Title.Value)
		switch {
		case r.Title.Null:
			verr.Add("title", "must not be null")
		case validate.Var(title, "required") != nil:
			verr.Add("title", "must not be blank")
		case validate.Var(title, "max=255") != nil:
			verr.Add("title", "must be at most 255 characters")
		default:
			patch.Title = &title
		}
	}

	if r.Description.Set {
		if !r.Description.Null && validate.Var(r.Description.Value, "max=2000") != nil {
			verr.Add("description", "must be at most 2000 characters")
		} else {
			patch.SetDescription = true
			if !r.Description.Null {
				desc := r.Description.Value
				patch.Description = &desc
			}
		}
	}

	if r.Completed.Set {
		if r.Completed.Null {
			verr.Add("completed", "must not be null")
		} else {
			done := r.Completed.Value
			patch.Completed = &done
		}
	}

	if r.Priority.Set {
		if r.Priority.Null {
			verr.Add("priority", "must not be null")
		} else if p, err := model.ParsePriority(r.Priority.Value); err != nil {
			verr.Add("priority", err.Error())
		} else {
			patch.Priority = &p
		}
	}

	if len(verr.Fields) > 0 {
		return model.TodoPatch{}, &verr
	}
	return patch, nil
}

// ListQuery holds the list query string after type conversion.
type ListQuery struct {
	Page      int     `query:"page" validate:"min=1"`
	Size      int     `query:"size" validate:"min=1,max=100"`
	Completed *bool   `query:"completed"`
	Priority  *string `query:"priority" validate:"omitempty,oneof=low medium high"`
}

// ParseListQuery reads page, size, completed and priority from q.
func ParseListQuery(q url.Values) (model.ListFilter, error) {
	lq := ListQuery{Page: DefaultPage, Size: DefaultPageSize}
	var verr model.ValidationError

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add("page", "must be an integer")
		}
		lq.Page = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add("size", "must be an integer")
		}
		lq.Size = n
	}
	if raw := q.Get("completed"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			verr.Add("completed", "must be a boolean")
		} else {
			lq.Completed = &b
		}
	}
	if raw := q.Get("priority"); raw != "" {
		lq.Priority = &raw
	}
	if len(verr.Fields) > 0 {
		return model.ListFilter{}, &verr
	}

	if err := validate.Struct(lq); err != nil {
		return model.ListFilter{}, toValidationError(err)
	}

	f := model.ListFilter{Page: lq.Page, Size: lq.Size, Completed: lq.Completed}
	if lq.Priority != nil {
		p, err := model.ParsePriority(*lq.Priority)
		if err != nil {
			return model.ListFilter{}, model.NewValidationError("priority", err.Error())
		}
		f.Priority = &p
	}
	return f, nil
}

// ParseID reads a todo id from a path segment.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return model.NewValidationError("body", err.Error())
	}
	verr := &model.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	str := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		if str {
			return "must not be blank"
		}
		return "is required"
	case "max":
		if str {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "min":
		if str {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return "must be one of " + strings.Join(strings.Fields(fe.Param()), ", ")
	}
	return "is invalid"
}
