package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidField marks a patch or create payload carrying a value outside
// the allowed domain. Handlers map it to a validation failure.
var ErrInvalidField = errors.New("invalid field")

// Priority ranks a todo by urgency.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Todo is a single task record owned by one user.
type Todo struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	Category    string     `json:"category,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Order       int        `json:"order"`
	UserID      string     `json:"userId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTodo carries the caller supplied fields for a create. The store fills
// in id, order, owner and timestamps.
type NewTodo struct {
	Title       string
	Description string
	Priority    Priority
	Category    string
	DueDate     *time.Time
}

// TodoPatch is a field level partial update. Nil pointers leave the target
// field untouched; a pointer to an empty string clears the optional field
// it targets.
type TodoPatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Category    *string   `json:"category,omitempty"`
	DueDate     *string   `json:"dueDate,omitempty"`
	Order       *int      `json:"order,omitempty"`
}

// UnmarshalJSON keeps "absent" and "explicit null" distinct: a null on
// description, category or dueDate clears the field, while an absent key
// leaves it untouched. Null carries no value for the remaining fields and
// is treated as absent. Unknown keys are rejected.
func (p *TodoPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := TodoPatch{}
	for key, val := range raw {
		null := bytes.Equal(bytes.TrimSpace(val), []byte("null"))
		empty := ""

		var err error
		switch key {
		case "title":
			if !null {
				err = json.Unmarshal(val, &out.Title)
			}
		case "description":
			if null {
				out.Description = &empty
			} else {
				err = json.Unmarshal(val, &out.Description)
			}
		case "completed":
			if !null {
				err = json.Unmarshal(val, &out.Completed)
			}
		case "priority":
			if !null {
				err = json.Unmarshal(val, &out.Priority)
			}
		case "category":
			if null {
				out.Category = &empty
			} else {
				err = json.Unmarshal(val, &out.Category)
			}
		case "dueDate":
			if null {
				out.DueDate = &empty
			} else {
				err = json.Unmarshal(val, &out.DueDate)
			}
		case "order":
			if !null {
				err = json.Unmarshal(val, &out.Order)
			}
		default:
			return fmt.Errorf("unknown field %q", key)
		}
		if err != nil {
			return err
		}
	}

	*p = out
	return nil
}

// Empty reports whether the patch carries no fields at all.
func (p TodoPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil &&
		p.Priority == nil && p.Category == nil && p.DueDate == nil && p.Order == nil
}

// Apply mutates t with the fields present in p.
func (p TodoPatch) Apply(t *Todo) error {
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return fmt.Errorf("%w: title must not be empty", ErrInvalidField)
		}
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return fmt.Errorf("%w: unknown priority %q", ErrInvalidField, *p.Priority)
		}
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.DueDate != nil {
		due, err := ParseDueDate(*p.DueDate)
		if err != nil {
			return err
		}
		t.DueDate = due
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	return nil
}

// ParseDueDate parses a wire due date. An empty value means "no due date"
// and yields nil. Accepts RFC 3339 timestamps and bare dates.
func ParseDueDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad due date %q", ErrInvalidField, raw)
	}
	return &ts, nil
}

// SortTodos orders a user's list for display: incomplete tasks first, then
// manual order ascending, then newest first.
func SortTodos(todos []Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		if todos[i].Completed != todos[j].Completed {
			return !todos[i].Completed
		}
		if todos[i].Order != todos[j].Order {
			return todos[i].Order < todos[j].Order
		}
		return todos[i].CreatedAt.After(todos[j].CreatedAt)
	})
}

// NextOrder returns the order key for a todo appended to the given list.
func NextOrder(todos []Todo) int {
	max := 0
	for _, t := range todos {
		if t.Order > max {
			max = t.Order
		}
	}
	return max + 1
}
