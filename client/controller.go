package client

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"taskwise-api/domain"
)

// dueSoonWindowDays bounds the "due soon" bucket, inclusive.
const dueSoonWindowDays = 3

const topCategoriesLimit = 5

// updater is the slice of the API a reorder needs.
type updater interface {
	UpdateTodo(ctx context.Context, id string, patch domain.TodoPatch) (domain.Todo, error)
}

// Controller holds a user's todo list in display order and derives views
// from it. It is not safe for concurrent use.
type Controller struct {
	api    updater
	logger *log.Logger
	todos  []domain.Todo
}

// NewController creates a Controller backed by the given API client.
func NewController(api updater, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{api: api, logger: logger}
}

// SetTodos replaces the controller's list, normalizing it to display order.
func (c *Controller) SetTodos(todos []domain.Todo) {
	c.todos = append([]domain.Todo(nil), todos...)
	domain.SortTodos(c.todos)
}

// Todos returns the current list in display order.
func (c *Controller) Todos() []domain.Todo {
	return append([]domain.Todo(nil), c.todos...)
}

// Filter narrows the visible list. Zero values leave a dimension open,
// except ShowCompleted which hides completed todos when false.
type Filter struct {
	Search        string
	Priority      domain.Priority
	Category      string
	ShowCompleted bool
}

// Matches reports whether t passes every dimension of the filter.
func (f Filter) Matches(t domain.Todo) bool {
	if !f.ShowCompleted && t.Completed {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// Filtered returns the todos passing f, preserving display order.
func (c *Controller) Filtered(f Filter) []domain.Todo {
	out := []domain.Todo{}
	for _, t := range c.todos {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Categories returns the distinct non-empty categories in use, sorted.
func (c *Controller) Categories() []string {
	seen := map[string]bool{}
	out := []string{}
	for _, t := range c.todos {
		if t.Category == "" || seen[t.Category] {
			continue
		}
		seen[t.Category] = true
		out = append(out, t.Category)
	}
	sort.Strings(out)
	return out
}

// CategoryStat counts todos of one category. Uncategorized todos are
// grouped under "Uncategorized".
type CategoryStat struct {
	Name      string
	Total     int
	Completed int
}

// Stats is a snapshot of aggregate list state.
type Stats struct {
	Total          int
	Completed      int
	Pending        int
	CompletionRate int
	HighPriority   int
	MediumPriority int
	LowPriority    int
	Overdue        int
	DueSoon        int
	TopCategories  []CategoryStat
}

// Stats aggregates the current list. Due date buckets are computed
// relative to now; priority counts cover pending todos only.
func (c *Controller) Stats(now time.Time) Stats {
	s := Stats{Total: len(c.todos)}
	byCategory := map[string]*CategoryStat{}

	for _, t := range c.todos {
		if t.Completed {
			s.Completed++
		} else {
			s.Pending++
			switch t.Priority {
			case domain.PriorityHigh:
				s.HighPriority++
			case domain.PriorityLow:
				s.LowPriority++
			default:
				s.MediumPriority++
			}
			if t.DueDate != nil {
				if t.DueDate.Before(now) {
					s.Overdue++
				}
				days := int(math.Ceil(t.DueDate.Sub(now).Hours() / 24))
				if days >= 0 && days <= dueSoonWindowDays {
					s.DueSoon++
				}
			}
		}

		name := t.Category
		if name == "" {
			name = "Uncategorized"
		}
		stat, ok := byCategory[name]
		if !ok {
			stat = &CategoryStat{Name: name}
			byCategory[name] = stat
		}
		stat.Total++
		if t.Completed {
			stat.Completed++
		}
	}

	if s.Total > 0 {
		s.CompletionRate = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}

	cats := make([]CategoryStat, 0, len(byCategory))
	for _, stat := range byCategory {
		cats = append(cats, *stat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Total != cats[j].Total {
			return cats[i].Total > cats[j].Total
		}
		return cats[i].Name < cats[j].Name
	})
	if len(cats) > topCategoriesLimit {
		cats = cats[:topCategoriesLimit]
	}
	s.TopCategories = cats
	return s
}

// OrderChange records a todo whose manual order moved during a reorder.
type OrderChange struct {
	ID    string
	Order int
}

// Move repositions the todo at index from to index to and reassigns
// contiguous zero-based orders across the list. It mutates the local list
// and returns one change per todo whose order actually moved.
func (c *Controller) Move(from, to int) []OrderChange {
	if from < 0 || from >= len(c.todos) || to < 0 || to >= len(c.todos) {
		return nil
	}
	if from != to {
		moved := c.todos[from]
		c.todos = append(c.todos[:from], c.todos[from+1:]...)
		c.todos = append(c.todos[:to], append([]domain.Todo{moved}, c.todos[to:]...)...)
	}

	changes := []OrderChange{}
	for i := range c.todos {
		if c.todos[i].Order != i {
			c.todos[i].Order = i
			changes = append(changes, OrderChange{ID: c.todos[i].ID, Order: i})
		}
	}
	return changes
}

// Reorder applies Move locally and persists each changed order with its own
// PATCH. The local order is kept even when a PATCH fails; the failure is
// only logged.
// TODO: roll back the optimistic order when an update fails.
func (c *Controller) Reorder(ctx context.Context, from, to int) error {
	var firstErr error
	for _, change := range c.Move(from, to) {
		order := change.Order
		if _, err := c.api.UpdateTodo(ctx, change.ID, domain.TodoPatch{Order: &order}); err != nil {
			c.logger.WithFields(log.Fields{"id": change.ID, "error": err}).Warn("failed to persist reorder")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
