package api

import (
	"context"

	"taskwise-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTodos(ctx context.Context, userID string) ([]domain.Todo, error)
	CreateTodo(ctx context.Context, userID string, fields domain.NewTodo) (domain.Todo, error)
	UpdateTodo(ctx context.Context, userID, id string, patch domain.TodoPatch) (domain.Todo, error)
	DeleteTodo(ctx context.Context, userID, id string) error
}

// NotFoundError is reported by stores when a record is absent or owned by
// a different user. The two cases are deliberately indistinguishable.
type NotFoundError interface {
	error
	NotFound()
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Suggester produces best-effort AI enrichment for a todo draft. Both
// methods are infallible by contract; failures surface as fallback values.
type Suggester interface {
	Categorize(ctx context.Context, title, description string) domain.Suggestion
	GenerateSubtasks(ctx context.Context, title, description string) []string
}
