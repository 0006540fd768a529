package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"

	"taskwise-api/domain"
)

// ErrNotFound is returned when a todo does not exist for the requesting
// user. A record owned by someone else is reported the same way.
var ErrNotFound error = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "todo not found" }

// NotFound marks the error for handler-side matching without a storage import.
func (notFoundError) NotFound() {}

// Storage provides durable todo persistence. Entities are partitioned by
// owner, so a lookup can never cross user boundaries.
type Storage struct {
	todoTable *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, todosTable string) (*Storage, error) {
	clientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &clientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{todoTable: svc.NewClient(todosTable)}, nil
}

// todoEntity is the table representation of a todo. PartitionKey is the
// owning user id, RowKey the todo id. Timestamps travel as RFC 3339
// strings; an empty DueDate means unset.
type todoEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Completed   bool   `json:"Completed"`
	Priority    string `json:"Priority"`
	Category    string `json:"Category"`
	DueDate     string `json:"DueDate"`
	Order       int    `json:"Order"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
}

func (e todoEntity) toDomain() (domain.Todo, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return domain.Todo{}, fmt.Errorf("todo %s: bad CreatedAt: %w", e.RowKey, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, e.UpdatedAt)
	if err != nil {
		return domain.Todo{}, fmt.Errorf("todo %s: bad UpdatedAt: %w", e.RowKey, err)
	}
	var dueDate *time.Time
	if e.DueDate != "" {
		due, err := time.Parse(time.RFC3339Nano, e.DueDate)
		if err != nil {
			return domain.Todo{}, fmt.Errorf("todo %s: bad DueDate: %w", e.RowKey, err)
		}
		dueDate = &due
	}
	return domain.Todo{
		ID:          e.RowKey,
		Title:       e.Title,
		Description: e.Description,
		Completed:   e.Completed,
		Priority:    domain.Priority(e.Priority),
		Category:    e.Category,
		DueDate:     dueDate,
		Order:       e.Order,
		UserID:      e.PartitionKey,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func entityFromTodo(t domain.Todo) todoEntity {
	dueDate := ""
	if t.DueDate != nil {
		dueDate = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	return todoEntity{
		Entity:      aztables.Entity{PartitionKey: t.UserID, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    string(t.Priority),
		Category:    t.Category,
		DueDate:     dueDate,
		Order:       t.Order,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ListTodos retrieves all todos for the provided user, sorted for display.
func (s *Storage) ListTodos(ctx context.Context, userID string) ([]domain.Todo, error) {
	filter := "PartitionKey eq '" + userID + "'"
	pager := s.todoTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	todos := []domain.Todo{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent todoEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			todo, err := ent.toDomain()
			if err != nil {
				return nil, err
			}
			todos = append(todos, todo)
		}
	}
	domain.SortTodos(todos)
	return todos, nil
}

// CreateTodo persists a new todo at the end of the user's manual order.
func (s *Storage) CreateTodo(ctx context.Context, userID string, fields domain.NewTodo) (domain.Todo, error) {
	if fields.Title == "" {
		return domain.Todo{}, fmt.Errorf("%w: title is required", domain.ErrInvalidField)
	}
	existing, err := s.ListTodos(ctx, userID)
	if err != nil {
		return domain.Todo{}, err
	}

	priority := fields.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	now := time.Now().UTC()
	todo := domain.Todo{
		ID:          uuid.NewString(),
		Title:       fields.Title,
		Description: fields.Description,
		Priority:    priority,
		Category:    fields.Category,
		DueDate:     fields.DueDate,
		Order:       domain.NextOrder(existing),
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	payload, err := json.Marshal(entityFromTodo(todo))
	if err != nil {
		return domain.Todo{}, err
	}
	if _, err := s.todoTable.AddEntity(ctx, payload, nil); err != nil {
		return domain.Todo{}, err
	}
	return todo, nil
}

// UpdateTodo applies a partial update to a todo owned by userID. Records
// that do not exist and records owned by another user are both reported as
// ErrNotFound.
func (s *Storage) UpdateTodo(ctx context.Context, userID, id string, patch domain.TodoPatch) (domain.Todo, error) {
	todo, err := s.getTodo(ctx, userID, id)
	if err != nil {
		return domain.Todo{}, err
	}
	if err := patch.Apply(&todo); err != nil {
		return domain.Todo{}, err
	}
	todo.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(entityFromTodo(todo))
	if err != nil {
		return domain.Todo{}, err
	}
	et := azcore.ETagAny
	_, err = s.todoTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if err != nil {
		if isNotFound(err) {
			return domain.Todo{}, ErrNotFound
		}
		return domain.Todo{}, err
	}
	return todo, nil
}

// DeleteTodo removes a todo owned by userID. Deletion is immediate and
// irreversible.
func (s *Storage) DeleteTodo(ctx context.Context, userID, id string) error {
	if _, err := s.getTodo(ctx, userID, id); err != nil {
		return err
	}
	if _, err := s.todoTable.DeleteEntity(ctx, userID, id, nil); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Storage) getTodo(ctx context.Context, userID, id string) (domain.Todo, error) {
	ent, err := s.todoTable.GetEntity(ctx, userID, id, nil)
	if err != nil {
		if isNotFound(err) {
			return domain.Todo{}, ErrNotFound
		}
		return domain.Todo{}, err
	}
	var raw todoEntity
	if err := json.Unmarshal(ent.Value, &raw); err != nil {
		return domain.Todo{}, err
	}
	return raw.toDomain()
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
