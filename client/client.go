// Package client is a Go consumer of the todo API: a thin HTTP client plus
// an in-memory list controller for filtering, stats and drag reordering.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskwise-api/domain"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxErrorBodySize      = 4 << 10
)

// StatusError is returned for any non-2xx API response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api responded %d: %s", e.Code, e.Body)
}

// Client calls the todo API on behalf of a single authenticated user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a Client for the API at baseURL. The token is sent as a
// bearer credential on every request.
func NewClient(baseURL, token string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger,
	}
}

// CreateTodoRequest carries the caller supplied fields for a create. DueDate
// is a wire date string, RFC 3339 or YYYY-MM-DD.
type CreateTodoRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    domain.Priority `json:"priority,omitempty"`
	Category    string          `json:"category,omitempty"`
	DueDate     string          `json:"dueDate,omitempty"`
}

type todosPayload struct {
	Todos []domain.Todo `json:"todos"`
}

type todoPayload struct {
	Todo domain.Todo `json:"todo"`
}

type successPayload struct {
	Success bool `json:"success"`
}

type subtasksPayload struct {
	Subtasks []string `json:"subtasks"`
}

type suggestPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListTodos fetches the user's full todo list in display order.
func (c *Client) ListTodos(ctx context.Context) ([]domain.Todo, error) {
	var out todosPayload
	if err := c.do(ctx, http.MethodGet, "/api/todos", nil, &out); err != nil {
		return nil, err
	}
	return out.Todos, nil
}

// CreateTodo appends a new todo and returns the persisted record.
func (c *Client) CreateTodo(ctx context.Context, req CreateTodoRequest) (domain.Todo, error) {
	var out todoPayload
	if err := c.do(ctx, http.MethodPost, "/api/todos", req, &out); err != nil {
		return domain.Todo{}, err
	}
	return out.Todo, nil
}

// UpdateTodo applies a partial update. Only fields set on the patch travel
// on the wire.
func (c *Client) UpdateTodo(ctx context.Context, id string, patch domain.TodoPatch) (domain.Todo, error) {
	var out todoPayload
	if err := c.do(ctx, http.MethodPatch, "/api/todos/"+id, patch, &out); err != nil {
		return domain.Todo{}, err
	}
	return out.Todo, nil
}

// DeleteTodo removes a todo permanently.
func (c *Client) DeleteTodo(ctx context.Context, id string) error {
	var out successPayload
	return c.do(ctx, http.MethodDelete, "/api/todos/"+id, nil, &out)
}

// Categorize asks the API for a category, priority and tag suggestion.
func (c *Client) Categorize(ctx context.Context, title, description string) (domain.Suggestion, error) {
	var out domain.Suggestion
	err := c.do(ctx, http.MethodPost, "/api/ai/categorize", suggestPayload{Title: title, Description: description}, &out)
	if err != nil {
		return domain.Suggestion{}, err
	}
	return out, nil
}

// GenerateSubtasks asks the API to break a todo into actionable steps.
func (c *Client) GenerateSubtasks(ctx context.Context, title, description string) ([]string, error) {
	var out subtasksPayload
	if err := c.do(ctx, http.MethodPost, "/api/ai/subtasks", suggestPayload{Title: title, Description: description}, &out); err != nil {
		return nil, err
	}
	return out.Subtasks, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	return sonic.ConfigStd.NewDecoder(resp.Body).Decode(out)
}
