package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus/hooks/test"

	"taskwise-api/domain"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   string
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]recordedRequest) {
	t.Helper()
	requests := &[]recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*requests = append(*requests, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			body:   string(body),
		})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	logger, _ := test.NewNullLogger()
	return NewClient(srv.URL, "secret-token", logger), requests
}

func respondJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	body, err := sonic.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func TestListTodosSendsBearerToken(t *testing.T) {
	c, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, todosPayload{Todos: []domain.Todo{{ID: "1", Title: "first"}}})
	})

	todos, err := c.ListTodos(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(todos) != 1 || todos[0].ID != "1" {
		t.Fatalf("unexpected todos: %#v", todos)
	}

	req := (*requests)[0]
	if req.method != http.MethodGet || req.path != "/api/todos" {
		t.Fatalf("unexpected request: %#v", req)
	}
	if req.auth != "Bearer secret-token" {
		t.Fatalf("unexpected auth header: %s", req.auth)
	}
}

func TestCreateTodo(t *testing.T) {
	c, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusCreated, todoPayload{Todo: domain.Todo{ID: "new", Title: "Buy milk"}})
	})

	todo, err := c.CreateTodo(context.Background(), CreateTodoRequest{Title: "Buy milk", Priority: domain.PriorityLow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if todo.ID != "new" {
		t.Fatalf("unexpected todo: %#v", todo)
	}

	var sent map[string]any
	if err := sonic.Unmarshal([]byte((*requests)[0].body), &sent); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	if sent["title"] != "Buy milk" || sent["priority"] != "low" {
		t.Fatalf("unexpected body: %#v", sent)
	}
	if _, ok := sent["dueDate"]; ok {
		t.Fatal("unset optional fields must not travel")
	}
}

func TestUpdateTodoSendsOnlySetFields(t *testing.T) {
	c, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, todoPayload{Todo: domain.Todo{ID: "abc", Completed: true}})
	})

	completed := true
	if _, err := c.UpdateTodo(context.Background(), "abc", domain.TodoPatch{Completed: &completed}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := (*requests)[0]
	if req.method != http.MethodPatch || req.path != "/api/todos/abc" {
		t.Fatalf("unexpected request: %#v", req)
	}
	if req.body != `{"completed":true}` {
		t.Fatalf("patch body must carry only set fields: %s", req.body)
	}
}

func TestDeleteTodo(t *testing.T) {
	c, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, successPayload{Success: true})
	})

	if err := c.DeleteTodo(context.Background(), "abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := (*requests)[0]
	if req.method != http.MethodDelete || req.path != "/api/todos/abc" {
		t.Fatalf("unexpected request: %#v", req)
	}
}

func TestStatusErrorOnNotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("todo not found"))
	})

	err := c.DeleteTodo(context.Background(), "ghost")
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Code != http.StatusNotFound || statusErr.Body != "todo not found" {
		t.Fatalf("unexpected status error: %#v", statusErr)
	}
}

func TestCategorize(t *testing.T) {
	c, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, domain.Suggestion{
			Category:      "Shopping",
			Priority:      domain.PriorityLow,
			SuggestedTags: []string{"errand"},
		})
	})

	suggestion, err := c.Categorize(context.Background(), "Buy milk", "two liters")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if suggestion.Category != "Shopping" || suggestion.Priority != domain.PriorityLow {
		t.Fatalf("unexpected suggestion: %#v", suggestion)
	}

	req := (*requests)[0]
	if req.path != "/api/ai/categorize" {
		t.Fatalf("unexpected path: %s", req.path)
	}
	var sent suggestPayload
	if err := sonic.Unmarshal([]byte(req.body), &sent); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	if sent.Title != "Buy milk" || sent.Description != "two liters" {
		t.Fatalf("unexpected body: %#v", sent)
	}
}

func TestGenerateSubtasks(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, subtasksPayload{Subtasks: []string{"one", "two"}})
	})

	subtasks, err := c.GenerateSubtasks(context.Background(), "Plan trip", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subtasks) != 2 || subtasks[0] != "one" {
		t.Fatalf("unexpected subtasks: %#v", subtasks)
	}
}

func TestReorderIssuesOnePatchPerChangedTodo(t *testing.T) {
	c, requests := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respondJSON(t, w, http.StatusOK, todoPayload{Todo: domain.Todo{}})
	})

	logger, _ := test.NewNullLogger()
	ctrl := NewController(c, logger)
	ctrl.SetTodos([]domain.Todo{
		{ID: "a", Title: "t", Order: 0},
		{ID: "b", Title: "t", Order: 1},
		{ID: "c", Title: "t", Order: 2},
	})

	if err := ctrl.Reorder(context.Background(), 0, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*requests) != 3 {
		t.Fatalf("expected 3 patch requests, got %d", len(*requests))
	}
	for _, req := range *requests {
		if req.method != http.MethodPatch {
			t.Fatalf("expected PATCH, got %s", req.method)
		}
		var sent map[string]any
		if err := sonic.Unmarshal([]byte(req.body), &sent); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if len(sent) != 1 {
			t.Fatalf("reorder patch must carry only order: %s", req.body)
		}
		if _, ok := sent["order"]; !ok {
			t.Fatalf("reorder patch missing order: %s", req.body)
		}
	}
}
