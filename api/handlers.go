package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskwise-api/domain"
)

// Request bodies are bounded; a todo payload has no business being larger.
const maxBodySize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, suggest Suggester, auth Authenticator, logger *log.Logger) {
	e.GET("/api/todos", getTodos(store, auth, logger))
	e.POST("/api/todos", postTodo(store, auth))
	e.PATCH("/api/todos/:id", patchTodo(store, auth))
	e.DELETE("/api/todos/:id", deleteTodo(store, auth))
	e.POST("/api/ai/categorize", postCategorize(suggest, auth))
	e.POST("/api/ai/subtasks", postSubtasks(suggest, auth))
	e.GET("/healthz", healthz())
}

type todosResponse struct {
	Todos []domain.Todo `json:"todos"`
}

type todoResponse struct {
	Todo domain.Todo `json:"todo"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type subtasksResponse struct {
	Subtasks []string `json:"subtasks"`
}

type createTodoRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    domain.Priority `json:"priority"`
	Category    string          `json:"category"`
	DueDate     string          `json:"dueDate"`
}

type suggestRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTodos(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newListRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		fetchStart := time.Now()
		todos, fetchErr := store.ListTodos(ctx, userID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, "failed to fetch todos")
			return err
		}
		metrics.SetTodosReturned(len(todos))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, todosResponse{Todos: todos})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postTodo(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req createTodoRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Title) == "" {
			return c.String(http.StatusBadRequest, "title is required")
		}
		if req.Priority != "" && !req.Priority.Valid() {
			return c.String(http.StatusBadRequest, "invalid priority")
		}
		dueDate, err := domain.ParseDueDate(req.DueDate)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid due date")
		}

		todo, err := store.CreateTodo(ctx, userID, domain.NewTodo{
			Title:       req.Title,
			Description: req.Description,
			Priority:    req.Priority,
			Category:    req.Category,
			DueDate:     dueDate,
		})
		if err != nil {
			if errors.Is(err, domain.ErrInvalidField) {
				return c.String(http.StatusBadRequest, err.Error())
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to create todo")
		}
		return c.JSON(http.StatusCreated, todoResponse{Todo: todo})
	}
}

func patchTodo(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var patch domain.TodoPatch
		if err := decodeBody(c.Request().Body, &patch); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		todo, err := store.UpdateTodo(ctx, userID, c.Param("id"), patch)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrInvalidField):
				return c.String(http.StatusBadRequest, err.Error())
			case isNotFound(err):
				return c.String(http.StatusNotFound, "todo not found")
			default:
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, "failed to update todo")
			}
		}
		return c.JSON(http.StatusOK, todoResponse{Todo: todo})
	}
}

func deleteTodo(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		if err := store.DeleteTodo(ctx, userID, c.Param("id")); err != nil {
			if isNotFound(err) {
				return c.String(http.StatusNotFound, "todo not found")
			}
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to delete todo")
		}
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func postCategorize(suggest Suggester, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization")); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req suggestRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Title) == "" {
			return c.String(http.StatusBadRequest, "title is required")
		}

		// Infallible by contract: failures come back as the fixed default.
		return c.JSON(http.StatusOK, suggest.Categorize(ctx, req.Title, req.Description))
	}
}

func postSubtasks(suggest Suggester, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if _, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization")); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		var req suggestRequest
		if err := decodeBody(c.Request().Body, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Title) == "" {
			return c.String(http.StatusBadRequest, "title is required")
		}

		return c.JSON(http.StatusOK, subtasksResponse{Subtasks: suggest.GenerateSubtasks(ctx, req.Title, req.Description)})
	}
}

func decodeBody(body io.Reader, out any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func isNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
