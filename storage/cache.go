package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"taskwise-api/domain"
)

type backend interface {
	ListTodos(ctx context.Context, userID string) ([]domain.Todo, error)
	CreateTodo(ctx context.Context, userID string, fields domain.NewTodo) (domain.Todo, error)
	UpdateTodo(ctx context.Context, userID, id string, patch domain.TodoPatch) (domain.Todo, error)
	DeleteTodo(ctx context.Context, userID, id string) error
}

// Cache wraps a Storage instance with Redis-backed caching of each user's
// todo list. Writes pass through and evict the owner's cached list.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and
// TTL. A nil client disables caching entirely.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTodos(ctx context.Context, userID string) ([]domain.Todo, error) {
	if todos, ok := c.loadFromCache(ctx, userID); ok {
		return todos, nil
	}

	todos, err := c.base.ListTodos(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, userID, todos)
	return todos, nil
}

func (c *Cache) CreateTodo(ctx context.Context, userID string, fields domain.NewTodo) (domain.Todo, error) {
	todo, err := c.base.CreateTodo(ctx, userID, fields)
	if err != nil {
		return domain.Todo{}, err
	}
	c.evict(ctx, userID)
	return todo, nil
}

func (c *Cache) UpdateTodo(ctx context.Context, userID, id string, patch domain.TodoPatch) (domain.Todo, error) {
	todo, err := c.base.UpdateTodo(ctx, userID, id, patch)
	if err != nil {
		return domain.Todo{}, err
	}
	c.evict(ctx, userID)
	return todo, nil
}

func (c *Cache) DeleteTodo(ctx context.Context, userID, id string) error {
	if err := c.base.DeleteTodo(ctx, userID, id); err != nil {
		return err
	}
	c.evict(ctx, userID)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, userID string) ([]domain.Todo, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, todosCacheKey(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, todosCacheKey(userID)).Err()
		}
		return nil, false
	}
	var todos []domain.Todo
	if err := json.Unmarshal(data, &todos); err != nil {
		_ = c.redis.Del(ctx, todosCacheKey(userID)).Err()
		return nil, false
	}
	return todos, true
}

func (c *Cache) store(ctx context.Context, userID string, todos []domain.Todo) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(todos)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, todosCacheKey(userID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, userID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, todosCacheKey(userID)).Result()
}

func todosCacheKey(userID string) string {
	return "todos:" + userID
}
