// Package blob implements storage collections as JSON arrays held under one key each.
package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chatzia/internal/models"
	"github.com/chatzia/internal/storage"
	"github.com/chatzia/internal/storage/kv"
	"github.com/chatzia/pkg/logger"
)

// TimestampIDs hands out millisecond timestamps as ids, strictly increasing
// within the process.
type TimestampIDs struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewTimestampIDs creates a generator on the wall clock
func NewTimestampIDs() *TimestampIDs {
	return &TimestampIDs{now: time.Now}
}

// Next returns the current millisecond, or one past the last id handed out
func (g *TimestampIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}

// Collection implements storage.Collection on one key of a kv.Store.
// Every mutation rewrites the whole array. Writers in other processes are not
// coordinated with.
type Collection[T any, P storage.Record[T]] struct {
	store kv.Store
	key   string
	ids   *TimestampIDs
	now   func() time.Time
	log   *logger.Logger

	mu sync.Mutex
}

// NewCollection creates a collection stored under key
func NewCollection[T any, P storage.Record[T]](store kv.Store, key string, ids *TimestampIDs, log *logger.Logger) *Collection[T, P] {
	return &Collection[T, P]{
		store: store,
		key:   key,
		ids:   ids,
		now:   time.Now,
		log:   log.WithComponent("blob").WithCollection(key),
	}
}

func (c *Collection[T, P]) NewID() string {
	return c.ids.Next()
}

func (c *Collection[T, P]) GetAll(ctx context.Context) ([]T, error) {
	items, err := c.load(ctx)
	if err != nil {
		return []T{}, err
	}
	return items, nil
}

func (c *Collection[T, P]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return zero, err
	}

	p := P(&entity)
	if p.GetID() == "" {
		id := c.ids.Next()
		for indexOf[T, P](items, id) >= 0 {
			id = c.ids.Next()
		}
		p.SetID(id)
	} else if indexOf[T, P](items, p.GetID()) >= 0 {
		return zero, fmt.Errorf("%w: %s id %q already exists", storage.ErrValidation, c.key, p.GetID())
	}
	storage.StampCreated(p, c.now().UTC())

	if err := c.save(ctx, append(items, entity)); err != nil {
		return zero, err
	}
	return entity, nil
}

func (c *Collection[T, P]) Update(ctx context.Context, id string, patch storage.Patch[T]) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return zero, err
	}

	i := indexOf[T, P](items, id)
	if i < 0 {
		return zero, fmt.Errorf("%w: %s %q", storage.ErrNotFound, c.key, id)
	}

	updated := items[i]
	patch.Apply(&updated)
	P(&updated).SetID(id)
	storage.StampUpdated(P(&updated), c.now().UTC())
	items[i] = updated

	if err := c.save(ctx, items); err != nil {
		return zero, err
	}
	return updated, nil
}

func (c *Collection[T, P]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}

	i := indexOf[T, P](items, id)
	if i < 0 {
		return nil
	}
	return c.save(ctx, append(items[:i:i], items[i+1:]...))
}

func (c *Collection[T, P]) load(ctx context.Context) ([]T, error) {
	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, c.persistence("load", err)
	}
	if !ok || raw == "" {
		return []T{}, nil
	}

	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, c.persistence("decode", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *Collection[T, P]) save(ctx context.Context, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return c.persistence("encode", err)
	}
	if err := c.store.Set(ctx, c.key, string(data)); err != nil {
		return c.persistence("save", err)
	}
	return nil
}

func (c *Collection[T, P]) persistence(op string, err error) error {
	c.log.Error().Err(err).Str("op", op).Msg("Storage operation failed")
	return fmt.Errorf("%w: %s %s: %w", storage.ErrPersistence, op, c.key, err)
}

func indexOf[T any, P storage.Record[T]](items []T, id string) int {
	for i := range items {
		if P(&items[i]).GetID() == id {
			return i
		}
	}
	return -1
}

var _ storage.Collection[models.Feed] = (*Collection[models.Feed, *models.Feed])(nil)

// NewFeedRepository wires the feed dashboard keys
func NewFeedRepository(store kv.Store, log *logger.Logger) *storage.FeedRepository {
	ids := NewTimestampIDs()
	return &storage.FeedRepository{
		Feeds:   NewCollection[models.Feed](store, storage.KeyFeeds, ids, log),
		Items:   NewCollection[models.FeedItem](store, storage.KeyFeedItems, ids, log),
		Bundles: NewCollection[models.Bundle](store, storage.KeyBundles, ids, log),
		Widgets: NewCollection[models.Widget](store, storage.KeyWidgets, ids, log),
	}
}

// NewChatRepository wires the chatbot dashboard keys
func NewChatRepository(store kv.Store, log *logger.Logger) *storage.ChatRepository {
	ids := NewTimestampIDs()
	return &storage.ChatRepository{
		Bots:          NewCollection[models.Chatbot](store, storage.KeyChatbots, ids, log),
		Conversations: NewCollection[models.Conversation](store, storage.KeyConversations, ids, log),
	}
}
