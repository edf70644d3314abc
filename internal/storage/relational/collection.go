package relational

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatzia/internal/models"
	"github.com/chatzia/internal/storage"
	applog "github.com/chatzia/pkg/logger"
)

type options struct {
	preloads []func(*gorm.DB) *gorm.DB
}

// Option customizes how a collection reads its rows
type Option func(*options)

// WithPreload includes an association on every read
func WithPreload(query string, args ...interface{}) Option {
	return func(o *options) {
		o.preloads = append(o.preloads, func(db *gorm.DB) *gorm.DB {
			return db.Preload(query, args...)
		})
	}
}

// Collection implements storage.Collection over one table.
// Updates touch only the addressed row and its associations.
type Collection[T any, P storage.Record[T]] struct {
	client *Client
	name   string
	opts   options
	now    func() time.Time
	log    *applog.Logger
}

// NewCollection creates a collection for the table of T
func NewCollection[T any, P storage.Record[T]](client *Client, name string, log *applog.Logger, opts ...Option) *Collection[T, P] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Collection[T, P]{
		client: client,
		name:   name,
		opts:   o,
		now:    time.Now,
		log:    log.WithComponent("relational").WithCollection(name),
	}
}

func (c *Collection[T, P]) read(db *gorm.DB) *gorm.DB {
	for _, scope := range c.opts.preloads {
		db = scope(db)
	}
	return db
}

// NewID returns a random UUID
func (c *Collection[T, P]) NewID() string {
	return uuid.NewString()
}

// GetAll lists every row with its associations in insertion order
func (c *Collection[T, P]) GetAll(ctx context.Context) ([]T, error) {
	db, err := c.client.DB(ctx)
	if err != nil {
		return []T{}, c.persistence("load", err)
	}
	if !db.Migrator().HasTable(P(new(T))) {
		return []T{}, nil
	}

	var rows []T
	if err := c.read(db).Order("created_at ASC").Find(&rows).Error; err != nil {
		return []T{}, c.persistence("load", err)
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

// Create inserts the entity and its associations
func (c *Collection[T, P]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	db, err := c.client.DB(ctx)
	if err != nil {
		return zero, c.persistence("create", err)
	}

	p := P(&entity)
	if p.GetID() == "" {
		p.SetID(c.NewID())
	} else {
		var n int64
		if err := db.Model(P(new(T))).Where("id = ?", p.GetID()).Count(&n).Error; err != nil {
			return zero, c.persistence("create", err)
		}
		if n > 0 {
			return zero, fmt.Errorf("%w: %s id %q already exists", storage.ErrValidation, c.name, p.GetID())
		}
	}
	storage.StampCreated(p, c.now().UTC())

	if err := db.Create(p).Error; err != nil {
		return zero, c.persistence("create", err)
	}
	return entity, nil
}

// Update loads the row, applies the patch and saves it with its associations
func (c *Collection[T, P]) Update(ctx context.Context, id string, patch storage.Patch[T]) (T, error) {
	var zero T
	db, err := c.client.DB(ctx)
	if err != nil {
		return zero, c.persistence("update", err)
	}

	var entity T
	if err := c.read(db).First(&entity, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, fmt.Errorf("%w: %s %q", storage.ErrNotFound, c.name, id)
		}
		return zero, c.persistence("update", err)
	}

	p := P(&entity)
	patch.Apply(&entity)
	p.SetID(id)
	storage.StampUpdated(p, c.now().UTC())

	if err := db.Session(&gorm.Session{FullSaveAssociations: true}).Save(p).Error; err != nil {
		return zero, c.persistence("update", err)
	}
	return entity, nil
}

// Delete removes the row and its owned associations. Missing ids are ignored.
func (c *Collection[T, P]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	db, err := c.client.DB(ctx)
	if err != nil {
		return c.persistence("delete", err)
	}

	p := P(new(T))
	p.SetID(id)
	if err := db.Select(clause.Associations).Delete(p).Error; err != nil {
		return c.persistence("delete", err)
	}
	return nil
}

func (c *Collection[T, P]) persistence(op string, err error) error {
	c.log.Error().Err(err).Str("op", op).Msg("Database operation failed")
	return fmt.Errorf("%w: %s %s: %w", storage.ErrPersistence, op, c.name, err)
}

var _ storage.Collection[models.Feed] = (*Collection[models.Feed, *models.Feed])(nil)

// NewFeedRepository wires the feed dashboard tables
func NewFeedRepository(client *Client, log *applog.Logger) *storage.FeedRepository {
	return &storage.FeedRepository{
		Feeds:   NewCollection[models.Feed](client, "feeds", log),
		Items:   NewCollection[models.FeedItem](client, "feed_items", log),
		Bundles: NewCollection[models.Bundle](client, "bundles", log),
		Widgets: NewCollection[models.Widget](client, "widgets", log),
	}
}

// NewChatRepository wires the chatbot dashboard tables
func NewChatRepository(client *Client, log *applog.Logger) *storage.ChatRepository {
	return &storage.ChatRepository{
		Bots: NewCollection[models.Chatbot](client, "chatbots", log, WithPreload("Knowledge")),
		Conversations: NewCollection[models.Conversation](client, "conversations", log,
			WithPreload("Messages", func(db *gorm.DB) *gorm.DB {
				return db.Order("position ASC")
			}),
		),
	}
}
