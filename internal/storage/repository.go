package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chatzia/internal/models"
)

var (
	// ErrNotFound is returned when an update target does not exist
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for missing or malformed input
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps failures of the underlying store
	ErrPersistence = errors.New("persistence failure")
)

// Entity is a record with a string id assigned at creation
type Entity interface {
	GetID() string
	SetID(id string)
}

// Record constrains P to a pointer to T that behaves as an Entity
type Record[T any] interface {
	*T
	Entity
}

// Entities that carry timestamps implement these; collections stamp them.
type (
	createdStamper interface{ SetCreatedAt(t time.Time) }
	updatedStamper interface{ SetUpdatedAt(t time.Time) }
)

// StampCreated sets createdAt (and updatedAt) on entities that have them
func StampCreated(e Entity, now time.Time) {
	if s, ok := e.(createdStamper); ok {
		s.SetCreatedAt(now)
	}
	if s, ok := e.(updatedStamper); ok {
		s.SetUpdatedAt(now)
	}
}

// StampUpdated sets updatedAt on entities that have it
func StampUpdated(e Entity, now time.Time) {
	if s, ok := e.(updatedStamper); ok {
		s.SetUpdatedAt(now)
	}
}

// Patch merges a partial change onto a stored record
type Patch[T any] interface {
	Apply(*T)
}

// PatchFunc adapts a function to Patch
type PatchFunc[T any] func(*T)

// Apply calls f
func (f PatchFunc[T]) Apply(v *T) { f(v) }

// Collection is the persistence gateway for one entity type
type Collection[T any] interface {
	// GetAll returns every stored entity. A missing key or table yields an empty slice.
	// On store failure the error is logged and returned alongside an empty slice.
	GetAll(ctx context.Context) ([]T, error)

	// Create assigns id (when empty) and createdAt, stores and returns the entity
	Create(ctx context.Context, entity T) (T, error)

	// Update applies patch to the stored record; ErrNotFound when absent
	Update(ctx context.Context, id string, patch Patch[T]) (T, error)

	// Delete removes the entity; deleting an absent id is a no-op
	Delete(ctx context.Context, id string) error

	// NewID returns an id in the form this backend assigns
	NewID() string
}

// FeedRepository groups the collections of the feed dashboard
type FeedRepository struct {
	Feeds   Collection[models.Feed]
	Items   Collection[models.FeedItem]
	Bundles Collection[models.Bundle]
	Widgets Collection[models.Widget]
}

// ChatRepository groups the collections of the chatbot dashboard
type ChatRepository struct {
	Bots          Collection[models.Chatbot]
	Conversations Collection[models.Conversation]
}

// Blob-store keys and table names per collection
const (
	KeyFeeds         = "rssFeeds"
	KeyFeedItems     = "feedItems"
	KeyBundles       = "bundles"
	KeyWidgets       = "widgets"
	KeyChatbots      = "chatbots"
	KeyConversations = "conversations"
)
