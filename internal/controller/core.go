// Package controller holds the state machinery shared by the dashboard controllers.
package controller

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/chatzia/internal/storage"
	"github.com/chatzia/pkg/logger"
)

// Confirmer asks the user to approve a destructive action
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// AlwaysConfirm approves everything
var AlwaysConfirm = ConfirmFunc(func(context.Context, string) bool { return true })

// Status is the renderable part of the state every dashboard shares
type Status[V ~string] struct {
	View    V
	Loading bool
	Error   string
}

// Core guards a controller's state and runs its mutations.
// Controllers keep their collections next to a Core and touch them only
// inside Read, Write or a Mutate apply function.
type Core[V ~string] struct {
	mu       sync.RWMutex
	log      *logger.Logger
	views    []V
	status   Status[V]
	inFlight int
}

// NewCore creates a core on views; the first view is the initial one
func NewCore[V ~string](log *logger.Logger, views ...V) *Core[V] {
	c := &Core[V]{log: log, views: views}
	if len(views) > 0 {
		c.status.View = views[0]
	}
	return c
}

// Navigate switches the current view
func (c *Core[V]) Navigate(view V) error {
	if !slices.Contains(c.views, view) {
		return fmt.Errorf("%w: unknown view %q", storage.ErrValidation, view)
	}
	c.mu.Lock()
	c.status.View = view
	c.mu.Unlock()
	return nil
}

// Views lists the accepted views
func (c *Core[V]) Views() []V {
	return slices.Clone(c.views)
}

// DismissError clears the error banner
func (c *Core[V]) DismissError() {
	c.mu.Lock()
	c.status.Error = ""
	c.mu.Unlock()
}

// Read runs fn under the read lock
func (c *Core[V]) Read(fn func(st Status[V])) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.status)
}

// Write runs fn under the write lock; fn may change the status
func (c *Core[V]) Write(fn func(st *Status[V])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.status)
}

// Fail logs err and shows it in the banner
func (c *Core[V]) Fail(op string, err error) error {
	c.log.Error().Err(err).Str("op", op).Msg("Operation failed")
	c.mu.Lock()
	c.status.Error = fmt.Sprintf("%s: %v", op, err)
	c.mu.Unlock()
	return err
}

// Mutate runs call against the store with the loading flag raised and, on
// success, hands the confirmed result to apply under the write lock.
// On failure the state is left as it was and the banner shows the error.
// Loading stays raised until every overlapping call has returned.
func Mutate[V ~string, T any](ctx context.Context, c *Core[V], op string, call func(context.Context) (T, error), apply func(T)) (T, error) {
	c.mu.Lock()
	c.inFlight++
	c.status.Loading = true
	c.mu.Unlock()

	result, err := call(ctx)

	c.mu.Lock()
	c.inFlight--
	c.status.Loading = c.inFlight > 0
	if err != nil {
		c.status.Error = fmt.Sprintf("%s: %v", op, err)
		c.mu.Unlock()
		c.log.Error().Err(err).Str("op", op).Msg("Operation failed")
		return result, err
	}
	apply(result)
	c.mu.Unlock()

	c.log.Debug().Str("op", op).Msg("Operation completed")
	return result, nil
}

// Replace swaps the element with the same id in items, or appends it
func Replace[T any, P storage.Record[T]](items []T, item T) []T {
	id := P(&item).GetID()
	for i := range items {
		if P(&items[i]).GetID() == id {
			out := slices.Clone(items)
			out[i] = item
			return out
		}
	}
	return append(slices.Clone(items), item)
}

// Remove drops the element with id from items
func Remove[T any, P storage.Record[T]](items []T, id string) []T {
	return slices.DeleteFunc(slices.Clone(items), func(v T) bool {
		return P(&v).GetID() == id
	})
}

// Find returns the element with id
func Find[T any, P storage.Record[T]](items []T, id string) (T, bool) {
	for i := range items {
		if P(&items[i]).GetID() == id {
			return items[i], true
		}
	}
	var zero T
	return zero, false
}
