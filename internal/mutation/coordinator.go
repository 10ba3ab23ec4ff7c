package mutation

import (
	"context"
	"errors"
	"time"

	"catalog/browser/internal/domain"
	"catalog/browser/internal/domain/event"

	log "github.com/sirupsen/logrus"
)

const (
	fallbackDeleteMessage = "Failed to delete category"
	fallbackStatusMessage = "Failed to update category status"
)

// Mutator performs the remote write operations on categories.
type Mutator interface {
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// Invalidator drops cached listing pages.
type Invalidator interface {
	Invalidate() int
}

// Publisher broadcasts a change to other sessions. Optional.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) (string, error)
}

// MutationError is a rejected delete or status change. Message is safe to
// show to the operator.
type MutationError struct {
	Op      string
	ID      string
	Message string
	Err     error
}

func (e *MutationError) Error() string {
	return e.Message
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// storeMessage is implemented by errors that carry the backing store's own
// human-readable message.
type storeMessage interface {
	StoreMessage() string
}

// Coordinator runs mutations and invalidates the listing cache on success.
// It never touches navigation state and never updates the list optimistically.
type Coordinator struct {
	mutator   Mutator
	cache     Invalidator
	publisher Publisher
	origin    string
}

func NewCoordinator(mutator Mutator, cache Invalidator, publisher Publisher, origin string) *Coordinator {
	return &Coordinator{
		mutator:   mutator,
		cache:     cache,
		publisher: publisher,
		origin:    origin,
	}
}

// Delete removes a category.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	if err := c.mutator.Delete(ctx, id); err != nil {
		return c.reject("delete", id, fallbackDeleteMessage, err)
	}

	c.settle(ctx, &event.CategoryChanged{
		CategoryID: id,
		Action:     event.ActionDeleted,
	})
	log.Infof("🗑️ Deleted category %s", id)
	return nil
}

// SetActive switches a category between active and inactive.
func (c *Coordinator) SetActive(ctx context.Context, id string, active bool) error {
	if err := c.mutator.SetActive(ctx, id, active); err != nil {
		return c.reject("set_active", id, fallbackStatusMessage, err)
	}

	c.settle(ctx, &event.CategoryChanged{
		CategoryID: id,
		Action:     event.ActionStatusChanged,
		IsActive:   &active,
	})
	log.Infof("🔁 Category %s is now active=%t", id, active)
	return nil
}

func (c *Coordinator) settle(ctx context.Context, changed *event.CategoryChanged) {
	c.cache.Invalidate()

	if c.publisher == nil {
		return
	}
	changed.Origin = c.origin
	changed.At = time.Now().UTC()
	if _, err := c.publisher.Publish(ctx, changed); err != nil {
		log.Warnf("⚠️ Failed to broadcast change of category %s: %v", changed.CategoryID, err)
	}
}

func (c *Coordinator) reject(op, id, fallback string, err error) error {
	msg := fallback

	var sm storeMessage
	switch {
	case errors.As(err, &sm) && sm.StoreMessage() != "":
		msg = sm.StoreMessage()
	case errors.Is(err, domain.ErrNotFound):
		msg = "Category not found"
	}

	log.Warnf("❌ %s of category %s rejected: %v", op, id, err)
	return &MutationError{Op: op, ID: id, Message: msg, Err: err}
}
