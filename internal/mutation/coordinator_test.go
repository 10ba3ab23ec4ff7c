package mutation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"catalog/browser/internal/domain"
	"catalog/browser/internal/domain/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMutator struct {
	err       error
	deleted   []string
	activated map[string]bool
}

func (f *fakeMutator) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMutator) SetActive(_ context.Context, id string, active bool) error {
	if f.err != nil {
		return f.err
	}
	if f.activated == nil {
		f.activated = make(map[string]bool)
	}
	f.activated[id] = active
	return nil
}

type countingCache struct {
	invalidations int
}

func (c *countingCache) Invalidate() int {
	c.invalidations++
	return 0
}

type recordingPublisher struct {
	events []event.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e event.Event) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.events = append(p.events, e)
	return "1-0", nil
}

type apiError struct {
	msg string
}

func (e *apiError) Error() string        { return "api: " + e.msg }
func (e *apiError) StoreMessage() string { return e.msg }

func TestDeleteInvalidatesCacheOnSuccess(t *testing.T) {
	m := &fakeMutator{}
	cache := &countingCache{}
	pub := &recordingPublisher{}
	c := NewCoordinator(m, cache, pub, "session-1")

	require.NoError(t, c.Delete(context.Background(), "c1"))

	assert.Equal(t, []string{"c1"}, m.deleted)
	assert.Equal(t, 1, cache.invalidations)
	require.Len(t, pub.events, 1)
	changed := pub.events[0].(*event.CategoryChanged)
	assert.Equal(t, "c1", changed.CategoryID)
	assert.Equal(t, event.ActionDeleted, changed.Action)
	assert.Equal(t, "session-1", changed.Origin)
	assert.False(t, changed.At.IsZero())
}

func TestSetActiveInvalidatesCacheOnSuccess(t *testing.T) {
	m := &fakeMutator{}
	cache := &countingCache{}
	c := NewCoordinator(m, cache, nil, "")

	require.NoError(t, c.SetActive(context.Background(), "c1", false))

	assert.False(t, m.activated["c1"])
	assert.Equal(t, 1, cache.invalidations)
}

func TestFailureLeavesCacheUntouched(t *testing.T) {
	cache := &countingCache{}
	pub := &recordingPublisher{}
	c := NewCoordinator(&fakeMutator{err: errors.New("connection reset")}, cache, pub, "")

	err := c.Delete(context.Background(), "c1")

	var mErr *MutationError
	require.ErrorAs(t, err, &mErr)
	assert.Equal(t, "Failed to delete category", mErr.Message)
	assert.Equal(t, "delete", mErr.Op)
	assert.Equal(t, 0, cache.invalidations)
	assert.Empty(t, pub.events)
}

func TestFailureSurfacesStoreMessage(t *testing.T) {
	storeErr := fmt.Errorf("patch status: %w", &apiError{msg: "Category has active products"})
	c := NewCoordinator(&fakeMutator{err: storeErr}, &countingCache{}, nil, "")

	err := c.SetActive(context.Background(), "c1", false)

	assert.EqualError(t, err, "Category has active products")
	var api *apiError
	assert.ErrorAs(t, err, &api)
}

func TestFailureWithEmptyStoreMessageUsesFallback(t *testing.T) {
	c := NewCoordinator(&fakeMutator{err: &apiError{}}, &countingCache{}, nil, "")

	err := c.SetActive(context.Background(), "c1", true)

	assert.EqualError(t, err, "Failed to update category status")
}

func TestNotFound(t *testing.T) {
	c := NewCoordinator(&fakeMutator{err: domain.ErrNotFound}, &countingCache{}, nil, "")

	assert.EqualError(t, c.Delete(context.Background(), "missing"), "Category not found")
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	cache := &countingCache{}
	c := NewCoordinator(&fakeMutator{}, cache, &recordingPublisher{err: errors.New("redis down")}, "")

	require.NoError(t, c.Delete(context.Background(), "c1"))
	assert.Equal(t, 1, cache.invalidations)
}
