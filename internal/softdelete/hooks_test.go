package softdelete

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_Order(t *testing.T) {
	h := NewHooks()
	var calls []string
	rec := newWidget("a")

	h.Before(EventDestroy, func(context.Context, Entity) error {
		calls = append(calls, "before1")
		return nil
	})
	h.Before(EventDestroy, func(context.Context, Entity) error {
		calls = append(calls, "before2")
		return nil
	})
	h.Around(EventDestroy, func(ctx context.Context, _ Entity, next func(context.Context) error) error {
		calls = append(calls, "outer>")
		err := next(ctx)
		calls = append(calls, "<outer")
		return err
	})
	h.Around(EventDestroy, func(ctx context.Context, _ Entity, next func(context.Context) error) error {
		calls = append(calls, "inner>")
		err := next(ctx)
		calls = append(calls, "<inner")
		return err
	})
	h.After(EventDestroy, func(context.Context, Entity) error {
		calls = append(calls, "after")
		return nil
	})
	// Other events are not dispatched.
	h.Before(EventRestore, func(context.Context, Entity) error {
		calls = append(calls, "restore")
		return nil
	})

	ran, err := h.Run(context.Background(), EventDestroy, rec, func(context.Context) error {
		calls = append(calls, "body")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, []string{"before1", "before2", "outer>", "inner>", "body", "<inner", "<outer", "after"}, calls)
}

func TestHooks_BeforeHalts(t *testing.T) {
	h := NewHooks()
	bodyRan, afterRan := false, false

	h.Before(EventDestroy, func(context.Context, Entity) error { return ErrHalt })
	h.After(EventDestroy, func(context.Context, Entity) error {
		afterRan = true
		return nil
	})

	ran, err := h.Run(context.Background(), EventDestroy, newWidget("a"), func(context.Context) error {
		bodyRan = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.False(t, bodyRan)
	assert.False(t, afterRan)
}

func TestHooks_AroundWithoutNext(t *testing.T) {
	h := NewHooks()
	h.Around(EventRestore, func(context.Context, Entity, func(context.Context) error) error {
		return nil
	})

	ran, err := h.Run(context.Background(), EventRestore, newWidget("a"), func(context.Context) error {
		t.Fatal("body must not run")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestHooks_ErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")

	t.Run("before", func(t *testing.T) {
		h := NewHooks()
		h.Before(EventDestroy, func(context.Context, Entity) error { return boom })
		ran, err := h.Run(context.Background(), EventDestroy, newWidget("a"), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, boom)
		assert.False(t, ran)
	})

	t.Run("body", func(t *testing.T) {
		h := NewHooks()
		afterRan := false
		h.After(EventDestroy, func(context.Context, Entity) error {
			afterRan = true
			return nil
		})
		ran, err := h.Run(context.Background(), EventDestroy, newWidget("a"), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.True(t, ran)
		assert.False(t, afterRan)
	})

	t.Run("after", func(t *testing.T) {
		h := NewHooks()
		h.After(EventDestroy, func(context.Context, Entity) error { return boom })
		ran, err := h.Run(context.Background(), EventDestroy, newWidget("a"), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, boom)
		assert.True(t, ran)
	})
}
