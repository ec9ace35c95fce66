package framepool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolReuseBeforeGrow(t *testing.T) {
	ctx := context.Background()
	pool := New()

	a := pool.Acquire(ctx)
	b := pool.Acquire(ctx)
	require.NotEqual(t, a, b)
	require.Equal(t, 2, pool.NumSlots(ctx))

	pool.Release(ctx, a)
	require.Equal(t, 1, pool.NumFree(ctx))

	c := pool.Acquire(ctx)
	assert.Equal(t, a, c, "a released slot should be reused before the pool grows")
	assert.Equal(t, 2, pool.NumSlots(ctx))
	assert.Equal(t, 0, pool.NumFree(ctx))
}

func TestPoolBytesGrowsAndShrinksView(t *testing.T) {
	ctx := context.Background()
	pool := New()
	id := pool.Acquire(ctx)

	buf := pool.Bytes(ctx, id, 16)
	require.Len(t, buf, 16)
	for i := range buf {
		buf[i] = byte(i + 1)
	}

	// a smaller request keeps the arena, only the view shrinks
	buf = pool.Bytes(ctx, id, 8)
	require.Len(t, buf, 8)
	assert.Equal(t, byte(1), buf[0])

	buf = pool.Bytes(ctx, id, 1024)
	require.Len(t, buf, 1024)
}

func TestPoolReleaseClearsContents(t *testing.T) {
	ctx := context.Background()
	pool := New()
	id := pool.Acquire(ctx)

	buf := pool.Bytes(ctx, id, 4)
	copy(buf, []byte{1, 2, 3, 4})
	pool.Release(ctx, id)

	id2 := pool.Acquire(ctx)
	require.Equal(t, id, id2)
	assert.Equal(t, []byte{0, 0, 0, 0}, pool.Bytes(ctx, id2, 4))
}

func TestPoolDoubleReleasePanics(t *testing.T) {
	ctx := context.Background()
	pool := New()
	id := pool.Acquire(ctx)
	pool.Release(ctx, id)

	assert.Panics(t, func() {
		pool.Release(ctx, id)
	})
	assert.Panics(t, func() {
		pool.Bytes(ctx, id, 1)
	})
	assert.Panics(t, func() {
		pool.Release(ctx, SlotID(100))
	})
}
