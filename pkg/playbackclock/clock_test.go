package playbackclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionAdvancesWithWallClock(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(t0)

	assert.Equal(t, time.Duration(0), c.Position(t0))
	assert.Equal(t, 3*time.Second, c.Position(t0.Add(3*time.Second)))
}

func TestPauseResumeDoesNotLoseTime(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(t0)

	// play 2s, pause for 3s, then play 5s more: the position should be
	// exactly 7s, no matter how long the pause lasted
	c.Pause(t0.Add(2 * time.Second))
	require.True(t, c.IsPaused())
	assert.Equal(t, 2*time.Second, c.Position(t0.Add(4*time.Second)), "the position should freeze while paused")

	c.Resume(t0.Add(5 * time.Second))
	require.False(t, c.IsPaused())
	assert.Equal(t, 2*time.Second, c.Position(t0.Add(5*time.Second)))
	assert.Equal(t, 7*time.Second, c.Position(t0.Add(10*time.Second)))
}

func TestPauseResumeAreIdempotent(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(t0)

	c.Resume(t0.Add(time.Second)) // no-op while playing
	assert.Equal(t, 2*time.Second, c.Position(t0.Add(2*time.Second)))

	c.Pause(t0.Add(2 * time.Second))
	c.Pause(t0.Add(3 * time.Second)) // no-op while paused
	c.Resume(t0.Add(4 * time.Second))
	assert.Equal(t, 2*time.Second, c.Position(t0.Add(4*time.Second)))
}

func TestSeekToPinsPosition(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(t0)

	c.SeekTo(t0.Add(time.Second), 30*time.Second)
	assert.Equal(t, 30*time.Second, c.Position(t0.Add(time.Second)))
	assert.Equal(t, 32*time.Second, c.Position(t0.Add(3*time.Second)))
}

func TestSeekToWhilePausedStaysPinned(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(t0)

	c.Pause(t0.Add(time.Second))
	c.SeekTo(t0.Add(2*time.Second), 30*time.Second)
	require.True(t, c.IsPaused())
	assert.Equal(t, 30*time.Second, c.Position(t0.Add(60*time.Second)), "the position should stay at the seek target for as long as the pause lasts")

	c.Resume(t0.Add(10 * time.Second))
	assert.Equal(t, 31*time.Second, c.Position(t0.Add(11*time.Second)))
}

func TestShouldPresent(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(t0)

	assert.True(t, c.ShouldPresent(t0, 0))
	assert.False(t, c.ShouldPresent(t0, 40*time.Millisecond))
	assert.True(t, c.ShouldPresent(t0.Add(40*time.Millisecond), 40*time.Millisecond))

	c.Pause(t0.Add(time.Second))
	assert.False(t, c.ShouldPresent(t0.Add(2*time.Second), 0), "nothing is due while paused")
}

func TestUntilNext(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(t0)

	d, ok := c.UntilNext(t0, 100*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, d)

	d, ok = c.UntilNext(t0.Add(150*time.Millisecond), 100*time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, -50*time.Millisecond, d, "a late frame should yield a negative remainder")

	c.Pause(t0.Add(time.Second))
	_, ok = c.UntilNext(t0.Add(time.Second), 2*time.Second)
	assert.False(t, ok)
}
