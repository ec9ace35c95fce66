// Package playbackclock models the logical play position as a function of
// wall-clock time: position = (now - origin) - adjustment. The adjustment
// only ever changes when a pause is resolved or on a seek, so during
// uninterrupted playback the position is pure arithmetic on wall time and
// cannot accumulate drift.
package playbackclock

import (
	"time"
)

type Clock struct {
	Origin     time.Time
	PausedAt   time.Time // zero while playing
	Adjustment time.Duration
}

// New returns a clock that considers playback started (playing) at `now`
// with the logical position at zero.
func New(now time.Time) *Clock {
	return &Clock{
		Origin: now,
	}
}

func (c *Clock) IsPaused() bool {
	return !c.PausedAt.IsZero()
}

// Pause freezes the logical position. No-op while already paused.
func (c *Clock) Pause(now time.Time) {
	if c.IsPaused() {
		return
	}
	c.PausedAt = now
}

// Resume folds the time spent paused into the adjustment, so the logical
// position continues exactly where Pause left it. No-op while playing.
func (c *Clock) Resume(now time.Time) {
	if !c.IsPaused() {
		return
	}
	c.Adjustment += now.Sub(c.PausedAt)
	c.PausedAt = time.Time{}
}

// SeekTo pins the logical position to `target`. While paused the pause
// instant is moved to `now` as well, so the position stays pinned at the
// target for as long as the pause lasts.
func (c *Clock) SeekTo(now time.Time, target time.Duration) {
	c.Origin = now
	c.Adjustment = -target
	if c.IsPaused() {
		c.PausedAt = now
	}
}

// Position reports the current logical play position.
func (c *Clock) Position(now time.Time) time.Duration {
	if c.IsPaused() {
		now = c.PausedAt
	}
	return now.Sub(c.Origin) - c.Adjustment
}

// ShouldPresent reports whether a frame with the given pts is due: only
// while playing, and only once the logical position has reached the pts.
func (c *Clock) ShouldPresent(now time.Time, pts time.Duration) bool {
	if c.IsPaused() {
		return false
	}
	return pts <= c.Position(now)
}

// UntilNext returns the signed time remaining until the frame with the
// given pts is due, which is what the playback loop sleeps on. While
// paused it returns false and the caller idles on its command channel
// instead.
func (c *Clock) UntilNext(now time.Time, pts time.Duration) (time.Duration, bool) {
	if c.IsPaused() {
		return 0, false
	}
	return pts - c.Position(now), true
}
