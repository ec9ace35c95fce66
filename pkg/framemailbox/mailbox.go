// Package framemailbox hands the most recent decoded video frame from the
// decode goroutine to the render side. It is a single-slot, lossy channel:
// if the producer swaps faster than the consumer drains, intermediate
// frames are dropped and their pool slots released. That bounds memory and
// keeps the render side from ever seeing a backlog of stale video.
package framemailbox

import (
	"context"

	"github.com/xaionaro-go/xsync"

	"github.com/cliptrim/cliptrim/pkg/frame"
)

type Mailbox struct {
	Locker xsync.Mutex
	Held   *frame.Video
}

func New() *Mailbox {
	return &Mailbox{}
}

// Swap replaces the held frame with the given one, releasing the slot of
// whatever was held before. The producer never blocks on the consumer.
func (m *Mailbox) Swap(ctx context.Context, f *frame.Video) {
	m.Locker.Do(ctx, func() {
		if m.Held != nil {
			m.Held.Release(ctx)
		}
		m.Held = f
	})
}

// Consume takes the held frame and clears the slot, so the same frame is
// never handed out twice. Returns nil when there is nothing new.
func (m *Mailbox) Consume(ctx context.Context) *frame.Video {
	return xsync.DoR1(ctx, &m.Locker, func() *frame.Video {
		f := m.Held
		m.Held = nil
		return f
	})
}
