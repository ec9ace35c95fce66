// Package audioqueue buffers a few hundred milliseconds of decoded audio
// between the decode loop (producer) and the realtime device pull
// (consumer). The queue is bounded; a full queue is backpressure that the
// producer handles by dropping the frame, never by blocking.
package audioqueue

import (
	"context"
	"io"
	"sync"

	"github.com/cliptrim/cliptrim/pkg/frame"
)

// DefaultCapacity is in frames. At the typical 1024 samples per frame and
// 48kHz this is roughly a third of a second of audio.
const DefaultCapacity = 16

type ErrQueueFull struct{}

func (ErrQueueFull) Error() string {
	return "the audio queue is full"
}

// Queue is the producer/consumer ring. The lock is a plain sync.Mutex
// because Read runs on the audio device's realtime goroutine: it must
// complete in bounded time and may not allocate.
type Queue struct {
	Locker   sync.Mutex
	Capacity int

	frames []*frame.Audio
	cursor int // samples already serialized from frames[0]
}

func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{
		Capacity: capacity,
		frames:   make([]*frame.Audio, 0, capacity),
	}
}

// NumFramesNeeded reports how many more frames fit before Push starts
// returning ErrQueueFull.
func (q *Queue) NumFramesNeeded(ctx context.Context) int {
	q.Locker.Lock()
	defer q.Locker.Unlock()
	return q.Capacity - len(q.frames)
}

// Push appends a decoded frame. On ErrQueueFull the caller keeps ownership
// of the frame (and is expected to drop it and log, not retry).
func (q *Queue) Push(ctx context.Context, f *frame.Audio) error {
	q.Locker.Lock()
	defer q.Locker.Unlock()

	if len(q.frames) >= q.Capacity {
		return ErrQueueFull{}
	}
	q.frames = append(q.frames, f)
	return nil
}

// Flush drops all queued frames and releases their pool slots. Used on
// seek so stale audio from before the jump is not played.
func (q *Queue) Flush(ctx context.Context) {
	q.Locker.Lock()
	defer q.Locker.Unlock()

	for _, f := range q.frames {
		f.Release(ctx)
	}
	q.frames = q.frames[:0]
	q.cursor = 0
}

var _ io.Reader = (*Queue)(nil)

// Read is the realtime pull callback: the audio backend calls it on its own
// goroutine at the device's buffer cadence. It serializes queued frames
// into interleaved float32 LE samples, cycling through the channels of a
// sample before advancing to the next sample index. Exhausted frames are
// released back to the pool and removed before moving on. When the queue
// runs dry the remainder of the hardware buffer is zero-filled: an
// underrun plays silence instead of garbage.
func (q *Queue) Read(p []byte) (int, error) {
	q.Locker.Lock()
	defer q.Locker.Unlock()

	const sampleSize = 4 // f32le
	n := 0
	for len(q.frames) > 0 {
		f := q.frames[0]
		if q.cursor >= f.NbSamples {
			f.Release(context.TODO())
			copy(q.frames, q.frames[1:])
			q.frames = q.frames[:len(q.frames)-1]
			q.cursor = 0
			continue
		}
		if n+f.Channels*sampleSize > len(p) {
			break
		}
		for ch := 0; ch < f.Channels; ch++ {
			copy(p[n:n+sampleSize], f.Data[ch][q.cursor*sampleSize:])
			n += sampleSize
		}
		q.cursor++
	}

	clear(p[n:])
	return len(p), nil
}
