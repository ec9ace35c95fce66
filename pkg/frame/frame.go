// Package frame defines the decoded frame model shared by the decoder and
// every playback-side consumer. A frame is backed by a framepool slot and
// must be released exactly once by whichever consumer holds it last.
package frame

import (
	"context"
	"time"

	"github.com/cliptrim/cliptrim/pkg/audio/types"
	"github.com/cliptrim/cliptrim/pkg/framepool"
)

type Frame interface {
	PTS() time.Duration

	// Release hands the backing pool slot back; it must be called exactly
	// once, from whichever goroutine ends up owning the frame.
	Release(ctx context.Context)
}

var _ Frame = (*Video)(nil)
var _ Frame = (*Audio)(nil)

// Video is a planar YUV420 8-bit frame. The planes alias the backing pool
// slot and become invalid after Release.
//
// Invariants: the U/V row stride is Stride/2 and len(U) == len(V) ==
// len(Y)/4. The decoder rejects anything else instead of correcting it.
type Video struct {
	Pts        time.Duration
	Width      int
	Height     int
	Stride     int
	Y          []byte
	U          []byte
	V          []byte
	Colorspace Colorspace

	pool *framepool.Pool
	slot framepool.SlotID
}

func NewVideo(pool *framepool.Pool, slot framepool.SlotID) *Video {
	return &Video{
		pool: pool,
		slot: slot,
	}
}

func (f *Video) PTS() time.Duration {
	return f.Pts
}

func (f *Video) Slot() framepool.SlotID {
	return f.slot
}

func (f *Video) Release(ctx context.Context) {
	f.pool.Release(ctx, f.slot)
	f.Y, f.U, f.V = nil, nil, nil
}

// Audio is a decoded audio frame in the internal PCM format: one contiguous
// buffer per channel, all aliasing the backing pool slot.
type Audio struct {
	Pts        time.Duration
	Format     types.PCMFormat
	SampleRate int
	Channels   int
	NbSamples  int
	Data       [][]byte

	pool *framepool.Pool
	slot framepool.SlotID
}

func NewAudio(pool *framepool.Pool, slot framepool.SlotID) *Audio {
	return &Audio{
		pool: pool,
		slot: slot,
	}
}

func (f *Audio) PTS() time.Duration {
	return f.Pts
}

func (f *Audio) Slot() framepool.SlotID {
	return f.slot
}

func (f *Audio) Release(ctx context.Context) {
	f.pool.Release(ctx, f.slot)
	f.Data = nil
}
