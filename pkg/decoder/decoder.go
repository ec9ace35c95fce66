// Package decoder turns a compressed media container into tagged, pooled
// frames: planar YUV420 video and float32 audio, timestamped in seconds.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/cliptrim/cliptrim/pkg/audio/types"
	"github.com/cliptrim/cliptrim/pkg/frame"
	"github.com/cliptrim/cliptrim/pkg/framepool"
)

// AnyStream disables the stream filter of Next.
const AnyStream = -1

// ColorspacePolicy resolves the colorspace of a frame that does not declare
// one. It is a policy, not a fact: a height threshold standing in for
// metadata the container omitted.
type ColorspacePolicy func(width, height int) frame.Colorspace

// DefaultColorspacePolicy treats standard-definition frames as BT.601 and
// everything taller than 576 lines as BT.709.
func DefaultColorspacePolicy(width, height int) frame.Colorspace {
	if height <= 576 {
		return frame.ColorspaceBT601
	}
	return frame.ColorspaceBT709
}

type DecoderConfig struct {
	// ColorspacePolicy resolves unspecified colorspaces; nil means
	// DefaultColorspacePolicy.
	ColorspacePolicy ColorspacePolicy

	// AssumedColorspace is what the downstream YUV→RGB conversion
	// expects. A frame resolving to anything else is logged, not failed.
	AssumedColorspace frame.Colorspace
}

type Decoder struct {
	Locker    sync.Mutex
	Config    DecoderConfig
	Container Container
	Pool      *framepool.Pool

	streams     map[int]Stream
	kinds       map[int]frame.StreamKind
	descriptors []frame.StreamDescriptor
	duration    time.Duration
	scratch     RawFrame
}

// NewDecoder wraps an already opened container. Duration discovery scans
// the whole container once and rewinds, so construction is a blocking,
// one-time cost proportional to the input size.
func NewDecoder(
	ctx context.Context,
	container Container,
	pool *framepool.Pool,
	cfg DecoderConfig,
) (_ret *Decoder, _err error) {
	logger.Debugf(ctx, "NewDecoder")
	defer func() { logger.Debugf(ctx, "/NewDecoder: %v", _err) }()

	if cfg.ColorspacePolicy == nil {
		cfg.ColorspacePolicy = DefaultColorspacePolicy
	}
	if cfg.AssumedColorspace == frame.ColorspaceUnspecified {
		cfg.AssumedColorspace = frame.ColorspaceBT709
	}

	d := &Decoder{
		Config:    cfg,
		Container: container,
		Pool:      pool,
		streams:   map[int]Stream{},
		kinds:     map[int]frame.StreamKind{},
	}

	for _, s := range container.Streams() {
		desc := describeStream(ctx, s)
		d.streams[s.Index()] = s
		d.kinds[s.Index()] = desc.Kind
		d.descriptors = append(d.descriptors, desc)
	}

	if err := d.discoverDuration(ctx); err != nil {
		return nil, fmt.Errorf("unable to discover the container duration: %w", err)
	}

	return d, nil
}

func describeStream(ctx context.Context, s Stream) frame.StreamDescriptor {
	desc := frame.StreamDescriptor{
		Index: s.Index(),
		Kind:  s.Kind(),
	}
	switch s.Kind() {
	case frame.StreamKindVideo:
	case frame.StreamKindAudio:
		format, sampleRate, channels := s.AudioParams()
		if !format.IsFloat32 {
			logger.Debugf(ctx, "stream %d has the unsupported sample format '%s', skipping", s.Index(), format.Name)
			desc.Kind = frame.StreamKindUnknown
			return desc
		}
		desc.Audio = &frame.AudioParams{
			Format:     types.PCMFormatFloat32LE,
			SampleRate: sampleRate,
			Channels:   channels,
		}
	default:
		logger.Debugf(ctx, "stream %d is not an audio/video stream, skipping", s.Index())
	}
	return desc
}

// Streams returns the classification performed once at open time. Streams
// of unknown kind are skipped by Next.
func (d *Decoder) Streams() []frame.StreamDescriptor {
	return d.descriptors
}

// Duration reports the container duration discovered at open time.
func (d *Decoder) Duration() time.Duration {
	return d.duration
}

// discoverDuration scans to end-of-stream recording the maximum packet
// timestamp, then rewinds to the start and flushes the decode contexts.
func (d *Decoder) discoverDuration(ctx context.Context) error {
	var max time.Duration
	for {
		pkt, err := d.Container.ReadPacket(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			d.duration = max
			return d.rewind(ctx)
		default:
			return fmt.Errorf("unable to read a packet: %w", err)
		}
		if pkt.PTS > max {
			max = pkt.PTS
		}
	}
}

func (d *Decoder) rewind(ctx context.Context) error {
	if err := d.Container.Seek(ctx, AnyStream, 0); err != nil {
		return fmt.Errorf("unable to seek back to the start: %w", err)
	}
	for _, s := range d.streams {
		s.FlushBuffers(ctx)
	}
	return nil
}

// Next runs the demux→decode loop until it has one frame to hand out:
// read a packet (end-of-input is io.EOF, a normal termination signal, not
// an error); discard packets not matching the filter or belonging to
// unclassified streams; submit the packet; attempt to receive a decoded
// frame. A codec asking for more input restarts the loop and is never
// surfaced. Any other decode failure is fatal for the stream.
//
// Pass AnyStream as filter to accept every classified stream.
func (d *Decoder) Next(ctx context.Context, filter int) (frame.Frame, error) {
	d.Locker.Lock()
	defer d.Locker.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		pkt, err := d.Container.ReadPacket(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		default:
			return nil, fmt.Errorf("unable to read a packet: %w", err)
		}

		if filter != AnyStream && pkt.StreamIndex != filter {
			continue
		}
		stream, ok := d.streams[pkt.StreamIndex]
		if !ok || d.kinds[pkt.StreamIndex] == frame.StreamKindUnknown {
			continue
		}

		if err := d.Container.SendPacket(ctx); err != nil {
			return nil, fmt.Errorf("unable to send a packet to the decode context of stream %d: %w", pkt.StreamIndex, err)
		}

		err = stream.ReceiveFrame(ctx, &d.scratch)
		switch {
		case err == nil:
		case errors.Is(err, ErrNeedMoreInput):
			continue
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		default:
			return nil, fmt.Errorf("unable to receive a frame from stream %d: %w", pkt.StreamIndex, err)
		}

		return d.convertFrame(ctx, stream, &d.scratch)
	}
}

// Seek flushes buffered demux state, repositions to the nearest keyframe
// at-or-before pts and flushes every stream's decode context. The next
// calls to Next may return frames from before pts; callers discard those
// by timestamp comparison.
func (d *Decoder) Seek(ctx context.Context, pts time.Duration, streamIndex int) (_err error) {
	logger.Debugf(ctx, "Seek(%v, %d)", pts, streamIndex)
	defer func() { logger.Debugf(ctx, "/Seek(%v, %d): %v", pts, streamIndex, _err) }()

	d.Locker.Lock()
	defer d.Locker.Unlock()

	if err := d.Container.Seek(ctx, streamIndex, pts); err != nil {
		return fmt.Errorf("unable to seek to %v on stream %d: %w", pts, streamIndex, err)
	}
	for _, s := range d.streams {
		s.FlushBuffers(ctx)
	}
	return nil
}

func (d *Decoder) Close() error {
	d.Locker.Lock()
	defer d.Locker.Unlock()
	return d.Container.Close()
}
