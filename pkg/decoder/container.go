package decoder

import (
	"context"
	"errors"
	"time"

	"github.com/cliptrim/cliptrim/pkg/frame"
)

// ErrNeedMoreInput is the collaborator's "send me another packet" signal.
// It never leaves this package: Next absorbs it by reading further packets.
var ErrNeedMoreInput = errors.New("the decode context needs more input")

// Container is the demux/decode collaborator: a single opened media file
// with per-stream decode contexts, shaped after the libav read-packet /
// send-packet / receive-frame model. The production implementation wraps
// go-astiav; tests substitute synthetic containers.
type Container interface {
	// Streams enumerates the container streams, in index order.
	Streams() []Stream

	// ReadPacket demuxes the next packet and reports which stream it
	// belongs to and its presentation timestamp (already rescaled from
	// the stream time base). The packet itself stays owned by the
	// container until the next ReadPacket call. End of input is io.EOF.
	ReadPacket(ctx context.Context) (PacketInfo, error)

	// SendPacket submits the most recently read packet to its stream's
	// decode context.
	SendPacket(ctx context.Context) error

	// Seek flushes buffered demux state and repositions to the nearest
	// keyframe at-or-before pts. streamIndex < 0 means "whatever stream
	// the container prefers". Decode context buffers are not touched;
	// the caller flushes those separately.
	Seek(ctx context.Context, streamIndex int, pts time.Duration) error

	Close() error
}

type PacketInfo struct {
	StreamIndex int
	PTS         time.Duration
}

// Stream is one container stream plus its decode context.
type Stream interface {
	Index() int
	Kind() frame.StreamKind

	// AudioParams reports the native (pre-conversion) audio parameters.
	// Only meaningful for audio streams.
	AudioParams() (SampleFormat, int, int)

	// ReceiveFrame fills dst with the next decoded frame of this stream.
	// The frame data is borrowed: it is valid only until the next
	// ReceiveFrame call. Returns ErrNeedMoreInput when the codec wants
	// another packet and io.EOF once fully drained.
	ReceiveFrame(ctx context.Context, dst *RawFrame) error

	// FlushBuffers drops everything buffered in the decode context.
	// Called after a seek.
	FlushBuffers(ctx context.Context)
}

// SampleFormat describes a native audio sample format just precisely
// enough to decide convertibility into the internal float32 format.
type SampleFormat struct {
	Name      string
	IsFloat32 bool
	IsPlanar  bool
}

// PixelFormat describes a native pixel format just precisely enough to
// decide whether it is the planar YUV420 8-bit layout this engine handles.
type PixelFormat struct {
	Name      string
	IsYUV420P bool
}

// RawFrame is a decoded frame as the collaborator hands it over, before
// classification and before it is copied into a pool slot. Exactly one of
// the video/audio field groups is populated.
type RawFrame struct {
	PTS time.Duration

	// video
	PixelFormat  PixelFormat
	Width        int
	Height       int
	LumaStride   int
	ChromaStride int
	Planes       [3][]byte
	Colorspace   frame.Colorspace

	// audio
	SampleFormat SampleFormat
	SampleRate   int
	Channels     int
	NbSamples    int
	AudioData    [][]byte
}
