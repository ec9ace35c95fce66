package decoder

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliptrim/cliptrim/pkg/frame"
	"github.com/cliptrim/cliptrim/pkg/framepool"
)

// fakeContainer scripts the demux side: a fixed list of packets, each
// carrying the frames its stream's decode context will yield after the
// packet is sent. A packet without frames makes the codec ask for more
// input, like the first packets of a real stream do.
type fakePacket struct {
	stream   int
	pts      time.Duration
	keyframe bool
	frames   []RawFrame
}

type fakeStream struct {
	index      int
	kind       frame.StreamKind
	format     SampleFormat
	sampleRate int
	channels   int

	queue      []RawFrame
	flushCount int
}

var _ Stream = (*fakeStream)(nil)

func (s *fakeStream) Index() int            { return s.index }
func (s *fakeStream) Kind() frame.StreamKind { return s.kind }

func (s *fakeStream) AudioParams() (SampleFormat, int, int) {
	return s.format, s.sampleRate, s.channels
}

func (s *fakeStream) ReceiveFrame(ctx context.Context, dst *RawFrame) error {
	if len(s.queue) == 0 {
		return ErrNeedMoreInput
	}
	*dst = s.queue[0]
	s.queue = s.queue[1:]
	return nil
}

func (s *fakeStream) FlushBuffers(ctx context.Context) {
	s.queue = nil
	s.flushCount++
}

type fakeContainer struct {
	streams []*fakeStream
	packets []fakePacket
	cursor  int
	last    *fakePacket
	seeks   []time.Duration
	closed  bool
}

var _ Container = (*fakeContainer)(nil)

func (c *fakeContainer) Streams() []Stream {
	result := make([]Stream, 0, len(c.streams))
	for _, s := range c.streams {
		result = append(result, s)
	}
	return result
}

func (c *fakeContainer) ReadPacket(ctx context.Context) (PacketInfo, error) {
	if c.cursor >= len(c.packets) {
		return PacketInfo{}, io.EOF
	}
	c.last = &c.packets[c.cursor]
	c.cursor++
	return PacketInfo{StreamIndex: c.last.stream, PTS: c.last.pts}, nil
}

func (c *fakeContainer) SendPacket(ctx context.Context) error {
	for _, s := range c.streams {
		if s.index == c.last.stream {
			s.queue = append(s.queue, c.last.frames...)
			return nil
		}
	}
	return fmt.Errorf("no stream with index %d", c.last.stream)
}

// Seek emulates the keyframe model: it repositions to the last keyframe
// packet at-or-before pts.
func (c *fakeContainer) Seek(ctx context.Context, streamIndex int, pts time.Duration) error {
	c.seeks = append(c.seeks, pts)
	target := 0
	for i, p := range c.packets {
		if p.keyframe && p.pts <= pts && (streamIndex < 0 || p.stream == streamIndex) {
			target = i
		}
	}
	c.cursor = target
	return nil
}

func (c *fakeContainer) Close() error {
	c.closed = true
	return nil
}

var (
	float32Planar = SampleFormat{Name: "fltp", IsFloat32: true, IsPlanar: true}
	float32Packed = SampleFormat{Name: "flt", IsFloat32: true}
	int16Packed   = SampleFormat{Name: "s16"}
	yuv420p       = PixelFormat{Name: "yuv420p", IsYUV420P: true}
)

func rawVideo(pts time.Duration) RawFrame {
	const w, h = 4, 4
	raw := RawFrame{
		PTS:          pts,
		PixelFormat:  yuv420p,
		Width:        w,
		Height:       h,
		LumaStride:   w,
		ChromaStride: w / 2,
	}
	raw.Planes[0] = make([]byte, w*h)
	raw.Planes[1] = make([]byte, w*h/4)
	raw.Planes[2] = make([]byte, w*h/4)
	for i := range raw.Planes[0] {
		raw.Planes[0][i] = byte(i)
	}
	for i := range raw.Planes[1] {
		raw.Planes[1][i] = byte(0x40 + i)
		raw.Planes[2][i] = byte(0x80 + i)
	}
	return raw
}

func rawAudioPlanar(pts time.Duration, channels, nbSamples int) RawFrame {
	raw := RawFrame{
		PTS:          pts,
		SampleFormat: float32Planar,
		SampleRate:   48000,
		Channels:     channels,
		NbSamples:    nbSamples,
		AudioData:    make([][]byte, channels),
	}
	for ch := range raw.AudioData {
		raw.AudioData[ch] = make([]byte, nbSamples*4)
		for i := range raw.AudioData[ch] {
			raw.AudioData[ch][i] = byte(16*ch + i/4)
		}
	}
	return raw
}

func videoPackets(keyframeEvery int, ptss ...time.Duration) []fakePacket {
	var packets []fakePacket
	for i, pts := range ptss {
		packets = append(packets, fakePacket{
			stream:   0,
			pts:      pts,
			keyframe: i%keyframeEvery == 0,
			frames:   []RawFrame{rawVideo(pts)},
		})
	}
	return packets
}

func newVideoStream(index int) *fakeStream {
	return &fakeStream{index: index, kind: frame.StreamKindVideo}
}

func newAudioStream(index int, format SampleFormat) *fakeStream {
	return &fakeStream{
		index:      index,
		kind:       frame.StreamKindAudio,
		format:     format,
		sampleRate: 48000,
		channels:   2,
	}
}

func TestDecoderClassifiesStreams(t *testing.T) {
	ctx := context.Background()
	c := &fakeContainer{
		streams: []*fakeStream{
			newVideoStream(0),
			newAudioStream(1, float32Planar),
			newAudioStream(2, int16Packed),
		},
	}
	d, err := NewDecoder(ctx, c, framepool.New(), DecoderConfig{})
	require.NoError(t, err)

	descs := d.Streams()
	require.Len(t, descs, 3)
	assert.Equal(t, frame.StreamKindVideo, descs[0].Kind)
	assert.Equal(t, frame.StreamKindAudio, descs[1].Kind)
	require.NotNil(t, descs[1].Audio)
	assert.Equal(t, 48000, descs[1].Audio.SampleRate)
	assert.Equal(t, 2, descs[1].Audio.Channels)
	assert.Equal(t, frame.StreamKindUnknown, descs[2].Kind, "non-float32 audio should be demoted to unknown")
}

func TestDecoderDiscoversDurationAndRewinds(t *testing.T) {
	ctx := context.Background()
	c := &fakeContainer{
		streams: []*fakeStream{newVideoStream(0)},
		packets: videoPackets(1, 0, 100*time.Millisecond, 200*time.Millisecond),
	}
	d, err := NewDecoder(ctx, c, framepool.New(), DecoderConfig{})
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, d.Duration())

	// the discovery scan rewound, so decoding starts from the beginning
	f, err := d.Next(ctx, AnyStream)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), f.PTS())
	f.Release(ctx)
}

func TestDecoderNextAbsorbsNeedMoreInput(t *testing.T) {
	ctx := context.Background()
	c := &fakeContainer{
		streams: []*fakeStream{newVideoStream(0)},
		packets: []fakePacket{
			// the codec delays by two packets, so the first two receive
			// attempts come up empty and the tail packets flush the rest
			{stream: 0, pts: 0, keyframe: true},
			{stream: 0, pts: 100 * time.Millisecond},
			{stream: 0, pts: 200 * time.Millisecond, frames: []RawFrame{rawVideo(0)}},
			{stream: 0, pts: 300 * time.Millisecond, frames: []RawFrame{rawVideo(100 * time.Millisecond)}},
			{stream: 0, pts: 300 * time.Millisecond, frames: []RawFrame{rawVideo(200 * time.Millisecond)}},
			{stream: 0, pts: 300 * time.Millisecond, frames: []RawFrame{rawVideo(300 * time.Millisecond)}},
		},
	}
	d, err := NewDecoder(ctx, c, framepool.New(), DecoderConfig{})
	require.NoError(t, err)

	for _, want := range []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond} {
		f, err := d.Next(ctx, AnyStream)
		require.NoError(t, err)
		assert.Equal(t, want, f.PTS())
		f.Release(ctx)
	}

	_, err = d.Next(ctx, AnyStream)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderNextFilter(t *testing.T) {
	ctx := context.Background()
	c := &fakeContainer{
		streams: []*fakeStream{
			newVideoStream(0),
			newAudioStream(1, float32Planar),
		},
		packets: []fakePacket{
			{stream: 1, pts: 0, keyframe: true, frames: []RawFrame{rawAudioPlanar(0, 2, 4)}},
			{stream: 0, pts: 0, keyframe: true, frames: []RawFrame{rawVideo(0)}},
			{stream: 1, pts: 21 * time.Millisecond, frames: []RawFrame{rawAudioPlanar(21*time.Millisecond, 2, 4)}},
			{stream: 0, pts: 100 * time.Millisecond, frames: []RawFrame{rawVideo(100 * time.Millisecond)}},
		},
	}
	d, err := NewDecoder(ctx, c, framepool.New(), DecoderConfig{})
	require.NoError(t, err)

	for _, want := range []time.Duration{0, 100 * time.Millisecond} {
		f, err := d.Next(ctx, 0)
		require.NoError(t, err)
		require.IsType(t, &frame.Video{}, f)
		assert.Equal(t, want, f.PTS())
		f.Release(ctx)
	}
}

func TestDecoderNextSkipsUnclassifiedStreams(t *testing.T) {
	ctx := context.Background()
	// stream 1 carries s16 audio, which classification demoted to unknown;
	// its packets must never reach the decode contexts
	c := &fakeContainer{
		streams: []*fakeStream{
			newVideoStream(0),
			newAudioStream(1, int16Packed),
		},
		packets: []fakePacket{
			{stream: 0, pts: 0, keyframe: true, frames: []RawFrame{rawVideo(0)}},
			// a frame here would fail the sample-format conversion, so a
			// passing run proves the packet was dropped before decode
			{stream: 1, pts: 0, keyframe: true, frames: []RawFrame{{
				PTS:          0,
				SampleFormat: int16Packed,
				SampleRate:   48000,
				Channels:     2,
				NbSamples:    4,
				AudioData:    [][]byte{make([]byte, 16)},
			}}},
			{stream: 0, pts: 100 * time.Millisecond, frames: []RawFrame{rawVideo(100 * time.Millisecond)}},
		},
	}
	d, err := NewDecoder(ctx, c, framepool.New(), DecoderConfig{})
	require.NoError(t, err)

	for _, want := range []time.Duration{0, 100 * time.Millisecond} {
		f, err := d.Next(ctx, AnyStream)
		require.NoError(t, err)
		require.IsType(t, &frame.Video{}, f)
		assert.Equal(t, want, f.PTS())
		f.Release(ctx)
	}
	_, err = d.Next(ctx, AnyStream)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderVideoConversion(t *testing.T) {
	ctx := context.Background()
	pool := framepool.New()
	c := &fakeContainer{
		streams: []*fakeStream{newVideoStream(0)},
		packets: videoPackets(1, 40*time.Millisecond),
	}
	d, err := NewDecoder(ctx, c, pool, DecoderConfig{})
	require.NoError(t, err)

	f, err := d.Next(ctx, AnyStream)
	require.NoError(t, err)
	v := f.(*frame.Video)

	assert.Equal(t, 40*time.Millisecond, v.Pts)
	assert.Equal(t, 4, v.Width)
	assert.Equal(t, 4, v.Height)
	assert.Equal(t, 4, v.Stride)
	want := rawVideo(0)
	assert.Equal(t, want.Planes[0], v.Y)
	assert.Equal(t, want.Planes[1], v.U)
	assert.Equal(t, want.Planes[2], v.V)

	v.Release(ctx)
	assert.Equal(t, 1, pool.NumFree(ctx), "the frame data should live in a pool slot")
}

func TestDecoderColorspaceFallback(t *testing.T) {
	ctx := context.Background()

	newContainer := func(colorspace frame.Colorspace, height int) *fakeContainer {
		raw := rawVideo(0)
		raw.Colorspace = colorspace
		raw.Height = height
		return &fakeContainer{
			streams: []*fakeStream{newVideoStream(0)},
			packets: []fakePacket{{stream: 0, keyframe: true, frames: []RawFrame{raw}}},
		}
	}

	// declared colorspace wins
	d, err := NewDecoder(ctx, newContainer(frame.ColorspaceBT709, 4), framepool.New(), DecoderConfig{})
	require.NoError(t, err)
	f, err := d.Next(ctx, AnyStream)
	require.NoError(t, err)
	assert.Equal(t, frame.ColorspaceBT709, f.(*frame.Video).Colorspace)
	f.Release(ctx)

	// an undeclared colorspace falls back to the height heuristic
	d, err = NewDecoder(ctx, newContainer(frame.ColorspaceUnspecified, 4), framepool.New(), DecoderConfig{})
	require.NoError(t, err)
	f, err = d.Next(ctx, AnyStream)
	require.NoError(t, err)
	assert.Equal(t, frame.ColorspaceBT601, f.(*frame.Video).Colorspace)
	f.Release(ctx)
}

func TestDefaultColorspacePolicy(t *testing.T) {
	assert.Equal(t, frame.ColorspaceBT601, DefaultColorspacePolicy(720, 576))
	assert.Equal(t, frame.ColorspaceBT709, DefaultColorspacePolicy(1024, 577))
	assert.Equal(t, frame.ColorspaceBT709, DefaultColorspacePolicy(1920, 1080))
}

func TestDecoderRejectsUnsupportedLayouts(t *testing.T) {
	ctx := context.Background()

	badStride := rawVideo(0)
	badStride.ChromaStride = badStride.LumaStride // not the half-width layout

	badFormat := rawVideo(0)
	badFormat.PixelFormat = PixelFormat{Name: "nv12"}

	decodeOne := func(raw RawFrame) error {
		c := &fakeContainer{
			streams: []*fakeStream{newVideoStream(0)},
			packets: []fakePacket{{stream: 0, keyframe: true, frames: []RawFrame{raw}}},
		}
		d, err := NewDecoder(ctx, c, framepool.New(), DecoderConfig{})
		require.NoError(t, err)
		_, err = d.Next(ctx, AnyStream)
		return err
	}

	t.Run("plane layout", func(t *testing.T) {
		var want frame.ErrPlaneLayoutNotSupported
		assert.ErrorAs(t, decodeOne(badStride), &want)
	})
	t.Run("pixel format", func(t *testing.T) {
		var want frame.ErrPixelFormatNotSupported
		assert.ErrorAs(t, decodeOne(badFormat), &want)
		assert.Equal(t, "nv12", want.PixelFormat)
	})
}

func TestDecoderAudioConversion(t *testing.T) {
	ctx := context.Background()

	interleaved := RawFrame{
		SampleFormat: float32Packed,
		SampleRate:   48000,
		Channels:     2,
		NbSamples:    2,
		AudioData: [][]byte{{
			0, 0, 0, 0, 16, 16, 16, 16, // sample 0: ch0, ch1
			1, 1, 1, 1, 17, 17, 17, 17, // sample 1: ch0, ch1
		}},
	}

	for name, raw := range map[string]RawFrame{
		"planar":      rawAudioPlanar(0, 2, 2),
		"interleaved": interleaved,
	} {
		t.Run(name, func(t *testing.T) {
			c := &fakeContainer{
				streams: []*fakeStream{newAudioStream(0, raw.SampleFormat)},
				packets: []fakePacket{{stream: 0, keyframe: true, frames: []RawFrame{raw}}},
			}
			d, err := NewDecoder(ctx, c, framepool.New(), DecoderConfig{})
			require.NoError(t, err)

			f, err := d.Next(ctx, AnyStream)
			require.NoError(t, err)
			a := f.(*frame.Audio)

			assert.Equal(t, 48000, a.SampleRate)
			assert.Equal(t, 2, a.Channels)
			assert.Equal(t, 2, a.NbSamples)
			// both layouts should end up as one contiguous buffer per channel
			assert.Equal(t, []byte{0, 0, 0, 0, 1, 1, 1, 1}, a.Data[0])
			assert.Equal(t, []byte{16, 16, 16, 16, 17, 17, 17, 17}, a.Data[1])
			a.Release(ctx)
		})
	}
}

func TestDecoderSeek(t *testing.T) {
	ctx := context.Background()
	c := &fakeContainer{
		streams: []*fakeStream{newVideoStream(0)},
		// keyframes at 0 and 200ms
		packets: videoPackets(2, 0, 100*time.Millisecond, 200*time.Millisecond, 300*time.Millisecond),
	}
	d, err := NewDecoder(ctx, c, framepool.New(), DecoderConfig{})
	require.NoError(t, err)

	require.NoError(t, d.Seek(ctx, 300*time.Millisecond, 0))
	assert.NotZero(t, c.streams[0].flushCount, "the decode context should be flushed on seek")

	// the container lands on the preceding keyframe, not the target
	f, err := d.Next(ctx, AnyStream)
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, f.PTS())
	f.Release(ctx)
}

func TestDecoderClose(t *testing.T) {
	ctx := context.Background()
	c := &fakeContainer{streams: []*fakeStream{newVideoStream(0)}}
	d, err := NewDecoder(ctx, c, framepool.New(), DecoderConfig{})
	require.NoError(t, err)

	require.NoError(t, d.Close())
	assert.True(t, c.closed)
}
