package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/cliptrim/cliptrim/pkg/frame"
	"github.com/cliptrim/cliptrim/pkg/framepool"
)

// LibAVContainer implements Container on top of go-astiav. One scratch
// packet and one scratch frame are reused across the whole session; the
// data handed out through RawFrame is valid only until the next
// ReceiveFrame, matching the Container contract.
type LibAVContainer struct {
	*astikit.Closer
	FormatContext *astiav.FormatContext
	Packet        *astiav.Packet
	InputFrame    *astiav.Frame

	streams []Stream
	byIndex map[int]*libavStream
}

var _ Container = (*LibAVContainer)(nil)

// OpenContainer opens a media file for demuxing and decoding.
func OpenContainer(ctx context.Context, path string) (_ret *LibAVContainer, _err error) {
	logger.Debugf(ctx, "OpenContainer('%s')", path)
	defer func() { logger.Debugf(ctx, "/OpenContainer('%s'): %v", path, _err) }()

	if path == "" {
		return nil, fmt.Errorf("the provided path is empty")
	}

	c := &LibAVContainer{
		Closer:  astikit.NewCloser(),
		byIndex: map[int]*libavStream{},
	}
	defer func() {
		if _err != nil {
			_ = c.Close()
		}
	}()

	c.FormatContext = astiav.AllocFormatContext()
	if c.FormatContext == nil {
		return nil, fmt.Errorf("unable to allocate a format context")
	}
	c.Closer.Add(c.FormatContext.Free)

	if err := c.FormatContext.OpenInput(path, nil, nil); err != nil {
		return nil, fmt.Errorf("unable to open input '%s': %w", path, err)
	}
	c.Closer.Add(c.FormatContext.CloseInput)

	if err := c.FormatContext.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("unable to get stream info: %w", err)
	}

	c.Packet = astiav.AllocPacket()
	c.Closer.Add(c.Packet.Free)
	c.InputFrame = astiav.AllocFrame()
	c.Closer.Add(c.InputFrame.Free)

	for _, st := range c.FormatContext.Streams() {
		s, err := c.newStream(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize stream %d: %w", st.Index(), err)
		}
		c.streams = append(c.streams, s)
		c.byIndex[st.Index()] = s
	}
	return c, nil
}

func (c *LibAVContainer) newStream(
	ctx context.Context,
	st *astiav.Stream,
) (_ret *libavStream, _err error) {
	s := &libavStream{
		container:   c,
		inputStream: st,
		kind:        frame.StreamKindUnknown,
	}

	var kind frame.StreamKind
	switch st.CodecParameters().MediaType() {
	case astiav.MediaTypeVideo:
		kind = frame.StreamKindVideo
	case astiav.MediaTypeAudio:
		kind = frame.StreamKindAudio
	default:
		logger.Debugf(ctx, "stream %d has media type %v, leaving it unclassified", st.Index(), st.CodecParameters().MediaType())
		return s, nil
	}

	codec := astiav.FindDecoder(st.CodecParameters().CodecID())
	if codec == nil {
		logger.Warnf(ctx, "unable to find a codec using codec ID %v, leaving stream %d unclassified", st.CodecParameters().CodecID(), st.Index())
		return s, nil
	}

	codecContext := astiav.AllocCodecContext(codec)
	if codecContext == nil {
		return nil, fmt.Errorf("unable to allocate a codec context")
	}
	c.Closer.Add(codecContext.Free)

	if err := st.CodecParameters().ToCodecContext(codecContext); err != nil {
		return nil, fmt.Errorf("CodecParameters().ToCodecContext(...) returned error: %w", err)
	}
	if kind == frame.StreamKindVideo {
		codecContext.SetFramerate(c.FormatContext.GuessFrameRate(st, nil))
	}
	if err := codecContext.Open(codec, nil); err != nil {
		return nil, fmt.Errorf("unable to open the codec context: %w", err)
	}

	s.kind = kind
	s.codecContext = codecContext
	return s, nil
}

func (c *LibAVContainer) Streams() []Stream {
	return c.streams
}

func (c *LibAVContainer) ReadPacket(ctx context.Context) (PacketInfo, error) {
	if err := c.FormatContext.ReadFrame(c.Packet); err != nil {
		if errors.Is(err, astiav.ErrEof) {
			return PacketInfo{}, io.EOF
		}
		return PacketInfo{}, fmt.Errorf("unable to read a packet: %w", err)
	}

	s := c.byIndex[c.Packet.StreamIndex()]
	pts := c.Packet.Pts()
	if pts == astiav.NoPtsValue {
		pts = c.Packet.Dts()
	}
	var position time.Duration
	if pts != astiav.NoPtsValue && s != nil {
		position = toDuration(pts, s.inputStream.TimeBase())
	}
	return PacketInfo{
		StreamIndex: c.Packet.StreamIndex(),
		PTS:         position,
	}, nil
}

func (c *LibAVContainer) SendPacket(ctx context.Context) error {
	s := c.byIndex[c.Packet.StreamIndex()]
	if s == nil || s.codecContext == nil {
		return fmt.Errorf("no decode context for stream %d", c.Packet.StreamIndex())
	}
	if err := s.codecContext.SendPacket(c.Packet); err != nil {
		return fmt.Errorf("unable to send the packet to the decode context: %w", err)
	}
	return nil
}

func (c *LibAVContainer) Seek(ctx context.Context, streamIndex int, pts time.Duration) error {
	var ts int64
	if streamIndex < 0 {
		ts = int64(pts.Seconds() * float64(astiav.TimeBase))
	} else {
		s := c.byIndex[streamIndex]
		if s == nil {
			return fmt.Errorf("stream %d does not exist", streamIndex)
		}
		ts = fromDuration(pts, s.inputStream.TimeBase())
	}
	if err := c.FormatContext.SeekFrame(streamIndex, ts, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("unable to seek to %v (timestamp %d) on stream %d: %w", pts, ts, streamIndex, err)
	}
	return nil
}

func (c *LibAVContainer) Close() error {
	return c.Closer.Close()
}

type libavStream struct {
	container    *LibAVContainer
	inputStream  *astiav.Stream
	codecContext *astiav.CodecContext
	kind         frame.StreamKind
}

var _ Stream = (*libavStream)(nil)

func (s *libavStream) Index() int {
	return s.inputStream.Index()
}

func (s *libavStream) Kind() frame.StreamKind {
	return s.kind
}

func (s *libavStream) AudioParams() (SampleFormat, int, int) {
	cp := s.inputStream.CodecParameters()
	return sampleFormat(cp.SampleFormat()), cp.SampleRate(), cp.ChannelLayout().Channels()
}

func (s *libavStream) ReceiveFrame(ctx context.Context, dst *RawFrame) error {
	f := s.container.InputFrame
	if err := s.codecContext.ReceiveFrame(f); err != nil {
		switch {
		case errors.Is(err, astiav.ErrEagain):
			return ErrNeedMoreInput
		case errors.Is(err, astiav.ErrEof):
			return io.EOF
		default:
			return fmt.Errorf("unable to receive a frame: %w", err)
		}
	}

	*dst = RawFrame{
		PTS: toDuration(f.Pts(), s.inputStream.TimeBase()),
	}
	switch s.kind {
	case frame.StreamKindVideo:
		return s.fillVideo(dst, f)
	case frame.StreamKindAudio:
		return s.fillAudio(dst, f)
	default:
		return fmt.Errorf("internal error: received a frame on an unclassified stream %d", s.Index())
	}
}

func (s *libavStream) fillVideo(dst *RawFrame, f *astiav.Frame) error {
	width, height := f.Width(), f.Height()
	dst.PixelFormat = PixelFormat{
		Name:      f.PixelFormat().Name(),
		IsYUV420P: f.PixelFormat() == astiav.PixelFormatYuv420P,
	}
	dst.Width = width
	dst.Height = height
	dst.Colorspace = colorspace(f.ColorSpace())
	if !dst.PixelFormat.IsYUV420P {
		return nil
	}

	// Bytes(1) re-packs the planes without padding: Y tightly strided at
	// the frame width, then U, then V at half resolution.
	b, err := f.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("unable to get the video frame data: %w", err)
	}
	chromaWidth, chromaHeight := (width+1)/2, (height+1)/2
	lumaLen := width * height
	chromaLen := chromaWidth * chromaHeight
	if len(b) < lumaLen+2*chromaLen {
		return fmt.Errorf("the video frame data is truncated: %d bytes for a %dx%d frame", len(b), width, height)
	}
	dst.LumaStride = width
	dst.ChromaStride = chromaWidth
	dst.Planes[0] = b[:lumaLen]
	dst.Planes[1] = b[lumaLen : lumaLen+chromaLen]
	dst.Planes[2] = b[lumaLen+chromaLen : lumaLen+2*chromaLen]
	return nil
}

func (s *libavStream) fillAudio(dst *RawFrame, f *astiav.Frame) error {
	dst.SampleFormat = sampleFormat(f.SampleFormat())
	dst.SampleRate = f.SampleRate()
	dst.Channels = f.ChannelLayout().Channels()
	dst.NbSamples = f.NbSamples()
	if !dst.SampleFormat.IsFloat32 {
		return nil
	}

	b, err := f.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("unable to get the audio frame data: %w", err)
	}
	channelLen := dst.NbSamples * sampleSize
	if dst.SampleFormat.IsPlanar {
		if len(b) < dst.Channels*channelLen {
			return fmt.Errorf("the audio frame data is truncated: %d bytes for %d channels of %d samples", len(b), dst.Channels, dst.NbSamples)
		}
		dst.AudioData = make([][]byte, dst.Channels)
		for ch := 0; ch < dst.Channels; ch++ {
			dst.AudioData[ch] = b[ch*channelLen : (ch+1)*channelLen]
		}
		return nil
	}
	dst.AudioData = [][]byte{b}
	return nil
}

func (s *libavStream) FlushBuffers(ctx context.Context) {
	if s.codecContext != nil {
		s.codecContext.FlushBuffers()
	}
}

func sampleFormat(sf astiav.SampleFormat) SampleFormat {
	return SampleFormat{
		Name:      sf.Name(),
		IsFloat32: sf == astiav.SampleFormatFlt || sf == astiav.SampleFormatFltp,
		IsPlanar:  sf == astiav.SampleFormatFltp,
	}
}

func colorspace(cs astiav.ColorSpace) frame.Colorspace {
	switch cs {
	case astiav.ColorSpaceBt709:
		return frame.ColorspaceBT709
	case astiav.ColorSpaceBt470Bg, astiav.ColorSpaceSmpte170M:
		return frame.ColorspaceBT601
	default:
		return frame.ColorspaceUnspecified
	}
}

func toDuration(ts int64, timeBase astiav.Rational) time.Duration {
	if ts == astiav.NoPtsValue {
		return 0
	}
	seconds := float64(ts) * timeBase.Float64()
	return time.Duration(float64(time.Second) * seconds)
}

func fromDuration(d time.Duration, timeBase astiav.Rational) int64 {
	return int64(d.Seconds() / timeBase.Float64())
}

// OpenFile is the production entry point: it opens the container through
// libav and wraps it into a Decoder (paying the duration-discovery scan).
func OpenFile(
	ctx context.Context,
	path string,
	pool *framepool.Pool,
	cfg DecoderConfig,
) (*Decoder, error) {
	container, err := OpenContainer(ctx, path)
	if err != nil {
		return nil, err
	}
	d, err := NewDecoder(ctx, container, pool, cfg)
	if err != nil {
		_ = container.Close()
		return nil, err
	}
	return d, nil
}
