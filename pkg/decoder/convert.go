package decoder

import (
	"context"
	"fmt"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/cliptrim/cliptrim/pkg/audio/types"
	"github.com/cliptrim/cliptrim/pkg/frame"
)

const sampleSize = 4 // f32le

// convertFrame classifies the raw frame and copies it into a pool slot,
// producing the tagged frame consumers hold. Format assumptions are
// checked, never corrected: a mismatch is an "unimplemented" error, so the
// caller reports clearly instead of rendering corrupted frames.
func (d *Decoder) convertFrame(
	ctx context.Context,
	stream Stream,
	raw *RawFrame,
) (frame.Frame, error) {
	switch stream.Kind() {
	case frame.StreamKindVideo:
		return d.convertVideoFrame(ctx, raw)
	case frame.StreamKindAudio:
		return d.convertAudioFrame(ctx, raw)
	default:
		return nil, fmt.Errorf("internal error: tried to convert a frame of a stream of kind %v", stream.Kind())
	}
}

func (d *Decoder) convertVideoFrame(
	ctx context.Context,
	raw *RawFrame,
) (*frame.Video, error) {
	if !raw.PixelFormat.IsYUV420P {
		return nil, frame.ErrPixelFormatNotSupported{PixelFormat: raw.PixelFormat.Name}
	}

	lumaLen := len(raw.Planes[0])
	chromaLen := len(raw.Planes[1])
	if raw.ChromaStride*2 != raw.LumaStride ||
		len(raw.Planes[2]) != chromaLen ||
		chromaLen*4 != lumaLen {
		return nil, frame.ErrPlaneLayoutNotSupported{
			Width:        raw.Width,
			Height:       raw.Height,
			LumaStride:   raw.LumaStride,
			ChromaStride: raw.ChromaStride,
			LumaLen:      lumaLen,
			ChromaLen:    len(raw.Planes[2]),
		}
	}

	colorspace := raw.Colorspace
	if colorspace == frame.ColorspaceUnspecified {
		colorspace = d.Config.ColorspacePolicy(raw.Width, raw.Height)
	}
	if colorspace != d.Config.AssumedColorspace {
		logger.Warnf(ctx,
			"the frame colorspace %v differs from the %v the conversion code assumes; colors may be slightly off",
			colorspace, d.Config.AssumedColorspace,
		)
	}

	slot := d.Pool.Acquire(ctx)
	buf := d.Pool.Bytes(ctx, slot, lumaLen+2*chromaLen)
	copy(buf, raw.Planes[0])
	copy(buf[lumaLen:], raw.Planes[1])
	copy(buf[lumaLen+chromaLen:], raw.Planes[2])

	f := frame.NewVideo(d.Pool, slot)
	f.Pts = raw.PTS
	f.Width = raw.Width
	f.Height = raw.Height
	f.Stride = raw.LumaStride
	f.Y = buf[:lumaLen]
	f.U = buf[lumaLen : lumaLen+chromaLen]
	f.V = buf[lumaLen+chromaLen:]
	f.Colorspace = colorspace
	return f, nil
}

func (d *Decoder) convertAudioFrame(
	ctx context.Context,
	raw *RawFrame,
) (*frame.Audio, error) {
	if !raw.SampleFormat.IsFloat32 {
		return nil, frame.ErrSampleFormatNotSupported{SampleFormat: raw.SampleFormat.Name}
	}

	channelLen := raw.NbSamples * sampleSize
	slot := d.Pool.Acquire(ctx)
	buf := d.Pool.Bytes(ctx, slot, raw.Channels*channelLen)

	f := frame.NewAudio(d.Pool, slot)
	f.Pts = raw.PTS
	f.Format = types.PCMFormatFloat32LE
	f.SampleRate = raw.SampleRate
	f.Channels = raw.Channels
	f.NbSamples = raw.NbSamples
	f.Data = make([][]byte, raw.Channels)

	if raw.SampleFormat.IsPlanar {
		for ch := 0; ch < raw.Channels; ch++ {
			dst := buf[ch*channelLen : (ch+1)*channelLen]
			copy(dst, raw.AudioData[ch])
			f.Data[ch] = dst
		}
		return f, nil
	}

	// interleaved: de-interleave into one contiguous buffer per channel
	src := raw.AudioData[0]
	for ch := 0; ch < raw.Channels; ch++ {
		dst := buf[ch*channelLen : (ch+1)*channelLen]
		for i := 0; i < raw.NbSamples; i++ {
			copy(dst[i*sampleSize:(i+1)*sampleSize], src[(i*raw.Channels+ch)*sampleSize:])
		}
		f.Data[ch] = dst
	}
	return f, nil
}
