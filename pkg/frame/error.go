package frame

import (
	"fmt"
)

type ErrPixelFormatNotSupported struct {
	PixelFormat string
}

func (e ErrPixelFormatNotSupported) Error() string {
	return fmt.Sprintf("support of pixel format %s is not implemented, yet", e.PixelFormat)
}

type ErrSampleFormatNotSupported struct {
	SampleFormat string
}

func (e ErrSampleFormatNotSupported) Error() string {
	return fmt.Sprintf("support of audio sample format %s is not implemented, yet", e.SampleFormat)
}

// ErrPlaneLayoutNotSupported reports a YUV420 frame whose plane strides or
// sizes do not satisfy the layout the conversion code assumes.
type ErrPlaneLayoutNotSupported struct {
	Width        int
	Height       int
	LumaStride   int
	ChromaStride int
	LumaLen      int
	ChromaLen    int
}

func (e ErrPlaneLayoutNotSupported) Error() string {
	return fmt.Sprintf(
		"unsupported plane layout for a %dx%d frame: luma stride %d / chroma stride %d, luma %d bytes / chroma %d bytes",
		e.Width, e.Height, e.LumaStride, e.ChromaStride, e.LumaLen, e.ChromaLen,
	)
}
