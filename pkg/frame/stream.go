package frame

import (
	"fmt"

	"github.com/cliptrim/cliptrim/pkg/audio/types"
)

type StreamKind uint

const (
	StreamKindUnknown = StreamKind(iota)
	StreamKindVideo
	StreamKindAudio
)

func (k StreamKind) String() string {
	switch k {
	case StreamKindUnknown:
		return "unknown"
	case StreamKindVideo:
		return "video"
	case StreamKindAudio:
		return "audio"
	default:
		return fmt.Sprintf("<unexpected_value_%d>", k)
	}
}

// StreamDescriptor classifies one container stream. Streams of unknown kind
// are skipped by all consumers.
type StreamDescriptor struct {
	Index int
	Kind  StreamKind
	Audio *AudioParams
}

type AudioParams struct {
	Format     types.PCMFormat
	SampleRate int
	Channels   int
}
