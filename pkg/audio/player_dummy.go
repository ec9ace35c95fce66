package audio

import (
	"io"
	"time"
)

// PlayerPCMDummy discards everything; used headless and in tests.
type PlayerPCMDummy struct{}

var _ PlayerPCM = PlayerPCMDummy{}

func NewPlayerDummy() PlayerPCM {
	return PlayerPCMDummy{}
}

func (PlayerPCMDummy) Ping() error {
	return nil
}

func (PlayerPCMDummy) PlayPCM(
	sampleRate uint32,
	channels uint16,
	format PCMFormat,
	bufferSize time.Duration,
	reader io.Reader,
) (Stream, error) {
	return streamDummy{}, nil
}

type streamDummy struct{}

func (streamDummy) Close() error {
	return nil
}
