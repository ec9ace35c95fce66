package player

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/cliptrim/cliptrim/pkg/audio"
	"github.com/cliptrim/cliptrim/pkg/decoder"
	"github.com/cliptrim/cliptrim/pkg/frame"
)

type AudioBackend string

const (
	AudioBackendAuto  = AudioBackend("auto")
	AudioBackendOto   = AudioBackend("oto")
	AudioBackendPulse = AudioBackend("pulse")
	AudioBackendDummy = AudioBackend("dummy")
)

type Config struct {
	AudioBackend    AudioBackend  `yaml:"audio_backend"`
	AudioBufferSize time.Duration `yaml:"audio_buffer_size"`

	// AudioQueueFrames bounds the decoded-audio queue; zero means the
	// audioqueue package default.
	AudioQueueFrames int `yaml:"audio_queue_frames"`

	// FlushAudioOnSeek drops queued audio on seek so a jump does not play
	// stale samples. Disable only if avoiding the resulting click matters
	// more than strict A/V sync right after a seek.
	FlushAudioOnSeek *bool `yaml:"flush_audio_on_seek"`

	Mute bool `yaml:"mute"`

	// AssumedColorspace names the colorspace assumed for video streams
	// that do not declare one: "bt601" or "bt709". Empty keeps the
	// resolution-based heuristic.
	AssumedColorspace string `yaml:"assumed_colorspace"`
}

func DefaultConfig() Config {
	return Config{
		AudioBackend:    AudioBackendAuto,
		AudioBufferSize: 300 * time.Millisecond,
	}
}

func ParseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("unable to parse the config: %w", err)
	}
	return cfg, nil
}

// DecoderConfig translates the user-facing colorspace setting into a
// decoder configuration.
func (cfg Config) DecoderConfig() (decoder.DecoderConfig, error) {
	switch cfg.AssumedColorspace {
	case "":
		return decoder.DecoderConfig{}, nil
	case "bt601":
		return pinnedColorspace(frame.ColorspaceBT601), nil
	case "bt709":
		return pinnedColorspace(frame.ColorspaceBT709), nil
	default:
		return decoder.DecoderConfig{}, fmt.Errorf("unknown colorspace '%s' (expected 'bt601' or 'bt709')", cfg.AssumedColorspace)
	}
}

func pinnedColorspace(cs frame.Colorspace) decoder.DecoderConfig {
	return decoder.DecoderConfig{
		ColorspacePolicy:  func(width, height int) frame.Colorspace { return cs },
		AssumedColorspace: cs,
	}
}

func (cfg Config) flushAudioOnSeek() bool {
	if cfg.FlushAudioOnSeek == nil {
		return true
	}
	return *cfg.FlushAudioOnSeek
}

func (cfg Config) newAudio(ctx context.Context) (*audio.Audio, error) {
	switch cfg.AudioBackend {
	case "", AudioBackendAuto:
		return audio.NewAudioAuto(ctx), nil
	case AudioBackendOto:
		return audio.NewAudio(audio.NewPlayerOto()), nil
	case AudioBackendPulse:
		return audio.NewAudio(audio.NewPlayerPulse()), nil
	case AudioBackendDummy:
		return audio.NewAudio(audio.NewPlayerDummy()), nil
	default:
		return nil, fmt.Errorf("unknown audio backend '%s'", cfg.AudioBackend)
	}
}
