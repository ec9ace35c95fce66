// Package audio abstracts PCM playback backends. The engine feeds all of
// them the same way: an io.Reader that the backend pulls interleaved
// samples from on its own realtime cadence.
package audio

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

type Audio struct {
	PlayerPCM
}

func NewAudio(playerPCM PlayerPCM) *Audio {
	return &Audio{
		PlayerPCM: playerPCM,
	}
}

// NewAudioAuto picks the first backend that responds to a ping, preferring
// PulseAudio over oto.
func NewAudioAuto(ctx context.Context) *Audio {
	for _, factory := range []func() PlayerPCM{
		NewPlayerPulse,
		NewPlayerOto,
	} {
		player := factory()
		if err := player.Ping(); err != nil {
			logger.Debugf(ctx, "backend %T did not respond to a ping: %v", player, err)
			continue
		}
		return &Audio{
			PlayerPCM: player,
		}
	}

	// the default backend:
	return &Audio{
		PlayerPCM: NewPlayerOto(),
	}
}
