package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliptrim/cliptrim/pkg/frame"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
audio_backend: pulse
audio_buffer_size: 150ms
audio_queue_frames: 8
flush_audio_on_seek: false
mute: true
`))
	require.NoError(t, err)
	assert.Equal(t, AudioBackendPulse, cfg.AudioBackend)
	assert.Equal(t, 150*time.Millisecond, cfg.AudioBufferSize)
	assert.Equal(t, 8, cfg.AudioQueueFrames)
	assert.False(t, cfg.flushAudioOnSeek())
	assert.True(t, cfg.Mute)
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("mute: true"))
	require.NoError(t, err)
	assert.Equal(t, AudioBackendAuto, cfg.AudioBackend)
	assert.Equal(t, 300*time.Millisecond, cfg.AudioBufferSize)
	assert.True(t, cfg.flushAudioOnSeek(), "flushing on seek should be the default")
	assert.True(t, cfg.Mute)
}

func TestParseConfigRejectsGarbage(t *testing.T) {
	_, err := ParseConfig([]byte("{{"))
	assert.Error(t, err)
}

func TestConfigDecoderConfig(t *testing.T) {
	decCfg, err := Config{}.DecoderConfig()
	require.NoError(t, err)
	assert.Nil(t, decCfg.ColorspacePolicy)

	decCfg, err = Config{AssumedColorspace: "bt601"}.DecoderConfig()
	require.NoError(t, err)
	assert.Equal(t, frame.ColorspaceBT601, decCfg.AssumedColorspace)
	require.NotNil(t, decCfg.ColorspacePolicy)
	assert.Equal(t, frame.ColorspaceBT601, decCfg.ColorspacePolicy(1920, 1080))

	_, err = Config{AssumedColorspace: "bt2020"}.DecoderConfig()
	assert.Error(t, err)
}
