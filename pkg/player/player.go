// Package player drives a playback session: it owns the decoder, the
// playback clock, the audio queue and the frame mailbox, and runs the loop
// that keeps audio and video flowing in wall-clock sync through
// pause/resume/seek and clip-boundary jump cuts.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"

	"github.com/cliptrim/cliptrim/pkg/audio"
	"github.com/cliptrim/cliptrim/pkg/audio/types"
	"github.com/cliptrim/cliptrim/pkg/audioqueue"
	"github.com/cliptrim/cliptrim/pkg/clips"
	"github.com/cliptrim/cliptrim/pkg/clock"
	"github.com/cliptrim/cliptrim/pkg/decoder"
	"github.com/cliptrim/cliptrim/pkg/frame"
	"github.com/cliptrim/cliptrim/pkg/framemailbox"
	"github.com/cliptrim/cliptrim/pkg/framepool"
	"github.com/cliptrim/cliptrim/pkg/playbackclock"
)

// audioOnlyPollInterval paces the decode loop when there is no video
// stream to compute presentation deadlines from.
const audioOnlyPollInterval = 50 * time.Millisecond

type command interface{}

type commandPause struct{}
type commandResume struct{}
type commandSeek struct{ Target time.Duration }
type commandClose struct{}

type Player struct {
	Locker xsync.Mutex
	Config Config

	Decoder    *decoder.Decoder
	Pool       *framepool.Pool
	Mailbox    *framemailbox.Mailbox
	AudioQueue *audioqueue.Queue

	audio       *audio.Audio
	audioStream audio.Stream

	keep             clips.Set
	clock            *playbackclock.Clock
	videoStreamIndex int
	audioStreamIndex int
	position         time.Duration
	pending          *frame.Video
	isEnded          bool
	isClosed         bool
	cmdChan          chan command
	endChan          chan struct{}
}

// New wires a playback session around an opened decoder. The session does
// not produce anything until Start (or Loop) runs.
func New(
	ctx context.Context,
	cfg Config,
	dec *decoder.Decoder,
	pool *framepool.Pool,
	keep clips.Set,
) (*Player, error) {
	aud, err := cfg.newAudio(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize the audio subsystem: %w", err)
	}

	p := &Player{
		Config:           cfg,
		Decoder:          dec,
		Pool:             pool,
		Mailbox:          framemailbox.New(),
		AudioQueue:       audioqueue.New(cfg.AudioQueueFrames),
		audio:            aud,
		keep:             keep,
		videoStreamIndex: -1,
		audioStreamIndex: -1,
		cmdChan:          make(chan command, 64),
		endChan:          make(chan struct{}),
	}
	p.clock = playbackclock.New(clock.Get().Now())
	for _, desc := range dec.Streams() {
		switch {
		case desc.Kind == frame.StreamKindVideo && p.videoStreamIndex < 0:
			p.videoStreamIndex = desc.Index
		case desc.Kind == frame.StreamKindAudio && p.audioStreamIndex < 0:
			p.audioStreamIndex = desc.Index
		}
	}
	return p, nil
}

// Start runs Loop on its own goroutine.
func (p *Player) Start(ctx context.Context) {
	observability.Go(ctx, func(ctx context.Context) {
		if err := p.Loop(ctx); err != nil {
			logger.Errorf(ctx, "the playback loop failed: %v", err)
		}
	})
}

// Loop is the playback session: it ticks until the context is cancelled,
// a close command arrives or decoding fails fatally. All decoder access,
// mailbox writes and audio queue pushes happen on this goroutine.
func (p *Player) Loop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Loop")
	defer func() { logger.Debugf(ctx, "/Loop: %v", _err) }()

	clk := clock.Get()
	defer func() {
		_err = multierror.Append(_err, p.cleanup(ctx)).ErrorOrNil()
	}()

	var initialSeek time.Duration
	var needInitialSeek bool
	p.Locker.Do(ctx, func() {
		p.clock = playbackclock.New(clk.Now())
		// Playback starts at the first kept range, which is not
		// necessarily the start of the recording.
		if start, ok := p.keep.FirstStart(); ok && !p.keep.Contains(0) {
			initialSeek, needInitialSeek = start, true
		}
	})
	if needInitialSeek {
		if err := p.SeekTo(ctx, initialSeek); err != nil {
			return err
		}
	}

	for {
		now := clk.Now()
		if err := p.Tick(ctx, now); err != nil {
			return err
		}

		var timerCh <-chan time.Time
		var timer *clock.Timer
		stop := xsync.DoR1(ctx, &p.Locker, func() bool {
			if p.isClosed {
				return true
			}
			switch {
			case p.pending != nil:
				if d, ok := p.clock.UntilNext(now, p.pending.Pts); ok {
					if d < 0 {
						d = 0
					}
					timer = clk.Timer(d)
					timerCh = timer.C
				}
			case p.videoStreamIndex < 0 && !p.clock.IsPaused() && !p.isEnded:
				timer = clk.Timer(audioOnlyPollInterval)
				timerCh = timer.C
			}
			return false
		})
		if stop {
			return nil
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case cmd := <-p.cmdChan:
			if timer != nil {
				timer.Stop()
			}
			p.handleCommand(ctx, clk.Now(), cmd)
		case <-timerCh:
		}
	}
}

// Tick runs one playback-loop iteration at the given wall-clock instant:
// drain external commands, then pull and route frames while the clock says
// the next video frame is due. Exported so tests can single-step the loop
// against a mock clock.
func (p *Player) Tick(ctx context.Context, now time.Time) error {
	for {
		select {
		case cmd := <-p.cmdChan:
			p.handleCommand(ctx, now, cmd)
			continue
		default:
		}
		break
	}
	return xsync.DoR1(ctx, &p.Locker, func() error {
		return p.tickLocked(ctx, now)
	})
}

func (p *Player) tickLocked(ctx context.Context, now time.Time) error {
	if p.isClosed || p.isEnded || p.clock.IsPaused() {
		return nil
	}
	for {
		if p.pending == nil {
			if p.videoStreamIndex < 0 && p.AudioQueue.NumFramesNeeded(ctx) == 0 {
				return nil
			}
			f, err := p.Decoder.Next(ctx, decoder.AnyStream)
			switch {
			case err == nil:
			case errors.Is(err, io.EOF):
				p.onEndLocked(ctx)
				return nil
			default:
				return fmt.Errorf("unable to decode the next frame: %w", err)
			}
			switch f := f.(type) {
			case *frame.Audio:
				p.routeAudioFrameLocked(ctx, f)
				continue
			case *frame.Video:
				p.pending = f
			default:
				return fmt.Errorf("internal error: received a frame of unexpected type %T", f)
			}
		}

		if !p.clock.ShouldPresent(now, p.pending.Pts) {
			return nil
		}

		next := p.pending
		p.pending = nil
		p.Mailbox.Swap(ctx, next)
		p.position = next.Pts

		if err := p.applyClipPolicyLocked(ctx, now); err != nil {
			return err
		}
		if p.clock.IsPaused() || p.isEnded || p.isClosed {
			return nil
		}
	}
}

// applyClipPolicyLocked implements the jump cuts: the moment the play
// position leaves the kept set, playback either seeks to the start of the
// next kept range or, when none is left, pauses.
func (p *Player) applyClipPolicyLocked(ctx context.Context, now time.Time) error {
	if p.keep.Contains(p.position) {
		return nil
	}
	if next, ok := p.keep.NextStartAfter(p.position); ok {
		logger.Debugf(ctx, "the position %v left the kept ranges, jumping to %v", p.position, next)
		return p.seekLocked(ctx, now, next)
	}
	logger.Debugf(ctx, "the position %v is past the last kept range, pausing", p.position)
	p.clock.Pause(now)
	return nil
}

func (p *Player) routeAudioFrameLocked(ctx context.Context, f *frame.Audio) {
	if p.Config.Mute || p.audioStreamIndex < 0 {
		f.Release(ctx)
		return
	}
	p.ensureAudioStreamLocked(ctx, f)
	if err := p.AudioQueue.Push(ctx, f); err != nil {
		// backpressure: shed the frame, never block the decode loop
		logger.Warnf(ctx, "dropping the audio frame at %v: %v", f.Pts, err)
		f.Release(ctx)
	}
}

func (p *Player) ensureAudioStreamLocked(ctx context.Context, f *frame.Audio) {
	if p.audioStream != nil || p.Config.Mute {
		return
	}
	stream, err := p.audio.PlayPCM(
		uint32(f.SampleRate),
		uint16(f.Channels),
		types.PCMFormatFloat32LE,
		p.Config.AudioBufferSize,
		p.AudioQueue,
	)
	if err != nil {
		logger.Errorf(ctx, "unable to initialize the audio playback, muting: %v", err)
		p.Config.Mute = true
		return
	}
	p.audioStream = stream
}

// seekLocked repositions the decoder, optionally flushes stale audio, then
// re-primes by pulling forward until the first frame at-or-after the
// target and resyncs the clock to it. Frames from before the target are
// discarded by timestamp comparison, since a container seek lands on the
// preceding keyframe.
func (p *Player) seekLocked(ctx context.Context, now time.Time, target time.Duration) (_err error) {
	logger.Debugf(ctx, "seek(%v)", target)
	defer func() { logger.Debugf(ctx, "/seek(%v): %v", target, _err) }()

	if p.pending != nil {
		p.pending.Release(ctx)
		p.pending = nil
	}
	streamIndex := p.videoStreamIndex
	if streamIndex < 0 {
		streamIndex = p.audioStreamIndex
	}
	if err := p.Decoder.Seek(ctx, target, streamIndex); err != nil {
		return fmt.Errorf("unable to seek the decoder to %v: %w", target, err)
	}
	if p.Config.flushAudioOnSeek() {
		p.AudioQueue.Flush(ctx)
	}
	if p.isEnded {
		p.isEnded = false
		p.endChan = make(chan struct{})
	}

	for {
		f, err := p.Decoder.Next(ctx, decoder.AnyStream)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			p.clock.SeekTo(now, target)
			p.position = target
			p.onEndLocked(ctx)
			return nil
		default:
			return fmt.Errorf("unable to re-prime after seeking to %v: %w", target, err)
		}

		switch f := f.(type) {
		case *frame.Audio:
			if f.Pts < target {
				f.Release(ctx)
				continue
			}
			p.routeAudioFrameLocked(ctx, f)
			if p.videoStreamIndex < 0 {
				p.clock.SeekTo(now, f.Pts)
				p.position = f.Pts
				return nil
			}
		case *frame.Video:
			if f.Pts < target {
				f.Release(ctx)
				continue
			}
			p.Mailbox.Swap(ctx, f)
			p.clock.SeekTo(now, f.Pts)
			p.position = f.Pts
			return nil
		}
	}
}

func (p *Player) onEndLocked(ctx context.Context) {
	if p.isEnded {
		return
	}
	logger.Debugf(ctx, "reached the end of the stream at %v", p.position)
	p.isEnded = true
	close(p.endChan)
}

func (p *Player) handleCommand(ctx context.Context, now time.Time, cmd command) {
	p.Locker.Do(ctx, func() {
		switch cmd := cmd.(type) {
		case commandPause:
			p.clock.Pause(now)
		case commandResume:
			p.clock.Resume(now)
		case commandSeek:
			if err := p.seekLocked(ctx, now, cmd.Target); err != nil {
				logger.Errorf(ctx, "unable to seek to %v: %v", cmd.Target, err)
			}
		case commandClose:
			p.isClosed = true
		default:
			logger.Errorf(ctx, "received a command of unexpected type %T", cmd)
		}
	})
}

func (p *Player) cleanup(ctx context.Context) error {
	var result *multierror.Error
	p.Locker.Do(ctx, func() {
		if p.audioStream != nil {
			result = multierror.Append(result, p.audioStream.Close())
			p.audioStream = nil
		}
		if p.pending != nil {
			p.pending.Release(ctx)
			p.pending = nil
		}
		p.AudioQueue.Flush(ctx)
		if held := p.Mailbox.Consume(ctx); held != nil {
			held.Release(ctx)
		}
		result = multierror.Append(result, p.Decoder.Close())
	})
	return result.ErrorOrNil()
}

// Pause freezes the logical play position; the last presented frame stays
// visible and no frame is "missed" during the pause.
func (p *Player) Pause(ctx context.Context) {
	p.cmdChan <- commandPause{}
}

func (p *Player) Resume(ctx context.Context) {
	p.cmdChan <- commandResume{}
}

// SeekTo asks the loop to jump to the given position. The seek itself is
// synchronous within the loop and bounded by a keyframe-to-target decode
// run.
func (p *Player) SeekTo(ctx context.Context, target time.Duration) error {
	if target < 0 || (p.Decoder.Duration() > 0 && target > p.Decoder.Duration()) {
		return fmt.Errorf("the seek target %v is outside of [0..%v]", target, p.Decoder.Duration())
	}
	p.cmdChan <- commandSeek{Target: target}
	return nil
}

// Close asks the loop to shut the session down.
func (p *Player) Close(ctx context.Context) {
	p.cmdChan <- commandClose{}
}

// Position reports the presentation timestamp of the last presented frame.
func (p *Player) Position(ctx context.Context) time.Duration {
	return xsync.DoR1(ctx, &p.Locker, func() time.Duration {
		return p.position
	})
}

// Duration reports the container duration discovered at open time.
func (p *Player) Duration(ctx context.Context) time.Duration {
	return p.Decoder.Duration()
}

func (p *Player) IsPaused(ctx context.Context) bool {
	return xsync.DoR1(ctx, &p.Locker, func() bool {
		return p.clock.IsPaused()
	})
}

func (p *Player) IsEnded(ctx context.Context) bool {
	return xsync.DoR1(ctx, &p.Locker, func() bool {
		return p.isEnded
	})
}

// EndChan returns a channel closed when playback reaches end-of-stream.
// A seek after the end starts a fresh channel.
func (p *Player) EndChan(ctx context.Context) <-chan struct{} {
	return xsync.DoR1(ctx, &p.Locker, func() <-chan struct{} {
		return p.endChan
	})
}

// SetClips replaces the kept ranges; takes effect on the next tick.
func (p *Player) SetClips(ctx context.Context, keep clips.Set) {
	p.Locker.Do(ctx, func() {
		p.keep = keep
	})
}

// Clips returns the current kept ranges.
func (p *Player) Clips(ctx context.Context) clips.Set {
	return xsync.DoR1(ctx, &p.Locker, func() clips.Set {
		return p.keep
	})
}
