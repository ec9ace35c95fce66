package player

import (
	"context"

	"github.com/cliptrim/cliptrim/pkg/frame"
)

// VideoRenderer is implemented by the presentation layer (e.g. a GPU
// texture uploader). RenderFrame receives planar YUV 4:2:0 data; the
// Y/U/V slices stay valid only until the frame is released, so the
// implementation must upload (or copy) before returning.
//
// The Player does not call a renderer directly: the UI thread polls
// Player.Mailbox.Consume and is responsible for releasing each frame
// after RenderFrame returns.
type VideoRenderer interface {
	RenderFrame(ctx context.Context, f *frame.Video) error
	SetVisible(bool) error
}
