// Package background provides the Background extension, which fills the
// presentable image of a window frame with a solid colour.
package background

import (
	"fmt"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// Key is the capability key of the background.
var Key = render.NewKey[*Background, *Frame]("Background")

// Background records a full clear of the acquired image.
type Background struct {
	color [4]float32
}

// Frame holds the clear colour of one frame context.
type Frame struct {
	Color [4]float32
	// Clears counts the clears recorded with this frame.
	Clears int
}

// Register adds a background clearing to color to b.
func Register(b *render.Builder, color [4]float32) error {
	return render.Register(b, Key, render.Requirements{}, func(*render.Context) (*Background, error) {
		return &Background{color: color}, nil
	})
}

// Color returns the colour new frames start with.
func (bg *Background) Color() [4]float32 { return bg.color }

// SetColor changes the colour of every frame from now on.
func (bg *Background) SetColor(frames []*render.FrameContext, color [4]float32) {
	bg.color = color
	for _, f := range frames {
		render.FrameData(f, Key).Color = color
	}
}

// Record clears the target of frame. It must be called from inside a
// NextFrame callback of a window.
func (bg *Background) Record(frame *render.FrameContext) error {
	target := frame.Target()
	if target == nil {
		return fmt.Errorf("%w: frame %d has no presentable target", render.ErrUnsupported, frame.Index())
	}
	clearer, ok := frame.Commands().(render.ImageClearer)
	if !ok {
		return fmt.Errorf("%w: %T cannot clear images", render.ErrUnsupported, frame.Commands())
	}
	data := render.FrameData(frame, Key)
	if err := clearer.ClearImage(target, data.Color); err != nil {
		return fmt.Errorf("clear frame %d: %w", frame.Index(), err)
	}
	data.Clears++
	return nil
}

func (bg *Background) Embellish(frame *render.FrameContext) error {
	render.Attach(frame, Key, &Frame{Color: bg.color})
	return nil
}

func (bg *Background) Cleanup(frame *render.FrameContext) {
	render.Detach(frame, Key)
}

func (bg *Background) Destroy() {}
