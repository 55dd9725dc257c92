package render

import (
	"fmt"
)

// FrameContext is one unit of work in flight: a command buffer plus the
// per-frame blocks the extensions attached to it. It is reused for many
// logical frames; the blocks keep their identity between Embellish and
// Cleanup.
type FrameContext struct {
	ctx      *Context
	idx      int
	slot     int
	cmd      CommandBuffer
	finished Fence
	target   Image

	data     []any
	attached []bool
}

func newFrameContext(ctx *Context, idx int, cmd CommandBuffer) *FrameContext {
	return &FrameContext{
		ctx:      ctx,
		idx:      idx,
		slot:     -1,
		cmd:      cmd,
		data:     make([]any, len(ctx.keys)),
		attached: make([]bool, len(ctx.keys)),
	}
}

// Index is the physical slot of the frame, e.g. its swapchain image index.
func (f *FrameContext) Index() int { return f.idx }

// InFlightSlot is the in-flight slot the frame was last recorded under, or
// -1 before its first use.
func (f *FrameContext) InFlightSlot() int { return f.slot }

// Commands returns the command buffer. It is only valid for recording inside
// the NextFrame callback and must not be retained.
func (f *FrameContext) Commands() CommandBuffer { return f.cmd }

// Context returns the owning context.
func (f *FrameContext) Context() *Context { return f.ctx }

// Target returns the presentable image for frames owned by a Window, nil
// otherwise.
func (f *FrameContext) Target() Image { return f.target }

// Attach stores the per-frame block of capability E on frame. A key can be
// attached to a frame only once; a second attach panics.
func Attach[E Extension, F any](frame *FrameContext, key *Key[E, F], data F) {
	i := frame.ctx.slot(key)
	if frame.attached[i] {
		panic(fmt.Sprintf("render: frame %d already holds data for %s", frame.idx, key))
	}
	frame.data[i] = data
	frame.attached[i] = true
}

// FrameData returns the per-frame block of capability E. Asking for a key
// that was never attached to frame panics.
func FrameData[E Extension, F any](frame *FrameContext, key *Key[E, F]) F {
	i := frame.ctx.slot(key)
	if !frame.attached[i] {
		panic(fmt.Sprintf("render: frame %d holds no data for %s", frame.idx, key))
	}
	return frame.data[i].(F)
}

// Detach removes the block of capability E and returns it. Extensions call
// it from Cleanup.
func Detach[E Extension, F any](frame *FrameContext, key *Key[E, F]) F {
	data := FrameData(frame, key)
	i := frame.ctx.slot(key)
	var zero F
	frame.data[i] = zero
	frame.attached[i] = false
	return data
}

// HasFrameData reports whether a block of capability E is attached.
func HasFrameData[E Extension, F any](frame *FrameContext, key *Key[E, F]) bool {
	return frame.attached[frame.ctx.slot(key)]
}
