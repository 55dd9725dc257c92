package render

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by NextFrame after the manager was destroyed.
var ErrClosed = errors.New("render: frame manager destroyed")

// FrameInfo sizes a FrameManager.
type FrameInfo struct {
	// Frames is the number of physical buffer slots N.
	Frames int
	// FramesInFlight is the synchronization depth K, 1 <= K <= N.
	FramesInFlight int
}

// framePolicy is the part of the frame loop a Window replaces: how the next
// physical slot is chosen and how a recorded frame leaves the CPU.
type framePolicy interface {
	acquire(fm *FrameManager) (int, error)
	submit(fm *FrameManager, frame *FrameContext) error
	release(fm *FrameManager)
}

// roundRobin cycles through the frames and submits without presenting.
type roundRobin struct{}

func (roundRobin) acquire(fm *FrameManager) (int, error) {
	return (fm.frameIdx + 1) % len(fm.frames), nil
}

func (roundRobin) submit(fm *FrameManager, frame *FrameContext) error {
	return fm.ctx.device.Submit(frame.cmd, SubmitInfo{Fence: fm.inFlight[fm.current]})
}

func (roundRobin) release(*FrameManager) {}

// FrameManager owns a pool of FrameContexts and runs the
// wait, acquire, record, submit cycle over them.
type FrameManager struct {
	ctx      *Context
	policy   framePolicy
	frames   []*FrameContext
	inFlight []Fence

	frameIdx int
	current  int
	count    uint64

	err    error
	closed bool
}

// NewFrameManager builds info.Frames frame contexts, lets every extension
// embellish them and creates info.FramesInFlight fences.
func NewFrameManager(ctx *Context, info FrameInfo) (*FrameManager, error) {
	fm := &FrameManager{ctx: ctx, policy: roundRobin{}}
	if err := fm.init(info.Frames, info.FramesInFlight, nil); err != nil {
		return nil, err
	}
	ctx.addManager(fm)
	return fm, nil
}

func (fm *FrameManager) init(frames, inFlight int, target func(i int) Image) error {
	if frames < 1 || inFlight < 1 || inFlight > frames {
		return fmt.Errorf("%w: %d frames with %d in flight", ErrInvalidConfig, frames, inFlight)
	}
	Logger().Debug("frame manager initializing",
		"frames", frames, "inFlight", inFlight, "extensions", len(fm.ctx.exts))
	if err := fm.buildFrames(frames, target); err != nil {
		return err
	}
	if err := fm.createFences(inFlight); err != nil {
		fm.cleanupFrames()
		return err
	}
	return nil
}

func (fm *FrameManager) buildFrames(n int, target func(i int) Image) error {
	fm.frames = make([]*FrameContext, 0, n)
	for i := 0; i < n; i++ {
		cmd, err := fm.ctx.device.AllocateCommandBuffer()
		if err != nil {
			fm.cleanupFrames()
			return fmt.Errorf("allocate command buffer for frame %d: %w", i, err)
		}
		frame := newFrameContext(fm.ctx, i, cmd)
		if target != nil {
			frame.target = target(i)
		}
		if err := fm.embellish(frame); err != nil {
			cmd.Free()
			fm.cleanupFrames()
			return err
		}
		fm.frames = append(fm.frames, frame)
	}
	fm.frameIdx = 0
	return nil
}

func (fm *FrameManager) embellish(frame *FrameContext) error {
	exts := fm.ctx.exts
	for i, ext := range exts {
		if err := ext.Embellish(frame); err != nil {
			for j := i - 1; j >= 0; j-- {
				exts[j].Cleanup(frame)
			}
			return fmt.Errorf("embellish frame %d with %s: %w", frame.idx, fm.ctx.keys[i].name, err)
		}
	}
	return nil
}

func (fm *FrameManager) cleanupFrames() {
	exts := fm.ctx.exts
	for _, frame := range fm.frames {
		for i := len(exts) - 1; i >= 0; i-- {
			exts[i].Cleanup(frame)
		}
		frame.cmd.Free()
	}
	fm.frames = nil
}

func (fm *FrameManager) createFences(n int) error {
	fm.inFlight = make([]Fence, 0, n)
	for i := 0; i < n; i++ {
		f, err := fm.ctx.device.CreateFence(true)
		if err != nil {
			fm.destroyFences()
			return fmt.Errorf("create in-flight fence %d: %w", i, err)
		}
		fm.inFlight = append(fm.inFlight, f)
	}
	fm.current = 0
	return nil
}

func (fm *FrameManager) destroyFences() {
	for _, f := range fm.inFlight {
		f.Destroy()
	}
	fm.inFlight = nil
}

// Frames returns the number of frame contexts N.
func (fm *FrameManager) Frames() int { return len(fm.frames) }

// FramesInFlight returns the synchronization depth K.
func (fm *FrameManager) FramesInFlight() int { return len(fm.inFlight) }

// Frame returns frame context i. Outside NextFrame it may only be inspected.
func (fm *FrameManager) Frame(i int) *FrameContext { return fm.frames[i] }

// FrameCount returns the number of frames submitted so far.
func (fm *FrameManager) FrameCount() uint64 { return fm.count }

// Context returns the owning context.
func (fm *FrameManager) Context() *Context { return fm.ctx }

// NextFrame waits until the next frame context is safe to reuse, lets
// record fill its command buffer and submits it.
//
// The command buffer is ended and submitted on every exit path of record:
// an error from record is returned after submission, a panic is re-raised
// after submission. A failed wait or submission is returned as a
// *FatalError, and every later call returns the same error.
func (fm *FrameManager) NextFrame(record func(frame *FrameContext) error) error {
	if fm.closed {
		return ErrClosed
	}
	if fm.err != nil {
		return fm.err
	}

	fence := fm.inFlight[fm.current]
	if err := fence.Wait(); err != nil {
		return fm.fail("wait for in-flight fence", err)
	}

	idx, err := fm.policy.acquire(fm)
	if err != nil {
		return fm.fail("acquire frame", err)
	}
	// acquire may have rebuilt the frames and fences.
	fence = fm.inFlight[fm.current]
	fm.frameIdx = idx
	frame := fm.frames[idx]

	// With K < N a frame can have been submitted under another slot.
	if frame.finished != nil && frame.finished != fence {
		if err := frame.finished.Wait(); err != nil {
			return fm.fail("wait for frame", err)
		}
	}
	if err := fence.Reset(); err != nil {
		return fm.fail("reset in-flight fence", err)
	}
	frame.finished = fence
	frame.slot = fm.current

	if err := frame.cmd.Reset(); err != nil {
		return fm.fail("reset command buffer", err)
	}
	if err := frame.cmd.Begin(); err != nil {
		return fm.fail("begin command buffer", err)
	}
	return fm.record(frame, record)
}

func (fm *FrameManager) record(frame *FrameContext, fn func(frame *FrameContext) error) error {
	defer func() {
		if p := recover(); p != nil {
			if err := fm.finish(frame); err != nil {
				Logger().Error("submit after panic", "frame", frame.idx, "err", err)
			}
			panic(p)
		}
	}()
	recErr := fn(frame)
	if err := fm.finish(frame); err != nil {
		return err
	}
	return recErr
}

func (fm *FrameManager) finish(frame *FrameContext) error {
	if err := frame.cmd.End(); err != nil {
		return fm.fail("end command buffer", err)
	}
	if err := fm.policy.submit(fm, frame); err != nil {
		return fm.fail("submit frame", err)
	}
	fm.current = (fm.current + 1) % len(fm.inFlight)
	fm.count++
	return nil
}

func (fm *FrameManager) fail(op string, err error) error {
	fm.err = fatal(op, err)
	Logger().Error("frame loop failed", "op", op, "err", err)
	return fm.err
}

// Destroy waits for the device to go idle and releases every frame context,
// cleaning up extension blocks in reverse registration order.
func (fm *FrameManager) Destroy() {
	fm.ctx.removeManager(fm)
	fm.destroy()
}

func (fm *FrameManager) destroy() {
	if fm.closed {
		return
	}
	fm.closed = true
	if err := fm.ctx.device.WaitIdle(); err != nil {
		Logger().Error("wait for device idle", "err", err)
	}
	fm.cleanupFrames()
	fm.destroyFences()
	fm.policy.release(fm)
}
