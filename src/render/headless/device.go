package headless

import (
	"fmt"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

type submission struct {
	cmd    *CommandBuffer
	fence  *Fence
	signal []*Semaphore
}

// Device is a simulated device with a single in-order queue.
type Device struct {
	req    render.Requirements
	images int
	depth  int

	queue     []*submission
	submitted int
	textures  int
	live      int
	destroyed bool
}

// Requirements returns what the device was opened with.
func (d *Device) Requirements() render.Requirements { return d.req }

// Live returns the number of objects created and not yet destroyed.
func (d *Device) Live() int { return d.live }

// Submissions returns the number of queue submissions so far.
func (d *Device) Submissions() int { return d.submitted }

// Pending returns the number of submissions that have not completed.
func (d *Device) Pending() int { return len(d.queue) }

// Destroyed reports whether Destroy was called.
func (d *Device) Destroyed() bool { return d.destroyed }

func (d *Device) complete(s *submission) {
	s.cmd.state = cmdExecutable
	if s.fence != nil {
		s.fence.signaled = true
		s.fence.pending = nil
	}
	for _, sem := range s.signal {
		if sem.pendingBy == s {
			sem.pendingBy = nil
			sem.signaled = true
		}
	}
}

// drain completes queued work in order, up to and including s. A nil s
// drains everything.
func (d *Device) drain(s *submission) {
	for len(d.queue) > 0 {
		head := d.queue[0]
		d.queue = d.queue[1:]
		d.complete(head)
		if head == s {
			return
		}
	}
}

func (d *Device) CreateFence(signaled bool) (render.Fence, error) {
	d.live++
	return &Fence{dev: d, signaled: signaled}, nil
}

func (d *Device) CreateSemaphore() (render.Semaphore, error) {
	d.live++
	return &Semaphore{dev: d}, nil
}

func (d *Device) AllocateCommandBuffer() (render.CommandBuffer, error) {
	d.live++
	return &CommandBuffer{dev: d}, nil
}

func (d *Device) CreateBuffer(info render.BufferInfo) (render.Buffer, error) {
	if info.Size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", render.ErrInvalidConfig, info.Size)
	}
	d.live++
	return &Buffer{dev: d, usage: info.Usage, data: make([]byte, info.Size)}, nil
}

func (d *Device) CreateImage(info render.ImageInfo) (render.Texture, error) {
	if err := info.Validate(); err != nil {
		return nil, err
	}
	d.live++
	d.textures++
	return &Texture{dev: d, id: d.textures, info: info}, nil
}

func (d *Device) Submit(cmd render.CommandBuffer, info render.SubmitInfo) error {
	c, ok := cmd.(*CommandBuffer)
	if !ok || c.dev != d {
		return fmt.Errorf("%w: foreign command buffer", ErrMisuse)
	}
	if c.state != cmdExecutable {
		return fmt.Errorf("%w: submit of command buffer in state %s", ErrMisuse, c.state)
	}
	s := &submission{cmd: c}
	if info.Fence != nil {
		f := info.Fence.(*Fence)
		if f.pending != nil {
			return fmt.Errorf("%w: fence already pending", ErrInUse)
		}
		if f.signaled {
			return fmt.Errorf("%w: submit with signaled fence", ErrMisuse)
		}
		s.fence = f
	}
	for _, w := range info.Wait {
		sem := w.(*Semaphore)
		if !sem.signaled && sem.pendingBy == nil {
			return fmt.Errorf("%w: wait on semaphore nothing signals", ErrDeadlock)
		}
	}
	for _, sig := range info.Signal {
		sem := sig.(*Semaphore)
		if sem.signaled || sem.pendingBy != nil {
			return fmt.Errorf("%w: signal of semaphore already signaled", ErrMisuse)
		}
	}

	for _, w := range info.Wait {
		w.(*Semaphore).consume()
	}
	for _, sig := range info.Signal {
		sem := sig.(*Semaphore)
		sem.pendingBy = s
		s.signal = append(s.signal, sem)
	}
	if s.fence != nil {
		s.fence.pending = s
	}
	c.state = cmdPending
	c.submits++
	d.submitted++
	d.queue = append(d.queue, s)
	if d.depth > 0 && len(d.queue) > d.depth {
		d.drain(d.queue[0])
	}
	return nil
}

func (d *Device) SingleTimeCommands(fn func(cmd render.CommandBuffer) error) error {
	cmd, err := d.AllocateCommandBuffer()
	if err != nil {
		return err
	}
	defer cmd.Free()
	fence, err := d.CreateFence(false)
	if err != nil {
		return err
	}
	defer fence.Destroy()

	if err := cmd.Begin(); err != nil {
		return err
	}
	if err := fn(cmd); err != nil {
		return err
	}
	if err := cmd.End(); err != nil {
		return err
	}
	if err := d.Submit(cmd, render.SubmitInfo{Fence: fence}); err != nil {
		return err
	}
	return fence.Wait()
}

func (d *Device) WaitIdle() error {
	d.drain(nil)
	return nil
}

func (d *Device) Destroy() {
	d.drain(nil)
	if d.live != 0 {
		render.Logger().Warn("headless device destroyed with live objects", "live", d.live)
	}
	d.destroyed = true
}

// Fence is a simulated fence.
type Fence struct {
	dev       *Device
	signaled  bool
	pending   *submission
	destroyed bool
}

// Signaled reports the fence state without waiting.
func (f *Fence) Signaled() bool { return f.signaled }

func (f *Fence) Wait() error {
	switch {
	case f.destroyed:
		return fmt.Errorf("%w: wait on destroyed fence", ErrMisuse)
	case f.signaled:
		return nil
	case f.pending != nil:
		f.dev.drain(f.pending)
		return nil
	}
	return ErrDeadlock
}

func (f *Fence) Reset() error {
	if f.pending != nil {
		return fmt.Errorf("%w: reset of pending fence", ErrInUse)
	}
	f.signaled = false
	return nil
}

func (f *Fence) Destroy() {
	if f.destroyed {
		return
	}
	if f.pending != nil {
		render.Logger().Error("headless fence destroyed while pending")
	}
	f.destroyed = true
	f.dev.live--
}

// Semaphore is a simulated binary semaphore.
type Semaphore struct {
	dev       *Device
	signaled  bool
	pendingBy *submission
	destroyed bool
}

func (s *Semaphore) consume() {
	s.signaled = false
	s.pendingBy = nil
}

func (s *Semaphore) Destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.dev.live--
}

type cmdState int

const (
	cmdInitial cmdState = iota
	cmdRecording
	cmdExecutable
	cmdPending
)

func (s cmdState) String() string {
	switch s {
	case cmdInitial:
		return "initial"
	case cmdRecording:
		return "recording"
	case cmdExecutable:
		return "executable"
	case cmdPending:
		return "pending"
	}
	return "unknown"
}

// CommandBuffer is a simulated command buffer that records a log of ops.
type CommandBuffer struct {
	dev     *Device
	state   cmdState
	ops     []string
	submits int
	freed   bool
}

// Ops returns the ops recorded since the last Begin.
func (c *CommandBuffer) Ops() []string { return c.ops }

// Submits returns how often the buffer was submitted.
func (c *CommandBuffer) Submits() int { return c.submits }

// Pending reports whether the GPU still owns the buffer.
func (c *CommandBuffer) Pending() bool { return c.state == cmdPending }

func (c *CommandBuffer) Reset() error {
	if c.state == cmdPending {
		return fmt.Errorf("%w: reset of pending command buffer", ErrInUse)
	}
	c.state = cmdInitial
	c.ops = nil
	return nil
}

func (c *CommandBuffer) Begin() error {
	switch c.state {
	case cmdPending:
		return fmt.Errorf("%w: begin on pending command buffer", ErrInUse)
	case cmdRecording:
		return fmt.Errorf("%w: begin on recording command buffer", ErrMisuse)
	}
	c.state = cmdRecording
	c.ops = nil
	return nil
}

func (c *CommandBuffer) End() error {
	if c.state != cmdRecording {
		return fmt.Errorf("%w: end of command buffer in state %s", ErrMisuse, c.state)
	}
	c.state = cmdExecutable
	return nil
}

func (c *CommandBuffer) Free() {
	if c.freed {
		return
	}
	if c.state == cmdPending {
		render.Logger().Error("headless command buffer freed while pending")
	}
	c.freed = true
	c.dev.live--
}

// Record appends op to the log. It fails outside Begin/End.
func (c *CommandBuffer) Record(op string) error {
	if c.state != cmdRecording {
		return fmt.Errorf("%w: record %q in state %s", ErrMisuse, op, c.state)
	}
	c.ops = append(c.ops, op)
	return nil
}

func (c *CommandBuffer) ClearImage(target render.Image, color [4]float32) error {
	img, ok := target.(*Image)
	if !ok {
		return fmt.Errorf("%w: clear of foreign image %T", ErrMisuse, target)
	}
	if err := c.Record(fmt.Sprintf("clear image %d", img.index)); err != nil {
		return err
	}
	img.color = color
	return nil
}

// Buffer is host memory standing in for a mapped device buffer.
type Buffer struct {
	dev       *Device
	usage     render.BufferUsage
	data      []byte
	destroyed bool
}

func (b *Buffer) Size() int { return len(b.data) }
func (b *Buffer) Mapped() []byte { return b.data }
func (b *Buffer) Usage() render.BufferUsage { return b.usage }

func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.data = nil
	b.dev.live--
}

// Texture is a simulated device image.
type Texture struct {
	dev       *Device
	id        int
	info      render.ImageInfo
	destroyed bool
}

// ID numbers the images of a device in creation order, starting at 1.
func (t *Texture) ID() int { return t.id }

// Destroyed reports whether Destroy was called.
func (t *Texture) Destroyed() bool { return t.destroyed }

func (t *Texture) Info() render.ImageInfo { return t.info }

func (t *Texture) Extent() (uint32, uint32) { return t.info.Width, t.info.Height }

func (t *Texture) Destroy() {
	if t.destroyed {
		return
	}
	t.destroyed = true
	t.dev.live--
}
