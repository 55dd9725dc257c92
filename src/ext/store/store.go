// Package store provides the ResourceStore extension: resources declared by
// slot number. Buffers and images are allocated once per frame context;
// static images are created with the store and shared by every frame.
package store

import (
	"fmt"
	"maps"
	"sort"

	"github.com/HugoPeters1024/LovelyVulkan/src/render"
)

// Key is the capability key of the resource store.
var Key = render.NewKey[*Store, *Frame]("ResourceStore")

// FrameSize picks the size of a per-frame image when the frame is set up.
type FrameSize func(frame *render.FrameContext) (width, height uint32)

// Fixed sizes the image of every frame width x height.
func Fixed(width, height uint32) FrameSize {
	return func(*render.FrameContext) (uint32, uint32) { return width, height }
}

// TargetSize sizes the image like the presentable image of the frame, and
// width x height for frames that have none.
func TargetSize(width, height uint32) FrameSize {
	return func(frame *render.FrameContext) (uint32, uint32) {
		if img, ok := frame.Target().(render.SizedImage); ok {
			return img.Extent()
		}
		return width, height
	}
}

type imageDef struct {
	size FrameSize
	info render.ImageInfo
}

// Info declares the resources of the store.
type Info struct {
	buffers map[uint32]render.BufferInfo
	images  map[uint32]imageDef
	static  map[uint32]render.ImageInfo
}

// DefineBuffer declares a per-frame buffer at slot. Defining a slot twice
// keeps the last definition.
func (i *Info) DefineBuffer(slot uint32, usage render.BufferUsage, size int) {
	if i.buffers == nil {
		i.buffers = map[uint32]render.BufferInfo{}
	}
	i.buffers[slot] = render.BufferInfo{Size: size, Usage: usage}
}

// DefineImage declares a per-frame image at slot, sized by size each time a
// frame is set up.
func (i *Info) DefineImage(slot uint32, size FrameSize, format render.ImageFormat, usage render.ImageUsage, layout render.ImageLayout) {
	if i.images == nil {
		i.images = map[uint32]imageDef{}
	}
	i.images[slot] = imageDef{
		size: size,
		info: render.ImageInfo{Format: format, Usage: usage, Layout: layout},
	}
}

// DefineStaticImage declares an image at slot that is created once with the
// store and shared by all frames.
func (i *Info) DefineStaticImage(slot uint32, width, height uint32, format render.ImageFormat, usage render.ImageUsage, layout render.ImageLayout) {
	if i.static == nil {
		i.static = map[uint32]render.ImageInfo{}
	}
	i.static[slot] = render.ImageInfo{Width: width, Height: height, Format: format, Usage: usage, Layout: layout}
}

// Slots returns the buffer slots in ascending order.
func (i *Info) Slots() []uint32 { return sortedKeys(i.buffers) }

// ImageSlots returns the per-frame image slots in ascending order.
func (i *Info) ImageSlots() []uint32 { return sortedKeys(i.images) }

// StaticSlots returns the static image slots in ascending order.
func (i *Info) StaticSlots() []uint32 { return sortedKeys(i.static) }

func sortedKeys[V any](m map[uint32]V) []uint32 {
	slots := make([]uint32, 0, len(m))
	for s := range m {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(a, b int) bool { return slots[a] < slots[b] })
	return slots
}

func (i *Info) clone() Info {
	return Info{
		buffers: maps.Clone(i.buffers),
		images:  maps.Clone(i.images),
		static:  maps.Clone(i.static),
	}
}

func (i *Info) validate() error {
	for slot, bi := range i.buffers {
		if bi.Size <= 0 {
			return fmt.Errorf("%w: buffer slot %d has size %d", render.ErrInvalidConfig, slot, bi.Size)
		}
	}
	for slot, def := range i.images {
		if def.size == nil {
			return fmt.Errorf("%w: image slot %d has no size", render.ErrInvalidConfig, slot)
		}
		shape := def.info
		shape.Width, shape.Height = 1, 1
		if err := shape.Validate(); err != nil {
			return fmt.Errorf("image slot %d: %w", slot, err)
		}
	}
	for slot, ii := range i.static {
		if err := ii.Validate(); err != nil {
			return fmt.Errorf("static image slot %d: %w", slot, err)
		}
	}
	return nil
}

// Store allocates the declared resources.
type Store struct {
	buffers render.BufferAllocator
	images  render.ImageAllocator
	info    Info

	slots       []uint32
	imageSlots  []uint32
	staticSlots []uint32
	static      map[uint32]render.Texture
}

// Register adds a resource store to b. Later changes to info do not affect
// the registered store.
func Register(b *render.Builder, info Info) error {
	info = info.clone()
	if err := info.validate(); err != nil {
		return err
	}
	return render.Register(b, Key, render.Requirements{}, func(ctx *render.Context) (*Store, error) {
		return New(ctx, info)
	})
}

// New builds a store on the device of ctx and creates its static images.
func New(ctx *render.Context, info Info) (*Store, error) {
	info = info.clone()
	if err := info.validate(); err != nil {
		return nil, err
	}
	s := &Store{
		info:        info,
		slots:       info.Slots(),
		imageSlots:  info.ImageSlots(),
		staticSlots: info.StaticSlots(),
		static:      make(map[uint32]render.Texture, len(info.static)),
	}
	var ok bool
	if len(s.slots) > 0 {
		if s.buffers, ok = ctx.Device().(render.BufferAllocator); !ok {
			return nil, fmt.Errorf("%w: %T cannot allocate buffers", render.ErrUnsupported, ctx.Device())
		}
	}
	if len(s.imageSlots)+len(s.staticSlots) > 0 {
		if s.images, ok = ctx.Device().(render.ImageAllocator); !ok {
			return nil, fmt.Errorf("%w: %T cannot allocate images", render.ErrUnsupported, ctx.Device())
		}
	}
	for _, slot := range s.staticSlots {
		img, err := s.images.CreateImage(info.static[slot])
		if err != nil {
			s.Destroy()
			return nil, fmt.Errorf("static image slot %d: %w", slot, err)
		}
		s.static[slot] = img
	}
	return s, nil
}

// Static returns the shared image at slot. Asking for an undefined slot
// panics.
func (s *Store) Static(slot uint32) render.Texture {
	img, ok := s.static[slot]
	if !ok {
		panic(fmt.Sprintf("store: static image slot %d not defined", slot))
	}
	return img
}

// Frame is the per-frame block of the store.
type Frame struct {
	buffers map[uint32]render.Buffer
	images  map[uint32]render.Texture
	static  map[uint32]render.Texture
}

// Buffer returns the buffer defined at slot. Asking for an undefined slot
// panics.
func (f *Frame) Buffer(slot uint32) render.Buffer {
	b, ok := f.buffers[slot]
	if !ok {
		panic(fmt.Sprintf("store: buffer slot %d not defined", slot))
	}
	return b
}

// Lookup returns the buffer at slot, if defined.
func (f *Frame) Lookup(slot uint32) (render.Buffer, bool) {
	b, ok := f.buffers[slot]
	return b, ok
}

// Buffers returns the number of buffers held by the frame.
func (f *Frame) Buffers() int { return len(f.buffers) }

// Image returns the per-frame image at slot. Asking for an undefined slot
// panics.
func (f *Frame) Image(slot uint32) render.Texture {
	img, ok := f.images[slot]
	if !ok {
		panic(fmt.Sprintf("store: image slot %d not defined", slot))
	}
	return img
}

// Static returns the shared image at slot; every frame returns the same one.
func (f *Frame) Static(slot uint32) render.Texture {
	img, ok := f.static[slot]
	if !ok {
		panic(fmt.Sprintf("store: static image slot %d not defined", slot))
	}
	return img
}

func (s *Store) Embellish(frame *render.FrameContext) error {
	rf := &Frame{
		buffers: make(map[uint32]render.Buffer, len(s.slots)),
		images:  make(map[uint32]render.Texture, len(s.imageSlots)),
		static:  s.static,
	}
	for _, slot := range s.slots {
		buf, err := s.buffers.CreateBuffer(s.info.buffers[slot])
		if err != nil {
			rf.destroy()
			return fmt.Errorf("frame %d buffer slot %d: %w", frame.Index(), slot, err)
		}
		rf.buffers[slot] = buf
	}
	for _, slot := range s.imageSlots {
		def := s.info.images[slot]
		info := def.info
		info.Width, info.Height = def.size(frame)
		img, err := s.images.CreateImage(info)
		if err != nil {
			rf.destroy()
			return fmt.Errorf("frame %d image slot %d: %w", frame.Index(), slot, err)
		}
		rf.images[slot] = img
	}
	render.Attach(frame, Key, rf)
	return nil
}

func (s *Store) Cleanup(frame *render.FrameContext) {
	render.Detach(frame, Key).destroy()
}

// Destroy frees the static images, highest slot first.
func (s *Store) Destroy() {
	for i := len(s.staticSlots) - 1; i >= 0; i-- {
		slot := s.staticSlots[i]
		if img, ok := s.static[slot]; ok {
			img.Destroy()
			delete(s.static, slot)
		}
	}
}

// destroy frees what the frame owns; static images stay with the store.
func (f *Frame) destroy() {
	for slot, b := range f.buffers {
		b.Destroy()
		delete(f.buffers, slot)
	}
	for slot, img := range f.images {
		img.Destroy()
		delete(f.images, slot)
	}
	f.static = nil
}
