package render

import (
	"fmt"
	"maps"
)

// Info is the application level part of the device creation request.
type Info struct {
	AppName      string
	Requirements Requirements
}

type declaration struct {
	key     *keyBase
	req     Requirements
	factory func(ctx *Context) (Extension, error)
}

// Builder collects capability declarations before the device exists.
type Builder struct {
	info  Info
	decls []declaration
	slots map[*keyBase]int
	err   error
}

// NewBuilder starts a Context description.
func NewBuilder(info Info) *Builder {
	return &Builder{
		info:  info,
		slots: make(map[*keyBase]int),
	}
}

// Register declares capability E: its device requirements are recorded now
// and factory runs during Build, after the device was created. Registering
// the same key twice fails with ErrDuplicateExtension, both here and from
// Build.
func Register[E Extension, F any](b *Builder, key *Key[E, F], req Requirements, factory func(ctx *Context) (E, error)) error {
	if _, ok := b.slots[key.base()]; ok {
		err := fmt.Errorf("%w: %s", ErrDuplicateExtension, key)
		if b.err == nil {
			b.err = err
		}
		return err
	}
	b.slots[key.base()] = len(b.decls)
	b.decls = append(b.decls, declaration{
		key: key.base(),
		req: req,
		factory: func(ctx *Context) (Extension, error) {
			return factory(ctx)
		},
	})
	Logger().Info("registered extension", "name", key.String(), "slot", len(b.decls)-1)
	return nil
}

// Requirements returns the union of the base requirements and everything
// declared so far.
func (b *Builder) Requirements() Requirements {
	var req Requirements
	req.Merge(b.info.Requirements)
	for _, d := range b.decls {
		req.Merge(d.req)
	}
	return req
}

// Build creates the device with the union of all declared requirements and
// then constructs every extension in registration order. The context keeps
// its own view of the declarations: registering on b afterwards only affects
// later builds.
func (b *Builder) Build(driver Driver) (*Context, error) {
	if b.err != nil {
		return nil, b.err
	}
	req := b.Requirements()
	device, err := driver.Open(req)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}

	ctx := &Context{
		info:   b.info,
		req:    req,
		device: device,
		slots:  maps.Clone(b.slots),
		keys:   make([]*keyBase, len(b.decls)),
		exts:   make([]Extension, 0, len(b.decls)),
	}
	for i, d := range b.decls {
		ctx.keys[i] = d.key
	}
	for _, d := range b.decls {
		ext, err := d.factory(ctx)
		if err != nil {
			ctx.teardown()
			return nil, fmt.Errorf("build extension %s: %w", d.key.name, err)
		}
		ctx.exts = append(ctx.exts, ext)
		Logger().Debug("built extension", "name", d.key.name)
	}
	return ctx, nil
}

// Context owns the device and the ordered set of extensions built on it.
type Context struct {
	info     Info
	req      Requirements
	device   Device
	slots    map[*keyBase]int
	keys     []*keyBase
	exts     []Extension
	managers []*FrameManager
	closed   bool
}

// Device returns the shared device.
func (c *Context) Device() Device { return c.device }

// Requirements returns the capabilities the device was created with.
func (c *Context) Requirements() Requirements { return c.req }

// AppName returns the application name the context was built for.
func (c *Context) AppName() string { return c.info.AppName }

// Extensions returns the constructed extensions in registration order.
func (c *Context) Extensions() []Extension {
	out := make([]Extension, len(c.exts))
	copy(out, c.exts)
	return out
}

func (c *Context) slot(k keyed) int {
	i, ok := c.slots[k.base()]
	if !ok {
		panic(fmt.Sprintf("render: extension %s was never registered", k.base().name))
	}
	return i
}

// Get returns the instance of capability E. Asking for a key that was never
// registered, or for one whose factory has not run yet, panics.
func Get[E Extension, F any](c *Context, key *Key[E, F]) E {
	i := c.slot(key)
	if i >= len(c.exts) {
		panic(fmt.Sprintf("render: extension %s used before it was built", key))
	}
	return c.exts[i].(E)
}

// Registered reports whether key was declared on the builder of c.
func Registered[E Extension, F any](c *Context, key *Key[E, F]) bool {
	_, ok := c.slots[key.base()]
	return ok
}

// Built reports whether the factory of key has already run, i.e. whether
// Get may be called for it.
func Built[E Extension, F any](c *Context, key *Key[E, F]) bool {
	i, ok := c.slots[key.base()]
	return ok && i < len(c.exts)
}

// Destroy tears the context down: it waits for the device to go idle,
// destroys frame managers still alive in reverse creation order, destroys
// the extensions in reverse registration order and finally the device.
// Calls after the first are no-ops.
func (c *Context) Destroy() {
	if c.closed {
		return
	}
	if err := c.device.WaitIdle(); err != nil {
		Logger().Error("wait for device idle", "err", err)
	}
	for i := len(c.managers) - 1; i >= 0; i-- {
		c.managers[i].destroy()
	}
	c.managers = nil
	c.teardown()
}

func (c *Context) teardown() {
	for i := len(c.exts) - 1; i >= 0; i-- {
		c.exts[i].Destroy()
		Logger().Debug("destroyed extension", "name", c.keys[i].name)
	}
	c.exts = nil
	c.device.Destroy()
	c.closed = true
}

func (c *Context) addManager(fm *FrameManager) {
	c.managers = append(c.managers, fm)
}

func (c *Context) removeManager(fm *FrameManager) {
	for i, m := range c.managers {
		if m == fm {
			c.managers = append(c.managers[:i], c.managers[i+1:]...)
			return
		}
	}
}
