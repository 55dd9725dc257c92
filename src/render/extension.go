package render

// Extension is a pluggable rendering subsystem (ray tracer, rasterizer,
// overlay, resource store, ...) built once against a Context.
type Extension interface {
	// Embellish attaches the extension's per-frame block to frame. It runs
	// once per FrameContext when a frame manager is built, in registration
	// order.
	Embellish(frame *FrameContext) error
	// Cleanup frees exactly what Embellish allocated. It runs once per
	// FrameContext on teardown, in reverse registration order.
	Cleanup(frame *FrameContext)
	// Destroy releases the extension's global resources. The Context calls
	// it in reverse registration order after the device went idle.
	Destroy()
}

type keyBase struct {
	name string
}

func (k *keyBase) base() *keyBase { return k }

type keyed interface {
	base() *keyBase
}

// Key identifies a capability type E together with the type F of the
// per-frame block it attaches to each FrameContext. Keys are compared by
// identity: declare one package-level Key per capability.
type Key[E Extension, F any] struct {
	keyBase
}

// NewKey returns a fresh capability key. name is used in logs and panics.
func NewKey[E Extension, F any](name string) *Key[E, F] {
	return &Key[E, F]{keyBase{name: name}}
}

func (k *Key[E, F]) String() string { return k.name }

// NopFrames can be embedded by extensions without per-frame state.
type NopFrames struct{}

func (NopFrames) Embellish(*FrameContext) error { return nil }
func (NopFrames) Cleanup(*FrameContext)         {}
