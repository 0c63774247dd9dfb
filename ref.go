package kizuna

import (
	"fmt"

	"go.uber.org/zap"
)

// Counted is implemented by every type that embeds RefCount, through a
// pointer receiver. It is the type-erased view used by registries.
type Counted interface {
	InitRef() bool
	Reference() bool
	Unreference() bool
	WeakReference() bool
	WeakUnreference() bool
	ClaimWeakCleanup() bool
	ReferenceCount() int
	WeakReferenceCount() int
	Alive() bool
	refCount() *RefCount
}

// Object constrains handle payloads: a comparable (pointer) type that embeds
// RefCount.
type Object interface {
	comparable
	Counted
}

// ptrCounted lets New allocate a V and hand out *V.
type ptrCounted[V any] interface {
	*V
	Counted
}

// Destroyer is implemented by objects that hold resources which must be
// released when the last strong reference goes away.
type Destroyer interface {
	Destroy()
}

// WeakCleaner is implemented by objects that keep side state for weak
// observers. ReleaseWeak runs once, after the last weak reference is gone and
// after Destroy has returned, so Destroy may still use the side state.
type WeakCleaner interface {
	ReleaseWeak()
}

// Ref is a strong ownership handle. A zero Ref is empty.
//
// Go has no copy constructors: copying a Ref value does not add a reference.
// Use Clone to share ownership and Release to give it up.
type Ref[T Object] struct {
	obj T
	rc  *RefCount
}

// Adopt takes ownership of a newly constructed object. The construction
// baseline becomes the handle's reference, so the returned Ref is the only
// owner. Adopt returns an empty Ref for a nil or dead object.
//
// Adopt may also be used after the object was already handed to a registry
// during construction: the registry's reference is kept and the handle adds
// nothing beyond the baseline. On an object whose first-reference transition
// is already complete, Adopt adds a new strong reference.
func Adopt[T Object](obj T) Ref[T] {
	var zero T
	if obj == zero {
		return Ref[T]{}
	}
	rc := obj.refCount()
	fresh := rc.InitPending()
	if !rc.InitRef() {
		refuse(obj)
		return Ref[T]{}
	}
	if fresh {
		adoptedObjects.Inc()
		liveObjects.Inc()
	}
	return Ref[T]{obj: obj, rc: rc}
}

// New allocates a V, runs init on it when init is not nil, and returns the
// owning handle.
//
//	mesh := kizuna.New[Mesh](func(m *Mesh) { m.Name = "quad" })
//	defer mesh.Release()
func New[V any, P ptrCounted[V]](init func(P)) Ref[P] {
	obj := P(new(V))
	if init != nil {
		init(obj)
	}
	return Adopt(obj)
}

// Clone returns a new strong handle to the same object. It returns an empty
// Ref if r is empty or the object already died.
func (r Ref[T]) Clone() Ref[T] {
	if r.rc == nil {
		return Ref[T]{}
	}
	if !r.rc.Reference() {
		refuse(r.obj)
		return Ref[T]{}
	}
	return r
}

// Release gives up the handle's reference and empties it. If it was the last
// strong reference the object is destroyed. Releasing an empty Ref does
// nothing.
func (r *Ref[T]) Release() {
	if r.rc == nil {
		return
	}
	obj := r.obj
	*r = Ref[T]{}
	release(obj)
}

// Get returns the referenced object, or the zero T for an empty handle.
func (r Ref[T]) Get() T {
	return r.obj
}

// Valid reports whether the handle holds a reference.
func (r Ref[T]) Valid() bool {
	return r.rc != nil
}

// Weak returns a weak handle observing the same object.
func (r Ref[T]) Weak() Weak[T] {
	if r.rc == nil {
		return Weak[T]{}
	}
	r.rc.WeakReference()
	return Weak[T]{obj: r.obj, rc: r.rc}
}

// ReferenceCount returns the object's strong count, or 0 for an empty handle.
func (r Ref[T]) ReferenceCount() int {
	if r.rc == nil {
		return 0
	}
	return r.rc.ReferenceCount()
}

// String implements fmt.Stringer.
func (r Ref[T]) String() string {
	if r.rc == nil {
		return "Ref(empty)"
	}
	return fmt.Sprintf("Ref(%T refs=%d weak=%d)", r.obj, r.rc.ReferenceCount(), r.rc.WeakReferenceCount())
}

// release drops one strong reference held by the caller and destroys obj on
// the die signal.
func release(obj Counted) {
	if obj.Unreference() {
		destroy(obj)
	}
}

// destroy runs exactly once per object, right after the die signal. The weak
// cleanup claim is made only once the Destroy hook has returned.
func destroy(obj Counted) {
	if d, ok := obj.(Destroyer); ok {
		d.Destroy()
	}
	destroyedObjects.Inc()
	if !obj.refCount().InitPending() {
		liveObjects.Dec()
	}
	if l := Logger(); l.Core().Enabled(zap.DebugLevel) {
		l.Debug("object destroyed", zap.String("type", fmt.Sprintf("%T", obj)))
	}
	if obj.ClaimWeakCleanup() {
		cleanupWeak(obj)
	}
}

// cleanupWeak runs the weak side-state hook, once per object.
func cleanupWeak(obj Counted) {
	if c, ok := obj.(WeakCleaner); ok {
		c.ReleaseWeak()
	}
	weakCleanups.Inc()
	if l := Logger(); l.Core().Enabled(zap.DebugLevel) {
		l.Debug("weak state released", zap.String("type", fmt.Sprintf("%T", obj)))
	}
}

func refuse(obj Counted) {
	refusedReferences.Inc()
	Logger().Warn("refused to reference dead object", zap.String("type", fmt.Sprintf("%T", obj)))
}
