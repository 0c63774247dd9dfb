package kizuna

import (
	"fmt"

	"go.uber.org/zap"
)

// Weak is a non-owning handle. It never keeps its object alive; Lock must be
// used to obtain a strong handle before touching the object. A zero Weak is
// empty.
type Weak[T Object] struct {
	obj T
	rc  *RefCount
}

// MakeWeak creates a weak handle directly from an object. It succeeds even
// when the object is already dead.
func MakeWeak[T Object](obj T) Weak[T] {
	var zero T
	if obj == zero {
		return Weak[T]{}
	}
	rc := obj.refCount()
	rc.WeakReference()
	return Weak[T]{obj: obj, rc: rc}
}

// Lock tries to upgrade to a strong handle. It returns an empty Ref if the
// object died.
func (w Weak[T]) Lock() Ref[T] {
	if w.rc == nil {
		return Ref[T]{}
	}
	if !w.rc.Reference() {
		expired(w.obj)
		return Ref[T]{}
	}
	return Ref[T]{obj: w.obj, rc: w.rc}
}

// Expired reports whether the object was dead at the time of the call. A
// false result may be stale by the time it is read; use Lock.
func (w Weak[T]) Expired() bool {
	return w.rc == nil || !w.rc.Alive()
}

// Clone returns another weak handle to the same object.
func (w Weak[T]) Clone() Weak[T] {
	if w.rc == nil {
		return Weak[T]{}
	}
	w.rc.WeakReference()
	return w
}

// Release drops the weak reference and empties the handle. The last weak
// release after death runs the object's WeakCleaner hook.
func (w *Weak[T]) Release() {
	if w.rc == nil {
		return
	}
	obj := w.obj
	*w = Weak[T]{}
	if obj.WeakUnreference() {
		cleanupWeak(obj)
	}
}

// Valid reports whether the handle is non-empty. It says nothing about the
// object's liveness.
func (w Weak[T]) Valid() bool {
	return w.rc != nil
}

// String implements fmt.Stringer.
func (w Weak[T]) String() string {
	if w.rc == nil {
		return "Weak(empty)"
	}
	return fmt.Sprintf("Weak(%T expired=%t)", w.obj, w.Expired())
}

// expired records a failed Lock. Weak holders hit this in normal operation,
// so it logs at debug level only.
func expired(obj Counted) {
	refusedReferences.Inc()
	if l := Logger(); l.Core().Enabled(zap.DebugLevel) {
		l.Debug("weak lock on dead object", zap.String("type", fmt.Sprintf("%T", obj)))
	}
}
