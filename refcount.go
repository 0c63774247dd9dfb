// Package kizuna provides intrusive strong/weak reference counting and the
// ownership handles, registries and scene bookkeeping built on top of it.
package kizuna

import "sync/atomic"

// RefCount is an intrusive strong/weak reference counter. Embed it by value in
// any type that is shared across subsystems.
//
// The zero value is a freshly constructed object: it holds one strong
// reference (the constructor's), no weak references, and its first-reference
// transition is still pending. The strong count is stored with a bias of one
// so that no explicit initialization is needed.
//
// RefCount never frees anything. Callers receive a die signal from
// Unreference and must destroy the object themselves, exactly once.
type RefCount struct {
	strong      atomic.Int64 // strong count minus one
	initDone    atomic.Bool
	weak        atomic.Int64
	destroyed   atomic.Bool
	weakCleaned atomic.Bool
}

// InitRef finalizes the first-reference transition of a newly constructed
// object. It returns false if the object is already dead.
//
// The construction baseline already counts as one strong reference, so the
// first successful call adds a reference and immediately takes it back. Later
// calls behave like Reference.
//
// Two goroutines calling InitRef concurrently on a brand new object may both
// skip the compensation or race on it. Exactly one initializer is expected.
func (rc *RefCount) InitRef() bool {
	if !rc.Reference() {
		return false
	}
	if rc.initDone.CompareAndSwap(false, true) {
		rc.Unreference()
	}
	return true
}

// Reference adds a strong reference. It returns false without changing the
// count if the object is dead.
func (rc *RefCount) Reference() bool {
	for {
		v := rc.strong.Load()
		if v < 0 {
			return false
		}
		if rc.strong.CompareAndSwap(v, v+1) {
			return true
		}
	}
}

// Unreference drops a strong reference and reports whether it was the last
// one. Calling it on a dead object is a programming error; the result is
// meaningless but only this object's counter is affected.
func (rc *RefCount) Unreference() bool {
	return rc.strong.Add(-1) == -1
}

// WeakReference adds a weak reference. It always succeeds, even on a dead
// object, so that the holder can observe the death later.
func (rc *RefCount) WeakReference() bool {
	rc.weak.Add(1)
	return true
}

// WeakUnreference drops a weak reference. It returns true when this was the
// last weak reference, the object has been destroyed (see ClaimWeakCleanup)
// and the caller won the right to free any weak side state. At most one
// caller per object ever gets true from either WeakUnreference or
// ClaimWeakCleanup.
//
// A true result is a cleanup signal, not a liveness proof: weak holders must
// still go through Reference before touching the object.
func (rc *RefCount) WeakUnreference() bool {
	if rc.weak.Add(-1) != 0 {
		return false
	}
	return rc.claimWeak()
}

// ClaimWeakCleanup is the strong-side counterpart of WeakUnreference. Owners
// call it once destruction has finished after a die signal. It marks the
// object destroyed and returns true if no weak references are left and
// nobody claimed the cleanup yet. Until it is called, WeakUnreference never
// reports a cleanup, so weak side state outlives the destructor.
func (rc *RefCount) ClaimWeakCleanup() bool {
	if rc.strong.Load() >= 0 {
		return false
	}
	rc.destroyed.Store(true)
	return rc.claimWeak()
}

// claimWeak requires both the destroyed mark and an empty weak count. The
// strong side stores the mark before reading the weak count and the weak side
// decrements before reading the mark, so at least one of them sees both.
func (rc *RefCount) claimWeak() bool {
	if !rc.destroyed.Load() || rc.weak.Load() != 0 {
		return false
	}
	return rc.weakCleaned.CompareAndSwap(false, true)
}

// ReferenceCount returns a snapshot of the strong count. Advisory only.
func (rc *RefCount) ReferenceCount() int {
	return int(rc.strong.Load() + 1)
}

// WeakReferenceCount returns a snapshot of the weak count. Advisory only.
func (rc *RefCount) WeakReferenceCount() int {
	return int(rc.weak.Load())
}

// Alive reports whether any strong reference remained at the time of the call.
func (rc *RefCount) Alive() bool {
	return rc.strong.Load() >= 0
}

// InitPending reports whether InitRef has not completed yet.
func (rc *RefCount) InitPending() bool {
	return !rc.initDone.Load()
}

// refCount returns the embedded counter. It lets handles and registries reach
// the counter of any type that embeds RefCount.
func (rc *RefCount) refCount() *RefCount { return rc }
