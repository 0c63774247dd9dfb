package kizuna

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tracked struct {
	RefCount
}

func TestRefCountConstruction(t *testing.T) {
	var o tracked
	assert.Equal(t, 1, o.ReferenceCount())
	assert.Equal(t, 0, o.WeakReferenceCount())
	assert.True(t, o.InitPending())
	assert.True(t, o.Alive())
}

func TestRefCountInitRef(t *testing.T) {
	t.Run("first call compensates", func(t *testing.T) {
		var o tracked
		require.True(t, o.InitRef())
		assert.Equal(t, 1, o.ReferenceCount())
		assert.False(t, o.InitPending())
	})

	t.Run("second call adds a reference", func(t *testing.T) {
		var o tracked
		require.True(t, o.InitRef())
		require.True(t, o.InitRef())
		assert.Equal(t, 2, o.ReferenceCount())
	})

	t.Run("dead object", func(t *testing.T) {
		var o tracked
		require.True(t, o.Unreference())
		assert.False(t, o.InitRef())
		assert.Equal(t, 0, o.ReferenceCount())
		assert.True(t, o.InitPending())
	})
}

func TestRefCountScenario(t *testing.T) {
	var o tracked
	require.True(t, o.InitRef())
	require.Equal(t, 1, o.ReferenceCount())

	require.True(t, o.Reference())
	require.Equal(t, 2, o.ReferenceCount())

	assert.False(t, o.Unreference())
	assert.Equal(t, 1, o.ReferenceCount())
	assert.True(t, o.Unreference())
	assert.Equal(t, 0, o.ReferenceCount())
	assert.False(t, o.Alive())
}

func TestRefCountOnlyLastUnreferenceDies(t *testing.T) {
	for _, n := range []int{1, 2, 10, 100} {
		var o tracked
		for range n {
			require.True(t, o.Reference())
		}
		for i := range n {
			assert.False(t, o.Unreference(), "n=%d i=%d", n, i)
		}
		// The construction baseline is the last one.
		assert.True(t, o.Unreference(), "n=%d", n)
	}
}

func TestRefCountNoResurrection(t *testing.T) {
	var o tracked
	require.True(t, o.Unreference())
	assert.False(t, o.Reference())
	assert.Equal(t, 0, o.ReferenceCount())
	assert.False(t, o.Reference())
	assert.Equal(t, 0, o.ReferenceCount())
}

func TestRefCountUnreferenceAfterConstruction(t *testing.T) {
	var a, b tracked
	require.True(t, b.Reference())

	require.True(t, a.Unreference())
	// Contract violation: the result is unspecified but must stay local.
	a.Unreference()
	assert.False(t, a.Reference())
	assert.False(t, a.Alive())
	assert.Equal(t, 2, b.ReferenceCount())
	assert.Equal(t, 0, b.WeakReferenceCount())
}

func TestRefCountWeak(t *testing.T) {
	t.Run("weak reference always succeeds", func(t *testing.T) {
		var o tracked
		for i := 1; i <= 3; i++ {
			require.True(t, o.WeakReference())
			assert.Equal(t, i, o.WeakReferenceCount())
		}
		require.True(t, o.Unreference())
		require.True(t, o.WeakReference())
		assert.Equal(t, 4, o.WeakReferenceCount())
		assert.Equal(t, 0, o.ReferenceCount())
	})

	t.Run("weak release while alive", func(t *testing.T) {
		var o tracked
		o.WeakReference()
		assert.False(t, o.WeakUnreference())
		assert.Equal(t, 0, o.WeakReferenceCount())
		assert.Equal(t, 1, o.ReferenceCount())
	})

	t.Run("last weak release after death", func(t *testing.T) {
		var o tracked
		o.WeakReference()
		o.WeakReference()
		require.True(t, o.Unreference())
		assert.False(t, o.ClaimWeakCleanup())
		assert.False(t, o.WeakUnreference())
		assert.True(t, o.WeakUnreference())
	})

	t.Run("strong side claims when no weak left", func(t *testing.T) {
		var o tracked
		o.WeakReference()
		assert.False(t, o.WeakUnreference())
		require.True(t, o.Unreference())
		assert.True(t, o.ClaimWeakCleanup())
		assert.False(t, o.ClaimWeakCleanup())
	})

	t.Run("weak release before destruction finished", func(t *testing.T) {
		var o tracked
		o.WeakReference()
		require.True(t, o.Unreference())
		// The owner has not finished destroying the object yet.
		assert.False(t, o.WeakUnreference())
		assert.True(t, o.ClaimWeakCleanup())
		assert.False(t, o.ClaimWeakCleanup())
	})

	t.Run("claim on a live object", func(t *testing.T) {
		var o tracked
		assert.False(t, o.ClaimWeakCleanup())
		o.WeakReference()
		assert.False(t, o.WeakUnreference())
		require.True(t, o.Unreference())
		assert.True(t, o.ClaimWeakCleanup())
	})

	t.Run("claim is single shot", func(t *testing.T) {
		var o tracked
		require.True(t, o.Unreference())
		require.True(t, o.ClaimWeakCleanup())
		o.WeakReference()
		assert.False(t, o.WeakUnreference())
	})
}

func TestRefCountConcurrentBalanced(t *testing.T) {
	const (
		workers = 16
		iters   = 5000
	)
	var o tracked
	require.True(t, o.InitRef())

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iters {
				o.Reference()
				o.WeakReference()
				o.WeakUnreference()
				o.Unreference()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, o.ReferenceCount())
	assert.Equal(t, 0, o.WeakReferenceCount())
}

func TestRefCountConcurrentNetDelta(t *testing.T) {
	const workers = 8
	var o tracked

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Worker w keeps w references.
			for range 2 * w {
				o.Reference()
			}
			for range w {
				o.Unreference()
			}
		}()
	}
	wg.Wait()
	want := 1
	for w := range workers {
		want += w
	}
	assert.Equal(t, want, o.ReferenceCount())
}

func TestRefCountConcurrentSingleDie(t *testing.T) {
	const workers = 32
	for range 50 {
		var o tracked
		for range workers - 1 {
			o.Reference()
		}
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			dies int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if o.Unreference() {
					mu.Lock()
					dies++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, dies)
	}
}

func TestRefCountConcurrentWeakCleanupOnce(t *testing.T) {
	for range 100 {
		var o tracked
		o.WeakReference()

		var claims [2]bool
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if o.Unreference() {
				claims[0] = o.ClaimWeakCleanup()
			}
		}()
		go func() {
			defer wg.Done()
			claims[1] = o.WeakUnreference()
		}()
		wg.Wait()
		require.True(t, claims[0] != claims[1], "exactly one side must claim cleanup, got %v", claims)
	}
}

func TestRefCountConcurrentNoResurrection(t *testing.T) {
	for range 100 {
		var o tracked
		var wg sync.WaitGroup
		var resurrected bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			o.Unreference()
		}()
		go func() {
			defer wg.Done()
			if o.Reference() {
				// Got in before death; give it back.
				o.Unreference()
				return
			}
			resurrected = o.ReferenceCount() != 0
		}()
		wg.Wait()
		require.False(t, resurrected)
		require.Equal(t, 0, o.ReferenceCount())
	}
}
