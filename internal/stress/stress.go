// Package stress drives concurrent ownership traffic against kizuna handles
// and checks that no reference update is lost.
package stress

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/edwinsyarief/kizuna"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// cancelCheckInterval is how many iterations a worker runs between context
// checks.
const cancelCheckInterval = 256

// Options configures a run.
type Options struct {
	Workers    int
	Objects    int
	Iterations int
	// SceneEntities, when positive, adds a scene phase: that many entities
	// share the targets and are removed again before the counts are checked.
	SceneEntities int
}

// Report summarizes a run.
type Report struct {
	Operations   int64
	WeakLocks    int64
	DieSignals   int64
	Destroyed    int64
	WeakCleanups int64
	// SceneReleased is how many shared components the scene phase released.
	SceneReleased int64
	Duration      time.Duration
}

// target is the shared object the workers fight over.
type target struct {
	kizuna.RefCount
	destroyed    *atomic.Int64
	weakCleanups *atomic.Int64
	hits         atomic.Int64
}

func (t *target) Destroy()     { t.destroyed.Add(1) }
func (t *target) ReleaseWeak() { t.weakCleanups.Add(1) }

// Run executes the workload. Every worker performs balanced reference
// traffic on shared targets: raw Reference/Unreference pairs, handle clones,
// weak handles and weak locks, followed by the optional scene phase.
// Afterwards every target must be back at one
// strong and zero weak references, and releasing the owners must destroy
// each target exactly once.
func Run(ctx context.Context, opts Options, log *zap.Logger) (Report, error) {
	if opts.Workers <= 0 || opts.Objects <= 0 {
		return Report{}, errors.Errorf("invalid options: %d workers, %d objects", opts.Workers, opts.Objects)
	}
	if log == nil {
		log = zap.NewNop()
	}

	var (
		rep          Report
		ops          atomic.Int64
		locks        atomic.Int64
		dies         atomic.Int64
		destroyed    atomic.Int64
		weakCleanups atomic.Int64
	)
	owners := make([]kizuna.Ref[*target], opts.Objects)
	for i := range owners {
		owners[i] = kizuna.New[target](func(t *target) {
			t.destroyed = &destroyed
			t.weakCleanups = &weakCleanups
		})
	}
	defer func() {
		for i := range owners {
			owners[i].Release()
		}
	}()

	// One extra reference per worker on the first target; each worker drops
	// one of them on exit. None of those drops may signal death.
	extras := owners[0].Get()
	for range opts.Workers {
		extras.Reference()
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := range opts.Workers {
		g.Go(func() error {
			defer func() {
				if extras.Unreference() {
					dies.Add(1)
				}
			}()
			for i := range opts.Iterations {
				if i%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				h := owners[(w+i)%len(owners)]
				obj := h.Get()
				if !obj.Reference() {
					return errors.Errorf("worker %d: live target refused a reference", w)
				}
				obj.hits.Add(1)
				if obj.Unreference() {
					dies.Add(1)
				}

				c := h.Clone()
				wk := c.Weak()
				if l := wk.Lock(); l.Valid() {
					locks.Add(1)
					l.Release()
				}
				wk.Release()
				c.Release()
				ops.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	rep.Duration = time.Since(start)
	rep.Operations = ops.Load()
	rep.WeakLocks = locks.Load()
	rep.DieSignals = dies.Load()
	if err != nil {
		return rep, errors.Wrap(err, "stress workers")
	}
	if opts.SceneEntities > 0 {
		released, err := runScene(owners, opts.SceneEntities)
		rep.SceneReleased = released
		if err != nil {
			return rep, err
		}
	}

	for i := range owners {
		obj := owners[i].Get()
		if n := obj.ReferenceCount(); n != 1 {
			return rep, errors.Errorf("target %d: lost update, strong count %d, want 1", i, n)
		}
		if n := obj.WeakReferenceCount(); n != 0 {
			return rep, errors.Errorf("target %d: lost update, weak count %d, want 0", i, n)
		}
	}
	if rep.DieSignals != 0 {
		return rep, errors.Errorf("%d premature die signals", rep.DieSignals)
	}

	for i := range owners {
		owners[i].Release()
	}
	rep.Destroyed = destroyed.Load()
	rep.WeakCleanups = weakCleanups.Load()
	if rep.Destroyed != int64(opts.Objects) {
		return rep, errors.Errorf("destroyed %d targets, want %d", rep.Destroyed, opts.Objects)
	}
	if rep.WeakCleanups != int64(opts.Objects) {
		return rep, errors.Errorf("weak cleanup ran %d times, want %d", rep.WeakCleanups, opts.Objects)
	}
	log.Info("stress run finished",
		zap.Int64("operations", rep.Operations),
		zap.Int64("scene_released", rep.SceneReleased),
		zap.Int64("weak_locks", rep.WeakLocks),
		zap.Duration("duration", rep.Duration))
	return rep, nil
}

// runScene attaches the targets round-robin to freshly created entities and
// removes them again. Every attachment must come back through EntityRemoved.
func runScene(owners []kizuna.Ref[*target], entities int) (int64, error) {
	var released int64
	bus := &kizuna.EventBus{}
	kizuna.Subscribe(bus, func(e kizuna.EntityRemoved) {
		released += int64(e.Released)
	})
	s := kizuna.NewScene(entities, bus)
	defer s.ClearEntities()
	ents := s.CreateEntities(entities)
	for i, e := range ents {
		if !kizuna.Attach(s, e, owners[i%len(owners)]) {
			return released, errors.Errorf("entity %d: attach refused", e.ID)
		}
	}
	s.RemoveEntities(ents)
	if released != int64(entities) {
		return released, errors.Errorf("scene released %d components, want %d", released, entities)
	}
	return released, nil
}
