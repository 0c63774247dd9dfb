package kizuna

import (
	"reflect"
	"slices"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrSystemRegistered is returned when a system of the same type is already
// registered.
var ErrSystemRegistered = errors.New("system registered more than once")

// TimeStep is the frame timing passed to systems.
type TimeStep struct {
	Delta   time.Duration
	Elapsed time.Duration
}

// Seconds returns Delta in seconds.
func (ts TimeStep) Seconds() float64 {
	return ts.Delta.Seconds()
}

// System is a shared engine subsystem updated once per frame.
type System interface {
	Counted
	OnUpdate(dt TimeStep)
}

type systemPtr[V any] interface {
	*V
	System
}

// SystemManager owns the engine's systems, one per concrete type, and updates
// them in registration order. It is driven by the main loop and is not safe
// for concurrent use; the handles it returns are.
type SystemManager struct {
	systems Resources
	order   []int
	bus     *EventBus
}

// NewSystemManager creates a manager. bus may be nil.
func NewSystemManager(bus *EventBus) *SystemManager {
	return &SystemManager{bus: bus}
}

// RegisterSystem creates a system of type V, registers it and returns a
// handle for external use. The caller must release the handle.
func RegisterSystem[V any, P systemPtr[V]](m *SystemManager) (Ref[P], error) {
	sys := New[V, P](nil)
	if err := m.Register(sys.Get()); err != nil {
		sys.Release()
		return Ref[P]{}, err
	}
	return sys, nil
}

// Register adds an existing system. The manager takes its own reference.
func (m *SystemManager) Register(sys System) error {
	if isNil(sys) {
		return errors.Wrap(ErrNilResource, "register system")
	}
	t := reflect.TypeOf(sys)
	if _, ok := m.systems.types[t]; ok {
		Logger().Warn("registering system more than once", zap.Stringer("type", t))
		return errors.Wrapf(ErrSystemRegistered, "register %s", t)
	}
	id, err := m.systems.Add(sys)
	if err != nil {
		return errors.Wrap(err, "register system")
	}
	m.order = append(m.order, id)
	Logger().Debug("system registered", zap.Stringer("type", t))
	Publish(m.bus, SystemRegistered{Type: t})
	return nil
}

// RemoveSystem removes the system of type T. It reports whether one was
// registered.
func RemoveSystem[T System](m *SystemManager) bool {
	t := reflect.TypeFor[T]()
	id, ok := m.systems.types[t]
	if !ok {
		return false
	}
	m.order = slices.DeleteFunc(m.order, func(v int) bool { return v == id })
	m.systems.Remove(id)
	Logger().Debug("system removed", zap.Stringer("type", t))
	Publish(m.bus, SystemRemoved{Type: t})
	return true
}

// GetSystem returns a new strong handle to the system of type T. The caller
// must release it.
func GetSystem[T interface {
	Object
	System
}](m *SystemManager) (Ref[T], bool) {
	ref, id := GetResource[T](&m.systems)
	return ref, id >= 0
}

// HasSystem reports whether a system of type T is registered.
func HasSystem[T System](m *SystemManager) bool {
	_, ok := m.systems.types[reflect.TypeFor[T]()]
	return ok
}

// OnUpdate updates every system in registration order.
func (m *SystemManager) OnUpdate(dt TimeStep) {
	for _, id := range m.order {
		if sys, ok := m.systems.Get(id).(System); ok {
			sys.OnUpdate(dt)
		}
	}
}

// Len returns the number of registered systems.
func (m *SystemManager) Len() int {
	return m.systems.Len()
}

// Clear removes every system, publishing SystemRemoved for each.
func (m *SystemManager) Clear() {
	order := m.order
	m.order = nil
	types := make([]reflect.Type, 0, len(order))
	for _, id := range order {
		if res := m.systems.Get(id); res != nil {
			types = append(types, reflect.TypeOf(res))
		}
	}
	m.systems.Clear()
	for _, t := range types {
		Publish(m.bus, SystemRemoved{Type: t})
	}
}
