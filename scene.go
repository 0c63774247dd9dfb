package kizuna

import (
	"reflect"

	"go.uber.org/zap"
)

// componentRegistry maps shared component types to per-scene IDs.
type componentRegistry struct {
	compIDToType   [MaxComponentTypes]reflect.Type
	compTypeMap    map[reflect.Type]uint8
	nextCompTypeID uint16
}

// entityRegistry tracks entity slots and recycled IDs.
type entityRegistry struct {
	freeIDs         []uint32     // stack of recycled entity IDs
	metas           []entityMeta // indexed by entity ID
	capacity        int          // current maximum number of entities
	initialCapacity int
	nextEntityVer   uint32 // version for the next created entity
	alive           int
}

// Scene is a set of entities that own shared objects through strong handles.
// Removing an entity releases everything it holds; objects shared by several
// entities live until the last holder is gone.
//
// A Scene belongs to the main loop and is not safe for concurrent use. The
// handles it returns may be passed to and released on any goroutine.
type Scene struct {
	bus             *EventBus
	entities        entityRegistry
	components      componentRegistry
	mutationVersion uint32 // incremented on entity mutations
}

// NewScene creates a Scene with room for initialCapacity entities. The scene
// grows automatically. bus may be nil.
func NewScene(initialCapacity int, bus *EventBus) *Scene {
	if initialCapacity < 0 {
		initialCapacity = 0
	}
	s := &Scene{
		bus: bus,
		components: componentRegistry{
			compTypeMap: make(map[reflect.Type]uint8, 16),
		},
		entities: entityRegistry{
			capacity:        initialCapacity,
			initialCapacity: initialCapacity,
			freeIDs:         make([]uint32, initialCapacity),
			metas:           make([]entityMeta, initialCapacity),
			nextEntityVer:   1,
		},
	}
	for i := range s.entities.freeIDs {
		s.entities.freeIDs[i] = uint32(initialCapacity - 1 - i)
	}
	return s
}

// IsValid checks if the entity is alive in this scene. Stale entities whose
// ID was recycled are rejected by version.
func (s *Scene) IsValid(e Entity) bool {
	if int(e.ID) >= len(s.entities.metas) {
		return false
	}
	meta := &s.entities.metas[e.ID]
	return meta.version != 0 && meta.version == e.Version
}

// EntityCount returns the number of live entities.
func (s *Scene) EntityCount() int {
	return s.entities.alive
}

// MutationVersion changes whenever entities or their shared components change.
func (s *Scene) MutationVersion() uint32 {
	return s.mutationVersion
}

// CreateEntity creates a new entity with no shared components.
func (s *Scene) CreateEntity() Entity {
	if len(s.entities.freeIDs) == 0 {
		s.expand(1)
	}
	last := len(s.entities.freeIDs) - 1
	id := s.entities.freeIDs[last]
	s.entities.freeIDs = s.entities.freeIDs[:last]
	return s.spawn(id)
}

// CreateEntities creates count entities and returns them.
func (s *Scene) CreateEntities(count int) []Entity {
	if count <= 0 {
		return nil
	}
	if len(s.entities.freeIDs) < count {
		s.expand(count - len(s.entities.freeIDs))
	}
	ents := make([]Entity, count)
	n := len(s.entities.freeIDs)
	popped := s.entities.freeIDs[n-count:]
	for k := range ents {
		// Pop in stack order so IDs come out ascending, as with CreateEntity.
		ents[k] = s.spawn(popped[count-1-k])
	}
	s.entities.freeIDs = s.entities.freeIDs[:n-count]
	return ents
}

func (s *Scene) spawn(id uint32) Entity {
	meta := &s.entities.metas[id]
	meta.version = s.entities.nextEntityVer
	s.entities.nextEntityVer++
	if s.entities.nextEntityVer == 0 {
		s.entities.nextEntityVer = 1
	}
	s.entities.alive++
	s.mutationVersion++
	return Entity{ID: id, Version: meta.version}
}

// RemoveEntity removes the entity and releases its shared components. It
// reports whether the entity was valid.
func (s *Scene) RemoveEntity(e Entity) bool {
	if !s.IsValid(e) {
		return false
	}
	meta := &s.entities.metas[e.ID]
	meta.version = 0
	released := meta.releaseAll()
	s.entities.freeIDs = append(s.entities.freeIDs, e.ID)
	s.entities.alive--
	s.mutationVersion++
	Publish(s.bus, EntityRemoved{Entity: e, Released: released})
	return true
}

// RemoveEntities removes a batch of entities.
func (s *Scene) RemoveEntities(ents []Entity) {
	for _, e := range ents {
		s.RemoveEntity(e)
	}
}

// ClearEntities removes every entity, releasing all shared components, and
// recycles all IDs. Allocated capacity is kept.
func (s *Scene) ClearEntities() {
	released := 0
	for i := range s.entities.metas {
		meta := &s.entities.metas[i]
		if meta.version == 0 {
			continue
		}
		meta.version = 0
		released += meta.releaseAll()
	}
	s.entities.freeIDs = s.entities.freeIDs[:0]
	for i := s.entities.capacity - 1; i >= 0; i-- {
		s.entities.freeIDs = append(s.entities.freeIDs, uint32(i))
	}
	s.entities.alive = 0
	s.mutationVersion++
	Logger().Debug("scene cleared", zap.Int("released", released))
}

// expand increases capacity by at least additional entities.
func (s *Scene) expand(additional int) {
	oldCap := s.entities.capacity
	newCap := oldCap * 2
	if newCap == 0 {
		newCap = 1
	}
	if newCap < oldCap+additional {
		newCap = oldCap + additional
	}
	delta := newCap - oldCap
	s.entities.metas = append(s.entities.metas, make([]entityMeta, delta)...)
	newFree := make([]uint32, delta)
	for i := range delta {
		newFree[i] = uint32(newCap - 1 - i)
	}
	// Keep existing free IDs on top so they are reused first.
	s.entities.freeIDs = append(newFree, s.entities.freeIDs...)
	s.entities.capacity = newCap
}

// componentID registers or fetches the ID for t.
func (s *Scene) componentID(t reflect.Type) uint8 {
	if id, ok := s.components.compTypeMap[t]; ok {
		return id
	}
	if s.components.nextCompTypeID >= MaxComponentTypes {
		panic("kizuna: too many shared component types")
	}
	id := uint8(s.components.nextCompTypeID)
	s.components.compTypeMap[t] = id
	s.components.compIDToType[id] = t
	s.components.nextCompTypeID++
	return id
}

// lookupComponentID returns the ID for t without registering it.
func (s *Scene) lookupComponentID(t reflect.Type) (uint8, bool) {
	id, ok := s.components.compTypeMap[t]
	return id, ok
}

// meta returns the metadata of a valid entity, or nil.
func (s *Scene) meta(e Entity) *entityMeta {
	if !s.IsValid(e) {
		return nil
	}
	return &s.entities.metas[e.ID]
}

// Attach gives the entity its own strong reference to ref's object, replacing
// any object of the same type it held. The caller keeps ref.
//
// A replaced object loses the entity's reference and is destroyed if that was
// its last one. Component IDs are assigned per scene on first use, up to
// MaxComponentTypes distinct types.
//
// Parameters:
//   - s: The Scene that owns the entity.
//   - e: The entity to attach to.
//   - ref: A strong handle to the object to share.
//
// Returns:
//   - false if the entity is invalid, ref is empty or the object died.
func Attach[T Object](s *Scene, e Entity, ref Ref[T]) bool {
	meta := s.meta(e)
	if meta == nil || !ref.Valid() {
		return false
	}
	obj := ref.Get()
	if !obj.Reference() {
		refuse(obj)
		return false
	}
	id := s.componentID(reflect.TypeFor[T]())
	if i := meta.slotIndex(id); i >= 0 {
		old := meta.slots[i].obj
		meta.slots[i].obj = obj
		s.mutationVersion++
		release(old)
		return true
	}
	meta.slots = append(meta.slots, sharedSlot{obj: obj, id: id})
	meta.mask.set(id)
	s.mutationVersion++
	return true
}

// Detach drops the entity's reference to its T object. It reports whether
// the entity held one.
func Detach[T Object](s *Scene, e Entity) bool {
	meta := s.meta(e)
	if meta == nil {
		return false
	}
	id, ok := s.lookupComponentID(reflect.TypeFor[T]())
	if !ok {
		return false
	}
	i := meta.slotIndex(id)
	if i < 0 {
		return false
	}
	obj := meta.slots[i].obj
	last := len(meta.slots) - 1
	meta.slots[i] = meta.slots[last]
	meta.slots[last] = sharedSlot{}
	meta.slots = meta.slots[:last]
	meta.mask.unset(id)
	s.mutationVersion++
	release(obj)
	return true
}

// Shared returns a new strong handle to the entity's T object. The caller
// must release it.
func Shared[T Object](s *Scene, e Entity) (Ref[T], bool) {
	meta := s.meta(e)
	if meta == nil {
		return Ref[T]{}, false
	}
	id, ok := s.lookupComponentID(reflect.TypeFor[T]())
	if !ok {
		return Ref[T]{}, false
	}
	i := meta.slotIndex(id)
	if i < 0 {
		return Ref[T]{}, false
	}
	obj := meta.slots[i].obj.(T)
	if !obj.Reference() {
		refuse(obj)
		return Ref[T]{}, false
	}
	return Ref[T]{obj: obj, rc: obj.refCount()}, true
}

// HasShared reports whether the entity holds a T object.
func HasShared[T Object](s *Scene, e Entity) bool {
	meta := s.meta(e)
	if meta == nil {
		return false
	}
	id, ok := s.lookupComponentID(reflect.TypeFor[T]())
	return ok && meta.mask.containsBit(id)
}

// SharedCount returns how many shared components the entity holds.
func (s *Scene) SharedCount(e Entity) int {
	meta := s.meta(e)
	if meta == nil {
		return 0
	}
	return meta.mask.count()
}
