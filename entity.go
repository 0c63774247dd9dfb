package kizuna

// MaxComponentTypes defines the maximum number of shared component types a
// Scene can track. This value is fixed at 256.
const MaxComponentTypes = 256

// Entity identifies an object in a Scene. It combines a 32-bit ID with a
// 32-bit version so that a recycled ID is never confused with a removed
// entity. Like a weak handle, an Entity must be validated before use.
type Entity struct {
	// ID is the unique, recyclable identifier for the entity.
	ID uint32
	// Version is a generation counter, bumped on every reuse of ID.
	Version uint32
}

// sharedSlot is one strong handle held by an entity.
type sharedSlot struct {
	obj Counted
	id  uint8
}

// entityMeta holds the state of an entity slot.
type entityMeta struct {
	slots   []sharedSlot
	mask    bitmask256 // component IDs present in slots
	version uint32     // current version, 0 if the entity is dead
}

// slotIndex returns the position of component id in slots, or -1.
func (m *entityMeta) slotIndex(id uint8) int {
	if !m.mask.containsBit(id) {
		return -1
	}
	for i := range m.slots {
		if m.slots[i].id == id {
			return i
		}
	}
	return -1
}

// releaseAll drops every handle the entity holds and returns how many there
// were.
func (m *entityMeta) releaseAll() int {
	if m.mask.isZero() {
		return 0
	}
	slots := m.slots
	m.slots = m.slots[:0]
	m.mask = bitmask256{}
	for i := range slots {
		obj := slots[i].obj
		slots[i].obj = nil
		release(obj)
	}
	return len(slots)
}
