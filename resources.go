package kizuna

import (
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	// ErrNilResource is returned when a nil object is added to Resources.
	ErrNilResource = errors.New("cannot add nil resource")
	// ErrDuplicateResource is returned when a resource of the same type is
	// already registered.
	ErrDuplicateResource = errors.New("resource of the same type already exists")
	// ErrDeadResource is returned when the object was destroyed before it
	// could be registered.
	ErrDeadResource = errors.New("resource is already destroyed")
)

// Resources holds one shared object per concrete type. Every stored object is
// owned through a strong reference taken on Add and dropped on Remove or
// Clear, so the registry never hands out a dangling object.
//
// It uses a slice for storage, a map for type to ID lookup and a free list
// for ID reuse; all operations are O(1). Resources is not safe for concurrent
// use.
type Resources struct {
	items   []Counted
	types   map[reflect.Type]int
	freeIDs []int
}

// Add stores a shared object in the registry and returns its ID. Only one
// object per concrete type may be stored at a time.
//
// The registry takes its own strong reference to res; the caller keeps
// whatever references it already holds and must still release them. An object
// may be added while it is being constructed, before Adopt runs: the
// registry's reference then survives the first-reference transition
// untouched. IDs freed by Remove are reused first.
//
// Parameters:
//   - res: The object to store. It must embed RefCount and be alive.
//
// Returns:
//   - The ID of the stored object, or -1 on error.
//   - ErrNilResource, ErrDuplicateResource or ErrDeadResource, wrapped with
//     the offending type.
func (r *Resources) Add(res Counted) (int, error) {
	if isNil(res) {
		return -1, ErrNilResource
	}
	t := reflect.TypeOf(res)
	if r.types == nil {
		r.types = make(map[reflect.Type]int)
	}
	if _, ok := r.types[t]; ok {
		Logger().Warn("duplicate resource", zap.Stringer("type", t))
		return -1, errors.Wrapf(ErrDuplicateResource, "add %s", t)
	}
	if !res.Reference() {
		refuse(res)
		return -1, errors.Wrapf(ErrDeadResource, "add %s", t)
	}
	var id int
	if len(r.freeIDs) > 0 {
		id = r.freeIDs[len(r.freeIDs)-1]
		r.freeIDs = r.freeIDs[:len(r.freeIDs)-1]
		r.items[id] = res
	} else {
		r.items = append(r.items, res)
		id = len(r.items) - 1
	}
	r.types[t] = id
	return id, nil
}

// MustAdd is like Add but panics on error.
func (r *Resources) MustAdd(res Counted) int {
	id, err := r.Add(res)
	if err != nil {
		panic(err)
	}
	return id
}

// Has checks if a resource with the given ID exists.
func (r *Resources) Has(id int) bool {
	return id >= 0 && id < len(r.items) && r.items[id] != nil
}

// Get returns the resource by ID, or nil. The result is borrowed: it stays
// valid while the registry holds it. Take a reference to keep it longer.
func (r *Resources) Get(id int) Counted {
	if !r.Has(id) {
		return nil
	}
	return r.items[id]
}

// Remove drops the registry's reference to the resource with the given ID
// and frees the ID for reuse. It reports whether anything was removed.
func (r *Resources) Remove(id int) bool {
	if !r.Has(id) {
		return false
	}
	res := r.items[id]
	delete(r.types, reflect.TypeOf(res))
	r.items[id] = nil
	r.freeIDs = append(r.freeIDs, id)
	release(res)
	return true
}

// Clear releases every resource and resets the free list.
func (r *Resources) Clear() {
	held := make([]Counted, 0, len(r.types))
	for i, res := range r.items {
		if res != nil {
			held = append(held, res)
			r.items[i] = nil
		}
	}
	r.items = r.items[:0]
	clear(r.types)
	r.freeIDs = r.freeIDs[:0]
	// Destroy hooks may touch the registry again, so release last.
	for _, res := range held {
		release(res)
	}
}

// Len returns the number of stored resources.
func (r *Resources) Len() int {
	return len(r.types)
}

// Each calls fn for every stored resource in ID order.
func (r *Resources) Each(fn func(id int, res Counted)) {
	for id, res := range r.items {
		if res != nil {
			fn(id, res)
		}
	}
}

// HasResource checks if a resource of type T exists, returning true and its
// ID, or false and -1.
func HasResource[T Object](r *Resources) (bool, int) {
	if id, ok := r.types[reflect.TypeFor[T]()]; ok {
		return true, id
	}
	return false, -1
}

// GetResource returns a new strong handle to the resource of type `T` and
// its ID.
//
// Unlike Get, the result owns a reference of its own, so it stays valid after
// the registry drops the object. The caller must release it. An empty Ref and
// -1 are returned when no `T` is stored or when the stored object has already
// died, which is counted as a refused reference.
//
// Parameters:
//   - r: The Resources instance to look in.
func GetResource[T Object](r *Resources) (Ref[T], int) {
	id, ok := r.types[reflect.TypeFor[T]()]
	if !ok {
		return Ref[T]{}, -1
	}
	obj := r.items[id].(T)
	if !obj.Reference() {
		refuse(obj)
		return Ref[T]{}, -1
	}
	return Ref[T]{obj: obj, rc: obj.refCount()}, id
}

// RemoveResource removes the resource of type T, if present.
func RemoveResource[T Object](r *Resources) bool {
	id, ok := r.types[reflect.TypeFor[T]()]
	if !ok {
		return false
	}
	return r.Remove(id)
}

// isNil reports whether c is nil or a typed nil pointer.
func isNil(c Counted) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
