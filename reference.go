package stockroom

import (
	"unsafe"
	"weak"

	"github.com/kamstrup/intmap"
)

// refCell is the indirection shared by every ComponentRef to one
// (entity, component) pair. A nil ptr marks the cell stale.
type refCell struct {
	ptr    unsafe.Pointer
	entity EntityID
	id     ComponentID
}

// refTable only holds weak pointers, so a cell disappears once its last
// ComponentRef is gone. Dead entries are pruned when next touched.
type refTable struct {
	cells *intmap.Map[uint64, weak.Pointer[refCell]]
}

func newRefTable(capacity int) *refTable {
	return &refTable{cells: intmap.New[uint64, weak.Pointer[refCell]](capacity)}
}

func refKey(e EntityID, id ComponentID) uint64 {
	return uint64(e)<<32 | uint64(id)
}

func (t *refTable) acquire(e EntityID, id ComponentID, ptr unsafe.Pointer) *refCell {
	key := refKey(e, id)
	if wp, ok := t.cells.Get(key); ok {
		if cell := wp.Value(); cell != nil && cell.ptr != nil {
			invariant(cell.ptr == ptr, "reference cell for entity %d component %d points at a stale slot", e, id)
			return cell
		}
	}
	cell := &refCell{ptr: ptr, entity: e, id: id}
	t.cells.Put(key, weak.Make(cell))
	return cell
}

func (t *refTable) relocate(e EntityID, id ComponentID, ptr unsafe.Pointer) {
	key := refKey(e, id)
	wp, ok := t.cells.Get(key)
	if !ok {
		return
	}
	if cell := wp.Value(); cell != nil {
		cell.ptr = ptr
		return
	}
	t.cells.Del(key)
}

func (t *refTable) invalidate(e EntityID, id ComponentID) {
	key := refKey(e, id)
	wp, ok := t.cells.Get(key)
	if !ok {
		return
	}
	if cell := wp.Value(); cell != nil {
		cell.ptr = nil
	}
	t.cells.Del(key)
}

// ComponentRef is a handle to one entity's component that survives the
// component being relocated by structural changes anywhere in the admin.
// Once the component or its entity is removed the handle reports invalid.
type ComponentRef[T any] struct {
	cell *refCell
}

// GetComponentRef returns a stable handle to e's T. Handles obtained for the
// same pair share one cell while any of them is alive.
func GetComponentRef[T any](adm *Admin, e EntityID) (ComponentRef[T], error) {
	id := ComponentIDOf[T]()
	ptr, err := adm.componentPtr(e, id)
	if err != nil {
		return ComponentRef[T]{}, err
	}
	return ComponentRef[T]{cell: adm.refs.acquire(e, id, ptr)}, nil
}

// IsValid reports whether the referenced component still exists.
func (r ComponentRef[T]) IsValid() bool {
	return r.cell != nil && r.cell.ptr != nil
}

// Get dereferences the handle.
func (r ComponentRef[T]) Get() (*T, error) {
	if !r.IsValid() {
		return nil, StaleReferenceError{Entity: r.Entity(), Component: r.component()}
	}
	return (*T)(r.cell.ptr), nil
}

// MustGet dereferences the handle and panics when it is stale.
func (r ComponentRef[T]) MustGet() *T {
	ptr, err := r.Get()
	if err != nil {
		panic(err)
	}
	return ptr
}

// Entity returns the entity the handle was created for.
func (r ComponentRef[T]) Entity() EntityID {
	if r.cell == nil {
		return NullEntity
	}
	return r.cell.entity
}

// Same reports whether both handles share one indirection cell.
func (r ComponentRef[T]) Same(other ComponentRef[T]) bool {
	return r.cell != nil && r.cell == other.cell
}

func (r ComponentRef[T]) component() ComponentID {
	if r.cell == nil {
		return ComponentIDOf[T]()
	}
	return r.cell.id
}
