package stockroom

import (
	"reflect"
	"unsafe"
)

// ComponentOps manipulates one component type through raw slot pointers so
// archetype storage never needs to know concrete types. Every method touches
// exactly one slot, and callers only pass slots that hold a live value
// (Construct and ConstructFrom expect a vacant one).
type ComponentOps interface {
	ID() ComponentID
	Type() reflect.Type
	Size() uintptr

	// NewBuffer allocates typed backing storage for n values. keep must be
	// retained for as long as base is used.
	NewBuffer(n int) (keep any, base unsafe.Pointer)

	Construct(e EntityID, dst unsafe.Pointer)
	ConstructFrom(e EntityID, dst, src unsafe.Pointer)
	Destroy(e EntityID, src unsafe.Pointer)
	Move(e EntityID, src, dst unsafe.Pointer)
	MoveDestroy(e EntityID, src, dst unsafe.Pointer)
	Copy(from, to EntityID, src, dst unsafe.Pointer)
	Swap(a, b unsafe.Pointer)
}

// Lifecycle hooks a component may implement on its pointer receiver.
type (
	CreateHook interface {
		OnCreate(EntityID)
	}
	DestroyHook interface {
		OnDestroy(EntityID)
	}
	MoveHook interface {
		OnMove(EntityID)
	}
	CopyHook interface {
		OnCopy(from, to EntityID)
	}
)

var _ ComponentOps = &descriptor[struct{}]{}

type descriptor[T any] struct {
	id   ComponentID
	typ  reflect.Type
	size uintptr
	refs *refTable

	onCreate, onDestroy, onMove, onCopy bool
}

func newDescriptor[T any](entry typeEntry, refs *refTable) *descriptor[T] {
	d := &descriptor[T]{
		id:   entry.id,
		typ:  entry.typ,
		size: entry.typ.Size(),
		refs: refs,
	}
	var probe any = (*T)(nil)
	_, d.onCreate = probe.(CreateHook)
	_, d.onDestroy = probe.(DestroyHook)
	_, d.onMove = probe.(MoveHook)
	_, d.onCopy = probe.(CopyHook)
	return d
}

func (d *descriptor[T]) ID() ComponentID    { return d.id }
func (d *descriptor[T]) Type() reflect.Type { return d.typ }
func (d *descriptor[T]) Size() uintptr      { return d.size }

func (d *descriptor[T]) NewBuffer(n int) (any, unsafe.Pointer) {
	buf := make([]T, n)
	return buf, unsafe.Pointer(unsafe.SliceData(buf))
}

func (d *descriptor[T]) Construct(e EntityID, dst unsafe.Pointer) {
	var zero T
	*(*T)(dst) = zero
	if d.onCreate {
		any((*T)(dst)).(CreateHook).OnCreate(e)
	}
}

func (d *descriptor[T]) ConstructFrom(e EntityID, dst, src unsafe.Pointer) {
	*(*T)(dst) = *(*T)(src)
	if d.onCreate {
		any((*T)(dst)).(CreateHook).OnCreate(e)
	}
}

// Destroy clears the slot so anything the value referenced can be collected.
func (d *descriptor[T]) Destroy(e EntityID, src unsafe.Pointer) {
	if d.onDestroy {
		any((*T)(src)).(DestroyHook).OnDestroy(e)
	}
	d.refs.invalidate(e, d.id)
	var zero T
	*(*T)(src) = zero
}

func (d *descriptor[T]) Move(e EntityID, src, dst unsafe.Pointer) {
	*(*T)(dst) = *(*T)(src)
	d.moved(e, dst)
}

func (d *descriptor[T]) MoveDestroy(e EntityID, src, dst unsafe.Pointer) {
	*(*T)(dst) = *(*T)(src)
	var zero T
	*(*T)(src) = zero
	d.moved(e, dst)
}

func (d *descriptor[T]) moved(e EntityID, dst unsafe.Pointer) {
	d.refs.relocate(e, d.id, dst)
	if d.onMove {
		any((*T)(dst)).(MoveHook).OnMove(e)
	}
}

func (d *descriptor[T]) Copy(from, to EntityID, src, dst unsafe.Pointer) {
	*(*T)(dst) = *(*T)(src)
	if d.onCopy {
		any((*T)(dst)).(CopyHook).OnCopy(from, to)
	}
}

func (d *descriptor[T]) Swap(a, b unsafe.Pointer) {
	pa, pb := (*T)(a), (*T)(b)
	*pa, *pb = *pb, *pa
}
