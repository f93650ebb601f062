package stockroom

import (
	"iter"

	"github.com/TheBitDrifter/mask"
)

// EntityID is an opaque handle to an entity. IDs of removed entities are
// recycled, so holders must not outlive the entity they name.
type EntityID uint32

// NullEntity is never handed out by an Admin.
const NullEntity EntityID = 0

// ComponentID identifies a Go component type for the lifetime of the process.
type ComponentID uint32

// ArchetypeID is derived from an archetype's sorted component IDs.
type ArchetypeID uint64

// Layer groups systems that run together.
type Layer int

// EntityDestroyCallback is invoked right before an entity is removed.
type EntityDestroyCallback func(EntityID)

// ComponentCallback observes a component being attached to or detached from an entity.
type ComponentCallback func(EntityID, ComponentID)

// Component is anything that names a component type: a ComponentID itself
// or an AccessibleComponent.
type Component interface {
	ID() ComponentID
}

type Archetype interface {
	ID() ArchetypeID
	Type() []ComponentID
	Mask() mask.Mask
	Len() int
	Entities() []EntityID
	Contains(Component) bool
}

type Query interface {
	QueryNode
	And(items ...interface{}) QueryNode
	Or(items ...interface{}) QueryNode
	Not(items ...interface{}) QueryNode
}

type QueryNode interface {
	Evaluate(archetype Archetype) bool
}

// System is a typed query plus callbacks. Implementations are created with
// NewSystem1 through NewSystem4.
type System interface {
	Name() string
	Key() []ComponentID
	Excluded() []ComponentID
	Priority() float32
	Layer() Layer
	base() *systemBase
	run(arch *archetype)
}

type iCursor interface {
	Entities() iter.Seq2[int, EntityID]
	Next() bool
}

type Cache[T any] interface {
	GetIndex(string) (int, bool)
	GetItem(int) *T
	GetItem32(uint32) *T
	Register(string, T) (int, error)
	All() iter.Seq2[int, *T]
	Len() int
	Clear()
}

// Cursor walks every row of every archetype a query matches. The admin stays
// locked while a cursor is in flight.
type Cursor struct {
	query QueryNode
	admin *Admin

	current     *archetype
	archIndex   int
	row         int
	matched     []*archetype
	locked      bool
	initialized bool
	err         error
}

// AccessibleComponent is a typed handle for one component type.
type AccessibleComponent[T any] struct {
	id ComponentID
}

type SimpleCache[T any] struct {
	items       []T
	itemIndices map[string]int
	maxCapacity int
}
