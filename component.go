package stockroom

import (
	"reflect"
	"sync"

	"github.com/TheBitDrifter/table"
	"github.com/rotisserie/eris"
)

// MaxComponentTypes bounds the number of distinct component types a process
// may use; archetype masks are this many bits wide.
const MaxComponentTypes = 256

// ID lets a bare ComponentID be used wherever a Component is accepted.
func (id ComponentID) ID() ComponentID {
	return id
}

// componentTypes is the process-wide type registry. IDs come from a shared
// table schema so the same Go type maps to the same ID in every Admin.
var componentTypes = &typeRegistry{
	schema: table.Factory.NewSchema(),
	byType: make(map[reflect.Type]typeEntry),
	byID:   make(map[ComponentID]typeEntry),
}

type typeEntry struct {
	id   ComponentID
	typ  reflect.Type
	elem table.ElementType
}

type typeRegistry struct {
	mu     sync.RWMutex
	schema table.Schema
	byType map[reflect.Type]typeEntry
	byID   map[ComponentID]typeEntry
}

// ComponentIDOf returns the process-wide ID of T, assigning one on first use.
func ComponentIDOf[T any]() ComponentID {
	return componentTypeOf[T]().id
}

func componentTypeOf[T any]() typeEntry {
	typ := reflect.TypeFor[T]()

	componentTypes.mu.RLock()
	entry, ok := componentTypes.byType[typ]
	componentTypes.mu.RUnlock()
	if ok {
		return entry
	}

	componentTypes.mu.Lock()
	defer componentTypes.mu.Unlock()
	if entry, ok := componentTypes.byType[typ]; ok {
		return entry
	}

	var elem table.ElementType = table.FactoryNewElementType[T]()
	componentTypes.schema.Register(elem)
	id := ComponentID(componentTypes.schema.RowIndexFor(elem))
	if id >= MaxComponentTypes {
		panic(eris.Errorf("stockroom: component type %s exceeds the %d type limit", typ, MaxComponentTypes))
	}
	if other, taken := componentTypes.byID[id]; taken {
		panic(eris.Errorf("stockroom: component id %d already assigned to %s", id, other.typ))
	}

	entry = typeEntry{id: id, typ: typ, elem: elem}
	componentTypes.byType[typ] = entry
	componentTypes.byID[id] = entry
	return entry
}

// ComponentName returns the Go type name registered for id.
func ComponentName(id ComponentID) string {
	componentTypes.mu.RLock()
	entry, ok := componentTypes.byID[id]
	componentTypes.mu.RUnlock()
	if !ok {
		return "<unknown>"
	}
	return entry.typ.String()
}

// RegisterComponent installs the descriptor for T on adm. It must run before
// any entity of adm holds a T. Registration is idempotent: later calls return
// the same ID and keep the original descriptor.
func RegisterComponent[T any](adm *Admin) ComponentID {
	entry := componentTypeOf[T]()
	if _, ok := adm.descriptors[entry.id]; ok {
		return entry.id
	}
	adm.descriptors[entry.id] = newDescriptor[T](entry, adm.refs)
	adm.log.Debug().
		Int("component_id", int(entry.id)).
		Str("component_name", entry.typ.String()).
		Msg("registered component")
	return entry.id
}

// IsRegistered reports whether adm has a descriptor for id.
func (adm *Admin) IsRegistered(c Component) bool {
	_, ok := adm.descriptors[c.ID()]
	return ok
}

// Descriptor exposes the type-erased operations registered for id.
func (adm *Admin) Descriptor(c Component) (ComponentOps, bool) {
	ops, ok := adm.descriptors[c.ID()]
	return ops, ok
}
