package stockroom

import (
	"encoding/binary"
	"slices"
	"unsafe"

	"github.com/TheBitDrifter/mask"
	"github.com/cespare/xxhash/v2"
)

var _ Archetype = &archetype{}

// column is one component's packed values, parallel to archetype.entities.
type column struct {
	ops  ComponentOps
	size uintptr
	keep any
	base unsafe.Pointer
	cap  int
}

func (c *column) at(row int) unsafe.Pointer {
	return unsafe.Add(c.base, uintptr(row)*c.size)
}

// reserve makes room for need rows, moving the live rows owned by entities
// into the new buffer.
func (c *column) reserve(need, initial int, entities []EntityID) {
	if need <= c.cap {
		return
	}
	newCap := max(initial, 2*c.cap+1)
	for newCap < need {
		newCap = 2*newCap + 1
	}
	c.realloc(newCap, entities)
}

func (c *column) realloc(newCap int, entities []EntityID) {
	invariant(newCap >= len(entities), "column %d shrunk below its %d live rows", c.ops.ID(), len(entities))
	if newCap == 0 {
		c.keep, c.base, c.cap = nil, nil, 0
		return
	}
	keep, base := c.ops.NewBuffer(newCap)
	old := *c
	c.keep, c.base, c.cap = keep, base, newCap
	for row, e := range entities {
		c.ops.MoveDestroy(e, old.at(row), c.at(row))
	}
}

type edge struct {
	add    *archetype
	remove *archetype
}

type archetype struct {
	id       ArchetypeID
	typ      []ComponentID
	mask     mask.Mask
	entities []EntityID
	columns  []column
	columnOf map[ComponentID]int
	edges    map[ComponentID]*edge
}

func newArchetype(id ArchetypeID, typ []ComponentID, ops []ComponentOps) *archetype {
	arch := &archetype{
		id:       id,
		typ:      typ,
		mask:     maskOf(typ),
		columns:  make([]column, len(typ)),
		columnOf: make(map[ComponentID]int, len(typ)),
		edges:    make(map[ComponentID]*edge),
	}
	for i, op := range ops {
		arch.columns[i] = column{ops: op, size: op.Size()}
		arch.columnOf[typ[i]] = i
	}
	return arch
}

func (a *archetype) ID() ArchetypeID {
	return a.id
}

// Type returns the sorted component IDs. Callers must not modify it.
func (a *archetype) Type() []ComponentID {
	return a.typ
}

func (a *archetype) Mask() mask.Mask {
	return a.mask
}

func (a *archetype) Len() int {
	return len(a.entities)
}

// Entities returns the row-ordered entities. Callers must not modify it.
func (a *archetype) Entities() []EntityID {
	return a.entities
}

func (a *archetype) Contains(c Component) bool {
	return a.has(c.ID())
}

func (a *archetype) has(id ComponentID) bool {
	_, ok := a.columnOf[id]
	return ok
}

func (a *archetype) columnIndex(id ComponentID) int {
	if idx, ok := a.columnOf[id]; ok {
		return idx
	}
	return -1
}

func (a *archetype) column(id ComponentID) *column {
	return &a.columns[a.columnOf[id]]
}

// pushRow appends e and guarantees every column can hold the new row. The
// new row's slots are vacant until the caller constructs or moves into them.
func (a *archetype) pushRow(e EntityID, initial int) int {
	row := len(a.entities)
	for i := range a.columns {
		a.columns[i].reserve(row+1, initial, a.entities)
	}
	a.entities = append(a.entities, e)
	return row
}

// swapRemove closes the gap at row, whose slots must already be vacant, by
// moving the last row into it. It returns the displaced entity, or
// NullEntity when row was the last one.
func (a *archetype) swapRemove(row int) EntityID {
	last := len(a.entities) - 1
	invariant(row >= 0 && row <= last, "row %d out of range for archetype %d with %d rows", row, a.id, len(a.entities))
	moved := NullEntity
	if row != last {
		moved = a.entities[last]
		for i := range a.columns {
			c := &a.columns[i]
			c.ops.MoveDestroy(moved, c.at(last), c.at(row))
		}
		a.entities[row] = moved
	}
	a.entities = a.entities[:last]
	return moved
}

// trim releases column capacity beyond the live rows.
func (a *archetype) trim() {
	for i := range a.columns {
		if c := &a.columns[i]; c.cap > len(a.entities) {
			c.realloc(len(a.entities), a.entities)
		}
	}
	a.entities = slices.Clip(a.entities)
}

func (a *archetype) edge(id ComponentID) *edge {
	e, ok := a.edges[id]
	if !ok {
		e = &edge{}
		a.edges[id] = e
	}
	return e
}

// unlink forgets every edge leading into a reclaimed archetype.
func (a *archetype) unlink(gone map[*archetype]struct{}) {
	for id, e := range a.edges {
		if _, ok := gone[e.add]; ok {
			e.add = nil
		}
		if _, ok := gone[e.remove]; ok {
			e.remove = nil
		}
		if e.add == nil && e.remove == nil {
			delete(a.edges, id)
		}
	}
}

func maskOf(ids []ComponentID) mask.Mask {
	var m mask.Mask
	for _, id := range ids {
		m.Mark(uint32(id))
	}
	return m
}

func hashType(typ []ComponentID) ArchetypeID {
	buf := make([]byte, 4*len(typ))
	for i, id := range typ {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(id))
	}
	return ArchetypeID(xxhash.Sum64(buf))
}

// withComponent returns a sorted copy of typ that also holds id.
func withComponent(typ []ComponentID, id ComponentID) []ComponentID {
	idx, found := slices.BinarySearch(typ, id)
	if found {
		return slices.Clone(typ)
	}
	out := make([]ComponentID, 0, len(typ)+1)
	out = append(out, typ[:idx]...)
	out = append(out, id)
	return append(out, typ[idx:]...)
}

// withoutComponent returns a sorted copy of typ lacking id.
func withoutComponent(typ []ComponentID, id ComponentID) []ComponentID {
	out := make([]ComponentID, 0, len(typ))
	for _, c := range typ {
		if c != id {
			out = append(out, c)
		}
	}
	return out
}

// sortedKey sorts and deduplicates ids; ok is false if ids held a duplicate.
func sortedKey(ids []ComponentID) (key []ComponentID, ok bool) {
	key = slices.Clone(ids)
	slices.Sort(key)
	compacted := slices.Compact(key)
	return compacted, len(compacted) == len(ids)
}
