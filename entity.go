package stockroom

import (
	"unsafe"

	"github.com/rotisserie/eris"
)

// AddComponent attaches a copy of v to e and returns a pointer to the stored
// value. The pointer is only valid until the next structural change; use
// GetComponentRef for a handle that survives relocation.
//
// Changes queued by OnComponentAdded listeners are applied before it returns.
// If they remove the new component or e itself, AddComponent returns a nil
// pointer and an error matching ComponentNotFoundError or EntityNotFoundError.
func AddComponent[T any](adm *Admin, e EntityID, v T) (*T, error) {
	ptr, err := adm.addComponent(e, ComponentIDOf[T](), unsafe.Pointer(&v))
	if err != nil {
		return nil, err
	}
	return (*T)(ptr), nil
}

// AddComponentByID attaches a zero-valued component to e.
func (adm *Admin) AddComponentByID(e EntityID, c Component) error {
	_, err := adm.addComponent(e, c.ID(), nil)
	return err
}

// RemoveComponent detaches e's T, destroying the value.
func RemoveComponent[T any](adm *Admin, e EntityID) error {
	return adm.RemoveComponentByID(e, ComponentIDOf[T]())
}

func (adm *Admin) RemoveComponentByID(e EntityID, c Component) error {
	return adm.removeComponent(e, c.ID())
}

// GetComponent returns e's T and panics if e is dead or lacks T.
func GetComponent[T any](adm *Admin, e EntityID) *T {
	ptr, err := adm.componentPtr(e, ComponentIDOf[T]())
	if err != nil {
		panic(eris.Wrap(err, "stockroom: GetComponent"))
	}
	return (*T)(ptr)
}

// TryGetComponent returns e's T, or false if e is dead or lacks T.
func TryGetComponent[T any](adm *Admin, e EntityID) (*T, bool) {
	ptr, err := adm.componentPtr(e, ComponentIDOf[T]())
	if err != nil {
		return nil, false
	}
	return (*T)(ptr), true
}

func HasComponent[T any](adm *Admin, e EntityID) bool {
	return adm.HasComponentID(e, ComponentIDOf[T]())
}

func (adm *Admin) HasComponentID(e EntityID, c Component) bool {
	if !adm.IsAlive(e) {
		return false
	}
	arch := adm.records[e].arch
	return arch != nil && arch.has(c.ID())
}

func (adm *Admin) addComponent(e EntityID, id ComponentID, src unsafe.Pointer) (unsafe.Pointer, error) {
	if adm.Locked() {
		return nil, LockedAdminError{}
	}
	rec, err := adm.record(e)
	if err != nil {
		return nil, err
	}
	ops, ok := adm.descriptors[id]
	if !ok {
		return nil, ComponentNotRegisteredError{Component: id}
	}
	from := rec.arch
	if from == nil {
		from = adm.root
	}
	if from.has(id) {
		return nil, ComponentExistsError{Entity: e, Component: id}
	}
	to, err := adm.archetypeWith(from, id)
	if err != nil {
		return nil, err
	}

	row := adm.migrate(e, rec, to, noComponent)
	slot := to.column(id).at(row)
	if src == nil {
		ops.Construct(e, slot)
	} else {
		ops.ConstructFrom(e, slot, src)
	}
	adm.records[e] = record{arch: to, row: row, alive: true}

	if err := adm.deferring(func() { adm.notifyAdded(e, id) }); err != nil {
		return nil, err
	}
	ptr, err := adm.componentPtr(e, id)
	if err != nil {
		return nil, eris.Wrap(err, "component removed by a change queued by its listeners")
	}
	return ptr, nil
}

func (adm *Admin) removeComponent(e EntityID, id ComponentID) error {
	if adm.Locked() {
		return LockedAdminError{}
	}
	rec, err := adm.record(e)
	if err != nil {
		return err
	}
	if _, ok := adm.descriptors[id]; !ok {
		return ComponentNotRegisteredError{Component: id}
	}
	if rec.arch == nil || !rec.arch.has(id) {
		return ComponentNotFoundError{Entity: e, Component: id}
	}
	to, err := adm.archetypeWithout(rec.arch, id)
	if err != nil {
		return err
	}

	return adm.deferring(func() {
		adm.notifyRemoved(e, id)
		col := rec.arch.column(id)
		col.ops.Destroy(e, col.at(rec.row))
		if to == adm.root {
			adm.detach(rec)
			adm.records[e] = record{alive: true}
			return
		}
		row := adm.migrate(e, rec, to, id)
		adm.records[e] = record{arch: to, row: row, alive: true}
	})
}

// noComponent is never assigned to a type.
const noComponent ComponentID = 1<<32 - 1

// migrate appends e to the archetype to, moves every column it shares with
// e's current archetype (except skip, already destroyed) and closes the gap
// left behind. The caller constructs any column to has that the source lacks
// and writes e's record.
func (adm *Admin) migrate(e EntityID, rec record, to *archetype, skip ComponentID) int {
	row := to.pushRow(e, adm.config.InitialColumnCapacity)
	from := rec.arch
	if from == nil {
		return row
	}
	for i := range from.columns {
		src := &from.columns[i]
		id := src.ops.ID()
		if id == skip {
			continue
		}
		j := to.columnIndex(id)
		invariant(j >= 0, "archetype %d lacks column %d of archetype %d", to.id, id, from.id)
		dst := &to.columns[j]
		src.ops.MoveDestroy(e, src.at(rec.row), dst.at(row))
	}
	adm.detach(rec)
	return row
}

// detach closes the row rec occupies, whose slots must already be vacant.
func (adm *Admin) detach(rec record) {
	if moved := rec.arch.swapRemove(rec.row); moved != NullEntity {
		adm.records[moved].row = rec.row
	}
}

// RemoveEntity destroys every component of e and recycles its ID.
func (adm *Admin) RemoveEntity(e EntityID) error {
	if adm.Locked() {
		return LockedAdminError{}
	}
	rec, err := adm.record(e)
	if err != nil {
		return err
	}
	return adm.deferring(func() {
		if cb, ok := adm.observers.destroyed[e]; ok {
			delete(adm.observers.destroyed, e)
			cb(e)
		}
		adm.releaseRelations(e)
		if rec.arch != nil {
			for i := range rec.arch.columns {
				col := &rec.arch.columns[i]
				adm.notifyRemoved(e, col.ops.ID())
				col.ops.Destroy(e, col.at(rec.row))
			}
			adm.detach(rec)
		}
		adm.records[e] = record{}
		adm.free = append(adm.free, e)
		adm.live--
	})
}

// Duplicate creates a new entity holding copies of all of e's components.
func (adm *Admin) Duplicate(e EntityID) (EntityID, error) {
	if adm.Locked() {
		return NullEntity, LockedAdminError{}
	}
	rec, err := adm.record(e)
	if err != nil {
		return NullEntity, err
	}
	dup := adm.NewEntity()
	arch := rec.arch
	if arch == nil {
		return dup, nil
	}
	row := arch.pushRow(dup, adm.config.InitialColumnCapacity)
	for i := range arch.columns {
		col := &arch.columns[i]
		col.ops.Copy(e, dup, col.at(rec.row), col.at(row))
	}
	adm.records[dup] = record{arch: arch, row: row, alive: true}

	err = adm.deferring(func() {
		for _, id := range arch.typ {
			adm.notifyAdded(dup, id)
		}
	})
	return dup, err
}

// deferring runs fn with the admin locked so listeners it calls can only
// enqueue structural changes, then applies them. If fn panics the lock is
// released and queued changes wait for the next unlock.
func (adm *Admin) deferring(fn func()) error {
	adm.Lock()
	done := false
	defer func() {
		if !done {
			adm.locks--
		}
	}()
	fn()
	done = true
	return adm.Unlock()
}
