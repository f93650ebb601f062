package stockroom

import (
	"unsafe"

	"github.com/rotisserie/eris"
)

type operation struct {
	typ      operationType
	amount   int
	comps    []Component
	entities []EntityID
	comp     ComponentID
	value    unsafe.Pointer
}

type operationType int

const (
	opCreate operationType = iota
	opDestroy
	opAddComponent
	opRemoveComponent
)

type opQueue struct {
	createOps      []operation
	componentOps   []operation
	destroyOps     []operation
	pendingDestroy map[EntityID]struct{}
}

func newOpQueue() opQueue {
	return opQueue{
		pendingDestroy: make(map[EntityID]struct{}),
	}
}

func (q *opQueue) empty() bool {
	return len(q.createOps) == 0 && len(q.componentOps) == 0 && len(q.destroyOps) == 0
}

func (q *opQueue) enqueueOp(op operation) {
	switch op.typ {
	case opCreate:
		q.createOps = append(q.createOps, op)
	case opDestroy:
		q.destroyOps = append(q.destroyOps, op)
	case opAddComponent, opRemoveComponent:
		q.componentOps = append(q.componentOps, op)
	}
}

func (q *opQueue) enqueueDestroy(entities []EntityID) {
	var fresh []EntityID
	for _, e := range entities {
		if _, queued := q.pendingDestroy[e]; queued {
			continue
		}
		q.pendingDestroy[e] = struct{}{}
		fresh = append(fresh, e)
	}
	if len(fresh) > 0 {
		q.enqueueOp(operation{typ: opDestroy, entities: fresh})
	}
}

func (q *opQueue) enqueueComponentOp(typ operationType, e EntityID, id ComponentID, value unsafe.Pointer) {
	if _, doomed := q.pendingDestroy[e]; doomed {
		return
	}
	q.enqueueOp(operation{typ: typ, entities: []EntityID{e}, comp: id, value: value})
}

// processOperationQueue applies everything queued while the admin was locked:
// creates first, then component changes, then removals. It keeps going after
// a failed operation and returns the first error.
func (adm *Admin) processOperationQueue() error {
	if adm.opQueue.empty() {
		return nil
	}
	// Listeners fired below may enqueue more work; that lands in a fresh
	// queue and is flushed by the nested unlock that fires them.
	q := adm.opQueue
	adm.opQueue = newOpQueue()

	var first error
	keep := func(err error, msg string) {
		if err != nil && first == nil {
			first = eris.Wrap(err, msg)
		}
	}

	for _, op := range q.createOps {
		_, err := adm.NewEntities(op.amount, op.comps...)
		keep(err, "failed to process queued entity creation")
	}

	for _, op := range q.componentOps {
		e := op.entities[0]
		if _, doomed := q.pendingDestroy[e]; doomed || !adm.IsAlive(e) {
			continue
		}
		switch op.typ {
		case opAddComponent:
			_, err := adm.addComponent(e, op.comp, op.value)
			keep(err, "failed to add queued component")
		case opRemoveComponent:
			keep(adm.removeComponent(e, op.comp), "failed to remove queued component")
		}
	}

	for _, op := range q.destroyOps {
		for _, e := range op.entities {
			if !adm.IsAlive(e) {
				continue
			}
			keep(adm.RemoveEntity(e), "failed to remove queued entity")
		}
	}

	adm.log.Debug().
		Int("creates", len(q.createOps)).
		Int("component_ops", len(q.componentOps)).
		Int("destroys", len(q.destroyOps)).
		Msg("flushed operation queue")

	if debugChecks {
		if err := adm.Validate(); err != nil {
			panic(eris.Wrap(err, "stockroom: admin inconsistent after flush"))
		}
	}
	return first
}

// EnqueueNewEntities creates n entities now, or when the admin is unlocked.
func (adm *Admin) EnqueueNewEntities(n int, components ...Component) error {
	if !adm.Locked() {
		_, err := adm.NewEntities(n, components...)
		return err
	}
	adm.opQueue.enqueueOp(operation{typ: opCreate, amount: n, comps: components})
	return nil
}

// EnqueueRemoveEntity removes e now, or when the admin is unlocked. Queued
// component changes for e are dropped.
func (adm *Admin) EnqueueRemoveEntity(e EntityID) error {
	if !adm.Locked() {
		return adm.RemoveEntity(e)
	}
	if !adm.IsAlive(e) {
		return EntityNotFoundError{Entity: e}
	}
	adm.opQueue.enqueueDestroy([]EntityID{e})
	return nil
}

// EnqueueAddComponent attaches a copy of v to e now, or when the admin is
// unlocked.
func EnqueueAddComponent[T any](adm *Admin, e EntityID, v T) error {
	if !adm.Locked() {
		_, err := AddComponent(adm, e, v)
		return err
	}
	if !adm.IsAlive(e) {
		return EntityNotFoundError{Entity: e}
	}
	held := new(T)
	*held = v
	adm.opQueue.enqueueComponentOp(opAddComponent, e, ComponentIDOf[T](), unsafe.Pointer(held))
	return nil
}

// EnqueueRemoveComponent detaches e's T now, or when the admin is unlocked.
func EnqueueRemoveComponent[T any](adm *Admin, e EntityID) error {
	if !adm.Locked() {
		return RemoveComponent[T](adm, e)
	}
	if !adm.IsAlive(e) {
		return EntityNotFoundError{Entity: e}
	}
	adm.opQueue.enqueueComponentOp(opRemoveComponent, e, ComponentIDOf[T](), nil)
	return nil
}
