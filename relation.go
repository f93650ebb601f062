package stockroom

import "slices"

type relations struct {
	parents  map[EntityID]EntityID
	children map[EntityID][]EntityID
}

// SetParent ties child's lifetime to parent: removing parent also removes
// child, after parent's own destroy callback has run. A child has at most one
// parent and relations may not form a cycle.
func (adm *Admin) SetParent(child, parent EntityID) error {
	if !adm.IsAlive(child) {
		return EntityNotFoundError{Entity: child}
	}
	if !adm.IsAlive(parent) {
		return EntityNotFoundError{Entity: parent}
	}
	if existing, ok := adm.relations.parents[child]; ok {
		return EntityRelationError{Child: child, Parent: existing}
	}
	for p, ok := parent, true; ok; p, ok = adm.relations.parents[p] {
		if p == child {
			return EntityRelationError{Child: child, Parent: parent, Cycle: true}
		}
	}
	adm.relations.parents[child] = parent
	adm.relations.children[parent] = append(adm.relations.children[parent], child)
	return nil
}

// Parent returns e's parent, or false if it has none.
func (adm *Admin) Parent(e EntityID) (EntityID, bool) {
	p, ok := adm.relations.parents[e]
	return p, ok
}

func (adm *Admin) Children(e EntityID) []EntityID {
	return slices.Clone(adm.relations.children[e])
}

// releaseRelations queues the removal of e's children and detaches e from
// its parent. The admin must be locked.
func (adm *Admin) releaseRelations(e EntityID) {
	for _, child := range adm.relations.children[e] {
		delete(adm.relations.parents, child)
		if adm.IsAlive(child) {
			adm.opQueue.enqueueDestroy([]EntityID{child})
		}
	}
	delete(adm.relations.children, e)

	parent, ok := adm.relations.parents[e]
	if !ok {
		return
	}
	delete(adm.relations.parents, e)
	siblings := slices.DeleteFunc(adm.relations.children[parent], func(c EntityID) bool { return c == e })
	if len(siblings) == 0 {
		delete(adm.relations.children, parent)
		return
	}
	adm.relations.children[parent] = siblings
}
