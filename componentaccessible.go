package stockroom

// ID returns the component ID of T.
func (c AccessibleComponent[T]) ID() ComponentID {
	return c.id
}

// GetFromCursor retrieves T for the entity under the cursor. It panics if the
// current archetype has no T; use GetFromCursorSafe when unsure.
func (c AccessibleComponent[T]) GetFromCursor(cursor *Cursor) *T {
	return (*T)(cursor.current.column(c.id).at(cursor.row))
}

// GetFromCursorSafe retrieves T, reporting whether the archetype under the
// cursor holds it.
func (c AccessibleComponent[T]) GetFromCursorSafe(cursor *Cursor) (bool, *T) {
	if !c.CheckCursor(cursor) {
		return false, nil
	}
	return true, c.GetFromCursor(cursor)
}

// CheckCursor determines if the component exists in the archetype at the cursor position
func (c AccessibleComponent[T]) CheckCursor(cursor *Cursor) bool {
	return cursor.current != nil && cursor.row >= 0 && cursor.current.has(c.id)
}

// GetFromEntity retrieves e's T, or nil if e is dead or lacks T.
func (c AccessibleComponent[T]) GetFromEntity(adm *Admin, e EntityID) *T {
	ptr, err := adm.componentPtr(e, c.id)
	if err != nil {
		return nil
	}
	return (*T)(ptr)
}

// Ref returns a stable handle to e's T.
func (c AccessibleComponent[T]) Ref(adm *Admin, e EntityID) (ComponentRef[T], error) {
	return GetComponentRef[T](adm, e)
}
