package stockroom

import "fmt"

type LockedAdminError struct{}

func (e LockedAdminError) Error() string {
	return "admin is currently locked"
}

type EntityNotFoundError struct {
	Entity EntityID
}

func (e EntityNotFoundError) Error() string {
	return fmt.Sprintf("entity %d does not exist", e.Entity)
}

type EntityRelationError struct {
	Child, Parent EntityID
	Cycle         bool
}

func (e EntityRelationError) Error() string {
	if e.Cycle {
		return fmt.Sprintf("entity %d cannot parent its ancestor %d", e.Parent, e.Child)
	}
	return fmt.Sprintf("child %d already has parent %d", e.Child, e.Parent)
}

type ComponentExistsError struct {
	Entity    EntityID
	Component ComponentID
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("component already exists on entity %d: %s", e.Entity, ComponentName(e.Component))
}

type ComponentNotFoundError struct {
	Entity    EntityID
	Component ComponentID
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component does not exist on entity %d: %s", e.Entity, ComponentName(e.Component))
}

type ComponentNotRegisteredError struct {
	Component ComponentID
}

func (e ComponentNotRegisteredError) Error() string {
	return fmt.Sprintf("component is not registered with this admin: %s", ComponentName(e.Component))
}

type DuplicateComponentError struct {
	Components []ComponentID
}

func (e DuplicateComponentError) Error() string {
	return fmt.Sprintf("component set contains duplicates: %v", e.Components)
}

// StaleReferenceError is returned when dereferencing a ComponentRef whose
// component or entity has been removed.
type StaleReferenceError struct {
	Entity    EntityID
	Component ComponentID
}

func (e StaleReferenceError) Error() string {
	return fmt.Sprintf("stale reference to %s of entity %d", ComponentName(e.Component), e.Entity)
}

type SystemRegisteredError struct {
	Name string
}

func (e SystemRegisteredError) Error() string {
	return fmt.Sprintf("system %q is already registered", e.Name)
}

type InvalidSystemError struct {
	Name   string
	Reason string
}

func (e InvalidSystemError) Error() string {
	return fmt.Sprintf("invalid system %q: %s", e.Name, e.Reason)
}
