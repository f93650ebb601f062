/*
Package stockroom provides archetype-based entity and component storage for games and simulations.

An Admin keeps every entity's components in contiguous, type-homogeneous columns grouped by
archetype, the exact set of component types an entity holds. Adding or removing a component
migrates the entity to the neighboring archetype; the transition is cached on both archetypes
so repeated migrations skip the lookup.

Core Concepts:

  - Entity: an opaque 32-bit ID. IDs of removed entities are recycled.
  - Component: any Go type, registered once per Admin with RegisterComponent.
  - Archetype: all entities sharing one component set, one column per component.
  - ComponentRef: a handle to one entity's component that follows it across migrations.
  - System: a typed callback over every archetype holding its components, run by layer.

Basic Usage:

	adm := stockroom.Factory.NewAdmin()
	stockroom.RegisterComponent[Position](adm)
	stockroom.RegisterComponent[Velocity](adm)

	e := adm.NewEntity()
	stockroom.AddComponent(adm, e, Position{})
	stockroom.AddComponent(adm, e, Velocity{X: 1})

	move := stockroom.NewSystem2[Position, Velocity]().
		Each(func(_ stockroom.EntityID, pos *Position, vel *Velocity) {
			pos.X += vel.X
			pos.Y += vel.Y
		})
	adm.RegisterSystem(0, move)
	adm.RunSystems(0)

Ad-hoc iteration uses queries and cursors:

	position := stockroom.FactoryNewComponent[Position]()
	query := stockroom.Factory.NewQuery()
	cursor := stockroom.Factory.NewCursor(query.And(position), adm)
	for cursor.Next() {
		pos := position.GetFromCursor(cursor)
		pos.X = 0
	}

An Admin assumes a single writer. While it is locked, by a running layer or an open cursor,
structural changes must go through the Enqueue functions and are applied on unlock.

Building with the stockroomdebug tag turns on internal invariant checks, including a full
Validate after every queue flush.
*/
package stockroom
