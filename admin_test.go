package stockroom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Position struct {
	X float64
	Y float64
}

type Velocity struct {
	X float64
	Y float64
}

type Health struct {
	Current int
	Max     int
}

type Name struct {
	Value string
}

func newTestAdmin(t *testing.T, opts ...Option) *Admin {
	t.Helper()
	adm := Factory.NewAdmin(opts...)
	RegisterComponent[Position](adm)
	RegisterComponent[Velocity](adm)
	RegisterComponent[Health](adm)
	RegisterComponent[Name](adm)
	return adm
}

func requireValid(t *testing.T, adm *Admin) {
	t.Helper()
	require.NoError(t, adm.Validate())
}

func TestArchetypeCreation(t *testing.T) {
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()
	health := FactoryNewComponent[Health]()

	tests := []struct {
		name                string
		first               []Component
		second              []Component
		expectSameArchetype bool
	}{
		{"Identical components", []Component{pos, vel}, []Component{pos, vel}, true},
		{"Different order", []Component{pos, vel}, []Component{vel, pos}, true},
		{"Different components", []Component{pos}, []Component{vel}, false},
		{"Subset components", []Component{pos, vel}, []Component{pos}, false},
		{"Superset components", []Component{pos}, []Component{pos, vel, health}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adm := newTestAdmin(t)

			first, err := adm.NewEntities(1, tt.first...)
			require.NoError(t, err)
			second, err := adm.NewEntities(1, tt.second...)
			require.NoError(t, err)

			same := adm.ArchetypeOf(first[0]).ID() == adm.ArchetypeOf(second[0]).ID()
			assert.Equal(t, tt.expectSameArchetype, same)
			requireValid(t, adm)
		})
	}
}

func TestArchetypeUniqueness(t *testing.T) {
	adm := newTestAdmin(t)

	a := adm.NewEntity()
	_, err := AddComponent(adm, a, Position{})
	require.NoError(t, err)
	_, err = AddComponent(adm, a, Velocity{})
	require.NoError(t, err)

	b := adm.NewEntity()
	_, err = AddComponent(adm, b, Velocity{})
	require.NoError(t, err)
	_, err = AddComponent(adm, b, Position{})
	require.NoError(t, err)

	assert.Same(t, adm.ArchetypeOf(a), adm.ArchetypeOf(b))

	seen := make(map[string]bool)
	for _, arch := range adm.Archetypes() {
		key := keyString(arch.Type())
		assert.False(t, seen[key], "archetype %s appears twice", key)
		seen[key] = true
	}
	requireValid(t, adm)
}

func TestNewEntityRecyclesIDs(t *testing.T) {
	adm := newTestAdmin(t)

	a := adm.NewEntity()
	b := adm.NewEntity()
	c := adm.NewEntity()
	assert.NotEqual(t, NullEntity, a)
	assert.Equal(t, 3, adm.EntityCount())

	require.NoError(t, adm.RemoveEntity(b))
	require.NoError(t, adm.RemoveEntity(a))
	assert.False(t, adm.IsAlive(a))
	assert.Equal(t, 1, adm.EntityCount())

	// Free list is LIFO.
	assert.Equal(t, a, adm.NewEntity())
	assert.Equal(t, b, adm.NewEntity())
	assert.True(t, adm.IsAlive(c))
	requireValid(t, adm)
}

func TestNewEntities(t *testing.T) {
	adm := newTestAdmin(t)
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()

	entities, err := adm.NewEntities(100, pos, vel)
	require.NoError(t, err)
	require.Len(t, entities, 100)

	arch := adm.ArchetypeOf(entities[0])
	require.NotNil(t, arch)
	assert.Equal(t, 100, arch.Len())
	for _, e := range entities {
		p, ok := TryGetComponent[Position](adm, e)
		require.True(t, ok)
		assert.Equal(t, Position{}, *p)
	}
	requireValid(t, adm)

	t.Run("duplicate components", func(t *testing.T) {
		_, err := adm.NewEntities(1, pos, pos)
		var dup DuplicateComponentError
		assert.ErrorAs(t, err, &dup)
	})

	t.Run("unregistered component", func(t *testing.T) {
		type unregistered struct{ A int }
		_, err := adm.NewEntities(1, FactoryNewComponent[unregistered]())
		var notRegistered ComponentNotRegisteredError
		assert.ErrorAs(t, err, &notRegistered)
	})
}

func TestShrink(t *testing.T) {
	adm := newTestAdmin(t, WithColumnCapacity(4))

	movers, err := adm.NewEntities(10, ComponentIDOf[Position](), ComponentIDOf[Velocity]())
	require.NoError(t, err)
	still, err := adm.NewEntities(3, ComponentIDOf[Position]())
	require.NoError(t, err)

	before := len(adm.Archetypes())
	for _, e := range movers {
		require.NoError(t, adm.RemoveEntity(e))
	}
	require.NoError(t, adm.Shrink(true))

	assert.Equal(t, before-1, len(adm.Archetypes()))
	for _, e := range still {
		assert.True(t, HasComponent[Position](adm, e))
	}
	arch := adm.ArchetypeOf(still[0]).(*archetype)
	assert.Equal(t, 3, arch.columns[0].cap)
	requireValid(t, adm)

	// The reclaimed archetype comes back on demand.
	e := still[0]
	_, err = AddComponent(adm, e, Velocity{X: 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, GetComponent[Velocity](adm, e).X)
	requireValid(t, adm)

	t.Run("locked", func(t *testing.T) {
		adm.Lock()
		defer adm.Unlock()
		assert.ErrorAs(t, adm.Shrink(false), &LockedAdminError{})
	})
}

func TestGetArchetypes(t *testing.T) {
	adm := newTestAdmin(t)
	pos := ComponentIDOf[Position]()
	vel := ComponentIDOf[Velocity]()
	health := ComponentIDOf[Health]()

	_, err := adm.NewEntities(1, pos)
	require.NoError(t, err)
	_, err = adm.NewEntities(1, pos, vel)
	require.NoError(t, err)

	assert.Len(t, adm.GetArchetypes(pos), 2)
	assert.Len(t, adm.GetArchetypes(vel, pos), 1)

	// Archetypes created later join cached results.
	_, err = adm.NewEntities(1, pos, vel, health)
	require.NoError(t, err)
	assert.Len(t, adm.GetArchetypes(pos), 3)
	assert.Len(t, adm.GetArchetypes(pos, vel), 2)
	assert.Len(t, adm.GetArchetypes(health), 1)
}

func TestLockRejectsStructuralChanges(t *testing.T) {
	adm := newTestAdmin(t)
	e := adm.NewEntity()

	adm.Lock()
	adm.Lock()

	var locked LockedAdminError
	_, err := AddComponent(adm, e, Position{})
	assert.ErrorAs(t, err, &locked)
	assert.ErrorAs(t, RemoveComponent[Position](adm, e), &locked)
	assert.ErrorAs(t, adm.RemoveEntity(e), &locked)
	_, err = adm.Duplicate(e)
	assert.ErrorAs(t, err, &locked)

	// Creating a bare entity does not touch storage.
	fresh := adm.NewEntity()
	assert.True(t, adm.IsAlive(fresh))

	require.NoError(t, adm.Unlock())
	assert.True(t, adm.Locked())
	require.NoError(t, adm.Unlock())
	assert.False(t, adm.Locked())

	_, err = AddComponent(adm, e, Position{})
	assert.NoError(t, err)
}

func TestObservers(t *testing.T) {
	adm := newTestAdmin(t)
	pos := ComponentIDOf[Position]()

	var added, removed []EntityID
	adm.OnComponentAdded(pos, func(e EntityID, id ComponentID) {
		assert.Equal(t, pos, id)
		added = append(added, e)
	})
	adm.OnComponentRemoved(pos, func(e EntityID, id ComponentID) {
		// Still attached while listeners run.
		assert.True(t, HasComponent[Position](adm, e))
		removed = append(removed, e)
	})

	a := adm.NewEntity()
	_, err := AddComponent(adm, a, Position{})
	require.NoError(t, err)
	b, err := adm.Duplicate(a)
	require.NoError(t, err)
	assert.Equal(t, []EntityID{a, b}, added)

	require.NoError(t, RemoveComponent[Position](adm, a))
	require.NoError(t, adm.RemoveEntity(b))
	assert.Equal(t, []EntityID{a, b}, removed)
}

func TestObserverEnqueuesWhileLocked(t *testing.T) {
	adm := newTestAdmin(t)

	adm.OnComponentAdded(ComponentIDOf[Position](), func(e EntityID, _ ComponentID) {
		assert.True(t, adm.Locked())
		require.NoError(t, EnqueueAddComponent(adm, e, Health{Current: 10}))
	})

	e := adm.NewEntity()
	_, err := AddComponent(adm, e, Position{X: 1})
	require.NoError(t, err)

	h, ok := TryGetComponent[Health](adm, e)
	require.True(t, ok)
	assert.Equal(t, 10, h.Current)
	assert.Equal(t, 1.0, GetComponent[Position](adm, e).X)
	requireValid(t, adm)
}

func TestDestroyCallback(t *testing.T) {
	adm := newTestAdmin(t)
	parent := adm.NewEntity()
	child := adm.NewEntity()
	_, err := AddComponent(adm, child, Name{Value: "child"})
	require.NoError(t, err)

	require.NoError(t, adm.SetDestroyCallback(parent, func(e EntityID) {
		assert.Equal(t, parent, e)
		require.NoError(t, adm.EnqueueRemoveEntity(child))
	}))
	require.NoError(t, adm.RemoveEntity(parent))

	assert.False(t, adm.IsAlive(parent))
	assert.False(t, adm.IsAlive(child))
	requireValid(t, adm)

	var notFound EntityNotFoundError
	assert.ErrorAs(t, adm.SetDestroyCallback(parent, func(EntityID) {}), &notFound)
}

func TestRegisterComponentIdempotent(t *testing.T) {
	adm := Factory.NewAdmin()
	first := RegisterComponent[Position](adm)
	ops, ok := adm.Descriptor(first)
	require.True(t, ok)

	second := RegisterComponent[Position](adm)
	assert.Equal(t, first, second)
	again, _ := adm.Descriptor(second)
	assert.Same(t, ops, again)
	assert.Equal(t, ComponentIDOf[Position](), first)
	assert.True(t, adm.IsRegistered(first))
	assert.False(t, adm.IsRegistered(ComponentIDOf[Health]()))
	assert.Equal(t, "stockroom.Position", ComponentName(first))
}

func TestShrinkPrunesCaches(t *testing.T) {
	adm := newTestAdmin(t)
	pos := ComponentIDOf[Position]()
	vel := ComponentIDOf[Velocity]()

	healthy, err := adm.NewEntities(2, pos, ComponentIDOf[Health]())
	require.NoError(t, err)
	movers, err := adm.NewEntities(2, pos, vel)
	require.NoError(t, err)

	var seen []EntityID
	sys := NewSystem1[Position](Without(vel)).Each(func(e EntityID, _ *Position) {
		seen = append(seen, e)
	})
	require.NoError(t, adm.RegisterSystem(0, sys))
	require.NoError(t, adm.RunSystems(0))
	assert.ElementsMatch(t, healthy, seen)
	assert.Len(t, adm.GetArchetypes(pos), 2)
	assert.Len(t, sys.excluded, 2)

	for _, e := range append(healthy, movers...) {
		require.NoError(t, adm.RemoveEntity(e))
	}
	require.NoError(t, adm.Shrink(true))
	assert.Empty(t, adm.GetArchetypes(pos))

	named, err := adm.NewEntities(1, pos, ComponentIDOf[Name]())
	require.NoError(t, err)
	_, err = adm.NewEntities(1, pos, vel, ComponentIDOf[Name]())
	require.NoError(t, err)
	assert.Len(t, adm.GetArchetypes(pos), 2)

	seen = nil
	require.NoError(t, adm.RunSystems(0))
	assert.Equal(t, named, seen)
	// Verdicts for the reclaimed archetypes are gone.
	assert.Len(t, sys.excluded, 2)
	requireValid(t, adm)

	t.Run("non-extensive keeps capacity", func(t *testing.T) {
		adm := newTestAdmin(t, WithColumnCapacity(4))
		es, err := adm.NewEntities(10, pos)
		require.NoError(t, err)
		arch := adm.ArchetypeOf(es[0]).(*archetype)
		grown := arch.columns[0].cap
		require.GreaterOrEqual(t, grown, 10)

		for _, e := range es[2:] {
			require.NoError(t, adm.RemoveEntity(e))
		}
		require.NoError(t, adm.Shrink(false))
		assert.Equal(t, grown, arch.columns[0].cap)
		assert.Same(t, arch, adm.ArchetypeOf(es[0]))

		require.NoError(t, adm.Shrink(true))
		assert.Equal(t, 2, arch.columns[0].cap)
		requireValid(t, adm)
	})
}

func TestPanickingListenerReleasesLock(t *testing.T) {
	adm := newTestAdmin(t)
	adm.OnComponentAdded(ComponentIDOf[Name](), func(e EntityID, _ ComponentID) {
		require.NoError(t, EnqueueAddComponent(adm, e, Health{Current: 1}))
		panic("listener failed")
	})

	e := adm.NewEntity()
	assert.Panics(t, func() {
		AddComponent(adm, e, Name{Value: "x"})
	})
	assert.False(t, adm.Locked())
	assert.True(t, HasComponent[Name](adm, e))
	requireValid(t, adm)

	// The queued change waits for the next unlock.
	assert.False(t, HasComponent[Health](adm, e))
	adm.Lock()
	require.NoError(t, adm.Unlock())
	assert.True(t, HasComponent[Health](adm, e))

	_, err := AddComponent(adm, e, Position{})
	require.NoError(t, err)
	requireValid(t, adm)
}
