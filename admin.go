package stockroom

import (
	"iter"
	"math"
	"slices"
	"strconv"
	"strings"
	"unsafe"

	"github.com/TheBitDrifter/mask"
	iter_util "github.com/TheBitDrifter/util/iter"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// record locates an alive entity. arch is nil while the entity holds no
// components.
type record struct {
	arch  *archetype
	row   int
	alive bool
}

type observers struct {
	added     map[ComponentID][]ComponentCallback
	removed   map[ComponentID][]ComponentCallback
	destroyed map[EntityID]EntityDestroyCallback
}

// Admin owns every archetype, descriptor and entity record. It assumes a
// single writer: structural changes and RunSystems must not race with any
// other call on the same Admin.
type Admin struct {
	config Config
	log    zerolog.Logger

	records []record
	free    []EntityID
	live    int

	root        *archetype
	archetypes  []*archetype
	byMask      map[mask.Mask]*archetype
	byID        map[ArchetypeID]*archetype
	version     uint64
	reclaims    uint64
	descriptors map[ComponentID]ComponentOps
	refs        *refTable
	queries     *SimpleCache[queryResult]

	layers    map[Layer]*systemLayer
	systemSeq int
	observers observers
	relations relations

	locks   int
	opQueue opQueue
}

type queryResult struct {
	mask       mask.Mask
	archetypes []*archetype
}

func newAdmin(cfg Config) *Admin {
	adm := &Admin{
		config:      cfg,
		log:         cfg.Logger,
		records:     make([]record, 1, cfg.InitialEntityCapacity+1),
		byMask:      make(map[mask.Mask]*archetype),
		byID:        make(map[ArchetypeID]*archetype),
		descriptors: make(map[ComponentID]ComponentOps),
		refs:        newRefTable(cfg.InitialEntityCapacity),
		queries: &SimpleCache[queryResult]{
			itemIndices: make(map[string]int),
			maxCapacity: cfg.MaxCachedQueries,
		},
		layers: make(map[Layer]*systemLayer),
		observers: observers{
			added:     make(map[ComponentID][]ComponentCallback),
			removed:   make(map[ComponentID][]ComponentCallback),
			destroyed: make(map[EntityID]EntityDestroyCallback),
		},
		relations: relations{
			parents:  make(map[EntityID]EntityID),
			children: make(map[EntityID][]EntityID),
		},
		opQueue: newOpQueue(),
	}
	adm.root = adm.createArchetype(nil, nil)
	return adm
}

// NewEntity allocates an entity without components. It never touches
// archetype storage and is therefore allowed while the admin is locked.
func (adm *Admin) NewEntity() EntityID {
	var e EntityID
	if n := len(adm.free); n > 0 {
		e = adm.free[n-1]
		adm.free = adm.free[:n-1]
	} else {
		if uint64(len(adm.records)) > math.MaxUint32 {
			panic(eris.New("stockroom: entity id space exhausted"))
		}
		e = EntityID(len(adm.records))
		adm.records = append(adm.records, record{})
	}
	adm.records[e] = record{alive: true}
	adm.live++
	return e
}

// NewEntities creates n entities holding zero values of the given components.
func (adm *Admin) NewEntities(n int, components ...Component) ([]EntityID, error) {
	if adm.Locked() {
		return nil, LockedAdminError{}
	}
	ids := make([]ComponentID, len(components))
	for i, c := range components {
		ids[i] = c.ID()
	}
	typ, ok := sortedKey(ids)
	if !ok {
		return nil, DuplicateComponentError{Components: ids}
	}

	var arch *archetype
	if len(typ) > 0 {
		var err error
		arch, err = adm.findOrCreateArchetype(typ)
		if err != nil {
			return nil, err
		}
	}

	entities := make([]EntityID, n)
	for i := range entities {
		e := adm.NewEntity()
		entities[i] = e
		if arch == nil {
			continue
		}
		row := arch.pushRow(e, adm.config.InitialColumnCapacity)
		for c := range arch.columns {
			col := &arch.columns[c]
			col.ops.Construct(e, col.at(row))
		}
		adm.records[e] = record{arch: arch, row: row, alive: true}
	}
	if arch == nil {
		return entities, nil
	}
	err := adm.deferring(func() {
		for _, e := range entities {
			for _, id := range typ {
				adm.notifyAdded(e, id)
			}
		}
	})
	return entities, err
}

// IsAlive reports whether e names a live entity.
func (adm *Admin) IsAlive(e EntityID) bool {
	return e != NullEntity && int(e) < len(adm.records) && adm.records[e].alive
}

// EntityCount returns the number of live entities.
func (adm *Admin) EntityCount() int {
	return adm.live
}

// ArchetypeOf returns the archetype currently holding e, or nil when e is
// dead or holds no components.
func (adm *Admin) ArchetypeOf(e EntityID) Archetype {
	if !adm.IsAlive(e) || adm.records[e].arch == nil {
		return nil
	}
	return adm.records[e].arch
}

// Components lists the component IDs e holds, sorted.
func (adm *Admin) Components(e EntityID) ([]ComponentID, error) {
	rec, err := adm.record(e)
	if err != nil {
		return nil, err
	}
	if rec.arch == nil {
		return nil, nil
	}
	return slices.Clone(rec.arch.typ), nil
}

// Archetypes snapshots every archetype, including the empty root.
func (adm *Admin) Archetypes() []Archetype {
	return iter_util.Collect(adm.allArchetypes())
}

func (adm *Admin) allArchetypes() iter.Seq[Archetype] {
	return func(yield func(Archetype) bool) {
		for _, arch := range adm.archetypes {
			if !yield(arch) {
				return
			}
		}
	}
}

// GetArchetypes returns every archetype whose type is a superset of key.
func (adm *Admin) GetArchetypes(key ...Component) []Archetype {
	ids := make([]ComponentID, len(key))
	for i, c := range key {
		ids[i] = c.ID()
	}
	sorted, _ := sortedKey(ids)
	matched := adm.matching(sorted)
	out := make([]Archetype, len(matched))
	for i, arch := range matched {
		out[i] = arch
	}
	return out
}

// OnComponentAdded registers fn to run after id is attached to any entity.
func (adm *Admin) OnComponentAdded(c Component, fn ComponentCallback) {
	adm.observers.added[c.ID()] = append(adm.observers.added[c.ID()], fn)
}

// OnComponentRemoved registers fn to run before id is detached from any
// entity, including when the entity itself is removed.
func (adm *Admin) OnComponentRemoved(c Component, fn ComponentCallback) {
	adm.observers.removed[c.ID()] = append(adm.observers.removed[c.ID()], fn)
}

// SetDestroyCallback registers cb to run right before e is removed.
func (adm *Admin) SetDestroyCallback(e EntityID, cb EntityDestroyCallback) error {
	if !adm.IsAlive(e) {
		return EntityNotFoundError{Entity: e}
	}
	adm.observers.destroyed[e] = cb
	return nil
}

func (adm *Admin) notifyAdded(e EntityID, id ComponentID) {
	for _, fn := range adm.observers.added[id] {
		fn(e, id)
	}
}

func (adm *Admin) notifyRemoved(e EntityID, id ComponentID) {
	for _, fn := range adm.observers.removed[id] {
		fn(e, id)
	}
}

// Locked reports whether structural changes are currently deferred.
func (adm *Admin) Locked() bool {
	return adm.locks > 0
}

// Lock defers structural changes until the matching Unlock. Locks nest.
func (adm *Admin) Lock() {
	adm.locks++
}

// Unlock releases one lock. Releasing the last one applies queued
// operations and returns the first error they produced.
func (adm *Admin) Unlock() error {
	if adm.locks == 0 {
		return nil
	}
	adm.locks--
	if adm.locks > 0 {
		return nil
	}
	return adm.processOperationQueue()
}

func (adm *Admin) record(e EntityID) (record, error) {
	if !adm.IsAlive(e) {
		return record{}, EntityNotFoundError{Entity: e}
	}
	return adm.records[e], nil
}

func (adm *Admin) componentPtr(e EntityID, id ComponentID) (unsafe.Pointer, error) {
	rec, err := adm.record(e)
	if err != nil {
		return nil, err
	}
	if rec.arch == nil || !rec.arch.has(id) {
		return nil, ComponentNotFoundError{Entity: e, Component: id}
	}
	return rec.arch.column(id).at(rec.row), nil
}

// findOrCreateArchetype resolves a sorted component set to its archetype.
func (adm *Admin) findOrCreateArchetype(typ []ComponentID) (*archetype, error) {
	if arch, ok := adm.byMask[maskOf(typ)]; ok {
		return arch, nil
	}
	ops := make([]ComponentOps, len(typ))
	for i, id := range typ {
		op, ok := adm.descriptors[id]
		if !ok {
			return nil, ComponentNotRegisteredError{Component: id}
		}
		ops[i] = op
	}
	return adm.createArchetype(typ, ops), nil
}

func (adm *Admin) createArchetype(typ []ComponentID, ops []ComponentOps) *archetype {
	id := hashType(typ)
	// Probe past the rare hash collision; the stored type disambiguates.
	for other, taken := adm.byID[id]; taken; other, taken = adm.byID[id] {
		invariant(!slices.Equal(other.typ, typ), "archetype %v created twice", typ)
		id++
	}

	arch := newArchetype(id, typ, ops)
	adm.archetypes = append(adm.archetypes, arch)
	adm.byMask[arch.mask] = arch
	adm.byID[id] = arch
	adm.version++

	for _, res := range adm.queries.All() {
		if arch.mask.ContainsAll(res.mask) {
			res.archetypes = append(res.archetypes, arch)
		}
	}

	adm.log.Debug().
		Uint64("archetype_id", uint64(id)).
		Str("components", adm.typeString(typ)).
		Int("total_archetypes", len(adm.archetypes)).
		Msg("created archetype")
	return arch
}

// archetypeWith follows or builds the add edge from src over id.
func (adm *Admin) archetypeWith(src *archetype, id ComponentID) (*archetype, error) {
	if e, ok := src.edges[id]; ok && e.add != nil {
		return e.add, nil
	}
	dst, err := adm.findOrCreateArchetype(withComponent(src.typ, id))
	if err != nil {
		return nil, err
	}
	src.edge(id).add = dst
	dst.edge(id).remove = src
	return dst, nil
}

// archetypeWithout follows or builds the remove edge from src over id.
func (adm *Admin) archetypeWithout(src *archetype, id ComponentID) (*archetype, error) {
	if e, ok := src.edges[id]; ok && e.remove != nil {
		return e.remove, nil
	}
	dst, err := adm.findOrCreateArchetype(withoutComponent(src.typ, id))
	if err != nil {
		return nil, err
	}
	src.edge(id).remove = dst
	dst.edge(id).add = src
	return dst, nil
}

// matching returns the cached superset list for a sorted key.
func (adm *Admin) matching(key []ComponentID) []*archetype {
	k := keyString(key)
	if idx, ok := adm.queries.GetIndex(k); ok {
		return adm.queries.GetItem(idx).archetypes
	}
	res := queryResult{mask: maskOf(key)}
	for _, arch := range adm.archetypes {
		if arch.mask.ContainsAll(res.mask) {
			res.archetypes = append(res.archetypes, arch)
		}
	}
	if _, err := adm.queries.Register(k, res); err != nil {
		adm.log.Debug().Err(err).Str("key", k).Msg("query cache full, serving uncached result")
	}
	return res.archetypes
}

// Shrink reclaims empty archetypes. With extensive set it also releases
// column capacity beyond each archetype's live rows.
func (adm *Admin) Shrink(extensive bool) error {
	if adm.Locked() {
		return LockedAdminError{}
	}
	gone := make(map[*archetype]struct{})
	kept := adm.archetypes[:0]
	for _, arch := range adm.archetypes {
		if arch != adm.root && arch.Len() == 0 {
			gone[arch] = struct{}{}
			delete(adm.byMask, arch.mask)
			delete(adm.byID, arch.id)
			continue
		}
		kept = append(kept, arch)
	}
	clear(adm.archetypes[len(kept):])
	adm.archetypes = kept

	for _, arch := range adm.archetypes {
		if len(gone) > 0 {
			arch.unlink(gone)
		}
		if extensive {
			arch.trim()
		}
	}
	if len(gone) > 0 {
		adm.version++
		adm.reclaims++
		for _, res := range adm.queries.All() {
			res.archetypes = slices.DeleteFunc(res.archetypes, func(arch *archetype) bool {
				_, ok := gone[arch]
				return ok
			})
		}
	}
	if extensive {
		adm.free = slices.Clip(adm.free)
	}

	adm.log.Debug().
		Int("reclaimed", len(gone)).
		Int("total_archetypes", len(adm.archetypes)).
		Bool("extensive", extensive).
		Msg("shrunk admin")
	return nil
}

func keyString(key []ComponentID) string {
	var b strings.Builder
	for i, id := range key {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}

func (adm *Admin) typeString(typ []ComponentID) string {
	names := make([]string, len(typ))
	for i, id := range typ {
		names[i] = ComponentName(id)
	}
	return "[" + strings.Join(names, " ") + "]"
}
