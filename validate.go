package stockroom

import (
	"slices"

	"github.com/rotisserie/eris"
)

// Validate walks the whole admin and reports the first broken invariant:
// rows and records must agree, every column must cover its archetype's rows,
// no two archetypes may share a type, and edges must be symmetric.
func (adm *Admin) Validate() error {
	if len(adm.byMask) != len(adm.archetypes) || len(adm.byID) != len(adm.archetypes) {
		return eris.Errorf("archetype index holds %d masks and %d ids for %d archetypes",
			len(adm.byMask), len(adm.byID), len(adm.archetypes))
	}
	if adm.root.Len() != 0 {
		return eris.Errorf("root archetype holds %d entities", adm.root.Len())
	}

	placed := 0
	for _, arch := range adm.archetypes {
		if adm.byMask[arch.mask] != arch || adm.byID[arch.id] != arch {
			return eris.Errorf("archetype %d %s is not indexed", arch.id, adm.typeString(arch.typ))
		}
		if !slices.IsSorted(arch.typ) || len(arch.columns) != len(arch.typ) {
			return eris.Errorf("archetype %d has a malformed type %v", arch.id, arch.typ)
		}
		for i := range arch.columns {
			col := &arch.columns[i]
			if col.ops.ID() != arch.typ[i] || arch.columnOf[arch.typ[i]] != i {
				return eris.Errorf("archetype %d column %d holds component %d", arch.id, i, col.ops.ID())
			}
			if col.cap < arch.Len() {
				return eris.Errorf("archetype %d column %s holds %d rows in capacity %d",
					arch.id, ComponentName(col.ops.ID()), arch.Len(), col.cap)
			}
		}
		for row, e := range arch.entities {
			if !adm.IsAlive(e) {
				return eris.Errorf("archetype %d row %d holds dead entity %d", arch.id, row, e)
			}
			if rec := adm.records[e]; rec.arch != arch || rec.row != row {
				return eris.Errorf("entity %d recorded at row %d but stored at archetype %d row %d", e, rec.row, arch.id, row)
			}
		}
		placed += arch.Len()

		for id, e := range arch.edges {
			if e.add != nil && (e.add.edges[id] == nil || e.add.edges[id].remove != arch || !slices.Equal(e.add.typ, withComponent(arch.typ, id))) {
				return eris.Errorf("archetype %d add edge over %d is not symmetric", arch.id, id)
			}
			if e.remove != nil && (e.remove.edges[id] == nil || e.remove.edges[id].add != arch || !slices.Equal(e.remove.typ, withoutComponent(arch.typ, id))) {
				return eris.Errorf("archetype %d remove edge over %d is not symmetric", arch.id, id)
			}
		}
	}

	alive, unassigned := 0, 0
	for i, rec := range adm.records {
		if !rec.alive {
			continue
		}
		alive++
		if rec.arch == nil {
			unassigned++
			continue
		}
		if _, ok := adm.byID[rec.arch.id]; !ok || rec.row >= rec.arch.Len() || rec.arch.entities[rec.row] != EntityID(i) {
			return eris.Errorf("entity %d has a dangling record", i)
		}
	}
	if alive != adm.live || placed+unassigned != alive {
		return eris.Errorf("live count %d disagrees with %d alive records (%d placed, %d unassigned)",
			adm.live, alive, placed, unassigned)
	}
	for _, e := range adm.free {
		if adm.IsAlive(e) {
			return eris.Errorf("free list holds live entity %d", e)
		}
	}
	for child, parent := range adm.relations.parents {
		if !adm.IsAlive(child) || !adm.IsAlive(parent) {
			return eris.Errorf("relation %d -> %d outlived an entity", child, parent)
		}
		if !slices.Contains(adm.relations.children[parent], child) {
			return eris.Errorf("entity %d is missing from the children of %d", child, parent)
		}
	}
	return nil
}
