package stockroom

import (
	"slices"

	"github.com/rs/zerolog"
)

func (adm *Admin) loadComponentsToEvent(event *zerolog.Event) *zerolog.Event {
	ids := make([]ComponentID, 0, len(adm.descriptors))
	for id := range adm.descriptors {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	arr := zerolog.Arr()
	for _, id := range ids {
		arr = arr.Dict(zerolog.Dict().
			Int("component_id", int(id)).
			Str("component_name", ComponentName(id)).
			Uint64("size", uint64(adm.descriptors[id].Size())))
	}
	return event.Int("total_components", len(ids)).Array("components", arr)
}

func (adm *Admin) loadArchetypesToEvent(event *zerolog.Event) *zerolog.Event {
	arr := zerolog.Arr()
	for _, arch := range adm.archetypes {
		capacity := 0
		if len(arch.columns) > 0 {
			capacity = arch.columns[0].cap
		}
		arr = arr.Dict(zerolog.Dict().
			Uint64("archetype_id", uint64(arch.id)).
			Str("components", adm.typeString(arch.typ)).
			Int("entities", arch.Len()).
			Int("capacity", capacity).
			Int("edges", len(arch.edges)))
	}
	return event.Int("total_archetypes", len(adm.archetypes)).Array("archetypes", arr)
}

func (adm *Admin) loadSystemsToEvent(event *zerolog.Event) *zerolog.Event {
	layers := make([]Layer, 0, len(adm.layers))
	for layer := range adm.layers {
		layers = append(layers, layer)
	}
	slices.Sort(layers)

	total := 0
	arr := zerolog.Arr()
	for _, layer := range layers {
		for _, sys := range adm.layers[layer].systems {
			total++
			arr = arr.Dict(zerolog.Dict().
				Str("name", sys.Name()).
				Int("layer", int(layer)).
				Float32("priority", sys.Priority()))
		}
	}
	return event.Int("total_systems", total).Array("systems", arr)
}

// LogState logs the admin's components, archetypes and systems as one event.
func (adm *Admin) LogState(level zerolog.Level) {
	event := adm.log.WithLevel(level)
	event = event.Int("live_entities", adm.live)
	event = adm.loadComponentsToEvent(event)
	event = adm.loadArchetypesToEvent(event)
	event = adm.loadSystemsToEvent(event)
	event.Send()
}

// LogEntity logs the archetype and components e currently holds.
func (adm *Admin) LogEntity(level zerolog.Level, e EntityID) {
	rec, err := adm.record(e)
	if err != nil {
		adm.log.Err(err).Msg("failed to log entity")
		return
	}
	event := adm.log.WithLevel(level).Uint32("entity_id", uint32(e))
	if rec.arch == nil {
		event.Bool("unassigned", true).Send()
		return
	}
	event.
		Uint64("archetype_id", uint64(rec.arch.id)).
		Int("row", rec.row).
		Str("components", adm.typeString(rec.arch.typ)).
		Send()
}
