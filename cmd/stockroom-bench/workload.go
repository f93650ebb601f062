package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/TheBitDrifter/stockroom"
)

type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

type Health struct {
	Current, Max int
}

const updateLayer stockroom.Layer = 0

type report struct {
	populate  time.Duration
	ticks     time.Duration
	churn     time.Duration
	tickCount int
	entities  int
	reaped    int
}

func (r report) log(logger zerolog.Logger) {
	perTick := time.Duration(0)
	if r.tickCount > 0 {
		perTick = r.ticks / time.Duration(r.tickCount)
	}
	logger.Info().
		Int("entities", r.entities).
		Int("reaped", r.reaped).
		Dur("populate", r.populate).
		Dur("ticks", r.ticks).
		Dur("per_tick", perTick).
		Dur("churn", r.churn).
		Msg("workload finished")
}

// run builds an admin holding n entities spread over three archetypes,
// ticks its update layer, then duplicates and removes a slice of entities.
func run(n, ticks int, logger zerolog.Logger) (report, error) {
	var rep report
	adm := stockroom.Factory.NewAdmin(
		stockroom.WithEntityCapacity(n),
		stockroom.WithLogger(logger),
	)
	position := stockroom.FactoryNewComponent[Position]()
	velocity := stockroom.FactoryNewComponent[Velocity]()
	health := stockroom.FactoryNewComponent[Health]()
	stockroom.RegisterComponent[Position](adm)
	stockroom.RegisterComponent[Velocity](adm)
	stockroom.RegisterComponent[Health](adm)

	start := time.Now()
	if _, err := adm.NewEntities(n/2, position, velocity); err != nil {
		return rep, err
	}
	if _, err := adm.NewEntities(n/4, position, velocity, health); err != nil {
		return rep, err
	}
	if _, err := adm.NewEntities(n-n/2-n/4, position); err != nil {
		return rep, err
	}
	rep.populate = time.Since(start)

	move := stockroom.NewSystem2[Position, Velocity](stockroom.WithName("move"), stockroom.WithPriority(1), stockroom.Parallel(0)).
		Batch(func(_ []stockroom.EntityID, pos []Position, vel []Velocity) {
			for i := range pos {
				pos[i].X += vel[i].X
				pos[i].Y += vel[i].Y
			}
		})
	decay := stockroom.NewSystem1[Health](stockroom.WithName("decay")).
		Each(func(e stockroom.EntityID, h *Health) {
			h.Current--
			if h.Current < -h.Max {
				_ = stockroom.EnqueueRemoveComponent[Health](adm, e)
			}
		})
	if err := adm.RegisterSystem(updateLayer, move); err != nil {
		return rep, err
	}
	if err := adm.RegisterSystem(updateLayer, decay); err != nil {
		return rep, err
	}

	start = time.Now()
	for i := 0; i < ticks; i++ {
		if err := adm.RunSystems(updateLayer); err != nil {
			return rep, eris.Wrapf(err, "tick %d", i)
		}
	}
	rep.ticks = time.Since(start)
	rep.tickCount = ticks

	start = time.Now()
	query := stockroom.Factory.NewQuery()
	cursor := stockroom.Factory.NewCursor(query.And(position, query.Not(velocity)), adm)
	var still []stockroom.EntityID
	for _, e := range cursor.Entities() {
		still = append(still, e)
	}
	for i, e := range still {
		if i%2 == 0 {
			if _, err := adm.Duplicate(e); err != nil {
				return rep, err
			}
			continue
		}
		if err := adm.RemoveEntity(e); err != nil {
			return rep, err
		}
		rep.reaped++
	}
	if err := adm.Shrink(true); err != nil {
		return rep, err
	}
	rep.churn = time.Since(start)
	rep.entities = adm.EntityCount()

	if err := adm.Validate(); err != nil {
		return rep, eris.Wrap(err, "admin inconsistent after workload")
	}
	adm.LogState(zerolog.DebugLevel)
	return rep, nil
}
