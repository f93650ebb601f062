package bench

import (
	"testing"

	"github.com/TheBitDrifter/stockroom"
)

const (
	nPos    = 9000
	nPosVel = 1000
)

type Position struct {
	X float64
	Y float64
}

type Velocity struct {
	X float64
	Y float64
}

func newAdmin(b *testing.B) (*stockroom.Admin, stockroom.AccessibleComponent[Position], stockroom.AccessibleComponent[Velocity]) {
	b.Helper()
	adm := stockroom.Factory.NewAdmin(stockroom.WithColumnCapacity(1024))
	stockroom.RegisterComponent[Position](adm)
	stockroom.RegisterComponent[Velocity](adm)
	return adm, stockroom.FactoryNewComponent[Position](), stockroom.FactoryNewComponent[Velocity]()
}

func BenchmarkIterStockroomCursor(b *testing.B) {
	b.StopTimer()
	adm, position, velocity := newAdmin(b)
	adm.NewEntities(nPos, position)
	adm.NewEntities(nPosVel, position, velocity)

	query := stockroom.Factory.NewQuery()
	cursor := stockroom.Factory.NewCursor(query.And(velocity, position), adm)
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		for cursor.Next() {
			pos := position.GetFromCursor(cursor)
			vel := velocity.GetFromCursor(cursor)
			pos.X += vel.X
			pos.Y += vel.Y
		}
	}
}

func BenchmarkIterStockroomEach(b *testing.B) {
	b.StopTimer()
	adm, position, velocity := newAdmin(b)
	adm.NewEntities(nPos, position)
	adm.NewEntities(nPosVel, position, velocity)

	move := stockroom.NewSystem2[Position, Velocity]().
		Each(func(_ stockroom.EntityID, pos *Position, vel *Velocity) {
			pos.X += vel.X
			pos.Y += vel.Y
		})
	if err := adm.RegisterSystem(0, move); err != nil {
		b.Fatal(err)
	}
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		adm.RunSystems(0)
	}
}

func BenchmarkIterStockroomBatch(b *testing.B) {
	b.StopTimer()
	adm, position, velocity := newAdmin(b)
	adm.NewEntities(nPos, position)
	adm.NewEntities(nPosVel, position, velocity)

	move := stockroom.NewSystem2[Position, Velocity]().
		Batch(func(_ []stockroom.EntityID, pos []Position, vel []Velocity) {
			for i := range pos {
				pos[i].X += vel[i].X
				pos[i].Y += vel[i].Y
			}
		})
	if err := adm.RegisterSystem(0, move); err != nil {
		b.Fatal(err)
	}
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		adm.RunSystems(0)
	}
}

func BenchmarkAddRemoveStockroom(b *testing.B) {
	b.StopTimer()
	adm, position, _ := newAdmin(b)
	entities, err := adm.NewEntities(nPos, position)
	if err != nil {
		b.Fatal(err)
	}
	b.StartTimer()

	for i := 0; i < b.N; i++ {
		for _, e := range entities {
			stockroom.AddComponent(adm, e, Velocity{})
		}
		for _, e := range entities {
			stockroom.RemoveComponent[Velocity](adm, e)
		}
	}
}
