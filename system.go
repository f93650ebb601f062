package stockroom

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"
	"unsafe"

	"github.com/TheBitDrifter/mask"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

type systemLayer struct {
	systems []System
}

// systemBase carries everything a typed system shares: its key, ordering
// data and the archetypes it last resolved to.
type systemBase struct {
	name     string
	ids      []ComponentID
	key      []ComponentID
	exclude  []ComponentID
	excMask  mask.Mask
	priority float32
	seq      int
	layer    Layer
	parallel int

	admin    *Admin
	excluded map[ArchetypeID]bool
	matched  []*archetype
	version  uint64
	reclaims uint64
	resolved bool
	invalid  string
}

type SystemOption func(*systemBase)

func WithName(name string) SystemOption {
	return func(b *systemBase) {
		b.name = name
	}
}

// WithPriority sets the initial priority. Higher priorities run first.
func WithPriority(p float32) SystemOption {
	return func(b *systemBase) {
		b.priority = p
	}
}

// Without skips archetypes holding any of the given components.
func Without(items ...Component) SystemOption {
	return func(b *systemBase) {
		for _, c := range items {
			b.exclude = append(b.exclude, c.ID())
		}
	}
}

// Parallel runs the system's archetype batches concurrently, at most limit
// at a time (GOMAXPROCS when limit is not positive). Callbacks of a parallel
// system must not touch the admin.
func Parallel(limit int) SystemOption {
	return func(b *systemBase) {
		if limit <= 0 {
			limit = runtime.GOMAXPROCS(0)
		}
		b.parallel = limit
	}
}

func (b *systemBase) init(self System, ids []ComponentID, opts []SystemOption) {
	b.ids = ids
	for _, opt := range opts {
		opt(b)
	}
	var ok bool
	b.key, ok = sortedKey(ids)
	if !ok {
		b.invalid = "component listed twice"
	}
	b.exclude, _ = sortedKey(b.exclude)
	b.excMask = maskOf(b.exclude)
	if maskOf(b.key).ContainsAny(b.excMask) {
		b.invalid = "component both required and excluded"
	}
	if b.name == "" {
		b.name = fmt.Sprintf("%T", self)
	}
	b.excluded = make(map[ArchetypeID]bool)
}

func (b *systemBase) Name() string            { return b.name }
func (b *systemBase) Key() []ComponentID      { return b.key }
func (b *systemBase) Excluded() []ComponentID { return b.exclude }
func (b *systemBase) Priority() float32       { return b.priority }
func (b *systemBase) Layer() Layer            { return b.layer }
func (b *systemBase) base() *systemBase       { return b }

// resolve returns the archetypes this system runs on, recomputing them only
// when the admin created or reclaimed archetypes since the last call.
func (b *systemBase) resolve() []*archetype {
	adm := b.admin
	if b.resolved && b.version == adm.version {
		return b.matched
	}
	if b.reclaims != adm.reclaims {
		clear(b.excluded)
		b.reclaims = adm.reclaims
	}
	b.matched = b.matched[:0]
	for _, arch := range adm.matching(b.key) {
		if !b.isExcluded(arch) {
			b.matched = append(b.matched, arch)
		}
	}
	b.version = adm.version
	b.resolved = true
	return b.matched
}

func (b *systemBase) isExcluded(arch *archetype) bool {
	if len(b.exclude) == 0 {
		return false
	}
	if hit, ok := b.excluded[arch.id]; ok {
		return hit
	}
	hit := !arch.mask.ContainsNone(b.excMask)
	b.excluded[arch.id] = hit
	return hit
}

// runOn runs sys over one archetype, turning a panicking callback into an
// error so the admin is never left locked.
func (b *systemBase) runOn(sys System, arch *archetype) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("system %q panicked on archetype %d: %v", b.name, arch.id, r)
		}
	}()
	sys.run(arch)
	return nil
}

func (b *systemBase) execute(sys System) error {
	matched := b.resolve()
	if b.parallel == 0 {
		for _, arch := range matched {
			if arch.Len() == 0 {
				continue
			}
			if err := b.runOn(sys, arch); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(b.parallel)
	for _, arch := range matched {
		if arch.Len() == 0 {
			continue
		}
		g.Go(func() error {
			return b.runOn(sys, arch)
		})
	}
	return g.Wait()
}

// RegisterSystem appends sys to layer and re-sorts the layer. A system can
// belong to one admin and one layer only.
func (adm *Admin) RegisterSystem(layer Layer, sys System) error {
	b := sys.base()
	if b.admin != nil {
		return SystemRegisteredError{Name: b.name}
	}
	if b.invalid != "" {
		return InvalidSystemError{Name: b.name, Reason: b.invalid}
	}
	l, ok := adm.layers[layer]
	if !ok {
		l = &systemLayer{}
		adm.layers[layer] = l
	}
	b.admin = adm
	b.layer = layer
	b.seq = adm.systemSeq
	adm.systemSeq++
	l.systems = append(l.systems, sys)
	adm.SortSystems(layer)

	adm.log.Debug().
		Str("system", b.name).
		Int("layer", int(layer)).
		Float32("priority", b.priority).
		Str("key", adm.typeString(b.key)).
		Msg("registered system")
	return nil
}

// SortSystems orders layer by descending priority, ties by registration.
func (adm *Admin) SortSystems(layer Layer) {
	l, ok := adm.layers[layer]
	if !ok {
		return
	}
	slices.SortStableFunc(l.systems, func(a, b System) int {
		if c := cmp.Compare(b.Priority(), a.Priority()); c != 0 {
			return c
		}
		return cmp.Compare(a.base().seq, b.base().seq)
	})
}

// SetSystemPriority changes sys's priority and re-sorts its layer only.
func (adm *Admin) SetSystemPriority(sys System, p float32) error {
	b := sys.base()
	if b.admin != adm {
		return InvalidSystemError{Name: b.name, Reason: "not registered with this admin"}
	}
	b.priority = p
	adm.SortSystems(b.layer)
	return nil
}

// Systems lists layer's systems in run order.
func (adm *Admin) Systems(layer Layer) []System {
	l, ok := adm.layers[layer]
	if !ok {
		return nil
	}
	return slices.Clone(l.systems)
}

// RunSystems runs every system of layer in order. Structural changes made
// by callbacks must go through the Enqueue functions; they are applied once
// the whole layer has run.
func (adm *Admin) RunSystems(layer Layer) error {
	l, ok := adm.layers[layer]
	if !ok {
		return nil
	}
	systems := slices.Clone(l.systems)

	adm.Lock()
	var first error
	for _, sys := range systems {
		if err := sys.base().execute(sys); err != nil && first == nil {
			first = err
		}
	}
	if err := adm.Unlock(); err != nil && first == nil {
		first = eris.Wrapf(err, "failed to apply changes queued by layer %d", layer)
	}
	return first
}

func columnSlice[T any](arch *archetype, id ComponentID) []T {
	c := arch.column(id)
	return unsafe.Slice((*T)(c.base), arch.Len())
}

// System1 iterates entities holding A.
type System1[A any] struct {
	systemBase
	each  func(EntityID, *A)
	batch func([]EntityID, []A)
}

func NewSystem1[A any](opts ...SystemOption) *System1[A] {
	s := &System1[A]{}
	s.init(s, []ComponentID{ComponentIDOf[A]()}, opts)
	return s
}

func (s *System1[A]) Each(fn func(EntityID, *A)) *System1[A] {
	s.each = fn
	return s
}

func (s *System1[A]) Batch(fn func([]EntityID, []A)) *System1[A] {
	s.batch = fn
	return s
}

func (s *System1[A]) run(arch *archetype) {
	entities := arch.entities
	a := columnSlice[A](arch, s.ids[0])
	if s.batch != nil {
		s.batch(entities, a)
	}
	if s.each != nil {
		for i, e := range entities {
			s.each(e, &a[i])
		}
	}
}

// System2 iterates entities holding A and B.
type System2[A, B any] struct {
	systemBase
	each  func(EntityID, *A, *B)
	batch func([]EntityID, []A, []B)
}

func NewSystem2[A, B any](opts ...SystemOption) *System2[A, B] {
	s := &System2[A, B]{}
	s.init(s, []ComponentID{ComponentIDOf[A](), ComponentIDOf[B]()}, opts)
	return s
}

func (s *System2[A, B]) Each(fn func(EntityID, *A, *B)) *System2[A, B] {
	s.each = fn
	return s
}

func (s *System2[A, B]) Batch(fn func([]EntityID, []A, []B)) *System2[A, B] {
	s.batch = fn
	return s
}

func (s *System2[A, B]) run(arch *archetype) {
	entities := arch.entities
	a := columnSlice[A](arch, s.ids[0])
	b := columnSlice[B](arch, s.ids[1])
	if s.batch != nil {
		s.batch(entities, a, b)
	}
	if s.each != nil {
		for i, e := range entities {
			s.each(e, &a[i], &b[i])
		}
	}
}

// System3 iterates entities holding A, B and C.
type System3[A, B, C any] struct {
	systemBase
	each  func(EntityID, *A, *B, *C)
	batch func([]EntityID, []A, []B, []C)
}

func NewSystem3[A, B, C any](opts ...SystemOption) *System3[A, B, C] {
	s := &System3[A, B, C]{}
	s.init(s, []ComponentID{ComponentIDOf[A](), ComponentIDOf[B](), ComponentIDOf[C]()}, opts)
	return s
}

func (s *System3[A, B, C]) Each(fn func(EntityID, *A, *B, *C)) *System3[A, B, C] {
	s.each = fn
	return s
}

func (s *System3[A, B, C]) Batch(fn func([]EntityID, []A, []B, []C)) *System3[A, B, C] {
	s.batch = fn
	return s
}

func (s *System3[A, B, C]) run(arch *archetype) {
	entities := arch.entities
	a := columnSlice[A](arch, s.ids[0])
	b := columnSlice[B](arch, s.ids[1])
	c := columnSlice[C](arch, s.ids[2])
	if s.batch != nil {
		s.batch(entities, a, b, c)
	}
	if s.each != nil {
		for i, e := range entities {
			s.each(e, &a[i], &b[i], &c[i])
		}
	}
}

// System4 iterates entities holding A, B, C and D.
type System4[A, B, C, D any] struct {
	systemBase
	each  func(EntityID, *A, *B, *C, *D)
	batch func([]EntityID, []A, []B, []C, []D)
}

func NewSystem4[A, B, C, D any](opts ...SystemOption) *System4[A, B, C, D] {
	s := &System4[A, B, C, D]{}
	s.init(s, []ComponentID{ComponentIDOf[A](), ComponentIDOf[B](), ComponentIDOf[C](), ComponentIDOf[D]()}, opts)
	return s
}

func (s *System4[A, B, C, D]) Each(fn func(EntityID, *A, *B, *C, *D)) *System4[A, B, C, D] {
	s.each = fn
	return s
}

func (s *System4[A, B, C, D]) Batch(fn func([]EntityID, []A, []B, []C, []D)) *System4[A, B, C, D] {
	s.batch = fn
	return s
}

func (s *System4[A, B, C, D]) run(arch *archetype) {
	entities := arch.entities
	a := columnSlice[A](arch, s.ids[0])
	b := columnSlice[B](arch, s.ids[1])
	c := columnSlice[C](arch, s.ids[2])
	d := columnSlice[D](arch, s.ids[3])
	if s.batch != nil {
		s.batch(entities, a, b, c, d)
	}
	if s.each != nil {
		for i, e := range entities {
			s.each(e, &a[i], &b[i], &c[i], &d[i])
		}
	}
}
