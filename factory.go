package stockroom

type factory struct{}

var Factory factory

// NewAdmin creates an empty admin. Components must be registered with
// RegisterComponent before entities can hold them.
func (f factory) NewAdmin(opts ...Option) *Admin {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newAdmin(cfg)
}

func (f factory) NewQuery() Query {
	return newQuery()
}

// NewKey returns a node matching archetypes that hold every component given.
func (f factory) NewKey(components ...Component) QueryNode {
	return newLeafNode(components)
}

func (f factory) NewCursor(query QueryNode, adm *Admin) *Cursor {
	return newCursor(query, adm)
}

// FactoryNewComponent returns the typed handle for T, assigning T its
// process-wide ID if needed. It does not register T with any admin.
func FactoryNewComponent[T any]() AccessibleComponent[T] {
	return AccessibleComponent[T]{id: ComponentIDOf[T]()}
}

func FactoryNewCache[T any](cap int) Cache[T] {
	return &SimpleCache[T]{
		itemIndices: make(map[string]int),
		maxCapacity: cap,
	}
}
