package stockroom

import (
	"github.com/TheBitDrifter/mask"
)

type Operation int

const (
	OpAnd Operation = iota
	OpOr
	OpNot
)

type compositeNode struct {
	op       Operation
	children []QueryNode
	mask     mask.Mask
}

type leafNode struct {
	mask mask.Mask
}

type query struct {
	root QueryNode
}

func newQuery() Query {
	return &query{}
}

func componentMask(components []Component) mask.Mask {
	var m mask.Mask
	for _, c := range components {
		m.Mark(uint32(c.ID()))
	}
	return m
}

func newCompositeNode(op Operation, components []Component, children []QueryNode) *compositeNode {
	return &compositeNode{
		op:       op,
		children: children,
		mask:     componentMask(components),
	}
}

func newLeafNode(components []Component) *leafNode {
	return &leafNode{mask: componentMask(components)}
}

func (n *compositeNode) Evaluate(archetype Archetype) bool {
	archeMask := archetype.Mask()

	switch n.op {
	case OpAnd:
		if !archeMask.ContainsAll(n.mask) {
			return false
		}
		for _, child := range n.children {
			if !child.Evaluate(archetype) {
				return false
			}
		}
		return true

	case OpOr:
		if archeMask.ContainsAny(n.mask) {
			return true
		}
		for _, child := range n.children {
			if child.Evaluate(archetype) {
				return true
			}
		}
		return false

	case OpNot:
		for _, child := range n.children {
			if child.Evaluate(archetype) {
				return false
			}
		}
		return archeMask.ContainsNone(n.mask)
	}
	return false
}

func (n *leafNode) Evaluate(archetype Archetype) bool {
	return archetype.Mask().ContainsAll(n.mask)
}

func (q *query) And(items ...interface{}) QueryNode {
	return q.node(OpAnd, items)
}

func (q *query) Or(items ...interface{}) QueryNode {
	return q.node(OpOr, items)
}

func (q *query) Not(items ...interface{}) QueryNode {
	return q.node(OpNot, items)
}

// node builds a composite; the first node a query builds becomes its root.
func (q *query) node(op Operation, items []interface{}) QueryNode {
	components, children := q.processItems(items...)
	node := newCompositeNode(op, components, children)
	if q.root == nil {
		q.root = node
	}
	return node
}

func (q *query) processItems(items ...interface{}) ([]Component, []QueryNode) {
	components := make([]Component, 0)
	children := make([]QueryNode, 0)

	for _, item := range items {
		switch v := item.(type) {
		case Component:
			components = append(components, v)
		case []Component:
			components = append(components, v...)
		case []ComponentID:
			for _, id := range v {
				components = append(components, id)
			}
		case QueryNode:
			children = append(children, v)
		}
	}

	return components, children
}

func (q *query) Evaluate(archetype Archetype) bool {
	if q.root == nil {
		return false
	}
	return q.root.Evaluate(archetype)
}
