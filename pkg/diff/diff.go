// Package diff computes structural differences between two JSON-like
// values: nested maps, slices, and scalars as produced by
// encoding/json. The result is itself plain maps and scalars, directly
// serializable with no opaque types.
package diff

import (
	"reflect"
	"strconv"
)

// Change records a leaf-level value replacement, or a nested sub-diff
// when both sides are containers of the same kind.
type Change struct {
	Old    any   `json:"old,omitempty"`
	New    any   `json:"new,omitempty"`
	Nested *Node `json:"nested,omitempty"`
}

// Node is the difference between two objects (or two arrays, with
// indices as keys). Keys present only on one side land in Added or
// Removed; keys present on both with differing values land in Changed.
type Node struct {
	Added   map[string]any     `json:"added,omitempty"`
	Removed map[string]any     `json:"removed,omitempty"`
	Changed map[string]*Change `json:"changed,omitempty"`
}

// Empty reports whether the node records no differences.
func (n *Node) Empty() bool {
	return len(n.Added) == 0 && len(n.Removed) == 0 && len(n.Changed) == 0
}

// Compare diffs two decoded JSON objects.
func Compare(a, b map[string]any) *Node {
	n := &Node{}
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			n.remove(k, va)
			continue
		}
		if c := compareValues(va, vb); c != nil {
			n.change(k, c)
		}
	}
	for k, vb := range b {
		if _, ok := a[k]; !ok {
			n.add(k, vb)
		}
	}
	return n
}

// compareValues returns nil when the values are equal, a nested Change
// when both sides are containers of the same kind, and an old/new Change
// otherwise.
func compareValues(a, b any) *Change {
	switch av := a.(type) {
	case map[string]any:
		if bv, ok := b.(map[string]any); ok {
			if sub := Compare(av, bv); !sub.Empty() {
				return &Change{Nested: sub}
			}
			return nil
		}
	case []any:
		if bv, ok := b.([]any); ok {
			if sub := compareSlices(av, bv); !sub.Empty() {
				return &Change{Nested: sub}
			}
			return nil
		}
	}
	if reflect.DeepEqual(a, b) {
		return nil
	}
	return &Change{Old: a, New: b}
}

// compareSlices diffs two arrays element-wise, keying by index. Length
// differences surface as added or removed indices.
func compareSlices(a, b []any) *Node {
	n := &Node{}
	common := len(a)
	if len(b) < common {
		common = len(b)
	}
	for i := 0; i < common; i++ {
		if c := compareValues(a[i], b[i]); c != nil {
			n.change(strconv.Itoa(i), c)
		}
	}
	for i := common; i < len(a); i++ {
		n.remove(strconv.Itoa(i), a[i])
	}
	for i := common; i < len(b); i++ {
		n.add(strconv.Itoa(i), b[i])
	}
	return n
}

func (n *Node) add(k string, v any) {
	if n.Added == nil {
		n.Added = make(map[string]any)
	}
	n.Added[k] = v
}

func (n *Node) remove(k string, v any) {
	if n.Removed == nil {
		n.Removed = make(map[string]any)
	}
	n.Removed[k] = v
}

func (n *Node) change(k string, c *Change) {
	if n.Changed == nil {
		n.Changed = make(map[string]*Change)
	}
	n.Changed[k] = c
}
