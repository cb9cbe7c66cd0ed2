package docstore

import (
	"fmt"
	"strconv"
)

// Tree is an in-memory JSON-shaped document tree. It is not safe for
// concurrent use.
type Tree struct {
	root any
}

func NewTree() *Tree {
	return &Tree{}
}

// NewTreeFrom wraps an existing JSON-shaped value. The tree takes ownership.
func NewTreeFrom(root any) *Tree {
	return &Tree{root: root}
}

// Get returns a copy of the node at segs.
func (t *Tree) Get(segs []string) any {
	return clone(lookup(t.root, segs))
}

// Set replaces the node at segs. Intermediate objects are created as needed
// and empty objects are pruned.
func (t *Tree) Set(segs []string, v any) error {
	root, err := setIn(t.root, segs, clone(v))
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// Update applies each field as a Set relative to segs.
func (t *Tree) Update(segs []string, fields map[string]any) error {
	for k, v := range fields {
		rel, err := SplitPath(k)
		if err != nil {
			return err
		}
		if len(rel) == 0 {
			return fmt.Errorf("%w: empty update key", ErrInvalidPath)
		}
		if err := t.Set(append(append([]string{}, segs...), rel...), v); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) Remove(segs []string) error {
	return t.Set(segs, nil)
}

// Snapshot returns a deep copy of the tree.
func (t *Tree) Snapshot() *Tree {
	return &Tree{root: clone(t.root)}
}

func lookup(node any, segs []string) any {
	for _, s := range segs {
		switch n := node.(type) {
		case map[string]any:
			node = n[s]
		case []any:
			i, err := strconv.Atoi(s)
			if err != nil || i < 0 || i >= len(n) {
				return nil
			}
			node = n[i]
		default:
			return nil
		}
	}
	return node
}

func setIn(node any, segs []string, v any) (any, error) {
	if len(segs) == 0 {
		return v, nil
	}
	seg, rest := segs[0], segs[1:]

	if arr, ok := node.([]any); ok {
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i > len(arr) {
			return nil, fmt.Errorf("%w: index %q out of range", ErrInvalidPath, seg)
		}
		var child any
		if i < len(arr) {
			child = arr[i]
		}
		nc, err := setIn(child, rest, v)
		if err != nil {
			return nil, err
		}
		if i == len(arr) {
			if nc == nil {
				return arr, nil
			}
			return append(arr, nc), nil
		}
		arr[i] = nc
		return arr, nil
	}

	m, ok := node.(map[string]any)
	if !ok {
		if v == nil {
			return node, nil
		}
		m = map[string]any{}
	}
	nc, err := setIn(m[seg], rest, v)
	if err != nil {
		return nil, err
	}
	if nc == nil {
		delete(m, seg)
	} else {
		m[seg] = nc
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}

func clone(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, c := range n {
			out[k] = clone(c)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, c := range n {
			out[i] = clone(c)
		}
		return out
	}
	return v
}

// Overlaps reports whether a write at a touches a subscription at b.
func Overlaps(a, b []string) bool {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
