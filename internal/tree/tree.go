// Package tree provides the ordered nested result mapping produced by the aggregator
package tree

import (
	"fmt"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Tree is an insertion-ordered mapping from string keys to values or subtrees.
// Supported leaf values are string, bool, int, float64, complex128, []float64,
// []complex128, []string, [][]float64 and [][]complex128.
type Tree struct {
	keys   []string
	values map[string]any
}

// ConflictError reports an InsertOrCheck against a key that already holds a different value
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("key %q already holds a different value", e.Key)
}

// New returns an empty tree
func New() *Tree {
	return &Tree{values: make(map[string]any)}
}

// Set stores v under key, keeping the key's original position if it already exists
func (t *Tree) Set(key string, v any) {
	if _, ok := t.values[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
}

// Get returns the value stored under key
func (t *Tree) Get(key string) (any, bool) {
	v, ok := t.values[key]
	return v, ok
}

// Child returns the subtree under key, creating it when absent.
// A non-tree value stored under key is replaced.
func (t *Tree) Child(key string) *Tree {
	if v, ok := t.values[key]; ok {
		if sub, ok := v.(*Tree); ok {
			return sub
		}
	}
	sub := New()
	t.Set(key, sub)
	return sub
}

// Lookup follows a slash separated path of subtrees, e.g. "ASD/H1:X"
func (t *Tree) Lookup(path string) (any, bool) {
	parts := strings.Split(path, "/")
	cur := t
	for i, p := range parts {
		v, ok := cur.values[p]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		sub, ok := v.(*Tree)
		if !ok {
			return nil, false
		}
		cur = sub
	}
	return nil, false
}

// InsertOrCheck stores v under key if the key is absent. If the key exists the
// stored value is kept; a *ConflictError is returned when it differs from v.
func (t *Tree) InsertOrCheck(key string, v any) error {
	prev, ok := t.values[key]
	if !ok {
		t.Set(key, v)
		return nil
	}
	if !Equal(prev, v) {
		return &ConflictError{Key: key}
	}
	return nil
}

// Keys returns the keys in insertion order
func (t *Tree) Keys() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Len returns the number of direct entries
func (t *Tree) Len() int {
	return len(t.keys)
}

// Walk visits every leaf depth-first in insertion order
func (t *Tree) Walk(fn func(path []string, v any) error) error {
	return t.walk(nil, fn)
}

func (t *Tree) walk(prefix []string, fn func(path []string, v any) error) error {
	for _, k := range t.keys {
		path := append(append([]string(nil), prefix...), k)
		v := t.values[k]
		if sub, ok := v.(*Tree); ok {
			if err := sub.walk(path, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(path, v); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether two leaf values hold the same data. NaN compares
// equal to NaN so that a value always equals itself.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case []float64:
		y, ok := b.([]float64)
		return ok && floats.Same(x, y)
	case []complex128:
		y, ok := b.([]complex128)
		return ok && sameComplex(x, y)
	case [][]float64:
		y, ok := b.([][]float64)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !floats.Same(x[i], y[i]) {
				return false
			}
		}
		return true
	case [][]complex128:
		y, ok := b.([][]complex128)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !sameComplex(x[i], y[i]) {
				return false
			}
		}
		return true
	case []string:
		y, ok := b.([]string)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case float64:
		y, ok := b.(float64)
		return ok && (x == y || (x != x && y != y))
	case complex128:
		y, ok := b.(complex128)
		return ok && sameComplex([]complex128{x}, []complex128{y})
	case *Tree:
		y, ok := b.(*Tree)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, k := range x.keys {
			yv, ok := y.values[k]
			if !ok || !Equal(x.values[k], yv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func sameComplex(a, b []complex128) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == b[i] {
			continue
		}
		if cmplx.IsNaN(a[i]) && cmplx.IsNaN(b[i]) {
			continue
		}
		return false
	}
	return true
}
