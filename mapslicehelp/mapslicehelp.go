// Package mapslicehelp takes snapshots of ordered and sorted maps, so callers can mutate a map
// while iterating over what it held at the time of the snapshot.
package mapslicehelp

import (
	"github.com/umpc/go-sortedmap"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// OrderedMapKeys returns the keys of m in insertion order.
func OrderedMapKeys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	l := make([]K, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Key
		i++
	}
	return l
}

// OrderedMapValues returns the values of m in insertion order.
func OrderedMapValues[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []V {
	l := make([]V, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Value
		i++
	}
	return l
}

// CountFunc counts the values of m for which f is true.
func CountFunc[K comparable, V any](m *orderedmap.OrderedMap[K, V], f func(V) bool) int {
	n := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		if f(p.Value) {
			n++
		}
	}
	return n
}

// AnyFunc reports whether f is true for at least one value of m.
func AnyFunc[K comparable, V any](m *orderedmap.OrderedMap[K, V], f func(V) bool) bool {
	for p := m.Oldest(); p != nil; p = p.Next() {
		if f(p.Value) {
			return true
		}
	}
	return false
}

// SortedMapKeys returns the keys of m in sort order. All keys must be of type K.
func SortedMapKeys[K any](m *sortedmap.SortedMap) []K {
	keys := m.Keys()
	l := make([]K, len(keys))
	for i, k := range keys {
		l[i] = k.(K)
	}
	return l
}

// SortedMapValues returns the values of m in sort order. All values must be of type V.
func SortedMapValues[V any](m *sortedmap.SortedMap) []V {
	keys := m.Keys()
	mmap := m.Map()
	l := make([]V, len(keys))
	for i, k := range keys {
		l[i] = mmap[k].(V)
	}
	return l
}
