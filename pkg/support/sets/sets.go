// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package sets implement a set type as a `map[T]struct{}` but with better ergonomics.
//
// The fixture engine uses it for dtype sets, op-class sets and skip-rule filters, where
// the listing order matters: use Sorted (or SortedFunc) to get a deterministic order.
package sets

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// Set implements a Set for the key type T.
type Set[T comparable] map[T]struct{}

// Make returns an empty Set of the given type. Size is optional, and if given
// will reserve the expected size.
func Make[T comparable](size ...int) Set[T] {
	if len(size) == 0 {
		return make(Set[T])
	}
	return make(Set[T], size[0])
}

// MakeWith creates a Set[T] with the given elements inserted.
func MakeWith[T comparable](elements ...T) Set[T] {
	s := Make[T](len(elements))
	s.Insert(elements...)
	return s
}

// Has returns true if Set s has the given key. A nil set has no keys.
func (s Set[T]) Has(key T) bool {
	_, found := s[key]
	return found
}

// Insert keys into set.
func (s Set[T]) Insert(keys ...T) {
	for _, key := range keys {
		s[key] = struct{}{}
	}
}

// Remove keys from the set, if present.
func (s Set[T]) Remove(keys ...T) {
	for _, key := range keys {
		delete(s, key)
	}
}

// Clone returns a new set with the same elements.
func (s Set[T]) Clone() Set[T] {
	s2 := Make[T](len(s))
	maps.Copy(s2, s)
	return s2
}

// Sub returns `s - s2`, that is, all elements in `s` that are not in `s2`.
func (s Set[T]) Sub(s2 Set[T]) Set[T] {
	sub := Make[T]()
	for k := range s {
		if !s2.Has(k) {
			sub.Insert(k)
		}
	}
	return sub
}

// Union returns a new set with the elements of `s` and of every one of `others`.
func (s Set[T]) Union(others ...Set[T]) Set[T] {
	u := s.Clone()
	for _, other := range others {
		maps.Copy(u, other)
	}
	return u
}

// Intersect returns a new set with the elements present both in `s` and `s2`.
func (s Set[T]) Intersect(s2 Set[T]) Set[T] {
	inter := Make[T]()
	for k := range s {
		if s2.Has(k) {
			inter.Insert(k)
		}
	}
	return inter
}

// Equal returns whether s and s2 have the exact same elements.
func (s Set[T]) Equal(s2 Set[T]) bool {
	if len(s) != len(s2) {
		return false
	}
	for k := range s {
		if !s2.Has(k) {
			return false
		}
	}
	return true
}

// SortedFunc returns the elements of the set sorted with the given comparison function.
func (s Set[T]) SortedFunc(cmpFn func(a, b T) int) []T {
	keys := slices.Collect(maps.Keys(s))
	slices.SortFunc(keys, cmpFn)
	return keys
}

// Sorted returns the elements of a set of ordered keys in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	return s.SortedFunc(cmp.Compare[T])
}

// All iterates over the set elements in ascending order.
func All[T cmp.Ordered](s Set[T]) iter.Seq[T] {
	return slices.Values(Sorted(s))
}
