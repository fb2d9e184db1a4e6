// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xslices provide missing functionality to the slices package.
//
// Most of the helpers here exist to enumerate combinations of test parameters: see
// Product, which iterates over the Cartesian product of independent axes in a fixed,
// documented order.
package xslices

import (
	"iter"

	"golang.org/x/exp/constraints"
)

// At takes an element at the given `index`, where `index` can be negative, in which case it takes from the end
// of the slice.
func At[T any](slice []T, index int) T {
	if index < 0 {
		index = len(slice) + index
	}
	return slice[index]
}

// Last returns the last element of a slice.
func Last[T any](slice []T) T {
	return At(slice, -1)
}

// Iota returns a slice of incremental int values, starting with start and of length len.
// Eg: Iota(3.0, 2) -> []float64{3.0, 4.0}
func Iota[T constraints.Integer | constraints.Float](start T, len int) (slice []T) {
	slice = make([]T, len)
	for ii := range slice {
		slice[ii] = start + T(ii)
	}
	return
}

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// Filter returns a new slice with the elements of `in` for which `keep` returns true, in the same order.
func Filter[T any](in []T, keep func(e T) bool) (out []T) {
	for _, e := range in {
		if keep(e) {
			out = append(out, e)
		}
	}
	return
}

// Prod returns the product of all the elements. The product of an empty slice is 1.
func Prod[T constraints.Integer | constraints.Float](values []T) T {
	p := T(1)
	for _, v := range values {
		p *= v
	}
	return p
}

// Product iterates over the Cartesian product of the ranges `[0, sizes[i])`.
//
// The yielded slice holds one index per axis, and the last axis varies fastest (row-major order). The slice
// is reused between iterations, clone it if it has to be kept.
// If any size is 0 nothing is yielded; if no sizes are given, it yields exactly once an empty slice.
func Product(sizes ...int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		for _, size := range sizes {
			if size <= 0 {
				return
			}
		}
		indices := make([]int, len(sizes))
		for {
			if !yield(indices) {
				return
			}
			axis := len(sizes) - 1
			for ; axis >= 0; axis-- {
				indices[axis]++
				if indices[axis] < sizes[axis] {
					break
				}
				indices[axis] = 0
			}
			if axis < 0 {
				return
			}
		}
	}
}

// Pairs iterates over all pairs of elements of `a` and `b`, with `b` varying fastest.
func Pairs[A, B any](a []A, b []B) iter.Seq2[A, B] {
	return func(yield func(A, B) bool) {
		for _, ea := range a {
			for _, eb := range b {
				if !yield(ea, eb) {
					return
				}
			}
		}
	}
}

// Count returns the number of elements of slice equal to value.
func Count[T comparable](slice []T, value T) (count int) {
	for _, e := range slice {
		if e == value {
			count++
		}
	}
	return
}
