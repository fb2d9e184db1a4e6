// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import "iter"

// Iter iterates over all possible indices of the given shape, in row-major order.
// To avoid allocating the slice of indices, the yielded indices is owned by the Iter() method:
// don't change it inside the loop.
//
// A scalar yields one empty index, an empty shape yields nothing.
func (s Shape) Iter() iter.Seq[[]int] {
	return IterDims(s.Dimensions)
}

// IterDims is like Shape.Iter, but takes the dimensions directly.
func IterDims(dimensions []int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		rank := len(dimensions)
		for _, dimSize := range dimensions {
			if dimSize <= 0 {
				return
			}
		}
		currentIndices := make([]int, rank)
		for {
			if !yield(currentIndices) {
				return
			}
			axis := rank - 1
			for ; axis >= 0; axis-- {
				currentIndices[axis]++
				if currentIndices[axis] < dimensions[axis] {
					break
				}
				currentIndices[axis] = 0
			}
			if axis < 0 {
				return
			}
		}
	}
}

// FlatIndex returns the position of the element at `indices` for a layout with the given strides and offset.
func FlatIndex(indices, strides []int, offset int) int {
	for axis, idx := range indices {
		offset += idx * strides[axis]
	}
	return offset
}
