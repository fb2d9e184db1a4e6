// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

import (
	"slices"

	"github.com/pkg/errors"
)

// BroadcastDims returns the dimensions resulting from broadcasting all the given dimensions together.
//
// Dimensions are aligned on the trailing axes; missing leading axes are taken as 1, and an axis of
// dimension 1 is expanded to match the other operands. An axis of dimension 0 only broadcasts with
// 0 or 1.
//
// The error message names the first pair of incompatible operands as "a" and "b", following the
// tested library's convention.
func BroadcastDims(dims ...[]int) ([]int, error) {
	rank := 0
	for _, d := range dims {
		rank = max(rank, len(d))
	}
	result := make([]int, rank)
	for ii := range result {
		result[ii] = 1
	}
	for _, d := range dims {
		offset := rank - len(d)
		for axis, dim := range d {
			targetAxis := offset + axis
			current := result[targetAxis]
			switch {
			case dim == current:
			case dim == 1:
			case current == 1:
				result[targetAxis] = dim
			default:
				return nil, errors.Errorf(
					"The size of tensor a (%d) must match the size of tensor b (%d) at non-singleton dimension %d",
					current, dim, targetAxis)
			}
		}
	}
	return result, nil
}

// NeedsBroadcast returns whether any of the given dimensions differ from the broadcast result, that is,
// whether aligning them requires broadcasting.
//
// It returns false if the dimensions are not broadcastable: there is no valid broadcast to speak of.
func NeedsBroadcast(dims ...[]int) bool {
	result, err := BroadcastDims(dims...)
	if err != nil {
		return false
	}
	for _, d := range dims {
		if !slices.Equal(d, result) {
			return true
		}
	}
	return false
}

// BroadcastStrides returns the strides to read a tensor with the given dimensions and strides as if it had been
// broadcast to `target` dimensions: broadcast axes get a stride of 0.
//
// Pre-requisite: dims is broadcastable to target.
func BroadcastStrides(dims, strides, target []int) []int {
	result := make([]int, len(target))
	offset := len(target) - len(dims)
	for axis := range dims {
		if dims[axis] == target[offset+axis] {
			result[offset+axis] = strides[axis]
		}
	}
	return result
}
