// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xslices

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAt(t *testing.T) {
	s := []int{1, 2, 3}
	assert.Equal(t, 3, At(s, -1))
	assert.Equal(t, 1, At(s, 0))
	assert.Equal(t, 3, Last(s))
}

func TestProduct(t *testing.T) {
	var got [][]int
	for indices := range Product(2, 3) {
		got = append(got, slices.Clone(indices))
	}
	require.Equal(t, [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}, got)

	count := 0
	for range Product(3, 0, 2) {
		count++
	}
	assert.Zero(t, count)

	count = 0
	for indices := range Product() {
		assert.Empty(t, indices)
		count++
	}
	assert.Equal(t, 1, count)

	// Early stop.
	count = 0
	for range Product(10, 10) {
		count++
		if count == 5 {
			break
		}
	}
	assert.Equal(t, 5, count)
}

func TestPairsAndHelpers(t *testing.T) {
	var got []string
	for a, b := range Pairs([]string{"x", "y"}, []int{1, 2}) {
		got = append(got, a+string(rune('0'+b)))
	}
	assert.Equal(t, []string{"x1", "x2", "y1", "y2"}, got)
	assert.Equal(t, []float64{3, 4}, Iota(3.0, 2))
	assert.Equal(t, 24, Prod([]int{2, 3, 4}))
	assert.Equal(t, 1, Prod([]int{}))
	assert.Equal(t, []int{2, 4}, Filter([]int{1, 2, 3, 4}, func(e int) bool { return e%2 == 0 }))
	assert.Equal(t, 2, Count([]float64{0, 1, 0}, 0))
	assert.Equal(t, []string{"1", "2"}, Map([]int{1, 2}, func(e int) string { return string(rune('0' + e)) }))
}
