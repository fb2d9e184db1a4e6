// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package references

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"gonum.org/v1/gonum/floats"
)

// Histc is the reference of histc(input, bins=100, min=0, max=0): the counts of the values in bins equal-width
// bins over [min, max], the last bin including max. If min == max the range of the data is used, and an empty
// range is widened by 1 on each side.
func Histc(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	bins, err := intParam(sample, 0, "bins", 100)
	if err != nil {
		return nil, err
	}
	low, err := floatParam(sample, 1, "min", 0)
	if err != nil {
		return nil, err
	}
	high, err := floatParam(sample, 2, "max", 0)
	if err != nil {
		return nil, err
	}
	if bins <= 0 || low > high {
		return nil, noReference("histc with bins=%d over [%g, %g]", bins, low, high)
	}
	if low == high && x.Size() > 0 {
		if floats.HasNaN(x.Data) {
			return nil, noReference("histc over the range of values with NaN")
		}
		low, high = floats.Min(x.Data), floats.Max(x.Data)
	}
	if low == high {
		low, high = low-1, high+1
	}
	if math.IsNaN(low) || math.IsNaN(high) || math.IsInf(low, 0) || math.IsInf(high, 0) {
		return nil, noReference("histc over [%g, %g]", low, high)
	}
	counts := make([]float64, bins)
	for _, v := range x.Data {
		if math.IsNaN(v) || v < low || v > high {
			continue
		}
		bin := min(int((v-low)*float64(bins)/(high-low)), bins-1)
		counts[bin]++
	}
	castAll(x.DType, counts)
	return results(NewArray(x.DType, counts, bins))
}

// LikeKind selects the factory reproduced by Like.
type LikeKind int

const (
	ZerosLike LikeKind = iota
	OnesLike
	FullLike
)

// Like returns the reference of zeros_like(input, dtype=None), ones_like(input, dtype=None) or
// full_like(input, fill_value, dtype=None).
func Like(kind LikeKind) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		x, err := input(sample)
		if err != nil {
			return nil, err
		}
		var fill float64
		dtypePos := 0
		switch kind {
		case OnesLike:
			fill = 1
		case FullLike:
			if _, found := param(sample, 0, "fill_value"); !found {
				return nil, noReference("full_like without fill_value")
			}
			if fill, err = floatParam(sample, 0, "fill_value", 0); err != nil {
				return nil, err
			}
			dtypePos = 1
		}
		dtype := x.DType
		if v, found := param(sample, dtypePos, "dtype"); found {
			var ok bool
			if dtype, ok = v.(dtypes.DType); !ok {
				return nil, noReference("argument \"dtype\" of type %T", v)
			}
		}
		return results(NewArray(dtype, filled(x.Size(), CastValue(dtype, fill)), x.Dims...))
	}
}
