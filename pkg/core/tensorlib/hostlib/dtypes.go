// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// quantize converts value to the nearest value representable by dtype, following the conversion
// semantics of a cast: integers truncate towards zero and wrap around, bool is value != 0.
func quantize(dtype dtypes.DType, value float64) float64 {
	switch dtype {
	case dtypes.Bool:
		if value != 0 {
			return 1
		}
		return 0
	case dtypes.Int8:
		return wrapInt[int8](value)
	case dtypes.Int16:
		return wrapInt[int16](value)
	case dtypes.Int32:
		return wrapInt[int32](value)
	case dtypes.Int64:
		return wrapInt[int64](value)
	case dtypes.Uint8:
		return wrapInt[uint8](value)
	case dtypes.Uint16:
		return wrapInt[uint16](value)
	case dtypes.Uint32:
		return wrapInt[uint32](value)
	case dtypes.Uint64:
		return wrapInt[uint64](value)
	case dtypes.Float16:
		return float64(float16.Fromfloat32(float32(value)).Float32())
	case dtypes.BFloat16:
		return float64(bfloat16.FromFloat32(float32(value)).Float32())
	case dtypes.Float32:
		return float64(float32(value))
	}
	return value
}

// wrapInt truncates value towards zero and converts it to T with wrap around. NaN and infinities convert to 0.
func wrapInt[T constraints.Integer](value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return float64(T(int64(math.Trunc(value))))
}

// quantizeAll quantizes the values in-place.
func quantizeAll(dtype dtypes.DType, values []float64) {
	if dtype == dtypes.Float64 {
		return
	}
	for ii, v := range values {
		values[ii] = quantize(dtype, v)
	}
}
