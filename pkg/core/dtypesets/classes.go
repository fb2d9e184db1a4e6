// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypesets

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
)

// Category of a dtype, ordered by "promotion strength": a higher category wins in mixed-category promotion.
type Category int

const (
	CategoryInvalid Category = iota
	CategoryBool
	CategoryInteger
	CategoryFloat
)

// CategoryOf returns the category of the dtype.
func CategoryOf(dtype dtypes.DType) Category {
	switch {
	case dtype == dtypes.Bool:
		return CategoryBool
	case IsIntegral(dtype):
		return CategoryInteger
	case IsFloating(dtype):
		return CategoryFloat
	}
	return CategoryInvalid
}

// IsFloating returns whether dtype is one of the floating point types, including the 16 bits ones.
func IsFloating(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Float16, dtypes.BFloat16, dtypes.Float32, dtypes.Float64:
		return true
	}
	return false
}

// IsIntegral returns whether dtype is a signed or unsigned integer. Bool is not integral.
func IsIntegral(dtype dtypes.DType) bool {
	return IsSigned(dtype) || IsUnsigned(dtype)
}

// IsSigned returns whether dtype is a signed integer.
func IsSigned(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64:
		return true
	}
	return false
}

// IsUnsigned returns whether dtype is an unsigned integer.
func IsUnsigned(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64:
		return true
	}
	return false
}

// SupportsGrad returns whether tensors of the dtype can track gradients: only floating point ones.
func SupportsGrad(dtype dtypes.DType) bool { return IsFloating(dtype) }

// Bits returns the number of bits of the dtype's element, or 0 if unknown.
func Bits(dtype dtypes.DType) int {
	switch dtype {
	case dtypes.Bool, dtypes.Int8, dtypes.Uint8:
		return 8
	case dtypes.Int16, dtypes.Uint16, dtypes.Float16, dtypes.BFloat16:
		return 16
	case dtypes.Int32, dtypes.Uint32, dtypes.Float32:
		return 32
	case dtypes.Int64, dtypes.Uint64, dtypes.Float64:
		return 64
	}
	return 0
}

// Range returns the lowest and highest finite values representable by dtype, as float64.
// For Int64 and Uint64 the limits are approximated by the nearest float64.
func Range(dtype dtypes.DType) (low, high float64) {
	switch dtype {
	case dtypes.Bool:
		return 0, 1
	case dtypes.Int8:
		return math.MinInt8, math.MaxInt8
	case dtypes.Int16:
		return math.MinInt16, math.MaxInt16
	case dtypes.Int32:
		return math.MinInt32, math.MaxInt32
	case dtypes.Int64:
		return math.MinInt64, math.MaxInt64
	case dtypes.Uint8:
		return 0, math.MaxUint8
	case dtypes.Uint16:
		return 0, math.MaxUint16
	case dtypes.Uint32:
		return 0, math.MaxUint32
	case dtypes.Uint64:
		return 0, math.MaxUint64
	case dtypes.Float16:
		return -65504, 65504
	case dtypes.BFloat16:
		return -3.3895313892515355e+38, 3.3895313892515355e+38
	case dtypes.Float32:
		return -math.MaxFloat32, math.MaxFloat32
	}
	return -math.MaxFloat64, math.MaxFloat64
}

// Eps returns the smallest positive step used to replace zeros when a tensor must exclude zero:
// the machine epsilon for floats, 1 for integers and bool.
func Eps(dtype dtypes.DType) float64 {
	switch dtype {
	case dtypes.Float16:
		return 0x1p-10
	case dtypes.BFloat16:
		return 0x1p-7
	case dtypes.Float32:
		return 0x1p-23
	case dtypes.Float64:
		return 0x1p-52
	}
	return 1
}
