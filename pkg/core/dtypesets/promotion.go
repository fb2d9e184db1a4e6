// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypesets

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

const (
	// DefaultFloat is the dtype the tested library uses for floating point results of integer inputs,
	// and for Go float scalars promoted against integer tensors.
	DefaultFloat = dtypes.Float32

	// DefaultInt is the dtype the tested library uses for Go integer scalars promoted against bool tensors,
	// and for indices.
	DefaultInt = dtypes.Int64
)

// Promote returns the dtype resulting from combining two tensors of dtypes a and b, following the
// tested library's rules:
//
//   - Mixed categories (bool < integer < float): the dtype of the higher category wins.
//   - Two floats: the widest, except Float16 with BFloat16, which promotes to Float32.
//   - Two integers of the same signedness: the widest.
//   - Signed with unsigned: the signed one, if it is wider, otherwise the next signed integer wider than
//     the unsigned one. There is no such integer for Uint64, and it returns an error.
func Promote(a, b dtypes.DType) (dtypes.DType, error) {
	if a == b {
		return a, nil
	}
	catA, catB := CategoryOf(a), CategoryOf(b)
	if catA == CategoryInvalid || catB == CategoryInvalid {
		return dtypes.InvalidDType, errors.Errorf("promotion of %s and %s is not supported", a, b)
	}
	if catA != catB {
		if catA > catB {
			return a, nil
		}
		return b, nil
	}
	switch catA {
	case CategoryFloat:
		if (a == dtypes.Float16 && b == dtypes.BFloat16) || (a == dtypes.BFloat16 && b == dtypes.Float16) {
			return dtypes.Float32, nil
		}
		return widest(a, b), nil
	case CategoryInteger:
		if IsSigned(a) == IsSigned(b) {
			return widest(a, b), nil
		}
		signed, unsigned := a, b
		if IsUnsigned(a) {
			signed, unsigned = b, a
		}
		if Bits(signed) > Bits(unsigned) {
			return signed, nil
		}
		switch unsigned {
		case dtypes.Uint8:
			return dtypes.Int16, nil
		case dtypes.Uint16:
			return dtypes.Int32, nil
		case dtypes.Uint32:
			return dtypes.Int64, nil
		}
		return dtypes.InvalidDType, errors.Errorf("promotion of %s and %s is not supported", a, b)
	}
	return a, nil
}

// CanPromote returns whether Promote(a, b) succeeds.
func CanPromote(a, b dtypes.DType) bool {
	_, err := Promote(a, b)
	return err == nil
}

// PromoteAll promotes all the given dtypes together, from left to right.
func PromoteAll(first dtypes.DType, others ...dtypes.DType) (dtypes.DType, error) {
	result := first
	for _, other := range others {
		var err error
		result, err = Promote(result, other)
		if err != nil {
			return dtypes.InvalidDType, err
		}
	}
	return result, nil
}

func widest(a, b dtypes.DType) dtypes.DType {
	if Bits(b) > Bits(a) {
		return b
	}
	return a
}

// ScalarCategory returns the category of a Go scalar value (bool, any int or uint, float32 or float64),
// or CategoryInvalid if it is not a scalar.
func ScalarCategory(scalar any) Category {
	switch scalar.(type) {
	case bool:
		return CategoryBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return CategoryInteger
	case float32, float64:
		return CategoryFloat
	}
	return CategoryInvalid
}

// PromoteWithScalar returns the dtype resulting from combining a tensor of the given dtype with a Go
// scalar ("wrapped number"): the scalar only participates if it belongs to a higher category, in which
// case the default dtype of that category is used.
func PromoteWithScalar(dtype dtypes.DType, scalar any) (dtypes.DType, error) {
	scalarCat := ScalarCategory(scalar)
	if scalarCat == CategoryInvalid {
		return dtypes.InvalidDType, errors.Errorf("value of type %T is not a scalar", scalar)
	}
	if scalarCat <= CategoryOf(dtype) {
		return dtype, nil
	}
	if scalarCat == CategoryFloat {
		return DefaultFloat, nil
	}
	return DefaultInt, nil
}

// FloatResultType returns the result dtype of a floating-point-only function (sin, exp, true division, ...)
// applied to dtype: integer and bool inputs yield DefaultFloat.
func FloatResultType(dtype dtypes.DType) dtypes.DType {
	if IsFloating(dtype) {
		return dtype
	}
	return DefaultFloat
}

// SumResultType returns the result dtype of accumulating reductions (sum, prod, cumsum, cumprod):
// integers and bool accumulate in Int64.
func SumResultType(dtype dtypes.DType) dtypes.DType {
	if dtype == dtypes.Bool || IsIntegral(dtype) {
		return dtypes.Int64
	}
	return dtype
}

// CanCast returns whether a result of dtype `from` can be written into an output of dtype `to`
// without changing category downwards (e.g.: a float result can't be written to an integer output).
func CanCast(from, to dtypes.DType) bool {
	return CategoryOf(from) <= CategoryOf(to)
}

// Operand describes an argument of an elementwise operation for ResultType: either a tensor, given by its
// DType and Rank, or a Go scalar.
type Operand struct {
	DType  dtypes.DType
	Rank   int
	Scalar any
}

// TensorOperand returns an Operand for a tensor with the given dtype and rank.
func TensorOperand(dtype dtypes.DType, rank int) Operand { return Operand{DType: dtype, Rank: rank} }

// ScalarOperand returns an Operand for a Go scalar.
func ScalarOperand(scalar any) Operand { return Operand{DType: dtypes.InvalidDType, Scalar: scalar} }

// ResultType returns the dtype of an elementwise operation over the operands.
//
// Tensors with at least one axis are promoted together first. Zero-dimensional tensors only matter if their
// category is higher than the result so far, and Go scalars are considered last with PromoteWithScalar.
// At least one operand must be a tensor.
func ResultType(operands ...Operand) (dtypes.DType, error) {
	dimensioned, zeroDim := dtypes.InvalidDType, dtypes.InvalidDType
	var scalars []any
	var err error
	for _, op := range operands {
		switch {
		case op.Scalar != nil:
			scalars = append(scalars, op.Scalar)
		case op.Rank > 0:
			if dimensioned == dtypes.InvalidDType {
				dimensioned = op.DType
			} else if dimensioned, err = Promote(dimensioned, op.DType); err != nil {
				return dtypes.InvalidDType, err
			}
		default:
			if zeroDim == dtypes.InvalidDType {
				zeroDim = op.DType
			} else if zeroDim, err = Promote(zeroDim, op.DType); err != nil {
				return dtypes.InvalidDType, err
			}
		}
	}
	result := dimensioned
	switch {
	case result == dtypes.InvalidDType:
		result = zeroDim
	case zeroDim != dtypes.InvalidDType && CategoryOf(zeroDim) > CategoryOf(result):
		if result, err = Promote(result, zeroDim); err != nil {
			return dtypes.InvalidDType, err
		}
	}
	if result == dtypes.InvalidDType {
		return dtypes.InvalidDType, errors.New("result type requires at least one tensor operand")
	}
	for _, scalar := range scalars {
		if result, err = PromoteWithScalar(result, scalar); err != nil {
			return dtypes.InvalidDType, err
		}
	}
	return result, nil
}
