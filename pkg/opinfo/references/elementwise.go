// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package references

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"gonum.org/v1/gonum/floats"
)

// BoolResult is the result dtype function of predicates.
func BoolResult(dtypes.DType) dtypes.DType { return dtypes.Bool }

// Unary returns the reference of an elementwise operator computing fn on each value. resultDType maps the
// input dtype to the output one, nil to keep it.
func Unary(fn func(x float64) float64, resultDType func(dtypes.DType) dtypes.DType) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		x, err := input(sample)
		if err != nil {
			return nil, err
		}
		outDType := x.DType
		if resultDType != nil {
			outDType = resultDType(x.DType)
		}
		values := make([]float64, x.Size())
		for ii, v := range x.Data {
			values[ii] = fn(v)
		}
		castAll(outDType, values)
		return results(NewArray(outDType, values, x.Dims...))
	}
}

// Sign returns -1, 0 or 1, with 0 for NaN.
func Sign(x float64) float64 {
	if x == 0 || math.IsNaN(x) {
		return 0
	}
	return math.Copysign(1, x)
}

// BitwiseNot is the reference of bitwise_not: logical negation for Bool, two's complement otherwise.
func BitwiseNot(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	if x.DType == dtypes.Bool {
		return Unary(func(v float64) float64 { return boolValue(v == 0) }, nil)(sample)
	}
	if !dtypesets.IsIntegral(x.DType) {
		return nil, noReference("bitwise_not of %s", x.DType)
	}
	return Unary(func(v float64) float64 { return float64(^int64(v)) }, nil)(sample)
}

// NanToNum is the reference of nan_to_num(input, nan=0.0, posinf=None, neginf=None).
func NanToNum(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	nanValue, err := floatParam(sample, 0, "nan", 0)
	if err != nil {
		return nil, err
	}
	lowest, highest := dtypesets.Range(x.DType)
	posInf, err := floatParam(sample, 1, "posinf", highest)
	if err != nil {
		return nil, err
	}
	negInf, err := floatParam(sample, 2, "neginf", lowest)
	if err != nil {
		return nil, err
	}
	return Unary(func(v float64) float64 {
		switch {
		case math.IsNaN(v):
			return nanValue
		case math.IsInf(v, 1):
			return posInf
		case math.IsInf(v, -1):
			return negInf
		}
		return v
	}, nil)(sample)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// BinaryKind defines the dtypes a binary operator computes in and returns.
type BinaryKind int

const (
	// Arithmetic operators compute in and return the promoted dtype.
	Arithmetic BinaryKind = iota

	// FloatResult operators promote integers and Bool to the default floating point dtype.
	FloatResult

	// Predicate operators compare in the promoted dtype and return Bool.
	Predicate

	// Bitwise operators work on the 64 bits integer representation of the promoted dtype.
	Bitwise
)

// binaryOperands parses (input, other) and returns their values broadcast together and cast to the
// computation dtype, with the promoted dtype.
func binaryOperands(sample *opinfo.SampleInput, kind BinaryKind) (dims []int, a, b []float64, promoted dtypes.DType, err error) {
	x, err := input(sample)
	if err != nil {
		return
	}
	lhs := &operand{array: x}
	rhs, err := operandParam(sample, 0, "other")
	if err != nil {
		return
	}
	if rhs == nil {
		err = noReference("missing argument \"other\"")
		return
	}
	if promoted, err = resultType(lhs, rhs); err != nil {
		return
	}
	computeDType := promoted
	if kind == FloatResult {
		computeDType = dtypesets.FloatResultType(promoted)
	}
	var values [][]float64
	if dims, values, err = broadcastOperands(computeDType, lhs, rhs); err != nil {
		return
	}
	return dims, values[0], values[1], promoted, nil
}

// binaryResultDType returns the output dtype of a binary operator of the given kind.
func binaryResultDType(kind BinaryKind, promoted dtypes.DType) dtypes.DType {
	switch kind {
	case FloatResult:
		return dtypesets.FloatResultType(promoted)
	case Predicate:
		return dtypes.Bool
	}
	return promoted
}

// Binary returns the reference of the elementwise binary operator op(input, other), other being a tensor or
// a Go scalar, computing fn on each pair of broadcast values.
func Binary(kind BinaryKind, fn func(a, b float64) float64) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		dims, a, b, promoted, err := binaryOperands(sample, kind)
		if err != nil {
			return nil, err
		}
		if kind == Bitwise && !dtypesets.IsIntegral(promoted) && promoted != dtypes.Bool {
			return nil, noReference("bitwise operation on %s", promoted)
		}
		for ii := range a {
			if kind == Bitwise {
				a[ii] = fn(math.Trunc(a[ii]), math.Trunc(b[ii]))
			} else {
				a[ii] = fn(a[ii], b[ii])
			}
		}
		outDType := binaryResultDType(kind, promoted)
		castAll(outDType, a)
		return results(NewArray(outDType, a, dims...))
	}
}

// Bitwise64 adapts an operation on int64 to the float64 values used by Binary.
func Bitwise64(fn func(a, b int64) int64) func(a, b float64) float64 {
	return func(a, b float64) float64 { return float64(fn(int64(a), int64(b))) }
}

// AddScaled is the reference of add (sign=1) and sub (sign=-1): input + sign·alpha·other, alpha defaulting to 1.
func AddScaled(sign float64) opinfo.ReferenceFunc {
	return func(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
		dims, a, b, promoted, err := binaryOperands(sample, Arithmetic)
		if err != nil {
			return nil, err
		}
		alpha, err := floatParam(sample, 1, "alpha", 1)
		if err != nil {
			return nil, err
		}
		floats.AddScaled(a, sign*alpha, b)
		castAll(promoted, a)
		return results(NewArray(promoted, a, dims...))
	}
}

// Mul is the reference of mul(input, other).
func Mul(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	dims, a, b, promoted, err := binaryOperands(sample, Arithmetic)
	if err != nil {
		return nil, err
	}
	floats.Mul(a, b)
	castAll(promoted, a)
	return results(NewArray(promoted, a, dims...))
}

// Div is the reference of div(input, other, rounding_mode=None): true division in floating point, or the
// quotient rounded with "trunc" or "floor" in the promoted dtype.
func Div(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	mode, hasMode := param(sample, 1, "rounding_mode")
	kind := FloatResult
	if hasMode {
		kind = Arithmetic
	}
	dims, a, b, promoted, err := binaryOperands(sample, kind)
	if err != nil {
		return nil, err
	}
	floats.Div(a, b)
	if hasMode {
		var round func(float64) float64
		switch mode {
		case "trunc":
			round = math.Trunc
		case "floor":
			round = math.Floor
		default:
			return nil, noReference("rounding_mode %v", mode)
		}
		for ii, v := range a {
			a[ii] = round(v)
		}
	}
	outDType := binaryResultDType(kind, promoted)
	castAll(outDType, a)
	return results(NewArray(outDType, a, dims...))
}

// Remainder returns a modulo b with the sign of b (the result of math.Mod has the sign of a).
func Remainder(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && math.Signbit(r) != math.Signbit(b) {
		return r + b
	}
	return r
}

// Maximum is math.Max propagating NaN from either side.
func Maximum(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Max(a, b)
}

// Minimum is math.Min propagating NaN from either side.
func Minimum(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Min(a, b)
}

// Where is the reference of where(input, condition, other).
func Where(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	lhs := &operand{array: x}
	condition, err := operandParam(sample, 0, "condition")
	if err != nil {
		return nil, err
	}
	other, err := operandParam(sample, 1, "other")
	if err != nil {
		return nil, err
	}
	if condition == nil || condition.array == nil || other == nil {
		return nil, noReference("where without condition tensor or other")
	}
	dtype, err := resultType(lhs, other)
	if err != nil {
		return nil, err
	}
	dims, values, err := broadcastOperands(dtype, lhs, condition, other)
	if err != nil {
		return nil, err
	}
	out := values[0]
	for ii, c := range values[1] {
		if c == 0 {
			out[ii] = values[2][ii]
		}
	}
	return results(NewArray(dtype, out, dims...))
}

// Clamp is the reference of clamp(input, min=None, max=None): min(max(input, min), max), where NaN inputs
// are kept and NaN bounds propagate.
func Clamp(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	lhs := &operand{array: x}
	lower, err := operandParam(sample, 0, "min")
	if err != nil {
		return nil, err
	}
	upper, err := operandParam(sample, 1, "max")
	if err != nil {
		return nil, err
	}
	dtype, err := resultType(lhs, lower, upper)
	if err != nil {
		return nil, err
	}
	dims, values, err := broadcastOperands(dtype, lhs, lower, upper)
	if err != nil {
		return nil, err
	}
	out := values[0]
	for ii, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if values[1] != nil {
			v = Maximum(v, values[1][ii])
		}
		if values[2] != nil {
			v = Minimum(v, values[2][ii])
		}
		out[ii] = v
	}
	return results(NewArray(dtype, out, dims...))
}

// Lerp is the reference of lerp(input, end, weight): input + weight·(end - input).
func Lerp(sample *opinfo.SampleInput) ([]opinfo.Result, error) {
	x, err := input(sample)
	if err != nil {
		return nil, err
	}
	start := &operand{array: x}
	end, err := operandParam(sample, 0, "end")
	if err != nil {
		return nil, err
	}
	weight, err := operandParam(sample, 1, "weight")
	if err != nil {
		return nil, err
	}
	if end == nil || weight == nil {
		return nil, noReference("lerp without end or weight")
	}
	dims, values, err := broadcastOperands(x.DType, start, end, weight)
	if err != nil {
		return nil, err
	}
	out := values[0]
	for ii, s := range out {
		out[ii] = s + values[2][ii]*(values[1][ii]-s)
	}
	castAll(x.DType, out)
	return results(NewArray(x.DType, out, dims...))
}
