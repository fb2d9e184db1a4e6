// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
)

// binaryKind defines how the result dtype of a binary operator is derived.
type binaryKind int

const (
	// binaryArithmetic: the promoted dtype of the operands.
	binaryArithmetic binaryKind = iota

	// binaryFloat: the promoted dtype, with integer and bool promoted to dtypesets.DefaultFloat.
	binaryFloat

	// binaryPredicate: Bool, e.g. comparisons and logical operators.
	binaryPredicate

	// binaryBitwise: the promoted dtype, which must be integral or bool.
	binaryBitwise
)

type binaryDef struct {
	kind binaryKind
	fn   func(a, b float64) float64

	// validate, if set, is called for each pair of elements, with the result dtype.
	validate func(dtype dtypes.DType, a, b float64) error
}

var errZeroDivision = tensorlib.Errorf(tensorlib.RuntimeError, "ZeroDivisionError")

// integerDivisor fails for integer divisions by zero.
func integerDivisor(dtype dtypes.DType, _, b float64) error {
	if b == 0 && (dtypesets.IsIntegral(dtype) || dtype == dtypes.Bool) {
		return errZeroDivision
	}
	return nil
}

// pythonRemainder returns the remainder with the sign of the divisor.
func pythonRemainder(a, b float64) float64 {
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

func maximum(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Max(a, b)
}

func minimum(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return math.Min(a, b)
}

func bitwise(fn func(a, b int64) int64) func(a, b float64) float64 {
	return func(a, b float64) float64 { return float64(fn(int64(a), int64(b))) }
}

var binaryDefs = map[string]binaryDef{
	"add": {kind: binaryArithmetic, fn: func(a, b float64) float64 { return a + b }},
	"sub": {kind: binaryArithmetic, fn: func(a, b float64) float64 { return a - b }},
	"mul": {kind: binaryArithmetic, fn: func(a, b float64) float64 { return a * b }},
	"pow": {kind: binaryArithmetic, fn: math.Pow, validate: func(dtype dtypes.DType, _, b float64) error {
		if dtypesets.IsIntegral(dtype) && b < 0 {
			return tensorlib.Errorf(tensorlib.RuntimeError, "Integers to negative integer powers are not allowed.")
		}
		return nil
	}},
	"maximum":     {kind: binaryArithmetic, fn: maximum},
	"minimum":     {kind: binaryArithmetic, fn: minimum},
	"remainder":   {kind: binaryArithmetic, fn: pythonRemainder, validate: integerDivisor},
	"fmod":        {kind: binaryArithmetic, fn: math.Mod, validate: integerDivisor},
	"atan2":       {kind: binaryFloat, fn: math.Atan2},
	"eq":          {kind: binaryPredicate, fn: func(a, b float64) float64 { return boolToFloat(a == b) }},
	"ne":          {kind: binaryPredicate, fn: func(a, b float64) float64 { return boolToFloat(a != b) }},
	"lt":          {kind: binaryPredicate, fn: func(a, b float64) float64 { return boolToFloat(a < b) }},
	"le":          {kind: binaryPredicate, fn: func(a, b float64) float64 { return boolToFloat(a <= b) }},
	"gt":          {kind: binaryPredicate, fn: func(a, b float64) float64 { return boolToFloat(a > b) }},
	"ge":          {kind: binaryPredicate, fn: func(a, b float64) float64 { return boolToFloat(a >= b) }},
	"logical_and": {kind: binaryPredicate, fn: func(a, b float64) float64 { return boolToFloat(a != 0 && b != 0) }},
	"logical_or":  {kind: binaryPredicate, fn: func(a, b float64) float64 { return boolToFloat(a != 0 || b != 0) }},
	"logical_xor": {kind: binaryPredicate, fn: func(a, b float64) float64 { return boolToFloat((a != 0) != (b != 0)) }},
	"bitwise_and": {kind: binaryBitwise, fn: bitwise(func(a, b int64) int64 { return a & b })},
	"bitwise_or":  {kind: binaryBitwise, fn: bitwise(func(a, b int64) int64 { return a | b })},
	"bitwise_xor": {kind: binaryBitwise, fn: bitwise(func(a, b int64) int64 { return a ^ b })},
}

func init() {
	for name, def := range binaryDefs {
		registerOp(name, execBinary(def), false)
	}
	registerOp("div", execDiv, false)
}

// binaryOperands parses the input and the "other" operand (a tensor or a Go scalar), and returns the
// promoted dtype of the operation.
func (c *opCall) binaryOperands() (a *Tensor, other any, promoted dtypes.DType, err error) {
	a, err = c.inputTensor()
	if err != nil {
		return
	}
	other, found := c.param(0, "other")
	if !found {
		err = tensorlib.Errorf(tensorlib.TypeError, "%s() missing required argument 'other'", c.name)
		return
	}
	operands := []dtypesets.Operand{dtypesets.TensorOperand(a.dtype, a.Rank())}
	if b, ok := other.(*Tensor); ok {
		operands = append(operands, dtypesets.TensorOperand(b.dtype, b.Rank()))
	} else if isScalar(other) {
		operands = append(operands, dtypesets.ScalarOperand(other))
	} else {
		err = c.typeError("other", "Tensor or Number", other)
		return
	}
	promoted, err = dtypesets.ResultType(operands...)
	err = tensorlib.Classify(tensorlib.RuntimeError, err)
	return
}

// broadcastBinary returns the broadcast dimensions and the values of both operands broadcast to it,
// already converted to the computation dtype. b may be a tensor or a Go scalar.
func broadcastBinary(a *Tensor, b any, dtype dtypes.DType) (dims []int, aValues, bValues []float64, err error) {
	if bTensor, ok := b.(*Tensor); ok {
		dims, err = shapes.BroadcastDims(a.dims, bTensor.dims)
		if err != nil {
			return nil, nil, nil, tensorlib.Classify(tensorlib.RuntimeError, err)
		}
		bValues = bTensor.broadcastValues(dims)
	} else {
		dims = a.dims
		bValues = make([]float64, a.Size())
		scalar := quantize(dtype, scalarValue(b))
		for ii := range bValues {
			bValues[ii] = scalar
		}
	}
	aValues = a.broadcastValues(dims)
	if dtype != a.dtype {
		quantizeAll(dtype, aValues)
	}
	if bTensor, ok := b.(*Tensor); ok && dtype != bTensor.dtype {
		quantizeAll(dtype, bValues)
	}
	return
}

// binaryInputs returns the tensors among the operands, for the requires-grad and aliasing checks.
func binaryInputs(a *Tensor, b any) []*Tensor {
	if bTensor, ok := b.(*Tensor); ok {
		return []*Tensor{a, bTensor}
	}
	return []*Tensor{a}
}

// binaryResult creates the result tensor, computing requiresGrad from the inputs.
func binaryResult(dtype dtypes.DType, device tensorlib.Device, dims []int, values []float64, inputs []*Tensor) *Tensor {
	result := newTensorFrom(dtype, device, dims, values)
	if dtypesets.IsFloating(dtype) {
		for _, input := range inputs {
			result.requiresGrad = result.requiresGrad || input.requiresGrad
		}
	}
	return result
}

func execBinary(def binaryDef) opExecutor {
	return func(c *opCall) (any, error) {
		a, b, promoted, err := c.binaryOperands()
		if err != nil {
			return nil, err
		}
		computeDType, outDType := promoted, promoted
		switch def.kind {
		case binaryFloat:
			computeDType, outDType = dtypesets.FloatResultType(promoted), dtypesets.FloatResultType(promoted)
		case binaryPredicate:
			outDType = dtypes.Bool
		case binaryBitwise:
			if !dtypesets.IsIntegral(promoted) && promoted != dtypes.Bool {
				return nil, notImplementedFor(c.name, promoted)
			}
		}
		if c.name == "sub" && promoted == dtypes.Bool {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"Subtraction, the `-` operator, with two bool tensors is not supported. Use the `^` or `logical_xor()` operator instead.")
		}
		dims, aValues, bValues, err := broadcastBinary(a, b, computeDType)
		if err != nil {
			return nil, err
		}
		if c.name == "add" || c.name == "sub" {
			alpha, err := c.alpha(promoted)
			if err != nil {
				return nil, err
			}
			if alpha != 1 {
				for ii := range bValues {
					bValues[ii] *= alpha
				}
			}
		}
		for ii := range aValues {
			if def.validate != nil {
				if err := def.validate(computeDType, aValues[ii], bValues[ii]); err != nil {
					return nil, err
				}
			}
			aValues[ii] = def.fn(aValues[ii], bValues[ii])
		}
		inputs := binaryInputs(a, b)
		return c.output(binaryResult(outDType, a.device, dims, aValues, inputs), inputs...)
	}
}

// alpha parses the "alpha" keyword argument of add and sub.
func (c *opCall) alpha(dtype dtypes.DType) (float64, error) {
	v, found := c.param(1, "alpha")
	if !found {
		return 1, nil
	}
	switch v.(type) {
	case float32, float64:
		if !dtypesets.IsFloating(dtype) {
			return 0, tensorlib.Errorf(tensorlib.RuntimeError,
				"For integral input tensors, argument alpha must not be a floating point number.")
		}
	case bool:
		if dtype != dtypes.Bool {
			return 0, tensorlib.Errorf(tensorlib.RuntimeError, "Boolean alpha only supported for Boolean results.")
		}
	}
	alpha, ok := toFloat(v)
	if !ok {
		return 0, c.typeError("alpha", "Number", v)
	}
	return alpha, nil
}

// execDiv implements div(input, other, rounding_mode=None): true division when rounding_mode is not given,
// otherwise "trunc" or "floor" rounding of the quotient, keeping the promoted dtype.
func execDiv(c *opCall) (any, error) {
	a, b, promoted, err := c.binaryOperands()
	if err != nil {
		return nil, err
	}
	mode, hasMode, err := c.stringParam(1, "rounding_mode")
	if err != nil {
		return nil, err
	}
	var round func(float64) float64
	outDType := promoted
	if hasMode {
		switch mode {
		case "trunc":
			round = math.Trunc
		case "floor":
			round = math.Floor
		default:
			return nil, tensorlib.Errorf(tensorlib.ValueError,
				"div expected rounding_mode to be one of None, 'trunc', or 'floor' but found '%s'", mode)
		}
	} else {
		outDType = dtypesets.FloatResultType(promoted)
	}
	dims, aValues, bValues, err := broadcastBinary(a, b, outDType)
	if err != nil {
		return nil, err
	}
	for ii := range aValues {
		if round != nil {
			if err := integerDivisor(outDType, aValues[ii], bValues[ii]); err != nil {
				return nil, err
			}
			aValues[ii] = round(aValues[ii] / bValues[ii])
		} else {
			aValues[ii] /= bValues[ii]
		}
	}
	inputs := binaryInputs(a, b)
	return c.output(binaryResult(outDType, a.device, dims, aValues, inputs), inputs...)
}
