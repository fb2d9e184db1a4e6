// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
)

// unaryKind defines how the result dtype of a unary operator is derived.
type unaryKind int

const (
	// unarySameDType: the result has the dtype of the input.
	unarySameDType unaryKind = iota

	// unaryFloat: integer and bool inputs produce dtypesets.DefaultFloat results.
	unaryFloat

	// unaryFloatOnly: only floating point inputs are accepted.
	unaryFloatOnly

	// unaryPredicate: the result is Bool.
	unaryPredicate
)

type unaryDef struct {
	kind   unaryKind
	fn     func(x float64) float64
	sparse bool
}

var unaryDefs = map[string]unaryDef{
	"abs":         {unarySameDType, math.Abs, true},
	"neg":         {unarySameDType, func(x float64) float64 { return -x }, true},
	"sign":        {unarySameDType, sign, true},
	"sin":         {unaryFloat, math.Sin, true},
	"cos":         {unaryFloat, math.Cos, false},
	"tan":         {unaryFloat, math.Tan, true},
	"tanh":        {unaryFloat, math.Tanh, true},
	"sinh":        {unaryFloat, math.Sinh, true},
	"cosh":        {unaryFloat, math.Cosh, false},
	"asin":        {unaryFloat, math.Asin, true},
	"acos":        {unaryFloat, math.Acos, false},
	"atan":        {unaryFloat, math.Atan, true},
	"exp":         {unaryFloat, math.Exp, false},
	"expm1":       {unaryFloat, math.Expm1, true},
	"log":         {unaryFloat, math.Log, false},
	"log2":        {unaryFloat, math.Log2, false},
	"log10":       {unaryFloat, math.Log10, false},
	"log1p":       {unaryFloat, math.Log1p, true},
	"sqrt":        {unaryFloat, math.Sqrt, true},
	"rsqrt":       {unaryFloat, func(x float64) float64 { return 1 / math.Sqrt(x) }, false},
	"reciprocal":  {unaryFloat, func(x float64) float64 { return 1 / x }, false},
	"sigmoid":     {unaryFloat, func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }, false},
	"erf":         {unaryFloat, math.Erf, false},
	"ceil":        {unarySameDType, math.Ceil, true},
	"floor":       {unarySameDType, math.Floor, true},
	"round":       {unarySameDType, math.RoundToEven, true},
	"trunc":       {unarySameDType, math.Trunc, true},
	"frac":        {unaryFloatOnly, func(x float64) float64 { return x - math.Trunc(x) }, true},
	"square":      {unarySameDType, func(x float64) float64 { return x * x }, true},
	"isnan":       {unaryPredicate, func(x float64) float64 { return boolToFloat(math.IsNaN(x)) }, false},
	"isfinite":    {unaryPredicate, func(x float64) float64 { return boolToFloat(!math.IsNaN(x) && !math.IsInf(x, 0)) }, false},
	"logical_not": {unaryPredicate, func(x float64) float64 { return boolToFloat(x == 0) }, false},
}

func init() {
	for name, def := range unaryDefs {
		registerOp(name, execUnary(def), def.sparse)
	}
	registerOp("bitwise_not", execBitwiseNot, false)
	registerOp("nan_to_num", execNanToNum, false)
}

// sign returns -1, 0 or 1. The sign of NaN is 0.
func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// notImplementedFor is the error returned when an operator doesn't support a dtype.
func notImplementedFor(opName string, dtype dtypes.DType) error {
	return tensorlib.Errorf(tensorlib.RuntimeError, "\"%s_cpu\" not implemented for '%s'", opName, dtype)
}

// mapValues applies fn to every element of x, producing a new contiguous tensor of dtype outDType.
func mapValues(x *Tensor, outDType dtypes.DType, fn func(float64) float64) *Tensor {
	values := x.Values()
	for ii, v := range values {
		values[ii] = fn(v)
	}
	result := newTensorFrom(outDType, x.device, x.dims, values)
	result.requiresGrad = x.requiresGrad && dtypesets.IsFloating(outDType)
	return result
}

// mapSparse applies fn to the stored values of a sparse tensor. fn(0) must be 0.
func mapSparse(x *Tensor, outDType dtypes.DType, fn func(float64) float64) *Tensor {
	result := x.clone()
	result.dtype = outDType
	for ii, v := range result.coo.values {
		result.coo.values[ii] = quantize(outDType, fn(v))
	}
	result.requiresGrad = x.requiresGrad && dtypesets.IsFloating(outDType)
	return result
}

func execUnary(def unaryDef) opExecutor {
	return func(c *opCall) (any, error) {
		x, err := c.inputTensor()
		if err != nil {
			return nil, err
		}
		outDType := x.dtype
		switch def.kind {
		case unaryFloat:
			outDType = dtypesets.FloatResultType(x.dtype)
		case unaryFloatOnly:
			if !dtypesets.IsFloating(x.dtype) {
				return nil, notImplementedFor(c.name, x.dtype)
			}
		case unaryPredicate:
			outDType = dtypes.Bool
		}
		if c.name == "neg" && x.dtype == dtypes.Bool {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"Negation, the `-` operator, on a bool tensor is not supported. If you are trying to invert a mask, use the `~` or `logical_not()` operator instead.")
		}
		if x.coo != nil {
			return mapSparse(x, outDType, def.fn), nil
		}
		return c.output(mapValues(x, outDType, def.fn), x)
	}
}

func execBitwiseNot(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	if x.dtype == dtypes.Bool {
		return c.output(mapValues(x, x.dtype, func(v float64) float64 { return boolToFloat(v == 0) }), x)
	}
	if !dtypesets.IsIntegral(x.dtype) {
		return nil, notImplementedFor(c.name, x.dtype)
	}
	// Two's complement: ^v == -v-1, and quantize wraps unsigned values around.
	return c.output(mapValues(x, x.dtype, func(v float64) float64 { return -v - 1 }), x)
}

// execNanToNum implements nan_to_num(input, nan=0.0, posinf=None, neginf=None): infinities default to the
// largest and lowest finite values of the dtype.
func execNanToNum(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	nanValue, err := c.floatParam(0, "nan", 0)
	if err != nil {
		return nil, err
	}
	lowest, highest := dtypesets.Range(x.dtype)
	posInf, found, err := c.optionalFloatParam(1, "posinf")
	if err != nil {
		return nil, err
	} else if !found {
		posInf = highest
	}
	negInf, found, err := c.optionalFloatParam(2, "neginf")
	if err != nil {
		return nil, err
	} else if !found {
		negInf = lowest
	}
	return c.output(mapValues(x, x.dtype, func(v float64) float64 {
		switch {
		case math.IsNaN(v):
			return nanValue
		case math.IsInf(v, 1):
			return posInf
		case math.IsInf(v, -1):
			return negInf
		}
		return v
	}), x)
}
