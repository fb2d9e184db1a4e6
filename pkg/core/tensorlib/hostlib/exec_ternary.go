// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

func init() {
	registerOp("where", execWhere, false)
	registerOp("clamp", execClamp, false)
	registerOp("lerp", execLerp, false)
}

// broadcastOperands broadcasts all operands (tensors or Go scalars, nil operands are ignored) together and
// returns their values converted to dtype. Values of nil operands are returned as nil.
func broadcastOperands(dtype dtypes.DType, operands ...any) (dims []int, values [][]float64, err error) {
	var allDims [][]int
	for _, operand := range operands {
		if t, ok := operand.(*Tensor); ok {
			allDims = append(allDims, t.dims)
		}
	}
	dims, err = shapes.BroadcastDims(allDims...)
	if err != nil {
		return nil, nil, tensorlib.Classify(tensorlib.RuntimeError, err)
	}
	size := xslices.Prod(dims)
	values = make([][]float64, len(operands))
	for ii, operand := range operands {
		switch x := operand.(type) {
		case nil:
		case *Tensor:
			values[ii] = x.broadcastValues(dims)
			if x.dtype != dtype {
				quantizeAll(dtype, values[ii])
			}
		default:
			scalar := quantize(dtype, scalarValue(x))
			values[ii] = make([]float64, size)
			for jj := range values[ii] {
				values[ii][jj] = scalar
			}
		}
	}
	return dims, values, nil
}

// operandsResultType returns the promoted dtype of the non-nil operands (tensors or Go scalars).
func (c *opCall) operandsResultType(operands ...any) (dtypes.DType, error) {
	var ops []dtypesets.Operand
	for _, operand := range operands {
		switch x := operand.(type) {
		case nil:
		case *Tensor:
			ops = append(ops, dtypesets.TensorOperand(x.dtype, x.Rank()))
		default:
			if !isScalar(x) {
				return dtypes.InvalidDType, c.typeError("other", "Tensor or Number", x)
			}
			ops = append(ops, dtypesets.ScalarOperand(x))
		}
	}
	dtype, err := dtypesets.ResultType(ops...)
	return dtype, tensorlib.Classify(tensorlib.RuntimeError, err)
}

func tensorsAmong(operands ...any) []*Tensor {
	var tensors []*Tensor
	for _, operand := range operands {
		if t, ok := operand.(*Tensor); ok {
			tensors = append(tensors, t)
		}
	}
	return tensors
}

// execWhere implements where(input, condition, other): elements of input where condition is true, and of
// other elsewhere.
func execWhere(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	condition, err := c.tensorParam(0, "condition")
	if err != nil {
		return nil, err
	}
	if condition.dtype != dtypes.Bool {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"where expected condition to be a boolean tensor, but got a tensor with dtype %s", condition.dtype)
	}
	other, found := c.param(1, "other")
	if !found {
		return nil, tensorlib.Errorf(tensorlib.TypeError, "where() missing required argument 'other'")
	}
	dtype, err := c.operandsResultType(x, other)
	if err != nil {
		return nil, err
	}
	dims, values, err := broadcastOperands(dtype, x, condition, other)
	if err != nil {
		return nil, err
	}
	result := values[0]
	for ii := range result {
		if values[1][ii] == 0 {
			result[ii] = values[2][ii]
		}
	}
	inputs := tensorsAmong(x, condition, other)
	return c.output(binaryResult(dtype, x.device, dims, result, inputs), inputs...)
}

// execClamp implements clamp(input, min=None, max=None), bounds being tensors or Go scalars.
// The result is min(max(input, min), max), and NaN propagates.
func execClamp(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	lower, hasLower := c.param(0, "min")
	upper, hasUpper := c.param(1, "max")
	if !hasLower && !hasUpper {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "torch.clamp: At least one of 'min' or 'max' must not be None")
	}
	if !hasLower {
		lower = nil
	}
	if !hasUpper {
		upper = nil
	}
	dtype, err := c.operandsResultType(x, lower, upper)
	if err != nil {
		return nil, err
	}
	if dtype == dtypes.Bool {
		return nil, notImplementedFor(c.name, dtype)
	}
	dims, values, err := broadcastOperands(dtype, x, lower, upper)
	if err != nil {
		return nil, err
	}
	result := values[0]
	for ii, v := range result {
		if math.IsNaN(v) {
			continue
		}
		if values[1] != nil {
			v = maximum(v, values[1][ii])
		}
		if values[2] != nil {
			v = minimum(v, values[2][ii])
		}
		result[ii] = v
	}
	inputs := tensorsAmong(x, lower, upper)
	return c.output(binaryResult(dtype, x.device, dims, result, inputs), inputs...)
}

// execLerp implements lerp(input, end, weight) = input + weight * (end - input), for floating point tensors.
func execLerp(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	end, err := c.tensorParam(0, "end")
	if err != nil {
		return nil, err
	}
	weight, found := c.param(1, "weight")
	if !found {
		return nil, tensorlib.Errorf(tensorlib.TypeError, "lerp() missing required argument 'weight'")
	}
	if !dtypesets.IsFloating(x.dtype) {
		return nil, notImplementedFor(c.name, x.dtype)
	}
	if end.dtype != x.dtype {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "expected dtype %s for `end` but got dtype %s", x.dtype, end.dtype)
	}
	if w, ok := weight.(*Tensor); ok && w.dtype != x.dtype {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "expected dtype %s for `weight` but got dtype %s", x.dtype, w.dtype)
	} else if !ok && !isScalar(weight) {
		return nil, c.typeError("weight", "Tensor or Number", weight)
	}
	dims, values, err := broadcastOperands(x.dtype, x, end, weight)
	if err != nil {
		return nil, err
	}
	result := values[0]
	for ii, start := range result {
		result[ii] = start + values[2][ii]*(values[1][ii]-start)
	}
	inputs := tensorsAmong(x, end, weight)
	return c.output(binaryResult(x.dtype, x.device, dims, result, inputs), inputs...)
}
