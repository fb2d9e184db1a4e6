// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
)

// opCall holds the arguments of one operator call, and helpers to parse them.
//
// Parameters are looked up by position (in args, the positional arguments after the input) and, if not given
// positionally, by name in kwargs.
type opCall struct {
	lib    *Library
	name   string
	input  any
	args   []any
	kwargs map[string]any
}

// tensorsOf returns all host tensors in the call: input, args and kwargs, including inside []tensorlib.Tensor.
func (c *opCall) tensorsOf() []*Tensor {
	var tensors []*Tensor
	var visit func(v any)
	visit = func(v any) {
		switch x := v.(type) {
		case *Tensor:
			if x != nil {
				tensors = append(tensors, x)
			}
		case []tensorlib.Tensor:
			for _, e := range x {
				visit(e)
			}
		case []any:
			for _, e := range x {
				visit(e)
			}
		}
	}
	visit(c.input)
	for _, arg := range c.args {
		visit(arg)
	}
	for key, arg := range c.kwargs {
		if key != "out" {
			visit(arg)
		}
	}
	return tensors
}

// checkOperands verifies the checks common to all operators: tensors on the same device, and sparse inputs
// only for operators that support them.
func (c *opCall) checkOperands() error {
	tensors := c.tensorsOf()
	for _, t := range tensors {
		if t.device != tensors[0].device {
			return tensorlib.Errorf(tensorlib.RuntimeError,
				"Expected all tensors to be on the same device, but found at least two devices, %s and %s!",
				tensors[0].device, t.device)
		}
		if t.coo != nil && !Capabilities.SparseOperations[c.name] {
			return tensorlib.Errorf(tensorlib.NotImplementedError,
				"Could not run 'aten::%s' with arguments from the 'SparseCPU' backend.", c.name)
		}
	}
	return nil
}

// param returns the positional argument pos, or the keyword argument name. Nil values are considered absent.
func (c *opCall) param(pos int, name string) (any, bool) {
	if pos >= 0 && pos < len(c.args) {
		return c.args[pos], c.args[pos] != nil
	}
	v, found := c.kwargs[name]
	return v, found && v != nil
}

func (c *opCall) typeError(name, expected string, got any) error {
	return tensorlib.Errorf(tensorlib.TypeError, "%s(): argument '%s' must be %s, not %T", c.name, name, expected, got)
}

// inputTensor returns the input as a host tensor.
func (c *opCall) inputTensor() (*Tensor, error) {
	return asTensor(c.input, c.name, "input")
}

// tensorParam returns a required tensor parameter.
func (c *opCall) tensorParam(pos int, name string) (*Tensor, error) {
	v, found := c.param(pos, name)
	if !found {
		return nil, tensorlib.Errorf(tensorlib.TypeError, "%s() missing required argument '%s'", c.name, name)
	}
	return asTensor(v, c.name, name)
}

// toInt converts Go integer types to int.
func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		return int(x), true
	case uint:
		return int(x), true
	}
	return 0, false
}

// toFloat converts Go numeric scalars and bool to float64.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// isScalar returns whether v is a Go scalar accepted as an operand.
func isScalar(v any) bool {
	_, ok := toFloat(v)
	return ok
}

// intParam returns an integer parameter, or defaultValue if absent.
func (c *opCall) intParam(pos int, name string, defaultValue int) (int, error) {
	v, found := c.param(pos, name)
	if !found {
		return defaultValue, nil
	}
	i, ok := toInt(v)
	if !ok {
		return 0, c.typeError(name, "int", v)
	}
	return i, nil
}

// requiredIntParam returns an integer parameter that must be given.
func (c *opCall) requiredIntParam(pos int, name string) (int, error) {
	if _, found := c.param(pos, name); !found {
		return 0, tensorlib.Errorf(tensorlib.TypeError, "%s() missing required argument '%s'", c.name, name)
	}
	return c.intParam(pos, name, 0)
}

// floatParam returns a float parameter, or defaultValue if absent.
func (c *opCall) floatParam(pos int, name string, defaultValue float64) (float64, error) {
	v, found := c.param(pos, name)
	if !found {
		return defaultValue, nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, c.typeError(name, "Number", v)
	}
	return f, nil
}

// optionalFloatParam returns a float parameter, and whether it was given.
func (c *opCall) optionalFloatParam(pos int, name string) (float64, bool, error) {
	if _, found := c.param(pos, name); !found {
		return 0, false, nil
	}
	f, err := c.floatParam(pos, name, 0)
	return f, err == nil, err
}

// boolParam returns a bool parameter, or defaultValue if absent.
func (c *opCall) boolParam(pos int, name string, defaultValue bool) (bool, error) {
	v, found := c.param(pos, name)
	if !found {
		return defaultValue, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, c.typeError(name, "bool", v)
	}
	return b, nil
}

// stringParam returns an optional string parameter.
func (c *opCall) stringParam(pos int, name string) (string, bool, error) {
	v, found := c.param(pos, name)
	if !found {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, c.typeError(name, "str", v)
	}
	return s, true, nil
}

// intsParam returns a parameter that can be an int or a list of ints, and whether it was given.
func (c *opCall) intsParam(pos int, name string) ([]int, bool, error) {
	v, found := c.param(pos, name)
	if !found {
		return nil, false, nil
	}
	if i, ok := toInt(v); ok {
		return []int{i}, true, nil
	}
	if list, ok := v.([]int); ok {
		return slices.Clone(list), true, nil
	}
	return nil, false, c.typeError(name, "tuple of ints", v)
}

// dtypeParam returns an optional dtype parameter.
func (c *opCall) dtypeParam(pos int, name string, defaultValue dtypes.DType) (dtypes.DType, error) {
	v, found := c.param(pos, name)
	if !found {
		return defaultValue, nil
	}
	dtype, ok := v.(dtypes.DType)
	if !ok {
		return dtypes.InvalidDType, c.typeError(name, "dtype", v)
	}
	return dtype, nil
}

// axisParam returns a (normalized) axis parameter for a tensor of the given rank.
func (c *opCall) axisParam(pos int, name string, defaultValue, rank int) (int, error) {
	axis, err := c.intParam(pos, name, defaultValue)
	if err != nil {
		return 0, err
	}
	return normalizeAxis(axis, rank)
}

// normalizeAxis wraps shapes.NormalizeAxis classifying the error as an IndexError.
func normalizeAxis(axis, rank int) (int, error) {
	adjusted, err := shapes.NormalizeAxis(axis, rank)
	return adjusted, tensorlib.Classify(tensorlib.IndexError, err)
}

// normalizeAxes wraps shapes.NormalizeAxes classifying the errors: IndexError for out-of-range axes, and
// RuntimeError for repeated ones.
func normalizeAxes(axes []int, rank int) ([]int, error) {
	for _, axis := range axes {
		if _, err := normalizeAxis(axis, rank); err != nil {
			return nil, err
		}
	}
	adjusted, err := shapes.NormalizeAxes(axes, rank)
	return adjusted, tensorlib.Classify(tensorlib.RuntimeError, err)
}

// output handles the "out" keyword argument of operators that support it: if not given, result is returned.
// Otherwise result is copied into the "out" tensor, which is resized if needed, and "out" is returned.
// inputs are checked for memory overlap with "out".
func (c *opCall) output(result *Tensor, inputs ...*Tensor) (any, error) {
	v, found := c.kwargs["out"]
	if !found || v == nil {
		return result, nil
	}
	out, err := asTensor(v, c.name, "out")
	if err != nil {
		return nil, err
	}
	if out.coo != nil {
		return nil, tensorlib.Errorf(tensorlib.NotImplementedError, "%s(): out= with sparse tensors is not supported", c.name)
	}
	for _, input := range inputs {
		if input.requiresGrad {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"%s(): functions with out=... arguments don't support automatic differentiation, but one of the arguments requires grad.", c.name)
		}
	}
	if out.device != result.device {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"Expected out tensor to have device %s, but got %s instead", result.device, out.device)
	}
	if !dtypesets.CanCast(result.dtype, out.dtype) {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"result type %s can't be cast to the desired output type %s", result.dtype, out.dtype)
	}
	if out.hasInternalOverlap() {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError,
			"unsupported operation: more than one element of the written-to tensor refers to a single memory location. Please clone() the tensor before performing the operation.")
	}
	for _, input := range inputs {
		if out.SharesStorage(input) && !out.sameView(input) {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError,
				"unsupported operation: some elements of the input tensor and the written-to tensor refer to a single memory location. Please clone() the tensor before performing the operation.")
		}
	}
	if !slices.Equal(out.dims, result.dims) {
		// Resize: out gets a new storage.
		*out = Tensor{
			storage: &storage{data: make([]float64, result.Size())},
			dims:    slices.Clone(result.dims),
			strides: shapes.Strides(result.dims),
			dtype:   out.dtype,
			device:  out.device,
		}
	}
	values := result.Values()
	ii := 0
	for indices := range shapes.IterDims(out.dims) {
		out.storage.data[shapes.FlatIndex(indices, out.strides, out.offset)] = quantize(out.dtype, values[ii])
		ii++
	}
	return out, nil
}

// scalarValue converts a Go scalar operand to float64, NaN if not possible.
func scalarValue(v any) float64 {
	f, ok := toFloat(v)
	if !ok {
		return math.NaN()
	}
	return f
}
