// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package references

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/support/xslices"
	"github.com/pkg/errors"
)

// noReference returns opinfo.ErrNoReference with a description of what is not covered.
func noReference(format string, args ...any) error {
	return errors.Wrapf(opinfo.ErrNoReference, format, args...)
}

// param returns the positional argument pos (0 is the first after the input) or else the keyword argument name.
// A nil value is taken as not given.
func param(sample *opinfo.SampleInput, pos int, name string) (any, bool) {
	if pos >= 0 && pos < len(sample.Args) {
		v := sample.Args[pos]
		return v, v != nil
	}
	v, found := sample.Kwarg(name)
	return v, found && v != nil
}

// input returns the input of the sample as an Array.
func input(sample *opinfo.SampleInput) (*Array, error) {
	t, ok := sample.Input.(tensorlib.Tensor)
	if !ok {
		return nil, noReference("input of type %T", sample.Input)
	}
	return FromTensor(t), nil
}

// inputList returns the input of the sample as a list of Arrays, for cat and stack.
func inputList(sample *opinfo.SampleInput) ([]*Array, error) {
	list, ok := sample.Input.([]tensorlib.Tensor)
	if !ok || len(list) == 0 {
		return nil, noReference("input of type %T", sample.Input)
	}
	arrays := make([]*Array, len(list))
	for ii, t := range list {
		arrays[ii] = FromTensor(t)
	}
	return arrays, nil
}

// operand is a tensor or a Go scalar argument of an elementwise operator.
type operand struct {
	array  *Array
	scalar any
}

// operandParam parses an operand parameter. It returns a nil operand if it was not given.
func operandParam(sample *opinfo.SampleInput, pos int, name string) (*operand, error) {
	v, found := param(sample, pos, name)
	if !found {
		return nil, nil
	}
	if t, ok := v.(tensorlib.Tensor); ok {
		return &operand{array: FromTensor(t)}, nil
	}
	if _, ok := toFloat(v); ok {
		return &operand{scalar: v}, nil
	}
	return nil, noReference("argument %q of type %T", name, v)
}

// tensorParam parses a parameter that must be a tensor.
func tensorParam(sample *opinfo.SampleInput, pos int, name string) (*Array, error) {
	v, found := param(sample, pos, name)
	if !found {
		return nil, noReference("missing argument %q", name)
	}
	t, ok := v.(tensorlib.Tensor)
	if !ok {
		return nil, noReference("argument %q of type %T", name, v)
	}
	return FromTensor(t), nil
}

// resultType of the operands, following the promotion rules of the tested library. nil operands are ignored.
func resultType(operands ...*operand) (dtypes.DType, error) {
	var ops []dtypesets.Operand
	for _, o := range operands {
		switch {
		case o == nil:
		case o.array != nil:
			ops = append(ops, dtypesets.TensorOperand(o.array.DType, o.array.Rank()))
		default:
			ops = append(ops, dtypesets.ScalarOperand(o.scalar))
		}
	}
	dtype, err := dtypesets.ResultType(ops...)
	if err != nil {
		return dtypes.InvalidDType, noReference("no result type: %v", err)
	}
	return dtype, nil
}

// broadcastOperands broadcasts the (non-nil) operands together and returns their values cast to dtype.
// The values of nil operands are nil.
func broadcastOperands(dtype dtypes.DType, operands ...*operand) ([]int, [][]float64, error) {
	var allDims [][]int
	for _, o := range operands {
		if o != nil && o.array != nil {
			allDims = append(allDims, o.array.Dims)
		}
	}
	dims, err := shapes.BroadcastDims(allDims...)
	if err != nil {
		return nil, nil, noReference("operands don't broadcast: %v", err)
	}
	values := make([][]float64, len(operands))
	for ii, o := range operands {
		switch {
		case o == nil:
		case o.array != nil:
			values[ii] = o.array.broadcastTo(dims)
			if o.array.DType != dtype {
				castAll(dtype, values[ii])
			}
		default:
			scalar, _ := toFloat(o.scalar)
			values[ii] = filled(xslices.Prod(dims), CastValue(dtype, scalar))
		}
	}
	return dims, values, nil
}

// filled returns a slice of size elements equal to value.
func filled(size int, value float64) []float64 {
	values := make([]float64, size)
	for ii := range values {
		values[ii] = value
	}
	return values
}

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

func intParam(sample *opinfo.SampleInput, pos int, name string, defaultValue int) (int, error) {
	v, found := param(sample, pos, name)
	if !found {
		return defaultValue, nil
	}
	i, ok := toInt(v)
	if !ok {
		return 0, noReference("argument %q of type %T", name, v)
	}
	return i, nil
}

func floatParam(sample *opinfo.SampleInput, pos int, name string, defaultValue float64) (float64, error) {
	v, found := param(sample, pos, name)
	if !found {
		return defaultValue, nil
	}
	if t, ok := v.(tensorlib.Tensor); ok && t.Size() == 1 {
		return t.Values()[0], nil
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, noReference("argument %q of type %T", name, v)
	}
	return f, nil
}

func boolParam(sample *opinfo.SampleInput, pos int, name string, defaultValue bool) (bool, error) {
	v, found := param(sample, pos, name)
	if !found {
		return defaultValue, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, noReference("argument %q of type %T", name, v)
	}
	return b, nil
}

// intsParam parses an int or a list of ints. It returns nil if not given.
func intsParam(sample *opinfo.SampleInput, pos int, name string) ([]int, error) {
	v, found := param(sample, pos, name)
	if !found {
		return nil, nil
	}
	if i, ok := toInt(v); ok {
		return []int{i}, nil
	}
	if list, ok := v.([]int); ok {
		return slices.Clone(list), nil
	}
	return nil, noReference("argument %q of type %T", name, v)
}

// axisParam parses an axis, normalized for the given rank. Rank 0 accepts the axes 0 and -1.
func axisParam(sample *opinfo.SampleInput, pos int, name string, defaultValue, rank int) (int, error) {
	axis, err := intParam(sample, pos, name, defaultValue)
	if err != nil {
		return 0, err
	}
	normalized, err := shapes.NormalizeAxis(axis, rank)
	if err != nil {
		return 0, noReference("invalid axis: %v", err)
	}
	return normalized, nil
}
