// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLib(t *testing.T) *Library {
	lib, err := New("seed=7,accelerators=1")
	require.NoError(t, err)
	return lib
}

// fromValues creates a tensor on the cpu, failing the test on errors.
func fromValues(t *testing.T, lib *Library, dtype dtypes.DType, values []float64, dims ...int) *Tensor {
	tensor, err := lib.FromValues(values, dtype, tensorlib.CPU, dims...)
	require.NoError(t, err)
	return tensor.(*Tensor)
}

// call calls the operator and returns the result as a host tensor.
func call(t *testing.T, lib *Library, name string, input any, args []any, kwargs map[string]any) *Tensor {
	op, found := lib.Op(name)
	require.Truef(t, found, "operator %q not found", name)
	result, err := op(input, args, kwargs)
	require.NoErrorf(t, err, "calling %s", name)
	return result.(*Tensor)
}

// callErr calls the operator and returns its error.
func callErr(t *testing.T, lib *Library, name string, input any, args []any, kwargs map[string]any) error {
	op, found := lib.Op(name)
	require.Truef(t, found, "operator %q not found", name)
	_, err := op(input, args, kwargs)
	require.Errorf(t, err, "calling %s should have failed", name)
	return err
}

func TestNew(t *testing.T) {
	lib := newTestLib(t)
	assert.Equal(t, uint64(7), lib.Seed())
	require.Len(t, lib.Devices(), 2)
	assert.Equal(t, "sim:0", lib.Devices()[1].String())
	assert.Equal(t, tensorlib.DeviceAccelerator, lib.Devices()[1].Class)

	_, err := New("seed=abc")
	require.Error(t, err)
	_, err = New("color=blue")
	require.Error(t, err)

	generic, err := tensorlib.NewWithConfig("host:accelerators=0")
	require.NoError(t, err)
	assert.Len(t, generic.Devices(), 1)

	caps := lib.Capabilities()
	assert.True(t, caps.Operations["add"])
	assert.True(t, caps.SparseOperations["sum"])
	assert.False(t, caps.SupportsDType(tensorlib.DeviceAccelerator, dtypes.Float64))
	assert.True(t, caps.SupportsDType(tensorlib.DeviceDefault, dtypes.Float64))
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, -2.0, quantize(dtypes.Int8, -2.7))
	assert.Equal(t, 44.0, quantize(dtypes.Uint8, 300))
	assert.Equal(t, 246.0, quantize(dtypes.Uint8, -10))
	assert.Equal(t, 1.0, quantize(dtypes.Bool, -0.5))
	assert.Equal(t, 0.0, quantize(dtypes.Int32, math.NaN()))
	assert.Equal(t, float64(float32(0.1)), quantize(dtypes.Float32, 0.1))
	assert.NotEqual(t, 0.1, quantize(dtypes.Float16, 0.1))
	assert.InDelta(t, 0.1, quantize(dtypes.BFloat16, 0.1), 1e-3)
}

func TestMakeTensor(t *testing.T) {
	lib := newTestLib(t)
	for _, dtype := range []dtypes.DType{dtypes.Bool, dtypes.Uint8, dtypes.Int16, dtypes.Float16, dtypes.Float64} {
		tensor, err := lib.MakeTensor(tensorlib.MakeSpec{Dims: []int{4, 5}, DType: dtype, Device: tensorlib.CPU})
		require.NoError(t, err)
		assert.Equal(t, dtype, tensor.DType())
		assert.Equal(t, []int{4, 5}, tensor.Dims())
		low, high := tensorlib.DefaultRange(dtype)
		for _, v := range tensor.Values() {
			assert.GreaterOrEqual(t, v, low)
			assert.LessOrEqual(t, v, high)
			if dtype != dtypes.Float16 && dtype != dtypes.Float64 {
				assert.Less(t, v, high, "integer ranges exclude high")
				assert.Equal(t, math.Trunc(v), v)
			}
		}
	}

	// Noncontiguous.
	tensor, err := lib.MakeTensor(tensorlib.MakeSpec{Dims: []int{3, 4}, DType: dtypes.Float32, Device: tensorlib.CPU, Noncontiguous: true})
	require.NoError(t, err)
	assert.False(t, tensor.IsContiguous())
	assert.Equal(t, []int{8, 2}, tensor.Strides())
	for _, v := range tensor.Values() {
		assert.False(t, math.IsNaN(v))
	}
	clone := tensor.Clone()
	assert.True(t, clone.IsContiguous())
	assert.Equal(t, tensor.Values(), clone.Values())
	assert.False(t, clone.SharesStorage(tensor))
	assert.True(t, tensor.Detach().SharesStorage(tensor))

	// ExcludeZero and fixed range.
	zero := 0.0
	tensor, err = lib.MakeTensor(tensorlib.MakeSpec{Dims: []int{10}, DType: dtypes.Int32, Device: tensorlib.CPU,
		Low: &zero, High: &zero, ExcludeZero: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, tensor.Values())

	// RequiresGrad.
	_, err = lib.MakeTensor(tensorlib.MakeSpec{Dims: []int{2}, DType: dtypes.Int64, Device: tensorlib.CPU, RequiresGrad: true})
	require.Error(t, err)
	assert.Equal(t, tensorlib.TypeError, tensorlib.KindOf(err))
	tensor, err = lib.MakeTensor(tensorlib.MakeSpec{Dims: []int{2}, DType: dtypes.Float32, Device: tensorlib.CPU, RequiresGrad: true})
	require.NoError(t, err)
	assert.True(t, tensor.RequiresGrad())
	assert.False(t, tensor.Detach().RequiresGrad())

	// Devices and dtypes.
	sim := lib.Devices()[1]
	_, err = lib.MakeTensor(tensorlib.MakeSpec{Dims: []int{2}, DType: dtypes.Float64, Device: sim})
	require.Error(t, err)
	_, err = lib.MakeTensor(tensorlib.MakeSpec{Dims: []int{2}, DType: dtypes.Float32, Device: tensorlib.Device{Type: "gpu"}})
	require.Error(t, err)
}

func TestDeterminism(t *testing.T) {
	spec := tensorlib.MakeSpec{Dims: []int{3, 3}, DType: dtypes.Float32, Device: tensorlib.CPU}
	lib1, lib2 := newTestLib(t), newTestLib(t)
	t1, err := lib1.MakeTensor(spec)
	require.NoError(t, err)
	t2, err := lib2.MakeTensor(spec)
	require.NoError(t, err)
	assert.Equal(t, t1.Values(), t2.Values())
}

func TestSetValue(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Int8, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	xt := call(t, lib, "transpose", x, []any{0, 1}, nil)
	xt.SetValue(1, 100)
	assert.Equal(t, []float64{1, 2, 3, 100, 5, 6}, x.Values())
	assert.Equal(t, []int{3, 2}, xt.Dims())
	assert.Equal(t, []float64{1, 100, 2, 5, 3, 6}, xt.Values())
}

func TestUnary(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Float64, []float64{-1.5, 0, 2.5, 4}, 2, 2)
	assert.Equal(t, []float64{1.5, 0, 2.5, 4}, call(t, lib, "abs", x, nil, nil).Values())
	assert.Equal(t, []float64{-2, 0, 2, 4}, call(t, lib, "round", x, nil, nil).Values())
	assert.Equal(t, []float64{-1, 0, 1, 1}, call(t, lib, "sign", x, nil, nil).Values())
	assert.Equal(t, []float64{0, 1, 0, 0}, call(t, lib, "logical_not", x, nil, nil).Values())
	assert.Equal(t, dtypes.Bool, call(t, lib, "isnan", x, nil, nil).DType())

	ints := fromValues(t, lib, dtypes.Int32, []float64{0, 1, 4}, 3)
	sqrt := call(t, lib, "sqrt", ints, nil, nil)
	assert.Equal(t, dtypes.Float32, sqrt.DType())
	assert.Equal(t, []float64{0, 1, 2}, sqrt.Values())
	assert.Equal(t, []float64{-1, -2, -5}, call(t, lib, "bitwise_not", ints, nil, nil).Values())
	err := callErr(t, lib, "frac", ints, nil, nil)
	assert.Contains(t, err.Error(), "not implemented for")

	bools := fromValues(t, lib, dtypes.Bool, []float64{0, 1}, 2)
	err = callErr(t, lib, "neg", bools, nil, nil)
	assert.Contains(t, err.Error(), "Negation")

	special := fromValues(t, lib, dtypes.Float32, []float64{math.NaN(), math.Inf(1), math.Inf(-1), 3}, 4)
	nanToNum := call(t, lib, "nan_to_num", special, nil, map[string]any{"nan": 1.0, "neginf": -5.0})
	assert.Equal(t, []float64{1, math.MaxFloat32, -5, 3}, nanToNum.Values())
}

func TestBinary(t *testing.T) {
	lib := newTestLib(t)
	a := fromValues(t, lib, dtypes.Int16, []float64{1, 2, 3, 4}, 4, 1)
	b := fromValues(t, lib, dtypes.Uint8, []float64{10, 20}, 2)
	sum := call(t, lib, "add", a, []any{b}, nil)
	assert.Equal(t, dtypes.Int16, sum.DType())
	assert.Equal(t, []int{4, 2}, sum.Dims())
	assert.Equal(t, []float64{11, 21, 12, 22, 13, 23, 14, 24}, sum.Values())

	withAlpha := call(t, lib, "sub", a, []any{b}, map[string]any{"alpha": 2})
	assert.Equal(t, []float64{-19, -39, -18, -38, -17, -37, -16, -36}, withAlpha.Values())
	err := callErr(t, lib, "add", a, []any{b}, map[string]any{"alpha": 0.5})
	assert.Contains(t, err.Error(), "alpha must not be a floating point number")

	// Scalar promotion.
	half := call(t, lib, "mul", a, []any{0.5}, nil)
	assert.Equal(t, dtypes.Float32, half.DType())
	assert.Equal(t, []float64{0.5, 1, 1.5, 2}, half.Values())

	// True division and rounding modes.
	x := fromValues(t, lib, dtypes.Int32, []float64{7, -7}, 2)
	y := fromValues(t, lib, dtypes.Int32, []float64{2, 2}, 2)
	assert.Equal(t, []float64{3.5, -3.5}, call(t, lib, "div", x, []any{y}, nil).Values())
	assert.Equal(t, []float64{3, -3}, call(t, lib, "div", x, []any{y}, map[string]any{"rounding_mode": "trunc"}).Values())
	assert.Equal(t, []float64{3, -4}, call(t, lib, "div", x, []any{y}, map[string]any{"rounding_mode": "floor"}).Values())
	err = callErr(t, lib, "div", x, []any{y}, map[string]any{"rounding_mode": "ceil"})
	assert.Equal(t, tensorlib.ValueError, tensorlib.KindOf(err))
	assert.Equal(t, []float64{1, 1}, call(t, lib, "remainder", x, []any{y}, nil).Values())
	assert.Equal(t, []float64{1, -1}, call(t, lib, "fmod", x, []any{y}, nil).Values())
	zeros := fromValues(t, lib, dtypes.Int32, []float64{0, 0}, 2)
	err = callErr(t, lib, "remainder", x, []any{zeros}, nil)
	assert.Contains(t, err.Error(), "ZeroDivisionError")

	// Comparisons.
	assert.Equal(t, []float64{1, 0}, call(t, lib, "gt", x, []any{0}, nil).Values())

	// Errors.
	c := fromValues(t, lib, dtypes.Int16, []float64{1, 2, 3}, 3)
	err = callErr(t, lib, "add", b, []any{c}, nil)
	assert.Contains(t, err.Error(), "The size of tensor a (2) must match the size of tensor b (3) at non-singleton dimension 0")
	floats := fromValues(t, lib, dtypes.Float32, []float64{1, 2}, 2)
	err = callErr(t, lib, "bitwise_and", floats, []any{floats}, nil)
	assert.Contains(t, err.Error(), "not implemented for")

	sim, err := lib.FromValues([]float64{1, 2}, dtypes.Float32, lib.Devices()[1], 2)
	require.NoError(t, err)
	err = callErr(t, lib, "add", floats, []any{sim}, nil)
	assert.Contains(t, err.Error(), "Expected all tensors to be on the same device")
}

func TestOut(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Float32, []float64{1, 2, 3, 4}, 4)
	out := fromValues(t, lib, dtypes.Float32, []float64{0}, 1)
	result := call(t, lib, "neg", x, nil, map[string]any{"out": out})
	assert.Same(t, out, result)
	assert.Equal(t, []float64{-1, -2, -3, -4}, out.Values())

	// Full aliasing is fine, partial aliasing is not.
	call(t, lib, "add", x, []any{1.0}, map[string]any{"out": x})
	assert.Equal(t, []float64{2, 3, 4, 5}, x.Values())
	partial := call(t, lib, "narrow", x, []any{0, 1, 2}, nil)
	twoValues := fromValues(t, lib, dtypes.Float32, []float64{1, 1}, 2)
	head := call(t, lib, "narrow", x, []any{0, 0, 2}, nil)
	err := callErr(t, lib, "add", head, []any{twoValues}, map[string]any{"out": partial})
	assert.Contains(t, err.Error(), "some elements of the input tensor and the written-to tensor refer to a single memory location")

	intOut := fromValues(t, lib, dtypes.Int32, []float64{0, 0, 0, 0}, 4)
	err = callErr(t, lib, "sin", x, nil, map[string]any{"out": intOut})
	assert.Contains(t, err.Error(), "can't be cast to the desired output type")
}

func TestReductions(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Int32, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	sum := call(t, lib, "sum", x, nil, nil)
	assert.Equal(t, dtypes.Int64, sum.DType())
	assert.Equal(t, []float64{21}, sum.Values())
	assert.Equal(t, 0, sum.Rank())

	sum = call(t, lib, "sum", x, []any{1, true}, nil)
	assert.Equal(t, []int{2, 1}, sum.Dims())
	assert.Equal(t, []float64{6, 15}, sum.Values())
	sum = call(t, lib, "sum", x, []any{[]int{0, -1}}, nil)
	assert.Equal(t, []float64{21}, sum.Values())

	assert.Equal(t, []float64{4, 5, 6}, call(t, lib, "amax", x, []any{0}, nil).Values())
	assert.Equal(t, []float64{2, 2}, call(t, lib, "argmax", x, []any{1}, nil).Values())
	assert.Equal(t, []float64{0}, call(t, lib, "argmin", x, nil, nil).Values())
	assert.Equal(t, []float64{6, 120}, call(t, lib, "prod", x, []any{1}, nil).Values())

	floats := fromValues(t, lib, dtypes.Float64, []float64{1, 2, 3, 4}, 4)
	assert.Equal(t, []float64{2.5}, call(t, lib, "mean", floats, nil, nil).Values())
	assert.InDelta(t, 1.25, call(t, lib, "var", floats, nil, map[string]any{"correction": 0}).Values()[0], 1e-12)
	assert.InDelta(t, 5.0/3.0, call(t, lib, "var", floats, nil, nil).Values()[0], 1e-12)
	err := callErr(t, lib, "mean", x, nil, nil)
	assert.Contains(t, err.Error(), "could not infer output dtype")

	empty := fromValues(t, lib, dtypes.Float32, nil, 0, 3)
	assert.Equal(t, []float64{0, 0, 0}, call(t, lib, "sum", empty, []any{0}, nil).Values())
	err = callErr(t, lib, "amax", empty, []any{0}, nil)
	assert.Equal(t, tensorlib.IndexError, tensorlib.KindOf(err))
	assert.Equal(t, []int{0}, call(t, lib, "amax", empty, []any{1}, nil).Dims())

	err = callErr(t, lib, "sum", x, []any{2}, nil)
	assert.Equal(t, tensorlib.IndexError, tensorlib.KindOf(err))
	assert.Contains(t, err.Error(), "Dimension out of range (expected to be in range of [-2, 1], but got 2)")
	err = callErr(t, lib, "sum", x, []any{[]int{0, 0}}, nil)
	assert.Contains(t, err.Error(), "appears multiple times")
}

func TestScansAndSort(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Float64, []float64{3, 1, 2, 1, 5, math.NaN()}, 2, 3)
	assert.Equal(t, []float64{3, 4, 6, 1, 6, math.NaN()}[:5], call(t, lib, "cumsum", x, []any{1}, nil).Values()[:5])
	assert.Equal(t, []float64{3, 1, 2, 3, 5, math.NaN()}[:5], call(t, lib, "cumprod", x, []any{0}, nil).Values()[:5])

	op, _ := lib.Op("sort")
	result, err := op(x, []any{1}, nil)
	require.NoError(t, err)
	sorted := result.([]tensorlib.Tensor)
	require.Len(t, sorted, 2)
	assert.Equal(t, []float64{1, 2, 3, 1, 5}, sorted[0].Values()[:5])
	assert.True(t, math.IsNaN(sorted[0].Values()[5]))
	assert.Equal(t, []float64{1, 2, 0, 0, 1, 2}, sorted[1].Values())

	assert.Equal(t, []float64{0, 2, 1, 2, 1, 0}, call(t, lib, "argsort", x, nil, map[string]any{"descending": true}).Values())

	op, _ = lib.Op("topk")
	result, err = op(fromValues(t, lib, dtypes.Int32, []float64{4, 9, 1, 9}, 4), []any{2}, nil)
	require.NoError(t, err)
	topk := result.([]tensorlib.Tensor)
	assert.Equal(t, []float64{9, 9}, topk[0].Values())
	assert.Equal(t, []float64{1, 3}, topk[1].Values())
	_, err = op(x, []any{4}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selected index k out of range")

	softmax := call(t, lib, "softmax", fromValues(t, lib, dtypes.Float64, []float64{1, 1}, 2), []any{0}, nil)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, softmax.Values(), 1e-12)
}

func TestShapeOps(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Float32, []float64{0, 1, 2, 3, 4, 5}, 2, 3)
	reshaped := call(t, lib, "reshape", x, []any{[]int{3, -1}}, nil)
	assert.Equal(t, []int{3, 2}, reshaped.Dims())
	assert.True(t, reshaped.SharesStorage(x))
	err := callErr(t, lib, "reshape", x, []any{[]int{7}}, nil)
	assert.Contains(t, err.Error(), "shape '[7]' is invalid for input of size 6")

	permuted := call(t, lib, "permute", x, []any{[]int{1, 0}}, nil)
	assert.Equal(t, []float64{0, 3, 1, 4, 2, 5}, permuted.Values())
	assert.Equal(t, []float64{0, 3, 1, 4, 2, 5}, call(t, lib, "flatten", permuted, nil, nil).Values())
	assert.Equal(t, []float64{2, 1, 0, 5, 4, 3}, call(t, lib, "flip", x, []any{[]int{1}}, nil).Values())
	assert.Equal(t, []int{2, 1, 3}, call(t, lib, "unsqueeze", x, []any{1}, nil).Dims())
	assert.Equal(t, []int{2, 3}, call(t, lib, "squeeze", call(t, lib, "unsqueeze", x, []any{-1}, nil), nil, nil).Dims())

	col := fromValues(t, lib, dtypes.Float32, []float64{1, 2}, 2, 1)
	expanded := call(t, lib, "expand", col, []any{[]int{2, 2}}, nil)
	assert.Equal(t, []float64{1, 1, 2, 2}, expanded.Values())
	err = callErr(t, lib, "expand", x, []any{[]int{2, 4}}, nil)
	assert.Contains(t, err.Error(), "must match the existing size (3) at non-singleton dimension 1")

	assert.Equal(t, []float64{1, 2, 4, 5}, call(t, lib, "narrow", x, []any{1, 1, 2}, nil).Values())

	cat := call(t, lib, "cat", []tensorlib.Tensor{x, x}, []any{1}, nil)
	assert.Equal(t, []int{2, 6}, cat.Dims())
	assert.Equal(t, []float64{0, 1, 2, 0, 1, 2, 3, 4, 5, 3, 4, 5}, cat.Values())
	err = callErr(t, lib, "cat", []tensorlib.Tensor{}, nil, nil)
	assert.Contains(t, err.Error(), "expected a non-empty list of Tensors")
	err = callErr(t, lib, "cat", []tensorlib.Tensor{x, col}, nil, nil)
	assert.Contains(t, err.Error(), "Sizes of tensors must match except in dimension 0")

	stacked := call(t, lib, "stack", []tensorlib.Tensor{x, x}, []any{2}, nil)
	assert.Equal(t, []int{2, 3, 2}, stacked.Dims())
	assert.Equal(t, []float64{0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5}, stacked.Values())
}

func TestIndexOps(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Float32, []float64{0, 1, 2, 3, 4, 5}, 2, 3)
	index := fromValues(t, lib, dtypes.Int64, []float64{2, 0}, 2)
	assert.Equal(t, []float64{2, 0, 5, 3}, call(t, lib, "index_select", x, []any{1, index}, nil).Values())

	source := fromValues(t, lib, dtypes.Float32, []float64{10, 20, 30, 40}, 2, 2)
	assert.Equal(t, []float64{20, 1, 12, 43, 4, 35},
		call(t, lib, "index_add", x, []any{1, index, source}, nil).Values())
	assert.Equal(t, []float64{20, 1, 10, 40, 4, 30},
		call(t, lib, "index_copy", x, []any{1, index, source}, nil).Values())
	assert.Equal(t, []float64{-1, 1, -1, -1, 4, -1},
		call(t, lib, "index_fill", x, []any{1, index, -1}, nil).Values())

	badIndex := fromValues(t, lib, dtypes.Int64, []float64{3}, 1)
	err := callErr(t, lib, "index_select", x, []any{1, badIndex}, nil)
	assert.Equal(t, tensorlib.IndexError, tensorlib.KindOf(err))

	gatherIndex := fromValues(t, lib, dtypes.Int64, []float64{1, 0, 1, 1, 1, 0}, 2, 3)
	assert.Equal(t, []float64{3, 1, 5, 3, 4, 2}, call(t, lib, "gather", x, []any{0, gatherIndex}, nil).Values())
	zeros := fromValues(t, lib, dtypes.Float32, make([]float64, 6), 2, 3)
	added := call(t, lib, "scatter_add", zeros, []any{0, gatherIndex, x}, nil)
	assert.Equal(t, []float64{0, 1, 5, 3, 4, 2}, added.Values())

	err = callErr(t, lib, "gather", x, []any{0, index}, nil)
	assert.Contains(t, err.Error(), "Index tensor must have the same number of dimensions as input tensor")

	mask := fromValues(t, lib, dtypes.Bool, []float64{1, 0, 1}, 3)
	assert.Equal(t, []float64{9, 1, 9, 9, 4, 9}, call(t, lib, "masked_fill", x, []any{mask, 9}, nil).Values())
}

func TestLinalg(t *testing.T) {
	lib := newTestLib(t)
	a := fromValues(t, lib, dtypes.Float64, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := fromValues(t, lib, dtypes.Float64, []float64{1, 0, 0, 1, 1, 1}, 3, 2)
	assert.Equal(t, []float64{4, 5, 10, 11}, call(t, lib, "mm", a, []any{b}, nil).Values())
	v := fromValues(t, lib, dtypes.Float64, []float64{1, 1, 1}, 3)
	assert.Equal(t, []float64{6, 15}, call(t, lib, "matmul", a, []any{v}, nil).Values())
	assert.Equal(t, []float64{3}, call(t, lib, "dot", v, []any{v}, nil).Values())
	err := callErr(t, lib, "mm", a, []any{a}, nil)
	assert.Contains(t, err.Error(), "mat1 and mat2 shapes cannot be multiplied (2x3 and 2x3)")

	m := fromValues(t, lib, dtypes.Float64, []float64{4, 7, 2, 6}, 2, 2)
	inv := call(t, lib, "linalg.inv", m, nil, nil)
	expected := []float64{0.6, -0.7, -0.2, 0.4}
	for ii, v := range inv.Values() {
		assert.InDelta(t, expected[ii], v, 1e-12)
	}
	assert.InDelta(t, 10.0, call(t, lib, "linalg.det", m, nil, nil).Values()[0], 1e-12)
	singular := fromValues(t, lib, dtypes.Float64, []float64{1, 2, 2, 4}, 2, 2)
	err = callErr(t, lib, "linalg.inv", singular, nil, nil)
	assert.Contains(t, err.Error(), "singular")

	spd := fromValues(t, lib, dtypes.Float64, []float64{4, 2, 2, 3}, 2, 2)
	l := call(t, lib, "linalg.cholesky", spd, nil, nil).Values()
	assert.InDelta(t, 2.0, l[0], 1e-12)
	assert.Equal(t, 0.0, l[1])
	assert.InDelta(t, 1.0, l[2], 1e-12)
	assert.InDelta(t, math.Sqrt(2), l[3], 1e-12)
	err = callErr(t, lib, "linalg.cholesky", singular, nil, nil)
	assert.Contains(t, err.Error(), "not positive-definite")

	assert.Equal(t, []float64{1, 0, 0, 4, 5, 0}, call(t, lib, "tril", a, nil, nil).Values())
	assert.Equal(t, []float64{0, 2, 3, 0, 0, 6}, call(t, lib, "triu", a, []any{1}, nil).Values())
}

func TestHistcAndLike(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Float32, []float64{0, 1, 1, 2, 3, 4, 10}, 7)
	hist := call(t, lib, "histc", x, []any{4, 0, 4}, nil)
	assert.Equal(t, []float64{1, 2, 1, 2}, hist.Values())
	err := callErr(t, lib, "histc", x, []any{0}, nil)
	assert.Contains(t, err.Error(), "bins must be > 0")
	err = callErr(t, lib, "histc", x, []any{4, 3, 1}, nil)
	assert.Contains(t, err.Error(), "max must be larger than min")

	full := call(t, lib, "full_like", x, []any{2.5}, nil)
	assert.Equal(t, []float64{2.5, 2.5, 2.5, 2.5, 2.5, 2.5, 2.5}, full.Values())
	ones := call(t, lib, "ones_like", x, nil, map[string]any{"dtype": dtypes.Int8})
	assert.Equal(t, dtypes.Int8, ones.DType())
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 1}, ones.Values())
}

func TestSparse(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Float32, []float64{0, -2, 0, 3}, 2, 2)
	sparse, err := lib.ToSparseCOO(x)
	require.NoError(t, err)
	assert.Equal(t, tensorlib.SparseCOO, sparse.Layout())
	assert.Equal(t, x.Values(), sparse.Values())

	abs := call(t, lib, "abs", sparse, nil, nil)
	assert.True(t, abs.IsSparse())
	assert.Equal(t, []float64{0, 2, 0, 3}, abs.Values())
	assert.Equal(t, []float64{1}, call(t, lib, "sum", sparse, nil, nil).Values())

	err = callErr(t, lib, "cos", sparse, nil, nil)
	assert.Equal(t, tensorlib.NotImplementedError, tensorlib.KindOf(err))
}

func TestTernary(t *testing.T) {
	lib := newTestLib(t)
	x := fromValues(t, lib, dtypes.Int32, []float64{-3, 0, 3, 6}, 4)
	condition := fromValues(t, lib, dtypes.Bool, []float64{1, 0, 1, 0}, 4)
	where := call(t, lib, "where", x, []any{condition, 0.5}, nil)
	assert.Equal(t, dtypes.Float32, where.DType())
	assert.Equal(t, []float64{-3, 0.5, 3, 0.5}, where.Values())
	err := callErr(t, lib, "where", x, []any{x, 0}, nil)
	assert.Contains(t, err.Error(), "where expected condition to be a boolean tensor")

	assert.Equal(t, []float64{-1, 0, 3, 4}, call(t, lib, "clamp", x, []any{-1, 4}, nil).Values())
	assert.Equal(t, []float64{-3, 0, 2, 2}, call(t, lib, "clamp", x, nil, map[string]any{"max": 2}).Values())
	err = callErr(t, lib, "clamp", x, nil, nil)
	assert.Contains(t, err.Error(), "At least one of 'min' or 'max' must not be None")

	start := fromValues(t, lib, dtypes.Float64, []float64{0, 10}, 2)
	end := fromValues(t, lib, dtypes.Float64, []float64{10, 20}, 2)
	assert.Equal(t, []float64{5, 15}, call(t, lib, "lerp", start, []any{end, 0.5}, nil).Values())
	err = callErr(t, lib, "lerp", x, []any{x, 0.5}, nil)
	assert.Contains(t, err.Error(), "not implemented for")
}
