// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package oplist

import (
	"fmt"
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/opinfo/opinfotest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var catalogue = []string{
	"abs", "neg", "sign", "sin", "cos", "tan", "tanh", "sinh", "cosh", "asin", "acos", "atan", "exp", "expm1",
	"log", "log2", "log10", "log1p", "sqrt", "rsqrt", "reciprocal", "sigmoid", "erf", "ceil", "floor", "round",
	"trunc", "frac", "square", "isnan", "isfinite", "logical_not", "bitwise_not", "nan_to_num",
	"add", "sub", "mul", "div", "div.trunc_rounding", "div.floor_rounding", "pow", "maximum", "minimum",
	"remainder", "fmod", "atan2", "eq", "ne", "lt", "le", "gt", "ge", "logical_and", "logical_or", "logical_xor",
	"bitwise_and", "bitwise_or", "bitwise_xor",
	"where", "clamp", "lerp",
	"sum", "prod", "mean", "amax", "amin", "argmax", "argmin", "all", "any", "count_nonzero", "logsumexp", "var", "std",
	"cumsum", "cumprod", "softmax", "log_softmax", "sort", "argsort", "topk",
	"reshape", "transpose", "permute", "squeeze", "unsqueeze", "flatten", "flip", "expand", "narrow", "cat", "stack",
	"index_select", "index_add", "index_copy", "index_fill", "gather", "scatter", "scatter_add", "masked_fill",
	"matmul", "mm", "bmm", "mv", "dot", "outer", "tril", "triu", "linalg.inv", "linalg.cholesky", "linalg.det",
	"histc", "zeros_like", "ones_like", "full_like",
}

func build(t *testing.T) *opinfo.Registry {
	registry, err := Build(opinfotest.BuildTestLibrary())
	require.NoError(t, err)
	return registry
}

func TestCatalogue(t *testing.T) {
	registry := build(t)
	assert.Equal(t, catalogue, registry.Names())

	capabilities := registry.Library().Capabilities()
	for op := range registry.All() {
		assert.Truef(t, capabilities.Operations[op.Name], "%s is not an operator of the library", op)
		assert.NotNilf(t, op.Ref, "%s has no reference", op)
		assert.Equalf(t, op.SupportsSparse, capabilities.SparseOperations[op.Name], "sparse support of %s", op)
		assert.Falsef(t, op.SupportedDTypesFor(tensorlib.DeviceAccelerator).Has(dtypes.Float64),
			"%s lists Float64 for accelerators", op)
		for dtype := range op.DTypes {
			assert.Truef(t, capabilities.SupportsDType(tensorlib.DeviceDefault, dtype), "%s lists %s", op, dtype)
		}
	}
	assert.False(t, registry.SupportedDTypes(tensorlib.DeviceAccelerator).Has(dtypes.Float64))
	assert.True(t, registry.SupportedDTypes(tensorlib.DeviceDefault).Has(dtypes.Float64))

	div, found := registry.Lookup("div.floor_rounding")
	require.True(t, found)
	assert.Equal(t, opinfo.Skip, div.Expectation("test_autograd", tensorlib.CPU, dtypes.Float32))
	assert.Equal(t, opinfo.Pass, div.Expectation(opinfotest.TestReference, tensorlib.CPU, dtypes.Float32))
}

func TestRecordsAreFresh(t *testing.T) {
	first, second := Records(), Records()
	require.Len(t, second, len(first))
	first[0].DTypes.Insert(dtypes.Complex64)
	assert.False(t, second[0].DTypes.Has(dtypes.Complex64))
}

func TestDefault(t *testing.T) {
	registry := Default()
	require.NotNil(t, registry)
	assert.Same(t, registry, Default())
	assert.Equal(t, len(catalogue), registry.Len())
}

// TestOperators plays the role of the test runner: every record, on every device, for every supported dtype.
// With -short only the CPU and a few dtypes are tested.
func TestOperators(t *testing.T) {
	registry := build(t)
	lib := registry.Library()
	devices := lib.Devices()
	var dtypeList []dtypes.DType // All supported dtypes.
	if testing.Short() {
		devices = devices[:1]
		dtypeList = []dtypes.DType{dtypes.Bool, dtypes.Int32, dtypes.Float32}
	}
	for op := range registry.All() {
		t.Run(op.FullName(), func(t *testing.T) {
			for _, device := range devices {
				for _, dtype := range opinfotest.TestedDTypes(op, device, dtypeList...) {
					t.Run(fmt.Sprintf("%s/%s", device, dtype), func(t *testing.T) {
						opinfotest.CheckSamples(t, op, device, dtype)
						opinfotest.CheckReference(t, op, device, dtype)
						opinfotest.CheckErrorInputs(t, op, device, dtype)
					})
				}
			}
		})
	}
}

func TestSparseSamples(t *testing.T) {
	registry := build(t)
	sparse := registry.Filter(func(op *opinfo.OpInfo) bool { return op.SupportsSparse })
	var count int
	for op := range sparse {
		count++
		var numSamples int
		for sample := range op.SparseSamples(tensorlib.CPU, dtypes.Float32, false, nil) {
			numSamples++
			x, ok := sample.Input.(tensorlib.Tensor)
			require.Truef(t, ok, "%s: sparse sample input of type %T", op, sample.Input)
			assert.Equal(t, tensorlib.SparseCOO, x.Layout())
			want, err := op.Ref(sample)
			require.NoError(t, err)
			output, err := op.Call(sample)
			require.NoErrorf(t, err, "%s on %s", op, sample)
			got, err := opinfo.Results(output)
			require.NoError(t, err)
			opinfotest.AllClose(t, want[0], got[0], op, " on ", sample)
		}
		assert.NotZerof(t, numSamples, "%s has no sparse samples", op)
	}
	assert.Equal(t, 19, count, "18 unary operators and sum")
}

// TestSinFloat64 checks the float64 agreement of sin with its reference is far tighter than the default
// tolerance.
func TestSinFloat64(t *testing.T) {
	registry := build(t)
	sin, found := registry.Lookup("sin")
	require.True(t, found)
	maxDiff := func(sample *opinfo.SampleInput) float64 {
		want, err := sin.Ref(sample)
		require.NoError(t, err)
		output, err := sin.Call(sample)
		require.NoError(t, err)
		got, err := opinfo.Results(output)
		require.NoError(t, err)
		require.Equal(t, dtypes.Float64, got[0].Shape().DType)
		var diff float64
		gotValues := got[0].Values()
		for ii, w := range want[0].Values() {
			diff = max(diff, math.Abs(w-gotValues[ii]))
		}
		return diff
	}

	x := opinfo.Maker(sin, tensorlib.CPU, dtypes.Float64, false)([]int{5})
	assert.Less(t, maxDiff(opinfo.NewSample(x)), 1e-12)
	for sample := range sin.Samples(tensorlib.CPU, dtypes.Float64, false, nil) {
		assert.Lessf(t, maxDiff(sample), 1e-12, "sin on %s", sample)
	}
}
