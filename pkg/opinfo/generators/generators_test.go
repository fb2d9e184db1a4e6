// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package generators

import (
	"math"
	"slices"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/core/tensorlib/hostlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLib(t *testing.T) tensorlib.Library {
	lib, err := hostlib.New("seed=1")
	require.NoError(t, err)
	return lib
}

// build returns the records bound to lib, by full name.
func build(t *testing.T, lib tensorlib.Library, records ...*opinfo.OpInfo) map[string]*opinfo.OpInfo {
	registry, err := opinfo.NewBuilder(lib).Add(records...).Build()
	require.NoError(t, err)
	bound := make(map[string]*opinfo.OpInfo)
	for op := range registry.All() {
		bound[op.FullName()] = op
	}
	return bound
}

// record returns an OpInfo supporting all the regular dtypes.
func record(name string, category opinfo.Category, samplesFn opinfo.SampleInputsFunc, errorsFn opinfo.ErrorInputsFunc) *opinfo.OpInfo {
	return &opinfo.OpInfo{
		Name:         name,
		Category:     category,
		SampleInputs: samplesFn,
		ErrorInputs:  errorsFn,
		DTypes:       dtypesets.AllTypes(),
	}
}

// runAll calls the operator on every sample and every error input, and returns the samples.
func runAll(t *testing.T, op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType) []*opinfo.SampleInput {
	var all []*opinfo.SampleInput
	for sample := range op.Samples(device, dtype, false, nil) {
		_, err := op.Call(sample)
		require.NoErrorf(t, err, "%s(%s, %s): sample %s", op.FullName(), device, dtype, sample)
		all = append(all, sample)
	}
	for sample := range op.SparseSamples(device, dtype, false, nil) {
		_, err := op.Call(sample)
		require.NoErrorf(t, err, "%s(%s, %s): sparse sample %s", op.FullName(), device, dtype, sample)
	}
	for errorInput := range op.Errors(device, dtype, false, nil) {
		_, err := op.Call(errorInput.Sample)
		require.NoErrorf(t, errorInput.Check(err), "%s(%s, %s): error input %s", op.FullName(), device, dtype, errorInput)
	}
	return all
}

func TestLazySeq(t *testing.T) {
	var attempts int
	seq := lazySeq(func(e *emitter[int]) {
		for ii := range 10 {
			attempts++
			e.emit(ii)
		}
	})
	var got []int
	for v := range seq {
		got = append(got, v)
		if v == 2 {
			break
		}
	}
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, 10, attempts, "emits after the consumer stopped are no-ops")

	got = slices.Collect(seq)
	assert.Len(t, got, 10)
}

func TestReducesEmptyAxis(t *testing.T) {
	assert.True(t, reducesEmptyAxis([]int{0, 3}, nil))
	assert.True(t, reducesEmptyAxis([]int{0, 3}, 0))
	assert.True(t, reducesEmptyAxis([]int{0, 3}, -2))
	assert.False(t, reducesEmptyAxis([]int{0, 3}, 1))
	assert.True(t, reducesEmptyAxis([]int{3, 0}, []int{0, 1}))
	assert.False(t, reducesEmptyAxis([]int{}, 0))
	assert.False(t, reducesEmptyAxis([]int{3, 4}, nil))
}

func TestScalarOf(t *testing.T) {
	assert.Equal(t, true, scalarOf(dtypes.Bool, 2))
	assert.Equal(t, false, scalarOf(dtypes.Bool, 0))
	assert.Equal(t, 2, scalarOf(dtypes.Int16, 2.7))
	assert.Equal(t, 2.5, scalarOf(dtypes.BFloat16, 2.5))
}

func TestConditioned(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib, record("linalg.inv", opinfo.CategoryLinalg, Linalg(Inverse), LinalgErrors(Inverse)))
	op := ops["linalg.inv"]
	makeFn := opinfo.Maker(op, tensorlib.CPU, dtypes.Float64, false)

	// det(L·U) is the product of the diagonal of U, each in [1, 2].
	a := conditioned(op, Inverse, makeFn, tensorlib.CPU, dtypes.Float64, []int{4, 3, 3})
	assert.Equal(t, []int{4, 3, 3}, a.Dims())
	for ii, det := range callOp(op, "linalg.det", a).Values() {
		assert.GreaterOrEqualf(t, det, 1-1e-9, "det of matrix #%d", ii)
		assert.LessOrEqualf(t, det, 8+1e-9, "det of matrix #%d", ii)
	}

	a = conditioned(op, Cholesky, makeFn, tensorlib.CPU, dtypes.Float64, []int{2, 4, 4})
	values, transposed := a.Values(), callOp(op, "transpose", a, 1, 2).Values()
	assert.InDeltaSlice(t, values, transposed, 1e-12, "symmetric")
	require.NotPanics(t, func() { callOp(op, "linalg.cholesky", a) }, "positive-definite")

	a = conditioned(op, Det, makeFn, tensorlib.CPU, dtypes.Float64, []int{3, 3})
	for _, v := range a.Values() {
		assert.True(t, v >= -1 && v <= 1)
	}
	for _, dims := range [][]int{{0, 0}, {0, 3, 3}} {
		assert.Equal(t, dims, conditioned(op, Inverse, makeFn, tensorlib.CPU, dtypes.Float64, dims).Dims())
		assert.Equal(t, dims, conditioned(op, Cholesky, makeFn, tensorlib.CPU, dtypes.Float64, dims).Dims())
	}
}

func TestUnaryElementwise(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib,
		&opinfo.OpInfo{
			Name:               "abs",
			Category:           opinfo.CategoryUnary,
			SampleInputs:       UnaryElementwise,
			SampleInputsSparse: UnarySparse,
			ErrorInputs:        UnaryErrors,
			DTypes:             dtypesets.AllTypes(),
			SupportsAutograd:   true,
			SupportsOut:        true,
			SupportsSparse:     true,
		},
		&opinfo.OpInfo{
			Name:             "log",
			Category:         opinfo.CategoryUnary,
			SampleInputs:     UnaryElementwise,
			ErrorInputs:      UnaryErrors,
			DTypes:           dtypesets.AllTypes(),
			SupportsAutograd: true,
			SupportsOut:      true,
			Domain:           opinfo.Domain{Low: opinfo.Some(0.0)},
			Singularities:    []float64{0},
			ResultDType:      dtypesets.FloatResultType,
		})

	abs := ops["abs"]
	for _, dtype := range []dtypes.DType{dtypes.Float32, dtypes.Int32, dtypes.Uint8} {
		all := runAll(t, abs, tensorlib.CPU, dtype)
		require.NotEmpty(t, all)
		first := all[0].Input.(tensorlib.Tensor)
		assert.Equal(t, []int{5, 5}, first.Dims(), "the canonical sample comes first")
		assert.Equal(t, dtype, first.DType())
	}
	for sample := range abs.SparseSamples(tensorlib.CPU, dtypes.Float32, false, nil) {
		assert.Equal(t, tensorlib.SparseCOO, sample.Input.(tensorlib.Tensor).Layout())
		fill, ok := sample.SparseFillValue.Get()
		assert.True(t, ok)
		assert.Equal(t, 0.0, fill)
	}

	log := ops["log"]
	var singular, nearSingular int
	for _, sample := range runAll(t, log, tensorlib.CPU, dtypes.Float32) {
		x := sample.Input.(tensorlib.Tensor)
		switch sample.Name.OrElse("") {
		case "singularity":
			singular++
			for _, v := range x.Values() {
				assert.Equal(t, 0.0, v)
			}
		case "near singularity":
			nearSingular++
			for _, v := range x.Values() {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		default:
			for _, v := range x.Values() {
				assert.GreaterOrEqual(t, v, 0.0, "values are in the domain")
			}
		}
	}
	assert.Equal(t, 1, singular)
	assert.Equal(t, 1, nearSingular)

	// No singularity samples for integer dtypes.
	for _, sample := range runAll(t, log, tensorlib.CPU, dtypes.Int32) {
		assert.NotContains(t, sample.Name.OrElse(""), "singularity")
	}
}

func TestBinaryElementwise(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib,
		&opinfo.OpInfo{
			Name:             "add",
			Category:         opinfo.CategoryBinary,
			SampleInputs:     BinaryWithAlpha,
			ErrorInputs:      BinaryErrors,
			DTypes:           dtypesets.AllTypesAnd(dtypes.Float16, dtypes.BFloat16),
			SupportsAutograd: true,
			SupportsOut:      true,
		},
		&opinfo.OpInfo{
			Name:           "div",
			Variant:        "trunc_rounding",
			Category:       opinfo.CategoryBinary,
			SampleInputs:   Div(RoundingTrunc),
			ErrorInputs:    DivErrors(RoundingTrunc),
			DTypes:         dtypesets.AllTypes(),
			SupportsOut:    true,
			RHSExcludeZero: true,
		})

	add := ops["add"]
	sim := lib.Devices()[1]
	for _, device := range []tensorlib.Device{tensorlib.CPU, sim} {
		all := runAll(t, add, device, dtypes.Float32)
		var names []string
		for _, sample := range all {
			name := sample.Name.OrElse("")
			names = append(names, name)
			other, isTensor := sample.Arg(0).(tensorlib.Tensor)
			if !isTensor || name != "" {
				continue
			}
			x := sample.Input.(tensorlib.Tensor)
			assert.Equalf(t, !slices.Equal(x.Dims(), other.Dims()), sample.BroadcastsInput, "BroadcastsInput of %s", sample)
		}
		assert.Contains(t, names, "alpha")
		assert.Contains(t, names, "noncontiguous")
		assert.Contains(t, names, "promotion with Int32")
		if device.Class == tensorlib.DeviceAccelerator {
			assert.NotContains(t, names, "promotion with Float64", "Float64 is not supported on the simulated accelerators")
		} else {
			assert.Contains(t, names, "promotion with Float64")
		}
	}

	div := ops["div.trunc_rounding"]
	for _, dtype := range []dtypes.DType{dtypes.Int32, dtypes.Float32} {
		for _, sample := range runAll(t, div, tensorlib.CPU, dtype) {
			mode, found := sample.Kwarg("rounding_mode")
			assert.True(t, found)
			assert.Equal(t, "trunc", mode)
			if other, ok := sample.Arg(0).(tensorlib.Tensor); ok {
				assert.NotContains(t, other.Values(), 0.0, "divisor excludes zero")
			}
		}
	}
}

func TestBinaryDeterministic(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib, &opinfo.OpInfo{
		Name:         "mul",
		Category:     opinfo.CategoryBinary,
		SampleInputs: BinaryElementwise,
		DTypes:       dtypesets.AllTypes(),
	})
	structure := func() []string {
		var all []string
		for sample := range ops["mul"].Samples(tensorlib.CPU, dtypes.Int64, false, nil) {
			all = append(all, sample.String())
		}
		return all
	}
	first := structure()
	require.NotEmpty(t, first)
	assert.Equal(t, first, structure(), "same structure on every call")
}

func TestSamplesDontAlias(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib, &opinfo.OpInfo{
		Name:         "add",
		Category:     opinfo.CategoryBinary,
		SampleInputs: BinaryElementwise,
		DTypes:       dtypesets.AllTypes(),
	})
	samples := slices.Collect(ops["add"].Samples(tensorlib.CPU, dtypes.Float32, false, nil))
	require.Greater(t, len(samples), 1)
	for ii, sample := range samples {
		for _, other := range samples[ii+1:] {
			for _, x := range sample.Tensors() {
				for _, y := range other.Tensors() {
					require.Falsef(t, x.SharesStorage(y), "%s and %s share storage", sample, other)
				}
			}
		}
	}

	first, second := samples[0].Input.(tensorlib.Tensor), samples[1].Input.(tensorlib.Tensor)
	before := second.Values()
	for jj := range first.Size() {
		first.SetValue(jj, 1000)
	}
	assert.Equal(t, before, second.Values())
}

func TestReduction(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib,
		&opinfo.OpInfo{
			Name:               "sum",
			Category:           opinfo.CategoryReduction,
			SampleInputs:       Reduction,
			SampleInputsSparse: ReductionSparse,
			ErrorInputs:        ReductionErrors,
			DTypes:             dtypesets.AllTypes(),
			SupportsSparse:     true,
			Reduction: opinfo.ReductionInfo{
				Identity:             opinfo.Some(0.0),
				SupportsMultipleDims: true,
				ResultDType:          dtypesets.SumResultType,
			},
		},
		&opinfo.OpInfo{
			Name:         "argmax",
			Category:     opinfo.CategoryReduction,
			SampleInputs: Reduction,
			ErrorInputs:  ReductionErrors,
			DTypes:       dtypesets.AllTypes(),
			Reduction: opinfo.ReductionInfo{
				ResultDType: func(dtypes.DType) dtypes.DType { return dtypes.Int64 },
			},
		},
		&opinfo.OpInfo{
			Name:         "var",
			Category:     opinfo.CategoryReduction,
			SampleInputs: VarianceReduction,
			ErrorInputs:  ReductionErrors,
			DTypes:       dtypesets.FloatingTypes(),
			Reduction:    opinfo.ReductionInfo{Identity: opinfo.Some(math.NaN()), SupportsMultipleDims: true},
		})

	var listDims int
	for _, sample := range runAll(t, ops["sum"], tensorlib.CPU, dtypes.Int32) {
		if dim, _ := sample.Kwarg("dim"); dim != nil {
			if _, isList := dim.([]int); isList {
				listDims++
			}
		}
	}
	assert.Equal(t, 4, listDims, "2 lists of dims, with and without keepdim")

	for _, sample := range runAll(t, ops["argmax"], tensorlib.CPU, dtypes.Float32) {
		dim, _ := sample.Kwarg("dim")
		_, isList := dim.([]int)
		assert.False(t, isList, "argmax reduces a single dim")
		x := sample.Input.(tensorlib.Tensor)
		assert.False(t, reducesEmptyAxis(x.Dims(), dim), "no reduction over empty axes without identity: %s", sample)
	}

	var corrections int
	for _, sample := range runAll(t, ops["var"], tensorlib.CPU, dtypes.Float64) {
		if _, found := sample.Kwarg("correction"); found {
			corrections++
		}
	}
	assert.Equal(t, 4, corrections)
}

func TestShapeFamily(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib,
		record("reshape", opinfo.CategoryShape, Reshape, ReshapeErrors),
		record("permute", opinfo.CategoryShape, Permute, PermuteErrors),
		record("squeeze", opinfo.CategoryShape, Squeeze, SqueezeErrors),
		record("flip", opinfo.CategoryShape, Flip, FlipErrors),
		record("narrow", opinfo.CategoryShape, Narrow, NarrowErrors),
		record("cat", opinfo.CategoryShape, Cat, CatErrors),
		record("stack", opinfo.CategoryShape, Stack, StackErrors),
	)
	for name, op := range ops {
		for _, dtype := range []dtypes.DType{dtypes.Float32, dtypes.Int64} {
			assert.NotEmptyf(t, runAll(t, op, tensorlib.CPU, dtype), "%s(%s)", name, dtype)
		}
	}
}

func TestIndexFamily(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib,
		record("index_select", opinfo.CategoryIndexing, IndexFamily(IndexSelect), IndexErrors(IndexSelect)),
		record("index_copy", opinfo.CategoryIndexing, IndexFamily(IndexCopy), IndexErrors(IndexCopy)),
		record("scatter", opinfo.CategoryIndexing, GatherFamily(Scatter), GatherErrors(Scatter)),
		record("gather", opinfo.CategoryIndexing, GatherFamily(Gather), GatherErrors(Gather)),
	)
	for _, op := range ops {
		runAll(t, op, tensorlib.CPU, dtypes.Float32)
	}

	// index_copy indices are unique: copying is well-defined.
	for sample := range ops["index_copy"].Samples(tensorlib.CPU, dtypes.Int32, false, nil) {
		index, ok := sample.Arg(1).(tensorlib.Tensor)
		if !ok || index.Rank() != 1 {
			continue
		}
		values := index.Values()
		unique := slices.Compact(slices.Sorted(slices.Values(values)))
		assert.Lenf(t, unique, len(values), "unique indices in %s", sample)
	}

	idx := gatherIndex(ops["scatter"], tensorlib.CPU, []int{3, 4}, 0, 5)
	assert.Equal(t, dtypes.Int64, idx.DType())
	values := idx.Values()
	for col := range 4 {
		column := []float64{values[col], values[4+col], values[8+col]}
		assert.Len(t, slices.Compact(slices.Sorted(slices.Values(column))), 3, "distinct along the scattered axis")
	}
}

func TestLinalg(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib,
		record("linalg.inv", opinfo.CategoryLinalg, Linalg(Inverse), LinalgErrors(Inverse)),
		record("linalg.cholesky", opinfo.CategoryLinalg, Linalg(Cholesky), LinalgErrors(Cholesky)),
		record("matmul", opinfo.CategoryLinalg, Product(MatMul), ProductErrors(MatMul)),
	)
	for _, op := range ops {
		for _, dtype := range []dtypes.DType{dtypes.Float32, dtypes.Float64} {
			assert.NotEmpty(t, runAll(t, op, tensorlib.CPU, dtype))
		}
	}

	var broadcasting bool
	for sample := range ops["matmul"].Samples(tensorlib.CPU, dtypes.Float32, false, nil) {
		broadcasting = broadcasting || sample.BroadcastsInput
	}
	assert.True(t, broadcasting, "matmul has samples broadcasting the batch axes")
}

func TestCreationAndMisc(t *testing.T) {
	lib := newTestLib(t)
	ops := build(t, lib,
		record("zeros_like", opinfo.CategoryCreation, Like(ZerosLike), LikeErrors(ZerosLike)),
		record("full_like", opinfo.CategoryCreation, Like(FullLike), LikeErrors(FullLike)),
		record("histc", opinfo.CategoryOther, Histc, HistcErrors),
		record("cumsum", opinfo.CategoryScan, AlongDim, AlongDimErrors),
		record("topk", opinfo.CategorySort, TopK, TopKErrors),
		record("nan_to_num", opinfo.CategoryUnary, NanToNum, nil),
	)
	for _, op := range ops {
		for _, dtype := range []dtypes.DType{dtypes.Float32, dtypes.Int16} {
			assert.NotEmpty(t, runAll(t, op, tensorlib.CPU, dtype))
		}
	}

	// The unsupported dtype error of the creation operators needs a device lacking some dtype.
	sim := lib.Devices()[1]
	runAll(t, ops["zeros_like"], sim, dtypes.Float32)
}
