// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package references

import (
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/core/tensorlib/hostlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLib = func() *hostlib.Library {
	lib, err := hostlib.New("seed=3")
	if err != nil {
		panic(err)
	}
	return lib
}()

func tensor(t *testing.T, dtype dtypes.DType, values []float64, dims ...int) tensorlib.Tensor {
	x, err := testLib.FromValues(values, dtype, tensorlib.CPU, dims...)
	require.NoError(t, err)
	return x
}

// run returns the single result of ref for sample.
func run(t *testing.T, ref opinfo.ReferenceFunc, sample *opinfo.SampleInput) *Array {
	results, err := ref(sample)
	require.NoErrorf(t, err, "reference for %s", sample)
	require.Len(t, results, 1)
	return results[0].(*Array)
}

// crossCheck compares the results of ref with the ones of the host library operator name.
func crossCheck(t *testing.T, name string, ref opinfo.ReferenceFunc, sample *opinfo.SampleInput) {
	op := tensorlib.MustOp(testLib, name)
	output, err := op(sample.Input, sample.Args, sample.Kwargs)
	require.NoErrorf(t, err, "%s(%s)", name, sample)
	got, err := opinfo.Results(output)
	require.NoError(t, err)
	want, err := ref(sample)
	require.NoErrorf(t, err, "reference of %s(%s)", name, sample)
	require.Len(t, want, len(got))
	for ii := range got {
		require.Truef(t, got[ii].Shape().Equal(want[ii].Shape()), "%s(%s) output #%d: got %s, reference %s",
			name, sample, ii, got[ii].Shape(), want[ii].Shape())
		assert.InDeltaSlicef(t, want[ii].Values(), got[ii].Values(), 1e-6, "%s(%s) output #%d", name, sample, ii)
	}
}

func TestCastValue(t *testing.T) {
	assert.Equal(t, -2.0, CastValue(dtypes.Int32, -2.7))
	assert.Equal(t, 0.0, CastValue(dtypes.Int64, math.NaN()))
	assert.Equal(t, 44.0, CastValue(dtypes.Uint8, 300))
	assert.Equal(t, -128.0, CastValue(dtypes.Int8, 128))
	assert.Equal(t, 1.0, CastValue(dtypes.Bool, -0.5))
	assert.Equal(t, float64(float32(0.1)), CastValue(dtypes.Float32, 0.1))
	assert.Equal(t, 0.0999755859375, CastValue(dtypes.Float16, 0.1))

	a := NewArray(dtypes.Float64, []float64{1.5, -1.5}, 2)
	b := Cast(a, dtypes.Int16)
	assert.Equal(t, []float64{1, -1}, b.Data)
	assert.Equal(t, []float64{1.5, -1.5}, a.Data)
	assert.Panics(t, func() { NewArray(dtypes.Float32, []float64{1}, 2) })
}

func TestLanes(t *testing.T) {
	x := NewArray(dtypes.Float32, []float64{0, 1, 2, 3, 4, 5}, 2, 3)
	assert.Equal(t, [][]float64{{0, 3}, {1, 4}, {2, 5}}, x.lanes(0))
	assert.Equal(t, [][]float64{{0, 1, 2}, {3, 4, 5}}, x.lanes(1))
	back := fromLanes(dtypes.Float32, x.Dims, 0, 2, x.lanes(0))
	assert.Equal(t, x.Data, back.Data)

	scalar := NewArray(dtypes.Float32, []float64{7})
	assert.Equal(t, [][]float64{{7}}, scalar.lanes(0))
}

func TestNoReference(t *testing.T) {
	sample := opinfo.NewSample("not a tensor")
	_, err := Unary(math.Abs, nil)(sample)
	require.Error(t, err)
	assert.True(t, errors.Is(err, opinfo.ErrNoReference))

	x := tensor(t, dtypes.Int32, []float64{1, 2, 3, 4}, 2, 2)
	_, err = Inverse(opinfo.NewSample(x))
	assert.True(t, errors.Is(err, opinfo.ErrNoReference))
}

func TestElementwise(t *testing.T) {
	x := tensor(t, dtypes.Int32, []float64{1, -2, 3, 0}, 2, 2)
	y := tensor(t, dtypes.Int32, []float64{3, 4}, 2)

	// Int32 tensor with a float scalar promotes to the default float.
	got := run(t, AddScaled(1), opinfo.NewSample(x, 0.5))
	assert.Equal(t, dtypes.Float32, got.DType)
	assert.Equal(t, []float64{1.5, -1.5, 3.5, 0.5}, got.Data)

	got = run(t, AddScaled(-1), opinfo.NewSample(x, y).WithKwarg("alpha", 2))
	assert.Equal(t, dtypes.Int32, got.DType)
	assert.Equal(t, []float64{-5, -10, -3, -8}, got.Data)

	got = run(t, Div, opinfo.NewSample(x, y))
	assert.Equal(t, dtypes.Float32, got.DType)
	assert.InDeltaSlice(t, []float64{1.0 / 3, -0.5, 1, 0}, got.Data, 1e-6)

	got = run(t, Div, opinfo.NewSample(x, y, "floor"))
	assert.Equal(t, dtypes.Int32, got.DType)
	assert.Equal(t, []float64{0, -1, 1, 0}, got.Data)

	assert.Equal(t, 1.0, Remainder(-5, 3))
	assert.Equal(t, -1.0, Remainder(5, -3))
	assert.True(t, math.IsNaN(Maximum(1, math.NaN())))
	assert.Equal(t, 0.0, Sign(math.NaN()))

	got = run(t, BitwiseNot, opinfo.NewSample(x))
	assert.Equal(t, []float64{-2, 1, -4, -1}, got.Data)

	f := tensor(t, dtypes.Float32, []float64{math.NaN(), math.Inf(1), math.Inf(-1), 2}, 4)
	got = run(t, NanToNum, opinfo.NewSample(f, 1.0).WithKwarg("neginf", -5.0))
	assert.Equal(t, []float64{1, math.MaxFloat32, -5, 2}, got.Data)

	for _, sample := range []*opinfo.SampleInput{
		opinfo.NewSample(x, y),
		opinfo.NewSample(x, 2),
		opinfo.NewSample(tensor(t, dtypes.Float32, []float64{0.5, -1.25}, 2), y),
	} {
		crossCheck(t, "add", AddScaled(1), sample)
		crossCheck(t, "mul", Mul, sample)
		crossCheck(t, "div", Div, sample)
	}
}

func TestTernary(t *testing.T) {
	x := tensor(t, dtypes.Float32, []float64{1, math.NaN(), -3, 4}, 4)
	condition := tensor(t, dtypes.Bool, []float64{1, 0, 0, 1}, 4)
	got := run(t, Where, opinfo.NewSample(x, condition, 0))
	assert.Equal(t, []float64{1, 0, 0, 4}, got.Data)

	got = run(t, Clamp, opinfo.NewSample(x, -1, 2))
	assert.Equal(t, 1.0, got.Data[0])
	assert.True(t, math.IsNaN(got.Data[1]))
	assert.Equal(t, []float64{-1, 2}, got.Data[2:])

	got = run(t, Clamp, opinfo.NewSample(x).WithKwarg("max", 0))
	assert.Equal(t, []float64{0, -3, 0}, []float64{got.Data[0], got.Data[2], got.Data[3]})

	end := tensor(t, dtypes.Float32, []float64{3, 3, 3, 3}, 4)
	got = run(t, Lerp, opinfo.NewSample(x, end, 0.5))
	assert.Equal(t, []float64{2, 0, 3.5}, []float64{got.Data[0], got.Data[2], got.Data[3]})

	crossCheck(t, "where", Where, opinfo.NewSample(x, condition, end))
	crossCheck(t, "lerp", Lerp, opinfo.NewSample(end, tensor(t, dtypes.Float32, []float64{-1, 0, 1, 2}, 4), 0.25))
}

func TestReduce(t *testing.T) {
	x := tensor(t, dtypes.Int32, []float64{1, 2, 3, 4, 5, 6}, 2, 3)

	got := run(t, Reduce(Sum), opinfo.NewSample(x))
	assert.Equal(t, dtypes.Int64, got.DType)
	assert.Empty(t, got.Dims)
	assert.Equal(t, []float64{21}, got.Data)

	got = run(t, Reduce(Sum), opinfo.NewSample(x, 1, true))
	assert.Equal(t, []int{2, 1}, got.Dims)
	assert.Equal(t, []float64{6, 15}, got.Data)

	got = run(t, Reduce(Prod), opinfo.NewSample(x).WithKwarg("dim", 0))
	assert.Equal(t, []float64{4, 10, 18}, got.Data)

	got = run(t, Reduce(ArgMax), opinfo.NewSample(x, -1))
	assert.Equal(t, []float64{2, 2}, got.Data)

	got = run(t, Reduce(CountNonzero), opinfo.NewSample(x, []int{0, 1}))
	assert.Equal(t, []float64{6}, got.Data)

	f := tensor(t, dtypes.Float64, []float64{1, 2, 3, 4, math.NaN(), 6}, 2, 3)
	got = run(t, Reduce(AMax), opinfo.NewSample(f, 1))
	assert.Equal(t, 3.0, got.Data[0])
	assert.True(t, math.IsNaN(got.Data[1]))
	got = run(t, Reduce(ArgMin), opinfo.NewSample(f, 1))
	assert.Equal(t, []float64{0, 1}, got.Data)

	v := tensor(t, dtypes.Float64, []float64{1, 2, 3, 4}, 4)
	got = run(t, Reduce(Var), opinfo.NewSample(v))
	assert.InDelta(t, 5.0/3, got.Data[0], 1e-12)
	got = run(t, Reduce(Std), opinfo.NewSample(v).WithKwarg("correction", 0))
	assert.InDelta(t, math.Sqrt(1.25), got.Data[0], 1e-12)
	got = run(t, Reduce(LogSumExp), opinfo.NewSample(tensor(t, dtypes.Float32, nil, 0)))
	assert.True(t, math.IsInf(got.Data[0], -1))

	for _, name := range []string{"sum", "prod", "amax", "argmax"} {
		kind := map[string]ReduceKind{"sum": Sum, "prod": Prod, "amax": AMax, "argmax": ArgMax}[name]
		crossCheck(t, name, Reduce(kind), opinfo.NewSample(x, 0))
		crossCheck(t, name, Reduce(kind), opinfo.NewSample(x, 1, true))
	}
}

func TestScan(t *testing.T) {
	x := tensor(t, dtypes.Int32, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	got := run(t, CumSum, opinfo.NewSample(x, 1))
	assert.Equal(t, dtypes.Int64, got.DType)
	assert.Equal(t, []float64{1, 3, 6, 4, 9, 15}, got.Data)
	got = run(t, CumProd, opinfo.NewSample(x, 0))
	assert.Equal(t, []float64{1, 2, 3, 4, 10, 18}, got.Data)
	_, err := CumSum(opinfo.NewSample(x))
	assert.True(t, errors.Is(err, opinfo.ErrNoReference))

	f := tensor(t, dtypes.Float32, []float64{1, 2, 3, 4}, 2, 2)
	got = run(t, Softmax, opinfo.NewSample(f, 1))
	e := math.Exp(1)
	assert.InDeltaSlice(t, []float64{1 / (1 + e), e / (1 + e), 1 / (1 + e), e / (1 + e)}, got.Data, 1e-6)
	crossCheck(t, "log_softmax", LogSoftmax, opinfo.NewSample(f, 0))
	crossCheck(t, "cumsum", CumSum, opinfo.NewSample(f, -1))
}

func TestSort(t *testing.T) {
	x := tensor(t, dtypes.Float32, []float64{3, math.NaN(), 1, 3}, 4)
	results, err := Sort(opinfo.NewSample(x))
	require.NoError(t, err)
	values, indices := results[0].(*Array), results[1].(*Array)
	assert.Equal(t, []float64{1, 3, 3}, values.Data[:3])
	assert.True(t, math.IsNaN(values.Data[3]))
	assert.Equal(t, []float64{2, 0, 3, 1}, indices.Data)
	assert.Equal(t, dtypes.Int64, indices.DType)

	got := run(t, ArgSort, opinfo.NewSample(x, 0, true))
	assert.Equal(t, []float64{1, 0, 3, 2}, got.Data)

	y := tensor(t, dtypes.Int32, []float64{5, 1, 4, 2, 8, 0}, 2, 3)
	results, err = TopK(opinfo.NewSample(y, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, results[0].Shape().Dimensions)
	assert.Equal(t, []float64{5, 4, 8, 2}, results[0].Values())
	assert.Equal(t, []float64{0, 2, 1, 0}, results[1].Values())
	results, err = TopK(opinfo.NewSample(y, 1, 0).WithKwarg("largest", false))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1, 0}, results[0].Values())

	crossCheck(t, "sort", Sort, opinfo.NewSample(y, 0, true))
	crossCheck(t, "topk", TopK, opinfo.NewSample(y, 3))
}

func TestLinalg(t *testing.T) {
	a := tensor(t, dtypes.Float64, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := tensor(t, dtypes.Float64, []float64{1, 0, 0, 1, 1, 1}, 3, 2)
	got := run(t, MatMul, opinfo.NewSample(a, b))
	assert.Equal(t, []int{2, 2}, got.Dims)
	assert.Equal(t, []float64{4, 5, 10, 11}, got.Data)

	v := tensor(t, dtypes.Float64, []float64{1, 1, 1}, 3)
	got = run(t, MatMul, opinfo.NewSample(a, v))
	assert.Equal(t, []int{2}, got.Dims)
	assert.Equal(t, []float64{6, 15}, got.Data)
	got = run(t, MatMul, opinfo.NewSample(v, v))
	assert.Empty(t, got.Dims)
	assert.Equal(t, []float64{3}, got.Data)

	empty := tensor(t, dtypes.Float64, nil, 2, 0)
	got = run(t, MatMul, opinfo.NewSample(empty, tensor(t, dtypes.Float64, nil, 0, 3)))
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 0}, got.Data)

	got = run(t, Outer, opinfo.NewSample(v, tensor(t, dtypes.Int32, []float64{1, 2}, 2)))
	assert.Equal(t, []int{3, 2}, got.Dims)
	assert.Equal(t, dtypes.Float64, got.DType)

	square := tensor(t, dtypes.Float64, []float64{4, 2, 2, 3}, 2, 2)
	got = run(t, Det, opinfo.NewSample(square))
	assert.Empty(t, got.Dims)
	assert.InDelta(t, 8.0, got.Data[0], 1e-12)
	got = run(t, Det, opinfo.NewSample(tensor(t, dtypes.Float64, []float64{1, 2, 2, 4}, 2, 2)))
	assert.InDelta(t, 0.0, got.Data[0], 1e-12)
	got = run(t, Det, opinfo.NewSample(tensor(t, dtypes.Float32, nil, 3, 0, 0)))
	assert.Equal(t, []float64{1, 1, 1}, got.Data)

	got = run(t, Inverse, opinfo.NewSample(square))
	assert.InDeltaSlice(t, []float64{3.0 / 8, -2.0 / 8, -2.0 / 8, 4.0 / 8}, got.Data, 1e-12)

	got = run(t, Cholesky, opinfo.NewSample(square))
	assert.InDeltaSlice(t, []float64{2, 0, 1, math.Sqrt(2)}, got.Data, 1e-12)
	got = run(t, Cholesky, opinfo.NewSample(square).WithKwarg("upper", true))
	assert.InDeltaSlice(t, []float64{2, 1, 0, math.Sqrt(2)}, got.Data, 1e-12)

	m := tensor(t, dtypes.Int32, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}, 3, 3)
	got = run(t, Triangular(false), opinfo.NewSample(m))
	assert.Equal(t, []float64{1, 0, 0, 4, 5, 0, 7, 8, 9}, got.Data)
	got = run(t, Triangular(true), opinfo.NewSample(m, 1))
	assert.Equal(t, []float64{0, 2, 3, 0, 0, 6, 0, 0, 0}, got.Data)

	crossCheck(t, "matmul", MatMul, opinfo.NewSample(tensor(t, dtypes.Float32, []float64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2),
		tensor(t, dtypes.Float32, []float64{1, -1, 2, 0.5}, 2, 2)))
	crossCheck(t, "linalg.inv", Inverse, opinfo.NewSample(square))
	crossCheck(t, "linalg.det", Det, opinfo.NewSample(square))
	crossCheck(t, "tril", Triangular(false), opinfo.NewSample(m, -1))
}

func TestMisc(t *testing.T) {
	x := tensor(t, dtypes.Float32, []float64{1, 2, 1, 4, math.NaN()}, 5)
	got := run(t, Histc, opinfo.NewSample(tensor(t, dtypes.Float32, []float64{1, 2, 1, 4}, 4), 3))
	assert.Equal(t, []float64{2, 1, 1}, got.Data)
	_, err := Histc(opinfo.NewSample(x, 3))
	assert.True(t, errors.Is(err, opinfo.ErrNoReference), "range of data with NaN is not finite")
	got = run(t, Histc, opinfo.NewSample(x, 4, 0, 2))
	assert.Equal(t, []float64{0, 0, 2, 1}, got.Data)
	got = run(t, Histc, opinfo.NewSample(tensor(t, dtypes.Float32, []float64{5}, 1), 2))
	assert.Equal(t, []float64{0, 1}, got.Data)

	y := tensor(t, dtypes.Int32, []float64{1, 2, 3, 4}, 2, 2)
	got = run(t, Like(OnesLike), opinfo.NewSample(y))
	assert.Equal(t, dtypes.Int32, got.DType)
	assert.Equal(t, []float64{1, 1, 1, 1}, got.Data)
	got = run(t, Like(FullLike), opinfo.NewSample(y, 2.5, dtypes.Float64))
	assert.Equal(t, dtypes.Float64, got.DType)
	assert.Equal(t, []float64{2.5, 2.5, 2.5, 2.5}, got.Data)
	got = run(t, Like(FullLike), opinfo.NewSample(y).WithKwarg("fill_value", 2.5))
	assert.Equal(t, []float64{2, 2, 2, 2}, got.Data)
	_, err = Like(FullLike)(opinfo.NewSample(y))
	assert.True(t, errors.Is(err, opinfo.ErrNoReference))

	crossCheck(t, "histc", Histc, opinfo.NewSample(x, 5, -1, 3))
	crossCheck(t, "zeros_like", Like(ZerosLike), opinfo.NewSample(y).WithKwarg("dtype", dtypes.Bool))
}

func TestShapeOps(t *testing.T) {
	x := tensor(t, dtypes.Int64, []float64{0, 1, 2, 3, 4, 5}, 2, 3)

	got := run(t, Reshape, opinfo.NewSample(x, []int{3, -1}))
	assert.Equal(t, []int{3, 2}, got.Dims)
	got = run(t, Transpose, opinfo.NewSample(x, 0, 1))
	assert.Equal(t, []float64{0, 3, 1, 4, 2, 5}, got.Data)
	got = run(t, Flip, opinfo.NewSample(x, []int{-1}))
	assert.Equal(t, []float64{2, 1, 0, 5, 4, 3}, got.Data)
	got = run(t, Unsqueeze, opinfo.NewSample(x, -1))
	assert.Equal(t, []int{2, 3, 1}, got.Dims)
	got = run(t, Squeeze, opinfo.NewSample(tensor(t, dtypes.Int64, []float64{7}, 1, 1)))
	assert.Empty(t, got.Dims)
	got = run(t, Flatten, opinfo.NewSample(tensor(t, dtypes.Int64, []float64{7})))
	assert.Equal(t, []int{1}, got.Dims)
	got = run(t, Expand, opinfo.NewSample(tensor(t, dtypes.Int64, []float64{1, 2}, 2, 1), []int{2, 2, -1}))
	assert.Equal(t, []int{2, 2, 1}, got.Dims)
	assert.Equal(t, []float64{1, 2, 1, 2}, got.Data)
	got = run(t, Narrow, opinfo.NewSample(x, 1, -2, 2))
	assert.Equal(t, []float64{1, 2, 4, 5}, got.Data)

	y := tensor(t, dtypes.Int32, []float64{6, 7}, 2, 1)
	got = run(t, Cat, opinfo.NewSample([]tensorlib.Tensor{x, y, tensor(t, dtypes.Float32, nil, 0)}, 1))
	assert.Equal(t, dtypes.Int64, got.DType)
	assert.Equal(t, []int{2, 4}, got.Dims)
	assert.Equal(t, []float64{0, 1, 2, 6, 3, 4, 5, 7}, got.Data)
	got = run(t, Stack, opinfo.NewSample([]tensorlib.Tensor{x, x}).WithKwarg("dim", 1))
	assert.Equal(t, []int{2, 2, 3}, got.Dims)
	assert.Equal(t, []float64{0, 1, 2, 0, 1, 2, 3, 4, 5, 3, 4, 5}, got.Data)

	crossCheck(t, "permute", Permute, opinfo.NewSample(x, []int{1, 0}))
	crossCheck(t, "narrow", Narrow, opinfo.NewSample(x, 0, 1, 1))
	crossCheck(t, "cat", Cat, opinfo.NewSample([]tensorlib.Tensor{x, x}))
	crossCheck(t, "stack", Stack, opinfo.NewSample([]tensorlib.Tensor{x, x}, -1))
}

func TestIndexOps(t *testing.T) {
	x := tensor(t, dtypes.Float32, []float64{0, 1, 2, 3, 4, 5}, 2, 3)
	index := tensor(t, dtypes.Int64, []float64{2, 0}, 2)

	got := run(t, Index(IndexSelect), opinfo.NewSample(x, 1, index))
	assert.Equal(t, []int{2, 2}, got.Dims)
	assert.Equal(t, []float64{2, 0, 5, 3}, got.Data)

	source := tensor(t, dtypes.Float32, []float64{10, 20, 30, 40}, 2, 2)
	got = run(t, Index(IndexAdd), opinfo.NewSample(x, 1, index, source).WithKwarg("alpha", 2))
	assert.Equal(t, []float64{40, 1, 22, 83, 4, 65}, got.Data)
	got = run(t, Index(IndexCopy), opinfo.NewSample(x, 1, index, source))
	assert.Equal(t, []float64{20, 1, 10, 40, 4, 30}, got.Data)
	got = run(t, Index(IndexFill), opinfo.NewSample(x, 0, tensor(t, dtypes.Int64, []float64{-1}, 1), -1.5))
	assert.Equal(t, []float64{0, 1, 2, -1.5, -1.5, -1.5}, got.Data)

	gatherIndex := tensor(t, dtypes.Int64, []float64{1, 0, 1}, 1, 3)
	got = run(t, Gather, opinfo.NewSample(x, 0, gatherIndex))
	assert.Equal(t, []int{1, 3}, got.Dims)
	assert.Equal(t, []float64{3, 1, 5}, got.Data)

	src := tensor(t, dtypes.Float32, []float64{7, 8, 9}, 1, 3)
	got = run(t, Scatter(false), opinfo.NewSample(x, 0, gatherIndex, src))
	assert.Equal(t, []float64{0, 8, 2, 7, 4, 9}, got.Data)
	got = run(t, Scatter(true), opinfo.NewSample(x, 0, gatherIndex, src))
	assert.Equal(t, []float64{0, 9, 2, 10, 4, 14}, got.Data)
	got = run(t, Scatter(false), opinfo.NewSample(x, 0, gatherIndex, 1.0))
	assert.Equal(t, []float64{0, 1, 2, 1, 4, 1}, got.Data)
	_, err := Scatter(true)(opinfo.NewSample(x, 0, gatherIndex, 1.0))
	assert.True(t, errors.Is(err, opinfo.ErrNoReference))

	mask := tensor(t, dtypes.Bool, []float64{1, 0, 1}, 3)
	got = run(t, MaskedFill, opinfo.NewSample(x, mask, tensor(t, dtypes.Float32, []float64{-1})))
	assert.Equal(t, []float64{-1, 1, -1, -1, 4, -1}, got.Data)

	crossCheck(t, "index_select", Index(IndexSelect), opinfo.NewSample(x, 1, index))
	crossCheck(t, "index_add", Index(IndexAdd), opinfo.NewSample(x, 1, index, source, 0.5))
	crossCheck(t, "gather", Gather, opinfo.NewSample(x, 1, tensor(t, dtypes.Int64, []float64{2, 2, 0, 1}, 2, 2)))
	crossCheck(t, "scatter_add", Scatter(true), opinfo.NewSample(x, 0, gatherIndex, src))
	crossCheck(t, "masked_fill", MaskedFill, opinfo.NewSample(x, mask, 3))
}
