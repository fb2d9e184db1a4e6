// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opinfo

import (
	"iter"
	"regexp"
	"slices"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/core/tensorlib/hostlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLib(t *testing.T) tensorlib.Library {
	lib, err := hostlib.New("seed=1")
	require.NoError(t, err)
	return lib
}

// twoSamples generates a same-shape binary sample followed by a broadcasting one.
func twoSamples(op *OpInfo, device tensorlib.Device, dtype dtypes.DType, requiresGrad bool, _ map[string]any) iter.Seq[*SampleInput] {
	return func(yield func(*SampleInput) bool) {
		makeT := Maker(op, device, dtype, requiresGrad)
		if !yield(NewSample(makeT([]int{3, 3}), makeT([]int{3, 3}))) {
			return
		}
		yield(NewSample(makeT([]int{4, 1}), makeT([]int{4, 4})).WithBroadcastsInput(true))
	}
}

func testRecord(name string) *OpInfo {
	return &OpInfo{
		Name:         name,
		Category:     CategoryBinary,
		SampleInputs: twoSamples,
		DTypes:       dtypesets.AllTypes(),
	}
}

func TestOptional(t *testing.T) {
	var absent Optional[int]
	assert.False(t, absent.IsPresent())
	assert.Equal(t, 3, absent.OrElse(3))
	assert.Equal(t, "None", absent.String())

	zero := Some(0)
	v, ok := zero.Get()
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.Equal(t, 0, zero.OrElse(3))
	assert.Equal(t, "Some(0)", zero.String())
	assert.False(t, None[string]().IsPresent())
}

func TestSampleInput(t *testing.T) {
	lib := newTestLib(t)
	require.Panics(t, func() { NewSample(nil) })
	var nilTensor *hostlib.Tensor
	require.Panics(t, func() { NewSample(nilTensor) })

	makeT := MakerFor(lib, tensorlib.CPU, dtypes.Float32, true)
	x, y := makeT([]int{2, 3}), makeT([]int{3})
	sample := NewSample(x, y, nil).
		WithKwarg("alpha", 2).
		WithName("broadcast").
		WithBroadcastsInput(true)
	assert.True(t, x.RequiresGrad())
	assert.Nil(t, sample.Arg(1))
	assert.Nil(t, sample.Arg(5))
	alpha, found := sample.Kwarg("alpha")
	assert.True(t, found)
	assert.Equal(t, 2, alpha)
	assert.Equal(t, []tensorlib.Tensor{x, y}, sample.Tensors())
	assert.Equal(t, `"broadcast": (Float32)[2 3]/grad, (Float32)[3]/grad, None, alpha=2 (broadcasts input)`, sample.String())

	list := NewSample([]tensorlib.Tensor{x, y}, 0)
	assert.Len(t, list.Tensors(), 2)
}

func TestCloneSample(t *testing.T) {
	lib := newTestLib(t)
	makeT := MakerFor(lib, tensorlib.CPU, dtypes.Float32, true)
	x := makeT([]int{3, 3}, Noncontiguous())
	list := []tensorlib.Tensor{makeT([]int{2}), makeT([]int{2}, NoGrad())}
	fn := func(output any) any { return output }
	sample := NewSample(x, list, 3).WithKwarg("other", makeT([]int{3})).WithKwarg("mode", "floor").
		WithOutputProcessFnGrad(fn)

	clone := CloneSample(sample)
	require.Len(t, clone.Args, 2)
	assert.Equal(t, 3, clone.Args[1])
	assert.Equal(t, "floor", clone.Kwargs["mode"])
	assert.True(t, clone.OutputProcessFnGrad.IsPresent())

	original, cloned := sample.Tensors(), clone.Tensors()
	require.Len(t, cloned, len(original))
	for ii := range original {
		assert.False(t, cloned[ii].SharesStorage(original[ii]))
		assert.Equal(t, original[ii].Values(), cloned[ii].Values())
		assert.Equal(t, original[ii].RequiresGrad(), cloned[ii].RequiresGrad())
		assert.Equal(t, original[ii].DType(), cloned[ii].DType())
	}

	// Mutating the clone doesn't affect the original.
	before := x.Values()
	clonedX := clone.Input.(tensorlib.Tensor)
	clonedX.SetValue(0, before[0]+1)
	assert.Equal(t, before, x.Values())
	assert.NotEqual(t, before, clonedX.Values())
}

func TestErrorInput(t *testing.T) {
	lib := newTestLib(t)
	x := MakerFor(lib, tensorlib.CPU, dtypes.Float32, false)([]int{2})
	errInput := NewErrorInput(NewSample(x), tensorlib.IndexError, regexp.QuoteMeta("Dimension out of range (expected"))
	assert.True(t, errInput.Matches(tensorlib.Errorf(tensorlib.IndexError, "Dimension out of range (expected to be in range of [-1, 0], but got 1)")))
	assert.False(t, errInput.Matches(tensorlib.Errorf(tensorlib.RuntimeError, "Dimension out of range (expected to be in range of [-1, 0], but got 1)")))
	assert.False(t, errInput.Matches(tensorlib.Errorf(tensorlib.IndexError, "out of memory")))
	assert.False(t, errInput.Matches(nil))
	require.Panics(t, func() { NewErrorInput(NewSample(x), tensorlib.RuntimeError, "(") })
}

func TestBuilder(t *testing.T) {
	lib := newTestLib(t)
	add, sub := testRecord("add"), testRecord("sub")
	sub.Aliases = []string{"subtract"}
	divFloor := testRecord("div")
	divFloor.Variant = "floor_rounding"
	registry, err := NewBuilder(lib).
		Add(add, sub, divFloor).
		Decorate("sub", SkipIf("test_out", tensorlib.DeviceAccelerator, "no out on accelerators")).
		Build()
	require.NoError(t, err)
	assert.Equal(t, 3, registry.Len())
	assert.Equal(t, []string{"add", "sub", "div.floor_rounding"}, registry.Names())
	assert.Equal(t, lib, registry.Library())

	subRecord, found := registry.Lookup("subtract")
	require.True(t, found)
	assert.Equal(t, "sub", subRecord.FullName())
	assert.NotNil(t, subRecord.Op)
	assert.Equal(t, lib, subRecord.Library())
	assert.Empty(t, sub.Decorators, "records given to the builder are not modified")
	assert.Nil(t, sub.Library())
	_, found = registry.Lookup("div")
	assert.False(t, found)
	div, found := registry.Lookup("div.floor_rounding")
	require.True(t, found)
	assert.NotNil(t, div.Op, "variants fall back to the operator's name")

	sim := lib.Devices()[1]
	assert.Equal(t, Skip, subRecord.Expectation("test_out", sim, dtypes.Float32))
	assert.Equal(t, Pass, subRecord.Expectation("test_out", tensorlib.CPU, dtypes.Float32))
	assert.Equal(t, Pass, subRecord.Expectation("test_variant", sim, dtypes.Float32))

	var names []string
	for op := range registry.Filter(func(op *OpInfo) bool { return op.Name != "add" }) {
		names = append(names, op.FullName())
	}
	assert.Equal(t, []string{"sub", "div.floor_rounding"}, names)
	assert.Len(t, slices.Collect(registry.All()), 3)

	// Consistency errors.
	_, err = NewBuilder(lib).Add(testRecord("add"), testRecord("add")).Build()
	assert.ErrorContains(t, err, `duplicate record name "add"`)
	aliased := testRecord("sub")
	aliased.Aliases = []string{"add"}
	_, err = NewBuilder(lib).Add(testRecord("add"), aliased).Build()
	assert.ErrorContains(t, err, `duplicate record name "add"`)
	noGenerator := testRecord("add")
	noGenerator.SampleInputs = nil
	_, err = NewBuilder(lib).Add(noGenerator).Build()
	assert.ErrorContains(t, err, "no sample inputs generator")
	noDTypes := testRecord("add")
	noDTypes.DTypes = nil
	_, err = NewBuilder(lib).Add(noDTypes).Build()
	assert.ErrorContains(t, err, "supports no dtypes")
	_, err = NewBuilder(lib).Add(testRecord("not_an_operator")).Build()
	assert.ErrorContains(t, err, `operator "not_an_operator" not found`)
	_, err = NewBuilder(lib).Add(testRecord("add")).Decorate("mul").Build()
	assert.ErrorContains(t, err, `decorating unknown record "mul"`)
}

func TestSupportedDTypes(t *testing.T) {
	lib := newTestLib(t)
	record := testRecord("add")
	record.DTypesAccelerator = dtypesets.Of(dtypes.Float32, dtypes.Int32)
	record.SupportsAutograd = true
	registry, err := NewBuilder(lib).Add(record).Build()
	require.NoError(t, err)
	op, _ := registry.Lookup("add")
	sim := lib.Devices()[1]
	assert.True(t, op.SupportedDTypes(tensorlib.CPU).Has(dtypes.Int8))
	assert.False(t, op.SupportedDTypes(sim).Has(dtypes.Int8))
	assert.Equal(t, []dtypes.DType{dtypes.Float32}, dtypesets.Sorted(op.SupportedBackwardDTypes(sim)))
	assert.Equal(t, []dtypes.DType{dtypes.Float32, dtypes.Float64}, dtypesets.Sorted(op.SupportedBackwardDTypes(tensorlib.CPU)))
	assert.True(t, registry.SupportedDTypes(tensorlib.DeviceAccelerator).Has(dtypes.Int32))
}

func TestSamplesAndCall(t *testing.T) {
	lib := newTestLib(t)
	registry, err := NewBuilder(lib).Add(testRecord("add")).Build()
	require.NoError(t, err)
	op, _ := registry.Lookup("add")

	var samples []*SampleInput
	for sample := range op.Samples(tensorlib.CPU, dtypes.Int16, false, nil) {
		samples = append(samples, sample)
	}
	require.Len(t, samples, 2)
	for _, sample := range samples {
		for _, tensor := range sample.Tensors() {
			assert.Equal(t, dtypes.Int16, tensor.DType())
		}
	}
	assert.False(t, samples[0].BroadcastsInput)
	assert.True(t, samples[1].BroadcastsInput)

	output, err := op.Call(samples[1])
	require.NoError(t, err)
	results, err := Results(output)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []int{4, 4}, results[0].Shape().Dimensions)

	assert.Empty(t, slices.Collect(op.Errors(tensorlib.CPU, dtypes.Int16, false, nil)))
	assert.Empty(t, slices.Collect(op.SparseSamples(tensorlib.CPU, dtypes.Int16, false, nil)))
	_, err = Results(3)
	assert.Error(t, err)

	unbound := testRecord("add")
	assert.Panics(t, func() { _, _ = unbound.Call(samples[0]) })
	assert.Panics(t, func() { Maker(unbound, tensorlib.CPU, dtypes.Float32, false) })
}

func TestMaker(t *testing.T) {
	lib := newTestLib(t)
	makeInt := MakerFor(lib, tensorlib.CPU, dtypes.Int32, true)
	x := makeInt([]int{2, 2}, Range(3, 4))
	assert.False(t, x.RequiresGrad(), "requires-grad is dropped for integer dtypes")
	assert.Equal(t, []float64{3, 3, 3, 3}, x.Values())

	makeFloat := MakerFor(lib, tensorlib.CPU, dtypes.Float32, true)
	y := makeFloat([]int{4}, Low(1), High(2), Noncontiguous())
	assert.True(t, y.RequiresGrad())
	assert.False(t, y.IsContiguous())
	for _, v := range y.Values() {
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 2.0)
	}
	z := makeFloat([]int{3}, WithDType(dtypes.Int64))
	assert.Equal(t, dtypes.Int64, z.DType())
	assert.False(t, z.RequiresGrad())
	assert.False(t, makeFloat([]int{3}, NoGrad()).RequiresGrad())
	zeros := makeFloat([]int{5}, Range(0, 0), ExcludeZero())
	for _, v := range zeros.Values() {
		assert.NotZero(t, v)
	}
	domain := makeFloat([]int{10}, InDomain(Domain{Low: Some(0.5)}))
	for _, v := range domain.Values() {
		assert.GreaterOrEqual(t, v, 0.5)
	}

	sim := lib.Devices()[1]
	assert.Panics(t, func() { MakerFor(lib, sim, dtypes.Float64, false)([]int{2}) })
}
