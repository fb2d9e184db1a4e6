// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package opinfotest holds test utilities for packages that depend on opinfo: they play the role of the
// test runner, enumerating the samples of a record and checking them against the library under test.
package opinfotest

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/core/tensorlib/hostlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Names of the tests, as matched by opinfo.DecorateInfo.TestName.
const (
	TestSamples   = "test_samples"
	TestReference = "test_reference"
	TestErrors    = "test_errors"
)

var (
	libraryOnce   sync.Once
	cachedLibrary tensorlib.Library
)

// BuildTestLibrary returns the library used by tests, created once. It sets tensorlib.DefaultConfig to the
// host library with a fixed seed: it can be overwritten by the OPINFO_LIBRARY environment variable.
func BuildTestLibrary() tensorlib.Library {
	tensorlib.DefaultConfig = hostlib.LibraryName + ":seed=42"
	libraryOnce.Do(func() {
		cachedLibrary = tensorlib.MustNew()
		fmt.Printf("Library: %s\n", cachedLibrary.Description())
	})
	return cachedLibrary
}

// Tolerance returns the absolute and relative tolerances used to compare values of the given dtype:
// 0 (exact comparison) for integers and Bool.
func Tolerance(dtype dtypes.DType) (atol, rtol float64) {
	switch dtype {
	case dtypes.Float16:
		return 1e-5, 1e-3
	case dtypes.BFloat16:
		return 1e-5, 1.6e-2
	case dtypes.Float32:
		return 1e-5, 1.3e-6
	case dtypes.Float64:
		return 1e-7, 1e-7
	}
	return 0, 0
}

// Close returns whether got is within the tolerances of the dtype from want. NaN is close to NaN, and
// infinities are only close to the same infinity.
func Close(dtype dtypes.DType, want, got float64) bool {
	switch {
	case math.IsNaN(want) || math.IsNaN(got):
		return math.IsNaN(want) && math.IsNaN(got)
	case math.IsInf(want, 0) || math.IsInf(got, 0):
		return want == got
	}
	atol, rtol := Tolerance(dtype)
	return math.Abs(want-got) <= atol+rtol*math.Abs(want)
}

// AllClose checks that got has the shape and dtype of want, and values within the tolerances of its dtype.
// It reports the first mismatches to t and returns whether the check passed.
func AllClose(t testing.TB, want, got opinfo.Result, msgAndArgs ...any) bool {
	t.Helper()
	if !assert.Truef(t, want.Shape().Equal(got.Shape()), "shape %s, wanted %s: %s",
		got.Shape(), want.Shape(), fmt.Sprint(msgAndArgs...)) {
		return false
	}
	dtype := want.Shape().DType
	wantValues, gotValues := want.Values(), got.Values()
	var mismatches int
	for ii, w := range wantValues {
		if Close(dtype, w, gotValues[ii]) {
			continue
		}
		mismatches++
		if mismatches <= 3 {
			t.Errorf("element #%d is %g, wanted %g (%s): %s", ii, gotValues[ii], w, dtype, fmt.Sprint(msgAndArgs...))
		}
	}
	return mismatches == 0
}

// skipped returns whether the test is skipped for the record, device and dtype by one of its decorators.
func skipped(t testing.TB, op *opinfo.OpInfo, testName string, device tensorlib.Device, dtype dtypes.DType) bool {
	switch op.Expectation(testName, device, dtype) {
	case opinfo.Skip:
		t.Logf("%s(%s) on %s: %s skipped", op.FullName(), dtype, device, testName)
		return true
	case opinfo.ExpectedFailure:
		t.Logf("%s(%s) on %s: %s is an expected failure, not run", op.FullName(), dtype, device, testName)
		return true
	}
	return false
}

// CheckSamples enumerates the samples of op for the device and dtype, and checks that:
//
//   - there is at least one sample, and the enumeration is deterministic in structure;
//   - the tensors of each sample are on the device, and the input (if a tensor) has the dtype;
//   - the operator runs on each sample without error, and returns tensors on the device.
//
// It returns the number of samples.
func CheckSamples(t *testing.T, op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType) int {
	t.Helper()
	if skipped(t, op, TestSamples, device, dtype) {
		return 0
	}
	var descriptions []string
	for sample := range op.Samples(device, dtype, false, nil) {
		descriptions = append(descriptions, sample.String())
		for _, x := range sample.Tensors() {
			assert.Equalf(t, device, x.Device(), "%s: tensor on the wrong device in %s", op, sample)
		}
		if x, ok := sample.Input.(tensorlib.Tensor); ok {
			assert.Equalf(t, dtype, x.DType(), "%s: input dtype of %s", op, sample)
		}
		output, err := op.Call(sample)
		if !assert.NoErrorf(t, err, "%s(%s) failed on %s", op, dtype, sample) {
			continue
		}
		results, err := opinfo.Results(output)
		require.NoErrorf(t, err, "%s returned an unexpected output for %s", op, sample)
		for _, result := range results {
			if x, ok := result.(tensorlib.Tensor); ok {
				assert.Equalf(t, device, x.Device(), "%s: output on the wrong device for %s", op, sample)
			}
		}
	}
	require.NotEmptyf(t, descriptions, "%s has no samples for %s on %s", op, dtype, device)

	var again []string
	for sample := range op.Samples(device, dtype, false, nil) {
		again = append(again, sample.String())
	}
	assert.Truef(t, slices.Equal(descriptions, again), "%s: the samples differ in structure on a second enumeration", op)
	return len(descriptions)
}

// CheckReference compares the outputs of op with its reference implementation, for every sample of the device
// and dtype the reference covers. It returns the number of samples compared.
//
// Records without a reference are skipped.
func CheckReference(t *testing.T, op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType) int {
	t.Helper()
	if op.Ref == nil {
		t.Logf("%s has no reference", op)
		return 0
	}
	if skipped(t, op, TestReference, device, dtype) {
		return 0
	}
	var compared int
	for sample := range op.Samples(device, dtype, false, nil) {
		want, err := op.Ref(sample)
		if errors.Is(err, opinfo.ErrNoReference) {
			continue
		}
		if !assert.NoErrorf(t, err, "%s: reference failed for %s", op, sample) {
			continue
		}
		output, err := op.Call(sample)
		if !assert.NoErrorf(t, err, "%s(%s) failed on %s", op, dtype, sample) {
			continue
		}
		got, err := opinfo.Results(output)
		require.NoErrorf(t, err, "%s returned an unexpected output for %s", op, sample)
		if !assert.Lenf(t, got, len(want), "%s: number of outputs for %s", op, sample) {
			continue
		}
		for ii := range want {
			AllClose(t, want[ii], got[ii], op, " output #", ii, " for ", sample)
		}
		compared++
	}
	return compared
}

// CheckErrorInputs runs op on each of its error inputs for the device and dtype, and checks it fails with the
// expected kind of error and message. It returns the number of error inputs checked.
func CheckErrorInputs(t *testing.T, op *opinfo.OpInfo, device tensorlib.Device, dtype dtypes.DType) int {
	t.Helper()
	if skipped(t, op, TestErrors, device, dtype) {
		return 0
	}
	var count int
	for errorInput := range op.Errors(device, dtype, false, nil) {
		_, err := op.Call(errorInput.Sample)
		assert.NoErrorf(t, errorInput.Check(err), "%s: error input %s", op, errorInput)
		count++
	}
	return count
}

// TestedDTypes returns the dtypes of the list that op supports on the device, in canonical order.
func TestedDTypes(op *opinfo.OpInfo, device tensorlib.Device, dtypeList ...dtypes.DType) []dtypes.DType {
	supported := op.SupportedDTypes(device)
	var tested []dtypes.DType
	for _, dtype := range dtypesets.Sorted(supported) {
		if len(dtypeList) == 0 || slices.Contains(dtypeList, dtype) {
			tested = append(tested, dtype)
		}
	}
	return tested
}
