// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package dtypesets

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroups(t *testing.T) {
	assert.Equal(t, []dtypes.DType{dtypes.Float32, dtypes.Float64}, Sorted(FloatingTypes()))
	assert.Equal(t, []dtypes.DType{dtypes.Uint8, dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64},
		Sorted(IntegralTypes()))
	all := AllTypesAnd(dtypes.Bool, dtypes.Float16)
	assert.Len(t, all, 9)
	assert.True(t, all.Has(dtypes.Bool))
	assert.False(t, AllTypes().Has(dtypes.Bool))
	assert.Equal(t, "Bool, Float32", String(Of(dtypes.Float32, dtypes.Bool)))
	assert.Len(t, Without(all, dtypes.Bool, dtypes.Float16), 7)
	assert.Empty(t, Sorted(Empty()))
}

func TestPromote(t *testing.T) {
	testCases := []struct {
		a, b, want dtypes.DType
	}{
		{dtypes.Float32, dtypes.Float32, dtypes.Float32},
		{dtypes.Int32, dtypes.Float16, dtypes.Float16},
		{dtypes.Bool, dtypes.Uint8, dtypes.Uint8},
		{dtypes.Float16, dtypes.BFloat16, dtypes.Float32},
		{dtypes.Float32, dtypes.Float64, dtypes.Float64},
		{dtypes.Int8, dtypes.Int64, dtypes.Int64},
		{dtypes.Uint8, dtypes.Int8, dtypes.Int16},
		{dtypes.Int32, dtypes.Uint8, dtypes.Int32},
		{dtypes.Uint32, dtypes.Int32, dtypes.Int64},
	}
	for _, tc := range testCases {
		got, err := Promote(tc.a, tc.b)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, got, "Promote(%s, %s)", tc.a, tc.b)
		got, err = Promote(tc.b, tc.a)
		require.NoError(t, err)
		assert.Equalf(t, tc.want, got, "Promote(%s, %s)", tc.b, tc.a)
	}
	_, err := Promote(dtypes.Uint64, dtypes.Int8)
	require.Error(t, err)
	assert.False(t, CanPromote(dtypes.Int64, dtypes.Uint64))

	got, err := PromoteAll(dtypes.Bool, dtypes.Int8, dtypes.Uint8)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Int16, got)
}

func TestPromoteWithScalar(t *testing.T) {
	got, err := PromoteWithScalar(dtypes.Int8, 2.5)
	require.NoError(t, err)
	assert.Equal(t, DefaultFloat, got)

	got, err = PromoteWithScalar(dtypes.Int8, 300)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Int8, got)

	got, err = PromoteWithScalar(dtypes.Bool, 3)
	require.NoError(t, err)
	assert.Equal(t, DefaultInt, got)

	got, err = PromoteWithScalar(dtypes.Float16, 1.0)
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float16, got)

	_, err = PromoteWithScalar(dtypes.Float32, "x")
	require.Error(t, err)
}

func TestResultTypes(t *testing.T) {
	assert.Equal(t, dtypes.Float32, FloatResultType(dtypes.Int32))
	assert.Equal(t, dtypes.BFloat16, FloatResultType(dtypes.BFloat16))
	assert.Equal(t, dtypes.Int64, SumResultType(dtypes.Bool))
	assert.Equal(t, dtypes.Int64, SumResultType(dtypes.Uint8))
	assert.Equal(t, dtypes.Float16, SumResultType(dtypes.Float16))
	assert.True(t, CanCast(dtypes.Int32, dtypes.Float16))
	assert.False(t, CanCast(dtypes.Float32, dtypes.Int64))
}

func TestClasses(t *testing.T) {
	assert.Equal(t, CategoryBool, CategoryOf(dtypes.Bool))
	assert.Equal(t, CategoryInteger, CategoryOf(dtypes.Uint16))
	assert.Equal(t, CategoryFloat, CategoryOf(dtypes.BFloat16))
	assert.Equal(t, CategoryInvalid, CategoryOf(dtypes.Complex64))
	assert.True(t, SupportsGrad(dtypes.Float16))
	assert.False(t, SupportsGrad(dtypes.Int64))
	low, high := Range(dtypes.Uint8)
	assert.Equal(t, 0.0, low)
	assert.Equal(t, 255.0, high)
	assert.Equal(t, 1.0, Eps(dtypes.Int32))
}

func TestResultType(t *testing.T) {
	got, err := ResultType(TensorOperand(dtypes.Float32, 2), TensorOperand(dtypes.Float64, 0))
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float32, got)

	got, err = ResultType(TensorOperand(dtypes.Int8, 2), TensorOperand(dtypes.Float64, 0))
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float64, got)

	got, err = ResultType(TensorOperand(dtypes.Int16, 0), TensorOperand(dtypes.Int32, 0), ScalarOperand(1.5))
	require.NoError(t, err)
	assert.Equal(t, DefaultFloat, got)

	got, err = ResultType(TensorOperand(dtypes.Uint8, 1), TensorOperand(dtypes.Int8, 3))
	require.NoError(t, err)
	assert.Equal(t, dtypes.Int16, got)

	_, err = ResultType(ScalarOperand(1))
	require.Error(t, err)
}
