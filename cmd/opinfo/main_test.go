// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/opinfo/opinfotest"
	"github.com/gomlx/opinfo/pkg/opinfo/oplist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectOps(t *testing.T) {
	registry, err := oplist.Build(opinfotest.BuildTestLibrary())
	require.NoError(t, err)

	all, err := selectOps(registry, "")
	require.NoError(t, err)
	assert.Len(t, all, registry.Len())

	ops, err := selectOps(registry, "sum, div.floor_rounding,")
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "sum", ops[0].FullName())
	assert.Equal(t, "div.floor_rounding", ops[1].FullName())

	_, err = selectOps(registry, "sum,nonexistent")
	assert.ErrorContains(t, err, "nonexistent")
}

func TestParseDType(t *testing.T) {
	dtype, err := parseDType("float32")
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float32, dtype)
	dtype, err = parseDType("BFloat16")
	require.NoError(t, err)
	assert.Equal(t, dtypes.BFloat16, dtype)
	_, err = parseDType("Float8")
	assert.Error(t, err)
}

func TestReports(t *testing.T) {
	lib := opinfotest.BuildTestLibrary()
	registry, err := oplist.Build(lib)
	require.NoError(t, err)
	ops, err := selectOps(registry, "add,sum,linalg.det")
	require.NoError(t, err)

	table := manifest(ops)
	assert.Equal(t, 3, table.Count)
	assert.Contains(t, table.Render(), "linalg.det")

	table = census(lib, ops, dtypes.Float64)
	assert.Equal(t, 3, table.Count)
	assert.Contains(t, table.Render(), "-", "Float64 is not supported on the accelerator")

	assert.Zero(t, verify(lib, ops))
}
