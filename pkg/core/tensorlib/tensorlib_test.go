// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensorlib

import (
	"fmt"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	err := Errorf(IndexError, "index %d is out of bounds", 7)
	assert.Equal(t, "index 7 is out of bounds", err.Error())
	assert.Equal(t, IndexError, KindOf(err))
	assert.Equal(t, IndexError, KindOf(errors.WithMessage(err, "while calling gather")))
	assert.Equal(t, RuntimeError, KindOf(errors.New("plain")))

	err = Classify(ValueError, fmt.Errorf("bad value"))
	assert.Equal(t, ValueError, KindOf(err))
	assert.Equal(t, ValueError, KindOf(Classify(TypeError, err)))
	assert.NoError(t, Classify(TypeError, nil))
	assert.Equal(t, "NotImplementedError", NotImplementedError.String())
}

func TestDevice(t *testing.T) {
	assert.Equal(t, "cpu", CPU.String())
	sim := Device{Type: "sim", Index: 1, Class: DeviceAccelerator}
	assert.Equal(t, "sim:1", sim.String())
	assert.True(t, DeviceAny.Matches(DeviceAccelerator))
	assert.False(t, DeviceDefault.Matches(DeviceAccelerator))
}

func TestMakeSpec(t *testing.T) {
	spec := MakeSpec{Dims: []int{2, 3}, DType: dtypes.Uint8}
	low, high := spec.Bounds()
	assert.Equal(t, 0.0, low)
	assert.Equal(t, 10.0, high)

	lowValue, highValue := -300.0, 1000.0
	spec.Low, spec.High = &lowValue, &highValue
	low, high = spec.Bounds()
	assert.Equal(t, 0.0, low)
	assert.Equal(t, 255.0, high)
	require.NoError(t, spec.Validate())

	spec.RequiresGrad = true
	err := spec.Validate()
	require.Error(t, err)
	assert.Equal(t, TypeError, KindOf(err))

	spec = MakeSpec{Dims: []int{2, -1}, DType: dtypes.Float32}
	require.Error(t, spec.Validate())

	spec = MakeSpec{Dims: []int{3}, DType: dtypes.Float32, Low: &highValue, High: &lowValue}
	assert.Equal(t, ValueError, KindOf(spec.Validate()))

	clone := spec.Clone()
	*clone.Low = 0
	assert.Equal(t, 1000.0, *spec.Low)
}

func TestNewWithConfig(t *testing.T) {
	Register("fake", func(config string) (Library, error) {
		return nil, errors.Errorf("fake library can't be created with %q", config)
	})
	_, err := NewWithConfig("fake:x=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x=1"`)

	_, err = NewWithConfig("unknown")
	require.Error(t, err)
	assert.Contains(t, List(), "fake")
}
