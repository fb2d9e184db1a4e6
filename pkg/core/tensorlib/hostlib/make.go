// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/shapes"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/gomlx/opinfo/pkg/support/xslices"
)

// checkPlacement validates that dtype is supported by device, and that the device belongs to the library.
func (l *Library) checkPlacement(dtype dtypes.DType, device tensorlib.Device) error {
	if !l.hasDevice(device) {
		return tensorlib.Errorf(tensorlib.RuntimeError, "Invalid device %s, available devices: %v", device, l.devices)
	}
	if !Capabilities.SupportsDType(device.Class, dtype) {
		return tensorlib.Errorf(tensorlib.TypeError, "dtype %s is not supported on device %s", dtype, device)
	}
	return nil
}

// MakeTensor implements tensorlib.Library.
func (l *Library) MakeTensor(spec tensorlib.MakeSpec) (tensorlib.Tensor, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := l.checkPlacement(spec.DType, spec.Device); err != nil {
		return nil, err
	}
	low, high := spec.Bounds()
	size := xslices.Prod(spec.Dims)
	values := make([]float64, size)
	isFloat := dtypesets.IsFloating(spec.DType)
	l.random(func(rng *rand.Rand) {
		for ii := range values {
			values[ii] = sampleValue(rng, isFloat, low, high)
		}
	})
	quantizeAll(spec.DType, values)
	if spec.ExcludeZero {
		eps := dtypesets.Eps(spec.DType)
		for ii, v := range values {
			if v == 0 {
				values[ii] = eps
			}
		}
	}

	var t *Tensor
	if spec.Noncontiguous && size > 1 {
		t = noncontiguous(spec.DType, spec.Device, spec.Dims, values)
	} else {
		t = newTensor(spec.DType, spec.Device, spec.Dims, values)
	}
	t.requiresGrad = spec.RequiresGrad
	return t, nil
}

// sampleValue draws one value: uniform in [low, high] for floats, and an integer in [ceil(low), ceil(high))
// otherwise. If the interval is empty, low is returned.
func sampleValue(rng *rand.Rand, isFloat bool, low, high float64) float64 {
	if isFloat {
		if high <= low {
			return low
		}
		return low + rng.Float64()*(high-low)
	}
	low, high = math.Ceil(low), math.Ceil(high)
	if high <= low {
		return low
	}
	span := high - low
	if span >= math.MaxInt64 {
		return low + math.Floor(rng.Float64()*span)
	}
	return low + float64(rng.Int64N(int64(span)))
}

// noncontiguous lays values in a storage with the last axis doubled, and returns a view skipping every other
// element. The gaps are filled with a value that makes misuse of the strides visible: NaN for floats.
func noncontiguous(dtype dtypes.DType, device tensorlib.Device, dims []int, values []float64) *Tensor {
	rank := len(dims)
	if rank == 0 {
		return newTensor(dtype, device, dims, values)
	}
	allocDims := slices.Clone(dims)
	allocDims[rank-1] *= 2
	gap := quantize(dtype, 7)
	if dtypesets.IsFloating(dtype) {
		gap = math.NaN()
	}
	data := make([]float64, xslices.Prod(allocDims))
	for ii := range data {
		data[ii] = gap
	}
	strides := shapes.Strides(allocDims)
	strides[rank-1] = 2
	t := &Tensor{
		storage: &storage{data: data},
		dims:    slices.Clone(dims),
		strides: strides,
		dtype:   dtype,
		device:  device,
	}
	ii := 0
	for indices := range shapes.IterDims(dims) {
		data[shapes.FlatIndex(indices, strides, 0)] = values[ii]
		ii++
	}
	return t
}

// FromValues implements tensorlib.Library.
func (l *Library) FromValues(values []float64, dtype dtypes.DType, device tensorlib.Device, dims ...int) (tensorlib.Tensor, error) {
	if err := l.checkPlacement(dtype, device); err != nil {
		return nil, err
	}
	if len(values) != xslices.Prod(dims) {
		return nil, tensorlib.Errorf(tensorlib.ValueError, "shape %v is invalid for input of size %d", dims, len(values))
	}
	return newTensorFrom(dtype, device, dims, slices.Clone(values)), nil
}

// Full implements tensorlib.Library.
func (l *Library) Full(dims []int, value float64, dtype dtypes.DType, device tensorlib.Device) (tensorlib.Tensor, error) {
	if err := l.checkPlacement(dtype, device); err != nil {
		return nil, err
	}
	for _, dim := range dims {
		if dim < 0 {
			return nil, tensorlib.Errorf(tensorlib.RuntimeError, "Trying to create tensor with negative dimension %d: %v", dim, dims)
		}
	}
	return fullTensor(dims, quantize(dtype, value), dtype, device), nil
}

func fullTensor(dims []int, value float64, dtype dtypes.DType, device tensorlib.Device) *Tensor {
	data := make([]float64, xslices.Prod(dims))
	if value != 0 {
		for ii := range data {
			data[ii] = value
		}
	}
	return newTensor(dtype, device, dims, data)
}

// ToSparseCOO implements tensorlib.Library.
func (l *Library) ToSparseCOO(tensor tensorlib.Tensor) (tensorlib.Tensor, error) {
	t, err := asTensor(tensor, "to_sparse", "input")
	if err != nil {
		return nil, err
	}
	if t.coo != nil {
		return t.clone(), nil
	}
	return toSparse(t), nil
}

// toSparse converts a strided tensor to SparseCOO, keeping the non-zero values (NaN is non-zero).
func toSparse(t *Tensor) *Tensor {
	coo := &cooData{}
	for indices := range shapes.IterDims(t.dims) {
		if v := t.at(indices); v != 0 {
			coo.indices = append(coo.indices, slices.Clone(indices))
			coo.values = append(coo.values, v)
		}
	}
	return &Tensor{
		dims:         slices.Clone(t.dims),
		dtype:        t.dtype,
		device:       t.device,
		requiresGrad: t.requiresGrad,
		coo:          coo,
	}
}
