// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package hostlib

import (
	"math"
	"slices"

	"github.com/gomlx/opinfo/pkg/core/tensorlib"
)

func init() {
	registerOp("histc", execHistc, false)
	registerOp("zeros_like", execLike(0), false)
	registerOp("ones_like", execLike(1), false)
	registerOp("full_like", execLike(math.NaN()), false)
}

// execHistc implements histc(input, bins=100, min=0, max=0): counts of the elements in bins equal-width bins
// between min and max, ignoring elements outside. If min == max, the minimum and maximum of the data are used.
// Elements equal to max are counted in the last bin.
func execHistc(c *opCall) (any, error) {
	x, err := c.inputTensor()
	if err != nil {
		return nil, err
	}
	bins, err := c.intParam(0, "bins", 100)
	if err != nil {
		return nil, err
	}
	low, err := c.floatParam(1, "min", 0)
	if err != nil {
		return nil, err
	}
	high, err := c.floatParam(2, "max", 0)
	if err != nil {
		return nil, err
	}
	if bins <= 0 {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "torch.histc: bins must be > 0, but got %d", bins)
	}
	if low > high {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "torch.histc: max must be larger than min")
	}
	values := x.Values()
	if low == high && len(values) > 0 {
		low, high = slices.Min(values), slices.Max(values)
	}
	if low == high {
		low, high = low-1, high+1
	}
	if math.IsInf(low, 0) || math.IsInf(high, 0) || math.IsNaN(low) || math.IsNaN(high) {
		return nil, tensorlib.Errorf(tensorlib.RuntimeError, "torch.histc: range of [%g, %g] is not finite", low, high)
	}
	counts := make([]float64, bins)
	for _, v := range values {
		if v < low || v > high || math.IsNaN(v) {
			continue
		}
		bin := int((v - low) * float64(bins) / (high - low))
		if bin >= bins {
			bin = bins - 1
		}
		counts[bin]++
	}
	return newTensorFrom(x.dtype, x.device, []int{bins}, counts), nil
}

// execLike implements zeros_like(input, dtype=None), ones_like(input, dtype=None) and, if value is NaN,
// full_like(input, fill_value, dtype=None).
func execLike(value float64) opExecutor {
	return func(c *opCall) (any, error) {
		x, err := c.inputTensor()
		if err != nil {
			return nil, err
		}
		fill, dtypePos := value, 0
		if math.IsNaN(fill) {
			if _, found := c.param(0, "fill_value"); !found {
				return nil, tensorlib.Errorf(tensorlib.TypeError, "full_like() missing required argument 'fill_value'")
			}
			if fill, err = c.floatParam(0, "fill_value", 0); err != nil {
				return nil, err
			}
			dtypePos = 1
		}
		dtype, err := c.dtypeParam(dtypePos, "dtype", x.dtype)
		if err != nil {
			return nil, err
		}
		if err = c.lib.checkPlacement(dtype, x.device); err != nil {
			return nil, err
		}
		return fullTensor(x.dims, quantize(dtype, fill), dtype, x.device), nil
	}
}
