// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package oplist is the operator catalogue: the OpInfo records of every operator of the tested library,
// binding each one to its sample and error generators, its reference implementation and its capability
// manifest (dtypes per device class, autograd/out/sparse support, domain and singularities).
//
// Records are declared once, as data, and bound to a library with Build. Default returns the registry of the
// default library (see tensorlib.New), built once per process.
package oplist

import (
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	_ "github.com/gomlx/opinfo/pkg/core/tensorlib/hostlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Records returns freshly allocated records of the catalogue, in listing order: elementwise unary, binary and
// ternary operators, reductions, scans, sorting, shape manipulation, indexing, linear algebra and the others.
//
// Records without DTypesAccelerator get the dtypes of the default devices without Float64, which
// accelerators don't support.
func Records() []*opinfo.OpInfo {
	var all []*opinfo.OpInfo
	for _, group := range [][]*opinfo.OpInfo{
		unaryRecords(),
		binaryRecords(),
		ternaryRecords(),
		reductionRecords(),
		scanRecords(),
		shapeRecords(),
		indexRecords(),
		linalgRecords(),
		miscRecords(),
	} {
		all = append(all, group...)
	}
	for _, op := range all {
		if op.DTypesAccelerator == nil && op.DTypes != nil {
			op.DTypesAccelerator = dtypesets.Without(op.DTypes, dtypes.Float64)
		}
	}
	return all
}

// decorations are the exceptions to the default expectations, added by Build.
var decorations = []struct {
	fullName string
	rules    []opinfo.DecorateInfo
}{
	{"cumprod", []opinfo.DecorateInfo{
		opinfo.SkipIf("test_reference", tensorlib.DeviceAny,
			"running products of half-precision values round differently at each step", dtypes.Float16, dtypes.BFloat16),
	}},
	{"logsumexp", []opinfo.DecorateInfo{
		opinfo.SkipIf("test_reference", tensorlib.DeviceAny, "the shifted exponentials lose too much precision",
			dtypes.BFloat16),
	}},
	{"div.floor_rounding", []opinfo.DecorateInfo{
		opinfo.SkipIf("test_autograd", tensorlib.DeviceAny, "floor division is not differentiable"),
	}},
	{"div.trunc_rounding", []opinfo.DecorateInfo{
		opinfo.SkipIf("test_autograd", tensorlib.DeviceAny, "trunc division is not differentiable"),
	}},
}

// Build returns the registry of the catalogue bound to lib.
func Build(lib tensorlib.Library) (*opinfo.Registry, error) {
	builder := opinfo.NewBuilder(lib).Add(Records()...)
	for _, d := range decorations {
		builder.Decorate(d.fullName, d.rules...)
	}
	registry, err := builder.Build()
	if err != nil {
		return nil, errors.WithMessagef(err, "oplist.Build(%s)", lib.Name())
	}
	return registry, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *opinfo.Registry
)

// Default returns the registry of the catalogue bound to the default library, built on the first call.
//
// It panics if the library can't be created or the catalogue is inconsistent: both are programming errors.
func Default() *opinfo.Registry {
	defaultOnce.Do(func() {
		lib := must.M1(tensorlib.New())
		defaultRegistry = must.M1(Build(lib))
		klog.V(1).Infof("oplist: default registry with %d records for %s", defaultRegistry.Len(), lib.Description())
	})
	return defaultRegistry
}

// Convenience dtype sets.
var (
	halfTypes = []dtypes.DType{dtypes.Float16, dtypes.BFloat16}

	// allNumeric are all the dtypes the generators support except Bool.
	allNumeric = func() dtypesets.Set { return dtypesets.AllTypesAnd(halfTypes...) }

	// allWithBool adds Bool to allNumeric.
	allWithBool = func() dtypesets.Set { return dtypesets.AllTypesAnd(append(halfTypes, dtypes.Bool)...) }

	// floating are the floating point dtypes, including the half-precision ones.
	floating = func() dtypesets.Set { return dtypesets.FloatingTypesAnd(halfTypes...) }
)
