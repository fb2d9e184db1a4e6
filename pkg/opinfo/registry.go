// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package opinfo

import (
	"iter"
	"slices"

	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Builder collects OpInfo records and builds them into a Registry.
//
// Example:
//
//	registry, err := opinfo.NewBuilder(lib).
//		Add(absInfo, addInfo).
//		Decorate("add", opinfo.SkipIf("test_out", tensorlib.DeviceAccelerator, "not supported")).
//		Build()
type Builder struct {
	lib         tensorlib.Library
	ops         []*OpInfo
	decorations []decoration
}

type decoration struct {
	fullName string
	rules    []DecorateInfo
}

// NewBuilder returns a Builder for records bound to lib.
func NewBuilder(lib tensorlib.Library) *Builder {
	return &Builder{lib: lib}
}

// Add records to the registry, in the order they will be listed.
func (b *Builder) Add(ops ...*OpInfo) *Builder {
	b.ops = append(b.ops, ops...)
	return b
}

// Decorate appends rules to the decorators of the record with the given full name.
func (b *Builder) Decorate(fullName string, rules ...DecorateInfo) *Builder {
	b.decorations = append(b.decorations, decoration{fullName: fullName, rules: rules})
	return b
}

// Build validates the records and returns the Registry.
//
// The records added are copied, bound to the library (see OpInfo.Library) and have their Op resolved.
// It fails on duplicate names (including aliases), records without name, sample generator or dtypes,
// operators not found in the library and decorations of unknown records.
func (b *Builder) Build() (*Registry, error) {
	if b.lib == nil {
		return nil, errors.New("opinfo.Builder: no library given")
	}
	r := &Registry{
		lib:    b.lib,
		ops:    make([]*OpInfo, 0, len(b.ops)),
		byName: make(map[string]*OpInfo, len(b.ops)),
	}
	for ii, original := range b.ops {
		if original == nil {
			return nil, errors.Errorf("opinfo.Builder: record #%d is nil", ii)
		}
		op := *original
		name := op.FullName()
		switch {
		case op.Name == "":
			return nil, errors.Errorf("opinfo.Builder: record #%d has no name", ii)
		case op.SampleInputs == nil:
			return nil, errors.Errorf("opinfo.Builder: record %q has no sample inputs generator", name)
		case len(op.DTypes) == 0:
			return nil, errors.Errorf("opinfo.Builder: record %q supports no dtypes", name)
		case op.SupportsSparse && op.SampleInputsSparse == nil:
			return nil, errors.Errorf("opinfo.Builder: record %q supports sparse inputs but has no sparse generator", name)
		}
		for _, key := range append([]string{name}, op.Aliases...) {
			if _, found := r.byName[key]; found {
				return nil, errors.Errorf("opinfo.Builder: duplicate record name %q", key)
			}
		}
		var err error
		if op.Op, err = op.resolveOp(b.lib); err != nil {
			return nil, errors.WithMessage(err, "opinfo.Builder")
		}
		op.Aliases = slices.Clone(op.Aliases)
		op.Decorators = slices.Clone(op.Decorators)
		op.DTypes = op.DTypes.Clone()
		if op.DTypesAccelerator != nil {
			op.DTypesAccelerator = op.DTypesAccelerator.Clone()
		}
		op.lib = b.lib
		r.ops = append(r.ops, &op)
		r.byName[name] = &op
		for _, alias := range op.Aliases {
			r.byName[alias] = &op
		}
	}
	for _, d := range b.decorations {
		op, found := r.byName[d.fullName]
		if !found {
			return nil, errors.Errorf("opinfo.Builder: decorating unknown record %q", d.fullName)
		}
		op.Decorators = append(op.Decorators, d.rules...)
	}
	klog.V(1).Infof("opinfo: registry built with %d records for library %s", len(r.ops), b.lib.Name())
	return r, nil
}

// Registry is an immutable, ordered collection of OpInfo records bound to a library.
type Registry struct {
	lib    tensorlib.Library
	ops    []*OpInfo
	byName map[string]*OpInfo
}

// Library the records are bound to.
func (r *Registry) Library() tensorlib.Library { return r.lib }

// Len returns the number of records.
func (r *Registry) Len() int { return len(r.ops) }

// All iterates over the records in registration order.
func (r *Registry) All() iter.Seq[*OpInfo] {
	return func(yield func(*OpInfo) bool) {
		for _, op := range r.ops {
			if !yield(op) {
				return
			}
		}
	}
}

// Lookup returns the record with the given full name or alias.
func (r *Registry) Lookup(fullName string) (*OpInfo, bool) {
	op, found := r.byName[fullName]
	return op, found
}

// Names returns the full names of the records, in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ops))
	for ii, op := range r.ops {
		names[ii] = op.FullName()
	}
	return names
}

// Filter iterates over the records for which keep returns true, in registration order.
func (r *Registry) Filter(keep func(op *OpInfo) bool) iter.Seq[*OpInfo] {
	return func(yield func(*OpInfo) bool) {
		for _, op := range r.ops {
			if keep(op) && !yield(op) {
				return
			}
		}
	}
}

// SupportedDTypes returns the union of the dtypes supported by all records for the device class.
func (r *Registry) SupportedDTypes(class tensorlib.DeviceClass) dtypesets.Set {
	all := dtypesets.Empty()
	for _, op := range r.ops {
		all = all.Union(op.SupportedDTypesFor(class))
	}
	return all
}
