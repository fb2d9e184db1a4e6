// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tensorlib defines the interface of the tensor library exercised by the operator fixtures:
// how tensors are created (MakeSpec), the devices they live on, how operators are looked up and called,
// and how failures are classified (ErrorKind).
//
// Implementations register themselves with Register, and the fixture engine gets one with New or
// NewWithConfig. The host implementation is in the sub-package hostlib: import it with
//
//	import _ "github.com/gomlx/opinfo/pkg/core/tensorlib/hostlib"
package tensorlib

import (
	"os"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// OpFunc is the uniform calling convention of operators: a primary input, extra positional arguments
// and keyword arguments. The result is usually a Tensor, but operators returning more than one value
// (e.g.: sort) return a []Tensor.
//
// Failures are returned as errors classified with an ErrorKind, see Errorf and KindOf.
type OpFunc func(input any, args []any, kwargs map[string]any) (any, error)

// Library is the tensor library under test.
type Library interface {
	// Name returns the short name of the library, the one used in Register.
	Name() string

	// Description is a longer description of the Library, with its configuration.
	Description() string

	// Devices returns the devices available. The first one is the default device, and is always of
	// the DeviceDefault class.
	Devices() []Device

	// Capabilities returns the operators and dtypes supported by the library, per device class.
	Capabilities() Capabilities

	// MakeTensor creates a tensor filled with pseudo-random values as described by spec.
	MakeTensor(spec MakeSpec) (Tensor, error)

	// FromValues creates a contiguous tensor with the given values (in row-major order), converted to dtype.
	FromValues(values []float64, dtype dtypes.DType, device Device, dims ...int) (Tensor, error)

	// Full creates a contiguous tensor filled with value.
	Full(dims []int, value float64, dtype dtypes.DType, device Device) (Tensor, error)

	// ToSparseCOO converts a strided tensor to the sparse COO layout, keeping only the non-zero values.
	ToSparseCOO(t Tensor) (Tensor, error)

	// Op returns the operator registered under the given name (e.g. "sum" or "linalg.inv").
	Op(name string) (OpFunc, bool)
}

// Constructor takes a config string (optionally empty) and returns a Library.
type Constructor func(config string) (Library, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register library with the given name, and a default constructor that takes as input a configuration string
// that is passed along to the library constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List the registered libraries, sorted by name.
func List() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default library configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// OPINFO_LIBRARY is the environment variable with the default library configuration to use.
// It overrides DefaultConfig.
//
// The format of configuration is "<library_name>:<library_configuration>".
const OPINFO_LIBRARY = "OPINFO_LIBRARY"

// New returns a new default Library.
//
// The default is:
//
// 1. The environment variable $OPINFO_LIBRARY (OPINFO_LIBRARY) is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered library is used with an empty configuration.
func New() (Library, error) {
	config, found := os.LookupEnv(OPINFO_LIBRARY)
	if found {
		return NewWithConfig(config)
	}
	return NewWithConfig(DefaultConfig)
}

// MustNew returns a new default Library, or panics if it fails.
func MustNew() Library {
	lib, err := New()
	if err != nil {
		panic(err)
	}
	return lib
}

// NewWithConfig creates the library selected by config, formatted as "<library_name>:<library_configuration>".
//
// The "<library_name>" is the name of a registered library (e.g.: "host") and
// "<library_configuration>" is optional, and is passed to the library constructor to interpret.
// If config is empty, the first registered library is used with an empty configuration.
func NewWithConfig(config string) (Library, error) {
	if len(registeredConstructors) == 0 {
		return nil, errors.New(`no registered tensor libraries -- maybe import the host one with import _ "github.com/gomlx/opinfo/pkg/core/tensorlib/hostlib"?`)
	}
	libName, libConfig := firstRegistered, ""
	if config != "" {
		libName = config
		if idx := strings.Index(config, ":"); idx != -1 {
			libName = config[:idx]
			libConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[libName]
	if !found {
		return nil, errors.Errorf("can't find tensor library %q for configuration %q given, registered libraries: %q",
			libName, config, List())
	}
	lib, err := constructor(libConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create tensor library %q with configuration %q", libName, libConfig)
	}
	klog.V(1).Infof("tensorlib: created %s", lib.Description())
	return lib, nil
}

// MustOp returns the operator registered under name, or panics if the library doesn't have it.
func MustOp(lib Library, name string) OpFunc {
	op, found := lib.Op(name)
	if !found {
		exceptions.Panicf("tensor library %q has no operator %q", lib.Name(), name)
	}
	return op
}
