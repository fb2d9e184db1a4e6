// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hostlib implements a simple, and not very fast, but very portable tensor library running on the host.
//
// Values are stored as float64 converted to each tensor's dtype, which keeps a single implementation per operator.
// Besides the "cpu" device it exposes simulated accelerator devices ("sim:<n>"), that only differ on the dtypes
// they support, so device-specific fixtures can be exercised without accelerator hardware.
//
// The configuration string is a comma-separated list of options:
//
//   - seed=<uint64>: seed of the pseudo-random generator used by MakeTensor. Default 0.
//   - accelerators=<n>: number of simulated accelerator devices. Default 1.
//
// E.g.: OPINFO_LIBRARY="host:seed=42,accelerators=2".
package hostlib

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LibraryName to be used in OPINFO_LIBRARY to specify this library.
const LibraryName = "host"

// AcceleratorType is the device type of the simulated accelerators.
const AcceleratorType = "sim"

// Registers New() as the default constructor for the "host" library.
func init() {
	tensorlib.Register(LibraryName, func(config string) (tensorlib.Library, error) {
		return New(config)
	})
}

// Library implements tensorlib.Library.
type Library struct {
	seed    uint64
	devices []tensorlib.Device

	// muRNG protects rng, since MakeTensor may be called concurrently.
	muRNG sync.Mutex
	rng   *rand.Rand
}

// Compile-time check that hostlib.Library implements tensorlib.Library.
var _ tensorlib.Library = (*Library)(nil)

// New constructs a new host Library with the given configuration, see package documentation.
func New(config string) (*Library, error) {
	lib := &Library{}
	numAccelerators := 1
	for _, option := range strings.Split(config, ",") {
		option = strings.TrimSpace(option)
		if option == "" {
			continue
		}
		key, value, _ := strings.Cut(option, "=")
		var err error
		switch key {
		case "seed":
			lib.seed, err = strconv.ParseUint(value, 10, 64)
		case "accelerators":
			numAccelerators, err = strconv.Atoi(value)
			if err == nil && numAccelerators < 0 {
				err = errors.New("number of accelerators must be >= 0")
			}
		default:
			err = errors.New("unknown option")
		}
		if err != nil {
			return nil, errors.Wrapf(err, "hostlib: invalid option %q in configuration %q", option, config)
		}
	}
	lib.rng = rand.New(rand.NewPCG(lib.seed, lib.seed^0x9e3779b97f4a7c15))
	lib.devices = append(lib.devices, tensorlib.CPU)
	for ii := range numAccelerators {
		lib.devices = append(lib.devices, tensorlib.Device{Type: AcceleratorType, Index: ii, Class: tensorlib.DeviceAccelerator})
	}
	klog.V(1).Infof("hostlib: seed=%d, devices=%v", lib.seed, lib.devices)
	return lib, nil
}

// Name implements tensorlib.Library.
func (l *Library) Name() string { return LibraryName }

// String implements fmt.Stringer.
func (l *Library) String() string { return LibraryName }

// Description implements tensorlib.Library.
func (l *Library) Description() string {
	return fmt.Sprintf("Host tensor library (seed=%d, %d simulated accelerators)", l.seed, len(l.devices)-1)
}

// Devices implements tensorlib.Library.
func (l *Library) Devices() []tensorlib.Device { return slices.Clone(l.devices) }

// Seed used by the pseudo-random generator.
func (l *Library) Seed() uint64 { return l.seed }

// hasDevice returns whether the device belongs to this library.
func (l *Library) hasDevice(device tensorlib.Device) bool {
	return slices.Contains(l.devices, device)
}

// Capabilities of the host library: all known dtypes on the cpu, and all but Float64 on the simulated accelerators.
var Capabilities = tensorlib.Capabilities{
	Operations:       make(map[string]bool),
	SparseOperations: make(map[string]bool),
	DTypes: map[tensorlib.DeviceClass]dtypesets.Set{
		tensorlib.DeviceDefault:     dtypesets.Of(dtypesets.Known()...),
		tensorlib.DeviceAccelerator: dtypesets.Without(dtypesets.Of(dtypesets.Known()...), dtypes.Float64),
	},
}

// Capabilities implements tensorlib.Library.
func (l *Library) Capabilities() tensorlib.Capabilities { return Capabilities.Clone() }

// Op implements tensorlib.Library.
func (l *Library) Op(name string) (tensorlib.OpFunc, bool) {
	executor, found := opExecutors[name]
	if !found {
		return nil, false
	}
	return func(input any, args []any, kwargs map[string]any) (any, error) {
		call := &opCall{lib: l, name: name, input: input, args: args, kwargs: kwargs}
		if err := call.checkOperands(); err != nil {
			return nil, err
		}
		if klog.V(2).Enabled() {
			klog.Infof("hostlib: %s(%v, args=%v, kwargs=%v)", name, input, args, kwargs)
		}
		return executor(call)
	}, true
}

// opExecutor implements one operator.
type opExecutor func(call *opCall) (any, error)

// opExecutors maps operator names to their implementation. It is populated by init() functions of each
// group of operators, with registerOp.
var opExecutors = make(map[string]opExecutor)

// registerOp registers the executor for the operator and updates Capabilities.
// If sparse is true, the operator accepts SparseCOO inputs.
func registerOp(name string, executor opExecutor, sparse bool) {
	opExecutors[name] = executor
	Capabilities.Operations[name] = true
	if sparse {
		Capabilities.SparseOperations[name] = true
	}
}

// random runs fn with exclusive access to the pseudo-random generator.
func (l *Library) random(fn func(rng *rand.Rand)) {
	l.muRNG.Lock()
	defer l.muRNG.Unlock()
	fn(l.rng)
}
