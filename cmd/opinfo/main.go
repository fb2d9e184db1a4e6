// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// opinfo inspects the operator catalogue bound to a tensor library: it lists the capability manifest of the
// records, counts the samples each one generates and verifies the error inputs against the library.
//
// Usage:
//
//	opinfo [-library=host:seed=1] [-ops=add,sum] [-manifest] [-census -dtype=Float32] [-verify]
//
// Without any of -manifest, -census or -verify it prints the manifest. It exits with status 1 if -verify
// finds error inputs the library doesn't fail as expected.
package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opinfo/pkg/core/dtypesets"
	"github.com/gomlx/opinfo/pkg/core/tensorlib"
	_ "github.com/gomlx/opinfo/pkg/core/tensorlib/hostlib"
	"github.com/gomlx/opinfo/pkg/opinfo"
	"github.com/gomlx/opinfo/pkg/opinfo/oplist"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagLibrary = flag.String("library", "",
		fmt.Sprintf("Library configuration, in the format \"<library_name>:<library_config>\". "+
			"If empty the environment variable %q is used, and then the first registered library.", tensorlib.OPINFO_LIBRARY))
	flagOps      = flag.String("ops", "", "Comma-separated list of record names to include. Empty for all.")
	flagManifest = flag.Bool("manifest", false, "Lists the capability manifest of the records.")
	flagCensus   = flag.Bool("census", false, "Counts the samples and error inputs of each record for -dtype.")
	flagDType    = flag.String("dtype", "Float32", "DType used by -census.")
	flagVerify   = flag.Bool("verify", false, "Runs every error input against the library and reports mismatches.")
)

var titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if len(flag.Args()) > 0 {
		klog.Errorf("Unexpected arguments %q. See 'opinfo -help'.", flag.Args())
		os.Exit(1)
	}

	var lib tensorlib.Library
	if *flagLibrary != "" {
		lib = must.M1(tensorlib.NewWithConfig(*flagLibrary))
	} else {
		lib = tensorlib.MustNew()
	}
	registry, err := oplist.Build(lib)
	if err != nil {
		klog.Errorf("Failed to build the operator catalogue: %+v", err)
		os.Exit(1)
	}
	ops, err := selectOps(registry, *flagOps)
	if err != nil {
		klog.Errorf("%v", err)
		os.Exit(1)
	}
	fmt.Printf("Library: %s\n", lib.Description())

	if !*flagManifest && !*flagCensus && !*flagVerify {
		*flagManifest = true
	}
	if *flagManifest {
		fmt.Println(titleStyle.Render("Manifest"))
		fmt.Println(manifest(ops).Render())
	}
	if *flagCensus {
		dtype, err := parseDType(*flagDType)
		if err != nil {
			klog.Errorf("%v", err)
			os.Exit(1)
		}
		fmt.Println(titleStyle.Render(fmt.Sprintf("Census for %s", dtype)))
		fmt.Println(census(lib, ops, dtype).Render())
	}
	if *flagVerify {
		fmt.Println(titleStyle.Render("Error inputs verification"))
		if mismatches := verify(lib, ops); mismatches > 0 {
			klog.Errorf("%d error inputs didn't fail as expected", mismatches)
			os.Exit(1)
		}
	}
}

// selectOps returns the records named in the comma-separated list, or all of them if the list is empty.
func selectOps(registry *opinfo.Registry, list string) ([]*opinfo.OpInfo, error) {
	if list == "" {
		return slices.Collect(registry.All()), nil
	}
	var ops []*opinfo.OpInfo
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		op, found := registry.Lookup(name)
		if !found {
			return nil, errors.Errorf("unknown record %q in -ops, known records: %s", name,
				strings.Join(registry.Names(), ", "))
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// parseDType parses the name of a dtype, case-insensitive.
func parseDType(name string) (dtypes.DType, error) {
	for _, dtype := range dtypesets.Known() {
		if strings.EqualFold(dtype.String(), name) {
			return dtype, nil
		}
	}
	return dtypes.InvalidDType, errors.Errorf("unknown dtype %q, known dtypes: %s", name,
		dtypesets.String(dtypesets.Of(dtypesets.Known()...)))
}
