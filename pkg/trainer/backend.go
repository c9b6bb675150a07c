// Copyright 2026 The cacti Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"os"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/default"
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// CPUBackendConfig is the backend configuration used when the accelerator is not wanted.
const CPUBackendConfig = "xla:cpu"

// AcceleratedVariants lists the model variants that are allowed to use an accelerator by default.
// The other variants run on CPU, unless the backend is explicitly configured with GOMLX_BACKEND.
var AcceleratedVariants = []string{"13"}

// NewBackend creates the backend used to train the given model variant.
//
// If the environment variable GOMLX_BACKEND is set, it is always used. Otherwise only the
// AcceleratedVariants use the default backend, and the others use CPUBackendConfig.
func NewBackend(variant string) (backends.Backend, error) {
	if BackendConfig(variant) == "" {
		backend, err := backends.New()
		return backend, errors.WithMessage(err, "failed to create default backend")
	}
	backend, err := backends.NewWithConfig(CPUBackendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create backend %q", CPUBackendConfig)
	}
	return backend, nil
}

// BackendConfig returns the backend configuration NewBackend uses for the variant, or ""
// for the default one.
func BackendConfig(variant string) string {
	if _, found := os.LookupEnv(backends.ConfigEnvVar); found {
		return ""
	}
	if slices.Contains(AcceleratedVariants, variant) {
		return ""
	}
	return CPUBackendConfig
}

// LogHostMemory logs the total and free memory of the host.
func LogHostMemory() {
	klog.Infof("host memory: %s total, %s free",
		humanize.Bytes(memory.TotalMemory()), humanize.Bytes(memory.FreeMemory()))
}
