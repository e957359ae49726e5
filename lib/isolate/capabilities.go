// Copyright 2026 The Denywall Authors
// SPDX-License-Identifier: Apache-2.0

package isolate

import (
	"os"
	"strings"
)

// Capabilities describes what the host kernel offers for isolation.
type Capabilities struct {
	// UserNamespacesEnabled is true if unprivileged user namespace
	// creation is permitted.
	UserNamespacesEnabled bool

	// FuseAvailable is true if /dev/fuse exists.
	FuseAvailable bool
}

// DetectCapabilities probes the kernel configuration.
func DetectCapabilities() *Capabilities {
	caps := &Capabilities{
		UserNamespacesEnabled: checkUserNamespaces(),
	}
	if _, err := os.Stat("/dev/fuse"); err == nil {
		caps.FuseAvailable = true
	}
	return caps
}

// checkUserNamespaces inspects the sysctls that gate unprivileged
// user namespace creation. A missing sysctl file means the kernel
// does not expose the knob, which usually means the feature is
// allowed.
func checkUserNamespaces() bool {
	if data, err := os.ReadFile("/proc/sys/kernel/unprivileged_userns_clone"); err == nil {
		if strings.TrimSpace(string(data)) == "0" {
			return false
		}
	}
	if data, err := os.ReadFile("/proc/sys/user/max_user_namespaces"); err == nil {
		if strings.TrimSpace(string(data)) == "0" {
			return false
		}
	}
	return true
}

// SkipReason returns a human-readable reason why enforcement cannot
// run on this system, or an empty string if it can.
func (c *Capabilities) SkipReason() string {
	if !c.UserNamespacesEnabled {
		return "unprivileged user namespaces not enabled (set kernel.unprivileged_userns_clone=1)"
	}
	if !c.FuseAvailable {
		return "/dev/fuse not available (load the fuse kernel module)"
	}
	return ""
}
