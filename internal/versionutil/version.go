// Package versionutil normalizes the version string reported by wsedge.
package versionutil

import "strings"

// Dev is the placeholder version of builds without -ldflags.
const Dev = "dev"

// Resolve returns the version to report. Release builds keep the injected
// version with a "v" prefix. Dev builds use describe (usually
// `git describe --tags --always`) when it succeeds, suffixed with "-dev".
func Resolve(injected string, describe func() (string, error)) string {
	injected = strings.TrimSpace(injected)
	if injected != "" && injected != Dev {
		return EnsureVPrefix(injected)
	}
	if describe != nil {
		if desc, err := describe(); err == nil {
			if v := strings.TrimSpace(desc); v != "" {
				return EnsureVPrefix(v) + "-dev"
			}
		}
	}
	return Dev
}

// EnsureVPrefix returns s with a leading "v" if it doesn't already have one.
func EnsureVPrefix(s string) string {
	if s != "" && !strings.HasPrefix(s, "v") {
		return "v" + s
	}
	return s
}
