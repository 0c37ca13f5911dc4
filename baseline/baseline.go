// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package baseline stores and reloads operator buffer dumps for regression
// checks. A baseline file is a checksummed Go-literal dump produced by an
// executor; Parse turns the literal back into numbers a Runner can verify
// against.
package baseline

import (
	"github.com/born-ml/opcheck/internal/baseline"
)

// Sentinel errors.
var (
	// ErrChecksumMismatch reports a baseline file whose content does not match
	// its stored checksum.
	ErrChecksumMismatch = baseline.ErrChecksumMismatch
	// ErrMalformed reports a baseline file whose dump body cannot be parsed.
	ErrMalformed = baseline.ErrMalformed
)

// Save writes a dump to path with an integrity header.
func Save(path, dump string) error {
	return baseline.Save(path, dump)
}

// Load reads a baseline file, verifies its checksum and returns the dump.
func Load(path string) (string, error) {
	return baseline.Load(path)
}

// Parse decodes a dump into its label and the per-role buffer values, in
// canonical role order.
func Parse(dump string) (string, [][][]float64, error) {
	return baseline.Parse(dump)
}
