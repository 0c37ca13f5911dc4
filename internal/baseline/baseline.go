// Package baseline stores operator dumps on disk and reads them back for
// regression checks. A baseline file is the dump text prefixed with a
// checksum header, so a corrupted or hand-edited file is rejected before its
// values reach a comparison.
package baseline

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Common errors.
var (
	ErrChecksumMismatch = errors.New("baseline: checksum mismatch, file may be corrupted")
	ErrMalformed        = errors.New("baseline: malformed file")
)

const headerPrefix = "# opcheck baseline sha256="

// ComputeChecksum computes the SHA-256 checksum of data.
func ComputeChecksum(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Save writes dump text to path with a checksum header.
func Save(path, dump string) error {
	sum := ComputeChecksum([]byte(dump))
	content := headerPrefix + hex.EncodeToString(sum[:]) + "\n" + dump
	//nolint:gosec // G306: baseline files are shared fixtures, not secrets
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("baseline: save %s: %w", path, err)
	}
	return nil
}

// Load reads a baseline file, validates its checksum and returns the dump
// text.
func Load(path string) (string, error) {
	//nolint:gosec // G304: baseline paths come from the caller by design
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("baseline: load %s: %w", path, err)
	}

	content := string(raw)
	header, dump, found := strings.Cut(content, "\n")
	if !found || !strings.HasPrefix(header, headerPrefix) {
		return "", fmt.Errorf("%w: %s has no checksum header", ErrMalformed, path)
	}

	stored, err := hex.DecodeString(strings.TrimPrefix(header, headerPrefix))
	if err != nil || len(stored) != sha256.Size {
		return "", fmt.Errorf("%w: %s has an invalid checksum header", ErrMalformed, path)
	}

	computed := ComputeChecksum([]byte(dump))
	var want [32]byte
	copy(want[:], stored)
	if computed != want {
		return "", fmt.Errorf("%s: %w", path, ErrChecksumMismatch)
	}
	return dump, nil
}
