// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package artifacts provides a content-addressed blob store with scheme URIs
// (local://, memory://) and a retention-based cleanup job.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Stored describes a persisted artifact.
type Stored struct {
	URI       string
	Checksum  string
	SizeBytes int
	LocalPath string
}

// Store is the artifact persistence contract. Paths are always relative;
// traversal segments are rejected before any bytes are written.
type Store interface {
	Put(path string, payload []byte) (Stored, error)
	Get(uri string) ([]byte, error)
	Exists(uri string) (bool, error)
	List(prefix string) ([]string, error)
	Delete(uri string) error
	Scheme() string
}

// ComputeSHA256 returns the hex checksum used for artifact addressing.
func ComputeSHA256(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// NormalizePath canonicalizes an artifact path: trims whitespace, converts
// backslashes, and rejects empty, absolute, and traversal paths.
func NormalizePath(path string) (string, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(path), "\\", "/")
	if raw == "" {
		return "", fmt.Errorf("artifact path must not be empty")
	}
	if strings.HasPrefix(raw, "/") {
		return "", fmt.Errorf("artifact path must be relative")
	}
	if raw == "." {
		return "", fmt.Errorf("artifact path must not be current directory")
	}
	for _, part := range strings.Split(raw, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("artifact path contains illegal traversal segment")
		}
	}
	return raw, nil
}

// ParseURI splits a scheme URI into (scheme, normalized path).
func ParseURI(uri string) (string, string, error) {
	scheme, payload, found := strings.Cut(uri, "://")
	if !found || scheme == "" {
		return "", "", fmt.Errorf("invalid artifact URI: %s", uri)
	}
	normalized, err := NormalizePath(payload)
	if err != nil {
		return "", "", err
	}
	return scheme, normalized, nil
}

func buildURI(scheme, normalizedPath string) string {
	return fmt.Sprintf("%s://%s", scheme, normalizedPath)
}
