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
package artifacts

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps artifacts in a process-local map. Used for tests and the
// memory:// backend.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Scheme() string { return "memory" }

func (s *MemoryStore) Put(path string, payload []byte) (Stored, error) {
	normalized, err := NormalizePath(path)
	if err != nil {
		return Stored{}, err
	}
	copied := make([]byte, len(payload))
	copy(copied, payload)

	s.mu.Lock()
	s.objects[normalized] = copied
	s.mu.Unlock()

	return Stored{
		URI:       buildURI(s.Scheme(), normalized),
		Checksum:  ComputeSHA256(payload),
		SizeBytes: len(payload),
	}, nil
}

func (s *MemoryStore) Get(uri string) ([]byte, error) {
	normalized, err := s.normalizeURI(uri)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	payload, ok := s.objects[normalized]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("artifact not found: %s", uri)
	}
	copied := make([]byte, len(payload))
	copy(copied, payload)
	return copied, nil
}

func (s *MemoryStore) Exists(uri string) (bool, error) {
	normalized, err := s.normalizeURI(uri)
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	_, ok := s.objects[normalized]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStore) List(prefix string) ([]string, error) {
	normalized, err := s.normalizePrefix(prefix)
	if err != nil {
		return nil, err
	}
	withSep := normalized + "/"

	s.mu.RLock()
	var uris []string
	for path := range s.objects {
		if path == normalized || strings.HasPrefix(path, withSep) {
			uris = append(uris, buildURI(s.Scheme(), path))
		}
	}
	s.mu.RUnlock()

	sort.Strings(uris)
	return uris, nil
}

func (s *MemoryStore) Delete(uri string) error {
	normalized, err := s.normalizeURI(uri)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, normalized)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) normalizeURI(uri string) (string, error) {
	scheme, normalized, err := ParseURI(uri)
	if err != nil {
		return "", err
	}
	if scheme != s.Scheme() {
		return "", fmt.Errorf("unsupported artifact scheme for memory store: %s", scheme)
	}
	return normalized, nil
}

func (s *MemoryStore) normalizePrefix(prefix string) (string, error) {
	if strings.Contains(prefix, "://") {
		return s.normalizeURI(prefix)
	}
	return NormalizePath(prefix)
}
