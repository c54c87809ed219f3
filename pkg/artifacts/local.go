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
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore writes artifacts under a filesystem root.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve artifact root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute filesystem root of the store.
func (s *LocalStore) Root() string { return s.root }

func (s *LocalStore) Scheme() string { return "local" }

func (s *LocalStore) Put(path string, payload []byte) (Stored, error) {
	normalized, err := NormalizePath(path)
	if err != nil {
		return Stored{}, err
	}
	destination := filepath.Join(s.root, filepath.FromSlash(normalized))
	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return Stored{}, fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(destination, payload, 0o644); err != nil {
		return Stored{}, fmt.Errorf("write artifact: %w", err)
	}
	return Stored{
		URI:       buildURI(s.Scheme(), normalized),
		Checksum:  ComputeSHA256(payload),
		SizeBytes: len(payload),
		LocalPath: destination,
	}, nil
}

func (s *LocalStore) Get(uri string) ([]byte, error) {
	path, err := s.resolve(uri)
	if err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", uri, err)
	}
	return payload, nil
}

func (s *LocalStore) Exists(uri string) (bool, error) {
	path, err := s.resolve(uri)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// List returns sorted URIs for every file under prefix. A prefix naming a
// single file returns that file's URI.
func (s *LocalStore) List(prefix string) ([]string, error) {
	normalized, err := s.normalizePrefix(prefix)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(s.root, filepath.FromSlash(normalized))
	info, err := os.Stat(base)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	if info.Mode().IsRegular() {
		return []string{buildURI(s.Scheme(), normalized)}, nil
	}

	var uris []string
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		relative, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		uris = append(uris, buildURI(s.Scheme(), filepath.ToSlash(relative)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts under %s: %w", prefix, err)
	}
	sort.Strings(uris)
	return uris, nil
}

func (s *LocalStore) Delete(uri string) error {
	path, err := s.resolve(uri)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact %s: %w", uri, err)
	}
	return nil
}

// PathFor maps a URI to its location on disk.
func (s *LocalStore) PathFor(uri string) (string, error) {
	return s.resolve(uri)
}

func (s *LocalStore) resolve(uri string) (string, error) {
	normalized, err := s.normalizePrefix(uri)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(normalized)), nil
}

func (s *LocalStore) normalizePrefix(prefix string) (string, error) {
	if strings.Contains(prefix, "://") {
		scheme, normalized, err := ParseURI(prefix)
		if err != nil {
			return "", err
		}
		if scheme != s.Scheme() {
			return "", fmt.Errorf("unsupported artifact scheme for local store: %s", scheme)
		}
		return normalized, nil
	}
	return NormalizePath(prefix)
}
