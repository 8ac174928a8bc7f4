// Copyright 2026 The rvos Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"rvos.dev/rvos/pkg/log"
)

// ErrNotFound is returned when no program has the requested name.
var ErrNotFound = errors.New("no such program")

// maxLoaders bounds concurrent file reads in LoadDir.
const maxLoaders = 8

// Registry maps program names to ELF images.
//
// A Registry is filled before the kernel boots and is read-only afterwards.
type Registry struct {
	apps map[string][]byte
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{apps: make(map[string][]byte)}
}

// Add registers an image under name, replacing any previous one. The image
// must parse.
func (r *Registry) Add(name string, image []byte) error {
	if name == "" {
		return fmt.Errorf("empty program name")
	}
	if _, err := Parse(image); err != nil {
		return fmt.Errorf("program %q: %w", name, err)
	}
	r.apps[name] = image
	return nil
}

// Get returns the raw image registered under name.
func (r *Registry) Get(name string) ([]byte, error) {
	b, ok := r.apps[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return b, nil
}

// Load returns the parsed image registered under name.
func (r *Registry) Load(name string) (*Image, error) {
	b, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.apps))
	for name := range r.apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered programs.
func (r *Registry) Len() int {
	return len(r.apps)
}

// LoadDir registers every regular file in dir, named after the file with
// any extension removed. Files are read and validated concurrently.
func (r *Registry) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading apps dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, e.Name())
		}
	}

	images := make([][]byte, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLoaders)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := os.ReadFile(filepath.Join(dir, file))
			if err != nil {
				return err
			}
			if _, err := Parse(b); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			images[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, file := range files {
		name := strings.TrimSuffix(file, filepath.Ext(file))
		r.apps[name] = images[i]
		log.Debugf("Registered program %q from %s (%d bytes)", name, dir, len(images[i]))
	}
	return nil
}
