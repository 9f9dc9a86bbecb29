// Package jsonbackend stores each classification set as a sorted JSON array
// of addresses in its own file.
package jsonbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/FranksOps/rentwatch/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

type jsonBackend struct {
	mu    sync.Mutex
	paths map[storage.Set]string
}

// New creates a storage.Backend that keeps the possible and rejected sets in
// the two given files. The files need not exist yet.
func New(possiblePath, rejectedPath string) (storage.Backend, error) {
	if possiblePath == "" || rejectedPath == "" {
		return nil, errors.New("jsonbackend: both state file paths are required")
	}
	if possiblePath == rejectedPath {
		return nil, fmt.Errorf("jsonbackend: possible and rejected share the path %q", possiblePath)
	}
	return &jsonBackend{
		paths: map[storage.Set]string{
			storage.Possible: possiblePath,
			storage.Rejected: rejectedPath,
		},
	}, nil
}

func (b *jsonBackend) path(set storage.Set) (string, error) {
	p, ok := b.paths[set]
	if !ok {
		return "", fmt.Errorf("jsonbackend: unknown set %q", set)
	}
	return p, nil
}

func (b *jsonBackend) Load(ctx context.Context, set storage.Set) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.path(set)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return LoadFile(p)
}

func (b *jsonBackend) Save(ctx context.Context, set storage.Set, addresses []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := b.path(set)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return SaveFile(p, addresses)
}

func (b *jsonBackend) Close() error { return nil }

// LoadFile reads a JSON array of addresses. A missing file is an empty set.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var addresses []string
	if err := json.Unmarshal(data, &addresses); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if addresses == nil {
		addresses = []string{}
	}
	return addresses, nil
}

// SaveFile overwrites path with addresses as a sorted, indented JSON array.
func SaveFile(path string, addresses []string) error {
	data, err := json.MarshalIndent(storage.Normalize(addresses), "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	data = append(data, '\n')

	return storage.WriteFileAtomic(path, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	})
}
