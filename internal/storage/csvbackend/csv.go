// Package csvbackend stores each classification set as a single-column CSV
// file with an "address" header.
package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/FranksOps/rentwatch/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

// header is the single CSV column.
var header = []string{"address"}

type csvBackend struct {
	mu    sync.Mutex
	paths map[storage.Set]string
}

// New creates a CSV-backed storage.Backend over two files.
func New(possiblePath, rejectedPath string) (storage.Backend, error) {
	if possiblePath == "" || rejectedPath == "" {
		return nil, errors.New("csvbackend: both state file paths are required")
	}
	if possiblePath == rejectedPath {
		return nil, fmt.Errorf("csvbackend: possible and rejected share the path %q", possiblePath)
	}
	return &csvBackend{
		paths: map[storage.Set]string{
			storage.Possible: possiblePath,
			storage.Rejected: rejectedPath,
		},
	}, nil
}

func (b *csvBackend) Load(ctx context.Context, set storage.Set) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := b.paths[set]
	if !ok {
		return nil, fmt.Errorf("csvbackend: unknown set %q", set)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	addresses := []string{}
	first := true
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		if first {
			first = false
			if record[0] == header[0] {
				continue
			}
		}
		if record[0] == "" {
			continue
		}
		addresses = append(addresses, record[0])
	}
	return addresses, nil
}

func (b *csvBackend) Save(ctx context.Context, set storage.Set, addresses []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := b.paths[set]
	if !ok {
		return fmt.Errorf("csvbackend: unknown set %q", set)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return storage.WriteFileAtomic(p, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		for _, a := range storage.Normalize(addresses) {
			if err := w.Write([]string{a}); err != nil {
				return fmt.Errorf("write %s: %w", p, err)
			}
		}
		w.Flush()
		return w.Error()
	})
}

func (b *csvBackend) Close() error { return nil }
