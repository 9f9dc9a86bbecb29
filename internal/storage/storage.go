package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Set names one of the two persisted classification sets.
type Set string

const (
	Possible Set = "possible"
	Rejected Set = "rejected"
)

// Sets lists every Set in a fixed order.
var Sets = []Set{Possible, Rejected}

// Backend persists classification sets between runs.
type Backend interface {
	// Load returns the addresses stored for set. Nothing stored yet is not
	// an error: it yields an empty slice.
	Load(ctx context.Context, set Set) ([]string, error)
	// Save replaces the stored content of set with addresses.
	Save(ctx context.Context, set Set, addresses []string) error
	Close() error
}

// Normalize returns addresses deduplicated and sorted. The result is never
// nil.
func Normalize(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// WriteFileAtomic writes path by streaming into a temporary file in the same
// directory and renaming it over the target, so readers see either the old
// or the new content in full.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
