// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"reflect"
	"testing"

	"github.com/FranksOps/rentwatch/internal/storage"
)

// Run exercises b. The backend must start out empty.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("EmptyBootstrap", func(t *testing.T) {
		for _, set := range storage.Sets {
			got, err := b.Load(ctx, set)
			if err != nil {
				t.Fatalf("Load(%s) on empty backend: %v", set, err)
			}
			if len(got) != 0 {
				t.Fatalf("expected empty %s set, got %v", set, got)
			}
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		in := []string{"https://www.homegate.ch/mieten/3002", "https://www.homegate.ch/mieten/3001"}
		if err := b.Save(ctx, storage.Possible, in); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := b.Load(ctx, storage.Possible)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		want := []string{"https://www.homegate.ch/mieten/3001", "https://www.homegate.ch/mieten/3002"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("SetsAreIndependent", func(t *testing.T) {
		if err := b.Save(ctx, storage.Rejected, []string{"https://www.homegate.ch/mieten/4001"}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		possible, _ := b.Load(ctx, storage.Possible)
		if len(possible) != 2 {
			t.Errorf("saving rejected must not touch possible, got %v", possible)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		if err := b.Save(ctx, storage.Possible, []string{"https://www.homegate.ch/mieten/3003"}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, _ := b.Load(ctx, storage.Possible)
		if !reflect.DeepEqual(got, []string{"https://www.homegate.ch/mieten/3003"}) {
			t.Errorf("expected full replacement, got %v", got)
		}
	})

	t.Run("AddressMovesBetweenSets", func(t *testing.T) {
		moved := "https://www.homegate.ch/mieten/3003"
		if err := b.Save(ctx, storage.Rejected, []string{"https://www.homegate.ch/mieten/4001", moved}); err != nil {
			t.Fatalf("Save rejected: %v", err)
		}
		if err := b.Save(ctx, storage.Possible, nil); err != nil {
			t.Fatalf("Save possible: %v", err)
		}
		rejected, _ := b.Load(ctx, storage.Rejected)
		possible, _ := b.Load(ctx, storage.Possible)
		if len(rejected) != 2 || len(possible) != 0 {
			t.Errorf("unexpected state possible=%v rejected=%v", possible, rejected)
		}
	})

	t.Run("Duplicates", func(t *testing.T) {
		if err := b.Save(ctx, storage.Possible, []string{"x", "x"}); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, _ := b.Load(ctx, storage.Possible)
		if !reflect.DeepEqual(got, []string{"x"}) {
			t.Errorf("expected duplicates collapsed, got %v", got)
		}
	})
}
