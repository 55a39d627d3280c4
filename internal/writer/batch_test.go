package writer

import (
	"context"
	"errors"
	"testing"
)

type recorder struct {
	batches [][]int
	err     error
}

func (r *recorder) flush(_ context.Context, rows []int) error {
	r.batches = append(r.batches, rows)
	return r.err
}

func TestBatch_FlushesAtSize(t *testing.T) {
	rec := &recorder{}
	b, err := NewBatch(100, rec.flush, nil)
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 250; i++ {
		if err := b.Add(ctx, i); err != nil {
			t.Fatalf("Add(%d) error = %v", i, err)
		}
	}

	if len(rec.batches) != 2 {
		t.Fatalf("flushes before final = %d, want 2", len(rec.batches))
	}
	if b.Len() != 50 {
		t.Errorf("Len() = %d, want 50", b.Len())
	}

	if err := b.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	wantSizes := []int{100, 100, 50}
	if len(rec.batches) != len(wantSizes) {
		t.Fatalf("batches = %d, want %d", len(rec.batches), len(wantSizes))
	}
	for i, want := range wantSizes {
		if got := len(rec.batches[i]); got != want {
			t.Errorf("batch %d size = %d, want %d", i, got, want)
		}
	}
	if rec.batches[2][0] != 200 {
		t.Errorf("final batch starts at %d, want 200", rec.batches[2][0])
	}

	stats := b.Stats()
	if stats.Rows != 250 || stats.Flushes != 3 || stats.Errors != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestBatch_EmptyFlushIsNoop(t *testing.T) {
	rec := &recorder{}
	b, _ := NewBatch(10, rec.flush, nil)

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if len(rec.batches) != 0 {
		t.Errorf("flush called %d times on empty batch", len(rec.batches))
	}
}

func TestBatch_FailedFlushDropsRows(t *testing.T) {
	rec := &recorder{err: errors.New("db down")}
	b, _ := NewBatch(2, rec.flush, nil)
	ctx := context.Background()

	_ = b.Add(ctx, 1)
	if err := b.Add(ctx, 2); err == nil {
		t.Fatal("expected flush error")
	}
	if b.Len() != 0 {
		t.Errorf("Len() after failed flush = %d, want 0", b.Len())
	}

	rec.err = nil
	_ = b.Add(ctx, 3)
	_ = b.Add(ctx, 4)

	if got := rec.batches[1]; len(got) != 2 || got[0] != 3 {
		t.Errorf("second batch = %v, want [3 4]", got)
	}
	if stats := b.Stats(); stats.Errors != 1 || stats.Flushes != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestNewBatch_InvalidSize(t *testing.T) {
	if _, err := NewBatch[int](0, nil, nil); err == nil {
		t.Fatal("expected error for size 0")
	}
}
