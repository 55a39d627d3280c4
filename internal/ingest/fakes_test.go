package ingest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rickgao/hodwatch/internal/api"
	"github.com/rickgao/hodwatch/internal/model"
	"github.com/rickgao/hodwatch/internal/store"
)

// fakeSource serves canned snapshot and reference data.
type fakeSource struct {
	snaps    []api.TickerSnapshot
	snapErr  error
	refs     map[string]api.Reference
	refCalls []string

	onReference func(ticker string)

	volumes    map[string]map[string]float64 // date -> ticker -> volume
	volumesErr error
	volumeDays []string
}

func (f *fakeSource) FetchSnapshots(context.Context) ([]api.TickerSnapshot, error) {
	return f.snaps, f.snapErr
}

func (f *fakeSource) FetchReference(_ context.Context, ticker string) (api.Reference, error) {
	f.refCalls = append(f.refCalls, ticker)
	if f.onReference != nil {
		f.onReference(ticker)
	}
	ref, ok := f.refs[ticker]
	if !ok {
		return api.Reference{}, fmt.Errorf("fetch reference %s: %w", ticker, &api.APIError{StatusCode: http.StatusNotFound})
	}
	return ref, nil
}

func (f *fakeSource) FetchDailyVolumes(_ context.Context, day time.Time) (map[string]float64, error) {
	key := day.Format(time.DateOnly)
	f.volumeDays = append(f.volumeDays, key)
	if f.volumesErr != nil {
		return nil, f.volumesErr
	}
	return f.volumes[key], nil
}

// fakeStore keeps ingested rows in memory.
type fakeStore struct {
	mu sync.Mutex

	metadataTickers []string
	snapshotTickers []string
	pageCalls       int

	snapshotBatches [][]model.MarketSnapshot
	metadataBatches [][]model.TickerMetadata

	upsertErr     error
	failMetaBatch int // 1-based batch index to fail, 0 for none
}

func page(all []string, offset, limit int) []string {
	if offset >= len(all) {
		return nil
	}
	return all[offset:min(offset+limit, len(all))]
}

func (f *fakeStore) TickerMetadataPage(_ context.Context, offset, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	return page(f.metadataTickers, offset, limit), nil
}

func (f *fakeStore) SnapshotSymbolsPage(_ context.Context, offset, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	return page(f.snapshotTickers, offset, limit), nil
}

func (f *fakeStore) UpsertSnapshots(_ context.Context, rows []model.MarketSnapshot) (store.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotBatches = append(f.snapshotBatches, append([]model.MarketSnapshot(nil), rows...))
	if f.upsertErr != nil {
		return store.UpsertResult{Upserted: len(rows) - 1, Failed: 1}, f.upsertErr
	}
	return store.UpsertResult{Upserted: len(rows)}, nil
}

func (f *fakeStore) UpsertMetadata(_ context.Context, rows []model.TickerMetadata) (store.UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadataBatches = append(f.metadataBatches, append([]model.TickerMetadata(nil), rows...))
	if f.failMetaBatch == len(f.metadataBatches) {
		return store.UpsertResult{Failed: len(rows)}, fmt.Errorf("connection reset")
	}
	return store.UpsertResult{Upserted: len(rows)}, nil
}
