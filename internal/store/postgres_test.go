package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/hodwatch/internal/model"
)

func TestQueueMetadata(t *testing.T) {
	now := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)
	avg := 2.5e6

	b := &pgx.Batch{}
	queueMetadata(b, model.TickerMetadata{Ticker: "AAPL", Name: "Apple Inc.", Exchange: "XNAS", MarketCap: 3e12, SharesOutstanding: 15e9, Avg10DVolume: &avg, UpdatedAt: now})
	queueMetadata(b, model.TickerMetadata{Ticker: "ABCD", UpdatedAt: now})

	if b.Len() != 2 {
		t.Fatalf("queued = %d, want 2", b.Len())
	}
	q := b.QueuedQueries[0]
	for _, frag := range []string{
		"INSERT INTO ticker_metadata",
		"ON CONFLICT (ticker) DO UPDATE",
		"avg_10d_volume = COALESCE(EXCLUDED.avg_10d_volume, ticker_metadata.avg_10d_volume)",
	} {
		if !strings.Contains(q.SQL, frag) {
			t.Errorf("SQL missing %q:\n%s", frag, q.SQL)
		}
	}
	if got := strings.Count(q.SQL, "$"); got != len(q.Arguments) {
		t.Errorf("placeholders = %d, arguments = %d", got, len(q.Arguments))
	}
	if q.Arguments[0] != "AAPL" || q.Arguments[6] != now {
		t.Errorf("arguments = %v", q.Arguments)
	}
	if p, ok := q.Arguments[5].(*float64); !ok || p == nil || *p != avg {
		t.Errorf("avg_10d_volume argument = %v, want %v", q.Arguments[5], avg)
	}
	if p := b.QueuedQueries[1].Arguments[5].(*float64); p != nil {
		t.Errorf("avg_10d_volume argument = %v, want nil", *p)
	}
}

func TestQueueSnapshot(t *testing.T) {
	s := model.MarketSnapshot{Ticker: "AAPL", Price: 101.5, ChangePercent: 1.2, Volume: 5e6, DayHigh: 102, DayLow: 99, DayOpen: 100, DayClose: 101.5, LastUpdated: time.Unix(1709307000, 0)}

	b := &pgx.Batch{}
	queueSnapshot(b, s)

	q := b.QueuedQueries[0]
	if !strings.Contains(q.SQL, "INSERT INTO market_data") {
		t.Errorf("SQL = %s", q.SQL)
	}
	// avg_daily_volume belongs to another writer.
	if strings.Contains(q.SQL, "avg_daily_volume") {
		t.Errorf("snapshot upsert touches avg_daily_volume:\n%s", q.SQL)
	}
	want := []any{"AAPL", 101.5, 1.2, 5e6, 102.0, 99.0, 100.0, 101.5, s.LastUpdated}
	if len(q.Arguments) != len(want) {
		t.Fatalf("arguments = %v, want %v", q.Arguments, want)
	}
	for i := range want {
		if q.Arguments[i] != want[i] {
			t.Errorf("argument %d = %v, want %v", i, q.Arguments[i], want[i])
		}
	}
}

func TestAlertRow(t *testing.T) {
	a := model.HodAlert{ID: uuid.New(), Ticker: "ABCD", AlertTime: time.Unix(1709307000, 0), Price: 3.2, Volume: 1e6, Float: 4e6, AlertType: model.AlertTypeHOD}
	row := alertRow(a)
	if len(row) != 7 || row[0] != a.ID || row[1] != "ABCD" || row[6] != model.AlertTypeHOD {
		t.Errorf("row = %v", row)
	}
}

// fakeSender fails every statement of the chunks listed in failChunks.
type fakeSender struct {
	failChunks map[int]bool
	chunkSizes []int
}

func (f *fakeSender) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.chunkSizes = append(f.chunkSizes, b.Len())
	var err error
	if f.failChunks[len(f.chunkSizes)] {
		err = errors.New("duplicate key value violates unique constraint")
	}
	return &fakeResults{err: err}
}

type fakeResults struct {
	pgx.BatchResults
	err error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func (r *fakeResults) Close() error { return r.err }

func TestSendChunked(t *testing.T) {
	rows := make([]model.TickerMetadata, 1200)
	for i := range rows {
		rows[i].Ticker = "T"
	}

	tests := []struct {
		name     string
		fail     map[int]bool
		upserted int
		failed   int
	}{
		{name: "all ok", upserted: 1200},
		{name: "middle chunk fails", fail: map[int]bool{2: true}, upserted: 700, failed: 500},
		{name: "last chunk fails", fail: map[int]bool{3: true}, upserted: 1000, failed: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{failChunks: tt.fail}
			res, err := sendChunked(context.Background(), sender, rows, queueMetadata)

			if want := []int{500, 500, 200}; len(sender.chunkSizes) != 3 ||
				sender.chunkSizes[0] != want[0] || sender.chunkSizes[1] != want[1] || sender.chunkSizes[2] != want[2] {
				t.Errorf("chunk sizes = %v, want %v", sender.chunkSizes, want)
			}
			if res.Upserted != tt.upserted || res.Failed != tt.failed {
				t.Errorf("result = %+v, want upserted %d failed %d", res, tt.upserted, tt.failed)
			}
			if (err != nil) != (tt.failed > 0) {
				t.Errorf("error = %v", err)
			}
		})
	}
}

// TestPostgres_Integration runs against a real server when
// HODWATCH_TEST_POSTGRES_DSN is set.
func TestPostgres_Integration(t *testing.T) {
	dsn := os.Getenv("HODWATCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HODWATCH_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New() error = %v", err)
	}
	p := NewPostgres(pool)
	t.Cleanup(p.Close)

	if err := p.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	ticker := "ZZ" + strings.ToUpper(uuid.NewString()[:8])
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM ticker_metadata WHERE ticker = $1`, ticker)
		_, _ = pool.Exec(ctx, `DELETE FROM market_data WHERE ticker = $1`, ticker)
	})

	avg := 1.5e6
	for _, v := range []*float64{&avg, nil} {
		if _, err := p.UpsertMetadata(ctx, []model.TickerMetadata{{Ticker: ticker, Name: "Test", Avg10DVolume: v, UpdatedAt: time.Now()}}); err != nil {
			t.Fatalf("UpsertMetadata() error = %v", err)
		}
	}
	var got *float64
	if err := pool.QueryRow(ctx, `SELECT avg_10d_volume FROM ticker_metadata WHERE ticker = $1`, ticker).Scan(&got); err != nil {
		t.Fatalf("select: %v", err)
	}
	if got == nil || *got != avg {
		t.Errorf("avg_10d_volume = %v, want %v kept", got, avg)
	}

	snap := model.MarketSnapshot{Ticker: ticker, Price: 2, Volume: 10, DayHigh: 2.5, LastUpdated: time.Now().UTC().Truncate(time.Microsecond)}
	if _, err := p.UpsertSnapshots(ctx, []model.MarketSnapshot{snap}); err != nil {
		t.Fatalf("UpsertSnapshots() error = %v", err)
	}
	if err := p.UpdatePrice(ctx, model.PriceUpdate{Ticker: ticker, Price: 2.4, LastUpdated: time.Now()}); err != nil {
		t.Fatalf("UpdatePrice() error = %v", err)
	}
	snaps, err := p.SnapshotsFor(ctx, []string{ticker})
	if err != nil {
		t.Fatalf("SnapshotsFor() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].Price != 2.4 || snaps[0].DayHigh != 2.5 || snaps[0].Volume != 10 {
		t.Errorf("snapshots = %+v", snaps)
	}
}
