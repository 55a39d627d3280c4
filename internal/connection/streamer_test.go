package connection

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/hodwatch/internal/metrics"
	"github.com/rickgao/hodwatch/internal/model"
	"github.com/rickgao/hodwatch/internal/store"
)

// fakeClient is a scripted Client.
type fakeClient struct {
	connectErr error
	messages   chan TimestampedMessage
	errs       chan error

	mu     sync.Mutex
	sent   []actionMessage
	closed atomic.Bool
}

func newFakeClient(frames ...string) *fakeClient {
	c := &fakeClient{
		messages: make(chan TimestampedMessage, len(frames)+1),
		errs:     make(chan error, 1),
	}
	for _, f := range frames {
		c.messages <- TimestampedMessage{Data: []byte(f), ReceivedAt: time.Now()}
	}
	return c
}

func (c *fakeClient) Connect(context.Context) error { return c.connectErr }
func (c *fakeClient) Close() error                  { c.closed.Store(true); return nil }
func (c *fakeClient) IsConnected() bool             { return c.connectErr == nil && !c.closed.Load() }
func (c *fakeClient) Messages() <-chan TimestampedMessage {
	return c.messages
}
func (c *fakeClient) Errors() <-chan error { return c.errs }

func (c *fakeClient) Send(data []byte) error {
	var msg actionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	c.mu.Lock()
	c.sent = append(c.sent, msg)
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Sent() []actionMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]actionMessage(nil), c.sent...)
}

// scriptedFactory hands out clients in order, then refuses connections.
func scriptedFactory(clients ...*fakeClient) ClientFactory {
	var mu sync.Mutex
	return func(ClientConfig, *slog.Logger) Client {
		mu.Lock()
		defer mu.Unlock()
		if len(clients) == 0 {
			return &fakeClient{connectErr: errors.New("connection refused")}
		}
		c := clients[0]
		clients = clients[1:]
		return c
	}
}

// recordingWriter records price updates and signals each one.
type recordingWriter struct {
	mu      sync.Mutex
	updates []model.PriceUpdate
	applied chan struct{}
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{applied: make(chan struct{}, 100)}
}

func (w *recordingWriter) UpdatePrice(_ context.Context, u model.PriceUpdate) error {
	w.mu.Lock()
	w.updates = append(w.updates, u)
	w.mu.Unlock()
	w.applied <- struct{}{}
	return nil
}

func (w *recordingWriter) Updates() []model.PriceUpdate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.PriceUpdate(nil), w.updates...)
}

func testStreamer(writer PriceWriter, m *metrics.Metrics, factory ClientFactory) *Streamer {
	cfg := DefaultStreamerConfig()
	cfg.APIKey = "test-key"
	s := NewStreamer(cfg, writer, m, nil)
	s.newClient = factory
	return s
}

func runStreamer(t *testing.T, s *Streamer, ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestStreamer_BackoffGrowth(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New(nil)
	s := testStreamer(newRecordingWriter(), m, scriptedFactory())

	var delays []time.Duration
	s.wait = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 6 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	waitDone(t, runStreamer(t, s, ctx))

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i+1, delays[i], want[i])
		}
	}
	if s.State() != StateShuttingDown {
		t.Errorf("state = %s, want shutting_down", s.State())
	}
	if got := testutil.ToFloat64(m.Reconnects); got != 6 {
		t.Errorf("reconnects = %v, want 6", got)
	}
}

func TestStreamer_BackoffResetsOnOpen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refused := func() *fakeClient { return &fakeClient{connectErr: errors.New("refused")} }
	opened := newFakeClient()
	opened.errs <- io.EOF

	s := testStreamer(newRecordingWriter(), nil, scriptedFactory(refused(), refused(), opened))

	var delays []time.Duration
	s.wait = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		if len(delays) == 4 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	waitDone(t, runStreamer(t, s, ctx))

	want := []time.Duration{time.Second, 2 * time.Second, time.Second, 2 * time.Second}
	for i := range want {
		if i >= len(delays) || delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", delays, want)
		}
	}
	if !opened.closed.Load() {
		t.Error("lost client was not closed")
	}
}

func TestStreamer_HandshakeAndTradeOrdering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeClient(
		`[{"ev":"status","status":"connected","message":"Connected Successfully"}]`,
		`[{"ev":"T","sym":"AAPL","p":10.0,"t":1709305200000}]`,
		`[{"ev":"status","status":"auth_success","message":"authenticated"}]`,
		`[{"ev":"status","status":"success","message":"subscribed to: T.*"}]`,
		`[{"ev":"T","sym":"AAPL","p":11.5,"t":1709305201000},{"ev":"T","sym":"MSFT","p":400.25,"t":1709305202000}]`,
	)

	m := metrics.New(nil)
	w := newRecordingWriter()
	s := testStreamer(w, m, scriptedFactory(client))
	done := runStreamer(t, s, ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-w.applied:
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for update %d", i+1)
		}
	}
	cancel()
	waitDone(t, done)

	updates := w.Updates()
	if len(updates) != 2 {
		t.Fatalf("updates = %+v, want 2", updates)
	}
	if updates[0].Ticker != "AAPL" || updates[0].Price != 11.5 || !updates[0].LastUpdated.Equal(time.UnixMilli(1709305201000)) {
		t.Errorf("updates[0] = %+v", updates[0])
	}
	if updates[1].Ticker != "MSFT" || updates[1].Price != 400.25 {
		t.Errorf("updates[1] = %+v", updates[1])
	}

	if got := testutil.ToFloat64(m.TradesRejected); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TradesApplied); got != 2 {
		t.Errorf("applied = %v, want 2", got)
	}

	sent := client.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent = %+v, want auth then subscribe", sent)
	}
	if sent[0] != (actionMessage{Action: "auth", Params: "test-key"}) {
		t.Errorf("sent[0] = %+v", sent[0])
	}
	if sent[1] != (actionMessage{Action: "subscribe", Params: "T.*"}) {
		t.Errorf("sent[1] = %+v", sent[1])
	}
	if !client.closed.Load() {
		t.Error("client not closed on shutdown")
	}
	if s.State() != StateShuttingDown {
		t.Errorf("state = %s, want shutting_down", s.State())
	}
}

func TestStreamer_AuthFailedReconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeClient(`[{"ev":"status","status":"auth_failed","message":"authentication failed"}]`)
	s := testStreamer(newRecordingWriter(), nil, scriptedFactory(client))

	var delays []time.Duration
	s.wait = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		cancel()
		return ctx.Err()
	}

	waitDone(t, runStreamer(t, s, ctx))

	if len(delays) != 1 || delays[0] != time.Second {
		t.Errorf("delays = %v, want [1s]", delays)
	}
	if !client.closed.Load() {
		t.Error("client not closed after auth failure")
	}
	if sent := client.Sent(); len(sent) != 1 || sent[0].Action != "auth" {
		t.Errorf("sent = %+v, want only auth", sent)
	}
}

func TestStreamer_DrainsBufferedTradesBeforeReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeClient(
		`[{"ev":"status","status":"auth_success"}]`,
		`[{"ev":"T","sym":"A","p":1,"t":1709305200000}]`,
		`[{"ev":"T","sym":"B","p":2,"t":1709305200001}]`,
	)
	client.errs <- io.ErrUnexpectedEOF

	w := newRecordingWriter()
	s := testStreamer(w, nil, scriptedFactory(client))
	s.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	waitDone(t, runStreamer(t, s, ctx))

	updates := w.Updates()
	if len(updates) != 2 || updates[0].Ticker != "A" || updates[1].Ticker != "B" {
		t.Errorf("updates = %+v, want A then B", updates)
	}
}

func TestStreamer_MalformedFramesIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newFakeClient(
		`not json`,
		`{"ev":"status","status":"auth_success"}`,
		`[{"ev":"T","sym":"","p":1}]`,
		`[{"ev":"T","sym":"ZERO","p":0}]`,
		`[{"ev":"Q","sym":"AAPL"}]`,
		`[{"ev":"T","sym":"OK","p":3}]`,
	)
	w := newRecordingWriter()
	s := testStreamer(w, nil, scriptedFactory(client))
	done := runStreamer(t, s, ctx)

	select {
	case <-w.applied:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for update")
	}
	cancel()
	waitDone(t, done)

	updates := w.Updates()
	if len(updates) != 1 || updates[0].Ticker != "OK" {
		t.Errorf("updates = %+v, want only OK", updates)
	}
	// No timestamp on the trade: receive time is used.
	if updates[0].LastUpdated.IsZero() {
		t.Error("LastUpdated should fall back to receive time")
	}
}

func TestStreamer_Watchdog(t *testing.T) {
	m := metrics.New(nil)
	s := testStreamer(newRecordingWriter(), m, scriptedFactory())

	now := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.state = StateAuthenticating
	s.lastActivity = now.Add(-time.Hour)
	s.checkStale()
	if got := testutil.ToFloat64(m.StaleWarnings); got != 0 {
		t.Errorf("warnings while authenticating = %v, want 0", got)
	}

	s.state = StateStreaming
	s.lastActivity = now.Add(-10 * time.Second)
	s.checkStale()
	if got := testutil.ToFloat64(m.StaleWarnings); got != 0 {
		t.Errorf("warnings after 10s idle = %v, want 0", got)
	}

	s.lastActivity = now.Add(-31 * time.Second)
	s.checkStale()
	if got := testutil.ToFloat64(m.StaleWarnings); got != 1 {
		t.Errorf("warnings after 31s idle = %v, want 1", got)
	}
}

// notifyingStore signals after each price update reaches SQLite.
type notifyingStore struct {
	*store.SQLite
	applied chan struct{}
}

func (n *notifyingStore) UpdatePrice(ctx context.Context, u model.PriceUpdate) error {
	err := n.SQLite.UpdatePrice(ctx, u)
	n.applied <- struct{}{}
	return err
}

func TestStreamer_EndToEndNewSymbol(t *testing.T) {
	authed := make(chan string, 2)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`[{"ev":"status","status":"connected","message":"Connected Successfully"}]`))

		for i := 0; i < 2; i++ {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg actionMessage
			json.Unmarshal(data, &msg)
			authed <- msg.Action

			switch msg.Action {
			case "auth":
				conn.WriteMessage(websocket.TextMessage, []byte(`[{"ev":"status","status":"auth_success","message":"authenticated"}]`))
			case "subscribe":
				conn.WriteMessage(websocket.TextMessage, []byte(`[{"ev":"T","sym":"NEWCO","x":4,"i":"1","z":3,"p":3.21,"s":100,"c":[12],"t":1709305200123,"q":1}]`))
			}
		}
		drain(conn)
	})
	defer server.Close()

	db, err := store.NewSQLite(filepath.Join(t.TempDir(), "stream.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	defer db.Close()
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	st := &notifyingStore{SQLite: db, applied: make(chan struct{}, 1)}

	cfg := DefaultStreamerConfig()
	cfg.APIKey = "k"
	cfg.Client = testClientConfig(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewStreamer(cfg, st, nil, nil)
	done := runStreamer(t, s, ctx)

	select {
	case <-st.applied:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for trade")
	}
	cancel()
	waitDone(t, done)

	if a, b := <-authed, <-authed; a != "auth" || b != "subscribe" {
		t.Errorf("actions = %s, %s; want auth, subscribe", a, b)
	}

	rows, err := db.SnapshotsFor(context.Background(), []string{"NEWCO"})
	if err != nil {
		t.Fatalf("SnapshotsFor() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Price != 3.21 || !rows[0].LastUpdated.Equal(time.UnixMilli(1709305200123)) {
		t.Errorf("row = %+v", rows[0])
	}
}
