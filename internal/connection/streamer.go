package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	wsmodels "github.com/polygon-io/client-go/websocket/models"

	"github.com/rickgao/hodwatch/internal/metrics"
	"github.com/rickgao/hodwatch/internal/model"
)

// PriceWriter receives accepted trades.
type PriceWriter interface {
	UpdatePrice(ctx context.Context, u model.PriceUpdate) error
}

// ClientFactory creates the client for one connection attempt.
type ClientFactory func(cfg ClientConfig, logger *slog.Logger) Client

// Streamer runs the trade stream state machine.
type Streamer struct {
	cfg     StreamerConfig
	writer  PriceWriter
	metrics *metrics.Metrics
	logger  *slog.Logger

	newClient ClientFactory
	wait      func(ctx context.Context, d time.Duration) error
	now       func() time.Time

	// Owned by the Run goroutine.
	state        State
	backoff      *backoff.ExponentialBackOff
	lastActivity time.Time
}

// NewStreamer creates a Streamer. m and logger may be nil.
func NewStreamer(cfg StreamerConfig, writer PriceWriter, m *metrics.Metrics, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}

	def := DefaultStreamerConfig()
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay < cfg.ReconnectBaseDelay {
		cfg.ReconnectMaxDelay = max(def.ReconnectMaxDelay, cfg.ReconnectBaseDelay)
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = def.WatchdogInterval
	}
	if cfg.Subscription == "" {
		cfg.Subscription = def.Subscription
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.ReconnectBaseDelay
	b.MaxInterval = cfg.ReconnectMaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	return &Streamer{
		cfg:       cfg,
		writer:    writer,
		metrics:   m,
		logger:    logger.With("component", "trade_streamer"),
		newClient: NewClient,
		wait:      waitCtx,
		now:       time.Now,
		state:     StateDisconnected,
		backoff:   b,
	}
}

// State returns the current state. Only meaningful from the Run goroutine or
// after Run has returned.
func (s *Streamer) State() State {
	return s.state
}

// Run streams until ctx is cancelled. It returns nil on cancellation; a
// connection failure never ends Run.
func (s *Streamer) Run(ctx context.Context) error {
	if err := s.fire(EventStart); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return s.shutdown()
		}

		switch s.state {
		case StateConnecting:
			client, err := s.open(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.lost(err)
				continue
			}
			s.serve(ctx, client)

		case StateReconnecting:
			delay := s.backoff.NextBackOff()
			s.metrics.Reconnects.Inc()
			s.logger.Info("reconnecting", "delay", delay)
			if err := s.wait(ctx, delay); err != nil {
				continue
			}
			s.mustFire(EventBackoffElapsed)

		default:
			return fmt.Errorf("%w: run loop in state %s", ErrInvalidTransition, s.state)
		}
	}
}

// open dials and sends the auth action.
func (s *Streamer) open(ctx context.Context) (Client, error) {
	client := s.newClient(s.cfg.Client, s.logger)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.cfg.Client.URL, err)
	}

	s.backoff.Reset()
	s.mustFire(EventOpened)

	if err := s.send(client, actionMessage{Action: "auth", Params: s.cfg.APIKey}); err != nil {
		client.Close()
		return nil, fmt.Errorf("send auth: %w", err)
	}
	return client, nil
}

// serve processes frames until the connection is lost or ctx is cancelled.
func (s *Streamer) serve(ctx context.Context, client Client) {
	defer client.Close()

	watchdog := time.NewTicker(s.cfg.WatchdogInterval)
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-client.Messages():
			if err := s.handleFrame(ctx, client, msg); err != nil {
				s.lost(err)
				return
			}

		case err := <-client.Errors():
			// Apply what was read before the failure, in order.
			for drained := false; !drained; {
				select {
				case msg := <-client.Messages():
					if herr := s.handleFrame(ctx, client, msg); herr != nil {
						drained = true
					}
				default:
					drained = true
				}
			}
			s.lost(err)
			return

		case <-watchdog.C:
			s.checkStale()
		}
	}
}

// handleFrame decodes one frame. Frames are arrays of events; a bare object
// is treated as a one-element array. A returned error ends the connection.
func (s *Streamer) handleFrame(ctx context.Context, client Client, msg TimestampedMessage) error {
	data := bytes.TrimSpace(msg.Data)
	var events []json.RawMessage
	if len(data) > 0 && data[0] == '{' {
		events = []json.RawMessage{data}
	} else if err := json.Unmarshal(data, &events); err != nil {
		s.logger.Warn("dropping malformed frame", "error", err)
		return nil
	}

	for _, raw := range events {
		var ev wsmodels.EventType
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Warn("dropping malformed event", "error", err)
			continue
		}

		switch ev.EventType {
		case evStatus:
			if err := s.handleStatus(client, raw); err != nil {
				return err
			}
		case evTrade:
			s.handleTrade(ctx, raw, msg.ReceivedAt)
		default:
			s.logger.Debug("ignoring event", "ev", ev.EventType)
		}
	}
	return nil
}

func (s *Streamer) handleStatus(client Client, raw json.RawMessage) error {
	var cm wsmodels.ControlMessage
	if err := json.Unmarshal(raw, &cm); err != nil {
		s.logger.Warn("dropping malformed status", "error", err)
		return nil
	}

	switch cm.Status {
	case statusAuthSuccess:
		if s.state != StateAuthenticating {
			s.logger.Debug("ignoring repeated auth_success", "state", s.state)
			return nil
		}
		if err := s.send(client, actionMessage{Action: "subscribe", Params: s.cfg.Subscription}); err != nil {
			return fmt.Errorf("send subscribe: %w", err)
		}
		s.mustFire(EventAuthenticated)
		s.lastActivity = s.now()
		s.logger.Info("subscribed", "params", s.cfg.Subscription)

	case statusAuthFailed:
		return fmt.Errorf("%w: %s", ErrAuthFailed, cm.Message)

	case statusConnected:
		s.logger.Debug("server ready", "message", cm.Message)

	default:
		s.logger.Debug("status", "status", cm.Status, "message", cm.Message)
	}
	return nil
}

func (s *Streamer) handleTrade(ctx context.Context, raw json.RawMessage, receivedAt time.Time) {
	if !s.state.AcceptsTrades() {
		s.metrics.TradesRejected.Inc()
		s.logger.Warn("rejecting trade before subscription", "state", s.state)
		return
	}

	var t wsmodels.EquityTrade
	if err := json.Unmarshal(raw, &t); err != nil {
		s.logger.Warn("dropping malformed trade", "error", err)
		return
	}
	if t.Symbol == "" || !(t.Price > 0) {
		s.logger.Debug("dropping trade without symbol or price", "symbol", t.Symbol, "price", t.Price)
		return
	}

	ts := receivedAt
	if t.Timestamp > 0 {
		ts = time.UnixMilli(t.Timestamp)
	}

	if err := s.writer.UpdatePrice(ctx, model.PriceUpdate{
		Ticker:      t.Symbol,
		Price:       t.Price,
		LastUpdated: ts,
	}); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.metrics.StoreErrors.WithLabelValues("update_price").Inc()
		s.logger.Warn("price update failed", "ticker", t.Symbol, "error", err)
		return
	}

	s.metrics.TradesApplied.Inc()
	s.lastActivity = s.now()
	s.mustFire(EventTradeAccepted)
}

// checkStale warns when a subscribed stream has gone quiet.
func (s *Streamer) checkStale() {
	if !s.state.AcceptsTrades() {
		return
	}
	if idle := s.now().Sub(s.lastActivity); idle > s.cfg.StaleAfter {
		s.metrics.StaleWarnings.Inc()
		s.logger.Warn("no trades received", "idle", idle.Round(time.Second), "state", s.state)
	}
}

func (s *Streamer) lost(err error) {
	level := slog.LevelWarn
	if errors.Is(err, ErrAuthFailed) {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, "connection lost", "state", s.state, "error", err)
	s.mustFire(EventConnectionLost)
}

func (s *Streamer) shutdown() error {
	s.mustFire(EventShutdown)
	s.logger.Info("streamer stopped")
	return nil
}

func (s *Streamer) send(client Client, msg actionMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.Send(data)
}

func (s *Streamer) fire(e Event) error {
	next, err := Transition(s.state, e)
	if err != nil {
		return err
	}
	if next != s.state {
		s.logger.Debug("state change", "from", s.state, "to", next, "event", e)
	}
	s.state = next
	s.metrics.StreamState.Set(float64(next))
	return nil
}

// mustFire applies a transition the run loop guarantees is valid.
func (s *Streamer) mustFire(e Event) {
	if err := s.fire(e); err != nil {
		s.logger.Error("unexpected transition", "error", err)
	}
}

func waitCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
