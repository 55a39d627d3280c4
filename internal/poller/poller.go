package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/hodwatch/internal/metrics"
)

// Task is one unit of scheduled work. A returned error is logged; it does not
// stop the loop.
type Task func(ctx context.Context) error

// Poller runs a Task every Interval, measured from the end of one run to the
// start of the next.
type Poller struct {
	name     string
	interval time.Duration
	task     Task
	metrics  *metrics.Metrics
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Poller. m and logger may be nil.
func New(name string, interval time.Duration, task Task, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Poller{
		name:     name,
		interval: interval,
		task:     task,
		metrics:  m,
		logger:   logger.With("task", name),
	}
}

// Run blocks until ctx is cancelled. The first run starts immediately.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", p.interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			p.logger.Info("poller stopped")
			return nil
		}

		p.runOnce(ctx)
		timer.Reset(p.interval)
	}
}

// Start runs the loop in a goroutine.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.Run(p.ctx)
	}()
	return nil
}

// Stop cancels the loop and waits for an in-flight run to return.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	start := time.Now()
	err := p.task(ctx)
	elapsed := time.Since(start)

	p.metrics.TaskDuration.WithLabelValues(p.name).Observe(elapsed.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.metrics.TaskErrors.WithLabelValues(p.name).Inc()
		p.logger.Error("task failed", "error", err, "duration", elapsed)
		return
	}
	p.logger.Debug("task complete", "duration", elapsed)
}
