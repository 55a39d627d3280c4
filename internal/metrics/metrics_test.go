package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Alerts.Add(3)
	m.SnapshotRows.WithLabelValues("upserted").Add(10)
	m.StoreErrors.WithLabelValues("insert_alerts").Inc()

	if got := testutil.ToFloat64(m.Alerts); got != 3 {
		t.Errorf("alerts = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.SnapshotRows.WithLabelValues("upserted")); got != 10 {
		t.Errorf("snapshot upserted = %v, want 10", got)
	}

	n, err := testutil.GatherAndCount(reg, "hodwatch_scanner_alerts_total", "hodwatch_store_errors_total")
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("series = %d, want 2", n)
	}
}

func TestNew_NilRegisterer(t *testing.T) {
	m := New(nil)
	m.TradesApplied.Inc()
	if got := testutil.ToFloat64(m.TradesApplied); got != 1 {
		t.Errorf("trades applied = %v, want 1", got)
	}

	// A second set must not collide with the first.
	_ = New(nil)
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	New(reg)
}
