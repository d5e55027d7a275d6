package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPoolCollector(t *testing.T) {
	calls := 0
	c := NewPoolCollector(func() PoolStats {
		calls++
		return PoolStats{AcquiredConns: 3, IdleConns: 2, TotalConns: 5, MaxConns: 10, AcquireCount: 42}
	})

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("stats called %d times, want 1", calls)
	}

	want := map[string]float64{
		"framestream_db_pool_acquired_conns": 3,
		"framestream_db_pool_idle_conns":     2,
		"framestream_db_pool_total_conns":    5,
		"framestream_db_pool_max_conns":      10,
		"framestream_db_pool_acquires_total": 42,
	}
	if len(families) != len(want) {
		t.Fatalf("gathered %d families, want %d", len(families), len(want))
	}
	for _, mf := range families {
		w, ok := want[mf.GetName()]
		if !ok {
			t.Errorf("unexpected metric %s", mf.GetName())
			continue
		}
		m := mf.GetMetric()[0]
		got := m.GetGauge().GetValue()
		if m.GetCounter() != nil {
			got = m.GetCounter().GetValue()
		}
		if got != w {
			t.Errorf("%s = %v, want %v", mf.GetName(), got, w)
		}
	}
}
