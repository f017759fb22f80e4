package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kilianp07/railsched/core/factory"
	metrics "github.com/kilianp07/railsched/core/metrics"
	_ "github.com/kilianp07/railsched/infra/metrics"
)

func TestMetricsFactory_Builtins(t *testing.T) {
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

// An unhealthy InfluxDB degrades to a NopSink instead of failing startup.
func TestMetricsFactory_InfluxFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{
		Type: "influx",
		Conf: map[string]any{"url": srv.URL, "token": "t", "org": "o", "bucket": "b"},
	}})
	if err != nil {
		t.Fatalf("create influx: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink fallback, got %T", s)
	}
}

func TestNewMetricsSink_Multi(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}
}
