package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestCollectRuntime_RegistersGauges(t *testing.T) {
	r := New()
	r.CollectRuntime("finley_test", time.Hour)

	out := r.Render()
	for _, name := range []string{
		"finley_test_goroutines",
		"finley_test_heap_alloc_bytes",
		"finley_test_gc_runs_total",
		"finley_test_uptime_seconds",
	} {
		if !strings.Contains(out, name) {
			t.Errorf("missing %s in render output", name)
		}
	}
	if g := r.Gauge("finley_test_goroutines", ""); g.Value() <= 0 {
		t.Error("goroutine gauge should be sampled immediately")
	}
}
