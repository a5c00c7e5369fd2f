package metrics

import (
	"runtime"
	"time"
)

// CollectRuntime starts a goroutine that samples Go runtime stats into
// prefixed gauges every interval. It runs for the life of the process.
func (r *Registry) CollectRuntime(prefix string, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	goroutines := r.Gauge(prefix+"_goroutines", "Number of live goroutines")
	heapAlloc := r.Gauge(prefix+"_heap_alloc_bytes", "Bytes of allocated heap objects")
	heapSys := r.Gauge(prefix+"_heap_sys_bytes", "Bytes of heap obtained from the OS")
	gcRuns := r.Gauge(prefix+"_gc_runs_total", "Completed GC cycles")
	start := time.Now()
	uptime := r.Gauge(prefix+"_uptime_seconds", "Seconds since process start")

	collect := func() {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		goroutines.Set(int64(runtime.NumGoroutine()))
		heapAlloc.Set(int64(m.HeapAlloc))
		heapSys.Set(int64(m.HeapSys))
		gcRuns.Set(int64(m.NumGC))
		uptime.Set(int64(time.Since(start).Seconds()))
	}
	collect()

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for range t.C {
			collect()
		}
	}()
}
