// Package profiling serves the runtime profiler and runtime statistics.
// Profiles expose memory contents and stacks; mount them only where the
// network or an auth layer keeps them private.
package profiling

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"
	"runtime"

	"github.com/go-chi/chi/v5"
)

// Handler serves the pprof index, the named profiles and /stats. Paths are
// relative to where the handler is mounted.
func Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", pprof.Index)
	r.Get("/cmdline", pprof.Cmdline)
	r.Get("/profile", pprof.Profile)
	r.Get("/symbol", pprof.Symbol)
	r.Post("/symbol", pprof.Symbol)
	r.Get("/trace", pprof.Trace)
	r.Get("/stats", Stats)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		r.Handle("/"+name, pprof.Handler(name))
	}
	return r
}

// Mount routes requests under path to the profiler and everything else to next
func Mount(path string, next http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Mount(path, Handler())
	r.NotFound(next.ServeHTTP)
	r.MethodNotAllowed(next.ServeHTTP)
	return r
}

// RuntimeStats is a snapshot of scheduler and heap counters
type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	CPUs       int    `json:"cpus"`
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

// ReadStats collects the current runtime statistics
func ReadStats() RuntimeStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		CPUs:       runtime.NumCPU(),
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// Stats writes ReadStats as JSON
func Stats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ReadStats())
}
