package daemon

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handler serves /metrics, the health endpoints (/health, /-/healthy,
// /-/ready) and /last-pass. metrics may be nil.
func (d *Daemon) Handler(metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, d.Health())
	})
	mux.HandleFunc("/-/healthy", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/-/ready", func(w http.ResponseWriter, _ *http.Request) {
		if d.PassCount() == 0 {
			http.Error(w, "no pass completed yet", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ready\n"))
	})
	mux.HandleFunc("/last-pass", func(w http.ResponseWriter, _ *http.Request) {
		last := d.LastPass()
		if last == nil {
			http.Error(w, "no pass completed yet", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, last)
	})
	return mux
}

// NewServer wraps Handler in an http.Server listening on addr.
func (d *Daemon) NewServer(addr string, metrics http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           d.Handler(metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
