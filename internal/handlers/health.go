package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// HandleHealth reports process liveness plus a few runtime numbers.
func HandleHealth(startedAt time.Time) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		status := struct {
			Status     string    `json:"status"`
			Uptime     string    `json:"uptime"`
			ServerTime time.Time `json:"server_time"`
			Goroutines int       `json:"goroutines"`
		}{
			Status:     "ok",
			Uptime:     time.Since(startedAt).Truncate(time.Second).String(),
			ServerTime: time.Now().Local().Truncate(time.Millisecond),
			Goroutines: runtime.NumGoroutine(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status)
	})
}
