package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// withCORS adds CORS headers to every response and handles preflight OPTIONS requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "X-Guide-Start, X-Guide-Stop, Retry-After")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusWriter records the status code and body size of a response.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer for Flush.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type notesKey struct{}

// requestNotes are key=value fields handlers attach to their request log line.
type requestNotes struct {
	mu     sync.Mutex
	fields []string
}

// note adds key=value to the log line of r. It is a no-op outside withLogging.
func note(r *http.Request, key string, value any) {
	n, ok := r.Context().Value(notesKey{}).(*requestNotes)
	if !ok {
		return
	}
	n.mu.Lock()
	n.fields = append(n.fields, fmt.Sprintf("%s=%v", key, value))
	n.mu.Unlock()
}

// withLogging writes one line per request: method, matched route, status,
// duration, response size, client and provider, then any handler notes.
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		notes := &requestNotes{}
		r = r.WithContext(context.WithValue(r.Context(), notesKey{}, notes))

		next.ServeHTTP(sw, r)

		// The mux fills in Pattern and path values on r; unmatched
		// requests fall back to the raw path.
		route := r.Pattern
		if route == "" {
			route = r.Method + " " + r.URL.Path
		}
		line := fmt.Sprintf("[api] %s %s%d\x1b[0m %s %dB ip=%s",
			route, colorForStatus(sw.status), sw.status, formatDuration(time.Since(start)), sw.bytes, clientIP(r))
		if p := r.PathValue("provider"); p != "" {
			line += " provider=" + p
		}
		notes.mu.Lock()
		if len(notes.fields) > 0 {
			line += " " + strings.Join(notes.fields, " ")
		}
		notes.mu.Unlock()
		log.Print(line)
	})
}

func colorForStatus(code int) string {
	switch {
	case code == http.StatusTooManyRequests:
		return "\x1b[35m" // magenta
	case code < 300:
		return "\x1b[32m" // green
	case code < 400:
		return "\x1b[36m" // cyan
	case code < 500:
		return "\x1b[33m" // yellow
	default:
		return "\x1b[31m" // red
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
