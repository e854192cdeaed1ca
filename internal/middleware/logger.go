package middleware

import (
	"net/http"
	"time"

	"github.com/DilipViharika/PostgresTool-sub003/internal/logger"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}

// RequestLogger logs every API request with its outcome. Server errors
// log at error level and client errors at warn, so store outages and
// rejected payloads stand out from routine polling traffic.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logFn := log.Info
			switch {
			case rec.status >= http.StatusInternalServerError:
				logFn = log.Error
			case rec.status >= http.StatusBadRequest:
				logFn = log.Warn
			}

			logFn("%s %s -> %d in %s (%d bytes)",
				r.Method, r.URL.RequestURI(), rec.status, time.Since(start), rec.bytes)
		})
	}
}
