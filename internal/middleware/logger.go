package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// WithRequestLogger injects a request-scoped logger carrying request_id,
// method and path, then writes one access log line per request. Place it
// after RequestID.
func WithRequestLogger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			lc := base.With().
				Str("method", r.Method).
				Str("path", r.URL.Path)
			if requestID := GetRequestID(r.Context()); requestID != "" {
				lc = lc.Str("request_id", requestID)
			}
			logger := lc.Logger()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r.WithContext(logger.WithContext(r.Context())))

			event := logger.Info()
			if rec.status >= 500 {
				event = logger.Error()
			}
			event.Int("status", rec.status).
				Int("bytes", rec.bytes).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// GetLogger returns the request-scoped logger, or the global logger when
// none was attached.
func GetLogger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// Recovery turns a panic into a 500 response and logs the stack value.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				GetLogger(r.Context()).Error().
					Interface("panic", rv).
					Str("path", r.URL.Path).
					Msg("panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}
