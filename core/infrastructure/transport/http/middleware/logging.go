package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hyperterse/tablescope/core/infrastructure/logging"
)

// RequestLogger logs one line per request through the tagged logger. Query
// strings are left out; paths carry table names but never credentials.
func RequestLogger(next http.Handler) http.Handler {
	log := logging.New("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		line := "%s %s -> %d (%dB, %s) [%s]"
		args := []any{r.Method, r.URL.Path, status, ww.BytesWritten(), time.Since(start).Round(time.Microsecond), chimiddleware.GetReqID(r.Context())}
		switch {
		case status >= http.StatusInternalServerError:
			log.Warnf(line, args...)
		case r.URL.Path == "/heartbeat" || r.URL.Path == "/metrics":
			log.Debugf(line, args...)
		default:
			log.Infof(line, args...)
		}
	})
}
