package uibridge

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/n1ntencube/CubicLauncher/logging"
)

// RequestLogger logs each request with its status. Authorization headers
// are never logged.
func RequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	log := logging.With(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := []logging.Field{
				logging.F("method", r.Method),
				logging.F("uri", r.RequestURI),
				logging.F("remote", r.RemoteAddr),
			}
			log.Debug("starting request", append(fields, logging.F("headers", headerSummary(r.Header)))...)

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			log.Info("finished request", append(fields,
				logging.F("status", sw.status),
				logging.F("elapsed", time.Since(start)))...)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(status int) {
	sw.status = status
	sw.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("uibridge: response does not support hijacking")
	}

	sw.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func headerSummary(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for k, v := range header {
		if strings.EqualFold(k, "authorization") {
			continue
		}
		out[k] = strings.Join(v, ",")
	}

	return out
}
