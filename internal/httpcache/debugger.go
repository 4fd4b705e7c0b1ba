package httpcache

import (
	"net/http"
	"strings"
	"time"

	"github.com/n1ntencube/CubicLauncher/logging"
)

// Debugger logs every request and response status through Logger.
// Authorization headers are never logged.
type Debugger struct {
	Transport http.RoundTripper
	Logger    logging.Logger
}

func (d *Debugger) RoundTrip(r *http.Request) (*http.Response, error) {
	rt := d.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	log := logging.With(d.Logger)
	method, url := logging.F("method", r.Method), logging.F("url", r.URL.String())
	log.Debug("http request", method, url, logging.F("headers", headerSummary(r.Header)))

	start := time.Now()
	res, err := rt.RoundTrip(r)
	if err != nil {
		log.Debug("http error", method, url, logging.Err(err), logging.F("elapsed", time.Since(start)))
		return res, err
	}

	log.Debug("http response", method, url,
		logging.F("status", res.StatusCode),
		logging.F("length", res.ContentLength),
		logging.F("elapsed", time.Since(start)))
	return res, nil
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
