package httpcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/n1ntencube/CubicLauncher/logging"
)

const DefaultTTL = 6 * time.Hour

// Cache is an http.RoundTripper that keeps successful GET responses in
// sqlite. Requests carrying credentials pass straight through.
type Cache struct {
	Transport http.RoundTripper
	TTL       time.Duration
	Logger    logging.Logger

	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB, rt http.RoundTripper, ttl time.Duration) *Cache {
	if rt == nil {
		rt = http.DefaultTransport
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Cache{
		Transport: rt,
		TTL:       ttl,
		Logger:    logging.NopLogger{},
		db:        db,
		now:       time.Now,
	}
}

func (c *Cache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS "http_cache" (
	"key"       VARCHAR NOT NULL PRIMARY KEY,
	"url"       TEXT    NOT NULL,
	"blob"      BLOB    NOT NULL,
	"updatedAt" BIGINT  NOT NULL
);`)
	return errors.Wrap(err, "httpcache: migrate")
}

func Purge(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DELETE FROM "http_cache"`)
	return errors.WithStack(err)
}

func (c *Cache) Purge(ctx context.Context) error { return Purge(ctx, c.db) }

// Client wraps the cache in an http.Client.
func (c *Cache) Client() *http.Client {
	return &http.Client{Transport: c}
}

func (c *Cache) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Method != http.MethodGet || r.Header.Get("Authorization") != "" {
		return c.Transport.RoundTrip(r)
	}

	ctx := r.Context()
	key := cacheKey(r)
	log := logging.With(c.Logger)
	url := logging.F("url", r.URL.String())

	cached, updatedAt, err := c.get(ctx, key)
	if err == nil && c.now().UnixMilli() < updatedAt+c.TTL.Milliseconds() {
		log.Debug("cache hit", url, logging.F("length", len(cached.Body)))
		return cached.response(r), nil
	}

	response, err := c.Transport.RoundTrip(r)
	if err != nil {
		return response, err
	}

	if response.StatusCode != http.StatusOK {
		return response, nil
	}

	var body bytes.Buffer
	if err := captureResponseBody(response, &body); err != nil {
		return nil, errors.WithStack(err)
	}

	if err := c.put(ctx, key, r.URL.String(), response, body.Bytes()); err != nil {
		log.Warn("cache store failed", url, logging.Err(err))
	} else {
		log.Debug("cache store", url, logging.F("length", body.Len()))
	}

	return response, nil
}

func cacheKey(r *http.Request) string {
	hash := sha256.New()
	for _, b := range [][]byte{
		[]byte(r.Method),
		[]byte(r.URL.String()),
		[]byte(r.Header.Get("Accept")),
	} {
		hash.Write(b)
		hash.Write([]byte{0})
	}

	return hex.EncodeToString(hash.Sum(nil))
}

func (c *Cache) get(ctx context.Context, key string) (*entry, int64, error) {
	var (
		res       entry
		updatedAt int64
		blob      []byte
	)

	row := c.db.QueryRowContext(ctx, `SELECT "blob", "updatedAt" FROM "http_cache" WHERE "key" = ?`, key)
	if err := row.Scan(&blob, &updatedAt); err != nil {
		return nil, 0, errors.WithStack(err)
	}

	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&res); err != nil {
		return nil, updatedAt, errors.WithStack(err)
	}

	return &res, updatedAt, nil
}

func (c *Cache) put(ctx context.Context, key, url string, res *http.Response, body []byte) error {
	data := entry{
		Proto:      res.Proto,
		ProtoMajor: res.ProtoMajor,
		ProtoMinor: res.ProtoMinor,
		Status:     res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}

	var blob bytes.Buffer
	if err := gob.NewEncoder(&blob).Encode(&data); err != nil {
		return errors.WithStack(err)
	}

	_, err := c.db.ExecContext(ctx, `
INSERT INTO "http_cache" ("key", "url", "blob", "updatedAt") VALUES (?, ?, ?, ?)
ON CONFLICT ("key") DO UPDATE SET "blob" = excluded."blob", "updatedAt" = excluded."updatedAt"`,
		key, url, blob.Bytes(), c.now().UnixMilli())
	return errors.WithStack(err)
}

func captureResponseBody(response *http.Response, cached *bytes.Buffer) error {
	_, err := io.Copy(cached, response.Body)
	closeErr := response.Body.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	response.Body = io.NopCloser(bytes.NewReader(cached.Bytes()))
	return nil
}

type entry struct {
	Proto      string
	ProtoMajor int
	ProtoMinor int
	Status     int
	Header     http.Header
	Body       []byte
}

func (e *entry) response(r *http.Request) *http.Response {
	return &http.Response{
		Request:       r,
		Proto:         e.Proto,
		ProtoMajor:    e.ProtoMajor,
		ProtoMinor:    e.ProtoMinor,
		StatusCode:    e.Status,
		Status:        http.StatusText(e.Status),
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
	}
}
