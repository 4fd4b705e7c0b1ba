package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/n1ntencube/CubicLauncher/logging"
)

const DefaultMaxRedirects = 10

type Progress struct {
	Downloaded int64
	Total      int64
	Percent    float64
}

type ProgressFunc func(Progress)

type Config struct {
	// HTTPClient carries binary downloads. Its own redirect policy is
	// replaced; the fetcher follows Location headers itself.
	HTTPClient *http.Client
	// MetadataClient serves small JSON documents, typically with a cache
	// transport. Defaults to HTTPClient.
	MetadataClient *http.Client
	MaxRedirects   int
	UserAgent      string
	Logger         logging.Logger
}

type Fetcher struct {
	cfg  Config
	bin  *http.Client
	meta *http.Client
	log  logging.Logger
}

func New(cfg Config) *Fetcher {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	if cfg.MetadataClient == nil {
		cfg.MetadataClient = cfg.HTTPClient
	}

	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = "CubicLauncher"
	}

	return &Fetcher{
		cfg:  cfg,
		bin:  noFollow(cfg.HTTPClient),
		meta: noFollow(cfg.MetadataClient),
		log:  logging.With(cfg.Logger),
	}
}

func noFollow(c *http.Client) *http.Client {
	clone := *c
	clone.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &clone
}

// Download streams rawURL into dest. Progress is reported per chunk only
// when the server announces a content length. On failure nothing is left at
// dest.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string, onProgress ProgressFunc) error {
	return f.download(ctx, rawURL, dest, "", onProgress)
}

// DownloadVerified is Download plus a sha1 check of the streamed bytes.
// An empty sum skips the check.
func (f *Fetcher) DownloadVerified(ctx context.Context, rawURL, dest, sha1sum string, onProgress ProgressFunc) error {
	return f.download(ctx, rawURL, dest, strings.ToLower(sha1sum), onProgress)
}

func (f *Fetcher) download(ctx context.Context, rawURL, dest, wantSHA1 string, onProgress ProgressFunc) (err error) {
	resp, err := f.get(ctx, f.bin, rawURL)
	if err != nil {
		removeQuietly(dest)
		return err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("fetch: create %s: %w", filepath.Dir(dest), err)
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("fetch: create %s: %w", part, err)
	}

	defer func() {
		if err != nil {
			out.Close()
			removeQuietly(part)
			removeQuietly(dest)
		}
	}()

	var digest hash.Hash
	var w io.Writer = out
	if wantSHA1 != "" {
		digest = sha1.New()
		w = io.MultiWriter(out, digest)
	}

	if resp.ContentLength > 0 && onProgress != nil {
		w = &progressWriter{w: w, total: resp.ContentLength, fn: onProgress}
	}

	if _, err = io.Copy(w, resp.Body); err != nil {
		return &NetworkError{URL: rawURL, Err: err}
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("fetch: write %s: %w", part, err)
	}

	if digest != nil {
		got := hex.EncodeToString(digest.Sum(nil))
		if got != wantSHA1 {
			err = &ChecksumError{Path: dest, Want: wantSHA1, Got: got}
			return err
		}
	}

	if err = os.Rename(part, dest); err != nil {
		return fmt.Errorf("fetch: move %s: %w", dest, err)
	}

	f.log.Debug("downloaded", logging.F("url", rawURL), logging.F("dest", dest))

	return nil
}

// FetchJSON GETs a JSON document into out, following redirects.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := f.get(ctx, f.meta, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("fetch: decode %s: %w", rawURL, err)
	}

	return nil
}

// get follows up to MaxRedirects Location hops and returns the first 2xx
// response. The caller closes the body.
func (f *Fetcher) get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	current := rawURL

	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return nil, &NetworkError{URL: current, Err: err}
		}
		req.Header.Set("User-Agent", f.cfg.UserAgent)

		resp, err := client.Do(req)
		if err != nil {
			return nil, &NetworkError{URL: current, Err: err}
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			drain(resp)

			if location == "" {
				return nil, &DownloadError{URL: current, Status: resp.StatusCode}
			}

			if hop >= f.cfg.MaxRedirects {
				return nil, fmt.Errorf("%w: %s", ErrTooManyRedirects, rawURL)
			}

			next, err := resolve(current, location)
			if err != nil {
				return nil, &NetworkError{URL: current, Err: err}
			}

			f.log.Debug("following redirect", logging.F("from", current), logging.F("to", next))
			current = next
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			drain(resp)
			return nil, &DownloadError{URL: current, Status: resp.StatusCode}
		}

		return resp, nil
	}
}

func resolve(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	l, err := url.Parse(location)
	if err != nil {
		return "", err
	}

	return b.ResolveReference(l).String(), nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func removeQuietly(path string) {
	_ = os.Remove(path)
}

type progressWriter struct {
	w     io.Writer
	total int64
	done  int64
	fn    ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	p.fn(Progress{
		Downloaded: p.done,
		Total:      p.total,
		Percent:    float64(p.done) / float64(p.total) * 100,
	})

	return n, err
}
