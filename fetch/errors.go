package fetch

import (
	"errors"
	"fmt"
)

var ErrTooManyRedirects = errors.New("fetch: too many redirects")

// DownloadError is a terminal non-2xx response.
type DownloadError struct {
	URL    string
	Status int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("fetch: %s: unexpected status %d", e.URL, e.Status)
}

// NetworkError is a transport failure while requesting or streaming.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch: %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

type ChecksumError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("fetch: %s: sha1 mismatch (want %s, got %s)", e.Path, e.Want, e.Got)
}

// Status returns the HTTP status carried by a DownloadError, or 0.
func Status(err error) int {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Status
	}

	return 0
}
