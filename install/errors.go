package install

import (
	"errors"
	"fmt"

	"github.com/n1ntencube/CubicLauncher/fetch"
)

var (
	ErrUnsupportedPlatform = errors.New("install: no runtime download for this platform")
	ErrRuntimeNotFound     = errors.New("install: runtime executable not found in archive")
	ErrUnsafePath          = errors.New("install: path escapes the libraries dir")
	ErrInstallRunning      = errors.New("install: another install is running for this game dir")
)

// ChecksumError is returned when a verified download does not match the
// published sha1.
type ChecksumError = fetch.ChecksumError

type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("install: extract %s: %v", e.Archive, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

type VersionNotFoundError struct {
	Version string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("install: version %s not found in manifest", e.Version)
}

// ModError names the mod that aborted a batch.
type ModError struct {
	Name string
	URL  string
	Err  error
}

func (e *ModError) Error() string {
	return fmt.Sprintf("install: mod %q: %v", e.Name, e.Err)
}

func (e *ModError) Unwrap() error {
	return e.Err
}

type InstallerError struct {
	ExitCode int
	Err      error
}

func (e *InstallerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("install: mod loader installer: %v", e.Err)
	}

	return fmt.Sprintf("install: mod loader installer exited with code %d", e.ExitCode)
}

func (e *InstallerError) Unwrap() error {
	return e.Err
}
