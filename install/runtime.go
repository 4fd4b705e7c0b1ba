package install

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/n1ntencube/CubicLauncher/fetch"
	"github.com/n1ntencube/CubicLauncher/internal/archive"
	"github.com/n1ntencube/CubicLauncher/logging"
)

// DefaultRuntimeURLs maps GOOS/GOARCH to a Java 8 JRE archive.
var DefaultRuntimeURLs = map[string]string{
	"linux/amd64":   "https://api.adoptium.net/v3/binary/latest/8/ga/linux/x64/jre/hotspot/normal/eclipse",
	"linux/arm64":   "https://api.adoptium.net/v3/binary/latest/8/ga/linux/aarch64/jre/hotspot/normal/eclipse",
	"darwin/amd64":  "https://api.adoptium.net/v3/binary/latest/8/ga/mac/x64/jre/hotspot/normal/eclipse",
	"darwin/arm64":  "https://api.adoptium.net/v3/binary/latest/8/ga/mac/x64/jre/hotspot/normal/eclipse",
	"windows/amd64": "https://api.adoptium.net/v3/binary/latest/8/ga/windows/x64/jre/hotspot/normal/eclipse",
}

type RuntimeConfig struct {
	// Binary is the executable looked up on PATH, usually "java".
	Binary string
	// URLs maps "goos/goarch" to an archive download.
	URLs map[string]string
	// LookPath defaults to exec.LookPath.
	LookPath func(string) (string, error)
}

func (c *RuntimeConfig) setDefaults() {
	if c.Binary == "" {
		c.Binary = "java"
	}

	if c.URLs == nil {
		c.URLs = DefaultRuntimeURLs
	}

	if c.LookPath == nil {
		c.LookPath = exec.LookPath
	}
}

func (r *run) executableName() string {
	if r.s.cfg.GOOS == "windows" && filepath.Ext(r.s.cfg.Runtime.Binary) == "" {
		return r.s.cfg.Runtime.Binary + ".exe"
	}

	return r.s.cfg.Runtime.Binary
}

func (r *run) ensureRuntime(ctx context.Context) error {
	cfg := r.s.cfg
	log := r.s.log
	r.progress.report(StageRuntime, "checking-java", 0, "")

	if path, err := cfg.Runtime.LookPath(cfg.Runtime.Binary); err == nil {
		log.Debug("runtime found on path", logging.F("path", path))
		r.javaPath = path
		r.progress.report(StageRuntime, "java-ready", 1, "")
		return nil
	}

	name := r.executableName()
	dir := r.s.layout.RuntimeDir()
	if path, err := archive.FindExecutable(dir, name); err == nil {
		log.Debug("runtime found in game dir", logging.F("path", path))
		r.javaPath = path
		r.progress.report(StageRuntime, "java-ready", 1, "")
		return nil
	}

	platform := cfg.GOOS + "/" + cfg.GOARCH
	url, ok := cfg.Runtime.URLs[platform]
	if !ok {
		return errors.Wrap(ErrUnsupportedPlatform, platform)
	}

	log.Info("downloading runtime", logging.F("platform", platform))
	archivePath := filepath.Join(dir, "runtime.download")
	err := r.s.fetch.Download(ctx, url, archivePath, func(p fetch.Progress) {
		r.progress.report(StageRuntime, "downloading-java", 0.8*p.Percent/100, "")
	})
	if err != nil {
		return err
	}
	defer os.Remove(archivePath)

	r.progress.report(StageRuntime, "extracting-java", 0.8, "")
	extracted := filepath.Join(dir, "jre")
	if err := os.RemoveAll(extracted); err != nil {
		return &ExtractionError{Archive: archivePath, Err: err}
	}
	if err := archive.Extract(archivePath, extracted); err != nil {
		_ = os.RemoveAll(extracted)
		return &ExtractionError{Archive: archivePath, Err: err}
	}

	path, err := archive.FindExecutable(extracted, name)
	if err != nil {
		return &ExtractionError{Archive: archivePath, Err: ErrRuntimeNotFound}
	}

	if cfg.GOOS != "windows" {
		_ = os.Chmod(path, 0o755)
	}

	log.Info("runtime installed", logging.F("path", path))
	r.javaPath = path
	r.progress.report(StageRuntime, "java-ready", 1, "")

	return nil
}
