package install

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/fetch"
	"github.com/n1ntencube/CubicLauncher/logging"
)

const DefaultManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

// ensureClient resolves the version in the manifest, stores its descriptor
// and downloads the client jar plus every library. Library failures are
// logged and skipped.
func (r *run) ensureClient(ctx context.Context) error {
	cfg := r.s.cfg
	layout := r.s.layout
	version := cfg.Version
	log := r.s.log

	r.progress.report(StageClient, "fetching-manifest", 0, "")

	var manifest VersionManifest
	if err := r.s.fetch.FetchJSON(ctx, cfg.ManifestURL, &manifest); err != nil {
		return errors.Wrap(err, "version manifest")
	}

	entry, ok := manifest.Find(version)
	if !ok {
		return &VersionNotFoundError{Version: version}
	}

	r.progress.report(StageClient, "downloading-minecraft", 0.05, "")

	var raw json.RawMessage
	if err := r.s.fetch.FetchJSON(ctx, entry.URL, &raw); err != nil {
		return errors.Wrap(err, "version descriptor")
	}

	var desc VersionDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return errors.Wrapf(err, "parse descriptor for %s", version)
	}

	if desc.Downloads.Client == nil || desc.Downloads.Client.URL == "" {
		return errors.Errorf("descriptor for %s has no client download", version)
	}

	if err := writeFileAtomic(layout.ClientDescriptor(version), raw, 0o644); err != nil {
		return errors.Wrap(err, "store descriptor")
	}

	r.descriptor = &desc
	jar := layout.ClientJar(version)
	client := desc.Downloads.Client

	present, err := r.present(ctx, jar, client.SHA1)
	if err != nil {
		return err
	}

	if present {
		log.Debug("client jar present", logging.F("path", jar))
	} else {
		log.Info("downloading client", logging.F("version", version))
		err := r.download(ctx, client.URL, jar, client.SHA1, func(p fetch.Progress) {
			r.progress.report(StageClient, "downloading-minecraft", 0.05+0.65*p.Percent/100, "")
		})
		if err != nil {
			return errors.Wrap(err, "client jar")
		}
	}
	r.clientJar = jar

	r.progress.report(StageClient, "downloading-libraries", 0.7, "")
	r.ensureLibraries(ctx, desc.Libraries)
	r.progress.report(StageClient, "minecraft-ready", 1, "")

	return nil
}

func (r *run) ensureLibraries(ctx context.Context, libs []Library) {
	log := r.s.log
	total := len(libs)
	fetched, skipped := 0, 0

	for i, lib := range libs {
		r.progress.report(StageClient, "downloading-libraries", 0.7+0.3*float64(i)/float64(total), "")

		artifact, ok := lib.Artifact()
		if !ok || artifact.Path == "" || !lib.Allowed(r.s.cfg.GOOS) {
			continue
		}

		dest, err := r.s.layout.Library(artifact.Path)
		present := false
		if err == nil {
			present, err = r.present(ctx, dest, artifact.SHA1)
		}
		if err == nil && !present {
			err = r.download(ctx, artifact.URL, dest, artifact.SHA1, nil)
			if err == nil {
				fetched++
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				return
			}

			skipped++
			log.Warn("library skipped", logging.F("library", lib.Name), logging.Err(err))
			if dest == "" {
				dest = artifact.Path
			}
			_ = r.s.cfg.Events.Emit(events.LibrarySkipped{Base: events.Now(), Path: dest, Err: err})
			continue
		}

		r.libraries = append(r.libraries, dest)
	}

	log.Info("libraries ready",
		logging.F("available", len(r.libraries)),
		logging.F("downloaded", fetched),
		logging.F("skipped", skipped))
}

// present reports whether path already holds the artifact. Without checksum
// verification existence is enough.
func (r *run) present(ctx context.Context, path, sum string) (bool, error) {
	if r.s.cfg.VerifyChecksums && r.s.cfg.Ledger != nil && sum != "" {
		return r.s.cfg.Ledger.Present(ctx, path, sum)
	}

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return err == nil, errors.WithStack(err)
}

func (r *run) download(ctx context.Context, url, dest, sum string, onProgress fetch.ProgressFunc) error {
	if !r.s.cfg.VerifyChecksums || sum == "" {
		return r.s.fetch.Download(ctx, url, dest, onProgress)
	}

	if err := r.s.fetch.DownloadVerified(ctx, url, dest, sum, onProgress); err != nil {
		return err
	}

	if r.s.cfg.Ledger == nil {
		return nil
	}

	info, err := os.Stat(dest)
	if err != nil {
		return errors.WithStack(err)
	}

	return r.s.cfg.Ledger.Record(ctx, dest, sum, info.Size())
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Chmod(tmp.Name(), perm); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}
