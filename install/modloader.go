package install

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/n1ntencube/CubicLauncher/fetch"
	"github.com/n1ntencube/CubicLauncher/logging"
)

const (
	DefaultModLoaderVersion = "14.23.5.2860"
	DefaultInstallerURL     = "https://maven.minecraftforge.net/net/minecraftforge/forge/{mc}-{loader}/forge-{mc}-{loader}-installer.jar"
	DefaultModLoaderURL     = "https://maven.minecraftforge.net/net/minecraftforge/forge/{mc}-{loader}/forge-{mc}-{loader}-universal.jar"

	modLoaderMainClass = "net.minecraft.launchwrapper.Launch"
	modLoaderTweaker   = "net.minecraftforge.fml.common.launcher.FMLTweaker"
)

type ModLoaderConfig struct {
	Enabled bool
	Version string
	// ArtifactURL and InstallerURL may contain {mc} and {loader}.
	ArtifactURL  string
	InstallerURL string
	// RunInstaller downloads the installer and runs it with the runtime
	// instead of fetching the artifact directly.
	RunInstaller bool
}

func (c *ModLoaderConfig) setDefaults() {
	if c.Version == "" {
		c.Version = DefaultModLoaderVersion
	}

	if c.ArtifactURL == "" {
		c.ArtifactURL = DefaultModLoaderURL
	}

	if c.InstallerURL == "" {
		c.InstallerURL = DefaultInstallerURL
	}
}

func (c ModLoaderConfig) expand(tmpl, mc string) string {
	return strings.NewReplacer("{mc}", mc, "{loader}", c.Version).Replace(tmpl)
}

func (r *run) ensureModLoader(ctx context.Context) error {
	cfg := r.s.cfg
	ml := cfg.ModLoader
	if !ml.Enabled {
		r.progress.report(StageModLoader, "mod-loader-disabled", 1, "")
		return nil
	}

	log := r.s.log
	layout := r.s.layout
	jar := layout.ModLoaderJar(cfg.Version, ml.Version)

	present, err := r.present(ctx, jar, "")
	if err != nil {
		return err
	}

	switch {
	case present:
		log.Debug("mod loader present", logging.F("path", jar))
	case ml.RunInstaller:
		if err := r.runInstaller(ctx, jar); err != nil {
			return err
		}
	default:
		log.Info("downloading mod loader", logging.F("version", ml.Version))
		err := r.s.fetch.Download(ctx, ml.expand(ml.ArtifactURL, cfg.Version), jar, func(p fetch.Progress) {
			r.progress.report(StageModLoader, "downloading-forge", 0.8*p.Percent/100, "")
		})
		if err != nil {
			return errors.Wrap(err, "mod loader")
		}
	}

	r.progress.report(StageModLoader, "installing-forge", 0.9, "")
	if err := r.writeModLoaderDescriptor(); err != nil {
		return errors.Wrap(err, "mod loader descriptor")
	}

	r.modLoaderJar = jar
	r.progress.report(StageModLoader, "forge-ready", 1, "")

	return nil
}

func (r *run) runInstaller(ctx context.Context, jar string) error {
	cfg := r.s.cfg
	ml := cfg.ModLoader
	installer := r.s.layout.ModLoaderInstaller(cfg.Version, ml.Version)

	r.s.log.Info("downloading mod loader installer", logging.F("version", ml.Version))
	err := r.s.fetch.Download(ctx, ml.expand(ml.InstallerURL, cfg.Version), installer, func(p fetch.Progress) {
		r.progress.report(StageModLoader, "downloading-forge", 0.5*p.Percent/100, "")
	})
	if err != nil {
		return errors.Wrap(err, "mod loader installer")
	}

	r.progress.report(StageModLoader, "installing-forge", 0.5, "")
	code, err := r.s.runner.Run(ctx, r.s.layout.Root, r.javaPath, "-jar", installer, "--installClient", r.s.layout.Root)
	if err != nil {
		return &InstallerError{ExitCode: -1, Err: err}
	}
	if code != 0 {
		return &InstallerError{ExitCode: code}
	}

	if _, err := os.Stat(jar); err != nil {
		return &InstallerError{Err: errors.Errorf("installer finished but %s is missing", jar)}
	}

	return nil
}

// writeModLoaderDescriptor stores a version descriptor that inherits from the
// base client and adds the loader to the library list.
func (r *run) writeModLoaderDescriptor() error {
	cfg := r.s.cfg
	desc := VersionDescriptor{
		ID:           ModLoaderVersionID(cfg.Version),
		Type:         "release",
		InheritsFrom: cfg.Version,
		Jar:          cfg.Version,
		MainClass:    modLoaderMainClass,
		Libraries: []Library{
			{Name: "net.minecraftforge:forge:" + cfg.Version + "-" + cfg.ModLoader.Version},
		},
	}

	if r.descriptor != nil {
		desc.MinecraftArguments = strings.TrimSpace(r.descriptor.MinecraftArguments + " --tweakClass " + modLoaderTweaker)
	} else {
		desc.MinecraftArguments = "--tweakClass " + modLoaderTweaker
	}

	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}

	return writeFileAtomic(r.s.layout.ModLoaderDescriptor(cfg.Version), data, 0o644)
}
