package install

import (
	"context"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/fetch"
	"github.com/n1ntencube/CubicLauncher/internal/lockset"
	"github.com/n1ntencube/CubicLauncher/logging"
)

const DefaultVersion = "1.12.2"

type Config struct {
	GameDir     string
	Version     string
	ManifestURL string
	AssetIndex  string
	Memory      Memory
	Runtime     RuntimeConfig
	ModLoader   ModLoaderConfig

	// VerifyChecksums checks published sha1 sums and consults Ledger
	// before trusting files already on disk.
	VerifyChecksums bool
	Ledger          *Ledger

	Fetcher *fetch.Fetcher
	Runner  Runner
	Locks   *lockset.Set
	Events  events.Emitter
	Logger  logging.Logger

	// GOOS and GOARCH default to the host.
	GOOS   string
	GOARCH string
}

type Sequencer struct {
	cfg    Config
	layout Layout
	fetch  *fetch.Fetcher
	runner Runner
	log    logging.Logger
}

func NewSequencer(cfg Config) (*Sequencer, error) {
	if cfg.GameDir == "" {
		return nil, errors.New("install: game dir is required")
	}

	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}

	if cfg.ManifestURL == "" {
		cfg.ManifestURL = DefaultManifestURL
	}

	if cfg.AssetIndex == "" {
		cfg.AssetIndex = DefaultAssetIndex
	}

	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}

	if cfg.GOARCH == "" {
		cfg.GOARCH = runtime.GOARCH
	}

	if cfg.Locks == nil {
		cfg.Locks = lockset.New()
	}

	if cfg.Events == nil {
		cfg.Events = events.Discard
	}

	cfg.Logger = logging.With(cfg.Logger)
	cfg.Runtime.setDefaults()
	cfg.ModLoader.setDefaults()

	if cfg.Fetcher == nil {
		cfg.Fetcher = fetch.New(fetch.Config{Logger: cfg.Logger})
	}

	if cfg.Runner == nil {
		cfg.Runner = ExecRunner{Logger: cfg.Logger}
	}

	return &Sequencer{
		cfg:    cfg,
		layout: Layout{Root: cfg.GameDir},
		fetch:  cfg.Fetcher,
		runner: cfg.Runner,
		log:    cfg.Logger,
	}, nil
}

func (s *Sequencer) Layout() Layout { return s.layout }

func (s *Sequencer) Version() string { return s.cfg.Version }

type Request struct {
	ModURLs  []string
	Identity auth.Identity
	Progress Sink
}

// run carries the state of one sequencer pass.
type run struct {
	s            *Sequencer
	progress     *tracker
	stage        Stage
	javaPath     string
	descriptor   *VersionDescriptor
	clientJar    string
	libraries    []string
	modLoaderJar string
	mods         []string
}

func (s *Sequencer) newRun(sink Sink) *run {
	return &run{s: s, progress: newTracker(EmitterSink(s.cfg.Events), sink)}
}

// lock claims the game dir. A second run on the same dir gets
// ErrInstallRunning right away.
func (s *Sequencer) lock() (func(), error) {
	unlock, ok := s.cfg.Locks.TryLock(s.layout.Root)
	if !ok {
		s.log.Warn("install already running", logging.F("game_dir", s.layout.Root))
		return nil, ErrInstallRunning
	}

	return unlock, nil
}

// Run installs everything the game needs and returns its launch config.
// Stages run in order and the first error ends the run. Only one run per
// game dir proceeds at a time; others fail with ErrInstallRunning.
func (s *Sequencer) Run(ctx context.Context, req Request) (LaunchConfig, error) {
	unlock, err := s.lock()
	if err != nil {
		return LaunchConfig{}, err
	}
	defer unlock()

	r := s.newRun(req.Progress)
	s.log.Info("install started",
		logging.F("game_dir", s.layout.Root),
		logging.F("version", s.cfg.Version),
		logging.F("mods", len(req.ModURLs)))

	steps := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageRuntime, r.ensureRuntime},
		{StageClient, r.ensureClient},
		{StageModLoader, r.ensureModLoader},
		{StageMods, func(ctx context.Context) error { return r.ensureMods(ctx, req.ModURLs) }},
	}

	for _, step := range steps {
		r.stage = step.stage
		if err := ctx.Err(); err != nil {
			return LaunchConfig{}, r.fail(err)
		}

		if err := step.fn(ctx); err != nil {
			return LaunchConfig{}, r.fail(errors.WithMessage(err, string(step.stage)))
		}
	}

	r.stage = StageLaunchConfig
	r.progress.report(StageLaunchConfig, "building-launch-config", 0, "")
	lc := BuildLaunchConfig(r.installation(), req.Identity, s.cfg.Memory)

	r.progress.report(StageDone, "complete", 1, "")
	_ = s.cfg.Events.Emit(events.InstallCompleted{Base: events.Now(), GameDir: s.layout.Root, Version: s.cfg.Version})
	s.log.Info("install completed", logging.F("version", s.cfg.Version), logging.F("mod_loader", lc.ModLoader))

	return lc, nil
}

// EnsureRuntime runs only the runtime stage and returns the java path.
func (s *Sequencer) EnsureRuntime(ctx context.Context, sink Sink) (string, error) {
	unlock, err := s.lock()
	if err != nil {
		return "", err
	}
	defer unlock()

	r := s.newRun(sink)
	r.stage = StageRuntime
	if err := r.ensureRuntime(ctx); err != nil {
		return "", r.fail(errors.WithMessage(err, string(StageRuntime)))
	}

	return r.javaPath, nil
}

func (r *run) installation() Installation {
	cfg := r.s.cfg
	assetIndex := cfg.AssetIndex
	if r.descriptor != nil && r.descriptor.AssetIndex != nil && r.descriptor.AssetIndex.ID != "" {
		assetIndex = r.descriptor.AssetIndex.ID
	}

	return Installation{
		GameDir:      r.s.layout.Root,
		Version:      cfg.Version,
		AssetIndex:   assetIndex,
		JavaPath:     r.javaPath,
		ClientJar:    r.clientJar,
		Libraries:    append([]string(nil), r.libraries...),
		ModLoaderJar: r.modLoaderJar,
		NativesDir:   r.s.layout.NativesDir(cfg.Version),
		AssetsDir:    r.s.layout.AssetsDir(),
		Mods:         append([]string(nil), r.mods...),
	}
}

func (r *run) fail(err error) error {
	r.s.log.Error("install failed", logging.F("stage", string(r.stage)), logging.Err(err))

	pct := r.progress.percent()
	p := Progress{Stage: r.stage, Status: "error", Percent: pct}
	for _, sink := range r.progress.sinks {
		sink(p)
	}

	_ = r.s.cfg.Events.Emit(events.InstallFailed{Base: events.Now(), Stage: string(r.stage), Err: err})

	return err
}

// ClasspathSeparator is the host's classpath list separator.
func ClasspathSeparator() string {
	return string(filepath.ListSeparator)
}
