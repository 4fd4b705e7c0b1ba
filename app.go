package launcher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/n1ntencube/CubicLauncher/accounts"
	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/auth/callback"
	"github.com/n1ntencube/CubicLauncher/auth/login"
	"github.com/n1ntencube/CubicLauncher/auth/microsoft"
	"github.com/n1ntencube/CubicLauncher/auth/minecraft"
	"github.com/n1ntencube/CubicLauncher/auth/xbox"
	"github.com/n1ntencube/CubicLauncher/config"
	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/fetch"
	"github.com/n1ntencube/CubicLauncher/install"
	"github.com/n1ntencube/CubicLauncher/internal/httpcache"
	"github.com/n1ntencube/CubicLauncher/internal/lockset"
	"github.com/n1ntencube/CubicLauncher/launch"
	"github.com/n1ntencube/CubicLauncher/logging"
	"github.com/n1ntencube/CubicLauncher/mods"
	"github.com/n1ntencube/CubicLauncher/status"
)

var (
	ErrNoAccount      = errors.New("launcher: no account selected")
	ErrSessionExpired = errors.New("launcher: game session expired")
	ErrUnknownPack    = errors.New("launcher: unknown mod pack")
)

const authTimeout = 30 * time.Second

// Options are the process-level collaborators that do not come from the
// config file.
type Options struct {
	Logger logging.Logger
	// HTTPClient supplies the transport for every outbound call. Metadata
	// GETs also pass through the sqlite cache.
	HTTPClient  *http.Client
	OpenBrowser func(url string) error
	LookPath    func(file string) (string, error)
	Runner      install.Runner
	Game        launch.Config
}

// App owns every launcher component for one configuration.
type App struct {
	cfg *config.Config
	log logging.Logger

	bus   *events.Bus
	locks *lockset.Set
	db    *sql.DB

	accounts *accounts.Store
	session  *accounts.Session
	chain    *login.Chain

	sequencer *install.Sequencer
	game      *launch.Launcher
	status    *status.Checker
	catalog   *mods.Catalog

	now func() time.Time
}

var _ Launcher = (*App)(nil)

func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	log := logging.With(opts.Logger)

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	var rt http.RoundTripper = base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}

	if cfg.HTTP.Debug {
		rt = &httpcache.Debugger{Transport: rt, Logger: logging.Named(log, "http")}
	}

	db, err := openCacheDB(cfg.Paths.CacheDB)
	if err != nil {
		return nil, err
	}

	cache := httpcache.New(db, rt, cfg.HTTP.CacheTTL)
	cache.Logger = logging.Named(log, "httpcache")
	if err := cache.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("launcher: migrate cache: %w", err)
	}

	var ledger *install.Ledger
	if cfg.Mods.VerifyChecksums {
		ledger = install.NewLedger(db)
		if err := ledger.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("launcher: migrate ledger: %w", err)
		}
	}

	bus := events.NewBus()
	locks := lockset.New()

	authHTTP := &http.Client{Transport: rt, Timeout: authTimeout}
	downloads := &http.Client{Transport: rt, Jar: base.Jar}

	app := &App{
		cfg:     cfg,
		log:     log,
		bus:     bus,
		locks:   locks,
		db:      db,
		session: accounts.NewSession(cfg.Paths.SessionFile, locks),
		catalog: mods.NewCatalog(cfg.Mods.Packs),
		now:     time.Now,
	}

	fail := func(err error) (*App, error) {
		bus.Close()
		db.Close()
		return nil, err
	}

	app.accounts, err = accounts.NewStore(accounts.Config{
		Path:   cfg.Paths.AccountsFile,
		Locks:  locks,
		Events: bus,
		Logger: logging.Named(log, "accounts"),
	})
	if err != nil {
		return fail(err)
	}

	cb := callback.Config{
		Addr:    cfg.Auth.CallbackAddr,
		Path:    callback.DefaultPath,
		Timeout: cfg.Auth.LoginTimeout,
		Logger:  logging.Named(log, "callback"),
	}
	if cb.Addr == "" {
		cb.Addr = callback.DefaultAddr
	}

	endpoints := cfg.Auth.Endpoints
	app.chain, err = login.NewChain(login.Config{
		Identity: microsoft.NewClient(microsoft.Config{
			ClientID:      cfg.Auth.ClientID,
			Scope:         cfg.Auth.Scope,
			DeviceCodeURL: endpoints.DeviceCode,
			TokenURL:      endpoints.Token,
			AuthorizeURL:  endpoints.Authorize,
			RedirectURL:   "http://" + cb.Addr + cb.Path,
			HTTPClient:    authHTTP,
			Logger:        logging.Named(log, "microsoft"),
		}),
		Federation: xbox.NewClient(xbox.Config{
			UserAuthenticateURL: endpoints.XBL,
			XSTSAuthorizeURL:    endpoints.XSTS,
			HTTPClient:          authHTTP,
		}),
		Game: minecraft.NewClient(minecraft.Config{
			LoginURL:   endpoints.GameLogin,
			ProfileURL: endpoints.Profile,
			HTTPClient: authHTTP,
		}),
		Callback:    cb,
		OpenBrowser: opts.OpenBrowser,
		Events:      bus,
		Logger:      logging.Named(log, "login"),
	})
	if err != nil {
		return fail(err)
	}

	fetcher := fetch.New(fetch.Config{
		HTTPClient:     downloads,
		MetadataClient: cache.Client(),
		Logger:         logging.Named(log, "fetch"),
	})

	app.sequencer, err = install.NewSequencer(install.Config{
		GameDir:     cfg.Paths.GameDir,
		Version:     cfg.Game.Version,
		ManifestURL: cfg.Game.ManifestURL,
		AssetIndex:  cfg.Game.AssetIndex,
		Memory:      install.Memory{MinMB: cfg.Game.MinMemoryMB, MaxMB: cfg.Game.MaxMemoryMB},
		Runtime: install.RuntimeConfig{
			Binary:   cfg.Game.JavaBinary,
			URLs:     cfg.Game.RuntimeURLs,
			LookPath: opts.LookPath,
		},
		ModLoader: install.ModLoaderConfig{
			Enabled:      cfg.ModLoader.Enabled,
			Version:      cfg.ModLoader.Version,
			ArtifactURL:  cfg.ModLoader.ArtifactURL,
			InstallerURL: cfg.ModLoader.InstallerURL,
			RunInstaller: cfg.ModLoader.RunInstaller,
		},
		VerifyChecksums: cfg.Mods.VerifyChecksums,
		Ledger:          ledger,
		Fetcher:         fetcher,
		Runner:          opts.Runner,
		Locks:           locks,
		Events:          bus,
		Logger:          logging.Named(log, "install"),
	})
	if err != nil {
		return fail(err)
	}

	game := opts.Game
	game.Events = bus
	game.Logger = logging.Named(log, "game")
	app.game = launch.New(game)

	app.status = status.NewChecker(status.Config{
		Services:   cfg.Status.Services,
		HTTPClient: &http.Client{Transport: rt},
		Logger:     logging.Named(log, "status"),
	})

	log.Debug("launcher opened",
		logging.F("game_dir", cfg.Paths.GameDir),
		logging.F("cache_db", cfg.Paths.CacheDB))

	return app, nil
}

func openCacheDB(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("launcher: create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("launcher: open cache: %w", err)
	}

	// one writer; the cache and the ledger share the handle
	db.SetMaxOpenConns(1)

	return db, nil
}

// Close releases the event bus and the cache database. A running game is
// detached and keeps running.
func (a *App) Close() error {
	a.bus.Close()

	return a.db.Close()
}

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Bus() *events.Bus { return a.bus }

func (a *App) Subscribe(buffer int, filter events.Predicate) (*events.Subscription, error) {
	return a.bus.Subscribe(buffer, filter)
}

func (a *App) WaitFor(ctx context.Context, pred events.Predicate) (events.Event, error) {
	return a.bus.WaitFor(ctx, pred)
}

// LoginWithDeviceCode runs the device-code login, stores the account and
// makes it the current session.
func (a *App) LoginWithDeviceCode(ctx context.Context, prompt func(auth.DeviceAuthorization)) (auth.Identity, error) {
	id, err := a.chain.LoginWithDeviceCode(ctx, prompt)
	if err != nil {
		return auth.Identity{}, err
	}

	return id, a.remember(id)
}

// LoginWithBrowser runs the loopback authorization-code login.
func (a *App) LoginWithBrowser(ctx context.Context) (auth.Identity, error) {
	id, err := a.chain.LoginWithBrowser(ctx)
	if err != nil {
		return auth.Identity{}, err
	}

	return id, a.remember(id)
}

func (a *App) remember(id auth.Identity) error {
	if err := a.accounts.Upsert(id); err != nil {
		return err
	}

	if err := a.accounts.SetCurrent(id.Profile.ID); err != nil {
		return err
	}

	return a.session.Save(id)
}

func (a *App) Accounts() (accounts.Listing, error) {
	return a.accounts.List()
}

// UseAccount selects a stored account and mirrors it into the session file.
func (a *App) UseAccount(id string) error {
	if err := a.accounts.SetCurrent(id); err != nil {
		return err
	}

	rec, err := a.accounts.LoadCurrent()
	if err != nil {
		return err
	}

	if rec == nil {
		return accounts.ErrNotFound
	}

	return a.session.Save(*rec)
}

func (a *App) RemoveAccount(id string) error {
	if err := a.accounts.Remove(id); err != nil {
		return err
	}

	cur, err := a.session.Load()
	if err != nil {
		return err
	}

	if cur != nil && cur.Profile.ID == id {
		return a.session.Clear()
	}

	return nil
}

// Logout forgets the current session. Stored accounts are kept.
func (a *App) Logout() error {
	return a.session.Clear()
}

// CurrentAccount returns the identity the game will be launched with.
// The session file wins over the account list's current pointer.
func (a *App) CurrentAccount() (auth.Identity, error) {
	rec, err := a.session.Load()
	if err != nil {
		return auth.Identity{}, err
	}

	if rec == nil {
		rec, err = a.accounts.LoadCurrent()
		if err != nil {
			return auth.Identity{}, err
		}
	}

	if rec == nil {
		return auth.Identity{}, ErrNoAccount
	}

	return *rec, nil
}

// InstallRequest names the mods to install, either as a catalog pack or as
// explicit URLs. URLs win when both are set.
type InstallRequest struct {
	PackID   string
	ModURLs  []string
	Progress install.Sink
}

func (a *App) resolveMods(req InstallRequest) ([]string, error) {
	if len(req.ModURLs) > 0 || req.PackID == "" {
		return req.ModURLs, nil
	}

	pack, ok := a.catalog.Get(req.PackID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPack, req.PackID)
	}

	return pack.Mods, nil
}

// Install runs the installation sequence for the current account and
// returns the resulting launch configuration without starting the game.
func (a *App) Install(ctx context.Context, req InstallRequest) (install.LaunchConfig, error) {
	id, err := a.CurrentAccount()
	if err != nil {
		return install.LaunchConfig{}, err
	}

	if id.Authorization.Expired(a.now()) {
		return install.LaunchConfig{}, ErrSessionExpired
	}

	urls, err := a.resolveMods(req)
	if err != nil {
		return install.LaunchConfig{}, err
	}

	return a.sequencer.Run(ctx, install.Request{ModURLs: urls, Identity: id, Progress: req.Progress})
}

// Play installs and starts the game.
func (a *App) Play(ctx context.Context, req InstallRequest) (*launch.Process, error) {
	lc, err := a.Install(ctx, req)
	if err != nil {
		return nil, err
	}

	return a.Start(lc)
}

// Start launches an already installed game.
func (a *App) Start(lc install.LaunchConfig) (*launch.Process, error) {
	a.log.Info("launching game", logging.F("command", lc.Redacted(install.ClasspathSeparator())))

	return a.game.Start(lc)
}

func (a *App) KillGame() error {
	return a.game.KillLast()
}

func (a *App) EnsureRuntime(ctx context.Context, sink install.Sink) (string, error) {
	return a.sequencer.EnsureRuntime(ctx, sink)
}

func (a *App) GameDir() string {
	return a.sequencer.Layout().Root
}

func (a *App) InstalledMods() ([]mods.Mod, error) {
	return mods.List(a.sequencer.Layout().ModsDir())
}

// RemoveMod deletes one jar from the mods directory. It shares the game
// dir lock with the sequencer and fails with install.ErrInstallRunning
// while an install holds it.
func (a *App) RemoveMod(name string) error {
	unlock, ok := a.locks.TryLock(a.sequencer.Layout().Root)
	if !ok {
		return install.ErrInstallRunning
	}
	defer unlock()

	return mods.Remove(a.sequencer.Layout().ModsDir(), name)
}

func (a *App) Packs() []mods.Summary {
	return a.catalog.List()
}

func (a *App) Status(ctx context.Context) []status.Result {
	return a.status.Check(ctx)
}

// WatchStatus calls fn with fresh results on the configured interval until
// ctx ends.
func (a *App) WatchStatus(ctx context.Context, fn func([]status.Result)) {
	a.status.Watch(ctx, a.cfg.Status.Interval, fn)
}
