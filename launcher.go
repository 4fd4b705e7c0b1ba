package launcher

import (
	"context"

	"github.com/n1ntencube/CubicLauncher/accounts"
	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/events"
	"github.com/n1ntencube/CubicLauncher/install"
	"github.com/n1ntencube/CubicLauncher/launch"
	"github.com/n1ntencube/CubicLauncher/mods"
	"github.com/n1ntencube/CubicLauncher/status"
)

// Launcher is the control surface for UI layers: the CLI, the websocket
// bridge and anything embedding the library.
type Launcher interface {
	LoginWithDeviceCode(ctx context.Context, prompt func(auth.DeviceAuthorization)) (auth.Identity, error)
	LoginWithBrowser(ctx context.Context) (auth.Identity, error)
	Logout() error

	Accounts() (accounts.Listing, error)
	UseAccount(id string) error
	RemoveAccount(id string) error
	CurrentAccount() (auth.Identity, error)

	Install(ctx context.Context, req InstallRequest) (install.LaunchConfig, error)
	Play(ctx context.Context, req InstallRequest) (*launch.Process, error)
	Start(lc install.LaunchConfig) (*launch.Process, error)
	KillGame() error
	EnsureRuntime(ctx context.Context, sink install.Sink) (string, error)
	GameDir() string

	InstalledMods() ([]mods.Mod, error)
	RemoveMod(name string) error
	Packs() []mods.Summary

	Status(ctx context.Context) []status.Result
	WatchStatus(ctx context.Context, fn func([]status.Result))

	Subscribe(buffer int, filter events.Predicate) (*events.Subscription, error)
	WaitFor(ctx context.Context, pred events.Predicate) (events.Event, error)
	Close() error
}
