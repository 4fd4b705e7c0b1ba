package launcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/n1ntencube/CubicLauncher/accounts"
	"github.com/n1ntencube/CubicLauncher/auth"
	"github.com/n1ntencube/CubicLauncher/fetch"
	"github.com/n1ntencube/CubicLauncher/install"
	"github.com/n1ntencube/CubicLauncher/launch"
	"github.com/n1ntencube/CubicLauncher/mods"
)

// Describe turns an error from any launcher operation into one sentence
// fit for an end user. Unknown errors fall back to their own text.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var (
		denied    *auth.AuthorizationDenied
		provider  *auth.ProviderError
		authNet   *auth.NetworkError
		version   *install.VersionNotFoundError
		mod       *install.ModError
		extract   *install.ExtractionError
		installer *install.InstallerError
		checksum  *fetch.ChecksumError
		download  *fetch.DownloadError
		fetchNet  *fetch.NetworkError
		spawn     *launch.SpawnError
	)

	switch {
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	case errors.Is(err, ErrNoAccount):
		return "No account selected. Log in first."
	case errors.Is(err, ErrSessionExpired):
		return "Your game session has expired. Log in again."
	case errors.Is(err, ErrUnknownPack):
		return "That mod pack does not exist."
	case errors.Is(err, auth.ErrNotEntitled):
		return "This account does not own Minecraft."
	case errors.Is(err, auth.ErrTimeout):
		return "Login timed out before it was completed."
	case errors.As(err, &denied):
		return "Login was cancelled or denied."
	case errors.As(err, &provider):
		return fmt.Sprintf("The login service refused the request (%s, HTTP %d).", provider.Hop, provider.Status)
	case errors.As(err, &authNet):
		return fmt.Sprintf("Could not reach the login service (%s).", authNet.Hop)
	case errors.Is(err, accounts.ErrNotFound):
		return "No such account."
	case errors.Is(err, install.ErrInstallRunning):
		return "An installation is already running for this game folder."
	case errors.Is(err, install.ErrUnsafePath):
		return "The game files list a path outside the game folder."
	case errors.Is(err, install.ErrUnsupportedPlatform):
		return "No Java runtime is available for this platform. Install Java 8 manually."
	case errors.Is(err, install.ErrRuntimeNotFound):
		return "The downloaded Java runtime does not contain a java executable."
	case errors.As(err, &version):
		return fmt.Sprintf("Minecraft %s is not available.", version.Version)
	case errors.As(err, &mod):
		return fmt.Sprintf("Could not install mod %s.", mod.Name)
	case errors.As(err, &extract):
		return "The Java runtime archive could not be extracted."
	case errors.As(err, &installer):
		if installer.Err != nil {
			return "The mod loader installer did not produce the expected files."
		}
		return fmt.Sprintf("The mod loader installer failed (exit code %d).", installer.ExitCode)
	case errors.As(err, &checksum):
		return "A downloaded file was corrupt. Try again."
	case errors.Is(err, fetch.ErrTooManyRedirects):
		return "A download was redirected too many times."
	case errors.As(err, &download):
		return fmt.Sprintf("A download failed (HTTP %d).", download.Status)
	case errors.As(err, &fetchNet):
		return "A download failed. Check your internet connection."
	case errors.As(err, &spawn):
		return "Could not start Java."
	case errors.Is(err, launch.ErrNotRunning):
		return "The game is not running."
	case errors.Is(err, mods.ErrNotFound):
		return "That mod is not installed."
	case errors.Is(err, mods.ErrInvalidName):
		return "Invalid mod name."
	}

	return err.Error()
}
