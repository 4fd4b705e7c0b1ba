package install

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Layout resolves paths under a game root:
//
//	versions/<v>/<v>.jar, versions/<v>/<v>.json
//	versions/<v>-forge/<v>-forge.json
//	libraries/..., mods/*.jar, assets/, runtime/
type Layout struct {
	Root string
}

func (l Layout) VersionsDir() string { return filepath.Join(l.Root, "versions") }

func (l Layout) VersionDir(version string) string {
	return filepath.Join(l.VersionsDir(), version)
}

func (l Layout) ClientJar(version string) string {
	return filepath.Join(l.VersionDir(version), version+".jar")
}

func (l Layout) ClientDescriptor(version string) string {
	return filepath.Join(l.VersionDir(version), version+".json")
}

func (l Layout) LibrariesDir() string { return filepath.Join(l.Root, "libraries") }

// Library maps a maven-style artifact path onto the libraries dir. Paths
// that would land outside it fail with ErrUnsafePath.
func (l Layout) Library(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if path == "" || filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" ||
		clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, path)
	}

	return filepath.Join(l.LibrariesDir(), clean), nil
}

func (l Layout) ModsDir() string { return filepath.Join(l.Root, "mods") }

func (l Layout) AssetsDir() string { return filepath.Join(l.Root, "assets") }

func (l Layout) NativesDir(version string) string {
	return filepath.Join(l.VersionDir(version), "natives")
}

func (l Layout) RuntimeDir() string { return filepath.Join(l.Root, "runtime") }

func ModLoaderVersionID(version string) string { return version + "-forge" }

func (l Layout) ModLoaderDescriptor(version string) string {
	id := ModLoaderVersionID(version)
	return filepath.Join(l.VersionDir(id), id+".json")
}

func (l Layout) ModLoaderJar(version, loaderVersion string) string {
	coord := version + "-" + loaderVersion
	return filepath.Join(l.LibrariesDir(), "net", "minecraftforge", "forge", coord, "forge-"+coord+".jar")
}

func (l Layout) ModLoaderInstaller(version, loaderVersion string) string {
	return filepath.Join(l.VersionsDir(), "forge-"+version+"-"+loaderVersion+"-installer.jar")
}
