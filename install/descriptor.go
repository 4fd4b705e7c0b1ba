package install

// VersionManifest is the top level index of game versions.
type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []ManifestEntry `json:"versions"`
}

type ManifestEntry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
}

func (m *VersionManifest) Find(version string) (ManifestEntry, bool) {
	for _, v := range m.Versions {
		if v.ID == version {
			return v, true
		}
	}

	return ManifestEntry{}, false
}

// VersionDescriptor is the per-version metadata document.
type VersionDescriptor struct {
	ID                 string    `json:"id"`
	Type               string    `json:"type,omitempty"`
	InheritsFrom       string    `json:"inheritsFrom,omitempty"`
	Jar                string    `json:"jar,omitempty"`
	MainClass          string    `json:"mainClass"`
	MinecraftArguments string    `json:"minecraftArguments,omitempty"`
	Assets             string    `json:"assets,omitempty"`
	AssetIndex         *AssetRef `json:"assetIndex,omitempty"`
	Downloads          struct {
		Client *Artifact `json:"client,omitempty"`
	} `json:"downloads"`
	Libraries []Library `json:"libraries"`
}

type AssetRef struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
}

type Artifact struct {
	Path string `json:"path,omitempty"`
	URL  string `json:"url"`
	SHA1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
}

type Library struct {
	Name      string `json:"name"`
	Downloads *struct {
		Artifact *Artifact `json:"artifact,omitempty"`
	} `json:"downloads,omitempty"`
	Rules []Rule `json:"rules,omitempty"`
}

type Rule struct {
	Action string `json:"action"`
	OS     *struct {
		Name string `json:"name"`
	} `json:"os,omitempty"`
}

// Artifact returns the library's main download, if it has one.
func (l Library) Artifact() (*Artifact, bool) {
	if l.Downloads == nil || l.Downloads.Artifact == nil || l.Downloads.Artifact.URL == "" {
		return nil, false
	}

	return l.Downloads.Artifact, true
}

// Allowed evaluates the library rules for goos. With no rules a library is
// always allowed; otherwise the last matching rule decides.
func (l Library) Allowed(goos string) bool {
	if len(l.Rules) == 0 {
		return true
	}

	host := osName(goos)
	allowed := false
	for _, r := range l.Rules {
		if r.OS != nil && r.OS.Name != host {
			continue
		}
		allowed = r.Action == "allow"
	}

	return allowed
}

func osName(goos string) string {
	switch goos {
	case "darwin":
		return "osx"
	default:
		return goos
	}
}
