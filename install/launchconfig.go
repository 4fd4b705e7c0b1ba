package install

import (
	"fmt"
	"strings"

	"github.com/n1ntencube/CubicLauncher/auth"
)

const (
	vanillaMainClass  = "net.minecraft.client.main.Main"
	DefaultMinMemory  = 1024
	DefaultMaxMemory  = 2048
	DefaultAssetIndex = "1.12"
)

type Memory struct {
	MinMB int
	MaxMB int
}

// Installation is what a finished run leaves on disk.
type Installation struct {
	GameDir      string
	Version      string
	AssetIndex   string
	JavaPath     string
	ClientJar    string
	Libraries    []string
	ModLoaderJar string
	NativesDir   string
	AssetsDir    string
	Mods         []string
}

// LaunchConfig is everything needed to start the game process.
type LaunchConfig struct {
	JavaPath  string
	GameDir   string
	MainClass string
	Classpath []string
	JVMArgs   []string
	GameArgs  []string
	ModLoader bool
	Profile   auth.GameProfile
}

// BuildLaunchConfig turns an installation and an identity into a launch
// configuration. It does no I/O.
func BuildLaunchConfig(inst Installation, id auth.Identity, mem Memory) LaunchConfig {
	if mem.MinMB <= 0 {
		mem.MinMB = DefaultMinMemory
	}
	if mem.MaxMB <= 0 {
		mem.MaxMB = DefaultMaxMemory
	}
	if mem.MinMB > mem.MaxMB {
		mem.MinMB = mem.MaxMB
	}

	assetIndex := inst.AssetIndex
	if assetIndex == "" {
		assetIndex = DefaultAssetIndex
	}

	cp := make([]string, 0, len(inst.Libraries)+2)
	cp = append(cp, inst.Libraries...)
	modLoader := inst.ModLoaderJar != ""
	if modLoader && !contains(cp, inst.ModLoaderJar) {
		cp = append(cp, inst.ModLoaderJar)
	}
	cp = append(cp, inst.ClientJar)

	jvm := []string{
		fmt.Sprintf("-Xms%dM", mem.MinMB),
		fmt.Sprintf("-Xmx%dM", mem.MaxMB),
		"-Dfile.encoding=UTF-8",
		"-Djava.net.preferIPv4Stack=true",
	}
	if inst.NativesDir != "" {
		jvm = append(jvm, "-Djava.library.path="+inst.NativesDir)
	}

	version := inst.Version
	mainClass := vanillaMainClass
	if modLoader {
		version = ModLoaderVersionID(inst.Version)
		mainClass = modLoaderMainClass
	}

	game := []string{
		"--username", id.Profile.Name,
		"--version", version,
		"--gameDir", inst.GameDir,
		"--assetsDir", inst.AssetsDir,
		"--assetIndex", assetIndex,
		"--uuid", id.Profile.ID,
		"--accessToken", id.Authorization.AccessToken,
		"--userType", "msa",
	}
	if modLoader {
		game = append(game, "--tweakClass", modLoaderTweaker)
	}

	return LaunchConfig{
		JavaPath:  inst.JavaPath,
		GameDir:   inst.GameDir,
		MainClass: mainClass,
		Classpath: cp,
		JVMArgs:   jvm,
		GameArgs:  game,
		ModLoader: modLoader,
		Profile:   id.Profile,
	}
}

// Args is the argument vector passed to the runtime, with the classpath
// joined by sep.
func (c LaunchConfig) Args(sep string) []string {
	args := make([]string, 0, len(c.JVMArgs)+len(c.GameArgs)+3)
	args = append(args, c.JVMArgs...)
	args = append(args, "-cp", strings.Join(c.Classpath, sep), c.MainClass)
	args = append(args, c.GameArgs...)

	return args
}

// Redacted is Args with the access token masked, for logging.
func (c LaunchConfig) Redacted(sep string) []string {
	args := c.Args(sep)
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "--accessToken" {
			args[i+1] = "********"
		}
	}

	return args
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
