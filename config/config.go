package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/n1ntencube/CubicLauncher/mods"
	"github.com/n1ntencube/CubicLauncher/status"
)

const AppName = "cubiclauncher"

// Config is the launcher configuration
type Config struct {
	Auth struct {
		ClientID     string        `yaml:"client_id"`
		Scope        string        `yaml:"scope"`
		CallbackAddr string        `yaml:"callback_addr"`
		LoginTimeout time.Duration `yaml:"login_timeout"`
		Endpoints    struct {
			DeviceCode string `yaml:"device_code"`
			Token      string `yaml:"token"`
			Authorize  string `yaml:"authorize"`
			XBL        string `yaml:"xbl"`
			XSTS       string `yaml:"xsts"`
			GameLogin  string `yaml:"game_login"`
			Profile    string `yaml:"profile"`
		} `yaml:"endpoints"`
	} `yaml:"auth"`

	Game struct {
		Version     string            `yaml:"version"`
		ManifestURL string            `yaml:"manifest_url"`
		AssetIndex  string            `yaml:"asset_index"`
		MinMemoryMB int               `yaml:"min_memory_mb"`
		MaxMemoryMB int               `yaml:"max_memory_mb"`
		JavaBinary  string            `yaml:"java_binary"`
		RuntimeURLs map[string]string `yaml:"runtime_urls"`
	} `yaml:"game"`

	ModLoader struct {
		Enabled      bool   `yaml:"enabled"`
		Version      string `yaml:"version"`
		ArtifactURL  string `yaml:"artifact_url"`
		InstallerURL string `yaml:"installer_url"`
		RunInstaller bool   `yaml:"run_installer"`
	} `yaml:"mod_loader"`

	Mods struct {
		VerifyChecksums bool        `yaml:"verify_checksums"`
		Packs           []mods.Pack `yaml:"packs"`
	} `yaml:"mods"`

	Status struct {
		Services []status.Service `yaml:"services"`
		Interval time.Duration    `yaml:"interval"`
	} `yaml:"status"`

	Paths struct {
		GameDir      string `yaml:"game_dir"`
		AccountsFile string `yaml:"accounts_file"`
		SessionFile  string `yaml:"session_file"`
		CacheDB      string `yaml:"cache_db"`
	} `yaml:"paths"`

	HTTP struct {
		CacheTTL time.Duration `yaml:"cache_ttl"`
		Debug    bool          `yaml:"debug"`
	} `yaml:"http"`

	UI struct {
		Listen string `yaml:"listen"`
	} `yaml:"ui"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DefaultPath is where the CLI looks for a config file.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// Load reads path over DefaultConfig, so omitted keys keep their defaults.
// Environment variables in the file are expanded.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads config from path, or returns the defaults if the file
// is missing or unreadable.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Auth.CallbackAddr = "127.0.0.1:53123"
	cfg.Auth.LoginTimeout = 2 * time.Minute

	cfg.Game.Version = "1.12.2"
	cfg.Game.ManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"
	cfg.Game.AssetIndex = "1.12"
	cfg.Game.MinMemoryMB = 1024
	cfg.Game.MaxMemoryMB = 2048
	cfg.Game.JavaBinary = "java"

	cfg.ModLoader.Enabled = true
	cfg.ModLoader.Version = "14.23.5.2860"

	cfg.Mods.Packs = mods.DefaultPacks()

	cfg.Status.Services = status.DefaultServices()
	cfg.Status.Interval = 30 * time.Second

	dataDir := filepath.Join(xdg.DataHome, AppName)
	configDir := filepath.Join(xdg.ConfigHome, AppName)
	cfg.Paths.GameDir = filepath.Join(dataDir, "minecraft")
	cfg.Paths.AccountsFile = filepath.Join(configDir, "accounts.json")
	cfg.Paths.SessionFile = filepath.Join(configDir, "auth.json")
	cfg.Paths.CacheDB = filepath.Join(xdg.CacheHome, AppName, "cache.db")

	cfg.HTTP.CacheTTL = 6 * time.Hour

	cfg.UI.Listen = "127.0.0.1:53124"

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"

	return cfg
}
