// Package config defines the Config record the core consumes (§3, §6).
// Loading/parsing env or JSON files is an out-of-scope external
// collaborator; this package only owns the struct, its defaults, and an
// optional OS-keyring-backed credential helper.
//
// Grounded on original_source/romm/source/config.hpp's field list and
// defaults, and on the teacher's use of github.com/zalando/go-keyring for
// credential storage.
package config

import (
	"time"

	"github.com/zalando/go-keyring"
)

// PlatformPrefsMode selects where the platform-preference JSON document is
// read from.
type PlatformPrefsMode string

const (
	PrefsAuto  PlatformPrefsMode = "auto"
	PrefsSD    PlatformPrefsMode = "sd"
	PrefsRomfs PlatformPrefsMode = "romfs"
)

// Config is the set of fields the core consumes from the surrounding
// loader (§6's "Configuration inputs" list).
type Config struct {
	ServerURL          string
	ApiToken            string // unused by the core; carried for the loader's benefit
	Username            string
	Password            string
	DownloadDir         string
	HttpTimeoutSeconds  int
	Fat32Safe           bool
	SpeedTestURL        string
	PlatformPrefsMode   PlatformPrefsMode
	PlatformPrefsSDPath string
	PlatformPrefsRomfsPath string
}

// Default returns the zero-config baseline matching
// original_source/config.hpp's defaults: a 30s timeout, FAT32 safety on,
// and auto platform-prefs resolution.
func Default() Config {
	return Config{
		DownloadDir:            "/switch/romm_switch_client/roms",
		HttpTimeoutSeconds:     30,
		Fat32Safe:              true,
		PlatformPrefsMode:      PrefsAuto,
		PlatformPrefsSDPath:    "/switch/romm_switch_client/platform_prefs.json",
		PlatformPrefsRomfsPath: "romfs:/platform_prefs.json",
	}
}

// Timeout returns HttpTimeoutSeconds as a time.Duration, for direct use by
// pkg/httpc.Client.Do/DoStream callers.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HttpTimeoutSeconds) * time.Second
}

const keyringService = "romm-switch-client"

// LoadCredentials reads the Password stored in the OS keyring under
// c.Username when one is available, falling back to the values already
// present on c; Username itself is never read from the keyring. Never
// required: a keyring.ErrNotFound or keyring.ErrUnsupportedPlatform simply
// leaves c unchanged.
func LoadCredentials(c Config) Config {
	if c.Username == "" {
		return c
	}
	if pw, err := keyring.Get(keyringService, c.Username); err == nil {
		c.Password = pw
	}
	return c
}

// SaveCredentials writes Username/Password to the OS keyring. Errors
// (unsupported platform, locked keyring) are returned so the caller can
// decide whether to fall back to storing the password in the plain
// config; they are never fatal to startup.
func SaveCredentials(c Config) error {
	if c.Username == "" {
		return nil
	}
	return keyring.Set(keyringService, c.Username, c.Password)
}
