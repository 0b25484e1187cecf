// Package config turns viper settings into the typed configs the chaser's
// packages are built from.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Default locations, before path expansion. State lives under the XDG data
// directory, credentials under the config directory.
const (
	DefaultDatabasePath    = "$HOME/.local/share/chaser/chaser.db"
	DefaultDownloadDir     = "$HOME/.local/share/chaser/downloads"
	DefaultTokenPath       = "$HOME/.config/chaser/token.json"
	DefaultCredentialsPath = "credentials.json"
)

// DatabasePath returns the expanded ledger location.
func DatabasePath() string {
	return pathOr("database.path", DefaultDatabasePath)
}

// ExpandPath resolves a leading ~ to the operator's home directory and then
// expands $VAR references.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return os.ExpandEnv(path)
}

// pathOr reads key as a path, falling back to an expanded default.
func pathOr(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return ExpandPath(v)
	}
	return ExpandPath(fallback)
}
