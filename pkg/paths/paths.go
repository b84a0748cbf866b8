package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/types"
)

const (
	// AppName names the XDG directories and the log file.
	AppName = "rollout"

	// EnvConfigDir overrides the XDG config directory for rollout
	EnvConfigDir = "ROLLOUT_CONFIG_DIR"

	// UserConfigFile is read from the config directory when present.
	UserConfigFile = "config.toml"
)

// ScriptNames are the accepted deployment script names, in lookup order.
var ScriptNames = []string{"Rolloutfile.hcl", "Rolloutfile"}

// FindScript looks for a deployment script in start and each of its
// ancestors, returning the first match.
func FindScript(fsys types.FS, start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrInvalidInput, "invalid directory %q", start)
	}

	for {
		for _, name := range ScriptNames {
			candidate := filepath.Join(dir, name)
			if info, err := fsys.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.Newf(errors.ErrConfiguration,
		"could not find a %s in %s or any of its parents", ScriptNames[0], start).
		WithDetail("start", start)
}

// ConfigDir returns rollout's user configuration directory.
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, AppName)
	}
	return filepath.Join(xdg.ConfigHome, AppName)
}

// UserConfigPath is the optional user-level TOML config file.
func UserConfigPath() string {
	return filepath.Join(ConfigDir(), UserConfigFile)
}

// ExpandHome replaces a leading ~ with the local home directory.
// Remote paths are never expanded locally; the remote shell handles them.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
