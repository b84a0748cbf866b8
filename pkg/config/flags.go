package config

import (
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FlagKeys maps command-line flag names to config keys. Flags not listed
// here never reach the config.
var FlagKeys = map[string]string{
	"debug":  "debug",
	"format": "format",

	"identity-file": "ssh.identity_file",

	"build-host":  "package.build_host",
	"build-user":  "package.build_user",
	"commit":      "package.commit",
	"purge":       "package.purge",
	"destination": "package.destination",
	"remote-dir":  "package.remote_dir",
	"mode":        "package.mode",

	"hosts":    "deploy.hosts",
	"env":      "deploy.env",
	"base-dir": "deploy.base_dir",
	"keep":     "deploy.keep",
	"parallel": "deploy.parallel",
}

func flagProvider(fs *pflag.FlagSet, k *koanf.Koanf) *posflag.Posflag {
	return posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := FlagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
}
