// Package config loads rollout's typed configuration.
//
// Values are layered with koanf, lowest precedence first:
//
//  1. embedded defaults (embedded/defaults.toml)
//  2. the user config file ($XDG_CONFIG_HOME/rollout/config.toml)
//  3. ROLLOUT_* environment variables
//  4. values registered by the Rolloutfile
//  5. command-line flags the user actually set
//
// The merged tree is decoded into Config and validated before any action
// runs. Config is never mutated after Load returns.
package config
