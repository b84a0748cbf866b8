package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"

	rerrors "github.com/arthur-debert/rollout/pkg/errors"
	"github.com/arthur-debert/rollout/pkg/logging"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// EnvPrefix marks environment variables read into the config.
const EnvPrefix = "ROLLOUT_"

var sections = []string{"ssh", "package", "deploy"}

type rawBytesProvider struct{ bytes []byte }

func (r *rawBytesProvider) ReadBytes() ([]byte, error) { return r.bytes, nil }
func (r *rawBytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("not implemented")
}

// Sources lists the optional layers above the embedded defaults.
type Sources struct {
	// UserConfigPath is skipped when empty or missing.
	UserConfigPath string

	// Script holds values registered by the Rolloutfile, keyed with dots.
	Script map[string]interface{}

	// Flags contributes only flags the user changed.
	Flags *pflag.FlagSet

	// Overrides are action arguments such as the artifact to deploy.
	// They are applied last.
	Overrides map[string]interface{}
}

// Loaded pairs the decoded config with the koanf tree it came from.
type Loaded struct {
	Config *Config
	k      *koanf.Koanf
}

// Load merges all layers and decodes them into a Config. It does not
// validate: callers validate once the script has registered its values.
func Load(src Sources) (*Loaded, error) {
	logger := logging.GetLogger("config")
	k, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if src.UserConfigPath != "" {
		if _, err := os.Stat(src.UserConfigPath); err == nil {
			if err := k.Load(file.Provider(src.UserConfigPath), toml.Parser()); err != nil {
				return nil, rerrors.Wrapf(err, rerrors.ErrConfigParse, "failed to load %s", src.UserConfigPath)
			}
			logger.Debug().Str("path", src.UserConfigPath).Msg("Loaded user config")
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, rerrors.Wrap(err, rerrors.ErrConfigLoad, "failed to load environment")
	}

	if len(src.Script) > 0 {
		if err := k.Load(confmap.Provider(src.Script, "."), nil); err != nil {
			return nil, rerrors.Wrap(err, rerrors.ErrConfigLoad, "failed to load script values")
		}
	}

	if src.Flags != nil {
		if err := k.Load(flagProvider(src.Flags, k), nil); err != nil {
			return nil, rerrors.Wrap(err, rerrors.ErrConfigLoad, "failed to load flags")
		}
	}

	if len(src.Overrides) > 0 {
		if err := k.Load(confmap.Provider(src.Overrides, "."), nil); err != nil {
			return nil, rerrors.Wrap(err, rerrors.ErrConfigLoad, "failed to load action arguments")
		}
	}

	cfg, err := decode(k)
	if err != nil {
		return nil, err
	}
	return &Loaded{Config: cfg, k: k}, nil
}

func loadDefaults() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(&rawBytesProvider{bytes: defaultConfig}, toml.Parser()); err != nil {
		return nil, rerrors.Wrap(err, rerrors.ErrConfigParse, "failed to load defaults")
	}
	return k, nil
}

// Default returns the embedded defaults only.
func Default() *Config {
	k, err := loadDefaults()
	if err == nil {
		var cfg *Config
		if cfg, err = decode(k); err == nil {
			return cfg
		}
	}
	panic(fmt.Sprintf("embedded defaults are invalid: %v", err))
}

func decode(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, rerrors.Wrap(err, rerrors.ErrConfigParse, "failed to decode configuration")
	}
	return &cfg, nil
}

// envKey maps ROLLOUT_DEPLOY_BASE_DIR to deploy.base_dir. Only the first
// underscore after a known section name becomes a separator.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// TOML renders the merged configuration tree.
func (l *Loaded) TOML() ([]byte, error) {
	out, err := gotoml.Marshal(l.k.Raw())
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.ErrInternal, "failed to render configuration")
	}
	return out, nil
}

// Get exposes a single merged value by dotted key.
func (l *Loaded) Get(key string) interface{} {
	return l.k.Get(key)
}

// All returns the merged configuration tree as nested maps.
func (l *Loaded) All() map[string]interface{} {
	return l.k.Raw()
}
