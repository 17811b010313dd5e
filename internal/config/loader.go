package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "PROTOCOLIQ"

var (
	ErrConfigFileNotFound = errors.New("config: file not found")
	ErrConfigParseError   = errors.New("config: parse error")
	ErrConfigValidation   = errors.New("config: validation failed")
)

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Get returns the most recently loaded configuration, or nil.
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCfg
}

func setGlobal(cfg *Config) {
	globalMu.Lock()
	globalCfg = cfg
	globalMu.Unlock()
}

type loadOptions struct {
	path        string
	searchPaths []string
	overrides   map[string]interface{}
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithConfigPath loads an explicit file. A missing file is an error.
func WithConfigPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// WithSearchPaths looks for config.yaml in each directory in order. Finding
// none is not an error.
func WithSearchPaths(dirs ...string) LoadOption {
	return func(o *loadOptions) { o.searchPaths = append(o.searchPaths, dirs...) }
}

// WithOverrides sets keys after file and environment, e.g. from CLI flags.
func WithOverrides(kv map[string]interface{}) LoadOption {
	return func(o *loadOptions) { o.overrides = kv }
}

// newViper builds a Viper instance with YAML file type, the PROTOCOLIQ_ env
// prefix and a "." → "_" key replacer so that "store.backend" resolves to
// PROTOCOLIQ_STORE_BACKEND.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvKeys(v)
	return v
}

// bindEnvKeys registers the keys that must resolve from the environment even
// when no file mentions them. AutomaticEnv alone only consults keys Viper
// already knows about.
func bindEnvKeys(v *viper.Viper) {
	for _, k := range []string{
		"log.level", "log.format",
		"patterns.file",
		"embedding.enabled", "embedding.http.endpoint", "embedding.http.api_key", "embedding.http.model",
		"store.backend", "store.max_events",
		"redis.addr", "redis.password", "redis.db", "redis.key_prefix",
		"sqlite.path",
		"postgres.host", "postgres.port", "postgres.user", "postgres.password", "postgres.db_name", "postgres.ssl_mode",
		"kafka.enabled", "kafka.brokers", "kafka.group_id", "kafka.action_topic",
		"minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket", "minio.use_ssl",
		"corpus.source", "corpus.dir", "corpus.prefix",
		"metrics.enabled", "metrics.addr",
	} {
		_ = v.BindEnv(k)
	}
}

// Load reads configuration from file (if any), merges PROTOCOLIQ_* environment
// overrides and explicit overrides, applies defaults and validates. On success
// the result also becomes the value returned by Get.
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := newViper()
	switch {
	case o.path != "":
		if _, err := os.Stat(o.path); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrConfigFileNotFound, o.path)
		}
		v.SetConfigFile(o.path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
		}
	case len(o.searchPaths) > 0:
		v.SetConfigName("config")
		for _, dir := range o.searchPaths {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
			}
		}
	}
	for k, val := range o.overrides {
		v.Set(k, val)
	}

	cfg, err := unmarshalAndFinalize(v)
	if err != nil {
		return nil, err
	}
	setGlobal(cfg)
	return cfg, nil
}

// LoadFromFile is shorthand for Load(WithConfigPath(path)).
func LoadFromFile(path string) (*Config, error) {
	return Load(WithConfigPath(path))
}

// LoadFromEnv builds a Config from PROTOCOLIQ_* environment variables and
// defaults only.
//
//	PROTOCOLIQ_<SECTION>_<FIELD>   e.g.  PROTOCOLIQ_STORE_BACKEND, PROTOCOLIQ_REDIS_ADDR
func LoadFromEnv() (*Config, error) {
	return Load()
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigValidation, err)
	}
	return cfg, nil
}

// Watch re-reads path whenever it changes on disk and passes each valid
// result to onChange. Invalid edits are reported to onError (which may be nil)
// and otherwise ignored. Only settings that are safe to swap at runtime, such
// as the log level and scoring weights, should be applied by the callback.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigParseError, err)
	}
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		setGlobal(cfg)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad panics on any error. Intended for main().
func MustLoad(opts ...LoadOption) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
