package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"reflect"
	"sync/atomic"

	"github.com/creasty/defaults"
)

// Version is filled at compile time with the git version of flowsentry
var Version = "v0.0.0+undefined"

// ExactVersion is filled at compile time with the git version of flowsentry
var ExactVersion = "v0.0.0+undefined"

// defaultConfigPath specifies the path of flowsentry's static config file
const defaultConfigPath = "/etc/flowsentry/config.yaml"

type (
	//Config holds the configuration for the running system
	Config struct {
		R RunningCfg
		S StaticCfg
		T TableCfg
	}
)

// LoadConfig initializes a Config struct with values read
// from a config file. It takes a string for the path to the file.
// If the string is empty it uses the default path.
func LoadConfig(customConfigPath string) (*Config, error) {
	configPath := ResolvePath(customConfigPath)

	config, err := newDefaultConfig()
	if err != nil {
		return nil, err
	}

	// Deserialize the yaml file contents into the static config
	if err := loadStaticConfig(configPath, &config.S); err != nil {
		return nil, err
	}

	// Older deployments keep the brute force thresholds in a flat
	// KEY=VALUE file. Its values win over the yaml ones.
	if path := config.S.BruteForce.ThresholdFile; path != "" {
		contents, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read threshold file: %w", err)
		}
		if err := config.ApplyThresholds(contents); err != nil {
			return nil, fmt.Errorf("failed to parse threshold file %s: %w", path, err)
		}
	}

	if err := config.S.Validate(); err != nil {
		return nil, err
	}

	// Use the static config to initialize the running config
	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}

	return config, nil
}

// ResolvePath returns the config file read for customConfigPath
func ResolvePath(customConfigPath string) string {
	if customConfigPath != "" {
		return customConfigPath
	}
	return defaultConfigPath
}

// newDefaultConfig returns a Config holding every default value
func newDefaultConfig() (*Config, error) {
	config := &Config{}

	// Initialize table config to the default values
	if err := defaults.Set(&config.T); err != nil {
		return nil, err
	}

	// Initialize static config to the default values
	if err := defaults.Set(&config.S); err != nil {
		return nil, err
	}
	config.S.BruteForce.applyProtocolDefaults()

	return config, nil
}

// expandConfig expands environment variables in config strings
func expandConfig(reflected reflect.Value) {
	for i := 0; i < reflected.NumField(); i++ {
		f := reflected.Field(i)
		// process sub configs
		if f.Kind() == reflect.Struct {
			expandConfig(f)
		} else if f.Kind() == reflect.String {
			f.SetString(os.ExpandEnv(f.String()))
		} else if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String {
			strs := f.Interface().([]string)
			for i, str := range strs {
				strs[i] = os.ExpandEnv(str)
			}
			f.Set(reflect.ValueOf(strs))
		}
	}
}

// Store holds the active configuration snapshot. The detection loop loads
// the snapshot between flows while a background reload swaps in a new one.
type Store struct {
	path    string
	current atomic.Pointer[Config]
}

// NewStore creates a Store serving conf, reloading from path
func NewStore(conf *Config, path string) *Store {
	s := &Store{path: path}
	s.current.Store(conf)
	return s
}

// Load returns the active snapshot. Snapshots are never modified after
// they are published.
func (s *Store) Load() *Config {
	return s.current.Load()
}

// Path returns the file the store reloads from
func (s *Store) Path() string {
	return s.path
}

// Reload parses the config file again and publishes the result. The
// active snapshot is left in place if parsing fails.
func (s *Store) Reload() error {
	conf, err := LoadConfig(s.path)
	if err != nil {
		return err
	}
	s.current.Store(conf)
	return nil
}
