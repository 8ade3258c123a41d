package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"resume":         "fetch.resume",
	"failure-policy": "fetch.failurepolicy",
	"delay":          "fetch.delay",
	"zooms":          "fetch.zooms",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"metrics-addr":   "metrics.addr",
}

// LoadConfig loads configuration using Viper
// Priority order: Flags > Environment variables > Config file > Defaults
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v, err := newViper(configPath, flags)
	if err != nil {
		return nil, err
	}

	// The credential is checked before anything else so a missing key aborts early
	if strings.TrimSpace(v.GetString("fetch.accesstoken")) == "" {
		return nil, ErrMissingAccessToken
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadLayout loads configuration for tools that only inspect tables and
// artifacts on disk. The access token is not required.
func LoadLayout(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v, err := newViper(configPath, flags)
	if err != nil {
		return nil, err
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateSettings(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ApplyDerivedPaths()
	return cfg, nil
}

func newViper(configPath string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()

	// Set config file details
	v.SetConfigName("satfetch")
	v.SetConfigType("yaml")

	// Add config paths
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Enable environment variable binding
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind the environment variable names the notebooks already use
	v.BindEnv("fetch.basedir", "PROJECT_BASE_DIR")
	v.BindEnv("fetch.accesstoken", "MAPBOX_API_KEY")
	v.BindEnv("fetch.traincsv", "TRAIN_CSV")
	v.BindEnv("fetch.testcsv", "TEST_CSV")
	v.BindEnv("fetch.trainimagedir", "IMAGE_DIR_TRAIN")
	v.BindEnv("fetch.testimagedir", "IMAGE_DIR_TEST")
	v.BindEnv("fetch.latcolumn", "LAT_COLUMN")
	v.BindEnv("fetch.loncolumn", "LON_COLUMN")
	v.BindEnv("fetch.zooms", "ZOOMS")
	v.BindEnv("fetch.style", "MAPBOX_STYLE")
	v.BindEnv("fetch.endpoint", "MAPBOX_ENDPOINT")
	v.BindEnv("fetch.delay", "FETCH_DELAY")
	v.BindEnv("fetch.timeout", "FETCH_TIMEOUT")
	v.BindEnv("fetch.requestspersecond", "RATE_LIMIT")
	v.BindEnv("fetch.requestburst", "RATE_LIMIT_BURST")
	v.BindEnv("fetch.resume", "RESUME_MODE")
	v.BindEnv("fetch.failurepolicy", "FAILURE_POLICY")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
	v.BindEnv("metrics.addr", "METRICS_ADDR")

	// Set defaults
	d := DefaultConfig()
	v.SetDefault("fetch.basedir", d.Fetch.BaseDir)
	v.SetDefault("fetch.traincsv", "")
	v.SetDefault("fetch.testcsv", "")
	v.SetDefault("fetch.trainimagedir", "")
	v.SetDefault("fetch.testimagedir", "")
	v.SetDefault("fetch.latcolumn", d.Fetch.LatColumn)
	v.SetDefault("fetch.loncolumn", d.Fetch.LonColumn)
	v.SetDefault("fetch.zooms", d.Fetch.Zooms)
	v.SetDefault("fetch.imagewidth", d.Fetch.ImageWidth)
	v.SetDefault("fetch.imageheight", d.Fetch.ImageHeight)
	v.SetDefault("fetch.style", d.Fetch.Style)
	v.SetDefault("fetch.endpoint", d.Fetch.Endpoint)

	// Pacing defaults
	v.SetDefault("fetch.delay", "200ms")
	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.requestspersecond", 0.0)
	v.SetDefault("fetch.requestburst", 1)

	v.SetDefault("fetch.progressevery", d.Fetch.ProgressEvery)
	v.SetDefault("fetch.resume", d.Fetch.Resume)
	v.SetDefault("fetch.failurepolicy", d.Fetch.FailurePolicy)

	// Monitoring defaults
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("metrics.addr", "")

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	// Try to read config file (it's optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			// Config file was found but another error occurred
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; continue with env vars and defaults
	}

	return v, nil
}
