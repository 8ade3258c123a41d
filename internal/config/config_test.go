package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig binds so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PROJECT_BASE_DIR", "MAPBOX_API_KEY", "TRAIN_CSV", "TEST_CSV",
		"IMAGE_DIR_TRAIN", "IMAGE_DIR_TEST", "LAT_COLUMN", "LON_COLUMN", "ZOOMS",
		"MAPBOX_STYLE", "MAPBOX_ENDPOINT", "FETCH_DELAY", "FETCH_TIMEOUT",
		"RATE_LIMIT", "RATE_LIMIT_BURST", "RESUME_MODE", "FAILURE_POLICY",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("MissingAccessToken", func(t *testing.T) {
		clearEnv(t)

		cfg, err := LoadConfig("nonexistent.yaml", nil)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.True(t, errors.Is(err, ErrMissingAccessToken))
	})

	t.Run("DefaultsFromEnvironment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MAPBOX_API_KEY", "pk.test")
		t.Setenv("PROJECT_BASE_DIR", "/data/project")

		cfg, err := LoadConfig("nonexistent.yaml", nil)
		require.NoError(t, err)

		assert.Equal(t, "pk.test", cfg.Fetch.AccessToken)
		assert.Equal(t, []int{16, 17, 18}, cfg.Fetch.Zooms)
		assert.Equal(t, 200*time.Millisecond, cfg.Fetch.Delay)
		assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
		assert.Equal(t, 224, cfg.Fetch.ImageWidth)
		assert.Equal(t, 224, cfg.Fetch.ImageHeight)
		assert.Equal(t, "mapbox/satellite-v9", cfg.Fetch.Style)
		assert.Equal(t, ResumeLast, cfg.Fetch.Resume)
		assert.Equal(t, FailureContinue, cfg.Fetch.FailurePolicy)

		assert.Equal(t, filepath.Join("/data/project", "data", "train(1)(train(1)).csv"), cfg.Fetch.TrainCSV)
		assert.Equal(t, filepath.Join("/data/project", "data", "test2(test(1)).csv"), cfg.Fetch.TestCSV)
		assert.Equal(t, filepath.Join("/data/project", "train_images"), cfg.Fetch.TrainImageDir)
		assert.Equal(t, filepath.Join("/data/project", "test_images"), cfg.Fetch.TestImageDir)
	})

	t.Run("BaseDirFallback", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MAPBOX_API_KEY", "pk.test")

		cfg, err := LoadConfig("nonexistent.yaml", nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultBaseDir, cfg.Fetch.BaseDir)
		assert.Equal(t, filepath.Join(DefaultBaseDir, "train_images"), cfg.Fetch.TrainImageDir)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MAPBOX_API_KEY", "pk.test")
		t.Setenv("ZOOMS", "15,16")
		t.Setenv("FETCH_DELAY", "1s")
		t.Setenv("RESUME_MODE", "all")
		t.Setenv("TRAIN_CSV", "s3://bucket/train.csv")

		cfg, err := LoadConfig("nonexistent.yaml", nil)
		require.NoError(t, err)
		assert.Equal(t, []int{15, 16}, cfg.Fetch.Zooms)
		assert.Equal(t, time.Second, cfg.Fetch.Delay)
		assert.Equal(t, ResumeAll, cfg.Fetch.Resume)
		assert.Equal(t, "s3://bucket/train.csv", cfg.Fetch.TrainCSV)
		assert.Equal(t, 16, cfg.Fetch.LastZoom())
	})

	t.Run("LoadFromYAML", func(t *testing.T) {
		clearEnv(t)
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "satfetch.yaml")

		yamlContent := `
fetch:
  accessToken: pk.from-file
  baseDir: /srv/imagery
  zooms: [17, 18, 19]
  imageWidth: 512
  imageHeight: 256
  timeout: 5s
  requestsPerSecond: 4
  requestBurst: 2
log:
  level: debug
  format: json
metrics:
  addr: ":9100"
`
		require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

		cfg, err := LoadConfig(configPath, nil)
		require.NoError(t, err)

		assert.Equal(t, "pk.from-file", cfg.Fetch.AccessToken)
		assert.Equal(t, []int{17, 18, 19}, cfg.Fetch.Zooms)
		assert.Equal(t, 512, cfg.Fetch.ImageWidth)
		assert.Equal(t, 256, cfg.Fetch.ImageHeight)
		assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
		assert.Equal(t, 4.0, cfg.Fetch.RequestsPerSecond)
		assert.Equal(t, 2, cfg.Fetch.RequestBurst)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, "json", cfg.Log.Format)
		assert.Equal(t, ":9100", cfg.Metrics.Addr)
		assert.Equal(t, filepath.Join("/srv/imagery", "test_images"), cfg.Fetch.TestImageDir)
	})

	t.Run("FlagsWinOverEnvironment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MAPBOX_API_KEY", "pk.test")
		t.Setenv("RESUME_MODE", "last")

		flags := pflag.NewFlagSet("satfetch", pflag.ContinueOnError)
		flags.String("resume", ResumeLast, "")
		flags.Duration("delay", 200*time.Millisecond, "")
		require.NoError(t, flags.Parse([]string{"--resume=all", "--delay=50ms"}))

		cfg, err := LoadConfig("nonexistent.yaml", flags)
		require.NoError(t, err)
		assert.Equal(t, ResumeAll, cfg.Fetch.Resume)
		assert.Equal(t, 50*time.Millisecond, cfg.Fetch.Delay)
	})

	t.Run("InvalidValuesRejected", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MAPBOX_API_KEY", "pk.test")
		t.Setenv("RESUME_MODE", "sometimes")

		_, err := LoadConfig("nonexistent.yaml", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown resume mode")
	})
}

func TestLoadLayout(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROJECT_BASE_DIR", "/srv/imagery")
	t.Setenv("ZOOMS", "15,16")

	cfg, err := LoadLayout("nonexistent.yaml", nil)
	require.NoError(t, err, "the credential is not needed to inspect artifacts")
	assert.Equal(t, []int{15, 16}, cfg.Fetch.Zooms)
	assert.Equal(t, filepath.Join("/srv/imagery", "train_images"), cfg.Fetch.TrainImageDir)

	t.Setenv("ZOOMS", "30")
	_, err = LoadLayout("nonexistent.yaml", nil)
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Fetch.AccessToken = "pk.test"
		cfg.ApplyDerivedPaths()
		return cfg
	}

	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{name: "ValidConfig", mutate: func(c *Config) {}},
		{
			name:     "MissingToken",
			mutate:   func(c *Config) { c.Fetch.AccessToken = "  " },
			errorMsg: "MAPBOX_API_KEY not set",
		},
		{
			name:     "NoZooms",
			mutate:   func(c *Config) { c.Fetch.Zooms = nil },
			errorMsg: "at least one zoom level",
		},
		{
			name:     "ZoomOutOfRange",
			mutate:   func(c *Config) { c.Fetch.Zooms = []int{16, 23} },
			errorMsg: "zoom 23 out of range",
		},
		{
			name:     "DuplicateZoom",
			mutate:   func(c *Config) { c.Fetch.Zooms = []int{16, 16} },
			errorMsg: "listed twice",
		},
		{
			name:     "ImageTooLarge",
			mutate:   func(c *Config) { c.Fetch.ImageWidth = 2000 },
			errorMsg: "imageWidth must be between",
		},
		{
			name:     "NegativeDelay",
			mutate:   func(c *Config) { c.Fetch.Delay = -time.Second },
			errorMsg: "delay cannot be negative",
		},
		{
			name:     "ZeroTimeout",
			mutate:   func(c *Config) { c.Fetch.Timeout = 0 },
			errorMsg: "timeout must be positive",
		},
		{
			name: "RateWithoutBurst",
			mutate: func(c *Config) {
				c.Fetch.RequestsPerSecond = 2
				c.Fetch.RequestBurst = 0
			},
			errorMsg: "requestBurst must be at least 1",
		},
		{
			name:     "UnknownFailurePolicy",
			mutate:   func(c *Config) { c.Fetch.FailurePolicy = "retry" },
			errorMsg: "unknown failure policy",
		},
		{
			name:     "UnknownLogFormat",
			mutate:   func(c *Config) { c.Log.Format = "xml" },
			errorMsg: "unknown log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestSplits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fetch.BaseDir = "/base"
	cfg.ApplyDerivedPaths()

	splits := cfg.Splits()
	require.Len(t, splits, 2)
	assert.Equal(t, "train", splits[0].Name)
	assert.Equal(t, "test", splits[1].Name)

	s, ok := cfg.Split("test")
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/base", "test_images"), s.ImageDir)

	_, ok = cfg.Split("validation")
	assert.False(t, ok)
}
