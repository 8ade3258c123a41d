package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// This file defines the configuration structures used by viper_config.go
// The actual loading is handled by viper in viper_config.go

// ErrMissingAccessToken is returned when no imagery API credential is configured.
var ErrMissingAccessToken = errors.New("MAPBOX_API_KEY not set")

// Resume modes decide when a whole row counts as already fetched.
const (
	// ResumeLast skips a row when the artifact of the last configured zoom exists.
	ResumeLast = "last"
	// ResumeAll skips a row only when every configured zoom's artifact exists.
	ResumeAll = "all"
)

// Failure policies decide what the fetch loop does with a failed tile.
const (
	FailureContinue = "continue"
	FailureStop     = "stop"
)

// Limits accepted by the static images API.
const (
	MinZoom      = 0
	MaxZoom      = 22
	MaxImageSize = 1280
)

// Config represents the whole process configuration
type Config struct {
	Fetch   FetchSettings   `yaml:"fetch"`
	Log     LogSettings     `yaml:"log"`
	Metrics MetricsSettings `yaml:"metrics"`
}

// FetchSettings contains everything the fetch loop and tile retrieval need
type FetchSettings struct {
	// BaseDir is the root from which the default table and image paths are derived
	BaseDir     string `yaml:"baseDir"`
	AccessToken string `yaml:"accessToken"`

	TrainCSV      string `yaml:"trainCSV"`
	TestCSV       string `yaml:"testCSV"`
	TrainImageDir string `yaml:"trainImageDir"`
	TestImageDir  string `yaml:"testImageDir"`

	LatColumn string `yaml:"latColumn"`
	LonColumn string `yaml:"lonColumn"`

	Zooms       []int  `yaml:"zooms"`
	ImageWidth  int    `yaml:"imageWidth"`
	ImageHeight int    `yaml:"imageHeight"`
	Style       string `yaml:"style"`
	Endpoint    string `yaml:"endpoint"`

	Delay   time.Duration `yaml:"delay"`   // pause after every row that was not skipped
	Timeout time.Duration `yaml:"timeout"` // per request

	// Optional ceiling on outbound requests (using golang.org/x/time/rate), 0 disables
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	RequestBurst      int     `yaml:"requestBurst"`

	ProgressEvery int    `yaml:"progressEvery"`
	Resume        string `yaml:"resume"`
	FailurePolicy string `yaml:"failurePolicy"`
}

// LogSettings configures the zap logger
type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// MetricsSettings configures the optional metrics listener
type MetricsSettings struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

// Split pairs an input table with the directory its artifacts go to
type Split struct {
	Name     string
	Table    string
	ImageDir string
}

// DefaultBaseDir is used when PROJECT_BASE_DIR is not set
const DefaultBaseDir = "/content/drive/MyDrive/Satellite_Property_Valuation"

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchSettings{
			BaseDir:     DefaultBaseDir,
			AccessToken: "", // Must be set via env

			LatColumn: "lat",
			LonColumn: "long",

			Zooms:       []int{16, 17, 18},
			ImageWidth:  224,
			ImageHeight: 224,
			Style:       "mapbox/satellite-v9",
			Endpoint:    "https://api.mapbox.com",

			Delay:   200 * time.Millisecond,
			Timeout: 10 * time.Second,

			RequestsPerSecond: 0,
			RequestBurst:      1,

			ProgressEvery: 100,
			Resume:        ResumeLast,
			FailurePolicy: FailureContinue,
		},
		Log: LogSettings{
			Level:  "info",
			Format: "console",
		},
	}
}

// ApplyDerivedPaths fills table and image paths left empty from BaseDir
func (c *Config) ApplyDerivedPaths() {
	f := &c.Fetch
	if f.BaseDir == "" {
		f.BaseDir = DefaultBaseDir
	}
	if f.TrainCSV == "" {
		f.TrainCSV = filepath.Join(f.BaseDir, "data", "train(1)(train(1)).csv")
	}
	if f.TestCSV == "" {
		f.TestCSV = filepath.Join(f.BaseDir, "data", "test2(test(1)).csv")
	}
	if f.TrainImageDir == "" {
		f.TrainImageDir = filepath.Join(f.BaseDir, "train_images")
	}
	if f.TestImageDir == "" {
		f.TestImageDir = filepath.Join(f.BaseDir, "test_images")
	}
}

// Splits returns the train and test passes in the order they run
func (c *Config) Splits() []Split {
	return []Split{
		{Name: "train", Table: c.Fetch.TrainCSV, ImageDir: c.Fetch.TrainImageDir},
		{Name: "test", Table: c.Fetch.TestCSV, ImageDir: c.Fetch.TestImageDir},
	}
}

// Split returns the named pass
func (c *Config) Split(name string) (Split, bool) {
	for _, s := range c.Splits() {
		if s.Name == name {
			return s, true
		}
	}
	return Split{}, false
}

// LastZoom is the zoom whose artifact marks a row as done in ResumeLast mode
func (f FetchSettings) LastZoom() int {
	return f.Zooms[len(f.Zooms)-1]
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Required fields
	if strings.TrimSpace(c.Fetch.AccessToken) == "" {
		return ErrMissingAccessToken
	}
	return c.validateSettings()
}

// validateSettings checks everything except the credential
func (c *Config) validateSettings() error {
	f := c.Fetch

	if len(f.Zooms) == 0 {
		return fmt.Errorf("at least one zoom level must be configured")
	}
	seen := make(map[int]bool, len(f.Zooms))
	for _, z := range f.Zooms {
		if z < MinZoom || z > MaxZoom {
			return fmt.Errorf("zoom %d out of range [%d, %d]", z, MinZoom, MaxZoom)
		}
		if seen[z] {
			return fmt.Errorf("zoom %d listed twice", z)
		}
		seen[z] = true
	}

	if f.ImageWidth < 1 || f.ImageWidth > MaxImageSize {
		return fmt.Errorf("imageWidth must be between 1 and %d", MaxImageSize)
	}
	if f.ImageHeight < 1 || f.ImageHeight > MaxImageSize {
		return fmt.Errorf("imageHeight must be between 1 and %d", MaxImageSize)
	}
	if f.Style == "" {
		return fmt.Errorf("style must be set")
	}
	if f.Endpoint == "" {
		return fmt.Errorf("endpoint must be set")
	}
	if f.LatColumn == "" || f.LonColumn == "" {
		return fmt.Errorf("latitude and longitude column names must be set")
	}

	if f.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if f.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if f.RequestsPerSecond < 0 {
		return fmt.Errorf("requestsPerSecond cannot be negative")
	}
	if f.RequestsPerSecond > 0 && f.RequestBurst < 1 {
		return fmt.Errorf("requestBurst must be at least 1 when requestsPerSecond is set")
	}
	if f.ProgressEvery < 1 {
		return fmt.Errorf("progressEvery must be at least 1")
	}

	switch f.Resume {
	case ResumeLast, ResumeAll:
	default:
		return fmt.Errorf("unknown resume mode %q (must be %q or %q)", f.Resume, ResumeLast, ResumeAll)
	}
	switch f.FailurePolicy {
	case FailureContinue, FailureStop:
	default:
		return fmt.Errorf("unknown failure policy %q (must be %q or %q)", f.FailurePolicy, FailureContinue, FailureStop)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	return nil
}
