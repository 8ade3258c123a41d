package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"satfetch/internal/config"
	"satfetch/internal/dataset"
	"satfetch/internal/fetcher"
)

// SplitCoverage is the report for one split
type SplitCoverage struct {
	Split  string         `yaml:"split"`
	Table  string         `yaml:"table"`
	Error  string         `yaml:"error,omitempty"`
	Report fetcher.Report `yaml:"report"`
}

func main() {
	flags := pflag.NewFlagSet("coverage", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a satfetch.yaml config file")
	flags.IntSlice("zooms", config.DefaultConfig().Fetch.Zooms, "zoom levels to check")
	flags.Parse(os.Args[1:])

	cfg, err := config.LoadLayout(*configPath, flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	reports := collect(context.Background(), cfg, dataset.NewRouter())
	if err := writeYAML(os.Stdout, reports); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		os.Exit(1)
	}
}

// collect inspects every split; a table that cannot be read is reported, not fatal
func collect(ctx context.Context, cfg *config.Config, src dataset.Source) []SplitCoverage {
	cols := dataset.Columns{Lat: cfg.Fetch.LatColumn, Lon: cfg.Fetch.LonColumn}

	var out []SplitCoverage
	for _, split := range cfg.Splits() {
		entry := SplitCoverage{Split: split.Name, Table: split.Table}

		records, err := dataset.Load(ctx, src, split.Table, cols)
		if err != nil {
			entry.Error = err.Error()
			entry.Report = fetcher.Report{Dir: split.ImageDir}
		} else {
			entry.Report = fetcher.Coverage(records, split.ImageDir, cfg.Fetch.Zooms)
		}
		out = append(out, entry)
	}
	return out
}

func writeYAML(w io.Writer, reports []SplitCoverage) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return err
	}
	return enc.Close()
}
