package fetcher

import (
	"path/filepath"
	"strconv"

	"satfetch/internal/dataset"
	"satfetch/internal/tiles"
)

// RowGap is a row whose artifact set is incomplete
type RowGap struct {
	Index   int   `yaml:"index"`
	Missing []int `yaml:"missing"`
	// SkippedByLast is true when the last-zoom resume check would never revisit the row
	SkippedByLast bool `yaml:"skippedByLast"`
}

// Report describes how much of a table has been fetched into a directory
type Report struct {
	Dir        string   `yaml:"dir"`
	Rows       int      `yaml:"rows"`
	Complete   int      `yaml:"complete"`
	Empty      int      `yaml:"empty"`
	Incomplete []RowGap `yaml:"incomplete,omitempty"`
}

// Coverage inspects the artifacts of every record without touching the network
func Coverage(records []dataset.Record, dir string, zooms []int) Report {
	report := Report{Dir: dir, Rows: len(records)}
	if len(zooms) == 0 {
		report.Complete = len(records)
		return report
	}
	last := zooms[len(zooms)-1]

	for _, rec := range records {
		base := filepath.Join(dir, strconv.Itoa(rec.Index))
		missing := tiles.MissingZooms(base, zooms)

		switch len(missing) {
		case 0:
			report.Complete++
		case len(zooms):
			report.Empty++
		default:
			report.Incomplete = append(report.Incomplete, RowGap{
				Index:         rec.Index,
				Missing:       missing,
				SkippedByLast: tiles.Exists(tiles.ArtifactPath(base, last)),
			})
		}
	}
	return report
}
