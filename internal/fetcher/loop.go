// Package fetcher drives tile retrieval over every row of a coordinate table.
//
// A pass is sequential: one row at a time, one zoom at a time, with a fixed
// pause after every row that needed work. Artifacts on disk are the only
// state, so a pass can be stopped at any point and started again.
package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"satfetch/internal/config"
	"satfetch/internal/dataset"
	"satfetch/internal/tiles"
)

// TileRetriever fetches every zoom of one coordinate; *tiles.Retriever implements it
type TileRetriever interface {
	FetchMultiZoom(ctx context.Context, lat, lon float64, base string, zooms []int) []tiles.Outcome
}

// Recorder observes rows and tiles; *metrics.Metrics implements it
type Recorder interface {
	ObserveTile(split string, o tiles.Outcome)
	ObserveRow(split string, skipped bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTile(string, tiles.Outcome) {}
func (nopRecorder) ObserveRow(string, bool)           {}

// Options tune a Loop
type Options struct {
	Split         string
	Columns       dataset.Columns
	Zooms         []int
	Delay         time.Duration
	ProgressEvery int
	Resume        string
	FailurePolicy string
}

// OptionsFromConfig derives loop options for a split from the fetch settings
func OptionsFromConfig(f config.FetchSettings, split string) Options {
	return Options{
		Split:         split,
		Columns:       dataset.Columns{Lat: f.LatColumn, Lon: f.LonColumn},
		Zooms:         f.Zooms,
		Delay:         f.Delay,
		ProgressEvery: f.ProgressEvery,
		Resume:        f.Resume,
		FailurePolicy: f.FailurePolicy,
	}
}

// Loop runs one pass over a table
type Loop struct {
	opts      Options
	retriever TileRetriever
	source    dataset.Source
	logger    *zap.Logger
	pacer     Pacer
	recorder  Recorder
}

// NewLoop creates a loop with injected dependencies
func NewLoop(opts Options, retriever TileRetriever, source dataset.Source, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Resume == "" {
		opts.Resume = config.ResumeLast
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = config.FailureContinue
	}
	return &Loop{
		opts:      opts,
		retriever: retriever,
		source:    source,
		logger:    logger.With(zap.String("split", opts.Split)),
		pacer:     SleepPacer,
		recorder:  nopRecorder{},
	}
}

// WithPacer replaces the pause between rows
func (l *Loop) WithPacer(p Pacer) *Loop {
	l.pacer = p
	return l
}

// WithRecorder attaches a metrics recorder
func (l *Loop) WithRecorder(r Recorder) *Loop {
	if r != nil {
		l.recorder = r
	}
	return l
}

// Run fetches the tiles of every row in table into dir.
// The table is parsed fully before the first request, so a malformed table
// fails without touching the network. Tile failures are logged and counted;
// under the stop policy the first one ends the pass.
func (l *Loop) Run(ctx context.Context, table, dir string) (sum Summary, err error) {
	start := time.Now()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return sum, fmt.Errorf("failed to create image directory %s: %w", dir, err)
	}

	records, err := dataset.Load(ctx, l.source, table, l.opts.Columns)
	if err != nil {
		return sum, err
	}
	sum.Rows = len(records)

	l.logger.Info("Starting pass",
		zap.String("table", table),
		zap.String("dir", dir),
		zap.Int("rows", len(records)),
		zap.Ints("zooms", l.opts.Zooms),
		zap.String("resume", l.opts.Resume))

	defer func() {
		sum.Elapsed = time.Since(start)
	}()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		base := filepath.Join(dir, strconv.Itoa(rec.Index))
		if l.rowDone(base) {
			sum.RowsSkipped++
			l.recorder.ObserveRow(l.opts.Split, true)
			continue
		}

		outcomes := l.retriever.FetchMultiZoom(ctx, rec.Lat, rec.Lon, base, l.opts.Zooms)
		sum.RowsProcessed++
		sum.addOutcomes(outcomes)
		l.recorder.ObserveRow(l.opts.Split, false)

		var firstFailure *tiles.FetchError
		for _, o := range outcomes {
			l.recorder.ObserveTile(l.opts.Split, o)
			if o.Status != tiles.StatusFailed || o.Err.Kind == tiles.KindCanceled {
				continue
			}
			l.logFailure(rec, o)
			if firstFailure == nil {
				firstFailure = o.Err
			}
		}

		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if firstFailure != nil && l.opts.FailurePolicy == config.FailureStop {
			return sum, fmt.Errorf("row %d: %w", rec.Index, firstFailure)
		}

		if err := l.pacer.Pause(ctx, l.opts.Delay); err != nil {
			return sum, err
		}

		if l.opts.ProgressEvery > 0 && rec.Index%l.opts.ProgressEvery == 0 {
			l.logger.Info("Progress", zap.Int("row", rec.Index), zap.Int("rows", len(records)))
		}
	}

	return sum, nil
}

// rowDone reports whether a row needs no work under the resume mode
func (l *Loop) rowDone(base string) bool {
	if len(l.opts.Zooms) == 0 {
		return true
	}
	if l.opts.Resume == config.ResumeAll {
		return len(tiles.MissingZooms(base, l.opts.Zooms)) == 0
	}
	last := l.opts.Zooms[len(l.opts.Zooms)-1]
	return tiles.Exists(tiles.ArtifactPath(base, last))
}

func (l *Loop) logFailure(rec dataset.Record, o tiles.Outcome) {
	fe := o.Err
	tile := o.Request.Tile()
	fields := []zap.Field{
		zap.Int("row", rec.Index),
		zap.String("path", fe.Path),
		zap.Int("zoom", fe.Zoom),
		zap.String("kind", string(fe.Kind)),
		zap.Uint32("tile_x", tile.X),
		zap.Uint32("tile_y", tile.Y),
		zap.Error(fe),
	}
	if fe.Kind == tiles.KindStatus {
		fields = append(fields, zap.Int("status", fe.StatusCode))
	}
	l.logger.Warn("Tile fetch failed", fields...)
}
