package fetcher

import (
	"time"

	"go.uber.org/zap/zapcore"

	"satfetch/internal/tiles"
)

// Summary counts what one pass over a table did
type Summary struct {
	Rows          int
	RowsSkipped   int
	RowsProcessed int

	TilesFetched int
	TilesSkipped int
	TilesFailed  int
	Bytes        int

	Elapsed time.Duration
}

func (s *Summary) addOutcomes(outcomes []tiles.Outcome) {
	for _, o := range outcomes {
		switch o.Status {
		case tiles.StatusFetched:
			s.TilesFetched++
			s.Bytes += o.Bytes
		case tiles.StatusSkipped:
			s.TilesSkipped++
		case tiles.StatusFailed:
			s.TilesFailed++
		}
	}
}

// MarshalLogObject lets a Summary be logged with zap.Object
func (s Summary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("rows", s.Rows)
	enc.AddInt("rows_skipped", s.RowsSkipped)
	enc.AddInt("rows_processed", s.RowsProcessed)
	enc.AddInt("tiles_fetched", s.TilesFetched)
	enc.AddInt("tiles_skipped", s.TilesSkipped)
	enc.AddInt("tiles_failed", s.TilesFailed)
	enc.AddInt("bytes", s.Bytes)
	enc.AddDuration("elapsed", s.Elapsed)
	return nil
}
