package tiles

import (
	"context"
	"errors"
	"time"
)

// Status is what happened to one zoom level
type Status int

const (
	StatusFetched Status = iota
	StatusSkipped        // artifact already on disk, no request made
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFetched:
		return "fetched"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome reports the result for a single zoom level
type Outcome struct {
	Request  Request
	Status   Status
	Bytes    int
	Duration time.Duration
	Err      *FetchError // set when Status is StatusFailed
}

// Fetcher downloads a URL; *Client is the production implementation
type Fetcher interface {
	Get(ctx context.Context, tileURL string) ([]byte, error)
}

// Retriever fetches one image per zoom for a coordinate
type Retriever struct {
	fetcher Fetcher
	urls    URLBuilder
}

// NewRetriever creates a retriever with injected dependencies
func NewRetriever(fetcher Fetcher, urls URLBuilder) *Retriever {
	return &Retriever{fetcher: fetcher, urls: urls}
}

// FetchMultiZoom fetches {base}_z{zoom}.png for every zoom in order.
// Zooms whose artifact exists are skipped without a request. A failure on one
// zoom never stops the others; every failure is reported in the returned
// outcomes and nothing else escapes.
func (r *Retriever) FetchMultiZoom(ctx context.Context, lat, lon float64, base string, zooms []int) []Outcome {
	outcomes := make([]Outcome, 0, len(zooms))
	for _, z := range zooms {
		req := Request{Lat: lat, Lon: lon, Zoom: z, Path: ArtifactPath(base, z)}
		outcomes = append(outcomes, r.Fetch(ctx, req))
	}
	return outcomes
}

// Fetch retrieves a single request, honouring the resume check
func (r *Retriever) Fetch(ctx context.Context, req Request) Outcome {
	if Exists(req.Path) {
		return Outcome{Request: req, Status: StatusSkipped}
	}

	start := time.Now()
	data, err := r.fetcher.Get(ctx, r.urls.Build(req))
	elapsed := time.Since(start)
	if err != nil {
		return failed(req, elapsed, err)
	}

	if err := writeAtomic(req.Path, data); err != nil {
		return failed(req, elapsed, &FetchError{Kind: KindWrite, Err: err})
	}

	return Outcome{Request: req, Status: StatusFetched, Bytes: len(data), Duration: elapsed}
}

func failed(req Request, elapsed time.Duration, err error) Outcome {
	var fe *FetchError
	if !errors.As(err, &fe) {
		fe = &FetchError{Kind: KindNetwork, Err: err}
	}
	fe.Path = req.Path
	fe.Zoom = req.Zoom
	return Outcome{Request: req, Status: StatusFailed, Duration: elapsed, Err: fe}
}
