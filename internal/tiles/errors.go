package tiles

import (
	"fmt"
)

// Kind classifies why a tile could not be fetched
type Kind string

const (
	KindNetwork  Kind = "network"
	KindTimeout  Kind = "timeout"
	KindStatus   Kind = "status"
	KindWrite    Kind = "write"
	KindCanceled Kind = "canceled"
)

// FetchError describes a failed tile. It never carries the request URL,
// which contains the access token.
type FetchError struct {
	Kind       Kind
	Path       string
	Zoom       int
	StatusCode int // set for KindStatus
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s zoom %d: tile request failed with status: %d", e.Path, e.Zoom, e.StatusCode)
	}
	return fmt.Sprintf("%s zoom %d: %s: %v", e.Path, e.Zoom, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
