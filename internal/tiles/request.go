// Package tiles fetches static satellite images for a coordinate at several zoom levels.
package tiles

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Request is one image to fetch: a centre coordinate at a zoom, saved to Path
type Request struct {
	Lat  float64
	Lon  float64
	Zoom int
	Path string
}

// Tile returns the slippy-map tile containing the request centre
func (r Request) Tile() maptile.Tile {
	return maptile.At(orb.Point{r.Lon, r.Lat}, maptile.Zoom(r.Zoom))
}

// ArtifactPath builds the deterministic file name for a base path and zoom
// Format: {base}_z{zoom}.png
func ArtifactPath(base string, zoom int) string {
	return fmt.Sprintf("%s_z%d.png", base, zoom)
}

// Exists reports whether an artifact is already on disk
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MissingZooms returns the zooms whose artifact is not present for base
func MissingZooms(base string, zooms []int) []int {
	var missing []int
	for _, z := range zooms {
		if !Exists(ArtifactPath(base, z)) {
			missing = append(missing, z)
		}
	}
	return missing
}
