package tiles

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// URLBuilder renders static image URLs for the Mapbox Static Images API
type URLBuilder struct {
	Endpoint    string // e.g. https://api.mapbox.com
	Style       string // e.g. mapbox/satellite-v9
	Width       int
	Height      int
	AccessToken string
}

// Build returns the request URL for r
// Format: {endpoint}/styles/v1/{style}/static/{lon},{lat},{zoom}/{w}x{h}?access_token={token}
func (b URLBuilder) Build(r Request) string {
	q := url.Values{}
	q.Set("access_token", b.AccessToken)

	return fmt.Sprintf("%s/styles/v1/%s/static/%s,%s,%d/%dx%d?%s",
		strings.TrimRight(b.Endpoint, "/"),
		strings.Trim(b.Style, "/"),
		formatCoord(r.Lon),
		formatCoord(r.Lat),
		r.Zoom,
		b.Width,
		b.Height,
		q.Encode(),
	)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
