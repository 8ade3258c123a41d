package testhelpers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// PNGHeader is the signature every fake tile body starts with
const PNGHeader = "\x89PNG\r\n\x1a\n"

// Call is one request received by FakeImagery
type Call struct {
	Style string
	Lon   float64
	Lat   float64
	Zoom  int
	Size  string
	Token string
}

// FakeImagery provides a static-images API double for tests
type FakeImagery struct {
	t      *testing.T
	server *httptest.Server

	mu      sync.Mutex
	calls   []Call
	failing []failRule
}

type failRule struct {
	match  func(Call) bool
	status int
}

// NewFakeImagery starts a server that answers every well-formed request with a PNG body
func NewFakeImagery(t *testing.T) *FakeImagery {
	t.Helper()
	f := &FakeImagery{t: t}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

// URL returns the endpoint to configure in place of https://api.mapbox.com
func (f *FakeImagery) URL() string {
	return f.server.URL
}

// FailWhen makes matching requests answer with status
func (f *FakeImagery) FailWhen(match func(Call) bool, status int) *FakeImagery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = append(f.failing, failRule{match: match, status: status})
	return f
}

// FailAt fails the request for a coordinate at one zoom
func (f *FakeImagery) FailAt(lat float64, zoom int, status int) *FakeImagery {
	return f.FailWhen(func(c Call) bool { return c.Lat == lat && c.Zoom == zoom }, status)
}

// Calls returns a copy of every request received so far
func (f *FakeImagery) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns the requests made for a latitude
func (f *FakeImagery) CallsFor(lat float64) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Lat == lat {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls
func (f *FakeImagery) Reset() *FakeImagery {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	return f
}

// AssertCallCount checks the total number of requests
func (f *FakeImagery) AssertCallCount(expected int) *FakeImagery {
	f.t.Helper()
	if got := len(f.Calls()); got != expected {
		f.t.Errorf("Expected %d imagery requests, but got %d: %+v", expected, got, f.Calls())
	}
	return f
}

// AssertNoCallsFor checks that a coordinate was never requested
func (f *FakeImagery) AssertNoCallsFor(lat float64) *FakeImagery {
	f.t.Helper()
	if calls := f.CallsFor(lat); len(calls) != 0 {
		f.t.Errorf("Expected no requests for lat=%v, but got %d: %+v", lat, len(calls), calls)
	}
	return f
}

// TileBody is the body served for a zoom, so tests can check what was written
func TileBody(zoom int) []byte {
	return []byte(fmt.Sprintf("%sz%d", PNGHeader, zoom))
}

func (f *FakeImagery) serve(w http.ResponseWriter, r *http.Request) {
	call, err := parseStaticPath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	call.Token = r.URL.Query().Get("access_token")

	f.mu.Lock()
	f.calls = append(f.calls, call)
	status := 0
	for _, rule := range f.failing {
		if rule.match(call) {
			status = rule.status
			break
		}
	}
	f.mu.Unlock()

	if call.Token == "" {
		http.Error(w, `{"message":"Not Authorized - No Token"}`, http.StatusUnauthorized)
		return
	}
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(TileBody(call.Zoom))
}

// parseStaticPath reads /styles/v1/{owner}/{style}/static/{lon},{lat},{zoom}/{w}x{h}
func parseStaticPath(path string) (Call, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 7 || parts[0] != "styles" || parts[1] != "v1" || parts[4] != "static" {
		return Call{}, fmt.Errorf("unexpected path %s", path)
	}

	pos := strings.Split(parts[5], ",")
	if len(pos) != 3 {
		return Call{}, fmt.Errorf("unexpected position %s", parts[5])
	}
	lon, err := strconv.ParseFloat(pos[0], 64)
	if err != nil {
		return Call{}, err
	}
	lat, err := strconv.ParseFloat(pos[1], 64)
	if err != nil {
		return Call{}, err
	}
	zoom, err := strconv.Atoi(pos[2])
	if err != nil {
		return Call{}, err
	}

	return Call{
		Style: parts[2] + "/" + parts[3],
		Lon:   lon,
		Lat:   lat,
		Zoom:  zoom,
		Size:  parts[6],
	}, nil
}

// WriteCSV writes a lat/long table and returns its path
func WriteCSV(t *testing.T, dir, name string, coords [][2]float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,lat,long\n")
	for i, c := range coords {
		fmt.Fprintf(&b, "%d,%s,%s\n", 1000+i,
			strconv.FormatFloat(c[0], 'f', -1, 64),
			strconv.FormatFloat(c[1], 'f', -1, 64))
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("Failed to write CSV %s: %v", path, err)
	}
	return path
}

// ListFiles returns the sorted names of regular files in dir
func ListFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Touch creates a placeholder artifact, standing in for one from an earlier run
func Touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(PNGHeader), 0644); err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}
}
