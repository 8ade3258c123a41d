package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"satfetch/internal/handlers"
	"satfetch/internal/metrics"
	"satfetch/internal/testhelpers"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PROJECT_BASE_DIR", "MAPBOX_API_KEY", "TRAIN_CSV", "TEST_CSV",
		"IMAGE_DIR_TRAIN", "IMAGE_DIR_TEST", "LAT_COLUMN", "LON_COLUMN", "ZOOMS",
		"MAPBOX_STYLE", "MAPBOX_ENDPOINT", "FETCH_DELAY", "FETCH_TIMEOUT",
		"RATE_LIMIT", "RATE_LIMIT_BURST", "RESUME_MODE", "FAILURE_POLICY",
		"LOG_LEVEL", "LOG_FORMAT", "METRICS_ADDR",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

// setupProject lays out a base dir with both tables and points the fetcher at api
func setupProject(t *testing.T, api *testhelpers.FakeImagery) string {
	t.Helper()
	clearEnv(t)

	base := t.TempDir()
	data := filepath.Join(base, "data")
	require.NoError(t, os.MkdirAll(data, 0755))
	testhelpers.WriteCSV(t, data, "train(1)(train(1)).csv", [][2]float64{{10, 20}, {11, 21}})
	testhelpers.WriteCSV(t, data, "test2(test(1)).csv", [][2]float64{{30, 40}})

	t.Setenv("PROJECT_BASE_DIR", base)
	t.Setenv("MAPBOX_API_KEY", "pk.test")
	t.Setenv("MAPBOX_ENDPOINT", api.URL())
	t.Setenv("LOG_LEVEL", "error")
	return base
}

func TestRunMissingAccessToken(t *testing.T) {
	clearEnv(t)
	base := t.TempDir()
	t.Setenv("PROJECT_BASE_DIR", base)

	code := run(context.Background(), []string{"--delay=0s"})
	assert.Equal(t, 1, code)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing may be created without a credential")
}

func TestRunBothSplits(t *testing.T) {
	api := testhelpers.NewFakeImagery(t)
	base := setupProject(t, api)

	code := run(context.Background(), []string{"--delay=0s"})
	require.Equal(t, 0, code)

	assert.Equal(t, []string{
		"0_z16.png", "0_z17.png", "0_z18.png",
		"1_z16.png", "1_z17.png", "1_z18.png",
	}, testhelpers.ListFiles(t, filepath.Join(base, "train_images")))
	assert.Equal(t, []string{"0_z16.png", "0_z17.png", "0_z18.png"},
		testhelpers.ListFiles(t, filepath.Join(base, "test_images")))
	api.AssertCallCount(9)

	// A rerun finds everything on disk
	api.Reset()
	require.Equal(t, 0, run(context.Background(), []string{"--delay=0s"}))
	api.AssertCallCount(0)
}

func TestRunSingleSplit(t *testing.T) {
	api := testhelpers.NewFakeImagery(t)
	base := setupProject(t, api)

	code := run(context.Background(), []string{"--delay=0s", "--split=test", "--zooms=17"})
	require.Equal(t, 0, code)

	assert.Equal(t, []string{"0_z17.png"}, testhelpers.ListFiles(t, filepath.Join(base, "test_images")))
	_, err := os.Stat(filepath.Join(base, "train_images"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunFailedSplitStillRunsTheNext(t *testing.T) {
	api := testhelpers.NewFakeImagery(t)
	base := setupProject(t, api)
	require.NoError(t, os.Remove(filepath.Join(base, "data", "train(1)(train(1)).csv")))

	code := run(context.Background(), []string{"--delay=0s"})
	assert.Equal(t, 1, code)
	assert.Len(t, testhelpers.ListFiles(t, filepath.Join(base, "test_images")), 3)
}

func TestRunStopPolicy(t *testing.T) {
	api := testhelpers.NewFakeImagery(t).FailAt(10, 16, http.StatusTooManyRequests)
	setupProject(t, api)

	code := run(context.Background(), []string{"--delay=0s", "--failure-policy=stop", "--split=train"})
	assert.Equal(t, 1, code)
	api.AssertNoCallsFor(11)
}

func TestRunRejectsBadArguments(t *testing.T) {
	api := testhelpers.NewFakeImagery(t)
	setupProject(t, api)

	assert.Equal(t, 2, run(context.Background(), []string{"--split=validation"}))
	assert.Equal(t, 2, run(context.Background(), []string{"--no-such-flag"}))
	assert.Equal(t, 1, run(context.Background(), []string{"--resume=sometimes"}))
	api.AssertCallCount(0)
}

func TestStartMetricsServer(t *testing.T) {
	router := handlers.SetupRouter(metrics.New().Registry, nil)
	srv, addr, err := startMetricsServer("127.0.0.1:0", router, zap.NewNop())
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + addr + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}
