package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boardcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Second, cfg.ResolveTimeout)
	assert.False(t, cfg.Headless)
	assert.Equal(t, time.Second, cfg.SlowMo)
	assert.Equal(t, "chromium", cfg.Browser)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 0, cfg.Retries)
	assert.Equal(t, TraceOnFirstRetry, cfg.Trace)
	assert.True(t, cfg.Screenshots)
	assert.Zero(t, cfg.SettleDelay)
	assert.Equal(t, "Web Application", cfg.HomeSection)
	assert.Equal(t, "To Do", cfg.FirstColumn)
	assert.Equal(t, "span", cfg.TagSelector)
	assert.Equal(t, "admin", cfg.Credentials.Identifier)
	assert.Equal(t, "password123", cfg.Credentials.Password)
	assert.Equal(t, "playwright-report", cfg.Report.OutputDir)
	assert.True(t, cfg.Report.HTML)
	assert.False(t, cfg.Upload.Enabled)
	assert.Equal(t, "@every 15m", cfg.Monitor.Schedule)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
base_url: http://localhost:8090/
timeout: 10s
headless: true
slow_mo: 0s
workers: 2
retries: 1
settle_delay: 1500ms
credentials:
  identifier: qa@example.com
report:
  output_dir: out
`)
	t.Setenv("BOARDCHECK_WORKERS", "4")
	t.Setenv("BOARDCHECK_REPORT_OUTPUT_DIR", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8090/", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.True(t, cfg.Headless)
	assert.Zero(t, cfg.SlowMo)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 1, cfg.Retries)
	assert.Equal(t, 1500*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, "qa@example.com", cfg.Credentials.Identifier)
	assert.Equal(t, "password123", cfg.Credentials.Password)
	assert.Equal(t, "from-env", cfg.Report.OutputDir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	path := writeConfig(t, `
base_url: not-a-url
workers: 0
browser: netscape
trace: sometimes
upload:
  enabled: true
  access_key_id: AKIA
`)
	_, err := Load(path)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 6)

	msg := err.Error()
	for _, want := range []string{"base_url", "workers", "browser", "trace", "upload.bucket", "secret_access_key"} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateTagSelector(t *testing.T) {
	cfg, err := Load(writeConfig(t, "tag_selector: \".tags span\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ".tags span", cfg.TagSelector)

	_, err = Load(writeConfig(t, "tag_selector: \"span[\"\n"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Errors, 1)
	assert.Contains(t, verr.Errors[0], `tag_selector "span[" is not a valid CSS selector`)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
BOARDCHECK_TEST_PLAIN=plain
export BOARDCHECK_TEST_QUOTED="with spaces"
BOARDCHECK_TEST_EXISTING=from-file
BOARDCHECK_TEST_EMPTY=
BOARDCHECK_TEST_EXPANDED=${BOARDCHECK_TEST_PLAIN}-x
not a pair
BOARDCHECK_TEST_AFTER=ignored
`), 0o644))
	t.Setenv("BOARDCHECK_TEST_EXISTING", "from-env")
	for _, k := range []string{"BOARDCHECK_TEST_PLAIN", "BOARDCHECK_TEST_QUOTED", "BOARDCHECK_TEST_EMPTY", "BOARDCHECK_TEST_EXPANDED", "BOARDCHECK_TEST_AFTER"} {
		k := k
		t.Cleanup(func() { _ = os.Unsetenv(k) })
	}

	loadDotEnv(path)

	assert.Equal(t, "plain", os.Getenv("BOARDCHECK_TEST_PLAIN"))
	assert.Equal(t, "with spaces", os.Getenv("BOARDCHECK_TEST_QUOTED"))
	assert.Equal(t, "from-env", os.Getenv("BOARDCHECK_TEST_EXISTING"))
	assert.Equal(t, "plain-x", os.Getenv("BOARDCHECK_TEST_EXPANDED"))
	_, set := os.LookupEnv("BOARDCHECK_TEST_EMPTY")
	assert.False(t, set)
	_, set = os.LookupEnv("BOARDCHECK_TEST_AFTER")
	assert.False(t, set, "lines after a malformed one are not applied")
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "workers: 1\n")
	changed := make(chan *Config, 16)

	w, err := Watch(path, func(c *Config) { changed <- c })
	require.NoError(t, err)
	assert.Equal(t, 1, w.Get().Workers)

	require.NoError(t, os.WriteFile(path, []byte("workers: 3\n"), 0o644))

	// A single write can surface as several events, the first of them on a
	// truncated file.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Workers != 3 {
				continue
			}
			assert.Equal(t, 3, w.Get().Workers)
			return
		case <-timeout:
			t.Fatal("config change not observed")
		}
	}
}

func TestWatchWithoutFile(t *testing.T) {
	w, err := Watch("", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, w.Get().BaseURL)
}

func TestCheckReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	assert.NoError(t, CheckReachable(context.Background(), srv.URL))

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()
	assert.Error(t, CheckReachable(context.Background(), url))
}
