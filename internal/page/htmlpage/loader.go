package htmlpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const maxDocumentBytes = 8 << 20

// Loader fetches documents for a session. Implementations return the final
// URL after redirects and the response body regardless of status code, the
// way a browser renders error pages.
type Loader interface {
	Load(ctx context.Context, method, target string, form url.Values) (finalURL string, body []byte, err error)
}

// HTTPLoader loads documents over HTTP with its own cookie jar.
type HTTPLoader struct {
	Client *http.Client
}

// NewHTTPLoader returns a loader with an empty cookie jar.
func NewHTTPLoader() *HTTPLoader {
	jar, _ := cookiejar.New(nil)
	return &HTTPLoader{Client: &http.Client{Jar: jar, Timeout: 30 * time.Second}}
}

func (l *HTTPLoader) Load(ctx context.Context, method, target string, form url.Values) (string, []byte, error) {
	var body io.Reader
	if method == http.MethodPost {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "text/html")
	resp, err := l.Client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}
	return resp.Request.URL.String(), data, nil
}

// StaticLoader serves fixed documents keyed by URL path. Unknown paths get a
// bare not-found document.
type StaticLoader map[string]string

func (s StaticLoader) Load(_ context.Context, _ string, target string, _ url.Values) (string, []byte, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", nil, err
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	doc, ok := s[path]
	if !ok {
		doc = "<!doctype html><title>Not Found</title><h1>Not Found</h1>"
	}
	return u.String(), []byte(doc), nil
}
