package main

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServer(t *testing.T) {
	testCases := []struct {
		name        string
		endpoint    string
		statusCode  int
		contentType string
		body        string
	}{
		{
			name:        "Health handler",
			endpoint:    "/healthz",
			statusCode:  http.StatusOK,
			contentType: "text/plain; charset=utf-8",
			body:        "Ok\n",
		},
		{
			name:        "Version handler",
			endpoint:    "/version",
			statusCode:  http.StatusOK,
			contentType: "text/plain; charset=utf-8",
			body:        "ratebox v" + releaseVersion + "\n",
		},
		{
			name:        "Robots",
			endpoint:    "/robots.txt",
			statusCode:  http.StatusOK,
			contentType: "text/plain; charset=utf-8",
			body:        "Disallow: /board/",
		},
		{
			name:        "Board page",
			endpoint:    "/board/alphaBrd",
			statusCode:  http.StatusOK,
			contentType: "text/html; charset=utf-8",
			body:        `<script src="../assets/board/app.js"></script>`,
		},
		{
			name:        "Stylesheet",
			endpoint:    "/assets/board/app.css",
			statusCode:  http.StatusOK,
			contentType: "text/css; charset=utf-8",
			body:        ".star.on",
		},
		{
			name:        "Script",
			endpoint:    "/assets/board/app.js",
			statusCode:  http.StatusOK,
			contentType: "text/javascript; charset=utf-8",
			body:        "new WebSocket(",
		},
		{
			name:        "Favicon",
			endpoint:    "/favicons/favicon.svg",
			statusCode:  http.StatusOK,
			contentType: "image/svg+xml",
			body:        "<svg",
		},
		{
			name:        "Manifest",
			endpoint:    "/favicons/site.webmanifest",
			statusCode:  http.StatusOK,
			contentType: "application/manifest+json",
			body:        `"name": "ratebox"`,
		},
		{
			name:       "Missing asset",
			endpoint:   "/assets/board/missing.js",
			statusCode: http.StatusNotFound,
		},
		{
			name:        "QR code",
			endpoint:    "/board/alphaBrd/qr",
			statusCode:  http.StatusOK,
			contentType: "image/png",
			body:        "\x89PNG",
		},
		{
			name:        "Metrics",
			endpoint:    "/metrics",
			statusCode:  http.StatusOK,
			contentType: "text/plain",
			body:        "ratebox_boards",
		},
		{
			name:       "Invalid endpoint",
			endpoint:   "/invalid",
			statusCode: http.StatusNotFound,
		},
	}

	ts := newTestServer(t, testConfig())

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rq := require.New(t)

			resp, err := ts.client.Get(ts.URL + tc.endpoint)
			rq.NoError(err)
			defer resp.Body.Close()

			rq.Equal(tc.statusCode, resp.StatusCode)

			if tc.statusCode != http.StatusOK {
				return
			}

			rq.True(strings.HasPrefix(resp.Header.Get("Content-Type"), tc.contentType), resp.Header.Get("Content-Type"))
			rq.Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))
			rq.Equal("default-src 'self'", resp.Header.Get("Content-Security-Policy"))
			rq.Empty(resp.Header.Get("Strict-Transport-Security"))

			body, err := io.ReadAll(resp.Body)
			rq.NoError(err)
			rq.Contains(string(body), tc.body)
		})
	}
}

func TestRedirects(t *testing.T) {
	rq := require.New(t)
	ts := newTestServer(t, testConfig())

	resp, err := ts.client.Get(ts.URL + "/")
	rq.NoError(err)
	_ = resp.Body.Close()

	rq.Equal(http.StatusTemporaryRedirect, resp.StatusCode)
	rq.Equal(boardPath, resp.Header.Get("Location"))

	resp, err = ts.client.Get(ts.URL + boardPath)
	rq.NoError(err)
	_ = resp.Body.Close()

	rq.Equal(http.StatusTemporaryRedirect, resp.StatusCode)
	rq.Regexp(`^/board/[A-Za-z0-9]{8}$`, resp.Header.Get("Location"))
}

func TestPrefix(t *testing.T) {
	rq := require.New(t)

	cfg := testConfig()
	cfg.prefix = "/games"
	ts := newTestServer(t, cfg)

	resp, err := ts.client.Get(ts.URL + "/games/")
	rq.NoError(err)
	_ = resp.Body.Close()
	rq.Equal(http.StatusTemporaryRedirect, resp.StatusCode)
	rq.Equal("/games/board", resp.Header.Get("Location"))

	resp, err = ts.client.Get(ts.URL + "/games/board")
	rq.NoError(err)
	_ = resp.Body.Close()
	rq.Regexp(`^/games/board/[A-Za-z0-9]{8}$`, resp.Header.Get("Location"))

	for _, endpoint := range []string{"/games/healthz", "/games/assets/board/app.css", "/games/favicons/favicon.svg", "/games/board/alphaBrd"} {
		resp, err = ts.client.Get(ts.URL + endpoint)
		rq.NoError(err)
		_ = resp.Body.Close()
		rq.Equal(http.StatusOK, resp.StatusCode, endpoint)
	}

	resp, err = ts.client.Get(ts.URL + "/healthz")
	rq.NoError(err)
	_ = resp.Body.Close()
	rq.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestOptionalHandlersDisabled(t *testing.T) {
	rq := require.New(t)

	cfg := testConfig()
	cfg.metrics = false
	ts := newTestServer(t, cfg)

	for _, endpoint := range []string{"/metrics", "/pprof/heap"} {
		resp, err := ts.client.Get(ts.URL + endpoint)
		rq.NoError(err)
		_ = resp.Body.Close()
		rq.Equal(http.StatusNotFound, resp.StatusCode, endpoint)
	}
}

func TestNewPageEscapes(t *testing.T) {
	rq := require.New(t)

	page := newPage(testConfig(), "<b>", "a & b")
	rq.Contains(page, "<title>&lt;b&gt;</title>")
	rq.Contains(page, "a &amp; b")
	rq.Contains(page, `href="/favicons/favicon.svg"`)
}

func TestRealIP(t *testing.T) {
	testCases := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{name: "Remote address", remote: "10.0.0.1:1234", want: "10.0.0.1:1234"},
		{name: "Cloudflare header", remote: "10.0.0.1:1234", headers: map[string]string{"CF-Connecting-IP": "203.0.113.9"}, want: "203.0.113.9:1234"},
		{name: "Real IP header", remote: "10.0.0.1:1234", headers: map[string]string{"X-Real-IP": "2001:db8::1"}, want: "[2001:db8::1]:1234"},
		{name: "Garbage header", remote: "10.0.0.1:1234", headers: map[string]string{"X-Real-IP": "nope"}, want: "10.0.0.1:1234"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodGet, "/", nil)
			require.NoError(t, err)

			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}

			require.Equal(t, tc.want, realIP(r))
		})
	}
}

func TestBoardFormWaitsForSocket(t *testing.T) {
	rq := require.New(t)
	ts := newTestServer(t, testConfig())

	read := func(endpoint string) string {
		resp, err := ts.client.Get(ts.URL + endpoint)
		rq.NoError(err)
		defer resp.Body.Close()
		rq.Equal(http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		rq.NoError(err)

		return string(body)
	}

	page := read("/board/alphaBrd")
	rq.Contains(page, `<fieldset id="fields" disabled>`)

	fieldset := page[strings.Index(page, `<fieldset`):strings.Index(page, `</fieldset>`)]
	for _, id := range []string{`id="title"`, `id="rater"`, `class="star"`, `id="submit"`} {
		rq.Contains(fieldset, id)
	}

	script := read("/assets/board/app.js")
	rq.Regexp(`ws\.onopen = function\(\) \{[^}]*setEnabled\(true\)`, script)
	rq.Regexp(`ws\.onclose = function\(\) \{[^}]*setEnabled\(false\);\s*showNotice\('Disconnected\. Reload the page to continue\.'\)`, script)
}
