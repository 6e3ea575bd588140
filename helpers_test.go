package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/ratebox/ranking"
)

func testConfig() *Config {
	cfg := &Config{
		bind:         "127.0.0.1",
		port:         8080,
		boardTimeout: time.Minute,
		metrics:      true,
		noColor:      true,
	}
	cfg.log = newLogger(cfg, io.Discard)

	return cfg
}

type testServer struct {
	*httptest.Server
	bm      *BoardManager
	metrics *boardMetrics
	client  *http.Client
}

func newTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()

	metrics := newBoardMetrics()
	bm := newBoardManager(cfg, metrics)
	srv := httptest.NewServer(newRouter(cfg, bm, metrics, make(chan error, 64)))

	t.Cleanup(func() {
		bm.closeAll()
		srv.Close()
	})

	return &testServer{
		Server:  srv,
		bm:      bm,
		metrics: metrics,
		client: &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// wireMessage is a superset of every server → client message.
type wireMessage struct {
	Type    string           `json:"type"`
	Entries []ranking.Ranked `json:"entries"`
	Title   string           `json:"title"`
	Rater   string           `json:"rater"`
	Score   int              `json:"score"`
	Message string           `json:"message"`
}

func (ts *testServer) dial(t *testing.T, boardID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + boardPath + "/" + boardID + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	// Every new connection first receives its draft, then the ranking.
	expect(t, conn, "draft")
	expect(t, conn, "ranking")

	return conn
}

func expect(t *testing.T, conn *websocket.Conn, msgType string) wireMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg wireMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, msgType, msg.Type, "unexpected message %+v", msg)

	return msg
}

func fillForm(t *testing.T, conn *websocket.Conn, title, rater string, score int) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "title", Value: title}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "rater", Value: rater}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "score", Score: score}))
}

func titles(ranked []ranking.Ranked) []string {
	out := make([]string, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.Title)
	}

	return out
}

// metricValue returns the value of the named counter or gauge whose label
// values equal labels, ordered by label name.
func metricValue(t *testing.T, m *boardMetrics, name string, labels ...string) float64 {
	t.Helper()

	families, err := m.registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, metric := range family.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}

			match := true
			for i, pair := range pairs {
				if pair.GetValue() != labels[i] {
					match = false
				}
			}
			if !match {
				continue
			}

			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}

			return metric.GetGauge().GetValue()
		}
	}

	return 0
}
