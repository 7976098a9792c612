package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/talgya/lifesim/internal/engine"
)

type rawMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialStream(t *testing.T, ctx context.Context, url, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(url, "http") + "/api/v1/stream"
	if token != "" {
		u += "?token=" + token
	}
	c, _, err := websocket.Dial(ctx, u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func readUntil(t *testing.T, ctx context.Context, c *websocket.Conn, typ string) rawMessage {
	t.Helper()
	for {
		var m rawMessage
		if err := wsjson.Read(ctx, c, &m); err != nil {
			t.Fatalf("read waiting for %s: %v", typ, err)
		}
		if m.Type == typ {
			return m
		}
	}
}

func TestStreamSendsStateAndForwardsYears(t *testing.T) {
	s, ts := newTestServer(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dialStream(t, ctx, ts.URL, "")
	first := readUntil(t, ctx, c, "state")
	var snap engine.Snapshot
	if err := json.Unmarshal(first.Data, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.RunID != s.Ctrl.GetSnapshot().RunID {
		t.Errorf("snapshot run = %s", snap.RunID)
	}

	if _, err := s.Ctrl.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	m := readUntil(t, ctx, c, string(engine.NotifyYearAdvanced))
	var upd engine.YearUpdate
	if err := json.Unmarshal(m.Data, &upd); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if upd.CurrentYear != 2026 || upd.Result.Year != 2026 {
		t.Errorf("update = %+v", upd)
	}
}

func TestStreamCommands(t *testing.T) {
	s, ts := newTestServer(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	anon := dialStream(t, ctx, ts.URL, "")
	readUntil(t, ctx, anon, "state")
	if err := wsjson.Write(ctx, anon, map[string]string{"command": "start"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, ctx, anon, "error")
	if s.Ctrl.State() != engine.StatePaused {
		t.Fatal("anonymous command changed state")
	}

	admin := dialStream(t, ctx, ts.URL, testKey)
	readUntil(t, ctx, admin, "state")
	if err := wsjson.Write(ctx, admin, map[string]string{"command": "step"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, ctx, admin, "ack")
	if got := s.Ctrl.GetSnapshot().CurrentYear; got != 2026 {
		t.Errorf("year = %d, want 2026", got)
	}

	if err := wsjson.Write(ctx, admin, map[string]string{"command": "explode"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(t, ctx, admin, "error")
}

func TestStreamConnectionCap(t *testing.T) {
	s, ts := newTestServer(t, false)
	s.MaxStreams = 1
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dialStream(t, ctx, ts.URL, "")
	readUntil(t, ctx, c, "state")

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	if extra, _, err := websocket.Dial(ctx, u, nil); err == nil {
		extra.Close(websocket.StatusNormalClosure, "")
		t.Fatal("second stream accepted over the cap")
	}
}

func TestStreamStepSharesRateLimit(t *testing.T) {
	s, _ := newTestServer(t, false)
	s.StepLimit = 1
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if resp := post(t, ts, "/api/v1/step", testKey, ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("first step: %d, want 200", resp.StatusCode)
	}

	admin := dialStream(t, ctx, ts.URL, testKey)
	readUntil(t, ctx, admin, "state")
	if err := wsjson.Write(ctx, admin, map[string]string{"command": "step"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	m := readUntil(t, ctx, admin, "error")
	if !strings.Contains(string(m.Data), "rate limit") {
		t.Errorf("error = %s, want rate limit", m.Data)
	}
	if got := s.Ctrl.GetSnapshot().CurrentYear; got != 2026 {
		t.Errorf("year = %d, want 2026", got)
	}
}
