package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/talgya/lifesim/internal/engine"
)

// streamMessage is the envelope for every server-to-client frame.
type streamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// streamCommand is a client-to-server control frame. Reset fields are
// optional.
type streamCommand struct {
	Command     string `json:"command"`
	HumanCount  *int   `json:"human_count,omitempty"`
	AnimalCount *int   `json:"animal_count,omitempty"`
	StartYear   *int   `json:"start_year,omitempty"`
}

const (
	streamPingInterval = 15 * time.Second
	streamWriteTimeout = 5 * time.Second
)

// handleStream upgrades to a websocket, sends the current snapshot, then
// forwards every controller notification until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	limit := int32(s.MaxStreams)
	if limit <= 0 {
		limit = defaultMaxStreams
	}
	current := atomic.AddInt32(&s.streamConns, 1)
	if current > limit {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streamConns, -1)

	authorised := s.checkBearerToken(r)
	ip := clientIP(r)

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer c.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subID, ch := s.Ctrl.Subscribe()
	defer s.Ctrl.Unsubscribe(subID)

	if err := s.send(ctx, c, streamMessage{Type: "state", Data: s.Ctrl.GetSnapshot()}); err != nil {
		return
	}

	slog.Info("stream client connected", "sub_id", subID, "authorised", authorised)

	cmds := make(chan streamCommand)
	go func() {
		defer cancel()
		for {
			var cmd streamCommand
			if err := wsjson.Read(ctx, c, &cmd); err != nil {
				return
			}
			select {
			case cmds <- cmd:
			case <-ctx.Done():
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				c.Close(websocket.StatusGoingAway, "controller closed")
				return
			}
			if err := s.send(ctx, c, notificationMessage(n)); err != nil {
				return
			}
		case cmd := <-cmds:
			if err := s.send(ctx, c, s.runCommand(cmd, ip, authorised)); err != nil {
				return
			}
		case <-ping.C:
			pctx, pcancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := c.Ping(pctx)
			pcancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

func (s *Server) send(ctx context.Context, c *websocket.Conn, msg streamMessage) error {
	wctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, c, msg)
}

func notificationMessage(n engine.Notification) streamMessage {
	if n.Type == engine.NotifyYearAdvanced {
		return streamMessage{Type: string(n.Type), Data: n.Update}
	}
	return streamMessage{Type: string(n.Type), Data: n.Snapshot}
}

// runCommand executes a control frame and returns the reply. State changes
// it causes also arrive as ordinary notifications. Steps share the HTTP step
// limiter.
func (s *Server) runCommand(cmd streamCommand, ip string, authorised bool) streamMessage {
	if !authorised {
		return streamMessage{Type: "error", Data: "unauthorized"}
	}
	switch cmd.Command {
	case "start":
		s.Ctrl.Start()
	case "pause":
		s.Ctrl.Pause()
	case "step":
		if !s.stepLimiter.Allow(ip) {
			return streamMessage{Type: "error", Data: "rate limit exceeded"}
		}
		if _, err := s.Ctrl.Step(); err != nil {
			return streamMessage{Type: "error", Data: err.Error()}
		}
	case "reset":
		req := resetRequest{HumanCount: cmd.HumanCount, AnimalCount: cmd.AnimalCount, StartYear: cmd.StartYear}
		if err := s.reset(req); err != nil {
			return streamMessage{Type: "error", Data: err.Error()}
		}
	default:
		return streamMessage{Type: "error", Data: "unknown command (use: start, pause, step, reset)"}
	}
	return streamMessage{Type: "ack", Data: cmd.Command}
}
