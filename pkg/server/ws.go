package server

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/germanamz/swchat/pkg/engine"
	"github.com/germanamz/swchat/pkg/logging"
)

// handleWS reads one {user_input} message, pushes the answer as the same
// envelopes /stream emits and closes the connection normally.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.WSOriginPatterns,
	})
	if err != nil {
		log.WarnContext(ctx, "websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	var req chatRequest
	if err := wsjson.Read(ctx, conn, &req); err != nil {
		log.WarnContext(ctx, "websocket read failed", "error", err)
		_ = conn.Close(websocket.StatusUnsupportedData, "invalid request")
		return
	}
	if err := req.validate(); err != nil {
		_ = wsjson.Write(ctx, conn, engine.ErrorEvent(err))
		_ = conn.Close(websocket.StatusPolicyViolation, "invalid request")
		return
	}

	err = s.engine.Stream(ctx, *req.UserInput, func(ev engine.Event) error {
		return wsjson.Write(ctx, conn, ev)
	})
	if err != nil && websocket.CloseStatus(err) != -1 {
		return
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
}
