package server

import (
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// handleTaskWebSocket upgrades GET /ws/task/{task_id} and streams that
// task's progress/completion events off wsfanout.Hub's "task:"+taskID
// channel. The client/server message framing (conn.Write(ctx,
// websocket.MessageText, ...), conn.Close with a status code) follows
// the teacher's tradernet.MarketStatusWebSocket, the pack's only
// nhooyr.io/websocket user, adapted from the dial side to the accept
// side.
func (s *Server) handleTaskWebSocket(w http.ResponseWriter, r *http.Request) {
	taskID := urlParam(r, "taskID")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Str("task_id", taskID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx := conn.CloseRead(r.Context())

	greeting, _ := json.Marshal(map[string]any{"type": "connection_established", "task_id": taskID})
	if err := conn.Write(ctx, websocket.MessageText, greeting); err != nil {
		return
	}

	sub, subID := s.hub.Subscribe("task:" + taskID)
	defer s.hub.Unsubscribe("task:"+taskID, subID)

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping, _ := json.Marshal(map[string]any{"type": "heartbeat"})
			if err := conn.Write(ctx, websocket.MessageText, ping); err != nil {
				return
			}
		case event, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
		}
	}
}
