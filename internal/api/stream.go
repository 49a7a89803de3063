package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// handleCommentStream upgrades to a websocket and pushes every comment
// added to the task after the connection opens, one JSON object per
// message.
func (s *Server) handleCommentStream(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	stream, err := s.tracker.SubscribeComments(r.Context(), currentUser(r), taskID)
	if err != nil {
		s.writeServiceError(w, r, "subscribing to comments", err)
		return
	}
	defer stream.Close()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied.
		return
	}
	defer conn.Close()

	log := s.logger.With().Str("task_id", taskID).Logger()

	// The read side only exists to notice the peer going away.
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case ev, ok := <-stream.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if ev.Op != docstore.OpCreate {
				continue
			}
			var c domain.Comment
			if err := docstore.Decode(ev.Doc, &c); err != nil {
				log.Warn().Err(err).Str("comment_id", ev.ID).Msg("undecodable comment")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(c); err != nil {
				log.Debug().Err(err).Msg("comment stream closed")
				return
			}
		}
	}
}
