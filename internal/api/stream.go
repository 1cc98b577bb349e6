package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const wsReadTimeout = 2 * time.Minute

// streamIn is a client frame: a gate choice when gate_id is set, otherwise a chase step
type streamIn struct {
	GateID   string  `json:"gate_id,omitempty"`
	Choice   *int    `json:"choice,omitempty"`
	Dt       float64 `json:"dt,omitempty"`
	Steering float64 `json:"steering,omitempty"`
}

// streamOut is a server frame. Type is "state", "gate", "tick", "score" or "error".
type streamOut struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// GET /api/v1/runs/{id}/chase/ws
func (s *Server) handleChaseStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	initial := sess.engine.State()
	sess.unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade", "id", sess.id, "err", err)
		return
	}
	defer conn.Close()
	s.logger.Info("ws connect", "id", sess.id, "remote", r.RemoteAddr)

	if err := conn.WriteJSON(streamOut{Type: "state", Data: initial}); err != nil {
		return
	}
	if initial.Phase.Terminal() {
		s.writeFinalScore(conn, sess)
		return
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		var in streamIn
		if err := conn.ReadJSON(&in); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("ws read", "id", sess.id, "err", err)
			}
			return
		}

		out, done := s.applyFrame(r, sess, in)
		if err := conn.WriteJSON(out); err != nil {
			s.logger.Debug("ws write", "id", sess.id, "err", err)
			return
		}
		if done {
			s.writeFinalScore(conn, sess)
			return
		}
	}
}

// applyFrame runs one client frame against the session and reports whether the run ended
func (s *Server) applyFrame(r *http.Request, sess *session, in streamIn) (streamOut, bool) {
	sess.lock(s.sessions.now())
	defer sess.unlock()

	var out streamOut
	if in.GateID != "" {
		req := GateRequest{GateID: in.GateID, Choice: in.Choice}
		if err := ValidateGateRequest(&req); err != nil {
			return streamOut{Type: "error", Data: NewError(ErrTypeValidation, err.Error()).WithContext("field", "choice").Build()}, false
		}
		out = streamOut{Type: "gate", Data: sess.engine.ResolveGate(req.GateID, *req.Choice)}
	} else {
		req := ChaseRequest{Dt: in.Dt, Steering: in.Steering}
		if err := ValidateChaseRequest(&req); err != nil {
			return streamOut{Type: "error", Data: NewError(ErrTypeValidation, err.Error()).Build()}, false
		}
		out = streamOut{Type: "tick", Data: sess.engine.AdvanceChase(req.Dt, req.Steering)}
	}
	s.persist(r.Context(), sess)
	return out, sess.engine.Phase().Terminal()
}

func (s *Server) writeFinalScore(conn *websocket.Conn, sess *session) {
	sess.lock(s.sessions.now())
	score := sess.engine.Score()
	sess.unlock()

	_ = conn.WriteJSON(streamOut{Type: "score", Data: score})
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(score.Phase)))
}
