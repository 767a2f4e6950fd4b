// Package server exposes the conversation engine over a WebSocket endpoint.
// Each connection is one conversation thread: text frames in, replies out,
// with thread history kept server-side for the lifetime of the connection.
package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kotori-ai/kotori-go-sdk/core"
	"github.com/kotori-ai/kotori-go-sdk/engine"
)

// clientMessage is an incoming frame.
type clientMessage struct {
	Type string `json:"type"` // "text-input"
	Text string `json:"text"`
}

// serverMessage is an outgoing frame.
type serverMessage struct {
	Type string `json:"type"` // "full-text" or "error"
	Text string `json:"text"`
}

// Server handles WebSocket conversations for one character.
type Server struct {
	engine   *engine.Engine
	confUID  string
	upgrader websocket.Upgrader
}

// New creates a server running conversations through eng on behalf of the
// character identified by confUID.
func New(eng *engine.Engine, confUID string) *Server {
	return &Server{
		engine:  eng,
		confUID: confUID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser front ends connect from their own origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the http.Handler for the conversation endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// One thread per connection.
	historyUID := uuid.New().String()
	var history []core.Message
	log.Printf("[SERVER] Conversation %s started", historyUID)

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SERVER] Conversation %s read error: %v", historyUID, err)
			}
			return
		}
		if msg.Type != "text-input" || msg.Text == "" {
			continue
		}

		out, err := s.engine.Run(r.Context(), engine.Input{
			ConfUID:     s.confUID,
			HistoryUID:  historyUID,
			UserMessage: msg.Text,
			History:     history,
		})
		if err != nil {
			log.Printf("[SERVER] Conversation %s turn failed: %v", historyUID, err)
			s.write(conn, serverMessage{Type: "error", Text: "conversation error"})
			continue
		}
		history = out.Transcript
		s.write(conn, serverMessage{Type: "full-text", Text: out.Text})
	}
}

func (s *Server) write(conn *websocket.Conn, msg serverMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("[SERVER] Write failed: %v", err)
	}
}
