package handlers

import (
	"encoding/json"
	"log/slog"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/maheshrc27/unibox/internal/realtime"
)

// WSHandler attaches websocket clients to the realtime hub. One subscriber
// group per authenticated user, joined for the lifetime of the connection.
type WSHandler struct {
	hub *realtime.Hub
}

func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Upgrade gates the route to genuine websocket upgrade requests.
func (h *WSHandler) Upgrade(c *websocket.Conn) {
	h.serve(c)
}

func (h *WSHandler) serve(conn *websocket.Conn) {
	defer conn.Close()

	userIDStr, _ := conn.Locals("user_id").(string)
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID == 0 {
		return
	}

	subID, events := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(userID, subID)

	if err := conn.WriteJSON(realtime.Event{
		"type":    "connection_established",
		"message": "Connected to message updates",
	}); err != nil {
		return
	}

	// Client control frames (ping and malformed input) flow through their
	// own channel so there is a single writer on the connection.
	control := make(chan realtime.Event, 4)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var incoming struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &incoming); err != nil {
				select {
				case control <- realtime.Event{"type": "error", "message": "Invalid JSON"}:
				default:
				}
				continue
			}
			if incoming.Type == "ping" {
				select {
				case control <- realtime.Event{"type": "pong"}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case evt := <-control:
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				slog.Debug("realtime: write failed, dropping subscriber", "user_id", userID)
				return
			}
		}
	}
}
