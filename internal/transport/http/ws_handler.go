package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"classroom-assessment-service/internal/app"
	"classroom-assessment-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler pushes leaderboard updates to any viewer and monitor snapshots to the owner.
type WSHandler struct {
	service         *app.Service
	upgrader        websocket.Upgrader
	monitorInterval time.Duration
}

func NewWSHandler(service *app.Service, monitorInterval time.Duration) *WSHandler {
	if monitorInterval <= 0 {
		monitorInterval = 5 * time.Second
	}
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		monitorInterval: monitorInterval,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and streams updates for ?assessmentId= until the client leaves.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request, caller Caller) {
	assessmentID := r.URL.Query().Get("assessmentId")
	if assessmentID == "" {
		writeError(w, r, domain.NewValidationError(domain.FieldError{Field: "assessmentId", Error: "required"}))
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), assessmentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cancel()

	// Only the owner gets monitor snapshots; anyone else just watches the leaderboard.
	first, err := h.service.Monitor(r.Context(), caller.UserID, assessmentID)
	isOwner := err == nil
	if err != nil && !errors.Is(err, domain.ErrUnauthorized) {
		writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	pushDone := make(chan struct{})

	// single writer; gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				// unblocks the read loop below
				conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(pushDone)
		var tick <-chan time.Time
		if isOwner {
			ticker := time.NewTicker(h.monitorInterval)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			var msg outboundMessage[any]
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg = outboundMessage[any]{Type: "leaderboard", Payload: update}
			case <-tick:
				snapshot, err := h.service.Monitor(r.Context(), caller.UserID, assessmentID)
				if err != nil {
					msg = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				} else {
					msg = outboundMessage[any]{Type: "monitor", Payload: snapshot}
				}
			case <-closeSignals:
				return
			}
			select {
			case send <- msg:
			case <-writerDone:
				return
			case <-closeSignals:
				return
			}
		}
	}()

	alive := true
	if isOwner {
		alive = enqueue(send, writerDone, outboundMessage[any]{Type: "monitor", Payload: first})
	}

	for alive {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "refresh":
			lb, err := h.service.Leaderboard(r.Context(), assessmentID)
			if err != nil {
				reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			} else {
				reply = outboundMessage[any]{Type: "leaderboard", Payload: lb}
			}
		default:
			reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
		alive = enqueue(send, writerDone, reply)
	}

	close(closeSignals)
	<-pushDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer and reports false once the writer has stopped.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}
