package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"

	"qsnap-gateway/internal/app"
	"qsnap-gateway/internal/domain"
)

type WSHandler struct {
	service  *app.WorkspaceService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.WorkspaceService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type solvePayload struct {
	QuestionID int64 `json:"questionId"`
}

type editOCRPayload struct {
	QuestionID int64  `json:"questionId"`
	Text       string `json:"text"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message    string `json:"message"`
	QuestionID int64  `json:"questionId,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and binds the connection to a workspace
// for the requested paper. The workspace lives exactly as long as the connection.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	paperID, err := strconv.ParseInt(r.URL.Query().Get("paperId"), 10, 64)
	if err != nil || paperID <= 0 {
		http.Error(w, "missing or invalid paperId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ws, err := h.service.Open(r.Context(), paperID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer ws.Close()

	updates, cancel := ws.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})
	var solves sync.WaitGroup

	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}
	emitError := func(questionID int64, err error) {
		emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), QuestionID: questionID}})
	}

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					// Closed from elsewhere, e.g. the paper was deleted.
					emit(outboundMessage[any]{Type: "closed", Payload: struct{}{}})
					return
				}
				emit(outboundMessage[any]{Type: string(update.Type), Payload: update})
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "solve":
			var payload solvePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid solve payload"}})
				continue
			}
			solves.Add(1)
			go func(questionID int64) {
				defer solves.Done()
				// Failures of the request itself arrive as solveFailed updates.
				_, err := ws.Solve(context.Background(), questionID)
				if errors.Is(err, domain.ErrQuestionNotFound) {
					emitError(questionID, err)
				}
			}(payload.QuestionID)
		case "editOcr":
			var payload editOCRPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid editOcr payload"}})
				continue
			}
			if !ws.EditOCR(payload.QuestionID, payload.Text) {
				emitError(payload.QuestionID, domain.ErrQuestionNotFound)
			}
		case "resume":
			if err := ws.Resume(); err != nil {
				emitError(0, err)
			}
		default:
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	ws.Close()
	solves.Wait()
	<-updatesDone
	close(send)
	<-writerDone
}
