package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"quiz-portal-go/logging"
	"quiz-portal-go/middleware"
	"quiz-portal-go/services"
)

// heartbeatInterval keeps idle SSE connections alive through proxies
const heartbeatInterval = 30 * time.Second

// SSEClient represents a connected SSE client with user context
type SSEClient struct {
	Channel chan string
	UserID  string
}

// SSEHandler streams reveal and round events to connected clients.
// The reveal controller and round watchers push into it; each HTTP
// connection drains its own buffered channel.
type SSEHandler struct {
	logger *logging.Logger

	mu         sync.Mutex
	clients    map[*SSEClient]bool
	lastReveal *services.RevealEvent

	messageCounter uint64
	stopHeartbeat  chan struct{}
	stopOnce       sync.Once
}

// NewSSEHandler creates a new SSE handler and starts its heartbeat
func NewSSEHandler() *SSEHandler {
	handler := &SSEHandler{
		logger:        logging.WithPrefix("SSE"),
		clients:       make(map[*SSEClient]bool),
		stopHeartbeat: make(chan struct{}),
	}
	go handler.heartbeatLoop()
	return handler
}

// Stop halts the heartbeat goroutine
func (h *SSEHandler) Stop() {
	h.stopOnce.Do(func() { close(h.stopHeartbeat) })
}

// Handle upgrades the request to a Server-Sent Events stream
func (h *SSEHandler) Handle(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if user := middleware.GetUserFromContext(r); user != nil {
		userID = user.ID
	}
	h.logger.Infof("New client connected from %s (user=%s)", r.RemoteAddr, userID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	client := &SSEClient{
		Channel: make(chan string, 100),
		UserID:  userID,
	}

	h.mu.Lock()
	h.clients[client] = true
	snapshot := h.lastReveal
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		h.logger.Infof("Client disconnected (user=%s)", userID)
	}()

	fmt.Fprintf(w, "event: connection\ndata: SSE connection established\n\n")
	flusher.Flush()

	// Late joiners get the current reveal state immediately instead of
	// waiting for the next change.
	if snapshot != nil {
		if msg, err := h.formatEvent("reveal", snapshot); err == nil {
			fmt.Fprint(w, msg)
			flusher.Flush()
		}
	}

	for {
		select {
		case message, ok := <-client.Channel:
			if !ok {
				return
			}
			fmt.Fprint(w, message)
			flusher.Flush()

		case <-r.Context().Done():
			h.logger.Debugf("Client context cancelled (user=%s)", userID)
			return
		}
	}
}

// BroadcastReveal pushes a reveal controller event to every client.
// Wired as the reveal controller's sink.
func (h *SSEHandler) BroadcastReveal(event services.RevealEvent) {
	h.mu.Lock()
	h.lastReveal = &event
	h.mu.Unlock()

	h.broadcast("reveal", event)
}

// BroadcastRoundStatus announces a round opening or closing
func (h *SSEHandler) BroadcastRoundStatus(roundID string, open bool) {
	h.broadcast("round_status", map[string]interface{}{
		"round": roundID,
		"open":  open,
	})
}

func (h *SSEHandler) broadcast(event string, payload interface{}) {
	msg, err := h.formatEvent(event, payload)
	if err != nil {
		h.logger.Errorf("Failed to encode %s event: %v", event, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.Channel <- msg:
		default:
			// Client is not draining its buffer; skip rather than block
			// the broadcaster.
			h.logger.Warnf("Dropping %s event for slow client (user=%s)", event, client.UserID)
		}
	}
}

// formatEvent renders an id/event/data SSE frame with a JSON payload
func (h *SSEHandler) formatEvent(event string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	id := atomic.AddUint64(&h.messageCounter, 1)
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", id, event, data), nil
}

func (h *SSEHandler) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.broadcastHeartbeat()
		case <-h.stopHeartbeat:
			return
		}
	}
}

func (h *SSEHandler) broadcastHeartbeat() {
	id := atomic.AddUint64(&h.messageCounter, 1)
	msg := fmt.Sprintf("id: %d\nevent: heartbeat\ndata: %d\n\n", id, time.Now().Unix())

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.Channel <- msg:
		default:
		}
	}
}
