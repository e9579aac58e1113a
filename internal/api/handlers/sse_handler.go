package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/partaibook/vendor-discovery/internal/domain/entities"
	"github.com/partaibook/vendor-discovery/internal/domain/providers"
	"github.com/rs/zerolog/log"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler streams marker updates for a discovery session's map layer
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	clients   map[string]map[chan *entities.MarkerUpdate]bool // channel -> clients
	mu        sync.RWMutex
}

// NewSSEHandler creates a new SSE handler. A nil event bus makes every stream
// request fail with 503.
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: defaultHeartbeatInterval,
		clients:   make(map[string]map[chan *entities.MarkerUpdate]bool),
	}
}

// WithHeartbeat overrides the heartbeat interval.
func (h *SSEHandler) WithHeartbeat(interval time.Duration) *SSEHandler {
	if interval > 0 {
		h.heartbeat = interval
	}
	return h
}

// StreamMarkers handles SSE connections for a session's marker updates
// GET /api/stream/sessions/{id}/markers
func (h *SSEHandler) StreamMarkers(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		respondWithError(w, http.StatusBadRequest, "session ID is required")
		return
	}
	if h.eventBus == nil {
		respondWithError(w, http.StatusServiceUnavailable, "marker streaming is not configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	channel := providers.GetSessionChannel(sessionID)
	eventChan, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("Failed to subscribe to marker channel")
		respondWithError(w, http.StatusBadGateway, "failed to subscribe to marker updates")
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan *entities.MarkerUpdate, 10)
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	h.sendEvent(w, "connected", map[string]interface{}{
		"session_id": sessionID,
		"timestamp":  time.Now(),
	})
	flusher.Flush()

	go h.forwardEvents(r.Context(), eventChan, clientChan)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("session_id", sessionID).Msg("Client disconnected from marker stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case update := <-clientChan:
			if update == nil {
				continue
			}
			h.sendEvent(w, "markers", update)
			flusher.Flush()
		}
	}
}

// forwardEvents forwards updates from the event bus to a client channel.
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.MarkerUpdate, clientChan chan *entities.MarkerUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-eventChan:
			if !ok {
				return
			}
			offerLatest(clientChan, update)
		}
	}
}

// offerLatest queues update without blocking. When the channel is full the
// oldest queued update is discarded, so the newest set always reaches the
// client. Only one goroutine may send on clientChan.
func offerLatest(clientChan chan *entities.MarkerUpdate, update *entities.MarkerUpdate) {
	for {
		select {
		case clientChan <- update:
			return
		default:
		}
		select {
		case <-clientChan:
		default:
		}
	}
}

func (h *SSEHandler) registerClient(channel string, clientChan chan *entities.MarkerUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.MarkerUpdate]bool)
	}
	h.clients[channel][clientChan] = true
	log.Debug().Str("channel", channel).Int("clients", len(h.clients[channel])).Msg("Marker client registered")
}

func (h *SSEHandler) unregisterClient(channel string, clientChan chan *entities.MarkerUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("Failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients for debugging
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
