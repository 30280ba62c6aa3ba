package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// StreamHub pushes logged alerts to connected websocket clients in real time.
// Subscriptions are per user; a slow client gets dropped rather than backing
// up the monitors.
type StreamHub struct {
	mu          sync.Mutex
	subscribers map[string]map[*subscriber]bool
	log         zerolog.Logger
}

type subscriber struct {
	userID string
	ch     chan []byte
}

// subscriberBuffer bounds the per-client backlog before the drop.
const subscriberBuffer = 16

// NewStreamHub creates the hub.
func NewStreamHub(log zerolog.Logger) *StreamHub {
	return &StreamHub{
		subscribers: make(map[string]map[*subscriber]bool),
		log:         log.With().Str("component", "alert_stream").Logger(),
	}
}

// Publish fans one alert out to the user's connected clients.
func (h *StreamHub) Publish(a AlertLog) {
	payload, err := json.Marshal(a)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal alert for stream")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers[a.UserID] {
		select {
		case sub.ch <- payload:
		default:
			// Client is not keeping up; close its channel and forget it.
			h.removeLocked(sub)
			close(sub.ch)
		}
	}
}

// ServeWS upgrades the request and streams the user's alerts until the
// client disconnects or the request context ends.
func (h *StreamHub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The chat UI runs on another origin in development.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := &subscriber{userID: userID, ch: make(chan []byte, subscriberBuffer)}
	h.add(sub)
	defer h.remove(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *StreamHub) add(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[sub.userID] == nil {
		h.subscribers[sub.userID] = make(map[*subscriber]bool)
	}
	h.subscribers[sub.userID][sub] = true
}

func (h *StreamHub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *StreamHub) removeLocked(sub *subscriber) {
	if subs, ok := h.subscribers[sub.userID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, sub.userID)
		}
	}
}
