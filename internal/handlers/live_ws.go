package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/driveguard/driveguard/internal/database"
	"github.com/driveguard/driveguard/internal/livestatus"
	"github.com/driveguard/driveguard/internal/services"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsSendBufferSize = 64
)

// LiveMessageType discriminates messages pushed to dashboard clients
type LiveMessageType string

const (
	LiveMessageTypeSnapshot LiveMessageType = "snapshot"
	LiveMessageTypeStatus   LiveMessageType = "status"
	LiveMessageTypeAlert    LiveMessageType = "alert"
)

// LiveMessage is one WebSocket frame pushed to a dashboard client
type LiveMessage struct {
	Type    LiveMessageType    `json:"type"`
	Entry   *livestatus.Entry  `json:"entry,omitempty"`
	Entries []livestatus.Entry `json:"entries,omitempty"`
	Alert   *database.Alert    `json:"alert,omitempty"`
	SentAt  int64              `json:"sent_at"`
}

// LiveWSHandler bridges the live status store and the alert feed to
// dashboard WebSocket clients. Each connection gets its own pair of
// subscriptions, detached when the socket closes.
type LiveWSHandler struct {
	upgrader websocket.Upgrader
	live     livestatus.Store
	alerts   *services.AlertService
}

// NewLiveWSHandler creates a new live status WebSocket handler
func NewLiveWSHandler(live livestatus.Store, alerts *services.AlertService) *LiveWSHandler {
	return &LiveWSHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // UI is served from a different origin in deployment
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		live:   live,
		alerts: alerts,
	}
}

// SetupRoutes configures WebSocket routes
func (h *LiveWSHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/live", h.HandleWebSocket)
}

// HandleWebSocket handles one dashboard client connection
func (h *LiveWSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("LiveWSHandler: failed to upgrade WebSocket: %v", err)
		return
	}
	log.Printf("LiveWSHandler: dashboard client connected from %s", r.RemoteAddr)

	send := make(chan LiveMessage, wsSendBufferSize)
	done := make(chan struct{})

	enqueue := func(msg LiveMessage) {
		msg.SentAt = time.Now().Unix()
		select {
		case send <- msg:
		case <-done:
		default:
			// Slow client: drop the frame rather than block the feed.
		}
	}

	onError := func(err error) {
		log.Printf("LiveWSHandler: subscription error for %s: %v", r.RemoteAddr, err)
	}

	unsubStatus, err := h.live.SubscribeAll(r.Context(), func(entry livestatus.Entry) {
		e := entry
		enqueue(LiveMessage{Type: LiveMessageTypeStatus, Entry: &e})
	}, onError)
	if err != nil {
		log.Printf("LiveWSHandler: failed to subscribe to live status: %v", err)
		conn.Close()
		return
	}

	unsubAlerts, err := h.alerts.Subscribe(func(alert database.Alert) {
		a := alert
		enqueue(LiveMessage{Type: LiveMessageTypeAlert, Alert: &a})
	}, onError)
	if err != nil {
		log.Printf("LiveWSHandler: failed to subscribe to alert feed: %v", err)
		unsubStatus()
		conn.Close()
		return
	}

	// Initial snapshot so the client renders without waiting for the first
	// status change.
	if entries, err := h.live.GetAll(r.Context()); err != nil {
		onError(err)
	} else {
		enqueue(LiveMessage{Type: LiveMessageTypeSnapshot, Entries: entries})
	}

	// Writer pump: the only goroutine that writes to the connection.
	go func() {
		defer conn.Close()
		for {
			select {
			case msg := <-send:
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Printf("LiveWSHandler: failed to encode message: %v", err)
					continue
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Read loop exists only to detect the client going away. Inbound frames
	// are discarded.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	unsubStatus()
	unsubAlerts()
	log.Printf("LiveWSHandler: dashboard client disconnected from %s", r.RemoteAddr)
}
