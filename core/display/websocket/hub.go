package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/koscakluka/ema-voice/core/events"
)

const broadcastBufferSize = 256

// Hub is a display surface that mirrors message updates and playback status to
// every connected websocket client. Run has to be running for updates to be
// delivered.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	// latest keeps the last frame per message so late joiners see the
	// current state
	latest      map[string][]byte
	latestOrder []string

	onControl func(ControlMessage)
	upgrader  websocket.Upgrader

	done     chan struct{}
	doneOnce sync.Once
}

type HubOption func(*Hub)

// WithControlHandler is called for every control message a client sends.
func WithControlHandler(handler func(ControlMessage)) HubOption {
	return func(h *Hub) {
		h.onControl = handler
	}
}

// WithCheckOrigin overrides the origin check of the websocket upgrade.
func WithCheckOrigin(checkOrigin func(*http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = checkOrigin
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, broadcastBufferSize),
		latest:     make(map[string][]byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers broadcasts until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })
	defer func() {
		for client := range h.clients {
			delete(h.clients, client)
			close(client.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			for _, id := range h.latestOrder {
				client.trySend(h.latest[id])
			}
			logger.Debug("display client connected", "clients", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				logger.Debug("display client disconnected", "clients", len(h.clients))
			}

		case message := <-h.broadcast:
			h.remember(message)
			for client := range h.clients {
				if !client.trySend(message) {
					delete(h.clients, client)
					close(client.send)
					logger.Warn("dropping slow display client")
				}
			}
		}
	}
}

// UpdateMessage replaces the text shown for message id.
func (h *Hub) UpdateMessage(id, text string) {
	h.publish(outgoingMessage{Type: messageTypeMessageUpdate, ID: id, Text: text})
}

// UpdatePlaybackStatus shows the speech status of message id.
func (h *Hub) UpdatePlaybackStatus(id string, status events.PlaybackStatusValue) {
	h.publish(outgoingMessage{Type: messageTypePlaybackStatus, ID: id, Status: status})
}

func (h *Hub) publish(message outgoingMessage) {
	frame, err := json.Marshal(message)
	if err != nil {
		logger.Error("failed to marshal display message", "error", err)
		return
	}

	select {
	case h.broadcast <- frame:
	case <-h.done:
	}
}

const maxRememberedMessages = 32

func (h *Hub) remember(frame []byte) {
	var message outgoingMessage
	if err := json.Unmarshal(frame, &message); err != nil || message.Type != messageTypeMessageUpdate {
		return
	}
	if _, ok := h.latest[message.ID]; !ok {
		h.latestOrder = append(h.latestOrder, message.ID)
		if len(h.latestOrder) > maxRememberedMessages {
			delete(h.latest, h.latestOrder[0])
			h.latestOrder = h.latestOrder[1:]
		}
	}
	h.latest[message.ID] = frame
}

// ServeHTTP upgrades the request to a websocket connection and attaches it to
// the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, clientSendBufferSize)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
