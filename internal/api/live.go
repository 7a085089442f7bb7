package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// RunEvent is pushed to live clients when a stored run changes
type RunEvent struct {
	Type        string `json:"type"`
	RunID       string `json:"run_id"`
	TrainNumber string `json:"train_number,omitempty"`
	Date        string `json:"date,omitempty"`
}

const (
	EventRunSaved   = "run_saved"
	EventRunDeleted = "run_deleted"
)

type liveMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Trains []string `json:"trains"`
}

type liveClient struct {
	id     string
	send   chan []byte
	mu     sync.RWMutex
	trains map[string]struct{}
}

// wants reports whether the client follows a train. No subscription means all trains.
func (c *liveClient) wants(train string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.trains) == 0 {
		return true
	}
	_, ok := c.trains[strings.ToUpper(train)]
	return ok
}

func (c *liveClient) follow(trains []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range trains {
		c.trains[strings.ToUpper(t)] = struct{}{}
	}
}

// Hub fans run events out to connected live clients
type Hub struct {
	mu      sync.RWMutex
	clients map[*liveClient]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*liveClient]struct{})}
}

func (h *Hub) register(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Publish sends an event to every interested client. Slow clients whose
// buffer is full miss the event.
func (h *Hub) Publish(ev RunEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(ev.TrainNumber) {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("Warning: live client %s buffer full, dropping %s", c.id, ev.Type)
		}
	}
}

// Live handles GET /api/live as a websocket of run events
func (s *Server) Live(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		log.Printf("API: websocket accept failed: %v", err)
		return
	}

	client := &liveClient{
		id:     uuid.New().String(),
		send:   make(chan []byte, 64),
		trains: make(map[string]struct{}),
	}
	s.hub.register(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go writeLoop(ctx, conn, client)
	s.readLoop(ctx, conn, client)
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, client *liveClient) {
	defer func() {
		s.hub.unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "subscribe":
			var payload subscribePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				continue
			}
			client.follow(payload.Trains)
			reply(client, "subscribed")
		case "ping":
			reply(client, "pong")
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, client *liveClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-client.send:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func reply(client *liveClient, msgType string) {
	data, _ := json.Marshal(liveMessage{Type: msgType})
	select {
	case client.send <- data:
	default:
	}
}
