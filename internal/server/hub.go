package server

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"statusmonitor/internal/logger"
	"statusmonitor/internal/models"
)

const (
	// UpdateEvent is the event name of every broadcast snapshot.
	UpdateEvent = "update"

	hubWriteTimeout = 2 * time.Second
)

var statusUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// Event is the envelope written to dashboard clients.
type Event struct {
	Event string               `json:"event"`
	Data  models.UpdatePayload `json:"data"`
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub broadcasts published snapshots to every connected dashboard. Delivery
// is at most once per client per cycle: no queue, no retry, no replay for
// late joiners.
type Hub struct {
	log          logger.Logger
	writeTimeout time.Duration

	mu      sync.RWMutex
	clients map[string]*hubClient
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	if log == nil {
		log = logger.Noop()
	}
	return &Hub{
		log:          log,
		writeTimeout: hubWriteTimeout,
		clients:      make(map[string]*hubClient),
	}
}

// Name identifies the sink in logs.
func (h *Hub) Name() string { return "push" }

// Clients returns the number of connected dashboards.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish writes the snapshot to all clients concurrently. Clients whose
// write fails are disconnected.
func (h *Hub) Publish(snap models.Snapshot) error {
	event := Event{Event: UpdateEvent, Data: snap.Update()}

	h.mu.RLock()
	clients := make([]*hubClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *hubClient) {
			defer wg.Done()
			if err := h.write(c, event); err != nil {
				h.log.Debug("drop client %s: %v", c.id, err)
				h.remove(c)
			}
		}(c)
	}
	wg.Wait()
	return nil
}

// ServeWS upgrades the request and keeps the client registered until its
// connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := statusUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &hubClient{id: uuid.NewString(), conn: conn}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Debug("client %s connected from %s", c.id, r.RemoteAddr)

	// Dashboards never send anything; reading only detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*hubClient)
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) write(c *hubClient, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return c.conn.WriteJSON(event)
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		h.log.Debug("client %s disconnected", c.id)
	}
}
