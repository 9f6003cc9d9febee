// Package board pushes workspace events to collaborators over websockets.
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"stemboard/cache"
	"stemboard/logger"
	"stemboard/model"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Presence records which users have a board open. cache.PresenceCache
// implements it.
type Presence interface {
	Touch(ctx context.Context, workspaceID string, userID int64) error
	Remove(ctx context.Context, workspaceID string, userID int64) error
}

// Client is one websocket connection watching one workspace.
type Client struct {
	Hub         *Hub
	Conn        *websocket.Conn
	Send        chan []byte
	WorkspaceID string
	UserID      int64
}

// Hub fans events out to the clients of each workspace.
type Hub struct {
	// workspace -> clients
	boards map[string]map[*Client]bool

	// one connection per user per workspace; key: workspaceID:userID
	userClients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	presence Presence

	mu   sync.RWMutex
	done chan struct{}
	once sync.Once
}

type broadcastMessage struct {
	workspaceID string
	message     []byte
}

// NewHub creates a hub. presence may be nil.
func NewHub(presence Presence) *Hub {
	return &Hub{
		boards:      make(map[string]map[*Client]bool),
		userClients: make(map[string]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *broadcastMessage, 256),
		presence:    presence,
		done:        make(chan struct{}),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeClient(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.broadcastToBoard(msg)

		case <-h.done:
			h.cleanup()
			return
		}
	}
}

// Stop ends Run and closes every client.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Attach registers conn for userID on workspaceID and runs its pumps. It
// returns when the connection closes.
func (h *Hub) Attach(ctx context.Context, conn *websocket.Conn, workspaceID string, userID int64) {
	client := &Client{
		Hub:         h,
		Conn:        conn,
		Send:        make(chan []byte, sendBuffer),
		WorkspaceID: workspaceID,
		UserID:      userID,
	}
	if !h.Register(client) {
		conn.Close()
		return
	}
	go client.WritePump()
	client.ReadPump(ctx)
}

// Register adds a client. It reports false once the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish sends event to every client of its workspace. Hub satisfies the
// services' Notifier for single-instance deployments.
func (h *Hub) Publish(ctx context.Context, event model.BoardEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	data, err := cache.EncodeEvent(event)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- &broadcastMessage{workspaceID: event.WorkspaceID, message: data}:
		return nil
	case <-h.done:
		return fmt.Errorf("hub stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver hands an event received from the bus to local clients.
func (h *Hub) Deliver(event model.BoardEvent) {
	if err := h.Publish(context.Background(), event); err != nil {
		logger.Warn("Failed to deliver board event", logger.Workspace(event.WorkspaceID), logger.ErrorField(err))
	}
}

// ClientCount returns the number of local connections on a workspace.
func (h *Hub) ClientCount(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.boards[workspaceID])
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := userKey(client.WorkspaceID, client.UserID)
	// a second tab replaces the first connection
	if old, ok := h.userClients[key]; ok {
		h.removeClient(old)
	}
	if h.boards[client.WorkspaceID] == nil {
		h.boards[client.WorkspaceID] = make(map[*Client]bool)
	}
	h.boards[client.WorkspaceID][client] = true
	h.userClients[key] = client

	h.touch(client)
	logger.Info("Board client registered", logger.Workspace(client.WorkspaceID), logger.User(client.UserID))
}

// removeClient requires h.mu.
func (h *Hub) removeClient(client *Client) {
	clients, ok := h.boards[client.WorkspaceID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.boards, client.WorkspaceID)
	}

	key := userKey(client.WorkspaceID, client.UserID)
	if h.userClients[key] == client {
		delete(h.userClients, key)
	}

	if h.presence != nil {
		if err := h.presence.Remove(context.Background(), client.WorkspaceID, client.UserID); err != nil {
			logger.Warn("Failed to remove presence", logger.Workspace(client.WorkspaceID), logger.User(client.UserID), logger.ErrorField(err))
		}
	}
	logger.Info("Board client unregistered", logger.Workspace(client.WorkspaceID), logger.User(client.UserID))
}

func (h *Hub) broadcastToBoard(msg *broadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.boards[msg.workspaceID] {
		select {
		case client.Send <- msg.message:
		default:
			// slow consumer
			h.removeClient(client)
		}
	}
}

func (h *Hub) cleanup() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.boards {
		for client := range clients {
			close(client.Send)
		}
	}
	h.boards = make(map[string]map[*Client]bool)
	h.userClients = make(map[string]*Client)
}

func (h *Hub) touch(client *Client) {
	if h.presence == nil {
		return
	}
	if err := h.presence.Touch(context.Background(), client.WorkspaceID, client.UserID); err != nil {
		logger.Warn("Failed to update presence", logger.Workspace(client.WorkspaceID), logger.User(client.UserID), logger.ErrorField(err))
	}
}

func userKey(workspaceID string, userID int64) string {
	return fmt.Sprintf("%s:%d", workspaceID, userID)
}

// ReadPump reads until the connection fails. Clients only send heartbeats;
// anything else is ignored.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", logger.ErrorField(err), logger.Workspace(c.WorkspaceID), logger.User(c.UserID))
			}
			return
		}

		var msg model.BoardEvent
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Warn("invalid message format", logger.ErrorField(err), logger.Workspace(c.WorkspaceID))
			continue
		}
		if msg.Type != model.EventPing {
			continue
		}

		c.Hub.touch(c)
		pong, err := cache.EncodeEvent(model.BoardEvent{Type: model.EventPong, WorkspaceID: c.WorkspaceID, Timestamp: time.Now().UnixMilli()})
		if err != nil {
			continue
		}
		c.trySend(pong)
	}
}

// trySend drops the message if the buffer is full or the client is gone.
func (c *Client) trySend(data []byte) {
	c.Hub.mu.RLock()
	defer c.Hub.mu.RUnlock()
	if !c.Hub.boards[c.WorkspaceID][c] {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// WritePump writes queued messages and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
