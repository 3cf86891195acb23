package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"padbridge/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for now as this is a local network tool
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting. A connection is a
// settings session: it opens the configuration UI on connect and closes it on
// disconnect, so only one may exist at a time.
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.Mutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	stopOnce   sync.Once

	sessionMu sync.Mutex
	session   bool
}

// WebSocketClient represents a connected settings UI
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string

	mu      sync.Mutex
	items   []protocol.ToggleItem
	toggles map[string]func(bool)
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			m.clientsMu.Unlock()
			log.Printf("WS: Settings session opened from %s", client.ip)

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				log.Printf("WS: Settings session closed from %s", client.ip)
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			return
		}
	}
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			log.Printf("WS: Dropping message for slow client %s", client.ip)
		}
	}
}

func (m *WSManager) broadcastStatus(st protocol.StatusPayload) {
	select {
	case m.broadcast <- protocol.Message{Type: protocol.TypeStatus, Payload: st}:
	case <-m.shutdown:
	}
}

// claim reserves the settings session
func (m *WSManager) claim() bool {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	if m.session {
		return false
	}
	m.session = true
	return true
}

func (m *WSManager) release() {
	m.sessionMu.Lock()
	m.session = false
	m.sessionMu.Unlock()
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !m.claim() {
		http.Error(w, "Settings session already open", http.StatusConflict)
		return
	}
	// The tray may hold the configuration UI
	if m.server.bridge.Gate().UIOpen() {
		m.release()
		http.Error(w, "Settings open elsewhere", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		m.release()
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
		toggles: make(map[string]func(bool)),
	}

	if err := m.server.bridge.ConfigOpened(client); err != nil {
		log.Printf("WS: Failed to open settings: %v", err)
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		conn.WriteJSON(protocol.Message{
			Type:    protocol.TypeError,
			Payload: protocol.ErrorPayload{Message: err.Error()},
		})
		conn.Close()
		m.release()
		return
	}

	client.mu.Lock()
	items := append([]protocol.ToggleItem(nil), client.items...)
	client.mu.Unlock()
	client.queue(protocol.Message{Type: protocol.TypeItems, Payload: protocol.ItemsPayload{Items: items}})
	client.queue(protocol.Message{Type: protocol.TypeStatus, Payload: m.server.status()})

	select {
	case m.register <- client:
	case <-m.shutdown:
	}

	go client.writePump()
	go client.readPump()
}

// AddToggle records a toggle for this session
func (c *WebSocketClient) AddToggle(key, label string, defaultValue, current bool, onChange func(bool)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, protocol.ToggleItem{
		Key:     key,
		Label:   label,
		Default: defaultValue,
		Value:   current,
	})
	c.toggles[key] = onChange
	return nil
}

func (c *WebSocketClient) queue(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WS: Failed to marshal message: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("WS: Send buffer full for %s", c.ip)
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	m := c.manager
	defer func() {
		select {
		case m.unregister <- c:
		case <-m.shutdown:
		}
		c.conn.Close()
		m.server.bridge.ConfigClosed()
		m.release()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeSet:
		var payload protocol.SetPayload
		jsonBytes, _ := json.Marshal(msg.Payload)
		if err := json.Unmarshal(jsonBytes, &payload); err != nil {
			log.Printf("WS: Invalid set payload: %v", err)
			return
		}

		c.mu.Lock()
		onChange, ok := c.toggles[payload.Key]
		c.mu.Unlock()
		if !ok || onChange == nil {
			c.queue(protocol.Message{
				Type:    protocol.TypeError,
				Payload: protocol.ErrorPayload{Message: "unknown setting " + payload.Key},
			})
			return
		}

		log.Printf("WS: Setting %s=%v from %s", payload.Key, payload.Value, c.ip)
		onChange(payload.Value)
		c.queue(protocol.Message{Type: protocol.TypeStatus, Payload: c.manager.server.status()})

	case protocol.TypePing:
		c.queue(protocol.Message{Type: protocol.TypeStatus, Payload: c.manager.server.status()})
	}
}
