package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Skotchmaster/marketplace/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// Envelope is the frame written to sockets.
type Envelope struct {
	Event        string               `json:"event"`
	Notification *models.Notification `json:"notification"`
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	rooms []string
	once  sync.Once
}

// Hub keeps WebSocket clients grouped by room.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewHub(log *zap.SugaredLogger, allowedOrigins []string) *Hub {
	h := &Hub{
		rooms: map[string]map[*client]struct{}{},
		log:   log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Serve upgrades the request and joins the caller's rooms.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID uint, admin bool) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	rooms := []string{UserRoom(userID)}
	if admin {
		rooms = append(rooms, AdminRoom)
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), rooms: rooms}
	h.join(c)

	go c.writePump()
	go c.readPump()
	return nil
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range c.rooms {
		if h.rooms[room] == nil {
			h.rooms[room] = map[*client]struct{}{}
		}
		h.rooms[room][c] = struct{}{}
	}
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	for _, room := range c.rooms {
		delete(h.rooms[room], c)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
	c.once.Do(func() { close(c.send) })
}

func (h *Hub) ToUser(userID uint, n *models.Notification) {
	h.Emit(UserRoom(userID), n)
}

func (h *Hub) ToAdmins(n *models.Notification) {
	h.Emit(AdminRoom, n)
}

// Emit writes n to every client in room. Clients whose buffer is full are dropped.
func (h *Hub) Emit(room string, n *models.Notification) {
	data, err := json.Marshal(Envelope{Event: "notification", Notification: n})
	if err != nil {
		h.log.Errorw("ws_encode_error", "room", room, "error", err)
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warnw("ws_client_dropped", "room", room, "reason", "send buffer full")
		h.leave(c)
	}
}

// RoomSize reports how many clients are in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
