package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"teenpatti-lite/apps/server/internal/auth"
	"teenpatti-lite/apps/server/internal/registry"
	"teenpatti-lite/apps/server/internal/room"
	"teenpatti-lite/teenpatti"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: Restrict in production
	},
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// Connection is one player's websocket to one room.
type Connection struct {
	ID       string
	PlayerID string
	Name     string
	Conn     *websocket.Conn
	Send     chan []byte
	Gateway  *Gateway

	RoomID string
	Room   *room.Room
}

// Gateway upgrades websockets, resolves sessions to player ids and relays
// envelopes between clients and room actors. Its PlayerBroadcast method is
// the fan-out function the registry hands to every room.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	playerConns map[string]*Connection // playerID -> connection
	nextConnID  uint64

	registry     *registry.Registry
	auth         auth.Service
	defaultChips int64
	botChips     int64
}

func New(authService auth.Service, defaultChips, botChips int64) *Gateway {
	return &Gateway{
		connections:  make(map[string]*Connection),
		playerConns:  make(map[string]*Connection),
		auth:         authService,
		defaultChips: defaultChips,
		botChips:     botChips,
	}
}

// BindRegistry breaks the construction cycle: the registry needs the
// gateway's broadcast function and the gateway needs the registry.
func (g *Gateway) BindRegistry(reg *registry.Registry) {
	g.registry = reg
}

// PlayerBroadcast delivers one encoded envelope to one player, dropping it
// if the player has no connection or a full send buffer.
func (g *Gateway) PlayerBroadcast(playerID string, data []byte) {
	g.mu.RLock()
	c := g.playerConns[playerID]
	g.mu.RUnlock()

	if c != nil {
		select {
		case c.Send <- data:
		default:
			// Drop if buffer full.
		}
	}
}

// HandleWebSocket upgrades /ws?roomId=...&token=... into a live connection.
func (g *Gateway) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = auth.BearerToken(c.GetHeader("Authorization"))
	}
	accountID, name, ok := g.auth.ResolveSession(token)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	roomID := c.Query("roomId")
	rm, err := g.registry.Get(roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Gateway] Upgrade error: %v", err)
		return
	}

	playerID := fmt.Sprintf("u_%d", accountID)

	g.mu.Lock()
	g.nextConnID++
	connID := fmt.Sprintf("conn_%d", g.nextConnID)
	wc := &Connection{
		ID:       connID,
		PlayerID: playerID,
		Name:     name,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Gateway:  g,
		RoomID:   rm.ID,
		Room:     rm,
	}
	if old := g.playerConns[playerID]; old != nil {
		// One live connection per player; the newer one wins. Closing the
		// socket unwinds the old pumps on their next read/write.
		old.Conn.Close()
		delete(g.connections, old.ID)
	}
	g.connections[connID] = wc
	g.playerConns[playerID] = wc
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client connected: %s (player=%s room=%s), total: %d", connID, playerID, rm.ID, total)

	go wc.writePump()
	go wc.readPump()

	// Joining is idempotent: a known player gets a state resync instead.
	if err := rm.SubmitEvent(room.Event{
		Type:     room.EventJoin,
		PlayerID: playerID,
		Name:     name,
		Chips:    g.defaultChips,
	}); err != nil {
		wc.sendError("JOIN_FAILED", err.Error())
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Gateway.removeConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(65536)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Gateway] Read error: %v", err)
			}
			break
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			c.handleMessage(message)
		}
	}
}

// Control verbs accepted alongside the plain action types. Capacity changes
// are admin-only and stay on the REST surface.
const (
	clientTypeStartRound = "startRound"
	clientTypeRematch    = "rematch"
	clientTypeAddBot     = "addBot"
	clientTypeLeave      = "leave"
)

func (c *Connection) handleMessage(data []byte) {
	var env room.ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendError("BAD_ENVELOPE", "invalid message format")
		return
	}

	switch env.Type {
	case clientTypeStartRound:
		c.submit(room.Event{Type: room.EventStartRound, PlayerID: c.PlayerID})
	case clientTypeRematch:
		c.submit(room.Event{Type: room.EventRematch, PlayerID: c.PlayerID})
	case clientTypeAddBot:
		c.submit(room.Event{Type: room.EventAddBot, Chips: c.Gateway.botChips})
	case clientTypeLeave:
		c.submit(room.Event{Type: room.EventLeave, PlayerID: c.PlayerID})
	default:
		act, err := teenpatti.ParseAction(env.Type, env.Amount, env.TargetPlayerID)
		if err != nil {
			c.sendError("BAD_ACTION", err.Error())
			return
		}
		c.submit(room.Event{Type: room.EventAction, PlayerID: c.PlayerID, Action: act})
	}
}

// submit forwards an event to the room. Engine rejections already reach the
// client through the room's own error envelope, so only transport-level
// failures are reported here.
func (c *Connection) submit(e room.Event) {
	if err := c.Room.SubmitEvent(e); err != nil {
		if err == room.ErrRoomClosed {
			c.sendError("ROOM_CLOSED", "game no longer exists")
		}
	}
}

func (c *Connection) sendError(code, msg string) {
	env := room.ServerEnvelope{
		Type:   room.EventTypeError,
		RoomID: c.RoomID,
		TsMs:   time.Now().UnixMilli(),
		Error:  &room.ErrorBody{Code: code, Message: msg},
	}
	data, err := json.Marshal(&env)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (c *Connection) writePump() {
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

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	wasCurrent := g.playerConns[c.PlayerID] == c
	if wasCurrent {
		delete(g.playerConns, c.PlayerID)
	}
	total := len(g.connections)
	g.mu.Unlock()

	log.Printf("[Gateway] Client disconnected: %s (player=%s), total: %d", c.ID, c.PlayerID, total)

	// The seat survives a dropped connection for a grace period; the room
	// releases it if the player never comes back. A connection that was
	// already superseded by a newer one says nothing about presence.
	if wasCurrent && c.Room != nil && !c.Room.IsClosed() {
		_ = c.Room.SubmitEvent(room.Event{Type: room.EventConnLost, PlayerID: c.PlayerID})
	}
}
