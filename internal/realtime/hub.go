package realtime

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	// Буфер исходящих кадров на соединение; при переполнении кадр
	// молча отбрасывается (best-effort).
	outboundBuffer = 32
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type authenticatePayload struct {
	Token string `json:"token"`
}

// TokenDecoder — контракт Identity-сервиса, нужный хабу.
type TokenDecoder interface {
	Decode(token, origin string) (*models.AuthUser, error)
}

// Hub — websocket-endpoint realtime-канала. Владеет апгрейдом соединений
// и обработкой клиентских событий; состояние связок живёт в Registry.
type Hub struct {
	reg    *Registry
	tokens TokenDecoder

	// Origin-метка для декодирования в handshake. Исторически сюда
	// передаётся общий секрет приложения, а не адрес клиента, поэтому
	// audience-проверка на этом пути ничего не различает.
	originTag string

	upgrader websocket.Upgrader
}

func NewHub(reg *Registry, tokens TokenDecoder, originTag string) *Hub {
	return &Hub{
		reg:       reg,
		tokens:    tokens,
		originTag: originTag,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}

	c := &wsConn{
		id:  newConnID(),
		ws:  ws,
		out: make(chan outFrame, outboundBuffer),
	}
	slog.Info("client connected", "socketId", c.id, "remote", r.RemoteAddr)

	go c.writeLoop()
	h.reg.Connect(c)
	h.readLoop(c)
}

func (h *Hub) readLoop(c *wsConn) {
	defer func() {
		h.reg.Disconnect(c)
		c.close()
		slog.Info("client disconnected", "socketId", c.id)
	}()

	for {
		var f frame
		if err := c.ws.ReadJSON(&f); err != nil {
			return
		}
		if f.Event != "authenticate" {
			continue
		}

		var p authenticatePayload
		_ = json.Unmarshal(f.Data, &p)
		h.authenticate(c, p.Token)
	}
}

func (h *Hub) authenticate(c *wsConn, tok string) {
	user, err := h.tokens.Decode(tok, h.originTag)
	if err != nil || user.Email == "" {
		_ = c.Send("authentication-error", map[string]any{
			"message":   "invalid-token",
			"timestamp": time.Now().Format(time.RFC3339),
		})
		return
	}

	h.reg.Bind(user.Email, c)
	slog.Info("user authenticated", "email", user.Email, "socketId", c.id)
	_ = c.Send("authenticated", map[string]any{
		"message":   "authentication-success",
		"email":     user.Email,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type wsConn struct {
	id string
	ws *websocket.Conn

	mu     sync.Mutex
	closed bool
	out    chan outFrame
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	select {
	case c.out <- outFrame{Event: event, Data: payload}:
		return nil
	default:
		slog.Warn("outbound buffer full, frame dropped", "socketId", c.id, "event", event)
		return nil
	}
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case f, ok := <-c.out:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close роняет сокет и закрывает исходящий канал, чтобы writeLoop
// завершился сразу, не дожидаясь следующего ping. Повторный вызов безопасен.
func (c *wsConn) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.out)
	}
	c.mu.Unlock()
	if c.ws != nil {
		_ = c.ws.Close()
	}
}

func newConnID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
