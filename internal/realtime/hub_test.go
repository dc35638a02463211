package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/SendBox/internal/models"
	"github.com/BearBump/SendBox/internal/token"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, reg *Registry, tokens TokenDecoder, originTag string) *websocket.Conn {
	t.Helper()

	h := NewHub(reg, tokens, originTag)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) (string, map[string]any) {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&f))
	return f.Event, f.Data
}

func TestHub_AuthenticateFlow(t *testing.T) {
	const secret = "app-secret"
	tm := token.New(secret, "http://localhost:8080")
	reg := NewRegistry()
	ws := dialHub(t, reg, tm, secret)

	event, data := readEvent(t, ws)
	require.Equal(t, "new-connection-message", event)
	require.Equal(t, "client-connected", data["message"])
	require.NotEmpty(t, data["socketId"])

	// Токен для realtime-канала выпускается с секретом в роли origin-метки.
	tok, err := tm.Create(models.AuthUser{ID: 1, Name: "Ana", Email: "ana@example.com", RolID: 2}, secret)
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]string{"token": tok})
	require.NoError(t, ws.WriteJSON(map[string]any{"event": "authenticate", "data": json.RawMessage(payload)}))

	event, data = readEvent(t, ws)
	require.Equal(t, "authenticated", event)
	require.Equal(t, "ana@example.com", data["email"])

	require.Eventually(t, func() bool {
		return reg.IsUserConnected("ana@example.com")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_AuthenticateInvalidToken(t *testing.T) {
	const secret = "app-secret"
	tm := token.New(secret, "http://localhost:8080")
	reg := NewRegistry()
	ws := dialHub(t, reg, tm, secret)

	event, _ := readEvent(t, ws)
	require.Equal(t, "new-connection-message", event)

	payload, _ := json.Marshal(map[string]string{"token": "definitely.not.a.token"})
	require.NoError(t, ws.WriteJSON(map[string]any{"event": "authenticate", "data": json.RawMessage(payload)}))

	event, data := readEvent(t, ws)
	require.Equal(t, "authentication-error", event)
	require.Equal(t, "invalid-token", data["message"])
	require.Empty(t, reg.ConnectedUsers())
}

func TestHub_DisconnectUnbinds(t *testing.T) {
	const secret = "app-secret"
	tm := token.New(secret, "http://localhost:8080")
	reg := NewRegistry()
	ws := dialHub(t, reg, tm, secret)

	_, _ = readEvent(t, ws)

	tok, err := tm.Create(models.AuthUser{ID: 1, Email: "ana@example.com"}, secret)
	require.NoError(t, err)
	payload, _ := json.Marshal(map[string]string{"token": tok})
	require.NoError(t, ws.WriteJSON(map[string]any{"event": "authenticate", "data": json.RawMessage(payload)}))
	_, _ = readEvent(t, ws)

	require.NoError(t, ws.Close())

	require.Eventually(t, func() bool {
		return !reg.IsUserConnected("ana@example.com")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWSConn_CloseStopsWriteLoop(t *testing.T) {
	connCh := make(chan *websocket.Conn, 1)
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err == nil {
			connCh <- ws
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := &wsConn{id: "x", ws: <-connCh, out: make(chan outFrame, outboundBuffer)}
	done := make(chan struct{})
	go func() {
		c.writeLoop()
		close(done)
	}()

	c.close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writeLoop не завершился сразу после close")
	}

	// После close отправка — no-op, повторный close безопасен.
	require.NoError(t, c.Send("notification", nil))
	c.close()
}
