package wattpilot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// TestDevice emulates the websocket API of a wallbox for tests.
type TestDevice struct {
	Serial   string
	Password string
	Secured  bool

	// SkipFullStatus holds back the full status after authentication
	SkipFullStatus bool

	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	status   map[string]any
	conns    []*websocket.Conn
	updates  []SetValueRequest
	badHMACs int
}

// SetValueRequest is a setValue message received by the test device.
type SetValueRequest struct {
	Key   string
	Value any
}

func NewTestDevice(serial, password string, secured bool, status map[string]any) *TestDevice {
	d := &TestDevice{
		Serial:   serial,
		Password: password,
		Secured:  secured,
		status:   status,
	}
	d.server = httptest.NewServer(http.HandlerFunc(d.handle))
	return d
}

// Host is the host:port the client should dial.
func (d *TestDevice) Host() string {
	return strings.TrimPrefix(d.server.URL, "http://")
}

func (d *TestDevice) Close() {
	d.DropConnections()
	d.server.Close()
}

// DropConnections closes every open websocket without a close handshake.
func (d *TestDevice) DropConnections() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, conn := range d.conns {
		conn.Close()
	}
	d.conns = nil
}

func (d *TestDevice) Updates() []SetValueRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SetValueRequest(nil), d.updates...)
}

func (d *TestDevice) BadHMACs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.badHMACs
}

// PushStatus sends a deltaStatus to every connected client.
func (d *TestDevice) PushStatus(values map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range values {
		d.status[k] = v
	}
	for _, conn := range d.conns {
		_ = conn.WriteJSON(map[string]any{"type": msgDeltaStatus, "status": values})
	}
}

// PushFullStatus sends the complete status to every connected client.
func (d *TestDevice) PushFullStatus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, conn := range d.conns {
		_ = conn.WriteJSON(map[string]any{"type": msgFullStatus, "partial": false, "status": d.status})
	}
}

func (d *TestDevice) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/ws" {
		http.NotFound(w, r)
		return
	}
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	hashed := HashPassword(d.Password, d.Serial)
	token1, token2 := "F3D2A1B0C9E8D7F6", "0A1B2C3D4E5F6071"
	_ = conn.WriteJSON(map[string]any{
		"type":     msgHello,
		"serial":   d.Serial,
		"hostname": "Wattpilot_" + d.Serial,
		"version":  "1.2.1",
		"secured":  d.Secured,
	})
	_ = conn.WriteJSON(map[string]any{"type": msgAuthRequired, "token1": token1, "token2": token2})

	var auth authMessage
	if err := conn.ReadJSON(&auth); err != nil {
		conn.Close()
		return
	}
	if auth.Hash != AuthHash(hashed, token1, token2, auth.Token3) {
		_ = conn.WriteJSON(map[string]any{"type": msgAuthError, "message": "Wrong password"})
		conn.Close()
		return
	}

	d.mu.Lock()
	_ = conn.WriteJSON(map[string]any{"type": msgAuthSuccess})
	if !d.SkipFullStatus {
		_ = conn.WriteJSON(map[string]any{"type": msgFullStatus, "partial": false, "status": d.status})
	}
	d.conns = append(d.conns, conn)
	d.mu.Unlock()

	for {
		var raw map[string]any
		if err := conn.ReadJSON(&raw); err != nil {
			return
		}
		d.receive(hashed, raw)
	}
}

func (d *TestDevice) receive(hashed string, raw map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if raw["type"] == msgSecuredMsg {
		data, _ := raw["data"].(string)
		if raw["hmac"] != SignMessage(hashed, []byte(data)) {
			d.badHMACs++
			return
		}
		raw = nil
		if err := json.Unmarshal([]byte(data), &raw); err != nil {
			return
		}
	} else if d.Secured {
		d.badHMACs++
		return
	}

	if raw["type"] != msgSetValue {
		return
	}
	key, _ := raw["key"].(string)
	d.updates = append(d.updates, SetValueRequest{Key: key, Value: raw["value"]})
	d.status[key] = raw["value"]
}
