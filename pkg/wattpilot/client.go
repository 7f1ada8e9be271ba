// Package wattpilot talks to a Fronius Wattpilot wallbox over its local websocket API.
package wattpilot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNotConnected     = errors.New("wattpilot: not connected")
	ErrAlreadyConnected = errors.New("wattpilot: already connected")
	ErrAuthFailed       = errors.New("wattpilot: authentication failed")
)

// status keys
const (
	KeyCarState         = "car"
	KeyChargeMode       = "lmo"
	KeyAmpere           = "amp"
	KeyForceSinglePhase = "fsp"
	KeyPhaseSwitchMode  = "psm"
	KeyEnergy           = "nrg"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultStatusTimeout    = 10 * time.Second
)

// DeviceInfo is what the wallbox announces in its hello message.
type DeviceInfo struct {
	Serial       string
	HostName     string
	FriendlyName string
	Version      string
	Secured      bool
}

type Client struct {
	url      string
	password string
	logger   *zap.Logger
	dialer   *websocket.Dialer

	statusTimeout time.Duration

	connMu    sync.RWMutex
	conn      *websocket.Conn
	connected bool
	writeMu   sync.Mutex

	info           DeviceInfo
	hashedPassword string

	statusMu sync.RWMutex
	status   map[string]any
	ready    chan struct{}

	requestID atomic.Int64
}

type Option func(*Client)

// WithDialTimeout bounds the websocket handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.dialer.HandshakeTimeout = d
	}
}

// WithStatusTimeout bounds how long Connect waits for the first full status.
func WithStatusTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.statusTimeout = d
	}
}

func NewClient(host, password string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if host == "" {
		return nil, errors.New("wattpilot: empty host")
	}
	if password == "" {
		return nil, errors.New("wattpilot: empty password")
	}
	c := &Client{
		url:           fmt.Sprintf("ws://%s/ws", host),
		password:      password,
		logger:        logger.With(zap.String("component", "wattpilot"), zap.String("host", host)),
		dialer:        &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		statusTimeout: defaultStatusTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Connect dials the wallbox, authenticates and waits for the first full status.
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	if c.connected {
		c.connMu.Unlock()
		return ErrAlreadyConnected
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.connMu.Unlock()
		return fmt.Errorf("wattpilot: dial %s: %w", c.url, err)
	}
	if err := c.handshake(conn); err != nil {
		conn.Close()
		c.connMu.Unlock()
		return err
	}

	c.statusMu.Lock()
	c.status = make(map[string]any)
	c.ready = make(chan struct{})
	ready := c.ready
	c.statusMu.Unlock()

	c.conn = conn
	c.connected = true
	c.connMu.Unlock()

	c.logger.Info("wattpilot: connected",
		zap.String("serial", c.info.Serial),
		zap.String("version", c.info.Version),
		zap.Bool("secured", c.info.Secured))

	go c.receiveMessages(conn)

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.statusTimeout):
		c.logger.Warn("wattpilot: no full status received yet", zap.Duration("timeout", c.statusTimeout))
	}
	return nil
}

func (c *Client) handshake(conn *websocket.Conn) error {
	var hello inbound
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("wattpilot: read hello: %w", err)
	}
	if hello.Type != msgHello {
		return fmt.Errorf("wattpilot: expected %s, got %s", msgHello, hello.Type)
	}
	c.info = DeviceInfo{
		Serial:       hello.Serial,
		HostName:     hello.HostName,
		FriendlyName: hello.FriendlyName,
		Version:      hello.Version,
		Secured:      hello.Secured,
	}
	c.hashedPassword = HashPassword(c.password, hello.Serial)

	var challenge inbound
	if err := conn.ReadJSON(&challenge); err != nil {
		return fmt.Errorf("wattpilot: read %s: %w", msgAuthRequired, err)
	}
	if challenge.Type != msgAuthRequired {
		return fmt.Errorf("wattpilot: expected %s, got %s", msgAuthRequired, challenge.Type)
	}

	token3, err := randomToken()
	if err != nil {
		return fmt.Errorf("wattpilot: token: %w", err)
	}
	auth := authMessage{
		Type:   msgAuth,
		Token3: token3,
		Hash:   AuthHash(c.hashedPassword, challenge.Token1, challenge.Token2, token3),
	}
	if err := c.write(conn, auth); err != nil {
		return fmt.Errorf("wattpilot: send auth: %w", err)
	}

	var result inbound
	if err := conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("wattpilot: read auth result: %w", err)
	}
	switch result.Type {
	case msgAuthSuccess:
		return nil
	case msgAuthError:
		return fmt.Errorf("%w: %s", ErrAuthFailed, result.Message)
	}
	return fmt.Errorf("wattpilot: expected %s, got %s", msgAuthSuccess, result.Type)
}

func (c *Client) receiveMessages(conn *websocket.Conn) {
	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		switch msg.Type {
		case msgFullStatus:
			c.mergeStatus(msg.Status, !msg.Partial)
		case msgDeltaStatus:
			c.mergeStatus(msg.Status, false)
		case msgResponse:
			if msg.Success != nil && !*msg.Success {
				c.logger.Warn("wattpilot: request rejected", zap.Any("request_id", msg.RequestID), zap.String("message", msg.Message))
			} else {
				c.mergeStatus(msg.Status, false)
			}
		default:
			c.logger.Debug("wattpilot: ignoring message", zap.String("type", msg.Type))
		}
	}
}

func (c *Client) mergeStatus(values map[string]any, complete bool) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if c.status == nil {
		return
	}
	for k, v := range values {
		c.status[k] = v
	}
	if complete {
		select {
		case <-c.ready:
		default:
			close(c.ready)
		}
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	// a newer connection is not ours to tear down
	if c.conn != conn {
		return
	}
	if c.connected {
		c.logger.Warn("wattpilot: connection lost", zap.Error(err))
	}
	c.connected = false
	c.conn.Close()
	c.conn = nil
}

// Disconnect closes the link. It is a no-op when not connected.
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		c.connected = false
		return nil
	}
	c.connected = false

	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	c.conn = nil
	c.logger.Info("wattpilot: disconnected")
	return err
}

func (c *Client) Connected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Ready reports whether a complete status has been received on the current connection.
func (c *Client) Ready() bool {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	if c.ready == nil {
		return false
	}
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

func (c *Client) Info() DeviceInfo {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.info
}

// Status returns a copy of the last known status values.
func (c *Client) Status() map[string]any {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	out := make(map[string]any, len(c.status))
	for k, v := range c.status {
		out[k] = v
	}
	return out
}

func (c *Client) Value(key string) (any, bool) {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	v, ok := c.status[key]
	return v, ok
}

// SendUpdate asks the wallbox to change one status value. Secured devices get the
// message wrapped and signed. The answer is handled asynchronously.
func (c *Client) SendUpdate(key string, value any) error {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}

	msg := setValueMessage{
		Type:      msgSetValue,
		RequestID: c.requestID.Add(1),
		Key:       key,
		Value:     value,
	}
	c.logger.Debug("wattpilot: set value", zap.String("key", key), zap.Any("value", value))
	if !c.info.Secured {
		return c.write(c.conn, msg)
	}
	secured, err := secure(c.hashedPassword, msg)
	if err != nil {
		return fmt.Errorf("wattpilot: secure message: %w", err)
	}
	return c.write(c.conn, secured)
}

// SetPower sets the charging current per phase in A.
func (c *Client) SetPower(amps uint) error {
	return c.SendUpdate(KeyAmpere, amps)
}

func (c *Client) write(conn *websocket.Conn, msg any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}
