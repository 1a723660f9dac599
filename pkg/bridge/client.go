package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/request"
)

// Connection timing.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
	requestTimeout = 10 * time.Second
)

// Client is one WebSocket connection.
type Client struct {
	id     request.ClientID
	conn   *websocket.Conn
	server *Server

	send     chan Message
	done     chan struct{}
	sendOnce sync.Once

	limiter *rate.Limiter
	isReg   atomic.Bool

	// Notifications raised while a frame is being answered are held until
	// its result has been queued.
	holdMu  sync.Mutex
	holding bool
	held    []Message
}

func newClient(s *Server, conn *websocket.Conn) *Client {
	c := &Client{
		id:     request.ClientID("ws-" + uuid.NewString()),
		conn:   conn,
		server: s,
		send:   make(chan Message, sendBufferSize),
		done:   make(chan struct{}),
	}
	if s.config.RequestRate > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.config.RequestRate), s.config.RequestBurst)
	}
	return c
}

func (c *Client) registered() bool {
	return c.isReg.Load()
}

// closeSend signals the write pump to shut down. Safe to call repeatedly.
func (c *Client) closeSend() {
	c.sendOnce.Do(func() {
		close(c.done)
	})
}

// enqueue queues msg without blocking. Messages for a client that cannot
// keep up are dropped.
func (c *Client) enqueue(msg Message) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		c.server.logger.Warn("send buffer full, dropping message", "client", c.id, "type", msg.Type)
	}
}

// notify queues a hub notification, or holds it while a frame is in flight.
func (c *Client) notify(msg Message) {
	c.holdMu.Lock()
	defer c.holdMu.Unlock()
	if c.holding {
		c.held = append(c.held, msg)
		return
	}
	c.enqueue(msg)
}

func (c *Client) hold() {
	c.holdMu.Lock()
	c.holding = true
	c.holdMu.Unlock()
}

// release queues the held notifications in arrival order.
func (c *Client) release() {
	c.holdMu.Lock()
	defer c.holdMu.Unlock()
	c.holding = false
	for _, msg := range c.held {
		c.enqueue(msg)
	}
	c.held = nil
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(msg)
			if err != nil {
				c.server.logger.Error("failed to marshal message", "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.server.logger.Debug("write error", "client", c.id, "error", err)
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

func (c *Client) readPump() {
	defer func() {
		c.closeSend()
		c.server.removeClient(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.logger.Debug("read error", "client", c.id, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(Message{}, nil, &Error{Code: CodeInvalidMessage, Message: err.Error()})
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			c.reply(msg, nil, &Error{Code: CodeRateLimited, Message: "too many requests"})
			continue
		}
		c.handle(msg)
	}
}

// handle runs one request frame and replies. The result is queued before
// any notification the frame caused.
func (c *Client) handle(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	c.hold()
	defer c.release()

	var (
		result any
		err    error
	)
	switch msg.Type {
	case TypeRegister:
		result, err = c.handleRegister(ctx)
	case TypeUnregister:
		err = c.handleUnregister(ctx)
	case TypeRequest:
		result, err = c.handleRequest(ctx, msg.Payload)
	case TypeCancel:
		err = c.handleCancel(ctx, msg.Payload)
	case TypeSupported:
		result, err = c.handleSupported(ctx)
	case TypeInfo:
		result, err = c.handleInfo(ctx)
	default:
		err = &Error{Code: CodeUnknownType, Message: fmt.Sprintf("unknown message type %q", msg.Type)}
	}

	if err != nil {
		c.reply(msg, nil, errorFor(err))
		return
	}
	c.reply(msg, result, nil)
}

func (c *Client) reply(req Message, result any, e *Error) {
	out := Message{Type: TypeResult, ID: req.ID, Error: e}
	if e == nil && result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			out.Error = &Error{Code: CodeInternal, Message: err.Error()}
		} else {
			out.Payload = data
		}
	}
	c.enqueue(out)
}

func (c *Client) handleRegister(ctx context.Context) (any, error) {
	l := callback.Func(func(n callback.Notification) {
		c.notify(notification(n))
	})
	if err := c.server.surface.RegisterCallback(ctx, c.id, l); err != nil {
		return nil, err
	}
	c.isReg.Store(true)
	return RegisterPayload{ClientID: string(c.id)}, nil
}

func (c *Client) handleUnregister(ctx context.Context) error {
	if err := c.server.surface.UnregisterCallback(ctx, c.id); err != nil {
		return err
	}
	c.isReg.Store(false)
	return nil
}

func (c *Client) handleRequest(ctx context.Context, payload json.RawMessage) (any, error) {
	var p RequestPayload
	if err := decodePayload(payload, &p); err != nil {
		return nil, err
	}

	token := request.NewToken()
	if p.Token != "" {
		var err error
		if token, err = request.ParseToken(p.Token); err != nil {
			return nil, err
		}
	}

	if err := c.server.surface.RequestState(ctx, c.id, token, p.State, request.Flags(p.Flags)); err != nil {
		return nil, err
	}
	return TokenPayload{Token: token.String()}, nil
}

func (c *Client) handleCancel(ctx context.Context, payload json.RawMessage) error {
	var p CancelPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	token, err := request.ParseToken(p.Token)
	if err != nil {
		return err
	}
	return c.server.surface.CancelRequest(ctx, c.id, token)
}

func (c *Client) handleSupported(ctx context.Context) (any, error) {
	ids, err := c.server.surface.SupportedStates(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int{}
	}
	return SupportedPayload{States: ids}, nil
}

func (c *Client) handleInfo(ctx context.Context) (any, error) {
	info, err := c.server.surface.Info(ctx)
	if err != nil {
		return nil, err
	}
	return infoPayload(info), nil
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return &Error{Code: CodeInvalidMessage, Message: "missing payload"}
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return &Error{Code: CodeInvalidMessage, Message: err.Error()}
	}
	return nil
}
