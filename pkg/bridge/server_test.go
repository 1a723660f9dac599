package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/coordinator"
	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/policy"
	"github.com/foldsense/devstate-go/pkg/request"
)

func newTestCoordinator(t *testing.T) *coordinator.Coordinator {
	t.Helper()
	c := coordinator.New(coordinator.Config{}, policy.Immediate{})
	require.NoError(t, c.Start())
	t.Cleanup(func() { _ = c.Stop() })

	require.NoError(t, c.OnSupportedStatesChanged([]devicestate.DeviceState{
		devicestate.New(0, "DEFAULT"),
		devicestate.New(1, "OTHER"),
	}))
	require.NoError(t, c.OnStateChanged(0))
	require.NoError(t, c.Flush(context.Background()))
	return c
}

func newTestServer(t *testing.T, cfg Config, surface Surface) (*Server, *httptest.Server) {
	t.Helper()
	s := New(cfg, surface)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = s.Stop()
	})
	return s, ts
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// wsConn is a test client with request ids.
type wsConn struct {
	t    *testing.T
	conn *websocket.Conn
	next atomic.Int64
}

func dial(t *testing.T, ts *httptest.Server) *wsConn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsConn{t: t, conn: conn}
}

func (w *wsConn) send(typ MessageType, payload any) string {
	w.t.Helper()
	id := fmt.Sprint(w.next.Add(1))
	msg := Message{Type: typ, ID: id}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(w.t, err)
		msg.Payload = data
	}
	require.NoError(w.t, w.conn.WriteJSON(msg))
	return id
}

// readUntil reads frames until match returns true. Frames that do not
// match are returned as skipped.
func (w *wsConn) readUntil(match func(Message) bool) (Message, []Message) {
	w.t.Helper()
	var skipped []Message
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(w.t, w.conn.SetReadDeadline(deadline))
		var msg Message
		require.NoError(w.t, w.conn.ReadJSON(&msg))
		if match(msg) {
			return msg, skipped
		}
		skipped = append(skipped, msg)
	}
}

func (w *wsConn) result(id string) Message {
	w.t.Helper()
	msg, _ := w.readUntil(func(m Message) bool { return m.Type == TypeResult && m.ID == id })
	return msg
}

func (w *wsConn) call(typ MessageType, payload any) Message {
	w.t.Helper()
	return w.result(w.send(typ, payload))
}

func (w *wsConn) waitFor(typ MessageType) Message {
	w.t.Helper()
	msg, _ := w.readUntil(func(m Message) bool { return m.Type == typ })
	return msg
}

func decode[T any](t *testing.T, msg Message) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Payload, &v))
	return v
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Config{}, newTestCoordinator(t))

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestRegisterReceivesCurrentState(t *testing.T) {
	_, ts := newTestServer(t, Config{}, newTestCoordinator(t))
	ws := dial(t, ts)

	res := ws.call(TypeRegister, nil)
	require.Nil(t, res.Error)
	reg := decode[RegisterPayload](t, res)
	assert.True(t, strings.HasPrefix(reg.ClientID, "ws-"))

	changed := ws.waitFor(TypeStateChanged)
	state := decode[StatePayload](t, changed)
	assert.Equal(t, 0, state.ID)
	assert.Equal(t, "DEFAULT", state.Name)

	res = ws.call(TypeRegister, nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeAlreadyRegistered, res.Error.Code)
}

func TestRequestAndCancel(t *testing.T) {
	c := newTestCoordinator(t)
	_, ts := newTestServer(t, Config{}, c)
	ws := dial(t, ts)

	require.Nil(t, ws.call(TypeRegister, nil).Error)

	res := ws.call(TypeRequest, RequestPayload{State: 1})
	require.Nil(t, res.Error)
	token := decode[TokenPayload](t, res).Token
	_, err := request.ParseToken(token)
	require.NoError(t, err)

	active := ws.waitFor(TypeRequestActive)
	assert.Equal(t, token, decode[TokenPayload](t, active).Token)

	other, _ := ws.readUntil(func(m Message) bool {
		if m.Type != TypeStateChanged {
			return false
		}
		var s StatePayload
		return json.Unmarshal(m.Payload, &s) == nil && s.ID == 1
	})
	assert.Equal(t, "OTHER", decode[StatePayload](t, other).Name)

	info := decode[InfoPayload](t, ws.call(TypeInfo, nil))
	require.NotNil(t, info.Committed)
	assert.Equal(t, 1, info.Committed.ID)
	require.NotNil(t, info.Override)
	assert.Equal(t, 1, info.Override.ID)
	require.Len(t, info.Requests, 1)
	assert.Equal(t, token, info.Requests[0].Token)
	assert.Equal(t, "ACTIVE", info.Requests[0].Status)
	assert.Nil(t, info.Pending)

	require.Nil(t, ws.call(TypeCancel, CancelPayload{Token: token}).Error)

	require.Eventually(t, func() bool {
		info, err := c.Info(context.Background())
		return err == nil && info.Committed.Identifier == 0 && len(info.Requests) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResultPrecedesNotifications(t *testing.T) {
	c := newTestCoordinator(t)
	_, ts := newTestServer(t, Config{}, c)
	ws := dial(t, ts)

	id := ws.send(TypeRegister, nil)
	first, _ := ws.readUntil(func(Message) bool { return true })
	assert.Equal(t, TypeResult, first.Type)
	assert.Equal(t, id, first.ID)
	ws.waitFor(TypeStateChanged)

	for i := 0; i < 5; i++ {
		state := (i + 1) % 2
		id := ws.send(TypeRequest, RequestPayload{State: state})
		res, skipped := ws.readUntil(func(m Message) bool { return m.Type == TypeResult && m.ID == id })
		require.Nil(t, res.Error)
		token := decode[TokenPayload](t, res).Token
		for _, m := range skipped {
			if m.Type == TypeRequestActive {
				assert.NotEqual(t, token, decode[TokenPayload](t, m).Token, "request.active arrived before its result")
			}
		}
	}
}

func TestClientHoldsNotificationsUntilReleased(t *testing.T) {
	c := &Client{send: make(chan Message, 8), done: make(chan struct{})}

	c.hold()
	c.notify(Message{Type: TypeRequestActive})
	c.notify(Message{Type: TypeStateChanged})
	assert.Empty(t, c.send)

	c.enqueue(Message{Type: TypeResult, ID: "1"})
	c.release()

	require.Len(t, c.send, 3)
	assert.Equal(t, TypeResult, (<-c.send).Type)
	assert.Equal(t, TypeRequestActive, (<-c.send).Type)
	assert.Equal(t, TypeStateChanged, (<-c.send).Type)

	c.notify(Message{Type: TypeRequestCanceled})
	require.Len(t, c.send, 1)
	assert.Equal(t, TypeRequestCanceled, (<-c.send).Type)
}

func TestRequestWithClientToken(t *testing.T) {
	_, ts := newTestServer(t, Config{}, newTestCoordinator(t))
	ws := dial(t, ts)
	require.Nil(t, ws.call(TypeRegister, nil).Error)

	token := request.NewToken().String()
	res := ws.call(TypeRequest, RequestPayload{Token: token, State: 1})
	require.Nil(t, res.Error)
	assert.Equal(t, token, decode[TokenPayload](t, res).Token)
}

func TestRequestErrors(t *testing.T) {
	_, ts := newTestServer(t, Config{}, newTestCoordinator(t))
	ws := dial(t, ts)

	res := ws.call(TypeRequest, RequestPayload{State: 1})
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeNotRegistered, res.Error.Code)

	require.Nil(t, ws.call(TypeRegister, nil).Error)

	tests := []struct {
		name    string
		typ     MessageType
		payload any
		code    string
	}{
		{"unsupported state", TypeRequest, RequestPayload{State: 7}, CodeInvalidState},
		{"unknown flags", TypeRequest, RequestPayload{State: 1, Flags: 0x80}, CodeInvalidFlags},
		{"bad token", TypeRequest, RequestPayload{Token: "nope", State: 1}, CodeInvalidToken},
		{"missing payload", TypeRequest, nil, CodeInvalidMessage},
		{"cancel bad token", TypeCancel, CancelPayload{Token: ""}, CodeInvalidToken},
		{"unknown type", MessageType("state.teleport"), nil, CodeUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ws.call(tt.typ, tt.payload)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.code, res.Error.Code)
		})
	}
}

func TestCancelUnknownTokenSucceeds(t *testing.T) {
	_, ts := newTestServer(t, Config{}, newTestCoordinator(t))
	ws := dial(t, ts)
	require.Nil(t, ws.call(TypeRegister, nil).Error)

	res := ws.call(TypeCancel, CancelPayload{Token: request.NewToken().String()})
	assert.Nil(t, res.Error)
}

func TestSupportedStates(t *testing.T) {
	_, ts := newTestServer(t, Config{}, newTestCoordinator(t))
	ws := dial(t, ts)

	res := ws.call(TypeSupported, nil)
	require.Nil(t, res.Error)
	assert.Equal(t, []int{0, 1}, decode[SupportedPayload](t, res).States)
}

func TestInvalidJSON(t *testing.T) {
	_, ts := newTestServer(t, Config{}, newTestCoordinator(t))
	ws := dial(t, ts)

	require.NoError(t, ws.conn.WriteMessage(websocket.TextMessage, []byte("{")))
	msg := ws.waitFor(TypeResult)
	require.NotNil(t, msg.Error)
	assert.Equal(t, CodeInvalidMessage, msg.Error.Code)
}

func TestDisconnectCancelsRequests(t *testing.T) {
	c := newTestCoordinator(t)
	s, ts := newTestServer(t, Config{}, c)
	ws := dial(t, ts)

	require.Nil(t, ws.call(TypeRegister, nil).Error)
	require.Nil(t, ws.call(TypeRequest, RequestPayload{State: 1}).Error)
	assert.Equal(t, 1, s.ClientCount())

	require.NoError(t, ws.conn.Close())

	require.Eventually(t, func() bool {
		info, err := c.Info(context.Background())
		return err == nil && len(info.Requests) == 0 && info.Committed.Identifier == 0
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSuspendedNotificationGoesToOwner(t *testing.T) {
	_, ts := newTestServer(t, Config{}, newTestCoordinator(t))
	a := dial(t, ts)
	b := dial(t, ts)
	require.Nil(t, a.call(TypeRegister, nil).Error)
	require.Nil(t, b.call(TypeRegister, nil).Error)

	tokenA := decode[TokenPayload](t, a.call(TypeRequest, RequestPayload{State: 1})).Token
	require.Nil(t, b.call(TypeRequest, RequestPayload{State: 0}).Error)

	suspended := a.waitFor(TypeRequestSuspended)
	assert.Equal(t, tokenA, decode[TokenPayload](t, suspended).Token)
}

func TestAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	_, ts := newTestServer(t, Config{TokenHash: string(hash)}, newTestCoordinator(t))

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{"Authorization": []string{"Bearer wrong"}}
	_, resp, err = websocket.DefaultDialer.Dial(wsURL(ts.URL), header)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header = http.Header{"Authorization": []string{"Bearer secret"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), header)
	require.NoError(t, err)
	_ = conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(wsURL(ts.URL)+"?token=secret", nil)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestRateLimit(t *testing.T) {
	_, ts := newTestServer(t, Config{RequestRate: 0.001, RequestBurst: 1}, newTestCoordinator(t))
	ws := dial(t, ts)

	require.Nil(t, ws.call(TypeSupported, nil).Error)
	res := ws.call(TypeSupported, nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeRateLimited, res.Error.Code)
}

func TestStartAndStop(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, newTestCoordinator(t))
	require.NoError(t, s.Start())
	require.NotNil(t, s.Addr())

	resp, err := http.Get("http://" + s.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Start(), ErrServerStopped)
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: x", devicestate.ErrInvalidState), CodeInvalidState},
		{fmt.Errorf("%w: x", request.ErrInvalidToken), CodeInvalidToken},
		{request.ErrInvalidFlags, CodeInvalidFlags},
		{coordinator.ErrNotRegistered, CodeNotRegistered},
		{callback.ErrAlreadyRegistered, CodeAlreadyRegistered},
		{coordinator.ErrStopped, CodeUnavailable},
		{coordinator.ErrNotStarted, CodeUnavailable},
		{&Error{Code: CodeRateLimited, Message: "x"}, CodeRateLimited},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, errorFor(tt.err).Code, tt.err.Error())
	}
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken("secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")))
}
