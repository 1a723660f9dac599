package bridge

import (
	"encoding/json"
	"errors"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/coordinator"
	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/request"
)

// MessageType identifies an envelope.
type MessageType string

// Client to server.
const (
	TypeRegister   MessageType = "callback.register"
	TypeUnregister MessageType = "callback.unregister"
	TypeRequest    MessageType = "state.request"
	TypeCancel     MessageType = "state.cancel"
	TypeSupported  MessageType = "states.supported"
	TypeInfo       MessageType = "state.info"
)

// Server to client. The result of a frame is always sent before the
// notifications it causes, so a client learns a server-generated token
// before the request.active that carries it.
const (
	TypeResult           MessageType = "result"
	TypeStateChanged     MessageType = "state.changed"
	TypeRequestActive    MessageType = "request.active"
	TypeRequestSuspended MessageType = "request.suspended"
	TypeRequestCanceled  MessageType = "request.canceled"
)

// Error codes.
const (
	CodeInvalidState      = "state.invalid"
	CodeInvalidToken      = "request.invalid_token"
	CodeInvalidFlags      = "request.invalid_flags"
	CodeNotRegistered     = "callback.not_registered"
	CodeAlreadyRegistered = "callback.already_registered"
	CodeUnavailable       = "coordinator.unavailable"
	CodeInvalidMessage    = "message.invalid"
	CodeUnknownType       = "message.unknown_type"
	CodeRateLimited       = "rate.limited"
	CodeInternal          = "internal"
)

// Message is the JSON envelope of every frame.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the error body of a failed result.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// RequestPayload is the body of state.request. An empty token makes the
// server pick one; the result carries it.
type RequestPayload struct {
	Token string `json:"token,omitempty"`
	State int    `json:"state"`
	Flags uint32 `json:"flags,omitempty"`
}

// CancelPayload is the body of state.cancel.
type CancelPayload struct {
	Token string `json:"token"`
}

// TokenPayload carries a token, in results of state.request and in
// request notifications.
type TokenPayload struct {
	Token string `json:"token"`
}

// SupportedPayload is the result of states.supported.
type SupportedPayload struct {
	States []int `json:"states"`
}

// RegisterPayload is the result of callback.register.
type RegisterPayload struct {
	ClientID string `json:"client_id"`
}

// StatePayload describes one device state. Absent states are encoded as
// null.
type StatePayload struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Flags uint32 `json:"flags,omitempty"`
}

// LiveRequest describes one live request in state.info.
type LiveRequest struct {
	Token  string `json:"token"`
	Client string `json:"client"`
	State  int    `json:"state"`
	Flags  uint32 `json:"flags,omitempty"`
	Status string `json:"status"`
}

// InfoPayload is the result of state.info.
type InfoPayload struct {
	Supported   []StatePayload `json:"supported"`
	Base        *StatePayload  `json:"base"`
	Committed   *StatePayload  `json:"committed"`
	Pending     *StatePayload  `json:"pending"`
	Override    *StatePayload  `json:"override"`
	Requests    []LiveRequest  `json:"requests"`
	Configuring bool           `json:"configuring"`
	Sequence    uint64         `json:"sequence"`
}

func statePayload(s devicestate.DeviceState) *StatePayload {
	if !s.IsValid() {
		return nil
	}
	return &StatePayload{ID: s.Identifier, Name: s.Name, Flags: uint32(s.Flags)}
}

func infoPayload(info coordinator.Info) InfoPayload {
	p := InfoPayload{
		Supported:   make([]StatePayload, 0, len(info.Supported)),
		Base:        statePayload(info.Base),
		Committed:   statePayload(info.Committed),
		Pending:     statePayload(info.Pending),
		Override:    statePayload(info.Override),
		Requests:    make([]LiveRequest, 0, len(info.Requests)),
		Configuring: info.Configuring,
		Sequence:    info.Sequence,
	}
	for _, s := range info.Supported {
		p.Supported = append(p.Supported, *statePayload(s))
	}
	for _, r := range info.Requests {
		p.Requests = append(p.Requests, LiveRequest{
			Token:  r.Token.String(),
			Client: string(r.Client),
			State:  r.State.Identifier,
			Flags:  uint32(r.Flags),
			Status: r.Status.String(),
		})
	}
	return p
}

// notification converts a callback notification to an envelope.
func notification(n callback.Notification) Message {
	var (
		typ  MessageType
		body any
	)
	switch n.Kind {
	case callback.KindStateChanged:
		typ, body = TypeStateChanged, statePayload(n.State)
	case callback.KindRequestActive:
		typ, body = TypeRequestActive, TokenPayload{Token: n.Token.String()}
	case callback.KindRequestSuspended:
		typ, body = TypeRequestSuspended, TokenPayload{Token: n.Token.String()}
	default:
		typ, body = TypeRequestCanceled, TokenPayload{Token: n.Token.String()}
	}
	data, _ := json.Marshal(body)
	return Message{Type: typ, Payload: data}
}

// errorFor maps coordinator errors to stable codes.
func errorFor(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	code := CodeInternal
	switch {
	case errors.Is(err, devicestate.ErrInvalidState):
		code = CodeInvalidState
	case errors.Is(err, request.ErrInvalidToken):
		code = CodeInvalidToken
	case errors.Is(err, request.ErrInvalidFlags):
		code = CodeInvalidFlags
	case errors.Is(err, coordinator.ErrNotRegistered):
		code = CodeNotRegistered
	case errors.Is(err, callback.ErrAlreadyRegistered):
		code = CodeAlreadyRegistered
	case errors.Is(err, coordinator.ErrStopped), errors.Is(err, coordinator.ErrNotStarted):
		code = CodeUnavailable
	}
	return &Error{Code: code, Message: err.Error()}
}
