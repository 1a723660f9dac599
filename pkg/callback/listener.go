package callback

import (
	"fmt"

	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/request"
)

// Listener receives device state and request status notifications.
type Listener interface {
	// OnDeviceStateChanged is called when the committed state changes.
	OnDeviceStateChanged(state devicestate.DeviceState)

	// OnRequestActive is called when the request becomes active.
	OnRequestActive(token request.Token)

	// OnRequestSuspended is called when a newer request takes precedence.
	OnRequestSuspended(token request.Token)

	// OnRequestCanceled is called when the request is canceled.
	OnRequestCanceled(token request.Token)
}

// Kind identifies the notification variant.
type Kind uint8

const (
	// KindStateChanged carries a new committed state.
	KindStateChanged Kind = iota

	// KindRequestActive reports a request becoming active.
	KindRequestActive

	// KindRequestSuspended reports a request being suspended.
	KindRequestSuspended

	// KindRequestCanceled reports a request being canceled.
	KindRequestCanceled
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindStateChanged:
		return "STATE_CHANGED"
	case KindRequestActive:
		return "REQUEST_ACTIVE"
	case KindRequestSuspended:
		return "REQUEST_SUSPENDED"
	case KindRequestCanceled:
		return "REQUEST_CANCELED"
	default:
		return "UNKNOWN"
	}
}

// KindForStatus maps a request status to its notification kind.
func KindForStatus(status request.Status) Kind {
	switch status {
	case request.StatusActive:
		return KindRequestActive
	case request.StatusSuspended:
		return KindRequestSuspended
	default:
		return KindRequestCanceled
	}
}

// Notification is the tagged variant of all listener callbacks.
// State is set for KindStateChanged, Token for the request kinds.
type Notification struct {
	Kind  Kind
	State devicestate.DeviceState
	Token request.Token
}

// String returns a compact representation for logs.
func (n Notification) String() string {
	if n.Kind == KindStateChanged {
		return fmt.Sprintf("%s %s", n.Kind, n.State)
	}
	return fmt.Sprintf("%s %s", n.Kind, n.Token.Short())
}

// Dispatch invokes the Listener method matching n.Kind.
func Dispatch(l Listener, n Notification) {
	switch n.Kind {
	case KindStateChanged:
		l.OnDeviceStateChanged(n.State)
	case KindRequestActive:
		l.OnRequestActive(n.Token)
	case KindRequestSuspended:
		l.OnRequestSuspended(n.Token)
	case KindRequestCanceled:
		l.OnRequestCanceled(n.Token)
	}
}

// Func adapts a single function to the Listener interface.
type Func func(Notification)

// OnDeviceStateChanged implements Listener.
func (f Func) OnDeviceStateChanged(state devicestate.DeviceState) {
	f(Notification{Kind: KindStateChanged, State: state})
}

// OnRequestActive implements Listener.
func (f Func) OnRequestActive(token request.Token) {
	f(Notification{Kind: KindRequestActive, Token: token})
}

// OnRequestSuspended implements Listener.
func (f Func) OnRequestSuspended(token request.Token) {
	f(Notification{Kind: KindRequestSuspended, Token: token})
}

// OnRequestCanceled implements Listener.
func (f Func) OnRequestCanceled(token request.Token) {
	f(Notification{Kind: KindRequestCanceled, Token: token})
}

// Compile-time interface satisfaction check.
var _ Listener = Func(nil)
