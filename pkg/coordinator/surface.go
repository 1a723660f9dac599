package coordinator

import (
	"context"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/provider"
	"github.com/foldsense/devstate-go/pkg/request"
)

// OnSupportedStatesChanged implements provider.Listener.
func (c *Coordinator) OnSupportedStatesChanged(states []devicestate.DeviceState) error {
	cp := make([]devicestate.DeviceState, len(states))
	copy(cp, states)
	return c.post(context.Background(), func() error {
		return c.handleSupportedStates(cp)
	})
}

// OnStateChanged implements provider.Listener.
func (c *Coordinator) OnStateChanged(identifier int) error {
	return c.post(context.Background(), func() error {
		return c.handleBaseState(identifier)
	})
}

// RegisterCallback registers the listener for client. The listener first
// receives the current committed state, if there is one.
func (c *Coordinator) RegisterCallback(ctx context.Context, client request.ClientID, l callback.Listener) error {
	return c.post(ctx, func() error {
		return c.handleRegister(client, l)
	})
}

// UnregisterCallback removes the listener of client and cancels the
// client's requests without notifying it.
func (c *Coordinator) UnregisterCallback(ctx context.Context, client request.ClientID) error {
	return c.post(ctx, func() error {
		return c.handleUnregister(client)
	})
}

// SupportedStates returns the supported state identifiers in ascending
// order.
func (c *Coordinator) SupportedStates(ctx context.Context) ([]int, error) {
	var ids []int
	err := c.post(ctx, func() error {
		ids = c.catalog.Identifiers()
		return nil
	})
	return ids, err
}

// RequestState issues an override request for client.
func (c *Coordinator) RequestState(ctx context.Context, client request.ClientID, token request.Token, identifier int, flags request.Flags) error {
	return c.post(ctx, func() error {
		return c.handleRequest(client, token, identifier, flags)
	})
}

// CancelRequest cancels the request identified by token. Canceling an
// unknown token, or one issued by another client, does nothing.
func (c *Coordinator) CancelRequest(ctx context.Context, client request.ClientID, token request.Token) error {
	return c.post(ctx, func() error {
		return c.handleCancel(client, token)
	})
}

// Info returns a snapshot of the coordinator state.
func (c *Coordinator) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.post(ctx, func() error {
		info = c.snapshot()
		return nil
	})
	return info, err
}

// Flush waits until the mailbox is drained, including events queued while
// draining, and every resulting notification has been delivered. It does
// not wait for an outstanding policy configuration.
func (c *Coordinator) Flush(ctx context.Context) error {
	for {
		var idle bool
		err := c.post(ctx, func() error {
			idle = c.queued() == 0
			return nil
		})
		if err != nil {
			return err
		}
		if idle {
			break
		}
	}
	return c.hub.Flush(ctx)
}

// Compile-time interface satisfaction check.
var _ provider.Listener = (*Coordinator)(nil)
