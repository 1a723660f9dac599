package coordinator

import (
	"fmt"
	"time"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/log"
	"github.com/foldsense/devstate-go/pkg/request"
)

// Everything in this file runs on the loop goroutine.

func (c *Coordinator) handleSupportedStates(states []devicestate.DeviceState) error {
	if err := c.catalog.Update(states); err != nil {
		c.traceError(log.SourceProvider, "supported", err, nil)
		return err
	}
	ids := c.catalog.Identifiers()
	c.logger.Debug("supported states changed", "states", ids)
	c.emit(log.Event{
		Source:   log.SourceProvider,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:    log.StateEntitySupported,
			Old:       devicestate.InvalidIdentifier,
			New:       devicestate.InvalidIdentifier,
			Supported: ids,
		},
	})

	if c.base.IsValid() {
		if s, ok := c.catalog.Get(c.base.Identifier); ok {
			c.base = s
		} else {
			c.setBase(devicestate.Invalid, "base state no longer supported")
		}
	}

	for _, r := range c.registry.Live() {
		if !c.catalog.IsSupported(r.State.Identifier) {
			c.cancel(r, "requested state no longer supported", true)
		}
	}

	c.resumeTop()
	c.reconcile()
	return nil
}

func (c *Coordinator) handleBaseState(identifier int) error {
	s, err := c.catalog.Lookup(identifier)
	if err != nil {
		c.traceError(log.SourceProvider, "base", err, &identifier)
		return err
	}
	if c.base.IsValid() && c.base.Identifier == identifier {
		return nil
	}
	c.setBase(s, "provider report")

	cancelAll := s.HasFlag(devicestate.FlagCancelOverrideRequests)
	for _, r := range c.registry.Live() {
		switch {
		case cancelAll:
			c.cancel(r, "base state cancels override requests", true)
		case r.Flags.Has(request.FlagCancelWhenBaseChanges):
			c.cancel(r, "base state changed", true)
		}
	}

	c.resumeTop()
	c.reconcile()
	return nil
}

func (c *Coordinator) handleRegister(client request.ClientID, l callback.Listener) error {
	if err := c.hub.Register(client, l, c.committed); err != nil {
		return err
	}
	c.logger.Debug("callback registered", "client", client)
	return nil
}

func (c *Coordinator) handleUnregister(client request.ClientID) error {
	if !c.hub.Unregister(client) {
		return fmt.Errorf("%w: %s", ErrNotRegistered, client)
	}
	c.logger.Debug("callback unregistered", "client", client)

	for _, r := range c.registry.ByClient(client) {
		c.cancel(r, "client unregistered", false)
	}
	c.resumeTop()
	c.reconcile()
	return nil
}

func (c *Coordinator) handleRequest(client request.ClientID, token request.Token, identifier int, flags request.Flags) error {
	reject := func(err error) error {
		c.emit(log.Event{
			Source:   log.SourceClient,
			Category: log.CategoryRequest,
			ClientID: string(client),
			Request: &log.RequestEvent{
				Token:  token.String(),
				State:  identifier,
				Flags:  uint32(flags),
				Action: log.RequestRejected,
				Reason: err.Error(),
			},
		})
		return err
	}

	if !c.hub.IsRegistered(client) {
		return reject(fmt.Errorf("%w: %s", ErrNotRegistered, client))
	}
	if token.IsNil() {
		return reject(fmt.Errorf("%w: nil token", request.ErrInvalidToken))
	}
	if err := flags.Validate(); err != nil {
		return reject(err)
	}
	s, err := c.catalog.Lookup(identifier)
	if err != nil {
		return reject(err)
	}
	if existing := c.registry.Get(token); existing != nil && existing.Client != client {
		return reject(fmt.Errorf("%w: token in use by another client", request.ErrInvalidToken))
	}

	r := &request.Request{
		Token:    token,
		Client:   client,
		State:    s,
		Flags:    flags,
		Status:   request.StatusActive,
		IssuedAt: time.Now(),
	}

	prev := c.registry.Top()
	if replaced := c.registry.Put(r); replaced != nil {
		replaced.Status = request.StatusCanceled
	}
	c.traceRequest(r, log.RequestIssued, "")

	if prev != nil && prev.Token != token && prev.Status == request.StatusActive {
		prev.Status = request.StatusSuspended
		c.hub.NotifyRequestStatus(prev.Client, prev.Token, request.StatusSuspended)
		c.traceRequest(prev, log.RequestSuspended, "superseded by "+token.Short())
	}

	c.hub.NotifyRequestStatus(client, token, request.StatusActive)
	c.traceRequest(r, log.RequestActivated, "")
	c.markAwaiting(r)
	c.logger.Debug("request issued", "client", client, "token", token.Short(), "state", s.String(), "flags", flags.String())

	c.reconcile()
	return nil
}

func (c *Coordinator) handleCancel(client request.ClientID, token request.Token) error {
	if !c.hub.IsRegistered(client) {
		return fmt.Errorf("%w: %s", ErrNotRegistered, client)
	}
	r := c.registry.Get(token)
	if r == nil || r.Client != client {
		c.logger.Debug("cancel for unknown token ignored", "client", client, "token", token.Short())
		return nil
	}

	c.cancel(r, "client canceled", true)
	c.resumeTop()
	c.reconcile()
	return nil
}

// handleComplete processes the policy completion for configuration seq.
func (c *Coordinator) handleComplete(seq uint64) {
	if !c.configuring || seq != c.seq {
		c.logger.Warn("ignoring stale policy completion", "seq", seq, "current", c.seq, "configuring", c.configuring)
		return
	}

	c.configuring = false
	if c.stallTimer != nil {
		c.stallTimer.Stop()
		c.stallTimer = nil
	}
	elapsed := time.Since(c.issuedAt)

	prev := c.committed
	c.committed = c.pending
	c.pending = devicestate.Invalid

	c.emit(log.Event{
		Source:   log.SourcePolicy,
		Category: log.CategoryPolicy,
		Policy: &log.PolicyEvent{
			Phase:    log.PolicyCompleted,
			State:    c.committed.Identifier,
			Sequence: seq,
			Elapsed:  &elapsed,
		},
	})
	c.traceState(log.StateEntityPending, c.committed, devicestate.Invalid, "configuration complete")

	changed := prev.Identifier != c.committed.Identifier
	if changed {
		c.traceState(log.StateEntityCommitted, prev, c.committed, "configuration complete")
		c.logger.Info("device state committed", "state", c.committed.String(), "elapsed", elapsed)
	}

	c.reconcile()

	if changed {
		c.hub.NotifyStateChanged(c.committed)
	}
	c.confirmCommitted()
}

// markAwaiting flags r for confirmation when its state still has to be
// committed.
func (c *Coordinator) markAwaiting(r *request.Request) {
	r.AwaitingCommit = c.pending.IsValid() || r.State.Identifier != c.committed.Identifier
}

// confirmCommitted re-sends onRequestActive to active requests whose state
// has just been committed.
func (c *Coordinator) confirmCommitted() {
	for _, r := range c.registry.Live() {
		if !r.AwaitingCommit || r.Status != request.StatusActive || r.State.Identifier != c.committed.Identifier {
			continue
		}
		r.AwaitingCommit = false
		c.hub.NotifyRequestStatus(r.Client, r.Token, request.StatusActive)
		c.traceRequest(r, log.RequestActivated, "committed")
	}
}

// desired returns the state the device should be in.
func (c *Coordinator) desired() devicestate.DeviceState {
	if top := c.registry.Top(); top != nil {
		return top.State
	}
	return c.base
}

// reconcile starts a configuration when the desired state differs from the
// committed one and nothing is pending.
func (c *Coordinator) reconcile() {
	if c.pending.IsValid() {
		return
	}
	target := c.desired()
	if !target.IsValid() || target.Identifier == c.committed.Identifier {
		return
	}

	c.traceState(log.StateEntityPending, devicestate.Invalid, target, "")
	c.pending = target
	c.configure(target)
}

// configure hands state to the policy. Calling it while a configuration is
// outstanding is a coordinator bug.
func (c *Coordinator) configure(state devicestate.DeviceState) {
	if c.configuring {
		panic(fmt.Errorf("%w: %s requested during configuration %d", ErrConcurrentConfigure, state, c.seq))
	}
	c.configuring = true
	c.seq++
	seq := c.seq
	c.issuedAt = time.Now()

	c.emit(log.Event{
		Source:   log.SourceCoordinator,
		Category: log.CategoryPolicy,
		Policy:   &log.PolicyEvent{Phase: log.PolicyIssued, State: state.Identifier, Sequence: seq},
	})
	c.logger.Debug("configuring device", "state", state.String(), "seq", seq)

	if warnAfter := c.config.ConfigureWarnAfter; warnAfter > 0 {
		c.stallTimer = time.AfterFunc(warnAfter, func() {
			c.postAsync(func() { c.handleStall(seq, state) })
		})
	}

	c.policy.ConfigureDeviceForState(state.Identifier, func() {
		c.postAsync(func() { c.handleComplete(seq) })
	})
}

// handleStall reports a configuration that is taking too long.
func (c *Coordinator) handleStall(seq uint64, state devicestate.DeviceState) {
	if !c.configuring || seq != c.seq {
		return
	}
	elapsed := time.Since(c.issuedAt)
	c.logger.Warn("policy configuration has not completed",
		"state", state.String(),
		"seq", seq,
		"elapsed", elapsed)
	c.emit(log.Event{
		Source:   log.SourceCoordinator,
		Category: log.CategoryPolicy,
		Policy: &log.PolicyEvent{
			Phase:    log.PolicyStalled,
			State:    state.Identifier,
			Sequence: seq,
			Elapsed:  &elapsed,
		},
	})
}

// setBase replaces the base state.
func (c *Coordinator) setBase(s devicestate.DeviceState, reason string) {
	prev := c.base
	c.base = s
	c.traceState(log.StateEntityBase, prev, s, reason)
	c.logger.Debug("base state changed", "from", prev.String(), "to", s.String(), "reason", reason)
}

// cancel ends r and removes it from the registry.
func (c *Coordinator) cancel(r *request.Request, reason string, notify bool) {
	r.Status = request.StatusCanceled
	c.registry.Remove(r.Token)
	if notify {
		c.hub.NotifyRequestStatus(r.Client, r.Token, request.StatusCanceled)
	}
	c.traceRequest(r, log.RequestCanceled, reason)
	c.logger.Debug("request canceled", "client", r.Client, "token", r.Token.Short(), "reason", reason)
}

// resumeTop activates the newest live request if it is suspended.
func (c *Coordinator) resumeTop() {
	top := c.registry.Top()
	if top == nil || top.Status != request.StatusSuspended {
		return
	}
	top.Status = request.StatusActive
	c.hub.NotifyRequestStatus(top.Client, top.Token, request.StatusActive)
	c.traceRequest(top, log.RequestActivated, "resumed")
	c.markAwaiting(top)
}

// snapshot copies the current state.
func (c *Coordinator) snapshot() Info {
	info := Info{
		Supported:   c.catalog.States(),
		Base:        c.base,
		Committed:   c.committed,
		Pending:     c.pending,
		Override:    devicestate.Invalid,
		Configuring: c.configuring,
		Sequence:    c.seq,
	}
	if top := c.registry.Top(); top != nil {
		info.Override = top.State
	}
	for _, r := range c.registry.Live() {
		info.Requests = append(info.Requests, *r)
	}
	return info
}
