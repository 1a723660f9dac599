package coordinator

import (
	"time"

	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/log"
	"github.com/foldsense/devstate-go/pkg/request"
)

// emit stamps and records a trace event.
func (c *Coordinator) emit(e log.Event) {
	e.Timestamp = time.Now()
	e.SessionID = c.config.SessionID
	c.events.Log(e)
}

func (c *Coordinator) traceState(entity log.StateEntity, from, to devicestate.DeviceState, reason string) {
	source := log.SourceCoordinator
	if entity == log.StateEntityBase {
		source = log.SourceProvider
	}
	c.emit(log.Event{
		Source:   source,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:  entity,
			Old:     from.Identifier,
			New:     to.Identifier,
			OldName: nameOf(from),
			NewName: nameOf(to),
			Reason:  reason,
		},
	})
}

func (c *Coordinator) traceRequest(r *request.Request, action log.RequestAction, reason string) {
	c.emit(log.Event{
		Source:   log.SourceClient,
		Category: log.CategoryRequest,
		ClientID: string(r.Client),
		Request: &log.RequestEvent{
			Token:  r.Token.String(),
			State:  r.State.Identifier,
			Flags:  uint32(r.Flags),
			Action: action,
			Reason: reason,
		},
	})
}

func (c *Coordinator) traceError(source log.Source, operation string, err error, state *int) {
	c.emit(log.Event{
		Source:   source,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Operation: operation,
			Message:   err.Error(),
			State:     state,
		},
	})
}

// nameOf returns the state name, or "" for an absent state.
func nameOf(s devicestate.DeviceState) string {
	if !s.IsValid() {
		return ""
	}
	return s.Name
}
