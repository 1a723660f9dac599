package discovery

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/foldsense/devstate-go/pkg/callback"
	"github.com/foldsense/devstate-go/pkg/devicestate"
	"github.com/foldsense/devstate-go/pkg/request"
)

// SupportedFunc returns the current supported state identifiers.
type SupportedFunc func(ctx context.Context) ([]int, error)

// Publisher keeps the advertised TXT record in sync with the committed
// state. Register it with the coordinator as a callback listener.
type Publisher struct {
	adv       Advertiser
	supported SupportedFunc
	logger    *slog.Logger

	mu          sync.Mutex
	info        *ServiceInfo
	advertising bool
}

// NewPublisher creates a publisher for the service described by info.
// Committed is reset to absent until the first notification.
func NewPublisher(adv Advertiser, info ServiceInfo, supported SupportedFunc, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	info.Committed = devicestate.InvalidIdentifier
	info.CommittedName = ""
	return &Publisher{adv: adv, supported: supported, logger: logger, info: info.Clone()}
}

// Start advertises the service.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.adv.Advertise(ctx, p.info.Clone()); err != nil {
		return err
	}
	p.advertising = true
	return nil
}

// Stop withdraws the service.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.advertising {
		return nil
	}
	p.advertising = false
	return p.adv.Stop()
}

// Info returns a copy of the currently published info.
func (p *Publisher) Info() ServiceInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return *p.info.Clone()
}

// OnDeviceStateChanged implements callback.Listener.
func (p *Publisher) OnDeviceStateChanged(state devicestate.DeviceState) {
	var supported []int
	if p.supported != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ids, err := p.supported(ctx)
		cancel()
		if err != nil {
			p.logger.Debug("supported states unavailable", "error", err)
		} else {
			supported = ids
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.info.Committed = state.Identifier
	p.info.CommittedName = state.Name
	if supported != nil {
		p.info.Supported = supported
	}
	if !p.advertising {
		return
	}
	if err := p.adv.Update(p.info.Clone()); err != nil {
		p.logger.Warn("failed to update TXT record", "error", err)
	}
}

// OnRequestActive implements callback.Listener.
func (p *Publisher) OnRequestActive(request.Token) {}

// OnRequestSuspended implements callback.Listener.
func (p *Publisher) OnRequestSuspended(request.Token) {}

// OnRequestCanceled implements callback.Listener.
func (p *Publisher) OnRequestCanceled(request.Token) {}

// Compile-time interface satisfaction check.
var _ callback.Listener = (*Publisher)(nil)
