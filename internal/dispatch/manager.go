// Package dispatch routes notification requests to named transports.
//
// The manager's contract is strict: one result per request, in request
// order, and Dispatch never fails as a whole — an unregistered channel or a
// failing transport becomes an error-flagged result for that channel only.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jayminwest/kota-gateway/internal/attention"
)

// ErrNotRegistered is the error string recorded on results for channels
// without a transport.
const ErrNotRegistered = "transport_not_registered"

// Transport delivers one dispatch request to one external channel.
type Transport interface {
	Name() string
	Send(ctx context.Context, req attention.DispatchRequest) (attention.DispatchResult, error)
}

// Manager maps channel names to transports. The registry is mutated only at
// wiring time; dispatching takes the read lock.
type Manager struct {
	mu         sync.RWMutex
	transports map[string]Transport
}

// NewManager creates an empty dispatch manager.
func NewManager() *Manager {
	return &Manager{transports: make(map[string]Transport)}
}

// Register binds a transport to a channel name. Registering the same channel
// again replaces the previous transport.
func (m *Manager) Register(channel string, t Transport) {
	m.mu.Lock()
	m.transports[channel] = t
	m.mu.Unlock()
	log.Debug().Str("channel", channel).Str("transport", t.Name()).Msg("transport_registered")
}

// Channels returns the registered channel names (for wiring-time logging).
func (m *Manager) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.transports))
	for name := range m.transports {
		names = append(names, name)
	}
	return names
}

// Dispatch processes requests strictly in input order, sequentially,
// producing exactly one result per request. It never returns an error and
// never panics.
func (m *Manager) Dispatch(ctx context.Context, reqs []attention.DispatchRequest) []attention.DispatchResult {
	results := make([]attention.DispatchResult, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, m.dispatchOne(ctx, req))
	}
	return results
}

func (m *Manager) dispatchOne(ctx context.Context, req attention.DispatchRequest) attention.DispatchResult {
	m.mu.RLock()
	t, ok := m.transports[req.Channel]
	m.mu.RUnlock()

	if !ok {
		log.Warn().Str("channel", req.Channel).Msg("dispatch_channel_unregistered")
		return attention.DispatchResult{
			Channel:   req.Channel,
			Delivered: false,
			Error:     ErrNotRegistered,
		}
	}

	res, err := sendSafely(ctx, t, req)
	if err != nil {
		log.Warn().Err(err).
			Str("channel", req.Channel).
			Str("transport", t.Name()).
			Msg("dispatch_failed")
		return attention.DispatchResult{
			Channel:   req.Channel,
			Delivered: false,
			Error:     err.Error(),
		}
	}

	// The transport's own result passes through; only the channel name is
	// pinned so results always align with requests.
	res.Channel = req.Channel
	return res
}

// sendSafely shields the manager from a panicking transport.
func sendSafely(ctx context.Context, t Transport, req attention.DispatchRequest) (res attention.DispatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = attention.DispatchResult{}
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return t.Send(ctx, req)
}
