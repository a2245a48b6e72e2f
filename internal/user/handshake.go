package user

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type HandshakeStatus string

const (
	HandshakeAwaiting HandshakeStatus = "AWAITING_RESULT"
	HandshakeResolved HandshakeStatus = "RESOLVED"
	HandshakeRejected HandshakeStatus = "REJECTED"
)

type handshake struct {
	provider Provider
	created  time.Time
	status   HandshakeStatus
	done     chan struct{}
	session  *Session
	err      error
}

// Handshakes tracks popup sign-ins between the opener's start call and the provider callback.
// Each state settles exactly once; waiters are bounded by timeout.
type Handshakes struct {
	mu      sync.Mutex
	pending map[string]*handshake
	timeout time.Duration
	now     func() time.Time
}

func NewHandshakes(timeout time.Duration) *Handshakes {
	return &Handshakes{
		pending: make(map[string]*handshake),
		timeout: timeout,
		now:     time.Now,
	}
}

// Begin opens a handshake for provider and returns its state token.
func (h *Handshakes) Begin(provider Provider) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	state := id.String()
	now := h.now()

	h.mu.Lock()
	defer h.mu.Unlock()

	for k, hs := range h.pending {
		if now.Sub(hs.created) > 2*h.timeout {
			delete(h.pending, k)
		}
	}
	h.pending[state] = &handshake{
		provider: provider,
		created:  now,
		status:   HandshakeAwaiting,
		done:     make(chan struct{}),
	}
	return state, nil
}

// Provider reports which provider a pending state was opened for.
func (h *Handshakes) Provider(state string) (Provider, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hs, ok := h.pending[state]
	if !ok {
		return "", ErrHandshakeNotFound
	}
	return hs.provider, nil
}

func (h *Handshakes) Status(state string) (HandshakeStatus, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hs, ok := h.pending[state]
	if !ok {
		return "", ErrHandshakeNotFound
	}
	return hs.status, nil
}

func (h *Handshakes) settle(state string, status HandshakeStatus, s *Session, err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	hs, ok := h.pending[state]
	if !ok {
		return ErrHandshakeNotFound
	}
	if hs.status != HandshakeAwaiting {
		log.Warn().Str("state", state).Str("status", string(hs.status)).Msg("handshake already settled")
		return nil
	}
	hs.status = status
	hs.session = s
	hs.err = err
	close(hs.done)
	return nil
}

func (h *Handshakes) Resolve(state string, s *Session) error {
	return h.settle(state, HandshakeResolved, s, nil)
}

func (h *Handshakes) Reject(state string, err error) error {
	if err == nil {
		err = ErrProviderRejected
	}
	return h.settle(state, HandshakeRejected, nil, err)
}

// Cancel rejects the handshake as closed by the user and forgets it.
func (h *Handshakes) Cancel(state string) error {
	if err := h.Reject(state, ErrHandshakeCancelled); err != nil {
		return err
	}
	h.forget(state)
	return nil
}

func (h *Handshakes) forget(state string) {
	h.mu.Lock()
	delete(h.pending, state)
	h.mu.Unlock()
}

// Await blocks until the handshake settles, the remaining wait elapses or ctx is done.
// A settled or timed-out handshake is removed.
func (h *Handshakes) Await(ctx context.Context, state string) (*Session, error) {
	h.mu.Lock()
	hs, ok := h.pending[state]
	h.mu.Unlock()
	if !ok {
		return nil, ErrHandshakeNotFound
	}

	remaining := h.timeout - h.now().Sub(hs.created)
	if remaining < 0 {
		remaining = 0
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-hs.done:
		h.forget(state)
		return hs.session, hs.err
	case <-timer.C:
		_ = h.Reject(state, ErrHandshakeTimeout)
		h.forget(state)
		// Settlement may have won the race against the timer.
		return hs.session, hs.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
