package gateway

import (
	"context"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

type managedSession struct {
	session Session
	target  ResolvedTarget
}

// ConnectionManager owns the single session of the process. Construct it once and share it:
// the first successful Connection call opens the session under a mutex, and later calls read it
// without locking. There is no health check or reconnect once a session is cached; a failed
// open caches nothing, so the next call starts over from resolution.
type ConnectionManager struct {
	resolver *EndpointResolver
	opener   SessionOpener
	mu       sync.Mutex
	current  atomic.Pointer[managedSession]
}

// NewConnectionManager creates a manager that opens sessions on the resolver's target.
func NewConnectionManager(resolver *EndpointResolver, opener SessionOpener) *ConnectionManager {
	return &ConnectionManager{
		resolver: resolver,
		opener:   opener,
	}
}

// Connection returns the shared session, opening it on first use.
func (m *ConnectionManager) Connection(ctx context.Context) (Session, error) {
	if current := m.current.Load(); current != nil {
		return current.session, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if current := m.current.Load(); current != nil {
		return current.session, nil
	}

	target, err := m.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	session, err := m.opener.Open(ctx, target)
	if err != nil {
		connectionsOpened.WithLabelValues("error").Inc()
		return nil, newError(KindConnectionFailed, err, "Unable to connect to warehouse %s: %v", target.WarehouseID, err)
	}
	if err := session.PingContext(ctx); err != nil {
		connectionsOpened.WithLabelValues("error").Inc()
		if closeErr := session.Close(); closeErr != nil {
			log.Error("Unable to close failed session. ", closeErr)
		}
		log.Errorf("Unable to establish session with %s%s, Error: %v", target.Host, target.HTTPPath, err)
		return nil, newError(KindConnectionFailed, err, "Unable to connect to warehouse %s: %v", target.WarehouseID, err)
	}
	connectionsOpened.WithLabelValues("ok").Inc()
	log.Infof("Established session with warehouse %s at %s", target.WarehouseID, target.Host)
	m.current.Store(&managedSession{session: session, target: target})
	return session, nil
}

// Target returns the target of the open session, if any.
func (m *ConnectionManager) Target() (ResolvedTarget, bool) {
	if current := m.current.Load(); current != nil {
		return current.target, true
	}
	return ResolvedTarget{}, false
}

// Close releases the session at process teardown.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.current.Swap(nil)
	if current == nil {
		return nil
	}
	return current.session.Close()
}
