package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nutriscan/backend/internal/domain"
)

// ControllerFactory builds the controller for a new session
type ControllerFactory func(sessionID string) *Controller

type session struct {
	controller *Controller
	lastUsed   time.Time
}

// SessionManager maps session ids to controllers and expires idle sessions
type SessionManager struct {
	factory     ControllerFactory
	idleTimeout time.Duration
	logger      *zap.Logger
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionManager creates a manager; idleTimeout <= 0 disables expiry
func NewSessionManager(factory ControllerFactory, idleTimeout time.Duration, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		factory:     factory,
		idleTimeout: idleTimeout,
		logger:      logger.Named("sessions"),
		now:         time.Now,
		sessions:    make(map[string]*session),
	}
}

// Create starts a new session and returns its id
func (m *SessionManager) Create(ctx context.Context) (string, *Controller) {
	id := uuid.NewString()
	controller := m.factory(id)
	controller.Start(ctx)

	m.mu.Lock()
	m.sessions[id] = &session{controller: controller, lastUsed: m.now()}
	count := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session created", zap.String("session", id), zap.Int("active", count))
	return id, controller
}

// Get returns the session's controller and marks it as used
func (m *SessionManager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.lastUsed = m.now()
	return s.controller, nil
}

// Close ends one session, waiting for its background work
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	s.controller.Close()
	m.logger.Info("session closed", zap.String("session", id))
	return nil
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ExpireIdle closes sessions unused for longer than the idle timeout and
// returns how many were closed
func (m *SessionManager) ExpireIdle() int {
	if m.idleTimeout <= 0 {
		return 0
	}

	cutoff := m.now().Add(-m.idleTimeout)
	var expired []*Controller

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			expired = append(expired, s.controller)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, controller := range expired {
		controller.Close()
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run expires idle sessions every interval until ctx is done
func (m *SessionManager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ExpireIdle()
		}
	}
}

// Shutdown closes every session
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(c *Controller) {
			defer wg.Done()
			c.Close()
		}(s.controller)
	}
	wg.Wait()
	m.logger.Info("all sessions closed", zap.Int("count", len(sessions)))
}
