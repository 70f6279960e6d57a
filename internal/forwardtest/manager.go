// Package forwardtest runs live paper-trading sessions. A session drives the
// same simulation pipeline as a backtest, fed by an unbounded quote stream
// instead of a finite bar sequence, so live behavior never diverges from
// backtest behavior.
package forwardtest

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/config"
	"github.com/tradesim-lab/tradesim/internal/datasource"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/simulation"
	"github.com/tradesim-lab/tradesim/internal/strategy"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

// LivePnL is the equity view of a running session.
type LivePnL struct {
	SessionID     string
	Status        types.SessionStatus
	Equity        decimal.Decimal
	Cash          decimal.Decimal
	UnrealizedPnL decimal.Decimal
	LastTickAt    time.Time
}

// Manager owns all forward-test sessions of the process. Safe for concurrent
// use.
type Manager struct {
	registry *strategy.Registry
	logger   *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager(registry *strategy.Registry, log *logger.Logger) *Manager {
	return &Manager{
		registry: registry,
		logger:   log,
		mu:       sync.RWMutex{},
		sessions: make(map[string]*Session),
	}
}

// Start validates the configuration, builds the strategy, and launches a
// session goroutine over the quote source. Returns the session id.
func (m *Manager) Start(cfg *config.ForwardTestConfig, source datasource.QuoteSource) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	strat, err := m.registry.Build(cfg.Strategy, cfg.StrategyParams)
	if err != nil {
		return "", err
	}

	driver, err := simulation.NewDriver(cfg.Simulation(), strat, m.logger, time.Now().UTC())
	if err != nil {
		return "", err
	}

	if err := driver.Start(); err != nil {
		return "", err
	}

	id := ulid.Make().String()
	session := newSession(id, cfg, driver, source, m.logger)

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	go session.run()

	m.logger.Info("forward test session started",
		zap.String("session_id", id),
		zap.String("strategy", strat.Name()),
		zap.String("symbol", cfg.Symbols[0]),
	)

	return id, nil
}

// Stop ends the session, blocking until its final tick has flushed, and
// returns the final portfolio snapshot. The session stays queryable until
// Remove.
func (m *Manager) Stop(id string) (types.Portfolio, error) {
	session, err := m.session(id)
	if err != nil {
		return types.Portfolio{}, err
	}

	if session.Snapshot().Status == types.SessionStatusStopped {
		return types.Portfolio{}, errors.Newf(errors.ErrCodeSessionAlreadyStopped,
			"session %s is already stopped", id)
	}

	session.stop()

	return session.Snapshot().Portfolio, nil
}

// Pause suspends quote consumption without destroying session state.
func (m *Manager) Pause(id string) error {
	session, err := m.session(id)
	if err != nil {
		return err
	}

	if session.Snapshot().Status == types.SessionStatusStopped {
		return errors.Newf(errors.ErrCodeSessionNotRunning, "session %s is stopped", id)
	}

	session.pause()

	return nil
}

// Resume restarts a paused session. After an upstream disconnect this
// resubscribes to the quote source.
func (m *Manager) Resume(id string) error {
	session, err := m.session(id)
	if err != nil {
		return err
	}

	if session.Snapshot().Status == types.SessionStatusStopped {
		return errors.Newf(errors.ErrCodeSessionNotRunning, "session %s is stopped", id)
	}

	session.resume()

	return nil
}

// LivePnL returns the session's current equity view from the latest atomic
// snapshot.
func (m *Manager) LivePnL(id string) (LivePnL, error) {
	session, err := m.session(id)
	if err != nil {
		return LivePnL{}, err
	}

	snap := session.Snapshot()

	return LivePnL{
		SessionID:     snap.SessionID,
		Status:        snap.Status,
		Equity:        snap.Equity,
		Cash:          snap.Portfolio.Cash,
		UnrealizedPnL: snap.UnrealizedPnL,
		LastTickAt:    snap.LastTickAt,
	}, nil
}

// Snapshot returns the session's full published view.
func (m *Manager) Snapshot(id string) (Snapshot, error) {
	session, err := m.session(id)
	if err != nil {
		return Snapshot{}, err
	}

	return session.Snapshot(), nil
}

// Remove forgets a stopped session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return errors.Newf(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}

	if session.Snapshot().Status != types.SessionStatusStopped {
		return errors.Newf(errors.ErrCodeSessionNotRunning,
			"session %s must be stopped before removal", id)
	}

	delete(m.sessions, id)

	return nil
}

// SessionIDs lists the known session ids.
func (m *Manager) SessionIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}

	return ids
}

func (m *Manager) session(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeSessionNotFound, "session %s not found", id)
	}

	return session, nil
}
