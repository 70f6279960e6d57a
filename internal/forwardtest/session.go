package forwardtest

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shopspring/decimal"
	"github.com/tradesim-lab/tradesim/internal/config"
	"github.com/tradesim-lab/tradesim/internal/datasource"
	"github.com/tradesim-lab/tradesim/internal/logger"
	"github.com/tradesim-lab/tradesim/internal/simulation"
	"github.com/tradesim-lab/tradesim/internal/types"
	"github.com/tradesim-lab/tradesim/pkg/errors"
)

// Snapshot is the atomically published read-only view of a session. Readers
// never touch the live portfolio; they load the latest snapshot instead.
type Snapshot struct {
	SessionID    string
	StrategyName string
	Status       types.SessionStatus
	Portfolio    types.Portfolio
	Equity       decimal.Decimal
	// UnrealizedPnL is the open profit across positions at the last marks.
	UnrealizedPnL decimal.Decimal
	TradeCount    int
	TickCount     int
	LastTickAt    time.Time
}

type quoteItem struct {
	quote types.Quote
	err   error
}

// Session runs one paper-trading strategy against a live quote stream. The
// driver is touched only by the session's own goroutine; commands change the
// desired state and the loop honors them between ticks, so the tick pipeline
// is atomic with respect to Pause and Stop.
type Session struct {
	id     string
	cfg    *config.ForwardTestConfig
	driver *simulation.Driver
	source datasource.QuoteSource
	logger *logger.Logger

	mu   sync.Mutex
	cond *sync.Cond
	// want is the commanded state; the loop converges on it between ticks.
	want types.SessionStatus

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}

	snapshot  atomic.Pointer[Snapshot]
	tickCount int
}

func newSession(id string, cfg *config.ForwardTestConfig, driver *simulation.Driver,
	source datasource.QuoteSource, log *logger.Logger,
) *Session {
	s := &Session{
		id:        id,
		cfg:       cfg,
		driver:    driver,
		source:    source,
		logger:    log.With(zap.String("session_id", id)),
		mu:        sync.Mutex{},
		cond:      nil,
		want:      types.SessionStatusRunning,
		stopOnce:  sync.Once{},
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		snapshot:  atomic.Pointer[Snapshot]{},
		tickCount: 0,
	}
	s.cond = sync.NewCond(&s.mu)
	s.publish(types.SessionStatusRunning, time.Time{})

	return s
}

// Snapshot returns the latest published view of the session.
func (s *Session) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// pause commands the session to stop consuming quotes without destroying
// state. The reported status flips to Paused immediately; a quote already in
// flight may still tick before the loop parks.
func (s *Session) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.want == types.SessionStatusRunning {
		s.want = types.SessionStatusPaused
		s.cond.Broadcast()
		s.republish(types.SessionStatusPaused)
	}
}

// resume commands a paused session back to consuming quotes. Resuming after
// an upstream disconnect resubscribes to the quote source.
func (s *Session) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.want == types.SessionStatusPaused {
		s.want = types.SessionStatusRunning
		s.cond.Broadcast()
		s.republish(types.SessionStatusRunning)
	}
}

// stop commands the session to end and blocks until the loop has flushed
// final state.
func (s *Session) stop() {
	s.mu.Lock()
	s.want = types.SessionStatusStopped
	s.cond.Broadcast()
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopCh) })

	<-s.done
}

// run is the session goroutine: consume the stream until it ends or a stop
// is commanded; on upstream disconnect, pause and wait for a resume, which
// resubscribes.
func (s *Session) run() {
	defer s.finalize()

	for {
		if !s.consume(s.subscribe()) {
			return
		}

		s.logger.Warn("quote stream disconnected, pausing session",
			zap.Error(errors.New(errors.ErrCodeUpstreamDisconnected, "quote stream closed")),
		)
		s.pause()

		if !s.waitWhilePaused() {
			return
		}
	}
}

// subscribe bridges the pull-based quote iterator onto a channel so the loop
// can watch for stop commands while waiting for the next quote.
func (s *Session) subscribe() <-chan quoteItem {
	symbol := s.cfg.Symbols[0]
	quotes := make(chan quoteItem)

	go func() {
		defer close(quotes)

		for quote, err := range s.source.SubscribeQuotes(symbol, s.cfg.Exchange) {
			select {
			case quotes <- quoteItem{quote: quote, err: err}:
			case <-s.stopCh:
				return
			}
		}
	}()

	return quotes
}

// consume processes quotes until the stream ends (true) or the session must
// stop (false). Pause and stop are honored only between ticks.
func (s *Session) consume(quotes <-chan quoteItem) bool {
	for {
		if !s.waitWhilePaused() {
			return false
		}

		select {
		case item, ok := <-quotes:
			if !ok {
				return true
			}

			if item.err != nil {
				err := item.err
				if !errors.IsUpstreamDisconnected(err) {
					err = errors.Wrap(errors.ErrCodeUpstreamDisconnected, "quote stream error", err)
				}

				s.logger.Error("quote stream error, treating as disconnect", zap.Error(err))

				return true
			}

			if err := s.driver.ProcessTick(item.quote.Bar()); err != nil {
				s.logger.Error("tick failed, stopping session", zap.Error(err))

				return false
			}

			s.tickCount++
			s.publish(types.SessionStatusRunning, item.quote.Time)

		case <-s.stopCh:
			return false
		}
	}
}

// waitWhilePaused blocks while the commanded state is Paused. Returns false
// when the session must stop. A fresh Paused snapshot is published before
// parking, overwriting whatever the last in-flight tick reported.
func (s *Session) waitWhilePaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.want == types.SessionStatusPaused {
		s.publish(types.SessionStatusPaused, s.lastTickAt())
	}

	for s.want == types.SessionStatusPaused {
		s.cond.Wait()
	}

	return s.want != types.SessionStatusStopped
}

// finalize cancels pending orders, publishes the final snapshot, and marks
// the session done.
func (s *Session) finalize() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.driver.Status() == types.RunStatusRunning {
		s.driver.Stop()
	}

	s.publish(types.SessionStatusStopped, s.lastTickAt())
	close(s.done)

	s.logger.Info("session stopped",
		zap.Int("ticks", s.tickCount),
		zap.String("final_equity", s.driver.Equity().String()),
	)
}

// republish re-stamps the latest snapshot with a new status without reading
// driver state, so command goroutines can update the reported status while
// the session goroutine owns the driver.
func (s *Session) republish(status types.SessionStatus) {
	snap := *s.snapshot.Load()
	snap.Status = status
	s.snapshot.Store(&snap)
}

// publish stores a fresh atomic snapshot of the session state.
func (s *Session) publish(status types.SessionStatus, lastTick time.Time) {
	portfolio := s.driver.Portfolio()
	marks := s.driver.Marks()

	s.snapshot.Store(&Snapshot{
		SessionID:     s.id,
		StrategyName:  s.cfg.Strategy,
		Status:        status,
		Portfolio:     portfolio,
		Equity:        portfolio.TotalEquity(marks),
		UnrealizedPnL: portfolio.TotalUnrealizedPnL(marks),
		TradeCount:    len(s.driver.Trades()),
		TickCount:     s.tickCount,
		LastTickAt:    lastTick,
	})
}

func (s *Session) lastTickAt() time.Time {
	if snap := s.snapshot.Load(); snap != nil {
		return snap.LastTickAt
	}

	return time.Time{}
}
