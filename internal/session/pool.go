// Package session owns the fleet of logged-in browser sessions and the
// runs executed over them. A Pool logs accounts in batch-wise, then
// arms every session against a single wall-clock instant (scheduled
// mode) or loops each session over the sale window (continuous mode).
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"seatrush/internal/booking"
	"seatrush/internal/captcha"
	"seatrush/internal/clock"
	"seatrush/internal/driver"
	"seatrush/internal/site"
	"seatrush/internal/store"
)

var (
	// ErrSessionCreationFailed means no account produced a usable
	// logged-in session.
	ErrSessionCreationFailed = errors.New("session: no session could be created")
	// ErrNoSessions means a run was requested before any session was
	// logged in.
	ErrNoSessions = errors.New("session: pool has no sessions")
	// ErrRunCancelled marks work suppressed by an operator cancel.
	ErrRunCancelled = errors.New("session: run cancelled")
)

// Config tunes the pool. Zero values get defaults.
type Config struct {
	// LoginBatchSize is how many browsers are brought up per chunk.
	LoginBatchSize int
	// LoginParallelism bounds concurrent logins inside a chunk.
	LoginParallelism int
	// LoginTimeout bounds each account's login flow.
	LoginTimeout time.Duration
	// PassBackoff is the pause between full passes in continuous mode.
	PassBackoff time.Duration
	// Booking is handed to every engine unchanged.
	Booking booking.Tunables
}

func (c Config) withDefaults() Config {
	if c.LoginBatchSize <= 0 {
		c.LoginBatchSize = 5
	}
	if c.LoginParallelism <= 0 {
		c.LoginParallelism = 3
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 30 * time.Second
	}
	if c.PassBackoff <= 0 {
		c.PassBackoff = 2 * time.Second
	}
	return c
}

// Session is one logged-in browser bound to one account.
type Session struct {
	ID      string
	Index   int
	Account store.Account
	Page    driver.Driver
}

// Pool owns the sessions and at most one active run at a time.
type Pool struct {
	Factory  driver.Factory
	Profile  site.Profile
	Solver   *captcha.Solver
	Cfg      Config
	Clock    clock.Clock
	Log      *zap.Logger
	Listener Listener

	mu       sync.Mutex
	sessions []*Session
	active   *RunHandle
}

func (p *Pool) emit(ev Event) {
	if p.Listener != nil {
		p.Listener(ev)
	}
}

func (p *Pool) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (p *Pool) clockOrReal() clock.Clock {
	if p.Clock == nil {
		return clock.Real()
	}
	return p.Clock
}

// StartSessions launches and logs in one browser per account, in
// chunks of LoginBatchSize with at most LoginParallelism logins in
// flight. Accounts that fail are reported and skipped; the pool keeps
// whatever succeeded. Returns the number of usable sessions, or
// ErrSessionCreationFailed when that number is zero.
func (p *Pool) StartSessions(ctx context.Context, accounts []store.Account) (int, error) {
	cfg := p.Cfg.withDefaults()
	log := p.logger()

	total := len(accounts)
	if total == 0 {
		return 0, ErrSessionCreationFailed
	}
	totalBatches := (total + cfg.LoginBatchSize - 1) / cfg.LoginBatchSize

	var completed atomic.Int64
	results := make([]*Session, total)

	for batch := 0; batch*cfg.LoginBatchSize < total; batch++ {
		lo := batch * cfg.LoginBatchSize
		hi := lo + cfg.LoginBatchSize
		if hi > total {
			hi = total
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, cfg.LoginParallelism)
		for i := lo; i < hi; i++ {
			wg.Add(1)
			sem <- struct{}{}
			go func(idx int) {
				defer wg.Done()
				defer func() { <-sem }()
				s, err := p.startOne(ctx, idx, accounts[idx], cfg)
				done := int(completed.Add(1))
				ev := Event{
					Kind:         EventLoginProgress,
					AccountIndex: idx,
					Username:     accounts[idx].Username,
					Success:      err == nil,
					Completed:    done,
					Total:        total,
				}
				if err != nil {
					ev.Reason = err.Error()
					log.Warn("login failed",
						zap.Int("account", idx),
						zap.String("username", accounts[idx].Username),
						zap.Error(err))
				} else {
					results[idx] = s
				}
				p.emit(ev)
			}(i)
		}
		wg.Wait()

		p.emit(Event{Kind: EventBatchCompleted, BatchIndex: batch, TotalBatches: totalBatches})
		log.Info("login batch completed",
			zap.Int("batch", batch+1),
			zap.Int("batches", totalBatches))
	}

	var kept []*Session
	for _, s := range results {
		if s != nil {
			kept = append(kept, s)
		}
	}

	p.mu.Lock()
	p.sessions = append(p.sessions, kept...)
	p.mu.Unlock()

	p.emit(Event{Kind: EventAllLoginsCompleted, SuccessCount: len(kept), Total: total})
	log.Info("all logins completed",
		zap.Int("succeeded", len(kept)),
		zap.Int("total", total))

	if len(kept) == 0 {
		return 0, ErrSessionCreationFailed
	}
	return len(kept), nil
}

func (p *Pool) startOne(ctx context.Context, idx int, acct store.Account, cfg Config) (*Session, error) {
	page, err := p.Factory.NewSession(ctx, idx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	if err := login(ctx, page, p.Profile, acct, cfg.LoginTimeout); err != nil {
		page.Close()
		return nil, err
	}
	return &Session{ID: uuid.NewString(), Index: idx, Account: acct, Page: page}, nil
}

// Sessions reports the logged-in sessions, in account order.
func (p *Pool) Sessions() []*Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

func (p *Pool) newEngine(s *Session) *booking.Engine {
	return &booking.Engine{
		Page:    s.Page,
		Profile: p.Profile,
		Solver:  p.Solver,
		Cfg:     p.Cfg.withDefaults().Booking,
		Clock:   p.clockOrReal(),
		RNG:     rand.New(rand.NewSource(time.Now().UnixNano() + int64(s.Index))),
		Log:     p.logger().With(zap.Int("account", s.Index), zap.String("session", s.ID)),
		OnTransition: func(state booking.State) {
			p.emit(Event{
				Kind:         EventPhase,
				AccountIndex: s.Index,
				Username:     s.Account.Username,
				Phase:        state.String(),
			})
		},
	}
}

// adopt installs h as the active run, cancelling any previous one.
func (p *Pool) adopt(h *RunHandle) {
	p.mu.Lock()
	prev := p.active
	p.active = h
	p.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
}

// ScheduleRun arms every session against executeAt. Each session gets
// its own timer; a timer that fires after Cancel does nothing. An
// executeAt already in the past fires immediately. Arming a new run
// cancels the previous one, fired sessions of it excepted.
func (p *Pool) ScheduleRun(ctx context.Context, params booking.TargetParams, executeAt time.Time) (*RunHandle, error) {
	sessions := p.Sessions()
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}
	clk := p.clockOrReal()
	log := p.logger()

	h := newRunHandle()
	p.adopt(h)

	delay := executeAt.Sub(clk.Now())
	if delay < 0 {
		delay = 0
	}
	log.Info("run scheduled",
		zap.String("run", h.ID),
		zap.Time("execute_at", executeAt),
		zap.Duration("in", delay),
		zap.Int("sessions", len(sessions)))

	for _, s := range sessions {
		s := s
		h.addTimer(clk.AfterFunc(delay, func() {
			p.fire(ctx, h, s, params)
		}))
	}
	return h, nil
}

func (p *Pool) fire(ctx context.Context, h *RunHandle, s *Session, params booking.TargetParams) {
	if h.Cancelled() || ctx.Err() != nil {
		return
	}
	err := p.newEngine(s).Run(ctx, params)
	ev := Event{
		Kind:         EventTicketingResult,
		AccountIndex: s.Index,
		Username:     s.Account.Username,
		Success:      err == nil,
	}
	if err != nil {
		ev.Reason = err.Error()
	}
	p.emit(ev)
}

// RunContinuous loops every session over full booking passes inside
// the [start, until) window: sessions wait for the window to open,
// then retry until one pass succeeds, the window closes, or the run is
// cancelled. Each session stops on its own first success; failed
// passes back off by PassBackoff before retrying.
func (p *Pool) RunContinuous(ctx context.Context, params booking.TargetParams, start, until time.Time) (*RunHandle, error) {
	sessions := p.Sessions()
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}
	cfg := p.Cfg.withDefaults()
	clk := p.clockOrReal()
	log := p.logger()

	h := newRunHandle()
	p.adopt(h)

	params.ContinuousUntil = until
	log.Info("continuous run started",
		zap.String("run", h.ID),
		zap.Time("from", start),
		zap.Time("until", until),
		zap.Int("sessions", len(sessions)))

	for _, s := range sessions {
		s := s
		go func() {
			if delay := start.Sub(clk.Now()); delay > 0 {
				open := make(chan struct{})
				h.addTimer(clk.AfterFunc(delay, func() { close(open) }))
				select {
				case <-open:
				case <-h.Done():
					p.result(s, false, ErrRunCancelled.Error())
					return
				case <-ctx.Done():
					p.result(s, false, ErrRunCancelled.Error())
					return
				}
			}

			eng := p.newEngine(s)
			var lastErr error
			for {
				if h.Cancelled() || ctx.Err() != nil {
					p.result(s, false, ErrRunCancelled.Error())
					return
				}
				if !clk.Now().Before(until) {
					reason := "sale window elapsed"
					if lastErr != nil {
						reason = lastErr.Error()
					}
					p.result(s, false, reason)
					return
				}
				err := eng.Run(ctx, params)
				if err == nil {
					p.result(s, true, "")
					return
				}
				lastErr = err
				clk.Sleep(cfg.PassBackoff)
			}
		}()
	}
	return h, nil
}

func (p *Pool) result(s *Session, ok bool, reason string) {
	p.emit(Event{
		Kind:         EventTicketingResult,
		AccountIndex: s.Index,
		Username:     s.Account.Username,
		Success:      ok,
		Reason:       reason,
	})
}

// Close cancels the active run and tears every browser down.
func (p *Pool) Close() {
	p.mu.Lock()
	active := p.active
	sessions := p.sessions
	p.active = nil
	p.sessions = nil
	p.mu.Unlock()

	if active != nil {
		active.Cancel()
	}
	for _, s := range sessions {
		s.Page.Close()
	}
}
