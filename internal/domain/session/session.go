/*
Package session implements the per-subscriber relay actor.

A Session owns exactly one upstream handle slot and runs a single goroutine that
serialises every input: the status ticker, the monitoring window, reconnect
timers, connect results, upstream events and the subscriber close request.

	Idle -> Connecting -> Live -> Reconnecting -> Live ... -> Closed

The monitoring window is authoritative: once it elapses no reconnect is
attempted, and an activation that resolves after it is torn down.
*/
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/webitel/live-relay-service/internal/domain/model"
)

var errEventsClosed = errors.New("upstream event stream closed")

// Sink receives envelopes destined for the subscriber channel.
type Sink interface {
	Send(env model.Envelope, timeout time.Duration) bool
}

// Notifier publishes lifecycle milestones to the rest of the system.
type Notifier interface {
	Notify(ctx context.Context, ev *model.LifecycleEvent) error
}

type connectResult struct {
	attempt uint64
	handle  model.Handle
	err     error
}

type Session struct {
	id         uuid.UUID
	identifier string
	cfg        Config
	dialer     model.Dialer
	sink       Sink
	notifier   Notifier
	clock      Clock
	logger     *slog.Logger

	// [LOOP_OWNED] Touched only by the loop goroutine after Start.
	subscribedAt  time.Time
	liveAt        time.Time
	handle        model.Handle
	attempt       uint64
	connectCancel context.CancelFunc
	retries       int
	backoff       *backoff.ExponentialBackOff
	statusTicker  Ticker
	window        Timer
	retry         Timer

	// [SNAPSHOT_FIELDS] Mirrored atomically for readers outside the loop.
	state      atomic.Int32
	wentLive   atomic.Bool
	monitoring atomic.Bool
	dials      atomic.Int32

	ctx       context.Context
	cancel    context.CancelFunc
	results   chan connectResult
	closeCh   chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// New builds an idle session; call Start to begin monitoring.
func New(identifier string, dialer model.Dialer, sink Sink, opts ...Option) *Session {
	s := &Session{
		id:         uuid.New(),
		identifier: identifier,
		cfg:        DefaultConfig(),
		dialer:     dialer,
		sink:       sink,
		clock:      RealClock(),
		logger:     slog.Default(),
		results:    make(chan connectResult),
		closeCh:    make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(
		slog.String("session_id", s.id.String()),
		slog.String("identifier", identifier),
	)
	s.backoff = newBackoff(s.cfg.Reconnect)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

func newBackoff(cfg ReconnectConfig) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.RandomizationFactor
	b.Reset()
	return b
}

func (s *Session) ID() uuid.UUID         { return s.id }
func (s *Session) Identifier() string    { return s.identifier }
func (s *Session) Done() <-chan struct{} { return s.doneCh }

func (s *Session) State() model.SessionState {
	return model.SessionState(s.state.Load())
}

func (s *Session) Snapshot() model.SessionSnapshot {
	st := s.State()
	return model.SessionSnapshot{
		ID:         s.id.String(),
		Identifier: s.identifier,
		State:      st,
		StateName:  st.String(),
		WentLive:   s.wentLive.Load(),
		Monitoring: s.monitoring.Load(),
		Attempts:   int(s.dials.Load()),
	}
}

// Start arms the status ticker and the monitoring window and fires the first
// connection attempt. It is a no-op after the first call.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.subscribedAt = s.clock.Now()
		s.monitoring.Store(true)
		s.statusTicker = s.clock.NewTicker(s.cfg.StatusInterval)
		s.window = s.clock.NewTimer(s.cfg.Window)

		s.logger.Info("[SESSION] monitoring started",
			slog.Duration("window", s.cfg.Window),
			slog.Duration("status_interval", s.cfg.StatusInterval),
		)

		s.startAttempt()
		go s.loop()
	})
}

// Close stops monitoring, releases the upstream handle and waits until the
// loop has exited or ctx is done. After Close returns no envelope is sent.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
	})

	// A session that was never started has no loop to wait for.
	started := true
	s.startOnce.Do(func() {
		started = false
		s.setState(model.StateClosed)
		s.cancel()
		close(s.doneCh)
	})
	if !started {
		return nil
	}

	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) loop() {
	defer close(s.doneCh)
	defer s.cancel()
	defer s.stopTimers()

	for {
		var events <-chan model.UpstreamEvent
		if s.handle != nil {
			events = s.handle.Events()
		}

		select {
		case <-s.closeCh:
			s.shutdown()
			return

		case <-tickerC(s.statusTicker):
			s.onStatusTick()

		case <-timerC(s.window):
			if s.onWindowExpired() {
				return
			}

		case <-timerC(s.retry):
			s.retry = nil
			s.startAttempt()

		case res := <-s.results:
			if s.onConnectResult(res) {
				return
			}

		case ev, ok := <-events:
			if !ok {
				ev = model.UpstreamEvent{Kind: model.UpstreamError, Err: errEventsClosed}
			}
			if s.onUpstreamEvent(ev) {
				return
			}
		}
	}
}

// startAttempt dials in the background. The result is tagged with the attempt
// number so that superseded results are discarded.
func (s *Session) startAttempt() {
	s.attempt++
	id := s.attempt
	s.dials.Add(1)

	if s.wentLive.Load() {
		s.setState(model.StateReconnecting)
	} else {
		s.setState(model.StateConnecting)
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.connectCancel = cancel

	s.logger.Debug("[UPSTREAM] connect attempt", slog.Uint64("attempt", id))

	go func() {
		h, err := s.dialer.Connect(ctx, s.identifier)
		res := connectResult{attempt: id, handle: h, err: err}

		select {
		case s.results <- res:
		case <-s.doneCh:
			// [LATE_ACTIVATION] The session is gone; never leak the handle.
			if h != nil {
				s.release(h)
			}
		}
	}()
}

func (s *Session) onConnectResult(res connectResult) bool {
	if res.attempt != s.attempt || s.connectCancel == nil || !s.monitoring.Load() {
		s.logger.Debug("[UPSTREAM] discarding stale connect result", slog.Uint64("attempt", res.attempt))
		if res.handle != nil {
			s.release(res.handle)
		}
		return false
	}
	s.connectCancel()
	s.connectCancel = nil

	if res.err != nil {
		return s.onConnectFailed(res.err)
	}

	now := s.clock.Now()
	s.handle = res.handle
	s.retries = 0
	s.backoff.Reset()
	s.setState(model.StateLive)

	if s.wentLive.Load() {
		s.logger.Info("[UPSTREAM] reconnected", slog.Uint64("attempt", res.attempt))
		return false
	}

	s.wentLive.Store(true)
	s.liveAt = now
	stopTicker(s.statusTicker)
	s.statusTicker = nil

	s.logger.Info("[SESSION] target went live",
		slog.Duration("time_to_live", now.Sub(s.subscribedAt)),
	)
	s.emit(model.NewStartTimeEnvelope(now))
	s.notify(model.NewLifecycleEvent(model.LifecycleWentLive, s.id, s.identifier, now).WithWindow(now, time.Time{}))
	return false
}

func (s *Session) onConnectFailed(err error) bool {
	if !s.wentLive.Load() {
		// [INITIAL_FAILURE] Reported once, never retried. The window keeps
		// running so the subscriber still gets status reports and not_live.
		s.logger.Warn("[UPSTREAM] initial connect failed", slog.Any("err", err))
		s.setState(model.StateIdle)
		s.emit(model.NewConnectFailedEnvelope())
		s.notify(model.NewLifecycleEvent(model.LifecycleFailed, s.id, s.identifier, s.clock.Now()))
		return false
	}

	s.logger.Warn("[UPSTREAM] reconnect failed",
		slog.Any("err", err),
		slog.Int("retries", s.retries),
	)
	return s.scheduleReconnect()
}

func (s *Session) onStatusTick() {
	if s.wentLive.Load() || !s.monitoring.Load() {
		return
	}
	s.logger.Debug("[SESSION] target not live yet")
	s.emit(model.NewStatusEnvelope(s.identifier))
}

func (s *Session) onWindowExpired() bool {
	s.window = nil
	s.monitoring.Store(false)
	stopTicker(s.statusTicker)
	s.statusTicker = nil

	now := s.clock.Now()

	if !s.wentLive.Load() {
		s.abortAttempt()
		s.setState(model.StateClosed)
		s.logger.Info("[SESSION] target did not go live within window")
		s.emit(model.NewNotLiveEnvelope(s.identifier, s.cfg.Window))
		s.notify(model.NewLifecycleEvent(model.LifecycleNotLive, s.id, s.identifier, now))
		return true
	}

	if s.handle == nil {
		// Live, but the upstream was lost and no reconnect may follow.
		s.abortAttempt()
		s.setState(model.StateClosed)
		s.logger.Warn("[SESSION] window closed while reconnecting")
		s.emit(model.NewErrorEnvelope(model.MsgConnectionLost))
		s.notify(model.NewLifecycleEvent(model.LifecycleEnded, s.id, s.identifier, now).WithWindow(s.liveAt, now))
		return true
	}

	s.logger.Debug("[SESSION] monitoring window closed, relay continues")
	return false
}

func (s *Session) onUpstreamEvent(ev model.UpstreamEvent) bool {
	switch ev.Kind {
	case model.UpstreamChat, model.UpstreamLike, model.UpstreamGift:
		if env, ok := model.NewRelayEnvelope(ev.Kind, ev.Data); ok {
			s.emit(env)
		}
		return false

	case model.UpstreamDisconnected:
		end := s.clock.Now()
		s.logger.Info("[UPSTREAM] live ended",
			slog.Float64("duration_s", model.Duration(s.liveAt, end)),
		)
		s.emit(model.NewEndTimeEnvelope(s.liveAt, end))
		s.dropHandle()
		s.setState(model.StateClosed)
		s.notify(model.NewLifecycleEvent(model.LifecycleEnded, s.id, s.identifier, end).WithWindow(s.liveAt, end))
		return true

	case model.UpstreamError:
		s.logger.Warn("[UPSTREAM] connection error", slog.Any("err", ev.Err))
		s.dropHandle()

		if s.monitoring.Load() {
			return s.scheduleReconnect()
		}

		now := s.clock.Now()
		s.setState(model.StateClosed)
		s.emit(model.NewErrorEnvelope(model.MsgConnectionLost))
		s.notify(model.NewLifecycleEvent(model.LifecycleEnded, s.id, s.identifier, now).WithWindow(s.liveAt, now))
		return true

	default:
		s.logger.Debug("[UPSTREAM] ignoring unknown event", slog.String("kind", ev.Kind.String()))
		return false
	}
}

// scheduleReconnect arms the backoff timer, or gives up when the retry budget
// is spent. It reports whether the session has ended.
func (s *Session) scheduleReconnect() bool {
	s.setState(model.StateReconnecting)

	if s.retries >= s.cfg.Reconnect.MaxAttempts {
		now := s.clock.Now()
		s.logger.Error("[UPSTREAM] reconnect attempts exhausted", slog.Int("retries", s.retries))
		s.setState(model.StateClosed)
		s.emit(model.NewErrorEnvelope(model.MsgReconnectExhausted))
		s.notify(model.NewLifecycleEvent(model.LifecycleEnded, s.id, s.identifier, now).WithWindow(s.liveAt, now))
		return true
	}
	s.retries++

	delay := s.backoff.NextBackOff()
	if delay == backoff.Stop {
		delay = s.cfg.Reconnect.MaxInterval
	}
	s.logger.Info("[UPSTREAM] reconnecting",
		slog.Duration("delay", delay),
		slog.Int("retry", s.retries),
	)
	s.retry = s.clock.NewTimer(delay)
	return false
}

// shutdown handles the subscriber going away: one awaited disconnect, no sends.
func (s *Session) shutdown() {
	s.monitoring.Store(false)
	s.abortAttempt()
	s.dropHandle()
	s.setState(model.StateClosed)
	s.logger.Info("[SESSION] subscriber closed, resources released")
}

func (s *Session) abortAttempt() {
	if s.connectCancel != nil {
		s.connectCancel()
		s.connectCancel = nil
	}
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

// dropHandle empties the handle slot, awaiting the disconnect.
func (s *Session) dropHandle() {
	if s.handle == nil {
		return
	}
	h := s.handle
	s.handle = nil
	s.release(h)
}

func (s *Session) release(h model.Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TeardownTimeout)
	defer cancel()

	if err := h.Disconnect(ctx); err != nil {
		s.logger.Warn("[UPSTREAM] disconnect failed", slog.Any("err", err))
	}
}

func (s *Session) emit(env model.Envelope) {
	if !s.sink.Send(env, s.cfg.SendTimeout) {
		s.logger.Warn("[SESSION] envelope dropped", slog.String("type", string(env.Type)))
	}
}

func (s *Session) notify(ev *model.LifecycleEvent) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.logger.Warn("[BUS] lifecycle publish failed",
			slog.String("kind", string(ev.Kind)),
			slog.Any("err", err),
		)
	}
}

func (s *Session) setState(st model.SessionState) {
	s.state.Store(int32(st))
}

func (s *Session) stopTimers() {
	stopTicker(s.statusTicker)
	s.statusTicker = nil
	if s.window != nil {
		s.window.Stop()
		s.window = nil
	}
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
}

func stopTicker(t Ticker) {
	if t != nil {
		t.Stop()
	}
}

func tickerC(t Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C()
}

func timerC(t Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C()
}
