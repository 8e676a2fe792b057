package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/webitel/live-relay-service/internal/domain/model"
)

const (
	waitFor  = 2 * time.Second
	waitNone = 50 * time.Millisecond
)

// fakeClock hands out unbuffered ticker and timer channels, so a successful
// Tick or Fire means the session loop has received the signal.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	timers  []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{d: d, ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{d: d, ch: make(chan time.Time)}
	c.timers = append(c.timers, t)
	return t
}

// Tick delivers one tick of the live ticker with period d.
func (c *fakeClock) Tick(d time.Duration) bool { return c.tickWithin(d, waitFor) }

func (c *fakeClock) tickWithin(d time.Duration, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if t := c.activeTicker(d); t != nil {
			select {
			case t.ch <- c.Now():
				return true
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

// Fire expires the pending timer with duration d, waiting for it to be armed.
func (c *fakeClock) Fire(d time.Duration) bool { return c.fireWithin(d, waitFor) }

func (c *fakeClock) fireWithin(d time.Duration, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		if t := c.pendingTimer(d); t != nil {
			select {
			case t.ch <- c.Now():
				t.fired.Store(true)
				return true
			case <-time.After(5 * time.Millisecond):
			}
			continue
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func (c *fakeClock) activeTicker(d time.Duration) *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.tickers) - 1; i >= 0; i-- {
		if t := c.tickers[i]; t.d == d && !t.stopped.Load() {
			return t
		}
	}
	return nil
}

func (c *fakeClock) pendingTimer(d time.Duration) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.timers) - 1; i >= 0; i-- {
		if t := c.timers[i]; t.d == d && !t.stopped.Load() && !t.fired.Load() {
			return t
		}
	}
	return nil
}

type fakeTicker struct {
	d       time.Duration
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

type fakeTimer struct {
	d       time.Duration
	ch      chan time.Time
	stopped atomic.Bool
	fired   atomic.Bool
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	return !t.stopped.Swap(true) && !t.fired.Load()
}

// fakeDialer parks every Connect call until the test resolves it.
type fakeDialer struct {
	calls chan *dialCall
	count atomic.Int32
	// ignoreCtx models a client that cannot abort an in-flight connect.
	ignoreCtx bool
}

type dialCall struct {
	identifier string
	reply      chan dialReply
}

type dialReply struct {
	handle model.Handle
	err    error
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{calls: make(chan *dialCall, 16)}
}

func (d *fakeDialer) Connect(ctx context.Context, identifier string) (model.Handle, error) {
	d.count.Add(1)
	call := &dialCall{identifier: identifier, reply: make(chan dialReply, 1)}
	d.calls <- call

	if d.ignoreCtx {
		r := <-call.reply
		return r.handle, r.err
	}
	select {
	case r := <-call.reply:
		return r.handle, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *fakeDialer) next() *dialCall {
	select {
	case c := <-d.calls:
		return c
	case <-time.After(waitFor):
		return nil
	}
}

func (c *dialCall) succeed(h model.Handle) { c.reply <- dialReply{handle: h} }
func (c *dialCall) fail(err error)         { c.reply <- dialReply{err: err} }

type fakeHandle struct {
	events      chan model.UpstreamEvent
	disconnects atomic.Int32
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{events: make(chan model.UpstreamEvent)}
}

func (h *fakeHandle) Events() <-chan model.UpstreamEvent { return h.events }

func (h *fakeHandle) Disconnect(context.Context) error {
	h.disconnects.Add(1)
	return nil
}

func (h *fakeHandle) push(ev model.UpstreamEvent) bool {
	select {
	case h.events <- ev:
		return true
	case <-time.After(waitFor):
		return false
	}
}

type fakeSink struct {
	ch chan model.Envelope
}

func newFakeSink() *fakeSink {
	return &fakeSink{ch: make(chan model.Envelope, 64)}
}

func (s *fakeSink) Send(env model.Envelope, _ time.Duration) bool {
	select {
	case s.ch <- env:
		return true
	default:
		return false
	}
}

func (s *fakeSink) next() (model.Envelope, bool) {
	select {
	case env := <-s.ch:
		return env, true
	case <-time.After(waitFor):
		return model.Envelope{}, false
	}
}

func (s *fakeSink) empty() bool {
	select {
	case <-s.ch:
		return false
	case <-time.After(waitNone):
		return true
	}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*model.LifecycleEvent
}

func (n *fakeNotifier) Notify(_ context.Context, ev *model.LifecycleEvent) error {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	return nil
}

func (n *fakeNotifier) kinds() []model.LifecycleKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.LifecycleKind, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Kind)
	}
	return out
}
