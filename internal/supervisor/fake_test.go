package supervisor

import (
	"errors"
	"sync"
	"time"
)

// fakeTransport records sends and exposes the events it was dialed with.
type fakeTransport struct {
	events Events

	mu      sync.Mutex
	sent    []string
	failAt  int // fail the Nth send (1-based) and every later one; 0 never fails
	sends   int
	closed  int
	sendErr error

	gate    chan struct{} // when set, every Send waits for it to close
	entered chan struct{} // receives once per Send that reached the gate
}

func (t *fakeTransport) Send(payload string) error {
	t.mu.Lock()
	gate, entered := t.gate, t.entered
	t.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sends++
	if t.failAt > 0 && t.sends >= t.failAt {
		if t.sendErr != nil {
			return t.sendErr
		}
		return errors.New("send failed")
	}
	t.sent = append(t.sent, payload)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
	return nil
}

func (t *fakeTransport) Sent() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.sent...)
}

func (t *fakeTransport) Closed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// holdSends makes Send block until release is called.
func (t *fakeTransport) holdSends() (entered <-chan struct{}, release func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gate = make(chan struct{})
	t.entered = make(chan struct{}, 16)
	gate := t.gate
	return t.entered, func() { close(gate) }
}

// heal makes later sends succeed again.
func (t *fakeTransport) heal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failAt = 0
}

func (t *fakeTransport) failFrom(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failAt = t.sends + n
}

// fakeDialer hands out a fresh fakeTransport per Dial. Queued errors are
// returned by the next Dial calls in order.
type fakeDialer struct {
	mu         sync.Mutex
	transports []*fakeTransport
	errs       []error
	dials      int
}

func (d *fakeDialer) Dial(endpoint string, events Events) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		return nil, err
	}
	t := &fakeTransport{events: events}
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *fakeDialer) failNext(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, errs...)
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Last returns the most recently created transport.
func (d *fakeDialer) Last() *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

func (d *fakeDialer) At(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}

// fakeTimer is one armed callback of fakeScheduler.
type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// fakeScheduler captures timers instead of running them so tests decide
// when they fire.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
	stops  int
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, fn: f}
	s.timers = append(s.timers, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stops++
		if t.stopped || t.fired {
			return false
		}
		t.stopped = true
		return true
	}
}

// Armed returns timers that have neither fired nor been stopped.
func (s *fakeScheduler) Armed() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Delays returns the delay of every timer ever armed, in order.
func (s *fakeScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		out[i] = t.delay
	}
	return out
}

// FireNext runs the oldest armed timer and reports whether one existed.
func (s *fakeScheduler) FireNext() bool {
	s.mu.Lock()
	var next *fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	s.mu.Unlock()

	if next == nil {
		return false
	}
	next.fn()
	return true
}

// fire runs t even if it was stopped, as a timer racing its Stop would.
func (s *fakeScheduler) fire(t *fakeTimer) {
	s.mu.Lock()
	t.fired = true
	s.mu.Unlock()
	t.fn()
}

func zeroRand() float64 { return 0 }

// newTestSupervisor builds a Supervisor on fakes with deterministic 100ms
// base delay and no jitter.
func newTestSupervisor(opts Options) (*Supervisor, *fakeDialer, *fakeScheduler, error) {
	d := &fakeDialer{}
	sched := &fakeScheduler{}
	if opts.Dialer == nil {
		opts.Dialer = d
	}
	if opts.BackOff == nil {
		p := NewPolicy(100*time.Millisecond, 30*time.Second)
		p.Rand = zeroRand
		opts.BackOff = p
	}
	s, err := newSupervisor("ws://test.invalid/chat", opts, sched.schedule)
	return s, d, sched, err
}
