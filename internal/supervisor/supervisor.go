// Package supervisor keeps a logical duplex text channel available over an
// unreliable transport. It reconnects with exponential backoff after abnormal
// closes, queues sends while the transport is down and flushes them in order
// once it opens again.
package supervisor

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/leapmux/tether/internal/metrics"
)

// Options configures a Supervisor.
type Options struct {
	// Dialer creates transports to the endpoint. Required.
	Dialer Dialer

	// OnMessage receives inbound payloads in transport order.
	OnMessage func(payload string)

	// OnStatus receives every state change, in order, on a separate
	// goroutine. It must not call Close.
	OnStatus func(Status)

	// BackOff computes reconnect delays. Defaults to a Policy with
	// DefaultBaseDelay and DefaultMaxDelay. Returning backoff.Stop stops
	// automatic reconnection.
	BackOff backoff.BackOff

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// scheduleFunc arms a one-shot timer and returns its stop function.
type scheduleFunc func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Supervisor owns one transport at a time, the reconnect timer, the outbound
// queue and the observable status. All state is guarded by mu; caller
// callbacks run outside of it.
type Supervisor struct {
	endpoint  string
	dialer    Dialer
	onMessage func(string)
	bo        backoff.BackOff
	logger    *slog.Logger
	feed      *feed
	schedule  scheduleFunc

	// writeMu serializes transport writes. mu is never held across a write.
	writeMu sync.Mutex

	mu        sync.Mutex
	state     State
	transport Transport
	gen       uint64 // identifies the current connect attempt
	connID    string
	queue     queue
	attempts  int
	lastErr   error
	timer     func() bool
	timerSeq  uint64
	finished  bool
	released  bool // queue no longer counted in metrics.MessagesQueued
	published Status
}

// New creates a Supervisor for endpoint and immediately starts connecting.
func New(endpoint string, opts Options) (*Supervisor, error) {
	return newSupervisor(endpoint, opts, afterFunc)
}

func newSupervisor(endpoint string, opts Options, schedule scheduleFunc) (*Supervisor, error) {
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if opts.Dialer == nil {
		return nil, errors.New("dialer is required")
	}

	bo := opts.BackOff
	if bo == nil {
		bo = NewPolicy(DefaultBaseDelay, DefaultMaxDelay)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Supervisor{
		endpoint:  endpoint,
		dialer:    opts.Dialer,
		onMessage: opts.OnMessage,
		bo:        bo,
		logger:    logger.With("component", "supervisor", "endpoint", endpoint),
		schedule:  schedule,
		state:     Idle,
	}
	s.published = s.statusLocked()
	if opts.OnStatus != nil {
		s.feed = newFeed(opts.OnStatus)
	}

	_ = s.Connect()
	return s, nil
}

// Endpoint returns the endpoint this Supervisor connects to.
func (s *Supervisor) Endpoint() string {
	return s.endpoint
}

// Status returns a snapshot of the current connectivity.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Pending returns a copy of the payloads still waiting to be sent.
func (s *Supervisor) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.snapshot()
}

// Connect opens a new transport, replacing any existing one and any pending
// reconnect timer. Connection failures are reported through Status, not
// returned. It returns ErrClosed after Disconnect.
func (s *Supervisor) Connect() error {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cancelTimerLocked()
	old := s.detachLocked()
	if err := s.connectLocked(); err != nil {
		s.scheduleLocked()
	}
	s.mu.Unlock()

	s.closeTransport(old)
	return nil
}

// Send appends payload to the outbound queue. If the transport is open it
// then writes everything queued, in order, before returning. A failed write
// keeps the payload queued, drops the transport and schedules a reconnect.
func (s *Supervisor) Send(payload string) {
	s.mu.Lock()
	s.queue.push(payload)
	s.countQueuedLocked(1)
	open := s.state == Open
	s.mu.Unlock()

	if open {
		s.drain()
	}
}

// Disconnect cancels any pending reconnect, resets the attempt count and
// closes the live transport. The Supervisor stays closed afterwards. Calling
// it again is a no-op.
func (s *Supervisor) Disconnect() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.cancelTimerLocked()
	s.bo.Reset()
	s.attempts = 0
	s.gen++
	t := s.detachLocked()
	s.setStateLocked(Closed)
	s.mu.Unlock()

	s.closeTransport(t)
	s.logger.Info("disconnected")
}

// Close disconnects and stops status delivery. Queued payloads stay
// available through Pending but no longer count as queued in metrics.
func (s *Supervisor) Close() error {
	s.Disconnect()

	s.mu.Lock()
	if !s.released {
		metrics.MessagesQueued.Sub(float64(s.queue.len()))
		s.released = true
	}
	s.mu.Unlock()

	if s.feed != nil {
		s.feed.stop()
	}
	return nil
}

// connectLocked dials a new transport. A returned error means the transport
// could not be created; the caller decides whether to reschedule.
func (s *Supervisor) connectLocked() error {
	s.gen++
	s.connID = uuid.NewString()
	s.setStateLocked(Connecting)
	metrics.ConnectAttemptsTotal.Inc()
	s.logger.Info("connecting", "conn_id", s.connID, "attempts", s.attempts)

	t, err := s.dialer.Dial(s.endpoint, &link{s: s, gen: s.gen})
	if err != nil {
		metrics.TransportErrorsTotal.Inc()
		s.logger.Warn("dial failed", "conn_id", s.connID, "error", err)
		s.lastErr = err
		s.setStateLocked(Closed)
		return err
	}
	s.transport = t
	return nil
}

// detachLocked releases the current transport so the caller can close it
// after unlocking.
func (s *Supervisor) detachLocked() Transport {
	t := s.transport
	s.transport = nil
	return t
}

func (s *Supervisor) closeTransport(t Transport) {
	if t == nil {
		return
	}
	if err := t.Close(); err != nil {
		s.logger.Debug("close transport", "error", err)
	}
}

// scheduleLocked arms the reconnect timer unless one is already pending.
func (s *Supervisor) scheduleLocked() {
	if s.timer != nil || s.finished {
		return
	}

	delay := s.bo.NextBackOff()
	if delay == backoff.Stop {
		s.logger.Warn("backoff exhausted, not reconnecting", "attempts", s.attempts)
		return
	}

	s.attempts++
	s.timerSeq++
	seq := s.timerSeq
	s.timer = s.schedule(delay, func() { s.fire(seq) })

	metrics.ReconnectsScheduledTotal.Inc()
	metrics.ReconnectDelay.Observe(delay.Seconds())
	s.logger.Info("reconnect scheduled", "delay", delay, "attempts", s.attempts)
	s.publishLocked()
}

// cancelTimerLocked stops the pending timer. Bumping timerSeq makes a
// callback that is already running a no-op.
func (s *Supervisor) cancelTimerLocked() {
	if s.timer == nil {
		return
	}
	s.timer()
	s.timer = nil
	s.timerSeq++
}

func (s *Supervisor) fire(seq uint64) {
	s.mu.Lock()
	if s.timer == nil || seq != s.timerSeq || s.finished {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	old := s.detachLocked()
	if err := s.connectLocked(); err != nil {
		s.scheduleLocked()
	}
	s.mu.Unlock()

	s.closeTransport(old)
}

func (s *Supervisor) handleOpen(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.finished {
		s.mu.Unlock()
		return
	}

	s.attempts = 0
	s.bo.Reset()
	s.cancelTimerLocked()
	s.lastErr = nil
	s.setStateLocked(Open)
	s.logger.Info("connected", "conn_id", s.connID, "queued", s.queue.len())
	s.mu.Unlock()

	s.drain()
}

// drain writes queued payloads in order while the transport stays open.
// A payload leaves the queue only after its write succeeded. The first
// failed write stops the drain and abandons the transport.
func (s *Supervisor) drain() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for {
		s.mu.Lock()
		payload, ok := s.queue.front()
		if !ok || s.state != Open || s.transport == nil || s.finished {
			s.mu.Unlock()
			return
		}
		t, gen := s.transport, s.gen
		s.mu.Unlock()

		err := t.Send(payload)

		s.mu.Lock()
		if err == nil {
			s.queue.pop()
			s.countQueuedLocked(-1)
			metrics.MessagesSentTotal.Inc()
			s.mu.Unlock()
			continue
		}
		if gen != s.gen || s.finished {
			s.mu.Unlock()
			return
		}
		s.logger.Warn("write failed, reconnecting", "conn_id", s.connID, "queued", s.queue.len(), "error", err)
		old := s.abandonLocked(err)
		s.mu.Unlock()

		s.closeTransport(old)
		return
	}
}

// abandonLocked gives up on a transport that failed a write. Its later
// events are stale; the queue waits for the next open.
func (s *Supervisor) abandonLocked(err error) Transport {
	metrics.TransportErrorsTotal.Inc()
	metrics.ClosesTotal.WithLabelValues("abnormal").Inc()
	s.lastErr = err
	s.gen++
	t := s.detachLocked()
	s.setStateLocked(Closed)
	s.scheduleLocked()
	return t
}

func (s *Supervisor) countQueuedLocked(n int) {
	if !s.released {
		metrics.MessagesQueued.Add(float64(n))
	}
}

func (s *Supervisor) handleMessage(gen uint64, payload string) {
	s.mu.Lock()
	stale := gen != s.gen || s.finished
	s.mu.Unlock()
	if stale {
		return
	}

	metrics.MessagesReceivedTotal.Inc()
	if s.onMessage != nil {
		s.onMessage(payload)
	}
}

func (s *Supervisor) handleError(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.finished {
		return
	}

	metrics.TransportErrorsTotal.Inc()
	s.logger.Warn("transport error", "conn_id", s.connID, "error", err)
	s.lastErr = err
	s.setStateLocked(Closed)
}

func (s *Supervisor) handleClose(gen uint64, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.finished {
		return
	}

	s.transport = nil
	s.setStateLocked(Closed)

	if code == CloseNormal {
		metrics.ClosesTotal.WithLabelValues("normal").Inc()
		s.logger.Info("closed normally", "conn_id", s.connID)
		return
	}
	metrics.ClosesTotal.WithLabelValues("abnormal").Inc()
	s.logger.Warn("closed abnormally", "conn_id", s.connID, "code", code)
	s.scheduleLocked()
}

func (s *Supervisor) setStateLocked(st State) {
	if s.state != st {
		if s.state == Open {
			metrics.ConnectionsOpen.Dec()
		}
		if st == Open {
			metrics.ConnectionsOpen.Inc()
		}
		s.logger.Debug("state changed", "from", s.state.String(), "to", st.String())
		s.state = st
	}
	s.publishLocked()
}

func (s *Supervisor) statusLocked() Status {
	return newStatus(s.state, s.lastErr, s.attempts, s.queue.len())
}

// publishLocked hands the status to the feed when state, error or attempt
// count changed. Queue length alone does not trigger a notification.
func (s *Supervisor) publishLocked() {
	st := s.statusLocked()
	p := s.published
	if st.State == p.State && st.LastError == p.LastError && st.Attempts == p.Attempts {
		return
	}
	s.published = st
	if s.feed != nil {
		s.feed.publish(st)
	}
}

// link binds transport events to the connect attempt that created them.
type link struct {
	s   *Supervisor
	gen uint64
}

func (l *link) Open()                  { l.s.handleOpen(l.gen) }
func (l *link) Message(payload string) { l.s.handleMessage(l.gen, payload) }
func (l *link) Error(err error)        { l.s.handleError(l.gen, err) }
func (l *link) Close(code int)         { l.s.handleClose(l.gen, code) }
