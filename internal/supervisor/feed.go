package supervisor

import "sync"

// feed delivers status snapshots to a callback in publish order, on its own
// goroutine, so the callback may call back into the Supervisor.
type feed struct {
	fn func(Status)

	mu      sync.Mutex
	pending []Status

	wake     chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newFeed(fn func(Status)) *feed {
	f := &feed{
		fn:      fn,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go f.run()
	return f
}

// publish never blocks.
func (f *feed) publish(s Status) {
	f.mu.Lock()
	f.pending = append(f.pending, s)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *feed) run() {
	defer close(f.stopped)
	for {
		select {
		case <-f.wake:
			f.drain()
		case <-f.done:
			f.drain()
			return
		}
	}
}

func (f *feed) drain() {
	for {
		f.mu.Lock()
		batch := f.pending
		f.pending = nil
		f.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, s := range batch {
			f.fn(s)
		}
	}
}

// stop delivers what is pending and waits for the goroutine to exit.
// It must not be called from the callback itself.
func (f *feed) stop() {
	f.stopOnce.Do(func() {
		close(f.done)
	})
	<-f.stopped
}
