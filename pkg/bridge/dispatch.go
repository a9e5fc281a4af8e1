package bridge

import "sync"

// Dispatcher runs submitted functions one at a time, in submission order, on
// its own goroutine. Hosts use it to deliver callbacks outside their event
// loop so a callback may issue further bridge calls.
type Dispatcher struct {
	mu     sync.Mutex
	queue  []func()
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher starts a Dispatcher.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit queues fn. It never blocks; after Close it is a no-op.
func (d *Dispatcher) Submit(fn func()) {
	select {
	case <-d.done:
		return
	default:
	}
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// Close stops the Dispatcher; queued functions that have not started are dropped.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.done) })
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case <-d.signal:
		}
		for {
			d.mu.Lock()
			if len(d.queue) == 0 {
				d.mu.Unlock()
				break
			}
			next := d.queue[0]
			d.queue = d.queue[1:]
			d.mu.Unlock()

			select {
			case <-d.done:
				return
			default:
			}
			next()
		}
	}
}
