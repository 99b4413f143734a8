// Package dispatch serializes jobs per key while letting distinct keys run
// concurrently. The webhook pipeline keys jobs by chat ID so one chat's
// interactions are handled in arrival order without blocking other chats.
package dispatch

import "sync"

type worker struct {
	ch      chan func()
	pending int
}

// Dispatcher owns one lazily started goroutine per active key. A worker
// exits and is forgotten once its queue drains.
type Dispatcher struct {
	mu      sync.Mutex
	workers map[int64]*worker
	wg      sync.WaitGroup
	buffer  int
	closed  bool
}

// New builds a Dispatcher whose per-key queues hold up to buffer jobs
// before Submit blocks.
func New(buffer int) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	return &Dispatcher{
		workers: make(map[int64]*worker),
		buffer:  buffer,
	}
}

// Submit queues job for key. Jobs for the same key run one at a time in
// submission order. After Close, jobs are dropped.
func (d *Dispatcher) Submit(key int64, job func()) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	w, ok := d.workers[key]
	if !ok {
		w = &worker{ch: make(chan func(), d.buffer)}
		d.workers[key] = w
		d.wg.Add(1)
		go d.run(key, w)
	}
	w.pending++
	d.mu.Unlock()

	w.ch <- job
}

func (d *Dispatcher) run(key int64, w *worker) {
	defer d.wg.Done()
	for job := range w.ch {
		job()

		d.mu.Lock()
		w.pending--
		if w.pending == 0 {
			// No submitter holds a claim on this queue: safe to retire.
			delete(d.workers, key)
			close(w.ch)
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// Active reports the number of keys with live workers.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}
