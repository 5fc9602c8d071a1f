package services

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"audit-dashboard/models"
)

// QueueFetcher fetches the current RPA queue snapshot.
type QueueFetcher func(ctx context.Context) (*models.RpaQueueStatus, error)

// PollerCallbacks receive poller events. All callbacks are invoked from the
// polling goroutine without any poller lock held; nil callbacks are skipped.
type PollerCallbacks struct {
	// OnStatus fires after every authoritative fetch and after an
	// optimistic enqueue, with the status the UI should display.
	OnStatus func(models.RpaQueueStatus)
	// OnProcessingFinished fires exactly once per processing→idle
	// transition of the queue.
	OnProcessingFinished func()
	// OnError fires on fetch failures. Polling continues regardless.
	OnError func(error)
}

// Poller watches the RPA job queue while the summary view is active. It is
// an explicit handle: Start enters the watching state, Stop leaves it,
// cancels the timer deterministically and resets the transition tracker, so
// no fetch can fire after Stop returns.
//
// The loop fetches immediately on Start and then on every interval tick.
// Fetches run synchronously in the single polling goroutine, so a slow
// fetch coalesces ticks instead of racing a second fetch against the
// transition tracker. Fetch failures are surfaced and retried on the next
// tick with no backoff and no cap, matching the queue's documented client
// behavior.
type Poller struct {
	interval  time.Duration
	fetch     QueueFetcher
	callbacks PollerCallbacks

	// newTicker is swapped in tests for a manual tick source.
	newTicker func(time.Duration) (<-chan time.Time, func())

	mu                sync.Mutex
	watching          bool
	wasProcessing     bool
	last              models.RpaQueueStatus
	optimisticPending int

	cancel   context.CancelFunc
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewPoller creates a poller with the given fetch interval.
func NewPoller(interval time.Duration, fetch QueueFetcher, callbacks PollerCallbacks) *Poller {
	return &Poller{
		interval:  interval,
		fetch:     fetch,
		callbacks: callbacks,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Start enters the watching state and begins polling. Calling Start on a
// watching poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.watching {
		p.mu.Unlock()
		return
	}
	p.watching = true
	p.stopChan = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	stop := p.stopChan
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx, stop)
	log.Info("rpa queue poller started")
}

// Stop leaves the watching state. It cancels any in-flight fetch, waits for
// the polling goroutine to exit and resets the transition tracker. Calling
// Stop on an idle poller is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.watching {
		p.mu.Unlock()
		return
	}
	p.watching = false
	close(p.stopChan)
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	p.wasProcessing = false
	p.optimisticPending = 0
	p.mu.Unlock()
	log.Info("rpa queue poller stopped")
}

// Watching reports whether the poller is in the watching state.
func (p *Poller) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watching
}

// Status returns the last known queue status with the optimistic pending
// overlay applied.
func (p *Poller) Status() models.RpaQueueStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.overlaidLocked()
}

// MarkQueued applies an optimistic overlay after an import request was
// accepted: the queue is assumed processing and pending is bumped by the
// number of enqueued companies before the next real fetch confirms it. The
// overlay is discarded wholesale on the next authoritative snapshot.
func (p *Poller) MarkQueued(companies int) {
	if companies < 1 {
		companies = 1
	}

	p.mu.Lock()
	p.wasProcessing = true
	p.optimisticPending += companies
	status := p.overlaidLocked()
	p.mu.Unlock()

	if p.callbacks.OnStatus != nil {
		p.callbacks.OnStatus(status)
	}
}

// DismissErrors clears the queue error entries from the last snapshot. The
// next fetch replaces them with whatever the queue still reports.
func (p *Poller) DismissErrors() {
	p.mu.Lock()
	p.last.Errors = nil
	p.mu.Unlock()
}

func (p *Poller) overlaidLocked() models.RpaQueueStatus {
	status := p.last
	status.Pending += p.optimisticPending
	return status
}

func (p *Poller) loop(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	p.poll(ctx)

	ticks, stopTicker := p.newTicker(p.interval)
	defer stopTicker()

	for {
		select {
		case <-stop:
			return
		case <-ticks:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	status, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Errorf("rpa queue fetch failed: %v", err)
		if p.callbacks.OnError != nil {
			p.callbacks.OnError(err)
		}
		return
	}

	p.mu.Lock()
	p.last = *status
	p.optimisticPending = 0
	isProcessing := status.IsProcessing()
	finished := p.wasProcessing && !isProcessing
	p.wasProcessing = isProcessing
	p.mu.Unlock()

	if p.callbacks.OnStatus != nil {
		p.callbacks.OnStatus(*status)
	}
	if finished {
		log.Info("rpa queue drained, triggering audit refresh")
		if p.callbacks.OnProcessingFinished != nil {
			p.callbacks.OnProcessingFinished()
		}
	}
}
