package dispatch

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/activity"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/events"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/logger"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/model"
	"github.com/asammad48/VendorView-RestaurantApp-sub002/internal/printer"
)

var ErrAlreadyStarted = errors.New("orchestrator already started")

var errStopped = errors.New("dispatcher stopped")

// PrintJob tracks one order through fetch, encode and transmit.
type PrintJob struct {
	JobID       uuid.UUID
	OrderID     int64
	OrderNumber string
	EnqueuedAt  time.Time
	Attempts    int
	LastError   string
}

// Result is pushed to registered observers when a job finishes.
type Result struct {
	Job   PrintJob
	Stage string // lookup, transmit, shutdown, done
	Err   error
}

type EventSource interface {
	OnOrderCreated(events.Handler) events.Subscription
	Off(events.Subscription)
}

type Fetcher interface {
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
}

type Encoder interface {
	Encode(model.Order) (model.ReceiptDocument, []string)
}

type Serializer interface {
	Serialize(model.ReceiptDocument) []byte
}

// Link is the device side of the pipeline, satisfied by *printer.Manager.
type Link interface {
	State() printer.State
	Send(ctx context.Context, payload []byte) error
}

type Options struct {
	Events       EventSource
	Fetcher      Fetcher
	Encoder      Encoder
	Serializer   Serializer
	Link         Link
	Activity     *activity.Log
	QueueSize    int           // default 32
	FetchTimeout time.Duration // default 10s
	Now          func() time.Time
}

// Orchestrator glues event, fetch, encode and transmit together. Jobs run
// strictly one at a time on a single worker; the device link only ever sees
// sequential writes.
type Orchestrator struct {
	events       EventSource
	fetch        Fetcher
	encode       Encoder
	serialize    Serializer
	link         Link
	activity     *activity.Log
	fetchTimeout time.Duration
	now          func() time.Time

	queue chan PrintJob

	mu        sync.Mutex
	observers []func(Result)
	sub       events.Subscription
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(opts Options) *Orchestrator {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		events:       opts.Events,
		fetch:        opts.Fetcher,
		encode:       opts.Encoder,
		serialize:    opts.Serializer,
		link:         opts.Link,
		activity:     opts.Activity,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
		queue:        make(chan PrintJob, opts.QueueSize),
	}
}

// OnResult registers a non-blocking observer for job outcomes (e.g. a toast
// surface). Observers run on the worker goroutine and must return quickly.
func (o *Orchestrator) OnResult(f func(Result)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, f)
}

func (o *Orchestrator) QueueDepth() int { return len(o.queue) }

// Start subscribes to order-created events and launches the worker.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return ErrAlreadyStarted
	}
	o.started = true

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.sub = o.events.OnOrderCreated(o.handleEvent)
	o.wg.Add(1)
	go o.worker(ctx)
	return nil
}

// Stop unsubscribes, lets the in-flight job finish and shuts the worker down.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	sub, cancel := o.sub, o.cancel
	o.mu.Unlock()

	o.events.Off(sub)
	cancel()
	o.wg.Wait()
}

// handleEvent runs on the event client's read loop. An order arriving while
// the printer is not connected is discarded, not queued: printing a stale
// receipt late is worse than not printing.
func (o *Orchestrator) handleEvent(ev model.OrderCreated) {
	if st := o.link.State(); st != printer.StateConnected {
		logger.Warn("printer not connected, discarding order", "order_id", ev.OrderID, "state", st.String())
		o.activity.Append(activity.SeverityWarning,
			"printer %s, order %s not printed", st, displayNumber(ev))
		return
	}

	job := PrintJob{
		JobID:       uuid.New(),
		OrderID:     ev.OrderID,
		OrderNumber: ev.OrderNumber,
		EnqueuedAt:  o.now().UTC(),
	}
	o.enqueue(job)
}

// enqueue is drop-oldest on overflow: bursts never block the event read loop
// and never grow the queue without bound.
func (o *Orchestrator) enqueue(job PrintJob) {
	for {
		select {
		case o.queue <- job:
			return
		default:
		}
		select {
		case dropped := <-o.queue:
			logger.Warn("print queue full, dropping oldest", "order_id", dropped.OrderID)
			o.activity.Append(activity.SeverityWarning,
				"print queue full, order %s dropped", dropped.OrderNumber)
		default:
		}
	}
}

// worker drains the queue one job at a time. ctx only stops the loop; an
// in-flight job runs to completion under its own timeouts so Stop drains
// rather than truncates it. Jobs still queued at shutdown are dead-lettered,
// never silently dropped.
func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()
	for {
		if ctx.Err() != nil {
			o.drainQueue()
			return
		}
		select {
		case <-ctx.Done():
			o.drainQueue()
			return
		case job := <-o.queue:
			o.process(job)
		}
	}
}

func (o *Orchestrator) drainQueue() {
	for {
		select {
		case job := <-o.queue:
			o.fail(job, "shutdown", errStopped)
		default:
			return
		}
	}
}

func (o *Orchestrator) process(job PrintJob) {
	job.Attempts++

	fetchCtx, cancel := context.WithTimeout(context.Background(), o.fetchTimeout)
	order, err := o.fetch.GetOrder(fetchCtx, job.OrderID)
	cancel()
	if err != nil {
		// No retry: the order exists upstream regardless of print outcome.
		o.fail(job, "lookup", err)
		return
	}

	doc, warnings := o.encode.Encode(*order)
	for _, w := range warnings {
		logger.Warn("encode default applied", "order_id", job.OrderID, "detail", w)
		o.activity.Append(activity.SeverityWarning, "%s", w)
	}

	if err := o.link.Send(context.Background(), o.serialize.Serialize(doc)); err != nil {
		o.fail(job, "transmit", err)
		return
	}

	logger.Info("order printed", "order_id", job.OrderID, "order_number", order.OrderNumber)
	o.activity.Append(activity.SeveritySuccess, "order %s printed", order.OrderNumber)
	o.report(Result{Job: job, Stage: "done"})
}

// fail is terminal for the job: it is logged as a dead-letter entry and
// reported, never silently dropped and never retried.
func (o *Orchestrator) fail(job PrintJob, stage string, err error) {
	job.LastError = err.Error()
	logger.Error("print job failed", "order_id", job.OrderID, "stage", stage, "err", err)
	o.activity.Append(activity.SeverityError,
		"print job for order %s failed at %s: %v", jobNumber(job), stage, err)
	o.report(Result{Job: job, Stage: stage, Err: err})
}

func (o *Orchestrator) report(r Result) {
	o.mu.Lock()
	obs := make([]func(Result), len(o.observers))
	copy(obs, o.observers)
	o.mu.Unlock()
	for _, f := range obs {
		f(r)
	}
}

func displayNumber(ev model.OrderCreated) string {
	if ev.OrderNumber != "" {
		return ev.OrderNumber
	}
	return "#" + strconv.FormatInt(ev.OrderID, 10)
}

func jobNumber(job PrintJob) string {
	if job.OrderNumber != "" {
		return job.OrderNumber
	}
	return "#" + strconv.FormatInt(job.OrderID, 10)
}
