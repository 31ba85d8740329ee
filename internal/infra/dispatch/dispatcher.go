package dispatch

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/queue"
	"vessel-trajectory-service/internal/usecase"
)

// Ensure compile-time conformance
var (
	_ queue.Dispatcher     = (*Dispatcher)(nil)
	_ queue.EventsListener = (*Dispatcher)(nil)
)

// Dispatcher sits between the settlement layer and the queue. It submits
// jobs under their record id, runs the work processor as the queue's
// executor, and relays queue events to the single registered listener.
// It keeps no job state of its own.
type Dispatcher struct {
	q        queue.Queue
	registry *usecase.ProcessorRegistry
	listener queue.EventsListener
	log      *zerolog.Logger
}

func NewDispatcher(q queue.Queue, registry *usecase.ProcessorRegistry, logger *zerolog.Logger) *Dispatcher {
	d := &Dispatcher{q: q, registry: registry, log: logger}
	q.SetExecutor(d.execute)
	q.SetEventsListener(d)
	return d
}

// AddJob enqueues the job using its record id as the queue key, which is what
// lets every later queue event resolve straight back to the persisted row.
func (d *Dispatcher) AddJob(ctx context.Context, job *model.Job) (string, error) {
	return d.q.Enqueue(ctx, queue.Item{
		Key:         job.ID,
		UserID:      job.UserID,
		Kind:        job.Kind,
		PriceMicros: job.PriceMicros,
		Payload:     job.Info,
	})
}

func (d *Dispatcher) SetJobEventsListener(l queue.EventsListener) { d.listener = l }

// execute is the one place the work processor's Process runs.
func (d *Dispatcher) execute(ctx context.Context, item queue.Item) (json.RawMessage, error) {
	proc, err := d.registry.Get(item.Kind)
	if err != nil {
		return nil, err
	}
	return proc.Process(ctx, item.Payload)
}

func (d *Dispatcher) OnError(err error) {
	if d.listener != nil {
		d.listener.OnError(err)
	}
}

func (d *Dispatcher) OnPending(key string) {
	if d.listener != nil {
		d.listener.OnPending(key)
	}
}

func (d *Dispatcher) OnRunning(item queue.Item) {
	if d.listener != nil {
		d.listener.OnRunning(item)
	}
}

func (d *Dispatcher) OnComplete(item queue.Item, result json.RawMessage) {
	if d.listener != nil {
		d.listener.OnComplete(item, result)
	}
}

func (d *Dispatcher) OnFailed(item queue.Item, err error) {
	if d.listener != nil {
		d.listener.OnFailed(item, err)
	}
}
