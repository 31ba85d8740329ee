package queue

import (
	"context"
	"encoding/json"

	"vessel-trajectory-service/internal/domain/model"
)

// Item is the unit of work tracked by the queue. Key equals the persisted
// job id so an event resolves to its record without a lookup table.
type Item struct {
	Key         string          `json:"key"`
	UserID      string          `json:"user_id"`
	Kind        model.JobKind   `json:"kind"`
	PriceMicros int64           `json:"price_micros"`
	Payload     json.RawMessage `json:"payload"`
}

// Executor runs one delivered item and returns its result. The queue invokes
// it at least once per item; a worker crash between delivery and the terminal
// event leads to redelivery, so downstream handlers must be idempotent.
type Executor func(ctx context.Context, item Item) (json.RawMessage, error)

// EventsListener receives the queue lifecycle stream. The queue supports at
// most one listener; events for the same key arrive in causal order
// (pending -> running -> terminal) apart from redelivery.
type EventsListener interface {
	OnError(err error)
	OnPending(key string)
	OnRunning(item Item)
	OnComplete(item Item, result json.RawMessage)
	OnFailed(item Item, err error)
}

// Queue is an at-least-once delivery work queue.
type Queue interface {
	// Enqueue submits the item, honoring item.Key as the queue key when set
	// and assigning one otherwise. Returns the effective key.
	Enqueue(ctx context.Context, item Item) (string, error)
	SetExecutor(exec Executor)
	SetEventsListener(l EventsListener)
	Start(ctx context.Context) error
	Stop()
}

// Dispatcher is the thin adapter between the settlement layer and the queue:
// it submits jobs and relays queue events to the registered listener. It
// holds no job state of its own.
type Dispatcher interface {
	AddJob(ctx context.Context, job *model.Job) (string, error)
	SetJobEventsListener(l EventsListener)
}
