package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"vessel-trajectory-service/internal/config"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/queue"
	"vessel-trajectory-service/internal/infra/worker"
)

// Ensure compile-time conformance
var _ queue.Queue = (*Queue)(nil)

// Queue is a redis-list work queue with at-least-once delivery. Pending keys
// wait on one list; a blocking pop moves a key onto the processing list,
// where it stays until the terminal event is emitted. Keys stranded on the
// processing list by a crash are pushed back to pending on the next Start,
// which is where redelivery comes from.
type Queue struct {
	cli      *redis.Client
	cfg      config.QueueConfig
	pool     *worker.Pool
	exec     queue.Executor
	listener queue.EventsListener
	log      *zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewQueue(c *Client, cfg config.QueueConfig, pool *worker.Pool, logger *zerolog.Logger) *Queue {
	return &Queue{
		cli:  c.cli,
		cfg:  cfg,
		pool: pool,
		log:  logger,
		done: make(chan struct{}),
	}
}

func (q *Queue) pendingKey() string    { return q.cfg.Namespace + ":pending" }
func (q *Queue) processingKey() string { return q.cfg.Namespace + ":processing" }
func (q *Queue) itemKey(k string) string {
	return q.cfg.Namespace + ":item:" + k
}

func (q *Queue) SetExecutor(exec queue.Executor)          { q.exec = exec }
func (q *Queue) SetEventsListener(l queue.EventsListener) { q.listener = l }

// Enqueue stores the item body and pushes its key onto the pending list.
// item.Key is honored when set so the queue key can equal the job record id.
func (q *Queue) Enqueue(ctx context.Context, item queue.Item) (string, error) {
	if item.Key == "" {
		item.Key = model.NewJobID(time.Now())
	}
	body, err := json.Marshal(item)
	if err != nil {
		return "", err
	}

	pipe := q.cli.TxPipeline()
	pipe.Set(ctx, q.itemKey(item.Key), body, 0)
	pipe.LPush(ctx, q.pendingKey(), item.Key)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", item.Key, err)
	}

	if q.listener != nil {
		q.listener.OnPending(item.Key)
	}
	return item.Key, nil
}

func (q *Queue) Start(ctx context.Context) error {
	if q.exec == nil {
		return errors.New("queue started without executor")
	}
	ctx, q.cancel = context.WithCancel(ctx)

	if err := q.requeueOrphans(ctx); err != nil {
		return err
	}

	q.pool.Start(ctx)
	go q.fetchLoop(ctx)
	return nil
}

// Stop is a no-op if Start never ran; q.done is only closed by the fetch
// loop, so waiting on it would block forever.
func (q *Queue) Stop() {
	if q.cancel == nil {
		return
	}
	q.cancel()
	<-q.done
	q.pool.Stop()
}

// requeueOrphans moves keys left on the processing list by a previous run
// back to pending. Their consumers are gone; the items must be redelivered.
func (q *Queue) requeueOrphans(ctx context.Context) error {
	for {
		key, err := q.cli.RPopLPush(ctx, q.processingKey(), q.pendingKey()).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("requeue orphans: %w", err)
		}
		q.log.Warn().Str("job_id", key).Msg("requeued orphaned queue item")
	}
}

func (q *Queue) fetchLoop(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		key, err := q.cli.BRPopLPush(ctx, q.pendingKey(), q.processingKey(), q.cfg.PollTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.emitError(fmt.Errorf("queue pop: %w", err))
			time.Sleep(time.Second)
			continue
		}

		item, err := q.loadItem(ctx, key)
		if err != nil {
			q.emitError(err)
			q.ack(ctx, key)
			continue
		}

		if err := q.pool.Submit(ctx, func(ctx context.Context) error {
			q.runItem(ctx, item)
			return nil
		}); err != nil {
			// Shutting down; the key stays on processing and is redelivered
			// on the next start.
			return
		}
	}
}

func (q *Queue) loadItem(ctx context.Context, key string) (queue.Item, error) {
	body, err := q.cli.Get(ctx, q.itemKey(key)).Result()
	if err != nil {
		return queue.Item{}, fmt.Errorf("load item %s: %w", key, err)
	}
	var item queue.Item
	if err := json.Unmarshal([]byte(body), &item); err != nil {
		return queue.Item{}, fmt.Errorf("decode item %s: %w", key, err)
	}
	return item, nil
}

func (q *Queue) runItem(ctx context.Context, item queue.Item) {
	if q.listener != nil {
		q.listener.OnRunning(item)
	}

	result, err := q.exec(ctx, item)

	if q.listener != nil {
		if err != nil {
			q.listener.OnFailed(item, err)
		} else {
			q.listener.OnComplete(item, result)
		}
	}

	// Terminal event delivered; only now does the item leave the queue.
	q.ack(context.Background(), item.Key)
}

func (q *Queue) ack(ctx context.Context, key string) {
	pipe := q.cli.TxPipeline()
	pipe.LRem(ctx, q.processingKey(), 1, key)
	pipe.Del(ctx, q.itemKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		q.emitError(fmt.Errorf("ack %s: %w", key, err))
	}
}

func (q *Queue) emitError(err error) {
	q.log.Error().Err(err).Msg("queue error")
	if q.listener != nil {
		q.listener.OnError(err)
	}
}
