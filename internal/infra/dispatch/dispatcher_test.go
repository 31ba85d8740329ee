//go:build !integration

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"vessel-trajectory-service/internal/config"
	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/adapter"
	"vessel-trajectory-service/internal/domain/ports/queue"
	"vessel-trajectory-service/internal/usecase"
)

// fakeQueue records enqueued items and exposes the executor and listener the
// dispatcher registers, so tests can drive the queue side by hand.
type fakeQueue struct {
	mu       sync.Mutex
	items    []queue.Item
	exec     queue.Executor
	listener queue.EventsListener

	enqueueErr error
}

var _ queue.Queue = (*fakeQueue)(nil)

func (q *fakeQueue) Enqueue(ctx context.Context, item queue.Item) (string, error) {
	if q.enqueueErr != nil {
		return "", q.enqueueErr
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return item.Key, nil
}

func (q *fakeQueue) SetExecutor(exec queue.Executor)          { q.exec = exec }
func (q *fakeQueue) SetEventsListener(l queue.EventsListener) { q.listener = l }
func (q *fakeQueue) Start(ctx context.Context) error          { return nil }
func (q *fakeQueue) Stop()                                    {}

type stubPredictor struct{}

func (stubPredictor) Predict(ctx context.Context, s *model.TrajectorySession) ([]model.Point, error) {
	out := make([]model.Point, s.NPred)
	return out, nil
}

var _ adapter.PredictorAdapter = stubPredictor{}

// recordingListener captures relayed events.
type recordingListener struct {
	mu       sync.Mutex
	pending  []string
	running  []string
	complete []string
	failed   []string
	errs     []error
}

func (l *recordingListener) OnError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, err)
}

func (l *recordingListener) OnPending(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, key)
}

func (l *recordingListener) OnRunning(item queue.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = append(l.running, item.Key)
}

func (l *recordingListener) OnComplete(item queue.Item, result json.RawMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.complete = append(l.complete, item.Key)
}

func (l *recordingListener) OnFailed(item queue.Item, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failed = append(l.failed, item.Key)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeQueue) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	registry := usecase.NewProcessorRegistry(usecase.NewSessionJobProcessor(stubPredictor{}, config.PricingConfig{
		BasePoints: 100, BaseRateMicros: 5_000, ExtendedRateMicros: 6_000, ExtendedSurchargeMicros: 500_000,
	}))
	q := &fakeQueue{}
	return NewDispatcher(q, registry, &logger), q
}

func TestDispatcher_AddJob(t *testing.T) {
	d, q := newTestDispatcher(t)
	payload := json.RawMessage(`{"session_id":"s1","vessel_id":"v1","n_pred":2,"given_points":[]}`)
	job, err := model.NewJob("user-1", model.JobKindTrajectorySession, 10_000, payload)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	key, err := d.AddJob(context.Background(), job)
	if err != nil {
		t.Fatalf("AddJob failed: %v", err)
	}
	if key != job.ID {
		t.Errorf("queue key %q must equal the job id %q", key, job.ID)
	}
	if len(q.items) != 1 {
		t.Fatalf("expected one enqueued item, got %d", len(q.items))
	}
	item := q.items[0]
	if item.UserID != "user-1" || item.PriceMicros != 10_000 || item.Kind != model.JobKindTrajectorySession {
		t.Errorf("item lost job fields: %+v", item)
	}
	if string(item.Payload) != string(payload) {
		t.Errorf("payload not carried: %s", item.Payload)
	}
}

func TestDispatcher_AddJobPropagatesEnqueueError(t *testing.T) {
	d, q := newTestDispatcher(t)
	q.enqueueErr = errors.New("redis down")

	payload := json.RawMessage(`{"n_pred":1}`)
	job, _ := model.NewJob("user-1", model.JobKindTrajectorySession, 5_000, payload)
	if _, err := d.AddJob(context.Background(), job); err == nil {
		t.Fatal("expected enqueue error to propagate")
	}
}

func TestDispatcher_ExecuteRoutesByKind(t *testing.T) {
	_, q := newTestDispatcher(t)

	t.Run("known kind runs the processor", func(t *testing.T) {
		payload := json.RawMessage(`{"session_id":"s1","vessel_id":"v1","n_pred":3,"given_points":[` +
			`{"point_id":1,"lat":1,"long":2,"timestamp":"2026-03-01T10:00:00Z"},` +
			`{"point_id":2,"lat":1,"long":2,"timestamp":"2026-03-01T10:01:00Z"}]}`)
		result, err := q.exec(context.Background(), queue.Item{Key: "k1", Kind: model.JobKindTrajectorySession, Payload: payload})
		if err != nil {
			t.Fatalf("execute failed: %v", err)
		}
		var out struct {
			PredPoints []model.Point `json:"pred_points"`
		}
		if err := json.Unmarshal(result, &out); err != nil || len(out.PredPoints) != 3 {
			t.Errorf("unexpected result: %s err=%v", result, err)
		}
	})

	t.Run("unknown kind fails the item", func(t *testing.T) {
		_, err := q.exec(context.Background(), queue.Item{Key: "k2", Kind: model.JobKind("etl")})
		if !errors.Is(err, domain.ErrUnknownJobKind) {
			t.Fatalf("expected ErrUnknownJobKind, got %v", err)
		}
	})
}

func TestDispatcher_RelaysEvents(t *testing.T) {
	d, q := newTestDispatcher(t)
	rec := &recordingListener{}
	d.SetJobEventsListener(rec)

	item := queue.Item{Key: "k1"}
	q.listener.OnPending("k1")
	q.listener.OnRunning(item)
	q.listener.OnComplete(item, json.RawMessage(`{}`))
	q.listener.OnFailed(item, errors.New("boom"))
	q.listener.OnError(errors.New("transport"))

	if len(rec.pending) != 1 || len(rec.running) != 1 || len(rec.complete) != 1 || len(rec.failed) != 1 || len(rec.errs) != 1 {
		t.Errorf("events not relayed: %+v", rec)
	}
}

func TestDispatcher_EventsWithoutListenerAreDropped(t *testing.T) {
	_, q := newTestDispatcher(t)
	// Must not panic with no listener registered.
	q.listener.OnPending("k1")
	q.listener.OnRunning(queue.Item{Key: "k1"})
	q.listener.OnComplete(queue.Item{Key: "k1"}, nil)
	q.listener.OnFailed(queue.Item{Key: "k1"}, errors.New("x"))
	q.listener.OnError(errors.New("x"))
}
