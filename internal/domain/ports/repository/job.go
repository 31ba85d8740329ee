package repository

import (
	"context"
	"encoding/json"
	"time"

	"vessel-trajectory-service/internal/domain/model"
)

// JobRepository persists jobs. The Mark* methods are guarded status writes:
// they apply the transition only when the current status allows it and report
// whether a row actually changed. Redelivered queue events therefore collapse
// into no-ops, and a terminal transition's side effects (the failure refund)
// can key off the returned flag to run exactly once.
type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	// ListByUser filters by submission timestamp; either bound may be nil.
	ListByUser(ctx context.Context, tx Tx, userID string, submitMin, submitMax *time.Time) ([]*model.Job, error)
	// ListStalled returns RUNNING jobs whose start precedes runningBefore and
	// PENDING jobs whose submission precedes pendingBefore. Used by the reaper
	// to settle work whose executor died without a terminal event and
	// admissions that were debited but never reached the queue.
	ListStalled(ctx context.Context, tx Tx, runningBefore, pendingBefore time.Time) ([]*model.Job, error)
	MarkRunning(ctx context.Context, tx Tx, id string, at time.Time) (bool, error)
	MarkDone(ctx context.Context, tx Tx, id string, info json.RawMessage, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx Tx, id string, at time.Time) (bool, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
