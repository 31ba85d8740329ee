package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/queue"
	"vessel-trajectory-service/internal/domain/ports/repository"
	"vessel-trajectory-service/internal/infra/logging"
	"vessel-trajectory-service/internal/infra/metrics"
)

// Compile-time checks
var (
	_ JobUseCase           = (*jobUC)(nil)
	_ queue.EventsListener = (*jobUC)(nil)
)

// JobStatusView is the caller-facing status projection.
type JobStatusView struct {
	ID     string          `json:"id"`
	Status model.JobStatus `json:"status"`
}

// Stats aggregates a timing metric over completed jobs. All three fields are
// NaN when no completed job matched, a deliberate "no data" sentinel.
type Stats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

// MarshalJSON renders the NaN sentinel as null, which encoding/json would
// otherwise reject.
func (s Stats) MarshalJSON() ([]byte, error) {
	nullable := func(v float64) *float64 {
		if math.IsNaN(v) {
			return nil
		}
		return &v
	}
	return json.Marshal(struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
		Avg *float64 `json:"avg"`
	}{nullable(s.Min), nullable(s.Max), nullable(s.Avg)})
}

// MetricFunc computes a duration in milliseconds from a completed job's
// submit/start/end triple.
type MetricFunc func(job *model.Job) float64

// JobUseCase owns the job lifecycle state machine and the credit settlement
// protocol: debit at admission, refund on failure, nothing on completion.
// It is also the sole subscriber of the dispatcher's event stream.
type JobUseCase interface {
	NewJobRequest(ctx context.Context, userID string, kind model.JobKind, payload json.RawMessage) (string, error)
	GetJobStatus(ctx context.Context, jobID string) (*JobStatusView, error)
	// GetJobInfo returns the enriched payload once the job is DONE. For an
	// in-flight job it returns domain.ErrJobNotCompleted, which callers treat
	// as a normal "not yet" sentinel rather than a failure.
	GetJobInfo(ctx context.Context, jobID string) (json.RawMessage, error)
	GetUserJobs(ctx context.Context, userID string, submitMin, submitMax *time.Time) ([]*model.Job, error)
	// ReapStalled fails and refunds jobs that have sat in RUNNING longer than
	// olderThan, covering executors that died without a terminal event.
	ReapStalled(ctx context.Context, olderThan time.Duration) (int, error)
}

type jobUC struct {
	jobs       repository.JobRepository
	users      repository.UserRepository
	dispatcher queue.Dispatcher
	registry   *ProcessorRegistry
	tm         repository.TransactionManager
	log        *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.JobRepository,
	users repository.UserRepository,
	dispatcher queue.Dispatcher,
	registry *ProcessorRegistry,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *jobUC {
	u := &jobUC{
		jobs:       jobs,
		users:      users,
		dispatcher: dispatcher,
		registry:   registry,
		tm:         tm,
		log:        logger,
	}
	dispatcher.SetJobEventsListener(u)
	return u
}

// NewJobRequest admits one paid job: validate, price, debit, persist, enqueue.
// The debit and the PENDING record are written in one transaction, so a debit
// never exists without its job. If the queue refuses the job afterwards, the
// job is terminally failed and the debit refunded before the error surfaces.
func (u *jobUC) NewJobRequest(ctx context.Context, userID string, kind model.JobKind, payload json.RawMessage) (string, error) {
	defer logging.TraceDuration(u.log, "JobUC.NewJobRequest")()

	proc, err := u.registry.Get(kind)
	if err != nil {
		metrics.IncJobAdmitted("unknown_kind")
		return "", err
	}
	if err := proc.Validate(payload); err != nil {
		metrics.IncJobAdmitted("invalid_payload")
		return "", err
	}

	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUserNotFound
		}
		return "", err
	}

	price, err := proc.Price(payload)
	if err != nil {
		metrics.IncJobAdmitted("invalid_payload")
		return "", err
	}
	if user.CreditMicros < price {
		metrics.IncJobAdmitted("insufficient_credit")
		return "", domain.ErrInsufficientCredit
	}

	job, err := model.NewJob(userID, kind, price, payload)
	if err != nil {
		return "", err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.users.AdjustCreditWithFloor(ctx, tx, userID, -price); err != nil {
			return err
		}
		return u.jobs.Save(ctx, tx, job)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientCredit) {
			metrics.IncJobAdmitted("insufficient_credit")
		}
		return "", err
	}
	metrics.IncCreditMovement("debit", price)

	if _, err := u.dispatcher.AddJob(ctx, job); err != nil {
		u.log.Error().Err(err).Str("job_id", job.ID).Msg("enqueue failed, refunding admission debit")
		u.failAndRefund(ctx, job.ID, userID, price)
		metrics.IncJobAdmitted("transport_error")
		return "", fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	metrics.IncJobAdmitted("accepted")
	u.log.Info().Str("job_id", job.ID).Str("user_id", userID).
		Int64("price_micros", price).Msg("job admitted")
	return job.ID, nil
}

func (u *jobUC) GetJobStatus(ctx context.Context, jobID string) (*JobStatusView, error) {
	job, err := u.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobStatusView{ID: job.ID, Status: job.Status}, nil
}

func (u *jobUC) GetJobInfo(ctx context.Context, jobID string) (json.RawMessage, error) {
	job, err := u.findJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusDone {
		return nil, domain.ErrJobNotCompleted
	}
	return job.Info, nil
}

func (u *jobUC) GetUserJobs(ctx context.Context, userID string, submitMin, submitMax *time.Time) ([]*model.Job, error) {
	return u.jobs.ListByUser(ctx, repository.NoTX, userID, submitMin, submitMax)
}

// Statistics reduces metric over the DONE jobs in the list. Jobs in any other
// state carry no meaningful timing and are skipped, as are DONE rows missing a
// timestamp: a lost running write leaves start NULL even though the terminal
// transition landed, and the metric helpers dereference both ends.
func Statistics(jobs []*model.Job, metric MetricFunc) Stats {
	var (
		min = math.Inf(1)
		max = math.Inf(-1)
		sum float64
		cnt int
	)
	for _, j := range jobs {
		if j.Status != model.JobStatusDone || j.Start == nil || j.End == nil {
			continue
		}
		v := metric(j)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
		cnt++
	}
	if cnt == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Avg: math.NaN()}
	}
	return Stats{Min: min, Max: max, Avg: sum / float64(cnt)}
}

func (u *jobUC) findJob(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, domain.ErrJobNotFound
	}
	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// pendingReapFactor stretches the stall window for PENDING jobs. A PENDING
// job may legitimately wait behind a deep queue backlog, so only one that has
// sat for several full stall windows is treated as debited-but-never-enqueued.
// If its queue item does turn up later, the guarded transitions make the late
// events no-ops and the refund still happens exactly once.
const pendingReapFactor = 6

// ReapStalled settles RUNNING jobs whose start is older than olderThan, plus
// PENDING jobs submitted more than pendingReapFactor stall windows ago.
// Each job goes through the same guarded fail-and-refund transaction as a
// queue failure event, so a racing terminal event simply wins.
func (u *jobUC) ReapStalled(ctx context.Context, olderThan time.Duration) (int, error) {
	now := time.Now()
	stalled, err := u.jobs.ListStalled(ctx, repository.NoTX,
		now.Add(-olderThan), now.Add(-olderThan*pendingReapFactor))
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, job := range stalled {
		refunded := false
		err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			changed, err := u.jobs.MarkFailed(ctx, tx, job.ID, time.Now())
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
			if _, err := u.users.AdjustCredit(ctx, tx, job.UserID, job.PriceMicros); err != nil {
				return err
			}
			refunded = true
			return nil
		})
		if err != nil {
			u.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to reap stalled job")
			continue
		}
		if refunded {
			reaped++
			metrics.IncJobProcessed("stalled")
			metrics.IncCreditMovement("refund", job.PriceMicros)
			u.log.Warn().Str("job_id", job.ID).Str("status", string(job.Status)).
				Time("submitted_at", job.Submit).Msg("stalled job failed and refunded")
		}
	}
	return reaped, nil
}

// ----- queue event handlers -----
//
// These run on the queue's worker goroutines, concurrently with the public
// operations above. All status writes are guarded in SQL, so a redelivered
// event degrades to a no-op instead of rewinding the state machine.

func (u *jobUC) OnError(err error) {
	u.log.Error().Err(err).Msg("queue transport error")
}

func (u *jobUC) OnPending(key string) {
	u.log.Info().Str("job_id", key).Msg("job is pending")
}

func (u *jobUC) OnRunning(item queue.Item) {
	ctx := context.Background()
	changed, err := u.jobs.MarkRunning(ctx, repository.NoTX, item.Key, time.Now())
	if err != nil {
		u.log.Error().Err(err).Str("job_id", item.Key).Msg("failed to mark job running")
		return
	}
	if changed {
		u.log.Info().Str("job_id", item.Key).Msg("job is running")
	}
}

func (u *jobUC) OnComplete(item queue.Item, result json.RawMessage) {
	ctx := context.Background()
	proc, err := u.registry.Get(item.Kind)
	if err != nil {
		u.log.Error().Err(err).Str("job_id", item.Key).Msg("no processor for completed job")
		return
	}
	merged, err := proc.MergeResult(item.Payload, result)
	if err != nil {
		u.log.Error().Err(err).Str("job_id", item.Key).Msg("failed to merge job result")
		return
	}
	changed, err := u.jobs.MarkDone(ctx, repository.NoTX, item.Key, merged, time.Now())
	if err != nil {
		u.log.Error().Err(err).Str("job_id", item.Key).Msg("failed to mark job done")
		return
	}
	if !changed {
		return
	}
	metrics.IncJobProcessed("done")
	u.observeTimings(ctx, item.Key)
	u.log.Info().Str("job_id", item.Key).Msg("job is completed")
}

// OnFailed flips the job to FAILED and refunds the admission debit. Both
// writes share one transaction and key off the guarded status change, so a
// job is refunded exactly once no matter how often the event is redelivered.
func (u *jobUC) OnFailed(item queue.Item, cause error) {
	ctx := context.Background()
	refunded := false
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		changed, err := u.jobs.MarkFailed(ctx, tx, item.Key, time.Now())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if _, err := u.users.AdjustCredit(ctx, tx, item.UserID, item.PriceMicros); err != nil {
			return err
		}
		refunded = true
		return nil
	})
	if err != nil {
		u.log.Error().Err(err).Str("job_id", item.Key).Msg("failed to settle failed job")
		return
	}
	if refunded {
		metrics.IncJobProcessed("failed")
		metrics.IncCreditMovement("refund", item.PriceMicros)
		u.log.Warn().Err(cause).Str("job_id", item.Key).
			Int64("refund_micros", item.PriceMicros).Msg("job failed, price refunded")
	}
}

// failAndRefund is the compensation path for a job that was debited and
// persisted but never made it into the queue.
func (u *jobUC) failAndRefund(ctx context.Context, jobID, userID string, priceMicros int64) {
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		changed, err := u.jobs.MarkFailed(ctx, tx, jobID, time.Now())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		_, err = u.users.AdjustCredit(ctx, tx, userID, priceMicros)
		return err
	})
	if err != nil {
		u.log.Error().Err(err).Str("job_id", jobID).Msg("compensation after enqueue failure did not settle")
		return
	}
	metrics.IncJobProcessed("failed")
	metrics.IncCreditMovement("refund", priceMicros)
}

func (u *jobUC) observeTimings(ctx context.Context, jobID string) {
	job, err := u.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil || job.Start == nil || job.End == nil {
		return
	}
	metrics.ObserveJobQueueMs(job.QueueTime())
	metrics.ObserveJobProcessMs(job.ProcessTime())
}
