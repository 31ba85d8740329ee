package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*PostgresJobRepo)(nil)

type PostgresJobRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresJobRepo(pool *pgxpool.Pool) *PostgresJobRepo {
	return &PostgresJobRepo{pool: pool}
}

const jobColumns = `id, user_id, kind, status, price_micros, info, submit, start, "end"`

func (r *PostgresJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, user_id, kind, status, price_micros, info, submit, start, "end")
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  info   = EXCLUDED.info,
  start  = EXCLUDED.start,
  "end"  = EXCLUDED."end";`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.UserID, job.Kind, job.Status, job.PriceMicros, job.Info, job.Submit, job.Start, job.End)
	return err
}

func (r *PostgresJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *PostgresJobRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, submitMin, submitMax *time.Time) ([]*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE user_id=$1`
	args := []interface{}{userID}
	if submitMin != nil {
		args = append(args, *submitMin)
		q += fmt.Sprintf(" AND submit >= $%d", len(args))
	}
	if submitMax != nil {
		args = append(args, *submitMax)
		q += fmt.Sprintf(" AND submit <= $%d", len(args))
	}
	q += ` ORDER BY submit;`

	rows, err := pickRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.UserID, &j.Kind, &j.Status, &j.PriceMicros, &j.Info, &j.Submit, &j.Start, &j.End); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (r *PostgresJobRepo) ListStalled(ctx context.Context, tx repository.Tx, runningBefore, pendingBefore time.Time) ([]*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs
WHERE (status=$1 AND start < $2) OR (status=$3 AND submit < $4)
ORDER BY submit;`
	rows, err := pickRows(ctx, r.pool, tx, q,
		model.JobStatusRunning, runningBefore, model.JobStatusPending, pendingBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		var j model.Job
		if err := rows.Scan(&j.ID, &j.UserID, &j.Kind, &j.Status, &j.PriceMicros, &j.Info, &j.Submit, &j.Start, &j.End); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// MarkRunning records the execution start. The status predicate makes the
// write idempotent: a redelivered running event finds no PENDING row and
// changes nothing.
func (r *PostgresJobRepo) MarkRunning(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	tag, err := execSQL(ctx, r.pool, tx,
		`UPDATE jobs SET status=$2, start=$3 WHERE id=$1 AND status=$4;`,
		id, model.JobStatusRunning, at, model.JobStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDone applies the terminal DONE transition once; a job already terminal
// is left untouched.
func (r *PostgresJobRepo) MarkDone(ctx context.Context, tx repository.Tx, id string, info json.RawMessage, at time.Time) (bool, error) {
	tag, err := execSQL(ctx, r.pool, tx,
		`UPDATE jobs SET status=$2, info=$3, "end"=$4 WHERE id=$1 AND status IN ($5,$6);`,
		id, model.JobStatusDone, info, at, model.JobStatusPending, model.JobStatusRunning)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed applies the terminal FAILED transition once. Callers hang the
// failure refund off the returned flag.
func (r *PostgresJobRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	tag, err := execSQL(ctx, r.pool, tx,
		`UPDATE jobs SET status=$2, "end"=$3 WHERE id=$1 AND status IN ($4,$5);`,
		id, model.JobStatusFailed, at, model.JobStatusPending, model.JobStatusRunning)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresJobRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM jobs WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	if err := row.Scan(&j.ID, &j.UserID, &j.Kind, &j.Status, &j.PriceMicros, &j.Info, &j.Submit, &j.Start, &j.End); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}
