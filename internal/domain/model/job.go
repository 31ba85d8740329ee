package model

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"vessel-trajectory-service/internal/domain"

	"github.com/oklog/ulid/v2"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusDone    JobStatus = "DONE"
	JobStatusFailed  JobStatus = "FAILED"
)

// Terminal reports whether no further transition may leave this status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// JobKind tags the payload variant a job carries. Processors are selected by
// kind from a registry rather than by virtual dispatch.
type JobKind string

const JobKindTrajectorySession JobKind = "trajectory_session"

// Job is one unit of paid asynchronous work. Its ID doubles as the queue item
// key, so a queue event resolves to its persisted record in O(1).
//
// Status, Start, End and Info move only through the settlement event handlers;
// PriceMicros is computed once at admission and never recomputed.
type Job struct {
	ID          string
	UserID      string
	Kind        JobKind
	Status      JobStatus
	PriceMicros int64
	Info        json.RawMessage
	Submit      time.Time
	Start       *time.Time
	End         *time.Time
}

// NewJobID returns a time-sortable ULID used both as the record id and the
// queue item key.
func NewJobID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), rand.Reader).String()
}

func NewJob(userID string, kind JobKind, priceMicros int64, info json.RawMessage) (*Job, error) {
	if userID == "" || kind == "" || len(info) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if priceMicros < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Job{
		ID:          NewJobID(now),
		UserID:      userID,
		Kind:        kind,
		Status:      JobStatusPending,
		PriceMicros: priceMicros,
		Info:        info,
		Submit:      now,
	}, nil
}

// CanTransition reports whether moving to next respects the monotone
// PENDING -> RUNNING -> {DONE|FAILED} machine.
func (j *Job) CanTransition(next JobStatus) bool {
	switch next {
	case JobStatusRunning:
		return j.Status == JobStatusPending
	case JobStatusDone, JobStatusFailed:
		return j.Status == JobStatusRunning || j.Status == JobStatusPending
	default:
		return false
	}
}

// QueueTime returns start-submit in milliseconds, NaN-free only for jobs that
// have started. Callers filter on DONE before using the metric helpers.
func (j *Job) QueueTime() float64 {
	return float64(j.Start.Sub(j.Submit).Milliseconds())
}

// ProcessTime returns end-start in milliseconds.
func (j *Job) ProcessTime() float64 {
	return float64(j.End.Sub(*j.Start).Milliseconds())
}

// TotalTime returns end-submit in milliseconds.
func (j *Job) TotalTime() float64 {
	return float64(j.End.Sub(j.Submit).Milliseconds())
}
