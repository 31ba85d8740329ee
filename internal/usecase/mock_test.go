//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/adapter"
	"vessel-trajectory-service/internal/domain/ports/queue"
	"vessel-trajectory-service/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// MockUserRepo is an in-memory UserRepository. Default behavior mirrors the
// real repo's atomic adjustment semantics; individual methods can be
// overridden per test via the *Func fields.
type MockUserRepo struct {
	mu    sync.Mutex
	store map[string]*model.User

	SaveFunc                  func(ctx context.Context, tx repository.Tx, u *model.User) error
	FindByIDFunc              func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
	FindByEmailFunc           func(ctx context.Context, tx repository.Tx, email string) (*model.User, error)
	FindByClaimsFunc          func(ctx context.Context, tx repository.Tx, claims model.IdentityClaims) ([]*model.User, error)
	AdjustCreditFunc          func(ctx context.Context, tx repository.Tx, userID string, deltaMicros int64) (int64, error)
	AdjustCreditWithFloorFunc func(ctx context.Context, tx repository.Tx, userID string, deltaMicros int64) (int64, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: make(map[string]*model.User)}
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, u)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	if m.FindByEmailFunc != nil {
		return m.FindByEmailFunc(ctx, tx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.store {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockUserRepo) FindByClaims(ctx context.Context, tx repository.Tx, claims model.IdentityClaims) ([]*model.User, error) {
	if m.FindByClaimsFunc != nil {
		return m.FindByClaimsFunc(ctx, tx, claims)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.store {
		if claims.Email != "" && u.Email != strings.ToLower(claims.Email) {
			continue
		}
		if claims.Username != "" && u.Username != claims.Username {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockUserRepo) AdjustCredit(ctx context.Context, tx repository.Tx, userID string, deltaMicros int64) (int64, error) {
	if m.AdjustCreditFunc != nil {
		return m.AdjustCreditFunc(ctx, tx, userID, deltaMicros)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	u.CreditMicros += deltaMicros
	return u.CreditMicros, nil
}

func (m *MockUserRepo) AdjustCreditWithFloor(ctx context.Context, tx repository.Tx, userID string, deltaMicros int64) (int64, error) {
	if m.AdjustCreditWithFloorFunc != nil {
		return m.AdjustCreditWithFloorFunc(ctx, tx, userID, deltaMicros)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if u.CreditMicros+deltaMicros < 0 {
		return 0, domain.ErrInsufficientCredit
	}
	u.CreditMicros += deltaMicros
	return u.CreditMicros, nil
}

func (m *MockUserRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
	return nil
}

// MockJobRepo is an in-memory JobRepository whose Mark* methods reproduce the
// guarded SQL transitions, including the changed flag.
type MockJobRepo struct {
	mu    sync.Mutex
	store map[string]*model.Job

	SaveFunc       func(ctx context.Context, tx repository.Tx, job *model.Job) error
	FindByIDFunc   func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error)
	MarkFailedFunc func(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error)
}

var _ repository.JobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{store: make(map[string]*model.Job)}
}

func (m *MockJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.store[job.ID] = &cp
	return nil
}

func (m *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *MockJobRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, submitMin, submitMax *time.Time) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.store {
		if j.UserID != userID {
			continue
		}
		if submitMin != nil && j.Submit.Before(*submitMin) {
			continue
		}
		if submitMax != nil && j.Submit.After(*submitMax) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockJobRepo) ListStalled(ctx context.Context, tx repository.Tx, runningBefore, pendingBefore time.Time) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Job
	for _, j := range m.store {
		stalledRunning := j.Status == model.JobStatusRunning && j.Start != nil && j.Start.Before(runningBefore)
		stalledPending := j.Status == model.JobStatusPending && j.Submit.Before(pendingBefore)
		if stalledRunning || stalledPending {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockJobRepo) MarkRunning(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok || j.Status != model.JobStatusPending {
		return false, nil
	}
	j.Status = model.JobStatusRunning
	j.Start = &at
	return true, nil
}

func (m *MockJobRepo) MarkDone(ctx context.Context, tx repository.Tx, id string, info json.RawMessage, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok || j.Status.Terminal() {
		return false, nil
	}
	j.Status = model.JobStatusDone
	j.Info = info
	j.End = &at
	return true, nil
}

func (m *MockJobRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, at time.Time) (bool, error) {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, tx, id, at)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok || j.Status.Terminal() {
		return false, nil
	}
	j.Status = model.JobStatusFailed
	j.End = &at
	return true, nil
}

func (m *MockJobRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
	return nil
}

// =============================
// Queue and adapters
// =============================

// MockDispatcher records submitted jobs and hands back the registered
// listener so tests can fire queue events by hand.
type MockDispatcher struct {
	mu       sync.Mutex
	Added    []*model.Job
	Listener queue.EventsListener

	AddJobFunc func(ctx context.Context, job *model.Job) (string, error)
}

var _ queue.Dispatcher = (*MockDispatcher)(nil)

func NewMockDispatcher() *MockDispatcher { return &MockDispatcher{} }

func (m *MockDispatcher) AddJob(ctx context.Context, job *model.Job) (string, error) {
	if m.AddJobFunc != nil {
		return m.AddJobFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.Added = append(m.Added, &cp)
	return job.ID, nil
}

func (m *MockDispatcher) SetJobEventsListener(l queue.EventsListener) { m.Listener = l }

// MockPredictor returns a fixed forecast unless overridden.
type MockPredictor struct {
	PredictFunc func(ctx context.Context, session *model.TrajectorySession) ([]model.Point, error)
}

var _ adapter.PredictorAdapter = (*MockPredictor)(nil)

func (m *MockPredictor) Predict(ctx context.Context, session *model.TrajectorySession) ([]model.Point, error) {
	if m.PredictFunc != nil {
		return m.PredictFunc(ctx, session)
	}
	out := make([]model.Point, session.NPred)
	last := session.GivenPoints[len(session.GivenPoints)-1]
	for i := range out {
		out[i] = model.Point{
			PointID:   last.PointID + i + 1,
			Lat:       last.Lat + float64(i+1)*0.001,
			Long:      last.Long + float64(i+1)*0.001,
			Timestamp: last.Timestamp.Add(time.Duration(i+1) * time.Minute),
		}
	}
	return out, nil
}

// =============================
// Infra helpers
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx runs fn immediately with NoTX unless a test overrides WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
