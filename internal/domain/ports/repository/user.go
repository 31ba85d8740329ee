package repository

import (
	"context"

	"vessel-trajectory-service/internal/domain/model"
)

// UserRepository persists users and owns the only mutation path for credit
// balances. Both adjustment methods are single atomic increments at the
// storage layer; AdjustCreditWithFloor additionally refuses any delta that
// would drive the balance negative, which is what makes concurrent admission
// debits safe without a read-then-write.
type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)
	// FindByClaims returns every user matching all non-empty claim fields.
	// Callers treat anything other than exactly one match as a failed lookup.
	FindByClaims(ctx context.Context, tx Tx, claims model.IdentityClaims) ([]*model.User, error)
	// AdjustCredit applies deltaMicros unconditionally and returns the new
	// balance. Used for refunds and admin top-ups/charges.
	AdjustCredit(ctx context.Context, tx Tx, userID string, deltaMicros int64) (int64, error)
	// AdjustCreditWithFloor applies deltaMicros only when the resulting
	// balance stays >= 0, returning domain.ErrInsufficientCredit otherwise.
	AdjustCreditWithFloor(ctx context.Context, tx Tx, userID string, deltaMicros int64) (int64, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
