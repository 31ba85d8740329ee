package usecase

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/repository"
	"vessel-trajectory-service/internal/infra/logging"
	"vessel-trajectory-service/internal/infra/metrics"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// CreditView is the caller-facing balance projection.
type CreditView struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	CreditMicros int64  `json:"-"`
}

// Credit returns the balance as a decimal credit amount for serialization.
func (v CreditView) Credit() float64 { return model.MicrosToCredits(v.CreditMicros) }

// UserUseCase exposes identity resolution and credit administration.
type UserUseCase interface {
	// Authenticate resolves decoded identity claims to exactly one user id.
	// Zero matches and ambiguous matches are the same failure: the identity
	// does not resolve.
	Authenticate(ctx context.Context, claims model.IdentityClaims) (string, error)
	CheckAdmin(ctx context.Context, userID string) (bool, error)
	GetUserCredit(ctx context.Context, userID string) (*CreditView, error)
	// ChargeCredit adjusts the balance of the user with the given email by
	// amountMicros (negative charges, positive tops up) and returns the
	// updated projection.
	ChargeCredit(ctx context.Context, amountMicros int64, email string) (*CreditView, error)
}

type userUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, tm: tm, log: logger}
}

func (u *userUC) Authenticate(ctx context.Context, claims model.IdentityClaims) (string, error) {
	defer logging.TraceDuration(u.log, "UserUC.Authenticate")()

	if claims.IsZero() {
		return "", domain.ErrUserNotFound
	}
	matches, err := u.users.FindByClaims(ctx, repository.NoTX, claims)
	if err != nil {
		return "", err
	}
	if len(matches) != 1 {
		u.log.Warn().Int("matches", len(matches)).Str("email", claims.Email).
			Msg("identity claims did not resolve to one user")
		return "", domain.ErrUserNotFound
	}
	return matches[0].ID, nil
}

func (u *userUC) CheckAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, domain.ErrUserNotFound
		}
		return false, err
	}
	return user.IsAdmin(), nil
}

func (u *userUC) GetUserCredit(ctx context.Context, userID string) (*CreditView, error) {
	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &CreditView{Username: user.Username, Email: user.Email, CreditMicros: user.CreditMicros}, nil
}

func (u *userUC) ChargeCredit(ctx context.Context, amountMicros int64, email string) (*CreditView, error) {
	defer logging.TraceDuration(u.log, "UserUC.ChargeCredit")()

	var view *CreditView
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		user, err := u.users.FindByEmail(ctx, tx, email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		balance, err := u.users.AdjustCredit(ctx, tx, user.ID, amountMicros)
		if err != nil {
			return err
		}
		view = &CreditView{Username: user.Username, Email: user.Email, CreditMicros: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncCreditMovement("admin_adjust", amountMicros)
	u.log.Info().Str("email", email).Int64("amount_micros", amountMicros).
		Int64("balance_micros", view.CreditMicros).Msg("credit adjusted")
	return view, nil
}
