//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"vessel-trajectory-service/internal/domain"
	"vessel-trajectory-service/internal/domain/model"
	"vessel-trajectory-service/internal/domain/ports/repository"
	"vessel-trajectory-service/internal/usecase"
)

func newUserFixture(t *testing.T) (*MockUserRepo, usecase.UserUseCase) {
	t.Helper()
	users := NewMockUserRepo()
	uc := usecase.NewUserUseCase(users, NewMockTxManager(), newTestLogger())
	return users, uc
}

func mustUser(t *testing.T, repo *MockUserRepo, email, username string, role model.Role) *model.User {
	t.Helper()
	u, err := model.NewUser("", email, username, role)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	if err := repo.Save(context.Background(), repository.NoTX, u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return u
}

func TestUserUseCase_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves claims matching exactly one user", func(t *testing.T) {
		users, uc := newUserFixture(t)
		u := mustUser(t, users, "ahab@example.com", "ahab", model.RoleUser)
		mustUser(t, users, "ishmael@example.com", "ishmael", model.RoleUser)

		id, err := uc.Authenticate(ctx, model.IdentityClaims{Email: "ahab@example.com"})
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if id != u.ID {
			t.Errorf("resolved wrong user: %s", id)
		}
	})

	t.Run("rejects claims matching no user", func(t *testing.T) {
		_, uc := newUserFixture(t)
		_, err := uc.Authenticate(ctx, model.IdentityClaims{Email: "ghost@example.com"})
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("rejects ambiguous claims", func(t *testing.T) {
		users, uc := newUserFixture(t)
		mustUser(t, users, "a@example.com", "same_name", model.RoleUser)
		mustUser(t, users, "b@example.com", "same_name", model.RoleUser)

		// Username-only claims match both users; that is a failed lookup, not
		// a pick-one.
		_, err := uc.Authenticate(ctx, model.IdentityClaims{Username: "same_name"})
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound for ambiguous claims, got %v", err)
		}
	})

	t.Run("rejects empty claims without hitting the repo", func(t *testing.T) {
		users, uc := newUserFixture(t)
		users.FindByClaimsFunc = func(ctx context.Context, tx repository.Tx, claims model.IdentityClaims) ([]*model.User, error) {
			t.Error("repo must not be queried for empty claims")
			return nil, nil
		}
		if _, err := uc.Authenticate(ctx, model.IdentityClaims{}); !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestUserUseCase_CheckAdmin(t *testing.T) {
	ctx := context.Background()
	users, uc := newUserFixture(t)
	admin := mustUser(t, users, "root@example.com", "root", model.RoleAdmin)
	regular := mustUser(t, users, "crew@example.com", "crew", model.RoleUser)

	if ok, err := uc.CheckAdmin(ctx, admin.ID); err != nil || !ok {
		t.Errorf("expected admin, got ok=%v err=%v", ok, err)
	}
	if ok, err := uc.CheckAdmin(ctx, regular.ID); err != nil || ok {
		t.Errorf("expected non-admin, got ok=%v err=%v", ok, err)
	}
	if _, err := uc.CheckAdmin(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserUseCase_Credit(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the balance projection", func(t *testing.T) {
		users, uc := newUserFixture(t)
		u := mustUser(t, users, "crew@example.com", "crew", model.RoleUser)
		users.AdjustCredit(ctx, repository.NoTX, u.ID, model.CreditsToMicros(2.5))

		view, err := uc.GetUserCredit(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetUserCredit failed: %v", err)
		}
		if view.Username != "crew" || view.Email != "crew@example.com" {
			t.Errorf("unexpected projection: %+v", view)
		}
		if view.Credit() != 2.5 {
			t.Errorf("expected 2.5 credits, got %v", view.Credit())
		}
	})

	t.Run("charge adjusts by email and returns the new balance", func(t *testing.T) {
		users, uc := newUserFixture(t)
		u := mustUser(t, users, "crew@example.com", "crew", model.RoleUser)
		users.AdjustCredit(ctx, repository.NoTX, u.ID, model.CreditsToMicros(1.0))

		view, err := uc.ChargeCredit(ctx, model.CreditsToMicros(4.0), "crew@example.com")
		if err != nil {
			t.Fatalf("ChargeCredit failed: %v", err)
		}
		if view.Credit() != 5.0 {
			t.Errorf("expected 5.0 credits, got %v", view.Credit())
		}

		// Administrative charges have no floor: balances may go negative.
		view, err = uc.ChargeCredit(ctx, model.CreditsToMicros(-7.0), "crew@example.com")
		if err != nil {
			t.Fatalf("negative ChargeCredit failed: %v", err)
		}
		if view.Credit() != -2.0 {
			t.Errorf("expected -2.0 credits, got %v", view.Credit())
		}
	})

	t.Run("charge for an unknown email fails", func(t *testing.T) {
		_, uc := newUserFixture(t)
		_, err := uc.ChargeCredit(ctx, model.CreditsToMicros(1.0), "ghost@example.com")
		if !errors.Is(err, domain.ErrUserNotFound) {
			t.Fatalf("expected ErrUserNotFound, got %v", err)
		}
	})
}
