package model

import (
	"strings"
	"time"

	"vessel-trajectory-service/internal/domain"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// MicrosPerCredit is the fixed scale for credit amounts. Balances and prices
// are carried as int64 micro-credits so settlement math is exact and a debit
// can be a single conditional SQL increment.
const MicrosPerCredit = 1_000_000

// CreditsToMicros converts a decimal credit amount to micro-credits,
// rounding to the nearest micro.
func CreditsToMicros(credits float64) int64 {
	if credits >= 0 {
		return int64(credits*MicrosPerCredit + 0.5)
	}
	return int64(credits*MicrosPerCredit - 0.5)
}

// MicrosToCredits converts micro-credits back to a decimal credit amount.
func MicrosToCredits(micros int64) float64 {
	return float64(micros) / MicrosPerCredit
}

// User is a domain entity holding the credit balance that job settlement
// debits and refunds. The balance is mutated only through the repository's
// atomic adjustment operations, never read-modify-write.
type User struct {
	ID           string
	Email        string
	Username     string
	Role         Role
	CreditMicros int64
	RegisteredAt time.Time
}

func NewUser(id, email, username string, role Role) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidArgument
	}
	if username == "" {
		return nil, domain.ErrInvalidArgument
	}
	if role != RoleUser && role != RoleAdmin {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:           id,
		Email:        email,
		Username:     username,
		Role:         role,
		RegisteredAt: time.Now(),
	}, nil
}

func (u *User) IsZero() bool  { return u == nil || u.ID == "" }
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// IdentityClaims is the decoded identity carried by a verified bearer token.
// Signature and expiry verification happen at the web layer; resolving the
// claims to exactly one user is Authenticate's job.
type IdentityClaims struct {
	Email    string
	Username string
}

func (c IdentityClaims) IsZero() bool { return c.Email == "" && c.Username == "" }
