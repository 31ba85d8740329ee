package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"vessel-trajectory-service/internal/domain/model"
)

// AuthManager verifies bearer tokens and extracts identity claims. Only the
// signature and the registered time claims are checked here; resolving the
// claims to a user is the use-case layer's Authenticate.
type AuthManager struct {
	secret []byte
}

func NewAuthManager(secret string) *AuthManager {
	return &AuthManager{secret: []byte(secret)}
}

type identityTokenClaims struct {
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// ParseFromRequest reads `Authorization: Bearer <jwt>` and returns the
// decoded identity claims.
func (a *AuthManager) ParseFromRequest(r *http.Request) (model.IdentityClaims, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return model.IdentityClaims{}, errMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return model.IdentityClaims{}, errMissingToken
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (model.IdentityClaims, error) {
	claims := &identityTokenClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return model.IdentityClaims{}, errInvalidToken
	}
	return model.IdentityClaims{Email: claims.Email, Username: claims.Username}, nil
}

// Mint signs a token for the given claims. Used by the seed tool and tests.
func (a *AuthManager) Mint(claims model.IdentityClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, identityTokenClaims{
		Email:    claims.Email,
		Username: claims.Username,
	})
	return token.SignedString(a.secret)
}
