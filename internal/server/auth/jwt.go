// Package auth issues and parses the signed session tokens.
//
// Access and refresh tokens are HS256 JWTs signed with distinct secrets, so
// one kind can never be replayed as the other. There is no revocation list:
// rotating a secret invalidates every token of that kind.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/laplink/internal/common"
	"github.com/dmitrijs2005/laplink/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "laplink"

// Claims carries the standard claims plus the user id and role at issue
// time. The role is informational; authorization re-reads it from storage.
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"id"`
	Role   models.Role `json:"role"`
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID string
	Role   models.Role
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// TokenPair is what a successful login returns.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("token secrets must not be empty")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// IssuePair signs a fresh access and refresh token for user.
func (i *Issuer) IssuePair(user *models.User) (TokenPair, error) {
	access, err := i.sign(user, i.accessSecret, i.accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := i.sign(user, i.refreshSecret, i.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ParseAccess validates an access token and returns its claims.
func (i *Issuer) ParseAccess(token string) (*Claims, error) {
	return i.parse(token, i.accessSecret)
}

// ParseRefresh validates a refresh token and returns its claims.
func (i *Issuer) ParseRefresh(token string) (*Claims, error) {
	return i.parse(token, i.refreshSecret)
}

func (i *Issuer) sign(user *models.User, secret []byte, ttl time.Duration) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: user.ID,
		Role:   user.Role,
	})
	return token.SignedString(secret)
}

// parse maps every failure to common.ErrTokenExpired or common.ErrInvalidToken,
// both of which wrap common.ErrUnauthenticated.
func (i *Issuer) parse(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
