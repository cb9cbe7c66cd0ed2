package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the user id and the time of the last credential check.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	AuthTime int64  `json:"auth_time"`
}

// Tokens issues and checks HS256 identity tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	recent time.Duration
	now    func() time.Time
}

func NewTokens(secret []byte, ttl, recentWindow time.Duration) *Tokens {
	return &Tokens{secret: secret, ttl: ttl, recent: recentWindow, now: time.Now}
}

// Issue signs a token for userID whose credential was checked at authTime.
func (t *Tokens) Issue(userID string, authTime time.Time) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		UserID:   userID,
		AuthTime: authTime.Unix(),
	})

	s, err := token.SignedString(t.secret)
	if err != nil {
		return "", err
	}
	return s, nil
}

// Parse validates the signature and expiry.
func (t *Tokens) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, newError(CodeTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrorUnauthorized
	}
	return claims, nil
}

// RequireRecent parses the token and fails with requires-recent-login when
// the credential check is older than the recent-login window.
func (t *Tokens) RequireRecent(tokenString string) (*Claims, error) {
	claims, err := t.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if t.now().Sub(time.Unix(claims.AuthTime, 0)) > t.recent {
		return nil, newError(CodeRequiresRecentLogin)
	}
	return claims, nil
}
