package telegram

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "morentube"

var ErrNotAdmin = errors.New("not an admin session")

// Sessions issues short lived admin tokens after an initData login.
type Sessions struct {
	secret  []byte
	ttl     time.Duration
	adminID int64
}

func NewSessions(secret string, ttl time.Duration, adminID int64) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{secret: []byte(secret), ttl: ttl, adminID: adminID}
}

func (s *Sessions) Enabled() bool { return len(s.secret) > 0 }

type sessionClaims struct {
	UserID int64 `json:"user_id"`
	Admin  bool  `json:"admin"`
	jwt.RegisteredClaims
}

// Issue signs a token for user. Only the configured admin gets one.
func (s *Sessions) Issue(user AuthUser, now time.Time) (string, time.Time, error) {
	if s.adminID == 0 || user.ID != s.adminID {
		return "", time.Time{}, ErrNotAdmin
	}
	exp := now.Add(s.ttl)
	claims := sessionClaims{
		UserID: user.ID,
		Admin:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, exp, nil
}

// VerifyAdmin parses a token and returns the admin user id.
func (s *Sessions) VerifyAdmin(tokenString string) (int64, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(sessionIssuer))
	if err != nil {
		return 0, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if !claims.Admin || claims.UserID != s.adminID {
		return 0, ErrNotAdmin
	}
	return claims.UserID, nil
}
