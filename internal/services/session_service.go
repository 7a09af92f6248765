package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type SessionClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// LoginID parses the subject claim.
func (c *SessionClaims) LoginID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// Session is what a successful login or confirmation hands back.
type Session struct {
	LoginID   int64
	Name      string
	Token     string
	ExpiresAt time.Time
}

type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(secret string, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *SessionIssuer) Issue(loginID int64, name, email string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := &SessionClaims{
		Name:  name,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(loginID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, exp, nil
}

// Decode verifies signature and expiry and returns the claims.
func (s *SessionIssuer) Decode(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		// HMAC only
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid session token")
	}
	return claims, nil
}

// Validate reports whether token is authentic and unexpired. With
// requireFreshClaims it also demands the subject, name and email claims.
func (s *SessionIssuer) Validate(token string, requireFreshClaims bool) bool {
	if !requireFreshClaims {
		_, err := s.Decode(token)
		return err == nil
	}
	_, _, err := s.Authenticate(token)
	return err == nil
}

// Authenticate decodes token once and returns its claims together with the
// login id, rejecting tokens without subject, name or email.
func (s *SessionIssuer) Authenticate(token string) (*SessionClaims, int64, error) {
	claims, err := s.Decode(token)
	if err != nil {
		return nil, 0, err
	}
	if claims.Name == "" || claims.Email == "" {
		return nil, 0, errors.New("session token lacks identity claims")
	}
	loginID, err := claims.LoginID()
	if err != nil {
		return nil, 0, err
	}
	return claims, loginID, nil
}
