package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const roleTransmitter = "transmitter"

var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims is the JWT payload for transmitter tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues bearer tokens against a single configured operator account
// and verifies them for transmitter registration.
type Service struct {
	secret       []byte
	username     string
	passwordHash []byte
	tokenTTL     time.Duration
}

func NewService(secret []byte, username string, passwordHash []byte, tokenTTL time.Duration) *Service {
	return &Service{
		secret:       secret,
		username:     username,
		passwordHash: passwordHash,
		tokenTTL:     tokenTTL,
	}
}

// Login exchanges a username/password pair for a signed token. Both checks
// run unconditionally so a wrong username costs the same as a wrong password.
func (s *Service) Login(username, password string) (string, error) {
	nameOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password))
	if !nameOK || passErr != nil {
		return "", ErrInvalidCredentials
	}
	return s.issue()
}

func (s *Service) issue() (string, error) {
	now := time.Now()
	claims := Claims{
		Role: roleTransmitter,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "maktab",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify reports whether token authorizes the transmitter role. It fails
// closed: parse errors, bad signatures, expiry, and missing role claims all
// yield false, and the caller learns nothing about which check failed.
func (s *Service) Verify(token string) bool {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Role == roleTransmitter
}
