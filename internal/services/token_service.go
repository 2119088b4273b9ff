package services

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService issues and validates session tokens. The subject is always the
// id of the account that survived any merge performed by the request.
type TokenService interface {
	GenerateAccessToken(userID uint64) (string, error)
	ValidateToken(tokenString string) (uint64, error)
	AccessExpiry() time.Duration
}

type jwtTokenService struct {
	secret       []byte
	accessExpiry time.Duration
	now          func() time.Time
}

// NewTokenService creates an HS256 TokenService.
func NewTokenService(secret string, accessExpiry time.Duration) TokenService {
	return &jwtTokenService{
		secret:       []byte(secret),
		accessExpiry: accessExpiry,
		now:          time.Now,
	}
}

func (s *jwtTokenService) AccessExpiry() time.Duration {
	return s.accessExpiry
}

func (s *jwtTokenService) GenerateAccessToken(userID uint64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *jwtTokenService) ValidateToken(tokenString string) (uint64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}

	return userID, nil
}
