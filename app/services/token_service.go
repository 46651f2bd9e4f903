package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token validation errors
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// TokenService manages JWT creation and validation for console operators
type TokenService interface {
	GenerateToken(operator string) (string, error)
	ValidateToken(token string) (*TokenClaims, error)
}

// TokenClaims represents the claims carried by a console token
type TokenClaims struct {
	Operator string `json:"operator"`
	TokenID  string `json:"token_id"`
	IssuedAt int64  `json:"issued_at"`
	Expiry   int64  `json:"expiry"`
}

// TokenServiceImpl implements TokenService with HS256 signing
type TokenServiceImpl struct {
	secretKey      []byte
	accessTokenTTL time.Duration
	issuer         string
	audience       string
}

// NewTokenService creates a new token service
func NewTokenService(secretKey string, accessTokenTTL time.Duration, issuer, audience string) (TokenService, error) {
	if secretKey == "" {
		return nil, errors.New("token secret key is required")
	}
	return &TokenServiceImpl{
		secretKey:      []byte(secretKey),
		accessTokenTTL: accessTokenTTL,
		issuer:         issuer,
		audience:       audience,
	}, nil
}

func (s *TokenServiceImpl) GenerateToken(operator string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub": operator,
		"jti": uuid.New().String(),
		"iss": s.issuer,
		"aud": s.audience,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *TokenServiceImpl) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secretKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	out := &TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Operator = sub
	}
	if jti, ok := claims["jti"].(string); ok {
		out.TokenID = jti
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Unix()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.Expiry = exp.Unix()
	}

	return out, nil
}
