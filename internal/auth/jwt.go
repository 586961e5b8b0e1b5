package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"printcost-backend/internal/model"
)

// ContextKey is the gin context key under which validated claims are stored.
const ContextKey = "claims"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoClaims     = errors.New("claims not found in context")
)

// Claims is the payload of an access token.
type Claims struct {
	UserID    string     `json:"user_id"`
	Username  string     `json:"username"`
	CompanyID string     `json:"company_id,omitempty"`
	Role      model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and validates HS256 access tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer. Tokens expire ttl after issuance.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate issues an access token for u.
func (i *Issuer) Generate(u *model.User) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID:    u.ID,
		Username:  u.Username,
		CompanyID: u.CompanyIDValue(),
		Role:      u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses tokenString and returns its claims when the signature and expiry are valid.
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FromContext returns the claims stored by the auth middleware.
func FromContext(c *gin.Context) (*Claims, error) {
	v, exists := c.Get(ContextKey)
	if !exists {
		return nil, ErrNoClaims
	}
	claims, ok := v.(*Claims)
	if !ok {
		return nil, errors.New("claims are not of type *Claims")
	}
	return claims, nil
}
