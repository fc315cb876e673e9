package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the JWT payload.
type Claims struct {
	Subject    string `json:"sub"`
	Role       string `json:"role"`
	SuperAdmin bool   `json:"super_admin,omitempty"`
	jwt.RegisteredClaims
}

// Token is a signed access token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Issuer signs and verifies access tokens with one HMAC key.
type Issuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
}

func NewIssuer(key, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{key: []byte(key), issuer: issuer, ttl: ttl}
}

func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for subject with the given role.
func (i *Issuer) Issue(subject, role string, superAdmin bool) (Token, error) {
	issued := time.Now()
	exp := issued.Add(i.ttl)

	claims := Claims{
		Subject:    subject,
		Role:       role,
		SuperAdmin: superAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(issued),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns its claims.
func (i *Issuer) Parse(tokenStr string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return i.key, nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	switch claims.Role {
	case RoleStudent, RoleTeacher:
	default:
		return Claims{}, errors.New("unknown role")
	}
	return *claims, nil
}

// Context converts verified claims into the request auth context.
func (c Claims) Context() AuthContext {
	return AuthContext{
		UserID:     c.Subject,
		Role:       c.Role,
		SuperAdmin: c.Role == RoleTeacher && c.SuperAdmin,
	}
}
