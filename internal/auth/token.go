package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
	ErrMissingClaim = errors.New("auth: missing required claim")
	ErrMissingToken = errors.New("auth: missing bearer token")
)

// Verifier resolves a bearer token to the signed-in user's id.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// SecretGetter is satisfied by paramstore.Client.
type SecretGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// JWTVerifier checks HS256 tokens and reads the user id from the "sub" claim.
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: secret must not be empty")
	}
	return &JWTVerifier{secret: secret, now: time.Now}, nil
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (string, error) {
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrMissingToken
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || strings.TrimSpace(sub) == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

// Generate signs a token for userID. Used by tests and local tooling.
func (v *JWTVerifier) Generate(userID string, expiresIn time.Duration) (string, error) {
	now := v.now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ParamVerifier loads the signing secret from the parameter store on first
// use and reuses it for the lifetime of the process.
type ParamVerifier struct {
	getter    SecretGetter
	paramName string

	once     sync.Once
	verifier *JWTVerifier
	err      error
}

func NewParamVerifier(getter SecretGetter, paramName string) (*ParamVerifier, error) {
	if getter == nil {
		return nil, errors.New("auth: secret getter must not be nil")
	}
	paramName = strings.TrimSpace(paramName)
	if paramName == "" {
		return nil, errors.New("auth: secret parameter name must not be empty")
	}
	return &ParamVerifier{getter: getter, paramName: paramName}, nil
}

func (p *ParamVerifier) Verify(ctx context.Context, token string) (string, error) {
	p.once.Do(func() {
		secret, err := p.getter.GetParameter(ctx, p.paramName)
		if err != nil {
			p.err = fmt.Errorf("auth: load secret: %w", err)
			return
		}
		p.verifier, p.err = NewJWTVerifier([]byte(strings.TrimSpace(secret)))
	})
	if p.err != nil {
		return "", p.err
	}
	return p.verifier.Verify(ctx, token)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
