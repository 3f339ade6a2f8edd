package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/resellerdesk/resellerdesk/internal/config"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
)

// SessionClaims identify the client behind a portal session
type SessionClaims struct {
	TenantID string
	ClientID string
}

// SessionResolver maps a client portal session token to its owner
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*SessionClaims, error)
}

type portalClaims struct {
	TenantID string `json:"tenant_id"`
	jwt.RegisteredClaims
}

type jwtSessionResolver struct {
	secret []byte
	issuer string
}

func NewSessionResolver(cfg *config.Configuration) SessionResolver {
	return &jwtSessionResolver{
		secret: []byte(cfg.Session.Secret),
		issuer: cfg.Session.Issuer,
	}
}

func (r *jwtSessionResolver) Resolve(_ context.Context, token string) (*SessionClaims, error) {
	if token == "" || len(r.secret) == 0 {
		return nil, unauthorized()
	}

	claims := &portalClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ierr.WithError(unauthorized()).
			WithMessage(fmt.Sprintf("session token rejected: %v", err)).
			Mark(ierr.ErrUnauthorized)
	}

	if r.issuer != "" && !claims.VerifyIssuer(r.issuer, true) {
		return nil, unauthorized()
	}
	if claims.TenantID == "" || claims.Subject == "" {
		return nil, unauthorized()
	}

	return &SessionClaims{
		TenantID: claims.TenantID,
		ClientID: claims.Subject,
	}, nil
}

// IssueSessionToken signs a portal session for a client
func IssueSessionToken(cfg *config.Configuration, tenantID, clientID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := portalClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			Issuer:    cfg.Session.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Session.Secret))
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to generate session").
			Mark(ierr.ErrSystem)
	}
	return token, nil
}

func unauthorized() error {
	return ierr.NewError("invalid session").
		WithHint("Session is invalid or expired").
		Mark(ierr.ErrUnauthorized)
}
