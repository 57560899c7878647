package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// roleClaimURI is the WS-Federation-style role claim name some issuers
// use alongside the short "role" claim; both are collected into Roles.
const roleClaimURI = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/role"

// Principal is the verified identity extracted from a validated token
// and stored at dispatchcore.PropertyPrincipal.
type Principal struct {
	UserID   string
	UserName string
	Email    string
	TenantID string
	Roles    []string
	Claims   jwt.MapClaims
}

type keyCache struct {
	mu        sync.Mutex
	key       any
	fetchedAt time.Time
}

func (kc *keyCache) get(ctx context.Context, cfg Config, store CredentialStore) (any, error) {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	if kc.key != nil && time.Since(kc.fetchedAt) < cfg.KeyCacheTTL {
		return kc.key, nil
	}
	if store == nil {
		return nil, ErrNoCredentialStore
	}
	raw, err := store.GetCredential(ctx, cfg.CredentialName)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrCredentialNotFound
	}
	key := decodeVerificationKey(raw)
	kc.key = key
	kc.fetchedAt = time.Now()
	return key, nil
}

// decodeVerificationKey treats PEM-looking material as an RSA public key
// and everything else as an HMAC secret.
func decodeVerificationKey(raw []byte) any {
	if strings.Contains(string(raw), "BEGIN") {
		if pub, err := jwt.ParseRSAPublicKeyFromPEM(raw); err == nil {
			return pub
		}
	}
	return raw
}

// validateToken parses and validates tokenString against key, returning
// the mapped Principal on success or an AuthFailureReason-classified
// error otherwise.
func validateToken(cfg Config, key any, tokenString string) (Principal, authError) {
	claims := jwt.MapClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.AllowedAlgorithms),
		jwt.WithLeeway(cfg.ClockSkew),
	}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := key.(*rsa.PublicKey); ok {
			return key, nil
		}
		return key, nil
	}, parserOpts...)

	if err != nil {
		return Principal{}, classifyJWTError(err)
	}
	if !token.Valid {
		return Principal{}, authError{reason: invalidToken}
	}

	return mapClaims(claims), authError{}
}

type authFailureKind int

const (
	noAuthError authFailureKind = iota
	missingToken
	invalidToken
	tokenExpired
	validationError
)

type authError struct {
	reason authFailureKind
	err    error
}

func (e authError) isError() bool { return e.reason != noAuthError }

func classifyJWTError(err error) authError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return authError{reason: tokenExpired, err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return authError{reason: validationError, err: err}
	default:
		return authError{reason: invalidToken, err: err}
	}
}

func mapClaims(claims jwt.MapClaims) Principal {
	p := Principal{Claims: claims}
	if v, ok := claims["sub"].(string); ok {
		p.UserID = v
	}
	if v, ok := claims["name"].(string); ok {
		p.UserName = v
	}
	if v, ok := claims["email"].(string); ok {
		p.Email = v
	}
	if v, ok := claims["tenant_id"].(string); ok {
		p.TenantID = v
	}
	p.Roles = append(p.Roles, extractRoles(claims["role"])...)
	p.Roles = append(p.Roles, extractRoles(claims[roleClaimURI])...)
	return p
}

func extractRoles(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		roles := make([]string, 0, len(t))
		for _, r := range t {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	default:
		return nil
	}
}
