// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auth authenticates API requests via static API keys or HS256
// JWTs and scopes every agent name to the caller's tenant.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrMissingCredentials means no API key or bearer token was supplied.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidCredentials means the supplied credentials did not verify.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSignature means the bearer token's HMAC did not verify. It
	// matches ErrInvalidCredentials in errors.Is chains.
	ErrInvalidSignature error = &signatureError{}
)

type signatureError struct{}

func (*signatureError) Error() string { return "invalid jwt signature" }
func (*signatureError) Unwrap() error { return ErrInvalidCredentials }

// Permission names one guarded operation.
type Permission string

const (
	PermVersionsRead     Permission = "versions:read"
	PermOptimizeRun      Permission = "optimize:run"
	PermParityRun        Permission = "parity:run"
	PermVersionsDeploy   Permission = "versions:deploy"
	PermVersionsRollback Permission = "versions:rollback"
)

// Role groups permissions.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var rolePermissions = map[Role]map[Permission]bool{
	RoleViewer: {
		PermVersionsRead: true,
	},
	RoleOperator: {
		PermVersionsRead: true,
		PermOptimizeRun:  true,
		PermParityRun:    true,
	},
	RoleAdmin: {
		PermVersionsRead:     true,
		PermOptimizeRun:      true,
		PermParityRun:        true,
		PermVersionsDeploy:   true,
		PermVersionsRollback: true,
	},
}

// Can reports whether the role holds the permission.
func (r Role) Can(p Permission) bool {
	return rolePermissions[r][p]
}

func validRole(r Role) bool {
	_, ok := rolePermissions[r]
	return ok
}

// Principal is the authenticated caller.
type Principal struct {
	Name     string
	TenantID string
	Role     Role
}

// ScopedAgentName prefixes an agent name with the caller's tenant so
// tenants get independent version sequences.
func (p Principal) ScopedAgentName(agentName string) string {
	return p.TenantID + "::" + agentName
}

// APIKeyIdentity is the identity bound to one static API key.
type APIKeyIdentity struct {
	TenantID  string
	Role      Role
	Principal string
}

// Config configures the authenticator. JWTSecrets is keyed by kid; a token
// without a kid header is accepted only when exactly one secret is
// configured.
type Config struct {
	Enabled    bool
	APIKeys    map[string]APIKeyIdentity
	JWTSecrets map[string]string
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
}

// Authenticator resolves credentials to a Principal.
type Authenticator struct {
	cfg    Config
	logger *zap.Logger
}

func NewAuthenticator(cfg Config, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 30 * time.Second
	}
	return &Authenticator{cfg: cfg, logger: logger}
}

// Authenticate resolves either an X-API-Key value or a bearer token. With
// auth disabled it synthesizes a local admin principal.
func (a *Authenticator) Authenticate(apiKey, bearerToken string) (Principal, error) {
	if !a.cfg.Enabled {
		return Principal{Name: "local-dev", TenantID: "default", Role: RoleAdmin}, nil
	}
	if apiKey != "" {
		return a.authenticateAPIKey(apiKey)
	}
	if bearerToken != "" {
		return a.authenticateJWT(bearerToken)
	}
	return Principal{}, ErrMissingCredentials
}

func (a *Authenticator) authenticateAPIKey(apiKey string) (Principal, error) {
	identity, ok := a.cfg.APIKeys[apiKey]
	if !ok {
		return Principal{}, fmt.Errorf("unknown api key: %w", ErrInvalidCredentials)
	}
	if !validRole(identity.Role) {
		return Principal{}, fmt.Errorf("api key maps to unknown role %q: %w", identity.Role, ErrInvalidCredentials)
	}
	return Principal{Name: identity.Principal, TenantID: identity.TenantID, Role: identity.Role}, nil
}

func (a *Authenticator) authenticateJWT(token string) (Principal, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.cfg.ClockSkew),
	}
	if a.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		options = append(options, jwt.WithAudience(a.cfg.Audience))
	}

	parsed, err := jwt.Parse(token, a.resolveKey, options...)
	if err != nil {
		a.logger.Debug("jwt verification failed", zap.Error(err))
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return Principal{}, ErrInvalidSignature
		}
		return Principal{}, fmt.Errorf("%v: %w", err, ErrInvalidCredentials)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, fmt.Errorf("unexpected claims type: %w", ErrInvalidCredentials)
	}

	tenantID, _ := claims["tenant_id"].(string)
	if tenantID == "" {
		return Principal{}, fmt.Errorf("token missing tenant_id claim: %w", ErrInvalidCredentials)
	}
	roleClaim, _ := claims["role"].(string)
	role := Role(roleClaim)
	if !validRole(role) {
		return Principal{}, fmt.Errorf("token carries unknown role %q: %w", roleClaim, ErrInvalidCredentials)
	}
	name, _ := claims["sub"].(string)
	if name == "" {
		name, _ = claims["principal"].(string)
	}
	if name == "" {
		return Principal{}, fmt.Errorf("token missing sub or principal claim: %w", ErrInvalidCredentials)
	}
	return Principal{Name: name, TenantID: tenantID, Role: role}, nil
}

// resolveKey picks the HS256 secret. A kid header selects its key; without
// a kid exactly one configured key is required.
func (a *Authenticator) resolveKey(token *jwt.Token) (any, error) {
	if kid, ok := token.Header["kid"].(string); ok && kid != "" {
		secret, found := a.cfg.JWTSecrets[kid]
		if !found {
			return nil, fmt.Errorf("no secret configured for kid %q", kid)
		}
		return []byte(secret), nil
	}
	if len(a.cfg.JWTSecrets) != 1 {
		return nil, fmt.Errorf("token has no kid and %d secrets are configured", len(a.cfg.JWTSecrets))
	}
	for _, secret := range a.cfg.JWTSecrets {
		return []byte(secret), nil
	}
	return nil, errors.New("no jwt secrets configured")
}
