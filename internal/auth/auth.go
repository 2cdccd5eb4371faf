package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RolePlatformAdmin gates authority-only calls: dispute resolution, rating
// moderation, pause switch and platform fee withdrawal.
const RolePlatformAdmin = "PlatformAdmin"

type ctxKey string

const ctxKeyPrincipal ctxKey = "agentmarket.principal"

// Principal is the authenticated caller. Address is the opaque account
// identity (the JWT sub claim) used as creator/payer/rater throughout the
// core.
type Principal struct {
	Address string
	Roles   []string
}

// HasRole reports whether the principal carries the given role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// FromContext returns the Principal stored by the middleware, or nil.
func FromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(ctxKeyPrincipal).(*Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal returns a context carrying the principal. Exposed for tests.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// Options configures the verifier middleware.
type Options struct {
	// Secret is the HS256 signing secret for bearer tokens.
	Secret []byte

	// AllowDebugPrincipal, when true, accepts the X-Debug-Principal header
	// as the caller address without a token. Startup guards refuse this in
	// production.
	AllowDebugPrincipal bool
}

type claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 bearer token and returns the principal.
func ParseToken(tokenStr string, secret []byte) (*Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenStr, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || c.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}
	return &Principal{Address: c.Subject, Roles: c.Roles}, nil
}

// NewToken mints a token for the given address and roles. Used by tests and
// local tooling.
func NewToken(address string, roles []string, secret []byte) (string, error) {
	c := claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: address,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// Middleware extracts and validates the caller identity. Requests without a
// valid principal are rejected with 401; role checks happen per-route via
// RequireRole.
func Middleware(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.AllowDebugPrincipal {
				if addr := r.Header.Get("X-Debug-Principal"); addr != "" {
					roles := splitRoles(r.Header.Get("X-Debug-Roles"))
					ctx := WithPrincipal(r.Context(), &Principal{Address: addr, Roles: roles})
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				http.Error(w, "bearer token required", http.StatusUnauthorized)
				return
			}
			principal, err := ParseToken(strings.TrimSpace(authz[7:]), opts.Secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ctx := WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through only if the principal has the role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if FromContext(r.Context()).HasRole(role) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

func splitRoles(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
