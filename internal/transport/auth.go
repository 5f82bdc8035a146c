package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pitabwire/workdesk/internal/config"
	"github.com/pitabwire/workdesk/model"
)

type tokenKey struct{}

// NewKeyFunc returns the key used to verify dashboard tokens. The HMAC
// secret is read from the environment variable named in cfg; a public key
// file holds a PEM encoded RSA or EC key.
func NewKeyFunc(cfg config.IdentityConfig) (jwt.Keyfunc, error) {
	var key any
	switch {
	case cfg.HMACSecretEnv != "":
		secret := os.Getenv(cfg.HMACSecretEnv)
		if secret == "" {
			return nil, fmt.Errorf("identity: %s is empty", cfg.HMACSecretEnv)
		}
		key = []byte(secret)
	case cfg.PublicKeyFile != "":
		data, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("identity: reading public key: %w", err)
		}
		key, err = parsePublicKey(data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("identity: no verification key configured")
	}
	return func(*jwt.Token) (any, error) { return key, nil }, nil
}

func parsePublicKey(pem []byte) (any, error) {
	if key, err := jwt.ParseRSAPublicKeyFromPEM(pem); err == nil {
		return key, nil
	}
	if key, err := jwt.ParseECPublicKeyFromPEM(pem); err == nil {
		return key, nil
	}
	return nil, errors.New("identity: public key file is neither an RSA nor an EC PEM key")
}

// JWTAuthenticator returns middleware that verifies the bearer token and
// stores the raw token and its claims in the request context.
func JWTAuthenticator(cfg config.IdentityConfig, keys jwt.Keyfunc) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(cfg.Algorithms),
		jwt.WithLeeway(cfg.Leeway),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				WriteError(w, model.NewUnauthorizedError("Missing authorization header"))
				return
			}
			tokenStr, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || tokenStr == "" {
				WriteError(w, model.NewUnauthorizedError("Invalid authorization header format"))
				return
			}

			token, err := parser.Parse(tokenStr, keys)
			if err != nil {
				WriteError(w, model.NewUnauthorizedError(classifyJWTError(err)))
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				WriteError(w, model.NewUnauthorizedError("Invalid token"))
				return
			}

			ctx := WithClaims(r.Context(), map[string]any(claims))
			ctx = context.WithValue(ctx, tokenKey{}, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFrom returns the verified bearer token stored by JWTAuthenticator.
func TokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

func classifyJWTError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "Token not yet valid"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "Invalid token issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "Invalid token audience"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "Invalid token signature"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "Token is missing a required claim"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "Malformed token"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "Token could not be verified"
	default:
		return "Invalid token"
	}
}

// claimValue resolves a dotted path such as "realm_access.role" in claims.
func claimValue(claims map[string]any, path string) any {
	if claims == nil || path == "" {
		return nil
	}
	var cur any = claims
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func claimString(claims map[string]any, path string) string {
	switch v := claimValue(claims, path).(type) {
	case string:
		return v
	case []any:
		// Role claims are sometimes lists; the first entry wins.
		if len(v) > 0 {
			s, _ := v[0].(string)
			return s
		}
	}
	return ""
}

// roleFromClaim maps a claim value onto a known role. Unknown values yield
// an empty role, which grants no capabilities.
func roleFromClaim(v string) model.Role {
	role := model.Role(strings.ToUpper(strings.TrimSpace(v)))
	switch role {
	case model.RoleAdmin, model.RoleSupervisor, model.RoleTechnician, model.RoleUser:
		return role
	}
	return ""
}
