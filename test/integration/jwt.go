package integration

import (
	"maps"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecretEnv = "WORKDESK_TEST_JWT_SECRET"

// TestClaims holds the configurable claims for generating test JWT tokens.
type TestClaims struct {
	SubjectID string
	Email     string
	Name      string
	Role      string
	Extra     map[string]any
}

// tokenIssuer signs HS256 tokens with a per-test shared secret.
type tokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
}

// newTokenIssuer creates a token issuer and exports its secret through
// the environment variable the identity config names.
func newTokenIssuer(t *testing.T) *tokenIssuer {
	t.Helper()

	secret := "integration-secret-" + t.Name()
	t.Setenv(testSecretEnv, secret)

	return &tokenIssuer{
		secret:   []byte(secret),
		issuer:   "https://auth.test.workdesk.dev",
		audience: "workdesk-test",
	}
}

// GenerateToken creates a valid, signed JWT token with the given claims.
func (ti *tokenIssuer) GenerateToken(claims TestClaims) string {
	now := time.Now()
	return ti.sign(ti.secret, claims, now, now.Add(time.Hour))
}

// GenerateExpiredToken creates a JWT token that expired in the past.
func (ti *tokenIssuer) GenerateExpiredToken(claims TestClaims) string {
	now := time.Now()
	return ti.sign(ti.secret, claims, now.Add(-2*time.Hour), now.Add(-time.Hour))
}

// GenerateForeignToken creates a token signed with a secret the server
// does not know.
func (ti *tokenIssuer) GenerateForeignToken(claims TestClaims) string {
	now := time.Now()
	return ti.sign([]byte("someone-else"), claims, now, now.Add(time.Hour))
}

func (ti *tokenIssuer) sign(secret []byte, claims TestClaims, issuedAt, expiresAt time.Time) string {
	mapClaims := jwt.MapClaims{
		"iss":   ti.issuer,
		"aud":   ti.audience,
		"iat":   jwt.NewNumericDate(issuedAt),
		"exp":   jwt.NewNumericDate(expiresAt),
		"sub":   claims.SubjectID,
		"email": claims.Email,
		"name":  claims.Name,
		"role":  claims.Role,
	}
	maps.Copy(mapClaims, claims.Extra)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(secret)
	if err != nil {
		panic("sign JWT: " + err.Error())
	}
	return signed
}

// Issuer returns the expected token issuer claim.
func (ti *tokenIssuer) Issuer() string {
	return ti.issuer
}

// Audience returns the expected token audience claim.
func (ti *tokenIssuer) Audience() string {
	return ti.audience
}
