// internal/auth/session.go
package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the cookie that carries the session token.
const CookieName = "auth_token"

// ErrUnauthenticated is returned when a request carries no valid token.
var ErrUnauthenticated = errors.New("unauthenticated")

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenExpiry is the lifetime of issued tokens; 0 means no exp claim.
	tokenExpiry time.Duration
)

// Identity is who a request speaks for. Admin tokens are issued after the
// passphrase login and carry the admin claim alongside a player id.
type Identity struct {
	PlayerID uuid.UUID
	Admin    bool
}

type claims struct {
	Admin bool `json:"adm,omitempty"`
	jwt.RegisteredClaims
}

// Init generates a fresh ed25519 key pair at runtime. Tokens do not survive
// a restart.
func Init(expiry time.Duration) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	publicKey, privateKey = pub, priv
	tokenExpiry = expiry
	return nil
}

// InitFromPath reads ed25519 private/public keys from file so that every
// replica accepts the same tokens.
func InitFromPath(privatePath, publicPath string, expiry time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("ed25519 key files have unexpected sizes")
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenExpiry = expiry
	return nil
}

// CreateToken signs a token with sub = playerID.
func CreateToken(id Identity) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("auth keys not initialized")
	}
	c := claims{
		Admin: id.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.PlayerID.String(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if tokenExpiry > 0 {
		c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(tokenExpiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	return token.SignedString(privateKey)
}

// Authenticate verifies a token string and returns the identity it carries.
func Authenticate(tokenString string) (Identity, error) {
	var c claims
	t, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !t.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	playerID, err := uuid.Parse(c.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: bad sub in jwt", ErrUnauthenticated)
	}
	return Identity{PlayerID: playerID, Admin: c.Admin}, nil
}

// TokenFromRequest returns the session token from the auth_token cookie or,
// failing that, an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// FromRequest authenticates r.
func FromRequest(r *http.Request) (Identity, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Authenticate(token)
}

type identityKey struct{}

// WithIdentity stores id on ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
