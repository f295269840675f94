// Package auth validates the bearer tokens that guard the management API.
// Tokens are HS256 JWTs whose org_id claim scopes every request to one
// organization.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is invalid
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidOrganization is returned when the org_id claim is missing or malformed
	ErrInvalidOrganization = errors.New("invalid organization claim")
)

// Claims is the JWT payload issued to management clients
type Claims struct {
	jwt.RegisteredClaims
	OrgID string `json:"org_id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// ParsedClaims represents validated claims
type ParsedClaims struct {
	Subject   string
	OrgID     uuid.UUID
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config holds the shared secret and expected registered claims
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Validator validates HMAC-signed JWTs
type Validator struct {
	secret []byte
	parser *jwt.Parser
	cfg    Config
}

// NewValidator creates a validator. An empty secret is rejected.
func NewValidator(cfg Config) (*Validator, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Validator{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
		cfg:    cfg,
	}, nil
}

// ValidateToken validates a JWT and returns its parsed claims
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*ParsedClaims, error) {
	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	orgID, err := uuid.Parse(claims.OrgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOrganization, claims.OrgID)
	}

	parsed := &ParsedClaims{
		Subject: claims.Subject,
		OrgID:   orgID,
		Email:   claims.Email,
		Role:    claims.Role,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}
	return parsed, nil
}

// IssueToken signs a token for subject in orgID valid for ttl. Used by the
// CLI to mint operator tokens and by tests.
func (v *Validator) IssueToken(subject string, orgID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		OrgID: orgID.String(),
	}
	if v.cfg.Issuer != "" {
		claims.Issuer = v.cfg.Issuer
	}
	if v.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{v.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
