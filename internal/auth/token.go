// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vidshelf Contributors

package auth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	// DefaultSessionTTL is the token lifetime when auth.session_ttl is unset.
	DefaultSessionTTL = 60 * time.Second

	// DefaultTokenAlgorithm is the HMAC variant used when none is configured.
	DefaultTokenAlgorithm = "HS256"

	// MinSecretLength is the shortest accepted signing secret, in bytes.
	MinSecretLength = 32
)

// Claims is the signed session payload: {"user_id": ..., "exp": ..., "iat": ...}.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// ParsedUserID returns the user_id claim as a ULID.
func (c *Claims) ParsedUserID() (ulid.ULID, error) {
	return ulid.Parse(c.UserID)
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret     []byte
	Algorithm  string        // HS256, HS384 or HS512
	DefaultTTL time.Duration // used when Issue is called with ttl <= 0
	Now        func() time.Time
}

// TokenService issues and verifies stateless session tokens.
type TokenService struct {
	secret     []byte
	method     jwt.SigningMethod
	defaultTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
	logger     *slog.Logger
}

// NewTokenService validates cfg and builds a TokenService.
func NewTokenService(cfg TokenConfig, logger *slog.Logger) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, oops.Code("TOKEN_INVALID_CONFIG").
			With("min", MinSecretLength).
			Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	alg := cfg.Algorithm
	if alg == "" {
		alg = DefaultTokenAlgorithm
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, oops.Code("TOKEN_INVALID_CONFIG").
			With("algorithm", alg).
			Errorf("unsupported token algorithm %q: must be HS256, HS384 or HS512", alg)
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TokenService{
		secret:     cfg.Secret,
		method:     method,
		defaultTTL: ttl,
		now:        now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
		logger: logger,
	}, nil
}

// DefaultTTL returns the ttl applied when Issue gets a non-positive ttl.
func (s *TokenService) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue signs a token for userID valid for ttl and returns it with its expiry.
func (s *TokenService) Issue(userID ulid.ULID, ttl time.Duration) (string, time.Time, error) {
	if userID.IsZero() {
		return "", time.Time{}, oops.Code("TOKEN_INVALID_SUBJECT").Errorf("user id cannot be zero")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature, then expiry, and returns the claims.
// Failures are ErrTokenExpired or ErrTokenInvalid; only tampering is logged
// above debug level.
func (s *TokenService) Verify(token string) (*Claims, error) {
	if token == "" {
		tokenVerifications.WithLabelValues("invalid").Inc()
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrTokenInvalid)
	}

	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		tokenVerifications.WithLabelValues("tampered").Inc()
		s.logger.Warn("session token signature rejected", "error", err)
		return nil, oops.Code("TOKEN_SIGNATURE_INVALID").Wrap(ErrTokenInvalid)
	case errors.Is(err, jwt.ErrTokenExpired):
		tokenVerifications.WithLabelValues("expired").Inc()
		s.logger.Debug("session token expired")
		return nil, oops.Code("TOKEN_EXPIRED").Wrap(ErrTokenExpired)
	default:
		tokenVerifications.WithLabelValues("invalid").Inc()
		s.logger.Debug("session token malformed", "error", err)
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrTokenInvalid)
	}

	if _, err := claims.ParsedUserID(); err != nil {
		tokenVerifications.WithLabelValues("invalid").Inc()
		s.logger.Debug("session token has no usable user_id")
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrTokenInvalid)
	}

	tokenVerifications.WithLabelValues("valid").Inc()
	return claims, nil
}
