package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gomarket-app/backend/internal/config"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

type Port interface {
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
	NewAccess(ctx context.Context, uid uuid.UUID, email string) (string, error)
	NewRefresh(ctx context.Context, uid uuid.UUID, jti uuid.UUID) (string, error)
	ParseAccess(ctx context.Context, tokenStr string) (AccessClaims, error)
	ParseRefresh(ctx context.Context, tokenStr string) (RefreshClaims, error)
	ExtractJTI(ctx context.Context, tokenStr string) (uuid.UUID, error)
}

// Core signs and verifies the two token kinds with separate secrets, so a
// refresh token can never pass as an access token and vice versa.
type Core struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
}

type AccessClaims struct {
	UID   uuid.UUID `json:"uid"`
	Email string    `json:"email"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UID uuid.UUID `json:"uid"`
	JTI uuid.UUID `json:"jti"`
	jwt.RegisteredClaims
}

func New(conf config.Config) *Core {
	return &Core{
		accessSecret:  []byte(conf.Auth.JWT.AccessSecret),
		refreshSecret: []byte(conf.Auth.JWT.RefreshSecret),
		issuer:        conf.Auth.JWT.Issuer,
	}
}

func (c *Core) AccessTTL() time.Duration {
	return config.AccessTokenDuration
}

func (c *Core) RefreshTTL() time.Duration {
	return config.RefreshTokenDuration
}

func (c *Core) NewAccess(ctx context.Context, uid uuid.UUID, email string) (string, error) {
	const op = "auth.NewAccess.jwt"
	span, _ := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	signed, err := jwt.NewWithClaims(
		jwt.SigningMethodHS256, &AccessClaims{
			UID:   uid,
			Email: email,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(config.AccessTokenDuration)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				Issuer:    c.issuer,
			},
		},
	).SignedString(c.accessSecret)
	if err != nil {
		zap.L().Error(
			ErrWhileCreatingToken.Error(),
			zap.String("op", op),
			zap.Error(err),
		)

		return "", ErrWhileCreatingToken
	}

	return signed, nil
}

func (c *Core) NewRefresh(ctx context.Context, uid uuid.UUID, jti uuid.UUID) (string, error) {
	const op = "auth.NewRefresh.jwt"
	span, _ := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	signed, err := jwt.NewWithClaims(
		jwt.SigningMethodHS256, &RefreshClaims{
			UID: uid,
			JTI: jti,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(config.RefreshTokenDuration)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				Issuer:    c.issuer,
			},
		},
	).SignedString(c.refreshSecret)
	if err != nil {
		zap.L().Error(
			ErrWhileCreatingToken.Error(),
			zap.String("op", op),
			zap.Error(err),
		)

		return "", ErrWhileCreatingToken
	}

	return signed, nil
}

// ParseAccess verifies an access token. Callers rely on the distinction
// between ErrTokenExpired (recoverable via rotation) and ErrTokenMalformed
// (rejected outright, the refresh chain is never consulted).
func (c *Core) ParseAccess(ctx context.Context, tokenStr string) (AccessClaims, error) {
	const op = "auth.ParseAccess.jwt"
	span, _ := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	claims := AccessClaims{}
	token, err := jwt.ParseWithClaims(
		tokenStr, &claims, func(token *jwt.Token) (any, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, ErrUnexpectedSignMethod
			}

			return c.accessSecret, nil
		},
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, ErrTokenExpired
		}

		zap.L().Debug(
			"Failed to parse access claims",
			zap.String("op", op),
			zap.Error(err),
		)

		return claims, ErrTokenMalformed
	}

	if !token.Valid {
		return claims, ErrTokenMalformed
	}

	return claims, nil
}

func (c *Core) ParseRefresh(ctx context.Context, tokenStr string) (RefreshClaims, error) {
	const op = "auth.ParseRefresh.jwt"
	span, _ := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	claims := RefreshClaims{}
	token, err := jwt.ParseWithClaims(
		tokenStr, &claims, func(token *jwt.Token) (any, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, ErrUnexpectedSignMethod
			}

			return c.refreshSecret, nil
		},
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return claims, ErrTokenExpired
		}

		zap.L().Debug(
			"Failed to parse refresh claims",
			zap.String("op", op),
			zap.Error(err),
		)

		return claims, ErrTokenMalformed
	}

	if !token.Valid {
		return claims, ErrTokenMalformed
	}

	return claims, nil
}

// ExtractJTI verifies the signature but skips claims validation, so the
// jti of an expired refresh token can still be looked up in the store.
// The payload must not be trusted for authorization decisions without a
// full ParseRefresh.
func (c *Core) ExtractJTI(ctx context.Context, tokenStr string) (uuid.UUID, error) {
	const op = "auth.ExtractJTI.jwt"
	span, _ := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	claims := RefreshClaims{}
	_, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseWithClaims(
		tokenStr, &claims, func(token *jwt.Token) (any, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, ErrUnexpectedSignMethod
			}

			return c.refreshSecret, nil
		},
	)
	if err != nil {
		return uuid.Nil, ErrTokenMalformed
	}

	if claims.JTI == uuid.Nil {
		return uuid.Nil, ErrTokenMalformed
	}

	return claims.JTI, nil
}
