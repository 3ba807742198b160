package ctrl

import (
	"context"
	"errors"
	"time"

	"github.com/gomarket-app/backend/internal/auth"
	"github.com/gomarket-app/backend/internal/auth/jwt"
	"github.com/gomarket-app/backend/internal/dto"
	md "github.com/gomarket-app/backend/internal/models"
	"github.com/gomarket-app/backend/internal/repo"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

type authCtrl interface {
	IssueSession(
		ctx context.Context,
		uid uuid.UUID,
		email string,
		d *dto.DeviceRequest,
	) (*dto.TokenPair, error)
	Authenticate(
		ctx context.Context,
		d *dto.DeviceRequest,
		req *dto.EmailAndPasswordRequest,
	) (*dto.TokenPair, error)
	Register(
		ctx context.Context,
		d *dto.DeviceRequest,
		req *dto.RegisterRequest,
	) (*dto.TokenPair, error)
	Rotate(ctx context.Context, d *dto.DeviceRequest, refresh string) (*dto.TokenPair, error)
	Logout(ctx context.Context, uid uuid.UUID, jti uuid.UUID) error
	LogoutAll(ctx context.Context, uid uuid.UUID) error
}

type authRepo interface {
	CreateToken(ctx context.Context, t *md.RefreshToken) error
	GetTokenByJTI(ctx context.Context, jti uuid.UUID) (*md.RefreshToken, error)
	GetActiveTokenByFingerprint(
		ctx context.Context,
		userID uuid.UUID,
		ip, userAgent string,
	) (*md.RefreshToken, error)
	RotateToken(
		ctx context.Context,
		oldJTI uuid.UUID,
		presentedHash string,
		next *md.RefreshToken,
	) (*md.RefreshToken, error)
	RevokeToken(ctx context.Context, jti uuid.UUID) error
	RevokeUserTokens(ctx context.Context, userID uuid.UUID) error
	DeleteStaleTokens(ctx context.Context, retention time.Duration) (int64, error)
}

// IssueSession mints the first token pair of a rotation chain. Called
// after the caller has verified credentials (password or OAuth profile).
func (c *Controller) IssueSession(
	ctx context.Context,
	uid uuid.UUID,
	email string,
	d *dto.DeviceRequest,
) (*dto.TokenPair, error) {
	const op = "auth.IssueSession.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	// A repeat login from a device that already holds an active session
	// supersedes it. CreateToken rotates the old head out atomically;
	// this lookup records which chain is being cut short.
	if prev, err := c.repo.GetActiveTokenByFingerprint(ctx, uid, d.IP, d.UA); err == nil {
		zap.L().Info(
			"superseding active session for device",
			zap.String("op", op),
			zap.String("userID", uid.String()),
			zap.String("oldJTI", prev.JTI.String()),
		)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	jti := uuid.New()
	refresh, err := c.au.NewRefresh(ctx, uid, jti)
	if err != nil {
		return nil, err
	}

	err = c.repo.CreateToken(
		ctx, &md.RefreshToken{
			UserID:    uid,
			JTI:       jti,
			TokenHash: auth.HashToken(refresh),
			ExpiresAt: time.Now().Add(c.au.RefreshTTL()),
			IP:        d.IP,
			UserAgent: d.UA,
		},
	)
	if err != nil {
		return nil, err
	}

	access, err := c.au.NewAccess(ctx, uid, email)
	if err != nil {
		return nil, err
	}

	return &dto.TokenPair{
		Access:  access,
		Refresh: refresh,
	}, nil
}

func (c *Controller) Authenticate(
	ctx context.Context,
	d *dto.DeviceRequest,
	req *dto.EmailAndPasswordRequest,
) (*dto.TokenPair, error) {
	const op = "auth.Authenticate.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	res, err := c.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Same external outcome as a wrong password, so the response
			// cannot be used as an account oracle.
			return nil, auth.ErrInvalidCredentials
		}
		return nil, err
	}

	err = c.pwd.ComparePasswords([]byte(res.Password), []byte(req.Password))
	if err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	return c.IssueSession(ctx, res.ID, res.Email, d)
}

func (c *Controller) Register(
	ctx context.Context,
	d *dto.DeviceRequest,
	req *dto.RegisterRequest,
) (*dto.TokenPair, error) {
	const op = "auth.Register.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	hashed, err := c.pwd.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	uid, err := c.repo.CreateUser(
		ctx, &dto.CreateUserRequest{
			Name:     req.Name,
			Email:    req.Email,
			Password: hashed,
			IsActive: true,
		},
	)
	if err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	go func() {
		if err := c.email.SendWelcome(req.Email, req.Name); err != nil {
			zap.L().Warn(
				"failed to send welcome email",
				zap.String("op", op),
				zap.String("email", req.Email),
				zap.Error(err),
			)
		}
	}()

	return c.IssueSession(ctx, uid, req.Email, d)
}

// Rotate exchanges a still-valid refresh token for a new pair,
// invalidating the old one. Presenting an already-rotated token is
// treated as a security incident: the request is rejected and every
// other active session of the user is revoked, forcing full
// re-authentication everywhere.
func (c *Controller) Rotate(
	ctx context.Context,
	d *dto.DeviceRequest,
	refresh string,
) (*dto.TokenPair, error) {
	const op = "auth.Rotate.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	if c.csrf != nil {
		if err := c.csrf(ctx); err != nil {
			return nil, ErrForbidden
		}
	}

	claims, err := c.au.ParseRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}

	jti := uuid.New()
	newRefresh, err := c.au.NewRefresh(ctx, claims.UID, jti)
	if err != nil {
		return nil, err
	}

	old, err := c.repo.RotateToken(
		ctx, claims.JTI, auth.HashToken(refresh), &md.RefreshToken{
			UserID:    claims.UID,
			JTI:       jti,
			TokenHash: auth.HashToken(newRefresh),
			ExpiresAt: time.Now().Add(c.au.RefreshTTL()),
			IP:        d.IP,
			UserAgent: d.UA,
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, auth.ErrInvalidToken
		case errors.Is(err, repo.ErrTokenExpired):
			return nil, jwt.ErrTokenExpired
		case errors.Is(err, repo.ErrTokenReused):
			zap.L().Warn(
				"refresh token reuse detected, revoking all user sessions",
				zap.String("op", op),
				zap.String("userID", claims.UID.String()),
				zap.String("jti", claims.JTI.String()),
				zap.String("issuedIP", old.IP),
				zap.String("issuedUA", old.UserAgent),
				zap.String("requestIP", d.IP),
				zap.String("requestUA", d.UA),
			)

			if err := c.repo.RevokeUserTokens(ctx, claims.UID); err != nil {
				zap.L().Error(
					"failed to revoke user tokens after reuse",
					zap.String("op", op),
					zap.String("userID", claims.UID.String()),
					zap.Error(err),
				)
			}

			return nil, auth.ErrReuseDetected
		}
		return nil, err
	}

	// A changed fingerprint alone is not proof of theft: legitimate
	// clients sit behind rotating egress IPs. Log it and move on.
	if old.IP != d.IP || old.UserAgent != d.UA {
		zap.L().Info(
			"refresh fingerprint mismatch",
			zap.String("op", op),
			zap.String("userID", claims.UID.String()),
			zap.String("issuedIP", old.IP),
			zap.String("requestIP", d.IP),
		)
	}

	user, err := c.repo.GetUserByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, err
	}

	access, err := c.au.NewAccess(ctx, claims.UID, user.Email)
	if err != nil {
		return nil, err
	}

	return &dto.TokenPair{
		Access:  access,
		Refresh: newRefresh,
	}, nil
}

// Logout revokes a single session. The record must belong to the
// authenticated subject; revoking an already-dead token is a no-op.
func (c *Controller) Logout(ctx context.Context, uid uuid.UUID, jti uuid.UUID) error {
	const op = "auth.Logout.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	if c.csrf != nil {
		if err := c.csrf(ctx); err != nil {
			return ErrForbidden
		}
	}

	rec, err := c.repo.GetTokenByJTI(ctx, jti)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	if rec.UserID != uid {
		zap.L().Warn(
			"logout attempt on foreign session",
			zap.String("op", op),
			zap.String("userID", uid.String()),
			zap.String("ownerID", rec.UserID.String()),
			zap.String("jti", jti.String()),
		)

		return ErrForbidden
	}

	return c.repo.RevokeToken(ctx, jti)
}

func (c *Controller) LogoutAll(ctx context.Context, uid uuid.UUID) error {
	const op = "auth.LogoutAll.ctrl"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	if c.csrf != nil {
		if err := c.csrf(ctx); err != nil {
			return ErrForbidden
		}
	}

	return c.repo.RevokeUserTokens(ctx, uid)
}
