package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gomarket-app/backend/internal/config"
	md "github.com/gomarket-app/backend/internal/models"
	"github.com/gomarket-app/backend/internal/repo"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

func isUniqueViolation(err error) bool {
	pgErr := &pgconn.PgError{}
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// CreateToken inserts a new active refresh token and, in the same
// transaction, rotates out the previous active token for the same
// (user, ip, user_agent) fingerprint so at most one chain head exists
// per client at steady state.
func (r *Repository) CreateToken(ctx context.Context, t *md.RefreshToken) error {
	const op = "auth.CreateToken.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	tx, err := r.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(
		ctx, tokenRotateOutFingerprintQ, t.JTI, t.UserID, t.IP, t.UserAgent,
	); err != nil {
		return err
	}

	if _, err = tx.ExecContext(
		ctx, tokenCreateQ, t.UserID, t.JTI, t.TokenHash, t.ExpiresAt, t.IP, t.UserAgent,
	); err != nil {
		if isUniqueViolation(err) {
			return repo.ErrAlreadyExists
		}
		return err
	}

	return tx.Commit()
}

func (r *Repository) GetTokenByJTI(ctx context.Context, jti uuid.UUID) (*md.RefreshToken, error) {
	const op = "auth.GetTokenByJTI.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	res := &md.RefreshToken{}
	err := r.conn.GetContext(ctx, res, tokenGetByJTIQ, jti)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}

	return res, nil
}

func (r *Repository) GetActiveTokenByFingerprint(
	ctx context.Context,
	userID uuid.UUID,
	ip, userAgent string,
) (*md.RefreshToken, error) {
	const op = "auth.GetActiveTokenByFingerprint.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	res := &md.RefreshToken{}
	err := r.conn.GetContext(ctx, res, tokenGetActiveByFingerprintQ, userID, ip, userAgent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}

	return res, nil
}

// RotateToken performs the single-use exchange of an active refresh token
// for its successor. The old record is locked for the duration of the
// transaction and the final UPDATE is conditioned on status = 'active',
// so two concurrent rotations of the same token are serialized: exactly
// one commits, the other observes ErrTokenReused. A failure partway
// rolls everything back and leaves the old token active.
func (r *Repository) RotateToken(
	ctx context.Context,
	oldJTI uuid.UUID,
	presentedHash string,
	next *md.RefreshToken,
) (*md.RefreshToken, error) {
	const op = "auth.RotateToken.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	tx, err := r.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	old := &md.RefreshToken{}
	if err = tx.GetContext(ctx, old, tokenGetByJTIForUpdateQ, oldJTI); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, err
	}

	// A signed token whose hash does not match the stored one is not the
	// token this record was issued for.
	if old.TokenHash != presentedHash {
		return nil, repo.ErrNotFound
	}

	if old.Status != md.TokenStatusActive {
		return old, repo.ErrTokenReused
	}

	if old.Expired(time.Now()) {
		return old, repo.ErrTokenExpired
	}

	if _, err = tx.ExecContext(
		ctx, tokenCreateQ, next.UserID, next.JTI, next.TokenHash, next.ExpiresAt, next.IP, next.UserAgent,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, repo.ErrAlreadyExists
		}
		return nil, err
	}

	res, err := tx.ExecContext(ctx, tokenRotateQ, next.JTI, oldJTI)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return old, repo.ErrTokenReused
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return old, nil
}

// RevokeToken marks a token revoked without a successor. Revoking an
// already-revoked or rotated token is a no-op, not an error, because
// concurrent revocations may race.
func (r *Repository) RevokeToken(ctx context.Context, jti uuid.UUID) error {
	const op = "auth.RevokeToken.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	res, err := r.conn.ExecContext(ctx, tokenRevokeQ, jti)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		var exists bool
		if err = r.conn.GetContext(ctx, &exists, tokenExistsQ, jti); err != nil {
			return err
		}
		if !exists {
			return repo.ErrNotFound
		}
	}

	return nil
}

// RevokeUserTokens revokes every active token of a user. Used by
// logout-everywhere and by the reuse-detection incident response.
func (r *Repository) RevokeUserTokens(ctx context.Context, userID uuid.UUID) error {
	const op = "auth.RevokeUserTokens.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	if _, err := r.conn.ExecContext(ctx, tokenRevokeAllQ, userID); err != nil {
		return err
	}

	return nil
}

// DeleteStaleTokens removes records that are non-active and untouched for
// the retention period, or past their absolute expiry.
func (r *Repository) DeleteStaleTokens(ctx context.Context, retention time.Duration) (int64, error) {
	const op = "auth.DeleteStaleTokens.repo"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, config.DBTimeout)
	defer cancel()

	res, err := r.conn.ExecContext(ctx, tokenDeleteStaleQ, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	zap.L().Debug("Deleted stale refresh tokens", zap.String("op", op), zap.Int64("count", n))
	return n, nil
}
