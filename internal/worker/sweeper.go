// Package worker hosts background housekeeping jobs.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type tokenSweeperRepo interface {
	DeleteStaleTokens(ctx context.Context, retention time.Duration) (int64, error)
}

// TokenSweeper periodically deletes refresh token records that are
// revoked-and-stale or past expiry. It is the only thing that ever
// deletes token records; the rotation engine never does.
type TokenSweeper struct {
	repo      tokenSweeperRepo
	interval  time.Duration
	retention time.Duration
}

func NewTokenSweeper(repo tokenSweeperRepo, interval, retention time.Duration) *TokenSweeper {
	return &TokenSweeper{
		repo:      repo,
		interval:  interval,
		retention: retention,
	}
}

func (s *TokenSweeper) Start(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	zap.L().Info(
		"Token sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.retention),
	)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Token sweeper stopped")
			return
		case <-t.C:
			n, err := s.repo.DeleteStaleTokens(ctx, s.retention)
			if err != nil {
				zap.L().Error("Failed to sweep stale tokens", zap.Error(err))
				continue
			}

			if n > 0 {
				zap.L().Info("Swept stale refresh tokens", zap.Int64("count", n))
			}
		}
	}
}
