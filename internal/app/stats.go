package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"findit/pkg/domain"
)

// DashboardStats returns the admin dashboard counters. verifiedClaims
// counts approved concerns.
func (a *App) DashboardStats(ctx context.Context, adminUserID string) (domain.DashboardStats, error) {
	if _, err := a.RequireAdmin(ctx, adminUserID); err != nil {
		return domain.DashboardStats{}, err
	}
	var stats domain.DashboardStats
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, op string, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			if err != nil {
				return persistence(op, err)
			}
			*dst = n
			return nil
		})
	}
	count(&stats.TotalItems, "count concerns", func(ctx context.Context) (int64, error) {
		return a.store.CountConcerns(ctx, "")
	})
	count(&stats.PendingConcerns, "count pending concerns", func(ctx context.Context) (int64, error) {
		return a.store.CountConcerns(ctx, domain.StatusPending)
	})
	count(&stats.VerifiedClaims, "count approved concerns", func(ctx context.Context) (int64, error) {
		return a.store.CountConcerns(ctx, domain.StatusApproved)
	})
	count(&stats.TotalUsers, "count users", a.store.UserCount)
	if err := g.Wait(); err != nil {
		return domain.DashboardStats{}, err
	}
	return stats, nil
}
