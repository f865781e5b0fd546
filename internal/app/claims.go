package app

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"findit/internal/util"
	"findit/pkg/domain"
	"findit/pkg/notify"
	"findit/pkg/store"
)

// ClaimDecision reports the outcome of an admin decision on a claim.
// Notified and Skipped count messages sent and messages not attempted;
// EmailError is the first send failure, if any.
type ClaimDecision struct {
	ClaimID    int64
	Status     domain.Status
	Notified   int
	Skipped    int
	EmailError error
}

// ClaimersView is the public claim board: every claim plus the distinct
// item names used to filter it.
type ClaimersView struct {
	Claimers []domain.Claimer `json:"claimers"`
	Items    []string         `json:"items"`
}

// SubmitClaim records a pending claim by the user with email. The store's
// (user, concern) unique index decides duplicates.
func (a *App) SubmitClaim(ctx context.Context, email, rawConcernID string) (domain.Claim, error) {
	if normalizeEmail(email) == "" || rawConcernID == "" {
		return domain.Claim{}, invalid("missing concern ID or email")
	}
	concernID, err := parseID(rawConcernID, "concern ID")
	if err != nil {
		return domain.Claim{}, err
	}
	user, err := a.userByEmail(ctx, email)
	if err != nil {
		return domain.Claim{}, err
	}
	if _, ok, err := a.store.GetConcern(ctx, concernID); err != nil {
		return domain.Claim{}, persistence("get concern", err)
	} else if !ok {
		return domain.Claim{}, ErrNotFound
	}
	claim := domain.Claim{
		UserID:    user.ID,
		ConcernID: concernID,
		Status:    domain.StatusPending,
		ClaimedAt: a.now(),
	}
	if err := a.store.CreateClaim(ctx, &claim); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Claim{}, ErrAlreadyClaimed
		}
		return domain.Claim{}, persistence("create claim", err)
	}
	return claim, nil
}

// DecideClaim approves or rejects a claim, then notifies the claimer and,
// on approval, the helper who reported the item. The helper is only
// notified if the claimer's message went out.
func (a *App) DecideClaim(ctx context.Context, adminUserID, rawClaimID, decision string) (ClaimDecision, error) {
	if _, err := a.RequireAdmin(ctx, adminUserID); err != nil {
		return ClaimDecision{}, err
	}
	status, err := parseDecision(decision)
	if err != nil {
		return ClaimDecision{}, err
	}
	claimID, err := parseID(rawClaimID, "claim ID")
	if err != nil {
		return ClaimDecision{}, err
	}
	parties, ok, err := a.store.GetClaimParties(ctx, claimID)
	if err != nil {
		return ClaimDecision{}, persistence("get claim", err)
	}
	if !ok {
		return ClaimDecision{}, ErrNotFound
	}
	updated, err := a.store.SetClaimStatus(ctx, claimID, status)
	if err != nil {
		return ClaimDecision{}, persistence("update claim status", err)
	}
	if !updated {
		return ClaimDecision{}, ErrNotFound
	}

	result := ClaimDecision{ClaimID: claimID, Status: status}
	planned := 1
	if status == domain.StatusApproved {
		planned = 2
	}
	logger := util.LoggerFromContext(ctx)
	sendCtx := context.WithoutCancel(ctx)

	claimerBody, err := notify.ClaimUpdate(parties, status)
	if err == nil {
		err = a.notifier.Send(sendCtx, parties.ClaimerEmail, notify.SubjectClaimUpdate, claimerBody)
	}
	if err != nil {
		logger.Warn("claim notification failed", "claim_id", claimID, "recipient", "claimer", "err", err)
		result.EmailError = err
		result.Skipped = planned - 1
		return result, nil
	}
	result.Notified++
	if status != domain.StatusApproved {
		return result, nil
	}

	helperBody, err := notify.HelperNotice(parties)
	if err == nil {
		err = a.notifier.Send(sendCtx, parties.HelperEmail, notify.SubjectHelperNotice, helperBody)
	}
	if err != nil {
		logger.Warn("claim notification failed", "claim_id", claimID, "recipient", "helper", "err", err)
		result.EmailError = err
		return result, nil
	}
	result.Notified++
	return result, nil
}

// ListPendingClaims returns claims awaiting a decision, newest first.
func (a *App) ListPendingClaims(ctx context.Context, adminUserID string) ([]domain.PendingClaim, error) {
	if _, err := a.RequireAdmin(ctx, adminUserID); err != nil {
		return nil, err
	}
	claims, err := a.store.ListPendingClaims(ctx)
	if err != nil {
		return nil, persistence("list pending claims", err)
	}
	return claims, nil
}

// ListClaimers loads the claim board and the item names concurrently.
func (a *App) ListClaimers(ctx context.Context) (ClaimersView, error) {
	var view ClaimersView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		claimers, err := a.store.ListClaimers(gctx)
		if err != nil {
			return persistence("list claimers", err)
		}
		view.Claimers = claimers
		return nil
	})
	g.Go(func() error {
		items, err := a.store.ListItemNames(gctx)
		if err != nil {
			return persistence("list item names", err)
		}
		view.Items = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return ClaimersView{}, err
	}
	return view, nil
}

// ListClaimedItems returns the concern ids claimed by the user with email.
// An unknown email yields an empty list.
func (a *App) ListClaimedItems(ctx context.Context, email string) ([]int64, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, invalid("email is required")
	}
	ids, err := a.store.ListClaimedConcernIDs(ctx, email)
	if err != nil {
		return nil, persistence("list claimed items", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// ListHelpers returns users with approved found items, busiest first.
func (a *App) ListHelpers(ctx context.Context) ([]domain.Helper, error) {
	helpers, err := a.store.ListHelpers(ctx)
	if err != nil {
		return nil, persistence("list helpers", err)
	}
	return helpers, nil
}
