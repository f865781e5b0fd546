package store

import (
	"context"
	"errors"

	"findit/pkg/domain"
)

// ErrDuplicate is returned when a write violates a uniqueness constraint
// (user email, or one claim per user and concern).
var ErrDuplicate = errors.New("duplicate key")

// ConcernFilter narrows ListConcerns. Zero values mean "any".
// Results are ordered by created_at desc, or by date desc when ByDate is set.
type ConcernFilter struct {
	UserID   int64
	ItemType domain.ItemType
	Status   domain.Status
	ByDate   bool
}

// Store defines persistence operations for users, concerns and claims.
type Store interface {
	// users
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	GetUserByID(ctx context.Context, id int64) (domain.User, bool, error)
	UserCount(ctx context.Context) (int64, error)

	// concerns
	CreateConcern(ctx context.Context, c *domain.Concern) error
	GetConcern(ctx context.Context, id int64) (domain.Concern, bool, error)
	GetConcernWithReporter(ctx context.Context, id int64) (domain.ConcernWithReporter, bool, error)
	SetConcernStatus(ctx context.Context, id int64, status domain.Status) (bool, error)
	UpdateConcern(ctx context.Context, id int64, upd domain.ConcernUpdate) (bool, error)
	DeleteConcern(ctx context.Context, id int64) (bool, error)
	ListConcerns(ctx context.Context, filter ConcernFilter) ([]domain.Concern, error)
	ListConcernsWithReporter(ctx context.Context) ([]domain.ConcernWithReporter, error)
	ListLost(ctx context.Context, filter domain.LostFilter) ([]domain.Concern, error)
	ListItemNames(ctx context.Context) ([]string, error)
	CountConcerns(ctx context.Context, status domain.Status) (int64, error)

	// claims
	CreateClaim(ctx context.Context, c *domain.Claim) error
	GetClaim(ctx context.Context, id int64) (domain.Claim, bool, error)
	GetClaimParties(ctx context.Context, id int64) (domain.ClaimParties, bool, error)
	SetClaimStatus(ctx context.Context, id int64, status domain.Status) (bool, error)
	ListPendingClaims(ctx context.Context) ([]domain.PendingClaim, error)
	ListClaimers(ctx context.Context) ([]domain.Claimer, error)
	ListClaimedConcernIDs(ctx context.Context, email string) ([]int64, error)
	ListHelpers(ctx context.Context) ([]domain.Helper, error)
}
