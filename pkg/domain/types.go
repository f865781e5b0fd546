package domain

import "time"

type ItemType string

const (
	ItemLost  ItemType = "lost"
	ItemFound ItemType = "found"
)

// Status is shared by concerns and claims.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Date layout used for concern dates on the wire and in forms.
const DateLayout = "2006-01-02"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

type Concern struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ItemName    string    `json:"item_name"`
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	ItemType    ItemType  `json:"item_type"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConcernWithReporter is a concern joined with its reporter's contact info.
type ConcernWithReporter struct {
	Concern
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type Claim struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ConcernID int64     `json:"concern_id"`
	Status    Status    `json:"status"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// ClaimParties is a claim joined to its claimer, its concern and the
// concern's reporter (the helper).
type ClaimParties struct {
	ClaimID      int64
	ItemName     string
	ClaimerName  string
	ClaimerEmail string
	HelperName   string
	HelperEmail  string
}

// PendingClaim is the admin projection of a claim awaiting a decision.
type PendingClaim struct {
	ClaimID     int64     `json:"claim_id"`
	ClaimStatus Status    `json:"claim_status"`
	ClaimedAt   time.Time `json:"claimed_at"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	ItemName    string    `json:"item_name"`
	Category    string    `json:"category"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
}

// Claimer is the public projection of a claim.
type Claimer struct {
	UserName  string    `json:"user_name"`
	ItemName  string    `json:"item_name"`
	ClaimedAt time.Time `json:"claimed_at"`
	Status    Status    `json:"status"`
}

// Helper is a user who reported approved found items.
type Helper struct {
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	FoundCount int64  `json:"found_count"`
}

// LostFilter selects approved lost items. Sort must already be validated.
type LostFilter struct {
	Search   string
	Category string
	Sort     SortKey
	Limit    int
	Offset   int
}

type SortKey string

const (
	SortDefault  SortKey = ""
	SortDateAsc  SortKey = "date_asc"
	SortDateDesc SortKey = "date_desc"
	SortNameAsc  SortKey = "name_asc"
	SortNameDesc SortKey = "name_desc"
)

// ConcernUpdate carries editable concern fields. A nil Status leaves the
// status untouched.
type ConcernUpdate struct {
	ItemName    string
	Category    string
	Date        time.Time
	Location    string
	Description string
	Status      *Status
}

type DashboardStats struct {
	TotalItems      int64 `json:"totalItems"`
	PendingConcerns int64 `json:"pendingConcerns"`
	VerifiedClaims  int64 `json:"verifiedClaims"`
	TotalUsers      int64 `json:"totalUsers"`
}
