package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"findit/pkg/domain"
)

type claimKey struct {
	userID    int64
	concernID int64
}

// MemoryStore keeps users, concerns and claims in-process. It honours the
// same uniqueness rules as the SQL schema and is used by tests and demos.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	users     map[int64]domain.User
	emails    map[string]int64
	concerns  map[int64]domain.Concern
	claims    map[int64]domain.Claim
	claimKeys map[claimKey]int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]domain.User),
		emails:    make(map[string]int64),
		concerns:  make(map[int64]domain.Concern),
		claims:    make(map[int64]domain.Claim),
		claimKeys: make(map[claimKey]int64),
	}
}

func (m *MemoryStore) newID() int64 {
	m.nextID++
	return m.nextID
}

// CreateUser registers a user.
func (m *MemoryStore) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.emails[u.Email]; exists {
		return ErrDuplicate
	}
	if u.ID == 0 {
		u.ID = m.newID()
	} else if u.ID > m.nextID {
		m.nextID = u.ID
	}
	m.users[u.ID] = *u
	m.emails[u.Email] = u.ID
	return nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(_ context.Context, id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// UserCount returns number of users.
func (m *MemoryStore) UserCount(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

// CreateConcern stores a concern.
func (m *MemoryStore) CreateConcern(_ context.Context, c *domain.Concern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.newID()
	m.concerns[c.ID] = *c
	return nil
}

// GetConcern retrieves a concern by ID.
func (m *MemoryStore) GetConcern(_ context.Context, id int64) (domain.Concern, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.concerns[id]
	return c, ok, nil
}

// GetConcernWithReporter returns a concern joined with its reporter.
func (m *MemoryStore) GetConcernWithReporter(_ context.Context, id int64) (domain.ConcernWithReporter, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.concerns[id]
	if !ok {
		return domain.ConcernWithReporter{}, false, nil
	}
	u, ok := m.users[c.UserID]
	if !ok {
		return domain.ConcernWithReporter{}, false, nil
	}
	return domain.ConcernWithReporter{Concern: c, FullName: u.FullName, Email: u.Email}, true, nil
}

// SetConcernStatus updates a concern status.
func (m *MemoryStore) SetConcernStatus(_ context.Context, id int64, status domain.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.concerns[id]
	if !ok {
		return false, nil
	}
	c.Status = status
	m.concerns[id] = c
	return true, nil
}

// UpdateConcern overwrites editable fields.
func (m *MemoryStore) UpdateConcern(_ context.Context, id int64, upd domain.ConcernUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.concerns[id]
	if !ok {
		return false, nil
	}
	c.ItemName = upd.ItemName
	c.Category = upd.Category
	c.Date = upd.Date
	c.Location = upd.Location
	c.Description = upd.Description
	if upd.Status != nil {
		c.Status = *upd.Status
	}
	m.concerns[id] = c
	return true, nil
}

// DeleteConcern removes a concern; its claims are kept.
func (m *MemoryStore) DeleteConcern(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.concerns[id]; !ok {
		return false, nil
	}
	delete(m.concerns, id)
	return true, nil
}

// ListConcerns returns concerns matching filter.
func (m *MemoryStore) ListConcerns(_ context.Context, filter ConcernFilter) ([]domain.Concern, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Concern, 0)
	for _, c := range m.concerns {
		if filter.UserID != 0 && c.UserID != filter.UserID {
			continue
		}
		if filter.ItemType != "" && c.ItemType != filter.ItemType {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		res = append(res, c)
	}
	if filter.ByDate {
		sortConcerns(res, func(a, b domain.Concern) bool { return a.Date.After(b.Date) })
	} else {
		sortConcerns(res, newestFirst)
	}
	return res, nil
}

// ListConcernsWithReporter returns concerns joined with reporters, newest first.
func (m *MemoryStore) ListConcernsWithReporter(_ context.Context) ([]domain.ConcernWithReporter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	concerns := make([]domain.Concern, 0, len(m.concerns))
	for _, c := range m.concerns {
		concerns = append(concerns, c)
	}
	sortConcerns(concerns, newestFirst)
	res := make([]domain.ConcernWithReporter, 0, len(concerns))
	for _, c := range concerns {
		u, ok := m.users[c.UserID]
		if !ok {
			continue
		}
		res = append(res, domain.ConcernWithReporter{Concern: c, FullName: u.FullName, Email: u.Email})
	}
	return res, nil
}

// ListLost returns approved lost items matching filter.
func (m *MemoryStore) ListLost(_ context.Context, filter domain.LostFilter) ([]domain.Concern, error) {
	less, ok := memoryLostOrder[filter.Sort]
	if !ok {
		return nil, fmt.Errorf("unsupported sort key %q", filter.Sort)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	search := strings.ToLower(filter.Search)
	res := make([]domain.Concern, 0)
	for _, c := range m.concerns {
		if c.ItemType != domain.ItemLost || c.Status != domain.StatusApproved {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.ItemName), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		res = append(res, c)
	}
	sortConcerns(res, less)
	if filter.Offset >= len(res) {
		return []domain.Concern{}, nil
	}
	res = res[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(res) {
		res = res[:filter.Limit]
	}
	return res, nil
}

var memoryLostOrder = map[domain.SortKey]func(a, b domain.Concern) bool{
	domain.SortDefault:  newestFirst,
	domain.SortDateAsc:  func(a, b domain.Concern) bool { return a.Date.Before(b.Date) },
	domain.SortDateDesc: func(a, b domain.Concern) bool { return a.Date.After(b.Date) },
	domain.SortNameAsc:  func(a, b domain.Concern) bool { return a.ItemName < b.ItemName },
	domain.SortNameDesc: func(a, b domain.Concern) bool { return a.ItemName > b.ItemName },
}

func newestFirst(a, b domain.Concern) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func sortConcerns(items []domain.Concern, less func(a, b domain.Concern) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if !less(items[i], items[j]) && !less(items[j], items[i]) {
			return items[i].ID < items[j].ID
		}
		return less(items[i], items[j])
	})
}

// ListItemNames returns distinct item names in ascending order.
func (m *MemoryStore) ListItemNames(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, c := range m.concerns {
		if _, ok := seen[c.ItemName]; ok {
			continue
		}
		seen[c.ItemName] = struct{}{}
		names = append(names, c.ItemName)
	}
	sort.Strings(names)
	return names, nil
}

// CountConcerns counts concerns, optionally restricted to one status.
func (m *MemoryStore) CountConcerns(_ context.Context, status domain.Status) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, c := range m.concerns {
		if status == "" || c.Status == status {
			n++
		}
	}
	return n, nil
}

// CreateClaim stores a claim unless the user already claimed the concern.
func (m *MemoryStore) CreateClaim(_ context.Context, c *domain.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := claimKey{userID: c.UserID, concernID: c.ConcernID}
	if _, exists := m.claimKeys[key]; exists {
		return ErrDuplicate
	}
	c.ID = m.newID()
	m.claims[c.ID] = *c
	m.claimKeys[key] = c.ID
	return nil
}

// GetClaim returns a claim by ID.
func (m *MemoryStore) GetClaim(_ context.Context, id int64) (domain.Claim, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.claims[id]
	return c, ok, nil
}

// GetClaimParties joins a claim to its claimer, concern and helper.
func (m *MemoryStore) GetClaimParties(_ context.Context, id int64) (domain.ClaimParties, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	claim, ok := m.claims[id]
	if !ok {
		return domain.ClaimParties{}, false, nil
	}
	claimer, ok := m.users[claim.UserID]
	if !ok {
		return domain.ClaimParties{}, false, nil
	}
	concern, ok := m.concerns[claim.ConcernID]
	if !ok {
		return domain.ClaimParties{}, false, nil
	}
	helper, ok := m.users[concern.UserID]
	if !ok {
		return domain.ClaimParties{}, false, nil
	}
	return domain.ClaimParties{
		ClaimID:      claim.ID,
		ItemName:     concern.ItemName,
		ClaimerName:  claimer.FullName,
		ClaimerEmail: claimer.Email,
		HelperName:   helper.FullName,
		HelperEmail:  helper.Email,
	}, true, nil
}

// SetClaimStatus updates a claim status.
func (m *MemoryStore) SetClaimStatus(_ context.Context, id int64, status domain.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return false, nil
	}
	c.Status = status
	m.claims[id] = c
	return true, nil
}

// joinedClaims returns claims whose claimer and concern still exist, newest first.
func (m *MemoryStore) joinedClaims() []domain.Claim {
	res := make([]domain.Claim, 0, len(m.claims))
	for _, c := range m.claims {
		if _, ok := m.users[c.UserID]; !ok {
			continue
		}
		if _, ok := m.concerns[c.ConcernID]; !ok {
			continue
		}
		res = append(res, c)
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].ClaimedAt.Equal(res[j].ClaimedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].ClaimedAt.After(res[j].ClaimedAt)
	})
	return res
}

// ListPendingClaims returns pending claims, newest first.
func (m *MemoryStore) ListPendingClaims(_ context.Context) ([]domain.PendingClaim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.PendingClaim, 0)
	for _, c := range m.joinedClaims() {
		if c.Status != domain.StatusPending {
			continue
		}
		u := m.users[c.UserID]
		concern := m.concerns[c.ConcernID]
		res = append(res, domain.PendingClaim{
			ClaimID:     c.ID,
			ClaimStatus: c.Status,
			ClaimedAt:   c.ClaimedAt,
			FullName:    u.FullName,
			Email:       u.Email,
			ItemName:    concern.ItemName,
			Category:    concern.Category,
			Location:    concern.Location,
			Date:        concern.Date,
		})
	}
	return res, nil
}

// ListClaimers returns every claim with claimer and item names.
func (m *MemoryStore) ListClaimers(_ context.Context) ([]domain.Claimer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	claims := m.joinedClaims()
	res := make([]domain.Claimer, 0, len(claims))
	for _, c := range claims {
		res = append(res, domain.Claimer{
			UserName:  m.users[c.UserID].FullName,
			ItemName:  m.concerns[c.ConcernID].ItemName,
			ClaimedAt: c.ClaimedAt,
			Status:    c.Status,
		})
	}
	return res, nil
}

// ListClaimedConcernIDs returns concern IDs claimed by the user with email.
func (m *MemoryStore) ListClaimedConcernIDs(_ context.Context, email string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uid, ok := m.emails[email]
	if !ok {
		return []int64{}, nil
	}
	ids := make([]int64, 0)
	for _, c := range m.claims {
		if c.UserID == uid {
			ids = append(ids, c.ConcernID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ListHelpers returns users with approved found items, busiest first.
func (m *MemoryStore) ListHelpers(_ context.Context) ([]domain.Helper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[int64]int64)
	for _, c := range m.concerns {
		if c.ItemType == domain.ItemFound && c.Status == domain.StatusApproved {
			counts[c.UserID]++
		}
	}
	res := make([]domain.Helper, 0, len(counts))
	for uid, n := range counts {
		u, ok := m.users[uid]
		if !ok {
			continue
		}
		res = append(res, domain.Helper{FullName: u.FullName, Email: u.Email, FoundCount: n})
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].FoundCount == res[j].FoundCount {
			return res[i].Email < res[j].Email
		}
		return res[i].FoundCount > res[j].FoundCount
	})
	return res, nil
}
