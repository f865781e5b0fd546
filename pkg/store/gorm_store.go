package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"findit/pkg/domain"
)

const migrateLockID int64 = 51706233

const sqlitePrefix = "sqlite://"

const pgUniqueViolation = "23505"

var lostOrder = map[domain.SortKey]string{
	domain.SortDefault:  "created_at DESC",
	domain.SortDateAsc:  "date ASC",
	domain.SortDateDesc: "date DESC",
	domain.SortNameAsc:  "item_name ASC",
	domain.SortNameDesc: "item_name DESC",
}

// GormStore implements Store using GORM. Postgres is the production
// dialect; a DSN of the form sqlite://<path> selects SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	cfg := &gorm.Config{Logger: newGormLogger(slog.Default(), time.Second), TranslateError: true}

	if path, ok := strings.CutPrefix(dsn, sqlitePrefix); ok {
		db, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
		if err := migrate(db); err != nil {
			return nil, err
		}
		return &GormStore{db: db}, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, migrate); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserModel{}, &ConcernModel{}, &ClaimModel{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isDuplicate reports whether err is a uniqueness violation, either already
// translated by GORM or as a raw Postgres error.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// CreateUser inserts a user and fills the generated ID.
func (s *GormStore) CreateUser(ctx context.Context, u *domain.User) error {
	model := userToModel(*u)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	u.ID = model.ID
	return nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateConcern inserts a concern and fills the generated ID.
func (s *GormStore) CreateConcern(ctx context.Context, c *domain.Concern) error {
	model := concernToModel(*c)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	c.ID = model.ID
	return nil
}

// GetConcern retrieves a concern.
func (s *GormStore) GetConcern(ctx context.Context, id int64) (domain.Concern, bool, error) {
	var model ConcernModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Concern{}, false, nil
		}
		return domain.Concern{}, false, err
	}
	return concernFromModel(model), true, nil
}

type concernReporterRow struct {
	ConcernModel
	FullName string
	Email    string
}

// GetConcernWithReporter returns a concern joined with its reporter.
func (s *GormStore) GetConcernWithReporter(ctx context.Context, id int64) (domain.ConcernWithReporter, bool, error) {
	var rows []concernReporterRow
	err := s.concernsWithReporter(ctx).
		Where("concerns.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return domain.ConcernWithReporter{}, false, err
	}
	if len(rows) == 0 {
		return domain.ConcernWithReporter{}, false, nil
	}
	return concernReporterFromRow(rows[0]), true, nil
}

// ListConcernsWithReporter returns every concern with its reporter, newest first.
func (s *GormStore) ListConcernsWithReporter(ctx context.Context) ([]domain.ConcernWithReporter, error) {
	var rows []concernReporterRow
	if err := s.concernsWithReporter(ctx).Order("concerns.created_at DESC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ConcernWithReporter, 0, len(rows))
	for _, row := range rows {
		res = append(res, concernReporterFromRow(row))
	}
	return res, nil
}

func (s *GormStore) concernsWithReporter(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("concerns").
		Select("concerns.*, users.full_name AS full_name, users.email AS email").
		Joins("JOIN users ON concerns.user_id = users.id")
}

// SetConcernStatus updates the status of a concern.
func (s *GormStore) SetConcernStatus(ctx context.Context, id int64, status domain.Status) (bool, error) {
	res := s.db.WithContext(ctx).Model(&ConcernModel{}).
		Where("id = ?", id).
		Update("status", string(status))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateConcern overwrites the editable fields of a concern.
func (s *GormStore) UpdateConcern(ctx context.Context, id int64, upd domain.ConcernUpdate) (bool, error) {
	updates := map[string]any{
		"item_name":   upd.ItemName,
		"category":    upd.Category,
		"date":        datatypes.Date(upd.Date),
		"location":    upd.Location,
		"description": upd.Description,
	}
	if upd.Status != nil {
		updates["status"] = string(*upd.Status)
	}
	res := s.db.WithContext(ctx).Model(&ConcernModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteConcern removes a concern. Claims referencing it are left in place.
func (s *GormStore) DeleteConcern(ctx context.Context, id int64) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&ConcernModel{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListConcerns returns concerns matching filter.
func (s *GormStore) ListConcerns(ctx context.Context, filter ConcernFilter) ([]domain.Concern, error) {
	tx := s.db.WithContext(ctx).Model(&ConcernModel{})
	if filter.UserID != 0 {
		tx = tx.Where("user_id = ?", filter.UserID)
	}
	if filter.ItemType != "" {
		tx = tx.Where("item_type = ?", string(filter.ItemType))
	}
	if filter.Status != "" {
		tx = tx.Where("status = ?", string(filter.Status))
	}
	if filter.ByDate {
		tx = tx.Order("date DESC")
	} else {
		tx = tx.Order("created_at DESC")
	}
	return findConcerns(tx)
}

// ListLost returns approved lost items matching filter. Every user-supplied
// value is bound; the ORDER BY clause comes from a fixed table.
func (s *GormStore) ListLost(ctx context.Context, filter domain.LostFilter) ([]domain.Concern, error) {
	order, ok := lostOrder[filter.Sort]
	if !ok {
		return nil, fmt.Errorf("unsupported sort key %q", filter.Sort)
	}
	tx := s.db.WithContext(ctx).Model(&ConcernModel{}).
		Where("item_type = ? AND status = ?", string(domain.ItemLost), string(domain.StatusApproved))
	if filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		tx = tx.Where(`(LOWER(item_name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if filter.Category != "" {
		tx = tx.Where("category = ?", filter.Category)
	}
	tx = tx.Order(order)
	if filter.Limit > 0 {
		tx = tx.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		tx = tx.Offset(filter.Offset)
	}
	return findConcerns(tx)
}

func findConcerns(tx *gorm.DB) ([]domain.Concern, error) {
	var models []ConcernModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Concern, 0, len(models))
	for _, m := range models {
		res = append(res, concernFromModel(m))
	}
	return res, nil
}

// ListItemNames returns the distinct item names of all concerns.
func (s *GormStore) ListItemNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&ConcernModel{}).
		Distinct("item_name").
		Order("item_name ASC").
		Pluck("item_name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// CountConcerns counts concerns, optionally restricted to one status.
func (s *GormStore) CountConcerns(ctx context.Context, status domain.Status) (int64, error) {
	var count int64
	tx := s.db.WithContext(ctx).Model(&ConcernModel{})
	if status != "" {
		tx = tx.Where("status = ?", string(status))
	}
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateClaim inserts a claim. A second claim for the same user and concern
// returns ErrDuplicate.
func (s *GormStore) CreateClaim(ctx context.Context, c *domain.Claim) error {
	model := claimToModel(*c)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	c.ID = model.ID
	return nil
}

// GetClaim returns a claim by ID.
func (s *GormStore) GetClaim(ctx context.Context, id int64) (domain.Claim, bool, error) {
	var model ClaimModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Claim{}, false, nil
		}
		return domain.Claim{}, false, err
	}
	return claimFromModel(model), true, nil
}

type claimPartiesRow struct {
	ClaimID      int64
	ItemName     string
	ClaimerName  string
	ClaimerEmail string
	HelperName   string
	HelperEmail  string
}

// GetClaimParties joins a claim to its claimer, concern and helper.
func (s *GormStore) GetClaimParties(ctx context.Context, id int64) (domain.ClaimParties, bool, error) {
	var rows []claimPartiesRow
	err := s.db.WithContext(ctx).
		Table("claims").
		Select(`claims.id AS claim_id,
			concerns.item_name AS item_name,
			claimers.full_name AS claimer_name,
			claimers.email AS claimer_email,
			helpers.full_name AS helper_name,
			helpers.email AS helper_email`).
		Joins("JOIN users AS claimers ON claims.user_id = claimers.id").
		Joins("JOIN concerns ON claims.concern_id = concerns.id").
		Joins("JOIN users AS helpers ON concerns.user_id = helpers.id").
		Where("claims.id = ?", id).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return domain.ClaimParties{}, false, err
	}
	if len(rows) == 0 {
		return domain.ClaimParties{}, false, nil
	}
	row := rows[0]
	return domain.ClaimParties{
		ClaimID:      row.ClaimID,
		ItemName:     row.ItemName,
		ClaimerName:  row.ClaimerName,
		ClaimerEmail: row.ClaimerEmail,
		HelperName:   row.HelperName,
		HelperEmail:  row.HelperEmail,
	}, true, nil
}

// SetClaimStatus updates the status of a claim.
func (s *GormStore) SetClaimStatus(ctx context.Context, id int64, status domain.Status) (bool, error) {
	res := s.db.WithContext(ctx).Model(&ClaimModel{}).
		Where("id = ?", id).
		Update("status", string(status))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type pendingClaimRow struct {
	ClaimID     int64
	ClaimStatus string
	ClaimedAt   time.Time
	FullName    string
	Email       string
	ItemName    string
	Category    string
	Location    string
	Date        time.Time
}

// ListPendingClaims returns pending claims with claimer and item details,
// newest first.
func (s *GormStore) ListPendingClaims(ctx context.Context) ([]domain.PendingClaim, error) {
	var rows []pendingClaimRow
	err := s.db.WithContext(ctx).
		Table("claims").
		Select(`claims.id AS claim_id,
			claims.status AS claim_status,
			claims.claimed_at AS claimed_at,
			users.full_name AS full_name,
			users.email AS email,
			concerns.item_name AS item_name,
			concerns.category AS category,
			concerns.location AS location,
			concerns.date AS date`).
		Joins("JOIN concerns ON claims.concern_id = concerns.id").
		Joins("JOIN users ON claims.user_id = users.id").
		Where("claims.status = ?", string(domain.StatusPending)).
		Order("claims.claimed_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.PendingClaim, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.PendingClaim{
			ClaimID:     row.ClaimID,
			ClaimStatus: domain.Status(row.ClaimStatus),
			ClaimedAt:   row.ClaimedAt,
			FullName:    row.FullName,
			Email:       row.Email,
			ItemName:    row.ItemName,
			Category:    row.Category,
			Location:    row.Location,
			Date:        row.Date,
		})
	}
	return res, nil
}

type claimerRow struct {
	UserName  string
	ItemName  string
	ClaimedAt time.Time
	Status    string
}

// ListClaimers returns every claim with claimer and item names.
func (s *GormStore) ListClaimers(ctx context.Context) ([]domain.Claimer, error) {
	var rows []claimerRow
	err := s.db.WithContext(ctx).
		Table("claims").
		Select(`users.full_name AS user_name,
			concerns.item_name AS item_name,
			claims.claimed_at AS claimed_at,
			claims.status AS status`).
		Joins("JOIN users ON claims.user_id = users.id").
		Joins("JOIN concerns ON claims.concern_id = concerns.id").
		Order("claims.claimed_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Claimer, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.Claimer{
			UserName:  row.UserName,
			ItemName:  row.ItemName,
			ClaimedAt: row.ClaimedAt,
			Status:    domain.Status(row.Status),
		})
	}
	return res, nil
}

// ListClaimedConcernIDs returns the concerns claimed by the user with email.
func (s *GormStore) ListClaimedConcernIDs(ctx context.Context, email string) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Table("claims").
		Joins("JOIN users ON claims.user_id = users.id").
		Where("users.email = ?", email).
		Order("claims.concern_id ASC").
		Pluck("claims.concern_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ListHelpers returns users with approved found items, busiest first.
func (s *GormStore) ListHelpers(ctx context.Context) ([]domain.Helper, error) {
	var rows []domain.Helper
	err := s.db.WithContext(ctx).
		Table("users").
		Select("users.full_name AS full_name, users.email AS email, COUNT(concerns.id) AS found_count").
		Joins("JOIN concerns ON users.id = concerns.user_id").
		Where("concerns.item_type = ? AND concerns.status = ?", string(domain.ItemFound), string(domain.StatusApproved)).
		Group("users.id, users.full_name, users.email").
		Order("found_count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// escapeLike escapes LIKE wildcards so user text only matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		FullName:     m.FullName,
		PasswordHash: m.PasswordHash,
		IsAdmin:      m.IsAdmin,
		CreatedAt:    m.CreatedAt,
	}
}

func concernToModel(c domain.Concern) ConcernModel {
	return ConcernModel{
		ID:          c.ID,
		UserID:      c.UserID,
		ItemName:    c.ItemName,
		Category:    c.Category,
		Date:        datatypes.Date(c.Date),
		Location:    c.Location,
		Description: c.Description,
		Image:       c.Image,
		ItemType:    string(c.ItemType),
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
	}
}

func concernFromModel(m ConcernModel) domain.Concern {
	return domain.Concern{
		ID:          m.ID,
		UserID:      m.UserID,
		ItemName:    m.ItemName,
		Category:    m.Category,
		Date:        time.Time(m.Date),
		Location:    m.Location,
		Description: m.Description,
		Image:       m.Image,
		ItemType:    domain.ItemType(m.ItemType),
		Status:      domain.Status(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}

func concernReporterFromRow(row concernReporterRow) domain.ConcernWithReporter {
	return domain.ConcernWithReporter{
		Concern:  concernFromModel(row.ConcernModel),
		FullName: row.FullName,
		Email:    row.Email,
	}
}

func claimToModel(c domain.Claim) ClaimModel {
	return ClaimModel{
		ID:        c.ID,
		UserID:    c.UserID,
		ConcernID: c.ConcernID,
		Status:    string(c.Status),
		ClaimedAt: c.ClaimedAt,
	}
}

func claimFromModel(m ClaimModel) domain.Claim {
	return domain.Claim{
		ID:        m.ID,
		UserID:    m.UserID,
		ConcernID: m.ConcernID,
		Status:    domain.Status(m.Status),
		ClaimedAt: m.ClaimedAt,
	}
}
