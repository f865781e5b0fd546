package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Email        string    `gorm:"uniqueIndex;not null"`
	FullName     string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	IsAdmin      bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type ConcernModel struct {
	ID          int64          `gorm:"primaryKey;autoIncrement"`
	UserID      int64          `gorm:"not null;index"`
	ItemName    string         `gorm:"not null"`
	Category    string         `gorm:"not null;index"`
	Date        datatypes.Date `gorm:"not null"`
	Location    string         `gorm:"not null"`
	Description string         `gorm:"type:text;not null"`
	Image       string         `gorm:"not null;default:''"`
	ItemType    string         `gorm:"not null;index"`
	Status      string         `gorm:"not null;default:'pending';index"`
	CreatedAt   time.Time      `gorm:"not null;index"`
}

func (ConcernModel) TableName() string { return "concerns" }

// ClaimModel carries the (user_id, concern_id) unique index that makes a
// second claim by the same user fail in the database.
type ClaimModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_claims_user_concern,priority:1"`
	ConcernID int64     `gorm:"not null;index;uniqueIndex:idx_claims_user_concern,priority:2"`
	Status    string    `gorm:"not null;default:'pending';index"`
	ClaimedAt time.Time `gorm:"not null;index"`
}

func (ClaimModel) TableName() string { return "claims" }
