package model

import (
	"time"

	"github.com/google/uuid"
)

// User stores operators with role-based access.
// Role: "operator" | "manager" | "admin"
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	Email        *string
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"type:varchar(20);not null"`
	// StoreID is the tenant the user works for; empty for admins spanning stores
	StoreID   string `gorm:"type:varchar(64)"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string { return "users" }
