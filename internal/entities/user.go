package entities

import (
	"time"

	"gorm.io/gorm"
)

// User is a credential record resolved by the auth guard. The same model
// backs every configured guard; each guard reads its own table.
type User struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Email         string         `gorm:"uniqueIndex;size:255" json:"email"`
	Username      string         `gorm:"index;size:100" json:"username,omitempty"`
	PasswordHash  string         `gorm:"column:password_hash;size:100" json:"-"`
	Activated     bool           `gorm:"default:false" json:"activated"`
	RememberToken string         `gorm:"column:remember_token;size:512" json:"-"`
	LastLoginAt   *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}
