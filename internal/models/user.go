package models

import (
	"time"

	"gorm.io/gorm"
)

// User maps to the users table. It backs the built-in identity provider;
// Email is the identifier carried into every triage call.
type User struct {
	ID           int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	Email        string         `json:"email" gorm:"column:email;unique;not null;size:255"`
	DisplayName  string         `json:"displayName" gorm:"column:display_name;size:255"`
	PasswordHash string         `json:"-" gorm:"column:password_hash;not null;size:255"`
	Role         Role           `json:"role" gorm:"column:role;not null;default:'student';size:50"`
	CreatedAt    time.Time      `json:"createdAt" gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt    time.Time      `json:"updatedAt" gorm:"column:updated_at;not null;autoUpdateTime"`
	DeletedAt    gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index" swaggertype:"string" format:"date-time"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}
