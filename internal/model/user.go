package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a user's permission level.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// User is an account. Superadmins have no company.
type User struct {
	ID                 string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Username           string     `gorm:"size:80;not null;uniqueIndex:idx_users_username_company" json:"username"`
	Email              string     `gorm:"size:120;not null;uniqueIndex" json:"email"`
	PasswordHash       string     `gorm:"size:256;not null" json:"-"`
	CompanyID          *string    `gorm:"type:varchar(36);index;uniqueIndex:idx_users_username_company" json:"company_id"`
	Role               Role       `gorm:"size:20;not null;default:user" json:"role"`
	PhoneNumber        string     `gorm:"size:20" json:"phone_number"`
	DOB                *time.Time `gorm:"type:date" json:"dob"`
	ProfilePicturePath string     `gorm:"size:256" json:"profile_picture_path"`
	CreatedAt          time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"not null" json:"-"`

	// Associations
	Company *Company `gorm:"constraint:OnDelete:CASCADE" json:"company,omitempty"`
}

// BeforeCreate assigns a random id when none was set.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// CompanyIDValue returns the company id or "" for superadmins.
func (u *User) CompanyIDValue() string {
	if u.CompanyID == nil {
		return ""
	}
	return *u.CompanyID
}
