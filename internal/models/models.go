package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Permission struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	Name               string    `gorm:"uniqueIndex;not null" json:"name"` // resource.action
	DisplayName        string    `gorm:"not null" json:"display_name"`
	Description        string    `json:"description"`
	Resource           string    `gorm:"index;not null" json:"resource"`
	Action             string    `gorm:"not null" json:"action"`
	Category           string    `json:"category"`
	IsSystemPermission bool      `gorm:"not null;default:false" json:"is_system_permission"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Role groups permissions. Hierarchy orders roles, lower value = more senior.
type Role struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	Name         string       `gorm:"uniqueIndex;not null" json:"name"`
	DisplayName  string       `gorm:"not null" json:"display_name"`
	Description  string       `json:"description"`
	Hierarchy    int          `gorm:"not null;default:100" json:"hierarchy"`
	IsSystemRole bool         `gorm:"not null;default:false" json:"is_system_role"`
	Permissions  []Permission `gorm:"many2many:role_permissions" json:"permissions"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

type User struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Email         string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string     `gorm:"not null" json:"-"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	IsActive      bool       `gorm:"not null;default:true" json:"is_active"`
	EmailVerified bool       `gorm:"not null;default:false" json:"email_verified"`
	Roles         []Role     `gorm:"many2many:user_roles" json:"roles"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	LastLoginIP   string     `json:"last_login_ip,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Session is the server-side half of a refresh token. TokenHash is a salted
// hash, never the token itself.
type Session struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;index;not null" json:"user_id"`
	TokenHash string    `gorm:"not null" json:"-"`
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	Browser   string    `json:"browser"`
	OS        string    `json:"os"`
	IsValid   bool      `gorm:"not null;default:true;index" json:"is_valid"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Setting is a singleton row (ID is always 1).
type Setting struct {
	ID                 int       `gorm:"primaryKey" json:"id"`
	AccessTokenSecret  string    `gorm:"not null" json:"-"`
	RefreshTokenSecret string    `gorm:"not null" json:"-"`
	AccessTokenTTL     string    `gorm:"not null;default:15m" json:"access_token_ttl"`
	RefreshTokenTTL    string    `gorm:"not null;default:168h" json:"refresh_token_ttl"`
	ExtendedRefreshTTL string    `gorm:"not null;default:720h" json:"extended_refresh_ttl"`
	MaxLoginAttempts   int       `gorm:"not null;default:5" json:"max_login_attempts"`
	LockoutDuration    string    `gorm:"not null;default:1m" json:"lockout_duration"`
	CompanyName        string    `json:"company_name"`
	CompanyLogoURL     string    `json:"company_logo_url"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type AuditLog struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       *string   `gorm:"size:36;index" json:"user_id,omitempty"`
	UserEmail    string    `json:"user_email"`
	Action       string    `gorm:"not null;index" json:"action"`
	Resource     string    `gorm:"index" json:"resource"`
	ResourceID   string    `json:"resource_id,omitempty"`
	Status       string    `gorm:"index" json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Details      JSONB     `gorm:"type:jsonb" json:"details"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}
