package storage

import "time"

// TariffDoc holds a stored URDB tariff document: header fields lifted out of
// the payload for listing, plus the raw JSON the resolver consumes.
type TariffDoc struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	Utility   string    `json:"utility" gorm:"column:utility"`
	Name      string    `json:"name" gorm:"column:name"`
	Sector    string    `json:"sector" gorm:"column:sector"`
	Source    string    `json:"source,omitempty" gorm:"column:source"`
	Payload   []byte    `json:"-" gorm:"column:payload"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (TariffDoc) TableName() string { return "tariffs" }

// ResolutionSnapshot stores a previously computed resolution payload
// (matrices, flat demand, summaries) for a tariff.
type ResolutionSnapshot struct {
	ID         uint      `json:"-" gorm:"primaryKey;column:id"`
	TariffID   string    `json:"tariff_id" gorm:"column:tariff_id"`
	Payload    []byte    `json:"payload" gorm:"column:payload"`
	ResolvedAt time.Time `json:"resolved_at" gorm:"column:resolved_at"`
}

func (ResolutionSnapshot) TableName() string { return "resolution_snapshots" }

// Setting is a runtime-tunable key/value pair.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Setting) TableName() string { return "settings" }

// ScheduledJob records the outcome of the last run of a background job.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}

func (ScheduledJob) TableName() string { return "scheduled_jobs" }

// User represents a registered user in the system.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;column:id"`
	Username     string    `json:"username" gorm:"unique;column:username"`
	Email        string    `json:"email" gorm:"column:email"`
	PasswordHash string    `json:"-" gorm:"column:password_hash"`
	Role         string    `json:"role" gorm:"column:role"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (User) TableName() string { return "users" }

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

func (Token) TableName() string { return "tokens" }

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

func (CasbinRule) TableName() string { return "casbin_rules" }

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail", "resend"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"`
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (EmailConfig) TableName() string { return "email_config" }
