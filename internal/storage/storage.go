package storage

import "context"

// Storage abstracts persistence for tariff documents, resolution snapshots,
// and the supporting auth/settings/email tables.
type Storage interface {
	// Tariff documents
	ListTariffs(ctx context.Context) ([]TariffDoc, error)
	GetTariff(ctx context.Context, id string) (*TariffDoc, error)
	UpsertTariff(ctx context.Context, doc TariffDoc) error
	DeleteTariff(ctx context.Context, id string) error

	// Resolution snapshots
	GetResolutionSnapshot(ctx context.Context, tariffID string) (*ResolutionSnapshot, error)
	SaveResolutionSnapshot(ctx context.Context, snap ResolutionSnapshot) error
	DeleteResolutionSnapshots(ctx context.Context, tariffID string) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources (no-op for in-memory).
	Close() error
}
