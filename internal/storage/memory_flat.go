package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu          sync.RWMutex
	tariffs     map[string]TariffDoc
	snaps       map[string]ResolutionSnapshot
	settings    map[string]string
	users       map[string]User
	tokens      map[string]Token
	rules       []CasbinRule
	emailConfig *EmailConfig
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		tariffs:  make(map[string]TariffDoc),
		snaps:    make(map[string]ResolutionSnapshot),
		settings: make(map[string]string),
		users:    make(map[string]User),
		tokens:   make(map[string]Token),
	}
}

// NewMemoryWithTariffs returns a MemoryStorage preloaded with the given
// tariff documents. Conversion from catalog sample records is done by
// callers to keep this package free of a catalog import (avoids cycles).
func NewMemoryWithTariffs(list []TariffDoc) *MemoryStorage {
	m := NewMemory()
	for _, doc := range list {
		if doc.UpdatedAt.IsZero() {
			doc.UpdatedAt = time.Now()
		}
		m.tariffs[doc.ID] = doc
	}
	return m
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) ListTariffs(ctx context.Context) ([]TariffDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TariffDoc, 0, len(m.tariffs))
	for _, doc := range m.tariffs {
		cp := doc
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) GetTariff(ctx context.Context, id string) (*TariffDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.tariffs[id]
	if !ok {
		return nil, nil
	}
	cp := doc
	return &cp, nil
}

func (m *MemoryStorage) UpsertTariff(ctx context.Context, doc TariffDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	m.tariffs[doc.ID] = doc
	return nil
}

func (m *MemoryStorage) DeleteTariff(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tariffs, id)
	delete(m.snaps, id)
	return nil
}

func (m *MemoryStorage) GetResolutionSnapshot(ctx context.Context, tariffID string) (*ResolutionSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snaps[tariffID]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (m *MemoryStorage) SaveResolutionSnapshot(ctx context.Context, snap ResolutionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.ResolvedAt.IsZero() {
		snap.ResolvedAt = time.Now()
	}
	m.snaps[snap.TariffID] = snap
	return nil
}

func (m *MemoryStorage) DeleteResolutionSnapshots(ctx context.Context, tariffID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, tariffID)
	return nil
}

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStorage) CreateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := u
	return &cp, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *MemoryStorage) CreateToken(ctx context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			cp := t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Token
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok {
		return nil
	}
	now := time.Now()
	t.LastUsedAt = &now
	m.tokens[id] = t
	return nil
}

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CasbinRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := m.rules[:0]
	for _, r := range m.rules {
		if r.PType == rule.PType && r.V0 == rule.V0 && r.V1 == rule.V1 && r.V2 == rule.V2 {
			continue
		}
		keep = append(keep, r)
	}
	m.rules = keep
	return nil
}

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.emailConfig == nil {
		return nil, nil
	}
	cp := *m.emailConfig
	return &cp, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailConfig = &config
	return nil
}
