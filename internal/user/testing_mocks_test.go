package user

import (
	"context"
	"sync"
	"time"

	"profile_hub_backend/internal/common"
)

// memRepository is an in-memory Repository double used by the service and
// handler tests. It mirrors the store contract: point lookup/merge/delete,
// scan-based filtering, atomic view increments and a conditional-create
// username index.
type memRepository struct {
	mu     sync.Mutex
	items  map[string]*Profile
	claims map[string]string
}

func newMemRepository() *memRepository {
	return &memRepository{
		items:  make(map[string]*Profile),
		claims: make(map[string]string),
	}
}

func (m *memRepository) Get(ctx context.Context, uid string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[uid]
	if !ok {
		return nil, common.ErrNotFound.WithDetails("User not found")
	}
	clone := *p
	return &clone, nil
}

func (m *memRepository) Put(ctx context.Context, profile *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *profile
	m.items[profile.UID] = &clone
	return nil
}

func (m *memRepository) Patch(ctx context.Context, uid string, attrs map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[uid]
	if !ok {
		return nil
	}
	for k, v := range attrs {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				p.Name = s
			}
		case "photoURL":
			if s, ok := v.(string); ok {
				p.PhotoURL = s
			}
		case "lastLogin":
			if t, ok := v.(time.Time); ok {
				p.LastLogin = t
			}
		case "updatedAt":
			if t, ok := v.(time.Time); ok {
				p.UpdatedAt = &t
			}
		case "profileViews":
			switch n := v.(type) {
			case int:
				p.ProfileViews = int64(n)
			case int64:
				p.ProfileViews = n
			case float64:
				p.ProfileViews = int64(n)
			}
		}
		// Unknown attributes are accepted and dropped, like extra hash fields.
	}
	return nil
}

func (m *memRepository) Delete(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, uid)
	return nil
}

func (m *memRepository) FindByUsername(ctx context.Context, username string) ([]*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []*Profile
	for _, p := range m.items {
		if p.Username == username {
			clone := *p
			matches = append(matches, &clone)
		}
	}
	return matches, nil
}

func (m *memRepository) FindByEmail(ctx context.Context, email string) ([]*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []*Profile
	for _, p := range m.items {
		if p.Email == email {
			clone := *p
			matches = append(matches, &clone)
		}
	}
	return matches, nil
}

func (m *memRepository) IncrementViews(ctx context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[uid]
	if !ok {
		// Store-side counter initializes on first touch, like if_not_exists.
		m.items[uid] = &Profile{UID: uid, ProfileViews: 1}
		return nil
	}
	p.ProfileViews++
	return nil
}

func (m *memRepository) All(ctx context.Context) ([]*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Profile
	for _, p := range m.items {
		clone := *p
		all = append(all, &clone)
	}
	return all, nil
}

func (m *memRepository) ClaimUsername(ctx context.Context, username, uid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.claims[username]; taken {
		return false, nil
	}
	m.claims[username] = uid
	return true, nil
}

func (m *memRepository) ReleaseUsername(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, username)
	return nil
}

// fakeIdentity records best-effort identity deletions.
type fakeIdentity struct {
	mu      sync.Mutex
	err     error
	deleted []string
}

func (f *fakeIdentity) DeleteUser(ctx context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, uid)
	return nil
}

func (f *fakeIdentity) deletedUIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}
