// File: internal/user/repository.go
package user

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"profile_hub_backend/internal/common"
	"profile_hub_backend/internal/config"
)

// Repository defines the interface for profile store operations. The backing
// table is keyed by uid; lookups by any other attribute require a scan.
type Repository interface {
	// Get returns the profile stored under uid, or common.ErrNotFound.
	Get(ctx context.Context, uid string) (*Profile, error)
	// Put writes the full record, silently replacing any record with the
	// same uid. This is an unconditional put, not a create-if-absent.
	Put(ctx context.Context, profile *Profile) error
	// Patch merges the given attributes into the record. No-op if uid is absent.
	Patch(ctx context.Context, uid string, attrs map[string]interface{}) error
	// Delete removes the record by uid.
	Delete(ctx context.Context, uid string) error
	// FindByUsername scans the table for records whose stored username
	// matches exactly (case-sensitive). O(table size).
	FindByUsername(ctx context.Context, username string) ([]*Profile, error)
	// FindByEmail scans the table for records whose email matches exactly.
	FindByEmail(ctx context.Context, email string) ([]*Profile, error)
	// IncrementViews atomically adds 1 to profileViews, initializing the
	// counter to 0 if absent. Must be a single store-side operation.
	IncrementViews(ctx context.Context, uid string) error
	// All returns every record in the table.
	All(ctx context.Context) ([]*Profile, error)
	// ClaimUsername conditionally creates a uniqueness-index entry for the
	// normalized username. Returns false if the name is already claimed.
	ClaimUsername(ctx context.Context, username, uid string) (bool, error)
	// ReleaseUsername drops the uniqueness-index entry for the username.
	ReleaseUsername(ctx context.Context, username string) error
}

const usernameIndexPrefix = "username:"

type redisRepository struct {
	rdb       *redis.Client
	keyPrefix string
	scanCount int64
}

// NewRedisRepository creates a profile repository backed by Redis. Each
// profile is a hash at <prefix><uid>; the username uniqueness index lives at
// username:<normalized>.
func NewRedisRepository(rdb *redis.Client, cfg *config.Config) Repository {
	return &redisRepository{
		rdb:       rdb,
		keyPrefix: cfg.UserKeyPrefix,
		scanCount: cfg.RedisScanCount,
	}
}

func (r *redisRepository) key(uid string) string {
	return r.keyPrefix + uid
}

func (r *redisRepository) Get(ctx context.Context, uid string) (*Profile, error) {
	fields, err := r.rdb.HGetAll(ctx, r.key(uid)).Result()
	if err != nil {
		return nil, fmt.Errorf("profile store lookup failed for %s: %w", uid, err)
	}
	if len(fields) == 0 {
		return nil, common.ErrNotFound.WithDetails("User not found")
	}
	return decodeProfile(fields), nil
}

func (r *redisRepository) Put(ctx context.Context, profile *Profile) error {
	if err := r.rdb.HSet(ctx, r.key(profile.UID), encodeProfile(profile)).Err(); err != nil {
		return fmt.Errorf("profile store put failed for %s: %w", profile.UID, err)
	}
	return nil
}

func (r *redisRepository) Patch(ctx context.Context, uid string, attrs map[string]interface{}) error {
	if len(attrs) == 0 {
		return nil
	}
	exists, err := r.rdb.Exists(ctx, r.key(uid)).Result()
	if err != nil {
		return fmt.Errorf("profile store existence check failed for %s: %w", uid, err)
	}
	if exists == 0 {
		return nil
	}
	encoded := make(map[string]interface{}, len(attrs))
	for k, v := range attrs {
		encoded[k] = encodeAttr(v)
	}
	if err := r.rdb.HSet(ctx, r.key(uid), encoded).Err(); err != nil {
		return fmt.Errorf("profile store patch failed for %s: %w", uid, err)
	}
	return nil
}

func (r *redisRepository) Delete(ctx context.Context, uid string) error {
	if err := r.rdb.Del(ctx, r.key(uid)).Err(); err != nil {
		return fmt.Errorf("profile store delete failed for %s: %w", uid, err)
	}
	return nil
}

func (r *redisRepository) FindByUsername(ctx context.Context, username string) ([]*Profile, error) {
	return r.scanMatching(ctx, "username", username)
}

func (r *redisRepository) FindByEmail(ctx context.Context, email string) ([]*Profile, error) {
	return r.scanMatching(ctx, "email", email)
}

func (r *redisRepository) IncrementViews(ctx context.Context, uid string) error {
	if err := r.rdb.HIncrBy(ctx, r.key(uid), "profileViews", 1).Err(); err != nil {
		return fmt.Errorf("failed to increment views for %s: %w", uid, err)
	}
	return nil
}

func (r *redisRepository) All(ctx context.Context) ([]*Profile, error) {
	return r.scanMatching(ctx, "", "")
}

func (r *redisRepository) ClaimUsername(ctx context.Context, username, uid string) (bool, error) {
	claimed, err := r.rdb.SetNX(ctx, usernameIndexPrefix+username, uid, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim username %s: %w", username, err)
	}
	return claimed, nil
}

func (r *redisRepository) ReleaseUsername(ctx context.Context, username string) error {
	if err := r.rdb.Del(ctx, usernameIndexPrefix+username).Err(); err != nil {
		return fmt.Errorf("failed to release username %s: %w", username, err)
	}
	return nil
}

// scanMatching walks every profile hash and keeps records whose field equals
// value. An empty field returns all records.
func (r *redisRepository) scanMatching(ctx context.Context, field, value string) ([]*Profile, error) {
	var matches []*Profile
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.keyPrefix+"*", r.scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("profile store scan failed: %w", err)
		}
		for _, key := range keys {
			fields, err := r.rdb.HGetAll(ctx, key).Result()
			if err != nil {
				return nil, fmt.Errorf("profile store scan read failed for %s: %w", key, err)
			}
			if len(fields) == 0 {
				continue
			}
			if field == "" || fields[field] == value {
				matches = append(matches, decodeProfile(fields))
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return matches, nil
}

func encodeProfile(p *Profile) map[string]interface{} {
	fields := map[string]interface{}{
		"uid":          p.UID,
		"email":        p.Email,
		"username":     p.Username,
		"name":         p.Name,
		"photoURL":     p.PhotoURL,
		"provider":     p.Provider,
		"createdAt":    p.CreatedAt.Format(time.RFC3339Nano),
		"lastLogin":    p.LastLogin.Format(time.RFC3339Nano),
		"profileViews": p.ProfileViews,
	}
	if p.UpdatedAt != nil {
		fields["updatedAt"] = p.UpdatedAt.Format(time.RFC3339Nano)
	}
	return fields
}

// decodeProfile maps stored hash fields onto a Profile. Unknown attributes
// written by the generic update path stay in the hash and are ignored here.
func decodeProfile(fields map[string]string) *Profile {
	p := &Profile{
		UID:      fields["uid"],
		Email:    fields["email"],
		Username: fields["username"],
		Name:     fields["name"],
		PhotoURL: fields["photoURL"],
		Provider: fields["provider"],
	}
	p.CreatedAt = parseStoredTime(fields["createdAt"])
	p.LastLogin = parseStoredTime(fields["lastLogin"])
	if raw, ok := fields["updatedAt"]; ok && raw != "" {
		t := parseStoredTime(raw)
		p.UpdatedAt = &t
	}
	if raw, ok := fields["profileViews"]; ok {
		views, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			p.ProfileViews = views
		}
	}
	return p
}

func parseStoredTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// encodeAttr converts an arbitrary attribute value into something the hash
// can hold. Timestamps are stored in the same format as encodeProfile.
func encodeAttr(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	default:
		return fmt.Sprint(val)
	}
}
