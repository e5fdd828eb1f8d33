// File: internal/user/service.go
package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"profile_hub_backend/internal/common"
	"profile_hub_backend/internal/config"
)

// IdentityDeleter removes an account from the external identity provider's
// user directory. Implemented by firebase.Service.
type IdentityDeleter interface {
	DeleteUser(ctx context.Context, uid string) error
}

// Protected attributes that the generic update path silently filters out.
// Username changes go through the dedicated uniqueness-checked path only.
var protectedAttrs = map[string]struct{}{
	"uid":       {},
	"email":     {},
	"provider":  {},
	"createdAt": {},
	"username":  {},
}

const identityCleanupTimeout = 30 * time.Second

// Service owns the user-profile lifecycle: uniqueness enforcement, profile
// CRUD, login/registration orchestration and view counting. It is safe for
// concurrent use; the only shared state is the store and identity handles.
type Service struct {
	repo      Repository
	identity  IdentityDeleter
	cfg       *config.Config
	logger    *zap.Logger
	cleanupWG sync.WaitGroup
}

// NewService creates a new user profile service.
func NewService(repo Repository, identity IdentityDeleter, cfg *config.Config, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		identity: identity,
		cfg:      cfg,
		logger:   logger,
	}
}

// UsernameExists reports whether any stored profile carries exactly this
// username. The check is an exact match against the stored (already
// normalized) value; callers decide whether to normalize first.
func (s *Service) UsernameExists(ctx context.Context, username string) (bool, error) {
	matches, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return len(matches) > 0, nil
}

// EmailExists reports whether any stored profile uses this email.
func (s *Service) EmailExists(ctx context.Context, email string) (bool, error) {
	matches, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return len(matches) > 0, nil
}

// GetByUID returns the profile for uid, or common.ErrNotFound.
func (s *Service) GetByUID(ctx context.Context, uid string) (*Profile, error) {
	return s.repo.Get(ctx, uid)
}

// GetByUsername returns the profile stored under username. More than one
// match means the uniqueness invariant was violated; that case is logged and
// the first match returned.
func (s *Service) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	matches, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	if len(matches) == 0 {
		return nil, common.ErrNotFound.WithDetails("User not found")
	}
	if len(matches) > 1 {
		s.logger.Warn("Multiple users found with username", zap.String("username", username), zap.Int("count", len(matches)))
	}
	return matches[0], nil
}

// CreateUser inserts a profile record. The put is idempotent by key: a second
// call with the same uid silently replaces the stored record.
func (s *Service) CreateUser(ctx context.Context, profile *Profile) error {
	return s.repo.Put(ctx, profile)
}

// GenerateAvailableUsername returns base if no profile uses it, otherwise
// tries base1, base2, ... up to maxAttempts, and finally falls back to
// base + current unix timestamp to guarantee termination. Normalization is
// NOT applied here; call sites normalize just before persisting, so the
// returned candidate may still contain spaces or uppercase letters.
func (s *Service) GenerateAvailableUsername(ctx context.Context, base string, maxAttempts int) (string, error) {
	candidate := base
	for count := 0; count <= maxAttempts; count++ {
		taken, err := s.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(count+1)
	}
	// Not guaranteed unique if two callers land in the same second.
	return base + strconv.FormatInt(time.Now().Unix(), 10), nil
}

// UpdateLastLogin stamps lastLogin with the current time. No-op if uid is absent.
func (s *Service) UpdateLastLogin(ctx context.Context, uid string) error {
	if err := s.repo.Patch(ctx, uid, map[string]interface{}{"lastLogin": time.Now()}); err != nil {
		return fmt.Errorf("failed to update last login for %s: %w", uid, err)
	}
	return nil
}

// UpdateProfile merges attrs into the stored record, silently dropping the
// protected attributes, and always stamps updatedAt.
func (s *Service) UpdateProfile(ctx context.Context, uid string, attrs map[string]interface{}) error {
	merge := map[string]interface{}{"updatedAt": time.Now()}
	for k, v := range attrs {
		if _, protected := protectedAttrs[k]; protected {
			continue
		}
		merge[k] = v
	}
	if err := s.repo.Patch(ctx, uid, merge); err != nil {
		return fmt.Errorf("failed to update user profile for %s: %w", uid, err)
	}
	return nil
}

// DeleteUser removes the record by primary key.
func (s *Service) DeleteUser(ctx context.Context, uid string) error {
	return s.repo.Delete(ctx, uid)
}

// IncrementViews adds 1 to the profile's view counter as a single atomic
// store-side operation, so concurrent viewers never lose updates.
func (s *Service) IncrementViews(ctx context.Context, uid string) error {
	return s.repo.IncrementViews(ctx, uid)
}

// --- Orchestration flows ---

// Login looks up the caller's profile and touches lastLogin. An unknown uid
// with the social provider gets a profile created on the spot with a derived
// unique username; an unknown uid with any other provider must register first.
func (s *Service) Login(ctx context.Context, uid, email, provider, displayName string) (*Profile, error) {
	profile, err := s.repo.Get(ctx, uid)
	if err == nil {
		if err := s.UpdateLastLogin(ctx, uid); err != nil {
			return nil, err
		}
		return profile, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if provider != ProviderGoogle {
		return nil, common.ErrNotFound.WithDetails("User does not exist. Please register first.")
	}

	candidate, err := s.GenerateAvailableUsername(ctx, displayName, s.cfg.UsernameMaxAttempts)
	if err != nil {
		return nil, err
	}
	username := NormalizeUsername(candidate)

	claimed, err := s.repo.ClaimUsername(ctx, username, uid)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, common.ErrConflict.WithDetails("Username is already taken")
	}

	name := displayName
	if name == "" {
		name = candidate
	}
	now := time.Now()
	profile = &Profile{
		UID:          uid,
		Email:        email,
		Username:     username,
		Name:         name,
		PhotoURL:     s.cfg.DefaultPhotoURL,
		Provider:     provider,
		CreatedAt:    now,
		LastLogin:    now,
		ProfileViews: 0,
	}
	if err := s.CreateUser(ctx, profile); err != nil {
		if relErr := s.repo.ReleaseUsername(ctx, username); relErr != nil {
			s.logger.Error("Failed to release username claim after create failure", zap.Error(relErr), zap.String("username", username))
		}
		return nil, err
	}

	s.logger.Info("Created profile for first social login", zap.String("uid", uid), zap.String("username", username))
	return profile, nil
}

// Register creates a profile for an identity account that already exists
// upstream. Conflicts on email or username schedule best-effort removal of
// the orphaned identity record before failing.
func (s *Service) Register(ctx context.Context, uid, email, username, photoURL string) (*Profile, error) {
	if _, err := s.repo.Get(ctx, uid); err == nil {
		return nil, common.ErrConflict.WithDetails("User already exists")
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	emailTaken, err := s.EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if emailTaken {
		s.ScheduleIdentityCleanup(uid)
		return nil, common.ErrConflict.WithDetails("Email already in use")
	}

	usernameTaken, err := s.UsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if usernameTaken {
		s.ScheduleIdentityCleanup(uid)
		return nil, common.ErrConflict.WithDetails("Username already in use")
	}

	normalized := NormalizeUsername(username)
	claimed, err := s.repo.ClaimUsername(ctx, normalized, uid)
	if err != nil {
		return nil, err
	}
	if !claimed {
		s.ScheduleIdentityCleanup(uid)
		return nil, common.ErrConflict.WithDetails("Username already in use")
	}

	if photoURL == "" {
		photoURL = s.cfg.DefaultPhotoURL
	}
	now := time.Now()
	profile := &Profile{
		UID:          uid,
		Email:        email,
		Username:     normalized,
		Name:         "",
		PhotoURL:     photoURL,
		Provider:     ProviderEmail,
		CreatedAt:    now,
		LastLogin:    now,
		ProfileViews: 0,
	}
	if err := s.CreateUser(ctx, profile); err != nil {
		if relErr := s.repo.ReleaseUsername(ctx, normalized); relErr != nil {
			s.logger.Error("Failed to release username claim after create failure", zap.Error(relErr), zap.String("username", normalized))
		}
		s.ScheduleIdentityCleanup(uid)
		return nil, err
	}

	s.logger.Info("User registered", zap.String("uid", uid), zap.String("username", normalized))
	return profile, nil
}

// Update merges the caller-supplied attribute map into the profile. A changed
// username in the payload is re-checked for uniqueness first; the generic
// merge still filters it out, so a rename never happens on this path.
func (s *Service) Update(ctx context.Context, uid string, attrs map[string]interface{}) (*Profile, error) {
	profile, err := s.repo.Get(ctx, uid)
	if err != nil {
		return nil, err
	}

	if requested, ok := attrs["username"].(string); ok && requested != profile.Username {
		taken, err := s.UsernameExists(ctx, requested)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, common.ErrConflict.WithDetails("Username already taken")
		}
	}

	if err := s.UpdateProfile(ctx, uid, attrs); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, uid)
}

// DeleteAccount removes the profile record, releases its username claim and
// schedules best-effort removal of the identity record.
func (s *Service) DeleteAccount(ctx context.Context, uid string) error {
	profile, err := s.repo.Get(ctx, uid)
	if err != nil {
		return err
	}
	if err := s.DeleteUser(ctx, uid); err != nil {
		return err
	}
	if err := s.repo.ReleaseUsername(ctx, profile.Username); err != nil {
		s.logger.Error("Failed to release username claim on account deletion", zap.Error(err), zap.String("username", profile.Username))
	}
	s.ScheduleIdentityCleanup(uid)
	s.logger.Info("Account deleted", zap.String("uid", uid))
	return nil
}

// PublicProfile returns the profile stored under username and counts the
// view. Every read increments the counter, including the owner viewing their
// own profile.
func (s *Service) PublicProfile(ctx context.Context, username string) (*Profile, error) {
	profile, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := s.IncrementViews(ctx, profile.UID); err != nil {
		return nil, err
	}
	return profile, nil
}

// ScheduleIdentityCleanup spawns removal of the identity-provider record
// outside the request's critical path. Failures are logged and swallowed;
// they never affect the outcome of the enclosing request.
func (s *Service) ScheduleIdentityCleanup(uid string) {
	s.cleanupWG.Add(1)
	go func() {
		defer s.cleanupWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), identityCleanupTimeout)
		defer cancel()
		if err := s.identity.DeleteUser(ctx, uid); err != nil {
			s.logger.Error("Best-effort identity record cleanup failed", zap.Error(err), zap.String("uid", uid))
		}
	}()
}

// WaitForCleanup blocks until all scheduled identity cleanups have finished.
// Called during graceful shutdown.
func (s *Service) WaitForCleanup() {
	s.cleanupWG.Wait()
}
