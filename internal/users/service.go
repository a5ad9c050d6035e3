package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/reel/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidIdentity indicates the claims did not contain a usable identifier.
var ErrInvalidIdentity = errors.New("users: invalid identity")

// ServiceConfig describes the dependencies required for user identity resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages canonical user identifiers, provider-specific identities and the
// channel profile rows other packages join against.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
	cache  sync.Map
}

// NewService constructs the identity service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		now:    clock,
		logger: logger,
		cache:  sync.Map{},
	}, nil
}

// ResolveCanonicalUserID returns the canonical user id for the provided session claims.
// The first sighting of a provider+subject pair creates the identity mapping and the
// user's channel profile.
func (s *Service) ResolveCanonicalUserID(ctx context.Context, claims auth.SessionClaims) (string, error) {
	provider, subject := deriveProviderSubject(claims)
	if subject == "" {
		return "", ErrInvalidIdentity
	}

	cacheKey := provider + ":" + subject
	if cachedIdentifier, ok := s.cache.Load(cacheKey); ok {
		canonicalIdentifier, ok := cachedIdentifier.(string)
		if ok {
			return canonicalIdentifier, nil
		}
	}

	db := s.db.WithContext(ctx)
	var identity Identity
	err := db.
		Where("provider = ? AND subject = ?", provider, subject).
		First(&identity).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		identity = Identity{
			Provider:    provider,
			Subject:     subject,
			UserID:      subject,
			Email:       normalize(claims.UserEmail),
			DisplayName: normalize(claims.UserDisplayName),
			AvatarURL:   normalize(claims.UserAvatarURL),
			LastSeenAt:  s.now(),
		}
		if err := db.Create(&identity).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	} else {
		updates := map[string]interface{}{}
		if email := normalize(claims.UserEmail); email != "" && email != identity.Email {
			updates["user_email"] = email
		}
		if display := normalize(claims.UserDisplayName); display != "" && display != identity.DisplayName {
			updates["user_display_name"] = display
		}
		if avatar := normalize(claims.UserAvatarURL); avatar != "" && avatar != identity.AvatarURL {
			updates["user_avatar_url"] = avatar
		}
		updates["last_seen_at"] = s.now()
		if err := db.Model(&Identity{}).
			Where("provider = ? AND subject = ?", provider, subject).
			Updates(updates).
			Error; err != nil {
			s.logger.Warn("identity refresh failed",
				zap.String("provider", provider),
				zap.String("user_id", identity.UserID),
				zap.Error(err))
		}
	}

	if err := s.upsertProfile(db, identity.UserID, claims); err != nil {
		return "", err
	}

	s.cache.Store(cacheKey, identity.UserID)
	return identity.UserID, nil
}

// upsertProfile creates the channel row and refreshes whatever profile fields the
// claims carry. Blank claims never erase an existing name or avatar.
func (s *Service) upsertProfile(db *gorm.DB, userID string, claims auth.SessionClaims) error {
	nowMillis := s.now().UTC().UnixMilli()
	profile := User{
		ID:              userID,
		Name:            claims.DisplayName(),
		ImageURL:        normalize(claims.UserAvatarURL),
		CreatedAtMillis: nowMillis,
		UpdatedAtMillis: nowMillis,
	}
	assignments := map[string]interface{}{"updated_at_ms": nowMillis}
	if profile.Name != "" {
		assignments["name"] = profile.Name
	}
	if profile.ImageURL != "" {
		assignments["image_url"] = profile.ImageURL
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&profile).Error
}

func deriveProviderSubject(claims auth.SessionClaims) (string, string) {
	provider := "default"
	subject := normalize(claims.Subject)

	raw := normalize(claims.UserID)
	if raw != "" {
		if strings.Contains(raw, ":") {
			segments := strings.SplitN(raw, ":", 2)
			if normalize(segments[0]) != "" && normalize(segments[1]) != "" {
				provider = normalize(segments[0])
				subject = normalize(segments[1])
			}
		} else if subject == "" {
			subject = raw
		}
	}

	if subject == "" {
		subject = normalize(claims.UserEmail)
	}

	return provider, subject
}
