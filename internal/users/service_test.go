package users

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/reel/internal/auth"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openUsersDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("failed to migrate users schema: %v", err)
	}
	return db
}

func TestResolveCanonicalUserIDStripsProviderPrefix(t *testing.T) {
	db := openUsersDatabase(t)
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	claims := auth.SessionClaims{
		UserID:          "google:12345",
		UserEmail:       "user@example.com",
		UserDisplayName: "Example User",
		UserAvatarURL:   "https://example.com/avatar.png",
	}
	userID, err := service.ResolveCanonicalUserID(context.Background(), claims)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if userID != "12345" {
		t.Fatalf("expected canonical user id without provider prefix, got %q", userID)
	}

	// second call should hit cache and not create a duplicate record.
	userID, err = service.ResolveCanonicalUserID(context.Background(), claims)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if userID != "12345" {
		t.Fatalf("expected canonical user id to remain stable, got %q", userID)
	}

	var identities int64
	if err := db.Model(&Identity{}).Count(&identities).Error; err != nil {
		t.Fatalf("count identities: %v", err)
	}
	if identities != 1 {
		t.Fatalf("expected a single identity, got %d", identities)
	}
}

func TestResolveCanonicalUserIDMaintainsChannelProfile(t *testing.T) {
	db := openUsersDatabase(t)
	clockNow := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	newService := func() *Service {
		service, err := NewService(ServiceConfig{
			Database: db,
			Clock: func() time.Time {
				return clockNow
			},
		})
		if err != nil {
			t.Fatalf("failed to create service: %v", err)
		}
		return service
	}

	first := newService()
	if _, err := first.ResolveCanonicalUserID(context.Background(), auth.SessionClaims{
		UserID:          "creator-1",
		UserDisplayName: "Creator One",
		UserAvatarURL:   "https://example.com/one.png",
	}); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	var profile User
	if err := db.First(&profile, "id = ?", "creator-1").Error; err != nil {
		t.Fatalf("expected channel profile: %v", err)
	}
	if profile.Name != "Creator One" || profile.ImageURL != "https://example.com/one.png" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.CreatedAtMillis != clockNow.UnixMilli() {
		t.Fatalf("unexpected creation time %d", profile.CreatedAtMillis)
	}

	// a fresh service bypasses the cache; blank claims must not erase the profile.
	clockNow = clockNow.Add(time.Hour)
	if _, err := newService().ResolveCanonicalUserID(context.Background(), auth.SessionClaims{UserID: "creator-1"}); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if err := db.First(&profile, "id = ?", "creator-1").Error; err != nil {
		t.Fatalf("expected channel profile: %v", err)
	}
	if profile.Name != "Creator One" {
		t.Fatalf("expected name to survive blank claims, got %q", profile.Name)
	}
	if profile.UpdatedAtMillis != clockNow.UnixMilli() {
		t.Fatalf("expected profile refresh, got %d", profile.UpdatedAtMillis)
	}
}

func TestResolveCanonicalUserIDRejectsEmptyClaims(t *testing.T) {
	service, err := NewService(ServiceConfig{Database: openUsersDatabase(t)})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	if _, err := service.ResolveCanonicalUserID(context.Background(), auth.SessionClaims{}); err != ErrInvalidIdentity {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}
