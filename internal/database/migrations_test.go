package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/reel/internal/catalog"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestApplyMigrationsSeedsCategoriesOnce(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&catalog.Category{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	// a category created before the migration must survive without duplication.
	if err := database.Create(&catalog.Category{Name: "Music", Description: "kept"}).Error; err != nil {
		testContext.Fatalf("failed to insert category: %v", err)
	}

	core, logs := observer.New(zap.InfoLevel)
	if err := applyMigrations(database, zap.New(core)); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}
	if err := applyMigrations(database, zap.New(core)); err != nil {
		testContext.Fatalf("failed to re-apply migrations: %v", err)
	}

	var count int64
	if err := database.Model(&catalog.Category{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count categories: %v", err)
	}
	if count != int64(len(seedCategoryNames)) {
		testContext.Fatalf("expected %d categories, got %d", len(seedCategoryNames), count)
	}

	var music catalog.Category
	if err := database.Where("name = ?", "Music").Take(&music).Error; err != nil {
		testContext.Fatalf("failed to reload category: %v", err)
	}
	if music.Description != "kept" {
		testContext.Fatalf("expected existing category to be left alone, got %q", music.Description)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationSeedCategories).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
	if applied := logs.FilterMessage("database migration applied").Len(); applied != 1 {
		testContext.Fatalf("expected migration to be logged once, got %d", applied)
	}
}

func TestOpenSQLiteMigratesEveryModel(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "reel.db")

	database, err := Open(Options{Driver: DriverSQLite, Path: databasePath}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	for _, model := range Models() {
		if !database.Migrator().HasTable(model) {
			testContext.Fatalf("expected table for %T", model)
		}
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Options{Driver: "oracle"}, nil); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(Options{Driver: DriverPostgres}, nil); err == nil {
		testContext.Fatalf("expected missing dsn error")
	}
}
