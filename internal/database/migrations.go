package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/reel/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const migrationSeedCategories = "2025-01-15_seed_categories"

var seedCategoryNames = []string{
	"Cars and Vehicles",
	"Comedy",
	"Education",
	"Gaming",
	"Entertainment",
	"Film and Animation",
	"How-to and Style",
	"Music",
	"News and Politics",
	"People and Blogs",
	"Pets and Animals",
	"Science and Technology",
	"Sports",
	"Travel and Events",
}

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedCategories, apply: seedCategories},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func seedCategories(db *gorm.DB) error {
	categories := make([]catalog.Category, 0, len(seedCategoryNames))
	for _, name := range seedCategoryNames {
		categories = append(categories, catalog.Category{Name: name})
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&categories).Error
}
