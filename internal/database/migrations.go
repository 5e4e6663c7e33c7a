package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeMealTypes = "2026-01-12_normalize_meal_types"

// legacyMealTypeAliases maps type tags written by older versions onto the
// canonical set.
var legacyMealTypeAliases = map[string]meals.MealType{
	"health":    meals.MealTypeHealthy,
	"cheat_day": meals.MealTypeCheat,
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
		{name: migrationNormalizeMealTypes, apply: normalizeMealTypes},
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
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

func normalizeMealTypes(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for alias, canonical := range legacyMealTypeAliases {
			if err := tx.Model(&meals.Meal{}).Where("type = ?", alias).Update("type", string(canonical)).Error; err != nil {
				return err
			}
		}
		known := make([]string, 0, len(meals.MealTypes))
		for _, mealType := range meals.MealTypes {
			known = append(known, string(mealType))
		}
		return tx.Model(&meals.Meal{}).
			Where("type NOT IN ?", known).
			Update("type", string(meals.DefaultMealType)).Error
	})
}
