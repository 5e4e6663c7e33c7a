package database

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectionPragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, zapLogger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(dataSourceName(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&meals.Meal{}, &migrationRecord{}); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, zapLogger); err != nil {
		return nil, err
	}

	if zapLogger != nil {
		zapLogger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Close releases the connection pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dataSourceName(path string) string {
	if strings.Contains(path, "?") || path == ":memory:" {
		return path
	}
	return path + "?" + connectionPragmas
}
