package legacy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type countingRefresher struct {
	calls int
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls++
	return nil
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "legacy.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&meals.Meal{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func writeDump(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eating_record_meals.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write dump: %v", err)
	}
	return path
}

func TestImportFileUpsertsAndBacksUp(t *testing.T) {
	db := openTestDatabase(t)
	if err := db.Create(&meals.Meal{ID: "m1", Date: "2025-03-01", Name: "Stale", Type: meals.MealTypeLunch, Timestamp: 5}).Error; err != nil {
		t.Fatalf("failed to seed meal: %v", err)
	}
	refresher := &countingRefresher{}
	importer, err := NewImporter(Config{
		Database:  db,
		Refresher: refresher,
		Clock:     func() time.Time { return time.UnixMilli(1000) },
	})
	if err != nil {
		t.Fatalf("unexpected importer error: %v", err)
	}

	path := writeDump(t, `[
		{"id":"m1","date":"2025-03-01","name":"Bibimbap","calories":550,"protein":"22","intake":"","type":"lunch","timestamp":5},
		{"date":"2025-03-02","name":"Kimbap","calories":"300","type":"health"},
		{"id":"blank","date":"2025-03-02","name":"","calories":"","protein":"","intake":""},
		{"id":"bad-date","date":"March 3","name":"Soup"}
	]`)

	report, err := importer.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected import error: %v", err)
	}
	if report.Imported != 2 || report.Skipped != 2 {
		t.Fatalf("unexpected report %#v", report)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected the dump to be renamed")
	}
	if _, err := os.Stat(path + BackupSuffix); err != nil {
		t.Fatalf("expected a backup file: %v", err)
	}
	if refresher.calls != 1 {
		t.Fatalf("expected one refresh, got %d", refresher.calls)
	}

	var stored []meals.Meal
	if err := db.Order("date ASC").Find(&stored).Error; err != nil {
		t.Fatalf("failed to load meals: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected two meals, got %d", len(stored))
	}
	if stored[0].Name != "Bibimbap" || stored[0].Calories != "550" {
		t.Fatalf("expected the existing meal to be overwritten, got %#v", stored[0])
	}
	if stored[1].ID == "" || stored[1].Timestamp != 1001 || stored[1].Type != meals.DefaultMealType {
		t.Fatalf("expected missing fields to be filled, got %#v", stored[1])
	}
}

func TestImportFileMissingIsNoop(t *testing.T) {
	importer, err := NewImporter(Config{Database: openTestDatabase(t)})
	if err != nil {
		t.Fatalf("unexpected importer error: %v", err)
	}
	report, err := importer.ImportFile(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("expected no error for absent dump, got %v", err)
	}
	if report.Imported != 0 || report.BackupPath != "" {
		t.Fatalf("unexpected report %#v", report)
	}
}

func TestImportFileLeavesMalformedDumpInPlace(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	importer, err := NewImporter(Config{Database: openTestDatabase(t), Logger: zap.New(core)})
	if err != nil {
		t.Fatalf("unexpected importer error: %v", err)
	}
	path := writeDump(t, `{"not":"an array"}`)

	_, err = importer.ImportFile(context.Background(), path)
	if !errors.Is(err, ErrMalformedDump) {
		t.Fatalf("expected malformed dump error, got %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected the dump to stay in place: %v", statErr)
	}
	if logs.FilterMessage("legacy dump rejected").Len() != 1 {
		t.Fatalf("expected the rejection to be logged")
	}
}
