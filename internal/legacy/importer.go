// Package legacy imports the JSON meal dump of the older storage format.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BackupSuffix is appended to the dump once it has been imported.
const BackupSuffix = ".backup"

const importBatchSize = 200

var (
	// ErrMalformedDump indicates that the dump is not a JSON array of meals.
	ErrMalformedDump = errors.New("legacy: malformed meal dump")

	errMissingDatabase = errors.New("database handle is required")
)

// Refresher republishes the store after the import.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Config describes an Importer.
type Config struct {
	Database    *gorm.DB
	Refresher   Refresher
	IDProvider  meals.IDProvider
	Clock       func() time.Time
	DefaultType meals.MealType
	Logger      *zap.Logger
}

// Report summarizes one import run.
type Report struct {
	Path       string
	BackupPath string
	Imported   int
	Skipped    int
}

// Importer upserts legacy records into the meal table.
type Importer struct {
	db          *gorm.DB
	refresher   Refresher
	idProvider  meals.IDProvider
	clock       func() time.Time
	defaultType meals.MealType
	logger      *zap.Logger
}

// NewImporter constructs an Importer.
func NewImporter(cfg Config) (*Importer, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = meals.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	defaultType := cfg.DefaultType
	if !defaultType.Valid() {
		defaultType = meals.DefaultMealType
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		db:          cfg.Database,
		refresher:   cfg.Refresher,
		idProvider:  idProvider,
		clock:       clock,
		defaultType: defaultType,
		logger:      logger,
	}, nil
}

// ImportFile imports the dump at path and renames it to path+BackupSuffix. A
// missing file is not an error and imports nothing. A malformed file is left
// in place.
func (i *Importer) ImportFile(ctx context.Context, path string) (Report, error) {
	report := Report{Path: path}
	contents, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		i.logger.Debug("legacy dump absent", zap.String("path", path))
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("read legacy dump: %w", err)
	}

	records, err := Decode(contents)
	if err != nil {
		i.logger.Error("legacy dump rejected", zap.String("path", path), zap.Error(err))
		return report, err
	}

	prepared, skipped := i.prepare(records)
	report.Skipped = skipped
	if len(prepared) > 0 {
		if err := i.upsert(ctx, prepared); err != nil {
			i.logger.Error("legacy import failed", zap.String("path", path), zap.Error(err))
			return report, err
		}
	}
	report.Imported = len(prepared)

	report.BackupPath = path + BackupSuffix
	if err := os.Rename(path, report.BackupPath); err != nil {
		return report, fmt.Errorf("back up legacy dump: %w", err)
	}

	if i.refresher != nil && len(prepared) > 0 {
		if err := i.refresher.Refresh(ctx); err != nil {
			i.logger.Warn("refresh after legacy import failed", zap.Error(err))
		}
	}
	i.logger.Info("legacy dump imported",
		zap.String("path", path),
		zap.String("backup", report.BackupPath),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped))
	return report, nil
}

// Decode parses a dump. An empty document holds no meals.
func Decode(contents []byte) ([]meals.Meal, error) {
	if len(contents) == 0 {
		return nil, nil
	}
	var records []meals.Meal
	if err := json.Unmarshal(contents, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDump, err)
	}
	return records, nil
}

func (i *Importer) prepare(records []meals.Meal) ([]meals.Meal, int) {
	base := i.clock().UnixMilli()
	prepared := make([]meals.Meal, 0, len(records))
	skipped := 0
	for position, record := range records {
		if record.IsBlank() {
			skipped++
			continue
		}
		if err := meals.ValidateDate(record.Date); err != nil {
			i.logger.Warn("legacy record skipped", zap.String("meal_id", record.ID), zap.Error(err))
			skipped++
			continue
		}
		if record.ID == "" {
			record.ID = meals.MustNewID(i.idProvider)
		}
		if record.Timestamp == 0 {
			record.Timestamp = base + int64(position)
		}
		if !record.Type.Valid() {
			record.Type = i.defaultType
		}
		prepared = append(prepared, record)
	}
	return prepared, skipped
}

func (i *Importer) upsert(ctx context.Context, records []meals.Meal) error {
	return i.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		CreateInBatches(records, importBatchSize).Error
}
