package main

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/config"
	"github.com/MarcoPoloResearchLab/mealog/internal/database"
	"github.com/MarcoPoloResearchLab/mealog/internal/legacy"
	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime is the storage stack shared by every command.
type runtime struct {
	config     config.AppConfig
	logger     *zap.Logger
	db         *gorm.DB
	store      *meals.Store
	repository *meals.Repository
}

// openRuntime opens the database, imports the legacy dump when one is
// configured and loads the repository.
func openRuntime(ctx context.Context, appConfig config.AppConfig, logger *zap.Logger) (*runtime, error) {
	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	store, err := meals.NewStore(meals.StoreConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	repository, err := meals.NewRepository(meals.RepositoryConfig{
		Store:       store,
		Clock:       time.Now,
		IDProvider:  meals.NewUUIDProvider(),
		Logger:      logger,
		DefaultType: appConfig.DefaultType,
	})
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	app := &runtime{
		config:     appConfig,
		logger:     logger,
		db:         db,
		store:      store,
		repository: repository,
	}

	if appConfig.LegacyPath != "" {
		if _, err := app.importLegacy(ctx, appConfig.LegacyPath); err != nil {
			logger.Warn("legacy import failed", zap.String("path", appConfig.LegacyPath), zap.Error(err))
		}
	}

	if err := repository.Load(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (r *runtime) importLegacy(ctx context.Context, path string) (legacy.Report, error) {
	importer, err := legacy.NewImporter(legacy.Config{
		Database:    r.db,
		Refresher:   r.store,
		IDProvider:  meals.NewUUIDProvider(),
		Clock:       time.Now,
		DefaultType: r.config.DefaultType,
		Logger:      r.logger,
	})
	if err != nil {
		return legacy.Report{}, err
	}
	return importer.ImportFile(ctx, path)
}

// startWatcher refreshes the repository on external database writes until ctx
// is done. It is a no-op when watching is disabled.
func (r *runtime) startWatcher(ctx context.Context) {
	if !r.config.WatchEnabled {
		return
	}
	watcher, err := meals.NewWatcher(meals.WatcherConfig{
		DatabasePath: r.config.DatabasePath,
		Refresher:    r.store,
		Logger:       r.logger,
	})
	if err != nil {
		r.logger.Warn("database watch disabled", zap.Error(err))
		return
	}
	go watcher.Run(ctx)
}

func (r *runtime) Close() {
	r.repository.Close()
	if err := database.Close(r.db); err != nil {
		r.logger.Warn("database close failed", zap.Error(err))
	}
}
