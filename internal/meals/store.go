package meals

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	fieldMealID      = "meal_id"
	fieldMealDate    = "date"
	queryMealID      = "id = ?"
	orderMealsStable = "date ASC, timestamp ASC, id ASC"
)

var noOpLogger = zap.NewNop()

// StoreConfig describes the dependencies of a Store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Observer receives every snapshot the store publishes. Observers run
// synchronously on the writing goroutine, before the write call returns.
type Observer func(Snapshot)

// Store is the durable meal collection. Every successful write publishes a
// full snapshot to the registered observers.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger

	publishMu      sync.Mutex
	sequence       uint64
	observers      map[int64]Observer
	nextObserverID int64
}

// NewStore constructs a Store over an already migrated database.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opStoreNew, reasonMissingDatabase, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		db:        cfg.Database,
		clock:     clock,
		logger:    logger,
		observers: make(map[int64]Observer),
	}, nil
}

// Create inserts meal. It fails with ErrDuplicateMeal when the identifier is
// already taken.
func (s *Store) Create(ctx context.Context, meal Meal) error {
	if err := ValidateMealID(meal.ID); err != nil {
		return newServiceError(opStoreCreate, reasonInvalidMeal, err)
	}
	if err := ValidateDate(meal.Date); err != nil {
		return newServiceError(opStoreCreate, reasonInvalidMeal, err)
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&meal)
	if result.Error != nil {
		s.logError(opStoreCreate, reasonInsertFailed, result.Error, zap.String(fieldMealID, meal.ID))
		return newServiceError(opStoreCreate, reasonInsertFailed, fmt.Errorf("%w: %v", ErrPersistence, result.Error))
	}
	if result.RowsAffected == 0 {
		return newServiceError(opStoreCreate, reasonDuplicateID, ErrDuplicateMeal)
	}

	s.publish(ctx)
	return nil
}

// Update merges patch into the stored meal. It fails with ErrNotFound when no
// meal has the identifier.
func (s *Store) Update(ctx context.Context, id string, patch Patch) error {
	if patch.IsEmpty() {
		var count int64
		if err := s.db.WithContext(ctx).Model(&Meal{}).Where(queryMealID, id).Count(&count).Error; err != nil {
			return newServiceError(opStoreUpdate, reasonQueryFailed, fmt.Errorf("%w: %v", ErrPersistence, err))
		}
		if count == 0 {
			return newServiceError(opStoreUpdate, reasonNotFound, ErrNotFound)
		}
		return nil
	}

	result := s.db.WithContext(ctx).Model(&Meal{}).Where(queryMealID, id).Updates(patch.columns())
	if result.Error != nil {
		s.logError(opStoreUpdate, reasonUpdateFailed, result.Error, zap.String(fieldMealID, id))
		return newServiceError(opStoreUpdate, reasonUpdateFailed, fmt.Errorf("%w: %v", ErrPersistence, result.Error))
	}
	if result.RowsAffected == 0 {
		return newServiceError(opStoreUpdate, reasonNotFound, ErrNotFound)
	}

	s.publish(ctx)
	return nil
}

// Delete removes the meal. Deleting a missing meal is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where(queryMealID, id).Delete(&Meal{})
	if result.Error != nil {
		s.logError(opStoreDelete, reasonDeleteFailed, result.Error, zap.String(fieldMealID, id))
		return newServiceError(opStoreDelete, reasonDeleteFailed, fmt.Errorf("%w: %v", ErrPersistence, result.Error))
	}
	if result.RowsAffected > 0 {
		s.publish(ctx)
	}
	return nil
}

// ListAll returns every stored meal ordered by day, then timestamp, then id.
func (s *Store) ListAll(ctx context.Context) ([]Meal, error) {
	var stored []Meal
	if err := s.db.WithContext(ctx).Order(orderMealsStable).Find(&stored).Error; err != nil {
		s.logError(opStoreList, reasonQueryFailed, err)
		return nil, newServiceError(opStoreList, reasonQueryFailed, fmt.Errorf("%w: %v", ErrPersistence, err))
	}
	return stored, nil
}

// Refresh publishes the current contents, e.g. at startup or after another
// process wrote to the database.
func (s *Store) Refresh(ctx context.Context) error {
	return s.publish(ctx)
}

// Observe registers observer for every future snapshot and returns a function
// that removes it.
func (s *Store) Observe(observer Observer) func() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	s.nextObserverID++
	observerID := s.nextObserverID
	s.observers[observerID] = observer
	return func() {
		s.publishMu.Lock()
		defer s.publishMu.Unlock()
		delete(s.observers, observerID)
	}
}

func (s *Store) publish(ctx context.Context) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	stored, err := s.ListAll(ctx)
	if err != nil {
		return err
	}
	s.sequence++
	snapshot := Snapshot{
		Meals:    stored,
		Sequence: s.sequence,
		At:       s.clock().UTC(),
	}
	for _, observer := range s.observers {
		observer(snapshot)
	}
	return nil
}

func (s *Store) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("meal store error", attrs...)
}
