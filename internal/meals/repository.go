package meals

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MealStore is the persistence contract the repository delegates to.
type MealStore interface {
	Create(ctx context.Context, meal Meal) error
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]Meal, error)
	Refresh(ctx context.Context) error
	Observe(observer Observer) func()
}

// RepositoryConfig describes the dependencies of a Repository.
type RepositoryConfig struct {
	Store       MealStore
	Clock       func() time.Time
	IDProvider  IDProvider
	Logger      *zap.Logger
	DefaultType MealType
}

// Repository is the facade the presentation layer talks to. It stamps new
// meals, delegates writes to the store, keeps the latest snapshot and
// forwards every snapshot to its own subscribers.
type Repository struct {
	store       MealStore
	clock       func() time.Time
	idProvider  IDProvider
	logger      *zap.Logger
	defaultType MealType
	dispatcher  *Dispatcher

	mu       sync.RWMutex
	snapshot Snapshot
	stop     func()
}

// NewRepository constructs a Repository and registers it as the store's
// observer.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opRepositoryNew, reasonMissingStore, errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opRepositoryNew, reasonMissingIDProvider, errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	defaultType := cfg.DefaultType
	if !defaultType.Valid() {
		defaultType = DefaultMealType
	}

	repository := &Repository{
		store:       cfg.Store,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		logger:      logger,
		defaultType: defaultType,
		dispatcher:  NewDispatcher(),
	}
	repository.stop = cfg.Store.Observe(repository.receive)
	return repository, nil
}

// Load publishes the store's current contents to the repository and its
// subscribers.
func (r *Repository) Load(ctx context.Context) error {
	if err := r.store.Refresh(ctx); err != nil {
		r.logError(opRepositorySync, reasonSnapshotFailed, err)
		return err
	}
	return nil
}

// Close detaches the repository from the store.
func (r *Repository) Close() {
	if r.stop != nil {
		r.stop()
	}
}

// DefaultType returns the meal type used when nothing can be inherited.
func (r *Repository) DefaultType() MealType {
	return r.defaultType
}

// IDProvider exposes the identifier source, so tables can mint ghost ids in the
// same format as persisted meals.
func (r *Repository) IDProvider() IDProvider {
	return r.idProvider
}

// AddMeal stamps meal with an identifier and creation timestamp when they are
// missing and persists it. Blank meals are rejected.
func (r *Repository) AddMeal(ctx context.Context, meal Meal) error {
	if meal.ID == "" {
		id, err := r.idProvider.NewID()
		if err != nil {
			r.logError(opRepositoryAdd, reasonIDGeneration, err)
			return newServiceError(opRepositoryAdd, reasonIDGeneration, err)
		}
		meal.ID = id
	}
	if meal.Timestamp == 0 {
		meal.Timestamp = r.clock().UnixMilli()
	}
	if meal.Type == "" {
		meal.Type = r.defaultType
	}
	if !meal.Type.Valid() {
		return newServiceError(opRepositoryAdd, reasonInvalidMeal, ErrInvalidMealType)
	}
	if meal.IsBlank() {
		return newServiceError(opRepositoryAdd, reasonBlankMeal, ErrPersistence)
	}

	if err := r.store.Create(ctx, meal); err != nil {
		r.logError(opRepositoryAdd, reasonInsertFailed, err, zap.String(fieldMealID, meal.ID), zap.String(fieldMealDate, meal.Date))
		return err
	}
	return nil
}

// UpdateMeal merges patch into the meal. A missing meal is ignored: it was
// deleted while an edit was in flight.
func (r *Repository) UpdateMeal(ctx context.Context, id string, patch Patch) error {
	if err := patch.Validate(); err != nil {
		return newServiceError(opRepositoryUpdate, reasonInvalidMeal, err)
	}
	err := r.store.Update(ctx, id, patch)
	if errors.Is(err, ErrNotFound) {
		r.loggerOrDefault().Debug("update target missing",
			zap.String("operation", opRepositoryUpdate),
			zap.String(fieldMealID, id))
		return nil
	}
	if err != nil {
		r.logError(opRepositoryUpdate, reasonUpdateFailed, err, zap.String(fieldMealID, id))
		return err
	}
	return nil
}

// DeleteMeal removes the meal. Deleting a missing meal is a no-op.
func (r *Repository) DeleteMeal(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, id); err != nil {
		r.logError(opRepositoryDelete, reasonDeleteFailed, err, zap.String(fieldMealID, id))
		return err
	}
	return nil
}

// Meals returns the latest snapshot of every meal. The slice is shared and
// must not be modified.
func (r *Repository) Meals() []Meal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot.Meals
}

// Snapshot returns the latest snapshot together with its sequence number.
func (r *Repository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Subscribe registers for snapshots. The latest snapshot is delivered right
// away when one exists.
func (r *Repository) Subscribe(ctx context.Context) (<-chan Snapshot, func()) {
	return r.dispatcher.Subscribe(ctx)
}

// MealsByDate returns the meals of one day ordered by timestamp, then id.
func (r *Repository) MealsByDate(date string) []Meal {
	return FilterByDate(r.Meals(), date)
}

// StatsByDate sums the nutrition of one day.
func (r *Repository) StatsByDate(date string) Totals {
	return Sum(r.MealsByDate(date))
}

func (r *Repository) receive(snapshot Snapshot) {
	r.mu.Lock()
	if snapshot.Sequence < r.snapshot.Sequence {
		r.mu.Unlock()
		return
	}
	r.snapshot = snapshot
	r.mu.Unlock()
	r.dispatcher.Publish(snapshot)
}

// FilterByDate returns the meals whose date equals date, ordered by
// timestamp, then id.
func FilterByDate(all []Meal, date string) []Meal {
	day := make([]Meal, 0)
	for _, meal := range all {
		if meal.Date == date {
			day = append(day, meal)
		}
	}
	SortMeals(day)
	return day
}

// SortMeals orders meals in place by timestamp, then id.
func SortMeals(list []Meal) {
	slices.SortStableFunc(list, func(left, right Meal) int {
		switch {
		case left.Before(right):
			return -1
		case right.Before(left):
			return 1
		default:
			return 0
		}
	})
}

func (r *Repository) loggerOrDefault() *zap.Logger {
	if r == nil || r.logger == nil {
		return noOpLogger
	}
	return r.logger
}

func (r *Repository) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	r.loggerOrDefault().Error("meal repository error", attrs...)
}
