package meals

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the targeted meal does not exist in the store.
	ErrNotFound = errors.New("meals: meal not found")
	// ErrPersistence indicates that the backend was unavailable or rejected a write.
	ErrPersistence = errors.New("meals: persistence failure")
	// ErrDuplicateMeal indicates that a meal with the same identifier already exists.
	ErrDuplicateMeal = fmt.Errorf("%w: duplicate meal id", ErrPersistence)

	errMissingDatabase   = errors.New("database handle is required")
	errMissingStore      = errors.New("meal store is required")
	errMissingIDProvider = errors.New("id provider is required")
)

// ServiceError carries a stable operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason identifier of the failure.
func (e *ServiceError) Code() string {
	return e.code
}

const (
	opStoreNew         = "meals.store.new"
	opStoreCreate      = "meals.store.create"
	opStoreUpdate      = "meals.store.update"
	opStoreDelete      = "meals.store.delete"
	opStoreList        = "meals.store.list_all"
	opRepositoryNew    = "meals.repository.new"
	opRepositoryAdd    = "meals.repository.add_meal"
	opRepositoryUpdate = "meals.repository.update_meal"
	opRepositoryDelete = "meals.repository.delete_meal"
	opRepositorySync   = "meals.repository.sync"
	opWatcherRun       = "meals.watcher.run"

	reasonMissingDatabase   = "missing_database"
	reasonMissingStore      = "missing_store"
	reasonMissingIDProvider = "missing_id_provider"
	reasonInvalidMeal       = "invalid_meal"
	reasonBlankMeal         = "blank_meal"
	reasonDuplicateID       = "duplicate_id"
	reasonInsertFailed      = "insert_failed"
	reasonUpdateFailed      = "update_failed"
	reasonDeleteFailed      = "delete_failed"
	reasonQueryFailed       = "query_failed"
	reasonNotFound          = "not_found"
	reasonIDGeneration      = "id_generation_failed"
	reasonSnapshotFailed    = "snapshot_failed"
	reasonWatchFailed       = "watch_failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
