package meals

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticIDProvider struct {
	ids   []string
	index int
}

func (p *staticIDProvider) NewID() (string, error) {
	if p.index >= len(p.ids) {
		return "", errors.New("exhausted ids")
	}
	id := p.ids[p.index]
	p.index++
	return id, nil
}

func fixedClock(unixMilli int64) func() time.Time {
	return func() time.Time {
		return time.UnixMilli(unixMilli).UTC()
	}
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "meals.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
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
	if err := db.AutoMigrate(&Meal{}); err != nil {
		t.Fatalf("failed to migrate meals: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(StoreConfig{
		Database: openTestDatabase(t),
		Clock:    fixedClock(1700000000000),
	})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return store
}

func newTestRepository(t *testing.T, ids ...string) (*Repository, *Store) {
	t.Helper()
	store := newTestStore(t)
	repository, err := NewRepository(RepositoryConfig{
		Store:      store,
		Clock:      fixedClock(1700000000000),
		IDProvider: &staticIDProvider{ids: ids},
	})
	if err != nil {
		t.Fatalf("unexpected repository error: %v", err)
	}
	t.Cleanup(repository.Close)
	if err := repository.Load(context.Background()); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	return repository, store
}

func stringPointer(value string) *string {
	return &value
}

func quantityPointer(value string) *Quantity {
	quantity := Quantity(value)
	return &quantity
}
