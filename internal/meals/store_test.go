package meals

import (
	"context"
	"errors"
	"testing"
)

func TestStoreCreatePublishesSnapshot(t *testing.T) {
	store := newTestStore(t)
	var received []Snapshot
	stop := store.Observe(func(snapshot Snapshot) {
		received = append(received, snapshot)
	})
	defer stop()

	meal := Meal{ID: "m1", Date: "2024-01-02", Name: "Oats", Type: MealTypeBreakfast, Timestamp: 10}
	if err := store.Create(context.Background(), meal); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("expected one snapshot before create returned, got %d", len(received))
	}
	if received[0].Sequence != 1 {
		t.Fatalf("expected first sequence, got %d", received[0].Sequence)
	}
	if len(received[0].Meals) != 1 || received[0].Meals[0].Name != "Oats" {
		t.Fatalf("unexpected snapshot contents %#v", received[0].Meals)
	}
}

func TestStoreCreateRejectsDuplicateID(t *testing.T) {
	store := newTestStore(t)
	meal := Meal{ID: "m1", Date: "2024-01-02", Name: "Oats", Type: MealTypeBreakfast}
	if err := store.Create(context.Background(), meal); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	err := store.Create(context.Background(), meal)
	if !errors.Is(err, ErrDuplicateMeal) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected duplicate error to be a persistence failure")
	}
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "meals.store.create.duplicate_id" {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestStoreCreateRejectsInvalidDate(t *testing.T) {
	store := newTestStore(t)
	err := store.Create(context.Background(), Meal{ID: "m1", Date: "02/01/2024", Name: "Oats"})
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected invalid date error, got %v", err)
	}
}

func TestStoreUpdateMergesPatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Create(ctx, Meal{ID: "m1", Date: "2024-01-02", Name: "Oats", Calories: "300", Type: MealTypeBreakfast}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	if err := store.Update(ctx, "m1", Patch{Protein: quantityPointer("11")}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	stored, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if stored[0].Protein != "11" || stored[0].Calories != "300" || stored[0].Name != "Oats" {
		t.Fatalf("expected untouched fields to survive, got %#v", stored[0])
	}
}

func TestStoreUpdateCanClearField(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Create(ctx, Meal{ID: "m1", Date: "2024-01-02", Name: "Oats", Calories: "300", Type: MealTypeBreakfast}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if err := store.Update(ctx, "m1", Patch{Calories: quantityPointer("")}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	stored, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if !stored[0].Calories.IsEmpty() {
		t.Fatalf("expected calories to be cleared, got %q", stored[0].Calories)
	}
}

func TestStoreUpdateMissingMeal(t *testing.T) {
	store := newTestStore(t)
	err := store.Update(context.Background(), "missing", Patch{Name: stringPointer("x")})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	err = store.Update(context.Background(), "missing", Patch{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for empty patch, got %v", err)
	}
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Create(ctx, Meal{ID: "m1", Date: "2024-01-02", Name: "Oats", Type: MealTypeBreakfast}); err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}

	publishes := 0
	stop := store.Observe(func(Snapshot) { publishes++ })
	defer stop()

	if err := store.Delete(ctx, "m1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if err := store.Delete(ctx, "m1"); err != nil {
		t.Fatalf("expected second delete to succeed, got %v", err)
	}
	if publishes != 1 {
		t.Fatalf("expected only the effective delete to publish, got %d", publishes)
	}
	stored, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected empty store, got %#v", stored)
	}
}

func TestStoreListAllOrdersByDayTimestampAndID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	inputs := []Meal{
		{ID: "c", Date: "2024-01-02", Name: "late", Timestamp: 30},
		{ID: "b", Date: "2024-01-02", Name: "tie-b", Timestamp: 20},
		{ID: "a", Date: "2024-01-02", Name: "tie-a", Timestamp: 20},
		{ID: "z", Date: "2024-01-01", Name: "yesterday", Timestamp: 99},
	}
	for _, meal := range inputs {
		meal.Type = MealTypeSnack
		if err := store.Create(ctx, meal); err != nil {
			t.Fatalf("unexpected create error: %v", err)
		}
	}

	stored, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	expected := []string{"z", "a", "b", "c"}
	for index, id := range expected {
		if stored[index].ID != id {
			t.Fatalf("position %d: expected %s, got %s", index, id, stored[index].ID)
		}
	}
}

func TestStoreObserveStopRemovesObserver(t *testing.T) {
	store := newTestStore(t)
	calls := 0
	stop := store.Observe(func(Snapshot) { calls++ })
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	stop()
	if err := store.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected refresh error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one notification, got %d", calls)
	}
}

func TestNewStoreRequiresDatabase(t *testing.T) {
	_, err := NewStore(StoreConfig{})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) || serviceErr.Code() != "meals.store.new.missing_database" {
		t.Fatalf("unexpected error %v", err)
	}
}
