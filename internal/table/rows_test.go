package table

import (
	"testing"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
)

func TestDeriveRenderRowsOrdersAndSubstitutes(t *testing.T) {
	persisted := []meals.Meal{
		{ID: "b", Name: "Second", Type: meals.MealTypeLunch, Timestamp: 20},
		{ID: "a", Name: "First", Type: meals.MealTypeBreakfast, Timestamp: 10},
	}
	overlay := map[string]meals.Meal{
		"a": {ID: "a", Name: "First edited", Type: meals.MealTypeBreakfast, Timestamp: 10},
		"c": {ID: "c", Name: "Unconfirmed", Type: meals.MealTypeSnack, Timestamp: 30},
	}

	rows := DeriveRenderRows(persisted, overlay, nil, Ghost{ID: "g", Date: testDay, DefaultType: meals.MealTypeBreakfast})

	expected := []string{"a", "b", "c", "g"}
	if len(rows) != len(expected) {
		t.Fatalf("expected %d rows, got %d", len(expected), len(rows))
	}
	for index, id := range expected {
		if rows[index].Meal.ID != id {
			t.Fatalf("position %d: expected %s, got %s", index, id, rows[index].Meal.ID)
		}
	}
	if rows[0].Meal.Name != "First edited" || !rows[0].Pending {
		t.Fatalf("expected overlay substitution, got %#v", rows[0])
	}
	if rows[1].Pending {
		t.Fatalf("expected persisted row without overlay to be confirmed")
	}
	if !rows[3].Ghost || rows[3].Meal.Type != meals.MealTypeSnack {
		t.Fatalf("expected ghost to inherit the last row's type, got %#v", rows[3])
	}
}

func TestDeriveRenderRowsBreaksTimestampTiesByID(t *testing.T) {
	persisted := []meals.Meal{
		{ID: "y", Type: meals.MealTypeDinner, Timestamp: 5},
		{ID: "x", Type: meals.MealTypeLunch, Timestamp: 5},
	}
	rows := DeriveRenderRows(persisted, nil, nil, Ghost{ID: "g"})
	if rows[0].Meal.ID != "x" || rows[1].Meal.ID != "y" {
		t.Fatalf("expected id order for equal timestamps")
	}
	if rows[2].Meal.Type != meals.MealTypeDinner {
		t.Fatalf("expected ghost to inherit from the deterministic last row")
	}
}

func TestDeriveRenderRowsHidesTombstonedRows(t *testing.T) {
	persisted := []meals.Meal{{ID: "a", Timestamp: 1}, {ID: "b", Timestamp: 2}}
	overlay := map[string]meals.Meal{"b": {ID: "b", Name: "edited", Timestamp: 2}}
	hidden := map[string]struct{}{"b": {}}

	rows := DeriveRenderRows(persisted, overlay, hidden, Ghost{ID: "g"})
	if len(rows) != 2 || rows[0].Meal.ID != "a" || !rows[1].Ghost {
		t.Fatalf("unexpected rows %#v", rows)
	}
	if rows[1].Meal.Type != meals.DefaultMealType {
		t.Fatalf("expected invalid inherited type to fall back to the default")
	}
}

func TestDeriveRenderRowsDoesNotMutateInput(t *testing.T) {
	persisted := []meals.Meal{{ID: "b", Timestamp: 2}, {ID: "a", Timestamp: 1}}
	DeriveRenderRows(persisted, nil, nil, Ghost{ID: "g"})
	if persisted[0].ID != "b" {
		t.Fatalf("expected the persisted slice to keep its order")
	}
}
