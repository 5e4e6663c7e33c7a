package table

import (
	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
)

// Row is one rendered line of a table.
type Row struct {
	Meal meals.Meal
	// Ghost marks the trailing placeholder row.
	Ghost bool
	// Pending marks rows whose displayed content is an optimistic overlay.
	Pending bool
}

// Ghost describes the placeholder appended to every rendered table.
type Ghost struct {
	ID          string
	Date        string
	DefaultType meals.MealType
	// Type overrides the inherited type when the user picked one on the ghost.
	Type meals.MealType
}

// DeriveRenderRows builds the rows of one day. Persisted meals come first,
// replaced by their overlay version when one exists, followed by overlay
// meals the store has not returned yet, followed by exactly one ghost row.
// Meals listed in hidden are left out. The ghost inherits the type of the
// last row, or the default type when no row precedes it.
func DeriveRenderRows(persisted []meals.Meal, overlay map[string]meals.Meal, hidden map[string]struct{}, ghost Ghost) []Row {
	rows := make([]Row, 0, len(persisted)+len(overlay)+1)
	seen := make(map[string]struct{}, len(persisted))

	ordered := append([]meals.Meal(nil), persisted...)
	meals.SortMeals(ordered)
	for _, meal := range ordered {
		if meal.ID == ghost.ID {
			continue
		}
		seen[meal.ID] = struct{}{}
		if _, isHidden := hidden[meal.ID]; isHidden {
			continue
		}
		if pending, ok := overlay[meal.ID]; ok {
			rows = append(rows, Row{Meal: pending, Pending: true})
			continue
		}
		rows = append(rows, Row{Meal: meal})
	}

	unconfirmed := make([]meals.Meal, 0)
	for id, pending := range overlay {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, isHidden := hidden[id]; isHidden || id == ghost.ID {
			continue
		}
		unconfirmed = append(unconfirmed, pending)
	}
	meals.SortMeals(unconfirmed)
	for _, pending := range unconfirmed {
		rows = append(rows, Row{Meal: pending, Pending: true})
	}

	ghostType := ghost.Type
	if !ghostType.Valid() {
		ghostType = ghost.DefaultType
		if len(rows) > 0 {
			ghostType = rows[len(rows)-1].Meal.Type
		}
	}
	if !ghostType.Valid() {
		ghostType = meals.DefaultMealType
	}
	rows = append(rows, Row{
		Meal: meals.Meal{
			ID:   ghost.ID,
			Date: ghost.Date,
			Type: ghostType,
		},
		Ghost: true,
	})
	return rows
}
