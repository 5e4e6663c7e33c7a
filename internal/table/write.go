package table

import "github.com/MarcoPoloResearchLab/mealog/internal/meals"

// WriteKind names the repository call a Write stands for.
type WriteKind int

const (
	WriteCreate WriteKind = iota + 1
	WriteUpdate
	WriteDelete
)

func (k WriteKind) String() string {
	switch k {
	case WriteCreate:
		return "create"
	case WriteUpdate:
		return "update"
	case WriteDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Write is a repository call the table wants performed. Tables never call the
// repository themselves; an Executor applies their writes in order.
type Write struct {
	Kind   WriteKind
	Date   string
	MealID string
	Meal   meals.Meal
	Patch  meals.Patch
}

// Result reports the outcome of one applied Write.
type Result struct {
	Write Write
	Err   error
}
