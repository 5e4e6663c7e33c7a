// Package recommend builds the autocomplete lookup of previously eaten meals.
package recommend

import (
	"slices"
	"strings"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"golang.org/x/text/cases"
)

// MaxSuggestions caps the number of candidates a query returns.
const MaxSuggestions = 5

// Candidate is the most recent nutritional record of one meal name.
type Candidate struct {
	Name      string         `json:"name"`
	Calories  meals.Quantity `json:"calories"`
	Protein   meals.Quantity `json:"protein"`
	Intake    meals.Quantity `json:"intake"`
	Type      meals.MealType `json:"type"`
	Timestamp int64          `json:"timestamp"`

	key string
}

// Patch overwrites every user-editable field of a row with the candidate.
func (c Candidate) Patch() meals.Patch {
	return meals.ContentPatch(meals.Meal{
		Name:     c.Name,
		Calories: c.Calories,
		Protein:  c.Protein,
		Intake:   c.Intake,
		Type:     c.Type,
	})
}

// addsTo reports whether applying the candidate would fill a calories or
// protein value the row is missing.
func (c Candidate) addsTo(row meals.Meal) bool {
	if row.Calories.IsEmpty() && !c.Calories.IsEmpty() {
		return true
	}
	return row.Protein.IsEmpty() && !c.Protein.IsEmpty()
}

// Index is an immutable name lookup, ordered most recent first. It is safe for
// concurrent queries.
type Index struct {
	candidates []Candidate
	byKey      map[string]int
}

// Build indexes history. For each name, compared without case, only the most
// recent meal carrying any nutrition is kept.
func Build(history []meals.Meal) *Index {
	ordered := make([]meals.Meal, 0, len(history))
	for _, meal := range history {
		if strings.TrimSpace(meal.Name) == "" || !meal.HasNutrition() {
			continue
		}
		ordered = append(ordered, meal)
	}
	slices.SortStableFunc(ordered, func(left, right meals.Meal) int {
		switch {
		case right.Before(left):
			return -1
		case left.Before(right):
			return 1
		default:
			return 0
		}
	})

	caser := cases.Fold()
	index := &Index{
		candidates: make([]Candidate, 0, len(ordered)),
		byKey:      make(map[string]int, len(ordered)),
	}
	for _, meal := range ordered {
		key := foldName(caser, meal.Name)
		if _, seen := index.byKey[key]; seen {
			continue
		}
		index.byKey[key] = len(index.candidates)
		index.candidates = append(index.candidates, Candidate{
			Name:      meal.Name,
			Calories:  meal.Calories,
			Protein:   meal.Protein,
			Intake:    meal.Intake,
			Type:      meal.Type,
			Timestamp: meal.Timestamp,
			key:       key,
		})
	}
	return index
}

// BuildWithFallback indexes history, or the day's meals when no history is
// available.
func BuildWithFallback(history, day []meals.Meal) *Index {
	if history == nil {
		return Build(day)
	}
	return Build(history)
}

// Len reports the number of distinct names indexed.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.candidates)
}

// Lookup returns the candidate whose name equals name without case.
func (i *Index) Lookup(name string) (Candidate, bool) {
	if i == nil {
		return Candidate{}, false
	}
	position, ok := i.byKey[foldName(cases.Fold(), name)]
	if !ok {
		return Candidate{}, false
	}
	return i.candidates[position], true
}

// Query returns up to MaxSuggestions candidates whose name contains query,
// ignoring case. A candidate named exactly like the query is kept only when it
// would fill a calories or protein value that row is missing.
func (i *Index) Query(query string, row meals.Meal) []Candidate {
	if i == nil {
		return nil
	}
	needle := foldName(cases.Fold(), query)
	if needle == "" {
		return nil
	}

	matches := make([]Candidate, 0, MaxSuggestions)
	for _, candidate := range i.candidates {
		if !strings.Contains(candidate.key, needle) {
			continue
		}
		if candidate.key == needle && !candidate.addsTo(row) {
			continue
		}
		matches = append(matches, candidate)
		if len(matches) == MaxSuggestions {
			break
		}
	}
	return matches
}

func foldName(caser cases.Caser, name string) string {
	return caser.String(strings.TrimSpace(name))
}
