package meals

import "github.com/shopspring/decimal"

// Totals sums the nutritional quantities of a set of meals.
type Totals struct {
	Calories decimal.Decimal `json:"calories"`
	Protein  decimal.Decimal `json:"protein"`
	Intake   decimal.Decimal `json:"intake"`
	Count    int             `json:"count"`
}

// Sum adds up the quantities of every non-blank meal. Non-numeric quantities
// count as zero.
func Sum(list []Meal) Totals {
	totals := Totals{
		Calories: decimal.Zero,
		Protein:  decimal.Zero,
		Intake:   decimal.Zero,
	}
	for _, meal := range list {
		if meal.IsBlank() {
			continue
		}
		totals.Calories = totals.Calories.Add(meal.Calories.Decimal())
		totals.Protein = totals.Protein.Add(meal.Protein.Decimal())
		totals.Intake = totals.Intake.Add(meal.Intake.Decimal())
		totals.Count++
	}
	return totals
}

// Add combines two totals.
func (t Totals) Add(other Totals) Totals {
	return Totals{
		Calories: t.Calories.Add(other.Calories),
		Protein:  t.Protein.Add(other.Protein),
		Intake:   t.Intake.Add(other.Intake),
		Count:    t.Count + other.Count,
	}
}

// IsZero reports whether no meal contributed to the totals.
func (t Totals) IsZero() bool {
	return t.Count == 0
}
