package meals

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format shared by meals, tables and the HTTP API.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDate indicates that a day string is not formatted as YYYY-MM-DD.
	ErrInvalidDate = errors.New("meals: invalid date")
	// ErrInvalidMealType indicates that a meal type tag is not one of the known types.
	ErrInvalidMealType = errors.New("meals: invalid meal type")
	// ErrInvalidMealID indicates that a meal identifier is empty or exceeds storage bounds.
	ErrInvalidMealID = errors.New("meals: invalid meal id")
)

const maxIdentifierLength = 64

// ValidateDate reports whether raw is a valid YYYY-MM-DD calendar day.
func ValidateDate(raw string) error {
	if _, err := time.Parse(DateLayout, raw); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return nil
}

// ValidateMealID reports whether raw can be used as a meal identifier.
func ValidateMealID(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("%w: empty", ErrInvalidMealID)
	}
	if len(trimmed) > maxIdentifierLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidMealID, maxIdentifierLength)
	}
	return nil
}

// MealType tags a meal with the part of the day or the kind of eating it was.
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
	MealTypeHealthy   MealType = "healthy"
	MealTypeCheat     MealType = "cheat"
)

// DefaultMealType is used when a day has no rows to inherit a type from.
const DefaultMealType = MealTypeBreakfast

// MealTypes lists every known meal type in display order.
var MealTypes = []MealType{
	MealTypeBreakfast,
	MealTypeLunch,
	MealTypeDinner,
	MealTypeSnack,
	MealTypeHealthy,
	MealTypeCheat,
}

var mealTypeLabels = map[MealType]string{
	MealTypeBreakfast: "Breakfast",
	MealTypeLunch:     "Lunch",
	MealTypeDinner:    "Dinner",
	MealTypeSnack:     "Snack",
	MealTypeHealthy:   "Healthy",
	MealTypeCheat:     "Cheat day",
}

// ParseMealType validates raw input and returns the matching MealType.
func ParseMealType(raw string) (MealType, error) {
	candidate := MealType(strings.ToLower(strings.TrimSpace(raw)))
	if candidate.Valid() {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMealType, raw)
}

// Valid reports whether the type is one of MealTypes.
func (t MealType) Valid() bool {
	_, ok := mealTypeLabels[t]
	return ok
}

// Label returns the human readable name of the type.
func (t MealType) Label() string {
	if label, ok := mealTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// Next returns the type following t in display order, wrapping around.
func (t MealType) Next() MealType {
	return t.shift(1)
}

// Previous returns the type preceding t in display order, wrapping around.
func (t MealType) Previous() MealType {
	return t.shift(-1)
}

func (t MealType) shift(delta int) MealType {
	index := 0
	for position, candidate := range MealTypes {
		if candidate == t {
			index = position
			break
		}
	}
	count := len(MealTypes)
	return MealTypes[((index+delta)%count+count)%count]
}

// Quantity is a nutritional amount kept as the text the user typed. Empty and
// non-numeric values count as zero in aggregation.
type Quantity string

// IsEmpty reports whether the quantity holds no text.
func (q Quantity) IsEmpty() bool {
	return strings.TrimSpace(string(q)) == ""
}

// String returns the quantity text.
func (q Quantity) String() string {
	return string(q)
}

// Decimal parses the quantity, returning zero for empty or non-numeric text.
func (q Quantity) Decimal() decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(string(q)))
	if err != nil {
		return decimal.Zero
	}
	return value
}

// Equal compares two quantities by their trimmed text.
func (q Quantity) Equal(other Quantity) bool {
	return strings.TrimSpace(string(q)) == strings.TrimSpace(string(other))
}

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*q = ""
		return nil
	case trimmed[0] == '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*q = Quantity(text)
		return nil
	default:
		var number json.Number
		if err := json.Unmarshal(trimmed, &number); err != nil {
			return fmt.Errorf("meals: quantity must be a string or number: %w", err)
		}
		*q = Quantity(number.String())
		return nil
	}
}

// Meal is the persisted record of one eaten item on a calendar day.
type Meal struct {
	ID        string   `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Date      string   `gorm:"column:date;size:10;not null;index:idx_meals_date_timestamp,priority:1" json:"date"`
	Name      string   `gorm:"column:name;type:text;not null;default:''" json:"name"`
	Calories  Quantity `gorm:"column:calories;type:text;not null;default:''" json:"calories"`
	Protein   Quantity `gorm:"column:protein;type:text;not null;default:''" json:"protein"`
	Intake    Quantity `gorm:"column:intake;type:text;not null;default:''" json:"intake"`
	Type      MealType `gorm:"column:type;size:32;not null;default:'breakfast'" json:"type"`
	Timestamp int64    `gorm:"column:timestamp;not null;index:idx_meals_date_timestamp,priority:2" json:"timestamp"`
}

// TableName provides the explicit table binding for GORM.
func (Meal) TableName() string {
	return "meals"
}

// IsBlank reports whether every user-entered field is empty. Blank meals only
// ever exist as the ghost row of a table.
func (m Meal) IsBlank() bool {
	return strings.TrimSpace(m.Name) == "" && m.Calories.IsEmpty() && m.Protein.IsEmpty() && m.Intake.IsEmpty()
}

// HasNutrition reports whether at least one quantity is filled in.
func (m Meal) HasNutrition() bool {
	return !m.Calories.IsEmpty() || !m.Protein.IsEmpty() || !m.Intake.IsEmpty()
}

// SameContent compares the user-editable fields of two meals.
func (m Meal) SameContent(other Meal) bool {
	return m.Name == other.Name &&
		m.Calories.Equal(other.Calories) &&
		m.Protein.Equal(other.Protein) &&
		m.Intake.Equal(other.Intake) &&
		m.Type == other.Type
}

// Before orders meals by ascending timestamp, breaking ties by identifier.
func (m Meal) Before(other Meal) bool {
	if m.Timestamp != other.Timestamp {
		return m.Timestamp < other.Timestamp
	}
	return m.ID < other.ID
}

// Field names a user-editable column of a meal.
type Field string

const (
	FieldName     Field = "name"
	FieldCalories Field = "calories"
	FieldProtein  Field = "protein"
	FieldIntake   Field = "intake"
	FieldType     Field = "type"
)

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Name     *string   `json:"name,omitempty"`
	Calories *Quantity `json:"calories,omitempty"`
	Protein  *Quantity `json:"protein,omitempty"`
	Intake   *Quantity `json:"intake,omitempty"`
	Type     *MealType `json:"type,omitempty"`
}

// SetField returns a patch that assigns value to a single field.
func SetField(field Field, value string) Patch {
	var patch Patch
	switch field {
	case FieldName:
		patch.Name = &value
	case FieldCalories:
		quantity := Quantity(value)
		patch.Calories = &quantity
	case FieldProtein:
		quantity := Quantity(value)
		patch.Protein = &quantity
	case FieldIntake:
		quantity := Quantity(value)
		patch.Intake = &quantity
	case FieldType:
		mealType := MealType(value)
		patch.Type = &mealType
	}
	return patch
}

// ContentPatch returns a patch that overwrites every user-editable field with
// the values of source.
func ContentPatch(source Meal) Patch {
	name := source.Name
	calories := source.Calories
	protein := source.Protein
	intake := source.Intake
	mealType := source.Type
	return Patch{Name: &name, Calories: &calories, Protein: &protein, Intake: &intake, Type: &mealType}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Calories == nil && p.Protein == nil && p.Intake == nil && p.Type == nil
}

// Apply returns a copy of meal with the patch merged in.
func (p Patch) Apply(meal Meal) Meal {
	if p.Name != nil {
		meal.Name = *p.Name
	}
	if p.Calories != nil {
		meal.Calories = *p.Calories
	}
	if p.Protein != nil {
		meal.Protein = *p.Protein
	}
	if p.Intake != nil {
		meal.Intake = *p.Intake
	}
	if p.Type != nil {
		meal.Type = *p.Type
	}
	return meal
}

// Changes narrows the patch to the fields whose value differs from current.
func (p Patch) Changes(current Meal) Patch {
	var narrowed Patch
	if p.Name != nil && *p.Name != current.Name {
		narrowed.Name = p.Name
	}
	if p.Calories != nil && *p.Calories != current.Calories {
		narrowed.Calories = p.Calories
	}
	if p.Protein != nil && *p.Protein != current.Protein {
		narrowed.Protein = p.Protein
	}
	if p.Intake != nil && *p.Intake != current.Intake {
		narrowed.Intake = p.Intake
	}
	if p.Type != nil && *p.Type != current.Type {
		narrowed.Type = p.Type
	}
	return narrowed
}

// Validate rejects patches carrying an unknown meal type.
func (p Patch) Validate() error {
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMealType, string(*p.Type))
	}
	return nil
}

// columns maps the patch onto database column assignments.
func (p Patch) columns() map[string]any {
	assignments := make(map[string]any, 5)
	if p.Name != nil {
		assignments[string(FieldName)] = *p.Name
	}
	if p.Calories != nil {
		assignments[string(FieldCalories)] = p.Calories.String()
	}
	if p.Protein != nil {
		assignments[string(FieldProtein)] = p.Protein.String()
	}
	if p.Intake != nil {
		assignments[string(FieldIntake)] = p.Intake.String()
	}
	if p.Type != nil {
		assignments[string(FieldType)] = string(*p.Type)
	}
	return assignments
}
