package tui

import (
	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// editableFields are the text columns of a row, in Tab order. The type column
// is changed with the type keys instead of typing.
var editableFields = []meals.Field{
	meals.FieldName,
	meals.FieldCalories,
	meals.FieldProtein,
	meals.FieldIntake,
}

const (
	nameCharLimit     = 120
	quantityCharLimit = 12
	ghostPlaceholder  = "New"
)

// rowEditor holds the inputs of one rendered row. It is the focus target the
// table's focus tracker resolves.
type rowEditor struct {
	id      string
	inputs  []textinput.Model
	column  int
	focused bool
}

func newRowEditor(id string) *rowEditor {
	editor := &rowEditor{id: id, inputs: make([]textinput.Model, len(editableFields))}
	for index, field := range editableFields {
		input := textinput.New()
		input.Prompt = ""
		input.CharLimit = quantityCharLimit
		if field == meals.FieldName {
			input.CharLimit = nameCharLimit
		}
		editor.inputs[index] = input
	}
	return editor
}

// Focused reports whether the row holds keyboard focus.
func (e *rowEditor) Focused() bool {
	return e.focused
}

// Focus gives the row keyboard focus on its current column.
func (e *rowEditor) Focus() {
	e.focused = true
	for index := range e.inputs {
		if index == e.column {
			e.inputs[index].Focus()
			e.inputs[index].CursorEnd()
			continue
		}
		e.inputs[index].Blur()
	}
}

// Blur drops keyboard focus from every input of the row.
func (e *rowEditor) Blur() {
	e.focused = false
	for index := range e.inputs {
		e.inputs[index].Blur()
	}
}

// Field returns the meal field of the current column.
func (e *rowEditor) Field() meals.Field {
	return editableFields[e.column]
}

// SetColumn moves the cursor to column, clamped to the text columns.
func (e *rowEditor) SetColumn(column int) {
	if column < 0 {
		column = 0
	}
	if column >= len(e.inputs) {
		column = len(e.inputs) - 1
	}
	e.column = column
	if e.focused {
		e.Focus()
	}
}

// Load copies meal into the inputs. The focused input keeps its text so typing
// is never overwritten by a re-render.
func (e *rowEditor) Load(meal meals.Meal, ghost bool) {
	e.load(meal, ghost, true)
}

// Overwrite copies meal into every input, the focused one included.
func (e *rowEditor) Overwrite(meal meals.Meal, ghost bool) {
	e.load(meal, ghost, false)
	if e.focused {
		e.inputs[e.column].CursorEnd()
	}
}

func (e *rowEditor) load(meal meals.Meal, ghost bool, keepFocused bool) {
	values := []string{meal.Name, meal.Calories.String(), meal.Protein.String(), meal.Intake.String()}
	for index := range e.inputs {
		if keepFocused && e.focused && index == e.column {
			continue
		}
		if e.inputs[index].Value() != values[index] {
			e.inputs[index].SetValue(values[index])
		}
	}
	e.inputs[0].Placeholder = ""
	if ghost {
		e.inputs[0].Placeholder = ghostPlaceholder
	}
}

// Value returns the text of the current column.
func (e *rowEditor) Value() string {
	return e.inputs[e.column].Value()
}

// Update forwards a key to the current column and reports whether its text
// changed.
func (e *rowEditor) Update(message tea.Msg) (bool, tea.Cmd) {
	before := e.inputs[e.column].Value()
	var cmd tea.Cmd
	e.inputs[e.column], cmd = e.inputs[e.column].Update(message)
	return e.inputs[e.column].Value() != before, cmd
}

// View renders one column.
func (e *rowEditor) View(column int) string {
	return e.inputs[column].View()
}
