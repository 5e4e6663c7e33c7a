// Package table implements the inline editable meal table of one day: the
// always-present ghost row that turns into a meal on its first edit, the
// optimistic overlay that hides persistence latency, and the focus and
// autocomplete state that survive re-rendering.
package table

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"github.com/MarcoPoloResearchLab/mealog/internal/recommend"
	"go.uber.org/zap"
)

var errMissingDate = errors.New("table date is required")

type rowState int

const (
	rowGhost rowState = iota + 1
	rowPromoted
)

type tombstone struct {
	acknowledged bool
}

// Config describes a Table.
type Config struct {
	Date        string
	DefaultType meals.MealType
	IDProvider  meals.IDProvider
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Table holds the editing state of one day. It is not safe for concurrent
// use: every method must run on the presentation's event loop.
type Table struct {
	date        string
	defaultType meals.MealType
	idProvider  meals.IDProvider
	clock       func() time.Time
	logger      *zap.Logger

	persisted  []meals.Meal
	overlay    map[string]meals.Meal
	tombstones map[string]tombstone
	states     map[string]rowState

	ghostID   string
	ghostType meals.MealType

	index       *recommend.Index
	suggestions Suggestions
	focus       *FocusTracker
}

// New constructs the table of one day with a fresh ghost row.
func New(cfg Config) (*Table, error) {
	if err := meals.ValidateDate(cfg.Date); err != nil {
		return nil, errors.Join(errMissingDate, err)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = meals.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultType := cfg.DefaultType
	if !defaultType.Valid() {
		defaultType = meals.DefaultMealType
	}

	table := &Table{
		date:        cfg.Date,
		defaultType: defaultType,
		idProvider:  idProvider,
		clock:       clock,
		logger:      logger,
		overlay:     make(map[string]meals.Meal),
		tombstones:  make(map[string]tombstone),
		states:      make(map[string]rowState),
		index:       recommend.Build(nil),
		focus:       NewFocusTracker(),
	}
	table.newGhost()
	return table, nil
}

// Date returns the day the table edits.
func (t *Table) Date() string {
	return t.date
}

// GhostID returns the identifier of the current ghost row.
func (t *Table) GhostID() string {
	return t.ghostID
}

// Focus exposes the focus tracker for the presentation to bind inputs.
func (t *Table) Focus() *FocusTracker {
	return t.focus
}

// Suggestions exposes the autocomplete list.
func (t *Table) Suggestions() *Suggestions {
	return &t.suggestions
}

// IsGhost reports whether id is the unpromoted ghost row.
func (t *Table) IsGhost(id string) bool {
	return t.states[id] == rowGhost
}

// OverlayLen reports how many rows are shown optimistically.
func (t *Table) OverlayLen() int {
	return len(t.overlay)
}

// HasOverlay reports whether id is shown optimistically.
func (t *Table) HasOverlay(id string) bool {
	_, ok := t.overlay[id]
	return ok
}

// Rows derives the rendered rows from the persisted meals, the overlay and the
// ghost.
func (t *Table) Rows() []Row {
	return DeriveRenderRows(t.persisted, t.overlay, t.hidden(), Ghost{
		ID:          t.ghostID,
		Date:        t.date,
		DefaultType: t.defaultType,
		Type:        t.ghostType,
	})
}

// Row returns the rendered row with id.
func (t *Table) Row(id string) (Row, bool) {
	for _, row := range t.Rows() {
		if row.Meal.ID == id {
			return row, true
		}
	}
	return Row{}, false
}

// Sync applies a store snapshot. The day's meals replace the persisted view,
// the full collection rebuilds the recommendation index, and overlay entries
// the store has caught up with are dropped.
func (t *Table) Sync(all []meals.Meal) {
	t.persisted = meals.FilterByDate(all, t.date)
	t.index = recommend.BuildWithFallback(all, t.persisted)
	t.reconcile()
}

// SyncDay applies the day's meals when no full history is available.
func (t *Table) SyncDay(day []meals.Meal) {
	t.persisted = meals.FilterByDate(day, t.date)
	t.index = recommend.Build(t.persisted)
	t.reconcile()
}

func (t *Table) reconcile() {
	persistedByID := make(map[string]meals.Meal, len(t.persisted))
	for _, meal := range t.persisted {
		persistedByID[meal.ID] = meal
		if t.states[meal.ID] == 0 {
			t.states[meal.ID] = rowPromoted
		}
	}

	for id, pending := range t.overlay {
		stored, ok := persistedByID[id]
		if ok && stored.SameContent(pending) {
			delete(t.overlay, id)
		}
	}

	for id, marker := range t.tombstones {
		if _, stillStored := persistedByID[id]; stillStored || !marker.acknowledged {
			continue
		}
		delete(t.tombstones, id)
		delete(t.overlay, id)
	}
}

// SetField edits one field of a row.
func (t *Table) SetField(id string, field meals.Field, value string) []Write {
	return t.Edit(id, meals.SetField(field, value))
}

// TypeName edits the name of a row and refreshes its suggestions.
func (t *Table) TypeName(id string, value string) []Write {
	writes := t.SetField(id, meals.FieldName, value)
	if row, ok := t.Row(id); ok {
		t.suggestions.Open(id, t.index.Query(value, row.Meal))
	}
	return writes
}

// CycleType moves a row to the next or previous meal type.
func (t *Table) CycleType(id string, forward bool) []Write {
	row, ok := t.Row(id)
	if !ok {
		return nil
	}
	next := row.Meal.Type.Previous()
	if forward {
		next = row.Meal.Type.Next()
	}
	return t.SetField(id, meals.FieldType, string(next))
}

// Edit applies patch to a row. The first edit of the ghost promotes it; later
// edits become updates carrying only the fields that changed.
func (t *Table) Edit(id string, patch meals.Patch) []Write {
	if err := patch.Validate(); err != nil {
		t.logger.Debug("edit rejected", zap.String("meal_id", id), zap.Error(err))
		return nil
	}
	if t.states[id] == rowGhost {
		return t.promote(id, patch)
	}
	return t.update(id, patch)
}

func (t *Table) promote(id string, patch meals.Patch) []Write {
	ghostRow, ok := t.Row(id)
	if !ok {
		return nil
	}
	record := patch.Apply(ghostRow.Meal)
	if record.IsBlank() {
		// Picking a type on the ghost is remembered without creating a meal.
		if patch.Type != nil {
			t.ghostType = record.Type
		}
		return nil
	}

	t.states[id] = rowPromoted

	record.ID = id
	record.Date = t.date
	record.Timestamp = t.clock().UnixMilli()
	t.overlay[id] = record

	t.newGhost()
	t.focus.Request(id)

	return []Write{{Kind: WriteCreate, Date: t.date, MealID: id, Meal: record}}
}

func (t *Table) update(id string, patch meals.Patch) []Write {
	if _, deleted := t.tombstones[id]; deleted {
		return nil
	}
	current, ok := t.current(id)
	if !ok {
		return nil
	}
	changes := patch.Changes(current)
	if changes.IsEmpty() {
		return nil
	}
	t.overlay[id] = changes.Apply(current)
	return []Write{{Kind: WriteUpdate, Date: t.date, MealID: id, Patch: changes}}
}

func (t *Table) current(id string) (meals.Meal, bool) {
	if pending, ok := t.overlay[id]; ok {
		return pending, true
	}
	for _, meal := range t.persisted {
		if meal.ID == id {
			return meal, true
		}
	}
	return meals.Meal{}, false
}

// Delete hides a real row and asks for its removal. The ghost cannot be
// deleted.
func (t *Table) Delete(id string) []Write {
	if t.states[id] == rowGhost {
		return nil
	}
	if _, deleted := t.tombstones[id]; deleted {
		return nil
	}
	if _, ok := t.current(id); !ok {
		return nil
	}
	t.tombstones[id] = tombstone{}
	if t.suggestions.RowID() == id {
		t.suggestions.Dismiss()
	}
	return []Write{{Kind: WriteDelete, Date: t.date, MealID: id}}
}

// Advance moves focus to the ghost row, e.g. after Enter on a finished row.
func (t *Table) Advance(string) string {
	t.suggestions.Dismiss()
	t.focus.Request(t.ghostID)
	return t.ghostID
}

// AcceptSuggestion applies the highlighted suggestion, or the first one, to
// its row in one edit.
func (t *Table) AcceptSuggestion() []Write {
	rowID, candidate, ok := t.suggestions.Accept()
	if !ok {
		return nil
	}
	return t.Edit(rowID, candidate.Patch())
}

// Acknowledge records the outcome of a write issued by this table. Failed
// creates and updates keep their overlay entry; a failed delete brings the
// row back.
func (t *Table) Acknowledge(result Result) {
	if result.Write.Date != t.date {
		return
	}
	if result.Err != nil {
		t.logger.Warn("meal write failed",
			zap.String("kind", result.Write.Kind.String()),
			zap.String("meal_id", result.Write.MealID),
			zap.Error(result.Err))
	}
	if result.Write.Kind != WriteDelete {
		return
	}
	if _, ok := t.tombstones[result.Write.MealID]; !ok {
		return
	}
	if result.Err != nil {
		delete(t.tombstones, result.Write.MealID)
		return
	}
	t.tombstones[result.Write.MealID] = tombstone{acknowledged: true}
	t.reconcile()
}

// RowIDs lists the identifiers of the rendered rows in order.
func (t *Table) RowIDs() []string {
	rows := t.Rows()
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Meal.ID)
	}
	return ids
}

// Totals sums the rendered rows, so optimistic edits count right away.
func (t *Table) Totals() meals.Totals {
	rows := t.Rows()
	list := make([]meals.Meal, 0, len(rows))
	for _, row := range rows {
		if !row.Ghost {
			list = append(list, row.Meal)
		}
	}
	return meals.Sum(list)
}

func (t *Table) hidden() map[string]struct{} {
	if len(t.tombstones) == 0 {
		return nil
	}
	hidden := make(map[string]struct{}, len(t.tombstones))
	for id := range t.tombstones {
		hidden[id] = struct{}{}
	}
	return hidden
}

func (t *Table) newGhost() {
	id := meals.MustNewID(t.idProvider)
	for t.states[id] != 0 {
		id = meals.MustNewID(nil)
	}
	t.ghostID = id
	t.ghostType = ""
	t.states[id] = rowGhost
}
