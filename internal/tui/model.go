// Package tui is the terminal front-end of the meal log: a month of days and
// the editable meal table of the selected day.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/calendar"
	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
	"github.com/MarcoPoloResearchLab/mealog/internal/table"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const (
	defaultBlurDelay = 150 * time.Millisecond
	errorFadeDelay   = 3 * time.Second
)

var (
	errMissingSource = errors.New("meal source is required")
	errMissingWriter = errors.New("write executor is required")
)

// Source is the repository surface the terminal reads from.
type Source interface {
	Meals() []meals.Meal
	Subscribe(ctx context.Context) (<-chan meals.Snapshot, func())
	DefaultType() meals.MealType
	IDProvider() meals.IDProvider
}

// Writer applies table writes off the event loop and reports their outcome.
type Writer interface {
	Submit(writes ...table.Write)
	Results() <-chan table.Result
}

// Config describes a Model.
type Config struct {
	Context context.Context
	Source  Source
	Writer  Writer
	// Date is the day opened first; today when empty.
	Date string
	// BlurDelay is how long suggestions stay open after their input loses
	// focus, so a pick made in the meantime still lands.
	BlurDelay time.Duration
	Clock     func() time.Time
	Logger    *zap.Logger
}

// snapshotMsg delivers a repository snapshot into the event loop.
type snapshotMsg struct {
	snapshot meals.Snapshot
}

// writeResultMsg delivers the outcome of one executor write.
type writeResultMsg struct {
	result table.Result
}

// suggestionBlurMsg fires after the blur delay of a suggestion list.
type suggestionBlurMsg struct {
	token uint64
}

// errorFadeMsg clears the write error notice.
type errorFadeMsg struct{}

// Model is the bubbletea model of the meal log.
type Model struct {
	source    Source
	writer    Writer
	logger    *zap.Logger
	clock     func() time.Time
	theme     Theme
	keys      KeyMap
	help      help.Model
	blurDelay time.Duration

	snapshots   <-chan meals.Snapshot
	unsubscribe func()

	all   []meals.Meal
	month calendar.Month
	table *table.Table

	// editors holds the inputs of every rendered row, keyed by row id.
	editors   map[string]*rowEditor
	focusedID string // Row whose input holds focus; empty while navigating.
	cursorID  string // Highlighted row while no input is focused.

	writeError string
	width      int
	height     int
}

// NewModel constructs the model and subscribes to the repository.
func NewModel(cfg Config) (Model, error) {
	if cfg.Source == nil {
		return Model{}, errMissingSource
	}
	if cfg.Writer == nil {
		return Model{}, errMissingWriter
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	blurDelay := cfg.BlurDelay
	if blurDelay <= 0 {
		blurDelay = defaultBlurDelay
	}
	date := cfg.Date
	if date == "" {
		date = calendar.Today(clock())
	}
	month, err := calendar.MonthOf(date)
	if err != nil {
		return Model{}, err
	}

	snapshots, unsubscribe := cfg.Source.Subscribe(ctx)
	model := Model{
		source:      cfg.Source,
		writer:      cfg.Writer,
		logger:      logger,
		clock:       clock,
		theme:       DefaultTheme,
		keys:        DefaultKeyMap,
		help:        help.New(),
		blurDelay:   blurDelay,
		snapshots:   snapshots,
		unsubscribe: unsubscribe,
		all:         cfg.Source.Meals(),
		month:       month,
	}
	if err := model.openDay(date, true); err != nil {
		unsubscribe()
		return Model{}, err
	}
	return model, nil
}

// Init implements tea.Model. Starts listening for snapshots and write results.
func (model Model) Init() tea.Cmd {
	return tea.Batch(
		listenForSnapshot(model.snapshots),
		listenForResult(model.writer.Results()),
	)
}

// listenForSnapshot returns a tea.Cmd that blocks until the repository
// publishes, then delivers the snapshot as a snapshotMsg.
func listenForSnapshot(channel <-chan meals.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snapshot, ok := <-channel
		if !ok {
			return nil
		}
		return snapshotMsg{snapshot: snapshot}
	}
}

// listenForResult returns a tea.Cmd that blocks until the executor finishes a
// write.
func listenForResult(channel <-chan table.Result) tea.Cmd {
	return func() tea.Msg {
		result, ok := <-channel
		if !ok {
			return nil
		}
		return writeResultMsg{result: result}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		if key.Matches(message, model.keys.Quit) {
			model.unsubscribe()
			return model, tea.Quit
		}
		if model.focusedID == "" {
			return model.handleIdleKeys(message)
		}
		return model.handleEditKeys(message)

	case snapshotMsg:
		model.all = message.snapshot.Meals
		model.table.Sync(model.all)
		model.syncEditors()
		return model, listenForSnapshot(model.snapshots)

	case writeResultMsg:
		model.table.Acknowledge(message.result)
		model.syncEditors()
		next := listenForResult(model.writer.Results())
		if message.result.Err != nil {
			model.writeError = fmt.Sprintf("%s failed: %v", message.result.Write.Kind, message.result.Err)
			return model, tea.Batch(next, tea.Tick(errorFadeDelay, func(time.Time) tea.Msg {
				return errorFadeMsg{}
			}))
		}
		return model, next

	case suggestionBlurMsg:
		model.table.Suggestions().CloseAfterBlur(message.token)

	case errorFadeMsg:
		model.writeError = ""

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.help.Width = message.Width
	}
	return model, nil
}

func (model Model) handleEditKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := model.focusedID
	editor := model.editors[id]
	if editor == nil {
		model.focusedID = ""
		return model, nil
	}
	suggestions := model.table.Suggestions()
	listOpen := suggestions.IsOpen() && suggestions.RowID() == id

	switch {
	case key.Matches(message, model.keys.Down):
		if listOpen {
			suggestions.MoveDown()
			return model, nil
		}
		return model, model.moveRow(1)

	case key.Matches(message, model.keys.Up):
		if listOpen {
			suggestions.MoveUp()
			return model, nil
		}
		return model, model.moveRow(-1)

	case key.Matches(message, model.keys.Accept):
		if listOpen {
			model.submit(model.table.AcceptSuggestion())
			if row, ok := model.table.Row(id); ok {
				editor.Overwrite(row.Meal, row.Ghost)
			}
			return model, nil
		}
		ghostID := model.table.Advance(id)
		model.focusRow(ghostID, 0)
		return model, nil

	case key.Matches(message, model.keys.Dismiss):
		if listOpen {
			suggestions.Dismiss()
			return model, nil
		}
		model.cursorID = id
		return model, model.blurRow()

	case key.Matches(message, model.keys.NextField):
		if listOpen {
			model.submit(model.table.AcceptSuggestion())
			if row, ok := model.table.Row(id); ok {
				editor.Overwrite(row.Meal, row.Ghost)
			}
		}
		return model, model.moveField(1)

	case key.Matches(message, model.keys.PreviousField):
		return model, model.moveField(-1)

	case key.Matches(message, model.keys.NextType):
		model.submit(model.table.CycleType(id, true))
		return model, nil

	case key.Matches(message, model.keys.PreviousType):
		model.submit(model.table.CycleType(id, false))
		return model, nil

	case key.Matches(message, model.keys.Delete):
		model.deleteRow(id)
		return model, nil

	case key.Matches(message, model.keys.NextDay):
		model.shiftDay(1)
		return model, nil

	case key.Matches(message, model.keys.PreviousDay):
		model.shiftDay(-1)
		return model, nil
	}

	changed, cmd := editor.Update(message)
	if changed {
		value := editor.Value()
		if editor.Field() == meals.FieldName {
			model.submit(model.table.TypeName(id, value))
		} else {
			model.submit(model.table.SetField(id, editor.Field(), value))
		}
	}
	return model, cmd
}

func (model Model) handleIdleKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.QuitIdle):
		model.unsubscribe()
		return model, tea.Quit

	case key.Matches(message, model.keys.Down):
		model.moveCursor(1)

	case key.Matches(message, model.keys.Up):
		model.moveCursor(-1)

	case key.Matches(message, model.keys.Accept), key.Matches(message, model.keys.NextField):
		target := model.cursorID
		if _, ok := model.editors[target]; !ok {
			target = model.table.GhostID()
		}
		model.focusRow(target, 0)

	case key.Matches(message, model.keys.NextType):
		model.submit(model.table.CycleType(model.cursorID, true))

	case key.Matches(message, model.keys.PreviousType):
		model.submit(model.table.CycleType(model.cursorID, false))

	case key.Matches(message, model.keys.Delete):
		model.deleteRow(model.cursorID)

	case key.Matches(message, model.keys.NextDay):
		model.shiftDay(1)

	case key.Matches(message, model.keys.PreviousDay):
		model.shiftDay(-1)

	case key.Matches(message, model.keys.NextMonth):
		model.shiftMonth(1)

	case key.Matches(message, model.keys.PreviousMonth):
		model.shiftMonth(-1)
	}
	return model, nil
}

// openDay replaces the table with the one of date. With focus set the new
// ghost row takes keyboard focus.
func (model *Model) openDay(date string, focus bool) error {
	dayTable, err := table.New(table.Config{
		Date:        date,
		DefaultType: model.source.DefaultType(),
		IDProvider:  model.source.IDProvider(),
		Clock:       model.clock,
		Logger:      model.logger,
	})
	if err != nil {
		return err
	}
	dayTable.Sync(model.all)
	model.table = dayTable
	model.editors = make(map[string]*rowEditor)
	model.focusedID = ""
	model.cursorID = dayTable.GhostID()
	if focus {
		dayTable.Focus().Request(dayTable.GhostID())
	}
	model.syncEditors()
	model.logger.Debug("day opened", zap.String("date", date))
	return nil
}

func (model *Model) shiftDay(delta int) {
	date, err := calendar.ShiftDay(model.table.Date(), delta)
	if err != nil {
		model.logger.Warn("day shift failed", zap.Error(err))
		return
	}
	month, err := calendar.MonthOf(date)
	if err != nil {
		model.logger.Warn("day shift failed", zap.Error(err))
		return
	}
	model.month = month
	if err := model.openDay(date, model.focusedID != ""); err != nil {
		model.logger.Warn("day open failed", zap.String("date", date), zap.Error(err))
	}
}

func (model *Model) shiftMonth(delta int) {
	model.month = model.month.Shift(delta)
	date := model.month.FirstDay()
	if err := model.openDay(date, false); err != nil {
		model.logger.Warn("day open failed", zap.String("date", date), zap.Error(err))
	}
}

// syncEditors makes the editors match the rendered rows, binds them to the
// focus tracker and resolves any pending focus request.
func (model *Model) syncEditors() {
	rows := model.table.Rows()
	tracker := model.table.Focus()
	ids := make([]string, 0, len(rows))
	present := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		id := row.Meal.ID
		ids = append(ids, id)
		present[id] = struct{}{}
		editor, ok := model.editors[id]
		if !ok {
			editor = newRowEditor(id)
			model.editors[id] = editor
		}
		editor.Load(row.Meal, row.Ghost)
		tracker.Bind(id, editor)
	}
	for id := range model.editors {
		if _, ok := present[id]; ok {
			continue
		}
		delete(model.editors, id)
		if id == model.focusedID {
			model.focusedID = ""
			if tracker.Pending() == "" {
				tracker.Request(model.table.GhostID())
			}
		}
		if id == model.cursorID {
			model.cursorID = model.table.GhostID()
		}
	}
	tracker.Retain(ids)
	model.resolveFocus()
}

func (model *Model) resolveFocus() {
	tracker := model.table.Focus()
	target := tracker.Pending()
	if target == "" {
		return
	}
	previous := model.editors[model.focusedID]
	if !tracker.Resolve() {
		return
	}
	if previous != nil && model.focusedID != target {
		previous.Blur()
	}
	model.focusedID = target
	model.cursorID = target
}

// focusRow moves keyboard focus to the row id on column.
func (model *Model) focusRow(id string, column int) {
	editor, ok := model.editors[id]
	if !ok {
		return
	}
	if id != model.focusedID {
		editor.Blur()
	}
	editor.SetColumn(column)
	model.table.Focus().Request(id)
	model.syncEditors()
}

// blurRow leaves the focused input and schedules the delayed close of its
// suggestions.
func (model *Model) blurRow() tea.Cmd {
	cmd := model.suggestionBlurCmd()
	if editor := model.editors[model.focusedID]; editor != nil {
		editor.Blur()
	}
	model.focusedID = ""
	return cmd
}

func (model *Model) suggestionBlurCmd() tea.Cmd {
	suggestions := model.table.Suggestions()
	if !suggestions.IsOpen() || suggestions.RowID() != model.focusedID {
		return nil
	}
	editor := model.editors[model.focusedID]
	if editor == nil || editor.Field() != meals.FieldName {
		return nil
	}
	token := suggestions.Blur()
	return tea.Tick(model.blurDelay, func(time.Time) tea.Msg {
		return suggestionBlurMsg{token: token}
	})
}

func (model *Model) moveField(delta int) tea.Cmd {
	editor := model.editors[model.focusedID]
	cmd := model.suggestionBlurCmd()
	next := editor.column + delta
	if next >= 0 && next < len(editableFields) {
		editor.SetColumn(next)
		return cmd
	}

	ids := model.table.RowIDs()
	position := indexOf(ids, model.focusedID) + delta
	if position < 0 || position >= len(ids) {
		return cmd
	}
	column := 0
	if delta < 0 {
		column = len(editableFields) - 1
	}
	model.focusRow(ids[position], column)
	return cmd
}

func (model *Model) moveRow(delta int) tea.Cmd {
	ids := model.table.RowIDs()
	position := indexOf(ids, model.focusedID) + delta
	if position < 0 || position >= len(ids) {
		return nil
	}
	cmd := model.suggestionBlurCmd()
	column := model.editors[model.focusedID].column
	model.focusRow(ids[position], column)
	return cmd
}

func (model *Model) moveCursor(delta int) {
	ids := model.table.RowIDs()
	position := indexOf(ids, model.cursorID) + delta
	if position < 0 || position >= len(ids) {
		return
	}
	model.cursorID = ids[position]
}

// deleteRow removes a real row and moves focus to the row that takes its
// place.
func (model *Model) deleteRow(id string) {
	position := indexOf(model.table.RowIDs(), id)
	writes := model.table.Delete(id)
	if len(writes) == 0 {
		return
	}
	wasFocused := id == model.focusedID
	column := 0
	if editor := model.editors[id]; editor != nil {
		column = editor.column
	}
	model.submit(writes)

	ids := model.table.RowIDs()
	if position >= len(ids) {
		position = len(ids) - 1
	}
	target := ids[position]
	model.cursorID = target
	if wasFocused {
		model.focusRow(target, column)
	}
}

func (model *Model) submit(writes []table.Write) {
	if len(writes) > 0 {
		model.writer.Submit(writes...)
	}
	model.syncEditors()
}

func indexOf(ids []string, id string) int {
	for index, candidate := range ids {
		if candidate == id {
			return index
		}
	}
	return -1
}

// View implements tea.Model.
func (model Model) View() string {
	sections := []string{
		model.renderHeader(),
		model.renderDays(),
		model.renderTable(),
	}
	if suggestions := model.renderSuggestions(); suggestions != "" {
		sections = append(sections, suggestions)
	}
	sections = append(sections, model.renderTotals())
	if model.writeError != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(model.theme.ErrorText).Render(model.writeError))
	}
	sections = append(sections, lipgloss.NewStyle().
		Foreground(model.theme.HelpText).
		MarginTop(1).
		Render(model.help.View(model.keys)))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (model Model) renderHeader() string {
	style := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).MarginBottom(1)
	return style.Render(fmt.Sprintf("MeaLog · %s", model.month.Label()))
}

func (model Model) renderDays() string {
	selected := model.table.Date()
	normal := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	active := lipgloss.NewStyle().
		Foreground(model.theme.SelectedForeground).
		Background(model.theme.SelectedBackground).
		Bold(true)

	var lines []string
	for _, day := range calendar.Summarize(model.month, model.all) {
		if day.Totals.Count == 0 && day.Date != selected {
			continue
		}
		marker := "  "
		style := normal
		if day.Date == selected {
			marker = "▸ "
			style = active
		}
		lines = append(lines, style.Render(fmt.Sprintf("%s%s  %6s kcal  %5s g protein  %d meals",
			marker, day.Date, day.Totals.Calories.String(), day.Totals.Protein.String(), day.Totals.Count)))
	}
	return lipgloss.NewStyle().MarginBottom(1).Render(strings.Join(lines, "\n"))
}

var columnWidths = []int{26, 8, 8, 8}

const typeColumnWidth = 11

func (model Model) renderTable() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground)
	headers := []string{"Name", "kcal", "Protein", "Intake"}
	cells := make([]string, 0, len(headers)+2)
	cells = append(cells, "  ")
	for index, title := range headers {
		cells = append(cells, cell(headerStyle, columnWidths[index]).Render(title))
	}
	cells = append(cells, cell(headerStyle, typeColumnWidth).Render("Type"))
	lines := []string{lipgloss.JoinHorizontal(lipgloss.Top, cells...)}

	for _, row := range model.table.Rows() {
		lines = append(lines, model.renderRow(row))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(model.theme.BorderColor).
		Render(strings.Join(lines, "\n"))
}

func (model Model) renderRow(row table.Row) string {
	editor := model.editors[row.Meal.ID]
	base := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	if row.Ghost {
		base = base.Foreground(model.theme.FaintText)
	}
	if model.focusedID == "" && model.cursorID == row.Meal.ID {
		base = base.Background(model.theme.SelectedBackground).Foreground(model.theme.SelectedForeground)
	}

	marker := "  "
	switch {
	case row.Meal.ID == model.focusedID:
		marker = "› "
	case row.Pending:
		marker = "• "
	}
	markerStyle := base
	if row.Pending {
		markerStyle = markerStyle.Foreground(model.theme.PendingAccent)
	}

	cells := []string{markerStyle.Render(marker)}
	for index := range editableFields {
		text := ""
		if editor != nil {
			text = editor.View(index)
		}
		cells = append(cells, cell(base, columnWidths[index]).Render(text))
	}
	typeStyle := cell(base, typeColumnWidth).Foreground(model.theme.TypeColor(row.Meal.Type))
	if row.Ghost {
		typeStyle = typeStyle.Faint(true)
	}
	cells = append(cells, typeStyle.Render(row.Meal.Type.Label()))
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (model Model) renderSuggestions() string {
	suggestions := model.table.Suggestions()
	if !suggestions.IsOpen() || suggestions.RowID() != model.focusedID {
		return ""
	}
	normal := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	highlighted := lipgloss.NewStyle().
		Foreground(model.theme.SelectedForeground).
		Background(model.theme.SelectedBackground)

	lines := make([]string, 0, len(suggestions.Items()))
	for index, candidate := range suggestions.Items() {
		style := normal
		if index == suggestions.Highlight() {
			style = highlighted
		}
		lines = append(lines, style.Render(fmt.Sprintf("  %-24s %6s kcal %5s g  %s",
			candidate.Name, candidate.Calories, candidate.Protein, candidate.Type.Label())))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(model.theme.BorderColor).
		Render(strings.Join(lines, "\n"))
}

func (model Model) renderTotals() string {
	totals := model.table.Totals()
	return lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render(
		fmt.Sprintf("Total  %s kcal  %s g protein  %s intake", totals.Calories, totals.Protein, totals.Intake))
}

func cell(style lipgloss.Style, width int) lipgloss.Style {
	return style.Width(width).MaxWidth(width).PaddingRight(1)
}
