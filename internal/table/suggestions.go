package table

import "github.com/MarcoPoloResearchLab/mealog/internal/recommend"

const noHighlight = -1

// Suggestions is the autocomplete list of the row being typed in.
type Suggestions struct {
	rowID      string
	items      []recommend.Candidate
	highlight  int
	generation uint64
}

// Open shows items for a row and clears the highlight. An empty list closes.
func (s *Suggestions) Open(rowID string, items []recommend.Candidate) {
	s.generation++
	s.rowID = rowID
	s.items = items
	s.highlight = noHighlight
	if len(items) == 0 {
		s.rowID = ""
		s.items = nil
	}
}

// IsOpen reports whether a list is showing.
func (s *Suggestions) IsOpen() bool {
	return len(s.items) > 0
}

// RowID returns the row the list belongs to.
func (s *Suggestions) RowID() string {
	return s.rowID
}

// Items returns the listed candidates.
func (s *Suggestions) Items() []recommend.Candidate {
	return s.items
}

// Highlight returns the highlighted position, or -1.
func (s *Suggestions) Highlight() int {
	if !s.IsOpen() {
		return noHighlight
	}
	return s.highlight
}

// MoveDown moves the highlight forward, wrapping to the top.
func (s *Suggestions) MoveDown() {
	if !s.IsOpen() {
		return
	}
	s.highlight = (s.highlight + 1) % len(s.items)
}

// MoveUp moves the highlight backward, wrapping to the bottom.
func (s *Suggestions) MoveUp() {
	if !s.IsOpen() {
		return
	}
	if s.highlight <= 0 {
		s.highlight = len(s.items) - 1
		return
	}
	s.highlight--
}

// Accept closes the list and returns the highlighted candidate, or the first
// one when nothing is highlighted.
func (s *Suggestions) Accept() (string, recommend.Candidate, bool) {
	if !s.IsOpen() {
		return "", recommend.Candidate{}, false
	}
	position := s.highlight
	if position < 0 || position >= len(s.items) {
		position = 0
	}
	rowID := s.rowID
	candidate := s.items[position]
	s.Dismiss()
	return rowID, candidate, true
}

// Dismiss closes the list without applying anything.
func (s *Suggestions) Dismiss() {
	s.generation++
	s.rowID = ""
	s.items = nil
	s.highlight = noHighlight
}

// Blur returns a token for closing the list after the blur delay. The token
// goes stale when the list changes in the meantime, e.g. when a suggestion
// was picked.
func (s *Suggestions) Blur() uint64 {
	return s.generation
}

// CloseAfterBlur closes the list if nothing changed since Blur issued token.
func (s *Suggestions) CloseAfterBlur(token uint64) bool {
	if token != s.generation || !s.IsOpen() {
		return false
	}
	s.Dismiss()
	return true
}
