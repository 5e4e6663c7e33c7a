package table

// Element is an input that can receive keyboard focus.
type Element interface {
	Focused() bool
	Focus()
}

// FocusTracker maps row identifiers to their name inputs and remembers which
// row should be focused once it is rendered.
type FocusTracker struct {
	rowElementByIdentifier map[string]Element
	pendingFocusIdentifier string
}

// NewFocusTracker constructs an empty FocusTracker.
func NewFocusTracker() *FocusTracker {
	return &FocusTracker{rowElementByIdentifier: make(map[string]Element)}
}

// Bind registers the name input rendered for a row.
func (f *FocusTracker) Bind(id string, element Element) {
	if element == nil {
		delete(f.rowElementByIdentifier, id)
		return
	}
	f.rowElementByIdentifier[id] = element
}

// Unbind forgets the input of a row that is no longer rendered.
func (f *FocusTracker) Unbind(id string) {
	delete(f.rowElementByIdentifier, id)
}

// Retain drops every binding whose identifier is not in ids.
func (f *FocusTracker) Retain(ids []string) {
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	for id := range f.rowElementByIdentifier {
		if _, ok := keep[id]; !ok {
			delete(f.rowElementByIdentifier, id)
		}
	}
}

// Request marks id as the row to focus on the next render cycle.
func (f *FocusTracker) Request(id string) {
	f.pendingFocusIdentifier = id
}

// Pending returns the identifier waiting for focus, if any.
func (f *FocusTracker) Pending() string {
	return f.pendingFocusIdentifier
}

// Resolve runs once per render cycle. When the pending row's input is bound it
// is focused unless it already holds focus, and the request is cleared.
// Refocusing a focused input would interrupt composed text entry. A request
// for a row that is not bound yet stays pending. Resolve reports whether it
// moved focus.
func (f *FocusTracker) Resolve() bool {
	if f.pendingFocusIdentifier == "" {
		return false
	}
	element, ok := f.rowElementByIdentifier[f.pendingFocusIdentifier]
	if !ok {
		return false
	}
	f.pendingFocusIdentifier = ""
	if element.Focused() {
		return false
	}
	element.Focus()
	return true
}
