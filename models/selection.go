package models

// Selectable is implemented by list items that carry their own selection flag.
type Selectable interface {
	IsSelected() bool
	SetSelected(selected bool)
}

// Selection tracks an ordered list of items and which of them are selected.
// The selected view is always derived from the items' own flags; it is never
// a second copy of the backing slice. Every list in the client (mails, visible
// users, folders) goes through one of these.
type Selection[T Selectable] struct {
	all []T
}

// NewSelection creates a selection over the given backing items
func NewSelection[T Selectable](items []T) *Selection[T] {
	if items == nil {
		items = []T{}
	}
	return &Selection[T]{all: items}
}

// All returns the backing slice, insertion order preserved.
func (s *Selection[T]) All() []T {
	return s.all
}

// Len returns the number of items in the backing slice
func (s *Selection[T]) Len() int {
	return len(s.all)
}

// Push appends an item to the backing slice
func (s *Selection[T]) Push(item T) {
	s.all = append(s.all, item)
}

// Clear empties the backing slice
func (s *Selection[T]) Clear() {
	s.all = s.all[:0]
}

// Selected returns the items whose selection flag is set, computed on demand.
func (s *Selection[T]) Selected() []T {
	var selected []T
	for _, item := range s.all {
		if item.IsSelected() {
			selected = append(selected, item)
		}
	}
	return selected
}

// SelectAll sets the selection flag on every item
func (s *Selection[T]) SelectAll() {
	for _, item := range s.all {
		item.SetSelected(true)
	}
}

// DeselectAll clears the selection flag on every item
func (s *Selection[T]) DeselectAll() {
	for _, item := range s.all {
		item.SetSelected(false)
	}
}

// RemoveSelection removes every currently-selected item from the backing
// slice. This is the only way selected items leave the list through the
// selection; unselected items are left untouched, in order.
func (s *Selection[T]) RemoveSelection() {
	kept := s.all[:0]
	for _, item := range s.all {
		if !item.IsSelected() {
			kept = append(kept, item)
		}
	}
	// Drop references past the new length so removed items can be collected
	for i := len(kept); i < len(s.all); i++ {
		var zero T
		s.all[i] = zero
	}
	s.all = kept
}
