package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	name     string
	selected bool
}

func (i *item) IsSelected() bool   { return i.selected }
func (i *item) SetSelected(s bool) { i.selected = s }

func newItem(name string, selected bool) *item {
	return &item{name: name, selected: selected}
}

func names(items []*item) []string {
	var out []string
	for _, i := range items {
		out = append(out, i.name)
	}
	return out
}

func TestSelectionSelectedIsDerived(t *testing.T) {
	s := NewSelection[*item](nil)
	a := newItem("a", false)
	b := newItem("b", false)
	s.Push(a)
	s.Push(b)

	assert.Empty(t, s.Selected())

	b.SetSelected(true)
	require.Len(t, s.Selected(), 1)
	assert.Equal(t, "b", s.Selected()[0].name)

	// The selected view reflects flag changes without any selection call
	b.SetSelected(false)
	assert.Empty(t, s.Selected())
}

func TestSelectionRemoveSelectionRemovesExactlySelected(t *testing.T) {
	s := NewSelection[*item](nil)
	s.Push(newItem("a", true))
	s.Push(newItem("b", false))
	s.Push(newItem("c", true))
	s.Push(newItem("d", false))

	s.RemoveSelection()

	assert.Equal(t, []string{"b", "d"}, names(s.All()))
	assert.Empty(t, s.Selected())
}

func TestSelectionRemoveSelectionNoopWhenNothingSelected(t *testing.T) {
	s := NewSelection[*item](nil)
	s.Push(newItem("a", false))
	s.Push(newItem("b", false))

	s.RemoveSelection()

	assert.Equal(t, []string{"a", "b"}, names(s.All()))
}

func TestSelectionSelectAllDeselectAll(t *testing.T) {
	s := NewSelection[*item](nil)
	s.Push(newItem("a", false))
	s.Push(newItem("b", true))

	s.SelectAll()
	assert.Len(t, s.Selected(), 2)

	s.DeselectAll()
	assert.Empty(t, s.Selected())
	assert.Equal(t, 2, s.Len())
}

func TestSelectionClear(t *testing.T) {
	s := NewSelection[*item](nil)
	s.Push(newItem("a", true))
	s.Clear()
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Selected())
}
