package model

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrLastRow is returned when removing would leave a collection empty.
	ErrLastRow = errors.New("a collection must keep at least one row")
	// ErrRowIndex is returned for an index outside the collection.
	ErrRowIndex = errors.New("row index out of range")
	// ErrUnknownField is returned when a field name is not part of the row schema.
	ErrUnknownField = errors.New("unknown field")
)

// FieldSpec binds one editable numeric field of a row type.
type FieldSpec[R any] struct {
	Integral bool // Truncate parsed values to whole numbers
	Get      func(R) Field
	Set      func(*R, Field)
}

// Schema describes how a Collection creates rows and edits their fields.
type Schema[R any] struct {
	Prefix string // Label prefix, e.g. "S" gives S1, S2, ...
	New    func(id string) R
	Fields map[string]FieldSpec[R]
}

// FieldNames returns the schema's field names in sorted order.
func (s Schema[R]) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Collection is an ordered list of editable rows that never holds fewer
// than one row. Labels are handed out once and never reused.
type Collection[R any] struct {
	schema Schema[R]
	rows   []R
	next   int
}

// NewCollection creates a collection holding a single blank row.
func NewCollection[R any](schema Schema[R]) *Collection[R] {
	c := &Collection[R]{schema: schema, next: 1}
	c.Add()
	return c
}

// Add appends a blank row and returns its label. The label number is the
// new length, bumped past any label already issued.
func (c *Collection[R]) Add() string {
	n := len(c.rows) + 1
	if n < c.next {
		n = c.next
	}
	id := fmt.Sprintf("%s%d", c.schema.Prefix, n)
	c.rows = append(c.rows, c.schema.New(id))
	c.next = n + 1
	return id
}

// Remove deletes the row at index, keeping the order of the others.
// The last remaining row cannot be removed.
func (c *Collection[R]) Remove(index int) error {
	if index < 0 || index >= len(c.rows) {
		return fmt.Errorf("remove %d: %w", index, ErrRowIndex)
	}
	if len(c.rows) == 1 {
		return ErrLastRow
	}
	c.rows = append(c.rows[:index:index], c.rows[index+1:]...)
	return nil
}

// Update parses raw form text into the named field of the row at index.
// Unparsable text is stored as an Invalid field rather than rejected.
func (c *Collection[R]) Update(index int, field, raw string) error {
	spec, ok := c.schema.Fields[field]
	if !ok {
		return fmt.Errorf("update %q: %w", field, ErrUnknownField)
	}
	if index < 0 || index >= len(c.rows) {
		return fmt.Errorf("update %d: %w", index, ErrRowIndex)
	}
	spec.Set(&c.rows[index], ParseField(raw, spec.Integral))
	return nil
}

// Get returns the named field of the row at index.
func (c *Collection[R]) Get(index int, field string) (Field, error) {
	spec, ok := c.schema.Fields[field]
	if !ok {
		return Field{}, fmt.Errorf("get %q: %w", field, ErrUnknownField)
	}
	if index < 0 || index >= len(c.rows) {
		return Field{}, fmt.Errorf("get %d: %w", index, ErrRowIndex)
	}
	return spec.Get(c.rows[index]), nil
}

// Len returns the number of rows. It is always at least 1.
func (c *Collection[R]) Len() int {
	return len(c.rows)
}

// Row returns the row at index.
func (c *Collection[R]) Row(index int) (R, bool) {
	if index < 0 || index >= len(c.rows) {
		var zero R
		return zero, false
	}
	return c.rows[index], true
}

// Rows returns a copy of all rows in order.
func (c *Collection[R]) Rows() []R {
	cp := make([]R, len(c.rows))
	copy(cp, c.rows)
	return cp
}

// Schema returns the row schema.
func (c *Collection[R]) Schema() Schema[R] {
	return c.schema
}

// IsBlank reports whether every field of the row at index is Empty.
func (c *Collection[R]) IsBlank(index int) bool {
	if index < 0 || index >= len(c.rows) {
		return false
	}
	for _, spec := range c.schema.Fields {
		if !spec.Get(c.rows[index]).IsEmpty() {
			return false
		}
	}
	return true
}

// Reset drops every row and starts over with one blank row.
// Labels keep counting from where they were.
func (c *Collection[R]) Reset() {
	c.rows = nil
	c.Add()
}

// FillRaw appends one row per record, writing each value through Update.
// A lone blank row is filled first instead of being left behind.
// Records with unknown field names are reported and the rest still applied.
func (c *Collection[R]) FillRaw(records []map[string]string) []error {
	var errs []error
	for i, rec := range records {
		idx := len(c.rows) - 1
		if !(i == 0 && len(c.rows) == 1 && c.IsBlank(0)) {
			c.Add()
			idx = len(c.rows) - 1
		}
		for field, raw := range rec {
			if err := c.Update(idx, field, raw); err != nil {
				errs = append(errs, fmt.Errorf("record %d: %w", i+1, err))
			}
		}
	}
	return errs
}
