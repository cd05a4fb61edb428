// Package patch provides an optional value type for partial updates.
//
// A Field decoded from JSON distinguishes three states: the key was absent
// (Set == false), the key was present with null (Set && Null), or the key
// carried a value (Set && !Null).
package patch

import "encoding/json"

type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Value returns a field holding v.
func Value[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null returns a field that was explicitly cleared.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		var zero T
		f.Null = true
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// Present reports whether the field carries a non-null value.
func (f Field[T]) Present() bool {
	return f.Set && !f.Null
}

// Ptr returns nil for an absent or null field, otherwise a pointer to a copy of the value.
func (f Field[T]) Ptr() *T {
	if !f.Present() {
		return nil
	}
	v := f.Value
	return &v
}
