// Package codec converts between struct values and the tagged binary encoding.
//
// A Struct is a descriptor plus the set of fields that are present. Encode
// walks the descriptor in ascending field id order and writes every present
// field; Decode reads until STOP and skips anything it does not recognise, so
// newer peers can add fields without breaking older readers.
package codec

import "errors"

// ErrBadValue is returned by Encode when a field holds a Go value that does not
// fit its declared wire type.
var ErrBadValue = errors.New("codec: bad value for declared type")

// Value is any decoded field value: bool, int8, int16, int32, int64, float64,
// string, *Struct, List, Set, Map or Void.
type Value = any

// List is the decoded form of a LIST value.
type List []any

// Set is the decoded form of a SET value. Element order is wire order.
type Set []any

// MapEntry is one key/value pair of a MAP value.
type MapEntry struct {
	Key   any
	Value any
}

// Map keeps entries in wire order; keys are not required to be comparable.
type Map []MapEntry

// Void is the success marker returned by methods without a result.
type Void struct{}

// Optional carries a value together with whether it was set.
type Optional[T any] struct {
	value T
	set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

func (o Optional[T]) IsSet() bool {
	return o.set
}

// OrElse returns the value, or def if it is unset.
func (o Optional[T]) OrElse(def T) T {
	if !o.set {
		return def
	}
	return o.value
}

// Field reads a struct field as an Optional. A field that is present but holds
// a different Go type reads as unset.
func Field[T any](s *Struct, name string) Optional[T] {
	v, ok := s.Get(name)
	if !ok {
		return None[T]()
	}
	t, ok := v.(T)
	if !ok {
		return None[T]()
	}
	return Some(t)
}

// SetOptional stores o under name when it is set and clears the field otherwise.
func SetOptional[T any](s *Struct, name string, o Optional[T]) *Struct {
	if v, ok := o.Get(); ok {
		return s.Set(name, v)
	}
	s.Clear(name)
	return s
}
