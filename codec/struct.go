package codec

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"hqlrpc/schema"
)

// Struct is one value of a described struct shape. Absence is "not in the
// map"; a present field may hold a zero value.
type Struct struct {
	desc   *schema.StructDesc
	fields map[uint16]any
}

// New returns an empty value of the given shape.
func New(desc *schema.StructDesc) *Struct {
	return &Struct{desc: desc, fields: make(map[uint16]any, desc.Len())}
}

func (s *Struct) Desc() *schema.StructDesc {
	return s.desc
}

// Set stores v under the named field. Naming a field the descriptor does not
// declare is a programming error and panics. Value types are checked by Encode.
func (s *Struct) Set(name string, v any) *Struct {
	f, ok := s.desc.FieldByName(name)
	if !ok {
		panic(fmt.Sprintf("codec: %s has no field %q", s.desc.Name, name))
	}
	s.fields[f.ID] = v
	return s
}

// SetID is Set by field id.
func (s *Struct) SetID(id uint16, v any) *Struct {
	if _, ok := s.desc.FieldByID(id); !ok {
		panic(fmt.Sprintf("codec: %s has no field id %d", s.desc.Name, id))
	}
	s.fields[id] = v
	return s
}

func (s *Struct) Get(name string) (any, bool) {
	f, ok := s.desc.FieldByName(name)
	if !ok {
		return nil, false
	}
	v, ok := s.fields[f.ID]
	return v, ok
}

func (s *Struct) GetID(id uint16) (any, bool) {
	v, ok := s.fields[id]
	return v, ok
}

func (s *Struct) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

func (s *Struct) Clear(name string) {
	if f, ok := s.desc.FieldByName(name); ok {
		delete(s.fields, f.ID)
	}
}

// Present returns the ids of the present fields in ascending order.
func (s *Struct) Present() []uint16 {
	ids := make([]uint16, 0, len(s.fields))
	for id := range s.fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of present fields.
func (s *Struct) Len() int {
	return len(s.fields)
}

func (s *Struct) String() string {
	var b strings.Builder
	b.WriteString(s.desc.Name)
	b.WriteByte('{')
	for i, id := range s.Present() {
		if i > 0 {
			b.WriteString(", ")
		}
		f, _ := s.desc.FieldByID(id)
		fmt.Fprintf(&b, "%s: %v", f.Name, s.fields[id])
	}
	b.WriteByte('}')
	return b.String()
}

// Equal reports whether a and b have the same shape and the same present
// fields with equal values. []byte and string compare by content, so a value
// built with []byte equals its decoded form.
func Equal(a, b *Struct) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.desc != b.desc || len(a.fields) != len(b.fields) {
		return false
	}
	for id, av := range a.fields {
		bv, ok := b.fields[id]
		if !ok || !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case *Struct:
		bv, ok := b.(*Struct)
		return ok && Equal(av, bv)
	case string:
		switch bv := b.(type) {
		case string:
			return av == bv
		case []byte:
			return av == string(bv)
		}
		return false
	case []byte:
		switch bv := b.(type) {
		case string:
			return string(av) == bv
		case []byte:
			return bytes.Equal(av, bv)
		}
		return false
	case float64:
		bv, ok := b.(float64)
		return ok && math.Float64bits(av) == math.Float64bits(bv)
	case List:
		return sliceEqual(av, b)
	case Set:
		return sliceEqual(av, b)
	case []any:
		return sliceEqual(av, b)
	case Map:
		bv, ok := b.(Map)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i].Key, bv[i].Key) || !valueEqual(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(a, b)
	}
}

func asSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case List:
		return t, true
	case Set:
		return t, true
	case []any:
		return t, true
	}
	return nil, false
}

func sliceEqual(a []any, other any) bool {
	b, ok := asSlice(other)
	if !ok || len(a) != len(b) {
		return false
	}
	for i := range a {
		if !valueEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
