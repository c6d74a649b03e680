// Package schema holds the static descriptor tables that drive the struct codec.
//
// A descriptor maps field ids to names and wire types. Tables are built once at
// package init (they stand in for generated code) and are never mutated
// afterwards, so they can be shared by any number of clients without locking.
package schema

import (
	"fmt"
	"sort"
)

// WireType is the one-byte type tag written in front of every field and
// collection element. Values follow the tagged binary encoding.
type WireType byte

const (
	Stop   WireType = 0
	Void   WireType = 1
	Bool   WireType = 2
	Byte   WireType = 3
	Double WireType = 4
	I16    WireType = 6
	I32    WireType = 8
	I64    WireType = 10
	String WireType = 11
	Struct WireType = 12
	Map    WireType = 13
	Set    WireType = 14
	List   WireType = 15
)

var wireTypeNames = map[WireType]string{
	Stop:   "STOP",
	Void:   "VOID",
	Bool:   "BOOL",
	Byte:   "BYTE",
	Double: "DOUBLE",
	I16:    "I16",
	I32:    "I32",
	I64:    "I64",
	String: "STRING",
	Struct: "STRUCT",
	Map:    "MAP",
	Set:    "SET",
	List:   "LIST",
}

func (t WireType) String() string {
	if name, ok := wireTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("WireType(%d)", byte(t))
}

// Valid reports whether t is a tag a field or element may carry on the wire.
func (t WireType) Valid() bool {
	_, ok := wireTypeNames[t]
	return ok && t != Stop
}

// TypeSpec describes a value's wire type and, for compound types, the shape of
// what it contains.
type TypeSpec struct {
	Type WireType

	ref   func() *StructDesc
	Elem  *TypeSpec // LIST and SET
	Key   *TypeSpec // MAP
	Value *TypeSpec // MAP
}

// StructDesc returns the nested struct descriptor for STRUCT types.
func (s TypeSpec) StructDesc() *StructDesc {
	if s.ref == nil {
		return nil
	}
	return s.ref()
}

func (s TypeSpec) String() string {
	switch s.Type {
	case Struct:
		if d := s.StructDesc(); d != nil {
			return d.Name
		}
	case List, Set:
		if s.Elem != nil {
			return fmt.Sprintf("%s<%s>", s.Type, s.Elem)
		}
	case Map:
		if s.Key != nil && s.Value != nil {
			return fmt.Sprintf("MAP<%s,%s>", s.Key, s.Value)
		}
	}
	return s.Type.String()
}

// Scalar returns the spec of a non-compound type.
func Scalar(t WireType) TypeSpec {
	return TypeSpec{Type: t}
}

// StructOf references an already-built struct descriptor.
func StructOf(d *StructDesc) TypeSpec {
	return TypeSpec{Type: Struct, ref: func() *StructDesc { return d }}
}

// StructRef references a struct descriptor lazily. It is used for recursive
// shapes, where the nested descriptor does not exist yet when the field is
// declared.
func StructRef(ref func() *StructDesc) TypeSpec {
	return TypeSpec{Type: Struct, ref: ref}
}

func ListOf(elem TypeSpec) TypeSpec {
	return TypeSpec{Type: List, Elem: &elem}
}

func SetOf(elem TypeSpec) TypeSpec {
	return TypeSpec{Type: Set, Elem: &elem}
}

func MapOf(key, value TypeSpec) TypeSpec {
	return TypeSpec{Type: Map, Key: &key, Value: &value}
}

// Field declares one field of a struct.
type Field struct {
	ID   uint16
	Name string
	Type TypeSpec
}

// StructDesc is an immutable field table for one struct shape.
type StructDesc struct {
	Name   string
	fields []Field // ascending id
	byID   map[uint16]int
	byName map[string]int
}

// NewStruct builds a descriptor. Duplicate ids or names are programming errors
// in the static tables and panic.
func NewStruct(name string, fields ...Field) *StructDesc {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	d := &StructDesc{
		Name:   name,
		fields: sorted,
		byID:   make(map[uint16]int, len(sorted)),
		byName: make(map[string]int, len(sorted)),
	}
	for i, f := range sorted {
		if !f.Type.Type.Valid() {
			panic(fmt.Sprintf("schema: %s.%s has invalid type %s", name, f.Name, f.Type.Type))
		}
		if _, dup := d.byID[f.ID]; dup {
			panic(fmt.Sprintf("schema: %s declares field id %d twice", name, f.ID))
		}
		if _, dup := d.byName[f.Name]; dup {
			panic(fmt.Sprintf("schema: %s declares field %q twice", name, f.Name))
		}
		d.byID[f.ID] = i
		d.byName[f.Name] = i
	}
	return d
}

// Fields returns the declared fields in ascending id order. The slice is a copy.
func (d *StructDesc) Fields() []Field {
	out := make([]Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Len returns the number of declared fields.
func (d *StructDesc) Len() int {
	return len(d.fields)
}

// At returns the i-th field in ascending id order.
func (d *StructDesc) At(i int) Field {
	return d.fields[i]
}

// FieldByID looks a field up by its wire id.
func (d *StructDesc) FieldByID(id uint16) (Field, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Field{}, false
	}
	return d.fields[i], true
}

// FieldByName looks a field up by name.
func (d *StructDesc) FieldByName(name string) (Field, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Field{}, false
	}
	return d.fields[i], true
}
