// Package hql is the typed client for the HQL service: descriptor tables for
// every argument, result and data struct, Go structs mirroring them, and a
// Client with one method per remote call.
package hql

import (
	"fmt"

	"hqlrpc/codec"
	"hqlrpc/schema"
)

// KeyFlag marks what a cell key denotes.
type KeyFlag int32

const (
	KeyFlagDeleteRow         KeyFlag = 0
	KeyFlagDeleteCF          KeyFlag = 1
	KeyFlagDeleteCell        KeyFlag = 2
	KeyFlagDeleteCellVersion KeyFlag = 3
	KeyFlagInsert            KeyFlag = 255
)

var (
	KeyDesc = schema.NewStruct("Key",
		schema.Field{ID: 1, Name: "row", Type: schema.Scalar(schema.String)},
		schema.Field{ID: 2, Name: "column_family", Type: schema.Scalar(schema.String)},
		schema.Field{ID: 3, Name: "column_qualifier", Type: schema.Scalar(schema.String)},
		schema.Field{ID: 4, Name: "timestamp", Type: schema.Scalar(schema.I64)},
		schema.Field{ID: 5, Name: "revision", Type: schema.Scalar(schema.I64)},
		schema.Field{ID: 6, Name: "flag", Type: schema.Scalar(schema.I32)},
	)
	CellDesc = schema.NewStruct("Cell",
		schema.Field{ID: 1, Name: "key", Type: schema.StructOf(KeyDesc)},
		schema.Field{ID: 2, Name: "value", Type: schema.Scalar(schema.String)},
	)
	HqlResultDesc = schema.NewStruct("HqlResult",
		schema.Field{ID: 1, Name: "results", Type: schema.ListOf(schema.Scalar(schema.String))},
		schema.Field{ID: 2, Name: "cells", Type: schema.ListOf(schema.StructOf(CellDesc))},
		schema.Field{ID: 3, Name: "scanner", Type: schema.Scalar(schema.I64)},
		schema.Field{ID: 4, Name: "mutator", Type: schema.Scalar(schema.I64)},
	)
	HqlResult2Desc = schema.NewStruct("HqlResult2",
		schema.Field{ID: 1, Name: "results", Type: schema.ListOf(schema.Scalar(schema.String))},
		schema.Field{ID: 2, Name: "cells", Type: schema.ListOf(schema.ListOf(schema.Scalar(schema.String)))},
		schema.Field{ID: 3, Name: "scanner", Type: schema.Scalar(schema.I64)},
		schema.Field{ID: 4, Name: "mutator", Type: schema.Scalar(schema.I64)},
	)
	NamespaceListingDesc = schema.NewStruct("NamespaceListing",
		schema.Field{ID: 1, Name: "name", Type: schema.Scalar(schema.String)},
		schema.Field{ID: 2, Name: "is_namespace", Type: schema.Scalar(schema.Bool)},
	)
	ClientExceptionDesc = schema.NewStruct("ClientException",
		schema.Field{ID: 1, Name: "code", Type: schema.Scalar(schema.I32)},
		schema.Field{ID: 2, Name: "message", Type: schema.Scalar(schema.String)},
	)
)

type Key struct {
	Row             codec.Optional[string]
	ColumnFamily    codec.Optional[string]
	ColumnQualifier codec.Optional[string]
	Timestamp       codec.Optional[int64]
	Revision        codec.Optional[int64]
	Flag            codec.Optional[KeyFlag]
}

func (k *Key) ToStruct() *codec.Struct {
	s := codec.New(KeyDesc)
	codec.SetOptional(s, "row", k.Row)
	codec.SetOptional(s, "column_family", k.ColumnFamily)
	codec.SetOptional(s, "column_qualifier", k.ColumnQualifier)
	codec.SetOptional(s, "timestamp", k.Timestamp)
	codec.SetOptional(s, "revision", k.Revision)
	if f, ok := k.Flag.Get(); ok {
		s.Set("flag", int32(f))
	}
	return s
}

func KeyFromStruct(s *codec.Struct) *Key {
	k := &Key{
		Row:             codec.Field[string](s, "row"),
		ColumnFamily:    codec.Field[string](s, "column_family"),
		ColumnQualifier: codec.Field[string](s, "column_qualifier"),
		Timestamp:       codec.Field[int64](s, "timestamp"),
		Revision:        codec.Field[int64](s, "revision"),
	}
	if f, ok := codec.Field[int32](s, "flag").Get(); ok {
		k.Flag = codec.Some(KeyFlag(f))
	}
	return k
}

type Cell struct {
	Key   codec.Optional[*Key]
	Value codec.Optional[string]
}

func (c *Cell) ToStruct() *codec.Struct {
	s := codec.New(CellDesc)
	if k, ok := c.Key.Get(); ok && k != nil {
		s.Set("key", k.ToStruct())
	}
	codec.SetOptional(s, "value", c.Value)
	return s
}

func CellFromStruct(s *codec.Struct) *Cell {
	c := &Cell{Value: codec.Field[string](s, "value")}
	if k, ok := codec.Field[*codec.Struct](s, "key").Get(); ok {
		c.Key = codec.Some(KeyFromStruct(k))
	}
	return c
}

// HqlResult is the outcome of an HQL statement. Queries fill Results or
// Cells; statements that open a scanner or mutator return its handle.
type HqlResult struct {
	Results codec.Optional[[]string]
	Cells   codec.Optional[[]*Cell]
	Scanner codec.Optional[int64]
	Mutator codec.Optional[int64]
}

func (r *HqlResult) ToStruct() *codec.Struct {
	s := codec.New(HqlResultDesc)
	if rs, ok := r.Results.Get(); ok {
		s.Set("results", stringList(rs))
	}
	if cs, ok := r.Cells.Get(); ok {
		l := make(codec.List, len(cs))
		for i, c := range cs {
			l[i] = c.ToStruct()
		}
		s.Set("cells", l)
	}
	codec.SetOptional(s, "scanner", r.Scanner)
	codec.SetOptional(s, "mutator", r.Mutator)
	return s
}

func HqlResultFromStruct(s *codec.Struct) *HqlResult {
	r := &HqlResult{
		Scanner: codec.Field[int64](s, "scanner"),
		Mutator: codec.Field[int64](s, "mutator"),
	}
	if l, ok := codec.Field[codec.List](s, "results").Get(); ok {
		r.Results = codec.Some(fromStringList(l))
	}
	if l, ok := codec.Field[codec.List](s, "cells").Get(); ok {
		cells := make([]*Cell, 0, len(l))
		for _, v := range l {
			cells = append(cells, CellFromStruct(v.(*codec.Struct)))
		}
		r.Cells = codec.Some(cells)
	}
	return r
}

// HqlResult2 is HqlResult with each cell flattened to its string columns.
type HqlResult2 struct {
	Results codec.Optional[[]string]
	Cells   codec.Optional[[][]string]
	Scanner codec.Optional[int64]
	Mutator codec.Optional[int64]
}

func (r *HqlResult2) ToStruct() *codec.Struct {
	s := codec.New(HqlResult2Desc)
	if rs, ok := r.Results.Get(); ok {
		s.Set("results", stringList(rs))
	}
	if cs, ok := r.Cells.Get(); ok {
		l := make(codec.List, len(cs))
		for i, c := range cs {
			l[i] = stringList(c)
		}
		s.Set("cells", l)
	}
	codec.SetOptional(s, "scanner", r.Scanner)
	codec.SetOptional(s, "mutator", r.Mutator)
	return s
}

func HqlResult2FromStruct(s *codec.Struct) *HqlResult2 {
	r := &HqlResult2{
		Scanner: codec.Field[int64](s, "scanner"),
		Mutator: codec.Field[int64](s, "mutator"),
	}
	if l, ok := codec.Field[codec.List](s, "results").Get(); ok {
		r.Results = codec.Some(fromStringList(l))
	}
	if l, ok := codec.Field[codec.List](s, "cells").Get(); ok {
		cells := make([][]string, 0, len(l))
		for _, v := range l {
			cells = append(cells, fromStringList(v.(codec.List)))
		}
		r.Cells = codec.Some(cells)
	}
	return r
}

type NamespaceListing struct {
	Name        codec.Optional[string]
	IsNamespace codec.Optional[bool]
}

func (n *NamespaceListing) ToStruct() *codec.Struct {
	s := codec.New(NamespaceListingDesc)
	codec.SetOptional(s, "name", n.Name)
	codec.SetOptional(s, "is_namespace", n.IsNamespace)
	return s
}

func NamespaceListingFromStruct(s *codec.Struct) *NamespaceListing {
	return &NamespaceListing{
		Name:        codec.Field[string](s, "name"),
		IsNamespace: codec.Field[bool](s, "is_namespace"),
	}
}

// ClientException is the error the HQL service declares for every method.
type ClientException struct {
	Code    int32
	Message string
}

func (e *ClientException) Error() string {
	return fmt.Sprintf("hql: client exception %d: %s", e.Code, e.Message)
}

func (e *ClientException) ToStruct() *codec.Struct {
	return codec.New(ClientExceptionDesc).Set("code", e.Code).Set("message", e.Message)
}

func ClientExceptionFromStruct(s *codec.Struct) error {
	return &ClientException{
		Code:    codec.Field[int32](s, "code").OrElse(0),
		Message: codec.Field[string](s, "message").OrElse(""),
	}
}

func stringList(xs []string) codec.List {
	l := make(codec.List, len(xs))
	for i, x := range xs {
		l[i] = x
	}
	return l
}

func fromStringList(l codec.List) []string {
	out := make([]string, 0, len(l))
	for _, v := range l {
		out = append(out, v.(string))
	}
	return out
}
