package codec

import (
	"hqlrpc/protocol"
	"hqlrpc/schema"
)

// preallocation cap for collections; the declared count is untrusted input.
const maxPrealloc = 1024

// Decode reads one struct of the given shape. Fields with an unknown id, or
// whose wire type differs from the declared type, are skipped and left absent.
func Decode(r *protocol.Reader, desc *schema.StructDesc) (*Struct, error) {
	return decodeStruct(r, desc, 0)
}

func decodeStruct(r *protocol.Reader, desc *schema.StructDesc, depth int) (*Struct, error) {
	if depth > r.Limits().MaxDepth {
		return nil, protocol.ErrDepthLimit
	}
	s := New(desc)
	for {
		t, id, err := r.ReadFieldBegin()
		if err != nil {
			return nil, err
		}
		if t == schema.Stop {
			return s, nil
		}
		f, ok := desc.FieldByID(id)
		if !ok || f.Type.Type != t {
			if err := r.Skip(t); err != nil {
				return nil, err
			}
			continue
		}
		v, ok, err := decodeValue(r, f.Type, depth+1)
		if err != nil {
			return nil, err
		}
		if ok {
			s.fields[id] = v
		}
	}
}

// decodeValue reads a value whose outer wire type already matches spec. The
// bool is false when an element type inside a collection disagreed with the
// declaration; the collection was consumed and the field counts as absent.
func decodeValue(r *protocol.Reader, spec schema.TypeSpec, depth int) (any, bool, error) {
	switch spec.Type {
	case schema.Bool:
		v, err := r.ReadBool()
		return v, true, err
	case schema.Byte:
		v, err := r.ReadI8()
		return v, true, err
	case schema.I16:
		v, err := r.ReadI16()
		return v, true, err
	case schema.I32:
		v, err := r.ReadI32()
		return v, true, err
	case schema.I64:
		v, err := r.ReadI64()
		return v, true, err
	case schema.Double:
		v, err := r.ReadDouble()
		return v, true, err
	case schema.String:
		v, err := r.ReadString()
		return v, true, err
	case schema.Struct:
		v, err := decodeStruct(r, spec.StructDesc(), depth)
		return v, err == nil, err
	case schema.List, schema.Set:
		if depth > r.Limits().MaxDepth {
			return nil, false, protocol.ErrDepthLimit
		}
		var (
			elem schema.WireType
			n    int
			err  error
		)
		if spec.Type == schema.List {
			elem, n, err = r.ReadListBegin()
		} else {
			elem, n, err = r.ReadSetBegin()
		}
		if err != nil {
			return nil, false, err
		}
		items, ok, err := decodeElems(r, *spec.Elem, elem, n, depth)
		if err != nil || !ok {
			return nil, false, err
		}
		if spec.Type == schema.Set {
			return Set(items), true, nil
		}
		return List(items), true, nil
	case schema.Map:
		if depth > r.Limits().MaxDepth {
			return nil, false, protocol.ErrDepthLimit
		}
		kt, vt, n, err := r.ReadMapBegin()
		if err != nil {
			return nil, false, err
		}
		return decodeMap(r, spec, kt, vt, n, depth)
	default:
		if err := r.Skip(spec.Type); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
}

func decodeElems(r *protocol.Reader, spec schema.TypeSpec, elem schema.WireType, n, depth int) ([]any, bool, error) {
	if n > 0 && elem != spec.Type {
		return nil, false, skipN(r, n, elem)
	}
	items := make([]any, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		v, ok, err := decodeValue(r, spec, depth+1)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, skipN(r, n-i-1, elem)
		}
		items = append(items, v)
	}
	return items, true, nil
}

func decodeMap(r *protocol.Reader, spec schema.TypeSpec, kt, vt schema.WireType, n, depth int) (any, bool, error) {
	skipRest := func(from int) error {
		for i := from; i < n; i++ {
			if err := r.Skip(kt); err != nil {
				return err
			}
			if err := r.Skip(vt); err != nil {
				return err
			}
		}
		return nil
	}
	if n > 0 && (kt != spec.Key.Type || vt != spec.Value.Type) {
		return nil, false, skipRest(0)
	}
	m := make(Map, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		k, ok, err := decodeValue(r, *spec.Key, depth+1)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			if err := r.Skip(vt); err != nil {
				return nil, false, err
			}
			return nil, false, skipRest(i + 1)
		}
		v, ok, err := decodeValue(r, *spec.Value, depth+1)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, skipRest(i + 1)
		}
		m = append(m, MapEntry{Key: k, Value: v})
	}
	return m, true, nil
}

func skipN(r *protocol.Reader, n int, t schema.WireType) error {
	for i := 0; i < n; i++ {
		if err := r.Skip(t); err != nil {
			return err
		}
	}
	return nil
}
