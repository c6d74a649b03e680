package codec

import (
	"fmt"
	"io"

	"hqlrpc/protocol"
	"hqlrpc/schema"
)

// Encode writes the present fields of v in ascending id order, then STOP.
func Encode(w *protocol.Writer, v *Struct) error {
	if v == nil {
		return fmt.Errorf("%w: nil struct", ErrBadValue)
	}
	return encodeStruct(w, v)
}

func encodeStruct(w *protocol.Writer, v *Struct) error {
	d := v.desc
	for i := 0; i < d.Len(); i++ {
		f := d.At(i)
		val, ok := v.fields[f.ID]
		if !ok {
			continue
		}
		if err := w.WriteFieldBegin(f.Type.Type, f.ID); err != nil {
			return err
		}
		if err := encodeValue(w, f.Type, val); err != nil {
			return fieldErr(d, f, err)
		}
	}
	return w.WriteFieldStop()
}

func fieldErr(d *schema.StructDesc, f schema.Field, err error) error {
	return fmt.Errorf("%s.%s: %w", d.Name, f.Name, err)
}

func badValue(spec schema.TypeSpec, v any) error {
	return fmt.Errorf("%w: want %s, got %T", ErrBadValue, spec, v)
}

func encodeValue(w *protocol.Writer, spec schema.TypeSpec, v any) error {
	switch spec.Type {
	case schema.Bool:
		b, ok := v.(bool)
		if !ok {
			return badValue(spec, v)
		}
		return w.WriteBool(b)
	case schema.Byte:
		b, ok := v.(int8)
		if !ok {
			return badValue(spec, v)
		}
		return w.WriteI8(b)
	case schema.I16:
		n, ok := v.(int16)
		if !ok {
			return badValue(spec, v)
		}
		return w.WriteI16(n)
	case schema.I32:
		n, ok := v.(int32)
		if !ok {
			return badValue(spec, v)
		}
		return w.WriteI32(n)
	case schema.I64:
		n, ok := v.(int64)
		if !ok {
			return badValue(spec, v)
		}
		return w.WriteI64(n)
	case schema.Double:
		f, ok := v.(float64)
		if !ok {
			return badValue(spec, v)
		}
		return w.WriteDouble(f)
	case schema.String:
		switch s := v.(type) {
		case string:
			return w.WriteString(s)
		case []byte:
			return w.WriteBinary(s)
		}
		return badValue(spec, v)
	case schema.Struct:
		s, ok := v.(*Struct)
		if !ok || s == nil || s.desc != spec.StructDesc() {
			return badValue(spec, v)
		}
		return encodeStruct(w, s)
	case schema.List, schema.Set:
		items, ok := asSlice(v)
		if !ok || spec.Elem == nil {
			return badValue(spec, v)
		}
		var err error
		if spec.Type == schema.List {
			err = w.WriteListBegin(spec.Elem.Type, len(items))
		} else {
			err = w.WriteSetBegin(spec.Elem.Type, len(items))
		}
		if err != nil {
			return err
		}
		for i, item := range items {
			if err := encodeValue(w, *spec.Elem, item); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case schema.Map:
		m, ok := v.(Map)
		if !ok || spec.Key == nil || spec.Value == nil {
			return badValue(spec, v)
		}
		if err := w.WriteMapBegin(spec.Key.Type, spec.Value.Type, len(m)); err != nil {
			return err
		}
		for _, e := range m {
			if err := encodeValue(w, *spec.Key, e.Key); err != nil {
				return fmt.Errorf("key: %w", err)
			}
			if err := encodeValue(w, *spec.Value, e.Value); err != nil {
				return fmt.Errorf("[%v]: %w", e.Key, err)
			}
		}
		return nil
	default:
		return badValue(spec, v)
	}
}

// Validate reports whether Encode would accept v, without producing output.
// Stream encoders call it first so a bad value never leaves half a message on
// the transport.
func Validate(v *Struct) error {
	return Encode(protocol.NewWriter(io.Discard, protocol.DefaultOptions()), v)
}
