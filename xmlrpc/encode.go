package xmlrpc

import (
	"encoding/base64"
	"math"
	"reflect"
	"strconv"
	"time"
)

// encoder converts Go values to XML-RPC values.
type encoder struct {
	cfg   *Config
	trail *trail
	// pointers, slices and maps currently on the path
	visiting map[visit]bool
}

// a slice is identified by its length as well, a shorter slice of the same
// backing array is a different value
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

func visitOf(rv reflect.Value) visit {
	k := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		k.len = rv.Len()
	}
	return k
}

func newEncoder(cfg *Config, root string) *encoder {
	return &encoder{
		cfg:      cfg,
		trail:    newTrail(root),
		visiting: make(map[visit]bool),
	}
}

// isNull reports whether a Go value stands for a missing value.
func isNull(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func (e *encoder) marshal(rv reflect.Value) (*Value, error) {
	if !rv.IsValid() {
		return nil, e.trail.errorf(ErrNullValue, "Null value can not be serialized")
	}
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, e.trail.errorf(ErrNullValue, "Null value can not be serialized")
		}
		if rv.Kind() == reflect.Ptr {
			if err := e.enter(rv); err != nil {
				return nil, err
			}
			defer e.leave(rv)
		}
		rv = rv.Elem()
	}

	t := rv.Type()
	kind := KindOf(t)
	switch kind {
	case KindInt32:
		i := rv.Int()
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, e.trail.errorf(ErrInvalidValue, "Value %d is out of range for an XML-RPC integer (use int64)", i)
		}
		tag := tagI4
		if e.cfg.UseIntTag {
			tag = tagInt
		}
		return &Value{Type: tag, Text: strconv.FormatInt(i, 10)}, nil

	case KindInt64:
		return &Value{Type: tagI8, Text: strconv.FormatInt(rv.Int(), 10)}, nil

	case KindBoolean:
		if rv.Bool() {
			return &Value{Type: tagBoolean, Text: "1"}, nil
		}
		return &Value{Type: tagBoolean, Text: "0"}, nil

	case KindString:
		return e.marshalString(rv.String()), nil

	case KindDouble:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, e.trail.errorf(ErrInvalidValue, "Value %v can not be represented as XML-RPC double", f)
		}
		return &Value{Type: tagDouble, Text: strconv.FormatFloat(f, 'f', -1, 64)}, nil

	case KindDateTime:
		return &Value{Type: tagDateTime, Text: FormatDateTime(rv.Interface().(time.Time))}, nil

	case KindBase64:
		return &Value{Type: tagBase64, Text: base64.StdEncoding.EncodeToString(rv.Bytes())}, nil

	case KindMap:
		m := rv.Interface().(StructMap)
		return e.marshalMap(&m)

	case KindStruct:
		return e.marshalStruct(rv)

	case KindArray, KindMultiDimArray:
		return e.marshalArray(rv)

	case KindVoid:
		return e.marshalString(""), nil
	}
	return nil, e.trail.errorf(ErrUnsupportedType, "Type %s can not be mapped to an XML-RPC type", t)
}

func (e *encoder) marshalString(s string) *Value {
	if e.cfg.UseStringTag {
		return &Value{Type: tagString, Text: s}
	}
	return &Value{Text: s}
}

// enter registers a reference on the current path.
func (e *encoder) enter(rv reflect.Value) error {
	k := visitOf(rv)
	if e.visiting[k] {
		return e.trail.errorf(ErrRecursiveValue, "Recursive value of type %s can not be serialized", rv.Type())
	}
	e.visiting[k] = true
	return nil
}

func (e *encoder) leave(rv reflect.Value) {
	delete(e.visiting, visitOf(rv))
}

func (e *encoder) marshalMap(m *StructMap) (*Value, error) {
	s := &Struct{}
	for i, key := range m.keys {
		v, err := func() (*Value, error) {
			e.trail.push("member %s", key)
			defer e.trail.pop()
			return e.marshal(reflect.ValueOf(m.values[i]))
		}()
		if err != nil {
			return nil, err
		}
		s.Members = append(s.Members, &Member{Name: key, Value: v})
	}
	return &Value{Type: tagStruct, Struct: s}, nil
}

func (e *encoder) marshalStruct(rv reflect.Value) (*Value, error) {
	t := rv.Type()
	sch := schemaOf(t)
	typeAct := sch.typeAction(e.cfg.MissingMapping)
	s := &Struct{}
	for _, f := range sch.fields {
		if f.excluded {
			continue
		}
		fv := rv.FieldByIndex(f.index)
		v, err := func() (*Value, error) {
			e.trail.push("member %s of type %s", f.name, t)
			defer e.trail.pop()
			if isNull(fv) {
				if f.fieldAction(typeAct) == MappingIgnore {
					return nil, nil
				}
				return nil, e.trail.errorf(ErrNullValue, "Member %s of struct %s is null", f.name, t)
			}
			return e.marshal(fv)
		}()
		if err != nil {
			return nil, err
		}
		// ignored null member
		if v == nil {
			continue
		}
		s.Members = append(s.Members, &Member{Name: f.wire, Value: v})
	}
	return &Value{Type: tagStruct, Struct: s}, nil
}

// marshalArray handles slices and (nested) Go arrays. Nested arrays are
// written rank by rank.
func (e *encoder) marshalArray(rv reflect.Value) (*Value, error) {
	if rv.Kind() == reflect.Slice && rv.Len() > 0 {
		if err := e.enter(rv); err != nil {
			return nil, err
		}
		defer e.leave(rv)
	}
	a := &Array{Data: make([]*Value, rv.Len())}
	for i := 0; i < rv.Len(); i++ {
		ev := rv.Index(i)
		if isNull(ev) {
			return nil, e.trail.errorf(ErrNullValue, "Element %d of array can not be null", i)
		}
		v, err := func() (*Value, error) {
			e.trail.push("element %d", i)
			defer e.trail.pop()
			return e.marshal(ev)
		}()
		if err != nil {
			return nil, err
		}
		a.Data[i] = v
	}
	return &Value{Type: tagArray, Array: a}, nil
}
