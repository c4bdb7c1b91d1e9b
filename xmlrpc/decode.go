package xmlrpc

import (
	"encoding/base64"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// decoder converts XML-RPC values to Go values.
type decoder struct {
	cfg   *Config
	trail *trail
}

func newDecoder(cfg *Config, root string) *decoder {
	return &decoder{cfg: cfg, trail: newTrail(root)}
}

// parseInto parses v into the variable ptr points to.
func (d *decoder) parseInto(v *Value, ptr interface{}) error {
	rv := reflect.ValueOf(ptr).Elem()
	val, _, err := d.parse(v, rv.Type())
	if err != nil {
		return err
	}
	rv.Set(val)
	return nil
}

// parseAt parses v with an additional trail frame.
func (d *decoder) parseAt(v *Value, t reflect.Type, format string, args ...interface{}) (reflect.Value, Kind, error) {
	d.trail.push(format, args...)
	defer d.trail.pop()
	return d.parse(v, t)
}

// parse converts v to a Go value of type t. If t is nil or the empty
// interface, the Go type is inferred from v.
func (d *decoder) parse(v *Value, t reflect.Type) (reflect.Value, Kind, error) {
	if v == nil {
		return reflect.Value{}, KindInvalid, d.trail.errorf(ErrInvalidDocument, "Missing value element")
	}
	untyped := t == nil || isAny(t)

	if v.Type == tagNil {
		if untyped {
			return reflect.Zero(anyType), KindVoid, nil
		}
		switch t.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Interface:
			return reflect.Zero(t), KindVoid, nil
		}
		return reflect.Value{}, KindInvalid, d.mismatch(v, t)
	}

	if !untyped && t.Kind() == reflect.Ptr {
		val, k, err := d.parse(v, t.Elem())
		if err != nil {
			return reflect.Value{}, k, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(val)
		return p, k, nil
	}

	var tk Kind
	if !untyped {
		tk = KindOf(t)
		if tk == KindInvalid {
			return reflect.Value{}, KindInvalid, d.trail.errorf(ErrUnsupportedType,
				"Type %s can not be mapped to an XML-RPC type", t)
		}
	}
	// checks the target kind and creates the target value
	target := func(k Kind) (reflect.Value, error) {
		if untyped {
			return reflect.Value{}, nil
		}
		if tk != k {
			return reflect.Value{}, d.mismatch(v, t)
		}
		return reflect.New(t).Elem(), nil
	}

	switch v.Type {
	case "", tagString:
		out, err := target(KindString)
		if err != nil {
			return out, KindInvalid, err
		}
		if untyped {
			return reflect.ValueOf(v.Text), KindString, nil
		}
		out.SetString(v.Text)
		return out, KindString, nil

	case tagI4, tagInt, tagI8:
		k, bits := KindInt32, 32
		if v.Type == tagI8 {
			k, bits = KindInt64, 64
		}
		out, err := target(k)
		if err != nil {
			return out, KindInvalid, err
		}
		txt := strings.TrimSpace(v.Text)
		if txt == "" {
			return out, KindInvalid, d.trail.errorf(ErrInvalidValue, "Empty <%s> value", v.Type)
		}
		n, err := strconv.ParseInt(txt, 10, bits)
		if err != nil {
			return out, KindInvalid, d.trail.errorf(ErrInvalidValue, "Invalid <%s> value: %s", v.Type, v.Text)
		}
		if untyped {
			if k == KindInt32 {
				return reflect.ValueOf(int(n)), k, nil
			}
			return reflect.ValueOf(n), k, nil
		}
		out.SetInt(n)
		return out, k, nil

	case tagBoolean:
		out, err := target(KindBoolean)
		if err != nil {
			return out, KindInvalid, err
		}
		var b bool
		switch v.Text {
		case "1":
			b = true
		case "0":
		default:
			return out, KindInvalid, d.trail.errorf(ErrInvalidValue, "Invalid <boolean> value: %s", v.Text)
		}
		if untyped {
			return reflect.ValueOf(b), KindBoolean, nil
		}
		out.SetBool(b)
		return out, KindBoolean, nil

	case tagDouble:
		out, err := target(KindDouble)
		if err != nil {
			return out, KindInvalid, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text), 64)
		if err != nil {
			return out, KindInvalid, d.trail.errorf(ErrInvalidValue, "Invalid <double> value: %s", v.Text)
		}
		if untyped {
			return reflect.ValueOf(f), KindDouble, nil
		}
		out.SetFloat(f)
		return out, KindDouble, nil

	case tagDateTime:
		out, err := target(KindDateTime)
		if err != nil {
			return out, KindInvalid, err
		}
		tm, err := d.parseDateTime(v.Text)
		if err != nil {
			return out, KindInvalid, err
		}
		return reflect.ValueOf(tm), KindDateTime, nil

	case tagBase64:
		out, err := target(KindBase64)
		if err != nil {
			return out, KindInvalid, err
		}
		txt := strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, v.Text)
		b, err := base64.StdEncoding.DecodeString(txt)
		if err != nil {
			return out, KindInvalid, d.trail.errorf(ErrInvalidValue, "Invalid <base64> value: %v", err)
		}
		return reflect.ValueOf(b), KindBase64, nil

	case tagStruct:
		s := v.Struct
		if s == nil {
			s = &Struct{}
		}
		switch {
		case untyped:
			m, err := d.parseMap(s)
			if err != nil {
				return reflect.Value{}, KindInvalid, err
			}
			return reflect.ValueOf(m), KindMap, nil
		case tk == KindMap:
			m, err := d.parseMap(s)
			if err != nil {
				return reflect.Value{}, KindInvalid, err
			}
			return reflect.ValueOf(*m), KindMap, nil
		case tk == KindStruct:
			out, err := d.parseStruct(s, t)
			return out, KindStruct, err
		}
		return reflect.Value{}, KindInvalid, d.mismatch(v, t)

	case tagArray:
		a := v.Array
		if a == nil {
			a = &Array{}
		}
		switch {
		case untyped:
			return d.parseUntypedArray(a)
		case tk == KindArray:
			out, err := d.parseArray(a, t)
			return out, KindArray, err
		case tk == KindMultiDimArray:
			out, err := d.parseMultiDimArray(a, t)
			return out, KindMultiDimArray, err
		}
		return reflect.Value{}, KindInvalid, d.mismatch(v, t)
	}
	return reflect.Value{}, KindInvalid, d.trail.errorf(ErrInvalidDocument, "Invalid value element: <%s>", v.Type)
}

func (d *decoder) mismatch(v *Value, t reflect.Type) error {
	if v.Type == "" {
		return d.trail.errorf(ErrTypeMismatch, "Implicit string value found where %s expected", t)
	}
	return d.trail.errorf(ErrTypeMismatch, "Value <%s> found where %s expected", v.Type, t)
}

func (d *decoder) parseDateTime(s string) (time.Time, error) {
	if s == "" {
		if d.cfg.NonStandard&MapEmptyDateTimeToZero != 0 {
			return time.Time{}, nil
		}
		return time.Time{}, d.trail.errorf(ErrInvalidValue, "Empty <dateTime.iso8601> value")
	}
	if !d.cfg.StrictDateTime || strictDateTimePattern.MatchString(s) {
		if t, ok := ParseDateTime(s); ok {
			return t, nil
		}
	}
	if d.cfg.NonStandard&MapZerosDateTimeToZero != 0 && zeroDateTimes[s] {
		return time.Time{}, nil
	}
	return time.Time{}, d.trail.errorf(ErrInvalidValue, "Invalid <dateTime.iso8601> value: %s", s)
}

// checkWireMember validates the name and value elements of a member.
func (d *decoder) checkWireMember(m *Member) error {
	if m.Name == "" {
		return d.trail.errorf(ErrInvalidDocument, "Struct contains member with missing or empty name")
	}
	if m.Value == nil {
		return d.trail.errorf(ErrInvalidDocument, "Member %s of struct has no value element", m.Name)
	}
	if d.cfg.NonStandard&IgnoreDuplicateMembers == 0 {
		if m.names > 1 {
			return d.trail.errorf(ErrInvalidDocument, "Member %s of struct has more than one name element", m.Name)
		}
		if m.values > 1 {
			return d.trail.errorf(ErrInvalidDocument, "Member %s of struct has more than one value element", m.Name)
		}
	}
	return nil
}

// duplicate reports an already seen member name. The error is nil, if
// duplicates are ignored.
func (d *decoder) duplicate(name string) error {
	if d.cfg.NonStandard&IgnoreDuplicateMembers != 0 {
		return nil
	}
	return d.trail.errorf(ErrInvalidDocument, "Struct contains duplicate member %s", name)
}

func (d *decoder) parseMap(s *Struct) (*StructMap, error) {
	d.trail.push("struct mapped to type StructMap")
	defer d.trail.pop()
	m := NewStructMap()
	seen := make(map[string]bool)
	for _, mem := range s.Members {
		if err := d.checkWireMember(mem); err != nil {
			return nil, err
		}
		if seen[mem.Name] {
			if err := d.duplicate(mem.Name); err != nil {
				return nil, err
			}
			continue
		}
		seen[mem.Name] = true
		val, _, err := d.parseAt(mem.Value, nil, "member %s", mem.Name)
		if err != nil {
			return nil, err
		}
		// a nil member is treated as absent
		if val.Interface() == nil {
			continue
		}
		m.add(mem.Name, val.Interface())
	}
	return m, nil
}

func (d *decoder) parseStruct(s *Struct, t reflect.Type) (reflect.Value, error) {
	d.trail.push("struct mapped to type %s", t)
	defer d.trail.pop()
	sch := schemaOf(t)
	// a type level mapping action does not propagate to nested structs
	typeAct := sch.typeAction(d.cfg.MissingMapping)
	out := reflect.New(t).Elem()
	seen := make(map[string]bool)
	filled := make(map[*field]bool)
	for _, mem := range s.Members {
		if err := d.checkWireMember(mem); err != nil {
			return out, err
		}
		if seen[mem.Name] {
			if err := d.duplicate(mem.Name); err != nil {
				return out, err
			}
			continue
		}
		seen[mem.Name] = true
		f := sch.byWire[mem.Name]
		if f == nil {
			continue
		}
		if f.excluded {
			return out, d.trail.errorf(ErrNonSerializableMember,
				"Member %s of struct %s is not serializable", mem.Name, t)
		}
		val, _, err := d.parseAt(mem.Value, f.typ, "member %s mapped to type %s", mem.Name, f.typ)
		if err != nil {
			return out, err
		}
		out.FieldByIndex(f.index).Set(val)
		filled[f] = true
	}
	var missing []string
	for _, f := range sch.fields {
		if f.excluded || filled[f] {
			continue
		}
		if f.fieldAction(typeAct) == MappingFail {
			missing = append(missing, f.wire)
		}
	}
	if len(missing) > 0 {
		e := d.trail.errorf(ErrMissingMember, "Struct %s has %s", t, missingMembersMsg(missing))
		e.Members = missing
		return out, e
	}
	return out, nil
}

// parseUntypedArray infers a typed slice, if all elements are literals of the
// same type. Otherwise a []interface{} is returned.
func (d *decoder) parseUntypedArray(a *Array) (reflect.Value, Kind, error) {
	d.trail.push("array")
	defer d.trail.pop()
	elems := make([]reflect.Value, len(a.Data))
	var elemType reflect.Type
	same := true
	for i, ev := range a.Data {
		val, k, err := d.parseAt(ev, nil, "element %d", i)
		if err != nil {
			return reflect.Value{}, KindInvalid, err
		}
		elems[i] = val
		switch {
		case !k.scalar():
			same = false
		case i == 0:
			elemType = val.Type()
		case val.Type() != elemType:
			same = false
		}
	}
	if len(elems) == 0 || !same {
		out := make([]interface{}, len(elems))
		for i, e := range elems {
			out[i] = e.Interface()
		}
		return reflect.ValueOf(out), KindArray, nil
	}
	out := reflect.MakeSlice(reflect.SliceOf(elemType), len(elems), len(elems))
	for i, e := range elems {
		out.Index(i).Set(e)
	}
	return out, KindArray, nil
}

// parseArray parses into a slice or a one-dimensional Go array.
func (d *decoder) parseArray(a *Array, t reflect.Type) (reflect.Value, error) {
	d.trail.push("array mapped to type %s", t)
	defer d.trail.pop()
	n := len(a.Data)
	var out reflect.Value
	if t.Kind() == reflect.Slice {
		out = reflect.MakeSlice(t, n, n)
	} else {
		if n != t.Len() {
			return reflect.Value{}, d.trail.errorf(ErrTypeMismatch, "Array of length %d found where length %d expected", n, t.Len())
		}
		out = reflect.New(t).Elem()
	}
	for i, ev := range a.Data {
		val, _, err := d.parseAt(ev, t.Elem(), "element %d", i)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(val)
	}
	return out, nil
}

// parseMultiDimArray parses nested arrays into a nested Go array. All arrays
// of a rank must have the same length.
func (d *decoder) parseMultiDimArray(a *Array, t reflect.Type) (reflect.Value, error) {
	d.trail.push("array mapped to type %s", t)
	defer d.trail.pop()
	elem, dims := arrayShape(t)
	lengths := make([]int, len(dims))
	for i := range lengths {
		lengths[i] = -1
	}
	out := reflect.New(t).Elem()
	err := d.fillArray(a, out, elem, dims, lengths, 0)
	return out, err
}

func (d *decoder) fillArray(a *Array, out reflect.Value, elem reflect.Type, dims, lengths []int, rank int) error {
	n := len(a.Data)
	if lengths[rank] >= 0 && lengths[rank] != n {
		return d.trail.errorf(ErrInvalidValue, "Multi-dimensional array must not be jagged")
	}
	lengths[rank] = n
	if n != dims[rank] {
		return d.trail.errorf(ErrTypeMismatch, "Array of length %d found where length %d expected", n, dims[rank])
	}
	for i, ev := range a.Data {
		err := func() error {
			d.trail.push("element %d", i)
			defer d.trail.pop()
			if rank == len(dims)-1 {
				val, _, err := d.parse(ev, elem)
				if err != nil {
					return err
				}
				out.Index(i).Set(val)
				return nil
			}
			if ev == nil || ev.Type != tagArray {
				return d.trail.errorf(ErrTypeMismatch, "Array expected for dimension %d", rank+1)
			}
			inner := ev.Array
			if inner == nil {
				inner = &Array{}
			}
			return d.fillArray(inner, out.Index(i), elem, dims, lengths, rank+1)
		}()
		if err != nil {
			return err
		}
	}
	return nil
}
