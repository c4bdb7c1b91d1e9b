package xmlrpc

import (
	"reflect"
	"sync"
	"time"
)

var (
	timeType      = reflect.TypeOf(time.Time{})
	bytesType     = reflect.TypeOf([]byte(nil))
	structMapType = reflect.TypeOf(StructMap{})
	anyType       = reflect.TypeOf((*interface{})(nil)).Elem()

	// classified types
	kindCache sync.Map
)

type void struct{}

// VoidType is used as result type of methods that return no value.
var VoidType = reflect.TypeOf(void{})

// KindOf returns the XML-RPC data type of the specified Go type. Pointers are
// followed. KindInvalid is returned for types that can not be mapped, which
// includes the empty interface: It only stands in for the dynamic type of a
// value.
func KindOf(t reflect.Type) Kind {
	if t == nil {
		return KindInvalid
	}
	if k, ok := kindCache.Load(t); ok {
		return k.(Kind)
	}
	k := classify(t, make(map[reflect.Type]bool))
	kindCache.Store(t, k)
	return k
}

// isAny reports whether t is the empty interface.
func isAny(t reflect.Type) bool {
	return t.Kind() == reflect.Interface && t.NumMethod() == 0
}

// arrayShape returns the element type and the dimensions of a (nested) Go
// array type.
func arrayShape(t reflect.Type) (reflect.Type, []int) {
	var dims []int
	for t.Kind() == reflect.Array {
		dims = append(dims, t.Len())
		t = t.Elem()
	}
	return t, dims
}

func classify(t reflect.Type, visiting map[reflect.Type]bool) Kind {
	switch t {
	case VoidType:
		return KindVoid
	case timeType:
		return KindDateTime
	case bytesType:
		return KindBase64
	case structMapType:
		return KindMap
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int32:
		return KindInt32
	case reflect.Int64:
		return KindInt64
	case reflect.Bool:
		return KindBoolean
	case reflect.String:
		return KindString
	case reflect.Float64:
		return KindDouble
	case reflect.Ptr:
		return classify(t.Elem(), visiting)
	case reflect.Slice:
		if visiting[t] {
			return KindArray
		}
		visiting[t] = true
		defer delete(visiting, t)
		if !validElem(t.Elem(), visiting) {
			return KindInvalid
		}
		return KindArray
	case reflect.Array:
		elem, dims := arrayShape(t)
		if !validElem(elem, visiting) {
			return KindInvalid
		}
		if len(dims) > 1 {
			return KindMultiDimArray
		}
		return KindArray
	case reflect.Struct:
		// a type already on the path is assumed to be valid
		if visiting[t] {
			return KindStruct
		}
		visiting[t] = true
		defer delete(visiting, t)
		for _, f := range schemaOf(t).fields {
			if f.excluded {
				continue
			}
			if !validElem(f.typ, visiting) {
				return KindInvalid
			}
		}
		return KindStruct
	}
	return KindInvalid
}

func validElem(t reflect.Type, visiting map[reflect.Type]bool) bool {
	return isAny(t) || classify(t, visiting) != KindInvalid
}

// kindOfValue returns the XML-RPC data type of the dynamic type of v.
func kindOfValue(v interface{}) Kind {
	if v == nil {
		return KindInvalid
	}
	return KindOf(reflect.TypeOf(v))
}
