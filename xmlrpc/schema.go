package xmlrpc

import (
	"reflect"
	"strings"
	"sync"
)

// MappingAction specifies what happens, if a member of a Go struct is missing
// in an XML-RPC struct, or is nil when serializing.
type MappingAction int

// Mapping actions.
const (
	// MappingInherit uses the action of the enclosing scope (field -> type ->
	// codec configuration). At codec level it means MappingFail.
	MappingInherit MappingAction = iota
	MappingFail
	MappingIgnore
)

// MissingMapper can be implemented by Go struct types to override the mapping
// action for all of their members.
type MissingMapper interface {
	MissingMapping() MappingAction
}

var missingMapperType = reflect.TypeOf((*MissingMapper)(nil)).Elem()

// field describes a member of a Go struct type.
type field struct {
	name     string
	wire     string
	index    []int
	typ      reflect.Type
	action   MappingAction
	excluded bool
}

// schema describes the XML-RPC mapping of a Go struct type. The struct tag
// `xmlrpc:"name,ignore"` renames a member and sets its mapping action
// (ignore or fail). `xmlrpc:"-"` excludes a member from serialization, an
// incoming value for an excluded member is an error.
type schema struct {
	typ    reflect.Type
	action MappingAction
	fields []*field
	byWire map[string]*field
}

var schemaCache sync.Map

func schemaOf(t reflect.Type) *schema {
	if s, ok := schemaCache.Load(t); ok {
		return s.(*schema)
	}
	s, _ := schemaCache.LoadOrStore(t, buildSchema(t))
	return s.(*schema)
}

func buildSchema(t reflect.Type) *schema {
	s := &schema{
		typ:    t,
		byWire: make(map[string]*field),
	}
	switch {
	case t.Implements(missingMapperType):
		s.action = reflect.Zero(t).Interface().(MissingMapper).MissingMapping()
	case reflect.PtrTo(t).Implements(missingMapperType):
		s.action = reflect.New(t).Interface().(MissingMapper).MissingMapping()
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		// unexported
		if sf.PkgPath != "" {
			continue
		}
		f := &field{
			name:  sf.Name,
			wire:  sf.Name,
			index: sf.Index,
			typ:   sf.Type,
		}
		tag := sf.Tag.Get("xmlrpc")
		if tag == "-" {
			f.excluded = true
		} else if tag != "" {
			opts := strings.Split(tag, ",")
			if opts[0] != "" {
				f.wire = opts[0]
			}
			for _, o := range opts[1:] {
				switch o {
				case "ignore":
					f.action = MappingIgnore
				case "fail":
					f.action = MappingFail
				}
			}
		}
		s.fields = append(s.fields, f)
		if _, dup := s.byWire[f.wire]; !dup {
			s.byWire[f.wire] = f
		}
	}
	return s
}

// typeAction resolves the mapping action of the struct type.
func (s *schema) typeAction(def MappingAction) MappingAction {
	if s.action != MappingInherit {
		return s.action
	}
	return def
}

// fieldAction resolves the mapping action of a member. typeAct must be
// already resolved.
func (f *field) fieldAction(typeAct MappingAction) MappingAction {
	if f.action != MappingInherit {
		return f.action
	}
	if typeAct == MappingInherit {
		return MappingFail
	}
	return typeAct
}
