package xmlrpc

import (
	"fmt"
	"reflect"
)

// StructMap is an XML-RPC struct without a declared shape. The members are
// kept in insertion order. Keys must not be empty and values must be mappable
// to an XML-RPC data type. The zero value is an empty map ready to use. A
// StructMap is not safe for concurrent modification.
type StructMap struct {
	keys   []string
	values []interface{}
	index  map[string]int
}

// NewStructMap creates an empty StructMap.
func NewStructMap() *StructMap {
	return &StructMap{index: make(map[string]int)}
}

func checkMember(key string, value interface{}) error {
	if key == "" {
		return &Error{Err: ErrInvalidKey, Msg: "StructMap key must not be empty"}
	}
	if k := kindOfValue(value); k == KindInvalid || k == KindVoid {
		return &Error{
			Err: ErrInvalidValue,
			Msg: fmt.Sprintf("Type %T of StructMap member %s can not be mapped to an XML-RPC type", value, key),
		}
	}
	return nil
}

// Add appends a new member. Adding an existing key is an error.
func (m *StructMap) Add(key string, value interface{}) error {
	if err := checkMember(key, value); err != nil {
		return err
	}
	if _, ok := m.index[key]; ok {
		return &Error{Err: ErrDuplicateKey, Msg: fmt.Sprintf("StructMap already contains key %s", key)}
	}
	m.add(key, value)
	return nil
}

// add appends without any checks.
func (m *StructMap) add(key string, value interface{}) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.values = append(m.values, value)
}

// Set assigns a value to a key. An existing key keeps its position.
func (m *StructMap) Set(key string, value interface{}) error {
	if err := checkMember(key, value); err != nil {
		return err
	}
	if i, ok := m.index[key]; ok {
		m.values[i] = value
		return nil
	}
	m.add(key, value)
	return nil
}

// Get returns the value of a key.
func (m *StructMap) Get(key string) (interface{}, bool) {
	i, ok := m.index[key]
	if !ok {
		return nil, false
	}
	return m.values[i], true
}

// Remove deletes a key. It returns false, if the key does not exist.
func (m *StructMap) Remove(key string) bool {
	i, ok := m.index[key]
	if !ok {
		return false
	}
	delete(m.index, key)
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.values = append(m.values[:i], m.values[i+1:]...)
	for j := i; j < len(m.keys); j++ {
		m.index[m.keys[j]] = j
	}
	return true
}

// Clear removes all members.
func (m *StructMap) Clear() {
	m.keys = nil
	m.values = nil
	m.index = nil
}

// Len returns the number of members.
func (m *StructMap) Len() int {
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *StructMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Values returns a copy of the values in insertion order.
func (m *StructMap) Values() []interface{} {
	return append([]interface{}(nil), m.values...)
}

// Range calls f for each member in insertion order. Iteration stops, if f
// returns false.
func (m *StructMap) Range(f func(key string, value interface{}) bool) {
	for i, k := range m.keys {
		if !f(k, m.values[i]) {
			return
		}
	}
}

// Equal reports whether both maps contain the same members, regardless of
// their order.
func (m *StructMap) Equal(o *StructMap) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Len() != o.Len() {
		return false
	}
	for i, k := range m.keys {
		v, ok := o.Get(k)
		if !ok || !reflect.DeepEqual(m.values[i], v) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (m *StructMap) String() string {
	s := "{"
	for i, k := range m.keys {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s:%v", k, m.values[i])
	}
	return s + "}"
}
