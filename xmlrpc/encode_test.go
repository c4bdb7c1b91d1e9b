package xmlrpc

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type account struct {
	ID     int    `xmlrpc:"id"`
	Name   string `xmlrpc:"name"`
	Email  string `xmlrpc:"email,ignore"`
	Secret string `xmlrpc:"-"`
}

type optionalAccount struct {
	ID   int    `xmlrpc:"id,fail"`
	Name string `xmlrpc:"name"`
}

func (optionalAccount) MissingMapping() MappingAction { return MappingIgnore }

type nested struct {
	Inner optionalAccount `xmlrpc:"inner"`
	Ref   *account        `xmlrpc:"ref"`
}

func TestMarshal(t *testing.T) {
	c := &Codec{}
	cases := []struct {
		in   interface{}
		want *Value
	}{
		{1, &Value{Type: "i4", Text: "1"}},
		{int32(-7), &Value{Type: "i4", Text: "-7"}},
		{int64(1) << 40, &Value{Type: "i8", Text: "1099511627776"}},
		{true, &Value{Type: "boolean", Text: "1"}},
		{false, &Value{Type: "boolean", Text: "0"}},
		{"s", &Value{Text: "s"}},
		{1.25, &Value{Type: "double", Text: "1.25"}},
		{1e21, &Value{Type: "double", Text: "1000000000000000000000"}},
		{[]byte("Hello World!"), &Value{Type: "base64", Text: "SGVsbG8gV29ybGQh"}},
		{[]int(nil), &Value{Type: "array", Array: &Array{Data: []*Value{}}}},
		{
			account{ID: 1, Name: "n", Email: "e", Secret: "x"},
			NewStruct(
				&Member{Name: "id", Value: &Value{Type: "i4", Text: "1"}},
				&Member{Name: "name", Value: &Value{Text: "n"}},
				&Member{Name: "email", Value: &Value{Text: "e"}},
			),
		},
	}
	for _, tc := range cases {
		v, err := c.Marshal(tc.in)
		require.NoError(t, err, "%T", tc.in)
		assert.Equal(t, tc.want, v, "%T", tc.in)
	}
}

func TestMarshalErrors(t *testing.T) {
	c := &Codec{}
	big := int64(math.MaxInt32) + 1
	cases := []struct {
		in   interface{}
		want error
	}{
		{nil, ErrNullValue},
		{int(big), ErrInvalidValue},
		{math.NaN(), ErrInvalidValue},
		{math.Inf(1), ErrInvalidValue},
		{uint(1), ErrUnsupportedType},
		{float32(1), ErrUnsupportedType},
		{[]interface{}{1, nil}, ErrNullValue},
		{[]interface{}{1, uint(1)}, ErrUnsupportedType},
		{withAny{}, ErrNullValue},
		{withAny{A: int8(1)}, ErrUnsupportedType},
		{nested{}, ErrNullValue},
	}
	for _, tc := range cases {
		_, err := c.Marshal(tc.in)
		assert.True(t, errors.Is(err, tc.want), "%T: %v", tc.in, err)
	}
}

func TestMarshalNullMembers(t *testing.T) {
	v, err := (&Codec{}).Marshal(nested{Ref: &account{ID: 2}})
	require.NoError(t, err)
	require.Len(t, v.Struct.Members, 2)
	assert.Equal(t, "ref", v.Struct.Members[1].Name)

	_, err = (&Codec{}).Marshal(struct {
		A *int
	}{})
	assert.True(t, errors.Is(err, ErrNullValue))
	assert.Contains(t, err.Error(), "Member A of struct")
	var xerr *Error
	require.True(t, errors.As(err, &xerr))
	assert.Contains(t, xerr.Trail, "member A of type")

	// configured default
	v, err = (&Codec{Config: Config{MissingMapping: MappingIgnore}}).Marshal(struct {
		A *int
		B int
	}{B: 1})
	require.NoError(t, err)
	require.Len(t, v.Struct.Members, 1)
	assert.Equal(t, "B", v.Struct.Members[0].Name)
}

func TestRecursiveValues(t *testing.T) {
	c := &Codec{}

	n := &node{Name: "a"}
	n.Left = n
	_, err := c.Marshal(n)
	assert.True(t, errors.Is(err, ErrRecursiveValue))

	// shared, but not recursive
	leaf := &node{Name: "leaf"}
	v, err := c.Marshal(&node{Name: "root", Left: leaf, Right: leaf})
	require.NoError(t, err)
	assert.Len(t, v.Struct.Members, 3)

	m := NewStructMap()
	require.NoError(t, m.Add("self", m))
	_, err = c.Marshal(m)
	assert.True(t, errors.Is(err, ErrRecursiveValue))

	s := []interface{}{nil}
	s[0] = s
	_, err = c.Marshal(s)
	assert.True(t, errors.Is(err, ErrRecursiveValue))

	// a shorter slice of the same backing array is no recursion
	x := []interface{}{0, nil}
	x[1] = x[:1]
	v, err = c.Marshal(x)
	require.NoError(t, err)
	require.Len(t, v.Array.Data, 2)
	require.NotNil(t, v.Array.Data[1].Array)
	assert.Len(t, v.Array.Data[1].Array.Data, 1)

	// recursive type, finite value
	var got node
	require.NoError(t, c.UnmarshalInto(NewStruct(
		&Member{Name: "Name", Value: &Value{Text: "x"}},
		&Member{Name: "Left", Value: NewStruct(&Member{Name: "Name", Value: &Value{Text: "y"}})},
	), &got))
	assert.Equal(t, node{Name: "x", Left: &node{Name: "y"}}, got)
}

func TestMissingMembers(t *testing.T) {
	empty := response("<struct></struct>")
	typ := reflect.TypeOf(account{})

	_, err := decodeResponse(Config{}, empty, typ)
	require.True(t, errors.Is(err, ErrMissingMember))
	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, []string{"id", "name"}, e.Members)
	assert.Contains(t, err.Error(), "missing non-optional member(s): id name")

	res, err := decodeResponse(Config{MissingMapping: MappingIgnore}, empty, typ)
	require.NoError(t, err)
	assert.Equal(t, account{}, res)

	res, err = decodeResponse(Config{}, response(
		`<struct><member><name>name</name><value>n</value></member>`+
			`<member><name>id</name><value><i4>3</i4></value></member>`+
			`<member><name>unknown</name><value>u</value></member></struct>`), typ)
	require.NoError(t, err)
	assert.Equal(t, account{ID: 3, Name: "n"}, res)

	// type level ignore, field level fail
	_, err = decodeResponse(Config{}, empty, reflect.TypeOf(optionalAccount{}))
	require.True(t, errors.As(err, &e))
	assert.Equal(t, []string{"id"}, e.Members)

	// the type level action is not inherited by nested structs
	_, err = decodeResponse(Config{}, response(
		`<struct><member><name>inner</name><value><struct>`+
			`<member><name>id</name><value><i4>1</i4></value></member>`+
			`</struct></value></member><member><name>ref</name><value><struct/></value></member></struct>`),
		reflect.TypeOf(nested{}))
	require.True(t, errors.As(err, &e))
	assert.Equal(t, []string{"id", "name"}, e.Members)
	assert.True(t, strings.Contains(e.Trail, "member ref"))
}

func TestNonSerializableMember(t *testing.T) {
	_, err := decodeResponse(Config{MissingMapping: MappingIgnore}, response(
		`<struct><member><name>Secret</name><value>x</value></member></struct>`), reflect.TypeOf(account{}))
	assert.True(t, errors.Is(err, ErrNonSerializableMember))
}

func TestDuplicateMembers(t *testing.T) {
	dup := response(
		`<struct><member><name>id</name><value><i4>1</i4></value></member>` +
			`<member><name>name</name><value>a</value></member>` +
			`<member><name>id</name><value><i4>2</i4></value></member></struct>`)
	typ := reflect.TypeOf(account{})

	_, err := decodeResponse(Config{}, dup, typ)
	assert.True(t, errors.Is(err, ErrInvalidDocument))
	_, err = decodeResponse(Config{}, dup, nil)
	assert.True(t, errors.Is(err, ErrInvalidDocument))

	tolerant := Config{NonStandard: IgnoreDuplicateMembers}
	res, err := decodeResponse(tolerant, dup, typ)
	require.NoError(t, err)
	assert.Equal(t, account{ID: 1, Name: "a"}, res)
	res, err = decodeResponse(tolerant, dup, nil)
	require.NoError(t, err)
	v, _ := res.(*StructMap).Get("id")
	assert.Equal(t, 1, v)

	dupElems := response(`<struct><member><name>id</name><name>name</name>` +
		`<value><i4>1</i4></value><value><i4>2</i4></value></member>` +
		`<member><name>name</name><value>a</value></member></struct>`)
	_, err = decodeResponse(Config{}, dupElems, typ)
	assert.True(t, errors.Is(err, ErrInvalidDocument))
	res, err = decodeResponse(tolerant, dupElems, typ)
	require.NoError(t, err)
	assert.Equal(t, account{ID: 1, Name: "a"}, res)

	for _, s := range []string{
		`<struct><member><value>1</value></member></struct>`,
		`<struct><member><name></name><value>1</value></member></struct>`,
		`<struct><member><name>a</name></member></struct>`,
	} {
		_, err = decodeResponse(tolerant, response(s), nil)
		assert.True(t, errors.Is(err, ErrInvalidDocument), s)
	}
}
