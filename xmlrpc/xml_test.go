package xmlrpc

import (
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type xmlTestCase struct {
	in   interface{}
	want string
}

func xmlRunMarshalTests(t *testing.T, cases []xmlTestCase) {
	for i, c := range cases {
		xml, err := xml.Marshal(c.in)
		if err != nil {
			t.Errorf("unexpected error in test case %d: %v", i+1, err)
		} else {
			xmltxt := string(xml)
			if xmltxt != c.want {
				t.Errorf("unexpected xml in test case %d: want: %s got: %s", i+1, c.want, xmltxt)
			}
		}
	}
}

func TestMarshalXMLValue(t *testing.T) {
	cases := []xmlTestCase{
		{
			// test case 1
			&Value{Type: "i4", Text: "123"},
			"<value><i4>123</i4></value>",
		},
		{
			// test case 2
			&Value{Type: "int", Text: "0"},
			"<value><int>0</int></value>",
		},
		{
			// test case 3
			&Value{Type: "boolean", Text: "1"},
			"<value><boolean>1</boolean></value>",
		},
		{
			// test case 4
			NewString("abc"),
			"<value><string>abc</string></value>",
		},
		{
			// test case 5
			&Value{Text: "def"},
			"<value>def</value>",
		},
		{
			// test case 6
			&Value{},
			"<value></value>",
		},
		{
			// test case 7
			&Value{Type: "base64"},
			"<value><base64></base64></value>",
		},
		{
			// test case 8
			NewStruct(),
			"<value><struct></struct></value>",
		},
		{
			// test case 9
			NewStruct(
				&Member{Name: "Field1", Value: &Value{Type: "int", Text: "123"}},
				&Member{Name: "Field2", Value: NewString("a<b")},
			),
			"<value><struct><member><name>Field1</name><value><int>123</int></value></member><member><name>Field2</name><value><string>a&lt;b</string></value></member></struct></value>",
		},
		{
			// test case 10
			NewArray(),
			"<value><array><data></data></array></value>",
		},
		{
			// test case 11
			NewArray(&Value{Text: "abc"}, &Value{Type: "i4", Text: "4"}),
			"<value><array><data><value>abc</value><value><i4>4</i4></value></data></array></value>",
		},
		{
			// test case 12
			&Value{Type: "nil"},
			"<value><nil></nil></value>",
		},
	}
	xmlRunMarshalTests(t, cases)
}

func TestMarshalXMLMethodCall(t *testing.T) {
	cases := []xmlTestCase{
		{
			&MethodCall{MethodName: "system.listMethods"},
			"<methodCall><methodName>system.listMethods</methodName></methodCall>",
		},
		{
			&MethodCall{MethodName: "echo", Params: &Params{Param: []*Param{{Value: NewString("a")}}}},
			"<methodCall><methodName>echo</methodName><params><param><value><string>a</string></value></param></params></methodCall>",
		},
		{
			&MethodResponse{Fault: &Fault{Value: NewStruct()}},
			"<methodResponse><fault><value><struct></struct></value></fault></methodResponse>",
		},
	}
	xmlRunMarshalTests(t, cases)
}

func TestUnmarshalXMLValue(t *testing.T) {
	cases := []struct {
		in   string
		want Value
	}{
		{"<value><i4>123</i4></value>", Value{Type: "i4", Text: "123"}},
		{"<value>  <i8> 4 </i8>  </value>", Value{Type: "i8", Text: " 4 "}},
		{"<value>plain</value>", Value{Text: "plain"}},
		{"<value> </value>", Value{Text: " "}},
		{"<value/>", Value{}},
		{"<value><string/></value>", Value{Type: "string"}},
		{"<value><base64></base64></value>", Value{Type: "base64"}},
		{"<value><nil/></value>", Value{Type: "nil"}},
		{"<value><string>a</string><i4>1</i4></value>", Value{Type: "string", Text: "a"}},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			var v Value
			require.NoError(t, xml.Unmarshal([]byte(c.in), &v))
			assert.Equal(t, c.want, v)
		})
	}
}

func TestUnmarshalXMLMember(t *testing.T) {
	var v Value
	err := xml.Unmarshal([]byte(
		"<value><struct>"+
			"<member><name>a</name><name>b</name><value>1</value></member>"+
			"<member><value>2</value><name>c</name><value>3</value><foo/></member>"+
			"</struct></value>"), &v)
	require.NoError(t, err)
	require.Equal(t, "struct", v.Type)
	ms := v.Struct.Members
	require.Len(t, ms, 2)

	assert.Equal(t, "a", ms[0].Name)
	assert.Equal(t, 2, ms[0].names)
	assert.Equal(t, 1, ms[0].values)
	assert.Equal(t, "1", ms[0].Value.Text)

	assert.Equal(t, "c", ms[1].Name)
	assert.Equal(t, 1, ms[1].names)
	assert.Equal(t, 2, ms[1].values)
	assert.Equal(t, "2", ms[1].Value.Text)
}

func TestUnmarshalXMLArray(t *testing.T) {
	var v Value
	err := xml.Unmarshal([]byte(
		"<value><array><data><value><i4>1</i4></value><value>x</value></data></array></value>"), &v)
	require.NoError(t, err)
	require.NotNil(t, v.Array)
	require.Len(t, v.Array.Data, 2)
	assert.Equal(t, &Value{Type: "i4", Text: "1"}, v.Array.Data[0])
	assert.Equal(t, &Value{Text: "x"}, v.Array.Data[1])
}
