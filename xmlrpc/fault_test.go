package xmlrpc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func faultResponse(members string) string {
	return `<?xml version="1.0"?><methodResponse><fault><value><struct>` + members +
		`</struct></value></fault></methodResponse>`
}

func TestFaultRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := &Codec{}
	require.NoError(t, c.EncodeResponse(&buf, &MethodError{Code: 4, Message: "Too many parameters."}))
	assert.Equal(t, xmlHeader+`<methodResponse><fault><value><struct>`+
		`<member><name>faultCode</name><value><i4>4</i4></value></member>`+
		`<member><name>faultString</name><value>Too many parameters.</value></member>`+
		`</struct></value></fault></methodResponse>`, buf.String())

	_, err := c.DecodeResponse(&buf, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFault))
	var f *MethodError
	require.True(t, errors.As(err, &f))
	assert.Equal(t, &MethodError{Code: 4, Message: "Too many parameters."}, f)
	assert.Equal(t, "XML-RPC fault (code: 4, message: Too many parameters.)", f.Error())
}

func TestFaultTolerance(t *testing.T) {
	stringCode := faultResponse(`<member><name>faultCode</name><value> 4 </value></member>` +
		`<member><name>faultString</name><value>Too many parameters.</value></member>`)
	lowerCase := faultResponse(`<member><name>faultcode</name><value><int>-1</int></value></member>` +
		`<member><name>FAULTSTRING</name><value>Unknown</value></member>`)

	_, err := decodeResponse(Config{}, stringCode, nil)
	assert.False(t, errors.Is(err, ErrFault))
	assert.True(t, errors.Is(err, ErrTypeMismatch))
	_, err = decodeResponse(Config{}, lowerCase, nil)
	assert.True(t, errors.Is(err, ErrMissingMember))

	tolerant := Config{NonStandard: AllowStringFaultCode}
	_, err = decodeResponse(tolerant, stringCode, nil)
	var f *MethodError
	require.True(t, errors.As(err, &f))
	assert.Equal(t, 4, f.Code)
	assert.Equal(t, "Too many parameters.", f.Message)

	_, err = decodeResponse(tolerant, lowerCase, nil)
	require.True(t, errors.As(err, &f))
	assert.Equal(t, -1, f.Code)
	assert.Equal(t, "Unknown", f.Message)

	_, err = decodeResponse(tolerant, faultResponse(
		`<member><name>faultCode</name><value>four</value></member>`+
			`<member><name>faultString</name><value>x</value></member>`), nil)
	assert.False(t, errors.Is(err, ErrFault))
	assert.Error(t, err)
}

func TestInvalidFault(t *testing.T) {
	for _, doc := range []string{
		`<?xml version="1.0"?><methodResponse><fault></fault></methodResponse>`,
		`<?xml version="1.0"?><methodResponse><fault><value>x</value></fault></methodResponse>`,
	} {
		_, err := decodeResponse(Config{}, doc, nil)
		assert.True(t, errors.Is(err, ErrInvalidDocument), doc)
	}
}
