package xmlrpc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// NonStandard enables the tolerance for documents that violate the XML-RPC
// standard.
type NonStandard uint

// Tolerance flags.
const (
	// AllowInvalidHTTPContent strips white space in front of the XML
	// declaration.
	AllowInvalidHTTPContent NonStandard = 1 << iota
	// AllowStringFaultCode accepts fault codes encoded as string and fault
	// member names in any case.
	AllowStringFaultCode
	// IgnoreDuplicateMembers uses the first of duplicate struct members.
	IgnoreDuplicateMembers
	// MapEmptyDateTimeToZero maps an empty date-time to the zero time.
	MapEmptyDateTimeToZero
	// MapZerosDateTimeToZero maps a date-time consisting of zeros (e.g.
	// 00000000T00:00:00) to the zero time.
	MapZerosDateTimeToZero
)

// Config holds the options of a Codec. The zero value writes compact
// documents with <i4> integers and implicit strings.
type Config struct {
	// Indent enables indentation of the generated documents.
	Indent bool
	// IndentWidth is the number of spaces per level (default 2).
	IndentWidth int
	// UseIntTag writes <int> instead of <i4>.
	UseIntTag bool
	// UseStringTag writes strings in a <string> element.
	UseStringTag bool
	// OmitEmptyParams omits the params element for calls without arguments.
	OmitEmptyParams bool
	// Encoding is the character encoding of the generated documents (IANA
	// name, default UTF-8).
	Encoding string
	// StrictDateTime only accepts date-times of the form yyyyMMddTHH:mm:ss.
	StrictDateTime bool
	NonStandard    NonStandard
	// MissingMapping is the default mapping action for missing struct
	// members (default MappingFail).
	MissingMapping MappingAction
}

// Codec reads and writes XML-RPC documents. A Codec can be used concurrently,
// if the configuration is not modified.
type Codec struct {
	Config
}

// Marshal converts a Go value to an XML-RPC value.
func (c *Codec) Marshal(v interface{}) (*Value, error) {
	if v == nil {
		return nil, &Error{Err: ErrNullValue, Msg: "Null value can not be serialized"}
	}
	return newEncoder(&c.Config, "value").marshal(reflect.ValueOf(v))
}

// Unmarshal converts an XML-RPC value to a Go value of the specified type. If
// t is nil, the type is inferred: i4/int to int, i8 to int64, struct to
// *StructMap and arrays to typed slices, if all elements have the same
// literal type, otherwise to []interface{}.
func (c *Codec) Unmarshal(v *Value, t reflect.Type) (interface{}, Kind, error) {
	val, k, err := newDecoder(&c.Config, "value").parse(v, t)
	if err != nil {
		return nil, KindInvalid, err
	}
	return val.Interface(), k, nil
}

// UnmarshalInto converts an XML-RPC value into the variable ptr points to.
func (c *Codec) UnmarshalInto(v *Value, ptr interface{}) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("UnmarshalInto needs a non-nil pointer: %T", ptr)
	}
	return newDecoder(&c.Config, "value").parseInto(v, ptr)
}

// EncodeRequest writes a method call.
func (c *Codec) EncodeRequest(w io.Writer, req *Request) error {
	if req.Method == "" {
		return &Error{Err: ErrInvalidDocument, Msg: "Method name must not be empty"}
	}
	e := newEncoder(&c.Config, "request")
	var params []*Param
	var err error
	if req.Info != nil && req.Info.StructParams {
		params, err = e.structParams(req)
	} else {
		params, err = e.positionalParams(req)
	}
	if err != nil {
		return err
	}
	call := &MethodCall{MethodName: req.Method}
	if len(params) > 0 || !c.OmitEmptyParams {
		call.Params = &Params{Param: params}
	}
	return c.writeDocument(w, call)
}

func (e *encoder) param(v reflect.Value, num int) (*Param, error) {
	e.trail.push("parameter %d", num)
	defer e.trail.pop()
	val, err := e.marshal(v)
	if err != nil {
		return nil, err
	}
	return &Param{Value: val}, nil
}

func (e *encoder) positionalParams(req *Request) ([]*Param, error) {
	var params []*Param
	vi := -1
	if req.Info != nil {
		vi = req.Info.variadicIndex()
	}
	for i, arg := range req.Args {
		if req.Info != nil && i >= len(req.Info.Params) {
			return nil, e.trail.errorf(ErrInvalidParamCount,
				"Number of arguments (%d) greater than number of parameters (%d) of method %s",
				len(req.Args), len(req.Info.Params), req.Method)
		}
		if arg == nil {
			return nil, e.trail.errorf(ErrNullValue, "Null method parameter #%d", i+1)
		}
		if i == vi {
			// expand variadic arguments
			rv := reflect.ValueOf(arg)
			if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
				return nil, e.trail.errorf(ErrTypeMismatch, "Variadic parameter #%d must be a slice", i+1)
			}
			for j := 0; j < rv.Len(); j++ {
				ev := rv.Index(j)
				if isNull(ev) {
					return nil, e.trail.errorf(ErrNullValue, "Null element in variadic parameter #%d", i+1)
				}
				p, err := e.param(ev, len(params)+1)
				if err != nil {
					return nil, err
				}
				params = append(params, p)
			}
			continue
		}
		p, err := e.param(reflect.ValueOf(arg), len(params)+1)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, nil
}

func (e *encoder) structParams(req *Request) ([]*Param, error) {
	info := req.Info
	if info.Variadic {
		return nil, e.trail.errorf(ErrInvalidParamCount,
			"Method %s uses struct parameters and can not have a variadic parameter", req.Method)
	}
	if len(req.Args) > len(info.Params) {
		return nil, e.trail.errorf(ErrInvalidParamCount,
			"Number of arguments (%d) greater than number of parameters (%d) of method %s",
			len(req.Args), len(info.Params), req.Method)
	}
	s := &Struct{}
	for i, arg := range req.Args {
		if arg == nil {
			return nil, e.trail.errorf(ErrNullValue, "Null method parameter #%d", i+1)
		}
		name := info.Params[i].Name
		v, err := func() (*Value, error) {
			e.trail.push("parameter %s", name)
			defer e.trail.pop()
			return e.marshal(reflect.ValueOf(arg))
		}()
		if err != nil {
			return nil, err
		}
		s.Members = append(s.Members, &Member{Name: name, Value: v})
	}
	return []*Param{{Value: &Value{Type: tagStruct, Struct: s}}}, nil
}

// DecodeRequest reads a method call. If methods provides a signature for the
// called method, the arguments are checked and converted to the parameter
// types. Otherwise the types are inferred.
func (c *Codec) DecodeRequest(r io.Reader, methods MethodLookup) (*Request, error) {
	call := &MethodCall{}
	if err := c.readDocument(r, call, "methodCall"); err != nil {
		return nil, err
	}
	if call.MethodName == "" {
		return nil, &Error{Err: ErrInvalidDocument, Msg: "Missing or empty methodName element"}
	}
	req := &Request{Method: call.MethodName}
	if methods != nil {
		req.Info = methods.LookupMethod(call.MethodName)
	}
	d := newDecoder(&c.Config, "request")
	if err := d.checkParams(call.Params); err != nil {
		return nil, err
	}
	var err error
	switch {
	case req.Info == nil:
		req.Args, err = d.untypedArgs(call.Params)
	case req.Info.StructParams:
		req.Args, err = d.structArgs(call.Params, req.Info)
	default:
		req.Args, err = d.typedArgs(call.Params, req.Info)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// checkParams rejects param elements with more than one value element.
func (d *decoder) checkParams(ps *Params) error {
	if ps == nil {
		return nil
	}
	for i, p := range ps.Param {
		if p.values > 1 {
			return d.trail.errorf(ErrInvalidDocument, "Param element %d contains more than one value element", i+1)
		}
	}
	return nil
}

func (d *decoder) untypedArgs(ps *Params) ([]interface{}, error) {
	if ps == nil {
		return nil, nil
	}
	args := make([]interface{}, len(ps.Param))
	for i, p := range ps.Param {
		val, _, err := d.parseAt(p.Value, nil, "parameter %d", i+1)
		if err != nil {
			return nil, err
		}
		args[i] = val.Interface()
	}
	return args, nil
}

func (d *decoder) typedArgs(ps *Params, info *MethodInfo) ([]interface{}, error) {
	vi := info.variadicIndex()
	required := len(info.Params)
	if vi >= 0 {
		required = vi
	}
	if ps == nil {
		if required > 0 {
			return nil, d.trail.errorf(ErrInvalidParamCount, "Method takes parameters and params element is missing")
		}
		ps = &Params{}
	}
	n := len(ps.Param)
	if n < required {
		return nil, d.trail.errorf(ErrInvalidParamCount, "Too few param elements for method %s", info.Name)
	}
	if vi < 0 && n > required {
		return nil, d.trail.errorf(ErrInvalidParamCount, "Too many param elements for method %s", info.Name)
	}
	args := make([]interface{}, 0, len(info.Params))
	for i := 0; i < required; i++ {
		val, _, err := d.parseAt(ps.Param[i].Value, info.Params[i].Type, "parameter %d", i+1)
		if err != nil {
			return nil, err
		}
		args = append(args, val.Interface())
	}
	if vi >= 0 {
		st := info.Params[vi].Type
		rest := reflect.MakeSlice(st, 0, n-required)
		for i := required; i < n; i++ {
			val, _, err := d.parseAt(ps.Param[i].Value, st.Elem(), "parameter %d", i+1)
			if err != nil {
				return nil, err
			}
			rest = reflect.Append(rest, val)
		}
		args = append(args, rest.Interface())
	}
	return args, nil
}

func (d *decoder) structArgs(ps *Params, info *MethodInfo) ([]interface{}, error) {
	if ps == nil || len(ps.Param) != 1 {
		return nil, d.trail.errorf(ErrInvalidParamCount, "Method %s expects a single struct parameter", info.Name)
	}
	v := ps.Param[0].Value
	if v == nil || v.Type != tagStruct || v.Struct == nil {
		return nil, d.trail.errorf(ErrTypeMismatch, "Method %s expects a single struct parameter", info.Name)
	}
	pos := make(map[string]int, len(info.Params))
	for i, p := range info.Params {
		pos[p.Name] = i
	}
	args := make([]interface{}, len(info.Params))
	filled := make([]bool, len(info.Params))
	for _, m := range v.Struct.Members {
		if err := d.checkWireMember(m); err != nil {
			return nil, err
		}
		i, ok := pos[m.Name]
		if !ok {
			return nil, d.trail.errorf(ErrInvalidParamCount, "Method %s has no parameter %s", info.Name, m.Name)
		}
		if filled[i] {
			if err := d.duplicate(m.Name); err != nil {
				return nil, err
			}
			continue
		}
		val, _, err := d.parseAt(m.Value, info.Params[i].Type, "parameter %s", m.Name)
		if err != nil {
			return nil, err
		}
		args[i] = val.Interface()
		filled[i] = true
	}
	var missing []string
	for i, p := range info.Params {
		if !filled[i] {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		e := d.trail.errorf(ErrMissingMember, "Struct parameter of method %s has %s", info.Name, missingMembersMsg(missing))
		e.Members = missing
		return nil, e
	}
	return args, nil
}

// EncodeResponse writes a method response. A nil result is written as empty
// string. A *MethodError is written as fault.
func (c *Codec) EncodeResponse(w io.Writer, result interface{}) error {
	if f, ok := result.(*MethodError); ok {
		return c.EncodeFault(w, f)
	}
	e := newEncoder(&c.Config, "response")
	var v *Value
	if result == nil {
		v = e.marshalString("")
	} else {
		var err error
		v, err = e.marshal(reflect.ValueOf(result))
		if err != nil {
			return err
		}
	}
	return c.writeDocument(w, &MethodResponse{
		Params: &Params{Param: []*Param{{Value: v}}},
	})
}

// EncodeFault writes a fault response.
func (c *Codec) EncodeFault(w io.Writer, f *MethodError) error {
	v, err := newEncoder(&c.Config, "fault response").marshal(reflect.ValueOf(faultStruct{
		FaultCode:   f.Code,
		FaultString: f.Message,
	}))
	if err != nil {
		return err
	}
	return c.writeDocument(w, &MethodResponse{Fault: &Fault{Value: v}})
}

// DecodeResponse reads a method response and converts the return value to
// the specified type. For a nil type, the type is inferred (see Unmarshal).
// VoidType discards the return value. A fault is returned as *MethodError.
func (c *Codec) DecodeResponse(r io.Reader, t reflect.Type) (interface{}, error) {
	resp := &MethodResponse{}
	if err := c.readDocument(r, resp, "methodResponse"); err != nil {
		return nil, err
	}
	if resp.Fault != nil {
		f, err := newDecoder(&c.Config, "fault response").parseFault(resp.Fault)
		if err != nil {
			return nil, err
		}
		return nil, f
	}
	if resp.Params == nil || len(resp.Params.Param) == 0 {
		if t == VoidType {
			return nil, nil
		}
		return nil, &Error{Err: ErrInvalidDocument, Msg: "Response contains no params element"}
	}
	if err := newDecoder(&c.Config, "response").checkParams(resp.Params); err != nil {
		return nil, err
	}
	if len(resp.Params.Param) != 1 {
		return nil, &Error{Err: ErrInvalidDocument, Msg: "Response contains more than one param element"}
	}
	v := resp.Params.Param[0].Value
	if v == nil {
		return nil, &Error{Err: ErrInvalidDocument, Msg: "Response contains param element without value"}
	}
	if t == VoidType {
		return nil, nil
	}
	val, _, err := newDecoder(&c.Config, "response").parse(v, t)
	if err != nil {
		return nil, err
	}
	return val.Interface(), nil
}

// writeDocument writes the XML declaration and the document.
func (c *Codec) writeDocument(w io.Writer, doc interface{}) error {
	enc, name, err := c.encoding()
	if err != nil {
		return err
	}
	out := w
	var closer io.Closer
	if enc != nil {
		// the transforming writer buffers, Close flushes the tail
		tw := transform.NewWriter(w, enc.NewEncoder())
		out, closer = tw, tw
	}
	if _, err := io.WriteString(out, `<?xml version="1.0" encoding="`+name+`"?>`+"\n"); err != nil {
		return err
	}
	xe := xml.NewEncoder(out)
	if c.Indent {
		width := c.IndentWidth
		if width <= 0 {
			width = 2
		}
		xe.Indent("", strings.Repeat(" ", width))
	}
	if err := xe.Encode(doc); err != nil {
		return fmt.Errorf("Encoding of XML-RPC document failed: %w", err)
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}

// encoding returns the configured character encoding. A nil encoding means
// UTF-8.
func (c *Codec) encoding() (encoding.Encoding, string, error) {
	if c.Encoding == "" || strings.EqualFold(c.Encoding, "UTF-8") {
		return nil, "UTF-8", nil
	}
	enc, err := ianaindex.MIME.Encoding(c.Encoding)
	if err != nil || enc == nil {
		enc, err = ianaindex.IANA.Encoding(c.Encoding)
		if err != nil || enc == nil {
			return nil, "", fmt.Errorf("Unsupported character encoding: %s", c.Encoding)
		}
	}
	name, err := ianaindex.MIME.Name(enc)
	if err != nil {
		name = c.Encoding
	}
	return enc, name, nil
}

// readDocument decodes a document with the specified root element.
func (c *Codec) readDocument(r io.Reader, doc interface{}, root string) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("Reading of XML-RPC document failed: %w", err)
	}
	trimmed := bytes.TrimLeft(buf, "\r\n \t")
	if len(trimmed) == 0 {
		return &Error{Err: ErrIllFormedDocument, Msg: "Document is empty"}
	}
	if c.NonStandard&AllowInvalidHTTPContent != 0 {
		buf = trimmed
	} else if len(trimmed) != len(buf) && bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return &Error{Err: ErrIllFormedDocument, Msg: "XML declaration is not at the start of the document"}
	}
	dec := xml.NewDecoder(bytes.NewReader(buf))
	dec.CharsetReader = charset.NewReaderLabel
	err = dec.Decode(doc)
	if err == nil {
		return c.readTrailer(dec, 0)
	}
	var ue xml.UnmarshalError
	if errors.As(err, &ue) {
		// the start element of the wrong root is consumed, the rest may still be
		// ill-formed
		if err := c.readTrailer(dec, 1); err != nil {
			return err
		}
		return &Error{Err: ErrInvalidDocument, Msg: fmt.Sprintf("Document has no %s element: %v", root, err)}
	}
	return illFormed(err)
}

func illFormed(err error) *Error {
	return &Error{Err: ErrIllFormedDocument, Msg: fmt.Sprintf("Document does not contain valid XML: %v", err)}
}

// readTrailer reads the rest of the document. depth is the number of open
// elements. After the root element only white space, comments and processing
// instructions are allowed. With AllowInvalidHTTPContent anything may follow
// the root element.
func (c *Codec) readTrailer(dec *xml.Decoder, depth int) error {
	tolerant := c.NonStandard&AllowInvalidHTTPContent != 0
	for {
		if depth == 0 && tolerant {
			return nil
		}
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return illFormed(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				return &Error{Err: ErrIllFormedDocument, Msg: fmt.Sprintf("Element <%s> after the root element", t.Name.Local)}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return &Error{Err: ErrIllFormedDocument, Msg: "Character data after the root element"}
			}
		}
	}
}
