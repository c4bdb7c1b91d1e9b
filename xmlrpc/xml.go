package xmlrpc

import (
	"encoding/xml"
	"strings"
)

// element names of the value types
const (
	tagI4       = "i4"
	tagInt      = "int"
	tagI8       = "i8"
	tagBoolean  = "boolean"
	tagString   = "string"
	tagDouble   = "double"
	tagDateTime = "dateTime.iso8601"
	tagBase64   = "base64"
	tagStruct   = "struct"
	tagArray    = "array"
	tagNil      = "nil"
)

// MethodCall represents an XML-RPC method call.
type MethodCall struct {
	MethodName string   `xml:"methodName"`
	Params     *Params  `xml:"params"`
	XMLName    xml.Name `xml:"methodCall"`
}

// MethodResponse represents an XML-RPC method response.
type MethodResponse struct {
	Params  *Params  `xml:"params"`
	Fault   *Fault   `xml:"fault"`
	XMLName xml.Name `xml:"methodResponse"`
}

// Fault holds the struct of a fault response.
type Fault struct {
	Value *Value `xml:"value"`
}

// Params holds the parameters for the method call or response.
type Params struct {
	Param []*Param `xml:"param"`
}

// Param is a single parameter.
type Param struct {
	Value *Value `xml:"value"`

	// number of value elements, when decoded
	values int
}

// Value represents an XML-RPC value. Type is the name of the element inside
// the value element (e.g. "i4", "string", "struct"). An empty Type denotes an
// implicit string, which is the character data of the value element.
type Value struct {
	Type   string
	Text   string
	Struct *Struct
	Array  *Array
}

// Struct represents an XML-RPC struct.
type Struct struct {
	Members []*Member `xml:"member"`
}

// Member represents an XML-RPC struct member.
type Member struct {
	Name  string `xml:"name"`
	Value *Value `xml:"value"`

	// number of name and value elements, when decoded
	names, values int
}

// Array represents an XML-RPC array.
type Array struct {
	Data []*Value `xml:"data>value"`
}

// MarshalXML implements xml.Marshaler. The data element is also written for
// empty arrays.
func (a *Array) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	data := xml.StartElement{Name: xml.Name{Local: "data"}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.EncodeToken(data); err != nil {
		return err
	}
	for _, v := range a.Data {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	if err := e.EncodeToken(data.End()); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// MarshalXML implements xml.Marshaler.
func (v *Value) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "value"}}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	var err error
	inner := xml.StartElement{Name: xml.Name{Local: v.Type}}
	switch v.Type {
	case "":
		if v.Text != "" {
			err = e.EncodeToken(xml.CharData(v.Text))
		}
	case tagStruct:
		s := v.Struct
		if s == nil {
			s = &Struct{}
		}
		err = e.EncodeElement(s, inner)
	case tagArray:
		a := v.Array
		if a == nil {
			a = &Array{}
		}
		err = e.EncodeElement(a, inner)
	case tagNil:
		err = e.EncodeElement(struct{}{}, inner)
	default:
		err = e.EncodeElement(v.Text, inner)
	}
	if err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML implements xml.Unmarshaler. Only the first element inside the
// value element is considered.
func (v *Value) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	*v = Value{}
	var text strings.Builder
	typed := false
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if !typed {
				text.Write(t)
			}
		case xml.StartElement:
			if typed {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			typed = true
			v.Type = t.Name.Local
			switch v.Type {
			case tagStruct:
				v.Struct = &Struct{}
				err = d.DecodeElement(v.Struct, &t)
			case tagArray:
				v.Array = &Array{}
				err = d.DecodeElement(v.Array, &t)
			case tagNil:
				err = d.Skip()
			default:
				err = d.DecodeElement(&v.Text, &t)
			}
			if err != nil {
				return err
			}
		case xml.EndElement:
			if !typed {
				v.Text = text.String()
			}
			return nil
		}
	}
}

// UnmarshalXML implements xml.Unmarshaler. The first value element is kept,
// the number of occurrences is recorded.
func (p *Param) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "value" {
				if err := d.Skip(); err != nil {
					return err
				}
				continue
			}
			val := &Value{}
			if err := d.DecodeElement(val, &t); err != nil {
				return err
			}
			p.values++
			if p.values == 1 {
				p.Value = val
			}
		case xml.EndElement:
			return nil
		}
	}
}

// UnmarshalXML implements xml.Unmarshaler. The first name and value elements
// are kept, the number of occurrences is recorded.
func (m *Member) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "name":
				var n string
				if err := d.DecodeElement(&n, &t); err != nil {
					return err
				}
				m.names++
				if m.names == 1 {
					m.Name = n
				}
			case "value":
				val := &Value{}
				if err := d.DecodeElement(val, &t); err != nil {
					return err
				}
				m.values++
				if m.values == 1 {
					m.Value = val
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

// NewString creates a value holding a string element.
func NewString(s string) *Value {
	return &Value{Type: tagString, Text: s}
}

// NewStruct creates a value holding a struct with the specified members.
func NewStruct(members ...*Member) *Value {
	return &Value{Type: tagStruct, Struct: &Struct{Members: members}}
}

// NewArray creates a value holding an array with the specified elements.
func NewArray(elems ...*Value) *Value {
	return &Value{Type: tagArray, Array: &Array{Data: elems}}
}
