package xmlrpc

// Kind identifies the XML-RPC data type a native Go type or value maps to.
type Kind int

// XML-RPC data types.
const (
	KindInvalid Kind = iota
	KindInt32
	KindInt64
	KindBoolean
	KindString
	KindDouble
	KindDateTime
	KindBase64
	// KindStruct is a Go struct type with a declared set of members.
	KindStruct
	// KindMap is an XML-RPC struct without a declared shape (StructMap).
	KindMap
	KindArray
	// KindMultiDimArray is a nested Go array type ([N][M]T).
	KindMultiDimArray
	KindVoid
)

var kindNames = [...]string{
	KindInvalid:       "invalid",
	KindInt32:         "int",
	KindInt64:         "i8",
	KindBoolean:       "boolean",
	KindString:        "string",
	KindDouble:        "double",
	KindDateTime:      "dateTime",
	KindBase64:        "base64",
	KindStruct:        "struct",
	KindMap:           "struct",
	KindArray:         "array",
	KindMultiDimArray: "array",
	KindVoid:          "void",
}

// String returns the XML-RPC name of the data type, as used by
// system.methodSignature.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindInvalid]
	}
	return kindNames[k]
}

// scalar reports whether values of this kind are represented by a single
// literal.
func (k Kind) scalar() bool {
	switch k {
	case KindInt32, KindInt64, KindBoolean, KindString, KindDouble, KindDateTime:
		return true
	}
	return false
}
