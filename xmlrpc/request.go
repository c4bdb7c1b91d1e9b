package xmlrpc

import "reflect"

// Request is an XML-RPC method call. It must not be modified after it has been
// passed to a Codec or Client.
type Request struct {
	Method string
	Args   []interface{}
	// Info is the optional signature of the method. If missing, the arguments
	// are passed as they are and the type of the result is inferred from the
	// response.
	Info *MethodInfo
	// Result overrides the result type of the signature.
	Result reflect.Type
}

// NewRequest creates a request without a signature.
func NewRequest(method string, args ...interface{}) *Request {
	return &Request{Method: method, Args: args}
}

func (r *Request) resultType() reflect.Type {
	if r.Result != nil {
		return r.Result
	}
	if r.Info != nil {
		return r.Info.Result
	}
	return nil
}

// MethodInfo describes the signature of an XML-RPC method.
type MethodInfo struct {
	Name   string
	Params []ParamInfo
	// Result is the Go type of the return value. If nil, the type is inferred
	// from the response. VoidType discards the return value.
	Result reflect.Type
	// StructParams folds the arguments into a single struct keyed by the
	// parameter names.
	StructParams bool
	// Variadic means that the last parameter is a slice whose elements are
	// passed as individual parameters.
	Variadic bool
	// Help is returned by system.methodHelp.
	Help string
}

// ParamInfo describes a parameter of an XML-RPC method.
type ParamInfo struct {
	Name string
	Type reflect.Type
}

// MethodLookup provides the signatures of methods.
type MethodLookup interface {
	// LookupMethod returns the signature of a method or nil, if the method
	// has no signature.
	LookupMethod(name string) *MethodInfo
}

// Signature returns the XML-RPC types of the result and the parameters, as
// reported by system.methodSignature.
func (m *MethodInfo) Signature() []string {
	name := func(t reflect.Type) string {
		if t == nil || isAny(t) {
			return "undef"
		}
		return KindOf(t).String()
	}
	sig := []string{name(m.Result)}
	for _, p := range m.Params {
		sig = append(sig, name(p.Type))
	}
	return sig
}

// variadicIndex returns the index of the variadic parameter or -1.
func (m *MethodInfo) variadicIndex() int {
	if m.Variadic && len(m.Params) > 0 {
		return len(m.Params) - 1
	}
	return -1
}
