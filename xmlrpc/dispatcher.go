package xmlrpc

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Dispatcher dispatches a received XML-RPC call to registered handlers.
type Dispatcher interface {
	MethodLookup
	AddSystemMethods()
	Handle(name string, m Method)
	HandleFunc(name string, f func([]interface{}) (interface{}, error))
	HandleMethod(info *MethodInfo, m Method)
	HandleUnknownFunc(f func(string, []interface{}) (interface{}, error))
	Dispatch(methodName string, args []interface{}) (interface{}, error)
}

// A Method is dispatched from a Handler. If the method is registered with a
// signature, the arguments have the types of the parameters. Otherwise the
// types are inferred from the request.
type Method interface {
	Call(args []interface{}) (interface{}, error)
}

// MethodFunc is an adapter to use ordinary functions as Method's.
type MethodFunc func([]interface{}) (interface{}, error)

// Call implements interface Method.
func (m MethodFunc) Call(args []interface{}) (interface{}, error) {
	return m(args)
}

// BasicDispatcher dispatches an XML-RPC call to a registered function.
type BasicDispatcher struct {
	mutex   sync.RWMutex
	methods map[string]Method
	infos   map[string]*MethodInfo
	unknown func(string, []interface{}) (interface{}, error)
}

// Handle registers a Method without a signature.
func (d *BasicDispatcher) Handle(name string, m Method) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.methods == nil {
		d.methods = make(map[string]Method)
	}
	d.methods[name] = m
	delete(d.infos, name)
}

// HandleFunc registers an ordinary function as Method.
func (d *BasicDispatcher) HandleFunc(name string, f func([]interface{}) (interface{}, error)) {
	d.Handle(name, MethodFunc(f))
}

// HandleMethod registers a Method with a signature. The arguments of a call
// are converted to the parameter types.
func (d *BasicDispatcher) HandleMethod(info *MethodInfo, m Method) {
	d.Handle(info.Name, m)

	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.infos == nil {
		d.infos = make(map[string]*MethodInfo)
	}
	d.infos[info.Name] = info
}

// HandleUnknownFunc registers an ordinary function to handle unknown methods
// names.
func (d *BasicDispatcher) HandleUnknownFunc(f func(string, []interface{}) (interface{}, error)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.unknown = f
}

// LookupMethod implements MethodLookup.
func (d *BasicDispatcher) LookupMethod(name string) *MethodInfo {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.infos[name]
}

var (
	stringType     = reflect.TypeOf("")
	multicallsType = reflect.TypeOf([]*StructMap(nil))
)

// AddSystemMethods adds system.multicall, system.listMethods,
// system.methodHelp and system.methodSignature.
func (d *BasicDispatcher) AddSystemMethods() {
	d.HandleMethod(
		&MethodInfo{
			Name:   "system.multicall",
			Params: []ParamInfo{{Name: "calls", Type: multicallsType}},
			Result: reflect.TypeOf([]interface{}(nil)),
			Help:   "Executes multiple calls in one request.",
		},
		MethodFunc(func(args []interface{}) (interface{}, error) {
			calls := args[0].([]*StructMap)
			svrLog.Debugf("Call of method system.multicall with %d elements received", len(calls))
			results := make([]interface{}, len(calls))
			for i, call := range calls {
				res, err := d.dispatchMulticall(call)
				if err != nil {
					f := toMethodError(err)
					m := NewStructMap()
					m.add("faultCode", f.Code)
					m.add("faultString", f.Message)
					results[i] = m
				} else {
					// single results are wrapped in an array, void results are
					// written as empty string
					if res == nil {
						res = ""
					}
					results[i] = []interface{}{res}
				}
			}
			return results, nil
		}),
	)

	d.HandleMethod(
		&MethodInfo{
			Name:   "system.listMethods",
			Result: reflect.TypeOf([]string(nil)),
			Help:   "Lists the names of all methods.",
		},
		MethodFunc(func([]interface{}) (interface{}, error) {
			svrLog.Debug("Call of method system.listMethods received")
			d.mutex.RLock()
			defer d.mutex.RUnlock()

			names := make([]string, 0, len(d.methods))
			for name := range d.methods {
				names = append(names, name)
			}
			sort.Strings(names)
			return names, nil
		}),
	)

	d.HandleMethod(
		&MethodInfo{
			Name:   "system.methodHelp",
			Params: []ParamInfo{{Name: "name", Type: stringType}},
			Result: stringType,
			Help:   "Returns the description of a method.",
		},
		MethodFunc(func(args []interface{}) (interface{}, error) {
			svrLog.Debug("Call of method system.methodHelp received")
			if info := d.LookupMethod(args[0].(string)); info != nil {
				return info.Help, nil
			}
			return "", nil
		}),
	)

	d.HandleMethod(
		&MethodInfo{
			Name:   "system.methodSignature",
			Params: []ParamInfo{{Name: "name", Type: stringType}},
			Help:   "Returns the signature of a method or undef, if no signature is available.",
		},
		MethodFunc(func(args []interface{}) (interface{}, error) {
			svrLog.Debug("Call of method system.methodSignature received")
			if info := d.LookupMethod(args[0].(string)); info != nil {
				return [][]string{info.Signature()}, nil
			}
			return "undef", nil
		}),
	)
}

func (d *BasicDispatcher) dispatchMulticall(call *StructMap) (interface{}, error) {
	nv, _ := call.Get("methodName")
	name, ok := nv.(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("Invalid system.multicall: missing methodName")
	}
	if name == "system.multicall" {
		return nil, fmt.Errorf("Recursive system.multicall is not allowed")
	}
	var args []interface{}
	if pv, ok := call.Get("params"); ok {
		rv := reflect.ValueOf(pv)
		if rv.Kind() != reflect.Slice {
			return nil, fmt.Errorf("Invalid system.multicall: params of %s is not an array", name)
		}
		for i := 0; i < rv.Len(); i++ {
			args = append(args, rv.Index(i).Interface())
		}
	}
	// convert to the parameter types
	if info := d.LookupMethod(name); info != nil {
		var err error
		args, err = coerceArgs(info, args)
		if err != nil {
			return nil, err
		}
	}
	return d.Dispatch(name, args)
}

// coerceArgs converts inferred arguments to the parameter types of a method.
func coerceArgs(info *MethodInfo, args []interface{}) ([]interface{}, error) {
	codec := &Codec{}
	ps := &Params{}
	for _, a := range args {
		v, err := codec.Marshal(a)
		if err != nil {
			return nil, err
		}
		ps.Param = append(ps.Param, &Param{Value: v})
	}
	d := newDecoder(&codec.Config, "request")
	if info.StructParams {
		return d.structArgs(ps, info)
	}
	return d.typedArgs(ps, info)
}

// Dispatch dispatches a method call to a registered function.
func (d *BasicDispatcher) Dispatch(methodName string, args []interface{}) (interface{}, error) {
	d.mutex.RLock()
	method, ok := d.methods[methodName]
	unknown := d.unknown
	d.mutex.RUnlock()

	if !ok {
		if unknown == nil {
			unknown = func(name string, _ []interface{}) (interface{}, error) {
				return nil, fmt.Errorf("Unknown method: %s", name)
			}
		}
		return unknown(methodName, args)
	}
	return method.Call(args)
}
