package xmlrpc

import (
	"fmt"
	"strconv"
	"strings"
)

// MethodError encapsulates an XML-RPC fault response.
type MethodError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (f *MethodError) Error() string {
	return fmt.Sprintf("XML-RPC fault (code: %d, message: %s)", f.Code, f.Message)
}

// Is reports whether target is ErrFault.
func (f *MethodError) Is(target error) bool {
	return target == ErrFault
}

// wire shape of a fault
type faultStruct struct {
	FaultCode   int    `xmlrpc:"faultCode"`
	FaultString string `xmlrpc:"faultString"`
}

// some servers send the fault code as string
type stringCodeFaultStruct struct {
	FaultCode   string `xmlrpc:"faultCode"`
	FaultString string `xmlrpc:"faultString"`
}

func (d *decoder) parseFault(f *Fault) (*MethodError, error) {
	if f.Value == nil || f.Value.Type != tagStruct {
		return nil, d.trail.errorf(ErrInvalidDocument, "struct element missing from fault response")
	}
	s := f.Value.Struct
	tolerant := d.cfg.NonStandard&AllowStringFaultCode != 0
	if tolerant {
		s = canonicalFaultMembers(s)
	}
	var fs faultStruct
	err := d.parseInto(&Value{Type: tagStruct, Struct: s}, &fs)
	if err == nil {
		return &MethodError{Code: fs.FaultCode, Message: fs.FaultString}, nil
	}
	if !tolerant {
		return nil, err
	}
	var sfs stringCodeFaultStruct
	if d.parseInto(&Value{Type: tagStruct, Struct: s}, &sfs) != nil {
		return nil, err
	}
	code, errc := strconv.Atoi(strings.TrimSpace(sfs.FaultCode))
	if errc != nil {
		return nil, err
	}
	return &MethodError{Code: code, Message: sfs.FaultString}, nil
}

// canonicalFaultMembers returns a copy of the fault struct with member names
// matched case insensitively.
func canonicalFaultMembers(s *Struct) *Struct {
	c := &Struct{Members: make([]*Member, len(s.Members))}
	for i, m := range s.Members {
		cm := *m
		switch {
		case strings.EqualFold(m.Name, "faultCode"):
			cm.Name = "faultCode"
		case strings.EqualFold(m.Name, "faultString"):
			cm.Name = "faultString"
		}
		c.Members[i] = &cm
	}
	return c
}
