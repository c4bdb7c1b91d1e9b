package xmlrpc

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/mdzio/go-logging"
	"golang.org/x/time/rate"
)

// max. size of a valid response, if not specified: 10 MB
const responseSizeLimit = 10 * 1024 * 1024

// Caller is an interface for calling XML-RPC methods.
type Caller interface {
	Call(req *Request) (interface{}, error)
}

var clnLog = logging.Get("xmlrpc-client")

// Client provides access to an XML-RPC server. The fields must not be
// modified while calls are in progress.
type Client struct {
	Addr string
	// Config controls the generation of requests and the parsing of
	// responses.
	Config Config
	// Transport sends the requests. If nil, an HTTPTransport with default
	// settings is used.
	Transport Transport
	// ResponseSizeLimit limits the size of a response (default 10 MB).
	ResponseSizeLimit int64
	// Limiter throttles outgoing calls, if not nil.
	Limiter *rate.Limiter
	// Metrics collects call statistics, if not nil.
	Metrics *Metrics
}

var defaultTransport = &HTTPTransport{}

func (c *Client) transport() Transport {
	if c.Transport == nil {
		return defaultTransport
	}
	return c.Transport
}

func (c *Client) responseSizeLimit() int64 {
	if c.ResponseSizeLimit == 0 {
		return responseSizeLimit
	}
	return c.ResponseSizeLimit
}

// Go starts an asynchronous call. The callback is invoked once after the call
// has completed, it may be nil. Cancelling ctx aborts the call.
func (c *Client) Go(ctx context.Context, req *Request, callback func(*Call)) *Call {
	ctx, cancel := context.WithCancel(ctx)
	call := newCall(req, cancel, callback)
	clnLog.Tracef("Calling method %s on %s (call %s)", req.Method, c.Addr, call.ID)
	go func() {
		start := time.Now()
		res, err := call.execute(ctx, c)
		if err != nil {
			clnLog.Debugf("Call %s of method %s on %s failed: %v", call.ID, req.Method, c.Addr, err)
		}
		c.Metrics.observe(req.Method, start, err)
		call.complete(res, err)
	}()
	return call
}

// Call executes a remote procedure call. Call implements Caller.
func (c *Client) Call(req *Request) (interface{}, error) {
	return c.CallContext(context.Background(), req)
}

// CallContext executes a remote procedure call. Cancelling ctx aborts the
// call.
func (c *Client) CallContext(ctx context.Context, req *Request) (interface{}, error) {
	return c.Go(ctx, req, nil).Result()
}

// Invoke calls a method and stores the return value in the variable result
// points to. If result is nil, the return value is discarded.
func (c *Client) Invoke(result interface{}, method string, args ...interface{}) error {
	req := &Request{Method: method, Args: args, Result: VoidType}
	var rv reflect.Value
	if result != nil {
		rv = reflect.ValueOf(result)
		if rv.Kind() != reflect.Ptr || rv.IsNil() {
			return fmt.Errorf("Result of method %s needs a non-nil pointer: %T", method, result)
		}
		req.Result = rv.Type().Elem()
	}
	res, err := c.Call(req)
	if err != nil {
		return err
	}
	if result != nil && res != nil {
		rv.Elem().Set(reflect.ValueOf(res))
	}
	return nil
}

// ListMethods calls system.listMethods.
func (c *Client) ListMethods() ([]string, error) {
	var names []string
	err := c.Invoke(&names, "system.listMethods")
	return names, err
}

// MethodHelp calls system.methodHelp.
func (c *Client) MethodHelp(method string) (string, error) {
	var help string
	err := c.Invoke(&help, "system.methodHelp", method)
	return help, err
}

// MethodSignature calls system.methodSignature.
func (c *Client) MethodSignature(method string) ([][]string, error) {
	var sigs [][]string
	err := c.Invoke(&sigs, "system.methodSignature", method)
	return sigs, err
}
