package xmlrpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
)

// CallState is the state of an asynchronous call.
type CallState int32

// Call states.
const (
	StateCreated CallState = iota
	StateSending
	StateAwaiting
	StateReceiving
	StateSucceeded
	StateFailed
)

func (s CallState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSending:
		return "sending"
	case StateAwaiting:
		return "awaiting"
	case StateReceiving:
		return "receiving"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("CallState(%d)", int32(s))
}

// size of the read buffer for response bodies
const chunkSize = 1024

// Call represents an asynchronous XML-RPC call, started with Client.Go. The
// call completes exactly once, either with a result or an error.
type Call struct {
	// ID identifies the call in log messages.
	ID      uuid.UUID
	Request *Request

	state     int32
	completed int32
	consumed  int32
	done      chan struct{}
	result    interface{}
	err       error
	callback  func(*Call)
	cancel    context.CancelFunc
}

func newCall(req *Request, cancel context.CancelFunc, callback func(*Call)) *Call {
	return &Call{
		ID:       uuid.New(),
		Request:  req,
		done:     make(chan struct{}),
		callback: callback,
		cancel:   cancel,
	}
}

// State returns the current state.
func (c *Call) State() CallState {
	return CallState(atomic.LoadInt32(&c.state))
}

// setState changes the state, unless a final state is reached.
func (c *Call) setState(s CallState) {
	for {
		old := atomic.LoadInt32(&c.state)
		if CallState(old) >= StateSucceeded {
			return
		}
		if atomic.CompareAndSwapInt32(&c.state, old, int32(s)) {
			return
		}
	}
}

// IsCompleted reports whether the call has completed.
func (c *Call) IsCompleted() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the call completes.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result waits for the completion of the call and returns the result. A
// fault is returned as *MethodError. The result can only be retrieved once.
func (c *Call) Result() (interface{}, error) {
	if !atomic.CompareAndSwapInt32(&c.consumed, 0, 1) {
		return nil, ErrResultConsumed
	}
	<-c.done
	return c.result, c.err
}

// Abort cancels the transport and completes the call with ErrAborted, if it
// has not already completed.
func (c *Call) Abort() {
	c.cancel()
	c.complete(nil, fmt.Errorf("Call %s of method %s: %w", c.ID, c.Request.Method, ErrAborted))
}

// complete sets the outcome. Only the first invocation has an effect.
func (c *Call) complete(result interface{}, err error) {
	if !atomic.CompareAndSwapInt32(&c.completed, 0, 1) {
		return
	}
	c.result, c.err = result, err
	if err != nil {
		c.setState(StateFailed)
	} else {
		c.setState(StateSucceeded)
	}
	close(c.done)
	c.cancel()
	if c.callback != nil {
		c.callback(c)
	}
}

// execute performs the steps of the call.
func (c *Call) execute(ctx context.Context, cl *Client) (interface{}, error) {
	codec := &Codec{Config: cl.Config}
	c.setState(StateSending)
	if cl.Limiter != nil {
		if err := cl.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("Rate limiter for %s: %w", cl.Addr, err)
		}
	}
	var reqBuf bytes.Buffer
	if err := codec.EncodeRequest(&reqBuf, c.Request); err != nil {
		return nil, err
	}
	if clnLog.TraceEnabled() {
		clnLog.Tracef("Request XML of call %s: %s", c.ID, reqBuf.String())
	}

	c.setState(StateAwaiting)
	body, length, err := cl.transport().Send(ctx, cl.Addr, reqBuf.Bytes())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	c.setState(StateReceiving)
	respBuf, err := receive(body, length, cl.responseSizeLimit())
	if err != nil {
		return nil, fmt.Errorf("Reading of response failed from %s: %w", cl.Addr, err)
	}
	if clnLog.TraceEnabled() {
		clnLog.Tracef("Response XML of call %s: %s", c.ID, string(respBuf))
	}

	return codec.DecodeResponse(bytes.NewReader(respBuf), c.Request.resultType())
}

// receive reads the response body in chunks until the declared length is
// reached or the body ends.
func receive(r io.Reader, length, limit int64) ([]byte, error) {
	if length > limit {
		return nil, fmt.Errorf("Response size %d exceeds limit %d", length, limit)
	}
	var buf bytes.Buffer
	if length > 0 {
		buf.Grow(int(length))
	}
	chunk := make([]byte, chunkSize)
	for length < 0 || int64(buf.Len()) < length {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if int64(buf.Len()) > limit {
			return nil, fmt.Errorf("Response size exceeds limit %d", limit)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if length >= 0 && int64(buf.Len()) < length {
		return nil, io.ErrUnexpectedEOF
	}
	return buf.Bytes(), nil
}
