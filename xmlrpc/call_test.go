package xmlrpc

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transportFunc func(ctx context.Context, addr string, body []byte) (io.ReadCloser, int64, error)

func (f transportFunc) Send(ctx context.Context, addr string, body []byte) (io.ReadCloser, int64, error) {
	return f(ctx, addr, body)
}

// replyWith returns a transport answering every request with doc.
func replyWith(doc string) Transport {
	return transportFunc(func(context.Context, string, []byte) (io.ReadCloser, int64, error) {
		return io.NopCloser(strings.NewReader(doc)), int64(len(doc)), nil
	})
}

// blocking returns a transport waiting for the cancellation of the call.
func blocking(started chan<- struct{}) Transport {
	return transportFunc(func(ctx context.Context, _ string, _ []byte) (io.ReadCloser, int64, error) {
		close(started)
		<-ctx.Done()
		return nil, 0, ctx.Err()
	})
}

func TestCallSucceeds(t *testing.T) {
	var gotBody string
	cl := &Client{Transport: transportFunc(func(_ context.Context, _ string, body []byte) (io.ReadCloser, int64, error) {
		gotBody = string(body)
		doc := response("<i4>42</i4>")
		return io.NopCloser(strings.NewReader(doc)), -1, nil
	})}

	var calls int32
	called := make(chan struct{})
	call := cl.Go(context.Background(), NewRequest("answer", "q"), func(c *Call) {
		atomic.AddInt32(&calls, 1)
		close(called)
	})
	res, err := call.Result()
	require.NoError(t, err)
	assert.Equal(t, 42, res)
	assert.True(t, call.IsCompleted())
	assert.Equal(t, StateSucceeded, call.State())
	assert.Contains(t, gotBody, "<methodName>answer</methodName>")

	_, err = call.Result()
	assert.Equal(t, ErrResultConsumed, err)

	<-called
	call.Abort()
	assert.Equal(t, StateSucceeded, call.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCallAbort(t *testing.T) {
	started := make(chan struct{})
	cl := &Client{Transport: blocking(started)}
	var calls int32
	call := cl.Go(context.Background(), NewRequest("slow"), func(*Call) {
		atomic.AddInt32(&calls, 1)
	})
	<-started
	assert.Equal(t, StateAwaiting, call.State())
	assert.False(t, call.IsCompleted())

	call.Abort()
	_, err := call.Result()
	assert.True(t, errors.Is(err, ErrAborted))
	assert.Equal(t, StateFailed, call.State())
	assert.True(t, call.IsCompleted())

	// the transport returns afterwards, the outcome stays the same
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateFailed, call.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCallCompletionOrder(t *testing.T) {
	cl := &Client{Transport: replyWith(response("<i4>1</i4>"))}
	for i := 0; i < 20; i++ {
		states := make(chan CallState, 1)
		call := cl.Go(context.Background(), NewRequest("m"), func(c *Call) {
			states <- c.State()
		})
		// a completed call always has a final state
		for !call.IsCompleted() {
			time.Sleep(time.Millisecond)
		}
		assert.Equal(t, StateSucceeded, call.State())
		assert.Equal(t, StateSucceeded, <-states)
		res, err := call.Result()
		require.NoError(t, err)
		assert.Equal(t, 1, res)
	}
}

func TestCallContext(t *testing.T) {
	started := make(chan struct{})
	cl := &Client{Transport: blocking(started)}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := cl.CallContext(ctx, NewRequest("slow"))
	assert.True(t, errors.Is(err, context.Canceled))

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = (&Client{Transport: blocking(make(chan struct{}))}).CallContext(ctx, NewRequest("slow"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCallFailures(t *testing.T) {
	cl := &Client{Transport: replyWith(faultResponse(
		`<member><name>faultCode</name><value><i4>7</i4></value></member>` +
			`<member><name>faultString</name><value>boom</value></member>`))}
	_, err := cl.Call(NewRequest("m"))
	var f *MethodError
	require.True(t, errors.As(err, &f))
	assert.Equal(t, 7, f.Code)

	cl = &Client{Transport: transportFunc(func(context.Context, string, []byte) (io.ReadCloser, int64, error) {
		return nil, 0, &HTTPError{StatusCode: 404, Status: "404 Not Found"}
	})}
	_, err = cl.Call(NewRequest("m"))
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.True(t, he.ClientError())

	// encoding fails before sending
	cl = &Client{Transport: transportFunc(func(context.Context, string, []byte) (io.ReadCloser, int64, error) {
		t.Error("unexpected send")
		return nil, 0, nil
	})}
	call := cl.Go(context.Background(), NewRequest("m", make(chan int)), nil)
	_, err = call.Result()
	assert.True(t, errors.Is(err, ErrUnsupportedType))
	assert.Equal(t, StateFailed, call.State())

	cl = &Client{Transport: replyWith(response(strings.Repeat("x", 2000))), ResponseSizeLimit: 1000}
	_, err = cl.Call(NewRequest("m"))
	assert.Contains(t, err.Error(), "exceeds limit 1000")
}

func TestInvoke(t *testing.T) {
	cl := &Client{Transport: replyWith(response(
		`<struct><member><name>id</name><value><i4>5</i4></value></member>` +
			`<member><name>name</name><value>n</value></member></struct>`))}
	var a account
	require.NoError(t, cl.Invoke(&a, "get"))
	assert.Equal(t, account{ID: 5, Name: "n"}, a)

	require.NoError(t, cl.Invoke(nil, "get"))
	assert.Error(t, cl.Invoke(a, "get"))

	var i int
	assert.True(t, errors.Is(cl.Invoke(&i, "get"), ErrTypeMismatch))

	cl = &Client{Transport: replyWith(`<?xml version="1.0"?><methodResponse><params></params></methodResponse>`)}
	require.NoError(t, cl.Invoke(nil, "set", 1))
}

func TestReceive(t *testing.T) {
	body := strings.Repeat("abcdefgh", 300)
	b, err := receive(iotest.OneByteReader(strings.NewReader(body)), int64(len(body)), 10000)
	require.NoError(t, err)
	assert.Equal(t, body, string(b))

	b, err = receive(iotest.HalfReader(strings.NewReader(body)), -1, 10000)
	require.NoError(t, err)
	assert.Equal(t, body, string(b))

	_, err = receive(strings.NewReader(body), int64(len(body)), 100)
	assert.Error(t, err)
	_, err = receive(strings.NewReader(body), -1, 100)
	assert.Error(t, err)
	_, err = receive(strings.NewReader(body), int64(len(body))+1, 10000)
	assert.Equal(t, io.ErrUnexpectedEOF, err)
	_, err = receive(iotest.ErrReader(io.ErrClosedPipe), -1, 100)
	assert.Equal(t, io.ErrClosedPipe, err)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	ok := &Client{Transport: replyWith(response("<i4>1</i4>")), Metrics: m}
	fault := &Client{Transport: replyWith(faultResponse(
		`<member><name>faultCode</name><value><i4>1</i4></value></member>` +
			`<member><name>faultString</name><value>f</value></member>`)), Metrics: m}

	for i := 0; i < 3; i++ {
		_, err := ok.Call(NewRequest("m"))
		require.NoError(t, err)
	}
	_, err := fault.Call(NewRequest("m"))
	require.Error(t, err)

	assert.Equal(t, 2, promtest.CollectAndCount(m.calls))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.calls.WithLabelValues("m", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.calls.WithLabelValues("m", "fault")))
	assert.Equal(t, 1, promtest.CollectAndCount(m.duration))

	// nil metrics are ignored
	var none *Metrics
	none.observe("m", time.Now(), nil)
}
