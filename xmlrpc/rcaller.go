package xmlrpc

import (
	"errors"
	"time"

	"github.com/mdzio/go-lib/conc"
)

// RetryingCaller repeats failed calls. Faults reported by the server are not
// retried.
type RetryingCaller struct {
	// Caller that is called multiple times if it returns an error.
	Caller Caller

	// Number of retries. 0 disables retries.
	RetryCount int

	// Delay between retries.
	RetryDelay time.Duration

	// The repeated calls can be cancelled with this context.
	Context conc.Context
}

// Call implements Caller.
func (c *RetryingCaller) Call(req *Request) (interface{}, error) {
	// retry counter
	rcnt := 0
	for {
		// try a call
		res, err := c.Caller.Call(req)
		// on success or fault, return
		if err == nil || errors.Is(err, ErrFault) {
			return res, err
		}
		// give up when the retries have been used up
		rcnt++
		if rcnt > c.RetryCount {
			return nil, err
		}
		clnLog.Warningf("Call of method %s failed, retry in %s: %v", req.Method, c.RetryDelay, err)
		// wait before the next call
		if c.Context.Sleep(c.RetryDelay) != nil {
			// return last error
			return nil, err
		}
	}
}
