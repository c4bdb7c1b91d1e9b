package xmlrpc

import (
	"fmt"
	"strings"
)

// trail records the location while a value is walked. It is only used for
// error messages.
type trail struct {
	frames []string
}

func newTrail(root string) *trail {
	return &trail{frames: []string{root}}
}

// push adds a frame. Every push must be paired with a deferred pop.
func (t *trail) push(format string, args ...interface{}) {
	t.frames = append(t.frames, fmt.Sprintf(format, args...))
}

func (t *trail) pop() {
	t.frames = t.frames[:len(t.frames)-1]
}

func (t *trail) String() string {
	return "[" + strings.Join(t.frames, " : ") + "]"
}

// errorf creates an error of the specified category at the current location.
func (t *trail) errorf(category error, format string, args ...interface{}) *Error {
	return &Error{
		Err:   category,
		Msg:   fmt.Sprintf(format, args...),
		Trail: t.String(),
	}
}
