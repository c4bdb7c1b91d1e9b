package xmlrpc

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/mdzio/go-logging"
)

// max. size of a valid request, if not specified: 10 MB
const requestSizeLimit = 10 * 1024 * 1024

var svrLog = logging.Get("xmlrpc-server")

// Handler implements a http.Handler which can handle XML-RPC requests. Remote
// calls are dispatched to the registered Method's.
type Handler struct {
	RequestSizeLimit int64
	// Config controls the parsing of requests and the generation of
	// responses.
	Config Config
	Dispatcher
}

// toMethodError converts an error of a method to a fault. Errors other than
// *MethodError get the fault code -1.
func toMethodError(err error) *MethodError {
	var me *MethodError
	if errors.As(err, &me) {
		return me
	}
	return &MethodError{Code: -1, Message: err.Error()}
}

func (h *Handler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	svrLog.Tracef("Request received from %s, URI %s", req.RemoteAddr, req.RequestURI)

	// read request
	limit := h.RequestSizeLimit
	if limit == 0 {
		limit = requestSizeLimit
	}
	reqLimitReader := http.MaxBytesReader(resp, req.Body, limit)
	reqBuf, err := io.ReadAll(reqLimitReader)
	if err != nil {
		svrLog.Errorf("Reading of request failed from %s: %v", req.RemoteAddr, err)
		http.Error(resp, "Reading of request failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if svrLog.TraceEnabled() {
		svrLog.Tracef("Request XML: %s", string(reqBuf))
	}

	// decode request
	codec := &Codec{Config: h.Config}
	var res interface{}
	call, err := codec.DecodeRequest(bytes.NewReader(reqBuf), h.Dispatcher)
	switch {
	case errors.Is(err, ErrIllFormedDocument) || errors.Is(err, ErrInvalidDocument):
		svrLog.Errorf("Decoding of request from %s failed: %v", req.RemoteAddr, err)
		http.Error(resp, "Decoding of request failed: "+err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		// arguments do not match the signature
		res = toMethodError(err)
	default:
		// dispatch call
		res, err = h.Dispatch(call.Method, call.Args)
		if err != nil {
			res = toMethodError(err)
		}
	}
	if f, ok := res.(*MethodError); ok {
		svrLog.Warningf("Sending error response to %s: %v", req.RemoteAddr, f)
	}

	// encode response
	var respBuf bytes.Buffer
	err = codec.EncodeResponse(&respBuf, res)
	if err != nil {
		svrLog.Errorf("Encoding of response for %s failed: %v", req.RemoteAddr, err)
		http.Error(resp, "Encoding of response failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if svrLog.TraceEnabled() {
		svrLog.Tracef("Response XML: %s", respBuf.String())
	}

	// send response
	resp.Header().Set("Content-Type", "text/xml")
	resp.Header().Set("Content-Length", strconv.Itoa(respBuf.Len()))
	_, err = resp.Write(respBuf.Bytes())
	if err != nil {
		svrLog.Warningf("Sending of response for %s failed: %v", req.RemoteAddr, err)
		return
	}
}
