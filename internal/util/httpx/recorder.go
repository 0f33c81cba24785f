// Package httpx holds small net/http helpers shared by the middlewares.
package httpx

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// ErrHijackUnsupported is returned by Recorder.Hijack when the wrapped
// writer cannot hand over its connection.
var ErrHijackUnsupported = errors.New("response writer does not support hijacking")

// Recorder wraps an http.ResponseWriter and remembers the status sent to
// the client. A hijacked connection counts as 101 Switching Protocols.
type Recorder struct {
	http.ResponseWriter
	status   int
	wrote    bool
	hijacked bool
}

// NewRecorder wraps w. Status defaults to 200 until something is written.
func NewRecorder(w http.ResponseWriter) *Recorder {
	return &Recorder{ResponseWriter: w, status: http.StatusOK}
}

// Status returns the recorded status code.
func (r *Recorder) Status() int { return r.status }

// Hijacked reports whether the handler took over the connection.
func (r *Recorder) Hijacked() bool { return r.hijacked }

func (r *Recorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *Recorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

func (r *Recorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *Recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, ErrHijackUnsupported
	}
	conn, brw, err := hj.Hijack()
	if err != nil {
		return nil, nil, err
	}
	r.hijacked = true
	if !r.wrote {
		r.status = http.StatusSwitchingProtocols
		r.wrote = true
	}
	return conn, brw, nil
}

// Unwrap supports http.ResponseController.
func (r *Recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
