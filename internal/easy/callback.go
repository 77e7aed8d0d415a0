package easy

import (
	"io"
	"os"
)

// Callback is the fixed signature shared by the write, read and header
// functions. buffer holds size*nitems bytes; the return value is the
// number of bytes consumed (write/header) or produced (read).
type Callback func(buffer []byte, size, nitems int, userdata any) int

// ReadFuncAbort returned from a read callback aborts the transfer.
const ReadFuncAbort = 0x10000000

// maxWriteSize is the largest chunk handed to a write callback.
const maxWriteSize = 16 * 1024

// asCallback accepts the named type and plain function literals of the
// same signature.
func asCallback(param any) (Callback, bool) {
	switch fn := param.(type) {
	case nil:
		return nil, true
	case Callback:
		return fn, true
	case func([]byte, int, int, any) int:
		return fn, true
	default:
		return nil, false
	}
}

func defaultWrite(buffer []byte, size, nitems int, userdata any) int {
	w, ok := userdata.(io.Writer)
	if !ok {
		w = os.Stdout
	}
	n, err := w.Write(buffer[:size*nitems])
	if err != nil {
		return 0
	}
	return n
}

func defaultRead(buffer []byte, size, nitems int, userdata any) int {
	r, ok := userdata.(io.Reader)
	if !ok {
		r = os.Stdin
	}
	n, err := r.Read(buffer[:size*nitems])
	if n == 0 && err != nil && err != io.EOF {
		return ReadFuncAbort
	}
	return n
}

// sink feeds received bytes to a write callback in bounded chunks.
type sink struct {
	fn       Callback
	userdata any
}

func (s sink) deliver(p []byte) Code {
	for len(p) > 0 {
		n := len(p)
		if n > maxWriteSize {
			n = maxWriteSize
		}
		if got := s.fn(p[:n], 1, n, s.userdata); got != n {
			return WriteError
		}
		p = p[n:]
	}
	return OK
}

// callbackReader adapts a read callback to io.Reader for protocol code.
type callbackReader struct {
	fn       Callback
	userdata any
	aborted  bool
	read     int64
}

func (r *callbackReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := r.fn(p, 1, len(p), r.userdata)
	switch {
	case n == ReadFuncAbort:
		r.aborted = true
		return 0, errAbortedByCallback
	case n < 0 || n > len(p):
		r.aborted = true
		return 0, errBadRead
	case n == 0:
		return 0, io.EOF
	}
	r.read += int64(n)
	return n, nil
}
