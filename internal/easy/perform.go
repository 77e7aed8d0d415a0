package easy

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// protocol runs one transfer for a URL scheme.
type protocol func(t *transfer) error

var protocols = map[string]protocol{
	"http":   performHTTP,
	"https":  performHTTP,
	"smtp":   performSMTP,
	"smtps":  performSMTP,
	"file":   performFile,
	"magnet": performMagnet,
}

var (
	errAbortedByCallback = &codeError{code: AbortedByCallback, msg: "operation aborted by callback"}
	errBadRead           = &codeError{code: AbortedByCallback, msg: "read function returned funny value"}
)

// codeError carries the status a failure maps to.
type codeError struct {
	code Code
	msg  string
}

func (e *codeError) Error() string { return e.msg }

func fail(code Code, format string, args ...any) error {
	return &codeError{code: code, msg: fmt.Sprintf(format, args...)}
}

// Perform runs one transfer with the options currently set on h and
// blocks until it completes or ctx is done.
func (h *Handle) Perform(ctx context.Context) Code {
	if h == nil {
		return BadFunctionArgument
	}
	if !h.busy.CompareAndSwap(false, true) {
		return RecursiveAPICall
	}
	defer h.busy.Store(false)

	s, ok := h.snapshot()
	if !ok {
		return BadFunctionArgument
	}
	if ctx == nil {
		ctx = context.Background()
	}

	t := newTransfer(ctx, s)
	start := time.Now()
	err := t.run()
	t.info.TotalTime = time.Since(start)

	code := OK
	errText := ""
	if err != nil {
		code = classify(t.ctx, err)
		errText = err.Error()
		t.log.Infof("Closing connection: %s", errText)
		if buf, ok := s.ptr(OptErrorBuffer).(*string); ok && buf != nil {
			*buf = errText
		}
	}
	h.finish(t.info, errText)
	return code
}

// transfer holds per-Perform state derived from settings.
type transfer struct {
	ctx    context.Context
	cancel context.CancelFunc
	s      settings
	url    *url.URL
	log    *verboseLogger
	info   Info

	write  sink
	header sink

	recvLimit *rate.Limiter
	sendLimit *rate.Limiter
}

func newTransfer(ctx context.Context, s settings) *transfer {
	t := &transfer{s: s, log: newVerboseLogger(s)}

	timeout := time.Duration(s.long(OptTimeoutMS, 0)) * time.Millisecond
	if timeout == 0 {
		timeout = time.Duration(s.long(OptTimeout, 0)) * time.Second
	}
	if timeout > 0 {
		t.ctx, t.cancel = context.WithTimeout(ctx, timeout)
	} else {
		t.ctx, t.cancel = context.WithCancel(ctx)
	}

	t.write = sink{fn: s.fn(OptWriteFunction), userdata: s.ptr(OptWriteData)}
	if t.write.fn == nil {
		t.write.fn = defaultWrite
	}
	// Without a header function headers go to HEADERDATA when that is a
	// writer, and are dropped otherwise.
	t.header = sink{fn: s.fn(OptHeaderFunction), userdata: s.ptr(OptHeaderData)}
	if t.header.fn == nil {
		if _, ok := t.header.userdata.(io.Writer); ok {
			t.header.fn = defaultWrite
		}
	}

	if speed := s.long(OptMaxRecvSpeed, 0); speed > 0 {
		t.recvLimit = newLimiter(speed)
	}
	if speed := s.long(OptMaxSendSpeed, 0); speed > 0 {
		t.sendLimit = newLimiter(speed)
	}
	return t
}

func newLimiter(bytesPerSecond int64) *rate.Limiter {
	burst := int(bytesPerSecond)
	if burst < maxWriteSize {
		burst = maxWriteSize
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

func (t *transfer) run() error {
	defer t.cancel()

	raw := strings.TrimSpace(t.s.str(OptURL))
	if raw == "" {
		return fail(URLMalformat, "no URL set")
	}
	if !strings.Contains(raw, "://") && !strings.HasPrefix(strings.ToLower(raw), "magnet:") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fail(URLMalformat, "malformed URL %q: %v", raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if port := t.s.long(OptPort, 0); port > 0 && u.Host != "" {
		u.Host = net.JoinHostPort(u.Hostname(), strconv.FormatInt(port, 10))
	}
	t.url = u
	t.info.EffectiveURL = u.String()

	p, ok := protocols[u.Scheme]
	if !ok {
		return fail(UnsupportedProtocol, "protocol %q not supported", u.Scheme)
	}
	return p(t)
}

// receive hands body bytes to the write callback, honoring the receive
// speed limit.
func (t *transfer) receive(p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if n > maxWriteSize {
			n = maxWriteSize
		}
		if t.recvLimit != nil {
			if err := t.recvLimit.WaitN(t.ctx, n); err != nil {
				return t.ctxErr(err)
			}
		}
		if code := t.write.deliver(p[:n]); code != OK {
			return fail(code, "failure writing output to destination")
		}
		t.info.SizeDownload += int64(n)
		p = p[n:]
	}
	return nil
}

// receiveFrom copies r to the write callback until EOF.
func (t *transfer) receiveFrom(r io.Reader) error {
	buf := make([]byte, maxWriteSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := t.receive(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if cerr := t.ctx.Err(); cerr != nil {
				return t.ctxErr(cerr)
			}
			return errors.Wrap(err, "receiving body")
		}
	}
}

// headerLine hands one header line, CRLF terminated, to the header sink.
func (t *transfer) headerLine(line string) error {
	if t.header.fn == nil {
		return nil
	}
	if code := t.header.deliver([]byte(line + "\r\n")); code != OK {
		return fail(code, "failed writing header")
	}
	return nil
}

// source returns the upload body as an io.Reader.
func (t *transfer) source() *callbackReader {
	r := &callbackReader{fn: t.s.fn(OptReadFunction), userdata: t.s.ptr(OptReadData)}
	if r.fn == nil {
		r.fn = defaultRead
	}
	return r
}

// upload wraps r with the send speed limit and byte accounting.
func (t *transfer) upload(r io.Reader) io.Reader {
	return &uploadReader{t: t, r: r}
}

type uploadReader struct {
	t *transfer
	r io.Reader
}

func (u *uploadReader) Read(p []byte) (int, error) {
	if len(p) > maxWriteSize {
		p = p[:maxWriteSize]
	}
	n, err := u.r.Read(p)
	if n > 0 {
		u.t.info.SizeUpload += int64(n)
		if u.t.sendLimit != nil {
			if werr := u.t.sendLimit.WaitN(u.t.ctx, n); werr != nil {
				return n, u.t.ctxErr(werr)
			}
		}
	}
	return n, err
}

func (t *transfer) ctxErr(err error) error {
	if errors.Is(t.ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fail(OperationTimedOut, "operation timed out")
	}
	if errors.Is(t.ctx.Err(), context.Canceled) {
		return fail(AbortedByCallback, "transfer canceled")
	}
	return err
}

// classify maps a transfer failure to its status code.
func classify(ctx context.Context, err error) Code {
	var ce *codeError
	if errors.As(err, &ce) {
		return ce.code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return OperationTimedOut
	}
	if errors.Is(err, context.Canceled) {
		return AbortedByCallback
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return PartialFile
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CouldntResolveHost
	}
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) || errors.As(err, &verifyErr) {
		return PeerFailedVerification
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OperationTimedOut
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return CouldntConnect
	}
	return RecvError
}
