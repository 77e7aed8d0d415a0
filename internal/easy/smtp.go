package easy

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// performSMTP sends one message. Without UPLOAD it only greets and quits,
// which verifies connectivity and credentials.
func performSMTP(t *transfer) error {
	host := t.url.Hostname()
	port := t.url.Port()
	implicitTLS := t.url.Scheme == "smtps"
	if port == "" {
		port = "25"
		if implicitTLS {
			port = "465"
		}
	}

	connectTimeout := time.Duration(t.s.long(OptConnectTimeoutMS, 0)) * time.Millisecond
	if connectTimeout == 0 {
		connectTimeout = time.Duration(t.s.long(OptConnectTimeout, 0)) * time.Second
	}
	dialer := &net.Dialer{Timeout: connectTimeout}
	addr := net.JoinHostPort(host, port)
	t.log.Infof("Trying %s...", addr)
	conn, err := dialer.DialContext(t.ctx, "tcp", addr)
	if err != nil {
		return err
	}
	t.log.Infof("Connected to %s", addr)

	tlsConfig := &tls.Config{ServerName: host}
	if verify, set := t.s[OptSSLVerifyPeer].(int64); set && verify == 0 {
		tlsConfig.InsecureSkipVerify = true
	}
	if implicitTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	// The SMTP client has no context support; a done context unblocks it
	// through the connection deadline.
	stop := context.AfterFunc(t.ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return t.smtpErr(err, GotNothing, "reading server greeting")
	}
	defer c.Close()

	if localName := strings.Trim(t.url.Path, "/"); localName != "" {
		if err := c.Hello(localName); err != nil {
			return t.smtpErr(err, RecvError, "EHLO")
		}
	}

	if useSSL := t.s.long(OptUseSSL, UseSSLNone); !implicitTLS && useSSL > UseSSLNone {
		if ok, _ := c.Extension("STARTTLS"); ok {
			t.log.Out("STARTTLS")
			if err := c.StartTLS(tlsConfig); err != nil {
				return t.smtpErr(err, RecvError, "STARTTLS")
			}
		} else if useSSL >= UseSSLControl {
			return fail(UseSSLFailed, "STARTTLS not supported")
		}
	}

	if user, pass := t.smtpCredentials(); user != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return fail(LoginDenied, "no known authentication mechanisms supported")
		}
		t.log.Out("AUTH PLAIN")
		if err := c.Auth(smtp.PlainAuth(t.s.str(OptMailAuth), user, pass, host)); err != nil {
			return t.smtpErr(err, LoginDenied, "authentication")
		}
	}

	if !t.s.flag(OptUpload) {
		t.log.Out("QUIT")
		return t.smtpErr(c.Quit(), RecvError, "QUIT")
	}

	rcpts := t.s.list(OptMailRcpt).Strings()
	if len(rcpts) == 0 {
		return fail(SendError, "no recipients given")
	}
	from := bareAddress(t.s.str(OptMailFrom))
	t.log.Out("MAIL FROM:<" + from + ">")
	if err := c.Mail(from); err != nil {
		return t.smtpErr(err, SendError, "MAIL FROM")
	}
	for _, rcpt := range rcpts {
		t.log.Out("RCPT TO:<" + bareAddress(rcpt) + ">")
		if err := c.Rcpt(bareAddress(rcpt)); err != nil {
			return t.smtpErr(err, SendError, "RCPT TO")
		}
	}

	t.log.Out("DATA")
	w, err := c.Data()
	if err != nil {
		return t.smtpErr(err, SendError, "DATA")
	}
	src := t.source()
	if _, err := io.Copy(w, t.upload(src)); err != nil {
		if src.aborted {
			return fail(AbortedByCallback, "operation aborted by callback")
		}
		return t.smtpErr(err, SendError, "sending message")
	}
	if err := w.Close(); err != nil {
		return t.smtpErr(err, SendError, "end of data")
	}
	t.info.ResponseCode = 250

	t.log.Out("QUIT")
	return t.smtpErr(c.Quit(), RecvError, "QUIT")
}

func (t *transfer) smtpCredentials() (string, string) {
	if user := t.s.str(OptUsername); user != "" {
		return user, t.s.str(OptPassword)
	}
	if userpwd := t.s.str(OptUserPwd); userpwd != "" {
		user, pass, _ := strings.Cut(userpwd, ":")
		return user, pass
	}
	if t.url.User != nil {
		pass, _ := t.url.User.Password()
		return t.url.User.Username(), pass
	}
	return "", ""
}

// smtpErr maps a dialogue failure to code, keeping timeouts and
// cancellation distinguishable.
func (t *transfer) smtpErr(err error, code Code, step string) error {
	if err == nil {
		return nil
	}
	if cerr := t.ctx.Err(); cerr != nil {
		return t.ctxErr(cerr)
	}
	var ce *codeError
	if errors.As(err, &ce) {
		return err
	}
	return fail(code, "%s failed: %v", step, err)
}

// bareAddress strips surrounding angle brackets and whitespace.
func bareAddress(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '<'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(s, ">")
}
