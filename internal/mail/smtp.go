package mail

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/accelara/easyxfer/internal/easy"
	"github.com/accelara/easyxfer/internal/easyopt"
)

// SMTP delivers mail through a transfer handle. Hostname is a URL such
// as "smtps://smtp.gmail.com:465" or "smtp://localhost:25".
type SMTP struct {
	Hostname string
	Username string
	Password string

	// Verbose writes the protocol dialogue to Trace, or stderr when nil.
	Verbose bool
	Trace   io.Writer

	Log *logrus.Entry
}

// payload is the READDATA cursor handed to readPayload.
type payload struct {
	data []byte
	off  int
}

func readPayload(buffer []byte, size, nitems int, userdata any) int {
	p, ok := userdata.(*payload)
	if !ok {
		return easy.ReadFuncAbort
	}
	n := copy(buffer[:size*nitems], p.data[p.off:])
	p.off += n
	return n
}

// Send delivers m to every recipient in a single SMTP session.
func (s *SMTP) Send(ctx context.Context, m Mail) error {
	body, err := m.Payload()
	if err != nil {
		return err
	}

	h := easy.Init()
	defer h.Cleanup()

	var rcpts *easy.Slist
	for _, u := range m.Recipients() {
		rcpts = rcpts.Append(u.Email)
	}
	defer rcpts.FreeAll()

	url := s.Hostname
	from := m.From.Email
	var errBuf string
	cursor := &payload{data: body}

	codes := []easy.Code{
		easyopt.SetOptString(h, easy.OptURL, &url),
		easyopt.SetOptString(h, easy.OptMailFrom, &from),
		easyopt.SetOptSlist(h, easy.OptMailRcpt, rcpts),
		easyopt.SetOptFunc(h, easy.OptReadFunction, readPayload),
		easyopt.SetOptPointer(h, easy.OptReadData, cursor),
		easyopt.SetOptLong(h, easy.OptUpload, 1),
		easyopt.SetOptPointer(h, easy.OptErrorBuffer, &errBuf),
	}
	if s.Username != "" {
		user, pass := s.Username, s.Password
		codes = append(codes,
			easyopt.SetOptString(h, easy.OptUsername, &user),
			easyopt.SetOptString(h, easy.OptPassword, &pass))
	}
	if strings.HasPrefix(strings.ToLower(url), "smtp://") {
		codes = append(codes, easyopt.SetOptLong(h, easy.OptUseSSL, easy.UseSSLTry))
	}
	if s.Verbose {
		codes = append(codes, easyopt.SetOptLong(h, easy.OptVerbose, 1))
		if s.Trace != nil {
			codes = append(codes, easyopt.SetOptPointer(h, easy.OptStderr, s.Trace))
		}
	}
	for _, code := range codes {
		if code != easy.OK {
			return errors.Wrap(code, "configuring mail transfer")
		}
	}

	if code := h.Perform(ctx); code != easy.OK {
		if errBuf == "" {
			errBuf = easy.Strerror(code)
		}
		return errors.Wrapf(code, "mail sending failed: %s", errBuf)
	}
	if s.Log != nil {
		s.Log.WithFields(logrus.Fields{
			"subject":    m.Subject,
			"recipients": rcpts.Len(),
			"bytes":      len(body),
		}).Info("mail sent")
	}
	return nil
}
