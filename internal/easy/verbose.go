package easy

import (
	"bytes"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Prefixes used for verbose output, as libcurl prints them.
const (
	dirInfo = "*"
	dirOut  = ">"
	dirIn   = "<"
)

// verboseFormatter renders entries as "<dir> message" lines.
type verboseFormatter struct{}

func (verboseFormatter) Format(e *logrus.Entry) ([]byte, error) {
	dir, _ := e.Data["dir"].(string)
	if dir == "" {
		dir = dirInfo
	}
	var b bytes.Buffer
	b.WriteString(dir)
	b.WriteByte(' ')
	b.WriteString(e.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// verboseLogger is a nil-safe wrapper so protocol code can log
// unconditionally.
type verboseLogger struct {
	l *logrus.Logger
}

func newVerboseLogger(s settings) *verboseLogger {
	if !s.flag(OptVerbose) {
		return &verboseLogger{}
	}
	out, ok := s.ptr(OptStderr).(io.Writer)
	if !ok {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(verboseFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return &verboseLogger{l: l}
}

func (v *verboseLogger) Infof(format string, args ...any) {
	if v.l == nil {
		return
	}
	v.l.Infof(format, args...)
}

// Out logs a line sent to the peer.
func (v *verboseLogger) Out(line string) {
	if v.l == nil {
		return
	}
	v.l.WithField("dir", dirOut).Info(line)
}

// In logs a line received from the peer.
func (v *verboseLogger) In(line string) {
	if v.l == nil {
		return
	}
	v.l.WithField("dir", dirIn).Info(line)
}
