package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/accelara/easyxfer/internal/easy"
	"github.com/accelara/easyxfer/internal/easyopt"
)

const (
	maxBackoff     = 30 * time.Second
	reportInterval = 100 * time.Millisecond
)

// Transfer runs one download, upload or mail submission on a handle
// configured through the easyopt setters.
type Transfer struct {
	opts     Options
	reporter StatusReporter

	out     io.Writer
	outFile *os.File
	outPath string

	offset       int64 // resume offset of the current attempt
	written      int64
	total        int64
	acceptRanges bool

	upload     *os.File
	uploadSize int64
	uploaded   int64

	lastReport   time.Time
	lastReported int64
}

func New(opts Options) *Transfer {
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Second
	}
	return &Transfer{opts: opts, reporter: opts.StatusReporter, total: -1}
}

// OutputPath returns the file the body is written to, or "" for stdout.
func (t *Transfer) OutputPath() string {
	return t.outPath
}

// Run performs the transfer, retrying transient failures, and returns
// the handle's info for the final attempt.
func (t *Transfer) Run(ctx context.Context) (easy.Info, error) {
	if t.opts.Source == "" {
		return easy.Info{}, errors.New("source is required")
	}
	if err := t.openOutput(); err != nil {
		return easy.Info{}, err
	}
	defer t.closeFiles()
	if err := t.openUpload(); err != nil {
		return easy.Info{}, err
	}

	h := easy.Init()
	defer h.Cleanup()

	var errBuf string
	free, err := t.configure(h, &errBuf)
	defer free()
	if err != nil {
		return easy.Info{}, err
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			if err := t.prepareRetry(h); err != nil {
				return h.Info(), err
			}
		}
		code := h.Perform(ctx)
		if code == easy.OK {
			break
		}
		if errBuf == "" {
			errBuf = easy.Strerror(code)
		}
		if !retryable(code) || attempt >= t.opts.Retries || ctx.Err() != nil {
			t.report(map[string]interface{}{
				"status":  "error",
				"code":    int(code),
				"message": errBuf,
			})
			return h.Info(), errors.Wrapf(code, "transfer failed: %s", errBuf)
		}

		backoff := t.opts.RetryDelay << uint(attempt)
		if backoff > maxBackoff || backoff <= 0 {
			backoff = maxBackoff
		}
		t.report(map[string]interface{}{
			"status":  "retrying",
			"message": fmt.Sprintf("%s, retrying in %v... (attempt %d/%d)", errBuf, backoff, attempt+1, t.opts.Retries),
		})
		errBuf = ""
		select {
		case <-ctx.Done():
			return h.Info(), errors.Wrap(ctx.Err(), "transfer interrupted")
		case <-time.After(backoff):
		}
	}

	if t.outFile != nil {
		if err := t.outFile.Sync(); err != nil {
			return h.Info(), errors.Wrapf(err, "syncing %s", t.outPath)
		}
	}
	if t.opts.SHA256 != "" && t.outPath != "" {
		t.report(map[string]interface{}{"status": "verifying", "progress": 1.0})
		if err := verifySHA256(t.outPath, t.opts.SHA256); err != nil {
			return h.Info(), err
		}
	}

	info := h.Info()
	t.report(map[string]interface{}{
		"status":        "completed",
		"progress":      1.0,
		"response_code": info.ResponseCode,
		"downloaded":    t.offset + t.written,
		"uploaded":      info.SizeUpload,
		"effective_url": info.EffectiveURL,
		"elapsed":       info.TotalTime.Seconds(),
	})
	return info, nil
}

// setter records the first failing option.
type setter struct {
	h    *easy.Handle
	code easy.Code
	opt  easy.Option
}

func (s *setter) check(opt easy.Option, code easy.Code) {
	if s.code == easy.OK && code != easy.OK {
		s.code, s.opt = code, opt
	}
}

func (s *setter) str(opt easy.Option, v string) {
	s.check(opt, easyopt.SetOptString(s.h, opt, &v))
}

func (s *setter) long(opt easy.Option, v int64) {
	s.check(opt, easyopt.SetOptLong(s.h, opt, v))
}

func (s *setter) fn(opt easy.Option, cb easy.Callback) {
	s.check(opt, easyopt.SetOptFunc(s.h, opt, cb))
}

func (s *setter) ptr(opt easy.Option, v any) {
	s.check(opt, easyopt.SetOptPointer(s.h, opt, v))
}

func (s *setter) list(opt easy.Option, l *easy.Slist) {
	s.check(opt, easyopt.SetOptSlist(s.h, opt, l))
}

func (s *setter) err() error {
	if s.code == easy.OK {
		return nil
	}
	return errors.Wrapf(s.code, "setting %s", s.opt)
}

func (t *Transfer) configure(h *easy.Handle, errBuf *string) (func(), error) {
	o := t.opts
	s := &setter{h: h}
	var lists []*easy.Slist
	free := func() {
		for _, l := range lists {
			l.FreeAll()
		}
	}

	s.str(easy.OptURL, o.Source)
	s.ptr(easy.OptErrorBuffer, errBuf)
	s.fn(easy.OptWriteFunction, writeBody)
	s.ptr(easy.OptWriteData, t)
	s.fn(easy.OptHeaderFunction, readHeader)
	s.ptr(easy.OptHeaderData, t)
	s.ptr(easy.OptPrivate, o.TransferID)

	if o.RateLimit > 0 {
		s.long(easy.OptMaxRecvSpeed, o.RateLimit)
	}
	if o.UploadLimit > 0 {
		s.long(easy.OptMaxSendSpeed, o.UploadLimit)
	}
	if o.Proxy != "" {
		s.str(easy.OptProxy, o.Proxy)
	}
	if o.ConnectTimeout > 0 {
		s.long(easy.OptConnectTimeout, int64(o.ConnectTimeout))
	}
	if o.Timeout > 0 {
		s.long(easy.OptTimeout, int64(o.Timeout))
	}
	if len(o.Headers) > 0 {
		headers := easy.NewSlist(o.Headers...)
		lists = append(lists, headers)
		s.list(easy.OptHTTPHeader, headers)
	}
	if o.Data != nil {
		s.check(easy.OptPostFields, easyopt.SetOptString(h, easy.OptPostFields, o.Data))
	}
	if o.User != "" {
		s.str(easy.OptUserPwd, o.User)
	}
	if o.MailFrom != "" {
		s.str(easy.OptMailFrom, o.MailFrom)
	}
	if len(o.MailRcpt) > 0 {
		rcpts := easy.NewSlist(o.MailRcpt...)
		lists = append(lists, rcpts)
		s.list(easy.OptMailRcpt, rcpts)
		s.long(easy.OptUseSSL, easy.UseSSLTry)
	}
	if t.upload != nil {
		s.long(easy.OptUpload, 1)
		s.fn(easy.OptReadFunction, readUpload)
		s.ptr(easy.OptReadData, t)
		s.long(easy.OptInFileSize, t.uploadSize)
	}
	if o.FollowLocation {
		s.long(easy.OptFollowLocation, 1)
	}
	if o.FailOnError {
		s.long(easy.OptFailOnError, 1)
	}
	if o.Insecure {
		s.long(easy.OptSSLVerifyPeer, 0)
	}
	if o.HeadOnly {
		s.long(easy.OptNoBody, 1)
	}
	if o.Verbose {
		s.long(easy.OptVerbose, 1)
	}
	return free, s.err()
}

// prepareRetry resumes where the last attempt stopped when the server
// supports ranges, and starts over otherwise.
func (t *Transfer) prepareRetry(h *easy.Handle) error {
	if t.upload != nil {
		if _, err := t.upload.Seek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, "rewinding upload")
		}
		t.uploaded = 0
	}
	got := t.offset + t.written
	if got > 0 && t.acceptRanges && t.outFile != nil && t.upload == nil {
		t.offset, t.written = got, 0
		return easyopt.SetOptLong(h, easy.OptResumeFrom, got).Err()
	}
	if got > 0 {
		if t.outFile == nil {
			return errors.New("cannot retry: partial output already written to stdout")
		}
		if err := t.outFile.Truncate(0); err != nil {
			return errors.Wrapf(err, "truncating %s", t.outPath)
		}
		if _, err := t.outFile.Seek(0, io.SeekStart); err != nil {
			return errors.Wrapf(err, "rewinding %s", t.outPath)
		}
	}
	t.offset, t.written = 0, 0
	return easyopt.SetOptLong(h, easy.OptResumeFrom, 0).Err()
}

func retryable(code easy.Code) bool {
	switch code {
	case easy.CouldntConnect, easy.OperationTimedOut, easy.RecvError,
		easy.SendError, easy.GotNothing, easy.PartialFile:
		return true
	}
	return false
}

func (t *Transfer) openOutput() error {
	if t.opts.Output == "" || t.opts.Output == "-" {
		t.out = os.Stdout
		return nil
	}
	outPath, err := filepath.Abs(t.opts.Output)
	if err != nil {
		return errors.Wrap(err, "resolving output path")
	}
	if info, err := os.Stat(outPath); err == nil && info.IsDir() {
		outPath = filepath.Join(outPath, remoteName(t.opts.Source))
	}
	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	t.out, t.outFile, t.outPath = f, f, outPath
	return nil
}

func (t *Transfer) openUpload() error {
	if t.opts.UploadFile == "" {
		return nil
	}
	f, err := os.Open(t.opts.UploadFile)
	if err != nil {
		return errors.Wrap(err, "opening upload file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return errors.Wrap(err, "reading upload file")
	}
	t.upload, t.uploadSize = f, info.Size()
	return nil
}

func (t *Transfer) closeFiles() {
	if t.outFile != nil {
		t.outFile.Close()
	}
	if t.upload != nil {
		t.upload.Close()
	}
}

// remoteName picks a local file name for src, like a browser would.
func remoteName(src string) string {
	if u, err := url.Parse(src); err == nil {
		if dn := u.Query().Get("dn"); u.Scheme == "magnet" && dn != "" {
			return filepath.Base(dn)
		}
		if base := path.Base(u.Path); base != "." && base != "/" && base != "" {
			return base
		}
	}
	return "download.tmp"
}

func writeBody(buffer []byte, size, nitems int, userdata any) int {
	t := userdata.(*Transfer)
	n, err := t.out.Write(buffer[:size*nitems])
	t.written += int64(n)
	if err != nil {
		return 0
	}
	t.progress("downloading", t.offset+t.written, t.total)
	return n
}

func readUpload(buffer []byte, size, nitems int, userdata any) int {
	t := userdata.(*Transfer)
	n, err := t.upload.Read(buffer[:size*nitems])
	if n == 0 && err != nil && err != io.EOF {
		return easy.ReadFuncAbort
	}
	t.uploaded += int64(n)
	t.progress("uploading", t.uploaded, t.uploadSize)
	return n
}

// readHeader tracks the size and range support of the current response.
func readHeader(buffer []byte, size, nitems int, userdata any) int {
	t := userdata.(*Transfer)
	line := strings.TrimRight(string(buffer[:size*nitems]), "\r\n")
	if strings.HasPrefix(line, "HTTP/") {
		t.total, t.acceptRanges = -1, false
		return size * nitems
	}
	name, value, ok := strings.Cut(line, ":")
	if !ok {
		return size * nitems
	}
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "content-length":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			t.total = t.offset + n
		}
	case "accept-ranges":
		t.acceptRanges = strings.EqualFold(value, "bytes")
	}
	return size * nitems
}

func (t *Transfer) progress(status string, done, total int64) {
	if t.reporter == nil {
		return
	}
	now := time.Now()
	if now.Sub(t.lastReport) < reportInterval {
		return
	}
	elapsed := now.Sub(t.lastReport).Seconds()
	if t.lastReport.IsZero() || done < t.lastReported {
		elapsed, t.lastReported = 0, done
	}
	speed := float64(0)
	if elapsed > 0 {
		speed = float64(done-t.lastReported) / elapsed
	}
	data := map[string]interface{}{
		"status":     status,
		"downloaded": done,
		"speed":      int64(speed),
	}
	if total > 0 {
		// Ensure progress never exceeds 1.0
		progress := float64(done) / float64(total)
		if progress > 1.0 {
			progress = 1.0
		}
		data["progress"] = progress
		data["total"] = total
		if speed > 0 && done < total {
			data["eta"] = float64(total-done) / speed
		}
	}
	t.report(data)
	t.lastReport, t.lastReported = now, done
}

func (t *Transfer) report(data map[string]interface{}) {
	if t.reporter == nil {
		return
	}
	if _, ok := data["type"]; !ok {
		data["type"] = transferType(t.opts.Source)
	}
	if t.opts.SHA256 != "" {
		data["sha256"] = t.opts.SHA256
	}
	t.reporter.Report(data)
}

func transferType(src string) string {
	scheme, _, ok := strings.Cut(src, "://")
	if strings.HasPrefix(strings.ToLower(src), "magnet:") {
		return "torrent"
	}
	if !ok {
		return "http"
	}
	switch scheme = strings.ToLower(scheme); scheme {
	case "https":
		return "http"
	case "smtps":
		return "smtp"
	}
	return scheme
}

func verifySHA256(path, want string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return errors.Wrapf(err, "hashing %s", path)
	}
	computed := hex.EncodeToString(hash.Sum(nil))

	if !strings.EqualFold(computed, want) {
		return errors.Errorf("SHA256 mismatch: expected %s, got %s", want, computed)
	}
	return nil
}
