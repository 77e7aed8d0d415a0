package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelara/easyxfer/internal/easy"
)

type recordingReporter struct {
	mu       sync.Mutex
	statuses []map[string]interface{}
}

func (r *recordingReporter) Report(status map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recordingReporter) last() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statuses[len(r.statuses)-1]
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestDownloadToDirectory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "file contents")
	}))
	defer srv.Close()

	dir := t.TempDir()
	reporter := &recordingReporter{}
	tr := New(Options{
		Source:         srv.URL + "/files/report.txt",
		Output:         dir,
		SHA256:         strings.ToUpper(sum("file contents")),
		StatusReporter: reporter,
	})
	info, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, info.ResponseCode)
	assert.Equal(t, filepath.Join(dir, "report.txt"), tr.OutputPath())

	got, err := os.ReadFile(tr.OutputPath())
	require.NoError(t, err)
	assert.Equal(t, "file contents", string(got))

	last := reporter.last()
	assert.Equal(t, "completed", last["status"])
	assert.Equal(t, "http", last["type"])
	assert.Equal(t, int64(13), last["downloaded"])
}

func TestChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "tampered")
	}))
	defer srv.Close()

	_, err := New(Options{
		Source: srv.URL,
		Output: filepath.Join(t.TempDir(), "out"),
		SHA256: sum("original"),
	}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHA256 mismatch")
}

func TestRetryResumesWithRange(t *testing.T) {
	var (
		mu     sync.Mutex
		ranges []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ranges = append(ranges, r.Header.Get("Range"))
		first := len(ranges) == 1
		mu.Unlock()
		if first {
			w.Header().Set("Content-Length", "10")
			w.Header().Set("Accept-Ranges", "bytes")
			io.WriteString(w, "0123")
			w.(http.Flusher).Flush()
			panic(http.ErrAbortHandler)
		}
		http.ServeContent(w, r, "digits", time.Time{}, strings.NewReader("0123456789"))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "digits")
	_, err := New(Options{
		Source:     srv.URL,
		Output:     out,
		Retries:    2,
		RetryDelay: time.Millisecond,
	}).Run(context.Background())
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(got))
	assert.Equal(t, []string{"", "bytes=4-"}, ranges)
}

func TestNoRetryOnHTTPError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	reporter := &recordingReporter{}
	_, err := New(Options{
		Source:         srv.URL,
		Output:         filepath.Join(t.TempDir(), "out"),
		FailOnError:    true,
		Retries:        3,
		RetryDelay:     time.Millisecond,
		StatusReporter: reporter,
	}).Run(context.Background())
	require.Error(t, err)

	var code easy.Code
	require.True(t, errors.As(err, &code))
	assert.Equal(t, easy.HTTPReturnedError, code)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "error", reporter.last()["status"])
}

func TestUploadFile(t *testing.T) {
	var received string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, int64(11), r.ContentLength)
		assert.Equal(t, "yes", r.Header.Get("X-Upload"))
		b, _ := io.ReadAll(r.Body)
		received = string(b)
		io.WriteString(w, "stored")
	}))
	defer srv.Close()

	src := filepath.Join(t.TempDir(), "payload")
	require.NoError(t, os.WriteFile(src, []byte("upload body"), 0o644))
	out := filepath.Join(t.TempDir(), "response")

	info, err := New(Options{
		Source:     srv.URL,
		Output:     out,
		UploadFile: src,
		Headers:    []string{"X-Upload: yes"},
	}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "upload body", received)
	assert.Equal(t, int64(11), info.SizeUpload)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "stored", string(got))
}

func TestPostData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		b, _ := io.ReadAll(r.Body)
		assert.Equal(t, "a=1&b=2", string(b))
	}))
	defer srv.Close()

	data := "a=1&b=2"
	_, err := New(Options{Source: srv.URL, Output: filepath.Join(t.TempDir(), "out"), Data: &data}).Run(context.Background())
	require.NoError(t, err)
}

func TestRemoteName(t *testing.T) {
	assert.Equal(t, "file.iso", remoteName("https://example.com/pub/file.iso"))
	assert.Equal(t, "download.tmp", remoteName("https://example.com/"))
	assert.Equal(t, "ubuntu.iso", remoteName("magnet:?xt=urn:btih:abc&dn=ubuntu.iso"))
}

func TestTransferType(t *testing.T) {
	assert.Equal(t, "http", transferType("https://example.com"))
	assert.Equal(t, "http", transferType("example.com/file"))
	assert.Equal(t, "smtp", transferType("smtps://mail.example.com"))
	assert.Equal(t, "torrent", transferType("magnet:?xt=urn:btih:abc"))
	assert.Equal(t, "file", transferType("file:///tmp/x"))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(easy.PartialFile))
	assert.True(t, retryable(easy.CouldntConnect))
	assert.False(t, retryable(easy.HTTPReturnedError))
	assert.False(t, retryable(easy.LoginDenied))
}
