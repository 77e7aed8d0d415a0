package easy

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// performFile reads a local file into the write callback, or with UPLOAD
// writes the read callback's data to it.
func performFile(t *transfer) error {
	path, err := filePath(t.url)
	if err != nil {
		return err
	}

	if t.s.flag(OptUpload) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fail(WriteError, "can't open %s for writing: %v", path, err)
		}
		src := t.source()
		if _, err := io.Copy(f, t.upload(src)); err != nil {
			_ = f.Close()
			if src.aborted {
				return fail(AbortedByCallback, "operation aborted by callback")
			}
			return fail(WriteError, "writing %s: %v", path, err)
		}
		return errors.Wrapf(f.Close(), "closing %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fail(FileCouldntReadFile, "couldn't open file %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fail(FileCouldntReadFile, "couldn't stat file %s", path)
	}
	if info.IsDir() {
		return fail(FileCouldntReadFile, "%s is a directory", path)
	}
	size := info.Size()
	if err := t.headerLine("Content-Length: " + strconv.FormatInt(size, 10)); err != nil {
		return err
	}
	if err := t.headerLine("Accept-ranges: bytes"); err != nil {
		return err
	}

	if from := t.s.long(OptResumeFrom, 0); from > 0 {
		if from > size {
			return fail(RangeError, "offset %d past end of file (%d bytes)", from, size)
		}
		if _, err := f.Seek(from, io.SeekStart); err != nil {
			return fail(FileCouldntReadFile, "seeking %s: %v", path, err)
		}
	}
	if t.s.flag(OptNoBody) {
		return nil
	}
	t.info.ContentType = "application/octet-stream"
	return t.receiveFrom(f)
}

func filePath(u *url.URL) (string, error) {
	if u.Host != "" && u.Host != "localhost" {
		return "", fail(URLMalformat, "file:// URL with remote host %q", u.Host)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	if path == "" {
		return "", fail(URLMalformat, "file:// URL without path")
	}
	return filepath.FromSlash(path), nil
}
