package easy

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/anacrolix/torrent"
)

// performMagnet fetches the first file of a magnet link's torrent and
// streams it to the write callback. Metadata and pieces are kept in a
// temporary directory removed when the transfer ends.
func performMagnet(t *transfer) error {
	dataDir, err := os.MkdirTemp("", "easyxfer-magnet-")
	if err != nil {
		return fail(FailedInit, "creating torrent data dir: %v", err)
	}
	defer os.RemoveAll(dataDir)

	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = dataDir
	cfg.ListenPort = 0
	cfg.Seed = false
	// The torrent client owns piece throttling; bytes already verified on
	// disk are not throttled a second time on their way to the callback.
	if t.recvLimit != nil {
		cfg.DownloadRateLimiter = t.recvLimit
		t.recvLimit = nil
	}
	if t.sendLimit != nil {
		cfg.UploadRateLimiter = t.sendLimit
	}

	client, err := torrent.NewClient(cfg)
	if err != nil {
		return fail(FailedInit, "failed to create torrent client: %v", err)
	}
	defer client.Close()

	tor, err := client.AddMagnet(t.url.String())
	if err != nil {
		return fail(URLMalformat, "failed to add magnet: %v", err)
	}
	defer tor.Drop()

	t.log.Infof("Waiting for metadata of %s", tor.InfoHash().HexString())
	select {
	case <-tor.GotInfo():
	case <-t.ctx.Done():
		return t.ctxErr(t.ctx.Err())
	}

	info := tor.Info()
	files := tor.Files()
	if info == nil || len(files) == 0 {
		return fail(GotNothing, "failed to get torrent info")
	}
	f := files[0]
	t.log.Infof("Torrent %q: %d file(s), fetching %s", info.Name, len(files), f.DisplayPath())
	t.info.EffectiveURL = t.url.String()

	if err := t.headerLine("Content-Length: " + strconv.FormatInt(f.Length(), 10)); err != nil {
		return err
	}
	if err := t.headerLine(`Content-Disposition: attachment; filename="` + f.DisplayPath() + `"`); err != nil {
		return err
	}
	if t.s.flag(OptNoBody) {
		return nil
	}

	f.Download()
	r := f.NewReader()
	defer r.Close()
	r.SetResponsive()

	if from := t.s.long(OptResumeFrom, 0); from > 0 {
		if from > f.Length() {
			return fail(RangeError, "offset %d past end of file (%d bytes)", from, f.Length())
		}
		if _, err := r.Seek(from, io.SeekStart); err != nil {
			return fail(RangeError, "seeking: %v", err)
		}
	}

	stop := context.AfterFunc(t.ctx, func() {
		_ = r.Close()
	})
	defer stop()

	if err := t.receiveFrom(r); err != nil {
		return err
	}
	t.info.ResponseCode = 200
	return nil
}
