package easy

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const defaultMaxRedirs = 30

var errTooManyRedirects = &codeError{code: TooManyRedirects, msg: "maximum redirects followed"}

func performHTTP(t *transfer) error {
	client, err := t.httpClient()
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	req, src, err := t.httpRequest()
	if err != nil {
		return err
	}

	t.log.Infof("Trying %s...", req.URL.Host)
	t.log.Out(fmt.Sprintf("%s %s HTTP/1.1", req.Method, req.URL.RequestURI()))
	for _, line := range headerLines(req.Header) {
		t.log.Out(line)
	}

	resp, err := client.Do(req)
	if err != nil {
		if src != nil && src.aborted {
			return fail(AbortedByCallback, "operation aborted by callback")
		}
		return errors.Wrapf(err, "requesting %s", req.URL.Redacted())
	}
	defer resp.Body.Close()
	if src != nil && src.aborted {
		return fail(AbortedByCallback, "operation aborted by callback")
	}

	t.info.ResponseCode = resp.StatusCode
	t.info.EffectiveURL = resp.Request.URL.String()
	t.info.ContentType = resp.Header.Get("Content-Type")

	status := fmt.Sprintf("HTTP/%d.%d %s", resp.ProtoMajor, resp.ProtoMinor, resp.Status)
	t.log.In(status)
	if err := t.headerLine(status); err != nil {
		return err
	}
	for _, line := range headerLines(resp.Header) {
		t.log.In(line)
		if err := t.headerLine(line); err != nil {
			return err
		}
	}
	if err := t.headerLine(""); err != nil {
		return err
	}

	if t.s.flag(OptFailOnError) && resp.StatusCode >= 400 {
		return fail(HTTPReturnedError, "The requested URL returned error: %d", resp.StatusCode)
	}
	if t.s.long(OptResumeFrom, 0) > 0 && resp.StatusCode == http.StatusOK {
		return fail(RangeError, "HTTP server doesn't seem to support byte ranges. Cannot resume.")
	}
	if req.Method == http.MethodHead {
		return nil
	}
	return t.receiveFrom(resp.Body)
}

func (t *transfer) httpClient() (*http.Client, error) {
	connectTimeout := time.Duration(t.s.long(OptConnectTimeoutMS, 0)) * time.Millisecond
	if connectTimeout == 0 {
		connectTimeout = time.Duration(t.s.long(OptConnectTimeout, 0)) * time.Second
	}
	dialer := &net.Dialer{Timeout: connectTimeout}

	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DialContext:       dialer.DialContext,
		ForceAttemptHTTP2: true,
	}
	if proxy := t.s.str(OptProxy); proxy != "" {
		if !strings.Contains(proxy, "://") {
			proxy = "http://" + proxy
		}
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fail(CouldntResolveProxy, "bad proxy %q: %v", proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	if verify, set := t.s[OptSSLVerifyPeer].(int64); set && verify == 0 {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	follow := t.s.flag(OptFollowLocation)
	maxRedirs := t.s.long(OptMaxRedirs, defaultMaxRedirs)
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if !follow {
				return http.ErrUseLastResponse
			}
			if maxRedirs >= 0 && int64(len(via)) > maxRedirs {
				return errTooManyRedirects
			}
			t.info.RedirectCount = len(via)
			t.log.Infof("Issue another request to this URL: '%s'", req.URL.Redacted())
			return nil
		},
	}
	return client, nil
}

func (t *transfer) httpRequest() (*http.Request, *callbackReader, error) {
	method := http.MethodGet
	var body io.Reader
	var src *callbackReader
	contentLength := int64(-1)

	postFields, hasPostFields := t.s[OptPostFields].(string)
	switch {
	case t.s.flag(OptNoBody):
		method = http.MethodHead
	case t.s.flag(OptUpload):
		method = http.MethodPut
		src = t.source()
		body = t.upload(src)
		contentLength = t.s.long(OptInFileSize, -1)
	case hasPostFields:
		method = http.MethodPost
		if size := t.s.long(OptPostFieldSize, -1); size >= 0 && size < int64(len(postFields)) {
			postFields = postFields[:size]
		}
		body = t.upload(strings.NewReader(postFields))
		contentLength = int64(len(postFields))
	case t.s.flag(OptPost):
		method = http.MethodPost
		src = t.source()
		body = t.upload(src)
		contentLength = t.s.long(OptPostFieldSize, -1)
	}
	if custom := t.s.str(OptCustomRequest); custom != "" {
		method = custom
	}

	req, err := http.NewRequestWithContext(t.ctx, method, t.url.String(), body)
	if err != nil {
		return nil, nil, fail(URLMalformat, "%v", err)
	}
	if body != nil {
		req.ContentLength = contentLength
		if contentLength == 0 {
			req.Body = http.NoBody
		}
	}
	if hasPostFields && method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	ua := t.s.str(OptUserAgent)
	if ua == "" {
		ua = "easyxfer/" + Version()
	}
	req.Header.Set("User-Agent", ua)
	if referer := t.s.str(OptReferer); referer != "" {
		req.Header.Set("Referer", referer)
	}

	if user := t.s.str(OptUsername); user != "" {
		req.SetBasicAuth(user, t.s.str(OptPassword))
	} else if userpwd := t.s.str(OptUserPwd); userpwd != "" {
		user, pass, _ := strings.Cut(userpwd, ":")
		req.SetBasicAuth(user, pass)
	}

	if r := t.s.str(OptRange); r != "" {
		req.Header.Set("Range", "bytes="+r)
	} else if from := t.s.long(OptResumeFrom, 0); from > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(from, 10)+"-")
	}

	// Custom headers come last so they override the defaults above.
	// "Name:" removes a header, "Name;" sends it empty.
	for _, line := range t.s.list(OptHTTPHeader).Strings() {
		if name, ok := strings.CutSuffix(line, ";"); ok && !strings.Contains(name, ":") {
			req.Header[http.CanonicalHeaderKey(strings.TrimSpace(name))] = []string{""}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if value == "" {
			req.Header.Del(name)
			continue
		}
		if strings.EqualFold(name, "Host") {
			req.Host = value
			continue
		}
		req.Header.Set(name, value)
	}
	return req, src, nil
}

// headerLines renders h as sorted "Name: value" lines.
func headerLines(h http.Header) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var lines []string
	for _, k := range keys {
		for _, v := range h[k] {
			lines = append(lines, k+": "+v)
		}
	}
	return lines
}
