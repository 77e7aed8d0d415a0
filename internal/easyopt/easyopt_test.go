package easyopt

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accelara/easyxfer/internal/easy"
)

func strptr(s string) *string { return &s }

func noopCallback(buffer []byte, size, nitems int, userdata any) int { return size * nitems }

// pair runs the same call through a setter and through easy.SetOpt on
// two fresh handles and returns both handles and codes.
func pair(t *testing.T, viaFacade func(*easy.Handle) easy.Code, direct func(*easy.Handle) easy.Code) (*easy.Handle, *easy.Handle) {
	t.Helper()
	a, b := easy.Init(), easy.Init()
	t.Cleanup(a.Cleanup)
	t.Cleanup(b.Cleanup)
	assert.Equal(t, direct(b), viaFacade(a))
	return a, b
}

func TestSetOptStringMatchesGeneric(t *testing.T) {
	cases := []struct {
		name  string
		opt   easy.Option
		value *string
	}{
		{"url", easy.OptURL, strptr("https://example.com")},
		{"empty", easy.OptUserAgent, strptr("")},
		{"unset", easy.OptURL, nil},
		{"wrong shape", easy.OptTimeout, strptr("5")},
		{"unknown option", easy.Option(999), strptr("x")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := pair(t,
				func(h *easy.Handle) easy.Code { return SetOptString(h, tc.opt, tc.value) },
				func(h *easy.Handle) easy.Code { return easy.SetOpt(h, tc.opt, tc.value) })
			va, oka := a.Value(tc.opt)
			vb, okb := b.Value(tc.opt)
			assert.Equal(t, okb, oka)
			assert.Equal(t, vb, va)
		})
	}
}

func TestSetOptFuncMatchesGeneric(t *testing.T) {
	for _, opt := range []easy.Option{easy.OptWriteFunction, easy.OptReadFunction, easy.OptURL} {
		a, b := pair(t,
			func(h *easy.Handle) easy.Code { return SetOptFunc(h, opt, noopCallback) },
			func(h *easy.Handle) easy.Code { return easy.SetOpt(h, opt, easy.Callback(noopCallback)) })
		va, oka := a.Value(opt)
		vb, okb := b.Value(opt)
		require.Equal(t, okb, oka, opt.String())
		if oka {
			assert.Equal(t, 8, va.(easy.Callback)(make([]byte, 8), 1, 8, nil))
			assert.Equal(t, 8, vb.(easy.Callback)(make([]byte, 8), 1, 8, nil))
		}
	}
}

func TestSetOptPointerMatchesGeneric(t *testing.T) {
	var buf bytes.Buffer
	for _, opt := range []easy.Option{easy.OptWriteData, easy.OptPrivate, easy.OptVerbose} {
		a, b := pair(t,
			func(h *easy.Handle) easy.Code { return SetOptPointer(h, opt, &buf) },
			func(h *easy.Handle) easy.Code { return easy.SetOpt(h, opt, &buf) })
		va, oka := a.Value(opt)
		vb, okb := b.Value(opt)
		require.Equal(t, okb, oka, opt.String())
		if oka {
			assert.Same(t, &buf, va)
			assert.Same(t, &buf, vb)
		}
	}
}

func TestSetOptSlistMatchesGeneric(t *testing.T) {
	headers := easy.NewSlist("Accept: */*", "X-Trace: 1")
	for _, list := range []*easy.Slist{headers, nil} {
		a, b := pair(t,
			func(h *easy.Handle) easy.Code { return SetOptSlist(h, easy.OptHTTPHeader, list) },
			func(h *easy.Handle) easy.Code { return easy.SetOpt(h, easy.OptHTTPHeader, list) })
		va, _ := a.Value(easy.OptHTTPHeader)
		vb, _ := b.Value(easy.OptHTTPHeader)
		assert.Equal(t, vb, va)
	}
	assert.Equal(t, easy.BadFunctionArgument, SetOptSlist(easy.Init(), easy.OptURL, headers))
}

func TestSetOptLongMatchesGeneric(t *testing.T) {
	cases := []struct {
		opt   easy.Option
		value int64
	}{
		{easy.OptTimeoutMS, 5000},
		{easy.OptTimeoutMS, -1},
		{easy.OptPort, 70000},
		{easy.OptFollowLocation, 1},
		{easy.OptURL, 1},
	}
	for _, tc := range cases {
		a, b := pair(t,
			func(h *easy.Handle) easy.Code { return SetOptLong(h, tc.opt, tc.value) },
			func(h *easy.Handle) easy.Code { return easy.SetOpt(h, tc.opt, tc.value) })
		va, oka := a.Value(tc.opt)
		vb, okb := b.Value(tc.opt)
		assert.Equal(t, okb, oka)
		assert.Equal(t, vb, va)
	}
}

func TestTimeoutMSConfiguresHandle(t *testing.T) {
	h := easy.Init()
	defer h.Cleanup()
	require.Equal(t, easy.OK, SetOptLong(h, easy.OptTimeoutMS, 5000))
	v, ok := h.Value(easy.OptTimeoutMS)
	require.True(t, ok)
	assert.Equal(t, int64(5000), v)
}

func TestNilHandle(t *testing.T) {
	want := easy.SetOpt(nil, easy.OptURL, "x")
	assert.Equal(t, want, SetOptString(nil, easy.OptURL, strptr("x")))
	assert.Equal(t, easy.SetOpt(nil, easy.OptWriteFunction, easy.Callback(noopCallback)), SetOptFunc(nil, easy.OptWriteFunction, noopCallback))
	assert.Equal(t, easy.SetOpt(nil, easy.OptPrivate, 1), SetOptPointer(nil, easy.OptPrivate, 1))
	assert.Equal(t, easy.SetOpt(nil, easy.OptHTTPHeader, (*easy.Slist)(nil)), SetOptSlist(nil, easy.OptHTTPHeader, nil))
	assert.Equal(t, easy.SetOpt(nil, easy.OptTimeoutMS, int64(1)), SetOptLong(nil, easy.OptTimeoutMS, 1))
	assert.Equal(t, easy.BadFunctionArgument, want)
}

func TestIdempotent(t *testing.T) {
	h := easy.Init()
	defer h.Cleanup()
	headers := easy.NewSlist("A: b")
	var sink bytes.Buffer

	calls := []func() easy.Code{
		func() easy.Code { return SetOptString(h, easy.OptURL, strptr("https://example.com")) },
		func() easy.Code { return SetOptFunc(h, easy.OptWriteFunction, noopCallback) },
		func() easy.Code { return SetOptPointer(h, easy.OptWriteData, &sink) },
		func() easy.Code { return SetOptSlist(h, easy.OptHTTPHeader, headers) },
		func() easy.Code { return SetOptLong(h, easy.OptTimeoutMS, 5000) },
		func() easy.Code { return SetOptLong(h, easy.OptPort, -5) },
	}
	for _, call := range calls {
		first := call()
		url1, _ := h.Value(easy.OptURL)
		timeout1, _ := h.Value(easy.OptTimeoutMS)
		assert.Equal(t, first, call())
		url2, _ := h.Value(easy.OptURL)
		timeout2, _ := h.Value(easy.OptTimeoutMS)
		assert.Equal(t, url1, url2)
		assert.Equal(t, timeout1, timeout2)
	}
}

// A transfer configured through the setters behaves like one configured
// through the generic entry point.
func TestPerformMatchesGeneric(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"|"+r.Header.Get("X-Via"))
		io.WriteString(w, "payload")
	}))
	defer srv.Close()

	headers := easy.NewSlist("X-Via: test")
	url := srv.URL + "/resource"

	var viaFacade, direct bytes.Buffer
	a, b := easy.Init(), easy.Init()
	defer a.Cleanup()
	defer b.Cleanup()

	require.Equal(t, easy.OK, SetOptString(a, easy.OptURL, &url))
	require.Equal(t, easy.OK, SetOptPointer(a, easy.OptWriteData, &viaFacade))
	require.Equal(t, easy.OK, SetOptSlist(a, easy.OptHTTPHeader, headers))
	require.Equal(t, easy.OK, SetOptLong(a, easy.OptTimeoutMS, 5000))
	require.Equal(t, easy.OK, SetOptFunc(a, easy.OptHeaderFunction, noopCallback))

	require.Equal(t, easy.OK, easy.SetOpt(b, easy.OptURL, url))
	require.Equal(t, easy.OK, easy.SetOpt(b, easy.OptWriteData, &direct))
	require.Equal(t, easy.OK, easy.SetOpt(b, easy.OptHTTPHeader, headers))
	require.Equal(t, easy.OK, easy.SetOpt(b, easy.OptTimeoutMS, 5000))
	require.Equal(t, easy.OK, easy.SetOpt(b, easy.OptHeaderFunction, easy.Callback(noopCallback)))

	ctx := context.Background()
	assert.Equal(t, b.Perform(ctx), a.Perform(ctx))
	assert.Equal(t, direct.String(), viaFacade.String())
	assert.Equal(t, "payload", viaFacade.String())
	assert.Equal(t, b.Info().ResponseCode, a.Info().ResponseCode)
	assert.Equal(t, b.Info().EffectiveURL, a.Info().EffectiveURL)
	assert.Equal(t, []string{"/resource|test", "/resource|test"}, paths)
}
