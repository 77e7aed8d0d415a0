package easy

import (
	"sync"
	"sync/atomic"
	"time"
)

// Handle is one configurable transfer session. A Handle may be
// configured and performed repeatedly, but never by two goroutines at
// the same time.
type Handle struct {
	mu      sync.Mutex
	values  map[Option]any
	closed  bool
	info    Info
	lastErr string

	busy atomic.Bool
}

// Info describes the most recent transfer performed on a Handle.
type Info struct {
	ResponseCode  int
	EffectiveURL  string
	ContentType   string
	SizeDownload  int64
	SizeUpload    int64
	RedirectCount int
	TotalTime     time.Duration
}

// Init returns a new Handle with every option at its default.
func Init() *Handle {
	return &Handle{values: make(map[Option]any)}
}

// Cleanup releases the handle. Further calls on it answer
// BadFunctionArgument. Lists and pointers stored in options are not
// touched; they belong to the caller.
func (h *Handle) Cleanup() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.values = nil
}

// Reset returns every option to its default and forgets transfer info.
func (h *Handle) Reset() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.values = make(map[Option]any)
	h.info = Info{}
	h.lastErr = ""
}

// Duphandle returns a new Handle carrying a copy of h's options. Lists
// and pointers are shared, not copied.
func (h *Handle) Duphandle() *Handle {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	dup := Init()
	for opt, v := range h.values {
		dup.values[opt] = v
	}
	return dup
}

// Value returns the stored value for opt, normalized to its shape
// (string, Callback, any, *Slist or int64).
func (h *Handle) Value(opt Option) (any, bool) {
	if h == nil {
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.values[opt]
	return v, ok
}

// Info returns details of the last Perform.
func (h *Handle) Info() Info {
	if h == nil {
		return Info{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.info
}

// LastError returns the failure text of the last Perform, if any.
func (h *Handle) LastError() string {
	if h == nil {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *Handle) snapshot() (settings, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	s := make(settings, len(h.values))
	for opt, v := range h.values {
		s[opt] = v
	}
	return s, true
}

func (h *Handle) finish(info Info, errText string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.info = info
	h.lastErr = errText
}

// settings is an immutable copy of a Handle's options taken at the
// start of a transfer.
type settings map[Option]any

func (s settings) str(opt Option) string {
	v, _ := s[opt].(string)
	return v
}

func (s settings) long(opt Option, def int64) int64 {
	if v, ok := s[opt].(int64); ok {
		return v
	}
	return def
}

func (s settings) flag(opt Option) bool {
	return s.long(opt, 0) != 0
}

func (s settings) fn(opt Option) Callback {
	v, _ := s[opt].(Callback)
	return v
}

func (s settings) ptr(opt Option) any {
	return s[opt]
}

func (s settings) list(opt Option) *Slist {
	v, _ := s[opt].(*Slist)
	return v
}
