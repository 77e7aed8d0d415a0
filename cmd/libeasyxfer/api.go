package main

import (
	"context"
	"unsafe"

	"github.com/accelara/easyxfer/internal/easy"
	"github.com/accelara/easyxfer/internal/easyopt"
)

// errorBufferSize is the size C callers allocate for ERRORBUFFER.
const errorBufferSize = 256

// session is a handle plus the C error buffer registered on it.
type session struct {
	h           *easy.Handle
	errorBuffer unsafe.Pointer
}

var (
	handles = newTable[*session]()
	lists   = newTable[*easy.Slist]()
)

// handle returns nil for unknown tokens so the setters answer with the
// library's own nil-handle status.
func handle(id uint32) *easy.Handle {
	if s := handles.get(id); s != nil {
		return s.h
	}
	return nil
}

func initHandle() uint32 {
	return handles.add(&session{h: easy.Init()})
}

func cleanupHandle(id uint32) {
	if s, ok := handles.remove(id); ok {
		s.h.Cleanup()
	}
}

func resetHandle(id uint32) {
	if s := handles.get(id); s != nil {
		s.h.Reset()
		s.errorBuffer = nil
	}
}

func duphandle(id uint32) uint32 {
	s := handles.get(id)
	if s == nil {
		return 0
	}
	dup := s.h.Duphandle()
	if dup == nil {
		return 0
	}
	return handles.add(&session{h: dup, errorBuffer: s.errorBuffer})
}

func perform(id uint32) easy.Code {
	s := handles.get(id)
	if s == nil {
		return easy.BadFunctionArgument
	}
	code := s.h.Perform(context.Background())
	if s.errorBuffer != nil && code != easy.OK {
		copyErrorText(s.errorBuffer, s.h.LastError())
	}
	return code
}

// copyErrorText writes msg NUL terminated into a C buffer of
// errorBufferSize bytes.
func copyErrorText(buf unsafe.Pointer, msg string) {
	dst := unsafe.Slice((*byte)(buf), errorBufferSize)
	n := copy(dst[:errorBufferSize-1], msg)
	dst[n] = 0
}

func setoptString(id uint32, opt easy.Option, param *string) easy.Code {
	return easyopt.SetOptString(handle(id), opt, param)
}

func setoptFunc(id uint32, opt easy.Option, param easy.Callback) easy.Code {
	return easyopt.SetOptFunc(handle(id), opt, param)
}

func setoptPointer(id uint32, opt easy.Option, param unsafe.Pointer) easy.Code {
	var value any
	if param != nil {
		value = param
	}
	code := easyopt.SetOptPointer(handle(id), opt, value)
	if code == easy.OK && opt == easy.OptErrorBuffer {
		handles.get(id).errorBuffer = param
	}
	return code
}

func setoptSlist(id uint32, opt easy.Option, listID uint32) easy.Code {
	list := lists.get(listID)
	if listID != 0 && list == nil {
		return easy.BadFunctionArgument
	}
	return easyopt.SetOptSlist(handle(id), opt, list)
}

func setoptLong(id uint32, opt easy.Option, param int64) easy.Code {
	return easyopt.SetOptLong(handle(id), opt, param)
}

// slistAppend appends s to the list behind listID, creating a list for
// token 0. It returns the list's token, or 0 for an unknown token.
func slistAppend(listID uint32, s string) uint32 {
	if listID == 0 {
		return lists.add((*easy.Slist)(nil).Append(s))
	}
	list := lists.get(listID)
	if list == nil {
		return 0
	}
	list.Append(s)
	return listID
}

func slistFreeAll(listID uint32) {
	if list, ok := lists.remove(listID); ok {
		list.FreeAll()
	}
}
