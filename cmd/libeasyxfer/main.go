// Command libeasyxfer builds the transfer library as a C shared library:
//
//	go build -buildmode=c-shared -o libeasyxfer.so ./cmd/libeasyxfer
//
// Handles and string lists cross the boundary as uint32 tokens; 0 is
// never a valid token. Every option setter has a fixed signature, so
// callers without variadic calls can reach every option.
package main

/*
#include <stdint.h>
#include <stdlib.h>
#include "bridge.h"
*/
import "C"

import (
	"sync"
	"unsafe"

	"github.com/accelara/easyxfer/internal/easy"
)

//export easy_init
func easy_init() C.uint32_t {
	return C.uint32_t(initHandle())
}

//export easy_cleanup
func easy_cleanup(h C.uint32_t) {
	cleanupHandle(uint32(h))
}

//export easy_reset
func easy_reset(h C.uint32_t) {
	resetHandle(uint32(h))
}

//export easy_duphandle
func easy_duphandle(h C.uint32_t) C.uint32_t {
	return C.uint32_t(duphandle(uint32(h)))
}

//export easy_perform
func easy_perform(h C.uint32_t) C.int {
	return C.int(perform(uint32(h)))
}

var strerrorCache sync.Map

// easy_strerror returns a static string; callers must not free it.
//
//export easy_strerror
func easy_strerror(code C.int) *C.char {
	if s, ok := strerrorCache.Load(int(code)); ok {
		return (*C.char)(s.(unsafe.Pointer))
	}
	s := unsafe.Pointer(C.CString(easy.Strerror(easy.Code(code))))
	if prev, loaded := strerrorCache.LoadOrStore(int(code), s); loaded {
		C.free(s)
		s = prev.(unsafe.Pointer)
	}
	return (*C.char)(s)
}

//export easy_slist_append
func easy_slist_append(list C.uint32_t, s *C.char) C.uint32_t {
	if s == nil {
		return 0
	}
	return C.uint32_t(slistAppend(uint32(list), C.GoString(s)))
}

//export easy_slist_free_all
func easy_slist_free_all(list C.uint32_t) {
	slistFreeAll(uint32(list))
}

//export easy_setopt_string
func easy_setopt_string(h C.uint32_t, opt C.int, param *C.char) C.int {
	var value *string
	if param != nil {
		s := C.GoString(param)
		value = &s
	}
	return C.int(setoptString(uint32(h), easy.Option(opt), value))
}

//export easy_setopt_func
func easy_setopt_func(h C.uint32_t, opt C.int, param C.easy_callback) C.int {
	var fn easy.Callback
	if param != nil {
		fn = cCallback(param)
	}
	return C.int(setoptFunc(uint32(h), easy.Option(opt), fn))
}

//export easy_setopt_pointer
func easy_setopt_pointer(h C.uint32_t, opt C.int, param unsafe.Pointer) C.int {
	return C.int(setoptPointer(uint32(h), easy.Option(opt), param))
}

//export easy_setopt_slist
func easy_setopt_slist(h C.uint32_t, opt C.int, list C.uint32_t) C.int {
	return C.int(setoptSlist(uint32(h), easy.Option(opt), uint32(list)))
}

//export easy_setopt_long
func easy_setopt_long(h C.uint32_t, opt C.int, param C.long) C.int {
	return C.int(setoptLong(uint32(h), easy.Option(opt), int64(param)))
}

// cCallback calls fn for every chunk. userdata set with
// easy_setopt_pointer is passed back as the C pointer it was.
func cCallback(fn C.easy_callback) easy.Callback {
	return func(buffer []byte, size, nitems int, userdata any) int {
		var buf *C.char
		if len(buffer) > 0 {
			buf = (*C.char)(unsafe.Pointer(&buffer[0]))
		}
		p, _ := userdata.(unsafe.Pointer)
		return int(C.easy_invoke(fn, buf, C.size_t(size), C.size_t(nitems), p))
	}
}

func main() {}
