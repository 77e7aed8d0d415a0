// Package easyopt exposes the generic easy.SetOpt entry point as one
// statically typed setter per value shape. Callers that cannot pass an
// untyped value pick the setter matching the option's shape; each setter
// forwards its arguments unchanged and returns the library's status
// unchanged.
package easyopt

import "github.com/accelara/easyxfer/internal/easy"

// SetOptString sets a string option. A nil param unsets it.
func SetOptString(h *easy.Handle, opt easy.Option, param *string) easy.Code {
	return easy.SetOpt(h, opt, param)
}

// SetOptFunc sets a callback option.
func SetOptFunc(h *easy.Handle, opt easy.Option, param easy.Callback) easy.Code {
	return easy.SetOpt(h, opt, param)
}

// SetOptPointer sets a pointer option. The value stays owned by the caller.
func SetOptPointer(h *easy.Handle, opt easy.Option, param any) easy.Code {
	return easy.SetOpt(h, opt, param)
}

// SetOptSlist sets a string list option. The list stays owned by the caller.
func SetOptSlist(h *easy.Handle, opt easy.Option, param *easy.Slist) easy.Code {
	return easy.SetOpt(h, opt, param)
}

// SetOptLong sets an integer option.
func SetOptLong(h *easy.Handle, opt easy.Option, param int64) easy.Code {
	return easy.SetOpt(h, opt, param)
}
