package easy

import "math"

// SetOpt is the single generic configuration entry point. param must
// have the shape opt expects:
//
//	string   string, *string (nil unsets) or nil
//	function Callback, func([]byte, int, int, any) int, or nil
//	pointer  any value, stored as given
//	slist    *Slist or nil
//	long     any Go integer type
//
// A nil handle answers BadFunctionArgument.
func SetOpt(h *Handle, opt Option, param any) Code {
	return h.SetOpt(opt, param)
}

// SetOpt is the method form of SetOpt.
func (h *Handle) SetOpt(opt Option, param any) Code {
	if h == nil {
		return BadFunctionArgument
	}
	def, ok := options[opt]
	if !ok {
		return UnknownOption
	}
	value, code := normalize(def.shape, param)
	if code != OK {
		return code
	}
	if code := validate(opt, value); code != OK {
		return code
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return BadFunctionArgument
	}
	if value == nil {
		delete(h.values, opt)
		return OK
	}
	h.values[opt] = value
	return OK
}

func normalize(shape Shape, param any) (any, Code) {
	switch shape {
	case ShapeString:
		switch v := param.(type) {
		case nil:
			return nil, OK
		case string:
			return v, OK
		case *string:
			if v == nil {
				return nil, OK
			}
			return *v, OK
		}
	case ShapeFunc:
		if fn, ok := asCallback(param); ok {
			if fn == nil {
				return nil, OK
			}
			return fn, OK
		}
	case ShapePointer:
		return param, OK
	case ShapeSlist:
		switch v := param.(type) {
		case nil:
			return nil, OK
		case *Slist:
			if v == nil {
				return nil, OK
			}
			return v, OK
		}
	case ShapeLong:
		if n, ok := toInt64(param); ok {
			return n, OK
		}
	}
	return nil, BadFunctionArgument
}

func toInt64(param any) (int64, bool) {
	switch v := param.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return uintToInt64(v)
	}
	return 0, false
}

func uintToInt64(v uint64) (int64, bool) {
	if v > math.MaxInt64 {
		return 0, false
	}
	return int64(v), true
}

// validate rejects integer values libcurl also refuses at setopt time.
func validate(opt Option, value any) Code {
	n, ok := value.(int64)
	if !ok {
		return OK
	}
	switch opt {
	case OptTimeout, OptTimeoutMS, OptConnectTimeout, OptConnectTimeoutMS,
		OptMaxRecvSpeed, OptMaxSendSpeed, OptResumeFrom:
		if n < 0 {
			return BadFunctionArgument
		}
	case OptMaxRedirs:
		if n < -1 {
			return BadFunctionArgument
		}
	case OptPort:
		if n < 0 || n > 65535 {
			return BadFunctionArgument
		}
	case OptUseSSL:
		if n < UseSSLNone || n > UseSSLAll {
			return BadFunctionArgument
		}
	case OptPostFieldSize, OptInFileSize:
		if n < -1 {
			return BadFunctionArgument
		}
	}
	return OK
}
