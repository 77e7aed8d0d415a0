package easy

import "strconv"

// Option identifies one configurable behavior of a Handle.
type Option int

// Option number bases. The base encodes the C parameter type the option
// takes, as in libcurl.
const (
	optTypeLong          Option = 0
	optTypeObjectPoint   Option = 10000
	optTypeFunctionPoint Option = 20000
	optTypeOffT          Option = 30000
)

const (
	OptWriteData         = optTypeObjectPoint + 1
	OptURL               = optTypeObjectPoint + 2
	OptPort              = optTypeLong + 3
	OptProxy             = optTypeObjectPoint + 4
	OptUserPwd           = optTypeObjectPoint + 5
	OptRange             = optTypeObjectPoint + 7
	OptReadData          = optTypeObjectPoint + 9
	OptErrorBuffer       = optTypeObjectPoint + 10
	OptWriteFunction     = optTypeFunctionPoint + 11
	OptReadFunction      = optTypeFunctionPoint + 12
	OptTimeout           = optTypeLong + 13
	OptInFileSize        = optTypeLong + 14
	OptPostFields        = optTypeObjectPoint + 15
	OptReferer           = optTypeObjectPoint + 16
	OptUserAgent         = optTypeObjectPoint + 18
	OptHTTPHeader        = optTypeObjectPoint + 23
	OptHeaderData        = optTypeObjectPoint + 29
	OptCustomRequest     = optTypeObjectPoint + 36
	OptStderr            = optTypeObjectPoint + 37
	OptVerbose           = optTypeLong + 41
	OptNoBody            = optTypeLong + 44
	OptFailOnError       = optTypeLong + 45
	OptUpload            = optTypeLong + 46
	OptPost              = optTypeLong + 47
	OptFollowLocation    = optTypeLong + 52
	OptSSLVerifyPeer     = optTypeLong + 64
	OptMaxRedirs         = optTypeLong + 68
	OptConnectTimeout    = optTypeLong + 78
	OptHeaderFunction    = optTypeFunctionPoint + 79
	OptPrivate           = optTypeObjectPoint + 103
	OptUseSSL            = optTypeLong + 119
	OptPostFieldSize     = optTypeOffT + 120
	OptResumeFrom        = optTypeOffT + 116
	OptMaxSendSpeed      = optTypeOffT + 145
	OptMaxRecvSpeed      = optTypeOffT + 146
	OptTimeoutMS         = optTypeLong + 155
	OptConnectTimeoutMS  = optTypeLong + 156
	OptUsername          = optTypeObjectPoint + 173
	OptPassword          = optTypeObjectPoint + 174
	OptMailFrom          = optTypeObjectPoint + 186
	OptMailRcpt          = optTypeObjectPoint + 187
	OptMailAuth          = optTypeObjectPoint + 217
)

// USE_SSL levels.
const (
	UseSSLNone    = 0
	UseSSLTry     = 1
	UseSSLControl = 2
	UseSSLAll     = 3
)

// Shape is the Go type family an option value must have.
type Shape int

const (
	ShapeString Shape = iota
	ShapeFunc
	ShapePointer
	ShapeSlist
	ShapeLong
)

func (s Shape) String() string {
	switch s {
	case ShapeString:
		return "string"
	case ShapeFunc:
		return "function"
	case ShapePointer:
		return "pointer"
	case ShapeSlist:
		return "slist"
	case ShapeLong:
		return "long"
	default:
		return "unknown"
	}
}

type optionDef struct {
	name  string
	shape Shape
}

var options = map[Option]optionDef{
	OptWriteData:        {"WRITEDATA", ShapePointer},
	OptURL:              {"URL", ShapeString},
	OptPort:             {"PORT", ShapeLong},
	OptProxy:            {"PROXY", ShapeString},
	OptUserPwd:          {"USERPWD", ShapeString},
	OptRange:            {"RANGE", ShapeString},
	OptReadData:         {"READDATA", ShapePointer},
	OptErrorBuffer:      {"ERRORBUFFER", ShapePointer},
	OptWriteFunction:    {"WRITEFUNCTION", ShapeFunc},
	OptReadFunction:     {"READFUNCTION", ShapeFunc},
	OptTimeout:          {"TIMEOUT", ShapeLong},
	OptInFileSize:       {"INFILESIZE", ShapeLong},
	OptPostFields:       {"POSTFIELDS", ShapeString},
	OptReferer:          {"REFERER", ShapeString},
	OptUserAgent:        {"USERAGENT", ShapeString},
	OptHTTPHeader:       {"HTTPHEADER", ShapeSlist},
	OptHeaderData:       {"HEADERDATA", ShapePointer},
	OptCustomRequest:    {"CUSTOMREQUEST", ShapeString},
	OptStderr:           {"STDERR", ShapePointer},
	OptVerbose:          {"VERBOSE", ShapeLong},
	OptNoBody:           {"NOBODY", ShapeLong},
	OptFailOnError:      {"FAILONERROR", ShapeLong},
	OptUpload:           {"UPLOAD", ShapeLong},
	OptPost:             {"POST", ShapeLong},
	OptFollowLocation:   {"FOLLOWLOCATION", ShapeLong},
	OptSSLVerifyPeer:    {"SSL_VERIFYPEER", ShapeLong},
	OptMaxRedirs:        {"MAXREDIRS", ShapeLong},
	OptConnectTimeout:   {"CONNECTTIMEOUT", ShapeLong},
	OptHeaderFunction:   {"HEADERFUNCTION", ShapeFunc},
	OptPrivate:          {"PRIVATE", ShapePointer},
	OptUseSSL:           {"USE_SSL", ShapeLong},
	OptPostFieldSize:    {"POSTFIELDSIZE_LARGE", ShapeLong},
	OptResumeFrom:       {"RESUME_FROM_LARGE", ShapeLong},
	OptMaxSendSpeed:     {"MAX_SEND_SPEED_LARGE", ShapeLong},
	OptMaxRecvSpeed:     {"MAX_RECV_SPEED_LARGE", ShapeLong},
	OptTimeoutMS:        {"TIMEOUT_MS", ShapeLong},
	OptConnectTimeoutMS: {"CONNECTTIMEOUT_MS", ShapeLong},
	OptUsername:         {"USERNAME", ShapeString},
	OptPassword:         {"PASSWORD", ShapeString},
	OptMailFrom:         {"MAIL_FROM", ShapeString},
	OptMailRcpt:         {"MAIL_RCPT", ShapeSlist},
	OptMailAuth:         {"MAIL_AUTH", ShapeString},
}

func (o Option) String() string {
	if def, ok := options[o]; ok {
		return def.name
	}
	return "OPTION(" + strconv.Itoa(int(o)) + ")"
}

