package easy

import "fmt"

// Code is the status returned by every configuration and transfer call.
// Values follow libcurl's CURLcode numbering so codes read the same on
// both sides of a foreign-function boundary.
type Code int

const (
	OK                     Code = 0
	UnsupportedProtocol    Code = 1
	FailedInit             Code = 2
	URLMalformat           Code = 3
	CouldntResolveProxy    Code = 5
	CouldntResolveHost     Code = 6
	CouldntConnect         Code = 7
	RemoteAccessDenied     Code = 9
	PartialFile            Code = 18
	HTTPReturnedError      Code = 22
	WriteError             Code = 23
	UploadFailed           Code = 25
	ReadError              Code = 26
	OutOfMemory            Code = 27
	OperationTimedOut      Code = 28
	RangeError             Code = 33
	FileCouldntReadFile    Code = 37
	AbortedByCallback      Code = 42
	BadFunctionArgument    Code = 43
	TooManyRedirects       Code = 47
	UnknownOption          Code = 48
	GotNothing             Code = 52
	SendError              Code = 55
	RecvError              Code = 56
	PeerFailedVerification Code = 60
	UseSSLFailed           Code = 64
	LoginDenied            Code = 67
	RemoteFileNotFound     Code = 78
	RecursiveAPICall       Code = 93
)

var codeText = map[Code]string{
	OK:                     "No error",
	UnsupportedProtocol:    "Unsupported protocol",
	FailedInit:             "Failed initialization",
	URLMalformat:           "URL using bad/illegal format or missing URL",
	CouldntResolveProxy:    "Couldn't resolve proxy name",
	CouldntResolveHost:     "Couldn't resolve host name",
	CouldntConnect:         "Couldn't connect to server",
	RemoteAccessDenied:     "Access denied to remote resource",
	PartialFile:            "Transferred a partial file",
	HTTPReturnedError:      "HTTP response code said error",
	WriteError:             "Failed writing received data to disk/application",
	UploadFailed:           "Upload failed (at start/before it took off)",
	ReadError:              "Failed to open/read local data from file/application",
	OutOfMemory:            "Out of memory",
	OperationTimedOut:      "Timeout was reached",
	RangeError:             "Requested range was not delivered by the server",
	FileCouldntReadFile:    "Couldn't read a file:// file",
	AbortedByCallback:      "Operation was aborted by an application callback",
	BadFunctionArgument:    "A function was given a bad argument",
	TooManyRedirects:       "Number of redirects hit maximum amount",
	UnknownOption:          "An unknown option was passed in",
	GotNothing:             "Server returned nothing (no headers, no data)",
	SendError:              "Failed sending data to the peer",
	RecvError:              "Failure when receiving data from the peer",
	PeerFailedVerification: "SSL peer certificate or SSH remote key was not OK",
	UseSSLFailed:           "Requested SSL level failed",
	LoginDenied:            "Login denied",
	RemoteFileNotFound:     "Remote file not found",
	RecursiveAPICall:       "API function called from within callback",
}

// Strerror returns the human readable description of c.
func Strerror(c Code) string {
	if s, ok := codeText[c]; ok {
		return s
	}
	return "Unknown error"
}

func (c Code) String() string {
	return Strerror(c)
}

// Error makes a Code usable as an error. OK is not meant to be returned as one.
func (c Code) Error() string {
	return fmt.Sprintf("easy: %s (%d)", Strerror(c), int(c))
}

// Err returns nil for OK and c otherwise.
func (c Code) Err() error {
	if c == OK {
		return nil
	}
	return c
}
