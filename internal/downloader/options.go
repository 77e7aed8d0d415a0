package downloader

import "time"

// StatusReporter interface for reporting transfer status
type StatusReporter interface {
	Report(status map[string]interface{})
}

// Options contains all transfer options
type Options struct {
	Source string
	Output string

	RateLimit      int64
	UploadLimit    int64
	Proxy          string
	Retries        int
	RetryDelay     time.Duration // first backoff step, doubled per attempt
	ConnectTimeout int           // seconds
	Timeout        int           // seconds, whole transfer
	SHA256         string

	Headers        []string
	Data           *string
	UploadFile     string
	User           string
	MailFrom       string
	MailRcpt       []string
	FollowLocation bool
	FailOnError    bool
	Insecure       bool
	HeadOnly       bool
	Verbose        bool

	Quiet          bool
	StatusReporter StatusReporter
	TransferID     string
}
