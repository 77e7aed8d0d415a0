package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/accelara/easyxfer/internal/downloader"
	"github.com/accelara/easyxfer/internal/easy"
	"github.com/accelara/easyxfer/internal/utils"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ", ") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var (
		headers  listFlag
		mailRcpt listFlag
		data     optionalString
	)
	var (
		source         = flag.String("source", "", "URL or magnet link (required)")
		output         = flag.String("output", "", "Output file or directory (default stdout)")
		limit          = flag.String("limit", "", "Download rate limit, e.g. 500KB")
		uploadLimit    = flag.String("upload-limit", "", "Upload rate limit")
		connectTimeout = flag.Int("connect-timeout", 15, "Connection timeout in seconds")
		timeout        = flag.Int("timeout", 0, "Maximum time for the whole transfer in seconds")
		uploadFile     = flag.String("upload-file", "", "Upload this file (PUT for HTTP, message for SMTP)")
		user           = flag.String("user", "", "Credentials as user:password")
		mailFrom       = flag.String("mail-from", "", "SMTP envelope sender")
		location       = flag.Bool("location", false, "Follow redirects")
		failOnError    = flag.Bool("fail", false, "Fail on HTTP status 400 and above")
		proxy          = flag.String("proxy", "", "HTTP/HTTPS proxy URL")
		insecure       = flag.Bool("insecure", false, "Skip TLS certificate verification")
		head           = flag.Bool("head", false, "Fetch headers only and print transfer info")
		retries        = flag.Int("retries", 3, "Number of retry attempts for transient failures")
		sha256         = flag.String("sha256", "", "SHA256 hash for file verification")
		verbose        = flag.Bool("verbose", false, "Trace the protocol dialogue on stderr")
		jsonStatus     = flag.Bool("json", false, "Report status as JSON lines")
		transferID     = flag.String("transfer-id", "", "ID included in JSON status lines")
		quiet          = flag.Bool("quiet", false, "Suppress progress output")
		version        = flag.Bool("version", false, "Print version and exit")
	)
	flag.Var(&headers, "header", "Extra request header, repeatable")
	flag.Var(&mailRcpt, "mail-rcpt", "SMTP recipient, repeatable")
	flag.Var(&data, "data", "Send as application/x-www-form-urlencoded POST body")

	flag.Parse()

	if *version {
		fmt.Println("easyget", easy.Version())
		return
	}

	if *source == "" {
		if len(flag.Args()) > 0 {
			*source = flag.Args()[0]
		} else {
			fmt.Fprintf(os.Stderr, "Error: source is required\n")
			os.Exit(1)
		}
	}

	limitBytes, err := utils.ParseBytes(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing limit: %v\n", err)
		os.Exit(1)
	}
	uploadLimitBytes, err := utils.ParseBytes(*uploadLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing upload-limit: %v\n", err)
		os.Exit(1)
	}

	outPath := *output
	if outPath == "" && utils.IsMagnet(*source) {
		outPath = "."
	}

	// Status lines must not mix with a body written to stdout.
	statusOut := io.Writer(os.Stdout)
	if outPath == "" || outPath == "-" || *head {
		statusOut = os.Stderr
	}
	var reporter downloader.StatusReporter
	switch {
	case *jsonStatus:
		id := *transferID
		if id == "" {
			id = uuid.NewString()
		}
		reporter = &StatusReporter{transferID: id, out: statusOut}
	case !*quiet:
		reporter = &ProgressPrinter{out: os.Stderr}
	}

	opts := downloader.Options{
		Source:         *source,
		Output:         outPath,
		RateLimit:      limitBytes,
		UploadLimit:    uploadLimitBytes,
		Proxy:          *proxy,
		Retries:        *retries,
		ConnectTimeout: *connectTimeout,
		Timeout:        *timeout,
		SHA256:         *sha256,
		Headers:        headers,
		Data:           data.value,
		UploadFile:     *uploadFile,
		User:           *user,
		MailFrom:       *mailFrom,
		MailRcpt:       mailRcpt,
		FollowLocation: *location,
		FailOnError:    *failOnError,
		Insecure:       *insecure,
		HeadOnly:       *head,
		Verbose:        *verbose,
		Quiet:          *quiet,
		StatusReporter: reporter,
		TransferID:     *transferID,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		fmt.Fprintf(os.Stderr, "\nReceived signal: %v. Stopping transfer...\n", sig)
		cancel()
	}()

	info, err := downloader.New(opts).Run(ctx)
	if p, ok := reporter.(*ProgressPrinter); ok {
		p.Done()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *head {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]interface{}{
			"response_code":  info.ResponseCode,
			"effective_url":  info.EffectiveURL,
			"content_type":   info.ContentType,
			"redirect_count": info.RedirectCount,
			"total_time":     info.TotalTime.Seconds(),
		})
	}
}

// optionalString tells an empty --data "" apart from an absent flag.
type optionalString struct {
	value *string
}

func (o *optionalString) String() string {
	if o.value == nil {
		return ""
	}
	return *o.value
}

func (o *optionalString) Set(v string) error {
	if o.value != nil {
		v = *o.value + "&" + v
	}
	o.value = &v
	return nil
}
