package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/accelara/easyxfer/internal/utils"
)

// StatusReporter prints status maps as JSON lines, at most every 100ms
// except for final states.
type StatusReporter struct {
	transferID string
	out        io.Writer

	mu         sync.Mutex
	lastUpdate time.Time
}

func (sr *StatusReporter) Report(status map[string]interface{}) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	now := time.Now()
	if !isFinal(status) && now.Sub(sr.lastUpdate) < 100*time.Millisecond {
		return
	}
	sr.lastUpdate = now

	output := map[string]interface{}{
		"transfer_id": sr.transferID,
		"timestamp":   now.Unix(),
	}
	for k, v := range status {
		output[k] = v
	}

	data, _ := json.Marshal(output)
	fmt.Fprintln(sr.out, string(data))
}

func isFinal(status map[string]interface{}) bool {
	switch status["status"] {
	case "completed", "error", "retrying", "verifying":
		return true
	}
	return false
}

// ProgressPrinter draws a single status line on a terminal.
type ProgressPrinter struct {
	out     io.Writer
	mu      sync.Mutex
	printed bool
}

func (p *ProgressPrinter) Report(status map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, _ := status["status"].(string)
	switch state {
	case "downloading", "uploading":
		done, _ := status["downloaded"].(int64)
		speed, _ := status["speed"].(int64)
		line := fmt.Sprintf("%s %s", state, utils.HumanBytes(done))
		if total, ok := status["total"].(int64); ok {
			progress, _ := status["progress"].(float64)
			line = fmt.Sprintf("%s %.1f%% %s/%s", state, progress*100, utils.HumanBytes(done), utils.HumanBytes(total))
		}
		fmt.Fprintf(p.out, "\r%-60s", line+" "+utils.HumanRate(speed))
		p.printed = true
	case "retrying", "error":
		p.newline()
		fmt.Fprintf(p.out, "%s\n", status["message"])
	case "verifying":
		p.newline()
		fmt.Fprintln(p.out, "verifying SHA256...")
	}
}

// Done ends the progress line.
func (p *ProgressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newline()
}

func (p *ProgressPrinter) newline() {
	if p.printed {
		fmt.Fprintln(p.out)
		p.printed = false
	}
}
