package mail

import (
	"context"
	"sync"
)

// Recorder is a Sender that keeps mails instead of delivering them.
// When Err is set every Send fails with it.
type Recorder struct {
	Err error

	mu   sync.Mutex
	sent []Mail
}

func (r *Recorder) Send(ctx context.Context, m Mail) error {
	if r.Err != nil {
		return r.Err
	}
	if _, err := m.Payload(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, m)
	return nil
}

// Sent returns the recorded mails in send order.
func (r *Recorder) Sent() []Mail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Mail(nil), r.sent...)
}
