package notify

import (
	"context"
	"sync"
)

// Recorder keeps every notification in memory for test assertions.
type Recorder struct {
	mu            sync.Mutex
	Sent          []InvoiceSent
	StatusChanged []InvoiceStatusChanged

	// Err, when set, is returned from every publish.
	Err error
}

func (r *Recorder) InvoiceSent(ctx context.Context, msg InvoiceSent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, msg)
	return nil
}

func (r *Recorder) InvoiceStatusChanged(ctx context.Context, msg InvoiceStatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.StatusChanged = append(r.StatusChanged, msg)
	return nil
}

// Snapshot returns copies of the recorded notifications.
func (r *Recorder) Snapshot() ([]InvoiceSent, []InvoiceStatusChanged) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]InvoiceSent(nil), r.Sent...), append([]InvoiceStatusChanged(nil), r.StatusChanged...)
}
