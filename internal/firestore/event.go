package firestore

import (
	"time"

	"github.com/dukerupert/invoicer/internal/domain"
	"github.com/dukerupert/invoicer/internal/service"
)

// orderCreated turns an added document into a workflow event. Documents
// created before the listener started, and documents already carrying an
// invoice reference, are not events.
func orderCreated(rec domain.InvoiceRecord, created, since time.Time) (service.OrderCreatedEvent, bool) {
	if created.Before(since) || rec.HasInvoice() {
		return service.OrderCreatedEvent{}, false
	}
	return service.OrderCreatedEvent{
		EventID:  rec.ID,
		RecordID: rec.ID,
		Request:  rec.OrderRequest,
	}, true
}
